package server

import (
	"net/http"

	"github.com/mailru/easyjson/jwriter"
	"github.com/paulmach/orb"
	"github.com/royalcat/dfcigrid/dfci"
	"github.com/valyala/fasthttp"
)

type encodeResponse struct {
	Code       dfci.Code
	Level      dfci.Level
	ValidPoint bool
}

func (v encodeResponse) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawString(`{"code":`)
	w.String(string(v.Code))
	w.RawString(`,"level":`)
	w.Int(int(v.Level))
	w.RawString(`,"valid_point":`)
	w.Bool(v.ValidPoint)
	w.RawByte('}')
}

type decodeResponse struct {
	Code   dfci.Code
	Level  dfci.Level
	Center orb.Point
	Bound  orb.Bound
}

func (v decodeResponse) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawString(`{"code":`)
	w.String(string(v.Code))
	w.RawString(`,"level":`)
	w.Int(int(v.Level))
	w.RawString(`,"x":`)
	w.Float64(v.Center[0])
	w.RawString(`,"y":`)
	w.Float64(v.Center[1])
	w.RawString(`,"bound":[`)
	w.Float64(v.Bound.Min[0])
	w.RawByte(',')
	w.Float64(v.Bound.Min[1])
	w.RawByte(',')
	w.Float64(v.Bound.Max[0])
	w.RawByte(',')
	w.Float64(v.Bound.Max[1])
	w.RawString(`]}`)
}

type errorResponse struct {
	Error string
}

func (v errorResponse) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawString(`{"error":`)
	w.String(v.Error)
	w.RawByte('}')
}

type easyMarshaler interface {
	MarshalEasyJSON(w *jwriter.Writer)
}

func writeJSON(ctx *fasthttp.RequestCtx, v easyMarshaler) {
	w := jwriter.Writer{}
	v.MarshalEasyJSON(&w)
	if w.Error != nil {
		ctx.Response.SetStatusCode(http.StatusInternalServerError)
		ctx.Response.SetBodyString("failed to marshal response")
		return
	}

	ctx.Response.SetStatusCode(http.StatusOK)
	ctx.Response.Header.SetContentType("application/json")
	w.Buffer.DumpTo(ctx.Response.BodyWriter())
}

func writeError(ctx *fasthttp.RequestCtx, status int, msg string) {
	w := jwriter.Writer{}
	errorResponse{Error: msg}.MarshalEasyJSON(&w)

	ctx.Response.SetStatusCode(status)
	ctx.Response.Header.SetContentType("application/json")
	w.Buffer.DumpTo(ctx.Response.BodyWriter())
}

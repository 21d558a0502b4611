package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/royalcat/dfcigrid/projection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

func newTestServer(t testing.TB) *server {
	t.Helper()
	adapter, err := projection.New()
	require.NoError(t, err)
	s, err := newServer(adapter, slog.Default())
	require.NoError(t, err)
	return s
}

func getRequestCtx(uri string, values map[string]string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.SetRequestURI(uri)
	for k, v := range values {
		ctx.SetUserValue(k, v)
	}
	return ctx
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

type encodeBody struct {
	Code       string `json:"code"`
	Level      int    `json:"level"`
	ValidPoint bool   `json:"valid_point"`
}

type decodeBody struct {
	Code  string     `json:"code"`
	Level int        `json:"level"`
	X     float64    `json:"x"`
	Y     float64    `json:"y"`
	Bound [4]float64 `json:"bound"`
}

func TestEncodeHandler(t *testing.T) {
	s := newTestServer(t)

	ctx := getRequestCtx("/dfci/encode/863000/2341000/2", map[string]string{"x": "863000", "y": "2341000", "level": "2"})
	s.EncodeHandler(ctx)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode())

	var body encodeBody
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &body))
	assert.Equal(t, encodeBody{Code: "KK64B0", Level: 2, ValidPoint: true}, body)

	// out of the domain still encodes
	ctx = getRequestCtx("/dfci/encode/-5/2341000/0", map[string]string{"x": "-5", "y": "2341000", "level": "0"})
	s.EncodeHandler(ctx)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &body))
	assert.False(t, body.ValidPoint)
}

func TestEncodeHandlerCRS(t *testing.T) {
	s := newTestServer(t)

	p, err := s.adapter.Transform(orb.Point{863000, 2341000}, projection.NativeCRS, projection.WGS84)
	require.NoError(t, err)

	ctx := getRequestCtx("/dfci/encode/x/y/3?crs="+projection.WGS84, map[string]string{
		"x":     formatFloat(p[0]),
		"y":     formatFloat(p[1]),
		"level": "3",
	})
	s.EncodeHandler(ctx)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode())

	var body encodeBody
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &body))
	assert.Equal(t, "KK64B0.5", body.Code)
}

func TestEncodeHandlerErrors(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		name   string
		uri    string
		values map[string]string
		status int
	}{
		{"bad x", "/dfci/encode", map[string]string{"x": "abc", "y": "1", "level": "0"}, http.StatusBadRequest},
		{"bad y", "/dfci/encode", map[string]string{"x": "1", "y": "", "level": "0"}, http.StatusBadRequest},
		{"bad level", "/dfci/encode", map[string]string{"x": "1", "y": "1", "level": "one"}, http.StatusBadRequest},
		{"level out of range", "/dfci/encode", map[string]string{"x": "1", "y": "1", "level": "4"}, http.StatusBadRequest},
		{"unknown crs", "/dfci/encode?crs=EPSG:9999", map[string]string{"x": "1", "y": "1", "level": "0"}, http.StatusUnprocessableEntity},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ctx := getRequestCtx(c.uri, c.values)
			s.EncodeHandler(ctx)
			require.Equal(t, c.status, ctx.Response.StatusCode())
			require.Contains(t, string(ctx.Response.Body()), `"error":`)
		})
	}
}

func TestDecodeHandler(t *testing.T) {
	s := newTestServer(t)

	ctx := getRequestCtx("/dfci/decode/ab24a0", map[string]string{"code": "ab24a0"})
	s.DecodeHandler(ctx)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode())

	var body decodeBody
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &body))
	assert.Equal(t, decodeBody{
		Code:  "AB24A0",
		Level: 2,
		X:     21000,
		Y:     1641000,
		Bound: [4]float64{20000, 1640000, 22000, 1642000},
	}, body)

	ctx = getRequestCtx("/dfci/decode/KK64B0.1", map[string]string{"code": "KK64B0.1"})
	s.DecodeHandler(ctx)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &body))
	assert.Equal(t, 3, body.Level)
	assert.Equal(t, 862500.0, body.X)
	assert.Equal(t, 2341500.0, body.Y)

	ctx = getRequestCtx("/dfci/decode/AB?crs="+projection.WGS84, map[string]string{"code": "AB"})
	s.DecodeHandler(ctx)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &body))
	assert.InDelta(t, -5, body.X, 3)
	assert.InDelta(t, 42, body.Y, 3)
}

func TestDecodeHandlerErrors(t *testing.T) {
	s := newTestServer(t)

	for _, code := range []string{"", "A", "AA", "IB", "AB2", "AB24I0", "AB24A0.6"} {
		ctx := getRequestCtx("/dfci/decode/"+code, map[string]string{"code": code})
		s.DecodeHandler(ctx)
		require.Equal(t, http.StatusBadRequest, ctx.Response.StatusCode(), code)
	}

	ctx := getRequestCtx("/dfci/decode/AB?crs=nope", map[string]string{"code": "AB"})
	s.DecodeHandler(ctx)
	require.Equal(t, http.StatusUnprocessableEntity, ctx.Response.StatusCode())
}

func TestGridHandler(t *testing.T) {
	s := newTestServer(t)

	ctx := getRequestCtx("/dfci/grid?bbox=20000,1640000,22000,1642000&resolution=10", nil)
	s.GridHandler(ctx)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, "application/geo+json", string(ctx.Response.Header.ContentType()))

	fc, err := geojson.UnmarshalFeatureCollection(ctx.Response.Body())
	require.NoError(t, err)
	require.Len(t, fc.Features, 5)
	assert.Equal(t, "AB24A0.5", fc.Features[0].Properties.MustString("id"))

	ctx = getRequestCtx("/dfci/grid?bbox=-180,-90,180,90&resolution=5000&crs="+projection.WGS84, nil)
	s.GridHandler(ctx)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	fc, err = geojson.UnmarshalFeatureCollection(ctx.Response.Body())
	require.NoError(t, err)
	require.Len(t, fc.Features, 110)
}

func TestGridHandlerErrors(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		uri    string
		status int
	}{
		{"/dfci/grid?resolution=10", http.StatusBadRequest},
		{"/dfci/grid?bbox=1,2,3&resolution=10", http.StatusBadRequest},
		{"/dfci/grid?bbox=3,2,1,4&resolution=10", http.StatusBadRequest},
		{"/dfci/grid?bbox=0,0,1,1", http.StatusBadRequest},
		{"/dfci/grid?bbox=0,0,1,1&resolution=0", http.StatusBadRequest},
		{"/dfci/grid?bbox=0,0,1,1&resolution=-3", http.StatusBadRequest},
		{"/dfci/grid?bbox=0,0,1,1&resolution=10&crs=EPSG:9999", http.StatusUnprocessableEntity},
	}
	for _, c := range cases {
		ctx := getRequestCtx(c.uri, nil)
		s.GridHandler(ctx)
		require.Equal(t, c.status, ctx.Response.StatusCode(), c.uri)
	}
}

func TestRouter(t *testing.T) {
	s := newTestServer(t)
	handler := s.router().Handler

	ctx := getRequestCtx("/dfci/decode/AB24A0.3", nil)
	handler(ctx)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode())

	ctx = getRequestCtx("/dfci/encode/100/1600100/1", nil)
	handler(ctx)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), `"code":"AB00"`)
}

func BenchmarkHandlers(b *testing.B) {
	s := newTestServer(b)

	b.ResetTimer()

	b.Run("EncodeHandler", func(b *testing.B) {
		values := map[string]string{"x": "863000", "y": "2341000", "level": "3"}
		b.ResetTimer()

		for i := 0; i < b.N; i++ {
			ctx := getRequestCtx("/dfci/encode", values)
			s.EncodeHandler(ctx)
		}
	})

	b.Run("DecodeHandler", func(b *testing.B) {
		values := map[string]string{"code": "KK64B0.3"}
		b.ResetTimer()

		for i := 0; i < b.N; i++ {
			ctx := getRequestCtx("/dfci/decode", values)
			s.DecodeHandler(ctx)
		}
	})

	b.Run("GridHandler-level2", func(b *testing.B) {
		b.ResetTimer()

		for i := 0; i < b.N; i++ {
			ctx := getRequestCtx("/dfci/grid?bbox=400000,2080000,420000,2100000&resolution=50", nil)
			s.GridHandler(ctx)
		}
	})
}

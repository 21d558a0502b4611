package server

import (
	"context"
	"errors"
	stdlog "log"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/fasthttp/router"
	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/royalcat/dfcigrid/dfci"
	"github.com/royalcat/dfcigrid/gridgen"
	"github.com/royalcat/dfcigrid/projection"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("github.com/royalcat/dfcigrid/server")

func Run(ctx context.Context, address string, adapter *projection.Adapter) error {
	log := slog.Default()

	s, err := newServer(adapter, log)
	if err != nil {
		return err
	}

	server := &fasthttp.Server{
		ReadTimeout: time.Second,
		Handler:     s.router().Handler,
	}

	go func() {
		log.Info("Server listening", "address", address)
		if err := server.ListenAndServe(address); err != nil {
			stdlog.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Info("Server started")

	// wait cancel
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return server.ShutdownWithContext(shutdownCtx)
}

type server struct {
	adapter *projection.Adapter
	log     *slog.Logger

	// generator keeps the level 0 cache and is not safe for concurrent use
	genMu sync.Mutex
	gen   *gridgen.Generator

	metricEncodeCallCount metric.Int64Counter
	metricDecodeCallCount metric.Int64Counter
	metricGridCallCount   metric.Int64Counter
	metricCellsGenerated  metric.Int64Counter
	metricGridDuration    metric.Float64Histogram
}

func newServer(adapter *projection.Adapter, log *slog.Logger) (*server, error) {
	gen, err := gridgen.New(adapter, gridgen.ConfigDefault(), gridgen.WithLogger(log))
	if err != nil {
		return nil, err
	}

	s := &server{
		adapter: adapter,
		log:     log.With("component", "server"),
		gen:     gen,
	}

	if s.metricEncodeCallCount, err = meter.Int64Counter("http_encode_call_total"); err != nil {
		return nil, err
	}
	if s.metricDecodeCallCount, err = meter.Int64Counter("http_decode_call_total"); err != nil {
		return nil, err
	}
	if s.metricGridCallCount, err = meter.Int64Counter("http_grid_call_total"); err != nil {
		return nil, err
	}
	if s.metricCellsGenerated, err = meter.Int64Counter("grid_cells_generated_total"); err != nil {
		return nil, err
	}
	if s.metricGridDuration, err = meter.Float64Histogram("grid_generate_duration_seconds", metric.WithUnit("s")); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *server) router() *router.Router {
	r := router.New()
	r.GET("/dfci/encode/{x}/{y}/{level}", s.EncodeHandler)
	r.GET("/dfci/decode/{code}", s.DecodeHandler)
	r.GET("/dfci/grid", s.GridHandler)
	r.Handle(http.MethodGet, "/metrics", fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler()))
	return r
}

func (s *server) EncodeHandler(ctx *fasthttp.RequestCtx) {
	s.metricEncodeCallCount.Add(ctx, 1)

	x, err := strconv.ParseFloat(userValue(ctx, "x"), 64)
	if err != nil {
		writeError(ctx, http.StatusBadRequest, "invalid x: "+err.Error())
		return
	}
	y, err := strconv.ParseFloat(userValue(ctx, "y"), 64)
	if err != nil {
		writeError(ctx, http.StatusBadRequest, "invalid y: "+err.Error())
		return
	}
	level, err := strconv.Atoi(userValue(ctx, "level"))
	if err != nil {
		writeError(ctx, http.StatusBadRequest, "invalid level: "+err.Error())
		return
	}

	p, err := s.adapter.Transform(orb.Point{x, y}, crsArg(ctx), projection.NativeCRS)
	if err != nil {
		s.writeErr(ctx, err)
		return
	}

	code, err := dfci.Encode(p, dfci.Level(level))
	if err != nil {
		s.writeErr(ctx, err)
		return
	}

	writeJSON(ctx, encodeResponse{
		Code:       code,
		Level:      dfci.Level(level),
		ValidPoint: dfci.IsValidPoint(p),
	})
}

func (s *server) DecodeHandler(ctx *fasthttp.RequestCtx) {
	s.metricDecodeCallCount.Add(ctx, 1)

	code, err := dfci.Parse(userValue(ctx, "code"))
	if err != nil {
		s.writeErr(ctx, err)
		return
	}
	center, err := dfci.Decode(code)
	if err != nil {
		s.writeErr(ctx, err)
		return
	}
	bound, err := dfci.CellBound(code)
	if err != nil {
		s.writeErr(ctx, err)
		return
	}

	crs := crsArg(ctx)
	center, err = s.adapter.Transform(center, projection.NativeCRS, crs)
	if err != nil {
		s.writeErr(ctx, err)
		return
	}
	bound, err = s.adapter.TransformExtent(bound, projection.NativeCRS, crs)
	if err != nil {
		s.writeErr(ctx, err)
		return
	}

	writeJSON(ctx, decodeResponse{
		Code:   code,
		Level:  code.Level(),
		Center: center,
		Bound:  bound,
	})
}

func (s *server) GridHandler(ctx *fasthttp.RequestCtx) {
	s.metricGridCallCount.Add(ctx, 1)

	args := ctx.QueryArgs()
	extent, err := gridgen.ParseBound(string(args.Peek("bbox")))
	if err != nil {
		writeError(ctx, http.StatusBadRequest, err.Error())
		return
	}
	resolution, err := strconv.ParseFloat(string(args.Peek("resolution")), 64)
	if err != nil {
		writeError(ctx, http.StatusBadRequest, "invalid resolution: "+err.Error())
		return
	}
	crs := crsArg(ctx)
	if !s.adapter.Registered(crs) {
		writeError(ctx, http.StatusUnprocessableEntity, "unknown crs: "+crs)
		return
	}

	start := time.Now()
	s.genMu.Lock()
	cells, err := s.gen.Generate(extent, resolution, crs)
	s.genMu.Unlock()
	if err != nil {
		s.writeErr(ctx, err)
		return
	}
	s.metricGridDuration.Record(ctx, time.Since(start).Seconds())
	s.metricCellsGenerated.Add(ctx, int64(len(cells)))

	data, err := gridgen.FeatureCollection(cells).MarshalJSON()
	if err != nil {
		s.writeErr(ctx, err)
		return
	}

	ctx.Response.SetStatusCode(http.StatusOK)
	ctx.Response.Header.SetContentType("application/geo+json")
	ctx.Response.SetBody(data)
}

// writeErr maps domain errors to a status code.
func (s *server) writeErr(ctx *fasthttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, dfci.ErrMalformedCode),
		errors.Is(err, dfci.ErrInvalidLevel),
		errors.Is(err, gridgen.ErrInvalidResolution):
		writeError(ctx, http.StatusBadRequest, err.Error())
	case errors.Is(err, projection.ErrUnknownCRS):
		writeError(ctx, http.StatusUnprocessableEntity, err.Error())
	default:
		s.log.Error("request failed", "uri", string(ctx.RequestURI()), "error", err)
		writeError(ctx, http.StatusInternalServerError, err.Error())
	}
}

func userValue(ctx *fasthttp.RequestCtx, key string) string {
	v, _ := ctx.UserValue(key).(string)
	return v
}

func crsArg(ctx *fasthttp.RequestCtx) string {
	if crs := ctx.QueryArgs().Peek("crs"); len(crs) > 0 {
		return string(crs)
	}
	return projection.NativeCRS
}

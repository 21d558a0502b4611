// Package projection reprojects points and geometries between named
// coordinate reference systems described by proj4 definition strings.
package projection

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/ctessum/geom/proj"
	"github.com/paulmach/orb"
	"github.com/puzpuzpuz/xsync/v3"
)

const (
	// NativeCRS is the Lambert II étendu projection the DFCI grid is defined in.
	NativeCRS   = "EPSG:27572"
	WGS84       = "EPSG:4326"
	WebMercator = "EPSG:3857"
)

var builtinDefs = []struct{ name, def string }{
	// the Paris meridian is given as lon_0, geom/proj does not convert +pm from degrees
	{NativeCRS, "+proj=lcc +lat_1=46.8 +lat_0=46.8 +lon_0=2.33722917 +k_0=0.99987742 +x_0=600000 +y_0=2200000 " +
		"+a=6378249.2 +b=6356515 +towgs84=-168,-60,320,0,0,0,0 +units=m +no_defs"},
	{WGS84, "+proj=longlat +datum=WGS84 +no_defs"},
	{WebMercator, "+proj=merc +a=6378137 +b=6378137 +lat_ts=0.0 +lon_0=0.0 +x_0=0.0 +y_0=0 +k=1.0 +units=m +nadgrids=@null +no_defs"},
}

var (
	ErrUnknownCRS = errors.New("unknown coordinate reference system")
	ErrProjection = errors.New("projection failure")
)

// extentStops is the number of points sampled along each edge of an extent.
const extentStops = 8

// Adapter holds registered CRS definitions. It is safe for concurrent use.
type Adapter struct {
	initOnce sync.Once
	initErr  error

	defs         *xsync.MapOf[string, *proj.SR]
	transformers *xsync.MapOf[[2]string, proj.Transformer]

	log *slog.Logger
}

// New creates an adapter with the native grid projection, WGS84 and web
// mercator registered.
func New(opts ...Option) (*Adapter, error) {
	options := loadOptions(opts...)

	a := &Adapter{
		defs:         xsync.NewMapOf[string, *proj.SR](),
		transformers: xsync.NewMapOf[[2]string, proj.Transformer](),
		log:          options.logger.With("component", "projection"),
	}
	if err := a.init(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Adapter) init() error {
	a.initOnce.Do(func() {
		for _, d := range builtinDefs {
			if err := a.RegisterCRS(d.name, d.def); err != nil {
				a.initErr = err
				return
			}
		}
	})
	return a.initErr
}

// RegisterCRS parses def and registers it under name. Registering a name
// that is already known is a no-op.
func (a *Adapter) RegisterCRS(name, def string) error {
	if _, ok := a.defs.Load(name); ok {
		return nil
	}

	sr, err := proj.Parse(def)
	if err != nil {
		return fmt.Errorf("failed to parse definition of %s: %w", name, err)
	}

	if _, loaded := a.defs.LoadOrStore(name, sr); !loaded {
		a.log.Debug("registered crs", "name", name)
	}
	return nil
}

// Registered reports whether name is a known CRS.
func (a *Adapter) Registered(name string) bool {
	_, ok := a.defs.Load(name)
	return ok
}

func (a *Adapter) transformer(from, to string) (proj.Transformer, error) {
	key := [2]string{from, to}
	if t, ok := a.transformers.Load(key); ok {
		return t, nil
	}

	src, ok := a.defs.Load(from)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCRS, from)
	}
	dst, ok := a.defs.Load(to)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCRS, to)
	}

	t, err := src.NewTransform(dst)
	if err != nil {
		return nil, fmt.Errorf("%w: %s to %s: %w", ErrProjection, from, to, err)
	}
	t, _ = a.transformers.LoadOrStore(key, t)
	return t, nil
}

// Transform reprojects p from one CRS to another.
func (a *Adapter) Transform(p orb.Point, from, to string) (orb.Point, error) {
	if from == to {
		if !a.Registered(from) {
			return orb.Point{}, fmt.Errorf("%w: %s", ErrUnknownCRS, from)
		}
		return p, nil
	}

	t, err := a.transformer(from, to)
	if err != nil {
		return orb.Point{}, err
	}
	return apply(t, p)
}

func apply(t proj.Transformer, p orb.Point) (orb.Point, error) {
	x, y, err := t(p[0], p[1])
	if err != nil {
		return orb.Point{}, fmt.Errorf("%w: [%v, %v]: %w", ErrProjection, p[0], p[1], err)
	}
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return orb.Point{}, fmt.Errorf("%w: [%v, %v] has no image", ErrProjection, p[0], p[1])
	}
	return orb.Point{x, y}, nil
}

// TransformRing reprojects every point of r into a new ring.
func (a *Adapter) TransformRing(r orb.Ring, from, to string) (orb.Ring, error) {
	if from == to {
		if !a.Registered(from) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCRS, from)
		}
		return r.Clone(), nil
	}

	t, err := a.transformer(from, to)
	if err != nil {
		return nil, err
	}

	out := make(orb.Ring, len(r))
	for i, p := range r {
		out[i], err = apply(t, p)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// TransformExtent returns the bounding box of b reprojected. Edges are
// sampled so curved images of straight edges stay covered.
func (a *Adapter) TransformExtent(b orb.Bound, from, to string) (orb.Bound, error) {
	if from == to {
		if !a.Registered(from) {
			return orb.Bound{}, fmt.Errorf("%w: %s", ErrUnknownCRS, from)
		}
		return b, nil
	}

	t, err := a.transformer(from, to)
	if err != nil {
		return orb.Bound{}, err
	}

	dx := (b.Max[0] - b.Min[0]) / extentStops
	dy := (b.Max[1] - b.Min[1]) / extentStops

	var out orb.Bound
	first := true
	add := func(p orb.Point) error {
		q, err := apply(t, p)
		if err != nil {
			return err
		}
		if first {
			out = q.Bound()
			first = false
		} else {
			out = out.Extend(q)
		}
		return nil
	}

	for i := 0; i <= extentStops; i++ {
		x := b.Min[0] + float64(i)*dx
		y := b.Min[1] + float64(i)*dy
		for _, p := range []orb.Point{
			{x, b.Min[1]},
			{x, b.Max[1]},
			{b.Min[0], y},
			{b.Max[0], y},
		} {
			if err := add(p); err != nil {
				return orb.Bound{}, err
			}
		}
	}

	return out, nil
}

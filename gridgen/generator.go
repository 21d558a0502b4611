// Package gridgen produces the DFCI grid cells to display for a map view,
// picking the grid level from the view resolution.
package gridgen

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/paulmach/orb"
	"github.com/royalcat/dfcigrid/celltree"
	"github.com/royalcat/dfcigrid/dfci"
)

var ErrInvalidResolution = errors.New("resolution must be positive")

// Projector is the reprojection capability the generator needs.
type Projector interface {
	TransformExtent(b orb.Bound, from, to string) (orb.Bound, error)
	TransformRing(r orb.Ring, from, to string) (orb.Ring, error)
}

// GridCell is a grid cell, or a level 3 wedge, with its polygon in the
// requested CRS.
type GridCell struct {
	ID      dfci.Code
	Level   dfci.Level
	Polygon orb.Polygon
}

// Generator is not safe for concurrent use.
type Generator struct {
	cfg  Config
	proj Projector
	log  *slog.Logger

	// level 0 cells in native units, built once
	level0 []GridCell
	// level0 reprojected per target crs
	level0Projected map[string][]GridCell

	cells     []GridCell
	cellsCRS  string
	index     *celltree.Tree[GridCell]
	lastLevel dfci.Level

	lastResolution float64
	generated      bool
}

func New(proj Projector, cfg Config, opts ...Option) (*Generator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	options := loadOptions(opts...)

	return &Generator{
		cfg:             cfg,
		proj:            proj,
		log:             options.logger.With("component", "gridgen"),
		level0Projected: map[string][]GridCell{},
	}, nil
}

// SelectLevel maps a view resolution to a grid level. A resolution equal to
// a threshold selects the finer level.
func (g *Generator) SelectLevel(resolution float64) (dfci.Level, error) {
	if !(resolution > 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidResolution, resolution)
	}

	t := g.cfg.ResolutionThresholds
	switch {
	case resolution > t[0]:
		return dfci.Level0, nil
	case resolution > t[1]:
		return dfci.Level1, nil
	case resolution > t[2]:
		return dfci.Level2, nil
	default:
		return dfci.Level3, nil
	}
}

// Generate returns the cells to display for extent, given in targetCRS, at
// the given resolution. The result replaces the previous one as a whole and
// must not be modified; level 0 results are shared between calls.
func (g *Generator) Generate(extent orb.Bound, resolution float64, targetCRS string) ([]GridCell, error) {
	level, err := g.SelectLevel(resolution)
	if err != nil {
		return nil, err
	}

	if g.generated && level != g.lastLevel {
		g.log.Debug("grid level changed", "from", g.lastLevel, "to", level, "resolution", resolution)
	}
	g.replace(nil, "", level)
	g.lastResolution = resolution
	g.generated = true

	var cells []GridCell
	if level == dfci.Level0 {
		cells, err = g.level0Cells(targetCRS)
	} else {
		cells, err = g.viewCells(extent, level, targetCRS)
	}
	if err != nil {
		return nil, err
	}

	g.replace(cells, targetCRS, level)
	return cells, nil
}

func (g *Generator) replace(cells []GridCell, crs string, level dfci.Level) {
	g.cells = cells
	g.cellsCRS = crs
	g.index = nil
	g.lastLevel = level
}

func (g *Generator) level0Cells(targetCRS string) ([]GridCell, error) {
	if g.level0 == nil {
		cells, err := g.enumerate(g.cfg.NativeBound, dfci.Level0)
		if err != nil {
			return nil, err
		}
		g.level0 = cells
		g.log.Info("level 0 cache built", "cells", len(cells))
	}

	if cells, ok := g.level0Projected[targetCRS]; ok {
		return cells, nil
	}

	cells, err := g.reproject(g.level0, targetCRS)
	if err != nil {
		return nil, err
	}
	g.level0Projected[targetCRS] = cells
	g.log.Debug("level 0 cache projected", "crs", targetCRS)
	return cells, nil
}

func (g *Generator) viewCells(extent orb.Bound, level dfci.Level, targetCRS string) ([]GridCell, error) {
	native, err := g.proj.TransformExtent(extent, targetCRS, g.cfg.NativeCRS)
	if err != nil {
		return nil, fmt.Errorf("failed to reproject extent: %w", err)
	}

	cells, err := g.enumerate(native, level)
	if err != nil {
		return nil, err
	}
	return g.reproject(cells, targetCRS)
}

func (g *Generator) reproject(cells []GridCell, targetCRS string) ([]GridCell, error) {
	out := make([]GridCell, 0, len(cells))
	for _, c := range cells {
		ring, err := g.proj.TransformRing(c.Polygon[0], g.cfg.NativeCRS, targetCRS)
		if err != nil {
			return nil, fmt.Errorf("failed to reproject cell %s: %w", c.ID, err)
		}
		out = append(out, GridCell{ID: c.ID, Level: c.Level, Polygon: orb.Polygon{ring}})
	}
	return out, nil
}

// Level returns the level of the last generated set.
func (g *Generator) Level() (dfci.Level, bool) {
	return g.lastLevel, g.generated
}

// Resolution returns the resolution of the last Generate call.
func (g *Generator) Resolution() (float64, bool) {
	return g.lastResolution, g.generated
}

// Cells returns the last generated set and the CRS of its polygons.
func (g *Generator) Cells() ([]GridCell, string) {
	return g.cells, g.cellsCRS
}

func (g *Generator) cellIndex() *celltree.Tree[GridCell] {
	if g.index == nil {
		g.index = celltree.New[GridCell]()
		for _, c := range g.cells {
			g.index.Insert(string(c.ID), c, c.Polygon)
		}
	}
	return g.index
}

// CellAt returns the cell of the last generated set containing p, given in
// the CRS of that set.
func (g *Generator) CellAt(p orb.Point) (GridCell, bool) {
	return g.cellIndex().QueryPoint(p)
}

// Cell returns the cell of the last generated set with the given code.
func (g *Generator) Cell(code dfci.Code) (GridCell, bool) {
	return g.cellIndex().Get(string(code))
}

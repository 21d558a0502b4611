// Package dfci implements the DFCI grid reference codec: conversion between a
// point in the Lambert II étendu projection and a hierarchical grid code such
// as "AB24C7.3".
package dfci

import (
	"errors"

	"github.com/paulmach/orb"
)

// Level is the depth of a grid code, 0 being the coarsest 100 km cell.
type Level int

const (
	Level0 Level = iota
	Level1
	Level2
	Level3
)

// MaxLevel is the finest level.
const MaxLevel = Level3

func (l Level) Valid() bool {
	return l >= Level0 && l <= MaxLevel
}

// CellSize returns the edge length of a cell at level l in native units.
// Level 3 reports the bounding size of a wedge.
func (l Level) CellSize() float64 {
	switch l {
	case Level0:
		return size0
	case Level1:
		return size1
	case Level2:
		return size2
	case Level3:
		return size2 / 2
	}
	return 0
}

// codeLength is the length of a code at each level.
var codeLength = [...]int{2, 4, 6, 8}

const (
	size0 = 100_000.0
	size1 = 20_000.0
	size2 = 2_000.0
	// level 3 regions are classified on a 4x4 raster of the level-2 cell
	quarter = size2 / 4

	// column letters past H are shifted by two cells so I and J are never produced
	skipX = 800_000.0
	skipY = 2_300_000.0
	skip  = 200_000.0

	// row letters start 15 cells above the projection origin
	rowOffset = 15
)

// Domain is the area covered by the grid in native units.
var Domain = orb.Bound{
	Min: orb.Point{0, 1_600_000},
	Max: orb.Point{1_200_000, 2_700_000},
}

var (
	ErrMalformedCode    = errors.New("malformed grid code")
	ErrPointOutOfDomain = errors.New("point is outside of the grid domain")
	ErrInvalidLevel     = errors.New("invalid grid level")
)

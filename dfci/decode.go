package dfci

import (
	"fmt"

	"github.com/paulmach/orb"
)

// level 3 representative points, as fractions of the level-2 cell measured
// from its lower-left corner; index is the region digit
var regionOffsets = [...][2]float64{
	RegionNW:     {0.25, 0.75},
	RegionNE:     {0.75, 0.75},
	RegionSE:     {0.75, 0.25},
	RegionSW:     {0.25, 0.25},
	RegionCenter: {0.5, 0.5},
}

// Decode returns the center of the cell addressed by code. For level 3 codes
// the point is the fixed representative point of the region inside its
// level-2 cell.
func Decode(code Code) (orb.Point, error) {
	origin, level, err := cellOrigin(code)
	if err != nil {
		return orb.Point{}, err
	}

	if level < Level3 {
		half := level.CellSize() / 2
		return orb.Point{origin[0] + half, origin[1] + half}, nil
	}

	off := regionOffsets[RegionCenter]
	if r := int(code[7] - '0'); r >= RegionNW && r <= RegionSW {
		off = regionOffsets[r]
	}
	return orb.Point{origin[0] + off[0]*size2, origin[1] + off[1]*size2}, nil
}

// cellOrigin returns the lower-left corner of the square cell addressed by
// code. For level 3 codes this is the corner of the enclosing level-2 cell.
func cellOrigin(code Code) (orb.Point, Level, error) {
	if !IsValidCode(string(code)) {
		return orb.Point{}, 0, fmt.Errorf("%w: %q", ErrMalformedCode, string(code))
	}
	level := code.Level()

	col := int(code[0] - 'A')
	x := float64(col) * size0
	if col >= 10 {
		x -= skip
	}
	y := float64(int(code[1]-'A')+rowOffset) * size0
	if code[1] >= 'K' {
		y -= skip
	}

	if level >= Level1 {
		x += float64(int(code[2]-'0')/2) * size1
		y += float64(int(code[3]-'0')/2) * size1
	}

	if level >= Level2 {
		c := int(code[4] - 'A')
		if c >= 10 {
			c -= 2
		}
		x += float64(c) * size2
		y += float64(int(code[5]-'0')) * size2
	}

	return orb.Point{x, y}, level, nil
}

package dfci

import (
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"
)

// Encode returns the code of the cell containing p at the given level.
//
// The upper edges of Domain belong to the last row and column of cells.
// Points outside of Domain are encoded as well, producing codes for cells
// that do not exist on the grid. Use EncodeStrict or IsValidPoint when that
// matters.
func Encode(p orb.Point, level Level) (Code, error) {
	if !level.Valid() {
		return "", fmt.Errorf("%w: %d", ErrInvalidLevel, level)
	}

	x, y := onUpperEdge(p[0], Domain.Max[0]), onUpperEdge(p[1], Domain.Max[1])

	var sb strings.Builder
	sb.Grow(codeLength[level])

	// level 0
	sx := x
	if x >= skipX {
		sx += skip
	}
	sy := y
	if y >= skipY {
		sy += skip
	}
	sb.WriteByte(byte('A' + int(math.Floor(sx/size0))))
	sb.WriteByte(byte('A' + int(math.Floor(sy/size0)) - rowOffset))
	if level == Level0 {
		return Code(sb.String()), nil
	}

	// level 1
	sb.WriteByte(byte('0' + int(math.Floor(math.Mod(x, size0)/size1))*2))
	sb.WriteByte(byte('0' + int(math.Floor(math.Mod(y, size0)/size1))*2))
	if level == Level1 {
		return Code(sb.String()), nil
	}

	// level 2
	c0 := int(math.Floor(math.Mod(x, size1) / size2))
	if c0 >= 8 {
		c0 += 2
	}
	sb.WriteByte(byte('A' + c0))
	sb.WriteByte(byte('0' + int(math.Floor(math.Mod(y, size1)/size2))))
	if level == Level2 {
		return Code(sb.String()), nil
	}

	// level 3
	x3 := int(math.Floor(math.Mod(x, size2) / quarter))
	y3 := int(math.Floor(math.Mod(y, size2) / quarter))
	sb.WriteByte('.')
	sb.WriteByte(byte('0' + region(x3, y3)))

	return Code(sb.String()), nil
}

// EncodeStrict is Encode restricted to points inside Domain.
func EncodeStrict(p orb.Point, level Level) (Code, error) {
	if err := ValidatePoint(p); err != nil {
		return "", err
	}
	return Encode(p, level)
}

// onUpperEdge moves v just inside the domain when it sits exactly on edge.
func onUpperEdge(v, edge float64) float64 {
	if v == edge {
		return math.Nextafter(edge, math.Inf(-1))
	}
	return v
}

// region classifies a position on the 4x4 raster of a level-2 cell.
// The order of the checks is significant.
func region(x3, y3 int) int {
	switch {
	case x3 < 1 && y3 > 1:
		return RegionNW
	case x3 < 1:
		return RegionSW
	case x3 > 2 && y3 > 1:
		return RegionNE
	case x3 > 2:
		return RegionSE
	case y3 > 2 && x3 < 2:
		return RegionNW
	case y3 > 2:
		return RegionNE
	case y3 < 1 && x3 < 2:
		return RegionSW
	case y3 < 1:
		return RegionSE
	default:
		return RegionCenter
	}
}

// Level 3 region digits.
const (
	RegionNW     = 1
	RegionNE     = 2
	RegionSE     = 3
	RegionSW     = 4
	RegionCenter = 5
)

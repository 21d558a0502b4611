package dfci

import (
	"fmt"

	"github.com/paulmach/orb"
)

// SquareRing returns the closed counter-clockwise ring of the square with the
// given lower-left corner and edge size.
func SquareRing(origin orb.Point, size float64) orb.Ring {
	x, y := origin[0], origin[1]
	return orb.Ring{
		{x, y},
		{x + size, y},
		{x + size, y + size},
		{x, y + size},
		{x, y},
	}
}

// Wedge is one of the five level 3 sub-polygons of a level-2 cell.
type Wedge struct {
	Region int
	Ring   orb.Ring
}

// WedgeRings splits the square at origin into the central quad and the four
// corner kites. The central quad comes first, then the kites from the
// south-west corner counter-clockwise (regions 4, 3, 2, 1).
func WedgeRings(origin orb.Point, size float64) []Wedge {
	sq := SquareRing(origin, size)
	corners := sq[:4]
	m := midpoint(corners[0], corners[2])

	// edgeMid[i] is the middle of the edge from corner i to corner i+1
	var edgeMid [4]orb.Point
	for i := range corners {
		edgeMid[i] = midpoint(corners[i], corners[(i+1)%4])
	}

	wedges := make([]Wedge, 0, 5)

	center := make(orb.Ring, 0, 5)
	for i := range edgeMid {
		center = append(center, midpoint(m, edgeMid[i]))
	}
	center = append(center, center[0])
	wedges = append(wedges, Wedge{Region: RegionCenter, Ring: center})

	for i, c := range corners {
		next := edgeMid[i]
		prev := edgeMid[(i+3)%4]
		wedges = append(wedges, Wedge{
			Region: 4 - i,
			Ring: orb.Ring{
				c,
				next,
				midpoint(m, next),
				m,
				midpoint(m, prev),
				prev,
				c,
			},
		})
	}

	return wedges
}

func midpoint(a, b orb.Point) orb.Point {
	return orb.Point{(a[0] + b[0]) / 2, (a[1] + b[1]) / 2}
}

// CellBound returns the bounding box of the cell addressed by code.
func CellBound(code Code) (orb.Bound, error) {
	poly, err := CellPolygon(code)
	if err != nil {
		return orb.Bound{}, err
	}
	return poly.Bound(), nil
}

// CellPolygon returns the polygon of the cell addressed by code, in native
// units: a square for levels 0 to 2, a wedge of the level-2 cell for level 3.
func CellPolygon(code Code) (orb.Polygon, error) {
	origin, level, err := cellOrigin(code)
	if err != nil {
		return nil, err
	}
	if level < Level3 {
		return orb.Polygon{SquareRing(origin, level.CellSize())}, nil
	}

	region := int(code[7] - '0')
	for _, w := range WedgeRings(origin, size2) {
		if w.Region == region {
			return orb.Polygon{w.Ring}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrMalformedCode, string(code))
}

package gridgen

import (
	"math"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/royalcat/dfcigrid/dfci"
)

// enumerate builds the cells of level intersecting extent, in native units.
// Level 3 walks the level-2 cells and emits their five wedges.
func (g *Generator) enumerate(extent orb.Bound, level dfci.Level) ([]GridCell, error) {
	bbox := g.cfg.NativeBound
	if !bbox.Intersects(extent) {
		return nil, nil
	}

	labelLevel := level
	if level == dfci.Level3 {
		labelLevel = dfci.Level2
	}
	step := labelLevel.CellSize()

	// cells are aligned on the projection origin, as the codec numbers them
	startX := math.Max(bbox.Min[0], math.Floor(extent.Min[0]/step)*step)
	startY := math.Max(bbox.Min[1], math.Floor(extent.Min[1]/step)*step)
	endX := math.Min(bbox.Max[0], extent.Max[0])
	endY := math.Min(bbox.Max[1], extent.Max[1])

	nx := int(math.Ceil((endX - startX) / step))
	ny := int(math.Ceil((endY - startY) / step))
	if nx <= 0 || ny <= 0 {
		return nil, nil
	}

	perCell := 1
	if level == dfci.Level3 {
		perCell = 5
	}
	cells := make([]GridCell, 0, nx*ny*perCell)

	for i := range nx {
		for j := range ny {
			origin := orb.Point{startX + float64(i)*step, startY + float64(j)*step}
			code, err := dfci.Encode(origin, labelLevel)
			if err != nil {
				return nil, err
			}

			if level != dfci.Level3 {
				cells = append(cells, GridCell{
					ID:      code,
					Level:   level,
					Polygon: orb.Polygon{dfci.SquareRing(origin, step)},
				})
				continue
			}

			for _, w := range dfci.WedgeRings(origin, step) {
				cells = append(cells, GridCell{
					ID:      dfci.Code(string(code) + "." + strconv.Itoa(w.Region)),
					Level:   level,
					Polygon: orb.Polygon{w.Ring},
				})
			}
		}
	}

	return cells, nil
}

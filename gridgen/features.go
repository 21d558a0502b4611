package gridgen

import (
	"github.com/paulmach/orb/geojson"
)

func (c GridCell) Feature() *geojson.Feature {
	f := geojson.NewFeature(c.Polygon)
	f.ID = string(c.ID)
	f.Properties["id"] = string(c.ID)
	f.Properties["level"] = int(c.Level)
	return f
}

// FeatureCollection converts cells to GeoJSON features, preserving order.
func FeatureCollection(cells []GridCell) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Features = make([]*geojson.Feature, 0, len(cells))
	for _, c := range cells {
		fc.Append(c.Feature())
	}
	return fc
}

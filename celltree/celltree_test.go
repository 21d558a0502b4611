package celltree_test

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/royalcat/dfcigrid/celltree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func polygonFromBounds(minX, minY, maxX, maxY float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		orb.Point{minX, minY},
		orb.Point{maxX, minY},
		orb.Point{maxX, maxY},
		orb.Point{minX, maxY},
		orb.Point{minX, minY},
	}}
}

func TestSimpleBounds(t *testing.T) {
	ct := celltree.New[string]()

	ct.Insert("AB", "1", polygonFromBounds(0, 0, 1, 1))
	ct.Insert("AC", "2", polygonFromBounds(-1, -1, 0, 0))

	r, ok := ct.QueryPoint(orb.Point{0.5, 0.5})
	require.True(t, ok)
	assert.Equal(t, "1", r)

	r, ok = ct.QueryPoint(orb.Point{-0.5, -0.5})
	require.True(t, ok)
	assert.Equal(t, "2", r)

	_, ok = ct.QueryPoint(orb.Point{5, 5})
	assert.False(t, ok)
}

func TestTriangle(t *testing.T) {
	ct := celltree.New[int]()
	ct.Insert("t", 1, orb.Polygon{orb.Ring{{0, 0}, {2, 0}, {0, 2}, {0, 0}}})

	_, ok := ct.QueryPoint(orb.Point{0.5, 0.5})
	assert.True(t, ok)

	// inside the bound, outside the triangle
	_, ok = ct.QueryPoint(orb.Point{1.8, 1.8})
	assert.False(t, ok)
}

func TestKeyOrder(t *testing.T) {
	ct := celltree.New[int]()
	ct.Insert("KK", 3, polygonFromBounds(2, 2, 3, 3))
	ct.Insert("AB", 1, polygonFromBounds(0, 0, 1, 1))
	ct.Insert("AC", 2, polygonFromBounds(1, 1, 2, 2))

	assert.Equal(t, 3, ct.Len())

	v, ok := ct.Get("AC")
	require.True(t, ok)
	assert.Equal(t, 2, v)

	_, ok = ct.Get("ZZ")
	assert.False(t, ok)

	var keys []string
	ct.Ascend(func(key string, _ int) bool {
		keys = append(keys, key)
		return true
	})
	assert.Equal(t, []string{"AB", "AC", "KK"}, keys)

	keys = keys[:0]
	ct.Ascend(func(key string, _ int) bool {
		keys = append(keys, key)
		return len(keys) < 2
	})
	assert.Equal(t, []string{"AB", "AC"}, keys)
}

func FuzzSimpleBoundCheck(f *testing.F) {
	const testData = "1"

	f.Add(0.0, 0.0, 1.0, 1.0, 0.5, 0.5)
	f.Add(0.0, 0.0, 1.0, 1.0, 1.5, 1.5)

	f.Fuzz(func(t *testing.T, minX, minY, maxX, maxY, pointX, pointY float64) {
		polygon := polygonFromBounds(minX, minY, maxX, maxY)
		point := orb.Point{pointX, pointY}
		expectOk := planar.PolygonContains(polygon, point)

		ct := celltree.New[string]()
		ct.Insert("cell", testData, polygon)

		r, ok := ct.QueryPoint(point)
		if expectOk != ok {
			t.Fatalf("expected %v, got %v", expectOk, ok)
		}

		if expectOk && r != testData {
			t.Fatalf("expected %s, got %s", testData, r)
		}
	})
}

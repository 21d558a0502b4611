package celltree

import (
	"sync"

	"github.com/google/btree"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/tidwall/qtree"
)

// Tree indexes keyed polygons for point and key lookups.
type Tree[Data any] struct {
	mu    sync.RWMutex
	cells []cell[Data]
	qt    qtree.QTree
	keys  *btree.BTreeG[keyItem]
}

type cell[D any] struct {
	Key     string
	Data    D
	Polygon orb.Polygon
}

type keyItem struct {
	key string
	id  int
}

func keyLess(a, b keyItem) bool {
	return a.key < b.key
}

func New[Data any]() *Tree[Data] {
	return &Tree[Data]{
		keys: btree.NewG[keyItem](16, keyLess),
	}
}

// Insert adds a polygon under key. Inserting a key twice replaces the data
// returned by Get but both polygons stay searchable.
func (t *Tree[Data]) Insert(key string, data Data, polygon orb.Polygon) {
	bound := polygon.Bound()

	t.mu.Lock()
	defer t.mu.Unlock()

	id := len(t.cells)
	t.cells = append(t.cells, cell[Data]{Key: key, Data: data, Polygon: polygon})
	t.qt.Insert(bound.Min, bound.Max, id)
	t.keys.ReplaceOrInsert(keyItem{key: key, id: id})
}

// QueryPoint returns the data of the first polygon containing point.
func (t *Tree[Data]) QueryPoint(point orb.Point) (Data, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out Data
	found := false

	t.qt.Search(point, point, func(_, _ [2]float64, data interface{}) bool {
		id := data.(int)

		if planar.PolygonContains(t.cells[id].Polygon, point) {
			out = t.cells[id].Data
			found = true
			return false
		}

		return true
	})

	return out, found
}

// Get returns the data stored under key.
func (t *Tree[Data]) Get(key string) (Data, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	item, ok := t.keys.Get(keyItem{key: key})
	if !ok {
		var zero Data
		return zero, false
	}
	return t.cells[item.id].Data, true
}

// Ascend calls fn for every key in ascending order until fn returns false.
func (t *Tree[Data]) Ascend(fn func(key string, data Data) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	t.keys.Ascend(func(item keyItem) bool {
		return fn(item.key, t.cells[item.id].Data)
	})
}

// Len returns the number of distinct keys.
func (t *Tree[Data]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.keys.Len()
}

package pdf

import "github.com/wudi/redactkit/geo"

// quadTree is a spatial index over operation bounding boxes. It keeps region
// queries cheap on pages with many drawing operations.
type quadTree struct {
	bounds   geo.Rect
	capacity int
	items    []quadItem
	nodes    []*quadTree
}

type quadItem struct {
	rect  geo.Rect
	index int
}

func newQuadTree(bounds geo.Rect, capacity int) *quadTree {
	return &quadTree{
		bounds:   bounds,
		capacity: capacity,
		items:    make([]quadItem, 0, capacity),
	}
}

func (qt *quadTree) insert(r geo.Rect, index int) bool {
	if !qt.bounds.Intersects(r) {
		return false
	}
	if qt.nodes != nil {
		for _, node := range qt.nodes {
			if node.bounds.ContainsRect(r) {
				if node.insert(r, index) {
					return true
				}
			}
		}
		// Straddles child boundaries, keep it at this level.
		qt.items = append(qt.items, quadItem{rect: r, index: index})
		return true
	}
	if len(qt.items) < qt.capacity {
		qt.items = append(qt.items, quadItem{rect: r, index: index})
		return true
	}
	qt.subdivide()
	old := qt.items
	qt.items = make([]quadItem, 0, qt.capacity)
	for _, it := range old {
		qt.insert(it.rect, it.index)
	}
	return qt.insert(r, index)
}

func (qt *quadTree) subdivide() {
	xMid := (qt.bounds.X0 + qt.bounds.X1) / 2
	yMid := (qt.bounds.Y0 + qt.bounds.Y1) / 2
	qt.nodes = []*quadTree{
		newQuadTree(geo.Rect{X0: qt.bounds.X0, Y0: qt.bounds.Y0, X1: xMid, Y1: yMid}, qt.capacity),
		newQuadTree(geo.Rect{X0: xMid, Y0: qt.bounds.Y0, X1: qt.bounds.X1, Y1: yMid}, qt.capacity),
		newQuadTree(geo.Rect{X0: qt.bounds.X0, Y0: yMid, X1: xMid, Y1: qt.bounds.Y1}, qt.capacity),
		newQuadTree(geo.Rect{X0: xMid, Y0: yMid, X1: qt.bounds.X1, Y1: qt.bounds.Y1}, qt.capacity),
	}
}

// query returns the indexes of all items intersecting r.
func (qt *quadTree) query(r geo.Rect) []int {
	var found []int
	if !qt.bounds.Intersects(r) {
		return found
	}
	for _, it := range qt.items {
		if it.rect.Intersects(r) {
			found = append(found, it.index)
		}
	}
	for _, node := range qt.nodes {
		found = append(found, node.query(r)...)
	}
	return found
}

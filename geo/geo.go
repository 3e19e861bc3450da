package geo

// Point is a location in either render space or document space. The two
// spaces share orientation (origin top-left, y growing downward); only the
// unit differs.
type Point struct {
	X, Y float64
}

// Rect is an axis-aligned rectangle given by two opposite corners.
// All operations except Normalized assume X0 <= X1 and Y0 <= Y1.
type Rect struct {
	X0, Y0, X1, Y1 float64
}

// FromCorners builds a normalized rectangle spanning two arbitrary corners.
func FromCorners(a, b Point) Rect {
	return Rect{X0: a.X, Y0: a.Y, X1: b.X, Y1: b.Y}.Normalized()
}

// Normalized returns the rectangle with corners reordered so that
// (X0, Y0) is top-left and (X1, Y1) is bottom-right.
func (r Rect) Normalized() Rect {
	if r.X0 > r.X1 {
		r.X0, r.X1 = r.X1, r.X0
	}
	if r.Y0 > r.Y1 {
		r.Y0, r.Y1 = r.Y1, r.Y0
	}
	return r
}

func (r Rect) Width() float64  { return r.X1 - r.X0 }
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

// IsEmpty reports whether the rectangle has non-positive extent.
func (r Rect) IsEmpty() bool { return r.Width() <= 0 || r.Height() <= 0 }

// Contains reports whether p lies inside the rectangle, edges included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X0 && p.X <= r.X1 && p.Y >= r.Y0 && p.Y <= r.Y1
}

// Intersects reports whether the two rectangles share any area or edge.
func (r Rect) Intersects(o Rect) bool {
	return !(o.X0 > r.X1 || o.X1 < r.X0 || o.Y0 > r.Y1 || o.Y1 < r.Y0)
}

// ContainsRect reports whether o lies entirely within r.
func (r Rect) ContainsRect(o Rect) bool {
	return o.X0 >= r.X0 && o.X1 <= r.X1 && o.Y0 >= r.Y0 && o.Y1 <= r.Y1
}

// Translate returns the rectangle shifted by (dx, dy).
func (r Rect) Translate(dx, dy float64) Rect {
	return Rect{X0: r.X0 + dx, Y0: r.Y0 + dy, X1: r.X1 + dx, Y1: r.Y1 + dy}
}

// Union returns the smallest rectangle covering both r and o.
func (r Rect) Union(o Rect) Rect {
	if o.X0 < r.X0 {
		r.X0 = o.X0
	}
	if o.Y0 < r.Y0 {
		r.Y0 = o.Y0
	}
	if o.X1 > r.X1 {
		r.X1 = o.X1
	}
	if o.Y1 > r.Y1 {
		r.Y1 = o.Y1
	}
	return r
}

// Bound returns the normalized rectangle covering all given points.
// Bound of no points is the zero Rect.
func Bound(pts ...Point) Rect {
	if len(pts) == 0 {
		return Rect{}
	}
	r := Rect{X0: pts[0].X, Y0: pts[0].Y, X1: pts[0].X, Y1: pts[0].Y}
	for _, p := range pts[1:] {
		if p.X < r.X0 {
			r.X0 = p.X
		}
		if p.Y < r.Y0 {
			r.Y0 = p.Y
		}
		if p.X > r.X1 {
			r.X1 = p.X
		}
		if p.Y > r.Y1 {
			r.Y1 = p.Y
		}
	}
	return r
}

package coords

import (
	"fmt"

	"github.com/wudi/redactkit/geo"
)

// The render/document conversion lives here and only here. Components that
// need it call through these functions (or a shared Mapper) so the rectangle
// drawn on screen and the region eventually redacted stay consistent.

// ToDocumentSpace converts a render-space rectangle (device pixels at the
// given scale) into document points. scale must be > 0; anything else is a
// programming error and panics.
func ToDocumentSpace(r geo.Rect, scale float64) geo.Rect {
	m := mustInverse(renderMatrix(scale))
	return applyRect(m, r)
}

// ToRenderSpace converts a document-space rectangle into device pixels at the
// given scale. scale must be > 0.
func ToRenderSpace(r geo.Rect, scale float64) geo.Rect {
	return applyRect(renderMatrix(scale), r)
}

func renderMatrix(scale float64) Matrix {
	if scale <= 0 {
		panic(fmt.Sprintf("coords: invalid scale %v", scale))
	}
	return Scale(scale, scale)
}

func mustInverse(m Matrix) Matrix {
	inv, err := m.Inverse()
	if err != nil {
		panic("coords: render matrix not invertible: " + err.Error())
	}
	return inv
}

func applyRect(m Matrix, r geo.Rect) geo.Rect {
	a := m.Transform(Point{X: r.X0, Y: r.Y0})
	b := m.Transform(Point{X: r.X1, Y: r.Y1})
	return geo.FromCorners(geo.Point{X: a.X, Y: a.Y}, geo.Point{X: b.X, Y: b.Y})
}

// Mapper is the shared scale holder for a viewing session. All rectangle
// conversions for one document go through one Mapper instance so there are
// no stale-scale rectangles.
type Mapper struct {
	scale float64
}

func NewMapper(scale float64) *Mapper {
	if scale <= 0 {
		panic(fmt.Sprintf("coords: invalid scale %v", scale))
	}
	return &Mapper{scale: scale}
}

func (m *Mapper) Scale() float64 { return m.scale }

func (m *Mapper) SetScale(scale float64) {
	if scale <= 0 {
		panic(fmt.Sprintf("coords: invalid scale %v", scale))
	}
	m.scale = scale
}

func (m *Mapper) ToDocument(r geo.Rect) geo.Rect { return ToDocumentSpace(r, m.scale) }
func (m *Mapper) ToRender(r geo.Rect) geo.Rect   { return ToRenderSpace(r, m.scale) }

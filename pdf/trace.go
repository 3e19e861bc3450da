package pdf

import (
	"math"

	"github.com/wudi/redactkit/coords"
	"github.com/wudi/redactkit/geo"
)

// OpBBox is the device-space bounding box of one visible operation.
type OpBBox struct {
	OpIndex int
	Rect    geo.Rect
}

// graphicsState tracks the parts of the PDF graphics state the tracer needs.
type graphicsState struct {
	ctm   coords.Matrix
	stack []coords.Matrix
}

func (g *graphicsState) save() { g.stack = append(g.stack, g.ctm) }

func (g *graphicsState) restore() {
	if n := len(g.stack); n > 0 {
		g.ctm = g.stack[n-1]
		g.stack = g.stack[:n-1]
	}
}

// textState tracks the text and text-line matrices plus the sizing
// parameters that drive glyph advances.
type textState struct {
	tm       coords.Matrix
	tlm      coords.Matrix
	fontSize float64
	leading  float64
	charSp   float64
	wordSp   float64
}

// traceOps virtually executes a content stream and reports a bounding box for
// every operation that paints something: text showing, path painting,
// XObjects, inline images. Boxes are in the page's default user space.
//
// Glyph widths are approximated at half an em per byte. That overestimate is
// acceptable here: boxes are matched against redaction regions where an extra
// hit errs on the side of removing more, never less.
func traceOps(ops []Op) []OpBBox {
	const emPerByte = 0.5

	gs := &graphicsState{ctm: coords.Identity()}
	ts := &textState{tm: coords.Identity(), tlm: coords.Identity()}
	var boxes []OpBBox

	// Path construction accumulates into pathBox until a paint op claims it.
	pathBox := emptyBound()
	curX, curY := 0.0, 0.0
	startX, startY := 0.0, 0.0

	growPath := func(x, y float64) {
		p := gs.ctm.Transform(coords.Point{X: x, Y: y})
		pathBox = growBound(pathBox, p.X, p.Y)
		curX, curY = x, y
	}

	showText := func(i int, bytes, kern float64) {
		w := (bytes*emPerByte - kern/1000) * ts.fontSize
		h := ts.fontSize
		m := ts.tm.Multiply(gs.ctm)
		r := boundQuad(m, 0, -0.2*h, w, h)
		boxes = append(boxes, OpBBox{OpIndex: i, Rect: r})
		ts.tm = coords.Translate(w, 0).Multiply(ts.tm)
	}

	for i, op := range ops {
		n := len(op.Operands)
		num := func(k int) float64 {
			if k < n {
				return toFloat(op.Operands[k])
			}
			return 0
		}
		switch op.Operator {
		case "q":
			gs.save()
		case "Q":
			gs.restore()
		case "cm":
			if n == 6 {
				m := coords.Matrix{num(0), num(1), num(2), num(3), num(4), num(5)}
				gs.ctm = m.Multiply(gs.ctm)
			}

		case "BT":
			ts.tm = coords.Identity()
			ts.tlm = coords.Identity()
		case "ET":
		case "Tf":
			if n == 2 {
				ts.fontSize = num(1)
			}
		case "TL":
			ts.leading = num(0)
		case "Tc":
			ts.charSp = num(0)
		case "Tw":
			ts.wordSp = num(0)
		case "Td":
			ts.tlm = coords.Translate(num(0), num(1)).Multiply(ts.tlm)
			ts.tm = ts.tlm
		case "TD":
			ts.leading = -num(1)
			ts.tlm = coords.Translate(num(0), num(1)).Multiply(ts.tlm)
			ts.tm = ts.tlm
		case "Tm":
			if n == 6 {
				ts.tlm = coords.Matrix{num(0), num(1), num(2), num(3), num(4), num(5)}
				ts.tm = ts.tlm
			}
		case "T*":
			ts.tlm = coords.Translate(0, -ts.leading).Multiply(ts.tlm)
			ts.tm = ts.tlm

		case "Tj":
			if s, ok := operandString(op, 0); ok {
				showText(i, float64(len(s)), 0)
			}
		case "'":
			ts.tlm = coords.Translate(0, -ts.leading).Multiply(ts.tlm)
			ts.tm = ts.tlm
			if s, ok := operandString(op, 0); ok {
				showText(i, float64(len(s)), 0)
			}
		case "\"":
			ts.tlm = coords.Translate(0, -ts.leading).Multiply(ts.tlm)
			ts.tm = ts.tlm
			if s, ok := operandString(op, 2); ok {
				showText(i, float64(len(s)), 0)
			}
		case "TJ":
			if n == 1 {
				if arr, ok := op.Operands[0].(Array); ok {
					var bytes, kern float64
					for _, el := range arr {
						switch v := el.(type) {
						case String:
							bytes += float64(len(v))
						case Integer, Real:
							kern += toFloat(v)
						}
					}
					showText(i, bytes, kern)
				}
			}

		case "m":
			growPath(num(0), num(1))
			startX, startY = curX, curY
		case "l":
			growPath(num(0), num(1))
		case "c":
			growPath(num(0), num(1))
			growPath(num(2), num(3))
			growPath(num(4), num(5))
		case "v", "y":
			growPath(num(0), num(1))
			growPath(num(2), num(3))
		case "h":
			growPath(startX, startY)
		case "re":
			x, y, w, h := num(0), num(1), num(2), num(3)
			growPath(x, y)
			growPath(x+w, y+h)
			startX, startY = x, y

		case "f", "F", "f*", "B", "B*", "b", "b*", "S", "s":
			if !boundEmpty(pathBox) {
				boxes = append(boxes, OpBBox{OpIndex: i, Rect: pathBox})
			}
			pathBox = emptyBound()
		case "n", "W", "W*":
			if op.Operator == "n" {
				pathBox = emptyBound()
			}

		case "Do":
			boxes = append(boxes, OpBBox{OpIndex: i, Rect: boundQuad(gs.ctm, 0, 0, 1, 1)})
		case "BI":
			boxes = append(boxes, OpBBox{OpIndex: i, Rect: boundQuad(gs.ctm, 0, 0, 1, 1)})
		}
	}
	return boxes
}

func operandString(op Op, k int) (String, bool) {
	if k >= len(op.Operands) {
		return nil, false
	}
	s, ok := op.Operands[k].(String)
	return s, ok
}

// boundQuad transforms the axis-aligned box (x0,y0)-(x1,y1) and bounds the
// result, which may be rotated or sheared.
func boundQuad(m coords.Matrix, x0, y0, x1, y1 float64) geo.Rect {
	r := emptyBound()
	for _, p := range [4]coords.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x0, Y: y1}, {X: x1, Y: y1}} {
		q := m.Transform(p)
		r = growBound(r, q.X, q.Y)
	}
	return r
}

func emptyBound() geo.Rect {
	return geo.Rect{X0: math.MaxFloat64, Y0: math.MaxFloat64, X1: -math.MaxFloat64, Y1: -math.MaxFloat64}
}

func boundEmpty(r geo.Rect) bool { return r.X0 > r.X1 || r.Y0 > r.Y1 }

func growBound(r geo.Rect, x, y float64) geo.Rect {
	if x < r.X0 {
		r.X0 = x
	}
	if y < r.Y0 {
		r.Y0 = y
	}
	if x > r.X1 {
		r.X1 = x
	}
	if y > r.Y1 {
		r.Y1 = y
	}
	return r
}

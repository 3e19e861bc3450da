package pdf

import (
	"github.com/wudi/redactkit/geo"
)

const quadCapacity = 8

// editResult carries the rewritten operations plus the names of XObjects
// whose every use was removed, so the caller can drop their resource entries.
type editResult struct {
	ops             []Op
	removedXObjects map[Name]bool
}

// removeRegions deletes content intersecting any of the given regions from a
// parsed content stream and paints each region black. Regions and bounds are
// in the page's default user space.
//
// Text is removed per show operation. The ' and " operators also advance to
// the next line, so they are replaced by T* rather than deleted, keeping the
// layout of surviving lines intact. Painted paths have their paint operator
// downgraded to n, which consumes the path invisibly without disturbing a
// clipping state established alongside it.
func removeRegions(ops []Op, regions []geo.Rect, bounds geo.Rect) editResult {
	boxes := traceOps(ops)
	qt := newQuadTree(bounds, quadCapacity)
	for _, b := range boxes {
		qt.insert(b.Rect, b.OpIndex)
	}
	// Op index -> bbox entry, for the ops the tracer sized.
	byOp := make(map[int]geo.Rect, len(boxes))
	for _, b := range boxes {
		byOp[b.OpIndex] = b.Rect
	}

	hit := make(map[int]bool)
	for _, region := range regions {
		for _, idx := range qt.query(region) {
			if byOp[idx].Intersects(region) {
				hit[idx] = true
			}
		}
	}

	usesLeft := countXObjectUses(ops)
	out := make([]Op, 0, len(ops)+6*len(regions))
	for i, op := range ops {
		if !hit[i] {
			out = append(out, op)
			continue
		}
		switch op.Operator {
		case "Tj", "TJ":
			// dropped
		case "'", "\"":
			out = append(out, Op{Operator: "T*"})
		case "f", "F", "f*", "S", "s", "B", "B*", "b", "b*":
			out = append(out, Op{Operator: "n"})
		case "Do":
			if len(op.Operands) == 1 {
				if name, ok := op.Operands[0].(Name); ok {
					usesLeft[name]--
				}
			}
		case "BI":
			// dropped
		default:
			out = append(out, op)
		}
	}

	for _, region := range regions {
		out = append(out, blackFill(region)...)
	}

	removed := make(map[Name]bool)
	for name, n := range usesLeft {
		if n <= 0 {
			removed[name] = true
		}
	}
	return editResult{ops: out, removedXObjects: removed}
}

func countXObjectUses(ops []Op) map[Name]int {
	uses := make(map[Name]int)
	for _, op := range ops {
		if op.Operator == "Do" && len(op.Operands) == 1 {
			if name, ok := op.Operands[0].(Name); ok {
				uses[name]++
			}
		}
	}
	return uses
}

// blackFill paints the region as a solid black rectangle inside its own
// graphics-state frame.
func blackFill(r geo.Rect) []Op {
	r = r.Normalized()
	return []Op{
		{Operator: "q"},
		{Operands: []Object{Real(0)}, Operator: "g"},
		{Operands: []Object{
			Real(r.X0), Real(r.Y0), Real(r.Width()), Real(r.Height()),
		}, Operator: "re"},
		{Operator: "f"},
		{Operator: "Q"},
	}
}

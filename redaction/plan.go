// Package redaction turns annotation marks into an immutable document-space
// plan and applies it as permanent content removal.
package redaction

import (
	"errors"
	"sort"

	"github.com/wudi/redactkit/annotation"
	"github.com/wudi/redactkit/coords"
	"github.com/wudi/redactkit/geo"
)

// ErrEmptyPlan signals that no page has any marks at apply time. The caller
// should prompt the user to draw first; nothing was mutated.
var ErrEmptyPlan = errors.New("redaction: no regions marked")

// Plan is an immutable snapshot mapping page index to the document-space
// rectangles to remove there. It shares no mutable state with the store it
// was built from and is independent of any later scale changes.
type Plan struct {
	pages map[int][]geo.Rect
}

// BuildPlan converts every annotated page's render-space rectangles to
// document space at the supplied current scale, preserving input order.
// Deterministic and side-effect-free.
func BuildPlan(store *annotation.Store, scale float64) (*Plan, error) {
	all := store.AllPages()
	if len(all) == 0 {
		return nil, ErrEmptyPlan
	}
	pages := make(map[int][]geo.Rect, len(all))
	for page, rects := range all {
		docRects := make([]geo.Rect, len(rects))
		for i, r := range rects {
			docRects[i] = coords.ToDocumentSpace(r, scale)
		}
		pages[page] = docRects
	}
	return &Plan{pages: pages}, nil
}

// PlanFromRegions builds a plan directly from document-space rectangles,
// used by batch callers (CLI plan files, scripted rules, OCR suggestions)
// that never go through render space. Pages with no rectangles are dropped.
func PlanFromRegions(regions map[int][]geo.Rect) (*Plan, error) {
	pages := make(map[int][]geo.Rect, len(regions))
	for page, rects := range regions {
		if len(rects) == 0 {
			continue
		}
		cp := make([]geo.Rect, len(rects))
		for i, r := range rects {
			cp[i] = r.Normalized()
		}
		pages[page] = cp
	}
	if len(pages) == 0 {
		return nil, ErrEmptyPlan
	}
	return &Plan{pages: pages}, nil
}

// Pages returns the planned page indices in ascending order.
func (p *Plan) Pages() []int {
	out := make([]int, 0, len(p.pages))
	for page := range p.pages {
		out = append(out, page)
	}
	sort.Ints(out)
	return out
}

// Regions returns a copy of the page's planned rectangles in input order.
func (p *Plan) Regions(page int) []geo.Rect {
	out := make([]geo.Rect, len(p.pages[page]))
	copy(out, p.pages[page])
	return out
}

// Len returns the total number of planned rectangles.
func (p *Plan) Len() int {
	n := 0
	for _, rects := range p.pages {
		n += len(rects)
	}
	return n
}

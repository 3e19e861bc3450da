// Package annotation owns the per-page sets of user-drawn redaction marks.
// Marks are kept in render space at the viewer's current scale; the store is
// rescaled in place whenever the zoom changes.
package annotation

import (
	"sort"

	"github.com/wudi/redactkit/coords"
	"github.com/wudi/redactkit/geo"
)

// MinSize is the minimum render-space width and height a mark must have.
// Anything smaller is an accidental click and is never stored.
const MinSize = 5.0

// Mark is one drawn rectangle plus its selection state.
type Mark struct {
	Rect     geo.Rect
	Selected bool
}

// CountFunc receives the new mark count for a page after every mutation.
type CountFunc func(page, count int)

// Store maps page index to the ordered marks drawn on that page. Page entries
// are created lazily on first mark. Insertion order is display order only.
type Store struct {
	pages   map[int][]*Mark
	onCount CountFunc
}

func NewStore() *Store {
	return &Store{pages: make(map[int][]*Mark)}
}

// SetCountFunc registers the observer notified after every mutating
// operation with the affected page and its resulting count.
func (s *Store) SetCountFunc(fn CountFunc) { s.onCount = fn }

func (s *Store) notify(page int) {
	if s.onCount != nil {
		s.onCount(page, len(s.pages[page]))
	}
}

// Add appends a mark to the page. Rectangles below MinSize in either
// dimension are rejected and the store is left unchanged.
func (s *Store) Add(page int, r geo.Rect) bool {
	r = r.Normalized()
	if r.Width() < MinSize || r.Height() < MinSize {
		return false
	}
	s.pages[page] = append(s.pages[page], &Mark{Rect: r})
	s.notify(page)
	return true
}

// RemoveSelected removes all selected marks on the page and returns how many
// were removed.
func (s *Store) RemoveSelected(page int) int {
	marks := s.pages[page]
	kept := marks[:0]
	removed := 0
	for _, m := range marks {
		if m.Selected {
			removed++
			continue
		}
		kept = append(kept, m)
	}
	if removed == 0 {
		return 0
	}
	if len(kept) == 0 {
		delete(s.pages, page)
	} else {
		s.pages[page] = kept
	}
	s.notify(page)
	return removed
}

// ClearPage removes every mark on the page.
func (s *Store) ClearPage(page int) {
	delete(s.pages, page)
	s.notify(page)
}

// Reset discards all pages. Called on document load and after a successful
// apply, when the marked content is gone.
func (s *Store) Reset() {
	s.pages = make(map[int][]*Mark)
}

// Count returns the number of marks on the page.
func (s *Store) Count(page int) int { return len(s.pages[page]) }

// Marks returns the page's marks in insertion order. The marks are shared;
// mutating a Mark (selection, drag) is how the controller edits geometry.
func (s *Store) Marks(page int) []*Mark {
	out := make([]*Mark, len(s.pages[page]))
	copy(out, s.pages[page])
	return out
}

// Rects returns a copy of the page's rectangles in insertion order.
func (s *Store) Rects(page int) []geo.Rect {
	marks := s.pages[page]
	out := make([]geo.Rect, len(marks))
	for i, m := range marks {
		out[i] = m.Rect
	}
	return out
}

// AllPages returns every page's rectangles keyed by page index. Pages without
// marks are omitted.
func (s *Store) AllPages() map[int][]geo.Rect {
	out := make(map[int][]geo.Rect, len(s.pages))
	for page, marks := range s.pages {
		if len(marks) == 0 {
			continue
		}
		rects := make([]geo.Rect, len(marks))
		for i, m := range marks {
			rects[i] = m.Rect
		}
		out[page] = rects
	}
	return out
}

// Pages returns the annotated page indices in ascending order.
func (s *Store) Pages() []int {
	out := make([]int, 0, len(s.pages))
	for page, marks := range s.pages {
		if len(marks) > 0 {
			out = append(out, page)
		}
	}
	sort.Ints(out)
	return out
}

// MarkAt returns the topmost (most recently drawn) mark under the point, or
// nil when the point hits nothing.
func (s *Store) MarkAt(page int, p geo.Point) *Mark {
	marks := s.pages[page]
	for i := len(marks) - 1; i >= 0; i-- {
		if marks[i].Rect.Contains(p) {
			return marks[i]
		}
	}
	return nil
}

// SelectOnly selects m and deselects every other mark on the page.
func (s *Store) SelectOnly(page int, m *Mark) {
	for _, other := range s.pages[page] {
		other.Selected = other == m
	}
}

// DeselectAll clears the selection on the page.
func (s *Store) DeselectAll(page int) {
	for _, m := range s.pages[page] {
		m.Selected = false
	}
}

// Rescale re-expresses every stored rectangle, on all pages, from one render
// scale to another by passing it through document space. Keeps stored marks
// consistent with the mapper after a zoom change.
func (s *Store) Rescale(from, to float64) {
	if from == to {
		return
	}
	for _, marks := range s.pages {
		for _, m := range marks {
			m.Rect = coords.ToRenderSpace(coords.ToDocumentSpace(m.Rect, from), to)
		}
	}
}

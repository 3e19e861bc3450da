// Package interaction is the gesture state machine for drawing, selecting,
// moving and deleting redaction marks on the currently visible page.
package interaction

import (
	"github.com/wudi/redactkit/annotation"
	"github.com/wudi/redactkit/geo"
)

// State identifies where the controller is in a gesture.
type State int

const (
	// Idle: no gesture in progress.
	Idle State = iota
	// Drawing: a provisional rectangle is being dragged out. It is not in
	// the store until finalized.
	Drawing
	// Editing: an existing mark is selected and movable.
	Editing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Drawing:
		return "drawing"
	case Editing:
		return "editing"
	}
	return "unknown"
}

// Controller drives one page's gestures against the shared store. All points
// are render-space at the viewer's current scale.
type Controller struct {
	store   *annotation.Store
	page    int
	state   State
	enabled bool

	anchor geo.Point
	draft  geo.Rect

	active   *annotation.Mark
	dragLast geo.Point
}

func NewController(store *annotation.Store) *Controller {
	return &Controller{store: store, enabled: true}
}

func (c *Controller) State() State { return c.state }
func (c *Controller) Page() int    { return c.page }

// DrawingEnabled reports whether beginDraw transitions are allowed.
func (c *Controller) DrawingEnabled() bool { return c.enabled }

// SetDrawingEnabled toggles pan/inspect mode. Disabling mid-draw discards the
// provisional rectangle.
func (c *Controller) SetDrawingEnabled(enabled bool) {
	c.enabled = enabled
	if !enabled && c.state == Drawing {
		c.cancelDraft()
	}
}

// SetPage switches the controller to another page, finalizing any in-progress
// gesture first so a provisional rectangle cannot leak into the wrong page.
func (c *Controller) SetPage(page int) {
	switch c.state {
	case Drawing:
		c.cancelDraft()
	case Editing:
		c.active = nil
		c.state = Idle
	}
	c.page = page
}

// BeginDraw starts a provisional zero-size rectangle at p. It refuses when
// drawing is disabled, a gesture is already active, or p lands on an existing
// mark (that is a selection, not a draw).
func (c *Controller) BeginDraw(p geo.Point) bool {
	if !c.enabled || c.state != Idle {
		return false
	}
	if c.store.MarkAt(c.page, p) != nil {
		return false
	}
	c.anchor = p
	c.draft = geo.FromCorners(p, p)
	c.state = Drawing
	return true
}

// UpdateDraw recomputes the provisional rectangle as the normalized box
// between the anchor and p.
func (c *Controller) UpdateDraw(p geo.Point) {
	if c.state != Drawing {
		return
	}
	c.draft = geo.FromCorners(c.anchor, p)
}

// FinishDraw finalizes the gesture. Sub-threshold rectangles are discarded by
// the store, leaving no trace. Reports whether a mark was committed.
func (c *Controller) FinishDraw(p geo.Point) bool {
	if c.state != Drawing {
		return false
	}
	rect := geo.FromCorners(c.anchor, p)
	c.draft = geo.Rect{}
	c.state = Idle
	return c.store.Add(c.page, rect)
}

// Draft returns the provisional rectangle while Drawing.
func (c *Controller) Draft() (geo.Rect, bool) {
	if c.state != Drawing {
		return geo.Rect{}, false
	}
	return c.draft, true
}

// SelectAt selects the mark under p (deselecting the page's others) and
// enters Editing. Returns false when p hits nothing.
func (c *Controller) SelectAt(p geo.Point) bool {
	if c.state == Drawing {
		return false
	}
	m := c.store.MarkAt(c.page, p)
	if m == nil {
		if c.state == Editing {
			c.store.DeselectAll(c.page)
			c.active = nil
			c.state = Idle
		}
		return false
	}
	c.store.SelectOnly(c.page, m)
	c.active = m
	c.dragLast = p
	c.state = Editing
	return true
}

// ToggleSelectAt flips the selection of the mark under p without touching the
// rest of the page. Multi-select variant; drag still acts on the mark most
// recently selected via SelectAt.
func (c *Controller) ToggleSelectAt(p geo.Point) bool {
	if c.state == Drawing {
		return false
	}
	m := c.store.MarkAt(c.page, p)
	if m == nil {
		return false
	}
	m.Selected = !m.Selected
	return true
}

// Drag translates the selected mark by the pointer delta since the last
// Drag/SelectAt call.
func (c *Controller) Drag(p geo.Point) {
	if c.state != Editing || c.active == nil {
		return
	}
	c.active.Rect = c.active.Rect.Translate(p.X-c.dragLast.X, p.Y-c.dragLast.Y)
	c.dragLast = p
}

// DeleteSelected removes all selected marks on the page and returns to Idle
// from any state. Returns the number removed.
func (c *Controller) DeleteSelected() int {
	if c.state == Drawing {
		c.cancelDraft()
	}
	c.active = nil
	c.state = Idle
	return c.store.RemoveSelected(c.page)
}

// ClearPage drops every mark on the current page and resets the gesture.
func (c *Controller) ClearPage() {
	if c.state == Drawing {
		c.cancelDraft()
	}
	c.active = nil
	c.state = Idle
	c.store.ClearPage(c.page)
}

func (c *Controller) cancelDraft() {
	c.draft = geo.Rect{}
	c.state = Idle
}

package interaction

import (
	"testing"

	"github.com/wudi/redactkit/annotation"
	"github.com/wudi/redactkit/geo"
)

func newController() (*Controller, *annotation.Store) {
	s := annotation.NewStore()
	return NewController(s), s
}

func TestDrawCommitsRect(t *testing.T) {
	c, s := newController()
	if !c.BeginDraw(geo.Point{X: 100, Y: 100}) {
		t.Fatal("BeginDraw refused")
	}
	if c.State() != Drawing {
		t.Fatalf("state = %v", c.State())
	}
	c.UpdateDraw(geo.Point{X: 200, Y: 120})
	if draft, ok := c.Draft(); !ok || draft != (geo.Rect{X0: 100, Y0: 100, X1: 200, Y1: 120}) {
		t.Fatalf("draft = %+v ok=%v", draft, ok)
	}
	if s.Count(0) != 0 {
		t.Fatal("provisional rect leaked into store")
	}
	if !c.FinishDraw(geo.Point{X: 300, Y: 150}) {
		t.Fatal("FinishDraw did not commit")
	}
	if c.State() != Idle {
		t.Fatalf("state = %v after finish", c.State())
	}
	rects := s.Rects(0)
	if len(rects) != 1 || rects[0] != (geo.Rect{X0: 100, Y0: 100, X1: 300, Y1: 150}) {
		t.Fatalf("stored %+v", rects)
	}
}

func TestClickLeavesNoTrace(t *testing.T) {
	c, s := newController()
	c.BeginDraw(geo.Point{X: 50, Y: 50})
	if c.FinishDraw(geo.Point{X: 51, Y: 52}) {
		t.Fatal("sub-threshold rect committed")
	}
	if s.Count(0) != 0 {
		t.Fatal("store mutated by accidental click")
	}
	if _, ok := c.Draft(); ok {
		t.Fatal("draft survived finish")
	}
}

func TestDrawUpward(t *testing.T) {
	c, s := newController()
	c.BeginDraw(geo.Point{X: 300, Y: 150})
	c.FinishDraw(geo.Point{X: 100, Y: 100})
	rects := s.Rects(0)
	if len(rects) != 1 || rects[0] != (geo.Rect{X0: 100, Y0: 100, X1: 300, Y1: 150}) {
		t.Fatalf("stored %+v", rects)
	}
}

func TestBeginDrawRefusals(t *testing.T) {
	c, s := newController()
	s.Add(0, geo.Rect{X0: 10, Y0: 10, X1: 60, Y1: 60})

	if c.BeginDraw(geo.Point{X: 30, Y: 30}) {
		t.Fatal("BeginDraw on existing mark must refuse")
	}
	c.SetDrawingEnabled(false)
	if c.BeginDraw(geo.Point{X: 200, Y: 200}) {
		t.Fatal("BeginDraw with drawing disabled must refuse")
	}
	c.SetDrawingEnabled(true)
	if !c.BeginDraw(geo.Point{X: 200, Y: 200}) {
		t.Fatal("BeginDraw refused after re-enable")
	}
	if c.BeginDraw(geo.Point{X: 210, Y: 210}) {
		t.Fatal("BeginDraw while Drawing must refuse")
	}
}

func TestSelectAndDrag(t *testing.T) {
	c, s := newController()
	s.Add(0, geo.Rect{X0: 10, Y0: 10, X1: 60, Y1: 60})
	s.Add(0, geo.Rect{X0: 100, Y0: 100, X1: 160, Y1: 160})

	if !c.SelectAt(geo.Point{X: 120, Y: 120}) {
		t.Fatal("SelectAt missed mark")
	}
	if c.State() != Editing {
		t.Fatalf("state = %v", c.State())
	}
	marks := s.Marks(0)
	if marks[0].Selected || !marks[1].Selected {
		t.Fatalf("selection: %v %v", marks[0].Selected, marks[1].Selected)
	}

	c.Drag(geo.Point{X: 130, Y: 115})
	c.Drag(geo.Point{X: 140, Y: 110})
	got := s.Marks(0)[1].Rect
	want := geo.Rect{X0: 120, Y0: 90, X1: 180, Y1: 150}
	if got != want {
		t.Fatalf("dragged to %+v, want %+v", got, want)
	}
	// The untouched mark must not move.
	if s.Marks(0)[0].Rect != (geo.Rect{X0: 10, Y0: 10, X1: 60, Y1: 60}) {
		t.Fatal("unselected mark moved")
	}
}

func TestSelectAtMissDeselects(t *testing.T) {
	c, s := newController()
	s.Add(0, geo.Rect{X0: 10, Y0: 10, X1: 60, Y1: 60})
	c.SelectAt(geo.Point{X: 30, Y: 30})

	if c.SelectAt(geo.Point{X: 500, Y: 500}) {
		t.Fatal("SelectAt on empty space returned true")
	}
	if c.State() != Idle {
		t.Fatalf("state = %v", c.State())
	}
	if s.Marks(0)[0].Selected {
		t.Fatal("mark still selected after miss")
	}
}

func TestDeleteSelected(t *testing.T) {
	c, s := newController()
	// Two overlapping marks; delete one, the other survives.
	s.Add(2, geo.Rect{X0: 10, Y0: 10, X1: 100, Y1: 100})
	s.Add(2, geo.Rect{X0: 50, Y0: 50, X1: 150, Y1: 150})
	c.SetPage(2)

	c.SelectAt(geo.Point{X: 120, Y: 120}) // hits only the second
	if n := c.DeleteSelected(); n != 1 {
		t.Fatalf("deleted %d, want 1", n)
	}
	if c.State() != Idle {
		t.Fatalf("state = %v", c.State())
	}
	rects := s.Rects(2)
	if len(rects) != 1 || rects[0] != (geo.Rect{X0: 10, Y0: 10, X1: 100, Y1: 100}) {
		t.Fatalf("survivors: %+v", rects)
	}
}

func TestPageSwitchFinalizesGesture(t *testing.T) {
	c, s := newController()
	c.BeginDraw(geo.Point{X: 10, Y: 10})
	c.UpdateDraw(geo.Point{X: 200, Y: 200})
	c.SetPage(1)

	if c.State() != Idle {
		t.Fatalf("state = %v after page switch", c.State())
	}
	if s.Count(0) != 0 || s.Count(1) != 0 {
		t.Fatal("provisional rect leaked on page switch")
	}

	// Editing is likewise finalized.
	s.Add(1, geo.Rect{X0: 10, Y0: 10, X1: 60, Y1: 60})
	c.SelectAt(geo.Point{X: 20, Y: 20})
	c.SetPage(0)
	if c.State() != Idle {
		t.Fatalf("state = %v after page switch from Editing", c.State())
	}
}

func TestToggleSelectAt(t *testing.T) {
	c, s := newController()
	s.Add(0, geo.Rect{X0: 10, Y0: 10, X1: 60, Y1: 60})
	s.Add(0, geo.Rect{X0: 100, Y0: 100, X1: 160, Y1: 160})

	c.ToggleSelectAt(geo.Point{X: 20, Y: 20})
	c.ToggleSelectAt(geo.Point{X: 120, Y: 120})
	marks := s.Marks(0)
	if !marks[0].Selected || !marks[1].Selected {
		t.Fatal("toggle did not select both")
	}
	c.ToggleSelectAt(geo.Point{X: 20, Y: 20})
	if marks[0].Selected {
		t.Fatal("second toggle did not deselect")
	}
	if n := c.DeleteSelected(); n != 1 {
		t.Fatalf("deleted %d, want 1", n)
	}
}

func TestDisableMidDrawCancels(t *testing.T) {
	c, s := newController()
	c.BeginDraw(geo.Point{X: 10, Y: 10})
	c.SetDrawingEnabled(false)
	if c.State() != Idle {
		t.Fatalf("state = %v", c.State())
	}
	if c.FinishDraw(geo.Point{X: 300, Y: 300}) {
		t.Fatal("finish after cancel committed")
	}
	if s.Count(0) != 0 {
		t.Fatal("cancelled draft stored")
	}
}

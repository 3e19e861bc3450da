package annotation

import (
	"math"
	"testing"

	"github.com/wudi/redactkit/geo"
)

func TestAddRejectsBelowMinSize(t *testing.T) {
	s := NewStore()
	cases := []geo.Rect{
		{X0: 0, Y0: 0, X1: 4.9, Y1: 100}, // too narrow
		{X0: 0, Y0: 0, X1: 100, Y1: 4.9}, // too short
		{X0: 10, Y0: 10, X1: 11, Y1: 11}, // accidental click
	}
	for _, r := range cases {
		if s.Add(0, r) {
			t.Errorf("Add(%+v) accepted sub-threshold rect", r)
		}
	}
	if s.Count(0) != 0 {
		t.Fatalf("store not left unchanged: %d marks", s.Count(0))
	}
	if !s.Add(0, geo.Rect{X0: 0, Y0: 0, X1: 5, Y1: 5}) {
		t.Fatal("Add rejected rect at threshold")
	}
}

func TestAddNormalizes(t *testing.T) {
	s := NewStore()
	s.Add(0, geo.Rect{X0: 300, Y0: 150, X1: 100, Y1: 100})
	got := s.Rects(0)[0]
	want := geo.Rect{X0: 100, Y0: 100, X1: 300, Y1: 150}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestPageIsolation(t *testing.T) {
	s := NewStore()
	s.Add(0, geo.Rect{X1: 10, Y1: 10})
	s.Add(0, geo.Rect{X0: 20, Y0: 20, X1: 40, Y1: 40})
	s.Add(3, geo.Rect{X1: 50, Y1: 50})

	before := s.Rects(0)
	s.ClearPage(3)
	s.Add(5, geo.Rect{X1: 9, Y1: 9})
	marks := s.Marks(5)
	marks[0].Selected = true
	s.RemoveSelected(5)

	after := s.Rects(0)
	if len(after) != len(before) {
		t.Fatalf("page 0 mutated: %d -> %d marks", len(before), len(after))
	}
	for i := range after {
		if after[i] != before[i] {
			t.Fatalf("page 0 rect %d changed: %+v -> %+v", i, before[i], after[i])
		}
	}
}

func TestRemoveSelected(t *testing.T) {
	s := NewStore()
	s.Add(2, geo.Rect{X1: 10, Y1: 10})
	s.Add(2, geo.Rect{X0: 5, Y0: 5, X1: 15, Y1: 15})
	marks := s.Marks(2)
	s.SelectOnly(2, marks[1])

	if n := s.RemoveSelected(2); n != 1 {
		t.Fatalf("removed %d, want 1", n)
	}
	rest := s.Rects(2)
	if len(rest) != 1 || rest[0] != (geo.Rect{X1: 10, Y1: 10}) {
		t.Fatalf("unexpected survivors: %+v", rest)
	}
	if n := s.RemoveSelected(2); n != 0 {
		t.Fatalf("removed %d with nothing selected", n)
	}
}

func TestAllPagesOmitsEmpty(t *testing.T) {
	s := NewStore()
	s.Add(1, geo.Rect{X1: 10, Y1: 10})
	s.Add(4, geo.Rect{X1: 10, Y1: 10})
	marks := s.Marks(4)
	marks[0].Selected = true
	s.RemoveSelected(4)

	all := s.AllPages()
	if len(all) != 1 {
		t.Fatalf("got %d pages, want 1", len(all))
	}
	if _, ok := all[4]; ok {
		t.Fatal("emptied page must be omitted")
	}
	if got := s.Pages(); len(got) != 1 || got[0] != 1 {
		t.Fatalf("Pages() = %v", got)
	}
}

func TestCountNotifications(t *testing.T) {
	s := NewStore()
	var gotPage, gotCount int
	calls := 0
	s.SetCountFunc(func(page, count int) {
		gotPage, gotCount = page, count
		calls++
	})

	s.Add(7, geo.Rect{X1: 10, Y1: 10})
	if calls != 1 || gotPage != 7 || gotCount != 1 {
		t.Fatalf("after add: calls=%d page=%d count=%d", calls, gotPage, gotCount)
	}
	s.Add(7, geo.Rect{X0: 1, Y0: 1, X1: 20, Y1: 20})
	s.ClearPage(7)
	if calls != 3 || gotCount != 0 {
		t.Fatalf("after clear: calls=%d count=%d", calls, gotCount)
	}
	// Rejected adds do not mutate and must not notify.
	s.Add(7, geo.Rect{X1: 1, Y1: 1})
	if calls != 3 {
		t.Fatalf("rejected add notified: calls=%d", calls)
	}
}

func TestMarkAtReturnsTopmost(t *testing.T) {
	s := NewStore()
	s.Add(0, geo.Rect{X1: 100, Y1: 100})
	s.Add(0, geo.Rect{X0: 10, Y0: 10, X1: 50, Y1: 50})
	marks := s.Marks(0)

	if got := s.MarkAt(0, geo.Point{X: 20, Y: 20}); got != marks[1] {
		t.Fatal("expected most recently drawn mark")
	}
	if got := s.MarkAt(0, geo.Point{X: 90, Y: 90}); got != marks[0] {
		t.Fatal("expected underlying mark")
	}
	if got := s.MarkAt(0, geo.Point{X: 200, Y: 200}); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestRescale(t *testing.T) {
	s := NewStore()
	s.Add(0, geo.Rect{X0: 100, Y0: 100, X1: 300, Y1: 150}) // drawn at scale 2
	s.Rescale(2.0, 4.0)
	got := s.Rects(0)[0]
	want := geo.Rect{X0: 200, Y0: 200, X1: 600, Y1: 300}
	tol := 1e-9
	if math.Abs(got.X0-want.X0) > tol || math.Abs(got.Y0-want.Y0) > tol ||
		math.Abs(got.X1-want.X1) > tol || math.Abs(got.Y1-want.Y1) > tol {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestReset(t *testing.T) {
	s := NewStore()
	s.Add(0, geo.Rect{X1: 10, Y1: 10})
	s.Add(9, geo.Rect{X1: 10, Y1: 10})
	s.Reset()
	if len(s.AllPages()) != 0 {
		t.Fatal("reset left pages behind")
	}
}

package redaction

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"testing"

	"github.com/wudi/redactkit/annotation"
	"github.com/wudi/redactkit/document"
	"github.com/wudi/redactkit/geo"
)

// fakeDoc records mark/commit calls and can fail on chosen pages.
type fakeDoc struct {
	pages     int
	marked    map[int][]geo.Rect
	committed []int
	failMark  map[int]error
	failOn    map[int]error // commit failures
}

func newFakeDoc(pages int) *fakeDoc {
	return &fakeDoc{
		pages:    pages,
		marked:   make(map[int][]geo.Rect),
		failMark: make(map[int]error),
		failOn:   make(map[int]error),
	}
}

func (d *fakeDoc) PageCount() int { return d.pages }

func (d *fakeDoc) PageSize(page int) (float64, float64) { return 612, 792 }

func (d *fakeDoc) MarkRegionForRemoval(page int, r geo.Rect) error {
	if err := d.failMark[page]; err != nil {
		return err
	}
	d.marked[page] = append(d.marked[page], r)
	return nil
}

func (d *fakeDoc) CommitRemovals(page int) error {
	if err := d.failOn[page]; err != nil {
		return err
	}
	d.committed = append(d.committed, page)
	return nil
}

func (d *fakeDoc) WriteTo(w io.Writer, opts document.SaveOptions) error {
	_, err := fmt.Fprintf(w, "pdf compact=%v committed=%v", opts.Compact, d.committed)
	return err
}

func (d *fakeDoc) Close() error { return nil }

func TestBuildPlanEmptyStore(t *testing.T) {
	store := annotation.NewStore()
	if _, err := BuildPlan(store, 2.0); !errors.Is(err, ErrEmptyPlan) {
		t.Fatalf("err = %v, want ErrEmptyPlan", err)
	}
}

func TestBuildPlanConvertsToDocumentSpace(t *testing.T) {
	store := annotation.NewStore()
	store.Add(0, geo.Rect{X0: 100, Y0: 100, X1: 300, Y1: 150})
	plan, err := BuildPlan(store, 2.0)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	got := plan.Regions(0)
	if len(got) != 1 || got[0] != (geo.Rect{X0: 50, Y0: 50, X1: 150, Y1: 75}) {
		t.Fatalf("regions = %+v", got)
	}
}

func TestPlanIsSnapshot(t *testing.T) {
	store := annotation.NewStore()
	store.Add(1, geo.Rect{X0: 10, Y0: 10, X1: 110, Y1: 110})
	plan, err := BuildPlan(store, 1.0)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	// Later store mutations must not show through.
	store.Add(1, geo.Rect{X0: 200, Y0: 200, X1: 300, Y1: 300})
	store.ClearPage(1)
	if n := len(plan.Regions(1)); n != 1 {
		t.Fatalf("plan changed after store mutation: %d regions", n)
	}
	// Mutating a returned slice must not leak into the plan.
	plan.Regions(1)[0] = geo.Rect{}
	if plan.Regions(1)[0] == (geo.Rect{}) {
		t.Fatal("Regions returned shared backing array")
	}
}

func TestPlanPagesAscending(t *testing.T) {
	plan, err := PlanFromRegions(map[int][]geo.Rect{
		7: {{X1: 1, Y1: 1}},
		0: {{X1: 1, Y1: 1}},
		3: {{X1: 1, Y1: 1}},
		5: {}, // empty entries dropped
	})
	if err != nil {
		t.Fatalf("PlanFromRegions: %v", err)
	}
	got := plan.Pages()
	want := []int{0, 3, 7}
	if len(got) != len(want) {
		t.Fatalf("pages = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pages = %v, want %v", got, want)
		}
	}
}

func TestApplyPlanMarksThenCommitsPerPage(t *testing.T) {
	store := annotation.NewStore()
	store.Add(2, geo.Rect{X0: 0, Y0: 0, X1: 20, Y1: 20})
	store.Add(0, geo.Rect{X0: 10, Y0: 10, X1: 40, Y1: 40})
	store.Add(0, geo.Rect{X0: 50, Y0: 50, X1: 90, Y1: 90})
	plan, _ := BuildPlan(store, 1.0)

	doc := newFakeDoc(5)
	if err := NewEngine(nil).ApplyPlan(context.Background(), doc, plan); err != nil {
		t.Fatalf("ApplyPlan: %v", err)
	}
	if len(doc.committed) != 2 || doc.committed[0] != 0 || doc.committed[1] != 2 {
		t.Fatalf("committed = %v, want [0 2]", doc.committed)
	}
	if len(doc.marked[0]) != 2 || len(doc.marked[2]) != 1 {
		t.Fatalf("marked = %+v", doc.marked)
	}
}

func TestApplyPlanHaltsOnCommitFailure(t *testing.T) {
	plan, _ := PlanFromRegions(map[int][]geo.Rect{
		0: {{X1: 10, Y1: 10}},
		1: {{X1: 10, Y1: 10}},
		2: {{X1: 10, Y1: 10}},
	})
	doc := newFakeDoc(3)
	boom := errors.New("stream corrupt")
	doc.failOn[1] = boom

	err := NewEngine(nil).ApplyPlan(context.Background(), doc, plan)
	var rerr *RemovalError
	if !errors.As(err, &rerr) {
		t.Fatalf("err = %v, want RemovalError", err)
	}
	if rerr.Page != 1 || rerr.LastCommitted != 0 {
		t.Fatalf("page=%d lastCommitted=%d", rerr.Page, rerr.LastCommitted)
	}
	if !errors.Is(err, boom) {
		t.Fatal("cause not wrapped")
	}
	// Page 2 must not have been touched.
	if len(doc.marked[2]) != 0 {
		t.Fatal("pages after the failure were marked")
	}
}

func TestApplyPlanMarkFailureReportsNoCommit(t *testing.T) {
	plan, _ := PlanFromRegions(map[int][]geo.Rect{0: {{X1: 10, Y1: 10}}})
	doc := newFakeDoc(1)
	doc.failMark[0] = errors.New("bad region")

	err := NewEngine(nil).ApplyPlan(context.Background(), doc, plan)
	var rerr *RemovalError
	if !errors.As(err, &rerr) {
		t.Fatalf("err = %v, want RemovalError", err)
	}
	if rerr.LastCommitted != -1 {
		t.Fatalf("lastCommitted = %d, want -1", rerr.LastCommitted)
	}
}

func TestApplyPlanOutOfRangePanics(t *testing.T) {
	plan, _ := PlanFromRegions(map[int][]geo.Rect{9: {{X1: 10, Y1: 10}}})
	doc := newFakeDoc(2)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for out-of-range page")
		}
	}()
	_ = NewEngine(nil).ApplyPlan(context.Background(), doc, plan)
}

func TestSaveWritesCompacted(t *testing.T) {
	doc := newFakeDoc(1)
	doc.committed = []int{0}
	path := t.TempDir() + "/out.pdf"
	if err := NewEngine(nil).Save(context.Background(), doc, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "pdf compact=true committed=[0]" {
		t.Fatalf("content = %q", data)
	}
}

func TestSaveErrorOnBadPath(t *testing.T) {
	doc := newFakeDoc(1)
	err := NewEngine(nil).Save(context.Background(), doc, t.TempDir()+"/missing/out.pdf")
	var serr *SaveError
	if !errors.As(err, &serr) {
		t.Fatalf("err = %v, want SaveError", err)
	}
}

package pdf

import (
	"bytes"
	"testing"

	"github.com/wudi/redactkit/geo"
)

func TestParseContentOperations(t *testing.T) {
	src := "q 1 0 0 1 50 60 cm BT /F1 12 Tf (hi) Tj ET Q"
	ops, err := parseContent([]byte(src))
	if err != nil {
		t.Fatalf("parseContent: %v", err)
	}
	want := []string{"q", "cm", "BT", "Tf", "Tj", "ET", "Q"}
	if len(ops) != len(want) {
		t.Fatalf("got %d ops", len(ops))
	}
	for i, op := range ops {
		if op.Operator != want[i] {
			t.Fatalf("op %d = %q, want %q", i, op.Operator, want[i])
		}
	}
	if len(ops[1].Operands) != 6 {
		t.Fatalf("cm operands = %v", ops[1].Operands)
	}
}

func TestParseInlineImage(t *testing.T) {
	src := "BI /W 2 /H 2 /BPC 8 /CS /G ID \x01\x02\x03\x04 EI Q"
	ops, err := parseContent([]byte(src))
	if err != nil {
		t.Fatalf("parseContent: %v", err)
	}
	if len(ops) != 2 || ops[0].Operator != "BI" || ops[1].Operator != "Q" {
		t.Fatalf("ops = %+v", ops)
	}
	if !bytes.Equal(ops[0].Inline, []byte{1, 2, 3, 4}) {
		t.Fatalf("inline data = %v", ops[0].Inline)
	}
	params, _ := ops[0].Operands[0].(Dict)
	if params["W"] != Integer(2) {
		t.Fatalf("params = %v", params)
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	src := "q 0.5 0 0 0.5 10 20 cm [(a) -120 (b)] TJ /Im1 Do Q"
	ops, err := parseContent([]byte(src))
	if err != nil {
		t.Fatalf("parseContent: %v", err)
	}
	again, err := parseContent(serializeContent(ops))
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if len(again) != len(ops) {
		t.Fatalf("op count changed: %d -> %d", len(ops), len(again))
	}
	for i := range ops {
		if again[i].Operator != ops[i].Operator {
			t.Fatalf("op %d: %q -> %q", i, ops[i].Operator, again[i].Operator)
		}
	}
}

func TestTraceTextAndRect(t *testing.T) {
	src := "BT /F1 10 Tf 100 200 Td (abcd) Tj ET 10 20 30 40 re f"
	ops, err := parseContent([]byte(src))
	if err != nil {
		t.Fatalf("parseContent: %v", err)
	}
	boxes := traceOps(ops)
	if len(boxes) != 2 {
		t.Fatalf("got %d boxes: %+v", len(boxes), boxes)
	}
	text := boxes[0].Rect
	if text.X0 != 100 || text.Y1 != 210 {
		t.Fatalf("text box = %+v", text)
	}
	rect := boxes[1].Rect
	if rect != (geo.Rect{X0: 10, Y0: 20, X1: 40, Y1: 60}) {
		t.Fatalf("rect box = %+v", rect)
	}
}

func TestTraceRespectsCTM(t *testing.T) {
	src := "q 2 0 0 2 0 0 cm 10 10 5 5 re f Q"
	ops, _ := parseContent([]byte(src))
	boxes := traceOps(ops)
	if len(boxes) != 1 {
		t.Fatalf("boxes = %+v", boxes)
	}
	if boxes[0].Rect != (geo.Rect{X0: 20, Y0: 20, X1: 30, Y1: 30}) {
		t.Fatalf("box = %+v", boxes[0].Rect)
	}
}

func TestRemoveRegionsReplacesQuoteWithLineAdvance(t *testing.T) {
	src := "BT /F1 12 Tf 14 TL 72 700 Td (first) Tj (second) ' ET"
	ops, err := parseContent([]byte(src))
	if err != nil {
		t.Fatalf("parseContent: %v", err)
	}
	bounds := geo.Rect{X0: 0, Y0: 0, X1: 612, Y1: 792}
	// Cover only the second line (one leading below 700).
	res := removeRegions(ops, []geo.Rect{{X0: 60, Y0: 680, X1: 200, Y1: 695}}, bounds)

	var sawTStar, sawFirst bool
	for _, op := range res.ops {
		if op.Operator == "T*" {
			sawTStar = true
		}
		if op.Operator == "Tj" {
			sawFirst = true
		}
	}
	if !sawTStar {
		t.Fatal("removed ' not replaced by T*")
	}
	if !sawFirst {
		t.Fatal("uncovered Tj removed")
	}
}

func TestRemoveRegionsDropsOrphanedXObject(t *testing.T) {
	src := "q 100 0 0 50 10 10 cm /Im1 Do Q q 100 0 0 50 400 400 cm /Im2 Do Q"
	ops, err := parseContent([]byte(src))
	if err != nil {
		t.Fatalf("parseContent: %v", err)
	}
	bounds := geo.Rect{X0: 0, Y0: 0, X1: 612, Y1: 792}
	res := removeRegions(ops, []geo.Rect{{X0: 0, Y0: 0, X1: 200, Y1: 100}}, bounds)
	if !res.removedXObjects["Im1"] {
		t.Fatal("Im1 not reported as orphaned")
	}
	if res.removedXObjects["Im2"] {
		t.Fatal("Im2 wrongly reported as orphaned")
	}
	for _, op := range res.ops {
		if op.Operator == "Do" && op.Operands[0] == Name("Im1") {
			t.Fatal("covered Do survived")
		}
	}
}

func TestQuadTreeQuery(t *testing.T) {
	qt := newQuadTree(geo.Rect{X0: 0, Y0: 0, X1: 1000, Y1: 1000}, 2)
	rects := []geo.Rect{
		{X0: 10, Y0: 10, X1: 20, Y1: 20},
		{X0: 500, Y0: 500, X1: 520, Y1: 520},
		{X0: 900, Y0: 900, X1: 950, Y1: 950},
		{X0: 15, Y0: 15, X1: 30, Y1: 30},
		{X0: 490, Y0: 490, X1: 505, Y1: 505},
	}
	for i, r := range rects {
		if !qt.insert(r, i) {
			t.Fatalf("insert %d failed", i)
		}
	}
	got := qt.query(geo.Rect{X0: 0, Y0: 0, X1: 50, Y1: 50})
	seen := map[int]bool{}
	for _, idx := range got {
		seen[idx] = true
	}
	if !seen[0] || !seen[3] || seen[1] || seen[2] {
		t.Fatalf("query = %v", got)
	}
}

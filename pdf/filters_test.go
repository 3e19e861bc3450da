package pdf

import (
	"bytes"
	"encoding/ascii85"
	"testing"
)

func TestFlateRoundTrip(t *testing.T) {
	plain := []byte("BT /F1 12 Tf (some page content) Tj ET")
	s := &Stream{
		Dict: Dict{"Filter": Name("FlateDecode")},
		Raw:  flateEncode(plain),
	}
	got, err := decodeStream(s, nil)
	if err != nil {
		t.Fatalf("decodeStream: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("got %q", got)
	}
}

func TestASCIIHexDecode(t *testing.T) {
	s := &Stream{
		Dict: Dict{"Filter": Name("ASCIIHexDecode")},
		Raw:  []byte("48 65 6C 6C 6F>"),
	}
	got, err := decodeStream(s, nil)
	if err != nil {
		t.Fatalf("decodeStream: %v", err)
	}
	if string(got) != "Hello" {
		t.Fatalf("got %q", got)
	}
}

func TestASCII85Decode(t *testing.T) {
	plain := []byte("redacted output")
	var enc bytes.Buffer
	w := ascii85.NewEncoder(&enc)
	w.Write(plain)
	w.Close()
	enc.WriteString("~>")

	s := &Stream{
		Dict: Dict{"Filter": Name("ASCII85Decode")},
		Raw:  enc.Bytes(),
	}
	got, err := decodeStream(s, nil)
	if err != nil {
		t.Fatalf("decodeStream: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("got %q", got)
	}
}

func TestFilterChainAppliesInOrder(t *testing.T) {
	plain := []byte("chained")
	var enc bytes.Buffer
	w := ascii85.NewEncoder(&enc)
	w.Write(flateEncode(plain))
	w.Close()
	enc.WriteString("~>")

	s := &Stream{
		Dict: Dict{"Filter": Array{Name("ASCII85Decode"), Name("FlateDecode")}},
		Raw:  enc.Bytes(),
	}
	got, err := decodeStream(s, nil)
	if err != nil {
		t.Fatalf("decodeStream: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("got %q", got)
	}
}

func TestUnsupportedFilterFails(t *testing.T) {
	s := &Stream{Dict: Dict{"Filter": Name("DCTDecode")}, Raw: []byte{0xff}}
	if _, err := decodeStream(s, nil); err == nil {
		t.Fatal("expected error for unsupported filter")
	}
}

func TestPNGUpPredictor(t *testing.T) {
	// Two 4-byte rows, both using the Up filter. Decoded row 2 is the
	// cumulative sum of the deltas.
	raw := []byte{
		2, 1, 2, 3, 4,
		2, 1, 1, 1, 1,
	}
	got, err := pngPredictor(raw, 1, 4)
	if err != nil {
		t.Fatalf("pngPredictor: %v", err)
	}
	want := []byte{1, 2, 3, 4, 2, 3, 4, 5}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestPNGSubPredictor(t *testing.T) {
	raw := []byte{1, 10, 5, 5}
	got, err := pngPredictor(raw, 1, 3)
	if err != nil {
		t.Fatalf("pngPredictor: %v", err)
	}
	want := []byte{10, 15, 20}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFlateWithPredictorParms(t *testing.T) {
	// Columns=4, Colors=1, 8 bpc, predictor 12 (PNG Up).
	pre := []byte{
		2, 9, 9, 9, 9,
		2, 0, 0, 0, 1,
	}
	s := &Stream{
		Dict: Dict{
			"Filter": Name("FlateDecode"),
			"DecodeParms": Dict{
				"Predictor": Integer(12),
				"Columns":   Integer(4),
			},
		},
		Raw: flateEncode(pre),
	}
	got, err := decodeStream(s, nil)
	if err != nil {
		t.Fatalf("decodeStream: %v", err)
	}
	want := []byte{9, 9, 9, 9, 9, 9, 9, 10}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

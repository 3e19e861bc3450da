package suggest

import (
	"context"
	"errors"
	"image"
	"regexp"
	"testing"

	"github.com/wudi/redactkit/geo"
)

type fakeRecognizer struct {
	words []Word
	err   error
}

func (f *fakeRecognizer) Words(context.Context, []byte) ([]Word, error) {
	return f.words, f.err
}

func TestSuggestMatchesAndConverts(t *testing.T) {
	rec := &fakeRecognizer{words: []Word{
		{Text: "123-45-6789", Box: geo.Rect{X0: 100, Y0: 100, X1: 300, Y1: 150}, Confidence: 0.9},
		{Text: "harmless", Box: geo.Rect{X0: 0, Y0: 0, X1: 50, Y1: 20}, Confidence: 0.9},
	}}
	e := NewEngine(rec)
	ssn := regexp.MustCompile(`^\d{3}-\d{2}-\d{4}$`)

	got, err := e.Suggest(context.Background(), image.NewRGBA(image.Rect(0, 0, 10, 10)), ssn, 2.0)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d regions", len(got))
	}
	// Pixel box at scale 2 halves into points, then pads by one.
	want := geo.Rect{X0: 49, Y0: 49, X1: 151, Y1: 76}
	if got[0] != want {
		t.Fatalf("region = %+v, want %+v", got[0], want)
	}
}

func TestSuggestConfidenceThreshold(t *testing.T) {
	rec := &fakeRecognizer{words: []Word{
		{Text: "secret", Box: geo.Rect{X1: 10, Y1: 10}, Confidence: 0.2},
	}}
	e := NewEngine(rec)
	e.MinConfidence = 0.5
	got, err := e.Suggest(context.Background(), image.NewRGBA(image.Rect(0, 0, 4, 4)), regexp.MustCompile("secret"), 1.0)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("low-confidence word suggested: %+v", got)
	}
}

func TestSuggestPropagatesRecognizerError(t *testing.T) {
	boom := errors.New("no tesseract")
	e := NewEngine(&fakeRecognizer{err: boom})
	_, err := e.Suggest(context.Background(), image.NewRGBA(image.Rect(0, 0, 4, 4)), regexp.MustCompile("x"), 1.0)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

// Package suggest proposes redaction regions by running OCR over rendered
// pages and matching the recognized words against a pattern. Suggestions are
// returned in document space, ready to feed a redaction plan or to seed the
// annotation store for operator review.
package suggest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"regexp"

	"github.com/wudi/redactkit/coords"
	"github.com/wudi/redactkit/geo"
)

// Word is one recognized token with its box in raster pixels.
type Word struct {
	Text       string
	Box        geo.Rect
	Confidence float64
}

// Recognizer extracts words from an encoded page image.
type Recognizer interface {
	Words(ctx context.Context, pngData []byte) ([]Word, error)
}

// padding in document points added around each matched word, so descenders
// and antialiased edges fall inside the region.
const padding = 1.0

// Engine matches OCR output against patterns.
type Engine struct {
	rec Recognizer

	// MinConfidence drops words below the threshold (0..1). Zero keeps all.
	MinConfidence float64
}

func NewEngine(rec Recognizer) *Engine { return &Engine{rec: rec} }

// Suggest renders-agnostic: it takes an already rasterized page produced at
// the given scale and returns document-space regions covering every word the
// pattern matches.
func (e *Engine) Suggest(ctx context.Context, img image.Image, pattern *regexp.Regexp, scale float64) ([]geo.Rect, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("suggest: encode page: %w", err)
	}
	words, err := e.rec.Words(ctx, buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("suggest: recognize: %w", err)
	}
	var out []geo.Rect
	for _, w := range words {
		if e.MinConfidence > 0 && w.Confidence < e.MinConfidence {
			continue
		}
		if !pattern.MatchString(w.Text) {
			continue
		}
		r := coords.ToDocumentSpace(w.Box, scale)
		r.X0 -= padding
		r.Y0 -= padding
		r.X1 += padding
		r.Y1 += padding
		out = append(out, r)
	}
	return out, nil
}

// Package fitz rasterizes PDF pages through MuPDF. It backs the on-screen
// view while the pdf package owns editing: rendering and mutation never share
// a handle.
package fitz

import (
	"context"
	"fmt"
	"image"
	"sync"

	gofitz "github.com/gen2brain/go-fitz"

	"github.com/wudi/redactkit/document"
)

// Source opens renderers over in-memory document bytes.
type Source struct{}

func NewSource() Source { return Source{} }

func (Source) OpenRenderer(data []byte) (document.Renderer, error) {
	doc, err := gofitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("fitz: open: %w", err)
	}
	return &Renderer{doc: doc}, nil
}

// Renderer rasterizes one open document. MuPDF contexts are not safe for
// concurrent use, so renders serialize through a lock.
type Renderer struct {
	mu  sync.Mutex
	doc *gofitz.Document
}

// RenderPage rasterizes the page at the given scale. Scale 1.0 renders at 72
// dpi, one pixel per point.
func (r *Renderer) RenderPage(ctx context.Context, pageIndex int, scale float64) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if scale <= 0 {
		return nil, fmt.Errorf("fitz: scale %v out of range", scale)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.doc == nil {
		return nil, fmt.Errorf("fitz: renderer closed")
	}
	if pageIndex < 0 || pageIndex >= r.doc.NumPage() {
		return nil, fmt.Errorf("fitz: page %d out of range", pageIndex)
	}
	img, err := r.doc.ImageDPI(pageIndex, 72*scale)
	if err != nil {
		return nil, fmt.Errorf("fitz: render page %d: %w", pageIndex, err)
	}
	return img, nil
}

func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.doc == nil {
		return nil
	}
	err := r.doc.Close()
	r.doc = nil
	return err
}

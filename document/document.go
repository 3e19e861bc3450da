// Package document declares the collaborator interfaces the redaction core
// consumes: an editable document handle, a source that opens one, and a
// raster renderer for on-screen display. The concrete implementations live in
// the pdf and render/fitz packages.
package document

import (
	"context"
	"fmt"
	"image"
	"io"

	"github.com/wudi/redactkit/geo"
)

// SaveOptions controls persistence. Compact rewrites the file so that
// discarded objects do not survive in the output bytes; redacted output must
// always be written compacted.
type SaveOptions struct {
	Compact bool
}

// Document is an exclusively owned, editable handle to an open document.
// Page indices are 0-based and dense. Passing an out-of-range page index is a
// programming error and panics.
//
// Region rectangles are document-space points with the origin at the top-left
// corner of the page, matching the orientation of rendered rasters.
type Document interface {
	PageCount() int

	// PageSize returns the page's width and height in document points.
	PageSize(pageIndex int) (w, h float64)

	// MarkRegionForRemoval queues an opaque black-fill removal region on the
	// page. Nothing is modified until CommitRemovals.
	MarkRegionForRemoval(pageIndex int, r geo.Rect) error

	// CommitRemovals permanently strips the content under the page's queued
	// regions and paints them black. The commit is atomic: on error the page
	// is left unmodified and its queue is preserved.
	CommitRemovals(pageIndex int) error

	// WriteTo serializes the current in-memory state.
	WriteTo(w io.Writer, opts SaveOptions) error

	Close() error
}

// Source opens documents.
type Source interface {
	Open(path string) (Document, error)
	OpenBytes(data []byte) (Document, error)
}

// Renderer rasterizes pages for display. scale 1.0 means 72 dpi (one pixel
// per document point).
type Renderer interface {
	RenderPage(ctx context.Context, pageIndex int, scale float64) (image.Image, error)
	Close() error
}

// RendererSource opens a renderer over raw document bytes, so a session can
// re-render from freshly serialized state after redactions are applied.
type RendererSource interface {
	OpenRenderer(data []byte) (Renderer, error)
}

// OpenError reports an invalid or unreadable input document. The prior
// session state is untouched when it is returned.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("open document: %v", e.Err)
	}
	return fmt.Sprintf("open document %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

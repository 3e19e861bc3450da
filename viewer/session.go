// Package viewer owns one interactive document session: the open handle, the
// annotation store, the gesture controller, the shared coordinate mapper, and
// the current page and zoom. GUI chrome is an external subscriber of the two
// session events, never part of this package.
package viewer

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"sync"
	"sync/atomic"

	"github.com/wudi/redactkit/annotation"
	"github.com/wudi/redactkit/coords"
	"github.com/wudi/redactkit/document"
	"github.com/wudi/redactkit/geo"
	"github.com/wudi/redactkit/interaction"
	"github.com/wudi/redactkit/observability"
	"github.com/wudi/redactkit/redaction"
)

const (
	// DefaultScale is the render scale a freshly loaded document starts at.
	DefaultScale = 2.0
	MinScale     = 0.5
	MaxScale     = 8.0
	zoomStep     = 1.25
)

// PageChangedFunc receives the current page index and total page count.
type PageChangedFunc func(current, total int)

// CountChangedFunc receives the mark count on the current page.
type CountChangedFunc func(count int)

// Session is the single-owner state of one open document. Methods serialize
// through an internal lock: a navigation or apply request issued while an
// earlier operation runs queues behind it, never interleaves.
type Session struct {
	mu sync.Mutex

	src  document.Source
	rsrc document.RendererSource
	log  observability.Logger

	doc      document.Document
	renderer document.Renderer
	data     []byte
	path     string

	store  *annotation.Store
	ctrl   *interaction.Controller
	mapper *coords.Mapper
	engine *redaction.Engine

	// page is atomic so the store's count callback can read it while a
	// locked session method is mutating the store.
	page atomic.Int64

	onPage  PageChangedFunc
	onCount CountChangedFunc
}

func NewSession(src document.Source, rsrc document.RendererSource, log observability.Logger) *Session {
	if log == nil {
		log = observability.NopLogger{}
	}
	store := annotation.NewStore()
	s := &Session{
		src:    src,
		rsrc:   rsrc,
		log:    log,
		store:  store,
		ctrl:   interaction.NewController(store),
		mapper: coords.NewMapper(DefaultScale),
		engine: redaction.NewEngine(log),
	}
	store.SetCountFunc(s.countChanged)
	return s
}

// SetPageChangedFunc registers the page-changed observer.
func (s *Session) SetPageChangedFunc(fn PageChangedFunc) { s.onPage = fn }

// SetCountChangedFunc registers the annotation-count-changed observer.
func (s *Session) SetCountChangedFunc(fn CountChangedFunc) { s.onCount = fn }

// countChanged filters store notifications down to the current page; counts
// on other pages are not surfaced.
func (s *Session) countChanged(page, count int) {
	if page == int(s.page.Load()) && s.onCount != nil {
		s.onCount(count)
	}
}

// LoadDocument opens the file at path and makes it the session's document.
// On failure the prior document, annotations, page and zoom are untouched.
// On success all prior annotations are discarded and the view resets to page
// zero at the default scale.
func (s *Session) LoadDocument(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &document.OpenError{Path: path, Err: err}
	}
	return s.loadBytes(data, path)
}

// LoadBytes opens a document held in memory, for callers that receive
// uploads rather than file paths. Failure semantics match LoadDocument.
func (s *Session) LoadBytes(data []byte, name string) error {
	return s.loadBytes(data, name)
}

func (s *Session) loadBytes(data []byte, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.src.OpenBytes(data)
	if err != nil {
		return &document.OpenError{Path: path, Err: err}
	}
	renderer, err := s.rsrc.OpenRenderer(data)
	if err != nil {
		doc.Close()
		return &document.OpenError{Path: path, Err: err}
	}

	s.closeCurrent()
	s.doc = doc
	s.renderer = renderer
	s.data = data
	s.path = path
	s.page.Store(0)
	s.mapper.SetScale(DefaultScale)
	s.store.Reset()
	s.ctrl.SetPage(0)
	s.ctrl.SetDrawingEnabled(true)

	s.log.Info("document loaded",
		observability.String("path", path),
		observability.Int("pages", doc.PageCount()))
	s.emitPage()
	s.emitCount()
	return nil
}

func (s *Session) closeCurrent() {
	if s.doc != nil {
		s.doc.Close()
		s.doc = nil
	}
	if s.renderer != nil {
		s.renderer.Close()
		s.renderer = nil
	}
	s.data = nil
	s.path = ""
}

// Close releases the document and renderer.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCurrent()
}

func (s *Session) emitPage() {
	if s.onPage != nil && s.doc != nil {
		s.onPage(int(s.page.Load()), s.doc.PageCount())
	}
}

func (s *Session) emitCount() {
	if s.onCount != nil {
		s.onCount(s.store.Count(int(s.page.Load())))
	}
}

// Loaded reports whether a document is open.
func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc != nil
}

func (s *Session) CurrentPage() int {
	return int(s.page.Load())
}

func (s *Session) PageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return 0
	}
	return s.doc.PageCount()
}

func (s *Session) Scale() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapper.Scale()
}

// Path returns the path of the loaded document, if it came from a file.
func (s *Session) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Store exposes the annotation store for the single-threaded input path
// (the gesture controller and its host). The store is not safe for
// concurrent use; callers that may run in parallel go through
// ReplaceAnnotations and AnnotationTotal, which hold the session lock.
func (s *Session) Store() *annotation.Store { return s.store }

// Annotation is one externally supplied mark, in render space at whatever
// scale the client rendered the page at.
type Annotation struct {
	Page int
	Rect geo.Rect
}

// ReplaceAnnotations discards the stored annotation set and stores the given
// one, re-expressing each rectangle at the session scale through document
// space. Reports how many marks were stored and how many were rejected
// (out-of-range page, or below the minimum size at the session scale).
func (s *Session) ReplaceAnnotations(scale float64, regions []Annotation) (accepted, rejected int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pageCount := 0
	if s.doc != nil {
		pageCount = s.doc.PageCount()
	}
	s.store.Reset()
	for _, reg := range regions {
		if reg.Page < 0 || reg.Page >= pageCount {
			rejected++
			continue
		}
		local := coords.ToRenderSpace(coords.ToDocumentSpace(reg.Rect, scale), s.mapper.Scale())
		if s.store.Add(reg.Page, local) {
			accepted++
		} else {
			rejected++
		}
	}
	return accepted, rejected
}

// AnnotationTotal counts stored marks across all pages.
func (s *Session) AnnotationTotal() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, page := range s.store.Pages() {
		total += s.store.Count(page)
	}
	return total
}

// Controller exposes the gesture state machine for the input layer.
func (s *Session) Controller() *interaction.Controller { return s.ctrl }

// GoToPage switches to the given page, finalizing any in-progress gesture
// first. Out-of-range requests are ignored, matching toolbar prev/next
// semantics at the document edges.
func (s *Session) GoToPage(page int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil || page < 0 || page >= s.doc.PageCount() {
		return
	}
	s.ctrl.SetPage(page)
	s.page.Store(int64(page))
	s.emitPage()
	s.emitCount()
}

func (s *Session) NextPage() { s.GoToPage(s.CurrentPage() + 1) }
func (s *Session) PrevPage() { s.GoToPage(s.CurrentPage() - 1) }

// ZoomIn raises the render scale one step, re-expressing all stored marks at
// the new scale through the shared mapper.
func (s *Session) ZoomIn() { s.setScale(s.Scale() * zoomStep) }

// ZoomOut lowers the render scale one step.
func (s *Session) ZoomOut() { s.setScale(s.Scale() / zoomStep) }

func (s *Session) setScale(scale float64) {
	if scale > MaxScale {
		scale = MaxScale
	}
	if scale < MinScale {
		scale = MinScale
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.mapper.Scale()
	if scale == old {
		return
	}
	s.mapper.SetScale(scale)
	s.store.Rescale(old, scale)
}

// RenderCurrentPage rasterizes the current page at the session scale.
func (s *Session) RenderCurrentPage(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.renderer == nil {
		return nil, fmt.Errorf("viewer: no document loaded")
	}
	return s.renderer.RenderPage(ctx, int(s.page.Load()), s.mapper.Scale())
}

// RenderPage rasterizes an arbitrary page at an arbitrary scale, for preview
// and export paths.
func (s *Session) RenderPage(ctx context.Context, page int, scale float64) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.renderer == nil {
		return nil, fmt.Errorf("viewer: no document loaded")
	}
	if s.doc != nil && (page < 0 || page >= s.doc.PageCount()) {
		return nil, fmt.Errorf("viewer: page %d out of range", page)
	}
	return s.renderer.RenderPage(ctx, page, scale)
}

// ApplyRedactions builds a plan from the store at the current scale and
// executes it. On success all annotations are cleared (the marked content is
// gone), the in-memory document bytes are refreshed, and the renderer is
// reopened over them so subsequent renders reflect the removal.
// Returns redaction.ErrEmptyPlan when nothing is marked.
func (s *Session) ApplyRedactions(ctx context.Context) error {
	_, _, err := s.Apply(ctx)
	return err
}

// Apply is ApplyRedactions reporting how many pages and regions the executed
// plan covered.
func (s *Session) Apply(ctx context.Context) (pages, regions int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return 0, 0, fmt.Errorf("viewer: no document loaded")
	}

	// A half-drawn rectangle must not ride into the plan.
	s.ctrl.SetPage(int(s.page.Load()))

	plan, err := redaction.BuildPlan(s.store, s.mapper.Scale())
	if err != nil {
		return 0, 0, err
	}
	if err := s.engine.ApplyPlan(ctx, s.doc, plan); err != nil {
		return 0, 0, err
	}

	var buf bytes.Buffer
	if err := s.doc.WriteTo(&buf, document.SaveOptions{Compact: true}); err != nil {
		return 0, 0, fmt.Errorf("viewer: refresh after apply: %w", err)
	}
	renderer, err := s.rsrc.OpenRenderer(buf.Bytes())
	if err != nil {
		return 0, 0, fmt.Errorf("viewer: reopen renderer: %w", err)
	}
	if s.renderer != nil {
		s.renderer.Close()
	}
	s.renderer = renderer
	s.data = buf.Bytes()

	s.store.Reset()
	s.log.Info("redactions applied",
		observability.Int("pages", len(plan.Pages())),
		observability.Int("regions", plan.Len()))
	s.emitCount()
	return len(plan.Pages()), plan.Len(), nil
}

// SaveAs persists the current in-memory document state to path.
func (s *Session) SaveAs(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return fmt.Errorf("viewer: no document loaded")
	}
	return s.engine.Save(ctx, s.doc, path)
}

// Bytes returns the session's current serialized document state.
func (s *Session) Bytes() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil, fmt.Errorf("viewer: no document loaded")
	}
	var buf bytes.Buffer
	if err := s.doc.WriteTo(&buf, document.SaveOptions{Compact: true}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderAll rasterizes every page at the given scale, in page order. Used by
// the print/export path.
func (s *Session) RenderAll(ctx context.Context, scale float64) ([]image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil || s.renderer == nil {
		return nil, fmt.Errorf("viewer: no document loaded")
	}
	out := make([]image.Image, 0, s.doc.PageCount())
	for i := 0; i < s.doc.PageCount(); i++ {
		img, err := s.renderer.RenderPage(ctx, i, scale)
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", i, err)
		}
		out = append(out, img)
	}
	return out, nil
}

package redaction

import (
	"context"
	"fmt"
	"os"

	"github.com/wudi/redactkit/document"
	"github.com/wudi/redactkit/observability"
)

// Engine executes plans against a document handle.
type Engine struct {
	log    observability.Logger
	tracer observability.Tracer
}

func NewEngine(log observability.Logger) *Engine {
	if log == nil {
		log = observability.NopLogger{}
	}
	return &Engine{log: log, tracer: observability.NopTracer()}
}

// WithTracer installs a tracer for apply/save spans.
func (e *Engine) WithTracer(t observability.Tracer) *Engine {
	if t != nil {
		e.tracer = t
	}
	return e
}

// ApplyPlan removes the planned regions page by page in ascending order.
// Every region on a page is marked before that page commits; commit is
// atomic per page. On failure the error carries the failing page and the
// last page that committed, and no further pages are touched.
//
// A plan referencing a page outside the document's range is an invariant
// violation (plans are built from a store that never holds such pages) and
// panics.
func (e *Engine) ApplyPlan(ctx context.Context, doc document.Document, plan *Plan) error {
	ctx, span := e.tracer.StartSpan(ctx, "redaction.apply")
	defer span.Finish()
	span.SetTag(observability.MetricRegionCount, plan.Len())

	lastCommitted := -1
	for _, page := range plan.Pages() {
		if err := ctx.Err(); err != nil {
			return &RemovalError{Page: page, LastCommitted: lastCommitted, Err: err}
		}
		if page < 0 || page >= doc.PageCount() {
			panic(fmt.Sprintf("redaction: plan page %d outside document range [0,%d)",
				page, doc.PageCount()))
		}
		regions := plan.Regions(page)
		for _, r := range regions {
			if err := doc.MarkRegionForRemoval(page, r); err != nil {
				err = fmt.Errorf("mark region %+v: %w", r, err)
				span.SetError(err)
				return &RemovalError{Page: page, LastCommitted: lastCommitted, Err: err}
			}
		}
		if err := doc.CommitRemovals(page); err != nil {
			span.SetError(err)
			return &RemovalError{Page: page, LastCommitted: lastCommitted, Err: err}
		}
		lastCommitted = page
		e.log.Info("page redacted",
			observability.Int("page", page),
			observability.Int("regions", len(regions)))
	}
	return nil
}

// Save persists the document's current in-memory state to path, compacted so
// removed content does not survive in the output bytes.
func (e *Engine) Save(ctx context.Context, doc document.Document, path string) error {
	_, span := e.tracer.StartSpan(ctx, "redaction.save")
	defer span.Finish()

	f, err := os.Create(path)
	if err != nil {
		span.SetError(err)
		return &SaveError{Path: path, Err: err}
	}
	if err := doc.WriteTo(f, document.SaveOptions{Compact: true}); err != nil {
		f.Close()
		os.Remove(path)
		span.SetError(err)
		return &SaveError{Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		span.SetError(err)
		return &SaveError{Path: path, Err: err}
	}
	e.log.Info("document saved", observability.String("path", path))
	return nil
}

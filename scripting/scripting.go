// Package scripting runs user-supplied JavaScript rules that emit redaction
// regions. A rule sees the document's page inventory and calls addRegion with
// document-space coordinates; the collected regions feed a redaction plan.
package scripting

import (
	"context"
	"fmt"
	"math"

	"github.com/dop251/goja"

	"github.com/wudi/redactkit/geo"
)

// PageInfo is what a rule can inspect about a page.
type PageInfo struct {
	Index  int     `json:"index"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Region is one rule-emitted redaction region in document space.
type Region struct {
	Page int
	Rect geo.Rect
}

// Engine executes rules in a fresh VM per run, so scripts cannot leak state
// into each other.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

// Run evaluates the script and returns the regions it added. Cancelling the
// context interrupts the VM, so runaway scripts cannot hang the caller.
func (e *Engine) Run(ctx context.Context, script string, pages []PageInfo) ([]Region, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vm := goja.New()
	// Scripts address struct fields by their json tag names (pages[0].width,
	// not pages[0].Width).
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	var regions []Region

	if err := vm.Set("pages", pages); err != nil {
		return nil, err
	}
	err := vm.Set("addRegion", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 5 {
			panic(vm.ToValue("addRegion requires page, x, y, width, height"))
		}
		pageIdx := int(call.Arguments[0].ToInteger())
		if pageIdx < 0 || pageIdx >= len(pages) {
			panic(vm.ToValue(fmt.Sprintf("addRegion: page %d out of range", pageIdx)))
		}
		x := call.Arguments[1].ToFloat()
		y := call.Arguments[2].ToFloat()
		w := call.Arguments[3].ToFloat()
		h := call.Arguments[4].ToFloat()
		for _, v := range [4]float64{x, y, w, h} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				panic(vm.ToValue("addRegion: coordinates must be finite"))
			}
		}
		regions = append(regions, Region{
			Page: pageIdx,
			Rect: geo.Rect{X0: x, Y0: y, X1: x + w, Y1: y + h}.Normalized(),
		})
		return goja.Undefined()
	})
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	defer close(done)
	defer vm.ClearInterrupt()
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	if _, err := vm.RunString(script); err != nil {
		if ierr, ok := err.(*goja.InterruptedError); ok {
			if cause, ok := ierr.Value().(error); ok {
				return nil, cause
			}
			return nil, context.Canceled
		}
		return nil, fmt.Errorf("scripting: %w", err)
	}
	return regions, nil
}

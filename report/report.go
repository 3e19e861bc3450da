// Package report renders an audit summary of an applied redaction plan:
// which pages were touched and where. The summary intentionally names region
// coordinates only, never the removed content.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/wudi/redactkit/redaction"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// Report summarizes one apply.
type Report struct {
	Source    string
	Generated time.Time
	Pages     []PageEntry
}

type PageEntry struct {
	Page    int
	Regions []Region
}

type Region struct {
	X, Y, Width, Height float64
}

// Build snapshots the plan into a report. Pages appear in ascending order,
// matching apply order.
func Build(source string, plan *redaction.Plan) Report {
	r := Report{Source: source, Generated: time.Now().UTC()}
	for _, page := range plan.Pages() {
		entry := PageEntry{Page: page}
		for _, rect := range plan.Regions(page) {
			entry.Regions = append(entry.Regions, Region{
				X: rect.X0, Y: rect.Y0, Width: rect.Width(), Height: rect.Height(),
			})
		}
		r.Pages = append(r.Pages, entry)
	}
	return r
}

// TotalRegions counts regions across all pages.
func (r Report) TotalRegions() int {
	n := 0
	for _, p := range r.Pages {
		n += len(p.Regions)
	}
	return n
}

// Markdown renders the report as a Markdown document.
func (r Report) Markdown() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# Redaction Report\n\n")
	fmt.Fprintf(&buf, "- Source: `%s`\n", r.Source)
	fmt.Fprintf(&buf, "- Generated: %s\n", r.Generated.Format(time.RFC3339))
	fmt.Fprintf(&buf, "- Pages touched: %d\n", len(r.Pages))
	fmt.Fprintf(&buf, "- Regions removed: %d\n\n", r.TotalRegions())
	for _, p := range r.Pages {
		fmt.Fprintf(&buf, "## Page %d\n\n", p.Page+1)
		fmt.Fprintf(&buf, "| Region | X | Y | Width | Height |\n")
		fmt.Fprintf(&buf, "|---|---|---|---|---|\n")
		for i, reg := range p.Regions {
			fmt.Fprintf(&buf, "| %d | %.1f | %.1f | %.1f | %.1f |\n",
				i+1, reg.X, reg.Y, reg.Width, reg.Height)
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// HTML renders the Markdown report to HTML.
func (r Report) HTML() ([]byte, error) {
	var buf bytes.Buffer
	if err := markdown.Convert(r.Markdown(), &buf); err != nil {
		return nil, fmt.Errorf("report: render html: %w", err)
	}
	return buf.Bytes(), nil
}

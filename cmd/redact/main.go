// Command redact removes content from PDF regions in batch. Regions come from
// a JSON plan file, from OCR pattern matching, from a JavaScript rule, or any
// combination; the marked content is stripped and painted black, and the
// result is written as a compacted copy next to the input.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"

	"github.com/wudi/redactkit/document"
	"github.com/wudi/redactkit/geo"
	"github.com/wudi/redactkit/observability"
	"github.com/wudi/redactkit/pdf"
	"github.com/wudi/redactkit/redaction"
	fitzrender "github.com/wudi/redactkit/render/fitz"
	"github.com/wudi/redactkit/report"
	"github.com/wudi/redactkit/scripting"
	"github.com/wudi/redactkit/suggest"
)

type options struct {
	pdfPath    string
	outPath    string
	planPath   string
	pattern    string
	scriptPath string
	reportPath string
	reportHTML bool
	scale      float64
	languages  string
	logLevel   string
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "redact: %v\n", err)
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "redact: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: redact [flags] <pdf>\n")
		flag.PrintDefaults()
	}
	plan := flag.String("plan", "", "JSON file of regions to remove (document points, top-left origin)")
	pattern := flag.String("pattern", "", "Regular expression matched against OCR words")
	script := flag.String("script", "", "JavaScript rule emitting regions via addRegion")
	out := flag.String("out", "", "Output path (default <input>_redacted.pdf)")
	reportPath := flag.String("report", "", "Write an audit report to this path")
	reportHTML := flag.Bool("report-html", false, "Render the audit report as HTML instead of Markdown")
	scale := flag.Float64("scale", 2.0, "Render scale for OCR pattern matching")
	languages := flag.String("lang", "", "Comma-separated OCR languages")
	logLevel := flag.String("log", "warn", "Log level: debug, info, warn, error")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return options{}, fmt.Errorf("missing pdf path")
	}
	if *plan == "" && *pattern == "" && *script == "" {
		return options{}, fmt.Errorf("nothing to do: need -plan, -pattern or -script")
	}
	opts.pdfPath = flag.Arg(0)
	opts.outPath = *out
	if opts.outPath == "" {
		base := strings.TrimSuffix(opts.pdfPath, filepath.Ext(opts.pdfPath))
		opts.outPath = base + "_redacted.pdf"
	}
	opts.planPath = *plan
	opts.pattern = *pattern
	opts.scriptPath = *script
	opts.reportPath = *reportPath
	opts.reportHTML = *reportHTML
	opts.scale = *scale
	opts.languages = *languages
	opts.logLevel = *logLevel
	return opts, nil
}

func run(ctx context.Context, opts options) error {
	log := observability.NewStdLogger(observability.ParseLevel(opts.logLevel))

	doc, err := pdf.NewSource().Open(opts.pdfPath)
	if err != nil {
		return err
	}
	defer doc.Close()

	regions := make(map[int][]geo.Rect)
	if opts.planPath != "" {
		if err := loadPlanFile(opts.planPath, doc.PageCount(), regions); err != nil {
			return err
		}
	}
	if opts.pattern != "" {
		if err := matchPattern(ctx, opts, doc, regions); err != nil {
			return err
		}
	}
	if opts.scriptPath != "" {
		if err := runScript(ctx, opts.scriptPath, doc, regions); err != nil {
			return err
		}
	}

	plan, err := redaction.PlanFromRegions(regions)
	if err != nil {
		return err
	}
	engine := redaction.NewEngine(log)
	if err := engine.ApplyPlan(ctx, doc, plan); err != nil {
		return err
	}
	if err := engine.Save(ctx, doc, opts.outPath); err != nil {
		return err
	}
	fmt.Printf("redacted %d regions on %d pages -> %s\n",
		plan.Len(), len(plan.Pages()), opts.outPath)

	if opts.reportPath != "" {
		rep := report.Build(filepath.Base(opts.pdfPath), plan)
		var data []byte
		if opts.reportHTML {
			data, err = rep.HTML()
			if err != nil {
				return err
			}
		} else {
			data = rep.Markdown()
		}
		if err := os.WriteFile(opts.reportPath, data, 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}
	return nil
}

// regionSpec is one plan-file entry, in document points with the origin at
// the page's top-left corner.
type regionSpec struct {
	Page   int     `json:"page"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func loadPlanFile(path string, pageCount int, regions map[int][]geo.Rect) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read plan: %w", err)
	}
	var specs []regionSpec
	if err := json.Unmarshal(data, &specs); err != nil {
		return fmt.Errorf("parse plan: %w", err)
	}
	for i, spec := range specs {
		if spec.Page < 0 || spec.Page >= pageCount {
			return fmt.Errorf("plan entry %d: page %d out of range (document has %d pages)",
				i, spec.Page, pageCount)
		}
		regions[spec.Page] = append(regions[spec.Page], geo.Rect{
			X0: spec.X, Y0: spec.Y, X1: spec.X + spec.Width, Y1: spec.Y + spec.Height,
		}.Normalized())
	}
	return nil
}

func matchPattern(ctx context.Context, opts options, doc document.Document, regions map[int][]geo.Rect) error {
	re, err := regexp.Compile(opts.pattern)
	if err != nil {
		return fmt.Errorf("bad pattern: %w", err)
	}
	data, err := os.ReadFile(opts.pdfPath)
	if err != nil {
		return err
	}
	renderer, err := fitzrender.NewSource().OpenRenderer(data)
	if err != nil {
		return err
	}
	defer renderer.Close()

	rec := suggest.Tesseract{DPI: int(72 * opts.scale)}
	if opts.languages != "" {
		rec.Languages = strings.Split(opts.languages, ",")
	}
	engine := suggest.NewEngine(rec)
	for page := 0; page < doc.PageCount(); page++ {
		img, err := renderer.RenderPage(ctx, page, opts.scale)
		if err != nil {
			return fmt.Errorf("render page %d: %w", page, err)
		}
		found, err := engine.Suggest(ctx, img, re, opts.scale)
		if err != nil {
			return fmt.Errorf("ocr page %d: %w", page, err)
		}
		regions[page] = append(regions[page], found...)
	}
	return nil
}

func runScript(ctx context.Context, path string, doc document.Document, regions map[int][]geo.Rect) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	pages := make([]scripting.PageInfo, doc.PageCount())
	for i := range pages {
		w, h := doc.PageSize(i)
		pages[i] = scripting.PageInfo{Index: i, Width: w, Height: h}
	}
	found, err := scripting.NewEngine().Run(ctx, string(src), pages)
	if err != nil {
		return err
	}
	for _, r := range found {
		regions[r.Page] = append(regions[r.Page], r.Rect)
	}
	return nil
}

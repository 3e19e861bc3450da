// Package render composites annotation overlays onto rasterized pages and
// scales rasters for print and thumbnail output.
package render

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"

	"github.com/wudi/redactkit/annotation"
	"github.com/wudi/redactkit/geo"
)

var (
	fillColor     = color.NRGBA{A: 90}
	borderColor   = color.NRGBA{A: 255}
	selectedColor = color.NRGBA{R: 214, G: 48, B: 49, A: 255}
)

const borderWidth = 2

// Overlay draws the page's marks onto a copy of the raster. Mark rectangles
// are render-space pixels at the scale the raster was produced at. Selected
// marks get a highlighted border.
func Overlay(page image.Image, marks []*annotation.Mark) *image.RGBA {
	out := image.NewRGBA(page.Bounds())
	draw.Draw(out, out.Bounds(), page, page.Bounds().Min, draw.Src)
	for _, m := range marks {
		r := toPixels(m.Rect)
		draw.Draw(out, r.Intersect(out.Bounds()), image.NewUniform(fillColor), image.Point{}, draw.Over)
		bc := borderColor
		if m.Selected {
			bc = selectedColor
		}
		drawBorder(out, r, bc)
	}
	return out
}

// Burn draws the marks as fully opaque black, matching what an applied
// redaction will look like. Used by print and preview output so the operator
// sees the final appearance before committing.
func Burn(page image.Image, rects []geo.Rect) *image.RGBA {
	out := image.NewRGBA(page.Bounds())
	draw.Draw(out, out.Bounds(), page, page.Bounds().Min, draw.Src)
	black := image.NewUniform(color.NRGBA{A: 255})
	for _, r := range rects {
		draw.Draw(out, toPixels(r).Intersect(out.Bounds()), black, image.Point{}, draw.Src)
	}
	return out
}

// ScaleToFit resizes the raster to the largest size that fits inside
// maxW x maxH while keeping its aspect ratio.
func ScaleToFit(img image.Image, maxW, maxH int) *image.RGBA {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 || maxW <= 0 || maxH <= 0 {
		return image.NewRGBA(image.Rect(0, 0, 0, 0))
	}
	fx := float64(maxW) / float64(b.Dx())
	fy := float64(maxH) / float64(b.Dy())
	f := fx
	if fy < f {
		f = fy
	}
	w := int(float64(b.Dx()) * f)
	h := int(float64(b.Dy()) * f)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(out, out.Bounds(), img, b, xdraw.Src, nil)
	return out
}

func toPixels(r geo.Rect) image.Rectangle {
	r = r.Normalized()
	return image.Rect(int(r.X0), int(r.Y0), int(r.X1+0.5), int(r.Y1+0.5))
}

func drawBorder(dst *image.RGBA, r image.Rectangle, c color.NRGBA) {
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+borderWidth),
		image.Rect(r.Min.X, r.Max.Y-borderWidth, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+borderWidth, r.Max.Y),
		image.Rect(r.Max.X-borderWidth, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(dst.Bounds()), src, image.Point{}, draw.Src)
	}
}

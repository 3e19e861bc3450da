package suggest

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"

	"github.com/wudi/redactkit/geo"
)

// Tesseract recognizes words through the gosseract client. Each call uses a
// fresh client: the underlying API is stateful and not safe to share.
type Tesseract struct {
	Languages []string
	DPI       int
}

func (t Tesseract) Words(ctx context.Context, pngData []byte) ([]Word, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := gosseract.NewClient()
	defer c.Close()

	if len(t.Languages) > 0 {
		if err := c.SetLanguage(t.Languages...); err != nil {
			return nil, fmt.Errorf("set languages: %w", err)
		}
	}
	if t.DPI > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(t.DPI)); err != nil {
			return nil, fmt.Errorf("set dpi: %w", err)
		}
	}
	if err := c.SetImageFromBytes(pngData); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("bounding boxes: %w", err)
	}
	words := make([]Word, 0, len(boxes))
	for _, b := range boxes {
		words = append(words, Word{
			Text: b.Word,
			Box: geo.Rect{
				X0: float64(b.Box.Min.X), Y0: float64(b.Box.Min.Y),
				X1: float64(b.Box.Max.X), Y1: float64(b.Box.Max.Y),
			},
			Confidence: b.Confidence / 100,
		})
	}
	return words, nil
}

package normalize

import (
	"bytes"
	"fmt"
	"image"
	"math"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

const defaultVectorSize = 512

// Rasterize renders SVG markup so its longer side is size pixels.
func Rasterize(markup []byte, size int) (Decoded, error) {
	if size <= 0 {
		size = defaultVectorSize
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(markup), oksvg.IgnoreErrorMode)
	if err != nil {
		return Decoded{}, fmt.Errorf("%w: parse svg: %w", ErrUndecodable, err)
	}
	vw, vh := icon.ViewBox.W, icon.ViewBox.H
	if vw <= 0 || vh <= 0 {
		return Decoded{}, fmt.Errorf("%w: svg has no usable viewBox or size", ErrUndecodable)
	}
	scale := float64(size) / math.Max(vw, vh)
	w := int(math.Round(vw * scale))
	h := int(math.Round(vh * scale))
	if w <= 0 || h <= 0 {
		return Decoded{}, fmt.Errorf("%w: svg renders to %dx%d", ErrUndecodable, w, h)
	}

	icon.SetTarget(0, 0, float64(w), float64(h))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1)
	// Markup that only references external symbols draws nothing.
	if !hasVisiblePixel(img) {
		return Decoded{}, fmt.Errorf("%w: svg renders fully transparent", ErrUndecodable)
	}
	return Decoded{Image: img, Format: FormatSVG, Width: w, Height: h}, nil
}

func hasVisiblePixel(img *image.NRGBA) bool {
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0 {
			return true
		}
	}
	return false
}

// Package normalize validates candidate bytes as images and turns the winner
// into the stored artifact.
package normalize

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"strings"

	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/tiff" // register decoder
	_ "golang.org/x/image/webp" // register decoder
)

// Validation failures. The resolver discards the candidate on any of them.
var (
	ErrEmpty       = errors.New("empty asset")
	ErrTooLarge    = errors.New("asset exceeds size limit")
	ErrUndecodable = errors.New("asset is not a decodable image")
	ErrTooSmall    = errors.New("image below minimum dimension")
)

// FormatSVG is reported for rasterized vector input.
const FormatSVG = "svg"

// Decoded is a validated image.
type Decoded struct {
	Image  image.Image
	Format string
	Width  int
	Height int
}

// Validator decodes candidate bytes and enforces size limits.
type Validator struct {
	MinDimension int
	MaxBytes     int64
	// VectorSize is the length of the longer side when rasterizing SVG.
	VectorSize int
}

// Validate decodes data, rasterizing SVG markup, and rejects images whose
// width or height is below MinDimension.
func (v Validator) Validate(data []byte, contentType string) (Decoded, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Decoded{}, ErrEmpty
	}
	if v.MaxBytes > 0 && int64(len(data)) > v.MaxBytes {
		return Decoded{}, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}

	var (
		dec Decoded
		err error
	)
	if IsSVG(data, contentType) {
		dec, err = Rasterize(data, v.VectorSize)
	} else {
		dec, err = v.decodeRaster(data)
	}
	if err != nil {
		return Decoded{}, err
	}
	if dec.Width < v.MinDimension || dec.Height < v.MinDimension {
		return Decoded{}, fmt.Errorf("%w: %dx%d < %d", ErrTooSmall, dec.Width, dec.Height, v.MinDimension)
	}
	return dec, nil
}

func (v Validator) decodeRaster(data []byte) (Decoded, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Decoded{}, fmt.Errorf("%w: %w", ErrUndecodable, err)
	}
	// Reject favicons before paying for a full decode.
	if cfg.Width < v.MinDimension || cfg.Height < v.MinDimension {
		return Decoded{}, fmt.Errorf("%w: %dx%d < %d", ErrTooSmall, cfg.Width, cfg.Height, v.MinDimension)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Decoded{}, fmt.Errorf("%w: %w", ErrUndecodable, err)
	}
	b := img.Bounds()
	return Decoded{Image: img, Format: format, Width: b.Dx(), Height: b.Dy()}, nil
}

// IsSVG reports whether data looks like SVG markup.
func IsSVG(data []byte, contentType string) bool {
	if strings.HasPrefix(strings.ToLower(contentType), "image/svg") {
		return true
	}
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	return bytes.Contains(bytes.ToLower(head), []byte("<svg"))
}

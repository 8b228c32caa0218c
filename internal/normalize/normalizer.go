package normalize

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/srwiley/oksvg"

	"github.com/JakeFAU/logo-resolver/internal/hash/sha256"
	"github.com/JakeFAU/logo-resolver/internal/logo"
)

// Output encodings.
const (
	EncodingPNG  = "png"
	EncodingJPEG = "jpeg"
)

const suffixLen = 8

// Options controls the stored representation.
type Options struct {
	// OutputEncoding is used when the source format is not png or jpeg.
	OutputEncoding string
	// Background fills transparent pixels when flattening to an opaque encoding.
	Background  color.Color
	JPEGQuality int
	// Hasher digests the encoded bytes. Defaults to SHA-256.
	Hasher logo.Hasher
}

// Normalizer encodes validated images and writes them to a sink.
type Normalizer struct {
	opts Options
	sink logo.ContentSink
	ids  logo.IDGenerator
}

// New builds a Normalizer. ids must produce random identifiers; the first
// eight hex digits become the artifact suffix.
func New(opts Options, sink logo.ContentSink, ids logo.IDGenerator) *Normalizer {
	opts.OutputEncoding = canonicalEncoding(opts.OutputEncoding)
	if opts.OutputEncoding == "" {
		opts.OutputEncoding = EncodingPNG
	}
	if opts.Background == nil {
		opts.Background = color.White
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = jpeg.DefaultQuality
	}
	if opts.Hasher == nil {
		opts.Hasher = sha256.New()
	}
	return &Normalizer{opts: opts, sink: sink, ids: ids}
}

// ParseColor accepts SVG color syntax: #rgb, #rrggbb, rgb(r,g,b) or a named color.
func ParseColor(raw string) (color.Color, error) {
	c, err := oksvg.ParseSVGColor(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parse color %q: %w", raw, err)
	}
	if c == nil {
		return nil, fmt.Errorf("parse color %q: no color", raw)
	}
	return c, nil
}

// TargetEncoding picks the stored encoding for a source format.
func (n *Normalizer) TargetEncoding(sourceFormat string) string {
	if enc := canonicalEncoding(sourceFormat); enc != "" {
		return enc
	}
	return n.opts.OutputEncoding
}

// Encode converts img into the target encoding. Opaque targets are flattened
// onto the configured background.
func (n *Normalizer) Encode(dec Decoded) ([]byte, string, error) {
	target := n.TargetEncoding(dec.Format)
	var buf bytes.Buffer
	switch target {
	case EncodingJPEG:
		if err := jpeg.Encode(&buf, Flatten(dec.Image, n.opts.Background), &jpeg.Options{Quality: n.opts.JPEGQuality}); err != nil {
			return nil, "", fmt.Errorf("encode jpeg: %w", err)
		}
	default:
		if err := png.Encode(&buf, toNRGBA(dec.Image)); err != nil {
			return nil, "", fmt.Errorf("encode png: %w", err)
		}
	}
	return buf.Bytes(), target, nil
}

// Persist encodes dec, names it after domain, and stores it in the sink.
func (n *Normalizer) Persist(ctx context.Context, domain string, dec Decoded) (*logo.Artifact, error) {
	data, format, err := n.Encode(dec)
	if err != nil {
		return nil, err
	}
	digest, err := n.opts.Hasher.Hash(data)
	if err != nil {
		return nil, fmt.Errorf("digest artifact: %w", err)
	}
	id, err := n.ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("artifact suffix: %w", err)
	}
	name := ArtifactName(domain, id, Extension(format))
	contentType := ContentType(format)
	location, err := n.sink.Store(ctx, name, contentType, data)
	if err != nil {
		return nil, fmt.Errorf("store artifact %s: %w", name, err)
	}
	return &logo.Artifact{
		Name:        name,
		Location:    location,
		Format:      format,
		ContentType: contentType,
		Width:       dec.Width,
		Height:      dec.Height,
		Size:        len(data),
		Digest:      digest,
		Bytes:       data,
	}, nil
}

// ArtifactName builds `<domain with dots as underscores>_<suffix>.<ext>` from
// the first eight hex digits of id.
func ArtifactName(domain, id, ext string) string {
	suffix := strings.ReplaceAll(id, "-", "")
	if len(suffix) > suffixLen {
		suffix = suffix[:suffixLen]
	}
	base := strings.ReplaceAll(strings.ToLower(domain), ".", "_")
	if base == "" {
		base = "unknown"
	}
	return fmt.Sprintf("%s_%s.%s", base, suffix, ext)
}

// Extension maps an encoding to its file extension.
func Extension(format string) string {
	if format == EncodingJPEG {
		return "jpg"
	}
	return format
}

// ContentType maps an encoding to its MIME type.
func ContentType(format string) string {
	if format == EncodingJPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// Flatten composites img over an opaque background of color bg.
func Flatten(img image.Image, bg color.Color) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(opaque(bg)), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Bounds().Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

func opaque(c color.Color) color.Color {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	n.A = 0xff
	return n
}

func canonicalEncoding(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "png":
		return EncodingPNG
	case "jpeg", "jpg":
		return EncodingJPEG
	default:
		return ""
	}
}

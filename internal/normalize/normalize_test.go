package normalize

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/logo-resolver/internal/id/uuid"
)

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestValidateRaster(t *testing.T) {
	t.Parallel()

	v := Validator{MinDimension: 16, MaxBytes: 1 << 20}
	dec, err := v.Validate(pngBytes(t, 32, 20, color.Black), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "png", dec.Format)
	assert.Equal(t, 32, dec.Width)
	assert.Equal(t, 20, dec.Height)
}

func TestValidateRejects(t *testing.T) {
	t.Parallel()

	v := Validator{MinDimension: 16, MaxBytes: 1 << 20}
	tests := []struct {
		name string
		v    Validator
		data []byte
		want error
	}{
		{name: "empty", v: v, data: nil, want: ErrEmpty},
		{name: "too small", v: v, data: pngBytes(t, 10, 10, color.Black), want: ErrTooSmall},
		{name: "garbage", v: v, data: []byte("definitely not an image"), want: ErrUndecodable},
		{name: "too large", v: Validator{MinDimension: 16, MaxBytes: 64}, data: bytes.Repeat([]byte{1}, 65), want: ErrTooLarge},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := tc.v.Validate(tc.data, "")
			if !errors.Is(err, tc.want) {
				t.Fatalf("Validate() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestValidateRasterizesSVG(t *testing.T) {
	t.Parallel()

	markup := `<svg viewBox="0 0 100 50"><rect width="100" height="50" fill="#ff0000"></rect></svg>`
	v := Validator{MinDimension: 16, VectorSize: 200}
	dec, err := v.Validate([]byte(markup), "")
	require.NoError(t, err)
	assert.Equal(t, FormatSVG, dec.Format)
	assert.Equal(t, 200, dec.Width)
	assert.Equal(t, 100, dec.Height)

	px := color.NRGBAModel.Convert(dec.Image.At(100, 50)).(color.NRGBA)
	assertNear(t, color.NRGBA{255, 0, 0, 255}, px)
	assert.Greater(t, px.A, uint8(240))
}

func TestValidateSVGWithoutGeometry(t *testing.T) {
	t.Parallel()

	_, err := Validator{MinDimension: 16}.Validate([]byte(`<svg><title>logo</title></svg>`), "image/svg+xml")
	assert.ErrorIs(t, err, ErrUndecodable)
}

func TestValidateRejectsBlankSVG(t *testing.T) {
	t.Parallel()

	markup := `<svg class="site-logo" viewBox="0 0 200 40"><use href="#logo-sprite"></use></svg>`
	_, err := Validator{MinDimension: 16}.Validate([]byte(markup), "")
	assert.ErrorIs(t, err, ErrUndecodable)
}

func TestValidateSVGAspectBelowMinimum(t *testing.T) {
	t.Parallel()

	markup := `<svg width="1000" height="10"><rect width="1000" height="10"></rect></svg>`
	_, err := Validator{MinDimension: 16, VectorSize: 512}.Validate([]byte(markup), "")
	assert.ErrorIs(t, err, ErrTooSmall)
}

func TestIsSVG(t *testing.T) {
	t.Parallel()

	assert.True(t, IsSVG([]byte("whatever"), "image/svg+xml; charset=utf-8"))
	assert.True(t, IsSVG([]byte(`<?xml version="1.0"?><SVG></SVG>`), ""))
	assert.False(t, IsSVG(pngBytes(t, 16, 16, color.White), "image/png"))
}

func TestEncodeKeepsAllowedSourceFormat(t *testing.T) {
	t.Parallel()

	n := New(Options{OutputEncoding: "jpeg"}, nil, nil)
	dec, err := Validator{MinDimension: 1}.Validate(pngBytes(t, 20, 20, color.NRGBA{0, 0, 0, 0}), "")
	require.NoError(t, err)

	data, format, err := n.Encode(dec)
	require.NoError(t, err)
	assert.Equal(t, EncodingPNG, format)

	out, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	_, _, _, a := out.At(5, 5).RGBA()
	assert.Zero(t, a, "png output keeps transparency")
}

func TestEncodeFlattensAlphaOntoBackground(t *testing.T) {
	t.Parallel()

	// A transparent GIF is not in the allow-list, so it is re-encoded.
	palette := color.Palette{color.Transparent, color.NRGBA{0, 0, 255, 255}}
	src := image.NewPaletted(image.Rect(0, 0, 32, 32), palette)
	for x := 0; x < 32; x++ {
		src.SetColorIndex(x, 31, 1)
	}
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, src, nil))

	dec, err := Validator{MinDimension: 16}.Validate(buf.Bytes(), "image/gif")
	require.NoError(t, err)
	require.Equal(t, "gif", dec.Format)

	for _, tc := range []struct {
		name string
		bg   string
		want color.NRGBA
	}{
		{name: "white", bg: "#ffffff", want: color.NRGBA{255, 255, 255, 255}},
		{name: "red", bg: "red", want: color.NRGBA{255, 0, 0, 255}},
	} {
		bg, err := ParseColor(tc.bg)
		require.NoError(t, err)
		n := New(Options{OutputEncoding: "jpeg", Background: bg, JPEGQuality: 95}, nil, nil)
		data, format, err := n.Encode(dec)
		require.NoError(t, err, tc.name)
		require.Equal(t, EncodingJPEG, format)

		out, err := jpeg.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		got := color.NRGBAModel.Convert(out.At(8, 8)).(color.NRGBA)
		assertNear(t, tc.want, got)
	}
}

func TestFlattenNeverLeavesBlack(t *testing.T) {
	t.Parallel()

	src := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	out := Flatten(src, color.White)
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, out.RGBAAt(0, 0))

	// Semi-transparent pixels blend with the background.
	src.SetNRGBA(1, 1, color.NRGBA{0, 0, 0, 128})
	out = Flatten(src, color.White)
	px := out.RGBAAt(1, 1)
	assert.InDelta(t, 127, int(px.R), 2)
	assert.Equal(t, uint8(255), px.A)
}

func TestPersistNamesAreUnique(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	n := New(Options{}, sink, uuid.NewRandom())
	dec, err := Validator{MinDimension: 16}.Validate(pngBytes(t, 16, 16, color.White), "")
	require.NoError(t, err)

	first, err := n.Persist(context.Background(), "www.example.com", dec)
	require.NoError(t, err)
	second, err := n.Persist(context.Background(), "www.example.com", dec)
	require.NoError(t, err)

	assert.NotEqual(t, first.Name, second.Name)
	assert.True(t, strings.HasPrefix(first.Name, "www_example_com_"))
	assert.True(t, strings.HasSuffix(first.Name, ".png"))
	assert.Len(t, strings.TrimSuffix(strings.TrimPrefix(first.Name, "www_example_com_"), ".png"), 8)
	assert.Equal(t, "mem://"+first.Name, first.Location)
	assert.Equal(t, "image/png", first.ContentType)
	assert.Len(t, first.Digest, 64)
	assert.Equal(t, len(first.Bytes), first.Size)
	assert.Len(t, sink.names, 2)
}

func TestPersistPropagatesSinkError(t *testing.T) {
	t.Parallel()

	n := New(Options{}, &recordingSink{err: errors.New("disk full")}, uuid.NewRandom())
	dec, err := Validator{MinDimension: 16}.Validate(pngBytes(t, 16, 16, color.White), "")
	require.NoError(t, err)
	_, err = n.Persist(context.Background(), "a.com", dec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestPersistUsesHasher(t *testing.T) {
	t.Parallel()

	dec, err := Validator{MinDimension: 16}.Validate(pngBytes(t, 16, 16, color.White), "")
	require.NoError(t, err)

	n := New(Options{Hasher: stubHasher{digest: "cafe"}}, &recordingSink{}, uuid.NewRandom())
	art, err := n.Persist(context.Background(), "a.com", dec)
	require.NoError(t, err)
	assert.Equal(t, "cafe", art.Digest)

	sink := &recordingSink{}
	n = New(Options{Hasher: stubHasher{err: errors.New("hash down")}}, sink, uuid.NewRandom())
	_, err = n.Persist(context.Background(), "a.com", dec)
	require.ErrorContains(t, err, "hash down")
	assert.Empty(t, sink.names, "nothing is stored when the digest fails")
}

func TestArtifactName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "www_example_com_1234abcd.png", ArtifactName("www.Example.com", "1234abcd-ef00-4000-8000-000000000000", "png"))
	assert.Equal(t, "unknown_ab.jpg", ArtifactName("", "ab", Extension(EncodingJPEG)))
}

func TestParseColor(t *testing.T) {
	t.Parallel()

	c, err := ParseColor("#fff")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, c)

	for _, bad := range []string{"", "none", "zzz", "#12"} {
		if _, err := ParseColor(bad); err == nil {
			t.Fatalf("ParseColor(%q) expected error", bad)
		}
	}
}

func TestNewDefaults(t *testing.T) {
	t.Parallel()

	n := New(Options{OutputEncoding: "JPG"}, nil, nil)
	assert.Equal(t, EncodingJPEG, n.TargetEncoding("webp"))
	assert.Equal(t, EncodingPNG, n.TargetEncoding("png"))

	n = New(Options{OutputEncoding: "bogus"}, nil, nil)
	assert.Equal(t, EncodingPNG, n.TargetEncoding(FormatSVG))
}

func assertNear(t *testing.T, want, got color.NRGBA) {
	t.Helper()
	diff := func(a, b uint8) int {
		if a > b {
			return int(a - b)
		}
		return int(b - a)
	}
	if diff(want.R, got.R) > 8 || diff(want.G, got.G) > 8 || diff(want.B, got.B) > 8 {
		t.Fatalf("color %v not within tolerance of %v", got, want)
	}
}

type recordingSink struct {
	mu    sync.Mutex
	names []string
	err   error
}

func (r *recordingSink) Store(_ context.Context, name, _ string, _ []byte) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
	return "mem://" + name, nil
}

type stubHasher struct {
	digest string
	err    error
}

func (s stubHasher) Hash([]byte) (string, error) {
	return s.digest, s.err
}

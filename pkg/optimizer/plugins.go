package optimizer

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color/palette"
	"image/png"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"

	"github.com/menta2k/appropriate-images/pkg/naming"
	"github.com/menta2k/appropriate-images/pkg/types"
)

// Plugin recompresses one staged file. Ext maps the staged extension to the
// extension the plugin writes.
type Plugin interface {
	Name() string
	Accepts(ext string) bool
	Ext(srcExt string) string
	Optimize(ctx context.Context, data []byte) ([]byte, error)
}

// PNG losslessly recompresses PNG files, optionally quantizing opaque images
// to a dithered palette. The smaller of input and output is kept.
type PNG struct {
	Options types.PNGOptions
}

func (PNG) Name() string { return "png" }
func (PNG) Accepts(ext string) bool { return strings.EqualFold(ext, ".png") }
func (PNG) Ext(srcExt string) string { return srcExt }

func (p PNG) Optimize(ctx context.Context, data []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode png: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if p.Options.Quantize && isOpaque(img) {
		paletted := image.NewPaletted(img.Bounds(), palette.Plan9)
		draw.FloydSteinberg.Draw(paletted, img.Bounds(), img, img.Bounds().Min)
		img = paletted
	}

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: compressionLevel(p.Options.CompressionLevel)}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	if buf.Len() >= len(data) {
		return data, nil
	}
	return buf.Bytes(), nil
}

func compressionLevel(name string) png.CompressionLevel {
	switch name {
	case "none":
		return png.NoCompression
	case "speed":
		return png.BestSpeed
	case "default":
		return png.DefaultCompression
	default:
		return png.BestCompression
	}
}

func isOpaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}

// JPEG re-encodes JPEG files at the configured quality
type JPEG struct {
	Options types.JPEGOptions
}

func (JPEG) Name() string { return "jpeg" }
func (JPEG) Ext(srcExt string) string { return srcExt }

func (JPEG) Accepts(ext string) bool {
	return strings.EqualFold(ext, ".jpg") || strings.EqualFold(ext, ".jpeg")
}

func (j JPEG) Optimize(ctx context.Context, data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode jpeg: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	quality := j.Options.Quality
	if quality <= 0 {
		quality = 75
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// WebP encodes any decodable staged file as WebP
type WebP struct {
	Options types.WebPOptions
}

func (WebP) Name() string { return "webp" }
func (WebP) Ext(string) string { return naming.WebPExt }

func (WebP) Accepts(ext string) bool {
	if strings.EqualFold(ext, naming.WebPExt) {
		return true
	}
	_, err := imaging.FormatFromExtension(ext)
	return err == nil
}

func (w WebP) Optimize(ctx context.Context, data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		var werr error
		if img, werr = webp.Decode(bytes.NewReader(data)); werr != nil {
			return nil, fmt.Errorf("failed to decode image: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	quality := w.Options.Quality
	if quality <= 0 {
		quality = 75
	}
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Lossless: w.Options.Lossless, Quality: float32(quality)}); err != nil {
		return nil, fmt.Errorf("failed to encode webp: %w", err)
	}
	return buf.Bytes(), nil
}

// Passthrough copies files no other plugin handles
type Passthrough struct{}

func (Passthrough) Name() string { return "passthrough" }
func (Passthrough) Accepts(string) bool { return true }
func (Passthrough) Ext(srcExt string) string { return srcExt }

func (Passthrough) Optimize(_ context.Context, data []byte) ([]byte, error) {
	return data, nil
}

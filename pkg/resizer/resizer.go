// Package resizer turns decoded source images into sized variants. The
// pipeline only sees the Resizer interface; Imaging is the implementation
// backed by github.com/disintegration/imaging.
package resizer

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/appropriate-images/pkg/cropper"
	"github.com/menta2k/appropriate-images/pkg/types"
)

// Resizer decodes a source once and renders any number of sizes from it.
// Check reports directives outside the resizer's vocabulary before any work.
type Resizer interface {
	Check(size types.SizeSpec) error
	Decode(data []byte) (image.Image, error)
	Resize(ctx context.Context, img image.Image, size types.SizeSpec) (image.Image, error)
	Encode(img image.Image, ext string) ([]byte, error)
}

// Config holds configuration for the imaging resizer
type Config struct {
	Filter imaging.ResampleFilter
	// JPEGQuality is used for staged JPEG variants; the optimizer recompresses them.
	JPEGQuality int
	AutoOrient  bool
}

// DefaultConfig returns the resizer defaults
func DefaultConfig() Config {
	return Config{
		Filter:      imaging.Lanczos,
		JPEGQuality: 95,
		AutoOrient:  true,
	}
}

// Imaging implements Resizer with disintegration/imaging
type Imaging struct {
	config  Config
	cropper *cropper.SmartCropper
}

// New creates a resizer with default configuration
func New() *Imaging {
	return NewWithConfig(DefaultConfig(), cropper.New())
}

// NewWithConfig creates a resizer with custom configuration and cropper
func NewWithConfig(config Config, smartCropper *cropper.SmartCropper) *Imaging {
	if config.JPEGQuality <= 0 {
		config.JPEGQuality = DefaultConfig().JPEGQuality
	}
	if smartCropper == nil {
		smartCropper = cropper.NewWithConfig(cropper.CropConfig{Filter: config.Filter})
	}
	return &Imaging{config: config, cropper: smartCropper}
}

// Check validates the size's directive. Unknown crop names match
// cropper.ErrUnknownCrop.
func (r *Imaging) Check(size types.SizeSpec) error {
	_, err := parseOptions(size.Directive)
	return err
}

// Decode decodes image bytes, falling back to an explicit WebP decode
func (r *Imaging) Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(r.config.AutoOrient))
	if err == nil {
		return img, nil
	}
	if img, werr := webp.Decode(bytes.NewReader(data)); werr == nil {
		return img, nil
	}
	return nil, fmt.Errorf("failed to decode image: %w", err)
}

// Resize renders one size. Width alone scales proportionally. Width and height
// cover-crop using the size's crop strategy unless the options bag picks
// another fit.
func (r *Imaging) Resize(ctx context.Context, img image.Image, size types.SizeSpec) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if size.Width <= 0 {
		return nil, fmt.Errorf("invalid width %d", size.Width)
	}

	opts, err := parseOptions(size.Directive)
	if err != nil {
		return nil, err
	}
	filter := r.config.Filter
	if opts.filter != nil {
		filter = *opts.filter
	}

	width, height := size.Width, size.Height
	bounds := img.Bounds()
	if opts.withoutEnlargement && width >= bounds.Dx() && (height == 0 || height >= bounds.Dy()) {
		return imaging.Clone(img), nil
	}

	if height == 0 {
		return imaging.Resize(img, width, 0, filter), nil
	}

	switch opts.fit {
	case "contain":
		fitted := imaging.Fit(img, width, height, filter)
		return imaging.PasteCenter(imaging.New(width, height, color.NRGBA{}), fitted), nil
	case "fill":
		return imaging.Resize(img, width, height, filter), nil
	case "inside":
		return imaging.Fit(img, width, height, filter), nil
	default:
		return r.cropper.Fill(ctx, img, width, height, opts.crop)
	}
}

// Encode encodes a staged variant in the format implied by ext
func (r *Imaging) Encode(img image.Image, ext string) ([]byte, error) {
	var buf bytes.Buffer
	if strings.EqualFold(ext, ".webp") {
		if err := webp.Encode(&buf, img, &webp.Options{Lossless: true}); err != nil {
			return nil, fmt.Errorf("failed to encode webp: %w", err)
		}
		return buf.Bytes(), nil
	}

	format, err := imaging.FormatFromExtension(ext)
	if err != nil {
		return nil, fmt.Errorf("unsupported output format %q: %w", ext, err)
	}
	err = imaging.Encode(&buf, img, format,
		imaging.JPEGQuality(r.config.JPEGQuality),
		imaging.PNGCompressionLevel(png.BestSpeed),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

type resizeOptions struct {
	fit                string
	crop               cropper.Crop
	filter             *imaging.ResampleFilter
	withoutEnlargement bool
}

var filters = map[string]imaging.ResampleFilter{
	"lanczos":    imaging.Lanczos,
	"linear":     imaging.Linear,
	"catmullrom": imaging.CatmullRom,
	"nearest":    imaging.NearestNeighbor,
	"box":        imaging.Box,
}

// parseOptions reads the keys of the directive this resizer understands and
// ignores the rest.
func parseOptions(d types.Directive) (resizeOptions, error) {
	crop, err := cropper.FromDirective(d)
	if err != nil {
		return resizeOptions{}, err
	}
	opts := resizeOptions{fit: "cover", crop: crop}
	if d.Kind != types.DirectiveOptions {
		return opts, nil
	}

	if fit, ok := d.Options["fit"].(string); ok {
		switch fit {
		case "cover", "contain", "fill", "inside":
			opts.fit = fit
		default:
			return resizeOptions{}, fmt.Errorf("unsupported fit %q", fit)
		}
	}
	if name, ok := d.Options["filter"].(string); ok {
		filter, known := filters[strings.ToLower(name)]
		if !known {
			return resizeOptions{}, fmt.Errorf("unsupported filter %q", name)
		}
		opts.filter = &filter
	}
	if v, ok := d.Options["withoutEnlargement"].(bool); ok {
		opts.withoutEnlargement = v
	}
	return opts, nil
}

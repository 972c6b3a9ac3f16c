package cropper

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"sort"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/menta2k/appropriate-images/pkg/types"
	"github.com/menta2k/appropriate-images/pkg/vision"
)

// ErrUnknownCrop is returned for crop names no strategy answers to.
var ErrUnknownCrop = errors.New("unknown crop value")

// UnknownCropError names the rejected crop value
type UnknownCropError struct {
	Value string
}

func (e *UnknownCropError) Error() string {
	return fmt.Sprintf("%q is not a valid crop value", e.Value)
}

func (e *UnknownCropError) Is(target error) bool {
	return target == ErrUnknownCrop
}

// Kind selects how the crop window is placed
type Kind int

const (
	// KindAnchor places the window at a fixed position.
	KindAnchor Kind = iota
	// KindEntropy keeps the window with the most luminance entropy.
	KindEntropy
	// KindAttention centers the window on the located subject.
	KindAttention
)

// Crop is a resolved crop strategy
type Crop struct {
	Name   string
	Kind   Kind
	Anchor imaging.Anchor
}

// Center is the crop used when none is requested.
var Center = Crop{Name: "center", Kind: KindAnchor, Anchor: imaging.Center}

var strategies = map[string]Crop{
	"north":     {Name: "north", Kind: KindAnchor, Anchor: imaging.Top},
	"northeast": {Name: "northeast", Kind: KindAnchor, Anchor: imaging.TopRight},
	"east":      {Name: "east", Kind: KindAnchor, Anchor: imaging.Right},
	"southeast": {Name: "southeast", Kind: KindAnchor, Anchor: imaging.BottomRight},
	"south":     {Name: "south", Kind: KindAnchor, Anchor: imaging.Bottom},
	"southwest": {Name: "southwest", Kind: KindAnchor, Anchor: imaging.BottomLeft},
	"west":      {Name: "west", Kind: KindAnchor, Anchor: imaging.Left},
	"northwest": {Name: "northwest", Kind: KindAnchor, Anchor: imaging.TopLeft},
	"center":    Center,
	"centre":    {Name: "centre", Kind: KindAnchor, Anchor: imaging.Center},
	"entropy":   {Name: "entropy", Kind: KindEntropy},
	"attention": {Name: "attention", Kind: KindAttention},
}

// Names returns every accepted crop name, sorted
func Names() []string {
	names := make([]string, 0, len(strategies))
	for name := range strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve maps a crop name onto its strategy
func Resolve(name string) (Crop, error) {
	crop, ok := strategies[strings.ToLower(name)]
	if !ok {
		return Crop{}, &UnknownCropError{Value: name}
	}
	return crop, nil
}

// FromDirective resolves the crop carried by a size directive: the name of a
// named directive, or the "position" key of an options bag. Anything else
// yields Center.
func FromDirective(d types.Directive) (Crop, error) {
	switch d.Kind {
	case types.DirectiveNamed:
		return Resolve(d.Name)
	case types.DirectiveOptions:
		raw, ok := d.Options["position"]
		if !ok {
			return Center, nil
		}
		name, ok := raw.(string)
		if !ok {
			return Crop{}, &UnknownCropError{Value: fmt.Sprint(raw)}
		}
		return Resolve(name)
	case types.DirectiveNone:
		return Center, nil
	}
	return Center, nil
}

// SubjectLocator finds the main subject of an image as a normalized box
type SubjectLocator interface {
	Locate(ctx context.Context, img image.Image) (types.Box, error)
}

// SmartCropper fills a target size from an image using a crop strategy
type SmartCropper struct {
	locator SubjectLocator
	config  CropConfig
}

// CropConfig holds configuration for smart cropping
type CropConfig struct {
	Filter imaging.ResampleFilter
	// EntropySteps is how many window positions the entropy strategy tries.
	EntropySteps int
}

// New creates a new SmartCropper with default configuration
func New() *SmartCropper {
	return NewWithConfig(CropConfig{Filter: imaging.Lanczos, EntropySteps: 16})
}

// NewWithConfig creates a new SmartCropper with custom configuration
func NewWithConfig(config CropConfig) *SmartCropper {
	if config.EntropySteps <= 0 {
		config.EntropySteps = 16
	}
	return &SmartCropper{
		locator: vision.New(),
		config:  config,
	}
}

// SetLocator replaces the subject locator used by the attention strategy
func (c *SmartCropper) SetLocator(locator SubjectLocator) {
	c.locator = locator
}

// Fill resizes img to cover width x height and crops the overflow according
// to crop.
func (c *SmartCropper) Fill(ctx context.Context, img image.Image, width, height int, crop Crop) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	}
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, fmt.Errorf("invalid image dimensions")
	}

	switch crop.Kind {
	case KindAnchor:
		return imaging.Fill(img, width, height, crop.Anchor, c.config.Filter), nil
	case KindEntropy:
		return c.fillEntropy(img, width, height), nil
	case KindAttention:
		return c.fillAttention(ctx, img, width, height)
	}
	return nil, fmt.Errorf("unsupported crop kind %d", crop.Kind)
}

func (c *SmartCropper) fillEntropy(img image.Image, width, height int) image.Image {
	resized := coverResize(img, width, height, c.config.Filter)
	rw, rh := resized.Bounds().Dx(), resized.Bounds().Dy()

	best := image.Rect(0, 0, width, height)
	bestScore := -1.0
	try := func(r image.Rectangle) {
		if score := vision.Entropy(resized, r); score > bestScore {
			best, bestScore = r, score
		}
	}

	switch {
	case rw > width:
		for _, x := range positions(rw-width, c.config.EntropySteps) {
			try(image.Rect(x, 0, x+width, height))
		}
	case rh > height:
		for _, y := range positions(rh-height, c.config.EntropySteps) {
			try(image.Rect(0, y, width, y+height))
		}
	}
	return imaging.Crop(resized, best)
}

func (c *SmartCropper) fillAttention(ctx context.Context, img image.Image, width, height int) (image.Image, error) {
	box, err := c.locator.Locate(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("failed to locate subject: %w", err)
	}

	bounds := img.Bounds()
	cx, cy := box.Center()
	cropBox := CalculateCropBox(cx, cy, width, height, bounds.Dx(), bounds.Dy(), 1)
	cropped, err := CropToBox(img, cropBox)
	if err != nil {
		return nil, err
	}
	return imaging.Fill(cropped, width, height, imaging.Center, c.config.Filter), nil
}

// CalculateCropBox returns the largest box with the target aspect ratio, scaled
// by zoom, that is centered as close to (centerX, centerY) as the image allows.
// Coordinates are normalized.
func CalculateCropBox(centerX, centerY float64, targetWidth, targetHeight, imgWidth, imgHeight int, zoom float64) types.Box {
	if zoom <= 0 {
		zoom = 1
	}
	ratio := float64(targetWidth) / float64(targetHeight)
	fw, fh := float64(imgWidth), float64(imgHeight)

	widthPx := math.Min(fw, ratio*fh) * clamp(zoom, 0.01, 1)
	heightPx := widthPx / ratio

	x0 := clamp(centerX*fw-widthPx/2, 0, fw-widthPx)
	y0 := clamp(centerY*fh-heightPx/2, 0, fh-heightPx)

	return types.Box{
		X: x0 / fw,
		Y: y0 / fh,
		W: widthPx / fw,
		H: heightPx / fh,
	}
}

// CropToBox crops img to a normalized box
func CropToBox(img image.Image, box types.Box) (image.Image, error) {
	bounds := img.Bounds()
	fw, fh := float64(bounds.Dx()), float64(bounds.Dy())

	x0 := bounds.Min.X + int(clamp(box.X, 0, 1)*fw+0.5)
	y0 := bounds.Min.Y + int(clamp(box.Y, 0, 1)*fh+0.5)
	x1 := bounds.Min.X + int(clamp(box.X+box.W, 0, 1)*fw+0.5)
	y1 := bounds.Min.Y + int(clamp(box.Y+box.H, 0, 1)*fh+0.5)

	rect := image.Rect(x0, y0, x1, y1).Intersect(bounds)
	if rect.Empty() {
		return nil, fmt.Errorf("empty crop rectangle")
	}
	return imaging.Crop(img, rect), nil
}

// coverResize scales img so it covers width x height, keeping its aspect ratio
func coverResize(img image.Image, width, height int, filter imaging.ResampleFilter) *image.NRGBA {
	bounds := img.Bounds()
	sw, sh := float64(bounds.Dx()), float64(bounds.Dy())
	scale := math.Max(float64(width)/sw, float64(height)/sh)

	rw := max(width, int(math.Round(sw*scale)))
	rh := max(height, int(math.Round(sh*scale)))
	return imaging.Resize(img, rw, rh, filter)
}

// positions spreads up to steps+1 offsets over [0, overflow], both ends included
func positions(overflow, steps int) []int {
	step := max(1, overflow/steps)
	var out []int
	for p := 0; p < overflow; p += step {
		out = append(out, p)
	}
	return append(out, overflow)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

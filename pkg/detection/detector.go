// Package detection locates image subjects with a vision model. It backs the
// "attention" crop when a model backend is configured.
package detection

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/menta2k/appropriate-images/pkg/client"
	"github.com/menta2k/appropriate-images/pkg/types"
)

// DefaultPrompt is the default prompt for subject detection
const DefaultPrompt = `You are an image subject locator.

Return JSON only:
{
  "primary": {
    "label": "string",
    "confidence": 0.0,
    "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0},
    "cx": 0.0,
    "cy": 0.0
  },
  "description": "short neutral sentence",
  "tags": ["tag1", "tag2"]
}

RULES
- All coordinates are normalized to [0,1] (NOT pixels).
- The box should tightly include the visually dominant subject (prefer people/animals/vehicles; else the most salient object).
- If no subject is found, return label "none" with confidence 0.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// Locator is the contract the detector fulfils and falls back on
type Locator interface {
	Locate(ctx context.Context, img image.Image) (types.Box, error)
}

// Config holds configuration for model based detection
type Config struct {
	Model  string
	Prompt string
	// PreviewSize bounds the longest side of the image sent to the model.
	PreviewSize int
	// PreviewQuality is the JPEG quality of the preview.
	PreviewQuality int
	// MinConfidence below which the model's answer is ignored.
	MinConfidence float64
}

// DefaultConfig returns the detection defaults for a model
func DefaultConfig(model string) Config {
	return Config{
		Model:          model,
		Prompt:         DefaultPrompt,
		PreviewSize:    512,
		PreviewQuality: 85,
		MinConfidence:  0.3,
	}
}

// Detector handles image subject detection using vision models
type Detector struct {
	client   client.VisionClient
	config   Config
	fallback Locator
}

// NewDetector creates a new detector with a vision client. When the model
// reports no usable subject, fallback locates it instead; a nil fallback
// yields the centered half-size box.
func NewDetector(client client.VisionClient, config Config, fallback Locator) *Detector {
	defaults := DefaultConfig(config.Model)
	if config.Prompt == "" {
		config.Prompt = defaults.Prompt
	}
	if config.PreviewSize <= 0 {
		config.PreviewSize = defaults.PreviewSize
	}
	if config.PreviewQuality <= 0 {
		config.PreviewQuality = defaults.PreviewQuality
	}
	return &Detector{client: client, config: config, fallback: fallback}
}

// Locate returns the normalized box of the primary subject of img
func (d *Detector) Locate(ctx context.Context, img image.Image) (types.Box, error) {
	preview, width, height, err := d.preview(img)
	if err != nil {
		return types.Box{}, err
	}

	result, err := d.client.AnalyzeImage(ctx, d.config.Model, d.config.Prompt, preview)
	if err != nil {
		return types.Box{}, fmt.Errorf("subject detection failed: %w", err)
	}

	box := normalizeBox(result.Primary.Box, width, height)
	if !d.usable(result) || box.W == 0 || box.H == 0 {
		if d.fallback != nil {
			return d.fallback.Locate(ctx, img)
		}
		return types.Box{X: 0.25, Y: 0.25, W: 0.5, H: 0.5}, nil
	}
	return box, nil
}

// preview downsizes img and encodes it as JPEG for the model
func (d *Detector) preview(img image.Image) ([]byte, int, int, error) {
	bounds := img.Bounds()
	if bounds.Dx() > d.config.PreviewSize || bounds.Dy() > d.config.PreviewSize {
		img = imaging.Fit(img, d.config.PreviewSize, d.config.PreviewSize, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(d.config.PreviewQuality)); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to encode preview: %w", err)
	}
	return buf.Bytes(), img.Bounds().Dx(), img.Bounds().Dy(), nil
}

// usable rejects "none" answers, low confidence and parser fallbacks
func (d *Detector) usable(result *types.AnalysisResult) bool {
	if result == nil || strings.EqualFold(result.Primary.Label, "none") {
		return false
	}
	return result.Primary.Confidence >= d.config.MinConfidence
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

// normalizeBox clamps a box to [0,1], converting from preview pixels when the
// model answered in pixels.
func normalizeBox(b types.Box, imgW, imgH int) types.Box {
	if imgW > 0 && imgH > 0 && (b.X > 1 || b.Y > 1 || b.W > 1 || b.H > 1) {
		b = types.Box{
			X: b.X / float64(imgW),
			Y: b.Y / float64(imgH),
			W: b.W / float64(imgW),
			H: b.H / float64(imgH),
		}
	}

	x := clamp(b.X, 0, 1)
	y := clamp(b.Y, 0, 1)
	return types.Box{
		X: x,
		Y: y,
		W: clamp(b.W, 0, 1-x),
		H: clamp(b.H, 0, 1-y),
	}
}

// Package appropriateimages generates resized, optimized derivatives of source
// images from a declarative image config.
//
// Every entry of the config names a source file and the sizes to derive from
// it. Generate writes each size in the source's raster format plus a WebP
// sibling, named "<stem>-<width>[x<height>].<ext>", and removes whatever an
// earlier run generated for the same source.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//
//		appropriateimages "github.com/menta2k/appropriate-images"
//		"github.com/menta2k/appropriate-images/pkg/types"
//	)
//
//	func main() {
//		cfg := types.ImageConfig{
//			"bear": {Basename: "bear.png", Sizes: []types.SizeSpec{
//				{Width: 300},
//				{Width: 200, Height: 200, Directive: types.WithOptions(map[string]any{"position": "attention"})},
//			}},
//		}
//
//		paths, err := appropriateimages.New().Generate(context.Background(), cfg, types.GenerateOptions{
//			InputDirectory:  "src/images",
//			OutputDirectory: "public/images",
//		})
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Println(paths)
//	}
//
// Errors are classified with types.KindOf: usage errors describe mistakes in
// the config or options and are reported as a complete set, anything else is
// fatal.
//
// The package consists of these main components:
//
// 1. Pipeline (pkg/pipeline): validation, staging, generation and compression
// 2. Resizer (pkg/resizer, pkg/cropper): decoding, resizing and crop strategies
// 3. Vision (pkg/vision, pkg/detection): subject location for the attention crop
// 4. Optimizer (pkg/optimizer): the conventional and WebP compression passes
// 5. URL picker (pkg/urlpicker): choosing a variant URL for a display width
package appropriateimages

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/menta2k/appropriate-images/pkg/cropper"
	"github.com/menta2k/appropriate-images/pkg/detection"
	"github.com/menta2k/appropriate-images/pkg/ollama"
	"github.com/menta2k/appropriate-images/pkg/pipeline"
	"github.com/menta2k/appropriate-images/pkg/resizer"
	"github.com/menta2k/appropriate-images/pkg/types"
	"github.com/menta2k/appropriate-images/pkg/urlpicker"
	"github.com/menta2k/appropriate-images/pkg/vision"
)

// Version of the appropriate-images library
const Version = "1.0.0"

// Generator provides a high-level interface to the generation pipeline
type Generator struct {
	pipeline *pipeline.Pipeline
	cropper  *cropper.SmartCropper
}

// Config holds the tunables of a Generator
type Config struct {
	Resizer resizer.Config
	Cropper cropper.CropConfig
	Vision  vision.DetectionConfig
	// Locator overrides the saliency based subject locator.
	Locator cropper.SubjectLocator
	Logger  zerolog.Logger
}

// DefaultConfig returns the default Generator configuration
func DefaultConfig() Config {
	return Config{
		Resizer: resizer.DefaultConfig(),
		Cropper: cropper.CropConfig{Filter: resizer.DefaultConfig().Filter},
		Vision:  vision.DefaultConfig(),
		Logger:  zerolog.Nop(),
	}
}

// New creates a new Generator with default configuration
func New() *Generator {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a new Generator with custom configuration
func NewWithConfig(config Config) *Generator {
	smartCropper := cropper.NewWithConfig(config.Cropper)
	if config.Locator != nil {
		smartCropper.SetLocator(config.Locator)
	} else {
		smartCropper.SetLocator(vision.NewWithConfig(config.Vision))
	}

	return &Generator{
		pipeline: pipeline.NewWithConfig(pipeline.Config{
			Resizer: resizer.NewWithConfig(config.Resizer, smartCropper),
			Logger:  config.Logger,
		}),
		cropper: smartCropper,
	}
}

// Generate writes every variant of the selected entries of cfg and returns the
// written paths. See pipeline.Pipeline.Generate for the error contract.
func (g *Generator) Generate(ctx context.Context, cfg types.ImageConfig, opts types.GenerateOptions) ([]string, error) {
	return g.pipeline.Generate(ctx, cfg, opts)
}

// SetLocator replaces the subject locator behind the attention crop. It must
// not be called while Generate is running.
func (g *Generator) SetLocator(locator cropper.SubjectLocator) {
	g.cropper.SetLocator(locator)
}

// OllamaLocator returns a subject locator asking a vision model served by
// Ollama, falling back to saliency detection when the model finds nothing.
func OllamaLocator(url, model string) (cropper.SubjectLocator, error) {
	if model == "" {
		return nil, fmt.Errorf("a vision model is required")
	}
	client, err := ollama.NewClient(url)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	return detection.NewDetector(client, detection.DefaultConfig(model), vision.New()), nil
}

// ImageURL picks the variant URL for a display width in env. Use a
// urlpicker.Picker directly to memoize environment lookups.
func ImageURL(env urlpicker.Environment, req urlpicker.Request) (string, error) {
	return urlpicker.New(env).URL(req)
}

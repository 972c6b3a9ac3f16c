package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// ImageConfig maps image ids to their source entry. It is treated as read-only.
type ImageConfig map[string]ImageEntry

// ImageEntry describes one source image and the variants to derive from it
type ImageEntry struct {
	Basename string     `json:"basename"`
	Sizes    []SizeSpec `json:"sizes"`
}

// DirectiveKind tags the variant of a Directive
type DirectiveKind int

const (
	// DirectiveNone means no crop or resize options were given.
	DirectiveNone DirectiveKind = iota
	// DirectiveNamed is a named crop strategy such as "north" or "entropy".
	DirectiveNamed
	// DirectiveOptions is a free-form options bag forwarded to the resizer.
	DirectiveOptions
)

// Directive is the resize directive attached to a size. Exactly one of Name or
// Options is meaningful, selected by Kind.
type Directive struct {
	Kind    DirectiveKind
	Name    string
	Options map[string]any
}

// Named returns a directive selecting a named crop strategy
func Named(name string) Directive {
	return Directive{Kind: DirectiveNamed, Name: name}
}

// WithOptions returns a directive carrying a resizer options bag
func WithOptions(opts map[string]any) Directive {
	return Directive{Kind: DirectiveOptions, Options: opts}
}

// SizeSpec is one declared output size. Height is zero when absent.
type SizeSpec struct {
	Width     int
	Height    int
	Directive Directive
}

type sizeSpecJSON struct {
	Width   int            `json:"width"`
	Height  int            `json:"height,omitempty"`
	Crop    *string        `json:"crop,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

// UnmarshalJSON accepts either a "crop" name or an "options" object
func (s *SizeSpec) UnmarshalJSON(data []byte) error {
	var raw sizeSpecJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Crop != nil && raw.Options != nil {
		return fmt.Errorf("size %d: crop and options are mutually exclusive", raw.Width)
	}

	s.Width = raw.Width
	s.Height = raw.Height
	s.Directive = Directive{}
	switch {
	case raw.Crop != nil:
		s.Directive = Named(*raw.Crop)
	case raw.Options != nil:
		s.Directive = WithOptions(raw.Options)
	}
	return nil
}

// MarshalJSON writes the same shape UnmarshalJSON reads
func (s SizeSpec) MarshalJSON() ([]byte, error) {
	raw := sizeSpecJSON{Width: s.Width, Height: s.Height}
	switch s.Directive.Kind {
	case DirectiveNamed:
		name := s.Directive.Name
		raw.Crop = &name
	case DirectiveOptions:
		raw.Options = s.Directive.Options
	}
	return json.Marshal(raw)
}

// PNGOptions configures the PNG optimizer
type PNGOptions struct {
	// Quantize reduces the image to a 256 color palette with dithering.
	Quantize bool `json:"quantize" yaml:"quantize" env:"QUANTIZE"`
	// CompressionLevel is one of "default", "speed", "best", "none".
	CompressionLevel string `json:"compression_level" yaml:"compression_level" env:"COMPRESSION_LEVEL" env-default:"best" validate:"omitempty,oneof=default speed best none"`
}

// JPEGOptions configures the JPEG optimizer
type JPEGOptions struct {
	Quality int `json:"quality" yaml:"quality" env:"QUALITY" env-default:"75" validate:"min=0,max=100"`
}

// WebPOptions configures the WebP optimizer
type WebPOptions struct {
	Quality  int  `json:"quality" yaml:"quality" env:"QUALITY" env-default:"75" validate:"min=0,max=100"`
	Lossless bool `json:"lossless" yaml:"lossless" env:"LOSSLESS"`
}

// GenerateOptions controls one Generate invocation
type GenerateOptions struct {
	InputDirectory  string
	OutputDirectory string
	// IDs restricts processing to a subset of the config. Nil means all ids.
	IDs []string
	// MaxConcurrency bounds in-flight compression jobs. Zero means unbounded.
	MaxConcurrency int
	PNG            PNGOptions
	JPEG           JPEGOptions
	WebP           WebPOptions
	// StagingRoot is the parent of the private staging directory. Empty uses os.TempDir.
	StagingRoot string
	// Timeout is an optional deadline for the whole invocation.
	Timeout time.Duration
}

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Center returns the center point of the box
func (b Box) Center() (float64, float64) {
	return b.X + b.W/2, b.Y + b.H/2
}

// Primary represents the primary subject detected in an image
type Primary struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
	Cx         float64 `json:"cx"`
	Cy         float64 `json:"cy"`
}

// AnalysisResult is the subject description returned by a vision model
type AnalysisResult struct {
	Primary     Primary  `json:"primary"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

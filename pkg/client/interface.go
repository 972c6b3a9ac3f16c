// Package client defines the contract of vision model backends that locate
// the subject of an image.
package client

import (
	"context"

	"github.com/menta2k/appropriate-images/pkg/types"
)

// VisionClient sends an encoded image and a prompt to a vision model and
// parses its subject description.
type VisionClient interface {
	AnalyzeImage(ctx context.Context, model, prompt string, image []byte) (*types.AnalysisResult, error)
}

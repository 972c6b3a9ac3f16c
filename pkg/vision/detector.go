package vision

import (
	"context"
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"

	"github.com/menta2k/appropriate-images/pkg/types"
)

// SubjectDetector finds salient regions in an image. It is the default subject
// locator behind the "attention" crop strategy.
type SubjectDetector struct {
	config DetectionConfig
}

// DetectionConfig holds configuration for subject detection
type DetectionConfig struct {
	EdgeThreshold   float64
	ContrastWeight  float64
	ColorWeight     float64
	MinSubjectRatio float64
	// AnalysisSize is the longest side the image is reduced to before analysis.
	AnalysisSize int
	// MaxRegions caps the number of regions DetectSubjects returns.
	MaxRegions int
}

// DefaultConfig returns the detection defaults
func DefaultConfig() DetectionConfig {
	return DetectionConfig{
		EdgeThreshold:   0.01,
		ContrastWeight:  0.7,
		ColorWeight:     0.3,
		MinSubjectRatio: 0.02,
		AnalysisSize:    256,
		MaxRegions:      10,
	}
}

// New creates a new SubjectDetector with default configuration
func New() *SubjectDetector {
	return &SubjectDetector{config: DefaultConfig()}
}

// NewWithConfig creates a new SubjectDetector with custom configuration
func NewWithConfig(config DetectionConfig) *SubjectDetector {
	if config.AnalysisSize <= 0 {
		config.AnalysisSize = DefaultConfig().AnalysisSize
	}
	if config.MaxRegions <= 0 {
		config.MaxRegions = DefaultConfig().MaxRegions
	}
	return &SubjectDetector{config: config}
}

// Region represents a rectangular region of interest in pixels
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
	Score  float64
}

// Center returns the center point of the region
func (r Region) Center() (int, int) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Area returns the area of the region
func (r Region) Area() int {
	return r.Width * r.Height
}

// Rect converts the region into an image rectangle
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// DetectSubjects returns regions of interest in img, best first
func (d *SubjectDetector) DetectSubjects(img image.Image) ([]Region, error) {
	gray := imaging.Grayscale(img)
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil, nil
	}

	saliency := d.saliencyMap(gray)
	regions := d.findImportantRegions(saliency, width, height)

	minArea := int(float64(width*height) * d.config.MinSubjectRatio)
	filtered := regions[:0]
	for _, r := range regions {
		if r.Area() >= minArea {
			filtered = append(filtered, r)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].Score > filtered[j].Score })

	if len(filtered) > d.config.MaxRegions {
		filtered = filtered[:d.config.MaxRegions]
	}
	return filtered, nil
}

// Locate returns the most salient region of img as a normalized box. When no
// region stands out the whole image is returned.
func (d *SubjectDetector) Locate(ctx context.Context, img image.Image) (types.Box, error) {
	whole := types.Box{X: 0, Y: 0, W: 1, H: 1}
	if err := ctx.Err(); err != nil {
		return whole, err
	}

	size := d.config.AnalysisSize
	small := imaging.Fit(img, size, size, imaging.Box)
	regions, err := d.DetectSubjects(small)
	if err != nil || len(regions) == 0 {
		return whole, err
	}

	fw, fh := float64(small.Bounds().Dx()), float64(small.Bounds().Dy())
	best := regions[0]
	return types.Box{
		X: float64(best.X) / fw,
		Y: float64(best.Y) / fh,
		W: float64(best.Width) / fw,
		H: float64(best.Height) / fh,
	}, nil
}

// saliencyMap scores each pixel by its difference to its 8 neighbours
// combined with its brightness. The result is row-major.
func (d *SubjectDetector) saliencyMap(gray *image.NRGBA) []float64 {
	width, height := gray.Bounds().Dx(), gray.Bounds().Dy()
	lum := func(x, y int) float64 {
		return float64(gray.Pix[y*gray.Stride+x*4]) / 255
	}

	out := make([]float64, width*height)
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			center := lum(x, y)
			var edge float64
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					edge += math.Abs(center - lum(x+dx, y+dy))
				}
			}
			edge /= 8
			out[y*width+x] = d.config.ContrastWeight*edge + d.config.ColorWeight*center
		}
	}
	return out
}

func (d *SubjectDetector) findImportantRegions(saliency []float64, width, height int) []Region {
	integral := summedArea(saliency, width, height)
	sum := func(x, y, w, h int) float64 {
		stride := width + 1
		return integral[(y+h)*stride+x+w] - integral[y*stride+x+w] - integral[(y+h)*stride+x] + integral[y*stride+x]
	}

	short := min(width, height)
	var regions []Region
	for _, divisor := range []int{8, 6, 4, 3, 2} {
		window := short / divisor
		if window < 4 {
			continue
		}
		step := max(1, window/4)
		for y := 0; y+window <= height; y += step {
			for x := 0; x+window <= width; x += step {
				score := sum(x, y, window, window) / float64(window*window)
				if score > d.config.EdgeThreshold {
					regions = append(regions, Region{X: x, Y: y, Width: window, Height: window, Score: score})
				}
			}
		}
	}
	return regions
}

func summedArea(values []float64, width, height int) []float64 {
	stride := width + 1
	out := make([]float64, stride*(height+1))
	for y := 0; y < height; y++ {
		var row float64
		for x := 0; x < width; x++ {
			row += values[y*width+x]
			out[(y+1)*stride+x+1] = out[y*stride+x+1] + row
		}
	}
	return out
}

// Entropy is the Shannon entropy of the luminance histogram inside r
func Entropy(img image.Image, r image.Rectangle) float64 {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return 0
	}
	gray := imaging.Grayscale(imaging.Crop(img, r))

	var hist [256]int
	for i := 0; i < len(gray.Pix); i += 4 {
		hist[gray.Pix[i]]++
	}

	total := float64(r.Dx() * r.Dy())
	var entropy float64
	for _, n := range hist {
		if n == 0 {
			continue
		}
		p := float64(n) / total
		entropy -= p * math.Log2(p)
	}
	return entropy
}

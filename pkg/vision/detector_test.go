package vision

import (
	"context"
	"image"
	"image/color"
	"math"
	"testing"
)

// createTestImage draws a checkered subject on a black background inside rect
func createTestImage(width, height int, subject image.Rectangle) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.RGBA{0, 0, 0, 255}
			if (image.Point{x, y}).In(subject) && (x/2+y/2)%2 == 0 {
				c = color.RGBA{255, 255, 255, 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func TestNew(t *testing.T) {
	detector := New()
	if detector == nil {
		t.Fatal("New() returned nil")
	}

	if detector.config.EdgeThreshold != 0.01 {
		t.Errorf("Expected edge threshold 0.01, got %f", detector.config.EdgeThreshold)
	}
	if detector.config.AnalysisSize != 256 {
		t.Errorf("Expected analysis size 256, got %d", detector.config.AnalysisSize)
	}
}

func TestNewWithConfigFillsDefaults(t *testing.T) {
	detector := NewWithConfig(DetectionConfig{EdgeThreshold: 0.2})
	if detector.config.EdgeThreshold != 0.2 {
		t.Errorf("Expected edge threshold 0.2, got %f", detector.config.EdgeThreshold)
	}
	if detector.config.AnalysisSize != 256 || detector.config.MaxRegions != 10 {
		t.Errorf("Expected defaults for unset sizes, got %+v", detector.config)
	}
}

func TestRegionGeometry(t *testing.T) {
	region := Region{X: 10, Y: 20, Width: 100, Height: 80}

	x, y := region.Center()
	if x != 60 || y != 60 {
		t.Errorf("Expected center 60,60, got %d,%d", x, y)
	}
	if region.Area() != 8000 {
		t.Errorf("Expected area 8000, got %d", region.Area())
	}
	if region.Rect() != image.Rect(10, 20, 110, 100) {
		t.Errorf("Unexpected rect %v", region.Rect())
	}
}

func TestDetectSubjectsSortedByScore(t *testing.T) {
	detector := New()
	img := createTestImage(200, 100, image.Rect(140, 30, 190, 80))

	regions, err := detector.DetectSubjects(img)
	if err != nil {
		t.Fatalf("DetectSubjects failed: %v", err)
	}
	if len(regions) == 0 {
		t.Fatal("Expected at least one region")
	}
	if len(regions) > 10 {
		t.Errorf("Expected at most 10 regions, got %d", len(regions))
	}
	for i := 1; i < len(regions); i++ {
		if regions[i].Score > regions[i-1].Score {
			t.Errorf("Regions not sorted at %d: %f > %f", i, regions[i].Score, regions[i-1].Score)
		}
	}
}

func TestLocateFindsSubject(t *testing.T) {
	detector := New()
	img := createTestImage(200, 100, image.Rect(140, 30, 190, 80))

	box, err := detector.Locate(context.Background(), img)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	cx, _ := box.Center()
	if cx <= 0.5 {
		t.Errorf("Expected subject on the right half, got box %+v", box)
	}
}

func TestLocateBlankImage(t *testing.T) {
	detector := New()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))

	box, err := detector.Locate(context.Background(), img)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if box.W != 1 || box.H != 1 {
		t.Errorf("Expected whole image for blank input, got %+v", box)
	}
}

func TestEntropy(t *testing.T) {
	flat := image.NewRGBA(image.Rect(0, 0, 10, 10))
	if e := Entropy(flat, flat.Bounds()); e != 0 {
		t.Errorf("Expected zero entropy for flat image, got %f", e)
	}

	halves := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 5; x++ {
			halves.Set(x, y, color.RGBA{255, 255, 255, 255})
		}
	}
	if e := Entropy(halves, halves.Bounds()); math.Abs(e-1) > 1e-9 {
		t.Errorf("Expected entropy 1 for two equal halves, got %f", e)
	}
	if e := Entropy(halves, image.Rect(0, 0, 5, 10)); e != 0 {
		t.Errorf("Expected zero entropy inside one half, got %f", e)
	}
}

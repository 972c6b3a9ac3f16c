package appropriateimages

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/menta2k/appropriate-images/pkg/types"
	"github.com/menta2k/appropriate-images/pkg/urlpicker"
)

// createTestImage creates a simple test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	// Create a pattern with a bright subject in the center
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x > width/3 && x < 2*width/3 && y > height/3 && y < 2*height/3 {
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			} else {
				img.Set(x, y, color.RGBA{64, 64, 64, 255})
			}
		}
	}

	return img
}

func writeImage(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if filepath.Ext(path) == ".jpg" {
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
	} else {
		err = png.Encode(f, img)
	}
	if err != nil {
		t.Fatal(err)
	}
}

var imageConfig = types.ImageConfig{
	"bear": {Basename: "bear.png", Sizes: []types.SizeSpec{{Width: 300}, {Width: 600}}},
	"montaraz": {Basename: "montaraz.jpg", Sizes: []types.SizeSpec{
		{Width: 300, Height: 500},
		{Width: 120, Directive: types.Named("north")},
		{Width: 200, Height: 200, Directive: types.Named("southeast")},
		{Width: 210, Height: 210, Directive: types.WithOptions(map[string]any{"position": "attention"})},
	}},
	"osprey": {Basename: "osprey.jpg", Sizes: []types.SizeSpec{{Width: 600}, {Width: 300, Height: 300, Directive: types.Named("entropy")}}},
	"walrus": {Basename: "walrus.png", Sizes: []types.SizeSpec{{Width: 400}}},
}

func TestNew(t *testing.T) {
	g := New()
	if g == nil {
		t.Fatal("New() returned nil")
	}
	if g.pipeline == nil {
		t.Error("pipeline component is nil")
	}
	if g.cropper == nil {
		t.Error("cropper component is nil")
	}
}

func TestGenerate(t *testing.T) {
	root := t.TempDir()
	input := filepath.Join(root, "input")
	output := filepath.Join(root, "output")
	if err := os.MkdirAll(input, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, entry := range imageConfig {
		writeImage(t, filepath.Join(input, entry.Basename), createTestImage(800, 600))
	}

	paths, err := New().Generate(context.Background(), imageConfig, types.GenerateOptions{
		InputDirectory:  input,
		OutputDirectory: output,
		MaxConcurrency:  3,
		StagingRoot:     root,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	var names []string
	for _, p := range paths {
		names = append(names, filepath.Base(p))
	}
	sort.Strings(names)
	want := []string{
		"bear-300.png", "bear-300.webp", "bear-600.png", "bear-600.webp",
		"montaraz-120.jpg", "montaraz-120.webp",
		"montaraz-200x200.jpg", "montaraz-200x200.webp",
		"montaraz-210x210.jpg", "montaraz-210x210.webp",
		"montaraz-300x500.jpg", "montaraz-300x500.webp",
		"osprey-300x300.jpg", "osprey-300x300.webp",
		"osprey-600.jpg", "osprey-600.webp",
		"walrus-400.png", "walrus-400.webp",
	}
	if len(names) != len(want) {
		t.Fatalf("Expected %d files, got %d: %v", len(want), len(names), names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Expected %s, got %s", want[i], names[i])
		}
	}

	// every URL the picker can produce exists on disk
	for id, entry := range imageConfig {
		for _, size := range entry.Sizes {
			for _, env := range []urlpicker.Static{{DPR: 1}, {DPR: 1, WebP: true}} {
				url, err := ImageURL(env, urlpicker.Request{ImageID: id, Config: imageConfig, Width: size.Width, ImageDirectory: output})
				if err != nil {
					t.Fatalf("ImageURL failed: %v", err)
				}
				if _, err := os.Stat(url); err != nil {
					t.Errorf("Picked URL %s does not exist", url)
				}
			}
		}
	}

	leftovers, _ := filepath.Glob(filepath.Join(root, "appropriate-images-*"))
	if len(leftovers) != 0 {
		t.Errorf("Expected staging area to be removed, found %v", leftovers)
	}
}

func TestGenerateUsageError(t *testing.T) {
	_, err := New().Generate(context.Background(), imageConfig, types.GenerateOptions{
		InputDirectory:  t.TempDir(),
		OutputDirectory: t.TempDir(),
		IDs:             []string{"heron"},
	})
	if types.KindOf(err) != types.KindUsage {
		t.Fatalf("Expected usage error, got %v", err)
	}
	if err.Error() != `"heron" is not a valid image id` {
		t.Errorf("Unexpected message %q", err.Error())
	}
}

func TestOllamaLocator(t *testing.T) {
	if _, err := OllamaLocator("http://localhost:11434", ""); err == nil {
		t.Error("Expected error without a model")
	}
	if _, err := OllamaLocator("http://localhost:11434", "llava"); err != nil {
		t.Errorf("OllamaLocator failed: %v", err)
	}
}

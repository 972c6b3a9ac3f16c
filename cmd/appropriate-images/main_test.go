package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type project struct {
	root, settings, images, input, output string
}

func newProject(t *testing.T) project {
	t.Helper()
	root := t.TempDir()
	p := project{
		root:     root,
		settings: filepath.Join(root, "settings.yaml"),
		images:   filepath.Join(root, "images.yaml"),
		input:    filepath.Join(root, "src"),
		output:   filepath.Join(root, "public"),
	}
	require.NoError(t, os.MkdirAll(p.input, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "tmp"), 0o755))

	settings := "input_directory: " + p.input + "\n" +
		"output_directory: " + p.output + "\n" +
		"image_config: " + p.images + "\n" +
		"staging_root: " + filepath.Join(root, "tmp") + "\n" +
		"log:\n  level: disabled\n"
	require.NoError(t, os.WriteFile(p.settings, []byte(settings), 0o644))

	images := `bear:
  basename: bear.png
  sizes:
    - width: 40
    - width: 20
      height: 20
      crop: north
`
	require.NoError(t, os.WriteFile(p.images, []byte(images), 0o644))

	img := image.NewRGBA(image.Rect(0, 0, 80, 60))
	for y := 0; y < 60; y++ {
		for x := 0; x < 80; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 3), uint8(y * 4), 90, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(filepath.Join(p.input, "bear.png"), buf.Bytes(), 0o644))
	return p
}

func execute(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunRequiresIDs(t *testing.T) {
	p := newProject(t)
	code, out, _ := execute("--config", p.settings)
	assert.Equal(t, 2, code)
	assert.Contains(t, out, "Usage error: You must specify image ids or use --all")
	assert.Contains(t, out, "Usage:")
}

func TestRunGeneratesAll(t *testing.T) {
	p := newProject(t)
	code, out, errOut := execute("--config", p.settings, "--all")
	require.Equal(t, 0, code, errOut)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, []string{
		"Saved bear-20x20.png",
		"Saved bear-20x20.webp",
		"Saved bear-40.png",
		"Saved bear-40.webp",
	}, lines[:4])
	assert.Contains(t, lines[4], "Generated 4 optimized images (")
	assert.FileExists(t, filepath.Join(p.output, "bear-40.webp"))
}

func TestRunQuiet(t *testing.T) {
	p := newProject(t)
	code, out, errOut := execute("--config", p.settings, "-q", "bear")
	require.Equal(t, 0, code, errOut)
	assert.Empty(t, out)
	assert.FileExists(t, filepath.Join(p.output, "bear-20x20.png"))
}

func TestRunFlagsOverrideSettings(t *testing.T) {
	p := newProject(t)
	other := filepath.Join(p.root, "elsewhere")
	code, _, errOut := execute("--config", p.settings, "--output", other, "-m", "1", "bear")
	require.Equal(t, 0, code, errOut)
	assert.FileExists(t, filepath.Join(other, "bear-40.png"))
	assert.NoDirExists(t, p.output)
}

func TestRunUnknownIDIsUsageError(t *testing.T) {
	p := newProject(t)
	code, out, _ := execute("--config", p.settings, "heron", "bear")
	assert.Equal(t, 2, code)
	assert.Contains(t, out, `Usage error: "heron" is not a valid image id`)
	assert.NoDirExists(t, p.output)
}

func TestRunMissingInputDirectory(t *testing.T) {
	p := newProject(t)
	code, out, _ := execute("--config", p.settings, "--input", filepath.Join(p.root, "nope"), "bear")
	assert.Equal(t, 2, code)
	assert.Contains(t, out, "does not exist")
}

func TestRunBadFlagIsUsageError(t *testing.T) {
	code, out, _ := execute("--bogus")
	assert.Equal(t, 2, code)
	assert.Contains(t, out, "Usage error: unknown flag: --bogus")
}

func TestRunFatalError(t *testing.T) {
	p := newProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(p.input, "bear.png"), []byte("not a png"), 0o644))

	code, out, errOut := execute("--config", p.settings, "bear")
	assert.Equal(t, 1, code)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "decode source")
}

func TestReport(t *testing.T) {
	dir := t.TempDir()
	paths := []string{filepath.Join(dir, "bear-40.webp"), filepath.Join(dir, "bear-40.png")}
	for _, p := range paths {
		require.NoError(t, os.WriteFile(p, []byte("12345"), 0o644))
	}

	var out bytes.Buffer
	report(&out, dir, paths)
	assert.Equal(t, "Saved bear-40.png\nSaved bear-40.webp\nGenerated 2 optimized images (10 B)\n", out.String())
}

func TestURLCommand(t *testing.T) {
	p := newProject(t)

	code, out, errOut := execute("url", "bear", "--config", p.settings, "--width", "30")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "bear-40.png\n", out)

	code, out, errOut = execute("url", "bear", "--config", p.settings, "--width", "10", "--webp", "--dir", "/images")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "/images/bear-20x20.webp\n", out)

	code, out, _ = execute("url", "heron", "--config", p.settings)
	assert.Equal(t, 2, code)
	assert.Contains(t, out, "Usage error: heron is not a valid image id")
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "conf", "settings.yaml")

	code, out, errOut := execute("init", "--config", path)
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "Wrote "+path+"\n", out)
	assert.FileExists(t, path)
	assert.DirExists(t, filepath.Join(dir, "src", "images"))

	code, out, _ = execute("init", "--config", path)
	assert.Equal(t, 2, code)
	assert.Contains(t, out, "already exists")

	code, _, errOut = execute("init", "--config", path, "--force")
	assert.Equal(t, 0, code, errOut)
}

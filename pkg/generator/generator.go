// Package generator renders every declared size of one image entry into the
// staging area.
package generator

import (
	"context"
	"errors"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/menta2k/appropriate-images/pkg/cropper"
	"github.com/menta2k/appropriate-images/pkg/naming"
	"github.com/menta2k/appropriate-images/pkg/resizer"
	"github.com/menta2k/appropriate-images/pkg/types"
)

// Generator produces staged variants for image entries
type Generator struct {
	resizer resizer.Resizer
	logger  zerolog.Logger
}

// New creates a Generator around a resizer
func New(r resizer.Resizer, logger zerolog.Logger) *Generator {
	return &Generator{resizer: r, logger: logger}
}

// Generate reads the entry's source once, renders all sizes concurrently into
// stagingDir and returns the staged paths in size order.
//
// A missing source and unsupported crop values are usage errors for this
// entry. Any other failure is a *types.FatalError. Sibling sizes always run to
// completion before Generate returns.
func (g *Generator) Generate(ctx context.Context, id string, entry types.ImageEntry, inputDir, stagingDir string) ([]string, error) {
	logger := g.logger.With().Str("id", id).Str("basename", entry.Basename).Logger()

	usage := g.check(id, entry)

	source := filepath.Join(inputDir, entry.Basename)
	data, err := os.ReadFile(source)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		usage = append(usage, types.Usagef(id, "invalid basename for %q", id))
	case len(usage) > 0:
		return nil, errors.Join(usage, types.Fatal("read source", source, err))
	default:
		return nil, types.Fatal("read source", source, err)
	}
	if len(usage) > 0 {
		return nil, usage
	}

	img, err := g.resizer.Decode(data)
	if err != nil {
		return nil, types.Fatal("decode source", source, err)
	}
	logger.Debug().
		Int("width", img.Bounds().Dx()).
		Int("height", img.Bounds().Dy()).
		Int("sizes", len(entry.Sizes)).
		Msg("Source decoded")

	ext := filepath.Ext(entry.Basename)
	paths := make([]string, len(entry.Sizes))
	var mu sync.Mutex
	var errs []error

	// errgroup without a context: one failing size does not stop its siblings
	var eg errgroup.Group
	for i, size := range entry.Sizes {
		eg.Go(func() error {
			path := filepath.Join(stagingDir, naming.Variant(entry.Basename, size.Width, size.Height, ext))
			if err := g.render(ctx, img, size, ext, path); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return err
			}
			paths[i] = path
			return nil
		})
	}
	_ = eg.Wait()

	if len(errs) > 0 {
		logger.Error().Errs("errors", errs).Msg("Variant generation failed")
		return nil, errors.Join(errs...)
	}
	logger.Debug().Strs("staged", paths).Msg("Variants staged")
	return paths, nil
}

func (g *Generator) check(id string, entry types.ImageEntry) types.UsageErrors {
	var errs types.UsageErrors
	for _, size := range entry.Sizes {
		err := g.resizer.Check(size)
		if err == nil {
			continue
		}
		var unknown *cropper.UnknownCropError
		if errors.As(err, &unknown) {
			errs = append(errs, types.Usagef(id, "%q is not a valid crop value for %q; use options.position with one of: %s",
				unknown.Value, id, strings.Join(cropper.Names(), ", ")))
			continue
		}
		errs = append(errs, types.Usagef(id, "invalid options for %q size %s: %v", id, naming.SizeSuffix(size.Width, size.Height), err))
	}
	return errs
}

func (g *Generator) render(ctx context.Context, img image.Image, size types.SizeSpec, ext, path string) error {
	resized, err := g.resizer.Resize(ctx, img, size)
	if err != nil {
		return types.Fatal("resize", path, err)
	}
	data, err := g.resizer.Encode(resized, ext)
	if err != nil {
		return types.Fatal("encode", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return types.Fatal("write variant", path, err)
	}
	return nil
}

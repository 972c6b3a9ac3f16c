// Package replacer removes derivatives left in the output directory by earlier
// runs. It works purely by naming convention.
package replacer

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/menta2k/appropriate-images/pkg/naming"
	"github.com/menta2k/appropriate-images/pkg/types"
)

// Replacer clears prior output for a source basename
type Replacer struct {
	logger zerolog.Logger
}

// New creates a Replacer
func New(logger zerolog.Logger) *Replacer {
	return &Replacer{logger: logger}
}

// Clear deletes every regular file in outputDir named "<stem>-*.*" and returns
// the removed paths. A missing directory or no matches is not an error.
func (r *Replacer) Clear(ctx context.Context, outputDir, basename string) ([]string, error) {
	pattern, err := naming.PriorOutput(basename)
	if err != nil {
		return nil, types.Fatal("compile output pattern", basename, err)
	}

	entries, err := os.ReadDir(outputDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, types.Fatal("list output", outputDir, err)
	}

	var removed []string
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !entry.Type().IsRegular() || !pattern.Match(entry.Name()) {
			continue
		}
		path := filepath.Join(outputDir, entry.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, types.Fatal("remove prior output", path, err)
		}
		removed = append(removed, path)
	}

	if len(removed) > 0 {
		r.logger.Debug().Str("basename", basename).Int("removed", len(removed)).Msg("Prior output cleared")
	}
	return removed, nil
}

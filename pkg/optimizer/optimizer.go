// Package optimizer recompresses staged variants into the output directory.
//
// Two independent passes run over the same staged files: a conventional pass
// that keeps each file's raster format and a WebP pass that writes a sibling
// for every file. Each pass produces results in memory; Write persists them.
package optimizer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/menta2k/appropriate-images/pkg/naming"
	"github.com/menta2k/appropriate-images/pkg/types"
)

// Result is one optimized file held in memory
type Result struct {
	Source      string
	Destination string
	Data        []byte
}

// Pass runs a set of plugins over staged files. The first plugin accepting a
// file's extension handles it, then Fallback. Files matching neither, or for
// which Skip reports true, are left out of the pass.
type Pass struct {
	Name     string
	Plugins  []Plugin
	Fallback Plugin
	Skip     func(ext string) bool
}

func (p Pass) pick(ext string) Plugin {
	for _, plugin := range p.Plugins {
		if plugin.Accepts(ext) {
			return plugin
		}
	}
	return p.Fallback
}

// Run optimizes files concurrently. A non-nil limiter bounds how many jobs are
// in flight; it may be shared with other passes. Every job finishes before Run
// returns.
func (p Pass) Run(ctx context.Context, files []string, destDir string, limiter *semaphore.Weighted) ([]Result, error) {
	var (
		mu      sync.Mutex
		results []Result
		errs    []error
		eg      errgroup.Group
	)

	for _, file := range files {
		ext := filepath.Ext(file)
		if p.Skip != nil && p.Skip(ext) {
			continue
		}
		plugin := p.pick(ext)
		if plugin == nil {
			continue
		}
		eg.Go(func() error {
			res, err := p.job(ctx, plugin, file, destDir, limiter)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return err
			}
			results = append(results, res)
			return nil
		})
	}
	_ = eg.Wait()

	return results, errors.Join(errs...)
}

func (p Pass) job(ctx context.Context, plugin Plugin, file, destDir string, limiter *semaphore.Weighted) (Result, error) {
	if limiter != nil {
		if err := limiter.Acquire(ctx, 1); err != nil {
			return Result{}, types.Fatal("optimize", file, err)
		}
		defer limiter.Release(1)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return Result{}, types.Fatal("read staged", file, err)
	}
	out, err := plugin.Optimize(ctx, data)
	if err != nil {
		return Result{}, types.Fatal("optimize", file, err)
	}

	name := naming.WithExt(filepath.Base(file), plugin.Ext(filepath.Ext(file)))
	return Result{
		Source:      file,
		Destination: filepath.Join(destDir, name),
		Data:        out,
	}, nil
}

// Write persists results and returns the written paths. Every result is
// attempted; failures are reported as "write" errors.
func Write(results []Result) ([]string, error) {
	var (
		paths []string
		errs  []error
	)
	for _, res := range results {
		if err := os.WriteFile(res.Destination, res.Data, 0o644); err != nil {
			errs = append(errs, types.Fatal("write", res.Destination, err))
			continue
		}
		paths = append(paths, res.Destination)
	}
	return paths, errors.Join(errs...)
}

// Driver runs the compression passes
type Driver struct {
	passes []Pass
	logger zerolog.Logger
}

// NewDriver creates a driver with the conventional and WebP passes.
// Staged WebP files are recompressed by the conventional pass only, so the
// passes never write the same destination.
func NewDriver(png types.PNGOptions, jpeg types.JPEGOptions, webp types.WebPOptions, logger zerolog.Logger) *Driver {
	conventional := Pass{
		Name:     "conventional",
		Plugins:  []Plugin{PNG{Options: png}, JPEG{Options: jpeg}, webpOnly{WebP{Options: webp}}},
		Fallback: Passthrough{},
	}
	modern := Pass{
		Name:    "webp",
		Plugins: []Plugin{WebP{Options: webp}},
		Skip:    isWebP,
	}
	return NewDriverWithPasses(logger, conventional, modern)
}

// NewDriverWithPasses creates a driver running custom passes
func NewDriverWithPasses(logger zerolog.Logger, passes ...Pass) *Driver {
	return &Driver{passes: passes, logger: logger}
}

// Optimize runs every pass over files concurrently and writes the results into
// outputDir. maxConcurrency > 0 bounds in-flight jobs across all passes
// together. It returns the union of written paths.
func (d *Driver) Optimize(ctx context.Context, files []string, outputDir string, maxConcurrency int) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, types.Fatal("create output directory", outputDir, err)
	}

	var limiter *semaphore.Weighted
	if maxConcurrency > 0 {
		limiter = semaphore.NewWeighted(int64(maxConcurrency))
	}

	var (
		mu    sync.Mutex
		paths []string
		errs  []error
		eg    errgroup.Group
	)
	for _, pass := range d.passes {
		eg.Go(func() error {
			written, err := d.run(ctx, pass, files, outputDir, limiter)
			mu.Lock()
			defer mu.Unlock()
			paths = append(paths, written...)
			if err != nil {
				errs = append(errs, err)
			}
			return err
		})
	}
	_ = eg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return paths, nil
}

func (d *Driver) run(ctx context.Context, pass Pass, files []string, outputDir string, limiter *semaphore.Weighted) ([]string, error) {
	logger := d.logger.With().Str("pass", pass.Name).Logger()
	logger.Debug().Int("files", len(files)).Msg("Compression pass started")

	results, err := pass.Run(ctx, files, outputDir, limiter)
	if err != nil {
		logger.Error().Err(err).Msg("Compression pass failed")
		return nil, err
	}

	var total uint64
	for _, res := range results {
		total += uint64(len(res.Data))
	}
	written, err := Write(results)
	if err != nil {
		logger.Error().Err(err).Msg("Writing optimized files failed")
		return written, err
	}
	logger.Debug().Int("written", len(written)).Str("size", humanize.Bytes(total)).Msg("Compression pass finished")
	return written, nil
}

func isWebP(ext string) bool {
	return strings.EqualFold(ext, naming.WebPExt)
}

// webpOnly restricts the WebP plugin to files that are already WebP
type webpOnly struct {
	WebP
}

func (w webpOnly) Accepts(ext string) bool { return isWebP(ext) }

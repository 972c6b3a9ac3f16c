// Package pipeline sequences a Generate invocation: validation, a private
// staging area, per-entry variant generation alongside prior output removal,
// and the compression fan-out into the output directory.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/menta2k/appropriate-images/pkg/generator"
	"github.com/menta2k/appropriate-images/pkg/optimizer"
	"github.com/menta2k/appropriate-images/pkg/replacer"
	"github.com/menta2k/appropriate-images/pkg/resizer"
	"github.com/menta2k/appropriate-images/pkg/staging"
	"github.com/menta2k/appropriate-images/pkg/types"
	"github.com/menta2k/appropriate-images/pkg/validate"
)

// Optimizer compresses staged files into an output directory
type Optimizer interface {
	Optimize(ctx context.Context, files []string, outputDir string, maxConcurrency int) ([]string, error)
}

// OptimizerFactory builds the optimizer for one invocation's format options
type OptimizerFactory func(opts types.GenerateOptions, logger zerolog.Logger) Optimizer

// Config holds the pipeline's collaborators
type Config struct {
	Resizer   resizer.Resizer
	Optimizer OptimizerFactory
	// Teardown removes the staging area. Nil means (*staging.Area).Release.
	Teardown  func(area *staging.Area) error
	Logger    zerolog.Logger
}

// DefaultConfig returns the imaging resizer, the two-pass optimizer and a
// disabled logger.
func DefaultConfig() Config {
	return Config{
		Resizer:   resizer.New(),
		Optimizer: DefaultOptimizer,
		Logger:    zerolog.Nop(),
	}
}

// DefaultOptimizer builds the conventional plus WebP compression driver
func DefaultOptimizer(opts types.GenerateOptions, logger zerolog.Logger) Optimizer {
	return optimizer.NewDriver(opts.PNG, opts.JPEG, opts.WebP, logger)
}

// Pipeline runs Generate invocations. It holds no state between calls and is
// safe for concurrent use.
type Pipeline struct {
	config    Config
	generator *generator.Generator
	replacer  *replacer.Replacer
}

// New creates a Pipeline with default configuration
func New() *Pipeline {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a Pipeline with custom collaborators. Nil fields fall
// back to the defaults.
func NewWithConfig(config Config) *Pipeline {
	if config.Resizer == nil {
		config.Resizer = resizer.New()
	}
	if config.Optimizer == nil {
		config.Optimizer = DefaultOptimizer
	}
	if config.Teardown == nil {
		config.Teardown = (*staging.Area).Release
	}
	return &Pipeline{
		config:    config,
		generator: generator.New(config.Resizer, config.Logger),
		replacer:  replacer.New(config.Logger),
	}
}

type entryOutcome struct {
	id       string
	staged   []string
	genErr   error
	clearErr error
}

// Generate produces every variant of the selected entries in the output
// directory and returns the written paths.
//
// The error is nil, a usage error (*types.UsageError or types.UsageErrors) or
// a chain classified as types.KindFatal. The staging area is always removed;
// if only its removal fails the written paths are returned with that error.
func (p *Pipeline) Generate(ctx context.Context, cfg types.ImageConfig, opts types.GenerateOptions) (paths []string, err error) {
	logger := p.config.Logger
	start := time.Now()

	work, err := validate.Validate(cfg, opts)
	if err != nil {
		logger.Debug().Err(err).Msg("Validation rejected the request")
		return nil, err
	}
	logger.Debug().Strs("ids", work.IDs()).Msg("Request validated")

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	area, err := staging.Create(opts.StagingRoot)
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("dir", area.Dir()).Msg("Staging area created")
	defer func() {
		if rerr := p.config.Teardown(area); rerr != nil {
			logger.Error().Err(rerr).Str("dir", area.Dir()).Msg("Staging teardown failed")
			err = errors.Join(err, rerr)
		}
	}()

	staged, err := p.stage(ctx, work, opts.InputDirectory, opts.OutputDirectory, area.Dir())
	if err != nil {
		logger.Info().Err(err).Str("kind", types.KindOf(err).String()).Msg("Variant generation failed")
		return nil, err
	}
	logger.Debug().Int("variants", len(staged)).Msg("Variants staged")

	paths, err = p.config.Optimizer(opts, logger).Optimize(ctx, staged, opts.OutputDirectory, opts.MaxConcurrency)
	if err != nil {
		logger.Info().Err(err).Msg("Compression failed")
		return nil, err
	}

	logger.Info().
		Int("entries", len(work)).
		Int("written", len(paths)).
		Dur("elapsed", time.Since(start)).
		Msg("Generation complete")
	return paths, nil
}

// stage launches every entry at once and waits for all of them. Within an
// entry the replacer and the generator run concurrently and both settle
// before the entry does.
func (p *Pipeline) stage(ctx context.Context, work validate.WorkSet, inputDir, outputDir, stagingDir string) ([]string, error) {
	outcomes := make([]entryOutcome, len(work))

	var wg sync.WaitGroup
	for i, item := range work {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome := &outcomes[i]
			outcome.id = item.ID

			var inner sync.WaitGroup
			inner.Add(2)
			go func() {
				defer inner.Done()
				_, outcome.clearErr = p.replacer.Clear(ctx, outputDir, item.Entry.Basename)
			}()
			go func() {
				defer inner.Done()
				outcome.staged, outcome.genErr = p.generator.Generate(ctx, item.ID, item.Entry, inputDir, stagingDir)
			}()
			inner.Wait()
		}()
	}
	wg.Wait()

	return p.aggregate(outcomes)
}

// aggregate decides the overall outcome once every entry has settled. Any
// fatal error wins and carries the usage errors along; otherwise usage errors
// are reported as a set.
func (p *Pipeline) aggregate(outcomes []entryOutcome) ([]string, error) {
	var (
		staged []string
		seen   = make(map[string]struct{})
		fatals []error
		usage  types.UsageErrors
	)
	for _, outcome := range outcomes {
		for _, err := range []error{outcome.clearErr, outcome.genErr} {
			switch types.KindOf(err) {
			case types.KindNone:
			case types.KindUsage:
				found, _ := types.UsageErrorsOf(err)
				usage = append(usage, found...)
			case types.KindFatal:
				p.config.Logger.Error().Err(err).Str("id", outcome.id).Msg("Entry failed")
				fatals = append(fatals, err)
			}
		}
		// ids sharing a basename stage the same files
		for _, path := range outcome.staged {
			if _, dup := seen[path]; dup {
				continue
			}
			seen[path] = struct{}{}
			staged = append(staged, path)
		}
	}

	if len(fatals) > 0 {
		if len(usage) > 0 {
			fatals = append(fatals, usage)
		}
		return nil, errors.Join(fatals...)
	}
	if len(usage) > 0 {
		return nil, usage
	}
	return staged, nil
}

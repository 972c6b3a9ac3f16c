package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	appropriateimages "github.com/menta2k/appropriate-images"
	"github.com/menta2k/appropriate-images/internal/config"
	"github.com/menta2k/appropriate-images/internal/utils"
	"github.com/menta2k/appropriate-images/pkg/publish"
	"github.com/menta2k/appropriate-images/pkg/types"
)

const (
	FlagAll            = "all"
	FlagQuiet          = "quiet"
	FlagMaxConcurrency = "max-concurrency"
	FlagConfig         = "config"
	FlagImages         = "images"
	FlagInput          = "input"
	FlagOutput         = "output"
	FlagLogLevel       = "log-level"
	FlagNoPublish      = "no-publish"
)

type options struct {
	all            bool
	quiet          bool
	noPublish      bool
	maxConcurrency int
	configFile     string
	images         string
	input          string
	output         string
	logLevel       string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line and maps the outcome to an exit code: 0 on
// success, 2 for usage errors, 1 for anything else.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := New()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	cmd, err := root.ExecuteContextC(ctx)
	switch types.KindOf(err) {
	case types.KindNone:
		return 0
	case types.KindUsage:
		usage, _ := types.UsageErrorsOf(err)
		for _, u := range usage {
			fmt.Fprintf(stdout, "Usage error: %s\n", u.Message)
		}
		_ = cmd.Help()
		return 2
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}

// New creates the appropriate-images root command
func New() *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:   "appropriate-images [<id> ...]",
		Short: "Generate resized and optimized variants from a directory of images.",
		Long: `Generate resized and optimized variants from a directory of images.

ids are keys from the image config identifying images to be processed.
Every size is written in the source's format plus a WebP sibling, and
previously generated variants of the same images are removed.`,
		Example: `  appropriate-images horse
  appropriate-images --all
  appropriate-images horse pigMan walrus --quiet`,
		Version:       appropriateimages.Version,
		Args:          usageArgs(cobra.ArbitraryArgs),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, args, o)
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &types.UsageError{Message: err.Error()}
	})

	flags := cmd.Flags()
	flags.BoolVarP(&o.all, FlagAll, "a", false, "just process all the images, don't look back")
	flags.BoolVarP(&o.quiet, FlagQuiet, "q", false, "do not log output filenames")
	flags.IntVarP(&o.maxConcurrency, FlagMaxConcurrency, "m", 0, "maximum number of concurrent compression jobs (0 = unbounded)")
	flags.StringVar(&o.input, FlagInput, "", "directory holding the source images")
	flags.StringVar(&o.output, FlagOutput, "", "directory receiving the generated images")
	flags.BoolVar(&o.noPublish, FlagNoPublish, false, "skip uploading to the configured bucket")

	persistent := cmd.PersistentFlags()
	persistent.StringVarP(&o.configFile, FlagConfig, "c", "", "settings file (default "+config.GetConfigPath()+")")
	persistent.StringVarP(&o.images, FlagImages, "i", "", "image config file (YAML or JSON)")
	persistent.StringVar(&o.logLevel, FlagLogLevel, "", "log level: trace, debug, info, warn, error or disabled")

	cmd.AddCommand(newURLCommand(o), newInitCommand(o))
	return cmd
}

// usageArgs reports argument validation failures as usage errors
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return &types.UsageError{Message: err.Error()}
		}
		return nil
	}
}

// settings loads the settings file and applies command line overrides
func (o *options) settings(cmd *cobra.Command) (*config.Settings, error) {
	s, err := config.Load(o.configFile)
	if err != nil {
		return nil, &types.UsageError{Option: "config", Message: err.Error()}
	}

	flags := cmd.Flags()
	if flags.Changed(FlagInput) {
		s.InputDirectory = o.input
	}
	if flags.Changed(FlagOutput) {
		s.OutputDirectory = o.output
	}
	if flags.Changed(FlagMaxConcurrency) {
		s.MaxConcurrency = o.maxConcurrency
	}
	if flags.Changed(FlagImages) {
		s.ImageConfig = o.images
	}
	if flags.Changed(FlagLogLevel) {
		s.Log.Level = o.logLevel
	}
	if err := s.Validate(); err != nil {
		return nil, &types.UsageError{Option: "config", Message: err.Error()}
	}
	return s, nil
}

func newLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: w}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

func loadImageConfig(s *config.Settings) (types.ImageConfig, error) {
	cfg, err := config.LoadImageConfig(s.ImageConfig)
	if err != nil {
		return nil, &types.UsageError{Option: "images", Message: err.Error()}
	}
	return cfg, nil
}

func newGenerator(s *config.Settings, logger zerolog.Logger) (*appropriateimages.Generator, error) {
	cfg := appropriateimages.DefaultConfig()
	cfg.Logger = logger
	g := appropriateimages.NewWithConfig(cfg)

	if s.Attention.Backend == "ollama" {
		locator, err := appropriateimages.OllamaLocator(s.Attention.URL, s.Attention.Model)
		if err != nil {
			return nil, err
		}
		g.SetLocator(locator)
		logger.Debug().Str("model", s.Attention.Model).Str("url", s.Attention.URL).Msg("Using Ollama for attention crops")
	}
	return g, nil
}

func runGenerate(cmd *cobra.Command, args []string, o *options) error {
	if len(args) == 0 && !o.all {
		return &types.UsageError{Message: "You must specify image ids or use --all"}
	}

	s, err := o.settings(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), s.LogLevel())

	imageConfig, err := loadImageConfig(s)
	if err != nil {
		return err
	}

	ids := args
	if o.all {
		ids = nil
	}
	opts := s.GenerateOptions(ids)
	if opts.InputDirectory, err = filepath.Abs(opts.InputDirectory); err != nil {
		return err
	}
	if opts.OutputDirectory, err = filepath.Abs(opts.OutputDirectory); err != nil {
		return err
	}
	if !utils.DirExists(opts.InputDirectory) {
		return &types.UsageError{Option: "inputDirectory", Message: fmt.Sprintf("input directory %s does not exist", opts.InputDirectory)}
	}

	g, err := newGenerator(s, logger)
	if err != nil {
		return err
	}
	paths, err := g.Generate(cmd.Context(), imageConfig, opts)
	if err != nil {
		// a failed staging teardown still leaves the written files in place
		if len(paths) > 0 && !o.quiet {
			report(cmd.OutOrStdout(), opts.OutputDirectory, paths)
		}
		return err
	}

	if pubCfg, ok := s.PublishConfig(); ok && !o.noPublish {
		publisher, err := publish.New(pubCfg, logger)
		if err != nil {
			return err
		}
		keys, err := publisher.Publish(cmd.Context(), opts.OutputDirectory, paths)
		if err != nil {
			return fmt.Errorf("failed to publish: %w", err)
		}
		logger.Info().Str("bucket", pubCfg.Bucket).Int("objects", len(keys)).Msg("Published generated images")
	}

	if !o.quiet {
		report(cmd.OutOrStdout(), opts.OutputDirectory, paths)
	}
	return nil
}

// report lists the written files relative to outputDir and a summary line
func report(w io.Writer, outputDir string, paths []string) {
	for _, rel := range utils.RelativePaths(outputDir, paths) {
		fmt.Fprintf(w, "Saved %s\n", rel)
	}
	fmt.Fprintf(w, "Generated %d optimized images (%s)\n", len(paths), humanize.Bytes(utils.TotalSize(paths)))
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/rs/zerolog"
	yamlv3 "gopkg.in/yaml.v3"
	"sigs.k8s.io/yaml"

	"github.com/menta2k/appropriate-images/internal/utils"
	"github.com/menta2k/appropriate-images/pkg/publish"
	"github.com/menta2k/appropriate-images/pkg/types"
)

// Settings holds the application configuration. Every field can be
// overridden from the environment.
type Settings struct {
	InputDirectory  string        `yaml:"input_directory" json:"input_directory" env:"APPROPRIATE_IMAGES_INPUT_DIRECTORY" env-default:"src/images" validate:"required"`
	OutputDirectory string        `yaml:"output_directory" json:"output_directory" env:"APPROPRIATE_IMAGES_OUTPUT_DIRECTORY" env-default:"public/images" validate:"required"`
	ImageConfig     string        `yaml:"image_config" json:"image_config" env:"APPROPRIATE_IMAGES_IMAGE_CONFIG" env-default:"images.yaml" validate:"required"`
	StagingRoot     string        `yaml:"staging_root" json:"staging_root" env:"APPROPRIATE_IMAGES_STAGING_ROOT"`
	MaxConcurrency  int           `yaml:"max_concurrency" json:"max_concurrency" env:"APPROPRIATE_IMAGES_MAX_CONCURRENCY" validate:"min=0"`
	Timeout         time.Duration `yaml:"timeout" json:"timeout" env:"APPROPRIATE_IMAGES_TIMEOUT" validate:"min=0"`

	PNG  types.PNGOptions  `yaml:"png" json:"png" env-prefix:"APPROPRIATE_IMAGES_PNG_"`
	JPEG types.JPEGOptions `yaml:"jpeg" json:"jpeg" env-prefix:"APPROPRIATE_IMAGES_JPEG_"`
	WebP types.WebPOptions `yaml:"webp" json:"webp" env-prefix:"APPROPRIATE_IMAGES_WEBP_"`

	Attention AttentionSettings `yaml:"attention" json:"attention" env-prefix:"APPROPRIATE_IMAGES_ATTENTION_"`
	Publish   PublishSettings   `yaml:"publish" json:"publish" env-prefix:"APPROPRIATE_IMAGES_PUBLISH_"`
	Log       LogSettings       `yaml:"log" json:"log" env-prefix:"APPROPRIATE_IMAGES_LOG_"`
}

// AttentionSettings selects the subject locator behind the "attention" crop
type AttentionSettings struct {
	// Backend is "saliency" (built in) or "ollama".
	Backend string `yaml:"backend" json:"backend" env:"BACKEND" env-default:"saliency" validate:"oneof=saliency ollama"`
	URL     string `yaml:"url" json:"url" env:"URL" env-default:"http://localhost:11434" validate:"omitempty,url"`
	Model   string `yaml:"model" json:"model" env:"MODEL" validate:"required_if=Backend ollama"`
}

// PublishSettings configures the optional upload of generated images
type PublishSettings struct {
	Endpoint    string `yaml:"endpoint" json:"endpoint" env:"ENDPOINT" validate:"required_with=Bucket"`
	Bucket      string `yaml:"bucket" json:"bucket" env:"BUCKET"`
	Prefix      string `yaml:"prefix" json:"prefix" env:"PREFIX"`
	AccessKey   string `yaml:"access_key" json:"access_key" env:"ACCESS_KEY"`
	SecretKey   string `yaml:"secret_key" json:"secret_key" env:"SECRET_KEY"`
	UseSSL      bool   `yaml:"use_ssl" json:"use_ssl" env:"USE_SSL" env-default:"true"`
	Concurrency int    `yaml:"concurrency" json:"concurrency" env:"CONCURRENCY" env-default:"4" validate:"min=1"`
}

// LogSettings holds logging configuration
type LogSettings struct {
	Level string `yaml:"level" json:"level" env:"LEVEL" env-default:"info" validate:"oneof=trace debug info warn error disabled"`
}

// Default returns settings with default values
func Default() *Settings {
	return &Settings{
		InputDirectory:  "src/images",
		OutputDirectory: "public/images",
		ImageConfig:     "images.yaml",
		PNG:             types.PNGOptions{CompressionLevel: "best"},
		JPEG:            types.JPEGOptions{Quality: 75},
		WebP:            types.WebPOptions{Quality: 75},
		Attention: AttentionSettings{
			Backend: "saliency",
			URL:     "http://localhost:11434",
		},
		Publish: PublishSettings{
			UseSSL:      true,
			Concurrency: 4,
		},
		Log: LogSettings{Level: "info"},
	}
}

// LoadFromFile loads settings from a YAML or JSON file, applies defaults and
// environment overrides, and validates the result.
func LoadFromFile(filename string) (*Settings, error) {
	var s Settings
	if err := cleanenv.ReadConfig(filename, &s); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadFromEnv loads settings from defaults and the environment only
func LoadFromEnv() (*Settings, error) {
	var s Settings
	if err := cleanenv.ReadEnv(&s); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads filename when given. Otherwise the default config path is used
// if it exists, and the environment alone if it does not.
func Load(filename string) (*Settings, error) {
	if filename != "" {
		return LoadFromFile(filename)
	}
	if path := GetConfigPath(); utils.FileExists(path) {
		return LoadFromFile(path)
	}
	return LoadFromEnv()
}

// SaveToFile writes settings as YAML in the layout LoadFromFile reads
func (s *Settings) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yamlv3.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

var validate = validator.New()

// Validate checks if the settings are valid
func (s *Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]error, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Errorf("%s fails %q", fe.Namespace(), fe.Tag())
			}
			return fmt.Errorf("invalid settings: %w", errors.Join(msgs...))
		}
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

// GenerateOptions converts the settings into options for one run
func (s *Settings) GenerateOptions(ids []string) types.GenerateOptions {
	return types.GenerateOptions{
		InputDirectory:  s.InputDirectory,
		OutputDirectory: s.OutputDirectory,
		IDs:             ids,
		MaxConcurrency:  s.MaxConcurrency,
		PNG:             s.PNG,
		JPEG:            s.JPEG,
		WebP:            s.WebP,
		StagingRoot:     s.StagingRoot,
		Timeout:         s.Timeout,
	}
}

// PublishConfig returns the bucket settings, or false when publishing is off
func (s *Settings) PublishConfig() (publish.Config, bool) {
	p := s.Publish
	if p.Bucket == "" {
		return publish.Config{}, false
	}
	return publish.Config{
		Endpoint:    p.Endpoint,
		AccessKey:   p.AccessKey,
		SecretKey:   p.SecretKey,
		UseSSL:      p.UseSSL,
		Bucket:      p.Bucket,
		Prefix:      p.Prefix,
		Concurrency: p.Concurrency,
	}, true
}

// LogLevel returns the configured zerolog level
func (s *Settings) LogLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(s.Log.Level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// LoadImageConfig reads an image config from a YAML or JSON file
func LoadImageConfig(filename string) (types.ImageConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read image config: %w", err)
	}

	var cfg types.ImageConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse image config %s: %w", filename, err)
	}
	if cfg == nil {
		cfg = types.ImageConfig{}
	}
	return cfg, nil
}

// GetConfigPath returns the default settings file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./appropriate-images.yaml"
	}
	return filepath.Join(home, ".config", "appropriate-images", "config.yaml")
}


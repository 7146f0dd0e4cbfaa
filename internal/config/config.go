package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"tagextract/internal/task"
)

const (
	defaultPort               = 8000
	defaultTempDir            = "temp_pdf_processing"
	defaultMaxConcurrentTasks = 3
	defaultModel              = "gemini-1.5-flash-latest"
	defaultDPI                = 300
	defaultMaxUploadMB        = 50
)

// Config describes runtime configuration for the service.
type Config struct {
	Port               int    `yaml:"port"`
	TempDir            string `yaml:"temp_dir"`
	MaxConcurrentTasks int    `yaml:"max_concurrent_tasks"`
	DefaultModel       string `yaml:"default_model"`
	DefaultDPI         int    `yaml:"default_dpi"`
	MaxUploadMB        int    `yaml:"max_upload_mb"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:               defaultPort,
		TempDir:            defaultTempDir,
		MaxConcurrentTasks: defaultMaxConcurrentTasks,
		DefaultModel:       defaultModel,
		DefaultDPI:         defaultDPI,
		MaxUploadMB:        defaultMaxUploadMB,
	}
}

// Load reads YAML config from the provided path. If the file does not exist
// or is empty, defaults are returned with no error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, errors.New("empty config path")
	}
	fileData, err := os.ReadFile(path) //nolint:gosec // config path is controlled by deployment
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if len(fileData) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(fileData, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	// basic normalization
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.TempDir == "" {
		cfg.TempDir = defaultTempDir
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = defaultModel
	}
	if cfg.DefaultDPI == 0 {
		cfg.DefaultDPI = defaultDPI
	}
	if cfg.MaxUploadMB == 0 {
		cfg.MaxUploadMB = defaultMaxUploadMB
	}
	// validate concurrency explicitly: values < 1 are not allowed
	if cfg.MaxConcurrentTasks < 1 {
		return cfg, fmt.Errorf("invalid max_concurrent_tasks: %d (must be >= 1)", cfg.MaxConcurrentTasks)
	}
	if cfg.DefaultDPI < task.MinDPI || cfg.DefaultDPI > task.MaxDPI {
		return cfg, fmt.Errorf("invalid default_dpi: %d (must be between %d and %d)", cfg.DefaultDPI, task.MinDPI, task.MaxDPI)
	}
	if cfg.MaxUploadMB < 1 {
		return cfg, fmt.Errorf("invalid max_upload_mb: %d (must be >= 1)", cfg.MaxUploadMB)
	}
	return cfg, nil
}

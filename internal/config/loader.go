package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Loader handles loading and parsing of config.yaml files.
type Loader struct {
	logger *zap.Logger
}

// NewLoader creates a new configuration loader.
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		logger: logger,
	}
}

// LoadResult contains the result of loading a configuration file.
type LoadResult struct {
	Config *Config
	// Errors holds problems that made the loader fall back to defaults.
	Errors []error
}

// LoadFromFile loads configuration from a YAML file.
// If the file doesn't exist, returns default configuration with no error.
func (l *Loader) LoadFromFile(path string) (*LoadResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			l.logger.Debug("no config file, using defaults", zap.String("path", path))
			return &LoadResult{Config: DefaultConfig(), Errors: []error{}}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return l.LoadFromString(string(content))
}

// LoadFromString loads configuration from YAML source. Keys that are not set keep their
// defaults. Unknown keys and invalid values are reported in Errors and the whole
// configuration falls back to defaults.
func (l *Loader) LoadFromString(source string) (*LoadResult, error) {
	result := &LoadResult{
		Config: DefaultConfig(),
		Errors: []error{},
	}

	cfg := DefaultConfig()
	decoder := yaml.NewDecoder(bytes.NewReader([]byte(source)))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		result.Errors = append(result.Errors, fmt.Errorf("parse error: %w", err))
		l.logger.Warn("failed to parse config", zap.Error(err))
		return result, nil
	}

	if err := cfg.Validate(); err != nil {
		result.Errors = append(result.Errors, fmt.Errorf("invalid config: %w", err))
		l.logger.Warn("invalid config", zap.Error(err))
		return result, nil
	}

	result.Config = cfg
	return result, nil
}

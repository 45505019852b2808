// Package config provides configuration management for pageread.
// It handles loading the optional YAML config file and mapping it onto the Config struct.
package config

import (
	"errors"
	"fmt"
	"sort"

	"github.com/atinylittleshell/pageread/internal/remote"
	"github.com/atinylittleshell/pageread/internal/truncate"
	"github.com/samber/lo"
	"go.uber.org/zap/zapcore"
)

// Config holds all settings read from config.yaml. Command line flags override them.
type Config struct {
	// LogLevel controls logging verbosity.
	LogLevel string `yaml:"logLevel"`

	// Cwd is the directory relative paths resolve against. Empty means the process
	// working directory.
	Cwd string `yaml:"cwd"`

	// MaxLines and MaxBytes cap every read.
	MaxLines int `yaml:"maxLines"`
	MaxBytes int `yaml:"maxBytes"`

	// MaxFileSizeMB rejects larger local files before reading them. 0 disables the check.
	MaxFileSizeMB int `yaml:"maxFileSizeMB"`

	// Journal enables the read journal.
	Journal bool `yaml:"journal"`

	// Remote holds MCP filesystem servers that can serve as the read backend.
	Remote map[string]remote.ServerConfig `yaml:"remote"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		MaxLines: truncate.DefaultMaxLines,
		MaxBytes: truncate.DefaultMaxBytes,
		Journal:  true,
		Remote:   make(map[string]remote.ServerConfig),
	}
}

// GetRemote returns a remote server by name, or nil if not found.
func (c *Config) GetRemote(name string) *remote.ServerConfig {
	if c.Remote == nil {
		return nil
	}
	server, ok := c.Remote[name]
	if !ok {
		return nil
	}
	return &server
}

// RemoteNames returns the configured remote server names, sorted.
func (c *Config) RemoteNames() []string {
	names := lo.Keys(c.Remote)
	sort.Strings(names)
	return names
}

// Level parses LogLevel.
func (c *Config) Level() (zapcore.Level, error) {
	return zapcore.ParseLevel(c.LogLevel)
}

// MaxFileSize returns MaxFileSizeMB in bytes.
func (c *Config) MaxFileSize() int64 {
	return int64(c.MaxFileSizeMB) * 1024 * 1024
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.Level(); err != nil {
		errs = append(errs, fmt.Errorf("logLevel: %w", err))
	}
	if c.MaxLines < 1 {
		errs = append(errs, fmt.Errorf("maxLines must be at least 1, got %d", c.MaxLines))
	}
	if c.MaxBytes < 1 {
		errs = append(errs, fmt.Errorf("maxBytes must be at least 1, got %d", c.MaxBytes))
	}
	if c.MaxFileSizeMB < 0 {
		errs = append(errs, fmt.Errorf("maxFileSizeMB must not be negative, got %d", c.MaxFileSizeMB))
	}
	for _, name := range c.RemoteNames() {
		server := c.Remote[name]
		switch {
		case server.Command == "" && server.URL == "":
			errs = append(errs, fmt.Errorf("remote %q must specify either command or url", name))
		case server.Command != "" && server.URL != "":
			errs = append(errs, fmt.Errorf("remote %q must not specify both command and url", name))
		}
	}

	return errors.Join(errs...)
}

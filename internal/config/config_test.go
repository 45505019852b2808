package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/atinylittleshell/pageread/internal/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NotNil(t, cfg)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 2000, cfg.MaxLines)
	assert.Equal(t, 50*1024, cfg.MaxBytes)
	assert.Zero(t, cfg.MaxFileSizeMB)
	assert.True(t, cfg.Journal)
	assert.NotNil(t, cfg.Remote)
	assert.Empty(t, cfg.Remote)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_GetRemote(t *testing.T) {
	t.Run("returns nil for nil Remote map", func(t *testing.T) {
		cfg := &Config{Remote: nil}
		assert.Nil(t, cfg.GetRemote("fs"))
	})

	t.Run("returns nil for non-existent remote", func(t *testing.T) {
		assert.Nil(t, DefaultConfig().GetRemote("fs"))
	})

	t.Run("returns remote when exists", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Remote["fs"] = remoteWithURL("http://localhost:9000/mcp")

		server := cfg.GetRemote("fs")
		require.NotNil(t, server)
		assert.Equal(t, "http://localhost:9000/mcp", server.URL)
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectedErr string
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "logLevel"},
		{"zero max lines", func(c *Config) { c.MaxLines = 0 }, "maxLines must be at least 1"},
		{"negative max bytes", func(c *Config) { c.MaxBytes = -5 }, "maxBytes must be at least 1"},
		{"negative file size", func(c *Config) { c.MaxFileSizeMB = -1 }, "maxFileSizeMB must not be negative"},
		{"remote without transport", func(c *Config) { c.Remote["x"] = remoteWithURL("") }, `remote "x" must specify either command or url`},
		{"remote with both transports", func(c *Config) {
			server := remoteWithURL("http://x")
			server.Command = "npx"
			c.Remote["x"] = server
		}, `remote "x" must not specify both`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedErr)
		})
	}
}

func TestConfig_Helpers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "debug"
	cfg.MaxFileSizeMB = 2
	cfg.Remote["b"] = remoteWithURL("http://b")
	cfg.Remote["a"] = remoteWithURL("http://a")

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, level)
	assert.Equal(t, int64(2*1024*1024), cfg.MaxFileSize())
	assert.Equal(t, []string{"a", "b"}, cfg.RemoteNames())
}

func TestLoader_LoadFromString(t *testing.T) {
	loader := NewLoader(nil)

	t.Run("full config", func(t *testing.T) {
		result, err := loader.LoadFromString(`
logLevel: debug
cwd: /srv/project
maxLines: 500
maxBytes: 8192
maxFileSizeMB: 10
journal: false
remote:
  fs:
    command: npx
    args: ["-y", "@modelcontextprotocol/server-filesystem", "/srv"]
    env:
      NODE_ENV: production
  cloud:
    url: https://files.example.com/mcp
    headers:
      Authorization: Bearer abc
    readTool: read_file
`)
		require.NoError(t, err)
		assert.Empty(t, result.Errors)

		cfg := result.Config
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, "/srv/project", cfg.Cwd)
		assert.Equal(t, 500, cfg.MaxLines)
		assert.Equal(t, 8192, cfg.MaxBytes)
		assert.Equal(t, 10, cfg.MaxFileSizeMB)
		assert.False(t, cfg.Journal)

		fs := cfg.GetRemote("fs")
		require.NotNil(t, fs)
		assert.Equal(t, "npx", fs.Command)
		assert.Equal(t, []string{"-y", "@modelcontextprotocol/server-filesystem", "/srv"}, fs.Args)
		assert.Equal(t, "production", fs.Env["NODE_ENV"])

		cloud := cfg.GetRemote("cloud")
		require.NotNil(t, cloud)
		assert.Equal(t, "Bearer abc", cloud.Headers["Authorization"])
		assert.Equal(t, "read_file", cloud.ReadTool)
	})

	t.Run("partial config keeps defaults", func(t *testing.T) {
		result, err := loader.LoadFromString("maxLines: 10\n")
		require.NoError(t, err)
		assert.Empty(t, result.Errors)
		assert.Equal(t, 10, result.Config.MaxLines)
		assert.Equal(t, 50*1024, result.Config.MaxBytes)
		assert.True(t, result.Config.Journal)
	})

	t.Run("empty source", func(t *testing.T) {
		result, err := loader.LoadFromString("")
		require.NoError(t, err)
		assert.Empty(t, result.Errors)
		assert.Equal(t, DefaultConfig(), result.Config)
	})

	t.Run("syntax error falls back to defaults", func(t *testing.T) {
		result, err := loader.LoadFromString("maxLines: [1, 2\n")
		require.NoError(t, err)
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0].Error(), "parse error")
		assert.Equal(t, DefaultConfig(), result.Config)
	})

	t.Run("unknown key", func(t *testing.T) {
		result, err := loader.LoadFromString("maxLine: 10\n")
		require.NoError(t, err)
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0].Error(), "maxLine")
	})

	t.Run("invalid value", func(t *testing.T) {
		result, err := loader.LoadFromString("maxBytes: 0\n")
		require.NoError(t, err)
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0].Error(), "invalid config")
		assert.Equal(t, 50*1024, result.Config.MaxBytes)
	})
}

func TestLoader_LoadFromFile(t *testing.T) {
	loader := NewLoader(nil)

	t.Run("missing file returns defaults", func(t *testing.T) {
		result, err := loader.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		assert.Empty(t, result.Errors)
		assert.Equal(t, DefaultConfig(), result.Config)
	})

	t.Run("reads file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("logLevel: warn\n"), 0644))

		result, err := loader.LoadFromFile(path)
		require.NoError(t, err)
		assert.Equal(t, "warn", result.Config.LogLevel)
	})

	t.Run("unreadable path", func(t *testing.T) {
		_, err := loader.LoadFromFile(t.TempDir())
		assert.Error(t, err)
	})
}

func remoteWithURL(url string) remote.ServerConfig {
	return remote.ServerConfig{URL: url}
}

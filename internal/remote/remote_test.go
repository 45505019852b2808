package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/atinylittleshell/pageread/internal/backend"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type pathInput struct {
	Path string `json:"path"`
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{IsError: true, Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

// newFilesystemServer serves the filesystem tools over fs, the way the reference
// filesystem MCP server does.
func newFilesystemServer(fs afero.Fs, withList bool) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "test-filesystem", Version: "1.0.0"}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        DefaultInfoTool,
		Description: "Returns file metadata",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in pathInput) (*mcp.CallToolResult, any, error) {
		info, err := fs.Stat(in.Path)
		if err != nil {
			return errorResult(err.Error()), nil, nil
		}
		return textResult(fmt.Sprintf("size: %d\nisDirectory: %t\nisFile: %t", info.Size(), info.IsDir(), !info.IsDir())), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        DefaultReadTool,
		Description: "Reads a text file",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in pathInput) (*mcp.CallToolResult, any, error) {
		data, err := afero.ReadFile(fs, in.Path)
		if err != nil {
			return errorResult(err.Error()), nil, nil
		}
		return textResult(string(data)), nil, nil
	})

	if withList {
		mcp.AddTool(server, &mcp.Tool{
			Name:        DefaultListTool,
			Description: "Lists a directory",
		}, func(ctx context.Context, req *mcp.CallToolRequest, in pathInput) (*mcp.CallToolResult, any, error) {
			entries, err := afero.ReadDir(fs, in.Path)
			if err != nil {
				return errorResult(err.Error()), nil, nil
			}
			lines := make([]string, 0, len(entries))
			for _, entry := range entries {
				prefix := "[FILE] "
				if entry.IsDir() {
					prefix = "[DIR] "
				}
				lines = append(lines, prefix+entry.Name())
			}
			return textResult(strings.Join(lines, "\n")), nil, nil
		})
	}

	return server
}

func serveHTTP(t *testing.T, server *mcp.Server, inspect func(*http.Request)) *httptest.Server {
	t.Helper()
	handler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		if inspect != nil {
			inspect(r)
		}
		return server
	}, &mcp.StreamableHTTPOptions{})
	testServer := httptest.NewServer(handler)
	t.Cleanup(testServer.Close)
	return testServer
}

func seededFs(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/srv/docs", 0755))
	require.NoError(t, afero.WriteFile(fs, "/srv/notes.txt", []byte("alpha\nbeta\ngamma"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/srv/readme.md", []byte("# hello"), 0644))
	return fs
}

func TestNewManager(t *testing.T) {
	manager := NewManager(nil, "test")
	require.NotNil(t, manager)
	assert.NotNil(t, manager.logger)
	assert.Empty(t, manager.ListServers())
	require.NoError(t, manager.Close())
}

func TestManagerRegisterServer_Validation(t *testing.T) {
	manager := NewManager(zaptest.NewLogger(t), "test")
	defer manager.Close()

	err := manager.RegisterServer("empty", ServerConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must specify either command or URL")

	manager.mu.Lock()
	manager.servers["dup"] = &Server{Name: "dup", Tools: make(map[string]*mcp.Tool)}
	manager.mu.Unlock()

	err = manager.RegisterServer("dup", ServerConfig{Command: "true"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestManagerUnknownServer(t *testing.T) {
	manager := NewManager(nil, "test")
	defer manager.Close()

	_, err := manager.GetServer("missing")
	assert.Error(t, err)
	_, err = manager.CallTool(context.Background(), "missing", "x", nil)
	assert.Error(t, err)
	assert.False(t, manager.HasTool("missing", "x"))

	_, err = NewBackend(manager, "missing")
	assert.Error(t, err)
}

func TestManagerStdioCommandFails(t *testing.T) {
	if _, err := exec.LookPath("false"); err != nil {
		t.Skip("false not found in PATH")
	}

	manager := NewManager(zaptest.NewLogger(t), "test")
	defer manager.Close()

	err := manager.RegisterServer("broken", ServerConfig{Command: "false"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start MCP server 'broken'")
	assert.Empty(t, manager.ListServers())
}

func TestManagerHTTP(t *testing.T) {
	testServer := serveHTTP(t, newFilesystemServer(seededFs(t), true), nil)

	manager := NewManager(zaptest.NewLogger(t), "test")
	defer manager.Close()

	require.NoError(t, manager.RegisterServer("fs", ServerConfig{URL: testServer.URL}))
	assert.Equal(t, []string{"fs"}, manager.ListServers())

	tools, err := manager.ListTools("fs")
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultInfoTool, DefaultListTool, DefaultReadTool}, tools)

	result, err := manager.CallTool(context.Background(), "fs", DefaultReadTool, map[string]interface{}{"path": "/srv/readme.md"})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "# hello", textOf(result))

	_, err = manager.CallTool(context.Background(), "fs", "write_file", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestManagerHTTPHeaders(t *testing.T) {
	var authorized atomic.Bool
	testServer := serveHTTP(t, newFilesystemServer(seededFs(t), false), func(r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer secret" {
			authorized.Store(true)
		}
	})

	manager := NewManager(nil, "test")
	defer manager.Close()

	require.NoError(t, manager.RegisterServer("auth", ServerConfig{
		URL:     testServer.URL,
		Headers: map[string]string{"Authorization": "Bearer secret"},
	}))
	assert.True(t, authorized.Load(), "Authorization header was not received by server")
}

func TestBackend(t *testing.T) {
	testServer := serveHTTP(t, newFilesystemServer(seededFs(t), true), nil)

	manager := NewManager(zaptest.NewLogger(t), "test")
	defer manager.Close()
	require.NoError(t, manager.RegisterServer("fs", ServerConfig{URL: testServer.URL}))

	b, err := NewBackend(manager, "fs")
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("access existing file", func(t *testing.T) {
		assert.NoError(t, b.Access(ctx, "/srv/notes.txt"))
	})

	t.Run("access missing file", func(t *testing.T) {
		err := b.Access(ctx, "/srv/nope.txt")
		assert.ErrorIs(t, err, backend.ErrNotReadable)
	})

	t.Run("access directory", func(t *testing.T) {
		err := b.Access(ctx, "/srv/docs")
		assert.ErrorIs(t, err, backend.ErrNotReadable)
		assert.Contains(t, err.Error(), "is a directory")
	})

	t.Run("read file", func(t *testing.T) {
		data, err := b.ReadFile(ctx, "/srv/notes.txt")
		require.NoError(t, err)
		assert.Equal(t, "alpha\nbeta\ngamma", string(data))
	})

	t.Run("read missing file", func(t *testing.T) {
		_, err := b.ReadFile(ctx, "/srv/nope.txt")
		assert.Error(t, err)
	})

	t.Run("list directory", func(t *testing.T) {
		names, err := b.ListDir(ctx, "/srv")
		require.NoError(t, err)
		assert.Equal(t, []string{"notes.txt", "readme.md"}, names)
	})

	t.Run("cancelled call", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := b.ReadFile(cancelled, "/srv/notes.txt")
		assert.Error(t, err)
	})
}

func TestBackendWithoutListTool(t *testing.T) {
	testServer := serveHTTP(t, newFilesystemServer(seededFs(t), false), nil)

	manager := NewManager(nil, "test")
	defer manager.Close()
	require.NoError(t, manager.RegisterServer("fs", ServerConfig{URL: testServer.URL}))

	b, err := NewBackend(manager, "fs")
	require.NoError(t, err)

	_, err = b.ListDir(context.Background(), "/srv")
	assert.Error(t, err)
}

func TestBackendRequiresTools(t *testing.T) {
	testServer := serveHTTP(t, newFilesystemServer(seededFs(t), false), nil)

	manager := NewManager(nil, "test")
	defer manager.Close()
	require.NoError(t, manager.RegisterServer("fs", ServerConfig{URL: testServer.URL, ReadTool: "read_file"}))

	_, err := NewBackend(manager, "fs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no 'read_file' tool")
}

func TestIsDirectory(t *testing.T) {
	assert.True(t, isDirectory("size: 0\nisDirectory: true\nisFile: false"))
	assert.False(t, isDirectory("size: 10\nisDirectory: false"))
	assert.False(t, isDirectory("no metadata"))
}

package remote

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/atinylittleshell/pageread/internal/backend"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/samber/lo"
)

// Tool names exposed by the reference MCP filesystem server.
const (
	DefaultInfoTool = "get_file_info"
	DefaultReadTool = "read_text_file"
	DefaultListTool = "list_directory"
)

var errToolFailed = errors.New("remote tool failed")

// Backend reads files from a registered MCP server. It implements backend.Backend,
// and backend.Lister when the server offers a directory listing tool.
type Backend struct {
	manager  *Manager
	server   string
	infoTool string
	readTool string
	listTool string
}

// NewBackend returns a backend that reads through the named server. The server must
// already be registered with manager.
func NewBackend(manager *Manager, serverName string) (*Backend, error) {
	server, err := manager.GetServer(serverName)
	if err != nil {
		return nil, err
	}

	b := &Backend{
		manager:  manager,
		server:   serverName,
		infoTool: lo.CoalesceOrEmpty(server.Config.InfoTool, DefaultInfoTool),
		readTool: lo.CoalesceOrEmpty(server.Config.ReadTool, DefaultReadTool),
		listTool: lo.CoalesceOrEmpty(server.Config.ListTool, DefaultListTool),
	}

	for _, tool := range []string{b.infoTool, b.readTool} {
		if !manager.HasTool(serverName, tool) {
			return nil, fmt.Errorf("MCP server '%s' has no '%s' tool", serverName, tool)
		}
	}
	return b, nil
}

// Access asks the server for the file's metadata. Directories and files the server
// refuses to describe are not readable.
func (b *Backend) Access(ctx context.Context, absPath string) error {
	text, err := b.call(ctx, b.infoTool, absPath)
	if err != nil {
		if errors.Is(err, errToolFailed) {
			return fmt.Errorf("%w: %v", backend.ErrNotReadable, err)
		}
		return err
	}
	if isDirectory(text) {
		return fmt.Errorf("%w: %s is a directory", backend.ErrNotReadable, absPath)
	}
	return nil
}

// ReadFile returns the file's text as served by the read tool.
func (b *Backend) ReadFile(ctx context.Context, absPath string) ([]byte, error) {
	text, err := b.call(ctx, b.readTool, absPath)
	if err != nil {
		return nil, err
	}
	return []byte(text), nil
}

// ListDir returns the names of the files in dir.
func (b *Backend) ListDir(ctx context.Context, dir string) ([]string, error) {
	if !b.manager.HasTool(b.server, b.listTool) {
		return nil, fmt.Errorf("MCP server '%s' has no '%s' tool", b.server, b.listTool)
	}

	text, err := b.call(ctx, b.listTool, dir)
	if err != nil {
		return nil, err
	}

	names := lo.FilterMap(strings.Split(text, "\n"), func(line string, _ int) (string, bool) {
		name, ok := strings.CutPrefix(strings.TrimSpace(line), "[FILE] ")
		return name, ok && name != ""
	})
	sort.Strings(names)
	return names, nil
}

func (b *Backend) call(ctx context.Context, tool, path string) (string, error) {
	result, err := b.manager.CallTool(ctx, b.server, tool, map[string]interface{}{"path": path})
	if err != nil {
		return "", err
	}

	text := textOf(result)
	if result.IsError {
		return "", fmt.Errorf("%w: %s %s: %s", errToolFailed, tool, path, text)
	}
	return text, nil
}

func textOf(result *mcp.CallToolResult) string {
	var sb strings.Builder
	for _, content := range result.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}

// isDirectory recognizes the "isDirectory: true" line of the filesystem server's info text.
func isDirectory(info string) bool {
	for _, line := range strings.Split(info, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if ok && strings.TrimSpace(key) == "isDirectory" {
			return strings.TrimSpace(value) == "true"
		}
	}
	return false
}

// Package remote reads files through MCP filesystem servers.
package remote

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"sort"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// ServerConfig represents the configuration for an MCP server
type ServerConfig struct {
	// For stdio transport (local process)
	Command string            `yaml:"command,omitempty"` // Command to execute (e.g., "npx")
	Args    []string          `yaml:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`

	// For streamable HTTP transport (remote server)
	URL     string            `yaml:"url,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"` // HTTP headers for authentication

	// Tool names used by Backend. Empty means the filesystem server defaults.
	InfoTool string `yaml:"infoTool,omitempty"`
	ReadTool string `yaml:"readTool,omitempty"`
	ListTool string `yaml:"listTool,omitempty"`
}

// Server represents a connected MCP server
type Server struct {
	Name    string
	Config  ServerConfig
	Session *mcp.ClientSession
	Tools   map[string]*mcp.Tool
	mu      sync.RWMutex
}

// Manager manages connections to multiple MCP servers
type Manager struct {
	servers map[string]*Server
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *zap.Logger
	version string
}

// NewManager creates a new MCP manager. version is reported to servers as the client version.
func NewManager(logger *zap.Logger, version string) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		servers: make(map[string]*Server),
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
		version: version,
	}
}

// RegisterServer connects to an MCP server and caches its tool list
func (m *Manager) RegisterServer(name string, config ServerConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.servers[name]; exists {
		return fmt.Errorf("MCP server '%s' already registered", name)
	}

	if config.Command == "" && config.URL == "" {
		return fmt.Errorf("MCP server '%s' must specify either command or URL", name)
	}

	server := &Server{
		Name:   name,
		Config: config,
		Tools:  make(map[string]*mcp.Tool),
	}

	var transport mcp.Transport
	if config.Command != "" {
		transport = stdioTransport(config)
	} else {
		transport = httpTransport(config)
	}

	if err := m.connect(server, transport); err != nil {
		return fmt.Errorf("failed to start MCP server '%s': %w", name, err)
	}

	m.servers[name] = server
	m.logger.Info("registered MCP server",
		zap.String("name", name),
		zap.Int("tools", len(server.Tools)))
	return nil
}

func stdioTransport(config ServerConfig) mcp.Transport {
	cmd := exec.Command(config.Command, config.Args...)
	if len(config.Env) > 0 {
		env := os.Environ()
		for k, v := range config.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		cmd.Env = env
	}
	return &mcp.CommandTransport{Command: cmd}
}

func httpTransport(config ServerConfig) mcp.Transport {
	transport := &mcp.StreamableClientTransport{Endpoint: config.URL}
	if len(config.Headers) > 0 {
		transport.HTTPClient = &http.Client{
			Transport: &headerTransport{headers: config.Headers, base: http.DefaultTransport},
		}
	}
	return transport
}

// headerTransport adds static headers to every request.
type headerTransport struct {
	headers map[string]string
	base    http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}

func (m *Manager) connect(server *Server, transport mcp.Transport) error {
	client := mcp.NewClient(&mcp.Implementation{
		Name:    "pageread-mcp-client",
		Version: m.version,
	}, nil)

	session, err := client.Connect(m.ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to MCP server: %w", err)
	}
	server.Session = session

	toolsList, err := session.ListTools(m.ctx, nil)
	if err != nil {
		_ = session.Close()
		return fmt.Errorf("failed to list tools: %w", err)
	}

	server.mu.Lock()
	for _, tool := range toolsList.Tools {
		server.Tools[tool.Name] = tool
	}
	server.mu.Unlock()

	return nil
}

// GetServer returns a server by name
func (m *Manager) GetServer(name string) (*Server, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	server, exists := m.servers[name]
	if !exists {
		return nil, fmt.Errorf("MCP server '%s' not found", name)
	}

	return server, nil
}

// HasTool reports whether a registered server offers toolName.
func (m *Manager) HasTool(serverName, toolName string) bool {
	_, err := m.GetTool(serverName, toolName)
	return err == nil
}

// GetTool returns a tool from a specific server
func (m *Manager) GetTool(serverName, toolName string) (*mcp.Tool, error) {
	server, err := m.GetServer(serverName)
	if err != nil {
		return nil, err
	}

	server.mu.RLock()
	defer server.mu.RUnlock()

	tool, exists := server.Tools[toolName]
	if !exists {
		return nil, fmt.Errorf("tool '%s' not found in MCP server '%s'", toolName, serverName)
	}

	return tool, nil
}

// CallTool invokes an MCP tool. ctx bounds the call.
func (m *Manager) CallTool(ctx context.Context, serverName, toolName string, arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	server, err := m.GetServer(serverName)
	if err != nil {
		return nil, err
	}

	if _, err := m.GetTool(serverName, toolName); err != nil {
		return nil, err
	}

	result, err := server.Session.CallTool(ctx, &mcp.CallToolParams{
		Name:      toolName,
		Arguments: arguments,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call tool '%s' on server '%s': %w", toolName, serverName, err)
	}

	return result, nil
}

// ListServers returns all registered server names, sorted
func (m *Manager) ListServers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.servers))
	for name := range m.servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListTools returns the names of all tools from a server, sorted
func (m *Manager) ListTools(serverName string) ([]string, error) {
	server, err := m.GetServer(serverName)
	if err != nil {
		return nil, err
	}

	server.mu.RLock()
	defer server.mu.RUnlock()

	tools := make([]string, 0, len(server.Tools))
	for name := range server.Tools {
		tools = append(tools, name)
	}
	sort.Strings(tools)
	return tools, nil
}

// Close shuts down all MCP sessions
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancel()

	var errs []error
	for name, server := range m.servers {
		if server.Session != nil {
			if err := server.Session.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close server '%s': %w", name, err))
			}
		}
	}
	m.servers = make(map[string]*Server)

	if len(errs) > 0 {
		return fmt.Errorf("errors closing MCP servers: %v", errs)
	}

	return nil
}

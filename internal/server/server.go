// Package server exposes the read tool to agents over the Model Context Protocol.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/atinylittleshell/pageread/internal/readtool"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// Options configures a Server.
type Options struct {
	Name    string
	Version string
	Logger  *zap.Logger
}

// Server is an MCP server offering a single "read" tool backed by a readtool.Reader.
type Server struct {
	mcp    *mcp.Server
	tool   *readtool.Tool
	logger *zap.Logger
}

// New creates a Server that serves reads through reader.
func New(reader *readtool.Reader, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Name == "" {
		opts.Name = "pageread"
	}

	s := &Server{
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    opts.Name,
			Version: opts.Version,
		}, nil),
		tool:   readtool.NewTool(reader),
		logger: opts.Logger,
	}

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        s.tool.Name(),
		Description: s.tool.Description(),
		InputSchema: s.tool.Parameters(),
	}, s.handleRead)

	return s
}

// MCP returns the underlying MCP server.
func (s *Server) MCP() *mcp.Server {
	return s.mcp
}

func (s *Server) handleRead(ctx context.Context, req *mcp.CallToolRequest, args map[string]interface{}) (*mcp.CallToolResult, any, error) {
	outcome, err := s.tool.Execute(ctx, args)
	if err != nil {
		s.logger.Debug("read tool call failed", zap.Error(err))
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{
				Text: fmt.Sprintf("%s: %s", readtool.KindOf(err), err.Error()),
			}},
		}, nil, nil
	}

	return &mcp.CallToolResult{
		Content:           []mcp.Content{&mcp.TextContent{Text: outcome.Text}},
		StructuredContent: outcome,
	}, nil, nil
}

// RunStdio serves a single client over stdin/stdout until ctx is done or the client
// disconnects.
func (s *Server) RunStdio(ctx context.Context) error {
	s.logger.Info("serving MCP over stdio")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// Handler returns an http.Handler serving the streamable HTTP transport.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcp
	}, &mcp.StreamableHTTPOptions{})
}

// ServeHTTP serves the streamable HTTP transport on listener until ctx is done, then
// shuts down gracefully.
func (s *Server) ServeHTTP(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(listener)
	}()
	s.logger.Info("serving MCP over HTTP", zap.String("addr", listener.Addr().String()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Package mcp exposes the regulation assistant as Model Context Protocol tools.
package mcp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/hyperjump/regubot/internal/assistant"
)

// Server is the MCP server for ReguBot.
type Server struct {
	assistant *assistant.Service
	server    *mcp.Server
	logger    *zap.Logger
}

// NewServer creates an MCP server with the assistant's tools registered.
func NewServer(svc *assistant.Service, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	impl := &mcp.Implementation{
		Name:    "regubot",
		Version: version,
	}
	s := &Server{
		assistant: svc,
		server:    mcp.NewServer(impl, nil),
		logger:    logger,
	}
	s.registerTools()
	return s
}

// Run serves over stdio until the client disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves the streamable HTTP transport on addr until ctx is cancelled.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		_ = httpServer.Shutdown(context.Background())
	}()
	s.logger.Info("Starting MCP server", zap.String("addr", addr))
	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

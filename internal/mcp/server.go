// Package mcp exposes the capture store to assistants over the Model
// Context Protocol on stdio. It owns no sockets and no storage internals;
// every tool call is translated into core database or search operations.
package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/screendex/screendex/internal/database"
	"github.com/screendex/screendex/internal/search"
)

const (
	// ServerName is the MCP server name
	ServerName = "screendex"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
	// DefaultDBPath is the default location for the capture store
	DefaultDBPath = "~/.screendex"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	db       *database.Database
	searcher *search.Searcher
}

// NewServer opens (or creates) the store under dbPath and wires the tools.
func NewServer(dbPath string, opts ...database.Option) (*Server, error) {
	if dbPath == "" || dbPath == DefaultDBPath {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".screendex")
	}

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := database.Open(filepath.Join(dbPath, "screendex.db"), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	mcpServer := server.NewMCPServer(ServerName, ServerVersion)

	s := &Server{
		mcp:      mcpServer,
		db:       db,
		searcher: search.NewSearcher(db),
	}
	s.registerTools()
	return s, nil
}

// NewServerWithDatabase wires the tools around an already-open store. The
// caller keeps ownership of db and is responsible for closing it.
func NewServerWithDatabase(db *database.Database) *Server {
	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		db:       db,
		searcher: search.NewSearcher(db),
	}
	s.registerTools()
	return s
}

// Serve starts the MCP server on stdio and blocks until shutdown.
func (s *Server) Serve(ctx context.Context) error {
	return server.ServeStdio(s.mcp)
}

// Close releases the underlying store.
func (s *Server) Close() error {
	return s.db.Close()
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(searchFramesTool(), s.handleSearchFrames)
	s.mcp.AddTool(recentFramesTool(), s.handleRecentFrames)
	s.mcp.AddTool(getStatisticsTool(), s.handleGetStatistics)
	s.mcp.AddTool(tagFrameTool(), s.handleTagFrame)
}

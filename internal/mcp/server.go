package mcp

import (
	"log/slog"

	"github.com/localrivet/csvexport/internal/config"
	"github.com/localrivet/csvexport/internal/export"
	"github.com/localrivet/csvexport/internal/mcp/tools"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewServer creates an MCP server exposing the export tools backed by engine.
func NewServer(cfg *config.Config, engine *export.Engine, logger *slog.Logger) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "csvexport",
		Version: "1.0.0",
	}, nil)

	tools.RegisterExportTools(server, &tools.ToolContext{
		Config: cfg,
		Engine: engine,
		Logger: logger,
	})

	return server
}

package tools

import (
	"log/slog"

	"github.com/localrivet/csvexport/internal/config"
	"github.com/localrivet/csvexport/internal/export"
)

// ToolContext carries context for all MCP tools.
type ToolContext struct {
	Config *config.Config
	Engine *export.Engine
	Logger *slog.Logger
}

package tools

import (
	"context"
	"time"

	"github.com/localrivet/csvexport/internal/export"
	"github.com/localrivet/csvexport/internal/tables"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Input/Output types for tools

type EmptyInput struct{}

type ListTablesInput struct {
	Pattern string `json:"pattern,omitempty" jsonschema:"Optional regular expression; only tables whose name contains a match are returned"`
}

type ListTablesOutput struct {
	Count  int      `json:"count"`
	Tables []string `json:"tables"`
}

type ExportTablesInput struct {
	Tables    string `json:"tables,omitempty" jsonschema:"Comma-separated list of table names to export"`
	AllTables bool   `json:"all_tables,omitempty" jsonschema:"Export every table in the database"`
	Pattern   string `json:"pattern,omitempty" jsonschema:"Export tables whose name contains a match for this regular expression"`
}

type ArtifactItem struct {
	Table     string `json:"table"`
	Path      string `json:"path"`
	Rows      int64  `json:"rows"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
	MirrorKey string `json:"mirror_key,omitempty"`
}

type FailedTable struct {
	Table string `json:"table"`
	Error string `json:"error"`
}

type ExportTablesOutput struct {
	RunID      string         `json:"run_id"`
	Tables     []string       `json:"tables"`
	Exported   int            `json:"exported"`
	Artifacts  []ArtifactItem `json:"artifacts"`
	Failed     []FailedTable  `json:"failed,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}

type ExportStatusOutput struct {
	Status    string `json:"status"`
	LastRun   string `json:"last_run,omitempty"`
	LastRunID string `json:"last_run_id,omitempty"`
	LastError string `json:"last_error,omitempty"`
	Exported  int    `json:"exported"`
	Failed    int    `json:"failed"`
	Rows      int64  `json:"rows"`
}

type ListArtifactsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of artifacts to return (default: 20)"`
}

type ArtifactFile struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	Modified  string `json:"modified"`
}

type ListArtifactsOutput struct {
	Count     int            `json:"count"`
	Artifacts []ArtifactFile `json:"artifacts"`
}

// RegisterExportTools registers the table export tools with the MCP server.
func RegisterExportTools(server *mcp.Server, toolCtx *ToolContext) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_tables",
		Description: "List the tables in the configured database",
	}, func(ctx context.Context, req *mcp.CallToolRequest, input ListTablesInput) (*mcp.CallToolResult, ListTablesOutput, error) {
		names, err := toolCtx.Engine.ListTables(ctx, input.Pattern)
		if err != nil {
			return nil, ListTablesOutput{}, err
		}
		if names == nil {
			names = []string{}
		}

		return nil, ListTablesOutput{
			Count:  len(names),
			Tables: names,
		}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "export_tables",
		Description: "Export tables to CSV files in the configured output directory. Exactly one selection is applied: all_tables, then pattern, then tables.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, input ExportTablesInput) (*mcp.CallToolResult, ExportTablesOutput, error) {
		sel := tables.Selection{
			Tables:    input.Tables,
			AllTables: input.AllTables,
			Pattern:   input.Pattern,
		}

		summary, err := toolCtx.Engine.Run(ctx, sel, toolCtx.Config.Export.OutputDir)
		if err != nil {
			return nil, ExportTablesOutput{}, err
		}

		return nil, exportOutput(summary), nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "export_status",
		Description: "Report the outcome of the most recent export run",
	}, func(ctx context.Context, req *mcp.CallToolRequest, input EmptyInput) (*mcp.CallToolResult, ExportStatusOutput, error) {
		return nil, statusOutput(toolCtx.Engine.Status()), nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_artifacts",
		Description: "List CSV artifacts in the output directory, newest first",
	}, func(ctx context.Context, req *mcp.CallToolRequest, input ListArtifactsInput) (*mcp.CallToolResult, ListArtifactsOutput, error) {
		limit := input.Limit
		if limit <= 0 {
			limit = 20
		}

		files, err := toolCtx.Engine.ListArtifacts(ctx, toolCtx.Config.Export.OutputDir)
		if err != nil {
			return nil, ListArtifactsOutput{}, err
		}

		if len(files) > limit {
			files = files[:limit]
		}

		items := make([]ArtifactFile, len(files))
		for i, f := range files {
			items[i] = ArtifactFile{
				Path:      f.Path,
				SizeBytes: f.Size,
				Modified:  f.LastModified.Format(time.RFC3339),
			}
		}

		return nil, ListArtifactsOutput{
			Count:     len(items),
			Artifacts: items,
		}, nil
	})
}

func exportOutput(s *export.Summary) ExportTablesOutput {
	out := ExportTablesOutput{
		RunID:      s.ID,
		Tables:     s.Tables,
		Exported:   len(s.Artifacts),
		Artifacts:  make([]ArtifactItem, len(s.Artifacts)),
		DurationMs: s.Duration.Milliseconds(),
	}
	if out.Tables == nil {
		out.Tables = []string{}
	}

	for i, a := range s.Artifacts {
		out.Artifacts[i] = ArtifactItem{
			Table:     a.Table,
			Path:      a.Path,
			Rows:      a.Rows,
			SizeBytes: a.Size,
			Checksum:  a.Checksum,
			MirrorKey: a.MirrorKey,
		}
	}
	for _, f := range s.Failures {
		out.Failed = append(out.Failed, FailedTable{Table: f.Table, Error: f.Error})
	}

	return out
}

func statusOutput(st export.Status) ExportStatusOutput {
	out := ExportStatusOutput{Status: "never_run"}

	switch {
	case st.Running:
		out.Status = "running"
	case st.LastError != nil:
		out.Status = "failed"
	case st.Last != nil && len(st.Last.Failures) > 0:
		out.Status = "partial"
	case st.Last != nil:
		out.Status = "ok"
	}

	if !st.LastRun.IsZero() {
		out.LastRun = st.LastRun.Format(time.RFC3339)
	}
	if st.LastError != nil {
		out.LastError = st.LastError.Error()
	}
	if st.Last != nil {
		out.LastRunID = st.Last.ID
		out.Exported = len(st.Last.Artifacts)
		out.Failed = len(st.Last.Failures)
		out.Rows = st.Last.Rows()
	}

	return out
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/localrivet/csvexport/internal/config"
	"github.com/localrivet/csvexport/internal/export"
	"github.com/localrivet/csvexport/internal/mcp"
	"github.com/localrivet/csvexport/internal/mcp/mcpauth"
	"github.com/localrivet/csvexport/internal/mcp/oauth"
	"github.com/localrivet/csvexport/internal/tables"
)

func (a *app) daemonCmd() *cobra.Command {
	var flagSel tables.Selection

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run scheduled exports with health, metrics and MCP endpoints",
		Long: "Run scheduled exports.\n\n" +
			"The selection comes from the flags when any is given, otherwise from the\n" +
			"[export] section of the config file.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.cfgFile)
			if err != nil {
				return err
			}

			sel := flagSel
			if sel.Mode() == "" {
				sel = tables.Selection{
					Tables:    cfg.Export.Tables,
					AllTables: cfg.Export.AllTables,
					Pattern:   cfg.Export.Pattern,
				}
			}
			if err := sel.Validate(); err != nil {
				return err
			}

			m := a.newMetrics()
			engine, err := a.newEngine(cfg, export.WithMetrics(m))
			if err != nil {
				return err
			}

			return a.serve(cmd.Context(), cfg, engine, sel, a.output(cmd, cfg), m.Handler())
		},
	}

	addSelectionFlags(cmd, &flagSel)

	return cmd
}

func (a *app) serve(ctx context.Context, cfg *config.Config, engine *export.Engine, sel tables.Selection, outputDir string, metricsHandler http.Handler) error {
	scheduler := export.NewScheduler(engine, sel, outputDir, cfg.Schedule, a.logger)
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer scheduler.Stop()

	baseURL := cfg.Monitoring.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://localhost:%d", cfg.Monitoring.HealthPort)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsHandler)
	mux.HandleFunc("/health", healthHandler(scheduler))

	mcpHandler := mcp.NewHandler(cfg, engine, mcpauth.FromEnv(), a.logger, baseURL)
	if mcpHandler.Enabled() {
		mux.Handle(oauth.MCPPath, mcpHandler)
		oauth.NewHandler(baseURL).RegisterRoutes(mux)
		a.logger.Info("MCP endpoint enabled", "path", oauth.MCPPath)
	}

	servers := []*http.Server{
		{Addr: fmt.Sprintf(":%d", cfg.Monitoring.HealthPort), Handler: mux},
	}
	if cfg.Monitoring.MetricsPort != cfg.Monitoring.HealthPort {
		servers = append(servers, &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Monitoring.MetricsPort),
			Handler: metricsHandler,
		})
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *http.Server) {
			a.logger.Info("http server starting", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http server %s: %w", srv.Addr, err)
			}
		}(srv)
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutting down")
	case runErr = <-errCh:
		a.logger.Error("http server failed", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("http server shutdown", "addr", srv.Addr, "error", err)
		}
	}

	return runErr
}

func healthHandler(scheduler *export.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := scheduler.Engine().Status()
		nextRun := scheduler.NextRun()

		status := "healthy"
		if st.LastError != nil {
			status = "unhealthy"
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		fmt.Fprintf(w, "status: %s\n", status)
		if st.Running {
			fmt.Fprintln(w, "export_running: true")
		}
		if !st.LastRun.IsZero() {
			fmt.Fprintf(w, "last_export: %s\n", st.LastRun.Format(time.RFC3339))
		}
		if st.Last != nil {
			fmt.Fprintf(w, "last_exported_tables: %d\n", len(st.Last.Artifacts))
			fmt.Fprintf(w, "last_failed_tables: %d\n", len(st.Last.Failures))
		}
		if st.LastError != nil {
			fmt.Fprintf(w, "last_error: %s\n", st.LastError.Error())
		}
		if !nextRun.IsZero() {
			fmt.Fprintf(w, "next_export: %s\n", nextRun.Format(time.RFC3339))
		}
	}
}

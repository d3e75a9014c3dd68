// Package export turns database tables into CSV artifacts.
//
// Records end in LF, not the CRLF that RFC 4180 recommends. Files compared
// byte-for-byte with CRLF exports of the same table differ only in line
// endings, and RFC 4180 readers accept both.
package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/localrivet/csvexport/internal/config"
	"github.com/localrivet/csvexport/internal/metrics"
	"github.com/localrivet/csvexport/internal/notify"
	"github.com/localrivet/csvexport/internal/storage"
	"github.com/localrivet/csvexport/internal/tables"
	"github.com/localrivet/csvexport/pkg/database"
)

// Opener establishes a database session.
type Opener func(ctx context.Context, cfg database.Config) (database.Driver, error)

type Engine struct {
	cfg          *config.Config
	logger       *slog.Logger
	out          io.Writer
	mirror       storage.Backend
	mirrorPrefix string
	notifier     *notify.Notifier
	metrics      *metrics.Metrics
	open         Opener
	now          func() time.Time

	mu        sync.RWMutex
	running   bool
	lastRun   time.Time
	lastError error
	last      *Summary
}

type Option func(*Engine)

// WithMirror copies every artifact to backend under prefix.
func WithMirror(backend storage.Backend, prefix string) Option {
	return func(e *Engine) {
		e.mirror = backend
		e.mirrorPrefix = prefix
	}
}

func WithNotifier(n *notify.Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithOutput sets where progress lines are printed. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(e *Engine) { e.out = w }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithOpener(open Opener) Option {
	return func(e *Engine) { e.open = open }
}

func NewEngine(cfg *config.Config, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		cfg:    cfg,
		logger: logger,
		out:    os.Stdout,
		open:   database.Open,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Failure records a table that was skipped.
type Failure struct {
	Table string `json:"table"`
	Error string `json:"error"`
	Err   error  `json:"-"`
}

// Summary is the outcome of one export run.
type Summary struct {
	ID        string        `json:"id"`
	Tables    []string      `json:"tables"`
	Artifacts []*Artifact   `json:"artifacts"`
	Failures  []Failure     `json:"failures,omitempty"`
	Manifest  string        `json:"manifest,omitempty"`
	Started   time.Time     `json:"started"`
	Duration  time.Duration `json:"duration"`
}

func (s *Summary) Rows() int64 {
	var n int64
	for _, a := range s.Artifacts {
		n += a.Rows
	}
	return n
}

func (s *Summary) FailedTables() []string {
	names := make([]string, 0, len(s.Failures))
	for _, f := range s.Failures {
		names = append(names, f.Table)
	}
	return names
}

// DatabaseConfig translates the loaded settings into driver settings.
func (e *Engine) DatabaseConfig() database.Config {
	return database.Config{
		Type:           e.cfg.Database.Type,
		Host:           e.cfg.Database.Host,
		Port:           e.cfg.Database.Port,
		Name:           e.cfg.Database.Name,
		User:           e.cfg.Database.User,
		Password:       e.cfg.Database.Password,
		Path:           e.cfg.Database.Path,
		ConnectTimeout: e.cfg.ConnectTimeout(),
	}
}

// Run exports the tables chosen by sel into outputDir, one at a time over a
// single session. A table that fails is logged and skipped. Run returns an
// error when the run could not get as far as exporting (bad selection, failed
// connection, failed catalog listing) or when ctx is cancelled between tables.
func (e *Engine) Run(ctx context.Context, sel tables.Selection, outputDir string) (*Summary, error) {
	if err := e.begin(); err != nil {
		return nil, err
	}
	defer e.end()

	if outputDir == "" {
		outputDir = e.cfg.Export.OutputDir
	}

	started := e.now()
	summary := &Summary{
		ID:      RunID(started),
		Started: started,
	}

	if err := sel.Validate(); err != nil {
		return nil, e.fail(ctx, summary, err)
	}

	e.logger.Info("starting export",
		"id", summary.ID,
		"db_type", e.cfg.Database.Type,
		"mode", sel.Mode(),
		"output_dir", outputDir,
	)

	session, err := e.open(ctx, e.DatabaseConfig())
	if err != nil {
		return nil, e.fail(ctx, summary, err)
	}
	defer session.Close()

	names, err := sel.Resolve(ctx, session, e.logger)
	if err != nil {
		return nil, e.fail(ctx, summary, err)
	}
	summary.Tables = names

	if len(names) == 0 {
		fmt.Fprintln(e.out, "No tables found to export")
		e.finish(ctx, summary)
		return summary, nil
	}

	fmt.Fprintf(e.out, "Preparing to export %d tables: %s\n", len(names), strings.Join(names, ", "))

	exporter := NewExporter(session, ExporterOptions{
		Logger:       e.logger,
		Out:          e.out,
		Mirror:       e.mirror,
		MirrorPrefix: e.mirrorPrefix,
		Verify:       e.cfg.Export.Verify,
		Now:          e.now,
	})

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return summary, e.fail(ctx, summary, err)
		}

		art, err := exporter.Export(ctx, name, outputDir)
		if err != nil {
			e.logger.Error("failed to export table", "table", name, "error", err)
			summary.Failures = append(summary.Failures, Failure{Table: name, Error: err.Error(), Err: err})
			e.metrics.RecordTableFailure()
			continue
		}

		summary.Artifacts = append(summary.Artifacts, art)
		e.metrics.RecordTableSuccess(art.Rows, art.Size)
	}

	fmt.Fprintf(e.out, "Export complete. %d tables were exported successfully.\n", len(summary.Artifacts))

	if e.cfg.Export.Manifest {
		version, err := session.Version(ctx)
		if err != nil {
			e.logger.Warn("failed to read server version", "error", err)
		}
		name, err := e.writeManifest(ctx, summary, version, outputDir)
		if err != nil {
			e.logger.Error("failed to write manifest", "run", summary.ID, "error", err)
		}
		summary.Manifest = name
	}

	e.finish(ctx, summary)

	return summary, nil
}

// ListTables returns the tables visible to a fresh session, filtered by
// pattern when it is non-empty.
func (e *Engine) ListTables(ctx context.Context, pattern string) ([]string, error) {
	if _, err := tables.Filter(nil, pattern); err != nil {
		return nil, err
	}

	session, err := e.open(ctx, e.DatabaseConfig())
	if err != nil {
		return nil, err
	}
	defer session.Close()

	listing := tables.Enumerate(ctx, session, e.logger)
	if listing.Err != nil {
		return nil, listing.Err
	}
	return tables.Filter(listing.Tables, pattern)
}

// ListArtifacts returns the CSV files in outputDir, newest first.
func (e *Engine) ListArtifacts(ctx context.Context, outputDir string) ([]storage.FileInfo, error) {
	if outputDir == "" {
		outputDir = e.cfg.Export.OutputDir
	}

	local, err := storage.NewLocalStorage(outputDir)
	if err != nil {
		return nil, err
	}

	files, err := local.List(ctx, "")
	if err != nil {
		return nil, err
	}

	out := files[:0]
	for _, f := range files {
		if strings.HasSuffix(f.Path, ".csv") {
			out = append(out, f)
		}
	}
	return out, nil
}

type Status struct {
	Running   bool
	LastRun   time.Time
	LastError error
	Last      *Summary
}

func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Status{
		Running:   e.running,
		LastRun:   e.lastRun,
		LastError: e.lastError,
		Last:      e.last,
	}
}

func (e *Engine) LastRun() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastRun
}

func (e *Engine) LastError() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastError
}

func (e *Engine) begin() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return ErrRunInProgress
	}
	e.running = true
	return nil
}

func (e *Engine) end() {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
}

func (e *Engine) finish(ctx context.Context, summary *Summary) {
	summary.Duration = e.now().Sub(summary.Started)

	e.mu.Lock()
	e.lastRun = summary.Started
	e.lastError = nil
	e.last = summary
	e.mu.Unlock()

	e.logger.Info("export completed",
		"id", summary.ID,
		"tables", len(summary.Tables),
		"exported", len(summary.Artifacts),
		"failed", len(summary.Failures),
		"rows", summary.Rows(),
		"duration", summary.Duration,
	)

	e.metrics.RecordRun(summary.Duration, len(summary.Artifacts), true)
	e.notifier.NotifyCompleted(ctx, notify.RunResult{
		RunID:        summary.ID,
		Tables:       len(summary.Tables),
		Exported:     len(summary.Artifacts),
		Rows:         summary.Rows(),
		Duration:     summary.Duration,
		FailedTables: summary.FailedTables(),
	})
}

func (e *Engine) fail(ctx context.Context, summary *Summary, err error) error {
	summary.Duration = e.now().Sub(summary.Started)

	e.mu.Lock()
	e.lastRun = summary.Started
	e.lastError = err
	e.mu.Unlock()

	e.logger.Error("export failed", "id", summary.ID, "error", err)

	e.metrics.RecordRun(summary.Duration, len(summary.Artifacts), false)
	e.notifier.NotifyFailure(context.WithoutCancel(ctx), summary.ID, err)

	return err
}

package export

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/localrivet/csvexport/internal/tables"
)

// Scheduler runs the same selection on a five-field cron schedule. A tick
// that fires while the previous run is still going is skipped.
type Scheduler struct {
	engine    *Engine
	selection tables.Selection
	outputDir string
	cron      *cron.Cron
	schedule  string
	logger    *slog.Logger
	mu        sync.RWMutex
	running   bool
	entryID   cron.EntryID
}

func NewScheduler(engine *Engine, sel tables.Selection, outputDir, schedule string, logger *slog.Logger) *Scheduler {
	cl := cronLogger{logger: logger}
	return &Scheduler{
		engine:    engine,
		selection: sel,
		outputDir: outputDir,
		schedule:  schedule,
		logger:    logger,
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	entryID, err := s.cron.AddFunc("0 "+s.schedule, func() {
		s.runExport(ctx)
	})
	if err != nil {
		return err
	}
	s.entryID = entryID

	s.cron.Start()
	s.running = true

	s.logger.Info("scheduler started",
		"schedule", s.schedule,
		"next_run", s.cron.Entry(entryID).Next,
	)

	return nil
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.cron.Remove(s.entryID)
	s.running = false
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) RunNow(ctx context.Context) (*Summary, error) {
	return s.engine.Run(ctx, s.selection, s.outputDir)
}

func (s *Scheduler) NextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) Engine() *Engine {
	return s.engine
}

func (s *Scheduler) runExport(ctx context.Context) {
	s.logger.Info("scheduled export starting")

	summary, err := s.RunNow(ctx)
	if err != nil {
		s.logger.Error("scheduled export failed", "error", err)
		return
	}

	s.logger.Info("scheduled export completed",
		"id", summary.ID,
		"exported", len(summary.Artifacts),
		"failed", len(summary.Failures),
	)
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

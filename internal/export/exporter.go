package export

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"path"
	"time"

	"github.com/localrivet/csvexport/internal/storage"
)

// Session is the part of a database session the exporter reads from.
type Session interface {
	Columns(ctx context.Context, table string) ([]string, error)
	SelectAll(ctx context.Context, table string) (*sql.Rows, error)
}

// Exporter writes one table at a time from a single session.
type Exporter struct {
	session      Session
	logger       *slog.Logger
	out          io.Writer
	mirror       storage.Backend
	mirrorPrefix string
	verify       bool
	now          func() time.Time
}

type ExporterOptions struct {
	Logger       *slog.Logger
	Out          io.Writer
	Mirror       storage.Backend
	MirrorPrefix string
	Verify       bool
	Now          func() time.Time
}

func NewExporter(session Session, opts ExporterOptions) *Exporter {
	e := &Exporter{
		session:      session,
		logger:       opts.Logger,
		out:          opts.Out,
		mirror:       opts.Mirror,
		mirrorPrefix: opts.MirrorPrefix,
		verify:       opts.Verify,
		now:          opts.Now,
	}
	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if e.out == nil {
		e.out = io.Discard
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Export writes table to a new CSV artifact under outputDir, creating the
// directory if needed. On failure it returns a *TableError and no artifact.
func (e *Exporter) Export(ctx context.Context, table, outputDir string) (*Artifact, error) {
	columns, err := e.session.Columns(ctx, table)
	if err != nil {
		return nil, &TableError{Table: table, Op: "describe", Err: err}
	}

	rows, err := e.session.SelectAll(ctx, table)
	if err != nil {
		return nil, &TableError{Table: table, Op: "select", Err: err}
	}

	data, n, err := encodeRows(columns, rows)
	if err != nil {
		return nil, &TableError{Table: table, Op: "read", Err: err}
	}

	local, err := storage.NewLocalStorage(outputDir)
	if err != nil {
		return nil, &TableError{Table: table, Op: "write", Err: err}
	}

	exportedAt := e.now()
	name := ArtifactName(table, exportedAt)
	if err := local.Write(ctx, name, bytes.NewReader(data)); err != nil {
		return nil, &TableError{Table: table, Op: "write", Err: err}
	}

	art := &Artifact{
		Table:      table,
		Name:       name,
		Path:       local.Path(name),
		Columns:    columns,
		Rows:       n,
		Size:       int64(len(data)),
		Checksum:   Checksum(data),
		ExportedAt: exportedAt,
	}

	if e.verify {
		result, err := NewValidator(local, e.logger).Validate(ctx, name, art)
		if err != nil {
			return nil, &TableError{Table: table, Op: "verify", Err: err}
		}
		if err := result.Err(); err != nil {
			return nil, &TableError{Table: table, Op: "verify", Err: err}
		}
		art.Verified = true
	}

	if e.mirror != nil {
		key := path.Join(e.mirrorPrefix, name)
		if err := e.mirror.Write(ctx, key, bytes.NewReader(data)); err != nil {
			e.logger.Error("failed to mirror artifact", "table", table, "key", key, "error", err)
		} else {
			art.MirrorKey = key
		}
	}

	e.logger.Debug("table exported",
		"table", table,
		"rows", art.Rows,
		"size", art.Size,
		"checksum", art.Checksum,
	)
	fmt.Fprintf(e.out, "Successfully exported %d rows from %s to %s\n", art.Rows, table, art.Path)

	return art, nil
}

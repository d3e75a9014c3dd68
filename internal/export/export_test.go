package export

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/localrivet/csvexport/internal/config"
	"github.com/localrivet/csvexport/internal/metrics"
	"github.com/localrivet/csvexport/internal/notify"
	"github.com/localrivet/csvexport/internal/storage"
	"github.com/localrivet/csvexport/internal/tables"
	"github.com/localrivet/csvexport/pkg/database"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func createTestDB(t *testing.T, statements string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "source.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("Failed to create SQLite database: %v", err)
	}
	defer db.Close()

	if statements == "" {
		statements = "PRAGMA user_version = 1;"
	}
	if _, err := db.Exec(statements); err != nil {
		t.Fatalf("Failed to setup test data: %v", err)
	}
	return path
}

// stepClock returns a clock that advances one second per reading.
func stepClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func newTestEngine(t *testing.T, dbPath string, opts ...Option) (*Engine, *bytes.Buffer, string) {
	t.Helper()

	outDir := filepath.Join(t.TempDir(), "output")
	cfg := &config.Config{
		Database: config.DatabaseConfig{Type: "sqlite", Path: dbPath, ConnectTimeout: 5},
		Export:   config.ExportConfig{OutputDir: outDir},
	}

	var out bytes.Buffer
	opts = append([]Option{WithOutput(&out), WithClock(stepClock())}, opts...)
	return NewEngine(cfg, discardLogger(), opts...), &out, outDir
}

func readArtifact(t *testing.T, path string) [][]string {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open artifact: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse artifact: %v", err)
	}
	return records
}

func artifactTables(s *Summary) []string {
	var names []string
	for _, a := range s.Artifacts {
		names = append(names, a.Table)
	}
	return names
}

func TestEngine_RoundTrip(t *testing.T) {
	dbPath := createTestDB(t, `
		CREATE TABLE people (id INTEGER, name TEXT);
		INSERT INTO people VALUES (1, 'Alice'), (2, 'Bob,Jr');
	`)
	engine, out, _ := newTestEngine(t, dbPath)

	summary, err := engine.Run(context.Background(), tables.Selection{Tables: "people"}, "")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(summary.Artifacts) != 1 {
		t.Fatalf("Run() produced %d artifacts, want 1", len(summary.Artifacts))
	}

	art := summary.Artifacts[0]
	raw, err := os.ReadFile(art.Path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if string(raw) != "id,name\n1,Alice\n2,\"Bob,Jr\"\n" {
		t.Errorf("artifact content = %q", raw)
	}

	want := [][]string{{"id", "name"}, {"1", "Alice"}, {"2", "Bob,Jr"}}
	if got := readArtifact(t, art.Path); !reflect.DeepEqual(got, want) {
		t.Errorf("artifact records = %v, want %v", got, want)
	}

	if art.Rows != 2 {
		t.Errorf("Artifact.Rows = %d, want 2", art.Rows)
	}
	if art.Size != int64(len(raw)) {
		t.Errorf("Artifact.Size = %d, want %d", art.Size, len(raw))
	}
	if art.Checksum != Checksum(raw) {
		t.Errorf("Artifact.Checksum = %s, want %s", art.Checksum, Checksum(raw))
	}
	if !strings.HasPrefix(filepath.Base(art.Path), "people_2024") {
		t.Errorf("artifact name %s should embed table and timestamp", filepath.Base(art.Path))
	}

	progress := out.String()
	for _, line := range []string{
		"Preparing to export 1 tables: people\n",
		"Successfully exported 2 rows from people to " + art.Path + "\n",
		"Export complete. 1 tables were exported successfully.\n",
	} {
		if !strings.Contains(progress, line) {
			t.Errorf("progress output missing %q, got:\n%s", line, progress)
		}
	}
}

func TestEngine_EscapingRoundTrip(t *testing.T) {
	dbPath := createTestDB(t, `
		CREATE TABLE notes (id INTEGER, body TEXT, score REAL, raw BLOB);
		INSERT INTO notes VALUES
			(1, 'say "hi"', 1.5, NULL),
			(2, 'line one
line two', NULL, x'616263'),
			(3, ' leading space', 0.1, NULL);
	`)
	engine, _, _ := newTestEngine(t, dbPath)

	summary, err := engine.Run(context.Background(), tables.Selection{Tables: "notes"}, "")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	want := [][]string{
		{"id", "body", "score", "raw"},
		{"1", `say "hi"`, "1.5", ""},
		{"2", "line one\nline two", "", "abc"},
		{"3", " leading space", "0.1", ""},
	}
	if got := readArtifact(t, summary.Artifacts[0].Path); !reflect.DeepEqual(got, want) {
		t.Errorf("artifact records = %q, want %q", got, want)
	}
}

func TestEngine_SingleColumnNull(t *testing.T) {
	dbPath := createTestDB(t, `
		CREATE TABLE tags (label TEXT);
		INSERT INTO tags VALUES ('a'), (NULL), ('b');
	`)
	engine, _, _ := newTestEngine(t, dbPath)
	engine.cfg.Export.Verify = true

	summary, err := engine.Run(context.Background(), tables.Selection{Tables: "tags"}, "")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(summary.Failures) != 0 {
		t.Fatalf("Run() failures = %+v", summary.Failures)
	}

	want := [][]string{{"label"}, {"a"}, {""}, {"b"}}
	if got := readArtifact(t, summary.Artifacts[0].Path); !reflect.DeepEqual(got, want) {
		t.Errorf("artifact records = %q, want %q", got, want)
	}
}

func TestEngine_PerTableIsolation(t *testing.T) {
	dbPath := createTestDB(t, `
		CREATE TABLE a (id INTEGER);
		CREATE TABLE c (id INTEGER);
		INSERT INTO a VALUES (1);
		INSERT INTO c VALUES (1), (2);
	`)
	engine, out, outDir := newTestEngine(t, dbPath)

	summary, err := engine.Run(context.Background(), tables.Selection{Tables: "a, b ,c"}, "")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if got := artifactTables(summary); !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Errorf("exported tables = %v, want [a c]", got)
	}
	if len(summary.Failures) != 1 || summary.Failures[0].Table != "b" {
		t.Fatalf("Failures = %+v, want one failure for b", summary.Failures)
	}

	var tableErr *TableError
	if !errors.As(summary.Failures[0].Err, &tableErr) {
		t.Fatalf("failure error type = %T, want *TableError", summary.Failures[0].Err)
	}
	if tableErr.Op != "describe" || !errors.Is(tableErr, database.ErrTableNotFound) {
		t.Errorf("TableError = %v, want describe/ErrTableNotFound", tableErr)
	}

	entries, _ := os.ReadDir(outDir)
	if len(entries) != 2 {
		t.Errorf("output dir has %d files, want 2", len(entries))
	}
	if !strings.Contains(out.String(), "Export complete. 2 tables were exported successfully.") {
		t.Errorf("final count should exclude failed table, got:\n%s", out.String())
	}
}

func TestEngine_SameSecondCollisionKeepsFirstArtifact(t *testing.T) {
	dbPath := createTestDB(t, "CREATE TABLE users (id INTEGER); INSERT INTO users VALUES (1);")
	fixed := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	engine, _, outDir := newTestEngine(t, dbPath, WithClock(func() time.Time { return fixed }))

	summary, err := engine.Run(context.Background(), tables.Selection{Tables: "users,users"}, "")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if len(summary.Artifacts) != 1 {
		t.Errorf("Artifacts = %d, want 1", len(summary.Artifacts))
	}
	if len(summary.Failures) != 1 {
		t.Fatalf("Failures = %+v, want one collision failure", summary.Failures)
	}

	var tableErr *TableError
	if !errors.As(summary.Failures[0].Err, &tableErr) || tableErr.Op != "write" {
		t.Fatalf("failure = %v, want write TableError", summary.Failures[0].Err)
	}
	if !errors.Is(tableErr, storage.ErrExists) {
		t.Errorf("failure = %v, want storage.ErrExists", tableErr)
	}

	entries, _ := os.ReadDir(outDir)
	if len(entries) != 1 {
		t.Errorf("output dir has %d files, want 1", len(entries))
	}
}

func TestEngine_OutputDirIdempotent(t *testing.T) {
	dbPath := createTestDB(t, "CREATE TABLE users (id INTEGER); INSERT INTO users VALUES (1);")
	engine, _, _ := newTestEngine(t, dbPath)

	outDir := filepath.Join(t.TempDir(), "nested", "exports")
	for i := 0; i < 2; i++ {
		summary, err := engine.Run(context.Background(), tables.Selection{Tables: "users"}, outDir)
		if err != nil {
			t.Fatalf("Run() #%d error: %v", i+1, err)
		}
		if len(summary.Failures) != 0 {
			t.Fatalf("Run() #%d failures = %+v", i+1, summary.Failures)
		}
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatalf("ReadDir() error: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("output dir has %d files, want 2 distinct artifacts", len(entries))
	}
}

func TestEngine_AllTablesEmptyDatabase(t *testing.T) {
	dbPath := createTestDB(t, "")
	engine, out, outDir := newTestEngine(t, dbPath)

	summary, err := engine.Run(context.Background(), tables.Selection{AllTables: true}, "")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if len(summary.Artifacts) != 0 {
		t.Errorf("Run() produced %d artifacts, want 0", len(summary.Artifacts))
	}
	if !strings.Contains(out.String(), "No tables found to export") {
		t.Errorf("expected nothing-to-export message, got:\n%s", out.String())
	}

	entries, _ := os.ReadDir(outDir)
	if len(entries) != 0 {
		t.Errorf("output dir has %d entries, want 0", len(entries))
	}
}

func TestEngine_PatternSelection(t *testing.T) {
	dbPath := createTestDB(t, `
		CREATE TABLE log_2023 (id INTEGER);
		CREATE TABLE log_2024 (id INTEGER);
		CREATE TABLE users (id INTEGER);
	`)
	engine, _, _ := newTestEngine(t, dbPath)

	summary, err := engine.Run(context.Background(), tables.Selection{Pattern: "^log_"}, "")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	got := artifactTables(summary)
	sort.Strings(got)
	if !reflect.DeepEqual(got, []string{"log_2023", "log_2024"}) {
		t.Errorf("exported tables = %v, want [log_2023 log_2024]", got)
	}
}

func TestEngine_QuotedIdentifiers(t *testing.T) {
	dbPath := createTestDB(t, `
		CREATE TABLE "order items" (id INTEGER);
		CREATE TABLE "we""ird" (id INTEGER);
		INSERT INTO "order items" VALUES (1);
		INSERT INTO "we""ird" VALUES (1);
	`)
	engine, _, _ := newTestEngine(t, dbPath)

	summary, err := engine.Run(context.Background(), tables.Selection{AllTables: true}, "")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(summary.Failures) != 0 {
		t.Errorf("Run() failures = %+v", summary.Failures)
	}
	if len(summary.Artifacts) != 2 {
		t.Errorf("Run() produced %d artifacts, want 2", len(summary.Artifacts))
	}
}

func TestEngine_UnknownTableIsNotInterpolated(t *testing.T) {
	dbPath := createTestDB(t, "CREATE TABLE users (id INTEGER); INSERT INTO users VALUES (1);")
	engine, _, _ := newTestEngine(t, dbPath)

	summary, err := engine.Run(context.Background(), tables.Selection{Tables: "users; DROP TABLE users"}, "")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(summary.Failures) != 1 || len(summary.Artifacts) != 0 {
		t.Errorf("Run() = %d artifacts, %d failures, want 0 and 1", len(summary.Artifacts), len(summary.Failures))
	}
}

func TestEngine_ConnectError(t *testing.T) {
	engine, _, _ := newTestEngine(t, filepath.Join(t.TempDir(), "missing.db"))

	_, err := engine.Run(context.Background(), tables.Selection{AllTables: true}, "")

	var connErr *database.ConnectError
	if !errors.As(err, &connErr) {
		t.Fatalf("Run() error = %v, want *database.ConnectError", err)
	}
	if engine.LastError() == nil {
		t.Error("LastError() should record the failure")
	}
}

func TestEngine_NoSelection(t *testing.T) {
	engine, _, _ := newTestEngine(t, createTestDB(t, ""))

	if _, err := engine.Run(context.Background(), tables.Selection{}, ""); !errors.Is(err, tables.ErrNoSelection) {
		t.Errorf("Run() error = %v, want ErrNoSelection", err)
	}
}

type fakeDriver struct {
	listErr error
	names   []string
	closed  int
}

func (f *fakeDriver) Type() string { return "fake" }

func (f *fakeDriver) Connect(ctx context.Context) error { return nil }

func (f *fakeDriver) Close() error {
	f.closed++
	return nil
}

func (f *fakeDriver) Version(ctx context.Context) (string, error) { return "1", nil }

func (f *fakeDriver) ListTables(ctx context.Context) ([]string, error) {
	return f.names, f.listErr
}

func (f *fakeDriver) Columns(ctx context.Context, table string) ([]string, error) {
	return nil, errors.New("describe failed")
}

func (f *fakeDriver) SelectAll(ctx context.Context, table string) (*sql.Rows, error) {
	return nil, errors.New("select failed")
}

func fakeOpener(d *fakeDriver) Opener {
	return func(ctx context.Context, cfg database.Config) (database.Driver, error) {
		return d, nil
	}
}

func TestEngine_ListErrorReleasesSession(t *testing.T) {
	driver := &fakeDriver{listErr: errors.New("access denied")}
	engine, _, _ := newTestEngine(t, "unused.db", WithOpener(fakeOpener(driver)))

	_, err := engine.Run(context.Background(), tables.Selection{AllTables: true}, "")

	var listErr *tables.ListError
	if !errors.As(err, &listErr) {
		t.Fatalf("Run() error = %v, want *tables.ListError", err)
	}
	if driver.closed != 1 {
		t.Errorf("session closed %d times, want 1", driver.closed)
	}
}

func TestEngine_AllTablesFailReleasesSession(t *testing.T) {
	driver := &fakeDriver{names: []string{"a", "b"}}
	engine, out, _ := newTestEngine(t, "unused.db", WithOpener(fakeOpener(driver)))

	summary, err := engine.Run(context.Background(), tables.Selection{AllTables: true}, "")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(summary.Failures) != 2 {
		t.Errorf("Failures = %d, want 2", len(summary.Failures))
	}
	if driver.closed != 1 {
		t.Errorf("session closed %d times, want 1", driver.closed)
	}
	if !strings.Contains(out.String(), "Export complete. 0 tables were exported successfully.") {
		t.Errorf("unexpected progress output:\n%s", out.String())
	}
}

func TestEngine_CancelledBetweenTables(t *testing.T) {
	driver := &fakeDriver{names: []string{"a"}}
	engine, _, _ := newTestEngine(t, "unused.db", WithOpener(fakeOpener(driver)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Run(ctx, tables.Selection{Tables: "a"}, "")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if driver.closed != 1 {
		t.Errorf("session closed %d times, want 1", driver.closed)
	}
}

func TestEngine_RunInProgress(t *testing.T) {
	engine, _, _ := newTestEngine(t, createTestDB(t, ""))

	if err := engine.begin(); err != nil {
		t.Fatalf("begin() error: %v", err)
	}
	defer engine.end()

	if _, err := engine.Run(context.Background(), tables.Selection{AllTables: true}, ""); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("Run() error = %v, want ErrRunInProgress", err)
	}
	if !engine.Status().Running {
		t.Error("Status().Running = false during run")
	}
}

func TestEngine_Mirror(t *testing.T) {
	dbPath := createTestDB(t, "CREATE TABLE users (id INTEGER); INSERT INTO users VALUES (1);")

	mirrorDir := t.TempDir()
	mirror, err := storage.NewLocalStorage(mirrorDir)
	if err != nil {
		t.Fatalf("NewLocalStorage() error: %v", err)
	}

	engine, _, _ := newTestEngine(t, dbPath, WithMirror(mirror, "nightly"))

	summary, err := engine.Run(context.Background(), tables.Selection{Tables: "users"}, "")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	art := summary.Artifacts[0]
	if art.MirrorKey != "nightly/"+art.Name {
		t.Errorf("MirrorKey = %s, want nightly/%s", art.MirrorKey, art.Name)
	}

	local, _ := os.ReadFile(art.Path)
	mirrored, err := os.ReadFile(filepath.Join(mirrorDir, "nightly", art.Name))
	if err != nil {
		t.Fatalf("mirrored artifact missing: %v", err)
	}
	if !bytes.Equal(local, mirrored) {
		t.Error("mirrored artifact differs from local artifact")
	}
}

func TestEngine_Verify(t *testing.T) {
	dbPath := createTestDB(t, "CREATE TABLE users (id INTEGER); INSERT INTO users VALUES (1), (2);")
	engine, _, _ := newTestEngine(t, dbPath)
	engine.cfg.Export.Verify = true

	summary, err := engine.Run(context.Background(), tables.Selection{Tables: "users"}, "")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !summary.Artifacts[0].Verified {
		t.Error("Artifact.Verified = false with verify enabled")
	}
}

func TestEngine_MetricsAndNotifications(t *testing.T) {
	var (
		mu     sync.Mutex
		events []notify.WebhookPayload
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p notify.WebhookPayload
		json.NewDecoder(r.Body).Decode(&p)
		mu.Lock()
		events = append(events, p)
		mu.Unlock()
	}))
	defer server.Close()

	dbPath := createTestDB(t, "CREATE TABLE users (id INTEGER); INSERT INTO users VALUES (1);")
	m := metrics.New("test_engine")
	engine, _, _ := newTestEngine(t, dbPath,
		WithMetrics(m),
		WithNotifier(notify.NewNotifier(server.URL, discardLogger())),
	)

	if _, err := engine.Run(context.Background(), tables.Selection{Tables: "users,missing"}, ""); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 1 {
		t.Fatalf("received %d webhook events, want 1", len(events))
	}
	if events[0].Event != "export.completed" || events[0].Status != "partial" {
		t.Errorf("event = %s/%s, want export.completed/partial", events[0].Event, events[0].Status)
	}
	if !reflect.DeepEqual(events[0].Details.FailedTables, []string{"missing"}) {
		t.Errorf("failed tables = %v, want [missing]", events[0].Details.FailedTables)
	}

	status := engine.Status()
	if status.Last == nil || len(status.Last.Artifacts) != 1 {
		t.Errorf("Status().Last = %+v, want one artifact", status.Last)
	}
	if status.LastRun.IsZero() {
		t.Error("Status().LastRun should be set")
	}
}

func TestEngine_ListTables(t *testing.T) {
	dbPath := createTestDB(t, `
		CREATE TABLE log_a (id INTEGER);
		CREATE TABLE users (id INTEGER);
	`)
	engine, _, _ := newTestEngine(t, dbPath)

	got, err := engine.ListTables(context.Background(), "^log_")
	if err != nil {
		t.Fatalf("ListTables() error: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"log_a"}) {
		t.Errorf("ListTables() = %v, want [log_a]", got)
	}

	var patErr *tables.PatternError
	if _, err := engine.ListTables(context.Background(), "("); !errors.As(err, &patErr) {
		t.Errorf("ListTables(invalid) error = %v, want *tables.PatternError", err)
	}
}

func TestEngine_ListArtifacts(t *testing.T) {
	dbPath := createTestDB(t, "CREATE TABLE users (id INTEGER);")
	engine, _, outDir := newTestEngine(t, dbPath)

	if files, err := engine.ListArtifacts(context.Background(), ""); err != nil || len(files) != 0 {
		t.Fatalf("ListArtifacts() before run = %v, %v", files, err)
	}

	if _, err := engine.Run(context.Background(), tables.Selection{Tables: "users"}, ""); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	os.WriteFile(filepath.Join(outDir, "notes.txt"), []byte("x"), 0644)

	files, err := engine.ListArtifacts(context.Background(), "")
	if err != nil {
		t.Fatalf("ListArtifacts() error: %v", err)
	}
	if len(files) != 1 || !strings.HasPrefix(files[0].Path, "users_") {
		t.Errorf("ListArtifacts() = %+v, want one users artifact", files)
	}
}

func TestEngine_ManifestAndVerifyRun(t *testing.T) {
	dbPath := createTestDB(t, `
		CREATE TABLE users (id INTEGER, name TEXT);
		INSERT INTO users VALUES (1, 'Alice'), (2, 'Bob');
	`)
	engine, _, outDir := newTestEngine(t, dbPath)
	engine.cfg.Export.Manifest = true

	summary, err := engine.Run(context.Background(), tables.Selection{Tables: "users,missing"}, "")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if summary.Manifest != ManifestName(summary.ID) {
		t.Fatalf("Manifest = %q, want %q", summary.Manifest, ManifestName(summary.ID))
	}

	m, err := engine.LoadManifest(context.Background(), "", summary.ID)
	if err != nil {
		t.Fatalf("LoadManifest() error: %v", err)
	}
	if m.RunID != summary.ID || m.Database.Type != "sqlite" || m.Database.Version == "" {
		t.Errorf("manifest header = %+v", m)
	}
	if len(m.Artifacts) != 1 || m.Artifacts[0].Rows != 2 || m.Artifacts[0].Checksum != summary.Artifacts[0].Checksum {
		t.Errorf("manifest artifacts = %+v", m.Artifacts)
	}
	if len(m.Failures) != 1 || m.Failures[0].Table != "missing" {
		t.Errorf("manifest failures = %+v", m.Failures)
	}

	// Manifests are not CSV artifacts.
	if files, _ := engine.ListArtifacts(context.Background(), ""); len(files) != 1 {
		t.Errorf("ListArtifacts() = %d files, want 1", len(files))
	}

	results, err := engine.VerifyRun(context.Background(), "", summary.Manifest)
	if err != nil {
		t.Fatalf("VerifyRun() error: %v", err)
	}
	if len(results) != 1 || !results[0].Valid {
		t.Errorf("VerifyRun() = %+v, want one valid result", results)
	}

	os.WriteFile(filepath.Join(outDir, summary.Artifacts[0].Name), []byte("id,name\n1,Alice\n"), 0644)

	results, err = engine.VerifyRun(context.Background(), "", summary.ID)
	if err != nil {
		t.Fatalf("VerifyRun() error: %v", err)
	}
	if results[0].Valid || results[0].ChecksumOK || results[0].RowsOK {
		t.Errorf("VerifyRun() after tampering = %+v", results[0])
	}
}

func TestEngine_LoadManifestMissing(t *testing.T) {
	engine, _, _ := newTestEngine(t, createTestDB(t, ""))

	if _, err := engine.LoadManifest(context.Background(), "", "export_20200101_000000"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("LoadManifest() error = %v, want storage.ErrNotFound", err)
	}
}

package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/localrivet/csvexport/internal/storage"
)

const manifestSuffix = ".manifest.json"

// Manifest is the JSON record of one run written next to its artifacts.
type Manifest struct {
	RunID           string           `json:"run_id"`
	Database        ManifestDatabase `json:"database"`
	Started         time.Time        `json:"started"`
	DurationSeconds float64          `json:"duration_seconds"`
	Artifacts       []*Artifact      `json:"artifacts"`
	Failures        []Failure        `json:"failures,omitempty"`
}

type ManifestDatabase struct {
	Type    string `json:"type"`
	Name    string `json:"name,omitempty"`
	Host    string `json:"host,omitempty"`
	Version string `json:"version,omitempty"`
}

func ManifestName(runID string) string {
	return runID + manifestSuffix
}

func newManifest(s *Summary, db ManifestDatabase, duration time.Duration) *Manifest {
	return &Manifest{
		RunID:           s.ID,
		Database:        db,
		Started:         s.Started,
		DurationSeconds: duration.Seconds(),
		Artifacts:       s.Artifacts,
		Failures:        s.Failures,
	}
}

func (m *Manifest) ToJSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

// writeManifest stores the manifest for s in outputDir and, when set, the mirror.
func (e *Engine) writeManifest(ctx context.Context, s *Summary, version, outputDir string) (string, error) {
	local, err := storage.NewLocalStorage(outputDir)
	if err != nil {
		return "", err
	}

	db := e.DatabaseConfig()
	m := newManifest(s, ManifestDatabase{
		Type:    db.Type,
		Name:    db.Name,
		Host:    db.Host,
		Version: version,
	}, e.now().Sub(s.Started))

	data, err := m.ToJSON()
	if err != nil {
		return "", err
	}

	name := ManifestName(s.ID)
	if err := local.Write(ctx, name, bytes.NewReader(data)); err != nil {
		return "", err
	}

	if e.mirror != nil {
		key := path.Join(e.mirrorPrefix, name)
		if err := e.mirror.Write(ctx, key, bytes.NewReader(data)); err != nil {
			e.logger.Error("failed to mirror manifest", "key", key, "error", err)
		}
	}

	return name, nil
}

// LoadManifest reads the manifest of run from outputDir. run may be a run ID
// or a manifest file name.
func (e *Engine) LoadManifest(ctx context.Context, outputDir, run string) (*Manifest, error) {
	if outputDir == "" {
		outputDir = e.cfg.Export.OutputDir
	}

	local, err := storage.NewLocalStorage(outputDir)
	if err != nil {
		return nil, err
	}

	name := run
	if !strings.HasSuffix(name, manifestSuffix) {
		name = ManifestName(run)
	}

	r, err := local.Read(ctx, name)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return ParseManifest(data)
}

// VerifyRun re-checks every artifact recorded in a run's manifest.
func (e *Engine) VerifyRun(ctx context.Context, outputDir, run string) ([]*ValidationResult, error) {
	if outputDir == "" {
		outputDir = e.cfg.Export.OutputDir
	}

	m, err := e.LoadManifest(ctx, outputDir, run)
	if err != nil {
		return nil, err
	}

	local, err := storage.NewLocalStorage(outputDir)
	if err != nil {
		return nil, err
	}

	validator := NewValidator(local, e.logger)
	results := make([]*ValidationResult, 0, len(m.Artifacts))
	for _, art := range m.Artifacts {
		result, err := validator.Validate(ctx, art.Name, art)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

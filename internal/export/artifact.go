package export

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

const timestampLayout = "20060102_150405"

// Artifact describes one CSV file produced for one table. Artifacts are never
// modified or removed once written.
type Artifact struct {
	Table      string    `json:"table"`
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	Columns    []string  `json:"columns"`
	Rows       int64     `json:"rows"`
	Size       int64     `json:"size_bytes"`
	Checksum   string    `json:"checksum"`
	ExportedAt time.Time `json:"exported_at"`
	MirrorKey  string    `json:"mirror_key,omitempty"`
	Verified   bool      `json:"verified,omitempty"`
}

var nameReplacer = strings.NewReplacer("/", "_", `\`, "_")

// ArtifactName returns the file name for a table exported at t, for example
// users_20240115_103000.csv.
func ArtifactName(table string, t time.Time) string {
	return nameReplacer.Replace(table) + "_" + t.Format(timestampLayout) + ".csv"
}

// RunID names an export run by its start time.
func RunID(t time.Time) string {
	return "export_" + t.Format(timestampLayout)
}

func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

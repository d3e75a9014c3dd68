package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/localrivet/csvexport/internal/storage"
)

// Validator re-reads written artifacts and checks them against what the
// exporter believes it wrote.
type Validator struct {
	storage storage.Backend
	logger  *slog.Logger
}

func NewValidator(store storage.Backend, logger *slog.Logger) *Validator {
	return &Validator{
		storage: store,
		logger:  logger,
	}
}

type ValidationResult struct {
	Name       string
	Valid      bool
	FileExists bool
	ChecksumOK bool
	HeaderOK   bool
	RowsOK     bool
	Errors     []string
}

// Err folds a failed result into an error.
func (r *ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return fmt.Errorf("artifact %s failed verification: %v", r.Name, r.Errors)
}

// Validate checks that the artifact stored under name exists, matches its
// checksum, and parses back to the expected header and row count.
func (v *Validator) Validate(ctx context.Context, name string, art *Artifact) (*ValidationResult, error) {
	result := &ValidationResult{
		Name:  name,
		Valid: true,
	}

	exists, err := v.storage.Exists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to check file existence: %w", err)
	}
	result.FileExists = exists

	if !exists {
		result.Valid = false
		result.Errors = append(result.Errors, "artifact file does not exist")
		return result, nil
	}

	reader, err := v.storage.Read(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	data, err := io.ReadAll(reader)
	reader.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	result.ChecksumOK = art.Checksum == "" || Checksum(data) == art.Checksum
	if !result.ChecksumOK {
		result.Valid = false
		result.Errors = append(result.Errors, "checksum mismatch")
	}

	header, rows, err := countRecords(data)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("unparseable csv: %v", err))
		return result, nil
	}

	result.HeaderOK = slices.Equal(header, art.Columns)
	if !result.HeaderOK {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("header mismatch: expected %v, got %v", art.Columns, header))
	}

	result.RowsOK = rows == art.Rows
	if !result.RowsOK {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf(
			"row count mismatch: expected %d, got %d",
			art.Rows, rows,
		))
	}

	if !result.Valid {
		v.logger.Warn("artifact verification failed", "name", name, "errors", result.Errors)
	}

	return result, nil
}

func countRecords(data []byte) ([]string, int64, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, errors.New("missing header row")
		}
		return nil, 0, err
	}

	var n int64
	for {
		_, err := r.Read()
		if errors.Is(err, io.EOF) {
			return header, n, nil
		}
		if err != nil {
			return header, n, err
		}
		n++
	}
}

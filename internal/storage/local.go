package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalStorage keeps artifacts under a directory on disk. The directory is
// created on first write, so pointing it at a path that does not exist yet is
// fine.
type LocalStorage struct {
	basePath string
}

func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if basePath == "" {
		return nil, &StorageError{Op: "create", Path: basePath, Err: errors.New("base path is required")}
	}

	return &LocalStorage{
		basePath: basePath,
	}, nil
}

// Path returns the on-disk location of a relative artifact path.
func (l *LocalStorage) Path(path string) string {
	return filepath.Join(l.basePath, filepath.FromSlash(path))
}

// Write stores reader at path. Data goes to a temporary file first and is
// linked into place, so a failed write never leaves a truncated artifact. An
// existing file is never replaced; Write returns ErrExists instead.
func (l *LocalStorage) Write(ctx context.Context, path string, reader io.Reader) error {
	fullPath := l.Path(path)

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &StorageError{Op: "write", Path: path, Err: err}
	}

	f, err := os.CreateTemp(dir, ".partial-*")
	if err != nil {
		return &StorageError{Op: "write", Path: path, Err: err}
	}
	tmpName := f.Name()

	if _, err := io.Copy(f, reader); err != nil {
		f.Close()
		os.Remove(tmpName)
		return &StorageError{Op: "write", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpName)
		return &StorageError{Op: "write", Path: path, Err: err}
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return &StorageError{Op: "write", Path: path, Err: err}
	}
	defer os.Remove(tmpName)

	if err := publish(tmpName, fullPath); err != nil {
		if errors.Is(err, fs.ErrExist) {
			err = ErrExists
		}
		return &StorageError{Op: "write", Path: path, Err: err}
	}

	return nil
}

// publish makes tmp visible at dst without replacing an existing file. Hard
// links fail atomically when dst exists; filesystems without link support
// fall back to a checked rename.
func publish(tmp, dst string) error {
	err := os.Link(tmp, dst)
	if err == nil || errors.Is(err, fs.ErrExist) {
		return err
	}
	if _, statErr := os.Lstat(dst); statErr == nil {
		return fs.ErrExist
	}
	return os.Rename(tmp, dst)
}

func (l *LocalStorage) Read(ctx context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(l.Path(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &StorageError{Op: "read", Path: path, Err: ErrNotFound}
		}
		return nil, &StorageError{Op: "read", Path: path, Err: err}
	}

	return f, nil
}

// List returns the files under the base directory whose relative path starts
// with prefix, newest first. A base directory that does not exist yet holds
// no files.
func (l *LocalStorage) List(ctx context.Context, prefix string) ([]FileInfo, error) {
	var files []FileInfo

	err := filepath.WalkDir(l.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(l.basePath, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if strings.HasPrefix(filepath.Base(relPath), ".partial-") {
			return nil
		}
		if prefix != "" && !strings.HasPrefix(relPath, prefix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		files = append(files, FileInfo{
			Path:         relPath,
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
		return nil
	})

	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return files, nil
		}
		return nil, &StorageError{Op: "list", Path: prefix, Err: err}
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].LastModified.After(files[j].LastModified)
	})

	return files, nil
}

func (l *LocalStorage) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(l.Path(path))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, &StorageError{Op: "exists", Path: path, Err: err}
	}

	return true, nil
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps job working files and deliverables on the local
// filesystem under a single root directory.
type FileStore struct {
	basePath string
}

// NewFileStore initializes a FileStore rooted at basePath.
func NewFileStore(basePath string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if !filepath.IsAbs(basePath) {
		if abs, err := filepath.Abs(basePath); err == nil {
			basePath = abs
		}
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// Path resolves key to an absolute path inside the root.
func (s *FileStore) Path(key string) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, filepath.FromSlash(cleanKey)), nil
}

// Dir resolves key to a directory inside the root and creates it.
func (s *FileStore) Dir(key string) (string, error) {
	dir, err := s.Path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	return dir, nil
}

// Write persists the provided bytes at the given relative key and returns the
// absolute path. Keys are cleaned to prevent directory traversal.
func (s *FileStore) Write(ctx context.Context, key string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fullPath, err := s.Path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	return fullPath, nil
}

// WriteFrom streams r into key and returns the absolute path and byte count.
// A partially written file is removed on failure.
func (s *FileStore) WriteFrom(ctx context.Context, key string, r io.Reader) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	fullPath, err := s.Path(key)
	if err != nil {
		return "", 0, err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", 0, fmt.Errorf("storage: ensure directory: %w", err)
	}
	f, err := os.Create(fullPath)
	if err != nil {
		return "", 0, fmt.Errorf("storage: create file: %w", err)
	}
	n, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(fullPath)
		if copyErr != nil {
			return "", 0, fmt.Errorf("storage: write file: %w", copyErr)
		}
		return "", 0, fmt.Errorf("storage: close file: %w", closeErr)
	}
	return fullPath, n, nil
}

// CopyFile copies the file at src into key.
func (s *FileStore) CopyFile(ctx context.Context, key, src string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("storage: open source: %w", err)
	}
	defer in.Close()
	fullPath, _, err := s.WriteFrom(ctx, key, in)
	return fullPath, err
}

// Open opens the file stored under key for reading.
func (s *FileStore) Open(key string) (*os.File, error) {
	fullPath, err := s.Path(key)
	if err != nil {
		return nil, err
	}
	return os.Open(fullPath)
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.Clean(key)
	cleaned = strings.ReplaceAll(cleaned, "\\", "/")
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}

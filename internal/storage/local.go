package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FileStore persists uploaded files and returns the URL they are served at
type FileStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// PublicPrefix is the URL prefix local files are served under
const PublicPrefix = "/uploads"

// LocalStorage handles file storage on the local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new local storage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

// BasePath is the directory served under PublicPrefix
func (s *LocalStorage) BasePath() string {
	return s.basePath
}

// Put writes data under key and returns its public path
func (s *LocalStorage) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	filePath, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		os.Remove(filePath)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return path.Join(PublicPrefix, filepath.ToSlash(key)), nil
}

// Delete removes a file. Missing files are not an error.
func (s *LocalStorage) Delete(_ context.Context, key string) error {
	filePath, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Exists checks if a file exists
func (s *LocalStorage) Exists(key string) bool {
	filePath, err := s.resolve(key)
	if err != nil {
		return false
	}
	_, err = os.Stat(filePath)
	return err == nil
}

// resolve maps key into basePath, rejecting keys that escape it
func (s *LocalStorage) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(key, "/")))
	if clean == "." || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(s.basePath, clean), nil
}

// ValidImageTypes returns allowed MIME types for profile pictures
func ValidImageTypes() map[string]bool {
	return map[string]bool{
		"image/jpeg": true,
		"image/jpg":  true,
		"image/png":  true,
	}
}

// MaxFileSize returns the maximum allowed upload size (5MB)
func MaxFileSize() int64 {
	return 5 * 1024 * 1024
}

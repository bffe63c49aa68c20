package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalUploader writes media under a directory served by the API itself.
// It is meant for development and single-node installs.
type LocalUploader struct {
	root    string
	baseURL string
}

// NewLocalUploader stores files below root and builds URLs from baseURL.
func NewLocalUploader(root, baseURL string) (*LocalUploader, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &LocalUploader{root: root, baseURL: baseURL}, nil
}

// Root returns the directory files are written to.
func (u *LocalUploader) Root() string { return u.root }

func (u *LocalUploader) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + path)
	if strings.Contains(path, "..") {
		return "", fmt.Errorf("invalid media path %q", path)
	}
	return filepath.Join(u.root, filepath.FromSlash(clean)), nil
}

func (u *LocalUploader) Upload(ctx context.Context, data []byte, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	full, err := u.resolve(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write media: %w", err)
	}
	return joinURL(u.baseURL, path), nil
}

func (u *LocalUploader) Remove(_ context.Context, path string) error {
	full, err := u.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove media: %w", err)
	}
	return nil
}

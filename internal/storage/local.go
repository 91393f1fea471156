package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// LocalDriver keeps objects on disk under BaseDir. The content type is kept
// in a ".meta" file next to each object.
type LocalDriver struct {
	BaseDir   string
	PublicURL string
}

func NewLocalDriver(baseDir, publicURL string) (*LocalDriver, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &LocalDriver{BaseDir: baseDir, PublicURL: publicURL}, nil
}

func (d *LocalDriver) fullPath(key string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(d.BaseDir, filepath.FromSlash(key)), nil
}

func (d *LocalDriver) Save(_ context.Context, key string, body io.Reader, contentType string) error {
	full, err := d.fullPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.Create(full)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(full)
		return fmt.Errorf("failed to save file content: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(full)
		return fmt.Errorf("failed to save file content: %w", err)
	}

	if err := os.WriteFile(full+".meta", []byte(contentType), 0o644); err != nil {
		os.Remove(full)
		return fmt.Errorf("failed to save metadata: %w", err)
	}
	return nil
}

func (d *LocalDriver) Get(_ context.Context, key string) (io.ReadCloser, string, error) {
	full, err := d.fullPath(key)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, "", err
	}

	contentType := "application/octet-stream"
	if meta, err := os.ReadFile(full + ".meta"); err == nil && len(meta) > 0 {
		contentType = string(meta)
	}
	return f, contentType, nil
}

func (d *LocalDriver) Delete(_ context.Context, key string) error {
	full, err := d.fullPath(key)
	if err != nil {
		return err
	}
	_ = os.Remove(full + ".meta")
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (d *LocalDriver) URL(_ context.Context, key string, _ time.Duration) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if d.PublicURL == "" {
		return key, nil
	}
	return d.PublicURL + "/" + key, nil
}

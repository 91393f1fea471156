// Package storage archives uploaded invoice spreadsheets.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"
)

var ErrInvalidKey = errors.New("storage: invalid object key")

// Driver is a blob store for uploaded files.
type Driver interface {
	Save(ctx context.Context, key string, body io.Reader, contentType string) error
	// Get streams an object back with its content type.
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, key string) error
	URL(ctx context.Context, key string, expires time.Duration) (string, error)
}

func cleanKey(key string) (string, error) {
	key = strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(key, "\\", "/")), "/")
	if key == "" || key == "." {
		return "", ErrInvalidKey
	}
	return key, nil
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
)

// GCSDriver stores objects in a Google Cloud Storage bucket using
// Application Default Credentials.
type GCSDriver struct {
	client *storage.Client
	bucket string
}

func NewGCSDriver(client *storage.Client, bucket string) *GCSDriver {
	return &GCSDriver{client: client, bucket: bucket}
}

func (d *GCSDriver) Save(ctx context.Context, key string, body io.Reader, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := d.client.Bucket(d.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return fmt.Errorf("copy to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}
	return nil
}

func (d *GCSDriver) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	r, err := d.client.Bucket(d.bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("open GCS object %q: %w", key, err)
	}
	contentType := r.Attrs.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return r, contentType, nil
}

func (d *GCSDriver) Delete(ctx context.Context, key string) error {
	err := d.client.Bucket(d.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete GCS object %q: %w", key, err)
	}
	return nil
}

func (d *GCSDriver) URL(_ context.Context, key string, expires time.Duration) (string, error) {
	if expires <= 0 {
		expires = time.Hour
	}
	u, err := d.client.Bucket(d.bucket).SignedURL(key, &storage.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(expires),
	})
	if err != nil {
		return "", fmt.Errorf("sign GCS url: %w", err)
	}
	return u, nil
}

package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"einvoice/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalDriver_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	d, err := NewLocalDriver(dir, "/uploads")
	require.NoError(t, err)
	ctx := context.Background()

	key := "org-1/batch.csv"
	require.NoError(t, d.Save(ctx, key, strings.NewReader("a,b\n"), "text/csv"))

	_, err = os.Stat(filepath.Join(dir, "org-1", "batch.csv"))
	require.NoError(t, err)

	rc, contentType, err := d.Get(ctx, key)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(body))
	assert.Equal(t, "text/csv", contentType)

	url, err := d.URL(ctx, key, 0)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/org-1/batch.csv", url)

	require.NoError(t, d.Delete(ctx, key))
	_, _, err = d.Get(ctx, key)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, d.Delete(ctx, key), "deleting a missing object is not an error")
}

func TestLocalDriver_KeysStayInsideBaseDir(t *testing.T) {
	dir := t.TempDir()
	d, err := NewLocalDriver(filepath.Join(dir, "store"), "")
	require.NoError(t, err)

	require.NoError(t, d.Save(context.Background(), "../../escape.txt", strings.NewReader("x"), "text/plain"))
	_, err = os.Stat(filepath.Join(dir, "store", "escape.txt"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "escape.txt"))
	assert.True(t, os.IsNotExist(err))

	assert.ErrorIs(t, d.Save(context.Background(), "/", strings.NewReader("x"), ""), ErrInvalidKey)
}

func TestNewFromConfig(t *testing.T) {
	drv, err := NewFromConfig(context.Background(), config.StorageConfig{Type: "local", LocalBaseDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalDriver{}, drv)

	_, err = NewFromConfig(context.Background(), config.StorageConfig{Type: "ftp"})
	assert.Error(t, err)
}

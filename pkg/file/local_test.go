package file_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/file"
)

func TestLocalStorage(t *testing.T) {
	t.Parallel()

	storage, err := file.NewLocalStorage(t.TempDir(), "/files")
	require.NoError(t, err)
	ctx := context.Background()

	obj, err := storage.Put(ctx, "tenant/documents/Invoice-7.pdf", "", []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "tenant/documents/Invoice-7.pdf", obj.Key)
	assert.Equal(t, "application/pdf", obj.ContentType)

	assert.True(t, storage.Exists(ctx, "tenant/documents/Invoice-7.pdf"))

	data, err := storage.Get(ctx, "tenant/documents/Invoice-7.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), data)

	url, err := storage.URL(ctx, "tenant/documents/Invoice-7.pdf", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "/files/tenant/documents/Invoice-7.pdf", url)

	require.NoError(t, storage.Delete(ctx, "tenant/documents/Invoice-7.pdf"))
	require.NoError(t, storage.Delete(ctx, "tenant/documents/Invoice-7.pdf"))
	assert.False(t, storage.Exists(ctx, "tenant/documents/Invoice-7.pdf"))

	_, err = storage.Get(ctx, "tenant/documents/Invoice-7.pdf")
	assert.ErrorIs(t, err, file.ErrFileNotFound)

	_, err = storage.Put(ctx, "../escape", "", nil)
	assert.ErrorIs(t, err, file.ErrInvalidKey)
}

func TestKeyHelpers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a/b/c.csv", file.Key("/a", "b", "c.csv"))

	_, err := file.CleanKey("")
	assert.ErrorIs(t, err, file.ErrInvalidKey)

	key, err := file.CleanKey("\\a\\b.txt")
	require.NoError(t, err)
	assert.Equal(t, "a/b.txt", key)

	assert.Equal(t, "passwd", file.SanitizeFilename("../../../etc/passwd"))
	assert.Equal(t, "unnamed", file.SanitizeFilename(".."))
}

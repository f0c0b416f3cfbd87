package assets_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bookshelf/internal/assets"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		kind assets.Kind
		meta assets.Metadata
		want string
	}{
		{"image mime subtype", assets.KindImage, assets.Metadata{ContentType: "image/png"}, "png"},
		{"jpeg normalised", assets.KindImage, assets.Metadata{ContentType: "image/jpeg"}, "jpg"},
		{"mime with params", assets.KindDocument, assets.Metadata{ContentType: "application/pdf; charset=binary"}, "pdf"},
		{"octet stream falls back to extension", assets.KindDocument, assets.Metadata{FileName: "novel.EPUB", ContentType: "application/octet-stream"}, "epub"},
		{"image default", assets.KindImage, assets.Metadata{}, "jpg"},
		{"document default", assets.KindDocument, assets.Metadata{FileName: "noext"}, "pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, assets.Format(tt.kind, tt.meta))
		})
	}
}

func TestObjectNameAndKey(t *testing.T) {
	name := assets.ObjectName(assets.KindImage, assets.Metadata{ContentType: "image/webp"})
	assert.True(t, strings.HasPrefix(name, "book-covers/"))
	assert.True(t, strings.HasSuffix(name, ".webp"))
	assert.NotEqual(t, name, assets.ObjectName(assets.KindImage, assets.Metadata{ContentType: "image/webp"}))

	key, err := assets.ObjectKey("https://cdn.example.com/bucket/"+name, assets.KindImage)
	require.NoError(t, err)
	assert.Equal(t, name, key)
}

func TestObjectKey_Invalid(t *testing.T) {
	tests := []struct {
		name string
		ref  string
		kind assets.Kind
	}{
		{"single segment", "https://cdn.example.com/file.pdf", assets.KindDocument},
		{"wrong folder for kind", "https://cdn.example.com/b/book-covers/a.png", assets.KindDocument},
		{"trailing slash", "https://cdn.example.com/b/book-pdfs/", assets.KindDocument},
		{"unparsable", "://bad", assets.KindImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := assets.ObjectKey(tt.ref, tt.kind)
			assert.ErrorIs(t, err, assets.ErrInvalidRef)
		})
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := assets.NewMemoryStore()

	local := filepath.Join(t.TempDir(), "cover.png")
	require.NoError(t, os.WriteFile(local, []byte("png-bytes"), 0o600))

	ref, err := store.Put(ctx, local, assets.KindImage, assets.Metadata{FileName: "cover.png", ContentType: "image/png"})
	require.NoError(t, err)
	assert.True(t, store.Exists(ref, assets.KindImage))
	assert.Equal(t, 1, store.Len())

	require.NoError(t, store.Remove(ctx, ref, assets.KindImage))
	assert.False(t, store.Exists(ref, assets.KindImage))

	// Removing again is a no-op.
	assert.NoError(t, store.Remove(ctx, ref, assets.KindImage))

	_, err = store.Put(ctx, filepath.Join(t.TempDir(), "missing"), assets.KindDocument, assets.Metadata{})
	assert.Error(t, err)
	_, err = store.Put(ctx, local, assets.Kind("video"), assets.Metadata{})
	assert.Error(t, err)
}

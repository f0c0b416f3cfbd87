package main

import (
	"context"
	"testing"

	"bookshelf/internal/assets"
	"bookshelf/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAssetStore(t *testing.T) {
	ctx := context.Background()

	store, err := newAssetStore(ctx, &config.Config{AssetBackend: config.BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &assets.MemoryStore{}, store)

	_, err = newAssetStore(ctx, &config.Config{AssetBackend: "ftp"})
	assert.EqualError(t, err, `unsupported asset backend "ftp"`)

	_, err = newAssetStore(ctx, &config.Config{AssetBackend: config.BackendMinio})
	assert.Error(t, err, "minio backend needs an endpoint and credentials")
}

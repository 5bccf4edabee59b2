package fs_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khunglong92/staged-content/pkg/stagedcontent"
	"github.com/khunglong92/staged-content/pkg/stagedcontent/draftkey"
	"github.com/khunglong92/staged-content/pkg/stagedcontent/gateway/fs"
)

func newTestGateway(t *testing.T) (*fs.Gateway, string) {
	t.Helper()

	baseDir := t.TempDir()
	gateway, err := fs.New(fs.Config{BaseDir: baseDir, URLPrefix: "http://blobs.local"})
	require.NoError(t, err)
	return gateway, baseDir
}

func TestNew(t *testing.T) {
	t.Run("requires a base directory", func(t *testing.T) {
		_, err := fs.New(fs.Config{})
		assert.Error(t, err)
	})

	t.Run("creates the base directory", func(t *testing.T) {
		baseDir := filepath.Join(t.TempDir(), "nested", "blobs")
		_, err := fs.New(fs.Config{BaseDir: baseDir})
		require.NoError(t, err)

		info, err := os.Stat(baseDir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})
}

func TestWithKeyGenerator(t *testing.T) {
	ctx := context.Background()
	gateway, err := fs.New(fs.Config{BaseDir: t.TempDir()}, fs.WithKeyGenerator(&draftkey.CustomFuncGenerator{
		ImageKeyFunc: func(prefix, fileName string) string {
			return prefix + "/flat/" + fileName
		},
	}))
	require.NoError(t, err)

	key, err := gateway.Upload(ctx, strings.NewReader("image bytes"), stagedcontent.UploadRequest{
		PathPrefix: "news/42",
		FileName:   "hero.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "news/42/flat/hero.png", key)
}

func TestUploadDownload(t *testing.T) {
	ctx := context.Background()
	gateway, baseDir := newTestGateway(t)

	t.Run("minted key maps onto the directory layout", func(t *testing.T) {
		key, err := gateway.Upload(ctx, strings.NewReader("image bytes"), stagedcontent.UploadRequest{
			PathPrefix: "news/42",
			FileName:   "hero.png",
		})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(key, "news/42/images/"))

		_, err = os.Stat(filepath.Join(baseDir, filepath.FromSlash(key)))
		assert.NoError(t, err)

		reader, err := gateway.Download(ctx, key)
		require.NoError(t, err)
		defer reader.Close()
		body, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, "image bytes", string(body))
	})

	t.Run("custom key overwrites in place", func(t *testing.T) {
		req := stagedcontent.UploadRequest{CustomKey: "news/42/sections/a.html"}
		_, err := gateway.Upload(ctx, strings.NewReader("v1"), req)
		require.NoError(t, err)
		key, err := gateway.Upload(ctx, strings.NewReader("v2"), req)
		require.NoError(t, err)
		assert.Equal(t, "news/42/sections/a.html", key)

		reader, err := gateway.Download(ctx, key)
		require.NoError(t, err)
		defer reader.Close()
		body, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, "v2", string(body))
	})

	t.Run("unknown key is reported", func(t *testing.T) {
		_, err := gateway.Download(ctx, "missing/key")
		assert.ErrorIs(t, err, stagedcontent.ErrKeyNotFound)
	})
}

func TestResolveURLs(t *testing.T) {
	ctx := context.Background()
	gateway, _ := newTestGateway(t)

	key, err := gateway.Upload(ctx, strings.NewReader("x"), stagedcontent.UploadRequest{CustomKey: "a/b.png"})
	require.NoError(t, err)

	url, err := gateway.ResolveURL(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "http://blobs.local/a/b.png", url)

	urls, err := gateway.ResolveURLs(ctx, []string{key, "missing"})
	require.NoError(t, err)
	assert.Len(t, urls, 1)
	assert.Equal(t, "http://blobs.local/a/b.png", urls[key])
}

func TestDeleteCleansDirectories(t *testing.T) {
	ctx := context.Background()
	gateway, baseDir := newTestGateway(t)

	key, err := gateway.Upload(ctx, strings.NewReader("x"), stagedcontent.UploadRequest{
		CustomKey: "news/42/images/only.png",
	})
	require.NoError(t, err)

	require.NoError(t, gateway.Delete(ctx, key))

	// Emptied intermediate directories are pruned up to the base.
	_, err = os.Stat(filepath.Join(baseDir, "news"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(baseDir)
	assert.NoError(t, err)

	assert.ErrorIs(t, gateway.Delete(ctx, key), stagedcontent.ErrKeyNotFound)
}

func TestStat(t *testing.T) {
	ctx := context.Background()
	gateway, _ := newTestGateway(t)

	key, err := gateway.Upload(ctx, strings.NewReader("<html><body>hi</body></html>"), stagedcontent.UploadRequest{
		CustomKey: "news/42/sections/a.html",
	})
	require.NoError(t, err)

	meta, err := gateway.Stat(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, key, meta.Key)
	assert.Equal(t, int64(len("<html><body>hi</body></html>")), meta.Size)
	assert.Contains(t, meta.ContentType, "text/html")

	_, err = gateway.Stat(ctx, "missing")
	assert.ErrorIs(t, err, stagedcontent.ErrKeyNotFound)
}

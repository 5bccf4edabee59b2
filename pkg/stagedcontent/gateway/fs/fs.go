package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/khunglong92/staged-content/pkg/stagedcontent"
	"github.com/khunglong92/staged-content/pkg/stagedcontent/draftkey"
)

// Gateway is a filesystem implementation of the stagedcontent.Gateway
// interface.
type Gateway struct {
	baseDir   string
	urlPrefix string
	keys      draftkey.Generator
}

// Config options for the filesystem gateway
type Config struct {
	BaseDir   string // Base directory for storing blobs
	URLPrefix string // Optional URL prefix ResolveURL builds fetch URLs from
}

// Option represents a functional option for configuring the gateway
type Option func(*Gateway)

// WithKeyGenerator sets the layout of newly minted keys
func WithKeyGenerator(keys draftkey.Generator) Option {
	return func(g *Gateway) {
		g.keys = keys
	}
}

// New creates a new filesystem gateway
func New(config Config, options ...Option) (*Gateway, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	g := &Gateway{
		baseDir:   config.BaseDir,
		urlPrefix: strings.TrimSuffix(config.URLPrefix, "/"),
		keys:      draftkey.NewDefaultGenerator(),
	}
	for _, option := range options {
		option(g)
	}
	return g, nil
}

// Upload stores a blob on disk and returns its key. A CustomKey overwrites
// the existing file in place.
func (g *Gateway) Upload(ctx context.Context, reader io.Reader, req stagedcontent.UploadRequest) (string, error) {
	key := req.CustomKey
	if key == "" {
		if req.RichText {
			key = g.keys.SectionKey(req.PathPrefix)
		} else {
			key = g.keys.ImageKey(req.PathPrefix, req.FileName)
		}
	}

	filePath := filepath.Join(g.baseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return key, nil
}

// ResolveURL returns a fetch URL for a key
func (g *Gateway) ResolveURL(ctx context.Context, key string) (string, error) {
	if _, err := os.Stat(filepath.Join(g.baseDir, filepath.FromSlash(key))); os.IsNotExist(err) {
		return "", stagedcontent.ErrKeyNotFound
	}
	if g.urlPrefix == "" {
		return "", errors.New("url prefix not configured for filesystem gateway")
	}
	return g.urlPrefix + "/" + key, nil
}

// ResolveURLs resolves a batch of keys. Unknown keys are absent from the
// result.
func (g *Gateway) ResolveURLs(ctx context.Context, keys []string) (map[string]string, error) {
	urls := make(map[string]string, len(keys))
	for _, key := range keys {
		url, err := g.ResolveURL(ctx, key)
		if err != nil {
			continue
		}
		urls[key] = url
	}
	return urls, nil
}

// Download fetches a blob directly from the filesystem
func (g *Gateway) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	file, err := os.Open(filepath.Join(g.baseDir, filepath.FromSlash(key)))
	if os.IsNotExist(err) {
		return nil, stagedcontent.ErrKeyNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Delete removes a blob from the filesystem
func (g *Gateway) Delete(ctx context.Context, key string) error {
	filePath := filepath.Join(g.baseDir, filepath.FromSlash(key))
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return stagedcontent.ErrKeyNotFound
	}
	if err := os.Remove(filePath); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	g.cleanupEmptyDirectories(filepath.Dir(filePath))
	return nil
}

// Stat retrieves metadata for a stored blob
func (g *Gateway) Stat(ctx context.Context, key string) (*stagedcontent.BlobMeta, error) {
	filePath := filepath.Join(g.baseDir, filepath.FromSlash(key))

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return nil, stagedcontent.ErrKeyNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	contentType := "application/octet-stream"
	if file, err := os.Open(filePath); err == nil {
		defer file.Close()
		buffer := make([]byte, 512)
		if n, err := file.Read(buffer); err == nil {
			contentType = http.DetectContentType(buffer[:n])
		}
	}

	return &stagedcontent.BlobMeta{
		Key:         key,
		Size:        info.Size(),
		ContentType: contentType,
		UpdatedAt:   info.ModTime(),
	}, nil
}

// cleanupEmptyDirectories recursively removes empty directories up to baseDir
func (g *Gateway) cleanupEmptyDirectories(dir string) {
	if dir == g.baseDir {
		return
	}
	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		if os.Remove(dir) == nil {
			g.cleanupEmptyDirectories(filepath.Dir(dir))
		}
	}
}

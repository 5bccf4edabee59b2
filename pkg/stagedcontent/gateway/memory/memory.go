package memory

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/khunglong92/staged-content/pkg/stagedcontent"
	"github.com/khunglong92/staged-content/pkg/stagedcontent/draftkey"
)

// Gateway is an in-memory implementation of the stagedcontent.Gateway
// interface, used for tests and local development.
type Gateway struct {
	mu        sync.RWMutex
	blobs     map[string][]byte
	mimeTypes map[string]string
	updatedAt map[string]time.Time
	urlPrefix string
	keys      draftkey.Generator
}

// Option represents a functional option for configuring the gateway
type Option func(*Gateway)

// WithURLPrefix makes ResolveURL return prefix/key instead of failing.
// Combine with Handler to serve the blobs over HTTP.
func WithURLPrefix(prefix string) Option {
	return func(g *Gateway) {
		g.urlPrefix = strings.TrimSuffix(prefix, "/")
	}
}

// WithKeyGenerator sets the layout of newly minted keys
func WithKeyGenerator(keys draftkey.Generator) Option {
	return func(g *Gateway) {
		g.keys = keys
	}
}

// New creates a new in-memory gateway
func New(options ...Option) *Gateway {
	g := &Gateway{
		blobs:     make(map[string][]byte),
		mimeTypes: make(map[string]string),
		updatedAt: make(map[string]time.Time),
		keys:      draftkey.NewDefaultGenerator(),
	}
	for _, option := range options {
		option(g)
	}
	return g
}

// Upload stores a blob and returns its key. A CustomKey overwrites in place;
// otherwise a new key is minted under the request's path prefix.
func (g *Gateway) Upload(ctx context.Context, reader io.Reader, req stagedcontent.UploadRequest) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	key := req.CustomKey
	if key == "" {
		if req.RichText {
			key = g.keys.SectionKey(req.PathPrefix)
		} else {
			key = g.keys.ImageKey(req.PathPrefix, req.FileName)
		}
	}

	g.blobs[key] = data
	g.updatedAt[key] = time.Now().UTC()
	if req.ContentType != "" {
		g.mimeTypes[key] = req.ContentType
	} else if _, exists := g.mimeTypes[key]; !exists {
		g.mimeTypes[key] = "application/octet-stream"
	}
	return key, nil
}

// ResolveURL returns a fetch URL for a key
func (g *Gateway) ResolveURL(ctx context.Context, key string) (string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, exists := g.blobs[key]; !exists {
		return "", stagedcontent.ErrKeyNotFound
	}
	if g.urlPrefix == "" {
		return "", &stagedcontent.StorageError{Key: key, Op: "resolve_url",
			Err: stagedcontent.ErrKeyNotFound}
	}
	return g.urlPrefix + "/" + key, nil
}

// ResolveURLs resolves a batch of keys in one call. Unknown keys are simply
// absent from the result.
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

// Download fetches a blob directly
func (g *Gateway) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	data, exists := g.blobs[key]
	if !exists {
		return nil, stagedcontent.ErrKeyNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete removes a blob by key
func (g *Gateway) Delete(ctx context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.blobs[key]; !exists {
		return stagedcontent.ErrKeyNotFound
	}
	delete(g.blobs, key)
	delete(g.mimeTypes, key)
	delete(g.updatedAt, key)
	return nil
}

// Stat retrieves metadata for a stored blob
func (g *Gateway) Stat(ctx context.Context, key string) (*stagedcontent.BlobMeta, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	data, exists := g.blobs[key]
	if !exists {
		return nil, stagedcontent.ErrKeyNotFound
	}
	return &stagedcontent.BlobMeta{
		Key:         key,
		Size:        int64(len(data)),
		ContentType: g.mimeTypes[key],
		UpdatedAt:   g.updatedAt[key],
	}, nil
}

// Len reports how many blobs the gateway currently holds.
func (g *Gateway) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.blobs)
}

// Handler serves stored blobs over HTTP by key path, for use behind the URL
// prefix in tests and local development.
func (g *Gateway) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/")

		g.mu.RLock()
		data, exists := g.blobs[key]
		mimeType := g.mimeTypes[key]
		g.mu.RUnlock()

		if !exists {
			http.NotFound(w, r)
			return
		}
		if mimeType != "" {
			w.Header().Set("Content-Type", mimeType)
		}
		w.Write(data)
	})
}

package stagedcontent

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Resolver turns a stored reference into displayable content, handling the
// key/URL/inline ambiguity uniformly. Every failure path degrades to
// returning some string; callers never see an error from the display path.
type Resolver struct {
	gateway Gateway
	client  *http.Client
	logger  *slog.Logger
}

// ResolverOption represents a functional option for configuring a Resolver
type ResolverOption func(*Resolver)

// WithHTTPClient sets the client used to fetch resolved URLs
func WithHTTPClient(client *http.Client) ResolverOption {
	return func(r *Resolver) {
		r.client = client
	}
}

// WithResolverLogger sets the logger for resolution warnings
func WithResolverLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver creates a resolver over the given gateway.
func NewResolver(gateway Gateway, options ...ResolverOption) *Resolver {
	r := &Resolver{
		gateway: gateway,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  slog.Default(),
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// ResolveContent resolves a stored reference to displayable rich text.
// Inline markup is returned unchanged. URLs are fetched. Keys are resolved
// through the gateway and then fetched. On any failure the original string
// is returned so the caller shows a degraded value instead of crashing.
// Empty references resolve to themselves without touching storage.
func (r *Resolver) ResolveContent(ctx context.Context, ref string) string {
	if strings.TrimSpace(ref) == "" {
		return ref
	}

	switch Classify(ref) {
	case RefInline:
		return ref

	case RefURL:
		body, err := r.fetch(ctx, ref)
		if err != nil {
			r.logger.Warn("Content fetch failed, falling back to reference", "url", ref, "error", err)
			return ref
		}
		return body

	default:
		url, err := r.gateway.ResolveURL(ctx, ref)
		if err != nil {
			r.logger.Warn("Key resolution failed, falling back to key", "key", ref, "error", err)
			return ref
		}
		body, err := r.fetch(ctx, url)
		if err != nil {
			r.logger.Warn("Content fetch failed, falling back to key", "key", ref, "error", err)
			return ref
		}
		return body
	}
}

// ResolveURL resolves an opaque key to a display URL for image-style assets.
// On failure the raw key is returned so the UI shows a broken-image state
// rather than crashing.
func (r *Resolver) ResolveURL(ctx context.Context, key string) string {
	url, err := r.gateway.ResolveURL(ctx, key)
	if err != nil {
		r.logger.Warn("URL resolution failed, falling back to key", "key", key, "error", err)
		return key
	}
	return url
}

// ResolveURLs resolves a batch of keys in one gateway round trip. Keys the
// gateway could not resolve map to themselves.
func (r *Resolver) ResolveURLs(ctx context.Context, keys []string) map[string]string {
	resolved := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return resolved
	}

	urls, err := r.gateway.ResolveURLs(ctx, keys)
	if err != nil {
		r.logger.Warn("Batch URL resolution failed, falling back to keys", "count", len(keys), "error", err)
		urls = nil
	}

	for _, key := range keys {
		if url, ok := urls[key]; ok && url != "" {
			resolved[key] = url
		} else {
			resolved[key] = key
		}
	}
	return resolved
}

func (r *Resolver) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &StorageError{Key: url, Op: "fetch", Err: ErrKeyNotFound}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

package stagedcontent_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khunglong92/staged-content/pkg/stagedcontent"
	memorygateway "github.com/khunglong92/staged-content/pkg/stagedcontent/gateway/memory"
)

// newServedGateway returns a memory gateway whose resolved URLs point at a
// live httptest server serving the gateway's own blobs.
func newServedGateway(t *testing.T) *memorygateway.Gateway {
	t.Helper()

	var g *memorygateway.Gateway
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.Handler().ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	g = memorygateway.New(memorygateway.WithURLPrefix(srv.URL))
	return g
}

func uploadHTML(t *testing.T, g *memorygateway.Gateway, key, body string) {
	t.Helper()

	_, err := g.Upload(context.Background(), strings.NewReader(body), stagedcontent.UploadRequest{
		CustomKey:   key,
		ContentType: "text/html",
	})
	require.NoError(t, err)
}

func TestResolveContent(t *testing.T) {
	ctx := context.Background()
	gateway := newServedGateway(t)
	resolver := stagedcontent.NewResolver(gateway)

	t.Run("inline markup is returned unchanged", func(t *testing.T) {
		got := resolver.ResolveContent(ctx, "<p>draft</p>")
		assert.Equal(t, "<p>draft</p>", got)
	})

	t.Run("absolute url is fetched", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<h1>remote</h1>"))
		}))
		defer srv.Close()

		got := resolver.ResolveContent(ctx, srv.URL)
		assert.Equal(t, "<h1>remote</h1>", got)
	})

	t.Run("opaque key resolves through the gateway", func(t *testing.T) {
		uploadHTML(t, gateway, "news/1/sections/report.html", "<p>stored</p>")

		got := resolver.ResolveContent(ctx, "news/1/sections/report.html")
		assert.Equal(t, "<p>stored</p>", got)
	})

	t.Run("unknown key falls back to the key itself", func(t *testing.T) {
		got := resolver.ResolveContent(ctx, "news/1/sections/missing.html")
		assert.Equal(t, "news/1/sections/missing.html", got)
	})

	t.Run("unreachable url falls back to the url", func(t *testing.T) {
		got := resolver.ResolveContent(ctx, "http://127.0.0.1:1/nope")
		assert.Equal(t, "http://127.0.0.1:1/nope", got)
	})
}

// countingGateway counts key resolutions so tests can assert the gateway
// was never consulted.
type countingGateway struct {
	*memorygateway.Gateway
	resolves int
}

func (g *countingGateway) ResolveURL(ctx context.Context, key string) (string, error) {
	g.resolves++
	return g.Gateway.ResolveURL(ctx, key)
}

func TestResolveContent_EmptyReference(t *testing.T) {
	ctx := context.Background()
	gateway := &countingGateway{Gateway: newServedGateway(t)}
	resolver := stagedcontent.NewResolver(gateway)

	for _, ref := range []string{"", "   ", "\n\t"} {
		assert.Equal(t, ref, resolver.ResolveContent(ctx, ref))
	}
	assert.Zero(t, gateway.resolves)
}

func TestResolveContent_GatewayFailure(t *testing.T) {
	// A gateway without a URL prefix fails every resolution; the resolver
	// must still return the original key rather than an error.
	gateway := memorygateway.New()
	uploadHTML(t, gateway, "sections/report", "<p>x</p>")

	resolver := stagedcontent.NewResolver(gateway)
	got := resolver.ResolveContent(context.Background(), "sections/report")
	assert.Equal(t, "sections/report", got)
}

func TestResolveURL(t *testing.T) {
	ctx := context.Background()
	gateway := newServedGateway(t)
	resolver := stagedcontent.NewResolver(gateway)

	uploadHTML(t, gateway, "img/a", "aaa")

	t.Run("known key resolves to a fetchable url", func(t *testing.T) {
		url := resolver.ResolveURL(ctx, "img/a")
		assert.True(t, strings.HasPrefix(url, "http"))
		assert.True(t, strings.HasSuffix(url, "/img/a"))
	})

	t.Run("unknown key falls back to the key", func(t *testing.T) {
		url := resolver.ResolveURL(ctx, "img/missing")
		assert.Equal(t, "img/missing", url)
	})
}

func TestResolveURLs(t *testing.T) {
	ctx := context.Background()
	gateway := newServedGateway(t)
	resolver := stagedcontent.NewResolver(gateway)

	uploadHTML(t, gateway, "img/a", "aaa")
	uploadHTML(t, gateway, "img/b", "bbb")

	urls := resolver.ResolveURLs(ctx, []string{"img/a", "img/b", "img/missing"})
	require.Len(t, urls, 3)
	assert.True(t, strings.HasSuffix(urls["img/a"], "/img/a"))
	assert.True(t, strings.HasSuffix(urls["img/b"], "/img/b"))
	assert.Equal(t, "img/missing", urls["img/missing"])
}

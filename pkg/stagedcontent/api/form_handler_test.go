package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khunglong92/staged-content/pkg/stagedcontent"
	"github.com/khunglong92/staged-content/pkg/stagedcontent/api"
	"github.com/khunglong92/staged-content/pkg/stagedcontent/config"
	memorygateway "github.com/khunglong92/staged-content/pkg/stagedcontent/gateway/memory"
	memoryrepo "github.com/khunglong92/staged-content/pkg/stagedcontent/repo/memory"
)

type handlerFixture struct {
	server  *httptest.Server
	gateway *memorygateway.Gateway
	repo    *memoryrepo.Repository
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	gateway := memorygateway.New(memorygateway.WithURLPrefix(srv.URL + "/blobs"))
	repo := memoryrepo.New(gateway)

	handler, err := api.NewFormHandler(gateway, repo, config.DefaultProfiles())
	require.NoError(t, err)

	mux.Handle("/blobs/", http.StripPrefix("/blobs/", gateway.Handler()))
	mux.Handle("/forms/", http.StripPrefix("/forms", handler.Routes()))

	return &handlerFixture{server: srv, gateway: gateway, repo: repo}
}

func (f *handlerFixture) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	return f.doJSON(t, http.MethodPost, path, body)
}

func (f *handlerFixture) putJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	return f.doJSON(t, http.MethodPut, path, body)
}

func (f *handlerFixture) doJSON(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(method, f.server.URL+path, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func (f *handlerFixture) do(t *testing.T, method, path string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, f.server.URL+path, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (f *handlerFixture) openForm(t *testing.T, collection, entityID string) api.FormResponse {
	t.Helper()

	resp := f.postJSON(t, "/forms/", api.OpenFormRequest{Collection: collection, EntityID: entityID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeBody[api.FormResponse](t, resp)
}

func (f *handlerFixture) stageFile(t *testing.T, sessionID, fileName, contents string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("files", fileName)
	require.NoError(t, err)
	_, err = io.WriteString(part, contents)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req, err := http.NewRequest(http.MethodPost, f.server.URL+"/forms/"+sessionID+"/assets", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestFormSessionLifecycle(t *testing.T) {
	f := newHandlerFixture(t)

	// Open a create-mode session for the news collection.
	form := f.openForm(t, "news", "")
	require.NotEmpty(t, form.SessionID)
	require.NotEmpty(t, form.Draft)
	assert.Empty(t, form.EntityID)

	// Stage an image and fill the form in.
	resp := f.stageFile(t, form.SessionID, "hero.png", "png bytes")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	staged := decodeBody[api.FormResponse](t, resp)
	require.Len(t, staged.Assets, 1)
	assert.Equal(t, stagedcontent.OriginPending, staged.Assets[0].Origin)
	assert.NotEmpty(t, staged.Assets[0].DisplayURL)

	resp = f.putJSON(t, "/forms/"+form.SessionID+"/fields", map[string]any{"title": "Launch"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = f.putJSON(t, "/forms/"+form.SessionID+"/description", api.SetDescriptionRequest{Body: "<p>long form</p>"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = f.postJSON(t, "/forms/"+form.SessionID+"/sections", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	resp = f.putJSON(t, "/forms/"+form.SessionID+"/sections/0", api.SetSectionRequest{Title: "Details", Body: "<p>body</p>"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Submit and verify the committed entity.
	resp = f.postJSON(t, "/forms/"+form.SessionID+"/submit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	submitted := decodeBody[api.SubmitResponse](t, resp)
	require.NotNil(t, submitted.Entity)
	require.NotEmpty(t, submitted.Entity.ID)
	require.Len(t, submitted.Entity.ImageKeys, 1)
	assert.True(t, strings.HasPrefix(submitted.Entity.ImageKeys[0], "news/"+form.Draft+"/"))

	// The session stays open in edit mode after a successful save.
	resp = f.do(t, http.MethodGet, "/forms/"+form.SessionID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	after := decodeBody[api.FormResponse](t, resp)
	assert.Equal(t, submitted.Entity.ID, after.EntityID)
	require.Len(t, after.Assets, 1)
	assert.Equal(t, stagedcontent.OriginExisting, after.Assets[0].Origin)
}

func TestFormEditCycle(t *testing.T) {
	ctx := context.Background()
	f := newHandlerFixture(t)

	// Seed an entity with two images through the backing store.
	seedBlob := func(key string) {
		_, err := f.gateway.Upload(ctx, strings.NewReader("bytes"), stagedcontent.UploadRequest{
			CustomKey: key, ContentType: "image/png",
		})
		require.NoError(t, err)
	}
	seedBlob("products/seed/images/a.png")
	seedBlob("products/seed/images/b.png")
	created, err := f.repo.Create(ctx, stagedcontent.Payload{
		Collection: "products",
		Fields:     map[string]any{"name": "Widget", "category_id": "cat-1", "price": 10},
		ImageKeys:  []string{"products/seed/images/a.png", "products/seed/images/b.png"},
	})
	require.NoError(t, err)

	// Open in edit mode: existing assets come back resolved.
	form := f.openForm(t, "products", created.ID)
	assert.Equal(t, created.ID, form.EntityID)
	require.Len(t, form.Assets, 2)
	assert.Equal(t, stagedcontent.OriginExisting, form.Assets[0].Origin)
	assert.Contains(t, form.Assets[0].DisplayURL, "/blobs/")

	// Remove the first image and save.
	resp := f.do(t, http.MethodDelete, "/forms/"+form.SessionID+"/assets/0")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	removed := decodeBody[api.FormResponse](t, resp)
	require.Len(t, removed.Assets, 1)

	resp = f.postJSON(t, "/forms/"+form.SessionID+"/submit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	submitted := decodeBody[api.SubmitResponse](t, resp)
	assert.Equal(t, []string{"products/seed/images/b.png"}, submitted.Entity.ImageKeys)

	// The backend purged the ledgered blob.
	_, err = f.gateway.Stat(ctx, "products/seed/images/a.png")
	assert.ErrorIs(t, err, stagedcontent.ErrKeyNotFound)
}

func TestFormValidationFailure(t *testing.T) {
	f := newHandlerFixture(t)

	// The news profile requires a title and at least one image.
	form := f.openForm(t, "news", "")
	resp := f.postJSON(t, "/forms/"+form.SessionID+"/submit", nil)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "title")
}

func TestFormStagingLimit(t *testing.T) {
	f := newHandlerFixture(t)
	form := f.openForm(t, "news", "")

	// The news profile allows ten images.
	for i := 0; i < 10; i++ {
		resp := f.stageFile(t, form.SessionID, "a.png", "x")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	resp := f.stageFile(t, form.SessionID, "overflow.png", "x")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestFormCancel(t *testing.T) {
	f := newHandlerFixture(t)
	form := f.openForm(t, "news", "")

	resp := f.postJSON(t, "/forms/"+form.SessionID+"/cancel", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/forms/"+form.SessionID)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFormSessionErrors(t *testing.T) {
	f := newHandlerFixture(t)

	t.Run("collection is required", func(t *testing.T) {
		resp := f.postJSON(t, "/forms/", api.OpenFormRequest{})
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("malformed session id", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/forms/not-a-uuid")
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown entity on edit open", func(t *testing.T) {
		resp := f.postJSON(t, "/forms/", api.OpenFormRequest{Collection: "news", EntityID: "missing"})
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

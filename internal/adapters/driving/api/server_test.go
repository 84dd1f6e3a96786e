package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stashdrop-labs/stashdrop/internal/adapters/driven/blob"
	"github.com/stashdrop-labs/stashdrop/internal/adapters/driven/storage/memory"
	"github.com/stashdrop-labs/stashdrop/internal/adapters/driven/vector/flat"
	"github.com/stashdrop-labs/stashdrop/internal/core/services"
)

// newTestServer wires a real engine over in-memory and temp-dir stores.
// The embedder is absent, so semantic search stays empty; the transport
// behaviour is what's under test here.
func newTestServer(t *testing.T) (*Server, *services.Engine) {
	t.Helper()

	blobs, err := blob.NewStore(filepath.Join(t.TempDir(), "blobs"))
	require.NoError(t, err)
	vectors, err := flat.NewIndex(filepath.Join(t.TempDir(), "embeddings.bin"), 0)
	require.NoError(t, err)

	engine := services.NewEngine(blobs, memory.NewItemStore(), vectors, nil)
	t.Cleanup(engine.Close)

	return NewServer(0, engine), engine
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestIngestTextEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	handler := server.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/ingest/text", map[string]string{
		"text": "remember the milk",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "text", payload["kind"])
	assert.NotEmpty(t, payload["id"])

	// Visible through the list endpoint.
	rec = doJSON(t, handler, http.MethodGet, "/items", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listing struct {
		Items []map[string]any `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Len(t, listing.Items, 1)
}

func TestIngestTextRejectsEmpty(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server.Handler(), http.MethodPost, "/ingest/text", map[string]string{"text": " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.NotEmpty(t, payload["reason"])
}

func TestIngestLinkEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server.Handler(), http.MethodPost, "/ingest/link", map[string]string{
		"url": "https://example.com/docs",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "link", payload["kind"])
	assert.Equal(t, "links", payload["category"])
}

func TestIngestFileBytesEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server.Handler(), http.MethodPost, "/ingest/file", map[string]any{
		"filename": "pixel.png",
		"data":     []byte{0x89, 0x50, 0x4e, 0x47},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "image", payload["kind"])
	assert.NotEmpty(t, payload["hash"])
}

func TestIngestFileRejected(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server.Handler(), http.MethodPost, "/ingest/file", map[string]any{
		"filename": "malware.exe",
		"data":     []byte{0x4d, 0x5a},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGetAndDeleteEndpoints(t *testing.T) {
	server, engine := newTestServer(t)
	handler := server.Handler()

	item, err := engine.IngestText(context.Background(), "short lived")
	require.NoError(t, err)

	rec := doJSON(t, handler, http.MethodGet, "/items/"+item.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodDelete, "/items/"+item.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/items/"+item.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearchEndpointEmptyIndex(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server.Handler(), http.MethodGet, "/search?q=anything+here&k=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Results []map[string]any `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Empty(t, payload.Results)
}

func TestListFilterByCategory(t *testing.T) {
	server, engine := newTestServer(t)
	ctx := context.Background()

	_, err := engine.IngestText(ctx, "an idea of mine")
	require.NoError(t, err)
	_, err = engine.IngestLink(ctx, "https://example.com", "")
	require.NoError(t, err)

	rec := doJSON(t, server.Handler(), http.MethodGet, "/items?category=links", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listing struct {
		Items []map[string]any `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Len(t, listing.Items, 1)
	assert.Equal(t, "links", listing.Items[0]["category"])
}

func TestServerBindsLoopback(t *testing.T) {
	server, _ := newTestServer(t)
	require.NoError(t, server.Start())
	t.Cleanup(func() { _ = server.Stop() })

	assert.Positive(t, server.Port())

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/items", server.Port()))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

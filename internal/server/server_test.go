package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worldbook/internal/config"
	"worldbook/internal/service"
	"worldbook/internal/vectorstore/memory"
)

func testRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	cfg := config.NewHolder(&config.AppConfig{
		Pipeline: config.PipelineConfig{
			DefaultProvider:   "local",
			DefaultCollection: "wb",
			ChunkSize:         64,
			ChunkOverlap:      8,
			EmbedWorkers:      2,
		},
		Providers: map[string]config.ProviderProfile{
			"local": {Kind: "local", Dimension: 32},
		},
		VectorStore: config.VectorStoreConfig{Type: "memory", Distance: "Cosine"},
	}, "")
	svc := service.New(cfg, memory.NewStore(), logger)
	return New(svc, cfg, logger).Router()
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var decoded map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	}
	return w, decoded
}

func ingestBody() map[string]any {
	return map[string]any{
		"entries": map[string]any{
			"0": map[string]any{"uid": 1, "comment": "the castle", "content": "an old keep on the northern hill"},
			"1": map[string]any{"uid": 2, "content": "a dragon sleeps in the caves"},
		},
	}
}

func TestIngestEndpoint(t *testing.T) {
	r := testRouter()
	w, body := doJSON(t, r, http.MethodPost, "/api/worldbook/ingest", ingestBody())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "wb", body["collection"])
	assert.Equal(t, float64(3), body["chunks_processed"])
	assert.Equal(t, float64(3), body["points_stored"])
}

func TestIngestMissingEntriesIs400(t *testing.T) {
	r := testRouter()
	w, body := doJSON(t, r, http.MethodPost, "/api/worldbook/ingest", map[string]any{"collection": "wb"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["error"], "entries")
}

func TestIngestInvalidChunkSizingIs400(t *testing.T) {
	r := testRouter()
	req := ingestBody()
	req["chunk_size"] = 4
	req["overlap_size"] = 4
	w, _ := doJSON(t, r, http.MethodPost, "/api/worldbook/ingest", req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchEndpoint(t *testing.T) {
	r := testRouter()
	w, _ := doJSON(t, r, http.MethodPost, "/api/worldbook/ingest", ingestBody())
	require.Equal(t, http.StatusOK, w.Code)

	w, body := doJSON(t, r, http.MethodPost, "/api/search", map[string]any{
		"query": "dragon caves",
		"limit": 2,
	})
	require.Equal(t, http.StatusOK, w.Code)
	results := body["results"].([]any)
	require.NotEmpty(t, results)
	first := results[0].(map[string]any)
	assert.NotEmpty(t, first["id"])
	assert.NotNil(t, first["score"])
	payload := first["payload"].(map[string]any)
	assert.Equal(t, "a dragon sleeps in the caves", payload["content"])
	_, hasRerank := first["rerank_score"]
	assert.False(t, hasRerank)
}

func TestSearchRequiresQuery(t *testing.T) {
	r := testRouter()
	w, _ := doJSON(t, r, http.MethodPost, "/api/search", map[string]any{"limit": 3})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchUnknownCollectionIs404(t *testing.T) {
	r := testRouter()
	w, _ := doJSON(t, r, http.MethodPost, "/api/search", map[string]any{
		"query":      "anything",
		"collection": "ghost",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteRecordsEndpoint(t *testing.T) {
	r := testRouter()
	w, _ := doJSON(t, r, http.MethodPost, "/api/worldbook/ingest", ingestBody())
	require.Equal(t, http.StatusOK, w.Code)

	w, body := doJSON(t, r, http.MethodPost, "/api/search", map[string]any{"query": "dragon caves", "limit": 1})
	require.Equal(t, http.StatusOK, w.Code)
	id := body["results"].([]any)[0].(map[string]any)["id"].(string)

	w, _ = doJSON(t, r, http.MethodPost, "/api/records/delete", map[string]any{"ids": []string{id}})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestDeleteCollectionEndpoint(t *testing.T) {
	r := testRouter()
	w, _ := doJSON(t, r, http.MethodPost, "/api/worldbook/ingest", ingestBody())
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(t, r, http.MethodDelete, "/api/collections/wb", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(t, r, http.MethodPost, "/api/search", map[string]any{"query": "anything"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthz(t *testing.T) {
	r := testRouter()
	w, body := doJSON(t, r, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", fmt.Sprint(body["status"]))
}

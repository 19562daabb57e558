package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worldbook/internal/config"
	"worldbook/internal/domain"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func gatewayFor(providers map[string]config.ProviderProfile) *Gateway {
	return NewGateway(providers, 2, testLogger())
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		name    string
		profile config.ProviderProfile
		want    Kind
	}{
		{"declared kind wins", config.ProviderProfile{Kind: "openai", BaseURL: "http://ollama.internal"}, KindOpenAI},
		{"ollama sniffed", config.ProviderProfile{BaseURL: "http://ollama.local:11434", EmbeddingEndpoint: "/api/embeddings"}, KindOllama},
		{"openai sniffed", config.ProviderProfile{BaseURL: "https://api.openai.com/v1", EmbeddingEndpoint: "/embeddings"}, KindOpenAI},
		{"llamacpp sniffed", config.ProviderProfile{BaseURL: "http://llamacpp:8080", EmbeddingEndpoint: "/embedding"}, KindLlamaCpp},
		{"generic fallback", config.ProviderProfile{BaseURL: "http://embed.internal", EmbeddingEndpoint: "/v1/vectors"}, KindGeneric},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, KindOf(tc.profile))
		})
	}
}

func TestEmbedOneOpenAIShape(t *testing.T) {
	var got map[string]any
	var auth, extra string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		extra = r.Header.Get("X-Tenant")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float64{0.1, 0.2, 0.3}}},
		})
	}))
	defer srv.Close()

	gw := gatewayFor(map[string]config.ProviderProfile{
		"main": {
			Kind:              "openai",
			BaseURL:           srv.URL,
			EmbeddingEndpoint: "/v1/embeddings",
			APIKey:            "sk-test",
			Model:             "text-embedding-3-small",
			Headers:           map[string]string{"X-Tenant": "alpha"},
			DefaultParams:     map[string]any{"encoding_format": "float"},
		},
	})
	vec, err := gw.EmbedOne(context.Background(), "hello", "main")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, "Bearer sk-test", auth)
	assert.Equal(t, "alpha", extra)
	assert.Equal(t, "hello", got["input"])
	assert.Equal(t, "text-embedding-3-small", got["model"])
	assert.Equal(t, "float", got["encoding_format"])
	assert.NotContains(t, got, "prompt")
}

func TestEmbedOneOllamaFlatResponse(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{1, 0}})
	}))
	defer srv.Close()

	gw := gatewayFor(map[string]config.ProviderProfile{
		"ollama": {Kind: "ollama", BaseURL: srv.URL, EmbeddingEndpoint: "/api/embeddings", Model: "nomic-embed-text"},
	})
	vec, err := gw.EmbedOne(context.Background(), "hello", "ollama")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, vec)
	assert.Equal(t, "hello", got["prompt"])
	assert.NotContains(t, got, "input")
}

func TestEmbedOneLlamaCppShape(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{0.5}})
	}))
	defer srv.Close()

	gw := gatewayFor(map[string]config.ProviderProfile{
		"cpp": {Kind: "llamacpp", BaseURL: srv.URL, EmbeddingEndpoint: "/embedding"},
	})
	_, err := gw.EmbedOne(context.Background(), "hello", "cpp")
	require.NoError(t, err)
	assert.Equal(t, "hello", got["content"])
	assert.NotContains(t, got, "model")
}

func TestEmbedOneProviderReportedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "model overloaded"},
		})
	}))
	defer srv.Close()

	gw := gatewayFor(map[string]config.ProviderProfile{
		"main": {Kind: "openai", BaseURL: srv.URL, EmbeddingEndpoint: "/v1/embeddings"},
	})
	_, err := gw.EmbedOne(context.Background(), "hello", "main")
	var perr *domain.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "model overloaded", perr.Message)
}

func TestEmbedOneUnexpectedShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"vectors": []float64{1, 2}})
	}))
	defer srv.Close()

	gw := gatewayFor(map[string]config.ProviderProfile{
		"main": {Kind: "generic", BaseURL: srv.URL, EmbeddingEndpoint: "/embed"},
	})
	_, err := gw.EmbedOne(context.Background(), "hello", "main")
	assert.True(t, errors.Is(err, domain.ErrUnexpectedResponse))
}

func TestEmbedOneUnknownProvider(t *testing.T) {
	gw := gatewayFor(map[string]config.ProviderProfile{})
	_, err := gw.EmbedOne(context.Background(), "hello", "nope")
	assert.True(t, errors.Is(err, domain.ErrUnknownProvider))
}

func TestEmbedOneLocalProviderNeedsNoServer(t *testing.T) {
	gw := gatewayFor(map[string]config.ProviderProfile{
		"local": {Kind: "local", Dimension: 64},
	})
	vec, err := gw.EmbedOne(context.Background(), "hello world", "local")
	require.NoError(t, err)
	assert.Len(t, vec, 64)
}

func TestEmbedBatchIsolatesItemFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input string `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if strings.Contains(req.Input, "boom") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float64{0.1}}},
		})
	}))
	defer srv.Close()

	gw := gatewayFor(map[string]config.ProviderProfile{
		"main": {Kind: "openai", BaseURL: srv.URL, EmbeddingEndpoint: "/v1/embeddings"},
	})
	vecs, err := gw.EmbedBatch(context.Background(), []string{"one", "boom", "three"}, "main")
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.NotEmpty(t, vecs[0])
	assert.Nil(t, vecs[1])
	assert.NotEmpty(t, vecs[2])
}

func TestEmbedBatchSkipsBlankTexts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float64{0.1}}},
		})
	}))
	defer srv.Close()

	gw := gatewayFor(map[string]config.ProviderProfile{
		"main": {Kind: "openai", BaseURL: srv.URL, EmbeddingEndpoint: "/v1/embeddings"},
	})
	vecs, err := gw.EmbedBatch(context.Background(), []string{"  ", "text"}, "main")
	require.NoError(t, err)
	assert.Nil(t, vecs[0])
	assert.NotEmpty(t, vecs[1])
	assert.Equal(t, int32(1), calls.Load())
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
server:
  addr: ":9090"
pipeline:
  default_provider: ollama-local
  rerank_provider: reranker
  default_collection: lore
  chunk_size: 512
  chunk_overlap: 64
providers:
  ollama-local:
    kind: ollama
    base_url: http://localhost:11434
    embedding_endpoint: /api/embeddings
    model: nomic-embed-text
  reranker:
    base_url: http://localhost:9997
    model: bge-reranker-v2-m3
    default_params:
      return_documents: false
vector_store:
  type: qdrant
  qdrant:
    url: http://localhost:6333
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadParsesProvidersAndDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "ollama-local", cfg.Pipeline.DefaultProvider)
	assert.Equal(t, 512, cfg.Pipeline.ChunkSize)
	assert.Equal(t, 4, cfg.Pipeline.EmbedWorkers) // defaulted
	assert.Equal(t, "Cosine", cfg.VectorStore.Distance)

	p, ok := cfg.Providers["ollama-local"]
	require.True(t, ok)
	assert.Equal(t, "ollama", p.Kind)
	assert.Equal(t, "nomic-embed-text", p.Model)

	r := cfg.Providers["reranker"]
	assert.Equal(t, false, r.DefaultParams["return_documents"])
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Pipeline.DefaultProvider)
	assert.Equal(t, "memory", cfg.VectorStore.Type)
	assert.Contains(t, cfg.Providers, "local")
}

func TestResolveAPIKeyPrefersLiteral(t *testing.T) {
	t.Setenv("WB_TEST_KEY", "from-env")
	assert.Equal(t, "literal", ProviderProfile{APIKey: "literal", APIKeyEnv: "WB_TEST_KEY"}.ResolveAPIKey())
	assert.Equal(t, "from-env", ProviderProfile{APIKeyEnv: "WB_TEST_KEY"}.ResolveAPIKey())
	assert.Empty(t, ProviderProfile{}.ResolveAPIKey())
}

func TestHolderReloadSwapsSnapshot(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	cfg, err := Load(path)
	require.NoError(t, err)
	h := NewHolder(cfg, path)

	before := h.Snapshot()
	assert.Equal(t, 512, before.Pipeline.ChunkSize)

	require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  chunk_size: 128\n"), 0o644))
	_, err = h.Reload()
	require.NoError(t, err)

	// the old snapshot is untouched; new snapshots see the new value
	assert.Equal(t, 512, before.Pipeline.ChunkSize)
	assert.Equal(t, 128, h.Snapshot().Pipeline.ChunkSize)
}

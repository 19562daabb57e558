package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ProviderProfile describes one external embedding/rerank service. Profiles
// are immutable once loaded; many coexist in the name-keyed registry.
type ProviderProfile struct {
	// Kind selects the request payload shape: openai, ollama, llamacpp,
	// generic or local. When empty, the endpoint URL is sniffed for known
	// substrings as a fallback.
	Kind              string            `yaml:"kind,omitempty"`
	BaseURL           string            `yaml:"base_url"`
	EmbeddingEndpoint string            `yaml:"embedding_endpoint"`
	APIKey            string            `yaml:"api_key,omitempty"`
	APIKeyEnv         string            `yaml:"api_key_env,omitempty"`
	Model             string            `yaml:"model"`
	Dimension         int               `yaml:"dimension,omitempty"`
	Headers           map[string]string `yaml:"headers,omitempty"`
	DefaultParams     map[string]any    `yaml:"default_params,omitempty"`
}

// ResolveAPIKey returns the literal key if set, otherwise the value of the
// configured environment variable.
func (p ProviderProfile) ResolveAPIKey() string {
	if p.APIKey != "" {
		return p.APIKey
	}
	if p.APIKeyEnv != "" {
		return os.Getenv(p.APIKeyEnv)
	}
	return ""
}

// PipelineConfig holds the retrieval pipeline defaults.
type PipelineConfig struct {
	DefaultProvider   string `yaml:"default_provider"`
	RerankProvider    string `yaml:"rerank_provider,omitempty"`
	DefaultCollection string `yaml:"default_collection"`
	ChunkSize         int    `yaml:"chunk_size"`
	ChunkOverlap      int    `yaml:"chunk_overlap"`
	EmbedWorkers      int    `yaml:"embed_workers"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key,omitempty"`
	TimeoutSecs int    `yaml:"timeout_secs,omitempty"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type     string        `yaml:"type"`
	Distance string        `yaml:"distance"`
	Qdrant   *QdrantConfig `yaml:"qdrant,omitempty"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server      ServerConfig               `yaml:"server"`
	Pipeline    PipelineConfig             `yaml:"pipeline"`
	Providers   map[string]ProviderProfile `yaml:"providers"`
	VectorStore VectorStoreConfig          `yaml:"vector_store"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/worldbook/config.yaml.
// If neither exists, it writes defaults to ~/.config/worldbook/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "worldbook", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Server: ServerConfig{Addr: ":8787"},
		Pipeline: PipelineConfig{
			DefaultProvider:   "local",
			DefaultCollection: "worldbook",
			ChunkSize:         1000,
			ChunkOverlap:      100,
			EmbedWorkers:      4,
		},
		Providers: map[string]ProviderProfile{
			"local": {Kind: "local", Model: "feature-hash", Dimension: 256},
		},
		VectorStore: VectorStoreConfig{Type: "memory", Distance: "Cosine"},
	}
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8787"
	}
	if cfg.Pipeline.DefaultCollection == "" {
		cfg.Pipeline.DefaultCollection = "worldbook"
	}
	if cfg.Pipeline.ChunkSize == 0 {
		cfg.Pipeline.ChunkSize = 1000
	}
	if cfg.Pipeline.EmbedWorkers == 0 {
		cfg.Pipeline.EmbedWorkers = 4
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "memory"
	}
	if cfg.VectorStore.Distance == "" {
		cfg.VectorStore.Distance = "Cosine"
	}
	if cfg.Providers == nil {
		cfg.Providers = map[string]ProviderProfile{
			"local": {Kind: "local", Model: "feature-hash", Dimension: 256},
		}
		if cfg.Pipeline.DefaultProvider == "" {
			cfg.Pipeline.DefaultProvider = "local"
		}
	}
}

// Package embedding normalizes heterogeneous embedding APIs behind one
// gateway: providers are resolved by name from the registry, requests are
// shaped per provider kind, and the two accepted response shapes are
// decoded into plain vectors.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"worldbook/internal/config"
	"worldbook/internal/domain"
	"worldbook/internal/embedding/local"
)

// Kind identifies the request payload shape a provider expects.
type Kind string

const (
	KindOpenAI   Kind = "openai"
	KindOllama   Kind = "ollama"
	KindLlamaCpp Kind = "llamacpp"
	KindGeneric  Kind = "generic"
	KindLocal    Kind = "local"
)

// KindOf returns the profile's declared kind, falling back to sniffing the
// endpoint URL for known substrings when no kind is declared.
func KindOf(p config.ProviderProfile) Kind {
	switch Kind(strings.ToLower(p.Kind)) {
	case KindOpenAI, KindOllama, KindLlamaCpp, KindGeneric, KindLocal:
		return Kind(strings.ToLower(p.Kind))
	}
	url := strings.ToLower(p.BaseURL + p.EmbeddingEndpoint)
	switch {
	case strings.Contains(url, "ollama"):
		return KindOllama
	case strings.Contains(url, "openai"):
		return KindOpenAI
	case strings.Contains(url, "llamacpp"):
		return KindLlamaCpp
	default:
		return KindGeneric
	}
}

// Gateway embeds text through any provider in its registry.
type Gateway struct {
	providers map[string]config.ProviderProfile
	client    *http.Client
	workers   int
	logger    *logrus.Logger
}

// NewGateway creates a gateway over a provider registry snapshot. workers
// bounds the concurrency of batch embedding; values below 1 mean serial.
func NewGateway(providers map[string]config.ProviderProfile, workers int, logger *logrus.Logger) *Gateway {
	if logger == nil {
		logger = logrus.New()
	}
	return &Gateway{
		providers: providers,
		client:    &http.Client{Timeout: 30 * time.Second},
		workers:   workers,
		logger:    logger,
	}
}

func (g *Gateway) profile(name string) (config.ProviderProfile, error) {
	p, ok := g.providers[name]
	if !ok {
		return config.ProviderProfile{}, fmt.Errorf("%w: %q", domain.ErrUnknownProvider, name)
	}
	return p, nil
}

// EmbedOne embeds a single text with the named provider.
func (g *Gateway) EmbedOne(ctx context.Context, text, provider string) ([]float64, error) {
	p, err := g.profile(provider)
	if err != nil {
		return nil, err
	}
	return g.embed(ctx, text, provider, p)
}

// EmbedBatch embeds texts with the named provider using a bounded worker
// pool. The result slice is indexed by input position; an item that is
// blank or fails to embed leaves a nil vector at its position and never
// aborts the batch. Only provider resolution can fail the call.
func (g *Gateway) EmbedBatch(ctx context.Context, texts []string, provider string) ([][]float64, error) {
	p, err := g.profile(provider)
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(texts))
	workers := g.workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(texts) {
		workers = len(texts)
	}
	jobs := make(chan int)
	done := make(chan struct{})
	for w := 0; w < workers; w++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for i := range jobs {
				if strings.TrimSpace(texts[i]) == "" {
					continue // failure placeholder, never sent
				}
				vec, err := g.embed(ctx, texts[i], provider, p)
				if err != nil {
					g.logger.WithError(err).WithFields(logrus.Fields{
						"provider": provider,
						"index":    i,
					}).Warn("embedding failed, recording empty vector")
					continue
				}
				out[i] = vec
			}
		}()
	}
	for i := range texts {
		jobs <- i
	}
	close(jobs)
	for w := 0; w < workers; w++ {
		<-done
	}
	return out, nil
}

func (g *Gateway) embed(ctx context.Context, text, provider string, p config.ProviderProfile) ([]float64, error) {
	kind := KindOf(p)
	if kind == KindLocal {
		return local.New(p.Dimension).Embed(text), nil
	}
	payload, err := buildPayload(kind, p.Model, text, p.DefaultParams)
	if err != nil {
		return nil, fmt.Errorf("encode embedding request: %w", err)
	}
	url := strings.TrimRight(p.BaseURL, "/") + ensureLeadingSlash(p.EmbeddingEndpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range p.Headers {
		req.Header.Set(k, v)
	}
	if key := p.ResolveAPIKey(); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request to %s: %w", provider, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		// the body may still carry a structured provider error
		if perr := providerReportedError(body, provider); perr != nil {
			return nil, perr
		}
		return nil, fmt.Errorf("embedding request to %s failed: %s", provider, resp.Status)
	}
	return parseEmbedding(body, provider)
}

// one typed request struct per provider kind; provider extras pass through
// via the profile's default_params merged into the encoded payload
type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type openaiRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type llamaCppRequest struct {
	Content string `json:"content"`
}

type genericRequest struct {
	Model string `json:"model,omitempty"`
	Text  string `json:"text"`
}

func buildPayload(kind Kind, model, text string, extra map[string]any) ([]byte, error) {
	var req any
	switch kind {
	case KindOllama:
		req = ollamaRequest{Model: model, Prompt: text}
	case KindOpenAI:
		req = openaiRequest{Model: model, Input: text}
	case KindLlamaCpp:
		req = llamaCppRequest{Content: text}
	default:
		req = genericRequest{Model: model, Text: text}
	}
	encoded, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return encoded, nil
	}
	var merged map[string]any
	if err := json.Unmarshal(encoded, &merged); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

func parseEmbedding(body []byte, provider string) ([]float64, error) {
	if perr := providerReportedError(body, provider); perr != nil {
		return nil, perr
	}
	// OpenAI-compatible shape first
	var openaiOut struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &openaiOut); err == nil {
		if len(openaiOut.Data) > 0 && len(openaiOut.Data[0].Embedding) > 0 {
			return openaiOut.Data[0].Embedding, nil
		}
	}
	// flat shape (Ollama, llama.cpp)
	var flat struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := json.Unmarshal(body, &flat); err == nil && len(flat.Embedding) > 0 {
		return flat.Embedding, nil
	}
	return nil, fmt.Errorf("%w from provider %s", domain.ErrUnexpectedResponse, provider)
}

func providerReportedError(body []byte, provider string) error {
	var probe struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &probe); err != nil || len(probe.Error) == 0 || string(probe.Error) == "null" {
		return nil
	}
	return &domain.ProviderError{Provider: provider, Message: errorMessage(probe.Error)}
}

// errorMessage extracts a human-readable message from either a bare string
// error or an OpenAI-style {"message": ...} object.
func errorMessage(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return string(raw)
}

func ensureLeadingSlash(path string) string {
	if path == "" || strings.HasPrefix(path, "/") {
		return path
	}
	return "/" + path
}

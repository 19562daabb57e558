// Package rerank sends a query plus candidate documents to a relevance
// reranking provider and returns the provider's ordering unmodified.
package rerank

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
)

// Gateway talks to one rerank provider profile.
type Gateway struct {
	name    string
	profile config.ProviderProfile
	client  *http.Client
	logger  *logrus.Logger
}

// NewGateway creates a gateway for the named provider profile.
func NewGateway(name string, profile config.ProviderProfile, logger *logrus.Logger) *Gateway {
	if logger == nil {
		logger = logrus.New()
	}
	return &Gateway{
		name:    name,
		profile: profile,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model,omitempty"`
	TopN      int      `json:"top_n"`
}

// Rerank posts the query and documents to the provider's /rerank endpoint
// and returns the result list in the order received. The caller must have
// filtered out blank documents beforehand; the gateway does not filter.
func (g *Gateway) Rerank(ctx context.Context, query string, documents []string, topN int) ([]domain.RerankResult, error) {
	payload, err := buildPayload(rerankRequest{
		Query:     query,
		Documents: documents,
		Model:     g.profile.Model,
		TopN:      topN,
	}, g.profile.DefaultParams)
	if err != nil {
		return nil, fmt.Errorf("encode rerank request: %w", err)
	}
	url := strings.TrimRight(g.profile.BaseURL, "/") + "/rerank"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range g.profile.Headers {
		req.Header.Set(k, v)
	}
	if key := g.profile.ResolveAPIKey(); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &domain.RerankError{Provider: g.name, Message: err.Error()}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.RerankError{Provider: g.name, Message: err.Error()}
	}
	if resp.StatusCode >= 300 {
		return nil, &domain.RerankError{Provider: g.name, Message: resp.Status + ": " + snippet(body)}
	}
	var out struct {
		Error   json.RawMessage       `json:"error"`
		Results []domain.RerankResult `json:"results"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &domain.RerankError{Provider: g.name, Message: "undecodable response: " + snippet(body)}
	}
	if len(out.Error) > 0 && string(out.Error) != "null" {
		return nil, &domain.RerankError{Provider: g.name, Message: string(out.Error)}
	}
	g.logger.WithFields(logrus.Fields{
		"provider":  g.name,
		"documents": len(documents),
		"results":   len(out.Results),
	}).Debug("rerank completed")
	return out.Results, nil
}

func buildPayload(req rerankRequest, extra map[string]any) ([]byte, error) {
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

func snippet(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max]
	}
	return s
}

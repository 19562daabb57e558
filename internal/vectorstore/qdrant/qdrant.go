// Package qdrant is a minimal REST client to Qdrant implementing the
// vector store contract. Operations are fail-fast: any non-success status
// surfaces as a single store error carrying Qdrant's message; nothing is
// retried here.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"worldbook/internal/domain"
)

// Store is a REST client bound to one Qdrant instance; the collection is
// chosen per call.
type Store struct {
	url    string
	apiKey string
	client *http.Client
}

type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

func NewStore(cfg Config) *Store {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Store{
		url:    strings.TrimRight(cfg.URL, "/"),
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *Store) CreateCollection(ctx context.Context, name string, dimension int, distance string) error {
	if distance == "" {
		distance = "Cosine"
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": distance,
		},
	}
	// Qdrant returns 200 if the collection already exists with the same schema
	return s.do(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s", s.url, name), "create collection", body, nil)
}

func (s *Store) Upsert(ctx context.Context, collection string, points []domain.StoredPoint) error {
	qpoints := make([]map[string]any, len(points))
	for i, p := range points {
		qpoints[i] = map[string]any{
			"id":      p.ID,
			"vector":  p.Vector,
			"payload": p.Payload,
		}
	}
	body := map[string]any{"points": qpoints}
	url := fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, collection)
	return s.do(ctx, http.MethodPut, url, "upsert", body, nil)
}

func (s *Store) Search(ctx context.Context, collection string, vector []float64, limit int) ([]domain.SearchCandidate, error) {
	body := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			ID      any            `json:"id"` // Qdrant ids are UUID strings or integers
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", s.url, collection)
	if err := s.do(ctx, http.MethodPost, url, "search", body, &resp); err != nil {
		return nil, err
	}
	results := make([]domain.SearchCandidate, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, domain.SearchCandidate{
			ID:      fmt.Sprint(r.ID),
			Score:   r.Score,
			Payload: r.Payload,
		})
	}
	return results, nil
}

func (s *Store) DeleteRecords(ctx context.Context, collection string, ids []string) error {
	body := map[string]any{"points": ids}
	url := fmt.Sprintf("%s/collections/%s/points/delete?wait=true", s.url, collection)
	return s.do(ctx, http.MethodPost, url, "delete records", body, nil)
}

func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	return s.do(ctx, http.MethodDelete, fmt.Sprintf("%s/collections/%s", s.url, name), "delete collection", nil, nil)
}

func (s *Store) do(ctx context.Context, method, url, op string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return &domain.StoreError{Op: op, StatusCode: 0, Message: err.Error()}
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.StoreError{Op: op, StatusCode: resp.StatusCode, Message: err.Error()}
	}
	if resp.StatusCode >= 300 {
		return &domain.StoreError{Op: op, StatusCode: resp.StatusCode, Message: qdrantError(payload, resp.Status)}
	}
	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return &domain.StoreError{Op: op, StatusCode: resp.StatusCode, Message: "undecodable response: " + err.Error()}
		}
	}
	return nil
}

// qdrantError pulls the message out of Qdrant's {"status":{"error": ...}}
// envelope, falling back to the HTTP status line.
func qdrantError(body []byte, fallback string) string {
	var envelope struct {
		Status struct {
			Error string `json:"error"`
		} `json:"status"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Status.Error != "" {
		return envelope.Status.Error
	}
	return fallback
}

package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidChunking is returned when the chunk window is not larger
	// than the overlap. A non-positive stride would never terminate, so
	// this is rejected rather than silently corrected.
	ErrInvalidChunking = errors.New("chunk window must be larger than overlap")

	// ErrUnknownProvider is returned when a provider name is not present
	// in the registry.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrUnexpectedResponse is returned when an embedding response matches
	// none of the accepted shapes.
	ErrUnexpectedResponse = errors.New("unexpected embedding response shape")
)

// ProviderError is a structured error reported by an embedding provider
// inside an otherwise well-formed response body.
type ProviderError struct {
	Provider string
	Message  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s reported error: %s", e.Provider, e.Message)
}

// RerankError fails the whole rerank step. Falling back to the un-reranked
// order is the caller's decision, never automatic.
type RerankError struct {
	Provider string
	Message  string
}

func (e *RerankError) Error() string {
	return fmt.Sprintf("rerank provider %s failed: %s", e.Provider, e.Message)
}

// StoreError carries the vector store's status and message for a failed
// operation. Store operations are fail-fast and never retried.
type StoreError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("vector store %s failed (%d): %s", e.Op, e.StatusCode, e.Message)
}

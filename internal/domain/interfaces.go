package domain

import "context"

// Embedder converts text into vector representations via a named provider
// from the registry. Batch results are indexed by input position; a failed
// item yields a nil vector at its position, never an aborted batch.
type Embedder interface {
	EmbedOne(ctx context.Context, text, provider string) ([]float64, error)
	EmbedBatch(ctx context.Context, texts []string, provider string) ([][]float64, error)
}

// Reranker scores candidate documents against a query and returns them in
// the provider's relevance order. Blank documents must be filtered out by
// the caller before the call.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]RerankResult, error)
}

// VectorStore persists vectors with payload metadata and answers
// nearest-neighbor queries. All operations are fail-fast: a non-success
// response surfaces as a single *StoreError and is never retried here.
type VectorStore interface {
	CreateCollection(ctx context.Context, name string, dimension int, distance string) error
	Upsert(ctx context.Context, collection string, points []StoredPoint) error
	Search(ctx context.Context, collection string, vector []float64, limit int) ([]SearchCandidate, error)
	DeleteRecords(ctx context.Context, collection string, ids []string) error
	DeleteCollection(ctx context.Context, name string) error
}

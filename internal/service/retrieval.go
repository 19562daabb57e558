// Package service composes the world-book processor, embedding gateway,
// vector store and rerank gateway into the ingestion and query pipelines.
package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"worldbook/internal/config"
	"worldbook/internal/domain"
	"worldbook/internal/embedding"
	"worldbook/internal/rerank"
	"worldbook/internal/worldbook"
)

// pointNamespace seeds the deterministic point IDs so that re-ingesting
// the same world book upserts points in place instead of duplicating them.
var pointNamespace = uuid.MustParse("8f3c1f6e-4b62-4d5a-9b0a-7f2d9c4e5a61")

// Retrieval orchestrates ingestion and querying. The vector store and
// logger live for the process; provider gateways are rebuilt per request
// from a config snapshot taken at request start, so a reload is never
// observed mid-request.
type Retrieval struct {
	cfg    *config.Holder
	store  domain.VectorStore
	logger *logrus.Logger
}

func New(cfg *config.Holder, store domain.VectorStore, logger *logrus.Logger) *Retrieval {
	if logger == nil {
		logger = logrus.New()
	}
	return &Retrieval{cfg: cfg, store: store, logger: logger}
}

// IngestOptions selects the collection, provider and chunk sizing for one
// ingestion request. Zero Collection/Provider and non-positive ChunkSize
// fall back to the pipeline defaults; ChunkOverlap falls back only when
// negative, because zero overlap is a valid choice.
type IngestOptions struct {
	Collection   string
	Provider     string
	ChunkSize    int
	ChunkOverlap int
}

// IngestStats reports what one ingestion run produced.
type IngestStats struct {
	Collection      string `json:"collection"`
	ChunksProcessed int    `json:"chunks_processed"`
	PointsStored    int    `json:"points_stored"`
}

// Ingest chunks the world book, embeds every chunk and upserts the
// successfully embedded ones. Chunks whose embedding failed (or whose
// embed text was blank) are counted but not stored.
func (s *Retrieval) Ingest(ctx context.Context, book domain.WorldBook, opts IngestOptions) (IngestStats, error) {
	cfg := s.cfg.Snapshot()
	collection := orDefault(opts.Collection, cfg.Pipeline.DefaultCollection)
	provider := orDefault(opts.Provider, cfg.Pipeline.DefaultProvider)
	size := opts.ChunkSize
	if size <= 0 {
		size = cfg.Pipeline.ChunkSize
	}
	overlap := opts.ChunkOverlap
	if overlap < 0 {
		overlap = cfg.Pipeline.ChunkOverlap
	}

	chunks, err := worldbook.Process(book, size, overlap)
	if err != nil {
		return IngestStats{}, err
	}
	stats := IngestStats{Collection: collection, ChunksProcessed: len(chunks)}
	if len(chunks) == 0 {
		return stats, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.EmbedText()
	}
	gw := embedding.NewGateway(cfg.Providers, cfg.Pipeline.EmbedWorkers, s.logger)
	vectors, err := gw.EmbedBatch(ctx, texts, provider)
	if err != nil {
		return IngestStats{}, err
	}

	var points []domain.StoredPoint
	for i, vec := range vectors {
		if len(vec) == 0 {
			continue
		}
		points = append(points, domain.StoredPoint{
			ID:      pointID(chunks[i]),
			Vector:  vec,
			Payload: chunks[i].Payload(),
		})
	}
	if len(points) == 0 {
		s.logger.WithField("collection", collection).Warn("no chunks embedded successfully, nothing stored")
		return stats, nil
	}

	if err := s.store.CreateCollection(ctx, collection, len(points[0].Vector), cfg.VectorStore.Distance); err != nil {
		return IngestStats{}, err
	}
	if err := s.store.Upsert(ctx, collection, points); err != nil {
		return IngestStats{}, err
	}
	stats.PointsStored = len(points)
	s.logger.WithFields(logrus.Fields{
		"collection": collection,
		"chunks":     stats.ChunksProcessed,
		"points":     stats.PointsStored,
	}).Info("world book ingested")
	return stats, nil
}

// QueryOptions selects collection, provider, limit and reranking for one
// similarity query.
type QueryOptions struct {
	Query      string
	Collection string
	Provider   string
	Limit      int
	Rerank     bool
}

// overFetchFactor is how many candidates are pulled from the store per
// requested result, leaving the reranker something to reorder.
const overFetchFactor = 2

// Query embeds the query text, over-fetches nearest neighbors and, when
// requested, re-scores them with the rerank provider. Reranked results are
// ordered by rerank score descending; candidates whose document text was
// blank are dropped from the reranked result entirely. Truncation to the
// limit happens last.
func (s *Retrieval) Query(ctx context.Context, opts QueryOptions) ([]domain.SearchCandidate, error) {
	cfg := s.cfg.Snapshot()
	collection := orDefault(opts.Collection, cfg.Pipeline.DefaultCollection)
	provider := orDefault(opts.Provider, cfg.Pipeline.DefaultProvider)
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	gw := embedding.NewGateway(cfg.Providers, cfg.Pipeline.EmbedWorkers, s.logger)
	vector, err := gw.EmbedOne(ctx, opts.Query, provider)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidates, err := s.store.Search(ctx, collection, vector, overFetchFactor*limit)
	if err != nil {
		return nil, err
	}

	if opts.Rerank && len(candidates) > 0 {
		reranked, err := s.rerankCandidates(ctx, cfg, opts.Query, candidates, limit)
		if err != nil {
			return nil, err
		}
		if reranked != nil {
			candidates = reranked
		}
	}

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// rerankCandidates sends the non-blank candidate documents to the rerank
// provider and rebuilds the candidate list in rerank-score order. Returns
// nil (and no error) when every document was blank, which leaves the
// store's native order in place.
func (s *Retrieval) rerankCandidates(ctx context.Context, cfg *config.AppConfig, query string, candidates []domain.SearchCandidate, limit int) ([]domain.SearchCandidate, error) {
	name := cfg.Pipeline.RerankProvider
	profile, ok := cfg.Providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: rerank provider %q", domain.ErrUnknownProvider, name)
	}

	var documents []string
	var original []int // index into the pre-filter candidate list
	for i, c := range candidates {
		doc := c.Document()
		if doc == "" {
			continue
		}
		documents = append(documents, doc)
		original = append(original, i)
	}
	if len(documents) == 0 {
		return nil, nil
	}

	results, err := rerank.NewGateway(name, profile, s.logger).Rerank(ctx, query, documents, limit)
	if err != nil {
		return nil, err
	}

	merged := make([]domain.SearchCandidate, 0, len(results))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(original) {
			s.logger.WithField("index", r.Index).Warn("rerank result index out of range, skipping")
			continue
		}
		c := candidates[original[r.Index]]
		score := r.Score
		c.RerankScore = &score
		merged = append(merged, c)
	}
	// stable sort keeps provider order deterministic among equal scores
	sort.SliceStable(merged, func(i, j int) bool {
		return *merged[i].RerankScore > *merged[j].RerankScore
	})
	return merged, nil
}

// DeleteRecords removes points by id from a collection.
func (s *Retrieval) DeleteRecords(ctx context.Context, collection string, ids []string) error {
	cfg := s.cfg.Snapshot()
	return s.store.DeleteRecords(ctx, orDefault(collection, cfg.Pipeline.DefaultCollection), ids)
}

// DeleteCollection drops a whole collection.
func (s *Retrieval) DeleteCollection(ctx context.Context, name string) error {
	return s.store.DeleteCollection(ctx, name)
}

func pointID(c domain.Chunk) string {
	return uuid.NewSHA1(pointNamespace, []byte(fmt.Sprintf("%d:%d", c.EntryUID, c.Index))).String()
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

package domain

import "strings"

// ChunkType records which entry field a chunk was cut from.
type ChunkType string

const (
	ChunkTypeContent ChunkType = "content"
	ChunkTypeComment ChunkType = "comment"
)

// Chunk is one window of text cut from a single field of a single entry.
// Content chunks carry the chunked text as Content and the whole original
// comment as context; comment chunks carry the chunked text as Comment and
// an empty Content. Chunks are immutable once emitted.
type Chunk struct {
	EntryUID int
	Type     ChunkType
	// Index is the running chunk index within the source entry, across
	// both chunking passes. (EntryUID, Index) identifies a point.
	Index   int
	Content string
	Comment string
	// Entry is the source entry; its flags travel into point payloads.
	Entry Entry
}

// EmbedText is the string sent to the embedding provider for this chunk.
func (c Chunk) EmbedText() string {
	return strings.TrimSpace(c.Comment + " " + c.Content)
}

// Payload is the metadata mapping persisted alongside the vector.
func (c Chunk) Payload() map[string]any {
	return map[string]any{
		"entry_uid":      c.EntryUID,
		"chunk_type":     string(c.Type),
		"chunk_index":    c.Index,
		"content":        c.Content,
		"comment":        c.Comment,
		"key":            c.Entry.Key,
		"keysecondary":   c.Entry.KeySecondary,
		"constant":       c.Entry.Constant,
		"selective":      c.Entry.Selective,
		"order":          c.Entry.Order,
		"position":       c.Entry.Position,
		"disable":        c.Entry.Disable,
		"addMemo":        c.Entry.AddMemo,
		"probability":    c.Entry.Probability,
		"useProbability": c.Entry.UseProbability,
	}
}

// StoredPoint is the unit persisted to the vector store.
type StoredPoint struct {
	ID      string         `json:"id"`
	Vector  []float64      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// SearchCandidate is a stored point returned by a similarity search,
// scored by the store and optionally re-scored by a reranker.
type SearchCandidate struct {
	ID          string         `json:"id"`
	Score       float64        `json:"score"`
	RerankScore *float64       `json:"rerank_score,omitempty"`
	Payload     map[string]any `json:"payload"`
}

// Document returns the text a reranker should judge this candidate by.
func (c SearchCandidate) Document() string {
	comment, _ := c.Payload["comment"].(string)
	content, _ := c.Payload["content"].(string)
	return strings.TrimSpace(comment + " " + content)
}

// RerankResult is one element of a reranker's response: the index of the
// document in the request's document list plus its relevance score.
type RerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"relevance_score"`
}

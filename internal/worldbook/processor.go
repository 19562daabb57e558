// Package worldbook walks world-book documents and cuts their entries
// into tagged chunks ready for embedding.
package worldbook

import (
	"sort"

	"worldbook/internal/chunker"
	"worldbook/internal/domain"
)

// Process runs two independent chunking passes per entry, one over content
// and one over comment. The two fields are never concatenated: the whole
// original comment rides along as context on every content chunk, while
// comment chunks stand alone with an empty content. Entries with both
// fields empty contribute nothing.
func Process(book domain.WorldBook, windowSize, overlapSize int) ([]domain.Chunk, error) {
	keys := make([]string, 0, len(book.Entries))
	for k := range book.Entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var chunks []domain.Chunk
	for _, k := range keys {
		entry := book.Entries[k]
		index := 0
		if entry.Content != "" {
			parts, err := chunker.Chunk(entry.Content, windowSize, overlapSize)
			if err != nil {
				return nil, err
			}
			for _, p := range parts {
				chunks = append(chunks, domain.Chunk{
					EntryUID: entry.UID,
					Type:     domain.ChunkTypeContent,
					Index:    index,
					Content:  p,
					Comment:  entry.Comment,
					Entry:    entry,
				})
				index++
			}
		}
		if entry.Comment != "" {
			parts, err := chunker.Chunk(entry.Comment, windowSize, overlapSize)
			if err != nil {
				return nil, err
			}
			for _, p := range parts {
				chunks = append(chunks, domain.Chunk{
					EntryUID: entry.UID,
					Type:     domain.ChunkTypeComment,
					Index:    index,
					Comment:  p,
					Entry:    entry,
				})
				index++
			}
		}
	}
	return chunks, nil
}

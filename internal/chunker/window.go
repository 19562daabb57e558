package chunker

import (
	"fmt"

	"worldbook/internal/domain"
)

// Chunk splits text into overlapping fixed-size windows. Each window is
// windowSize bytes except the last, which ends exactly at len(text). The
// cursor advances by windowSize-overlapSize between windows.
//
// Pure function of its inputs; safe for concurrent use.
func Chunk(text string, windowSize, overlapSize int) ([]string, error) {
	if windowSize <= 0 || overlapSize < 0 || windowSize <= overlapSize {
		return nil, fmt.Errorf("%w: window=%d overlap=%d", domain.ErrInvalidChunking, windowSize, overlapSize)
	}
	var chunks []string
	step := windowSize - overlapSize
	for cursor := 0; cursor < len(text); cursor += step {
		end := cursor + windowSize
		if end >= len(text) {
			chunks = append(chunks, text[cursor:])
			break
		}
		chunks = append(chunks, text[cursor:end])
	}
	return chunks, nil
}

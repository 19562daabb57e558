package chunker

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worldbook/internal/domain"
)

func TestChunkNoOverlap(t *testing.T) {
	chunks, err := Chunk("hello world", 5, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", " worl", "d"}, chunks)
}

func TestChunkWithOverlap(t *testing.T) {
	chunks, err := Chunk("abcdefgh", 4, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"abcd", "cdef", "efgh"}, chunks)
}

func TestChunkEmptyText(t *testing.T) {
	chunks, err := Chunk("", 5, 1)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunkShortText(t *testing.T) {
	chunks, err := Chunk("hi", 10, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"hi"}, chunks)
}

func TestChunkInvalidSizing(t *testing.T) {
	cases := []struct {
		name    string
		window  int
		overlap int
	}{
		{"overlap equals window", 4, 4},
		{"overlap exceeds window", 4, 6},
		{"zero window", 0, 0},
		{"negative overlap", 4, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Chunk("abcdef", tc.window, tc.overlap)
			assert.True(t, errors.Is(err, domain.ErrInvalidChunking))
		})
	}
}

func TestChunkReconstructsText(t *testing.T) {
	texts := []string{
		"the quick brown fox jumps over the lazy dog",
		strings.Repeat("lorem ipsum dolor sit amet ", 40),
		"x",
	}
	sizings := [][2]int{{5, 0}, {8, 3}, {16, 15}, {100, 10}}
	for _, text := range texts {
		for _, s := range sizings {
			window, overlap := s[0], s[1]
			chunks, err := Chunk(text, window, overlap)
			require.NoError(t, err)
			var b strings.Builder
			for i, c := range chunks {
				assert.LessOrEqual(t, len(c), window)
				if i == 0 {
					b.WriteString(c)
				} else if len(c) > overlap {
					b.WriteString(c[overlap:])
				}
			}
			assert.Equal(t, text, b.String())
			// last chunk always ends at len(text)
			last := chunks[len(chunks)-1]
			assert.True(t, strings.HasSuffix(text, last))
		}
	}
}

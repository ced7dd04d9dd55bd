package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkPagesTagsPageNumbers(t *testing.T) {
	chunker := NewChunker(1000, 200, 100)

	pages := []PageContent{
		{Page: 1, Text: "First page content about the introduction."},
		{Page: 2, Text: ""},
		{Page: 3, Text: "Third page content with a chart.", HasImages: true},
	}
	chunks := chunker.ChunkPages(pages, "doc-1")

	require.Len(t, chunks, 2)
	assert.Equal(t, 1, chunks[0].PageNumber)
	assert.False(t, chunks[0].HasImages)
	assert.Equal(t, 3, chunks[1].PageNumber)
	assert.True(t, chunks[1].HasImages)
	assert.Equal(t, "doc-1", chunks[1].FileID)
}

func TestSplitTextRespectsMaxSize(t *testing.T) {
	chunker := NewChunker(200, 40, 50)

	sentence := "This sentence is long enough to matter for chunk packing purposes. "
	text := strings.TrimSpace(strings.Repeat(sentence, 20))

	pieces := chunker.splitText(text)

	require.Greater(t, len(pieces), 1)
	for _, piece := range pieces {
		// Overlap can push a chunk slightly past the cap, never more than
		// overlap plus one joiner.
		assert.LessOrEqual(t, len(piece), 200+40+1)
	}
}

func TestSplitTextKeepsSentencesIntact(t *testing.T) {
	chunker := NewChunker(120, 0, 20)

	text := "Alpha is the first topic discussed here. Beta follows with more detail. " +
		"Gamma closes out the section with conclusions. Delta is an appendix item."
	pieces := chunker.splitText(text)

	require.Greater(t, len(pieces), 1)
	for _, piece := range pieces {
		assert.NotRegexp(t, `^[a-z]`, piece, "chunk should not start mid-sentence")
	}
}

func TestSplitTextOverlapCarriesContext(t *testing.T) {
	chunker := NewChunker(150, 60, 40)

	text := "The quarterly revenue increased by twelve percent overall. " +
		"Operating costs decreased due to automation initiatives. " +
		"The board approved a new capital allocation plan. " +
		"Headcount remained flat across all departments."
	pieces := chunker.splitText(text)

	require.Greater(t, len(pieces), 1)
	// Some tail of the first chunk reappears at the start of the second.
	tailWords := strings.Fields(pieces[0])
	lastWord := tailWords[len(tailWords)-1]
	assert.Contains(t, pieces[1], strings.TrimRight(lastWord, "."))
}

func TestSplitTextHardSplitsOversizedSentence(t *testing.T) {
	chunker := NewChunker(100, 20, 30)

	text := strings.Repeat("wordwordword ", 40) // one 520-char "sentence"
	pieces := chunker.splitText(strings.TrimSpace(text))

	require.Greater(t, len(pieces), 1)
	for _, piece := range pieces {
		assert.LessOrEqual(t, len(piece), 100)
	}
}

func TestSplitTextShortInputSingleChunk(t *testing.T) {
	chunker := NewChunker(1000, 200, 100)

	pieces := chunker.splitText("A short document.")
	assert.Equal(t, []string{"A short document."}, pieces)
}

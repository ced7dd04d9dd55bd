package services

import (
	"regexp"
	"strings"

	"veritas-backend/internal/rag"
)

// Chunker splits extracted page text into retrieval-sized chunks with
// sentence boundary awareness and configurable overlap between neighbors.
type Chunker struct {
	maxChunkSize  int
	overlap       int
	minChunkSize  int
	sentenceRegex *regexp.Regexp
}

func NewChunker(maxChunkSize, overlap, minChunkSize int) *Chunker {
	return &Chunker{
		maxChunkSize:  maxChunkSize,
		overlap:       overlap,
		minChunkSize:  minChunkSize,
		sentenceRegex: regexp.MustCompile(`[.!?]+[\s]+`),
	}
}

// ChunkPages chunks each page independently so every chunk carries an exact
// page number. Pages with no extractable text contribute no chunks but still
// keep their numbering.
func (c *Chunker) ChunkPages(pages []PageContent, documentID string) []rag.Chunk {
	var chunks []rag.Chunk
	for _, page := range pages {
		text := strings.TrimSpace(page.Text)
		if text == "" {
			continue
		}
		for _, piece := range c.splitText(text) {
			chunks = append(chunks, rag.Chunk{
				Text:       piece,
				PageNumber: page.Page,
				HasImages:  page.HasImages,
				FileID:     documentID,
			})
		}
	}
	return chunks
}

// splitText packs sentences into chunks up to maxChunkSize, carrying overlap
// from the end of each finished chunk into the next one.
func (c *Chunker) splitText(text string) []string {
	if len(text) <= c.maxChunkSize {
		return []string{text}
	}

	sentences := c.splitSentences(text)

	var chunks []string
	current := new(strings.Builder)

	flush := func() {
		piece := strings.TrimSpace(current.String())
		if len(piece) >= c.minChunkSize {
			chunks = append(chunks, piece)
		} else if piece != "" && len(chunks) > 0 {
			// Too small to stand alone; merge into the previous chunk.
			chunks[len(chunks)-1] += " " + piece
		} else if piece != "" {
			chunks = append(chunks, piece)
		}
		current.Reset()
	}

	for _, sentence := range sentences {
		// A single oversized sentence gets hard-split.
		if len(sentence) > c.maxChunkSize {
			flush()
			for start := 0; start < len(sentence); start += c.maxChunkSize - c.overlap {
				end := start + c.maxChunkSize
				if end > len(sentence) {
					end = len(sentence)
				}
				chunks = append(chunks, strings.TrimSpace(sentence[start:end]))
				if end == len(sentence) {
					break
				}
			}
			continue
		}

		if current.Len()+len(sentence)+1 > c.maxChunkSize && current.Len() >= c.minChunkSize {
			overlapText := c.overlapTail(current.String())
			flush()
			if overlapText != "" {
				current.WriteString(overlapText)
			}
		}

		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
	}
	flush()

	return chunks
}

// splitSentences splits on sentence-ending punctuation while keeping the
// punctuation attached to its sentence.
func (c *Chunker) splitSentences(text string) []string {
	boundaries := c.sentenceRegex.FindAllStringIndex(text, -1)

	var sentences []string
	start := 0
	for _, b := range boundaries {
		sentence := strings.TrimSpace(text[start:b[1]])
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		start = b[1]
	}
	if tail := strings.TrimSpace(text[start:]); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

// overlapTail returns the last overlap bytes of a finished chunk, snapped
// forward to a word boundary.
func (c *Chunker) overlapTail(text string) string {
	if c.overlap <= 0 || len(text) <= c.overlap {
		return ""
	}
	tail := text[len(text)-c.overlap:]
	if idx := strings.IndexByte(tail, ' '); idx >= 0 {
		tail = tail[idx+1:]
	}
	return strings.TrimSpace(tail)
}

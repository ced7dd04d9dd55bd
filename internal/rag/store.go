package rag

import (
	"context"
	"fmt"
	"strings"

	"veritas-backend/internal/logger"
	"veritas-backend/internal/vectorindex"
)

// DefaultTopK is how many nearest chunks retrieval returns per query.
const DefaultTopK = 6

// Embedder produces an embedding vector for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex is the nearest-neighbor store contract the pipeline consumes.
type VectorIndex interface {
	Upsert(ctx context.Context, vectors []vectorindex.Vector) error
	Query(ctx context.Context, vector []float32, topK int) ([]vectorindex.Match, error)
	Clear(ctx context.Context) error
}

// DocumentStore embeds and indexes extracted chunks and retrieves the nearest
// ones for a query.
type DocumentStore struct {
	embedder Embedder
	index    VectorIndex
}

func NewDocumentStore(embedder Embedder, index VectorIndex) *DocumentStore {
	return &DocumentStore{embedder: embedder, index: index}
}

// Ingest embeds and stores chunks for a document. Best-effort: individual
// embedding failures are logged and skipped, a storage failure is logged.
// There is no partial-success rollback.
func (s *DocumentStore) Ingest(ctx context.Context, chunks []Chunk, documentID string) {
	logger.Info("Ingesting chunks", "document_id", documentID, "count", len(chunks))

	vectors := make([]vectorindex.Vector, 0, len(chunks))
	for i, chunk := range chunks {
		vec, err := s.embedder.Embed(ctx, chunk.Text)
		if err != nil {
			logger.Error("Embedding failed for chunk", "document_id", documentID, "chunk", i, "error", err)
			continue
		}
		vectors = append(vectors, vectorindex.Vector{
			ID:     fmt.Sprintf("%s-chunk-%d", documentID, i),
			Values: vec,
			Metadata: map[string]any{
				"text":        chunk.Text,
				"page_number": chunk.PageNumber,
				"has_images":  chunk.HasImages,
				"file_id":     documentID,
			},
		})
	}

	if len(vectors) == 0 {
		logger.Warn("No vectors to upsert", "document_id", documentID)
		return
	}
	if err := s.index.Upsert(ctx, vectors); err != nil {
		logger.Error("Vector upsert failed", "document_id", documentID, "error", err)
		return
	}
	logger.Info("Chunks ingested", "document_id", documentID, "vectors", len(vectors))
}

// Reset drops all indexed vectors. Called when a new document replaces the
// active one.
func (s *DocumentStore) Reset(ctx context.Context) error {
	return s.index.Clear(ctx)
}

// Retrieve embeds the query and returns the topK nearest chunks: their
// space-joined text in nearest-first order, the matches themselves, and the
// page-relevance map for visual ranking. Page numbers are normalized to int
// here and nowhere else; index metadata may round-trip them as floats.
func (s *DocumentStore) Retrieve(ctx context.Context, query string, topK int) (*RetrievalResult, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	rawMatches, err := s.index.Query(ctx, queryVec, topK)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	matches := make([]RetrievalMatch, 0, len(rawMatches))
	texts := make([]string, 0, len(rawMatches))
	pageRelevance := make(map[int]float64)

	for _, m := range rawMatches {
		match := RetrievalMatch{
			Text:       metaString(m.Metadata, "text"),
			PageNumber: metaInt(m.Metadata, "page_number"),
			HasImages:  metaBool(m.Metadata, "has_images"),
			Score:      m.Score,
		}
		matches = append(matches, match)
		if match.Text != "" {
			texts = append(texts, match.Text)
		}
		if match.HasImages && match.Score > pageRelevance[match.PageNumber] {
			pageRelevance[match.PageNumber] = match.Score
		}
	}

	return &RetrievalResult{
		Context:       strings.Join(texts, " "),
		Matches:       matches,
		PageRelevance: pageRelevance,
	}, nil
}

func metaString(meta map[string]any, key string) string {
	if v, ok := meta[key].(string); ok {
		return v
	}
	return ""
}

func metaInt(meta map[string]any, key string) int {
	switch v := meta[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func metaBool(meta map[string]any, key string) bool {
	if v, ok := meta[key].(bool); ok {
		return v
	}
	return false
}

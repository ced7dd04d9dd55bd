// Package rag implements the retrieval-and-context-fusion pipeline: casual
// conversation routing, document retrieval, visual evidence selection, web
// evidence, context budget allocation, and streamed answer generation.
package rag

import (
	"veritas-backend/internal/websearch"
)

// Chunk is one extracted text segment, tagged with its source page and
// whether that page carries visual content. Immutable once ingested.
type Chunk struct {
	Text       string `json:"text"`
	PageNumber int    `json:"page_number"`
	HasImages  bool   `json:"has_images"`
	FileID     string `json:"file_id"`
}

// RetrievalMatch is one nearest-neighbor hit for a query. Ephemeral.
type RetrievalMatch struct {
	Text       string
	PageNumber int
	HasImages  bool
	Score      float64
}

// RetrievalResult bundles everything retrieval produces for one query.
// PageRelevance maps page number to the best score among image-bearing
// matches on that page; it exists only to rank pages for visual inspection.
type RetrievalResult struct {
	Context       string
	Matches       []RetrievalMatch
	PageRelevance map[int]float64
}

// Chat roles. A legacy "bot" role still arrives from older clients and is
// normalized to "assistant" before reaching the language model.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleBot       = "bot"
)

// ChatTurn is one entry of a session's conversation history.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response classification for every terminal pipeline state.
const (
	ResponseCasual        = "casual"
	ResponseNoDocument    = "no_document"
	ResponseGeneral       = "general"
	ResponseDocumentQuery = "document_query"
)

// Response is the structured result of one query through the pipeline.
type Response struct {
	Content      string             `json:"content"`
	Citations    []int              `json:"citations"`
	UsedVLM      bool               `json:"used_vlm"`
	VLMPages     []int              `json:"vlm_pages"`
	ResponseType string             `json:"response_type"`
	WebSources   []websearch.Source `json:"web_sources,omitempty"`
}

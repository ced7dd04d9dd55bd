package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"veritas-backend/internal/ai"
	"veritas-backend/internal/logger"
)

// VisionModel answers a question about a single rendered page image.
type VisionModel interface {
	AnswerImage(ctx context.Context, imagePath, question string) (string, error)
	AnalyzeChart(ctx context.Context, imagePath, question string) (string, error)
}

// PageImageResolver maps a page number to its rendered image artifact.
type PageImageResolver interface {
	PageImage(page int) (string, bool)
}

// DefaultMaxVisionPages bounds how many pages go to the vision model per query.
const DefaultMaxVisionPages = 3

// minVisionAnswerLen is the quality floor: anything at or under this length
// is noise, not evidence.
const minVisionAnswerLen = 10

// Keyword tables for visual-intent detection. Deliberately permissive: a
// missed visual cue degrades the answer more than a wasted vision call costs.
var (
	visualKeywords = []string{
		// Direct visual references
		"graph", "chart", "image", "picture", "figure", "diagram", "table",
		"plot", "visualization", "shows", "display", "illustrate", "depicts",
		"photo", "drawing", "screenshot", "visual", "exhibit",
		// Chart types
		"bar chart", "pie chart", "line graph", "bar graph",
		// Data/measurement terms that usually point at a chart
		"rating", "score", "value", "number", "scale", "measure",
		"data", "metric", "statistics", "percentage", "trend",
		// Comparison verbs
		"rate", "rated", "scaled", "measured", "compare", "comparison",
		// Survey-style documents
		"barrier", "issue", "problem", "challenge", "obstacle",
	}

	listingPhrases = []string{"what are", "list", "name all", "tell me", "show me", "all the"}

	quantityPhrases = []string{"how much", "how many", "what number", "exact", "specific"}

	// chartTerms selects the comprehensive chart-analysis mode over the
	// standard single-question mode.
	chartTerms = []string{"chart", "graph", "value", "rating", "score", "barrier", "number", "scale", "issue"}
)

// IsVisualQuery reports whether a query is asking about visual content:
// either it names a visual/measurement concept, or it asks for an enumeration
// together with a quantity.
func IsVisualQuery(query string) bool {
	q := strings.ToLower(query)

	for _, kw := range visualKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}

	askingForList := containsAny(q, listingPhrases)
	wantsQuantity := containsAny(q, quantityPhrases)
	return askingForList && wantsQuantity
}

// VisualSelector decides which retrieved pages to inspect visually and merges
// the vision model's answers into a single visual-context string.
type VisualSelector struct {
	vision   VisionModel
	images   PageImageResolver
	maxPages int
}

func NewVisualSelector(vision VisionModel, images PageImageResolver, maxPages int) *VisualSelector {
	if maxPages <= 0 {
		maxPages = DefaultMaxVisionPages
	}
	return &VisualSelector{vision: vision, images: images, maxPages: maxPages}
}

// Select returns the merged visual context and the pages that contributed to
// it, in ranking order. Pages without a rendered image, and answers that fail
// the quality filter, are dropped without retry.
func (s *VisualSelector) Select(ctx context.Context, query string, pageRelevance map[int]float64) (string, []int) {
	if s == nil || s.vision == nil || len(pageRelevance) == 0 {
		return "", nil
	}
	if !IsVisualQuery(query) {
		return "", nil
	}

	pages := rankPages(pageRelevance, s.maxPages)
	comprehensive := containsAny(strings.ToLower(query), chartTerms)

	var b strings.Builder
	var used []int
	for _, page := range pages {
		imagePath, ok := s.images.PageImage(page)
		if !ok {
			logger.Debug("No rendered image for page", "page", page)
			continue
		}

		var answer string
		var err error
		if comprehensive {
			answer, err = s.vision.AnalyzeChart(ctx, imagePath, query)
		} else {
			answer, err = s.vision.AnswerImage(ctx, imagePath, query)
		}
		if err != nil {
			logger.Warn("Vision call failed for page", "page", page, "error", err)
			continue
		}
		if !usableVisionAnswer(answer) {
			logger.Debug("Vision answer rejected by quality filter", "page", page, "length", len(answer))
			continue
		}

		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(fmt.Sprintf("[Visual content from page %d]: %s", page, answer))
		used = append(used, page)
	}

	return b.String(), used
}

// rankPages sorts candidate pages by relevance score descending (page number
// ascending on ties) and keeps at most limit.
func rankPages(pageRelevance map[int]float64, limit int) []int {
	pages := make([]int, 0, len(pageRelevance))
	for p := range pageRelevance {
		pages = append(pages, p)
	}
	sort.Slice(pages, func(i, j int) bool {
		si, sj := pageRelevance[pages[i]], pageRelevance[pages[j]]
		if si != sj {
			return si > sj
		}
		return pages[i] < pages[j]
	})
	if len(pages) > limit {
		pages = pages[:limit]
	}
	return pages
}

// visionFailureMarkers are the degraded-outcome replies the vision client
// substitutes for an error. An answer carrying one is junk, not evidence.
var visionFailureMarkers = []string{
	ai.VisionImageNotFound,
	ai.VisionBlocked,
	"Could not extract",
	"Error",
}

// usableVisionAnswer applies the content-quality filter: non-trivial length
// and none of the failure markers the vision client emits.
func usableVisionAnswer(answer string) bool {
	if len(answer) <= minVisionAnswerLen {
		return false
	}
	for _, marker := range visionFailureMarkers {
		if strings.Contains(answer, marker) {
			return false
		}
	}
	return true
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

package rag

import "strings"

// DefaultContextBudget is the combined character ceiling for document and web
// evidence in one generation request. Visual context rides outside the budget:
// vision answers are already terse and losing half a chart reading is worse
// than a slightly longer prompt.
const DefaultContextBudget = 8000

const (
	// Below this many characters of document evidence, the document is judged
	// too thin to trust and web evidence takes priority.
	thinDocumentCutoff = 500

	docPriorityRatio = 0.8
	webPriorityRatio = 0.2
)

// AllocateContext splits the character budget between document and web
// evidence. Default priority is 80/20 document/web; a thin document flips it
// to 20/80. Each share is a plain truncation, keeping the earliest (most
// relevant, nearest-first) content.
func AllocateContext(documentContext, webContext string, totalBudget int) (docShare, webShare string) {
	if totalBudget <= 0 {
		totalBudget = DefaultContextBudget
	}

	docRatio, webRatio := docPriorityRatio, webPriorityRatio
	if len(documentContext) < thinDocumentCutoff && webContext != "" {
		docRatio, webRatio = webPriorityRatio, docPriorityRatio
	}

	docShare = truncate(documentContext, int(float64(totalBudget)*docRatio))
	webShare = truncate(webContext, int(float64(totalBudget)*webRatio))
	return docShare, webShare
}

// AssembleContext lays out the final context in fixed section order:
// document, then visual, then web. The order is deterministic regardless of
// how the evidence was gathered.
func AssembleContext(docShare, visualContext, webShare string) string {
	var b strings.Builder
	b.WriteString("Document Context:\n")
	b.WriteString(docShare)

	if visualContext != "" {
		b.WriteString("\n\nVisual Context:\n")
		b.WriteString(visualContext)
	}
	if webShare != "" {
		b.WriteString("\n\nWeb Search Results:\n")
		b.WriteString(webShare)
	}
	return b.String()
}

// truncate cuts s to at most n bytes without leaving a torn UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}

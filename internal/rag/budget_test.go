package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllocateContextDocumentPriority(t *testing.T) {
	doc := strings.Repeat("d", 7000)
	web := strings.Repeat("w", 4000)

	docShare, webShare := AllocateContext(doc, web, 8000)

	assert.Len(t, docShare, 6400)
	assert.Len(t, webShare, 1600)
}

func TestAllocateContextThinDocumentFlips(t *testing.T) {
	doc := strings.Repeat("d", 100)
	web := strings.Repeat("w", 9000)

	docShare, webShare := AllocateContext(doc, web, 8000)

	// Thin document keeps everything it has; web takes the large share.
	assert.Equal(t, doc, docShare)
	assert.Len(t, webShare, 6400)
}

func TestAllocateContextThinDocumentWithoutWebKeepsPriority(t *testing.T) {
	doc := strings.Repeat("d", 100)

	docShare, webShare := AllocateContext(doc, "", 8000)

	assert.Equal(t, doc, docShare)
	assert.Empty(t, webShare)
}

func TestAllocateContextShortInputsUntouched(t *testing.T) {
	docShare, webShare := AllocateContext("doc text", "web text", 8000)

	assert.Equal(t, "doc text", docShare)
	assert.Equal(t, "web text", webShare)
}

func TestAllocateContextTruncationKeepsEarliestContent(t *testing.T) {
	doc := "most relevant chunk " + strings.Repeat("x", 10000)

	docShare, _ := AllocateContext(doc, "", 8000)

	assert.True(t, strings.HasPrefix(docShare, "most relevant chunk"))
	assert.Len(t, docShare, 6400)
}

func TestAllocateContextZeroBudgetFallsBackToDefault(t *testing.T) {
	doc := strings.Repeat("d", 10000)

	docShare, _ := AllocateContext(doc, "", 0)

	assert.Len(t, docShare, int(float64(DefaultContextBudget)*0.8))
}

func TestAssembleContextSectionOrder(t *testing.T) {
	out := AssembleContext("doc", "visual", "web")

	docIdx := strings.Index(out, "Document Context:\ndoc")
	visIdx := strings.Index(out, "Visual Context:\nvisual")
	webIdx := strings.Index(out, "Web Search Results:\nweb")

	assert.GreaterOrEqual(t, docIdx, 0)
	assert.Greater(t, visIdx, docIdx)
	assert.Greater(t, webIdx, visIdx)
}

func TestAssembleContextOmitsEmptySections(t *testing.T) {
	out := AssembleContext("doc", "", "")

	assert.Equal(t, "Document Context:\ndoc", out)
	assert.NotContains(t, out, "Visual Context")
	assert.NotContains(t, out, "Web Search Results")
}

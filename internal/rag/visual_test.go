package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"veritas-backend/internal/ai"
)

type fakeVision struct {
	answers       map[string]string
	chartCalls    int
	standardCalls int
}

func (f *fakeVision) AnswerImage(_ context.Context, imagePath, _ string) (string, error) {
	f.standardCalls++
	return f.answers[imagePath], nil
}

func (f *fakeVision) AnalyzeChart(_ context.Context, imagePath, _ string) (string, error) {
	f.chartCalls++
	return f.answers[imagePath], nil
}

type fakeResolver map[int]string

func (f fakeResolver) PageImage(page int) (string, bool) {
	path, ok := f[page]
	return path, ok
}

func TestIsVisualQuery(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"what does the chart show", true},
		{"what is the rating for communication", true},
		{"what are the barriers mentioned", true},
		{"list all the issues and how many there are", true},
		{"what are the exact values", true},
		{"summarize the introduction", false},
		{"who wrote this document", false},
		{"what are the main topics", false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, IsVisualQuery(tt.query))
		})
	}
}

func TestSelectRanksPagesAndCapsAtLimit(t *testing.T) {
	vision := &fakeVision{answers: map[string]string{
		"p1.png": "page one has a detailed bar chart",
		"p2.png": "page two shows quarterly figures",
		"p3.png": "page three compares two trends",
		"p4.png": "page four lists survey results",
	}}
	resolver := fakeResolver{1: "p1.png", 2: "p2.png", 3: "p3.png", 4: "p4.png"}
	selector := NewVisualSelector(vision, resolver, 3)

	relevance := map[int]float64{1: 0.5, 2: 0.9, 3: 0.7, 4: 0.8}
	contextStr, pages := selector.Select(context.Background(), "what does the chart show", relevance)

	assert.Equal(t, []int{2, 4, 3}, pages)
	assert.Contains(t, contextStr, "[Visual content from page 2]")
	assert.Contains(t, contextStr, "[Visual content from page 4]")
	assert.Contains(t, contextStr, "[Visual content from page 3]")
	assert.NotContains(t, contextStr, "page 1")
}

func TestSelectSkipsNonVisualQueries(t *testing.T) {
	vision := &fakeVision{answers: map[string]string{"p1.png": "irrelevant"}}
	selector := NewVisualSelector(vision, fakeResolver{1: "p1.png"}, 3)

	contextStr, pages := selector.Select(context.Background(), "summarize the conclusion", map[int]float64{1: 0.9})

	assert.Empty(t, contextStr)
	assert.Nil(t, pages)
	assert.Zero(t, vision.chartCalls+vision.standardCalls)
}

func TestSelectQualityFilter(t *testing.T) {
	vision := &fakeVision{answers: map[string]string{
		"p1.png": "short",
		"p2.png": "Could not extract information from the image.",
		"p3.png": "Error: vision backend unavailable",
		"p4.png": "the bar chart reports a score of 4.2 for communication",
	}}
	resolver := fakeResolver{1: "p1.png", 2: "p2.png", 3: "p3.png", 4: "p4.png"}
	selector := NewVisualSelector(vision, resolver, 4)

	relevance := map[int]float64{1: 0.9, 2: 0.8, 3: 0.7, 4: 0.6}
	contextStr, pages := selector.Select(context.Background(), "what does the chart show", relevance)

	assert.Equal(t, []int{4}, pages)
	assert.Equal(t, "[Visual content from page 4]: the bar chart reports a score of 4.2 for communication", contextStr)
}

func TestSelectDropsDegradedVisionReplies(t *testing.T) {
	vision := &fakeVision{answers: map[string]string{
		"p2.png": ai.VisionBlocked,
		"p3.png": ai.VisionImageNotFound,
		"p4.png": "the pie chart splits revenue 60/40 between regions",
	}}
	resolver := fakeResolver{2: "p2.png", 3: "p3.png", 4: "p4.png"}
	selector := NewVisualSelector(vision, resolver, 3)

	relevance := map[int]float64{2: 0.9, 3: 0.8, 4: 0.7}
	contextStr, pages := selector.Select(context.Background(), "what does the chart show", relevance)

	assert.Equal(t, []int{4}, pages)
	assert.NotContains(t, contextStr, ai.VisionBlocked)
	assert.NotContains(t, contextStr, ai.VisionImageNotFound)
	assert.Equal(t, "[Visual content from page 4]: the pie chart splits revenue 60/40 between regions", contextStr)
}

func TestSelectSkipsPagesWithoutImages(t *testing.T) {
	vision := &fakeVision{answers: map[string]string{
		"p2.png": "page two has the relevant diagram content",
	}}
	selector := NewVisualSelector(vision, fakeResolver{2: "p2.png"}, 3)

	relevance := map[int]float64{1: 0.9, 2: 0.8}
	_, pages := selector.Select(context.Background(), "describe the diagram", relevance)

	assert.Equal(t, []int{2}, pages)
}

func TestSelectChartTermsUseComprehensiveMode(t *testing.T) {
	vision := &fakeVision{answers: map[string]string{"p1.png": "a full chart transcription with values"}}
	selector := NewVisualSelector(vision, fakeResolver{1: "p1.png"}, 3)

	selector.Select(context.Background(), "what values does the graph show", map[int]float64{1: 0.9})
	assert.Equal(t, 1, vision.chartCalls)
	assert.Zero(t, vision.standardCalls)

	// Visual but not chart-flavored: "picture" triggers visual detection
	// without any chart term.
	selector.Select(context.Background(), "describe the picture of the building", map[int]float64{1: 0.9})
	assert.Equal(t, 1, vision.chartCalls)
	assert.Equal(t, 1, vision.standardCalls)
}

func TestSelectNilReceiverAndEmptyRelevance(t *testing.T) {
	var selector *VisualSelector
	contextStr, pages := selector.Select(context.Background(), "what does the chart show", map[int]float64{1: 0.9})
	assert.Empty(t, contextStr)
	assert.Nil(t, pages)

	selector = NewVisualSelector(&fakeVision{}, fakeResolver{}, 3)
	contextStr, pages = selector.Select(context.Background(), "what does the chart show", nil)
	assert.Empty(t, contextStr)
	assert.Nil(t, pages)
}

func TestRankPagesTieBreaksOnPageNumber(t *testing.T) {
	relevance := map[int]float64{}
	for p := 1; p <= 6; p++ {
		relevance[p] = 0.5
	}
	assert.Equal(t, []int{1, 2, 3}, rankPages(relevance, 3))
}

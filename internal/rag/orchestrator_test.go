package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRetriever struct {
	result *RetrievalResult
	err    error
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ string, _ int) (*RetrievalResult, error) {
	return f.result, f.err
}

type fakeWeb struct {
	formatted string
	called    bool
}

func (f *fakeWeb) Search(_ context.Context, _ string) string {
	f.called = true
	return f.formatted
}

func docResult(matches ...RetrievalMatch) *RetrievalResult {
	texts := ""
	relevance := make(map[int]float64)
	for _, m := range matches {
		if texts != "" {
			texts += " "
		}
		texts += m.Text
		if m.HasImages && m.Score > relevance[m.PageNumber] {
			relevance[m.PageNumber] = m.Score
		}
	}
	return &RetrievalResult{Context: texts, Matches: matches, PageRelevance: relevance}
}

func newTestOrchestrator(retriever Retriever, visual *VisualSelector, web WebSearcher, model ChatModel, sessions SessionStore) *Orchestrator {
	return NewOrchestrator(
		NewClassifier(),
		retriever,
		visual,
		web,
		NewStreamer(model, 0),
		sessions,
		OrchestratorConfig{TopK: 6, RelevanceFloor: 0.2, ContextBudget: 8000},
	)
}

func TestAnswerCasual(t *testing.T) {
	sessions := NewMemorySessionStore()
	model := &fakeChatModel{reply: "must not be used"}
	o := newTestOrchestrator(&fakeRetriever{}, nil, nil, model, sessions)

	resp := o.Answer(context.Background(), "s1", "hello", true)

	assert.Equal(t, ResponseCasual, resp.ResponseType)
	assert.Contains(t, resp.Content, "Veritas")
	assert.Empty(t, resp.Citations)
	assert.False(t, resp.UsedVLM)
	assert.Nil(t, model.lastMsgs)

	// Both turns land in history.
	sess := sessions.Get("s1")
	require.Len(t, sess.History, 2)
	assert.Equal(t, RoleUser, sess.History[0].Role)
	assert.Equal(t, RoleAssistant, sess.History[1].Role)
}

func TestAnswerWithoutDocument(t *testing.T) {
	sessions := NewMemorySessionStore()
	o := newTestOrchestrator(&fakeRetriever{}, nil, nil, &fakeChatModel{}, sessions)

	resp := o.Answer(context.Background(), "s1", "what does chapter two say?", true)

	assert.Equal(t, ResponseNoDocument, resp.ResponseType)
	assert.Equal(t, NoDocumentReply, resp.Content)
	assert.Empty(t, resp.Citations)
}

func TestAnswerGeneralWhenRelevanceBelowFloor(t *testing.T) {
	sessions := NewMemorySessionStore()
	sessions.Reset("s1", "doc-1")
	retriever := &fakeRetriever{result: docResult(
		RetrievalMatch{Text: "barely related", PageNumber: 1, Score: 0.05},
	)}
	web := &fakeWeb{formatted: "Title: x\nLink: https://x\nSnippet: x"}
	model := &fakeChatModel{reply: "a general answer from prior knowledge"}
	o := newTestOrchestrator(retriever, nil, web, model, sessions)

	resp := o.Answer(context.Background(), "s1", "what is quantum entanglement?", true)

	assert.Equal(t, ResponseGeneral, resp.ResponseType)
	assert.Equal(t, "a general answer from prior knowledge", resp.Content)
	assert.Empty(t, resp.Citations)
	assert.False(t, resp.UsedVLM)
	assert.Empty(t, resp.WebSources)
	// Irrelevant document means no web spend either.
	assert.False(t, web.called)
	// The model is told retrieval came up empty rather than seeing chunks.
	last := model.lastMsgs[len(model.lastMsgs)-1]
	assert.Contains(t, last.Content, "Context:\nNo relevant context found in the document.")
	assert.Contains(t, last.Content, "Question:\nwhat is quantum entanglement?")
	assert.NotContains(t, last.Content, "barely related")
}

func TestAnswerGeneralWhenRetrievalFails(t *testing.T) {
	sessions := NewMemorySessionStore()
	sessions.Reset("s1", "doc-1")
	retriever := &fakeRetriever{err: errors.New("index unreachable")}
	model := &fakeChatModel{reply: "fallback answer"}
	o := newTestOrchestrator(retriever, nil, nil, model, sessions)

	resp := o.Answer(context.Background(), "s1", "what is the revenue?", false)

	assert.Equal(t, ResponseGeneral, resp.ResponseType)
	assert.Equal(t, "fallback answer", resp.Content)
}

func TestAnswerDocumentQuery(t *testing.T) {
	sessions := NewMemorySessionStore()
	sessions.Reset("s1", "doc-1")
	retriever := &fakeRetriever{result: docResult(
		RetrievalMatch{Text: "revenue grew 12%", PageNumber: 3, Score: 0.9, HasImages: true},
		RetrievalMatch{Text: "cost breakdown", PageNumber: 1, Score: 0.7},
		RetrievalMatch{Text: "chart footnote", PageNumber: 3, Score: 0.6, HasImages: true},
	)}
	vision := &fakeVision{answers: map[string]string{
		"p3.png": "the revenue chart shows 12% growth year over year",
	}}
	visual := NewVisualSelector(vision, fakeResolver{3: "p3.png"}, 3)
	web := &fakeWeb{formatted: "Title: Annual results\nLink: https://example.com/results\nSnippet: coverage"}
	model := &fakeChatModel{reply: "Revenue grew 12% as shown on page 3."}
	o := newTestOrchestrator(retriever, visual, web, model, sessions)

	resp := o.Answer(context.Background(), "s1", "what values does the revenue chart show?", true)

	assert.Equal(t, ResponseDocumentQuery, resp.ResponseType)
	assert.Equal(t, "Revenue grew 12% as shown on page 3.", resp.Content)
	assert.Equal(t, []int{1, 3}, resp.Citations)
	assert.True(t, resp.UsedVLM)
	assert.Equal(t, []int{3}, resp.VLMPages)
	require.Len(t, resp.WebSources, 1)
	assert.Equal(t, "https://example.com/results", resp.WebSources[0].Link)

	// The model's user turn carries the assembled sections in order.
	last := model.lastMsgs[len(model.lastMsgs)-1]
	assert.Contains(t, last.Content, "Document Context:\nrevenue grew 12%")
	assert.Contains(t, last.Content, "Visual Context:\n[Visual content from page 3]")
	assert.Contains(t, last.Content, "Web Search Results:\nTitle: Annual results")
}

func TestAnswerSkipsWebWhenDisabled(t *testing.T) {
	sessions := NewMemorySessionStore()
	sessions.Reset("s1", "doc-1")
	retriever := &fakeRetriever{result: docResult(
		RetrievalMatch{Text: "some content", PageNumber: 1, Score: 0.8},
	)}
	web := &fakeWeb{formatted: "Title: x\nLink: https://x\nSnippet: x"}
	o := newTestOrchestrator(retriever, nil, web, &fakeChatModel{reply: "ok then"}, sessions)

	resp := o.Answer(context.Background(), "s1", "summarize the document", false)

	assert.False(t, web.called)
	assert.Empty(t, resp.WebSources)
}

func TestCitationsDistinctSortedCapped(t *testing.T) {
	matches := []RetrievalMatch{
		{PageNumber: 9}, {PageNumber: 2}, {PageNumber: 9},
		{PageNumber: 7}, {PageNumber: 1}, {PageNumber: 4},
		{PageNumber: 12}, {PageNumber: 3},
	}
	assert.Equal(t, []int{1, 2, 3, 4, 7}, citationPages(matches))
}

func TestAnswerHistoryGrowsAcrossTurns(t *testing.T) {
	sessions := NewMemorySessionStore()
	sessions.Reset("s1", "doc-1")
	retriever := &fakeRetriever{result: docResult(
		RetrievalMatch{Text: "content", PageNumber: 1, Score: 0.8},
	)}
	model := &fakeChatModel{reply: "answer"}
	o := newTestOrchestrator(retriever, nil, nil, model, sessions)

	o.Answer(context.Background(), "s1", "first question", false)
	o.Answer(context.Background(), "s1", "second question", false)

	// Second turn's prompt includes the first exchange but not the second
	// user turn twice.
	require.Len(t, model.lastMsgs, 4)
	assert.Equal(t, "first question", model.lastMsgs[1].Content)
	assert.Equal(t, "answer", model.lastMsgs[2].Content)

	sess := sessions.Get("s1")
	assert.Len(t, sess.History, 4)
}

func TestUploadResetClearsHistory(t *testing.T) {
	sessions := NewMemorySessionStore()
	sessions.Reset("s1", "doc-1")
	retriever := &fakeRetriever{result: docResult(
		RetrievalMatch{Text: "content", PageNumber: 1, Score: 0.8},
	)}
	o := newTestOrchestrator(retriever, nil, nil, &fakeChatModel{reply: "answer"}, sessions)

	o.Answer(context.Background(), "s1", "a question", false)
	require.NotEmpty(t, sessions.Get("s1").History)

	sess := sessions.Reset("s1", "doc-2")
	assert.Empty(t, sess.History)
	assert.Equal(t, "doc-2", sess.DocumentID)
}

func TestAnswerStreamTerminalBranch(t *testing.T) {
	sessions := NewMemorySessionStore()
	o := newTestOrchestrator(&fakeRetriever{}, nil, nil, &fakeChatModel{}, sessions)

	resp, stream := o.AnswerStream(context.Background(), "s1", "hi", true)

	assert.Equal(t, ResponseCasual, resp.ResponseType)
	got := collect(stream)
	require.Len(t, got, 1)
	assert.Equal(t, resp.Content, got[0])
}

func TestAnswerStreamDocumentQuery(t *testing.T) {
	sessions := NewMemorySessionStore()
	sessions.Reset("s1", "doc-1")
	retriever := &fakeRetriever{result: docResult(
		RetrievalMatch{Text: "content", PageNumber: 2, Score: 0.8},
	)}
	model := &fakeChatModel{fragments: []string{"stream", "ed ans", "wer"}}
	o := newTestOrchestrator(retriever, nil, nil, model, sessions)

	resp, stream := o.AnswerStream(context.Background(), "s1", "what does the document say?", false)

	assert.Equal(t, ResponseDocumentQuery, resp.ResponseType)
	assert.Equal(t, []int{2}, resp.Citations)
	assert.Empty(t, resp.Content)

	full := ""
	for fragment := range stream {
		full += fragment
	}
	assert.Equal(t, "streamed answer", full)

	// After the stream drains, the full answer is in history.
	sess := sessions.Get("s1")
	sess.Lock()
	defer sess.Unlock()
	require.Len(t, sess.History, 2)
	assert.Equal(t, "streamed answer", sess.History[1].Content)
}

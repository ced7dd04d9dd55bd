package rag

import (
	"context"
	"sort"

	"veritas-backend/internal/logger"
	"veritas-backend/internal/websearch"
)

// NoDocumentReply is returned for document-ish questions asked before any
// upload has completed for the session.
const NoDocumentReply = "Please upload a PDF document first. Once it's processed, I can answer questions about its contents."

// generalContextMarker is handed to the model on the general-knowledge
// fallback, so it knows the document was consulted and came up empty instead
// of inferring that from an absent context section.
const generalContextMarker = "No relevant context found in the document."

const maxCitationPages = 5

// Retriever is the document retrieval collaborator contract.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) (*RetrievalResult, error)
}

// WebSearcher returns formatted web results for a query, or "" when search is
// unavailable or failed.
type WebSearcher interface {
	Search(ctx context.Context, query string) string
}

// Orchestrator routes each chat turn through the conversational state
// machine: casual small talk, missing-document guidance, general fallback
// when retrieval finds nothing relevant, or the full retrieval-and-fusion
// pipeline.
type Orchestrator struct {
	classifier *Classifier
	retriever  Retriever
	visual     *VisualSelector
	web        WebSearcher
	streamer   *Streamer
	sessions   SessionStore

	topK           int
	relevanceFloor float64
	contextBudget  int
	enrichWeb      bool
}

type OrchestratorConfig struct {
	TopK           int
	RelevanceFloor float64
	ContextBudget  int
	EnrichWeb      bool
}

func NewOrchestrator(
	classifier *Classifier,
	retriever Retriever,
	visual *VisualSelector,
	web WebSearcher,
	streamer *Streamer,
	sessions SessionStore,
	cfg OrchestratorConfig,
) *Orchestrator {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.ContextBudget <= 0 {
		cfg.ContextBudget = DefaultContextBudget
	}
	return &Orchestrator{
		classifier:     classifier,
		retriever:      retriever,
		visual:         visual,
		web:            web,
		streamer:       streamer,
		sessions:       sessions,
		topK:           cfg.TopK,
		relevanceFloor: cfg.RelevanceFloor,
		contextBudget:  cfg.ContextBudget,
		enrichWeb:      cfg.EnrichWeb,
	}
}

// Answer runs one full turn and returns the complete response.
func (o *Orchestrator) Answer(ctx context.Context, sessionID, query string, searchWeb bool) *Response {
	sess := o.sessions.Get(sessionID)
	sess.Lock()
	defer sess.Unlock()

	resp, contextStr, history, terminal := o.route(ctx, sess, query, searchWeb)
	if terminal {
		o.finishTurn(sess, resp.Content)
		return resp
	}

	resp.Content = o.streamer.Generate(ctx, query, contextStr, history)
	o.finishTurn(sess, resp.Content)
	return resp
}

// AnswerStream runs one turn and streams the answer. The returned Response
// carries the routing metadata; its Content is filled for short-circuit
// branches and left empty when the channel carries the generated answer.
// The session stays locked until the stream is drained.
func (o *Orchestrator) AnswerStream(ctx context.Context, sessionID, query string, searchWeb bool) (*Response, <-chan string) {
	sess := o.sessions.Get(sessionID)
	sess.Lock()

	resp, contextStr, history, terminal := o.route(ctx, sess, query, searchWeb)
	if terminal {
		o.finishTurn(sess, resp.Content)
		sess.Unlock()
		out := make(chan string, 1)
		out <- resp.Content
		close(out)
		return resp, out
	}

	fragments := o.streamer.GenerateStream(ctx, query, contextStr, history)
	out := make(chan string)
	go func() {
		defer close(out)
		var answer string
		for fragment := range fragments {
			answer += fragment
			select {
			case out <- fragment:
			case <-ctx.Done():
				// Drain so the generator goroutine can exit.
				for range fragments {
				}
				o.finishTurn(sess, answer)
				sess.Unlock()
				return
			}
		}
		o.finishTurn(sess, answer)
		sess.Unlock()
	}()
	return resp, out
}

// route classifies the turn and, for document queries, assembles the fused
// context. It appends the user turn to the session history; the history it
// returns excludes that turn. terminal is true when resp.Content is already
// final and no generation is needed.
func (o *Orchestrator) route(ctx context.Context, sess *Session, query string, searchWeb bool) (resp *Response, contextStr string, history []ChatTurn, terminal bool) {
	sess.appendTurn(RoleUser, query)
	history = append([]ChatTurn(nil), sess.History[:len(sess.History)-1]...)

	if ok, reply := o.classifier.Classify(query); ok {
		return &Response{Content: reply, Citations: []int{}, ResponseType: ResponseCasual}, "", nil, true
	}

	if sess.DocumentID == "" {
		return &Response{Content: NoDocumentReply, Citations: []int{}, ResponseType: ResponseNoDocument}, "", nil, true
	}

	result, err := o.retriever.Retrieve(ctx, query, o.topK)
	if err != nil {
		logger.Error("Retrieval failed", "error", err, "session_id", sess.ID)
	}
	if err != nil || result == nil || len(result.Matches) == 0 || bestScore(result.Matches) < o.relevanceFloor {
		return &Response{Citations: []int{}, ResponseType: ResponseGeneral}, generalContextMarker, history, false
	}

	resp = &Response{
		Citations:    citationPages(result.Matches),
		ResponseType: ResponseDocumentQuery,
	}

	var visualContext string
	if o.visual != nil {
		visualContext, resp.VLMPages = o.visual.Select(ctx, query, result.PageRelevance)
		resp.UsedVLM = visualContext != ""
	}

	var webContext string
	if searchWeb && o.web != nil {
		webContext = o.web.Search(ctx, query)
		resp.WebSources = websearch.ExtractSources(webContext)
		if o.enrichWeb && len(resp.WebSources) > 0 {
			if extra := websearch.EnrichTopSource(ctx, resp.WebSources); extra != "" {
				webContext += websearch.BlockSeparator + extra
			}
		}
	}

	docShare, webShare := AllocateContext(result.Context, webContext, o.contextBudget)
	contextStr = AssembleContext(docShare, visualContext, webShare)
	return resp, contextStr, history, false
}

// finishTurn records the assistant's reply and persists the session. The
// caller holds the session lock.
func (o *Orchestrator) finishTurn(sess *Session, answer string) {
	sess.appendTurn(RoleAssistant, answer)
	o.sessions.Save(sess)
}

func bestScore(matches []RetrievalMatch) float64 {
	best := matches[0].Score
	for _, m := range matches[1:] {
		if m.Score > best {
			best = m.Score
		}
	}
	return best
}

// citationPages collects the distinct page numbers across matches, sorted
// ascending and capped.
func citationPages(matches []RetrievalMatch) []int {
	seen := make(map[int]struct{}, len(matches))
	pages := make([]int, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m.PageNumber]; ok {
			continue
		}
		seen[m.PageNumber] = struct{}{}
		pages = append(pages, m.PageNumber)
	}
	sort.Ints(pages)
	if len(pages) > maxCitationPages {
		pages = pages[:maxCitationPages]
	}
	return pages
}

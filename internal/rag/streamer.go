package rag

import (
	"context"
	"strings"
	"time"

	"veritas-backend/internal/ai"
	"veritas-backend/internal/logger"
)

// GenerationApology replaces the answer whenever the language model fails.
// Generation failures are converted to this user-legible string, never
// propagated as a crash.
const GenerationApology = "Sorry, I'm having trouble connecting to the language model."

const systemPrompt = "You are a helpful assistant named Veritas. Answer the user's question " +
	"based on the provided context when it is available. If the answer is not in the context, " +
	"say that the document does not cover it before offering anything more general."

// ChatModel is the chat-completion collaborator contract.
type ChatModel interface {
	Complete(ctx context.Context, messages []ai.Message) (string, error)
	CompleteStream(ctx context.Context, messages []ai.Message) (<-chan string, error)
}

// Streamer wraps the chat model's streaming and non-streaming modes behind
// one interface, re-buffering streamed fragments at word boundaries and
// pacing emission for a smoother perceived typing rate.
type Streamer struct {
	model     ChatModel
	wordDelay time.Duration
}

func NewStreamer(model ChatModel, wordDelay time.Duration) *Streamer {
	return &Streamer{model: model, wordDelay: wordDelay}
}

// Generate performs one blocking completion. Any collaborator failure yields
// the fixed apology string.
func (s *Streamer) Generate(ctx context.Context, query, contextStr string, history []ChatTurn) string {
	answer, err := s.model.Complete(ctx, buildMessages(query, contextStr, history))
	if err != nil {
		logger.Error("Generation failed", "error", err)
		return GenerationApology
	}
	return answer
}

// GenerateStream starts a streaming completion and returns a channel of
// word-sized fragments. The channel always closes; on collaborator failure it
// emits the apology and closes. The final partial word is flushed at stream
// end. If the consumer's context is cancelled, no further fragments are sent.
func (s *Streamer) GenerateStream(ctx context.Context, query, contextStr string, history []ChatTurn) <-chan string {
	out := make(chan string)

	go func() {
		defer close(out)

		fragments, err := s.model.CompleteStream(ctx, buildMessages(query, contextStr, history))
		if err != nil {
			logger.Error("Streaming generation failed", "error", err)
			emit(ctx, out, GenerationApology)
			return
		}

		var buffer string
		for fragment := range fragments {
			buffer += fragment
			for {
				idx := strings.IndexByte(buffer, ' ')
				if idx < 0 {
					break
				}
				if !emit(ctx, out, buffer[:idx+1]) {
					return
				}
				buffer = buffer[idx+1:]
				if s.wordDelay > 0 {
					time.Sleep(s.wordDelay)
				}
			}
		}
		if buffer != "" {
			emit(ctx, out, buffer)
		}
	}()

	return out
}

func emit(ctx context.Context, out chan<- string, word string) bool {
	select {
	case out <- word:
		return true
	case <-ctx.Done():
		return false
	}
}

// buildMessages assembles the model's message list: system prompt, prior
// turns with roles normalized, then the user turn carrying the fused context.
func buildMessages(query, contextStr string, history []ChatTurn) []ai.Message {
	messages := make([]ai.Message, 0, len(history)+2)
	messages = append(messages, ai.Message{Role: "system", Content: systemPrompt})

	for _, turn := range history {
		messages = append(messages, ai.Message{
			Role:    normalizeRole(turn.Role),
			Content: turn.Content,
		})
	}

	userContent := query
	if contextStr != "" {
		userContent = "Context:\n" + contextStr + "\n\nQuestion:\n" + query
	}
	messages = append(messages, ai.Message{Role: RoleUser, Content: userContent})
	return messages
}

// normalizeRole maps the legacy "bot" role to "assistant" before anything is
// forwarded to the language model.
func normalizeRole(role string) string {
	if role == RoleBot {
		return RoleAssistant
	}
	return role
}

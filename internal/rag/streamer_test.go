package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veritas-backend/internal/ai"
)

type fakeChatModel struct {
	reply     string
	fragments []string
	err       error
	lastMsgs  []ai.Message
}

func (f *fakeChatModel) Complete(_ context.Context, messages []ai.Message) (string, error) {
	f.lastMsgs = messages
	return f.reply, f.err
}

func (f *fakeChatModel) CompleteStream(_ context.Context, messages []ai.Message) (<-chan string, error) {
	f.lastMsgs = messages
	if f.err != nil {
		return nil, f.err
	}
	out := make(chan string, len(f.fragments))
	for _, fr := range f.fragments {
		out <- fr
	}
	close(out)
	return out, nil
}

func collect(ch <-chan string) []string {
	var got []string
	for fragment := range ch {
		got = append(got, fragment)
	}
	return got
}

func TestGenerateReturnsModelAnswer(t *testing.T) {
	model := &fakeChatModel{reply: "the answer"}
	s := NewStreamer(model, 0)

	got := s.Generate(context.Background(), "question", "some context", nil)
	assert.Equal(t, "the answer", got)
}

func TestGenerateApologizesOnFailure(t *testing.T) {
	model := &fakeChatModel{err: errors.New("connection refused")}
	s := NewStreamer(model, 0)

	got := s.Generate(context.Background(), "question", "", nil)
	assert.Equal(t, GenerationApology, got)
}

func TestGenerateStreamRebuffersAtWordBoundaries(t *testing.T) {
	model := &fakeChatModel{fragments: []string{"Hel", "lo wor", "ld and good", "bye"}}
	s := NewStreamer(model, 0)

	got := collect(s.GenerateStream(context.Background(), "q", "", nil))

	assert.Equal(t, []string{"Hello ", "world ", "and ", "goodbye"}, got)
}

func TestGenerateStreamFlushesTrailingPartialWord(t *testing.T) {
	model := &fakeChatModel{fragments: []string{"one two thr", "ee"}}
	s := NewStreamer(model, 0)

	got := collect(s.GenerateStream(context.Background(), "q", "", nil))
	assert.Equal(t, "three", got[len(got)-1])
}

func TestGenerateStreamApologizesOnStartFailure(t *testing.T) {
	model := &fakeChatModel{err: errors.New("rate limited")}
	s := NewStreamer(model, 0)

	got := collect(s.GenerateStream(context.Background(), "q", "", nil))
	assert.Equal(t, []string{GenerationApology}, got)
}

func TestBuildMessagesLayout(t *testing.T) {
	model := &fakeChatModel{reply: "ok"}
	s := NewStreamer(model, 0)

	history := []ChatTurn{
		{Role: RoleUser, Content: "earlier question"},
		{Role: RoleBot, Content: "earlier answer"},
	}
	s.Generate(context.Background(), "what about page 3?", "Document Context:\nchunk text", history)

	msgs := model.lastMsgs
	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, RoleUser, msgs[1].Role)
	// Legacy "bot" role is normalized before reaching the model.
	assert.Equal(t, RoleAssistant, msgs[2].Role)
	assert.Equal(t, RoleUser, msgs[3].Role)
	assert.Contains(t, msgs[3].Content, "Context:\nDocument Context:\nchunk text")
	assert.Contains(t, msgs[3].Content, "Question:\nwhat about page 3?")
}

func TestBuildMessagesWithoutContext(t *testing.T) {
	model := &fakeChatModel{reply: "ok"}
	s := NewStreamer(model, 0)

	s.Generate(context.Background(), "just chatting", "", nil)

	msgs := model.lastMsgs
	require.Len(t, msgs, 2)
	assert.Equal(t, "just chatting", msgs[1].Content)
}

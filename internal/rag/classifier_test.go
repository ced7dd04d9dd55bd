package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyCasualQueries(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		name  string
		query string
	}{
		{"bare greeting", "hi"},
		{"greeting with trailing punctuation", "Hello!!"},
		{"greeting as prefix", "hey there"},
		{"multi word greeting", "good morning"},
		{"farewell", "Goodbye."},
		{"thanks embedded in sentence", "thanks a lot for that"},
		{"wellbeing", "how are you doing today"},
		{"identity", "what is your name?"},
		{"help exact", "what can you do"},
		{"acknowledgment", "ok"},
		{"uppercase acknowledgment", "OKAY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reply := c.Classify(tt.query)
			assert.True(t, ok)
			assert.NotEmpty(t, reply)
		})
	}
}

func TestClassifyPassesRealQueriesThrough(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		name  string
		query string
	}{
		{"greeting token inside a word", "history of rome"},
		{"acknowledgment token starting a question", "ok so what does chapter 2 say"},
		{"help token starting a question", "help me understand the methodology"},
		{"document question", "what is the total revenue in 2023?"},
		{"empty query", "   "},
		{"only punctuation", "?!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reply := c.Classify(tt.query)
			assert.False(t, ok)
			assert.Empty(t, reply)
		})
	}
}

func TestClassifyFirstCategoryWins(t *testing.T) {
	c := NewClassifier()

	// "hi how are you" matches both greeting and wellbeing; greeting is
	// earlier in the table.
	ok, reply := c.Classify("hi how are you")
	assert.True(t, ok)
	assert.Contains(t, reply, "Veritas")
}

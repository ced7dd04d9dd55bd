package rag

import "strings"

// matchMode controls how a category's tokens are tested against the
// normalized query.
type matchMode int

const (
	// matchExactOrPrefix fires on full equality or `token + " "` prefix, so
	// "hi there" greets but "history of rome" does not.
	matchExactOrPrefix matchMode = iota
	// matchSubstring fires anywhere in the query.
	matchSubstring
	// matchExact requires full equality, used for bare acknowledgments where
	// substring rules would swallow real questions.
	matchExact
)

type category struct {
	name   string
	mode   matchMode
	tokens []string
	reply  string
}

// Ordered rule table; first matching category wins. Kept declarative so a new
// category is one entry, not another branch in a conditional chain.
var casualCategories = []category{
	{
		name:   "greeting",
		mode:   matchExactOrPrefix,
		tokens: []string{"hi", "hello", "hey", "good morning", "good afternoon", "good evening", "greetings"},
		reply:  "Hello! I'm Veritas, your document assistant. Upload a PDF and ask me anything about it.",
	},
	{
		name:   "farewell",
		mode:   matchExactOrPrefix,
		tokens: []string{"bye", "goodbye", "see you", "take care", "farewell"},
		reply:  "Goodbye! Come back whenever you have another document to explore.",
	},
	{
		name:   "thanks",
		mode:   matchSubstring,
		tokens: []string{"thank you", "thanks", "thx", "appreciate it"},
		reply:  "You're welcome! Let me know if there's anything else in the document I can help with.",
	},
	{
		name:   "wellbeing",
		mode:   matchSubstring,
		tokens: []string{"how are you", "how's it going", "how is it going", "how are things"},
		reply:  "I'm doing well, thanks for asking! Ready to dig into your document whenever you are.",
	},
	{
		name:   "identity",
		mode:   matchSubstring,
		tokens: []string{"who are you", "what are you", "your name", "what is veritas"},
		reply:  "I'm Veritas, an assistant that answers questions about documents you upload. I can read text, charts, and figures.",
	},
	{
		name:   "help",
		mode:   matchExact,
		tokens: []string{"help", "what can you do", "how do you work", "how does this work", "what do you do"},
		reply:  "Upload a PDF, then ask me questions about it. I can pull answers from the text, read charts and figures, and optionally check the web for extra context.",
	},
	{
		name:   "acknowledgment",
		mode:   matchExact,
		tokens: []string{"ok", "okay", "cool", "nice", "great", "got it", "sure", "alright", "yes", "no", "hmm", "k"},
		reply:  "Got it! Ask away whenever you're ready.",
	},
}

// Classifier detects casual small talk so trivial queries never touch the
// retrieval, vision, or web collaborators.
type Classifier struct {
	categories []category
}

func NewClassifier() *Classifier {
	return &Classifier{categories: casualCategories}
}

// Classify reports whether the query is casual conversation and, if so, the
// canned reply for its category.
func (c *Classifier) Classify(query string) (bool, string) {
	normalized := strings.ToLower(strings.TrimSpace(query))
	normalized = strings.TrimRight(normalized, "!.?")
	if normalized == "" {
		return false, ""
	}

	for _, cat := range c.categories {
		for _, token := range cat.tokens {
			if matches(normalized, token, cat.mode) {
				return true, cat.reply
			}
		}
	}
	return false, ""
}

func matches(query, token string, mode matchMode) bool {
	switch mode {
	case matchExactOrPrefix:
		return query == token || strings.HasPrefix(query, token+" ")
	case matchSubstring:
		return strings.Contains(query, token)
	case matchExact:
		return query == token
	default:
		return false
	}
}

package llm

// AskRequest represents a question about the reference document, together
// with the full conversation so far. The caller owns the history; the
// service keeps no state between requests.
type AskRequest struct {
	Question string    `json:"question"`           // The current question (required)
	Messages []Message `json:"messages,omitempty"` // Prior turns, oldest first
}

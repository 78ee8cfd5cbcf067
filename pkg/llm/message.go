// Package llm provides the internal representations of Q&A API requests
// and responses exchanged between callers and the model upstream.
package llm

// Conversation roles accepted in caller-supplied history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single turn in a conversation, oldest first.
type Message struct {
	Role    string `json:"role"`    // "user" or "assistant"
	Content string `json:"content"` // The turn content
}

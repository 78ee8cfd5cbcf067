package llm

// AskResponse represents a successful answer to an AskRequest.
type AskResponse struct {
	Answer string `json:"answer"`
}

package llm

// ErrorResponse represents an error returned to the caller.
type ErrorResponse struct {
	Error string `json:"error"`
}

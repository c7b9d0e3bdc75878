package provider

import "context"

// ChatPayload is one system+user exchange with a chat model.
type ChatPayload struct {
	System     string
	User       string
	ExpectJSON bool
	MaxTokens  int

	// RunID and Purpose only tag the LLM dump log.
	RunID   string
	Purpose string
}

type ModelProvider interface {
	ID() string
	Call(ctx context.Context, payload ChatPayload) (string, error)
}

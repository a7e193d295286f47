// Package llm abstracts the external text-generation capability.
package llm

import "context"

// Message is one chat message in a generation request.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// GenerateRequest describes one generation call. Either Prompt or Messages is
// set; Messages wins when both are present.
type GenerateRequest struct {
	// Op names the calling operation for error reporting ("persona_generation",
	// "customer_reply", "script_improvement").
	Op           string
	System       string
	Prompt       string
	Messages     []Message
	Temperature  float64
	MaxTokens    int
	JSONResponse bool
}

// ChatMessages assembles the full message list including the system prompt.
func (r GenerateRequest) ChatMessages() []Message {
	var msgs []Message
	if r.System != "" {
		msgs = append(msgs, Message{Role: "system", Content: r.System})
	}
	if len(r.Messages) > 0 {
		return append(msgs, r.Messages...)
	}
	return append(msgs, Message{Role: "user", Content: r.Prompt})
}

// Generator is the text-generation capability. Implementations return
// *domain.ProviderError for failures so callers can tell transient from
// permanent.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

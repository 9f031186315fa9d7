// Package llm provides LLM provider clients for the assistant simulator.
package llm

import (
	"context"

	"github.com/appforge-ai/console-api/internal/model"
)

// StreamCallback is called for each token during streaming.
type StreamCallback func(token string, index int) error

// Request is a completion request built from conversation history. System
// carries the envelope-formatting instructions.
type Request struct {
	Model       string
	System      string
	Messages    []model.ChatMessage
	MaxTokens   int
	Temperature float64
}

// Response is a completed generation.
type Response struct {
	Content    string
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64
}

// Client is the interface for LLM providers.
type Client interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *Request) (*Response, error)

	// CompleteStream sends a streaming completion request.
	CompleteStream(ctx context.Context, req *Request, callback StreamCallback) (*Response, error)

	// Name returns the provider name.
	Name() string
}

// withSystem folds the system instructions into the message list as the
// leading turn, for providers addressed through the plain chat shape.
func withSystem(req *Request) []model.ChatMessage {
	if req.System == "" {
		return req.Messages
	}
	out := make([]model.ChatMessage, 0, len(req.Messages)+1)
	out = append(out, model.ChatMessage{Role: "system", Content: req.System})
	return append(out, req.Messages...)
}

package llm

import (
	"context"
	"errors"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient is the Anthropic provider.
type AnthropicClient struct {
	client *anthropic.Client
}

// NewAnthropicClient creates a new Anthropic client.
func NewAnthropicClient(apiKey string) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}
	return &AnthropicClient{client: anthropic.NewClient(option.WithAPIKey(apiKey))}, nil
}

// Name returns the provider name.
func (c *AnthropicClient) Name() string {
	return "anthropic"
}

func (c *AnthropicClient) buildParams(req *Request) anthropic.MessageNewParams {
	m := req.Model
	if m == "" {
		m = "claude-3-5-sonnet-20241022"
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2048
	}

	history := withSystem(req)
	messages := make([]anthropic.MessageParam, len(history))
	for i, msg := range history {
		role := msg.Role
		// Anthropic accepts only user/assistant turns; the folded system
		// instruction rides as the leading user turn.
		if role != "assistant" {
			role = "user"
		}
		messages[i] = anthropic.MessageParam{
			Role: anthropic.F(anthropic.MessageParamRole(role)),
			Content: anthropic.F([]anthropic.ContentBlockParamUnion{
				anthropic.TextBlockParam{
					Type: anthropic.F(anthropic.TextBlockParamTypeText),
					Text: anthropic.F(msg.Content),
				},
			}),
		}
	}

	return anthropic.MessageNewParams{
		Model:     anthropic.F(m),
		MaxTokens: anthropic.F(int64(maxTokens)),
		Messages:  anthropic.F(messages),
	}
}

// Complete sends a completion request.
func (c *AnthropicClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	resp, err := c.client.Messages.New(ctx, c.buildParams(req))
	if err != nil {
		return nil, err
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			content += block.Text
		}
	}

	return &Response{
		Content:    content,
		Model:      resp.Model,
		TokensIn:   int(resp.Usage.InputTokens),
		TokensOut:  int(resp.Usage.OutputTokens),
		StopReason: string(resp.StopReason),
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

// CompleteStream sends a streaming completion request.
func (c *AnthropicClient) CompleteStream(ctx context.Context, req *Request, callback StreamCallback) (*Response, error) {
	start := time.Now()

	stream := c.client.Messages.NewStreaming(ctx, c.buildParams(req))

	var content, stopReason string
	var tokensOut int
	index := 0

	for stream.Next() {
		event := stream.Current()

		switch event.Type {
		case anthropic.MessageStreamEventTypeContentBlockDelta:
			delta, _ := event.Delta.(anthropic.ContentBlockDeltaEventDelta)
			if delta.Type == "text_delta" {
				token := delta.Text
				content += token
				if err := callback(token, index); err != nil {
					return nil, err
				}
				index++
			}
		case anthropic.MessageStreamEventTypeMessageDelta:
			delta, _ := event.Delta.(anthropic.MessageDeltaEventDelta)
			stopReason = string(delta.StopReason)
			tokensOut = int(event.Usage.OutputTokens)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}

	return &Response{
		Content:    content,
		Model:      req.Model,
		TokensOut:  tokensOut,
		StopReason: stopReason,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

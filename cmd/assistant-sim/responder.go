package main

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/appforge-ai/console-api/internal/llm"
	"github.com/appforge-ai/console-api/internal/model"
	"github.com/appforge-ai/console-api/pkg/logger"
)

const systemPrompt = `You are the schema assistant for an application builder.
Respond with exactly one JSON object and nothing else, shaped as:
{"reply": "<human readable answer>", "type": "continue"|"admin"|"user", "config": {...}}
Use type "admin" with a config section when the operator asks you to create or
change objects, workflows, or page layouts. config may contain "objects"
(name -> field name -> field type), "workflows" (name -> {"steps": [...],
"description": "..."}), and "layout" (array of {"title": "...", "fields": [...]}).
Use type "user" for plain answers. Do not wrap the JSON in markdown fences.`

// responder produces one envelope string per request, from an LLM provider
// when configured and from canned replies otherwise.
type responder struct {
	client llm.Client
	logger *logger.Logger
}

func newResponder(client llm.Client, log *logger.Logger) *responder {
	return &responder{client: client, logger: log}
}

func (r *responder) hasProvider() bool {
	return r.client != nil
}

// respondStream emits provider tokens as they arrive. The tokens are relayed
// raw; the console's parser accumulates them into the envelope on its side.
func (r *responder) respondStream(ctx context.Context, req *model.ChatRequest, emit func(token string) error) error {
	_, err := r.client.CompleteStream(ctx, &llm.Request{
		System:   systemPrompt,
		Messages: req.Messages,
	}, func(token string, _ int) error {
		return emit(token)
	})
	return err
}

func (r *responder) respond(ctx context.Context, req *model.ChatRequest) string {
	if r.client == nil {
		return cannedEnvelope(req)
	}

	resp, err := r.client.Complete(ctx, &llm.Request{
		System:   systemPrompt,
		Messages: req.Messages,
	})
	if err != nil {
		r.logger.Warn("llm completion failed, falling back to canned reply", zap.Error(err))
		return cannedEnvelope(req)
	}

	return sanitizeEnvelope(resp.Content)
}

// sanitizeEnvelope strips markdown fences and re-wraps output that is not a
// valid envelope so the console always receives the expected shape.
func sanitizeEnvelope(content string) string {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var envelope struct {
		Reply *string `json:"reply"`
		Type  *string `json:"type"`
	}
	if err := json.Unmarshal([]byte(trimmed), &envelope); err == nil &&
		envelope.Reply != nil && envelope.Type != nil {
		return trimmed
	}

	fallback, _ := json.Marshal(map[string]string{
		"reply": content,
		"type":  "user",
	})
	return string(fallback)
}

// cannedEnvelope synthesizes a plausible reply from the last user message so
// the console can be exercised without any API key.
func cannedEnvelope(req *model.ChatRequest) string {
	var lastUser string
	for _, msg := range req.Messages {
		if msg.Role == "user" {
			lastUser = msg.Content
		}
	}
	lower := strings.ToLower(lastUser)

	payload := map[string]any{}
	if strings.Contains(lower, "object") {
		payload["objects"] = map[string]map[string]string{
			"customer": {"name": "text", "email": "email", "phone": "phone"},
		}
	}
	if strings.Contains(lower, "workflow") {
		payload["workflows"] = map[string]any{
			"onboarding": map[string]any{
				"description": "New customer onboarding",
				"steps":       []string{"collect details", "verify email", "create account"},
			},
		}
	}
	if strings.Contains(lower, "layout") || strings.Contains(lower, "page") {
		payload["layout"] = []map[string]any{
			{"title": "Details", "fields": []string{"name", "email"}},
			{"title": "Contact", "fields": []string{"phone"}},
		}
	}

	envelope := map[string]any{}
	if len(payload) > 0 {
		envelope["reply"] = "Done. I have updated the schema as requested."
		envelope["type"] = "admin"
		envelope["config"] = payload
	} else {
		envelope["reply"] = "I can generate objects, workflows, and page layouts. What should we build?"
		envelope["type"] = "user"
	}

	data, _ := json.Marshal(envelope)
	return string(data)
}

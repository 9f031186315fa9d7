package model

// ChatMessage is one role/content pair in the request frame.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the client-to-server socket frame: the full turn history
// mapped to role/content pairs plus free-form session context.
type ChatRequest struct {
	Messages []ChatMessage  `json:"messages"`
	Context  map[string]any `json:"context"`
}

// HistoryFrame builds a request frame from conversation turns. In-progress
// assistant turns are excluded; the raw streamed buffer is not history.
func HistoryFrame(turns []Turn, sessionID string) *ChatRequest {
	messages := make([]ChatMessage, 0, len(turns))
	for _, t := range turns {
		if t.InProgress {
			continue
		}
		messages = append(messages, ChatMessage{
			Role:    string(t.Author),
			Content: t.Text,
		})
	}
	return &ChatRequest{
		Messages: messages,
		Context: map[string]any{
			"session_id": sessionID,
		},
	}
}

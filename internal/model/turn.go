// Package model defines data structures for the console API.
package model

import (
	"time"
)

// Author identifies who wrote a conversation turn.
type Author string

const (
	AuthorUser      Author = "user"
	AuthorAssistant Author = "assistant"
)

// Turn is one message in the conversation. For an in-progress assistant
// turn, Text grows as fragments arrive and is replaced atomically by the
// extracted reply on closure.
type Turn struct {
	ID        string            `json:"id"`
	Author    Author            `json:"author"`
	Text      string            `json:"text"`
	CreatedAt time.Time         `json:"created_at"`
	Result    *StructuredResult `json:"result,omitempty"`

	// InProgress is true while the assistant turn is still streaming.
	InProgress bool `json:"in_progress,omitempty"`
}

// SendMessageRequest is the request to submit a user turn.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// SendMessageResponse acknowledges a submitted user turn.
type SendMessageResponse struct {
	Turn *Turn `json:"turn"`
}

// ListTurnsResponse is the response for reading the conversation.
type ListTurnsResponse struct {
	Turns         []Turn `json:"turns"`
	AwaitingReply bool   `json:"awaiting_reply"`
}

// TurnEvent is pushed over SSE whenever a turn is created or mutated.
type TurnEvent struct {
	Turn Turn `json:"turn"`
}

// ConnectivityEvent is pushed over SSE on assistant socket state changes.
type ConnectivityEvent struct {
	State string `json:"state"`
}

// HeartbeatEvent keeps SSE connections alive.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// Package handler provides HTTP handlers for the console API.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/appforge-ai/console-api/internal/assistant"
	"github.com/appforge-ai/console-api/internal/chat"
	"github.com/appforge-ai/console-api/internal/middleware"
	"github.com/appforge-ai/console-api/internal/model"
	"github.com/appforge-ai/console-api/pkg/logger"
	"github.com/appforge-ai/console-api/pkg/metrics"
)

// ChatHandler handles the conversation surface.
type ChatHandler struct {
	service *chat.Service
	logger  *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(svc *chat.Service, log *logger.Logger) *ChatHandler {
	return &ChatHandler{service: svc, logger: log}
}

// Send handles POST /api/v1/chat/messages
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req model.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	turn, err := h.service.Send(r.Context(), req.Content)
	switch {
	case errors.Is(err, chat.ErrTurnInProgress):
		writeError(w, http.StatusConflict, "assistant turn in progress")
		return
	case errors.Is(err, assistant.ErrNotConnected):
		writeError(w, http.StatusServiceUnavailable, "assistant not connected")
		return
	case err != nil:
		h.logger.Error("failed to send message", zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to send message")
		return
	}

	writeJSON(w, http.StatusAccepted, &model.SendMessageResponse{Turn: &turn})
}

// ListTurns handles GET /api/v1/chat/turns
func (h *ChatHandler) ListTurns(w http.ResponseWriter, r *http.Request) {
	turns, awaiting := h.service.Turns()
	writeJSON(w, http.StatusOK, &model.ListTurnsResponse{
		Turns:         turns,
		AwaitingReply: awaiting,
	})
}

// Reset handles DELETE /api/v1/chat/turns
func (h *ChatHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.service.Reset()
	w.WriteHeader(http.StatusNoContent)
}

// Stream handles GET /api/v1/chat/stream. It serves an SSE feed of turn
// updates and connectivity events for the browser.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	events, cancel := h.service.Subscribe()
	defer cancel()

	// Replay the current conversation so a reconnecting browser catches up.
	turns, _ := h.service.Turns()
	for i := range turns {
		sendSSEEvent(w, flusher, chat.EventTurn, &model.TurnEvent{Turn: turns[i]})
	}

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("SSE client disconnected")
			return

		case ev, open := <-events:
			if !open {
				return
			}
			switch ev.Type {
			case chat.EventConnectivity:
				sendSSEEvent(w, flusher, ev.Type, &model.ConnectivityEvent{State: ev.State})
			default:
				sendSSEEvent(w, flusher, ev.Type, &model.TurnEvent{Turn: *ev.Turn})
			}

		case <-heartbeat.C:
			sendSSEEvent(w, flusher, "heartbeat", &model.HeartbeatEvent{
				Timestamp: time.Now(),
			})
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()

	return nil
}

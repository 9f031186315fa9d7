// Package main is a development assistant backend. It speaks the console's
// socket protocol: it accepts framed chat requests and streams back a JSON
// envelope in small arbitrary fragments, the way the production backend
// streams model output token by token.
package main

import (
	"context"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/appforge-ai/console-api/internal/llm"
	"github.com/appforge-ai/console-api/internal/model"
	"github.com/appforge-ai/console-api/pkg/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func main() {
	log, err := logger.NewDevelopment()
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	var client llm.Client
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		if c, err := llm.NewAnthropicClient(key); err == nil {
			client = c
		} else {
			log.Warn("anthropic client unavailable, using canned replies", zap.Error(err))
		}
	} else if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if c, err := llm.NewOpenAIClient(key); err == nil {
			client = c
		} else {
			log.Warn("openai client unavailable, using canned replies", zap.Error(err))
		}
	}

	responder := newResponder(client, log)

	port := os.Getenv("PORT")
	if port == "" {
		port = "9090"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/assistant", func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("upgrade failed", zap.Error(err))
			return
		}
		go serveSocket(ws, responder, log)
	})

	server := &http.Server{Addr: ":" + port, Handler: mux}
	go func() {
		log.Info("assistant-sim listening", zap.String("port", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Shutdown(shutdownCtx)
}

// serveSocket handles one console connection: one streamed reply per frame.
func serveSocket(ws *websocket.Conn, responder *responder, log *logger.Logger) {
	defer ws.Close()

	for {
		var req model.ChatRequest
		if err := ws.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Info("console connection closed", zap.Error(err))
			}
			return
		}

		if err := respondOnSocket(ws, responder, &req, log); err != nil {
			log.Warn("stream failed", zap.Error(err))
			return
		}
	}
}

// respondOnSocket streams one reply. With a provider configured the tokens go
// out live as the model produces them; without one, or when a live stream
// dies before its first token, the envelope is buffered and then fragmented.
func respondOnSocket(ws *websocket.Conn, responder *responder, req *model.ChatRequest, log *logger.Logger) error {
	duplicateFinal := wantsDuplicateFinal(req)

	if responder.hasProvider() {
		var last string
		err := responder.respondStream(context.Background(), req, func(token string) error {
			if token == "" {
				return nil
			}
			last = token
			return ws.WriteMessage(websocket.TextMessage, []byte(token))
		})
		if err == nil {
			if duplicateFinal && last != "" {
				return ws.WriteMessage(websocket.TextMessage, []byte(last))
			}
			return nil
		}
		if last != "" {
			// Tokens already went out; the console degrades on its own.
			return err
		}
		log.Warn("live stream failed, falling back to buffered reply", zap.Error(err))
	}

	return streamFragments(ws, responder.respond(context.Background(), req), duplicateFinal)
}

// streamFragments cuts the envelope into 1-16 byte chunks with small delays.
// duplicateFinal re-sends the closing fragment to exercise the client's
// dedup guard.
func streamFragments(ws *websocket.Conn, envelope string, duplicateFinal bool) error {
	data := []byte(envelope)
	var last []byte

	for len(data) > 0 {
		n := 1 + rand.Intn(16)
		if n > len(data) {
			n = len(data)
		}
		chunk := data[:n]
		data = data[n:]
		if err := ws.WriteMessage(websocket.TextMessage, chunk); err != nil {
			return err
		}
		last = chunk
		time.Sleep(5 * time.Millisecond)
	}

	if duplicateFinal && len(last) > 0 {
		return ws.WriteMessage(websocket.TextMessage, last)
	}
	return nil
}

func wantsDuplicateFinal(req *model.ChatRequest) bool {
	v, ok := req.Context["duplicate_final"]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

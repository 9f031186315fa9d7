package chat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge-ai/console-api/internal/assistant"
	"github.com/appforge-ai/console-api/internal/model"
	"github.com/appforge-ai/console-api/internal/router"
	"github.com/appforge-ai/console-api/pkg/logger"
)

// scriptFunc decides what the fake assistant streams back for one request.
type scriptFunc func(ws *websocket.Conn, req *model.ChatRequest)

// fakeAssistant is a scripted websocket backend.
func fakeAssistant(t *testing.T, script scriptFunc) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		for {
			var req model.ChatRequest
			if err := ws.ReadJSON(&req); err != nil {
				return
			}
			script(ws, &req)
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func streamText(ws *websocket.Conn, fragments ...string) {
	for _, f := range fragments {
		ws.WriteMessage(websocket.TextMessage, []byte(f))
	}
}

// consumerSpy counts router dispatches per section.
type consumerSpy struct {
	objects   atomic.Int32
	workflows atomic.Int32
	layout    atomic.Int32
}

func newTestService(t *testing.T, script scriptFunc, timeout time.Duration) (*Service, *consumerSpy) {
	t.Helper()

	spy := &consumerSpy{}
	rt := router.New(logger.NewNop())
	rt.OnObjects(func([]model.ObjectDef) { spy.objects.Add(1) })
	rt.OnWorkflows(func([]model.WorkflowDef) { spy.workflows.Add(1) })
	rt.OnLayout(func([]model.LayoutSection) { spy.layout.Add(1) })

	conn := assistant.NewManager(fakeAssistant(t, script), time.Hour, logger.NewNop())
	svc := NewService(NewStore(), conn, rt, nil, timeout, 0, logger.NewNop())

	require.NoError(t, conn.Connect())
	t.Cleanup(func() { conn.Disconnect() })
	return svc, spy
}

func waitForClosure(t *testing.T, svc *Service) model.Turn {
	t.Helper()
	var closed model.Turn
	require.Eventually(t, func() bool {
		turns, awaiting := svc.Turns()
		if awaiting || len(turns) == 0 {
			return false
		}
		last := turns[len(turns)-1]
		if last.Author != model.AuthorAssistant || last.InProgress {
			return false
		}
		closed = last
		return true
	}, 2*time.Second, 5*time.Millisecond)
	return closed
}

func TestSendStreamsAndCloses(t *testing.T) {
	svc, spy := newTestService(t, func(ws *websocket.Conn, req *model.ChatRequest) {
		streamText(ws, `{"repl`, `y": "Hi", "typ`, `e": "user"}`)
	}, time.Minute)

	_, err := svc.Send(context.Background(), "hello")
	require.NoError(t, err)

	turn := waitForClosure(t, svc)
	assert.Equal(t, "Hi", turn.Text, "displayed text is the extracted reply")
	require.NotNil(t, turn.Result)
	assert.Equal(t, model.KindUser, turn.Result.Kind)

	// Plain replies dispatch nothing.
	assert.Zero(t, spy.objects.Load())
	assert.Zero(t, spy.workflows.Load())
	assert.Zero(t, spy.layout.Load())
}

func TestSendRejectedWhileTurnInProgress(t *testing.T) {
	svc, _ := newTestService(t, func(ws *websocket.Conn, req *model.ChatRequest) {
		// Never answer; the turn stays open.
	}, time.Minute)

	_, err := svc.Send(context.Background(), "first")
	require.NoError(t, err)

	_, err = svc.Send(context.Background(), "second")
	assert.ErrorIs(t, err, ErrTurnInProgress)
}

func TestSendWhileDisconnected(t *testing.T) {
	rt := router.New(logger.NewNop())
	conn := assistant.NewManager("ws://127.0.0.1:1/assistant", time.Hour, logger.NewNop())
	svc := NewService(NewStore(), conn, rt, nil, time.Minute, 0, logger.NewNop())

	_, err := svc.Send(context.Background(), "hello")
	assert.ErrorIs(t, err, assistant.ErrNotConnected)

	turns, _ := svc.Turns()
	assert.Empty(t, turns, "a refused send must not mutate the store")
}

func TestTimeoutForceClosesSilentTurn(t *testing.T) {
	svc, spy := newTestService(t, func(ws *websocket.Conn, req *model.ChatRequest) {
		// Zero fragments: only the supervisor can end this turn.
	}, 50*time.Millisecond)

	_, err := svc.Send(context.Background(), "hello")
	require.NoError(t, err)

	turn := waitForClosure(t, svc)
	assert.Equal(t, "", turn.Text, "nothing accumulated, empty degraded reply")
	assert.Nil(t, turn.Result)

	_, awaiting := svc.Turns()
	assert.False(t, awaiting, "loading flag clears on timeout")
	assert.Zero(t, spy.workflows.Load(), "no payload dispatch on forced closure")
}

func TestWorkflowsOnlyPayloadDispatchesOnlyWorkflows(t *testing.T) {
	envelope := `{"reply": "done", "type": "admin", "config": {"workflows": {"ship": {"steps": ["pack", "send"]}}}}`

	svc, spy := newTestService(t, func(ws *websocket.Conn, req *model.ChatRequest) {
		streamText(ws, envelope[:20], envelope[20:])
		// Replay the closing fragment and then the whole envelope; the
		// latch swallows the residue and the fingerprint catches the
		// restated result. Neither may dispatch again.
		streamText(ws, envelope[20:], envelope)
	}, time.Minute)

	_, err := svc.Send(context.Background(), "add a workflow")
	require.NoError(t, err)

	turn := waitForClosure(t, svc)
	require.NotNil(t, turn.Result)
	assert.Equal(t, model.KindAdmin, turn.Result.Kind)

	require.Eventually(t, func() bool {
		return spy.workflows.Load() == 1
	}, 2*time.Second, 5*time.Millisecond)

	// The replayed fragment never causes a second dispatch.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), spy.workflows.Load())
	assert.Zero(t, spy.objects.Load())
	assert.Zero(t, spy.layout.Load())
}

func TestBufferCeilingDegradesToPlainText(t *testing.T) {
	long := strings.Repeat("the assistant is rambling ", 20) // well past the test ceiling

	spy := &consumerSpy{}
	rt := router.New(logger.NewNop())
	rt.OnObjects(func([]model.ObjectDef) { spy.objects.Add(1) })

	conn := assistant.NewManager(fakeAssistant(t, func(ws *websocket.Conn, req *model.ChatRequest) {
		streamText(ws, long)
	}), time.Hour, logger.NewNop())
	svc := NewService(NewStore(), conn, rt, nil, time.Minute, 100, logger.NewNop())
	require.NoError(t, conn.Connect())
	t.Cleanup(func() { conn.Disconnect() })

	_, err := svc.Send(context.Background(), "hello")
	require.NoError(t, err)

	turn := waitForClosure(t, svc)
	assert.Equal(t, long, turn.Text, "raw accumulated text becomes the reply")
	assert.Nil(t, turn.Result)
	assert.Zero(t, spy.objects.Load())
}

func TestSubscribeReceivesTurnEvents(t *testing.T) {
	svc, _ := newTestService(t, func(ws *websocket.Conn, req *model.ChatRequest) {
		streamText(ws, `{"reply": "ok", "type": "user"}`)
	}, time.Minute)

	events, cancel := svc.Subscribe()
	defer cancel()

	_, err := svc.Send(context.Background(), "hello")
	require.NoError(t, err)
	waitForClosure(t, svc)

	var kinds []string
	deadline := time.After(2 * time.Second)
	for len(kinds) < 3 {
		select {
		case ev := <-events:
			kinds = append(kinds, ev.Type)
		case <-deadline:
			t.Fatalf("expected at least 3 events, got %v", kinds)
		}
	}
	assert.Equal(t, EventTurn, kinds[0], "user turn event first")
	assert.Equal(t, EventTurn, kinds[1], "assistant turn opened")
}

func TestStaleTimeoutExpiryDoesNotCloseNextTurn(t *testing.T) {
	var requests atomic.Int32
	svc, _ := newTestService(t, func(ws *websocket.Conn, req *model.ChatRequest) {
		if requests.Add(1) == 1 {
			streamText(ws, `{"reply": "done", "type": "user"}`)
		}
		// Later turns stay open.
	}, time.Minute)

	_, err := svc.Send(context.Background(), "first")
	require.NoError(t, err)
	waitForClosure(t, svc)

	svc.mu.Lock()
	stale := svc.session
	svc.mu.Unlock()

	_, err = svc.Send(context.Background(), "second")
	require.NoError(t, err)

	// A timer armed for the first turn can fire after the second turn has
	// begun; its expiry must not touch the newer session.
	svc.handleTimeout(stale)

	_, awaiting := svc.Turns()
	assert.True(t, awaiting, "open turn survives the stale expiry")

	svc.Reset()
}

func TestResetDiscardsLiveSession(t *testing.T) {
	svc, spy := newTestService(t, func(ws *websocket.Conn, req *model.ChatRequest) {
		time.Sleep(50 * time.Millisecond)
		streamText(ws, `{"reply": "late", "type": "admin", "config": {"objects": {"o": {"f": "text"}}}}`)
	}, time.Minute)

	_, err := svc.Send(context.Background(), "hello")
	require.NoError(t, err)

	svc.Reset()
	turns, awaiting := svc.Turns()
	assert.Empty(t, turns)
	assert.False(t, awaiting)

	// The late completion lands on a latched session: no dispatch, no panic.
	time.Sleep(150 * time.Millisecond)
	assert.Zero(t, spy.objects.Load())
}

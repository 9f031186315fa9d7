package assistant

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge-ai/console-api/internal/model"
	"github.com/appforge-ai/console-api/pkg/logger"
)

// testSocketServer accepts websocket connections and hands them to the test.
type testSocketServer struct {
	srv   *httptest.Server
	conns chan *websocket.Conn
}

func newTestSocketServer(t *testing.T) *testSocketServer {
	t.Helper()
	upgrader := websocket.Upgrader{}
	s := &testSocketServer{conns: make(chan *websocket.Conn, 8)}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.conns <- ws
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *testSocketServer) url() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

// accept waits for the next accepted connection.
func (s *testSocketServer) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case ws := <-s.conns:
		return ws
	case <-time.After(2 * time.Second):
		t.Fatal("no connection accepted")
		return nil
	}
}

// assertNoConnection fails if a connection arrives within the window.
func (s *testSocketServer) assertNoConnection(t *testing.T, window time.Duration) {
	t.Helper()
	select {
	case <-s.conns:
		t.Fatal("unexpected connection")
	case <-time.After(window):
	}
}

func TestSendWhileDisconnected(t *testing.T) {
	m := NewManager("ws://127.0.0.1:1/assistant", time.Hour, logger.NewNop())
	err := m.Send(&model.ChatRequest{})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestConnectIsIdempotent(t *testing.T) {
	srv := newTestSocketServer(t)
	m := NewManager(srv.url(), time.Hour, logger.NewNop())
	defer m.Disconnect()

	require.NoError(t, m.Connect())
	srv.accept(t)
	assert.Equal(t, StateConnected, m.State())

	// Connect while connected is a no-op: no second socket is opened.
	require.NoError(t, m.Connect())
	srv.assertNoConnection(t, 100*time.Millisecond)
}

func TestFragmentsDeliveredInOrder(t *testing.T) {
	srv := newTestSocketServer(t)
	m := NewManager(srv.url(), time.Hour, logger.NewNop())
	defer m.Disconnect()

	fragments := make(chan string, 8)
	m.OnFragment(func(f string) { fragments <- f })

	require.NoError(t, m.Connect())
	ws := srv.accept(t)

	for _, f := range []string{`{"rep`, `ly": "x"`, `}`} {
		require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(f)))
	}

	var got []string
	for i := 0; i < 3; i++ {
		select {
		case f := <-fragments:
			got = append(got, f)
		case <-time.After(2 * time.Second):
			t.Fatalf("fragment %d not delivered", i)
		}
	}
	assert.Equal(t, []string{`{"rep`, `ly": "x"`, `}`}, got)
}

func TestSendWritesFrame(t *testing.T) {
	srv := newTestSocketServer(t)
	m := NewManager(srv.url(), time.Hour, logger.NewNop())
	defer m.Disconnect()

	require.NoError(t, m.Connect())
	ws := srv.accept(t)

	req := model.HistoryFrame([]model.Turn{
		{Author: model.AuthorUser, Text: "make an object"},
	}, "session-1")
	require.NoError(t, m.Send(req))

	var got model.ChatRequest
	require.NoError(t, ws.ReadJSON(&got))
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "make an object", got.Messages[0].Content)
	assert.Equal(t, "session-1", got.Context["session_id"])
}

func TestGracefulDisconnectDoesNotReconnect(t *testing.T) {
	srv := newTestSocketServer(t)
	m := NewManager(srv.url(), 50*time.Millisecond, logger.NewNop())

	require.NoError(t, m.Connect())
	srv.accept(t)

	require.NoError(t, m.Disconnect())
	assert.Equal(t, StateDisconnected, m.State())

	// Well past the reconnect delay: no attempt may occur.
	srv.assertNoConnection(t, 200*time.Millisecond)
}

func TestAbnormalCloseReconnectsOnceAfterDelay(t *testing.T) {
	srv := newTestSocketServer(t)
	m := NewManager(srv.url(), 80*time.Millisecond, logger.NewNop())
	defer m.Disconnect()

	require.NoError(t, m.Connect())
	ws := srv.accept(t)

	// Drop the connection without a close handshake.
	start := time.Now()
	ws.Close()

	reconnected := srv.accept(t)
	defer reconnected.Close()
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 80*time.Millisecond, "reconnect must wait the fixed delay")

	// Exactly one attempt: nothing further arrives.
	srv.assertNoConnection(t, 250*time.Millisecond)
	assert.Equal(t, StateConnected, m.State())
}

func TestManualConnectCancelsPendingReconnect(t *testing.T) {
	srv := newTestSocketServer(t)
	m := NewManager(srv.url(), 300*time.Millisecond, logger.NewNop())
	defer m.Disconnect()

	require.NoError(t, m.Connect())
	ws := srv.accept(t)

	ws.Close()
	// Give the read loop a moment to observe the drop and arm the timer.
	require.Eventually(t, func() bool {
		return m.State() == StateDisconnected
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, m.Connect())
	srv.accept(t)

	// The pending timer was cancelled: no second connection follows.
	srv.assertNoConnection(t, 500*time.Millisecond)
}

func TestStateTransitionsObservable(t *testing.T) {
	srv := newTestSocketServer(t)
	m := NewManager(srv.url(), time.Hour, logger.NewNop())

	states := make(chan State, 8)
	m.OnStateChange(func(s State) { states <- s })

	require.NoError(t, m.Connect())
	srv.accept(t)
	require.NoError(t, m.Disconnect())

	var got []State
	for len(got) < 3 {
		select {
		case s := <-states:
			got = append(got, s)
		case <-time.After(time.Second):
			t.Fatalf("missing transitions, got %v", got)
		}
	}
	assert.Equal(t, []State{StateConnecting, StateConnected, StateDisconnected}, got[:3])
}

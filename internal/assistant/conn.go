// Package assistant implements the streaming chat-response protocol against
// the assistant backend: socket lifecycle, incremental completion detection,
// duplicate suppression, and turn timeout supervision.
package assistant

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/appforge-ai/console-api/internal/model"
	"github.com/appforge-ai/console-api/pkg/logger"
	"github.com/appforge-ai/console-api/pkg/metrics"
)

// ErrNotConnected is returned by Send when no open transport exists.
var ErrNotConnected = errors.New("assistant: not connected")

// State is the connection state of the assistant socket.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String returns the state name for logs and connectivity events.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// StateListener observes connection-state transitions.
type StateListener func(State)

// FragmentHandler receives streamed text fragments in arrival order.
type FragmentHandler func(fragment string)

// Manager owns the socket lifecycle: connect, reconnect after abnormal
// close, and clean shutdown. Reconnection is a single attempt after a fixed
// delay; a successful Connect before the timer fires cancels it.
type Manager struct {
	url            string
	reconnectDelay time.Duration
	logger         *logger.Logger

	mu             sync.Mutex
	ws             *websocket.Conn
	state          State
	closing        bool
	reconnectTimer *time.Timer
	listeners      []StateListener
	onFragment     FragmentHandler
}

// NewManager creates a connection manager for the given socket URL.
func NewManager(url string, reconnectDelay time.Duration, log *logger.Logger) *Manager {
	return &Manager{
		url:            url,
		reconnectDelay: reconnectDelay,
		logger:         log,
	}
}

// OnFragment registers the handler for incoming text fragments. Must be set
// before Connect.
func (m *Manager) OnFragment(fn FragmentHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onFragment = fn
}

// OnStateChange registers a connection-state listener.
func (m *Manager) OnStateChange(fn StateListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect establishes the transport. Calling it while already connected or
// connecting is a no-op. A manual Connect cancels any pending reconnect.
func (m *Manager) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closing = false
	m.cancelReconnectLocked()
	return m.connectLocked()
}

func (m *Manager) connectLocked() error {
	if m.state != StateDisconnected {
		return nil
	}
	m.setStateLocked(StateConnecting)

	dialer := &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.Dial(m.url, nil)
	if err != nil {
		m.setStateLocked(StateDisconnected)
		m.logger.Warn("assistant dial failed", zap.String("url", m.url), zap.Error(err))
		m.scheduleReconnectLocked()
		return err
	}

	m.ws = ws
	m.setStateLocked(StateConnected)
	m.logger.Info("assistant socket connected", zap.String("url", m.url))

	go m.readPump(ws)
	return nil
}

// Send writes a framed request. It fails fast with ErrNotConnected when no
// open transport exists.
func (m *Manager) Send(req *model.ChatRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateConnected || m.ws == nil {
		return ErrNotConnected
	}
	return m.ws.WriteJSON(req)
}

// Disconnect performs a graceful close with a normal close code and cancels
// any pending reconnect. No reconnect is attempted after a graceful close.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closing = true
	m.cancelReconnectLocked()

	if m.ws == nil {
		m.setStateLocked(StateDisconnected)
		return nil
	}

	deadline := time.Now().Add(time.Second)
	_ = m.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "going away"),
		deadline,
	)
	err := m.ws.Close()
	m.ws = nil
	m.setStateLocked(StateDisconnected)
	return err
}

// readPump delivers text fragments in arrival order until the socket closes.
func (m *Manager) readPump(ws *websocket.Conn) {
	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			m.handleClose(ws, err)
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		metrics.FragmentsTotal.Inc()
		metrics.FragmentBytesTotal.Add(float64(len(data)))

		m.mu.Lock()
		handler := m.onFragment
		m.mu.Unlock()
		if handler != nil {
			handler(string(data))
		}
	}
}

func (m *Manager) handleClose(ws *websocket.Conn, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// A newer socket may already have replaced this one.
	if m.ws != ws && !m.closing {
		return
	}
	m.ws = nil
	m.setStateLocked(StateDisconnected)

	graceful := m.closing || websocket.IsCloseError(err, websocket.CloseNormalClosure)
	if graceful {
		m.logger.Info("assistant socket closed")
		return
	}

	m.logger.Warn("assistant socket closed abnormally", zap.Error(err))
	m.scheduleReconnectLocked()
}

// scheduleReconnectLocked arms exactly one reconnect attempt after the fixed
// delay. A pending attempt is never doubled up.
func (m *Manager) scheduleReconnectLocked() {
	if m.reconnectTimer != nil || m.closing {
		return
	}
	metrics.AssistantReconnectsTotal.Inc()
	m.logger.Info("scheduling reconnect", zap.Duration("delay", m.reconnectDelay))
	m.reconnectTimer = time.AfterFunc(m.reconnectDelay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.reconnectTimer = nil
		if m.closing || m.state != StateDisconnected {
			return
		}
		_ = m.connectLocked()
	})
}

func (m *Manager) cancelReconnectLocked() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
}

func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.state = s
	metrics.AssistantConnectionState.Set(float64(s))
	for _, fn := range m.listeners {
		fn(s)
	}
}

package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/appforge-ai/console-api/internal/assistant"
	"github.com/appforge-ai/console-api/internal/model"
	"github.com/appforge-ai/console-api/internal/router"
	"github.com/appforge-ai/console-api/pkg/logger"
	"github.com/appforge-ai/console-api/pkg/metrics"
)

// ErrTurnInProgress is returned when a user turn is submitted while an
// assistant turn is still streaming. Concurrent sessions would interleave
// writes into the store, so submission is refused outright.
var ErrTurnInProgress = errors.New("chat: assistant turn in progress")

// Event kinds pushed to subscribers (the browser SSE stream).
const (
	EventTurn         = "turn"
	EventTurnUpdate   = "turn_update"
	EventConnectivity = "connectivity"
)

// Event is one update for conversation subscribers.
type Event struct {
	Type  string      `json:"type"`
	Turn  *model.Turn `json:"turn,omitempty"`
	State string      `json:"state,omitempty"`
}

// Journal receives committed turns and schema mutations, best effort.
type Journal interface {
	PublishTurn(ctx context.Context, turn model.Turn)
	PublishSchemaMutation(ctx context.Context, result *model.StructuredResult)
}

// Service orchestrates one conversation: it frames outgoing requests, feeds
// incoming fragments through the per-turn stream session, commits closures
// to the store, and fans completed payloads out through the router.
//
// All state mutation is serialized behind one mutex; fragments arrive in
// order from the single socket read loop, so a turn's events are processed
// in arrival order.
type Service struct {
	store      *Store
	conn       *assistant.Manager
	router     *router.Router
	journal    Journal
	supervisor *assistant.Supervisor
	logger     *logger.Logger

	sessionID string
	ceiling   int

	mu      sync.Mutex
	session *assistant.StreamSession

	subMu       sync.Mutex
	subscribers map[int]chan Event
	nextSubID   int
}

// NewService wires the chat orchestrator. journal may be nil.
func NewService(
	store *Store,
	conn *assistant.Manager,
	rt *router.Router,
	journal Journal,
	turnTimeout time.Duration,
	ceiling int,
	log *logger.Logger,
) *Service {
	s := &Service{
		store:       store,
		conn:        conn,
		router:      rt,
		journal:     journal,
		supervisor:  assistant.NewSupervisor(turnTimeout),
		logger:      log,
		sessionID:   uuid.New().String(),
		ceiling:     ceiling,
		subscribers: make(map[int]chan Event),
	}
	conn.OnFragment(s.handleFragment)
	conn.OnStateChange(s.handleStateChange)
	return s
}

// Send submits a user turn: it appends the turn, frames the full history,
// sends it over the socket, and opens the assistant turn with its stream
// session and timeout. It fails fast while disconnected or while a previous
// assistant turn is still in progress.
func (s *Service) Send(ctx context.Context, content string) (model.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store.InProgress() {
		return model.Turn{}, ErrTurnInProgress
	}
	if s.conn.State() != assistant.StateConnected {
		return model.Turn{}, assistant.ErrNotConnected
	}

	userTurn := s.store.AppendUserTurn(content)
	frame := model.HistoryFrame(s.store.Snapshot(), s.sessionID)

	if err := s.conn.Send(frame); err != nil {
		// The turn stays in history; the operator can retry once reconnected.
		s.logger.Warn("assistant send failed", zap.Error(err))
		return userTurn, err
	}

	metrics.TurnsTotal.WithLabelValues(string(model.AuthorUser)).Inc()
	s.broadcast(Event{Type: EventTurn, Turn: &userTurn})
	if s.journal != nil {
		s.journal.PublishTurn(ctx, userTurn)
	}

	assistantTurn := s.store.BeginAssistantTurn()
	session := assistant.NewStreamSession(assistantTurn.ID, s.ceiling)
	s.session = session
	// The expiry carries the session it was armed for, so an expiry that
	// fires while its turn is closing can never touch a newer session.
	s.supervisor.Arm(func() { s.handleTimeout(session) })
	s.broadcast(Event{Type: EventTurn, Turn: &assistantTurn})

	return userTurn, nil
}

// Turns returns the conversation snapshot and whether a reply is awaited.
func (s *Service) Turns() ([]model.Turn, bool) {
	return s.store.Snapshot(), s.store.InProgress()
}

// Reset discards the conversation and any live stream session.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil {
		if _, ok := s.session.ForceClose(assistant.CloseReset); ok {
			metrics.TurnClosuresTotal.WithLabelValues(string(assistant.CloseReset)).Inc()
		}
		s.session = nil
	}
	s.supervisor.Cancel()
	s.store.Reset()
	s.sessionID = uuid.New().String()
}

// Subscribe registers a conversation event subscriber. The returned cancel
// function must be called when the subscriber goes away.
func (s *Service) Subscribe() (<-chan Event, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan Event, 64)
	s.subscribers[id] = ch

	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if c, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(c)
		}
	}
}

// handleFragment processes one streamed fragment in arrival order.
func (s *Service) handleFragment(fragment string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		// No outstanding request; residual server chatter is dropped.
		return
	}

	outcome, closure := s.session.Feed(fragment)
	switch outcome {
	case assistant.FeedOpen:
		if turn, ok := s.store.AppendToInProgress(fragment); ok {
			s.broadcast(Event{Type: EventTurnUpdate, Turn: &turn})
		}
	case assistant.FeedClosed:
		s.completeLocked(closure)
	case assistant.FeedDuplicate:
		metrics.DuplicateResultsTotal.Inc()
		s.logger.Debug("duplicate completion dropped", zap.String("session", s.session.ID))
	case assistant.FeedIgnored:
		// One-shot latch: the turn already closed.
	}
}

// handleTimeout force-closes the turn the timer was armed for. An expiry
// that lost the race against its turn's closure and a subsequent Send
// arrives with a stale session and must not close the current one.
func (s *Service) handleTimeout(session *assistant.StreamSession) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != session {
		return
	}
	closure, ok := session.ForceClose(assistant.CloseTimeout)
	if !ok {
		return
	}
	s.logger.Warn("assistant turn timed out",
		zap.String("session", session.ID),
		zap.Int("buffered_bytes", session.BufferLen()),
	)
	s.completeLocked(closure)
}

// completeLocked commits a closure: cancel the supervisor, close the turn in
// the store, fan out the payload, and notify subscribers. Caller holds s.mu.
func (s *Service) completeLocked(closure *assistant.Closure) {
	s.supervisor.Cancel()

	turn, ok := s.store.CloseInProgress(closure.Result, closure.Raw)
	if !ok {
		return
	}

	metrics.TurnsTotal.WithLabelValues(string(model.AuthorAssistant)).Inc()
	metrics.TurnClosuresTotal.WithLabelValues(string(closure.Reason)).Inc()
	if s.session != nil {
		metrics.TurnDuration.Observe(time.Since(s.session.StartedAt).Seconds())
	}

	s.broadcast(Event{Type: EventTurn, Turn: &turn})

	// Forced closures degrade to plain text: no payload dispatch occurs.
	if closure.Result != nil {
		s.router.Dispatch(closure.Result)
		if s.journal != nil && closure.Result.Kind == model.KindAdmin {
			s.journal.PublishSchemaMutation(context.Background(), closure.Result)
		}
	}
	if s.journal != nil {
		s.journal.PublishTurn(context.Background(), turn)
	}

	s.logger.Info("assistant turn closed",
		zap.String("turn_id", turn.ID),
		zap.String("reason", string(closure.Reason)),
	)
}

func (s *Service) handleStateChange(state assistant.State) {
	s.broadcast(Event{Type: EventConnectivity, State: state.String()})
}

// broadcast delivers an event to all subscribers without blocking; a slow
// subscriber loses events rather than stalling the stream.
func (s *Service) broadcast(ev Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Package chat holds conversation state and orchestrates the assistant
// streaming protocol around it.
package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/appforge-ai/console-api/internal/model"
)

// Store is the single source of truth for conversation state. At most one
// turn is in progress (assistant-authored, still streaming) at any time; the
// in-progress turn is mutated in place until closure.
type Store struct {
	mu         sync.RWMutex
	turns      []*model.Turn
	inProgress *model.Turn
}

// NewStore creates an empty conversation store.
func NewStore() *Store {
	return &Store{}
}

// AppendUserTurn appends a completed user turn and returns a copy of it.
func (s *Store) AppendUserTurn(text string) model.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	turn := &model.Turn{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Author:    model.AuthorUser,
		Text:      text,
		CreatedAt: time.Now(),
	}
	s.turns = append(s.turns, turn)
	return *turn
}

// BeginAssistantTurn creates the in-progress assistant turn. If a turn is
// already in progress it is returned unchanged; callers guard against this
// upstream.
func (s *Store) BeginAssistantTurn() model.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inProgress != nil {
		return *s.inProgress
	}
	turn := &model.Turn{
		ID:         uuid.Must(uuid.NewV7()).String(),
		Author:     model.AuthorAssistant,
		CreatedAt:  time.Now(),
		InProgress: true,
	}
	s.turns = append(s.turns, turn)
	s.inProgress = turn
	return *turn
}

// AppendToInProgress grows the in-progress turn's text. It is a no-op when
// no turn is in progress.
func (s *Store) AppendToInProgress(fragment string) (model.Turn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inProgress == nil {
		return model.Turn{}, false
	}
	s.inProgress.Text += fragment
	return *s.inProgress, true
}

// CloseInProgress closes the in-progress turn. With a structured result the
// displayed text is replaced atomically by the extracted reply; otherwise
// rawText stands as the degraded plain-text reply. No-op when no turn is in
// progress.
func (s *Store) CloseInProgress(result *model.StructuredResult, rawText string) (model.Turn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inProgress == nil {
		return model.Turn{}, false
	}
	turn := s.inProgress
	if result != nil {
		turn.Text = result.Reply
		turn.Result = result
	} else {
		turn.Text = rawText
	}
	turn.InProgress = false
	s.inProgress = nil
	return *turn, true
}

// InProgress reports whether an assistant turn is currently streaming.
func (s *Store) InProgress() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inProgress != nil
}

// Snapshot returns an ordered, immutable copy of the conversation for
// rendering.
func (s *Store) Snapshot() []model.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Turn, len(s.turns))
	for i, t := range s.turns {
		out[i] = *t
	}
	return out
}

// Reset discards all turns, including any in-progress one.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
	s.inProgress = nil
}

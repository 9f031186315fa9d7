package assistant

import (
	"sync"
	"time"
)

// Supervisor bounds how long a request may remain in progress so the UI
// never shows an indefinite loading state. One timer is armed per assistant
// turn; closure cancels it, expiry force-closes the turn.
type Supervisor struct {
	timeout time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

// NewSupervisor creates a supervisor with the given turn timeout.
func NewSupervisor(timeout time.Duration) *Supervisor {
	return &Supervisor{timeout: timeout}
}

// Arm starts the turn timer. An already-armed timer is replaced, so at most
// one expiry callback is outstanding.
func (s *Supervisor) Arm(onExpire func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(s.timeout, func() {
		s.mu.Lock()
		// A replaced or cancelled timer may still reach here if it fired
		// while the replacement raced it; such an expiry is stale.
		if s.timer != t {
			s.mu.Unlock()
			return
		}
		s.timer = nil
		s.mu.Unlock()
		onExpire()
	})
	s.timer = t
}

// Cancel stops the pending timer, if any.
func (s *Supervisor) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

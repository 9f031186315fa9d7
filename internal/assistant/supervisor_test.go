package assistant

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSupervisorFires(t *testing.T) {
	s := NewSupervisor(20 * time.Millisecond)

	fired := make(chan struct{})
	s.Arm(func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("supervisor did not fire")
	}
}

func TestSupervisorCancel(t *testing.T) {
	s := NewSupervisor(20 * time.Millisecond)

	var fired atomic.Bool
	s.Arm(func() { fired.Store(true) })
	s.Cancel()

	time.Sleep(60 * time.Millisecond)
	if fired.Load() {
		t.Fatal("cancelled supervisor fired")
	}
}

func TestSupervisorRearmReplaces(t *testing.T) {
	s := NewSupervisor(30 * time.Millisecond)

	var first, second atomic.Int32
	s.Arm(func() { first.Add(1) })
	s.Arm(func() { second.Add(1) })

	time.Sleep(100 * time.Millisecond)
	if first.Load() != 0 {
		t.Fatal("replaced timer fired")
	}
	if second.Load() != 1 {
		t.Fatalf("expected exactly one expiry, got %d", second.Load())
	}
}

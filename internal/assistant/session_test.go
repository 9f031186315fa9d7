package assistant

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge-ai/console-api/internal/model"
)

func TestSessionClosesOnce(t *testing.T) {
	s := NewStreamSession("turn-1", 0)

	outcome, _ := s.Feed(`{"reply": "Hi", "ty`)
	assert.Equal(t, FeedOpen, outcome)

	outcome, closure := s.Feed(`pe": "user"}`)
	require.Equal(t, FeedClosed, outcome)
	require.NotNil(t, closure.Result)
	assert.Equal(t, CloseParsed, closure.Reason)
	assert.Equal(t, "Hi", closure.Result.Reply)

	// A redelivered closing frame restates the committed result: classified
	// as a duplicate, never committed again.
	outcome, closure = s.Feed(`{"reply": "Hi", "type": "user"}`)
	assert.Equal(t, FeedDuplicate, outcome)
	assert.Nil(t, closure)
}

func TestSessionDuplicateClassification(t *testing.T) {
	s := NewStreamSession("turn-1", 0)
	outcome, _ := s.Feed(`{"reply": "Hi", "ty`)
	require.Equal(t, FeedOpen, outcome)
	outcome, _ = s.Feed(`pe": "user"}`)
	require.Equal(t, FeedClosed, outcome)

	// Only a frame restating the committed result counts as a duplicate.
	outcome, _ = s.Feed(`{"reply": "Hi", "type": "user"}`)
	assert.Equal(t, FeedDuplicate, outcome)

	// A partial replay of the closing fragment is plain residue.
	outcome, _ = s.Feed(`pe": "user"}`)
	assert.Equal(t, FeedIgnored, outcome)

	// So is a different completed envelope.
	outcome, _ = s.Feed(`{"reply": "Bye", "type": "user"}`)
	assert.Equal(t, FeedIgnored, outcome)
}

func TestSessionForcedClosureHasNoDuplicates(t *testing.T) {
	s := NewStreamSession("turn-1", 0)
	s.Feed("partial")
	_, ok := s.ForceClose(CloseTimeout)
	require.True(t, ok)

	// No result was committed, so nothing can restate it.
	outcome, _ := s.Feed(`{"reply": "late", "type": "user"}`)
	assert.Equal(t, FeedIgnored, outcome)
}

func TestSessionIgnoresResidualFragmentsAfterClose(t *testing.T) {
	s := NewStreamSession("turn-1", 0)
	outcome, _ := s.Feed(`{"reply": "ok", "type": "continue"}`)
	require.Equal(t, FeedClosed, outcome)

	for _, residual := range []string{"", "late", `{"reply": "new", "type": "user"}`} {
		outcome, _ := s.Feed(residual)
		assert.Equal(t, FeedIgnored, outcome)
	}
}

func TestSessionCeilingForceCloses(t *testing.T) {
	s := NewStreamSession("turn-1", 50)

	outcome, closure := s.Feed(strings.Repeat("a", 60))
	require.Equal(t, FeedClosed, outcome)
	assert.Equal(t, CloseCeiling, closure.Reason)
	assert.Nil(t, closure.Result, "ceiling closure carries no payload")
	assert.Equal(t, strings.Repeat("a", 60), closure.Raw)
	assert.True(t, s.Closed())
}

func TestSessionForceClose(t *testing.T) {
	s := NewStreamSession("turn-1", 0)
	s.Feed("partial text")

	closure, ok := s.ForceClose(CloseTimeout)
	require.True(t, ok)
	assert.Equal(t, CloseTimeout, closure.Reason)
	assert.Equal(t, "partial text", closure.Raw)
	assert.Nil(t, closure.Result)

	// Already closed: force-close and feed are both no-ops.
	_, ok = s.ForceClose(CloseTimeout)
	assert.False(t, ok)
	outcome, _ := s.Feed("x")
	assert.Equal(t, FeedIgnored, outcome)
}

func TestGuardDuplicateFingerprint(t *testing.T) {
	result := &model.StructuredResult{Kind: model.KindUser, Reply: "hello"}

	g := &Guard{}
	require.True(t, g.Admit(result))
	assert.True(t, g.Closed())

	// Same structural content never commits twice.
	duplicate := &model.StructuredResult{Kind: model.KindUser, Reply: "hello"}
	assert.False(t, g.Admit(duplicate))
	assert.True(t, g.IsDuplicate(duplicate))
	assert.False(t, g.IsDuplicate(&model.StructuredResult{Kind: model.KindUser, Reply: "other"}))
}

func TestFingerprintDistinguishesContent(t *testing.T) {
	a := &model.StructuredResult{Kind: model.KindUser, Reply: "hello"}
	b := &model.StructuredResult{Kind: model.KindUser, Reply: "hello!"}
	c := &model.StructuredResult{Kind: model.KindAdmin, Reply: "hello"}

	assert.Equal(t, a.Fingerprint(), a.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

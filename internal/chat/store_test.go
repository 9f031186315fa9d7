package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge-ai/console-api/internal/model"
)

func TestStoreOrderedTurns(t *testing.T) {
	s := NewStore()

	s.AppendUserTurn("first")
	s.BeginAssistantTurn()
	s.AppendToInProgress("reply text")
	s.CloseInProgress(nil, "reply text")
	s.AppendUserTurn("second")

	turns := s.Snapshot()
	require.Len(t, turns, 3)
	assert.Equal(t, model.AuthorUser, turns[0].Author)
	assert.Equal(t, model.AuthorAssistant, turns[1].Author)
	assert.Equal(t, model.AuthorUser, turns[2].Author)
	assert.Equal(t, "reply text", turns[1].Text)
	assert.False(t, turns[1].InProgress)
}

func TestStoreSingleInProgressTurn(t *testing.T) {
	s := NewStore()

	first := s.BeginAssistantTurn()
	second := s.BeginAssistantTurn()
	assert.Equal(t, first.ID, second.ID, "at most one in-progress turn")
	assert.Len(t, s.Snapshot(), 1)
}

func TestStoreMutationsRequireInProgressTurn(t *testing.T) {
	s := NewStore()
	s.AppendUserTurn("hello")

	if _, ok := s.AppendToInProgress("x"); ok {
		t.Fatal("append without in-progress turn must be a no-op")
	}
	if _, ok := s.CloseInProgress(nil, "x"); ok {
		t.Fatal("close without in-progress turn must be a no-op")
	}
	assert.Equal(t, "hello", s.Snapshot()[0].Text)
}

func TestStoreCloseReplacesTextWithReply(t *testing.T) {
	s := NewStore()
	s.BeginAssistantTurn()
	s.AppendToInProgress(`{"reply": "Hi", "ty`)
	s.AppendToInProgress(`pe": "user"}`)

	result := &model.StructuredResult{Kind: model.KindUser, Reply: "Hi"}
	turn, ok := s.CloseInProgress(result, "")
	require.True(t, ok)

	// The raw JSON envelope is discarded in favor of the extracted reply.
	assert.Equal(t, "Hi", turn.Text)
	assert.Equal(t, result, turn.Result)
	assert.False(t, s.InProgress())
}

func TestStoreCloseWithRawTextKeepsAccumulated(t *testing.T) {
	s := NewStore()
	s.BeginAssistantTurn()
	s.AppendToInProgress("partial answer")

	turn, ok := s.CloseInProgress(nil, "partial answer")
	require.True(t, ok)
	assert.Equal(t, "partial answer", turn.Text)
	assert.Nil(t, turn.Result)
}

func TestStoreSnapshotIsImmutable(t *testing.T) {
	s := NewStore()
	s.AppendUserTurn("original")

	snap := s.Snapshot()
	snap[0].Text = "mutated"

	assert.Equal(t, "original", s.Snapshot()[0].Text)
}

func TestStoreReset(t *testing.T) {
	s := NewStore()
	s.AppendUserTurn("hello")
	s.BeginAssistantTurn()

	s.Reset()
	assert.Empty(t, s.Snapshot())
	assert.False(t, s.InProgress())
}

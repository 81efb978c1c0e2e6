package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RecordHistory(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	events := []RunEvent{
		{SessionID: "a", From: "not_started", To: "in_progress", Reason: "started", At: base},
		{SessionID: "b", From: "not_started", To: "in_progress", Reason: "started", At: base.Add(time.Second)},
		{SessionID: "a", From: "in_progress", To: "not_started", Reason: "hit_wall", At: base.Add(2 * time.Second)},
		{SessionID: "a", From: "not_started", To: "in_progress", Reason: "started", At: base.Add(3 * time.Second)},
	}
	for _, ev := range events {
		require.NoError(t, s.Record(ctx, ev))
	}

	history, err := s.History(ctx, "a", 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "started", history[0].Reason)
	assert.Equal(t, "hit_wall", history[1].Reason)
	assert.Equal(t, base.Add(2*time.Second), history[1].At)
	assert.Less(t, history[0].ID, history[1].ID)

	limited, err := s.History(ctx, "a", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	none, err := s.History(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStore_Stats(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, st)

	for _, ev := range []RunEvent{
		{SessionID: "a", Reason: "started"},
		{SessionID: "a", Reason: "left_maze"},
		{SessionID: "a", Reason: "started"},
		{SessionID: "a", Reason: "completed"},
		{SessionID: "b", Reason: "started"},
		{SessionID: "b", Reason: "hit_wall"},
	} {
		ev.From, ev.To, ev.At = "x", "y", time.Now()
		require.NoError(t, s.Record(ctx, ev))
	}

	st, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Sessions: 2, Started: 3, Failed: 2, Completed: 1}, st)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger", "runs.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, path, s.Path())
	require.NoError(t, s.Record(ctx, RunEvent{SessionID: "p", From: "in_progress", To: "completed", Reason: "completed", At: time.Now()}))
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	history, err := s2.History(ctx, "p", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "completed", history[0].To)
}

func TestStore_ClosedErrors(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	err = s.Record(context.Background(), RunEvent{SessionID: "z"})
	assert.ErrorContains(t, err, "failed to record run event")
}

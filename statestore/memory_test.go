package statestore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState(callSID string) *CallState {
	return &CallState{
		CallSID:      callSID,
		StreamSID:    "MZ123",
		CallerNumber: "+15550100",
		StartTime:    time.Now().Add(-time.Minute),
		Turns: []TurnRecord{
			{Caller: "hello", Assistant: "hi, how can I help?", Sequence: 1},
		},
		TurnCount: 1,
		Metadata:  map[string]any{"direction": "inbound"},
	}
}

func TestMemoryStoreSaveLoad(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleState("CA123")))

	loaded, err := store.Load(ctx, "CA123")
	require.NoError(t, err)
	assert.Equal(t, "CA123", loaded.CallSID)
	assert.Equal(t, "MZ123", loaded.StreamSID)
	assert.Len(t, loaded.Turns, 1)
	assert.False(t, loaded.UpdatedAt.IsZero())
}

func TestMemoryStoreLoadNotFound(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Load(context.Background(), "CA999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreInvalidInput(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Load(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidID)
	assert.ErrorIs(t, store.Save(ctx, nil), ErrInvalidState)
	assert.ErrorIs(t, store.Save(ctx, &CallState{}), ErrInvalidID)
	assert.ErrorIs(t, store.Delete(ctx, ""), ErrInvalidID)
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleState("CA123")))
	require.NoError(t, store.Delete(ctx, "CA123"))

	_, err := store.Load(ctx, "CA123")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "CA123"), ErrNotFound)
}

func TestMemoryStoreIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	state := sampleState("CA123")
	require.NoError(t, store.Save(ctx, state))

	// Mutating the saved value must not affect the stored copy.
	state.Turns[0].Caller = "mutated"
	state.Metadata["direction"] = "outbound"

	loaded, err := store.Load(ctx, "CA123")
	require.NoError(t, err)
	assert.Equal(t, "hello", loaded.Turns[0].Caller)
	assert.Equal(t, "inbound", loaded.Metadata["direction"])

	// Mutating a loaded value must not affect later loads.
	loaded.Turns[0].Caller = "mutated again"
	reloaded, err := store.Load(ctx, "CA123")
	require.NoError(t, err)
	assert.Equal(t, "hello", reloaded.Turns[0].Caller)
}

func TestMemoryStoreLen(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	assert.Equal(t, 0, store.Len())
	require.NoError(t, store.Save(ctx, sampleState("CA1")))
	require.NoError(t, store.Save(ctx, sampleState("CA2")))
	assert.Equal(t, 2, store.Len())
}

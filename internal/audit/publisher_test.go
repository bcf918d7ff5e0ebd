package audit

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisher_EmitFillsDefaults(t *testing.T) {
	store := NewMemoryStore()
	pub := NewPublisher(store)

	err := pub.Emit(context.Background(), Entry{
		Actor:    "system:validation",
		Action:   ActionRecordValidated,
		EntityID: "intake-1",
		After:    "validated",
	})
	require.NoError(t, err)

	entries := store.All()
	require.Len(t, entries, 1)
	assert.NotEqual(t, uuid.Nil, entries[0].ID)
	assert.False(t, entries[0].Timestamp.IsZero())
	assert.Equal(t, StatusSuccess, entries[0].Status)
}

func TestPublisher_ListByEntity(t *testing.T) {
	store := NewMemoryStore()
	pub := NewPublisher(store)
	ctx := context.Background()

	require.NoError(t, pub.Emit(ctx, Entry{Actor: "system:promotion", Action: ActionRecordPromoted, EntityID: "a"}))
	require.NoError(t, pub.Emit(ctx, Entry{Actor: "system:budget", Action: ActionCallRejected, EntityID: "b", Status: StatusFailure}))
	require.NoError(t, pub.Emit(ctx, Entry{Actor: "system:intelligence", Action: ActionSignalRecorded, EntityID: "a"}))

	got, err := pub.List(ctx, "a")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ActionRecordPromoted, got[0].Action)
	assert.Equal(t, ActionSignalRecorded, got[1].Action)
}

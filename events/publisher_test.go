package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope(t *testing.T) {
	reason := "plans changed"
	env, err := newEnvelope(BookingCancelled, BookingEvent{
		BookingID:    7,
		UserID:       3,
		RoomID:       2,
		CheckInDate:  "2024-01-15",
		CheckOutDate: "2024-01-20",
		TotalPrice:   "500.00",
		Status:       "cancelled",
		Reason:       &reason,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, env.ID)
	assert.Equal(t, BookingCancelled, env.Type)
	assert.False(t, env.OccurredAt.IsZero())

	var got BookingEvent
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, uint(7), got.BookingID)
	require.NotNil(t, got.Reason)
	assert.Equal(t, reason, *got.Reason)
}

func TestNewEnvelopeRejectsUnmarshalable(t *testing.T) {
	_, err := newEnvelope(BookingCreated, map[string]any{"bad": make(chan int)})
	assert.Error(t, err)
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.PublishJSON(context.Background(), BookingCreated, CompletionEvent{Count: 1}))
	assert.NoError(t, p.Close())
}

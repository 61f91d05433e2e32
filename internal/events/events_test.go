package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus(nil)

	var got []Event
	bus.Subscribe(BookingCreated, func(e Event) error {
		got = append(got, e)
		return nil
	})
	bus.Subscribe(BookingCreated, func(Event) error {
		return errors.New("handler down")
	})

	t.Run("PublishJSON delivers to subscribers", func(t *testing.T) {
		require.NoError(t, bus.PublishJSON(BookingCreated, map[string]any{"table": 5}))
		require.NoError(t, bus.PublishJSON(BookingCreated, map[string]any{"table": 6}))
		require.Len(t, got, 2)
		assert.Equal(t, int64(1), got[0].ID)
		assert.Equal(t, int64(2), got[1].ID)
		assert.False(t, got[0].CreatedAt.IsZero())

		var payload struct {
			Table int `json:"table"`
		}
		require.NoError(t, got[1].Decode(&payload))
		assert.Equal(t, 6, payload.Table)
	})

	t.Run("other types are not delivered", func(t *testing.T) {
		require.NoError(t, bus.PublishJSON(BookingCancelled, "x"))
		assert.Len(t, got, 2)
	})

	t.Run("unmarshalable payload", func(t *testing.T) {
		err := bus.PublishJSON(BookingUpdated, make(chan int))
		assert.Error(t, err)
	})
}

package order

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	for _, s := range Statuses {
		got, err := ParseStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseStatus("delivered")
	require.ErrorIs(t, err, ErrInvalidState)
	assert.Contains(t, err.Error(), "pendiente, en_proceso, en_camino, entregado, cancelado")
}

func TestLifecycle_Permissive(t *testing.T) {
	var l Lifecycle
	for _, from := range Statuses {
		for _, to := range Statuses {
			assert.True(t, l.Allowed(from, to), "%s -> %s", from, to)
		}
	}
}

func TestLifecycle_Strict(t *testing.T) {
	l := Lifecycle{Strict: true}
	tests := []struct {
		from, to Status
		allowed  bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusProcessing, StatusOutForDelivery, true},
		{StatusOutForDelivery, StatusDelivered, true},
		{StatusPending, StatusCancelled, true},
		{StatusOutForDelivery, StatusCancelled, true},
		{StatusPending, StatusDelivered, false},
		{StatusOutForDelivery, StatusPending, false},
		{StatusDelivered, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, l.Allowed(tt.from, tt.to))
		})
	}
}

func TestTransition(t *testing.T) {
	created := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	now := created.Add(2 * time.Hour)

	t.Run("sets status and timestamp", func(t *testing.T) {
		o := &Order{Status: StatusPending, CreatedAt: created, UpdatedAt: created}
		require.NoError(t, Lifecycle{}.Transition(o, "en_proceso", "", now))
		assert.Equal(t, StatusProcessing, o.Status)
		assert.Equal(t, now, o.UpdatedAt)
		assert.Empty(t, o.Notes)
	})

	t.Run("appends notes", func(t *testing.T) {
		o := &Order{Status: StatusPending, Notes: "llamar antes"}
		require.NoError(t, Lifecycle{}.Transition(o, "en_camino", "  portón azul ", now))
		assert.Equal(t, "llamar antes\nportón azul", o.Notes)
	})

	t.Run("permissive allows backwards", func(t *testing.T) {
		o := &Order{Status: StatusDelivered}
		require.NoError(t, Lifecycle{}.Transition(o, "pendiente", "", now))
		assert.Equal(t, StatusPending, o.Status)
	})

	t.Run("unknown state leaves order untouched", func(t *testing.T) {
		o := &Order{Status: StatusPending, UpdatedAt: created}
		err := Lifecycle{}.Transition(o, "shipped", "nota", now)

		var serr *InvalidStateError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, "shipped", serr.Target)
		assert.Equal(t, StatusPending, o.Status)
		assert.Equal(t, created, o.UpdatedAt)
		assert.Empty(t, o.Notes)
	})

	t.Run("strict rejection leaves order untouched", func(t *testing.T) {
		o := &Order{Status: StatusCancelled, UpdatedAt: created}
		err := Lifecycle{Strict: true}.Transition(o, "en_proceso", "", now)
		require.ErrorIs(t, err, ErrInvalidState)
		assert.Contains(t, err.Error(), "cancelado to en_proceso")
		assert.Equal(t, created, o.UpdatedAt)
	})
}

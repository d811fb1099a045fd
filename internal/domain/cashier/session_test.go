package cashier

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCashSession(t *testing.T) {
	t.Run("opens with zero float", func(t *testing.T) {
		now := time.Date(2026, 3, 10, 8, 30, 0, 0, time.Local)
		s, err := NewCashSession("term-01", uuid.New(), "Ana Pérez", now)

		require.NoError(t, err)
		assert.True(t, s.IsOpen())
		assert.True(t, s.OpeningFloat.IsZero())
		assert.Nil(t, s.ClosedAt)
	})

	t.Run("requires a terminal", func(t *testing.T) {
		_, err := NewCashSession("", uuid.New(), "Ana", time.Now())
		assert.Error(t, err)
	})

	t.Run("requires a user", func(t *testing.T) {
		_, err := NewCashSession("term-01", uuid.Nil, "", time.Now())
		assert.Error(t, err)
	})
}

func TestCashSessionClose(t *testing.T) {
	now := time.Now()
	s, err := NewCashSession("term-01", uuid.New(), "Ana", now)
	require.NoError(t, err)

	require.NoError(t, s.Close(now.Add(8*time.Hour)))
	assert.False(t, s.IsOpen())
	require.NotNil(t, s.ClosedAt)

	// Closing twice is a state error.
	assert.Error(t, s.Close(now.Add(9*time.Hour)))
}

func TestAccountingDate(t *testing.T) {
	t.Run("morning stays on the same day", func(t *testing.T) {
		at := time.Date(2026, 3, 10, 9, 15, 0, 0, time.Local)
		got := AccountingDate(at)
		assert.Equal(t, time.Date(2026, 3, 10, 5, 0, 0, 0, time.Local), got)
	})

	t.Run("evening shift rolls to the next day", func(t *testing.T) {
		at := time.Date(2026, 3, 10, 20, 30, 0, 0, time.Local)
		got := AccountingDate(at)
		assert.Equal(t, time.Date(2026, 3, 11, 5, 0, 0, 0, time.Local), got)
	})

	t.Run("just before cutover stays", func(t *testing.T) {
		at := time.Date(2026, 3, 10, 19, 59, 0, 0, time.Local)
		got := AccountingDate(at)
		assert.Equal(t, 10, got.Day())
	})
}

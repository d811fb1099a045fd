package idpool

import (
	"testing"

	"github.com/clinic/terminal/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRange(t *testing.T) {
	t.Run("creates valid range", func(t *testing.T) {
		r, err := NewRange("srv-1", "LOTE-PIA-FAC-001", KindInvoice, "FAC-PIA-", 100, 149, "term-01")

		require.NoError(t, err)
		assert.Equal(t, KindInvoice, r.Kind)
		assert.Equal(t, int64(100), r.Start)
		assert.Equal(t, int64(149), r.End)
		assert.Equal(t, int64(100), r.NextUnused)
		assert.Equal(t, int64(50), r.Remaining())
		assert.Equal(t, int64(50), r.Size())
		assert.False(t, r.Exhausted)
	})

	t.Run("fails with inverted bounds", func(t *testing.T) {
		r, err := NewRange("srv-1", "LOTE-PIA-FAC-001", KindInvoice, "FAC-PIA-", 150, 100, "term-01")

		assert.Error(t, err)
		assert.Nil(t, r)
	})

	t.Run("fails with unknown kind", func(t *testing.T) {
		r, err := NewRange("srv-1", "LOTE-PIA-XXX-001", Kind("RECEIPT"), "REC-PIA-", 1, 50, "term-01")

		assert.Error(t, err)
		assert.Nil(t, r)
	})

	t.Run("fails with empty prefix", func(t *testing.T) {
		r, err := NewRange("srv-1", "LOTE-PIA-FAC-001", KindInvoice, "", 1, 50, "term-01")

		assert.Error(t, err)
		assert.Nil(t, r)
	})
}

func TestRangeAllocate(t *testing.T) {
	t.Run("hands out sequential values", func(t *testing.T) {
		r, err := NewRange("srv-1", "LOTE-PIA-FAC-001", KindInvoice, "FAC-PIA-", 100, 149, "term-01")
		require.NoError(t, err)

		a1, err := r.Allocate()
		require.NoError(t, err)
		a2, err := r.Allocate()
		require.NoError(t, err)

		assert.Equal(t, int64(100), a1.Value)
		assert.Equal(t, int64(101), a2.Value)
		assert.Equal(t, "FAC-PIA-000000100", a1.Code)
		assert.Equal(t, int64(102), r.NextUnused)
		assert.Equal(t, int64(48), r.Remaining())
	})

	t.Run("never hands out the same value twice", func(t *testing.T) {
		r, err := NewRange("srv-1", "LOTE-PIA-FAC-001", KindInvoice, "FAC-PIA-", 1, 20, "term-01")
		require.NoError(t, err)

		seen := make(map[int64]bool)
		for {
			a, err := r.Allocate()
			if err != nil {
				break
			}
			assert.False(t, seen[a.Value], "value %d allocated twice", a.Value)
			seen[a.Value] = true
		}
		assert.Len(t, seen, 20)
	})

	t.Run("exhausts at the upper bound", func(t *testing.T) {
		r, err := NewRange("srv-1", "LOTE-PIA-FAC-001", KindInvoice, "FAC-PIA-", 10, 11, "term-01")
		require.NoError(t, err)

		_, err = r.Allocate()
		require.NoError(t, err)
		last, err := r.Allocate()
		require.NoError(t, err)
		assert.Equal(t, int64(11), last.Value)
		assert.True(t, r.Exhausted)
		assert.Equal(t, int64(0), r.Remaining())

		_, err = r.Allocate()
		assert.ErrorIs(t, err, shared.ErrPoolExhausted)
	})

	t.Run("exhausted range stays exhausted", func(t *testing.T) {
		r, err := NewRange("srv-1", "LOTE-PIA-FAC-001", KindInvoice, "FAC-PIA-", 5, 5, "term-01")
		require.NoError(t, err)

		_, err = r.Allocate()
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			_, err = r.Allocate()
			assert.ErrorIs(t, err, shared.ErrPoolExhausted)
		}
		assert.Equal(t, int64(6), r.NextUnused)
	})
}

func TestRangeUsageReporting(t *testing.T) {
	r, err := NewRange("srv-1", "LOTE-PIA-FAC-001", KindInvoice, "FAC-PIA-", 100, 149, "term-01")
	require.NoError(t, err)

	_, ok := r.Unreported()
	assert.False(t, ok, "fresh range has nothing to report")

	_, err = r.Allocate()
	require.NoError(t, err)
	_, err = r.Allocate()
	require.NoError(t, err)

	last, ok := r.Unreported()
	require.True(t, ok)
	assert.Equal(t, int64(101), last)

	r.MarkReported(last)
	_, ok = r.Unreported()
	assert.False(t, ok)

	// Acknowledgements never move backwards.
	r.MarkReported(100)
	assert.Equal(t, int64(101), r.LastReported)
}

func TestKindCodePrefix(t *testing.T) {
	assert.Equal(t, "FAC", KindInvoice.CodePrefix())
	assert.Equal(t, "LAB", KindOrder.CodePrefix())
	assert.Equal(t, "MUE", KindSample.CodePrefix())
	assert.True(t, KindInvoice.IsValid())
	assert.False(t, Kind("BOGUS").IsValid())
}

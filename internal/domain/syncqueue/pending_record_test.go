package syncqueue

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingRecordLifecycle(t *testing.T) {
	t.Run("new record is pending", func(t *testing.T) {
		p := NewPendingRecord(EntityPatient, uuid.New(), []byte(`{"name":"Ana"}`))

		assert.Equal(t, StatePending, p.State)
		assert.Equal(t, 0, p.RetryCount)
		assert.Nil(t, p.DependsOn)
		assert.False(t, p.NeedsOperator())
	})

	t.Run("mark syncing then synced", func(t *testing.T) {
		p := NewPendingRecord(EntityInvoice, uuid.New(), []byte(`{}`))

		require.NoError(t, p.MarkSyncing())
		p.MarkSynced("srv-42")

		assert.Equal(t, StateSynced, p.State)
		assert.Equal(t, "srv-42", p.RemoteID)
		assert.NotNil(t, p.SyncedAt)
	})

	t.Run("cannot push a synced record again", func(t *testing.T) {
		p := NewPendingRecord(EntityInvoice, uuid.New(), []byte(`{}`))
		require.NoError(t, p.MarkSyncing())
		p.MarkSynced("srv-42")

		assert.Error(t, p.MarkSyncing())
	})

	t.Run("dependency marker", func(t *testing.T) {
		dep := uuid.New()
		p := NewPendingRecord(EntityInvoice, uuid.New(), []byte(`{}`)).WithDependency(dep)

		require.NotNil(t, p.DependsOn)
		assert.Equal(t, dep, *p.DependsOn)
	})
}

func TestPendingRecordRetryBudget(t *testing.T) {
	t.Run("failure schedules a retry with backoff", func(t *testing.T) {
		p := NewPendingRecord(EntityPatient, uuid.New(), []byte(`{}`))
		require.NoError(t, p.MarkSyncing())

		p.MarkFailed("409 duplicate document")

		assert.Equal(t, StateFailed, p.State)
		assert.Equal(t, 1, p.RetryCount)
		assert.True(t, p.CanRetry())
		require.NotNil(t, p.NextRetryAt)
	})

	t.Run("exhausted budget parks the record", func(t *testing.T) {
		p := NewPendingRecord(EntityPatient, uuid.New(), []byte(`{}`))
		for i := 0; i < DefaultMaxRetries; i++ {
			require.NoError(t, p.MarkSyncing())
			p.MarkFailed("rejected")
		}

		assert.False(t, p.CanRetry())
		assert.True(t, p.NeedsOperator())
		assert.Nil(t, p.NextRetryAt)
	})

	t.Run("operator reset restores the budget", func(t *testing.T) {
		p := NewPendingRecord(EntityPatient, uuid.New(), []byte(`{}`))
		for i := 0; i < DefaultMaxRetries; i++ {
			require.NoError(t, p.MarkSyncing())
			p.MarkFailed("rejected")
		}

		require.NoError(t, p.ResetForRetry())
		assert.Equal(t, StatePending, p.State)
		assert.Equal(t, 0, p.RetryCount)
		assert.True(t, p.MarkSyncing() == nil)
	})

	t.Run("reset rejected while retries remain", func(t *testing.T) {
		p := NewPendingRecord(EntityPatient, uuid.New(), []byte(`{}`))
		require.NoError(t, p.MarkSyncing())
		p.MarkFailed("rejected")

		assert.Error(t, p.ResetForRetry())
	})
}

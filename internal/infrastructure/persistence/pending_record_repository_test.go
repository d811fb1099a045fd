package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinic/terminal/internal/domain/shared"
	"github.com/clinic/terminal/internal/domain/syncqueue"
)

func TestGormPendingRecordRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormPendingRecordRepository(db)
	ctx := context.Background()
	now := time.Now()

	first := syncqueue.NewPendingRecord(syncqueue.EntityPatient, uuid.New(), []byte(`{"name":"ana"}`))
	first.CreatedAt = now.Add(-3 * time.Minute)
	second := syncqueue.NewPendingRecord(syncqueue.EntityInvoice, uuid.New(), []byte(`{"number":"FAC-PIA-000000100"}`))
	second.CreatedAt = now.Add(-2 * time.Minute)
	second.WithDependency(first.ID)
	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, second))

	t.Run("find due returns creation order", func(t *testing.T) {
		due, err := repo.FindDue(ctx, now, 10)
		require.NoError(t, err)
		require.Len(t, due, 2)
		assert.Equal(t, first.ID, due[0].ID)
		assert.Equal(t, second.ID, due[1].ID)
		require.NotNil(t, due[1].DependsOn)
		assert.Equal(t, first.ID, *due[1].DependsOn)
	})

	t.Run("failed record waits out its backoff", func(t *testing.T) {
		require.NoError(t, first.MarkSyncing())
		first.MarkFailed("connection refused")
		require.NoError(t, repo.Update(ctx, first))

		due, err := repo.FindDue(ctx, now, 10)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, second.ID, due[0].ID)

		due, err = repo.FindDue(ctx, now.Add(time.Minute), 10)
		require.NoError(t, err)
		assert.Len(t, due, 2)
	})

	t.Run("parked record never comes due", func(t *testing.T) {
		for first.CanRetry() {
			require.NoError(t, first.MarkSyncing())
			first.MarkFailed("still refused")
		}
		require.True(t, first.NeedsOperator())
		require.NoError(t, repo.Update(ctx, first))

		due, err := repo.FindDue(ctx, now.Add(time.Hour), 10)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, second.ID, due[0].ID)
	})

	t.Run("count by state", func(t *testing.T) {
		failed, err := repo.CountByState(ctx, syncqueue.StateFailed)
		require.NoError(t, err)
		assert.Equal(t, int64(1), failed)

		pending, err := repo.CountByState(ctx, syncqueue.StatePending)
		require.NoError(t, err)
		assert.Equal(t, int64(1), pending)
	})

	t.Run("find by entity", func(t *testing.T) {
		found, err := repo.FindByEntity(ctx, syncqueue.EntityInvoice, second.EntityID)
		require.NoError(t, err)
		assert.Equal(t, second.ID, found.ID)

		_, err = repo.FindByEntity(ctx, syncqueue.EntityPatient, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("delete synced before cutoff", func(t *testing.T) {
		require.NoError(t, second.MarkSyncing())
		second.MarkSynced("srv-42")
		require.NoError(t, repo.Update(ctx, second))

		deleted, err := repo.DeleteSyncedBefore(ctx, time.Now().Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)

		_, err = repo.FindByID(ctx, second.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

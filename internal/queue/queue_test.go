package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open("file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestEnqueue_DuplicatePayloadLeavesOnePendingRow(t *testing.T) {
	store := newTestStore(t)

	inserted, err := store.Enqueue(`{"a":1}`)
	require.NoError(t, err)
	assert.True(t, inserted)

	insertedAgain, err := store.Enqueue(`{"a":1}`)
	require.NoError(t, err)
	assert.False(t, insertedAgain)

	var count int64
	require.NoError(t, store.db.Model(&Row{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestClaimNext_ReturnsOldestPendingAndMarksProcessing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Enqueue(`{"seq":1}`)
	require.NoError(t, err)
	_, err = store.Enqueue(`{"seq":2}`)
	require.NoError(t, err)

	job, err := store.ClaimNext()
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, `{"seq":1}`, job.Payload)

	var row Row
	require.NoError(t, store.db.First(&row, "id = ?", job.RowID).Error)
	assert.Equal(t, StatusProcessing, row.Status)
}

func TestClaimNext_NoPendingRowsReturnsNil(t *testing.T) {
	store := newTestStore(t)

	job, err := store.ClaimNext()
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestMarkDoneAndMarkError(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Enqueue(`{"a":1}`)
	require.NoError(t, err)
	job, err := store.ClaimNext()
	require.NoError(t, err)
	require.NotNil(t, job)

	require.NoError(t, store.MarkDone(job.RowID))
	var row Row
	require.NoError(t, store.db.First(&row, "id = ?", job.RowID).Error)
	assert.Equal(t, StatusDone, row.Status)

	_, err = store.Enqueue(`{"a":2}`)
	require.NoError(t, err)
	job2, err := store.ClaimNext()
	require.NoError(t, err)
	require.NotNil(t, job2)

	require.NoError(t, store.MarkError(job2.RowID, "boom"))
	var row2 Row
	require.NoError(t, store.db.First(&row2, "id = ?", job2.RowID).Error)
	assert.Equal(t, StatusError, row2.Status)
	require.NotNil(t, row2.LastError)
	assert.Equal(t, "boom", *row2.LastError)
}

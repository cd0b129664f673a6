package records

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *contractRepository {
	t.Helper()
	db, err := Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	clock := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	return &contractRepository{db: db, now: func() time.Time { return clock }}
}

func TestMarkGenerated(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	record, err := repo.MarkGenerated(ctx, "player-1", "alta", "contracts/player-1/a.pdf", "https://x/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, StatusGenerated, record.Status)
	assert.Equal(t, "alta", record.TemplateKey)
	assert.Equal(t, "contracts/player-1/a.pdf", record.DocumentKey)
	require.NotNil(t, record.GeneratedAt)

	again, err := repo.MarkGenerated(ctx, "player-1", "alta", "contracts/player-1/b.pdf", "https://x/b.pdf")
	require.NoError(t, err)
	assert.Equal(t, record.ID, again.ID, "second generation must update the same record")
	assert.Equal(t, "https://x/b.pdf", again.DocumentURL)

	var count int64
	require.NoError(t, repo.db.Model(&Contract{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestMarkFailedKeepsLastDocument(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.MarkGenerated(ctx, "player-2", "alta", "contracts/player-2/a.pdf", "https://x/a.pdf")
	require.NoError(t, err)

	require.NoError(t, repo.MarkFailed(ctx, "player-2", "generation failed"))
	record, err := repo.Get(ctx, "player-2")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, record.Status)
	assert.Equal(t, "generation failed", record.FailureReason)
	assert.Equal(t, "contracts/player-2/a.pdf", record.DocumentKey)

	_, err = repo.MarkGenerated(ctx, "player-2", "alta", "contracts/player-2/b.pdf", "https://x/b.pdf")
	require.NoError(t, err)
	record, _ = repo.Get(ctx, "player-2")
	assert.Equal(t, StatusGenerated, record.Status)
	assert.Empty(t, record.FailureReason)
}

func TestMarkFailedCreatesRecord(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	require.NoError(t, repo.MarkFailed(ctx, "player-3", "generation failed"))
	record, err := repo.Get(ctx, "player-3")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, record.Status)
	assert.Empty(t, record.DocumentKey)
}

func TestGetMissing(t *testing.T) {
	_, err := newTestRepo(t).Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open("oracle", "dsn")
	assert.Error(t, err)
}

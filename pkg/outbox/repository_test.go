package outbox

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/juan12312121/mercado-backend/pkg/db/models"
	"github.com/juan12312121/mercado-backend/pkg/enums"
)

func setupOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func insertOutboxEvent(t *testing.T, db *gorm.DB, repo *Repository, eventType enums.OutboxEventType) models.OutboxEvent {
	t.Helper()
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{"version":1}`),
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, repo.Insert(db, event))
	return event
}

func TestRepositoryFetchUnpublishedSkipsExhaustedAndPublished(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)

	pending := insertOutboxEvent(t, db, repo, enums.EventOrderCreated)
	published := insertOutboxEvent(t, db, repo, enums.EventOrderPaid)
	exhausted := insertOutboxEvent(t, db, repo, enums.EventOrderCancelled)

	require.NoError(t, repo.MarkPublished(published.ID))
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.MarkFailed(exhausted.ID, errors.New("publish timeout")))
	}

	rows, err := repo.FetchUnpublished(10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, pending.ID, rows[0].ID)
}

func TestRepositoryMarkFailedIncrementsAttempts(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)

	event := insertOutboxEvent(t, db, repo, enums.EventOrderCreated)

	require.NoError(t, repo.MarkFailed(event.ID, errors.New("broker unavailable")))
	require.NoError(t, repo.MarkFailed(event.ID, errors.New("broker still unavailable")))

	var row models.OutboxEvent
	require.NoError(t, db.First(&row, "id = ?", event.ID).Error)
	assert.Equal(t, 2, row.AttemptCount)
	require.NotNil(t, row.LastError)
	assert.Equal(t, "broker still unavailable", *row.LastError)
	assert.Nil(t, row.PublishedAt)
}

func TestRepositoryMarkPublishedStampsTimestamp(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)

	event := insertOutboxEvent(t, db, repo, enums.EventOrderPaid)
	require.NoError(t, repo.MarkPublished(event.ID))

	var row models.OutboxEvent
	require.NoError(t, db.First(&row, "id = ?", event.ID).Error)
	require.NotNil(t, row.PublishedAt)

	rows, err := repo.FetchUnpublished(10, 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRepositoryExistsTx(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)

	event := insertOutboxEvent(t, db, repo, enums.EventOrderExpired)

	found, err := repo.ExistsTx(db, event.EventType, event.AggregateType, event.AggregateID)
	require.NoError(t, err)
	assert.True(t, found)

	missing, err := repo.ExistsTx(db, enums.EventOrderPaid, event.AggregateType, event.AggregateID)
	require.NoError(t, err)
	assert.False(t, missing)
}

func TestRepositoryRequiresTransaction(t *testing.T) {
	repo := NewRepository(nil)

	require.Error(t, repo.Insert(nil, models.OutboxEvent{}))

	_, err := repo.ExistsTx(nil, enums.EventOrderPaid, enums.AggregateOrder, uuid.New())
	require.Error(t, err)
}

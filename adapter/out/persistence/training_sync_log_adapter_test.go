package persistence

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"training_server/core/domain"
)

func TestSyncLogRowRoundTrip(t *testing.T) {
	entry := &domain.SyncLogEntry{
		ID:          uuid.New(),
		EventID:     "ev-1",
		Operation:   domain.SyncOperationUpdate,
		Route:       domain.RouteOnPremises,
		ActorID:     "actor",
		Succeeded:   false,
		FailureCode: "BACKEND_TRANSPORT_FAILED",
		Attendees:   []string{"a@corp.local"},
		DurationMs:  42,
		CreatedAt:   time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}

	row := newSyncLogRow(entry)
	assert.True(t, row.FailureCode.Valid)
	assert.False(t, row.FailureMessage.Valid)
	assert.False(t, row.BackendEventID.Valid)

	assert.Equal(t, entry, row.toEntity())
}

func TestSyncLogRowNeverStoresNullAttendees(t *testing.T) {
	row := newSyncLogRow(&domain.SyncLogEntry{EventID: "ev-1"})
	assert.NotNil(t, row.Attendees)
	assert.Empty(t, row.Attendees)
}

// Runs against a real database when TEST_DATABASE_URL is set.
func TestSyncLogAdapterPostgres(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := sqlx.Connect("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	_, err = db.ExecContext(ctx, SyncLogSchema)
	require.NoError(t, err)

	eventID := "ev-" + uuid.NewString()
	adapter := NewSyncLogAdapter(db)
	first := &domain.SyncLogEntry{EventID: eventID, Operation: domain.SyncOperationCreate, Route: domain.RouteCloud, Succeeded: true, BackendEventID: "AAMk-1"}
	require.NoError(t, adapter.Record(ctx, first))
	second := &domain.SyncLogEntry{EventID: eventID, Operation: domain.SyncOperationCancel, Route: domain.RouteCloud, CreatedAt: first.CreatedAt.Add(time.Minute)}
	require.NoError(t, adapter.Record(ctx, second))

	entries, err := adapter.ListByEvent(ctx, eventID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.SyncOperationCancel, entries[0].Operation)
	assert.Equal(t, "AAMk-1", entries[1].BackendEventID)
}

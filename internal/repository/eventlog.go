package repository

import (
	"context"
	"fmt"

	"photo-library-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EventLogRepository reads and prunes the append-only photo event log.
// Appending happens inside PhotoRepository transactions; this repository
// never writes new entries.
type EventLogRepository struct {
	db *pgxpool.Pool
}

// NewEventLogRepository creates a new event log repository
func NewEventLogRepository(db *pgxpool.Pool) *EventLogRepository {
	return &EventLogRepository{db: db}
}

// EventsSince returns every event visible to the user with an event id
// greater than lastSyncedEventID, in ascending order, together with the new
// high-water mark. When the log is empty or the cursor falls outside the
// retained [min, max] range it returns models.ErrResyncRequired: the events
// the client needs were pruned, or the cursor is bogus.
func (r *EventLogRepository) EventsSince(ctx context.Context, userID string, lastSyncedEventID int64) (*models.ChangeSet, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var minEventID, maxEventID *int64
	err = tx.QueryRow(ctx, `SELECT MIN(event_id), MAX(event_id) FROM photos_event_log`).
		Scan(&minEventID, &maxEventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event id range: %w", err)
	}

	if minEventID == nil || maxEventID == nil {
		return nil, models.ErrResyncRequired
	}
	if lastSyncedEventID < *minEventID || lastSyncedEventID > *maxEventID {
		return nil, models.ErrResyncRequired
	}

	query := `
		SELECT event_id, photo_id, data
		FROM photos_event_log
		WHERE event_id > $1 AND (owner IS NULL OR owner = $2)
		ORDER BY event_id
	`
	rows, err := tx.Query(ctx, query, lastSyncedEventID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	var events []models.EventLogEntry
	for rows.Next() {
		var entry models.EventLogEntry
		if err := rows.Scan(&entry.EventID, &entry.PhotoID, &entry.Data); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &models.ChangeSet{HighWaterMark: *maxEventID, Events: events}, nil
}

// MaxEventID returns the current high-water mark, 0 when the log is empty.
func (r *EventLogRepository) MaxEventID(ctx context.Context) (int64, error) {
	var max int64
	err := r.db.QueryRow(ctx, `SELECT COALESCE(MAX(event_id), 0) FROM photos_event_log`).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to get max event id: %w", err)
	}
	return max, nil
}

// DeleteAllButLast prunes the log from the tail, keeping only the most
// recent rowsToKeep entries.
func (r *EventLogRepository) DeleteAllButLast(ctx context.Context, rowsToKeep int) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM photos_event_log
		WHERE event_id <= (SELECT MAX(event_id) FROM photos_event_log) - $1
	`, rowsToKeep)
	if err != nil {
		return fmt.Errorf("failed to prune event log: %w", err)
	}
	return nil
}

package services

import (
	"context"

	"photo-library-backend/internal/models"
)

// SyncService lets clients detect and fetch only what changed since their
// last synchronization point.
type SyncService struct {
	photos PhotoRepo
	events EventLogRepo
}

// NewSyncService creates a new sync service
func NewSyncService(photos PhotoRepo, events EventLogRepo) *SyncService {
	return &SyncService{photos: photos, events: events}
}

// FullSnapshot returns the current high-water mark and every active photo
// visible to the user. Clients anchor incremental syncs on the returned
// mark.
func (s *SyncService) FullSnapshot(ctx context.Context, userID string) (*models.FullSnapshot, error) {
	return s.photos.FullSnapshot(ctx, userID)
}

// IncrementalChanges returns every event visible to the user newer than the
// given cursor, in ascending event id order, plus the new high-water mark.
// Each event carries either a full photo snapshot (upsert) or no data
// (delete). A stale cursor yields models.ErrResyncRequired, which is a
// protocol signal rather than a failure.
func (s *SyncService) IncrementalChanges(ctx context.Context, userID string, lastSyncedEventID int64) (*models.ChangeSet, error) {
	return s.events.EventsSince(ctx, userID, lastSyncedEventID)
}

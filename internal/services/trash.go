package services

import (
	"context"
	"os"
	"time"

	"photo-library-backend/internal/models"
	"photo-library-backend/internal/storage"

	"github.com/rs/zerolog/log"
)

// TrashService soft-deletes and restores photos, and permanently erases
// photos whose soft-delete age exceeded the retention window.
type TrashService struct {
	photos    PhotoRepo
	storage   *storage.Resolver
	notifier  Notifier
	events    EventLogRepo
	clock     Clock
	retention time.Duration
}

// NewTrashService creates a new trash service. notifier may be nil.
func NewTrashService(photos PhotoRepo, events EventLogRepo, storage *storage.Resolver, notifier Notifier, clock Clock, retention time.Duration) *TrashService {
	return &TrashService{
		photos:    photos,
		events:    events,
		storage:   storage,
		notifier:  notifier,
		clock:     clock,
		retention: retention,
	}
}

// Trash soft-deletes a photo. The row stays in the index with trashed_on
// set; the file stays on disk until the retention window elapses.
func (s *TrashService) Trash(ctx context.Context, photoID int64, userID string) (*models.Photo, error) {
	photo, err := s.photos.GetPhoto(ctx, photoID, userID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	photo.TrashedOn = &now
	if err := s.photos.UpdatePhoto(ctx, *photo); err != nil {
		return nil, err
	}

	s.notifyChanged(ctx, photo.Owner)
	return photo, nil
}

// Restore clears the soft-delete marker of a trashed photo.
func (s *TrashService) Restore(ctx context.Context, photoID int64, userID string) (*models.Photo, error) {
	photo, err := s.photos.GetPhoto(ctx, photoID, userID)
	if err != nil {
		return nil, err
	}

	photo.TrashedOn = nil
	if err := s.photos.UpdatePhoto(ctx, *photo); err != nil {
		return nil, err
	}

	s.notifyChanged(ctx, photo.Owner)
	return photo, nil
}

// List returns the user's trashed photos.
func (s *TrashService) List(ctx context.Context, userID string) ([]models.Photo, error) {
	return s.photos.TrashedPhotos(ctx, userID)
}

// CleanupExpired permanently erases every photo trashed longer ago than the
// retention window: preview (best-effort), original file, index row. Each
// photo is its own unit of work, so one failure never rolls back photos
// already fully processed.
func (s *TrashService) CleanupExpired(ctx context.Context) error {
	cutoff := s.clock.Now().Add(-s.retention)
	expired, err := s.photos.ExpiredTrashPhotos(ctx, cutoff)
	if err != nil {
		return err
	}

	for i := range expired {
		photo := &expired[i]

		os.Remove(s.storage.ResolvePreview(photo.PreviewName()))

		photoPath := s.storage.ResolvePhoto(photo.PartialPath())
		if _, err := os.Stat(photoPath); err == nil {
			if err := os.Remove(photoPath); err != nil {
				log.Error().Err(err).Str("path", photoPath).Msg("Failed to remove trashed file")
				continue
			}
			log.Info().Str("path", photoPath).Msg("Removed trashed file")
		} else {
			log.Warn().Str("path", photoPath).Msg("Trashed file is already gone")
		}

		if err := s.photos.DeletePhoto(ctx, *photo); err != nil {
			log.Error().Err(err).Int64("photo_id", photo.ID).Msg("Failed to delete trashed photo row")
		}
	}

	return nil
}

func (s *TrashService) notifyChanged(ctx context.Context, owner *string) {
	if s.notifier == nil {
		return
	}
	highWaterMark, err := s.events.MaxEventID(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read high-water mark for notification")
		return
	}
	s.notifier.LibraryChanged(owner, highWaterMark)
}

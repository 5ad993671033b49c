package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"photo-library-backend/internal/models"
	"photo-library-backend/internal/storage"

	"github.com/rs/zerolog/log"
)

// Renderer produces a preview image for a photo. Render is best-effort:
// on failure the original file is served instead.
type Renderer interface {
	Render(sourcePath, destinationPath string) error
}

// PhotoService handles photo-related business logic: uploads with
// content-hash deduplication, downloads, previews, moves and deletion.
type PhotoService struct {
	photos   PhotoRepo
	hashes   HashRepo
	events   EventLogRepo
	storage  *storage.Resolver
	renderer Renderer
	notifier Notifier
}

// NewPhotoService creates a new photo service. notifier may be nil.
func NewPhotoService(photos PhotoRepo, hashes HashRepo, events EventLogRepo, storage *storage.Resolver, renderer Renderer, notifier Notifier) *PhotoService {
	return &PhotoService{
		photos:   photos,
		hashes:   hashes,
		events:   events,
		storage:  storage,
		renderer: renderer,
		notifier: notifier,
	}
}

// GetPhoto returns a photo visible to the user.
func (s *PhotoService) GetPhoto(ctx context.Context, photoID int64, userID string) (*models.Photo, error) {
	return s.photos.GetPhoto(ctx, photoID, userID)
}

// List returns the user's active library together with the sync high-water
// mark.
func (s *PhotoService) List(ctx context.Context, userID string) (*models.FullSnapshot, error) {
	return s.photos.FullSnapshot(ctx, userID)
}

// Duplicates returns the duplicate groups visible to the user.
func (s *PhotoService) Duplicates(ctx context.Context, userID string) ([][]int64, error) {
	return s.hashes.DuplicateGroups(ctx, userID)
}

// Upload streams the file to temporary storage, computing its content hash
// in the same pass. If a photo with the same hash already exists in the
// target owner scope the upload is a no-op duplicate: the existing photo is
// returned and the temporary file is discarded, so two bit-identical
// uploads never produce two stored copies. The returned bool reports
// whether the upload was deduplicated.
func (s *PhotoService) Upload(ctx context.Context, scope *string, name string, folder *string, capturedAt time.Time, src io.Reader) (models.Photo, bool, error) {
	tmp, err := os.CreateTemp("", "photo-upload-*")
	if err != nil {
		return models.Photo{}, false, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	hasher := NewStreamHasher()
	size, err := io.Copy(io.MultiWriter(tmp, hasher), src)
	closeErr := tmp.Close()
	if err != nil {
		return models.Photo{}, false, fmt.Errorf("failed to write upload: %w", err)
	}
	if closeErr != nil {
		return models.Photo{}, false, fmt.Errorf("failed to write upload: %w", closeErr)
	}
	sum := hasher.Sum()

	existing, err := s.hashes.PhotoWithHash(ctx, scope, sum)
	if err == nil {
		log.Info().
			Int64("photo_id", existing.ID).
			Str("name", name).
			Msg("Upload matches an existing photo, deduplicated")
		return *existing, true, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return models.Photo{}, false, err
	}

	partialPath := models.OwnerDir(scope) + "/" + models.FullName(name, folder)
	destination := s.storage.ResolvePhoto(partialPath)
	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return models.Photo{}, false, fmt.Errorf("failed to create photo directory: %w", err)
	}
	if err := storage.Rename(tmpPath, destination); err != nil {
		return models.Photo{}, false, fmt.Errorf("failed to store upload: %w", err)
	}

	photo, err := s.photos.InsertPhoto(ctx, models.Photo{
		Owner:     scope,
		Name:      name,
		Folder:    folder,
		CreatedAt: capturedAt,
		FileSize:  size,
	})
	if err != nil {
		// Insertion failed, delete the file
		os.Remove(destination)
		return models.Photo{}, false, err
	}

	// The hash is already known from the upload stream; storing it now makes
	// the photo eligible for dedup immediately instead of after the next
	// maintenance cycle.
	if err := s.hashes.UpsertHashes(ctx, []models.PhotoHash{{PhotoID: photo.ID, Hash: sum}}); err != nil {
		log.Error().Err(err).Int64("photo_id", photo.ID).Msg("Failed to store upload hash")
	}

	s.notifyChanged(ctx, scope)
	return photo, false, nil
}

// FilePath resolves the absolute path of a photo's original file.
func (s *PhotoService) FilePath(ctx context.Context, photoID int64, userID string) (string, *models.Photo, error) {
	photo, err := s.photos.GetPhoto(ctx, photoID, userID)
	if err != nil {
		return "", nil, err
	}
	return s.storage.ResolvePhoto(photo.PartialPath()), photo, nil
}

// PreviewPath resolves the absolute path of a photo's preview, rendering it
// on demand. When rendering fails the original file path is returned as a
// fallback.
func (s *PhotoService) PreviewPath(ctx context.Context, photoID int64, userID string) (string, error) {
	photo, err := s.photos.GetPhoto(ctx, photoID, userID)
	if err != nil {
		return "", err
	}

	photoPath := s.storage.ResolvePhoto(photo.PartialPath())
	previewPath := s.storage.ResolvePreview(photo.PreviewName())

	if _, err := os.Stat(previewPath); err == nil {
		return previewPath, nil
	}

	if err := s.renderer.Render(photoPath, previewPath); err != nil {
		log.Error().Err(err).Str("path", photoPath).Msg("Preview generation failed, serving original")
		return photoPath, nil
	}
	return previewPath, nil
}

// Delete permanently removes a photo: its preview (best-effort), its file
// and its index row.
func (s *PhotoService) Delete(ctx context.Context, photoID int64, userID string) error {
	photo, err := s.photos.GetPhoto(ctx, photoID, userID)
	if err != nil {
		return err
	}

	os.Remove(s.storage.ResolvePreview(photo.PreviewName()))

	photoPath := s.storage.ResolvePhoto(photo.PartialPath())
	if _, err := os.Stat(photoPath); err == nil {
		if err := os.Remove(photoPath); err != nil {
			return fmt.Errorf("failed to delete photo file: %w", err)
		}
	}

	if err := s.photos.DeletePhoto(ctx, *photo); err != nil {
		return err
	}

	s.notifyChanged(ctx, photo.Owner)
	return nil
}

// Move changes the path identity of the given photos to the target scope
// and folder, moving the backing files along. Each photo is its own unit of
// work; photos that cannot be moved are skipped and the rest proceed. The
// successfully moved photos are returned.
func (s *PhotoService) Move(ctx context.Context, userID string, photoIDs []int64, makePublic bool, targetFolder *string) ([]models.Photo, error) {
	var targetOwner *string
	if !makePublic {
		targetOwner = &userID
	}

	moved := make([]models.Photo, 0, len(photoIDs))
	for _, photoID := range photoIDs {
		photo, err := s.photos.GetPhoto(ctx, photoID, userID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				continue
			}
			return moved, err
		}

		changed := *photo
		changed.Owner = targetOwner
		changed.Folder = targetFolder

		sourcePath := photo.PartialPath()
		destinationPath := changed.PartialPath()
		if sourcePath == destinationPath {
			log.Warn().Str("path", sourcePath).Msg("Source and destination are the same, photo not moved")
			continue
		}

		err = s.photos.MovePhoto(ctx, changed,
			func() error { return s.storage.MovePhoto(sourcePath, destinationPath) },
			func() error { return s.storage.MovePhoto(destinationPath, sourcePath) },
		)
		if err != nil {
			log.Error().Err(err).Int64("photo_id", photoID).Msg("Failed to move photo")
			continue
		}

		log.Info().Str("from", sourcePath).Str("to", destinationPath).Msg("Moved photo")
		moved = append(moved, changed)
	}

	if len(moved) > 0 {
		s.notifyChanged(ctx, targetOwner)
	}
	return moved, nil
}

// RenameFolder moves every photo of one folder to the target scope and
// folder name.
func (s *PhotoService) RenameFolder(ctx context.Context, userID string, sourceIsPublic bool, sourceFolder string, targetMakePublic bool, targetFolder *string) ([]models.Photo, error) {
	var sourceOwner *string
	if !sourceIsPublic {
		sourceOwner = &userID
	}

	photoIDs, err := s.photos.PhotoIDsInFolder(ctx, sourceOwner, sourceFolder)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("source", models.OwnerDir(sourceOwner)+"/"+sourceFolder).
		Int("count", len(photoIDs)).
		Msg("Moving folder")

	return s.Move(ctx, userID, photoIDs, targetMakePublic, targetFolder)
}

func (s *PhotoService) notifyChanged(ctx context.Context, owner *string) {
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

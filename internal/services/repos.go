package services

import (
	"context"
	"time"

	"photo-library-backend/internal/models"
)

// Repository interfaces consumed by the services. The pgx implementations
// live in internal/repository; tests substitute in-memory fakes.

// PhotoRepo is the photo index. Every mutation appends the matching event
// log entry in the same unit of work.
type PhotoRepo interface {
	GetPhoto(ctx context.Context, id int64, userID string) (*models.Photo, error)
	PhotosByOwner(ctx context.Context, owner *string) ([]models.Photo, error)
	FullSnapshot(ctx context.Context, userID string) (*models.FullSnapshot, error)
	TrashedPhotos(ctx context.Context, userID string) ([]models.Photo, error)
	InsertPhoto(ctx context.Context, photo models.Photo) (models.Photo, error)
	InsertPhotos(ctx context.Context, photos []models.Photo) ([]models.Photo, error)
	UpdatePhoto(ctx context.Context, photo models.Photo) error
	MovePhoto(ctx context.Context, photo models.Photo, moveFile func() error, revertFile func() error) error
	DeletePhoto(ctx context.Context, photo models.Photo) error
	DeletePhotos(ctx context.Context, photoIDs []int64) (int64, error)
	DuplicatePathRows(ctx context.Context) ([]models.Photo, error)
	ExpiredTrashPhotos(ctx context.Context, cutoff time.Time) ([]models.Photo, error)
	PhotosWithoutThumbHash(ctx context.Context) ([]models.Photo, error)
	UpdateThumbHashes(ctx context.Context, batch []models.PhotoThumbHash) error
	PhotoIDsInFolder(ctx context.Context, owner *string, folder string) ([]int64, error)
	AllPhotoIDs(ctx context.Context) ([]int64, error)
}

// EventLogRepo reads and prunes the append-only event log.
type EventLogRepo interface {
	EventsSince(ctx context.Context, userID string, lastSyncedEventID int64) (*models.ChangeSet, error)
	MaxEventID(ctx context.Context) (int64, error)
	DeleteAllButLast(ctx context.Context, rowsToKeep int) error
}

// HashRepo stores content hashes and answers duplicate queries.
type HashRepo interface {
	PhotosWithoutHash(ctx context.Context) ([]models.Photo, error)
	UpsertHashes(ctx context.Context, hashes []models.PhotoHash) error
	PhotoWithHash(ctx context.Context, owner *string, hash []byte) (*models.Photo, error)
	DuplicateGroups(ctx context.Context, userID string) ([][]int64, error)
}

// FavoriteRepo stores per-user favorite markers on photos.
type FavoriteRepo interface {
	FavoritePhotoIDs(ctx context.Context, userID string) ([]int64, error)
	AddFavorite(ctx context.Context, photoID int64, userID string) error
	RemoveFavorite(ctx context.Context, photoID int64, userID string) error
}

// UserRepo stores user accounts.
type UserRepo interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByCode(ctx context.Context, code string) (*models.User, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	ListIDs(ctx context.Context) ([]string, error)
}

// Notifier pushes change notifications to connected clients. Implemented by
// WSHub; a nil Notifier disables notifications.
type Notifier interface {
	LibraryChanged(owner *string, highWaterMark int64)
}

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"photo-library-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const photoColumns = "id, owner, name, folder, created_at, file_size, thumb_hash, trashed_on"

// PhotoRepository handles database operations for photos. Every index
// mutation appends the matching event log row in the same transaction, so
// the log never skips or duplicates an index change.
type PhotoRepository struct {
	db *pgxpool.Pool
}

// NewPhotoRepository creates a new photo repository
func NewPhotoRepository(db *pgxpool.Pool) *PhotoRepository {
	return &PhotoRepository{db: db}
}

// GetPhoto retrieves a photo visible to the given user (owned by them or
// public). Returns models.ErrNotFound when no such photo exists.
func (r *PhotoRepository) GetPhoto(ctx context.Context, id int64, userID string) (*models.Photo, error) {
	query := `
		SELECT ` + photoColumns + `
		FROM photos
		WHERE id = $1 AND (owner IS NULL OR owner = $2)
	`
	photo, err := scanPhotoRow(r.db.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get photo: %w", err)
	}
	return photo, nil
}

// PhotosByOwner retrieves every photo of one owner scope, trashed included.
// A nil owner selects the public scope.
func (r *PhotoRepository) PhotosByOwner(ctx context.Context, owner *string) ([]models.Photo, error) {
	query := `
		SELECT ` + photoColumns + `
		FROM photos
		WHERE (($1::text IS NULL AND owner IS NULL) OR owner = $1)
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to get photos by owner: %w", err)
	}
	return scanPhotos(rows)
}

// FullSnapshot returns the current high-water mark together with every
// active photo visible to the user, captured in one transaction so the two
// cannot drift apart.
func (r *PhotoRepository) FullSnapshot(ctx context.Context, userID string) (*models.FullSnapshot, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Event ids form one global counter, so the mark is deliberately not
	// filtered by owner: an owner-filtered max could fall below the
	// retained minimum after pruning and force a spurious resync, while
	// the global max is always a valid cursor for EventsSince.
	var highWaterMark int64
	err = tx.QueryRow(ctx, `SELECT COALESCE(MAX(event_id), 0) FROM photos_event_log`).Scan(&highWaterMark)
	if err != nil {
		return nil, fmt.Errorf("failed to get high-water mark: %w", err)
	}

	query := `
		SELECT ` + photoColumns + `
		FROM photos
		WHERE (owner IS NULL OR owner = $1) AND trashed_on IS NULL
		ORDER BY created_at DESC
	`
	rows, err := tx.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get photos: %w", err)
	}
	photos, err := scanPhotos(rows)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &models.FullSnapshot{HighWaterMark: highWaterMark, Photos: photos}, nil
}

// TrashedPhotos retrieves the user's soft-deleted photos.
func (r *PhotoRepository) TrashedPhotos(ctx context.Context, userID string) ([]models.Photo, error) {
	query := `
		SELECT ` + photoColumns + `
		FROM photos
		WHERE (owner IS NULL OR owner = $1) AND trashed_on IS NOT NULL
		ORDER BY trashed_on DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get trashed photos: %w", err)
	}
	return scanPhotos(rows)
}

// InsertPhoto creates a single photo. The id of the passed photo is ignored;
// the stored photo is returned.
func (r *PhotoRepository) InsertPhoto(ctx context.Context, photo models.Photo) (models.Photo, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return models.Photo{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO photos (owner, name, folder, created_at, file_size, thumb_hash, trashed_on)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + photoColumns + `
	`
	inserted, err := scanPhotoRow(tx.QueryRow(ctx, query,
		photo.Owner, photo.Name, photo.Folder, photo.CreatedAt,
		photo.FileSize, photo.ThumbHash, photo.TrashedOn,
	))
	if err != nil {
		return models.Photo{}, fmt.Errorf("failed to insert photo: %w", err)
	}

	if err := appendEvent(ctx, tx, inserted.ID, inserted.Owner, inserted); err != nil {
		return models.Photo{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Photo{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return *inserted, nil
}

// InsertPhotos creates a batch of photos in one transaction, appending one
// creation event per photo. Ids of the passed photos are ignored. Callers
// chunk batches to bound statement size.
func (r *PhotoRepository) InsertPhotos(ctx context.Context, photos []models.Photo) ([]models.Photo, error) {
	if len(photos) == 0 {
		return nil, nil
	}

	owners := make([]*string, len(photos))
	names := make([]string, len(photos))
	folders := make([]*string, len(photos))
	createdAts := make([]time.Time, len(photos))
	fileSizes := make([]int64, len(photos))
	for i, p := range photos {
		owners[i] = p.Owner
		names[i] = p.Name
		folders[i] = p.Folder
		createdAts[i] = p.CreatedAt
		fileSizes[i] = p.FileSize
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO photos (owner, name, folder, created_at, file_size)
		SELECT * FROM unnest($1::text[], $2::text[], $3::text[], $4::timestamptz[], $5::bigint[])
		RETURNING ` + photoColumns + `
	`
	rows, err := tx.Query(ctx, query, owners, names, folders, createdAts, fileSizes)
	if err != nil {
		return nil, fmt.Errorf("failed to insert photos: %w", err)
	}
	inserted, err := scanPhotos(rows)
	if err != nil {
		return nil, err
	}

	if err := appendSnapshotEvents(ctx, tx, inserted); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return inserted, nil
}

// UpdatePhoto overwrites a photo row (thumb hash excluded; see
// UpdateThumbHashes) and appends the matching update event.
func (r *PhotoRepository) UpdatePhoto(ctx context.Context, photo models.Photo) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := updatePhotoInTx(ctx, tx, photo); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// MovePhoto applies a path-identity change and the physical file move as
// close to atomically as the filesystem allows: the row update and its
// event are staged in a transaction, the file is moved, and only then is
// the transaction committed. If the commit fails after the file has moved,
// revertFile is invoked to put the file back.
func (r *PhotoRepository) MovePhoto(ctx context.Context, photo models.Photo, moveFile func() error, revertFile func() error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := updatePhotoInTx(ctx, tx, photo); err != nil {
		return err
	}

	if err := moveFile(); err != nil {
		return fmt.Errorf("failed to move photo file: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if revertErr := revertFile(); revertErr != nil {
			log.Error().Err(revertErr).Int64("photo_id", photo.ID).Msg("Failed to move photo file back")
		}
		return fmt.Errorf("failed to commit photo move: %w", err)
	}
	return nil
}

// DeletePhoto removes a photo row and appends its deletion event.
func (r *PhotoRepository) DeletePhoto(ctx context.Context, photo models.Photo) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM photos WHERE id = $1`, photo.ID); err != nil {
		return fmt.Errorf("failed to delete photo: %w", err)
	}
	if err := appendEvent(ctx, tx, photo.ID, photo.Owner, nil); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeletePhotos removes a batch of photo rows in one transaction, appending
// one deletion event per row. Callers chunk batches to bound statement size.
func (r *PhotoRepository) DeletePhotos(ctx context.Context, photoIDs []int64) (int64, error) {
	if len(photoIDs) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Deletion events carry the owner of the row they retire, so they are
	// recorded before the rows disappear.
	_, err = tx.Exec(ctx, `
		INSERT INTO photos_event_log (photo_id, owner, data)
		SELECT id, owner, NULL FROM photos WHERE id = ANY($1)
	`, photoIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to append deletion events: %w", err)
	}

	result, err := tx.Exec(ctx, `DELETE FROM photos WHERE id = ANY($1)`, photoIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to delete photos: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return result.RowsAffected(), nil
}

// DuplicatePathRows returns rows whose path identity collides with an
// earlier row, keeping the earliest id out of the result.
func (r *PhotoRepository) DuplicatePathRows(ctx context.Context) ([]models.Photo, error) {
	query := `
		SELECT ` + photoColumns + `
		FROM photos
		WHERE id NOT IN (
			SELECT MIN(id)
			FROM photos
			GROUP BY owner, folder, name
		)
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get duplicate path rows: %w", err)
	}
	return scanPhotos(rows)
}

// ExpiredTrashPhotos returns photos soft-deleted at or before the cutoff.
func (r *PhotoRepository) ExpiredTrashPhotos(ctx context.Context, cutoff time.Time) ([]models.Photo, error) {
	query := `
		SELECT ` + photoColumns + `
		FROM photos
		WHERE trashed_on IS NOT NULL AND trashed_on <= $1
	`
	rows, err := r.db.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to get expired trash photos: %w", err)
	}
	return scanPhotos(rows)
}

// PhotosWithoutThumbHash returns photos whose thumb hash is still missing.
func (r *PhotoRepository) PhotosWithoutThumbHash(ctx context.Context) ([]models.Photo, error) {
	query := `
		SELECT ` + photoColumns + `
		FROM photos
		WHERE thumb_hash IS NULL
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get photos without thumb hash: %w", err)
	}
	return scanPhotos(rows)
}

// UpdateThumbHashes fills in thumb hashes for a batch of photos, appending
// an update event per photo.
func (r *PhotoRepository) UpdateThumbHashes(ctx context.Context, batch []models.PhotoThumbHash) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	updated := make([]models.Photo, 0, len(batch))
	for _, item := range batch {
		query := `
			UPDATE photos SET thumb_hash = $2 WHERE id = $1
			RETURNING ` + photoColumns + `
		`
		photo, err := scanPhotoRow(tx.QueryRow(ctx, query, item.PhotoID, item.ThumbHash))
		if err != nil {
			return fmt.Errorf("failed to update thumb hash: %w", err)
		}
		updated = append(updated, *photo)
	}

	if err := appendSnapshotEvents(ctx, tx, updated); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// PhotoIDsInFolder returns the ids of all photos in one folder of an owner
// scope.
func (r *PhotoRepository) PhotoIDsInFolder(ctx context.Context, owner *string, folder string) ([]int64, error) {
	query := `
		SELECT id FROM photos
		WHERE (($1::text IS NULL AND owner IS NULL) OR owner = $1) AND folder = $2
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, owner, folder)
	if err != nil {
		return nil, fmt.Errorf("failed to get photos in folder: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan photo id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating photo ids: %w", err)
	}
	return ids, nil
}

// AllPhotoIDs returns every photo id in the index.
func (r *PhotoRepository) AllPhotoIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM photos`)
	if err != nil {
		return nil, fmt.Errorf("failed to get photo ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan photo id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating photo ids: %w", err)
	}
	return ids, nil
}

func updatePhotoInTx(ctx context.Context, tx pgx.Tx, photo models.Photo) error {
	query := `
		UPDATE photos
		SET owner = $2, name = $3, folder = $4, created_at = $5, file_size = $6, trashed_on = $7
		WHERE id = $1
	`
	result, err := tx.Exec(ctx, query,
		photo.ID, photo.Owner, photo.Name, photo.Folder,
		photo.CreatedAt, photo.FileSize, photo.TrashedOn,
	)
	if err != nil {
		return fmt.Errorf("failed to update photo: %w", err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return appendEvent(ctx, tx, photo.ID, photo.Owner, &photo)
}

// appendEvent records one event log row. A nil snapshot marks a deletion.
func appendEvent(ctx context.Context, tx pgx.Tx, photoID int64, owner *string, snapshot *models.Photo) error {
	var data []byte
	if snapshot != nil {
		var err error
		data, err = json.Marshal(snapshot)
		if err != nil {
			return fmt.Errorf("failed to serialize photo snapshot: %w", err)
		}
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO photos_event_log (photo_id, owner, data) VALUES ($1, $2, $3)`,
		photoID, owner, data,
	)
	if err != nil {
		return fmt.Errorf("failed to append event log entry: %w", err)
	}
	return nil
}

func appendSnapshotEvents(ctx context.Context, tx pgx.Tx, photos []models.Photo) error {
	if len(photos) == 0 {
		return nil
	}

	ids := make([]int64, len(photos))
	owners := make([]*string, len(photos))
	snapshots := make([]string, len(photos))
	for i := range photos {
		data, err := json.Marshal(&photos[i])
		if err != nil {
			return fmt.Errorf("failed to serialize photo snapshot: %w", err)
		}
		ids[i] = photos[i].ID
		owners[i] = photos[i].Owner
		snapshots[i] = string(data)
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO photos_event_log (photo_id, owner, data)
		SELECT t.photo_id, t.owner, t.data::jsonb
		FROM unnest($1::bigint[], $2::text[], $3::text[]) AS t (photo_id, owner, data)
	`, ids, owners, snapshots)
	if err != nil {
		return fmt.Errorf("failed to append event log entries: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPhotoRow(row rowScanner) (*models.Photo, error) {
	var photo models.Photo
	err := row.Scan(
		&photo.ID, &photo.Owner, &photo.Name, &photo.Folder,
		&photo.CreatedAt, &photo.FileSize, &photo.ThumbHash, &photo.TrashedOn,
	)
	if err != nil {
		return nil, err
	}
	return &photo, nil
}

func scanPhotos(rows pgx.Rows) ([]models.Photo, error) {
	defer rows.Close()

	var photos []models.Photo
	for rows.Next() {
		photo, err := scanPhotoRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photos = append(photos, *photo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating photos: %w", err)
	}
	return photos, nil
}

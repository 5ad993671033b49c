package repository

import (
	"context"
	"errors"
	"fmt"

	"photo-library-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// HashRepository handles database operations for photo content hashes.
type HashRepository struct {
	db *pgxpool.Pool
}

// NewHashRepository creates a new hash repository
func NewHashRepository(db *pgxpool.Pool) *HashRepository {
	return &HashRepository{db: db}
}

// PhotosWithoutHash returns every non-trashed photo whose content hash has
// not been computed yet.
func (r *HashRepository) PhotosWithoutHash(ctx context.Context) ([]models.Photo, error) {
	query := `
		SELECT p.id, p.owner, p.name, p.folder, p.created_at, p.file_size, p.thumb_hash, p.trashed_on
		FROM photos p
		LEFT JOIN photos_hash h ON p.id = h.photo_id
		WHERE h.hash IS NULL AND p.trashed_on IS NULL
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get photos without hash: %w", err)
	}
	return scanPhotos(rows)
}

// UpsertHashes stores a batch of content hashes, overwriting existing rows.
// Callers chunk batches to bound statement size.
func (r *HashRepository) UpsertHashes(ctx context.Context, hashes []models.PhotoHash) error {
	if len(hashes) == 0 {
		return nil
	}

	ids := make([]int64, len(hashes))
	digests := make([][]byte, len(hashes))
	for i, h := range hashes {
		ids[i] = h.PhotoID
		digests[i] = h.Hash
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO photos_hash (photo_id, hash)
		SELECT * FROM unnest($1::bigint[], $2::bytea[])
		ON CONFLICT (photo_id) DO UPDATE SET hash = EXCLUDED.hash
	`, ids, digests)
	if err != nil {
		return fmt.Errorf("failed to upsert hashes: %w", err)
	}
	return nil
}

// PhotoWithHash looks up a photo in the given owner scope carrying the
// given content hash. Returns models.ErrNotFound when the scope holds no
// such photo.
func (r *HashRepository) PhotoWithHash(ctx context.Context, owner *string, hash []byte) (*models.Photo, error) {
	query := `
		SELECT p.id, p.owner, p.name, p.folder, p.created_at, p.file_size, p.thumb_hash, p.trashed_on
		FROM photos p
		JOIN photos_hash h ON p.id = h.photo_id
		WHERE h.hash = $1 AND (($2::text IS NULL AND p.owner IS NULL) OR p.owner = $2)
		LIMIT 1
	`
	photo, err := scanPhotoRow(r.db.QueryRow(ctx, query, hash, owner))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get photo by hash: %w", err)
	}
	return photo, nil
}

// DuplicateGroups groups the hashed, non-trashed photos visible to the user
// by content hash and returns the groups with more than one member as lists
// of photo ids. Ordering within a group is not part of the contract.
func (r *HashRepository) DuplicateGroups(ctx context.Context, userID string) ([][]int64, error) {
	query := `
		SELECT array_agg(h.photo_id ORDER BY h.photo_id)
		FROM photos_hash h
		JOIN photos p ON p.id = h.photo_id
		WHERE (p.owner IS NULL OR p.owner = $1) AND p.trashed_on IS NULL
		GROUP BY h.hash
		HAVING COUNT(*) > 1
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get duplicate groups: %w", err)
	}
	defer rows.Close()

	var groups [][]int64
	for rows.Next() {
		var ids []int64
		if err := rows.Scan(&ids); err != nil {
			return nil, fmt.Errorf("failed to scan duplicate group: %w", err)
		}
		groups = append(groups, ids)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating duplicate groups: %w", err)
	}
	return groups, nil
}

package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// FavoriteRepository stores per-user favorite markers on photos.
type FavoriteRepository struct {
	db *pgxpool.Pool
}

// NewFavoriteRepository creates a new favorite repository
func NewFavoriteRepository(db *pgxpool.Pool) *FavoriteRepository {
	return &FavoriteRepository{db: db}
}

// FavoritePhotoIDs returns the ids of the photos the user marked as
// favorite, in ascending order.
func (r *FavoriteRepository) FavoritePhotoIDs(ctx context.Context, userID string) ([]int64, error) {
	rows, err := r.db.Query(ctx, `
		SELECT photo_id FROM favorite_photos WHERE user_id = $1 ORDER BY photo_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get favorite photos: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan favorite photo id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating favorite photos: %w", err)
	}
	return ids, nil
}

// AddFavorite marks a photo as favorite for the user. Marking an already
// favorited photo is a no-op. Callers check photo visibility first.
func (r *FavoriteRepository) AddFavorite(ctx context.Context, photoID int64, userID string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO favorite_photos (photo_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, photoID, userID)
	if err != nil {
		return fmt.Errorf("failed to add favorite: %w", err)
	}
	return nil
}

// RemoveFavorite clears the favorite marker. Removing a marker that does
// not exist is a no-op.
func (r *FavoriteRepository) RemoveFavorite(ctx context.Context, photoID int64, userID string) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM favorite_photos WHERE photo_id = $1 AND user_id = $2
	`, photoID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove favorite: %w", err)
	}
	return nil
}

package services

import (
	"context"
)

// FavoriteService manages per-user favorite markers on photos. Markers are
// private to the marking user, even on photos in the shared public scope.
type FavoriteService struct {
	favorites FavoriteRepo
	photos    PhotoRepo
}

// NewFavoriteService creates a new favorite service
func NewFavoriteService(favorites FavoriteRepo, photos PhotoRepo) *FavoriteService {
	return &FavoriteService{favorites: favorites, photos: photos}
}

// List returns the ids of the photos the user marked as favorite.
func (s *FavoriteService) List(ctx context.Context, userID string) ([]int64, error) {
	return s.favorites.FavoritePhotoIDs(ctx, userID)
}

// Add marks a photo as favorite. The photo must be visible to the user;
// marking twice is a no-op.
func (s *FavoriteService) Add(ctx context.Context, photoID int64, userID string) error {
	if _, err := s.photos.GetPhoto(ctx, photoID, userID); err != nil {
		return err
	}
	return s.favorites.AddFavorite(ctx, photoID, userID)
}

// Remove clears the favorite marker. The photo must be visible to the user.
func (s *FavoriteService) Remove(ctx context.Context, photoID int64, userID string) error {
	if _, err := s.photos.GetPhoto(ctx, photoID, userID); err != nil {
		return err
	}
	return s.favorites.RemoveFavorite(ctx, photoID, userID)
}

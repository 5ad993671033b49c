package services

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // previews are stored as JPEG
	"os"

	"photo-library-backend/internal/models"
	"photo-library-backend/internal/storage"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ThumbHashEncoder turns a decoded preview image into a compact placeholder
// hash.
type ThumbHashEncoder interface {
	Encode(img image.Image) ([]byte, error)
}

// ThumbHashService backfills thumb hashes for photos whose rendered preview
// exists. It never renders previews itself; it only catches up on previews
// produced by client-triggered generation.
type ThumbHashService struct {
	photos  PhotoRepo
	storage *storage.Resolver
	encoder ThumbHashEncoder
	workers int
}

// NewThumbHashService creates a new thumb hash service
func NewThumbHashService(photos PhotoRepo, storage *storage.Resolver, encoder ThumbHashEncoder, workers int) *ThumbHashService {
	if workers <= 0 {
		workers = 1
	}
	return &ThumbHashService{photos: photos, storage: storage, encoder: encoder, workers: workers}
}

// Backfill computes thumb hashes for photos that lack one, with the same
// fan-out/fan-in pipeline as content hashing: bounded workers encode, a
// single consumer persists chunk by chunk.
func (s *ThumbHashService) Backfill(ctx context.Context) error {
	photos, err := s.photos.PhotosWithoutThumbHash(ctx)
	if err != nil {
		return err
	}
	if len(photos) == 0 {
		return nil
	}
	log.Info().Int("count", len(photos)).Msg("Computing thumb hashes")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan []models.PhotoThumbHash, 1)
	producers, produceCtx := errgroup.WithContext(ctx)
	producers.SetLimit(s.workers)

	go func() {
		for start := 0; start < len(photos); start += hashChunkSize {
			chunk := photos[start:min(start+hashChunkSize, len(photos))]
			producers.Go(func() error {
				batch := s.encodeChunk(chunk)
				select {
				case results <- batch:
				case <-produceCtx.Done():
				}
				return nil
			})
		}
		producers.Wait() //nolint:errcheck // workers never return errors
		close(results)
	}()

	var updated int
	for batch := range results {
		if err := s.photos.UpdateThumbHashes(ctx, batch); err != nil {
			cancel()
			for range results {
				// drain so the producers can finish
			}
			return fmt.Errorf("failed to persist thumb hashes: %w", err)
		}
		updated += len(batch)
	}

	log.Info().Int("count", updated).Msg("Updated thumb hashes")
	return nil
}

func (s *ThumbHashService) encodeChunk(photos []models.Photo) []models.PhotoThumbHash {
	batch := make([]models.PhotoThumbHash, 0, len(photos))
	for i := range photos {
		previewPath := s.storage.ResolvePreview(photos[i].PreviewName())
		if _, err := os.Stat(previewPath); err != nil {
			// No preview rendered yet; a later cycle will catch up.
			continue
		}

		thumbHash, err := s.encodePreview(previewPath)
		if err != nil {
			log.Error().Err(err).Str("path", previewPath).Msg("Failed to compute thumb hash")
			continue
		}
		batch = append(batch, models.PhotoThumbHash{PhotoID: photos[i].ID, ThumbHash: thumbHash})
	}
	return batch
}

func (s *ThumbHashService) encodePreview(previewPath string) ([]byte, error) {
	f, err := os.Open(previewPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open preview: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode preview: %w", err)
	}
	return s.encoder.Encode(img)
}

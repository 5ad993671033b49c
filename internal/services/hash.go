package services

import (
	"context"
	"crypto/sha256"
	"fmt"
	"hash"
	"io"
	"os"

	"photo-library-backend/internal/models"
	"photo-library-backend/internal/storage"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// HashSize is the number of digest bytes stored per photo. The digest is
// truncated: the key only needs to tell photos of one library apart, not
// resist collisions across the internet, and half-length keys keep the
// hash table small.
const HashSize = 16

const hashChunkSize = 256

// HashFile computes the truncated content digest of the file at path.
func HashFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, fmt.Errorf("failed to hash file: %w", err)
	}
	return h.Sum(nil)[:HashSize], nil
}

// StreamHasher computes the same truncated digest incrementally. The upload
// path writes through it while streaming to temporary storage, so the
// digest costs no second read.
type StreamHasher struct {
	h hash.Hash
}

// NewStreamHasher creates a stream hasher
func NewStreamHasher() *StreamHasher {
	return &StreamHasher{h: sha256.New()}
}

func (s *StreamHasher) Write(p []byte) (int, error) {
	return s.h.Write(p)
}

// Sum returns the truncated digest of everything written so far.
func (s *StreamHasher) Sum() []byte {
	return s.h.Sum(nil)[:HashSize]
}

// HashService assigns content hashes to photos that lack one and surfaces
// duplicate groups.
type HashService struct {
	hashes  HashRepo
	storage *storage.Resolver
	workers int
}

// NewHashService creates a new hash service
func NewHashService(hashes HashRepo, storage *storage.Resolver, workers int) *HashService {
	if workers <= 0 {
		workers = 1
	}
	return &HashService{hashes: hashes, storage: storage, workers: workers}
}

// ComputeMissing hashes every non-trashed photo without a content hash.
// Hashing fans out across a bounded worker pool in chunks; a single
// consumer persists completed chunks. The channel holds at most one
// pending chunk, so producers cannot run ahead of persisted state by more
// than that. A photo that cannot be read is logged and left unhashed for
// the next cycle.
func (s *HashService) ComputeMissing(ctx context.Context) error {
	photos, err := s.hashes.PhotosWithoutHash(ctx)
	if err != nil {
		return err
	}
	if len(photos) == 0 {
		return nil
	}
	log.Info().Int("count", len(photos)).Msg("Computing content hashes")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan []models.PhotoHash, 1)
	producers, produceCtx := errgroup.WithContext(ctx)
	producers.SetLimit(s.workers)

	go func() {
		for start := 0; start < len(photos); start += hashChunkSize {
			chunk := photos[start:min(start+hashChunkSize, len(photos))]
			producers.Go(func() error {
				batch := s.hashChunk(chunk)
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

	var hashed int
	for batch := range results {
		if err := s.hashes.UpsertHashes(ctx, batch); err != nil {
			cancel()
			for range results {
				// drain so the producers can finish
			}
			return fmt.Errorf("failed to persist hashes: %w", err)
		}
		hashed += len(batch)
	}

	log.Info().Int("count", hashed).Msg("Computed content hashes")
	return nil
}

func (s *HashService) hashChunk(photos []models.Photo) []models.PhotoHash {
	batch := make([]models.PhotoHash, 0, len(photos))
	for i := range photos {
		path := s.storage.ResolvePhoto(photos[i].PartialPath())
		sum, err := HashFile(path)
		if err != nil {
			log.Error().Err(err).Str("path", path).Msg("Failed to compute hash")
			continue
		}
		batch = append(batch, models.PhotoHash{PhotoID: photos[i].ID, Hash: sum})
	}
	return batch
}

// DuplicatesForUser returns the groups of photos visible to the user that
// share a content hash, as lists of photo ids.
func (s *HashService) DuplicatesForUser(ctx context.Context, userID string) ([][]int64, error) {
	return s.hashes.DuplicateGroups(ctx, userID)
}

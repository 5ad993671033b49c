package services

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"photo-library-backend/internal/models"
	"photo-library-backend/internal/storage"
	"photo-library-backend/internal/timestamp"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	// Index mutations are applied in chunks to bound single-statement size
	// and lock hold time.
	scanBatchSize = 1000

	// Metadata sidecars living next to media files are never indexed.
	sidecarExtension = ".json"
)

// ScanService converges the photo index toward what is actually present on
// disk, for every owner scope including the public one.
type ScanService struct {
	photos     PhotoRepo
	users      UserRepo
	storage    *storage.Resolver
	timestamps *timestamp.Resolver
	workers    int
}

// NewScanService creates a new scan service
func NewScanService(photos PhotoRepo, users UserRepo, storage *storage.Resolver, timestamps *timestamp.Resolver, workers int) *ScanService {
	if workers <= 0 {
		workers = 1
	}
	return &ScanService{
		photos:     photos,
		users:      users,
		storage:    storage,
		timestamps: timestamps,
		workers:    workers,
	}
}

// ScanAll reconciles every owner scope. Running it twice in a row without
// filesystem changes in between yields zero adds and zero removes on the
// second run.
func (s *ScanService) ScanAll(ctx context.Context) error {
	started := time.Now()

	userIDs, err := s.users.ListIDs(ctx)
	if err != nil {
		return err
	}

	owners := make([]*string, 0, len(userIDs)+1)
	for i := range userIDs {
		owners = append(owners, &userIDs[i])
	}
	owners = append(owners, nil) // the shared public scope

	for _, owner := range owners {
		if err := s.scanOwner(ctx, owner); err != nil {
			return err
		}
	}

	log.Info().Dur("elapsed", time.Since(started)).Msg("Photo scanning completed")
	return nil
}

func (s *ScanService) scanOwner(ctx context.Context, owner *string) error {
	existing, err := s.photos.PhotosByOwner(ctx, owner)
	if err != nil {
		return err
	}

	root := s.storage.ResolvePhoto(models.OwnerDir(owner))
	newPhotos, removedIDs, err := s.diffOwner(ctx, owner, root, existing)
	if err != nil {
		return err
	}

	log.Info().
		Str("owner", models.OwnerDir(owner)).
		Int("new", len(newPhotos)).
		Int("removed", len(removedIDs)).
		Msg("Owner scan finished")

	for start := 0; start < len(removedIDs); start += scanBatchSize {
		chunk := removedIDs[start:min(start+scanBatchSize, len(removedIDs))]
		if _, err := s.photos.DeletePhotos(ctx, chunk); err != nil {
			return err
		}
	}

	for start := 0; start < len(newPhotos); start += scanBatchSize {
		chunk := newPhotos[start:min(start+scanBatchSize, len(newPhotos))]
		if _, err := s.photos.InsertPhotos(ctx, chunk); err != nil {
			return err
		}
	}

	return nil
}

type diskEntry struct {
	name   string
	folder *string
	path   string
	size   int64
}

// diffOwner walks the owner directory tree two levels deep and diffs it
// against the index rows by path-identity key. Identity is purely
// path-based: a file whose bytes changed under a stable path is not
// detected here.
func (s *ScanService) diffOwner(ctx context.Context, owner *string, root string, existing []models.Photo) ([]models.Photo, []int64, error) {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		if mkErr := os.MkdirAll(root, 0o755); mkErr != nil {
			log.Error().Err(mkErr).Str("owner", models.OwnerDir(owner)).Msg("Failed to create owner directory")
		}
		// The whole directory is gone, so every indexed photo is removed.
		removed := make([]int64, len(existing))
		for i := range existing {
			removed[i] = existing[i].ID
		}
		return nil, removed, nil
	}

	entries, err := collectDiskEntries(root)
	if err != nil {
		return nil, nil, err
	}

	var removed []int64
	for i := range existing {
		if _, ok := entries[existing[i].FullName()]; !ok {
			removed = append(removed, existing[i].ID)
		}
	}

	existingKeys := make(map[string]struct{}, len(existing))
	for i := range existing {
		existingKeys[existing[i].FullName()] = struct{}{}
	}

	// Timestamp resolution touches file metadata for every new file, so
	// discovery fans out across workers.
	var (
		mu        sync.Mutex
		newPhotos []models.Photo
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for key, entry := range entries {
		if _, ok := existingKeys[key]; ok {
			continue
		}
		entry := entry
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			photo, ok := s.parseFile(owner, entry)
			if !ok {
				return nil
			}
			mu.Lock()
			newPhotos = append(newPhotos, photo)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	return newPhotos, removed, nil
}

// collectDiskEntries maps path-identity keys to files found at most two
// levels below the owner root. Files at depth one carry no folder; files at
// depth two carry their directory name as the folder. Anything deeper,
// directories themselves, and metadata sidecars are ignored.
func collectDiskEntries(root string) (map[string]diskEntry, error) {
	entries := make(map[string]diskEntry)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Error().Err(err).Str("path", path).Msg("Failed to read directory entry")
			return nil
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		depth := strings.Count(rel, string(filepath.Separator)) + 1

		if d.IsDir() {
			if depth >= 2 {
				return fs.SkipDir
			}
			return nil
		}
		if depth > 2 || strings.EqualFold(filepath.Ext(path), sidecarExtension) {
			return nil
		}

		var folder *string
		if depth == 2 {
			name := filepath.Base(filepath.Dir(path))
			folder = &name
		}

		info, err := d.Info()
		if err != nil {
			log.Error().Err(err).Str("path", path).Msg("Failed to stat file")
			return nil
		}

		entry := diskEntry{name: d.Name(), folder: folder, path: path, size: info.Size()}
		entries[models.FullName(entry.name, entry.folder)] = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// parseFile builds the index row for a newly discovered file. Files whose
// capture time cannot be resolved are skipped, not imported.
func (s *ScanService) parseFile(owner *string, entry diskEntry) (models.Photo, bool) {
	capturedAt, ok := s.timestamps.CaptureTime(entry.path)
	if !ok {
		log.Warn().Str("path", entry.path).Msg("No timestamp could be resolved, skipping file")
		return models.Photo{}, false
	}

	return models.Photo{
		Owner:     owner,
		Name:      entry.name,
		Folder:    entry.folder,
		CreatedAt: capturedAt,
		FileSize:  entry.size,
	}, true
}

package services

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"photo-library-backend/internal/storage"

	"github.com/rs/zerolog/log"
)

// Scheduler drives the periodic maintenance cycle. Phases run strictly in
// sequence; a phase failure is logged and does not block the phases after
// it.
type Scheduler struct {
	scanner *ScanService
	hasher  *HashService
	trash   *TrashService
	thumbs  *ThumbHashService
	photos  PhotoRepo
	events  EventLogRepo
	storage *storage.Resolver

	interval           time.Duration
	eventLogRowsToKeep int
	scanNewFiles       bool

	cancel context.CancelFunc
	done   chan struct{}
}

// SchedulerConfig wires the scheduler's collaborators and knobs.
type SchedulerConfig struct {
	Scanner *ScanService
	Hasher  *HashService
	Trash   *TrashService
	Thumbs  *ThumbHashService
	Photos  PhotoRepo
	Events  EventLogRepo
	Storage *storage.Resolver

	Interval           time.Duration
	EventLogRowsToKeep int
	ScanNewFiles       bool
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	return &Scheduler{
		scanner:            cfg.Scanner,
		hasher:             cfg.Hasher,
		trash:              cfg.Trash,
		thumbs:             cfg.Thumbs,
		photos:             cfg.Photos,
		events:             cfg.Events,
		storage:            cfg.Storage,
		interval:           cfg.Interval,
		eventLogRowsToKeep: cfg.EventLogRowsToKeep,
		scanNewFiles:       cfg.ScanNewFiles,
	}
}

// Start launches the periodic maintenance loop. The first cycle runs
// immediately.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.RunCycle(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunCycle(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for an in-flight cycle to finish.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

// RunCycle executes one full maintenance cycle.
func (s *Scheduler) RunCycle(ctx context.Context) {
	log.Debug().Msg("Maintenance cycle started")

	if s.scanNewFiles {
		if err := s.scanner.ScanAll(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to scan new photos")
		}
	}

	if err := s.cleanupDuplicateRows(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to resolve duplicate index rows")
	}

	if err := s.cleanupOrphanedPreviews(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to delete orphaned previews")
	}

	if err := s.hasher.ComputeMissing(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to compute content hashes")
	}

	if err := s.trash.CleanupExpired(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to clean up expired trash")
	}

	// Thumb hash generation depends on previews already rendered.
	if err := s.thumbs.Backfill(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to backfill thumb hashes")
	}

	// Log retention stays last so no earlier phase's event writes are
	// pruned within the same cycle.
	if err := s.events.DeleteAllButLast(ctx, s.eventLogRowsToKeep); err != nil {
		log.Error().Err(err).Msg("Failed to prune event log")
	}

	log.Debug().Msg("Maintenance cycle finished")
}

// cleanupDuplicateRows deletes index rows whose path identity collides with
// an earlier row. The earliest row wins; the rest are races or bugs.
func (s *Scheduler) cleanupDuplicateRows(ctx context.Context) error {
	duplicates, err := s.photos.DuplicatePathRows(ctx)
	if err != nil {
		return err
	}

	for i := range duplicates {
		log.Info().Str("path", duplicates[i].PartialPath()).Msg("Removing duplicate index row")
		if err := s.photos.DeletePhoto(ctx, duplicates[i]); err != nil {
			return err
		}
	}
	return nil
}

// cleanupOrphanedPreviews deletes preview files whose photo id no longer
// exists in the index.
func (s *Scheduler) cleanupOrphanedPreviews(ctx context.Context) error {
	ids, err := s.photos.AllPhotoIDs(ctx)
	if err != nil {
		return err
	}
	known := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		known[id] = struct{}{}
	}

	var removed int
	err = filepath.WalkDir(s.storage.PreviewsRoot(), func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		stem := strings.TrimSuffix(d.Name(), filepath.Ext(d.Name()))
		photoID, err := strconv.ParseInt(stem, 10, 64)
		if err != nil {
			return nil
		}
		if _, ok := known[photoID]; ok {
			return nil
		}
		if err := os.Remove(path); err == nil {
			removed++
		}
		return nil
	})
	if err != nil {
		return err
	}

	if removed != 0 {
		log.Info().Int("count", removed).Msg("Deleted orphaned previews")
	}
	return nil
}

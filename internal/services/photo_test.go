package services

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photo-library-backend/internal/models"
	"photo-library-backend/internal/storage"
)

// stubRenderer writes a fixed marker file, or fails when err is set.
type stubRenderer struct {
	err error
}

func (r *stubRenderer) Render(_, destinationPath string) error {
	if r.err != nil {
		return r.err
	}
	return os.WriteFile(destinationPath, []byte("preview"), 0o644)
}

type photoFixture struct {
	svc      *PhotoService
	store    *memStore
	resolver *storage.Resolver
	notifier *recordingNotifier
	renderer *stubRenderer
}

func newPhotoFixture(t *testing.T) *photoFixture {
	t.Helper()

	root := t.TempDir()
	resolver, err := storage.NewResolver(filepath.Join(root, "photos"), filepath.Join(root, "previews"))
	require.NoError(t, err)

	store := newMemStore()
	notifier := &recordingNotifier{}
	renderer := &stubRenderer{}
	svc := NewPhotoService(store, store, store, resolver, renderer, notifier)
	return &photoFixture{svc: svc, store: store, resolver: resolver, notifier: notifier, renderer: renderer}
}

func TestUploadStoresFileAndHash(t *testing.T) {
	ctx := context.Background()
	f := newPhotoFixture(t)

	capturedAt := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	content := []byte("original image bytes")

	photo, deduplicated, err := f.svc.Upload(ctx, strPtr("u1"), "a.jpg", nil, capturedAt, bytes.NewReader(content))
	require.NoError(t, err)
	assert.False(t, deduplicated)
	assert.Equal(t, int64(len(content)), photo.FileSize)
	assert.Equal(t, capturedAt, photo.CreatedAt)

	stored, err := os.ReadFile(f.resolver.ResolvePhoto("u1/a.jpg"))
	require.NoError(t, err)
	assert.Equal(t, content, stored)

	f.store.mu.Lock()
	_, hashed := f.store.hashes[photo.ID]
	f.store.mu.Unlock()
	assert.True(t, hashed, "the upload hash is stored immediately")

	assert.NotEmpty(t, f.notifier.Calls(), "clients are notified of the change")
}

func TestUploadDeduplicatesIdenticalContent(t *testing.T) {
	ctx := context.Background()
	f := newPhotoFixture(t)

	content := []byte("the very same bytes")
	first, deduplicated, err := f.svc.Upload(ctx, strPtr("u1"), "a.jpg", nil, time.Now(), bytes.NewReader(content))
	require.NoError(t, err)
	require.False(t, deduplicated)

	second, deduplicated, err := f.svc.Upload(ctx, strPtr("u1"), "copy.jpg", nil, time.Now(), bytes.NewReader(content))
	require.NoError(t, err)

	assert.True(t, deduplicated)
	assert.Equal(t, first.ID, second.ID, "the existing photo is returned")
	assert.NoFileExists(t, f.resolver.ResolvePhoto("u1/copy.jpg"),
		"no second copy is written")

	ids, err := f.store.AllPhotoIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestUploadDedupIsScopedToOwner(t *testing.T) {
	ctx := context.Background()
	f := newPhotoFixture(t)

	content := []byte("shared bytes")
	_, _, err := f.svc.Upload(ctx, strPtr("u1"), "a.jpg", nil, time.Now(), bytes.NewReader(content))
	require.NoError(t, err)

	_, deduplicated, err := f.svc.Upload(ctx, nil, "a.jpg", nil, time.Now(), bytes.NewReader(content))
	require.NoError(t, err)

	assert.False(t, deduplicated,
		"the same bytes in a different owner scope are a distinct photo")
	assert.FileExists(t, f.resolver.ResolvePhoto("public/a.jpg"))
}

func TestPreviewPath(t *testing.T) {
	ctx := context.Background()
	f := newPhotoFixture(t)

	photo, _, err := f.svc.Upload(ctx, strPtr("u1"), "a.jpg", nil, time.Now(), bytes.NewReader([]byte("img")))
	require.NoError(t, err)

	t.Run("renders on demand", func(t *testing.T) {
		path, err := f.svc.PreviewPath(ctx, photo.ID, "u1")
		require.NoError(t, err)
		assert.Equal(t, f.resolver.ResolvePreview(photo.PreviewName()), path)
		assert.FileExists(t, path)
	})

	t.Run("serves cached preview without rendering again", func(t *testing.T) {
		f.renderer.err = errors.New("decoder exploded")
		path, err := f.svc.PreviewPath(ctx, photo.ID, "u1")
		require.NoError(t, err)
		assert.Equal(t, f.resolver.ResolvePreview(photo.PreviewName()), path)
	})

	t.Run("falls back to the original on render failure", func(t *testing.T) {
		require.NoError(t, os.Remove(f.resolver.ResolvePreview(photo.PreviewName())))
		f.renderer.err = errors.New("decoder exploded")

		path, err := f.svc.PreviewPath(ctx, photo.ID, "u1")
		require.NoError(t, err)
		assert.Equal(t, f.resolver.ResolvePhoto(photo.PartialPath()), path)
	})
}

func TestDeleteRemovesEverything(t *testing.T) {
	ctx := context.Background()
	f := newPhotoFixture(t)

	photo, _, err := f.svc.Upload(ctx, strPtr("u1"), "a.jpg", nil, time.Now(), bytes.NewReader([]byte("img")))
	require.NoError(t, err)
	_, err = f.svc.PreviewPath(ctx, photo.ID, "u1")
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, photo.ID, "u1"))

	assert.NoFileExists(t, f.resolver.ResolvePhoto("u1/a.jpg"))
	assert.NoFileExists(t, f.resolver.ResolvePreview(photo.PreviewName()))

	_, err = f.store.GetPhoto(ctx, photo.ID, "u1")
	assert.ErrorIs(t, err, models.ErrNotFound)

	f.store.mu.Lock()
	last := f.store.events[len(f.store.events)-1]
	f.store.mu.Unlock()
	assert.Equal(t, photo.ID, last.photoID)
	assert.Nil(t, last.data, "deletion leaves a tombstone event")
}

func TestMoveChangesPathAndFile(t *testing.T) {
	ctx := context.Background()
	f := newPhotoFixture(t)

	photo, _, err := f.svc.Upload(ctx, strPtr("u1"), "a.jpg", nil, time.Now(), bytes.NewReader([]byte("img")))
	require.NoError(t, err)

	moved, err := f.svc.Move(ctx, "u1", []int64{photo.ID}, true, strPtr("album"))
	require.NoError(t, err)
	require.Len(t, moved, 1)

	assert.Nil(t, moved[0].Owner)
	require.NotNil(t, moved[0].Folder)
	assert.Equal(t, "album", *moved[0].Folder)

	assert.NoFileExists(t, f.resolver.ResolvePhoto("u1/a.jpg"))
	assert.FileExists(t, f.resolver.ResolvePhoto("public/album/a.jpg"))

	// The row reflects the new identity.
	stored, err := f.store.GetPhoto(ctx, photo.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, "public/album/a.jpg", stored.PartialPath())
}

func TestMoveSkipsNoopAndUnknownPhotos(t *testing.T) {
	ctx := context.Background()
	f := newPhotoFixture(t)

	photo, _, err := f.svc.Upload(ctx, strPtr("u1"), "a.jpg", strPtr("album"), time.Now(), bytes.NewReader([]byte("img")))
	require.NoError(t, err)

	moved, err := f.svc.Move(ctx, "u1", []int64{photo.ID, 9999}, false, strPtr("album"))
	require.NoError(t, err)

	assert.Empty(t, moved, "same-path moves and unknown ids are skipped")
	assert.FileExists(t, f.resolver.ResolvePhoto("u1/album/a.jpg"))
}

func TestRenameFolder(t *testing.T) {
	ctx := context.Background()
	f := newPhotoFixture(t)

	_, _, err := f.svc.Upload(ctx, strPtr("u1"), "a.jpg", strPtr("old"), time.Now(), bytes.NewReader([]byte("a")))
	require.NoError(t, err)
	_, _, err = f.svc.Upload(ctx, strPtr("u1"), "b.jpg", strPtr("old"), time.Now(), bytes.NewReader([]byte("b")))
	require.NoError(t, err)
	_, _, err = f.svc.Upload(ctx, strPtr("u1"), "c.jpg", strPtr("other"), time.Now(), bytes.NewReader([]byte("c")))
	require.NoError(t, err)

	moved, err := f.svc.RenameFolder(ctx, "u1", false, "old", false, strPtr("new"))
	require.NoError(t, err)

	assert.Len(t, moved, 2)
	assert.FileExists(t, f.resolver.ResolvePhoto("u1/new/a.jpg"))
	assert.FileExists(t, f.resolver.ResolvePhoto("u1/new/b.jpg"))
	assert.FileExists(t, f.resolver.ResolvePhoto("u1/other/c.jpg"))
	assert.NoFileExists(t, f.resolver.ResolvePhoto("u1/old/a.jpg"))
}

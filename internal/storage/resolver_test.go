package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResolverCreatesRoots(t *testing.T) {
	root := t.TempDir()
	photos := filepath.Join(root, "photos")
	previews := filepath.Join(root, "previews")

	r, err := NewResolver(photos, previews)
	require.NoError(t, err)

	assert.DirExists(t, photos)
	assert.DirExists(t, previews)
	assert.Equal(t, previews, r.PreviewsRoot())
}

func TestResolvePaths(t *testing.T) {
	root := t.TempDir()
	r, err := NewResolver(filepath.Join(root, "photos"), filepath.Join(root, "previews"))
	require.NoError(t, err)

	assert.Equal(t,
		filepath.Join(root, "photos", "u1", "album", "a.jpg"),
		r.ResolvePhoto("u1/album/a.jpg"))
	assert.Equal(t,
		filepath.Join(root, "previews", "42.jpg"),
		r.ResolvePreview("42.jpg"))
}

func TestMovePhotoCreatesDestinationDir(t *testing.T) {
	root := t.TempDir()
	r, err := NewResolver(filepath.Join(root, "photos"), filepath.Join(root, "previews"))
	require.NoError(t, err)

	src := r.ResolvePhoto("u1/a.jpg")
	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0o755))
	require.NoError(t, os.WriteFile(src, []byte("img"), 0o644))

	require.NoError(t, r.MovePhoto("u1/a.jpg", "public/album/a.jpg"))

	assert.NoFileExists(t, src)
	content, err := os.ReadFile(r.ResolvePhoto("public/album/a.jpg"))
	require.NoError(t, err)
	assert.Equal(t, []byte("img"), content)
}

func TestMovePhotoMissingSource(t *testing.T) {
	root := t.TempDir()
	r, err := NewResolver(filepath.Join(root, "photos"), filepath.Join(root, "previews"))
	require.NoError(t, err)

	assert.Error(t, r.MovePhoto("u1/missing.jpg", "public/missing.jpg"))
}

func TestRename(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jpg")
	dst := filepath.Join(dir, "dst.jpg")
	require.NoError(t, os.WriteFile(src, []byte("img"), 0o644))

	require.NoError(t, Rename(src, dst))

	assert.NoFileExists(t, src)
	assert.FileExists(t, dst)
}

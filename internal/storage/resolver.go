// Package storage maps logical photo and preview locations to absolute
// filesystem paths and performs physical file moves.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

// Resolver resolves owner-relative photo paths and preview names against
// the configured library roots. Both roots are created on construction.
type Resolver struct {
	photosRoot   string
	previewsRoot string
}

// NewResolver creates a resolver and ensures both roots exist.
func NewResolver(photosRoot, previewsRoot string) (*Resolver, error) {
	for _, dir := range []string{photosRoot, previewsRoot} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory %s: %w", dir, err)
		}
	}
	return &Resolver{photosRoot: photosRoot, previewsRoot: previewsRoot}, nil
}

// ResolvePhoto returns the absolute path for a photos-root relative path.
func (r *Resolver) ResolvePhoto(partialPath string) string {
	return filepath.Join(r.photosRoot, filepath.FromSlash(partialPath))
}

// ResolvePreview returns the absolute path of a preview file.
func (r *Resolver) ResolvePreview(previewName string) string {
	return filepath.Join(r.previewsRoot, previewName)
}

// PreviewsRoot returns the directory holding rendered previews.
func (r *Resolver) PreviewsRoot() string {
	return r.previewsRoot
}

// MovePhoto moves a photo between two photos-root relative locations,
// creating the destination directory if needed.
func (r *Resolver) MovePhoto(sourcePartial, destinationPartial string) error {
	src := r.ResolvePhoto(sourcePartial)
	dst := r.ResolvePhoto(destinationPartial)

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}
	if err := Rename(src, dst); err != nil {
		return fmt.Errorf("failed to move %s to %s: %w", sourcePartial, destinationPartial, err)
	}
	return nil
}

// Rename renames a file, falling back to copy-and-delete when source and
// destination live on different devices.
func Rename(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}

	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return err
	}

	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

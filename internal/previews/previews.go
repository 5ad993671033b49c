// Package previews renders downscaled JPEG previews for library photos and
// adapts the thumbhash encoder.
package previews

import (
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
)

const jpegQuality = 80

// Generator renders preview images bounded to a maximum edge length.
// Sources that cannot be decoded (e.g. videos) fail; callers fall back to
// serving the original.
type Generator struct {
	maxSize int
}

// NewGenerator creates a generator. maxSize is the longest allowed preview
// edge in pixels.
func NewGenerator(maxSize int) *Generator {
	return &Generator{maxSize: maxSize}
}

// Render decodes the source image, scales it down to fit the configured
// bound and writes it as JPEG to destinationPath.
func (g *Generator) Render(sourcePath, destinationPath string) error {
	in, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer in.Close()

	img, _, err := image.Decode(in)
	if err != nil {
		return fmt.Errorf("failed to decode source: %w", err)
	}

	scaled := g.scale(img)

	if err := os.MkdirAll(filepath.Dir(destinationPath), 0o755); err != nil {
		return fmt.Errorf("failed to create preview directory: %w", err)
	}

	out, err := os.Create(destinationPath)
	if err != nil {
		return fmt.Errorf("failed to create preview: %w", err)
	}

	if err := jpeg.Encode(out, scaled, &jpeg.Options{Quality: jpegQuality}); err != nil {
		out.Close()
		os.Remove(destinationPath)
		return fmt.Errorf("failed to encode preview: %w", err)
	}
	return out.Close()
}

func (g *Generator) scale(img image.Image) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= g.maxSize && height <= g.maxSize {
		return img
	}

	if width > height {
		height = height * g.maxSize / width
		width = g.maxSize
	} else {
		width = width * g.maxSize / height
		height = g.maxSize
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}

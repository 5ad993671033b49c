package previews

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestPNG(t *testing.T, path string, width, height int) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}

	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func decodeConfig(t *testing.T, path string) image.Config {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format, "previews are stored as JPEG")
	return cfg
}

func TestRenderScalesDownLargeImages(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "large.png")
	dst := filepath.Join(dir, "out", "1.jpg")
	writeTestPNG(t, src, 800, 600)

	g := NewGenerator(400)
	require.NoError(t, g.Render(src, dst))

	cfg := decodeConfig(t, dst)
	assert.Equal(t, 400, cfg.Width)
	assert.Equal(t, 300, cfg.Height, "aspect ratio is preserved")
}

func TestRenderKeepsSmallImages(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "small.png")
	dst := filepath.Join(dir, "1.jpg")
	writeTestPNG(t, src, 120, 80)

	g := NewGenerator(400)
	require.NoError(t, g.Render(src, dst))

	cfg := decodeConfig(t, dst)
	assert.Equal(t, 120, cfg.Width)
	assert.Equal(t, 80, cfg.Height)
}

func TestRenderFailsOnUndecodableSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "video.mp4")
	dst := filepath.Join(dir, "1.jpg")
	require.NoError(t, os.WriteFile(src, []byte("definitely not an image"), 0o644))

	g := NewGenerator(400)
	assert.Error(t, g.Render(src, dst))
	assert.NoFileExists(t, dst)
}

func TestThumbHashEncoder(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for x := 0; x < 32; x++ {
		for y := 0; y < 24; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}

	hash, err := ThumbHashEncoder{}.Encode(img)
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
}

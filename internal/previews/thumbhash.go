package previews

import (
	"image"

	"github.com/galdor/go-thumbhash"
)

// ThumbHashEncoder encodes preview images into thumbhash placeholders.
type ThumbHashEncoder struct{}

// Encode encodes a decoded preview image.
func (ThumbHashEncoder) Encode(img image.Image) ([]byte, error) {
	return thumbhash.EncodeImage(img), nil
}

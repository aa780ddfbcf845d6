package forensics

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/ppiankov/claimlens/internal/model"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// maxPixels bounds the decoded size so a small upload cannot expand into gigabytes
const maxPixels = 50_000_000

// Decode decodes any registered image format and reports the format name.
// Undecodable input wraps model.ErrUnsupportedMedia.
func Decode(content []byte) (image.Image, string, error) {
	if len(content) == 0 {
		return nil, "", fmt.Errorf("image content: %w", model.ErrEmptyInput)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", model.ErrUnsupportedMedia, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", fmt.Errorf("%w: empty %s image", model.ErrUnsupportedMedia, format)
	}
	if cfg.Width*cfg.Height > maxPixels {
		return nil, "", fmt.Errorf("image %dx%d exceeds %d pixels: %w", cfg.Width, cfg.Height, maxPixels, model.ErrPayloadTooLarge)
	}

	img, format, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, "", fmt.Errorf("%w: decode %s: %v", model.ErrUnsupportedMedia, format, err)
	}
	return img, format, nil
}

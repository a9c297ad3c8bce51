package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/glowpix/glow/internal/enhance"
	_ "golang.org/x/image/webp"
)

var ErrInvalidImage = errors.New("input is not a decodable image")

// ResultFilename is the fixed name of the enhanced output artifact.
const ResultFilename = "enhanced-photo.png"

// decodeBitmap decodes PNG, JPEG or WebP bytes into an RGBA bitmap. Decoding
// always goes through the stdlib decoders so pixel values are identical on
// every build; only encoding has a govips-accelerated variant.
func decodeBitmap(data []byte) (*enhance.Bitmap, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	bmp, err := enhance.FromImage(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return bmp, nil
}

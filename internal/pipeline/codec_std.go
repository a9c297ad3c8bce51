//go:build !govips || !cgo

package pipeline

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/glowpix/glow/internal/enhance"
)

func Startup() error {
	return nil
}

func Shutdown() {}

// encodeResult serializes the final bitmap as PNG. The result keeps the
// transparent convolution border, so PNG (with alpha) is the only output
// format.
func encodeResult(bmp *enhance.Bitmap) ([]byte, error) {
	var buf bytes.Buffer
	encoder := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := encoder.Encode(&buf, bmp.RGBA()); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

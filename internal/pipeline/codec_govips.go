//go:build govips && cgo

package pipeline

import (
	"fmt"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/glowpix/glow/internal/enhance"
)

var (
	startupOnce sync.Once
	shutdownMu  sync.Mutex
	started     bool
)

func Startup() error {
	startupOnce.Do(func() {
		vips.Startup(&vips.Config{
			MaxCacheFiles: 0,
			MaxCacheMem:   128 * 1024 * 1024,
			MaxCacheSize:  100,
		})

		shutdownMu.Lock()
		started = true
		shutdownMu.Unlock()
	})
	return nil
}

func Shutdown() {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	if !started {
		return
	}
	vips.Shutdown()
	started = false
}

// encodeResult serializes the final bitmap as PNG through libvips. The pixel
// data is handed over untouched; only the compression differs from the
// stdlib build.
func encodeResult(bmp *enhance.Bitmap) ([]byte, error) {
	img, err := vips.NewImageFromMemory(bmp.Pix, bmp.Width, bmp.Height, 4)
	if err != nil {
		return nil, fmt.Errorf("wrap bitmap for encode: %w", err)
	}
	defer img.Close()

	data, _, err := img.ExportPng(vips.NewPngExportParams())
	if err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return data, nil
}

// Package enhance implements the pixel enhancement core: tonal adjustment
// (brightness, contrast, saturation) and Laplacian sharpening over raw RGBA
// buffers. All stages are pure functions; each allocates its own output
// buffer and never mutates its input.
package enhance

import (
	"errors"
	"fmt"
	"image"
)

var ErrInvalidBitmap = errors.New("invalid bitmap")

// Bitmap is a width*height raster of 8-bit RGBA samples in row-major order.
// The buffer length is always exactly width*height*4.
type Bitmap struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewBitmap returns a zeroed bitmap of the given dimensions.
func NewBitmap(width, height int) (*Bitmap, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: dimensions %dx%d", ErrInvalidBitmap, width, height)
	}
	return &Bitmap{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height*4),
	}, nil
}

// FromPix wraps an existing RGBA buffer. The buffer is used directly, not
// copied; callers hand over ownership.
func FromPix(width, height int, pix []uint8) (*Bitmap, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: dimensions %dx%d", ErrInvalidBitmap, width, height)
	}
	if len(pix) != width*height*4 {
		return nil, fmt.Errorf("%w: buffer length %d, want %d", ErrInvalidBitmap, len(pix), width*height*4)
	}
	return &Bitmap{Width: width, Height: height, Pix: pix}, nil
}

// FromImage copies an arbitrary decoded image into a Bitmap.
func FromImage(src image.Image) (*Bitmap, error) {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	bmp, err := NewBitmap(width, height)
	if err != nil {
		return nil, err
	}

	if rgba, ok := src.(*image.RGBA); ok && rgba.Stride == width*4 && bounds.Min == (image.Point{}) {
		copy(bmp.Pix, rgba.Pix)
		return bmp, nil
	}

	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := src.At(x, y).RGBA()
			bmp.Pix[i+0] = uint8(r >> 8)
			bmp.Pix[i+1] = uint8(g >> 8)
			bmp.Pix[i+2] = uint8(b >> 8)
			bmp.Pix[i+3] = uint8(a >> 8)
			i += 4
		}
	}
	return bmp, nil
}

// Clone returns a deep copy.
func (b *Bitmap) Clone() *Bitmap {
	pix := make([]uint8, len(b.Pix))
	copy(pix, b.Pix)
	return &Bitmap{Width: b.Width, Height: b.Height, Pix: pix}
}

// RGBA exposes the bitmap as an image.RGBA sharing the same buffer, for
// handing to the encoders.
func (b *Bitmap) RGBA() *image.RGBA {
	return &image.RGBA{
		Pix:    b.Pix,
		Stride: b.Width * 4,
		Rect:   image.Rect(0, 0, b.Width, b.Height),
	}
}

// At returns the RGBA sample at (x, y). Callers are expected to stay in
// bounds; this is a test and inspection helper, not a hot-path accessor.
func (b *Bitmap) At(x, y int) (r, g, bl, a uint8) {
	i := (y*b.Width + x) * 4
	return b.Pix[i], b.Pix[i+1], b.Pix[i+2], b.Pix[i+3]
}

package enhance

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"testing"
)

func TestNewBitmapRejectsInvalidDimensions(t *testing.T) {
	for _, dims := range [][2]int{{0, 10}, {10, 0}, {-1, 5}} {
		if _, err := NewBitmap(dims[0], dims[1]); !errors.Is(err, ErrInvalidBitmap) {
			t.Fatalf("dimensions %v: expected ErrInvalidBitmap, got %v", dims, err)
		}
	}
}

func TestFromPixValidatesBufferLength(t *testing.T) {
	if _, err := FromPix(2, 2, make([]uint8, 15)); !errors.Is(err, ErrInvalidBitmap) {
		t.Fatalf("expected ErrInvalidBitmap for short buffer, got %v", err)
	}

	bmp, err := FromPix(2, 2, make([]uint8, 16))
	if err != nil {
		t.Fatalf("expected valid buffer to be accepted, got %v", err)
	}
	if bmp.Width != 2 || bmp.Height != 2 {
		t.Fatalf("unexpected dimensions %dx%d", bmp.Width, bmp.Height)
	}
}

func TestFromImageCopiesPixels(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	img.Set(1, 1, color.NRGBA{R: 200, G: 100, B: 50, A: 255})

	bmp, err := FromImage(img)
	if err != nil {
		t.Fatalf("from image: %v", err)
	}

	if r, g, b, a := bmp.At(0, 0); r != 10 || g != 20 || b != 30 || a != 255 {
		t.Fatalf("expected (10,20,30,255), got (%d,%d,%d,%d)", r, g, b, a)
	}
	if r, g, b, _ := bmp.At(1, 1); r != 200 || g != 100 || b != 50 {
		t.Fatalf("expected (200,100,50), got (%d,%d,%d)", r, g, b)
	}
}

func TestFromImageFastPathMatchesSlowPath(t *testing.T) {
	rgba := image.NewRGBA(image.Rect(0, 0, 3, 2))
	for i := range rgba.Pix {
		rgba.Pix[i] = uint8(i * 11)
	}
	// Force full alpha so premultiplied conversion round-trips exactly.
	for i := 3; i < len(rgba.Pix); i += 4 {
		rgba.Pix[i] = 255
	}

	fast, err := FromImage(rgba)
	if err != nil {
		t.Fatalf("from rgba: %v", err)
	}

	shifted := rgba.SubImage(image.Rect(0, 0, 3, 2)).(*image.RGBA)
	shifted.Rect = shifted.Rect.Add(image.Pt(1, 1))
	slow, err := FromImage(shifted)
	if err != nil {
		t.Fatalf("from shifted rgba: %v", err)
	}

	if !bytes.Equal(fast.Pix, slow.Pix) {
		t.Fatal("fast path and generic path disagree")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	bmp, err := NewBitmap(2, 2)
	if err != nil {
		t.Fatalf("new bitmap: %v", err)
	}
	bmp.Pix[0] = 42

	clone := bmp.Clone()
	clone.Pix[0] = 99

	if bmp.Pix[0] != 42 {
		t.Fatalf("clone shares its buffer with the source")
	}
}

func TestRGBASharesBuffer(t *testing.T) {
	bmp, err := NewBitmap(2, 2)
	if err != nil {
		t.Fatalf("new bitmap: %v", err)
	}

	view := bmp.RGBA()
	view.Pix[0] = 77

	if bmp.Pix[0] != 77 {
		t.Fatal("expected RGBA view to share the underlying buffer")
	}
	if view.Stride != 8 || view.Rect.Dx() != 2 || view.Rect.Dy() != 2 {
		t.Fatalf("unexpected view geometry stride=%d bounds=%v", view.Stride, view.Rect)
	}
}

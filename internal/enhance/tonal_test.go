package enhance

import (
	"bytes"
	"testing"
)

func neutralSettings() Settings {
	return Settings{Brightness: 100, Contrast: 100, Sharpness: 100}
}

func uniformBitmap(t *testing.T, w, h int, r, g, b, a uint8) *Bitmap {
	t.Helper()
	bmp, err := NewBitmap(w, h)
	if err != nil {
		t.Fatalf("new bitmap: %v", err)
	}
	for i := 0; i < len(bmp.Pix); i += 4 {
		bmp.Pix[i+0] = r
		bmp.Pix[i+1] = g
		bmp.Pix[i+2] = b
		bmp.Pix[i+3] = a
	}
	return bmp
}

func TestAdjustToneNeutralKeepsGrayExact(t *testing.T) {
	// The saturation matrix weights sum to 1, so grays are fixed points even
	// though the +10% boost is always applied.
	src := uniformBitmap(t, 4, 4, 128, 128, 128, 255)
	out := AdjustTone(src, neutralSettings())

	for i := 0; i < len(out.Pix); i += 4 {
		if out.Pix[i] != 128 || out.Pix[i+1] != 128 || out.Pix[i+2] != 128 {
			t.Fatalf("pixel %d: expected gray 128, got (%d,%d,%d)", i/4, out.Pix[i], out.Pix[i+1], out.Pix[i+2])
		}
		if out.Pix[i+3] != 255 {
			t.Fatalf("pixel %d: expected opaque alpha, got %d", i/4, out.Pix[i+3])
		}
	}
}

func TestAdjustToneNeutralAppliesSaturationBoost(t *testing.T) {
	src := uniformBitmap(t, 2, 2, 100, 150, 200, 255)
	out := AdjustTone(src, neutralSettings())

	r, g, b, _ := out.At(0, 0)
	if r != 96 || g != 151 || b != 206 {
		t.Fatalf("expected saturation-boosted (96,151,206), got (%d,%d,%d)", r, g, b)
	}
}

func TestAdjustToneBrightnessScalesChannels(t *testing.T) {
	src := uniformBitmap(t, 2, 2, 100, 100, 100, 255)
	out := AdjustTone(src, Settings{Brightness: 120, Contrast: 100})

	r, g, b, _ := out.At(1, 1)
	if r != 120 || g != 120 || b != 120 {
		t.Fatalf("expected gray 120 after 120%% brightness, got (%d,%d,%d)", r, g, b)
	}
}

func TestAdjustToneContrastPivotsAboutMidGray(t *testing.T) {
	src := uniformBitmap(t, 2, 2, 100, 100, 100, 255)
	out := AdjustTone(src, Settings{Brightness: 100, Contrast: 120})

	// (100 - 127.5) * 1.2 + 127.5 = 94.5, rounded half away from zero.
	r, _, _, _ := out.At(0, 0)
	if r != 95 {
		t.Fatalf("expected 95 after 120%% contrast, got %d", r)
	}

	mid := uniformBitmap(t, 1, 1, 128, 128, 128, 255)
	outMid := AdjustTone(mid, Settings{Brightness: 100, Contrast: 160})
	if r, _, _, _ := outMid.At(0, 0); r < 127 || r > 129 {
		t.Fatalf("expected mid-gray to stay near the pivot, got %d", r)
	}
}

func TestAdjustToneClampsToChannelRange(t *testing.T) {
	src := uniformBitmap(t, 2, 2, 250, 250, 250, 255)
	out := AdjustTone(src, Settings{Brightness: 140, Contrast: 160})

	if r, g, b, _ := out.At(0, 0); r != 255 || g != 255 || b != 255 {
		t.Fatalf("expected saturated white, got (%d,%d,%d)", r, g, b)
	}

	dark := uniformBitmap(t, 2, 2, 5, 5, 5, 255)
	outDark := AdjustTone(dark, Settings{Brightness: 80, Contrast: 160})
	if r, g, b, _ := outDark.At(0, 0); r != 0 || g != 0 || b != 0 {
		t.Fatalf("expected crushed black, got (%d,%d,%d)", r, g, b)
	}
}

func TestAdjustToneForcesOpaqueAlpha(t *testing.T) {
	src := uniformBitmap(t, 2, 2, 10, 20, 30, 40)
	out := AdjustTone(src, DefaultSettings())

	for i := 3; i < len(out.Pix); i += 4 {
		if out.Pix[i] != 255 {
			t.Fatalf("expected opaque alpha at offset %d, got %d", i, out.Pix[i])
		}
	}
}

func TestAdjustToneDoesNotMutateSource(t *testing.T) {
	src := uniformBitmap(t, 3, 3, 40, 90, 140, 255)
	before := make([]uint8, len(src.Pix))
	copy(before, src.Pix)

	AdjustTone(src, Settings{Brightness: 140, Contrast: 160, Sharpness: 200})

	if !bytes.Equal(before, src.Pix) {
		t.Fatal("tonal stage mutated its source bitmap")
	}
}

func TestAdjustToneClampsWildSettings(t *testing.T) {
	src := uniformBitmap(t, 2, 2, 100, 100, 100, 255)

	// 1000% brightness must behave like the 140% upper bound.
	wild := AdjustTone(src, Settings{Brightness: 1000, Contrast: 100})
	bounded := AdjustTone(src, Settings{Brightness: 140, Contrast: 100})
	if !bytes.Equal(wild.Pix, bounded.Pix) {
		t.Fatal("expected out-of-range brightness to clamp to the upper bound")
	}
}

package enhance

import "math"

// saturationBoost is applied unconditionally by the tonal stage, even when
// brightness and contrast sit at their neutral values.
const saturationBoost = 1.1

// Luminance weights for the saturation matrix (ITU-R BT.709 as used by the
// standard saturate filter primitive).
const (
	lumR = 0.213
	lumG = 0.715
	lumB = 0.072
)

// AdjustTone applies the brightness, contrast and fixed saturation mapping to
// src and returns a new bitmap of identical dimensions. Equivalent to a
// multiplicative brightness filter, then a multiplicative contrast filter
// about the mid-gray pivot, then a +10% saturation matrix, each stage clamped
// to the channel range. Alpha is forced opaque.
func AdjustTone(src *Bitmap, settings Settings) *Bitmap {
	settings = settings.Clamped()

	brightness := float64(settings.Brightness) / 100
	contrast := float64(settings.Contrast) / 100

	out := &Bitmap{
		Width:  src.Width,
		Height: src.Height,
		Pix:    make([]uint8, len(src.Pix)),
	}

	for i := 0; i < len(src.Pix); i += 4 {
		r := float64(src.Pix[i+0]) / 255
		g := float64(src.Pix[i+1]) / 255
		b := float64(src.Pix[i+2]) / 255

		r = clampUnit(r * brightness)
		g = clampUnit(g * brightness)
		b = clampUnit(b * brightness)

		r = clampUnit((r-0.5)*contrast + 0.5)
		g = clampUnit((g-0.5)*contrast + 0.5)
		b = clampUnit((b-0.5)*contrast + 0.5)

		r, g, b = saturate(r, g, b, saturationBoost)

		out.Pix[i+0] = toChannel(r)
		out.Pix[i+1] = toChannel(g)
		out.Pix[i+2] = toChannel(b)
		out.Pix[i+3] = 255
	}

	return out
}

// saturate applies the luminance-weighted saturation matrix. At s=1 it is the
// identity; grays map to themselves for any s because the weights sum to 1.
func saturate(r, g, b, s float64) (float64, float64, float64) {
	outR := (lumR+(1-lumR)*s)*r + (lumG*(1-s))*g + (lumB*(1-s))*b
	outG := (lumR*(1-s))*r + (lumG+(1-lumG)*s)*g + (lumB*(1-s))*b
	outB := (lumR*(1-s))*r + (lumG*(1-s))*g + (lumB+(1-lumB)*s)*b

	return clampUnit(outR), clampUnit(outG), clampUnit(outB)
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func toChannel(v float64) uint8 {
	return uint8(math.Round(v * 255))
}

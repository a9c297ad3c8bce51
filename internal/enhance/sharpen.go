package enhance

import "math"

// Sharpen applies the 3x3 Laplacian sharpening kernel
//
//	 0    -a    0
//	-a  1+4a   -a
//	 0    -a    0
//
// to src and returns a new bitmap of identical dimensions. amount <= 0 is a
// pass-through: the input bitmap is returned unchanged.
//
// Only interior pixels are computed; the one-pixel border is left as the
// zeroed output buffer (transparent black). This matches the historical
// output exactly and downstream reproducibility tests depend on it, so the
// border is deliberately not copied through from the input.
func Sharpen(src *Bitmap, amount float64) *Bitmap {
	if amount <= 0 {
		return src
	}

	out := &Bitmap{
		Width:  src.Width,
		Height: src.Height,
		Pix:    make([]uint8, len(src.Pix)),
	}

	width, height := src.Width, src.Height
	center := 1 + 4*amount
	stride := width * 4

	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			i := y*stride + x*4
			for c := 0; c < 3; c++ {
				sum := center*float64(src.Pix[i+c]) -
					amount*float64(src.Pix[i-stride+c]) -
					amount*float64(src.Pix[i+stride+c]) -
					amount*float64(src.Pix[i-4+c]) -
					amount*float64(src.Pix[i+4+c])
				out.Pix[i+c] = clampChannel(sum)
			}
			out.Pix[i+3] = 255
		}
	}

	return out
}

func clampChannel(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.Round(v))
}

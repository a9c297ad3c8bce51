package enhance

// Settings bounds. Sharpness at or below 100 disables the sharpening stage.
const (
	BrightnessMin = 80
	BrightnessMax = 140
	ContrastMin   = 80
	ContrastMax   = 160
	SharpnessMin  = 100
	SharpnessMax  = 200

	DefaultBrightness = 110
	DefaultContrast   = 120
	DefaultSharpness  = 130
)

// Settings holds the user-tunable enhancement parameters as integer
// percentages. 100 is neutral for every field.
type Settings struct {
	Brightness int `json:"brightness"`
	Contrast   int `json:"contrast"`
	Sharpness  int `json:"sharpness"`
}

func DefaultSettings() Settings {
	return Settings{
		Brightness: DefaultBrightness,
		Contrast:   DefaultContrast,
		Sharpness:  DefaultSharpness,
	}
}

// Clamped returns a copy with every field pinned to its declared domain.
// Out-of-range values clamp to the nearest bound rather than failing.
func (s Settings) Clamped() Settings {
	return Settings{
		Brightness: clampInt(s.Brightness, BrightnessMin, BrightnessMax),
		Contrast:   clampInt(s.Contrast, ContrastMin, ContrastMax),
		Sharpness:  clampInt(s.Sharpness, SharpnessMin, SharpnessMax),
	}
}

// SharpenAmount maps the sharpness percentage onto the kernel weight a in
// [0,1]. Zero or below means the sharpening stage is skipped.
func (s Settings) SharpenAmount() float64 {
	return float64(s.Sharpness-100) / 100
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

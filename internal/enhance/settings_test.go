package enhance

import "testing"

func TestSettingsClampedPinsToBounds(t *testing.T) {
	clamped := Settings{Brightness: 200, Contrast: 10, Sharpness: 50}.Clamped()

	if clamped.Brightness != BrightnessMax {
		t.Fatalf("expected brightness %d, got %d", BrightnessMax, clamped.Brightness)
	}
	if clamped.Contrast != ContrastMin {
		t.Fatalf("expected contrast %d, got %d", ContrastMin, clamped.Contrast)
	}
	if clamped.Sharpness != SharpnessMin {
		t.Fatalf("expected sharpness %d, got %d", SharpnessMin, clamped.Sharpness)
	}
}

func TestSettingsClampedKeepsInRangeValues(t *testing.T) {
	s := Settings{Brightness: 95, Contrast: 150, Sharpness: 175}
	if s.Clamped() != s {
		t.Fatalf("expected in-range settings to pass through, got %+v", s.Clamped())
	}
}

func TestDefaultSettingsAreInRange(t *testing.T) {
	defaults := DefaultSettings()
	if defaults != defaults.Clamped() {
		t.Fatalf("default settings out of range: %+v", defaults)
	}
	if defaults.Brightness != 110 || defaults.Contrast != 120 || defaults.Sharpness != 130 {
		t.Fatalf("unexpected defaults: %+v", defaults)
	}
}

func TestSharpenAmount(t *testing.T) {
	cases := []struct {
		sharpness int
		want      float64
	}{
		{100, 0},
		{130, 0.3},
		{200, 1},
	}
	for _, tc := range cases {
		got := Settings{Sharpness: tc.sharpness}.SharpenAmount()
		if got != tc.want {
			t.Fatalf("sharpness %d: expected amount %v, got %v", tc.sharpness, tc.want, got)
		}
	}
}

package effects

import (
	"math"
	"testing"
)

// TestResolve_ContrastClampsAtFloor drives contrast far negative and checks
// it stops at 0.
func TestResolve_ContrastClampsAtFloor(t *testing.T) {
	base := Defaults(200)
	base.Contrast = 100

	p := Resolve(base, Deltas{Contrast: -200}, 1, 2, 1080, 1920)
	if p.Contrast != 0 {
		t.Errorf("contrast = %v, want clamp at 0", p.Contrast)
	}

	p = Resolve(base, Deltas{Contrast: 200}, 1, 2, 1080, 1920)
	if p.Contrast != 500 {
		t.Errorf("contrast = %v, want 500", p.Contrast)
	}
}

// TestResolve_Clamps covers the per-parameter domains.
func TestResolve_Clamps(t *testing.T) {
	testCases := []struct {
		name  string
		d     Deltas
		level float64
		check func(p Params) (got, want float64)
	}{
		{
			name:  "opacity ceiling",
			d:     Deltas{Opacity: 80},
			level: 1,
			check: func(p Params) (float64, float64) { return p.Opacity, 100 },
		},
		{
			name:  "opacity floor",
			d:     Deltas{Opacity: -300},
			level: 1,
			check: func(p Params) (float64, float64) { return p.Opacity, 0 },
		},
		{
			name:  "saturation floor",
			d:     Deltas{Saturation: -150},
			level: 1,
			check: func(p Params) (float64, float64) { return p.Saturation, 0 },
		},
		{
			name:  "overlay size floor",
			d:     Deltas{OverlaySize: -1000},
			level: 1,
			check: func(p Params) (float64, float64) { return p.Overlay.Size, MinOverlaySize },
		},
		{
			name:  "overlay opacity floor",
			d:     Deltas{OverlayOpacity: -101},
			level: 1,
			check: func(p Params) (float64, float64) { return p.Overlay.Opacity, 0 },
		},
		{
			name:  "char width floor",
			d:     Deltas{Resolution: -500},
			level: 1,
			check: func(p Params) (float64, float64) { return float64(p.CharWidth), MinCharWidth },
		},
		{
			name:  "char width rounds",
			d:     Deltas{Resolution: 25},
			level: 0.5,
			check: func(p Params) (float64, float64) { return float64(p.CharWidth), 213 },
		},
		{
			name:  "brightness is unclamped",
			d:     Deltas{Brightness: 300},
			level: 1,
			check: func(p Params) (float64, float64) { return p.Brightness, 300 },
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := Resolve(Defaults(200), tc.d, tc.level, 1, 1080, 1920)
			got, want := tc.check(p)
			if math.Abs(got-want) > 1e-9 {
				t.Errorf("got %v, want %v", got, want)
			}
		})
	}
}

// TestResolve_DoesNotMutateBase checks the resolver works on a shadow copy,
// so repeated frames never drift from the slider values.
func TestResolve_DoesNotMutateBase(t *testing.T) {
	base := Defaults(120)
	base.Brightness = 10
	base.Hue = 30
	base.Overlay.X = 40
	snapshot := base

	d := Deltas{
		Resolution: 40, Brightness: 50, Contrast: 20, Opacity: -10, Hue: 90, Saturation: 30,
		OverlaySize: 100, OverlayBrightness: 5, OverlayContrast: 5, OverlayOpacity: -5, OverlayX: 108, OverlayY: 192,
	}
	for i := 0; i < 100; i++ {
		Resolve(base, d, float64(i%10)/10, 1.5, 1080, 1920)
	}
	if base != snapshot {
		t.Errorf("base mutated: %+v, want %+v", base, snapshot)
	}

	p := Resolve(base, d, 0, 1, 1080, 1920)
	if p.Brightness != base.Brightness || p.Hue != base.Hue || p.CharWidth != base.CharWidth {
		t.Errorf("level 0 should resolve additive parameters to base: %+v", p)
	}
}

// TestResolve_OverlayOffsetsArePixels checks X/Y deltas are converted from
// pixels to percent of the frame size.
func TestResolve_OverlayOffsetsArePixels(t *testing.T) {
	p := Resolve(Defaults(200), Deltas{OverlayX: 108, OverlayY: 192}, 1, 1, 1080, 1920)
	if math.Abs(p.Overlay.X-60) > 1e-9 || math.Abs(p.Overlay.Y-60) > 1e-9 {
		t.Errorf("overlay position = (%v, %v), want (60, 60)", p.Overlay.X, p.Overlay.Y)
	}
}

// TestResolve_ZeroDeltasPassThrough checks non-reactive parameters keep their
// base values, including a non-neutral contrast.
func TestResolve_ZeroDeltasPassThrough(t *testing.T) {
	base := Defaults(80)
	base.Contrast = 140
	base.Saturation = 20
	base.Vignette = 0.5

	if p := Resolve(base, Deltas{}, 1, 2, 1080, 1920); p != base {
		t.Errorf("zero deltas changed params: %+v", p)
	}
}

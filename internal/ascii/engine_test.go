package ascii

import (
	"image/color"
	"math"
	"testing"
)

func testGrid(w, h int) Grid {
	g := NewGrid(w, h)
	for i := range g.Cells {
		g.Cells[i] = Cell{Glyph: rune('a' + i%26), Color: color.RGBA{R: uint8(i), G: uint8(i * 3), B: uint8(i * 7), A: 255}}
	}
	return g
}

// TestShift_FullWidthIsIdentity checks that rotating by the grid width
// returns the original grid.
func TestShift_FullWidthIsIdentity(t *testing.T) {
	for _, w := range []int{1, 2, 7, 10, 200} {
		g := testGrid(w, 3)
		if !Shift(g, w).Equal(g) {
			t.Errorf("Shift(g, %d) is not the identity", w)
		}
		if !Shift(g, 0).Equal(g) {
			t.Errorf("Shift(g, 0) is not the identity for width %d", w)
		}
	}
}

// TestShift_GroupProperty checks that shifting by k then by width-k
// restores the grid for every k.
func TestShift_GroupProperty(t *testing.T) {
	const w = 12
	g := testGrid(w, 4)
	for k := 0; k <= w; k++ {
		back := Shift(Shift(g, k), w-k)
		if !back.Equal(g) {
			t.Errorf("Shift(Shift(g, %d), %d) did not restore the grid", k, w-k)
		}
	}
	if !Shift(g, -3).Equal(Shift(g, w-3)) {
		t.Error("negative shift should equal its positive modular equivalent")
	}
}

// TestShift_SourceColumn verifies the direction of rotation: output column x
// reads input column (x - k) mod width.
func TestShift_SourceColumn(t *testing.T) {
	g := testGrid(5, 1)
	s := Shift(g, 2)
	for x := 0; x < 5; x++ {
		want := g.At((x-2+5)%5, 0)
		if s.At(x, 0) != want {
			t.Errorf("column %d = %v, want %v", x, s.At(x, 0), want)
		}
	}
}

// TestDither_ContrastSpreadMonotonic verifies that raising dither contrast
// with sensitivity held fixed never narrows the spread between the darkest
// and brightest buckets across a fixed image.
func TestDither_ContrastSpreadMonotonic(t *testing.T) {
	img := gradientImage(64, 8)
	const gw, gh = 16, 4
	l := newLayout(img, gw, gh)

	spread := func(contrast float64) int {
		lo, hi := NumBuckets, -1
		for cy := 0; cy < gh; cy++ {
			for cx := 0; cx < gw; cx++ {
				px, py := l.origin(cx, cy)
				s := l.sample(img, px, py)
				b := BucketIndex(DitherBrightness(s.Brightness, cx, cy, 0.3, contrast))
				lo, hi = min(lo, b), max(hi, b)
			}
		}
		return hi - lo
	}

	prev := -1
	for _, c := range []float64{0, 0.1, 0.25, 0.5, 0.75, 1, 1.5, 2, 3, 5} {
		s := spread(c)
		t.Logf("contrast %.2f: bucket spread %d", c, s)
		if s < prev {
			t.Errorf("spread fell from %d to %d at contrast %.2f", prev, s, c)
		}
		prev = s
	}
}

func TestDitherBrightness_Clamps(t *testing.T) {
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			for _, b := range []float64{0, 0.2, 0.5, 0.8, 1} {
				v := DitherBrightness(b, x, y, 1, 4)
				if v < 0 || v > 1 {
					t.Fatalf("DitherBrightness(%v) at (%d,%d) = %v, outside [0,1]", b, x, y, v)
				}
			}
		}
	}
	if got := BayerThreshold(4, 4); got != 0 {
		t.Errorf("Bayer matrix should tile every 4 cells, got %v at (4,4)", got)
	}
}

// TestEngine_ScrollWrapsAfterFullCycle is the scroll scenario: at
// charWidth 10, frame 10 reproduces the frame-0 grid.
func TestEngine_ScrollWrapsAfterFullCycle(t *testing.T) {
	img := gradientImage(1, 1080)
	e := &Engine{Mode: Scroll, Palette: DefaultPalette(), Rand: newTestRand()}
	fc := FrameContext{CharWidth: 10, CharHeight: 40, Aspect: 1.0 / 1080}

	g0, _ := e.Generate(img, fc)
	fc.Frame = 10
	g10, _ := e.Generate(img, fc)
	if !g10.Equal(g0) {
		t.Error("frame 10 grid differs from frame 0 grid at charWidth 10")
	}
}

// TestEngine_ScrollRotatesCachedBase checks intermediate frames are pure
// rotations of the cached base rather than fresh conversions.
func TestEngine_ScrollRotatesCachedBase(t *testing.T) {
	img := gradientImage(80, 20)
	e := &Engine{Mode: Scroll, Palette: DefaultPalette(), Rand: newTestRand()}
	fc := FrameContext{CharWidth: 16, CharHeight: 4}

	base, _ := e.Generate(img, fc)
	fc.Frame = 3
	g3, _ := e.Generate(img, fc)
	if !g3.Equal(Shift(base, 3)) {
		t.Error("frame 3 is not the base grid shifted by 3")
	}
}

// TestEngine_GlitchZeroIntensityMatchesOriginal checks that with no glitch
// probability every cell samples its own region, so output equals Original
// for the same random seed.
func TestEngine_GlitchZeroIntensityMatchesOriginal(t *testing.T) {
	img := gradientImage(120, 60)
	fc := FrameContext{CharWidth: 24, CharHeight: 12, Regenerate: true}

	orig := &Engine{Mode: Original, Palette: DefaultPalette(), Rand: newTestRand()}
	glitch := &Engine{Mode: Glitch, Palette: DefaultPalette(), Rand: newTestRand(), GlitchIntensity: 0}

	for frame := 0; frame < 5; frame++ {
		fc.Frame = frame
		a, _ := orig.Generate(img, fc)
		b, _ := glitch.Generate(img, fc)
		if !a.Equal(b) {
			t.Fatalf("frame %d: glitch at intensity 0 differs from original", frame)
		}
	}
}

// TestEngine_GlitchDisplacesSomeCells checks that at high intensity the
// displacement field varies by frame.
func TestEngine_GlitchDisplacesSomeCells(t *testing.T) {
	const w, h = 40, 20
	displaced := func(frame int) int {
		n := 0
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if GlitchDisplaced(x, y, w, frame, 10) {
					n++
				}
			}
		}
		return n
	}
	a, b := displaced(1), displaced(2)
	if a == 0 || b == 0 {
		t.Errorf("expected displaced cells at intensity 10, got %d and %d", a, b)
	}
	if GlitchDisplaced(3, 4, w, 7, 0) {
		t.Error("intensity 0 must never displace")
	}
}

func TestZoomWidth(t *testing.T) {
	testCases := []struct {
		progress float64
		want     int
	}{
		{progress: 0, want: 10},
		{progress: 0.5, want: 300},
		{progress: 1.0 / 6, want: 155}, // sin(pi/6) = 0.5
	}
	for _, tc := range testCases {
		if got := ZoomWidth(tc.progress, 10, 300); got != tc.want {
			t.Errorf("ZoomWidth(%.3f) = %d, want %d", tc.progress, got, tc.want)
		}
	}
}

// TestEngine_ZoomDerivesHeightFromAspect checks the zoom grid follows the
// pulse width and the source aspect ratio.
func TestEngine_ZoomDerivesHeightFromAspect(t *testing.T) {
	img := gradientImage(200, 100)
	e := &Engine{Mode: Zoom, Palette: DefaultPalette(), Rand: newTestRand(), ZoomMin: 10, ZoomMax: 60}

	g, wave := e.Generate(img, FrameContext{Phase: 0.5, Aspect: 2, CharWidth: 30, CharHeight: 10})
	if g.Width != 60 || g.Height != 30 {
		t.Errorf("zoom grid = %dx%d, want 60x30", g.Width, g.Height)
	}
	if wave != (FlagWave{}) {
		t.Errorf("zoom mode returned a flag wave: %+v", wave)
	}
}

func TestFlagWave_Offset(t *testing.T) {
	if off := (FlagWave{}).Offset(12); off != 0 {
		t.Errorf("zero wave offset = %v, want 0", off)
	}

	w := NewFlagWave(30, 1, 0.25)
	// sin(pi/2)*1 + sin((0 + pi/2)/2)*1
	want := 1 + math.Sin(math.Pi/4)
	if got := w.Offset(0); math.Abs(got-want) > 1e-12 {
		t.Errorf("Offset(0) = %v, want %v", got, want)
	}
	if w.Offset(0) == w.Offset(15) {
		t.Error("offset should vary along the row")
	}
}

// TestEngine_FlagCachesGrid checks that Flag mode reuses its base grid and
// only the wave phase changes between frames.
func TestEngine_FlagCachesGrid(t *testing.T) {
	img := gradientImage(64, 32)
	e := &Engine{Mode: Flag, Palette: DefaultPalette(), Rand: newTestRand(), FlagDistance: 20, FlagSpeed: 1}
	fc := FrameContext{CharWidth: 16, CharHeight: 8}

	g0, w0 := e.Generate(img, fc)
	fc.Frame, fc.Phase = 5, 0.3
	g5, w5 := e.Generate(img, fc)
	if !g0.Equal(g5) {
		t.Error("flag grid changed between frames")
	}
	if w0.Phase == w5.Phase {
		t.Error("flag wave phase did not advance")
	}
}

// TestEngine_OriginalRegenerate checks Original mode reuses its grid when
// the frame is not due for regeneration.
func TestEngine_OriginalRegenerate(t *testing.T) {
	img := gradientImage(64, 32)
	e := &Engine{Mode: Original, Palette: DefaultPalette(), Rand: newTestRand()}
	fc := FrameContext{CharWidth: 16, CharHeight: 8, Regenerate: true}

	first, _ := e.Generate(img, fc)
	fc.Regenerate = false
	held, _ := e.Generate(img, fc)
	if !held.Equal(first) {
		t.Error("original mode regenerated on a held frame")
	}

	e.SetMode(Dither)
	e.SetMode(Original)
	fresh, _ := e.Generate(img, fc)
	if fresh.Width != 16 || fresh.Height != 8 {
		t.Errorf("grid after mode switch = %dx%d, want 16x8", fresh.Width, fresh.Height)
	}
}

// TestEngine_DitherRedrawsGlyphs checks Dither picks fresh glyphs on every
// regenerated frame and holds its grid otherwise.
func TestEngine_DitherRedrawsGlyphs(t *testing.T) {
	img := solidImage(64, 32, color.RGBA{R: 180, G: 180, B: 180, A: 255})
	e := &Engine{Mode: Dither, Palette: DefaultPalette(), Rand: newTestRand(), DitherSensitivity: 0.3, DitherContrast: 1}
	fc := FrameContext{CharWidth: 16, CharHeight: 8, Regenerate: true}

	first, _ := e.Generate(img, fc)
	fc.Frame = 1
	second, _ := e.Generate(img, fc)
	if first.Equal(second) {
		t.Error("dither grid identical across regenerated frames")
	}

	fc.Frame, fc.Regenerate = 2, false
	held, _ := e.Generate(img, fc)
	if !held.Equal(second) {
		t.Error("dither regenerated on a held frame")
	}
}

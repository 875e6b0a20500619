package ascii

import (
	"image"
	"math"
	"math/rand/v2"
)

// FrameContext carries everything about the current frame that the engine
// needs beyond its own configuration.
type FrameContext struct {
	Frame      int     // effective frame index, drives Scroll and Glitch
	CharWidth  int     // grid width after audio modulation
	CharHeight int     // grid height derived from the font metrics
	Aspect     float64 // source width / height, used by Zoom
	Phase      float64 // cycle progress in [0,1) for Zoom and Flag
	Regenerate bool    // Original and Dither reconvert only when set
	Source     uint64  // bumps whenever the source pixels change
}

// Engine generates one grid per frame for the selected mode. It caches base
// grids between frames and must be driven from a single goroutine.
type Engine struct {
	Mode    Mode
	Palette *Palette
	Rand    *rand.Rand

	ZoomMin, ZoomMax  int
	FlagDistance      float64
	FlagSpeed         float64
	DitherSensitivity float64
	DitherContrast    float64
	GlitchIntensity   float64

	cached   Grid
	cacheKey cacheKey
	hasCache bool
}

type cacheKey struct {
	mode   Mode
	w, h   int
	source uint64
}

// Invalidate drops cached grids. Call it after changing the palette.
func (e *Engine) Invalidate() {
	e.hasCache = false
	e.cached = Grid{}
}

// SetMode switches mode and drops any cached grid.
func (e *Engine) SetMode(m Mode) {
	if m != e.Mode {
		e.Mode = m
		e.Invalidate()
	}
}

func (e *Engine) cachedFor(k cacheKey) (Grid, bool) {
	if e.hasCache && e.cacheKey == k {
		return e.cached, true
	}
	return Grid{}, false
}

func (e *Engine) store(k cacheKey, g Grid) {
	e.cached, e.cacheKey, e.hasCache = g, k, true
}

// Generate produces the grid for one frame. For Flag mode the returned wave
// must be applied when drawing; every other mode returns the zero wave.
func (e *Engine) Generate(src *image.RGBA, fc FrameContext) (Grid, FlagWave) {
	w, h := fc.CharWidth, fc.CharHeight
	key := cacheKey{mode: e.Mode, w: w, h: h, source: fc.Source}

	switch e.Mode {
	case Scroll:
		base, ok := e.cachedFor(key)
		if !ok {
			base = Convert(src, w, h, e.Palette, e.Rand)
			e.store(key, base)
		}
		return Shift(base, fc.Frame%max(w, 1)), FlagWave{}

	case Zoom:
		zw := ZoomWidth(fc.Phase, e.ZoomMin, e.ZoomMax)
		zw = max(zw, 1)
		aspect := fc.Aspect
		if aspect <= 0 {
			aspect = 1
		}
		zh := max(int(math.Round(float64(zw)/aspect)), 1)
		return Convert(src, zw, zh, e.Palette, e.Rand), FlagWave{}

	case Flag:
		base, ok := e.cachedFor(key)
		if !ok {
			base = Convert(src, w, h, e.Palette, e.Rand)
			e.store(key, base)
		}
		return base, NewFlagWave(e.FlagDistance, e.FlagSpeed, fc.Phase)

	case Dither:
		// Reconverted like Original so the glyph noise keeps moving
		if !fc.Regenerate {
			if g, ok := e.cachedFor(key); ok {
				return g, FlagWave{}
			}
		}
		g := ConvertDither(src, w, h, e.Palette, e.Rand, e.DitherSensitivity, e.DitherContrast)
		e.store(key, g)
		return g, FlagWave{}

	case Glitch:
		return ConvertGlitch(src, w, h, e.Palette, e.Rand, fc.Frame, e.GlitchIntensity), FlagWave{}

	default:
		if !fc.Regenerate {
			if g, ok := e.cachedFor(key); ok {
				return g, FlagWave{}
			}
		}
		g := Convert(src, w, h, e.Palette, e.Rand)
		e.store(key, g)
		return g, FlagWave{}
	}
}

package pipeline

import (
	"fmt"
	"image"
	"math/rand/v2"

	"github.com/golang/freetype/truetype"
	"github.com/linuxmatters/asciifire/internal/ascii"
	"github.com/linuxmatters/asciifire/internal/config"
	"github.com/linuxmatters/asciifire/internal/effects"
	"github.com/linuxmatters/asciifire/internal/renderer"
	"github.com/linuxmatters/asciifire/internal/timing"
)

// Renderer owns the mutable per-session render state: the engine caches,
// the random source, the compositor and the current source image. Each
// driver (preview, export, SSH session) owns its own Renderer and drives it
// from one goroutine.
type Renderer struct {
	Base        effects.Params
	Deltas      effects.Deltas
	Sensitivity float64
	Clock       timing.Clock

	settings   config.Settings
	width      int
	height     int
	engine     *ascii.Engine
	compositor *renderer.Compositor
	pcg        *rand.PCG

	src    *image.RGBA
	srcGen uint64
}

// Step is the outcome of one frame before compositing.
type Step struct {
	Tick   timing.Tick
	Params effects.Params
	Grid   ascii.Grid
	Wave   ascii.FlagWave
	Level  float64
}

// NewPalette builds the glyph palette described by s.
func NewPalette(s config.Settings) (*ascii.Palette, error) {
	pal := ascii.DefaultPalette()
	for i, glyphs := range s.Buckets {
		if err := pal.SetBucket(i, glyphs); err != nil {
			return nil, err
		}
	}
	pal.SetCustom(s.CustomChars)
	return pal, nil
}

// NewRenderer builds a renderer producing width×height frames. font may be
// nil when only grids are needed.
func NewRenderer(s config.Settings, font *truetype.Font, width, height int) (*Renderer, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	mode, err := ascii.ParseMode(s.Mode)
	if err != nil {
		return nil, err
	}
	pal, err := NewPalette(s)
	if err != nil {
		return nil, err
	}

	pcg := rand.NewPCG(s.Seed, s.Seed)
	r := &Renderer{
		Base:        effects.Defaults(s.CharWidth),
		Deltas:      effects.DefaultDeltas(),
		Sensitivity: config.Sensitivity,
		Clock: timing.Clock{
			FPS:        s.PreviewFPS,
			PreviewFPS: s.PreviewFPS,
			Cycle:      config.AnimationCycle,
		},
		settings: s,
		pcg:      pcg,
		engine: &ascii.Engine{
			Mode:              mode,
			Palette:           pal,
			Rand:              rand.New(pcg),
			ZoomMin:           s.ZoomMin,
			ZoomMax:           s.ZoomMax,
			FlagDistance:      s.FlagDistance,
			FlagSpeed:         s.FlagSpeed,
			DitherSensitivity: s.DitherSensitivity,
			DitherContrast:    s.DitherContrast,
			GlitchIntensity:   s.GlitchIntensity,
		},
	}
	if font != nil {
		r.compositor = renderer.NewCompositor(font)
		r.compositor.FixedFontSize = s.FontSize
		if s.Background != nil {
			br, bg, bb := s.BackgroundColor()
			r.compositor.Background.R, r.compositor.Background.G, r.compositor.Background.B = br, bg, bb
		}
	}
	r.Resize(width, height)
	return r, nil
}

// Resize changes the output frame size.
func (r *Renderer) Resize(width, height int) {
	r.width, r.height = max(1, width), max(1, height)
}

// Size returns the output frame size.
func (r *Renderer) Size() (int, int) { return r.width, r.height }

// Mode returns the active animation mode.
func (r *Renderer) Mode() ascii.Mode { return r.engine.Mode }

// SetMode switches animation mode.
func (r *Renderer) SetMode(m ascii.Mode) { r.engine.SetMode(m) }

// Palette returns the live palette. Call InvalidateGrids after changing it.
func (r *Renderer) Palette() *ascii.Palette { return r.engine.Palette }

// InvalidateGrids drops cached grids so the next frame reconverts.
func (r *Renderer) InvalidateGrids() { r.engine.Invalidate() }

// SetSource installs the image frames are converted from. gen must change
// whenever the pixels change.
func (r *Renderer) SetSource(img *image.RGBA, gen uint64) {
	r.src, r.srcGen = img, gen
}

// SetOverlay installs the overlay image; nil removes it.
func (r *Renderer) SetOverlay(img image.Image) {
	if r.compositor != nil {
		r.compositor.SetOverlay(img)
	}
}

// Aspect returns the source aspect ratio, or 1 without a source.
func (r *Renderer) Aspect() float64 {
	if r.src == nil || r.src.Rect.Dy() == 0 {
		return 1
	}
	return float64(r.src.Rect.Dx()) / float64(r.src.Rect.Dy())
}

// OutputHeight is the frame height for width at the source aspect.
func (r *Renderer) OutputHeight(width int) int {
	h := int(float64(width)/r.Aspect() + 0.5)
	return max(2, h+h%2)
}

func (r *Renderer) reseed(frameIndex int) {
	if r.settings.Deterministic {
		r.pcg.Seed(r.settings.Seed, uint64(frameIndex))
	}
}

// StepGrid runs the timing, resolver and engine for one frame, sizing the
// grid from the frame's font metrics.
func (r *Renderer) StepGrid(frameIndex int, level float64) Step {
	tick := r.Clock.At(frameIndex)
	p := effects.Resolve(r.Base, r.Deltas, level, r.Sensitivity, r.width, r.height)

	fixed := 0
	if r.compositor != nil {
		fixed = r.compositor.FixedFontSize
	}
	fontSize := renderer.FontSize(r.width, p.CharWidth, fixed)
	rows := renderer.GridHeight(r.height, fontSize)
	return r.step(tick, p, p.CharWidth, rows, level)
}

// StepText runs one frame with the grid pinned to cols×rows terminal cells.
func (r *Renderer) StepText(frameIndex int, level float64, cols, rows int) Step {
	tick := r.Clock.At(frameIndex)
	p := effects.Resolve(r.Base, r.Deltas, level, r.Sensitivity, r.width, r.height)
	p.CharWidth = max(1, cols)
	return r.step(tick, p, p.CharWidth, max(1, rows), level)
}

func (r *Renderer) step(tick timing.Tick, p effects.Params, cols, rows int, level float64) Step {
	r.reseed(tick.Index)
	st := Step{Tick: tick, Params: p, Level: level}
	if r.src == nil {
		st.Grid = ascii.NewGrid(0, 0)
		return st
	}
	st.Grid, st.Wave = r.engine.Generate(r.src, ascii.FrameContext{
		Frame:      tick.Effective,
		CharWidth:  cols,
		CharHeight: rows,
		Aspect:     r.Aspect(),
		Phase:      tick.Phase,
		Regenerate: tick.Regenerate,
		Source:     r.srcGen,
	})
	// Zoom sizes its own grid; glyphs must follow it
	st.Params.CharWidth = max(1, st.Grid.Width)
	return st
}

// RenderFrame produces the composited frame for frameIndex at the given
// audio level. The caller releases the frame.
func (r *Renderer) RenderFrame(frameIndex int, level float64) (*renderer.Frame, Step, error) {
	if r.compositor == nil {
		return nil, Step{}, fmt.Errorf("renderer has no font")
	}
	st := r.StepGrid(frameIndex, level)
	f := renderer.NewFrame(r.width, r.height)
	r.compositor.Draw(f.Image(), st.Grid, st.Wave, st.Params)
	return f, st, nil
}

// Close releases compositor caches.
func (r *Renderer) Close() error {
	if r.compositor != nil {
		return r.compositor.Close()
	}
	return nil
}

// Background returns the frame background colour.
func (r *Renderer) Background() (uint8, uint8, uint8) {
	return r.settings.BackgroundColor()
}

package renderer

import (
	"image"
	"image/color"
	"math"

	"github.com/golang/freetype/truetype"
	"github.com/linuxmatters/asciifire/internal/ascii"
	"github.com/linuxmatters/asciifire/internal/config"
	"github.com/linuxmatters/asciifire/internal/effects"
	"golang.org/x/image/draw"
)

var (
	warmColor = color.RGBA{255, 100, 0, 255}
	coolColor = color.RGBA{0, 100, 255, 255}
)

// FontSize returns the glyph size for a grid charWidth characters wide across
// frameWidth pixels, or fixed when it is positive.
func FontSize(frameWidth, charWidth, fixed int) int {
	if fixed > 0 {
		return fixed
	}
	if charWidth <= 0 {
		return 1
	}
	return max(1, int(math.Floor(float64(frameWidth)/float64(charWidth)/config.GlyphAspect)))
}

// GridHeight returns the number of text rows that fit frameHeight pixels.
func GridHeight(frameHeight, fontSize int) int {
	if fontSize <= 0 {
		return 1
	}
	return max(1, int(math.Round(float64(frameHeight)/float64(fontSize)/config.LineHeight)))
}

// Compositor draws glyph grids, the overlay and the effect stack into frames.
// It holds per-size caches and is not safe for concurrent use.
type Compositor struct {
	Background    color.RGBA
	FixedFontSize int // 0 sizes glyphs from the grid width

	font     *truetype.Font
	atlases  map[int]*GlyphAtlas
	overlay  *image.RGBA
	vignette *vignetteMask
	coverage *image.Alpha
}

// NewCompositor creates a compositor drawing glyphs from f on a black
// background.
func NewCompositor(f *truetype.Font) *Compositor {
	return &Compositor{
		Background: color.RGBA{A: 255},
		font:       f,
		atlases:    make(map[int]*GlyphAtlas),
	}
}

// SetOverlay installs the overlay image; nil removes it.
func (c *Compositor) SetOverlay(img image.Image) {
	if img == nil {
		c.overlay = nil
		return
	}
	rgba := image.NewRGBA(image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy()))
	draw.Draw(rgba, rgba.Rect, img, img.Bounds().Min, draw.Src)
	c.overlay = rgba
}

// HasOverlay reports whether an overlay image is installed.
func (c *Compositor) HasOverlay() bool {
	return c.overlay != nil
}

func (c *Compositor) atlas(size int) *GlyphAtlas {
	a, ok := c.atlases[size]
	if !ok {
		a = NewGlyphAtlas(c.font, float64(size))
		c.atlases[size] = a
	}
	return a
}

// Draw renders one frame into dst:
//
//  1. background fill
//  2. glyphs, displaced by wave
//  3. overlay
//  4. colour filter chain
//  5. opacity, brightness wash, contrast, glow and shadow wash
//  6. vignette
func (c *Compositor) Draw(dst *image.RGBA, g ascii.Grid, wave ascii.FlagWave, p effects.Params) {
	b := dst.Rect
	draw.Draw(dst, b, image.NewUniform(c.Background), image.Point{}, draw.Src)

	warm := p.Warmth != 0
	if warm {
		if c.coverage == nil || c.coverage.Rect != b {
			c.coverage = image.NewAlpha(b)
		} else {
			clear(c.coverage.Pix)
		}
	}
	c.drawGlyphs(dst, g, wave, FontSize(b.Dx(), p.CharWidth, c.FixedFontSize), warm)

	drawOverlay(dst, c.overlay, p.Overlay)

	c.applyFilters(dst, p)
	applyTone(dst, p)

	if p.Vignette > 0 {
		if !c.vignette.matches(b.Dx(), b.Dy(), p.Vignette) {
			c.vignette = newVignetteMask(b.Dx(), b.Dy(), p.Vignette)
		}
		c.vignette.apply(dst)
	}
}

func (c *Compositor) drawGlyphs(dst *image.RGBA, g ascii.Grid, wave ascii.FlagWave, fontSize int, coverage bool) {
	if g.Width == 0 || g.Height == 0 {
		return
	}
	atlas := c.atlas(fontSize)
	cellW := float64(dst.Rect.Dx()) / float64(g.Width)
	cellH := float64(dst.Rect.Dy()) / float64(g.Height)

	for x := 0; x < g.Width; x++ {
		px := dst.Rect.Min.X + int(math.Floor(float64(x)*cellW))
		dy := wave.Offset(x)
		for y := 0; y < g.Height; y++ {
			cell := g.At(x, y)
			py := dst.Rect.Min.Y + int(math.Floor(float64(y)*cellH+dy))
			atlas.Draw(dst, px, py, cell.Glyph, cell.Color)
			if coverage {
				atlas.Draw(c.coverage, px, py, cell.Glyph, color.RGBA{A: 255})
			}
		}
	}
}

// filterMatrices returns the colour matrices that run before and after the
// blur, skipping neutral steps.
func filterMatrices(p effects.Params) (pre, post []colorMatrix) {
	if p.Saturation != 100 {
		pre = append(pre, saturateMatrix(p.Saturation/100))
	}
	if p.Hue != 0 {
		pre = append(pre, hueRotateMatrix(p.Hue))
	}
	if p.Grayscale != 0 {
		pre = append(pre, grayscaleMatrix(p.Grayscale/100))
	}
	if p.Invert != 0 {
		pre = append(pre, invertMatrix(p.Invert/100))
	}
	if p.Sepia != 0 {
		post = append(post, sepiaMatrix(p.Sepia/100))
	}
	if p.BrightnessBoost != 0 {
		post = append(post, brightnessMatrix(1+p.BrightnessBoost/100))
	}
	return pre, post
}

// applyFilters runs saturate, hue-rotate, grayscale, invert, blur, sepia,
// brightness and warmth.
func (c *Compositor) applyFilters(dst *image.RGBA, p effects.Params) {
	pre, post := filterMatrices(p)
	applyMatrices(dst, dst.Rect, pre)
	if p.Blur > 0 {
		blurRGBA(dst, p.Blur)
	}
	applyMatrices(dst, dst.Rect, post)

	if p.Warmth != 0 {
		c.applyWarmth(dst, p.Warmth)
	}
}

// applyWarmth draws a blurred warm (or cool, when negative) halo of the
// glyph coverage underneath the glyphs.
func (c *Compositor) applyWarmth(dst *image.RGBA, warmth float64) {
	tint := warmColor
	if warmth < 0 {
		tint = coolColor
	}

	halo := image.NewRGBA(c.coverage.Rect)
	for i, a := range c.coverage.Pix {
		halo.Pix[i*4+3] = a
	}
	halo = tintedBlur(halo, tint, 0.3, math.Abs(warmth)/2)

	for y := 0; y < dst.Rect.Dy(); y++ {
		for x := 0; x < dst.Rect.Dx(); x++ {
			cov := float64(c.coverage.Pix[y*c.coverage.Stride+x]) / 255
			hi := y*halo.Stride + x*4
			ha := float64(halo.Pix[hi+3]) / 255 * (1 - cov)
			if ha == 0 {
				continue
			}
			di := y*dst.Stride + x*4
			for k := 0; k < 3; k++ {
				// halo colour channels are premultiplied
				hc := float64(halo.Pix[hi+k]) * (1 - cov)
				dst.Pix[di+k] = uint8(math.Round(float64(dst.Pix[di+k])*(1-ha) + hc))
			}
		}
	}
}

// toneLUT composes the per-channel steps: opacity over black, brightness
// wash, contrast remap, additive glow and shadow wash. Each step rounds to
// 8 bits as a canvas would.
func toneLUT(p effects.Params) (lut [256]uint8, identity bool) {
	identity = true
	for i := range lut {
		lut[i] = uint8(i)
	}
	step := func(f func(v float64) float64) {
		identity = false
		for i, v := range lut {
			lut[i] = uint8(math.RoundToEven(math.Max(0, math.Min(255, f(float64(v))))))
		}
	}

	if p.Opacity != 100 {
		k := clamp01(p.Opacity / 100)
		step(func(v float64) float64 { return v * k })
	}
	if p.Brightness != 0 {
		a := clamp01(math.Abs(p.Brightness) / 200)
		wash := 0.0
		if p.Brightness > 0 {
			wash = 255
		}
		step(func(v float64) float64 { return v*(1-a) + wash*a })
	}
	if p.Contrast != 100 {
		factor := ContrastFactor(p.Contrast)
		step(func(v float64) float64 {
			if v == 128 {
				return 128
			}
			return factor*(v-128) + 128
		})
	}
	if p.Glow > 0 {
		add := p.Glow / 10 * 20
		step(func(v float64) float64 { return v + add })
	}
	if p.Shadow > 0 {
		a := clamp01(p.Shadow / 40)
		step(func(v float64) float64 { return v * (1 - a) })
	}
	return lut, identity
}

// ContrastFactor returns the contrast remap slope for c. At c >= 259 the
// slope is infinite and the remap becomes a threshold at 128.
func ContrastFactor(c float64) float64 {
	den := 255 * (259 - c)
	if den <= 0 {
		return math.Inf(1)
	}
	return 259 * (c + 255) / den
}

func applyTone(dst *image.RGBA, p effects.Params) {
	lut, identity := toneLUT(p)
	if identity {
		return
	}
	for y := 0; y < dst.Rect.Dy(); y++ {
		row := dst.Pix[y*dst.Stride : y*dst.Stride+dst.Rect.Dx()*4]
		for i := 0; i < len(row); i += 4 {
			row[i] = lut[row[i]]
			row[i+1] = lut[row[i+1]]
			row[i+2] = lut[row[i+2]]
		}
	}
}

// Close releases cached font faces.
func (c *Compositor) Close() error {
	for size, a := range c.atlases {
		a.Close()
		delete(c.atlases, size)
	}
	return nil
}

package renderer

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/math/fixed"
)

// LoadFont parses a TrueType font from a file. An empty path returns the
// embedded Go Mono.
func LoadFont(fontPath string) (*truetype.Font, error) {
	data := gomono.TTF
	if fontPath != "" {
		b, err := os.ReadFile(fontPath)
		if err != nil {
			return nil, err
		}
		data = b
	}

	f, err := truetype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	return f, nil
}

// glyphMask is a rasterised glyph positioned relative to the top-left corner
// of its cell.
type glyphMask struct {
	mask   *image.Alpha
	offset image.Point
}

// GlyphAtlas caches rasterised glyph masks for one font at one size.
// It is not safe for concurrent use.
type GlyphAtlas struct {
	face   font.Face
	ascent fixed.Int26_6
	glyphs map[rune]*glyphMask
	src    *image.Uniform
}

// NewGlyphAtlas creates an atlas for f at size pixels.
func NewGlyphAtlas(f *truetype.Font, size float64) *GlyphAtlas {
	face := truetype.NewFace(f, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	return &GlyphAtlas{
		face:   face,
		ascent: face.Metrics().Ascent,
		glyphs: make(map[rune]*glyphMask),
		src:    image.NewUniform(color.RGBA{}),
	}
}

// lookup returns the cached mask for r, rasterising it on first use. Glyphs
// the font lacks, and blank glyphs such as space, return nil.
func (a *GlyphAtlas) lookup(r rune) *glyphMask {
	if g, ok := a.glyphs[r]; ok {
		return g
	}

	// Top baseline: the dot sits one ascent below the cell top
	dr, mask, maskp, _, ok := a.face.Glyph(fixed.Point26_6{Y: a.ascent}, r)
	var g *glyphMask
	if ok && !dr.Empty() {
		// The face reuses its mask buffer, so take a copy
		alpha := image.NewAlpha(image.Rect(0, 0, dr.Dx(), dr.Dy()))
		draw.Draw(alpha, alpha.Bounds(), mask, maskp, draw.Src)
		g = &glyphMask{mask: alpha, offset: dr.Min}
	}
	a.glyphs[r] = g
	return g
}

// Draw paints glyph r in colour c with the top-left of its cell at (x, y).
func (a *GlyphAtlas) Draw(dst draw.Image, x, y int, r rune, c color.RGBA) {
	g := a.lookup(r)
	if g == nil {
		return
	}
	a.src.C = c
	pt := image.Pt(x, y).Add(g.offset)
	draw.DrawMask(dst, g.mask.Rect.Add(pt), a.src, image.Point{}, g.mask, image.Point{}, draw.Over)
}

// Close releases the font face.
func (a *GlyphAtlas) Close() error {
	return a.face.Close()
}

package renderer

import (
	"image/color"
	"math"

	"github.com/linuxmatters/asciifire/internal/effects"
)

// CellGrader applies the per-pixel part of the effect stack to single
// colours. Text surfaces use it where blur, warmth, the overlay and the
// vignette have no meaning.
type CellGrader struct {
	matrices []colorMatrix
	lut      [256]uint8
	identity bool
}

// NewCellGrader prepares the colour matrices and tone curve for p.
func NewCellGrader(p effects.Params) *CellGrader {
	pre, post := filterMatrices(p)
	g := &CellGrader{matrices: append(pre, post...)}
	g.lut, g.identity = toneLUT(p)
	return g
}

// Apply grades one opaque colour.
func (g *CellGrader) Apply(c color.RGBA) color.RGBA {
	if len(g.matrices) > 0 {
		r, gr, b := float64(c.R)/255, float64(c.G)/255, float64(c.B)/255
		for k := range g.matrices {
			r, gr, b = g.matrices[k].apply(r, gr, b)
		}
		c.R = uint8(math.Round(r * 255))
		c.G = uint8(math.Round(gr * 255))
		c.B = uint8(math.Round(b * 255))
	}
	if !g.identity {
		c.R, c.G, c.B = g.lut[c.R], g.lut[c.G], g.lut[c.B]
	}
	return c
}

package ascii

import (
	"image"
	"math"
	"math/rand/v2"
)

// glitchHash is a cheap per-cell, per-frame pseudo-random value. It is a pure
// function of its inputs so the same frame always glitches the same way.
func glitchHash(x, y, w, frame int) float64 {
	return math.Abs(math.Sin(float64(x+y*w+frame*12345)*0.1) * 10000)
}

// GlitchDisplaced reports whether cell (x, y) is displaced in frame at the
// given intensity. Displacement probability is intensity/20.
func GlitchDisplaced(x, y, w, frame int, intensity float64) bool {
	h := glitchHash(x, y, w, frame)
	return h-math.Floor(h) < intensity/20
}

// ConvertGlitch is Convert where a hash-selected subset of cells samples a
// displaced source region, wrapped modulo the image size. With intensity 0
// no cell is displaced and the result equals Convert for the same rng state.
func ConvertGlitch(img *image.RGBA, w, h int, pal *Palette, rng *rand.Rand, frame int, intensity float64) Grid {
	g := NewGrid(w, h)
	if w <= 0 || h <= 0 {
		return g
	}
	l := newLayout(img, w, h)
	chance := intensity / 20
	for cy := 0; cy < h; cy++ {
		for cx := 0; cx < w; cx++ {
			px, py := l.origin(cx, cy)

			hash := glitchHash(cx, cy, w, frame)
			if hash-math.Floor(hash) < chance {
				offX := int(math.Floor((math.Sin(hash*1.3)*intensity + intensity) * l.regionW))
				offY := int(math.Floor((math.Cos(hash*1.7)*intensity + intensity) * l.regionH))
				px = wrap(px+offX, l.imgW)
				py = wrap(py+offY, l.imgH)
			}

			s := l.sample(img, px, py)
			g.Cells[cy*w+cx] = Cell{Glyph: pal.Glyph(rng, s.Brightness), Color: s.Color()}
		}
	}
	return g
}

func wrap(v, n int) int {
	if n <= 0 {
		return 0
	}
	v %= n
	if v < 0 {
		v += n
	}
	return v
}

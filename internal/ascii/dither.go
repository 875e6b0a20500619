package ascii

import (
	"image"
	"math/rand/v2"
)

// bayer4 is the classic 4x4 ordered-dither threshold matrix.
var bayer4 = [4][4]float64{
	{0, 8, 2, 10},
	{12, 4, 14, 6},
	{3, 11, 1, 9},
	{15, 7, 13, 5},
}

// BayerThreshold returns the normalised threshold for cell (x, y).
func BayerThreshold(x, y int) float64 {
	return bayer4[y&3][x&3] / 16
}

// DitherBrightness pushes b away from the Bayer threshold at (x, y).
// Contrast spreads b around 0.5 before thresholding; sensitivity scales both
// the threshold and the push.
func DitherBrightness(b float64, x, y int, sensitivity, contrast float64) float64 {
	thr := BayerThreshold(x, y) * sensitivity
	adj := (b-0.5)*contrast + 0.5
	if adj > thr {
		return min(1, adj+sensitivity*0.5)
	}
	return max(0, adj-sensitivity*0.5)
}

// ConvertDither is Convert with ordered dithering applied to each cell's
// brightness before glyph lookup. Cell colours are the undithered averages.
func ConvertDither(img *image.RGBA, w, h int, pal *Palette, rng *rand.Rand, sensitivity, contrast float64) Grid {
	g := NewGrid(w, h)
	if w <= 0 || h <= 0 {
		return g
	}
	l := newLayout(img, w, h)
	for cy := 0; cy < h; cy++ {
		for cx := 0; cx < w; cx++ {
			px, py := l.origin(cx, cy)
			s := l.sample(img, px, py)
			b := DitherBrightness(s.Brightness, cx, cy, sensitivity, contrast)
			g.Cells[cy*w+cx] = Cell{Glyph: pal.Glyph(rng, b), Color: s.Color()}
		}
	}
	return g
}

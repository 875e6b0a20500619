package ascii

import "image/color"

// Cell is one glyph and the colour it is drawn with.
type Cell struct {
	Glyph rune
	Color color.RGBA
}

// Grid is a Width x Height matrix of cells stored row-major.
type Grid struct {
	Width  int
	Height int
	Cells  []Cell
}

// NewGrid allocates an empty grid.
func NewGrid(w, h int) Grid {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return Grid{Width: w, Height: h, Cells: make([]Cell, w*h)}
}

// At returns the cell at column x, row y.
func (g Grid) At(x, y int) Cell {
	return g.Cells[y*g.Width+x]
}

// Set stores c at column x, row y.
func (g Grid) Set(x, y int, c Cell) {
	g.Cells[y*g.Width+x] = c
}

// Row returns the glyphs of row y as a string.
func (g Grid) Row(y int) string {
	r := make([]rune, g.Width)
	for x := range r {
		r[x] = g.Cells[y*g.Width+x].Glyph
	}
	return string(r)
}

// Equal reports whether both grids have the same shape and cells.
func (g Grid) Equal(o Grid) bool {
	if g.Width != o.Width || g.Height != o.Height || len(g.Cells) != len(o.Cells) {
		return false
	}
	for i := range g.Cells {
		if g.Cells[i] != o.Cells[i] {
			return false
		}
	}
	return true
}

// Shift rotates columns by k with wraparound: output column x reads
// input column (x - k) mod Width. Any integer k is accepted, so shifting by
// Width is the identity and Shift(Shift(g, k), Width-k) restores g.
func Shift(g Grid, k int) Grid {
	out := NewGrid(g.Width, g.Height)
	if g.Width == 0 {
		return out
	}
	k %= g.Width
	if k < 0 {
		k += g.Width
	}
	for y := 0; y < g.Height; y++ {
		row := g.Cells[y*g.Width : (y+1)*g.Width]
		dst := out.Cells[y*g.Width : (y+1)*g.Width]
		for x := range dst {
			dst[x] = row[(x-k+g.Width)%g.Width]
		}
	}
	return out
}

package ascii

import (
	"image"
	"image/color"
	"math"
	"math/rand/v2"
)

// Sample is the average colour of a region and its perceived brightness.
type Sample struct {
	R, G, B    uint8
	Brightness float64
}

// Color returns the sample as an opaque colour.
func (s Sample) Color() color.RGBA {
	return color.RGBA{R: s.R, G: s.G, B: s.B, A: 255}
}

// Luminance returns ITU-R BT.601 brightness in [0,1].
func Luminance(r, g, b uint8) float64 {
	return (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 255
}

// SampleRegion averages RGB over the w x h rectangle at (x, y), relative to
// the image origin. The far edges are clamped to the image; an empty region
// yields the zero Sample.
func SampleRegion(img *image.RGBA, x, y, w, h int) Sample {
	b := img.Bounds()
	iw, ih := b.Dx(), b.Dy()
	x0, y0 := max(x, 0), max(y, 0)
	x1, y1 := min(x+w, iw), min(y+h, ih)
	if x1 <= x0 || y1 <= y0 {
		return Sample{}
	}

	var sr, sg, sb, n int
	for py := y0; py < y1; py++ {
		off := img.PixOffset(b.Min.X+x0, b.Min.Y+py)
		for px := x0; px < x1; px++ {
			sr += int(img.Pix[off])
			sg += int(img.Pix[off+1])
			sb += int(img.Pix[off+2])
			off += 4
			n++
		}
	}

	s := Sample{
		R: roundAvg(sr, n),
		G: roundAvg(sg, n),
		B: roundAvg(sb, n),
	}
	s.Brightness = Luminance(s.R, s.G, s.B)
	return s
}

func roundAvg(sum, n int) uint8 {
	return uint8(math.Round(float64(sum) / float64(n)))
}

// layout holds the per-axis region geometry for one conversion.
type layout struct {
	imgW, imgH int
	regionW    float64
	regionH    float64
	sampleW    int
	sampleH    int
}

func newLayout(img *image.RGBA, w, h int) layout {
	b := img.Bounds()
	l := layout{imgW: b.Dx(), imgH: b.Dy()}
	l.regionW = float64(l.imgW) / float64(w)
	l.regionH = float64(l.imgH) / float64(h)
	l.sampleW = int(math.Ceil(l.regionW))
	l.sampleH = int(math.Ceil(l.regionH))
	return l
}

// origin is the top-left source pixel of cell (cx, cy).
func (l layout) origin(cx, cy int) (int, int) {
	return int(math.Floor(float64(cx) * l.regionW)), int(math.Floor(float64(cy) * l.regionH))
}

func (l layout) sample(img *image.RGBA, px, py int) Sample {
	return SampleRegion(img, px, py, l.sampleW, l.sampleH)
}

// Convert samples img into a w x h grid. Region sizes are imageDim/gridDim
// per axis, so neighbouring regions may overlap by a pixel.
func Convert(img *image.RGBA, w, h int, pal *Palette, rng *rand.Rand) Grid {
	g := NewGrid(w, h)
	if w <= 0 || h <= 0 {
		return g
	}
	l := newLayout(img, w, h)
	for cy := 0; cy < h; cy++ {
		for cx := 0; cx < w; cx++ {
			px, py := l.origin(cx, cy)
			s := l.sample(img, px, py)
			g.Cells[cy*w+cx] = Cell{Glyph: pal.Glyph(rng, s.Brightness), Color: s.Color()}
		}
	}
	return g
}

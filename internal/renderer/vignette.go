package renderer

import (
	"image"
	"math"

	"github.com/gogpu/gg"
)

// vignetteMask holds per-pixel darkening for one frame size and strength.
type vignetteMask struct {
	w, h     int
	strength float64
	alpha    []uint8
}

// newVignetteMask samples a radial gradient from transparent at the centre to
// strength at the half-diagonal. The gradient is symmetric, so one quadrant
// is sampled and mirrored.
func newVignetteMask(w, h int, strength float64) *vignetteMask {
	cx, cy := float64(w)/2, float64(h)/2
	radius := math.Hypot(float64(w), float64(h)) / 2
	brush := gg.NewRadialGradientBrush(cx, cy, 0, radius).
		AddColorStop(0, gg.RGBA2(0, 0, 0, 0)).
		AddColorStop(1, gg.RGBA2(0, 0, 0, clamp01(strength)))

	m := &vignetteMask{w: w, h: h, strength: strength, alpha: make([]uint8, w*h)}
	for y := 0; y < (h+1)/2; y++ {
		for x := 0; x < (w+1)/2; x++ {
			a := uint8(math.Round(clamp01(brush.ColorAt(float64(x)+0.5, float64(y)+0.5).A) * 255))
			mx, my := w-1-x, h-1-y
			m.alpha[y*w+x] = a
			m.alpha[y*w+mx] = a
			m.alpha[my*w+x] = a
			m.alpha[my*w+mx] = a
		}
	}
	return m
}

func (m *vignetteMask) matches(w, h int, strength float64) bool {
	return m != nil && m.w == w && m.h == h && m.strength == strength
}

// apply darkens img towards black by the mask alpha.
func (m *vignetteMask) apply(img *image.RGBA) {
	for y := 0; y < m.h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+m.w*4]
		for x, a := range m.alpha[y*m.w : (y+1)*m.w] {
			if a == 0 {
				continue
			}
			k := 255 - int(a)
			p := row[x*4 : x*4+3 : x*4+3]
			p[0] = uint8((int(p[0])*k + 127) / 255)
			p[1] = uint8((int(p[1])*k + 127) / 255)
			p[2] = uint8((int(p[2])*k + 127) / 255)
		}
	}
}

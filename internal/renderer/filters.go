package renderer

import (
	"image"
	"math"
)

// colorMatrix is a 3×4 affine map on normalised RGB: the last column is an
// offset.
type colorMatrix [12]float64

func (m *colorMatrix) apply(r, g, b float64) (float64, float64, float64) {
	return clamp01(m[0]*r + m[1]*g + m[2]*b + m[3]),
		clamp01(m[4]*r + m[5]*g + m[6]*b + m[7]),
		clamp01(m[8]*r + m[9]*g + m[10]*b + m[11])
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// saturateMatrix scales saturation; 1 is neutral.
func saturateMatrix(s float64) colorMatrix {
	return colorMatrix{
		0.213 + 0.787*s, 0.715 - 0.715*s, 0.072 - 0.072*s, 0,
		0.213 - 0.213*s, 0.715 + 0.285*s, 0.072 - 0.072*s, 0,
		0.213 - 0.213*s, 0.715 - 0.715*s, 0.072 + 0.928*s, 0,
	}
}

// hueRotateMatrix rotates hue by deg degrees.
func hueRotateMatrix(deg float64) colorMatrix {
	rad := deg * math.Pi / 180
	c, s := math.Cos(rad), math.Sin(rad)
	return colorMatrix{
		0.213 + c*0.787 - s*0.213, 0.715 - c*0.715 - s*0.715, 0.072 - c*0.072 + s*0.928, 0,
		0.213 - c*0.213 + s*0.143, 0.715 + c*0.285 + s*0.140, 0.072 - c*0.072 - s*0.283, 0,
		0.213 - c*0.213 - s*0.787, 0.715 - c*0.715 + s*0.715, 0.072 + c*0.928 + s*0.072, 0,
	}
}

// grayscaleMatrix desaturates by amount in [0,1].
func grayscaleMatrix(amount float64) colorMatrix {
	k := 1 - clamp01(amount)
	return colorMatrix{
		0.2126 + 0.7874*k, 0.7152 - 0.7152*k, 0.0722 - 0.0722*k, 0,
		0.2126 - 0.2126*k, 0.7152 + 0.2848*k, 0.0722 - 0.0722*k, 0,
		0.2126 - 0.2126*k, 0.7152 - 0.7152*k, 0.0722 + 0.9278*k, 0,
	}
}

// sepiaMatrix tones by amount in [0,1].
func sepiaMatrix(amount float64) colorMatrix {
	k := 1 - clamp01(amount)
	return colorMatrix{
		0.393 + 0.607*k, 0.769 - 0.769*k, 0.189 - 0.189*k, 0,
		0.349 - 0.349*k, 0.686 + 0.314*k, 0.168 - 0.168*k, 0,
		0.272 - 0.272*k, 0.534 - 0.534*k, 0.131 + 0.869*k, 0,
	}
}

// linearMatrix applies v*slope + intercept to each channel.
func linearMatrix(slope, intercept float64) colorMatrix {
	return colorMatrix{
		slope, 0, 0, intercept,
		0, slope, 0, intercept,
		0, 0, slope, intercept,
	}
}

func invertMatrix(amount float64) colorMatrix {
	a := clamp01(amount)
	return linearMatrix(1-2*a, a)
}

func brightnessMatrix(b float64) colorMatrix {
	return linearMatrix(math.Max(0, b), 0)
}

func contrastMatrix(c float64) colorMatrix {
	c = math.Max(0, c)
	return linearMatrix(c, 0.5-0.5*c)
}

// applyMatrices runs each matrix in turn over every pixel in r, clamping
// between steps. Pixels are premultiplied, so colour is unpremultiplied
// around the maths.
func applyMatrices(img *image.RGBA, r image.Rectangle, ms []colorMatrix) {
	if len(ms) == 0 {
		return
	}
	r = r.Intersect(img.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		i := img.PixOffset(r.Min.X, y)
		for x := r.Min.X; x < r.Max.X; x, i = x+1, i+4 {
			p := img.Pix[i : i+4 : i+4]
			if p[3] == 0 {
				continue
			}
			a := float64(p[3]) / 255
			cr := float64(p[0]) / 255 / a
			cg := float64(p[1]) / 255 / a
			cb := float64(p[2]) / 255 / a
			for k := range ms {
				cr, cg, cb = ms[k].apply(cr, cg, cb)
			}
			p[0] = uint8(math.Round(cr * a * 255))
			p[1] = uint8(math.Round(cg * a * 255))
			p[2] = uint8(math.Round(cb * a * 255))
		}
	}
}

// gaussBoxes returns three box widths approximating a Gaussian of sigma.
func gaussBoxes(sigma float64) [3]int {
	const n = 3
	wIdeal := math.Sqrt(12*sigma*sigma/n + 1)
	wl := int(math.Floor(wIdeal))
	if wl%2 == 0 {
		wl--
	}
	wu := wl + 2
	mIdeal := (12*sigma*sigma - n*float64(wl*wl) - 4*n*float64(wl) - 3*n) / (-4*float64(wl) - 4)
	m := int(math.Round(mIdeal))

	var sizes [3]int
	for i := range sizes {
		if i < m {
			sizes[i] = wl
		} else {
			sizes[i] = wu
		}
	}
	return sizes
}

// blurRGBA applies an approximate Gaussian blur of sigma pixels in place.
// Pixels outside the image count as transparent.
func blurRGBA(img *image.RGBA, sigma float64) {
	if sigma <= 0 {
		return
	}
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w == 0 || h == 0 {
		return
	}
	tmp := make([]uint8, len(img.Pix))
	for _, size := range gaussBoxes(sigma) {
		r := (size - 1) / 2
		if r <= 0 {
			continue
		}
		boxPass(img.Pix, tmp, h, w, img.Stride, 4, r)
		boxPass(tmp, img.Pix, w, h, 4, img.Stride, r)
	}
}

// boxPass blurs n-long runs of 4-byte pixels. step is the byte distance
// between neighbours along a run and lineStep the distance between runs.
func boxPass(src, dst []uint8, lines, n, lineStep, step, r int) {
	div := float64(2*r + 1)
	for l := 0; l < lines; l++ {
		base := l * lineStep
		var sum [4]int
		for k := 0; k <= min(r, n-1); k++ {
			o := base + k*step
			for c := 0; c < 4; c++ {
				sum[c] += int(src[o+c])
			}
		}
		for x := 0; x < n; x++ {
			o := base + x*step
			for c := 0; c < 4; c++ {
				dst[o+c] = uint8(float64(sum[c])/div + 0.5)
			}
			if add := x + r + 1; add < n {
				ao := base + add*step
				for c := 0; c < 4; c++ {
					sum[c] += int(src[ao+c])
				}
			}
			if sub := x - r; sub >= 0 {
				so := base + sub*step
				for c := 0; c < 4; c++ {
					sum[c] -= int(src[so+c])
				}
			}
		}
	}
}

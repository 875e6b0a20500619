package renderer

import (
	"image"
	"image/color"
	"math"

	"github.com/linuxmatters/asciifire/internal/effects"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

var (
	overlayShadowColor = color.RGBA{0, 0, 0, 255}
	overlayGlowColor   = color.RGBA{0, 212, 255, 255}
)

// overlaySize returns the scaled overlay dimensions: o.Size wide with the
// source aspect preserved.
func overlaySize(src image.Rectangle, size float64) (int, int) {
	w := max(1, int(math.Round(size)))
	if src.Dx() == 0 {
		return w, w
	}
	h := max(1, int(math.Round(size*float64(src.Dy())/float64(src.Dx()))))
	return w, h
}

// prepareOverlay scales src and applies the overlay's own filter stack:
// blur, brightness, contrast, saturate.
func prepareOverlay(src *image.RGBA, o effects.Overlay) *image.RGBA {
	w, h := overlaySize(src.Rect, o.Size)
	scaled := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(scaled, scaled.Rect, src, src.Rect, draw.Src, nil)

	if o.Blur > 0 {
		blurRGBA(scaled, o.Blur)
	}
	var ms []colorMatrix
	if o.Brightness != 0 {
		ms = append(ms, brightnessMatrix((100+o.Brightness)/100))
	}
	if o.Contrast != 100 {
		ms = append(ms, contrastMatrix(o.Contrast/100))
	}
	if o.Saturation != 100 {
		ms = append(ms, saturateMatrix(o.Saturation/100))
	}
	applyMatrices(scaled, scaled.Rect, ms)
	return scaled
}

// overlayTransform maps overlay pixel space onto the frame: rotate clockwise
// about the overlay centre, then centre it on (cx, cy).
func overlayTransform(w, h int, cx, cy, deg float64) f64.Aff3 {
	rad := deg * math.Pi / 180
	c, s := math.Cos(rad), math.Sin(rad)
	sx, sy := float64(w)/2, float64(h)/2
	return f64.Aff3{
		c, -s, cx - (c*sx - s*sy),
		s, c, cy - (s*sx + c*sy),
	}
}

// transformedBounds returns the integer bounding box of a w×h rectangle under m.
func transformedBounds(m f64.Aff3, w, h int) image.Rectangle {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range [4][2]float64{{0, 0}, {float64(w), 0}, {0, float64(h)}, {float64(w), float64(h)}} {
		x := m[0]*p[0] + m[1]*p[1] + m[2]
		y := m[3]*p[0] + m[4]*p[1] + m[5]
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	return image.Rect(int(math.Floor(minX)), int(math.Floor(minY)), int(math.Ceil(maxX)), int(math.Ceil(maxY)))
}

// tintedBlur returns a copy of layer's alpha filled with c at opacity alpha,
// blurred by sigma.
func tintedBlur(layer *image.RGBA, c color.RGBA, alpha, sigma float64) *image.RGBA {
	out := image.NewRGBA(layer.Rect)
	k := clamp01(alpha)
	for i := 0; i+3 < len(layer.Pix); i += 4 {
		a := float64(layer.Pix[i+3]) / 255 * k
		out.Pix[i] = uint8(float64(c.R)*a + 0.5)
		out.Pix[i+1] = uint8(float64(c.G)*a + 0.5)
		out.Pix[i+2] = uint8(float64(c.B)*a + 0.5)
		out.Pix[i+3] = uint8(255*a + 0.5)
	}
	blurRGBA(out, sigma)
	return out
}

// drawOverlay composites src onto dst using the overlay transform, drop
// shadow, glow and opacity from o.
func drawOverlay(dst *image.RGBA, src *image.RGBA, o effects.Overlay) {
	if src == nil || o.Opacity <= 0 {
		return
	}
	scaled := prepareOverlay(src, o)
	fw, fh := float64(dst.Rect.Dx()), float64(dst.Rect.Dy())
	m := overlayTransform(scaled.Rect.Dx(), scaled.Rect.Dy(), fw*o.X/100, fh*o.Y/100, o.Rotation)

	// Leave room for the blurred shadow and glow around the image
	shadow := math.Ceil(o.Shadow)
	glow := math.Ceil(o.Glow * 2)
	margin := int(3*math.Max(shadow, glow/2) + shadow + 2)
	bounds := transformedBounds(m, scaled.Rect.Dx(), scaled.Rect.Dy()).Inset(-margin)
	if bounds.Intersect(dst.Rect).Empty() {
		return
	}

	layer := image.NewRGBA(bounds)
	draw.BiLinear.Transform(layer, m, scaled, scaled.Rect, draw.Over, nil)

	composite := image.NewRGBA(bounds)
	if o.Shadow > 0 {
		sh := tintedBlur(layer, overlayShadowColor, 0.3+o.Shadow*0.03, shadow)
		off := image.Pt(int(shadow), int(shadow))
		draw.Draw(composite, bounds, sh, bounds.Min.Sub(off), draw.Over)
	}
	if o.Glow > 0 {
		gl := tintedBlur(layer, overlayGlowColor, 0.3+o.Glow*0.05, glow/2)
		draw.Draw(composite, bounds, gl, bounds.Min, draw.Over)
	}
	draw.Draw(composite, bounds, layer, bounds.Min, draw.Over)

	opacity := image.NewUniform(color.Alpha{A: uint8(clamp01(o.Opacity/100)*255 + 0.5)})
	draw.DrawMask(dst, bounds, composite, bounds.Min, opacity, image.Point{}, draw.Over)
}

// Package effects holds the per-frame effect parameters and merges static
// slider values with audio-driven deltas.
package effects

import "math"

// Overlay holds the overlay image transform and filter values.
type Overlay struct {
	X, Y       float64 // centre position as a percentage of the frame
	Size       float64 // width in pixels; height follows the image aspect
	Rotation   float64 // degrees clockwise
	Opacity    float64 // 0..100
	Blur       float64 // pixels
	Glow       float64
	Shadow     float64
	Saturation float64 // percent, 100 is neutral
	Brightness float64 // -100..100, 0 is neutral
	Contrast   float64 // percent, 100 is neutral
}

// Params is the full set of effect values for one frame.
type Params struct {
	CharWidth int

	Brightness      float64 // -100..100 wash
	Contrast        float64 // 100 is neutral
	Saturation      float64 // percent
	Hue             float64 // degrees
	Grayscale       float64 // percent
	Invert          float64 // percent
	Blur            float64 // pixels
	Sepia           float64 // percent
	Opacity         float64 // 0..100
	Glow            float64
	BrightnessBoost float64 // percent added to the brightness filter
	Warmth          float64 // -100..100
	Shadow          float64
	Vignette        float64 // 0..1 edge opacity

	Overlay Overlay
}

// DefaultOverlay returns neutral overlay settings centred in the frame.
func DefaultOverlay() Overlay {
	return Overlay{
		X:          50,
		Y:          50,
		Size:       550,
		Opacity:    100,
		Saturation: 100,
		Contrast:   100,
	}
}

// Defaults returns neutral effect values.
func Defaults(charWidth int) Params {
	return Params{
		CharWidth:  charWidth,
		Contrast:   100,
		Saturation: 100,
		Opacity:    100,
		Overlay:    DefaultOverlay(),
	}
}

// Deltas are the audio-reactive changes applied at full level.
type Deltas struct {
	Resolution float64 // characters
	Brightness float64
	Contrast   float64
	Opacity    float64
	Hue        float64 // degrees
	Saturation float64

	OverlaySize       float64 // pixels
	OverlayBrightness float64
	OverlayContrast   float64
	OverlayOpacity    float64
	OverlayX          float64 // pixels
	OverlayY          float64 // pixels
}

// DefaultDeltas returns the stock reactive deltas: a brightness pulse and an
// overlay that swells with the level.
func DefaultDeltas() Deltas {
	return Deltas{Brightness: 50, OverlaySize: 100}
}

// MinCharWidth is the floor applied to audio-modulated grid widths.
const MinCharWidth = 10

// MinOverlaySize is the floor applied to audio-modulated overlay sizes.
const MinOverlaySize = 50

// Resolve returns the effective parameters for one frame. base is never
// modified; the result is a shadow copy with every reactive parameter set
// from base, d and level*sensitivity. A parameter is reactive when its delta
// is non-zero. Contrast, opacity and saturation use the 100-neutral form
// 100 + delta*k. frameW and frameH convert the overlay offsets from pixels to
// percent.
func Resolve(base Params, d Deltas, level, sensitivity float64, frameW, frameH int) Params {
	p := base
	k := level * sensitivity

	if d.Resolution != 0 {
		p.CharWidth = max(MinCharWidth, int(math.Round(float64(base.CharWidth)+d.Resolution*k)))
	}
	if d.Brightness != 0 {
		p.Brightness = base.Brightness + d.Brightness*k
	}
	if d.Contrast != 0 {
		p.Contrast = math.Max(0, 100+d.Contrast*k)
	}
	if d.Opacity != 0 {
		p.Opacity = clamp(100+d.Opacity*k, 0, 100)
	}
	if d.Hue != 0 {
		p.Hue = base.Hue + d.Hue*k
	}
	if d.Saturation != 0 {
		p.Saturation = math.Max(0, 100+d.Saturation*k)
	}

	o := &p.Overlay
	if d.OverlaySize != 0 {
		o.Size = math.Max(MinOverlaySize, base.Overlay.Size+d.OverlaySize*k)
	}
	if d.OverlayBrightness != 0 {
		o.Brightness = base.Overlay.Brightness + d.OverlayBrightness*k
	}
	if d.OverlayContrast != 0 {
		o.Contrast = math.Max(0, 100+d.OverlayContrast*k)
	}
	if d.OverlayOpacity != 0 {
		o.Opacity = clamp(100+d.OverlayOpacity*k, 0, 100)
	}
	if d.OverlayX != 0 && frameW > 0 {
		o.X = base.Overlay.X + d.OverlayX*k/float64(frameW)*100
	}
	if d.OverlayY != 0 && frameH > 0 {
		o.Y = base.Overlay.Y + d.OverlayY*k/float64(frameH)*100
	}
	return p
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

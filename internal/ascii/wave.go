package ascii

import "math"

// FlagWave is the render-time vertical displacement used by Flag mode. The
// zero value displaces nothing.
type FlagWave struct {
	Amplitude float64 // distance * speed / 30, in pixels
	Phase     float64 // cycle progress in [0,1)
}

// NewFlagWave builds the wave for one frame.
func NewFlagWave(distance, speed, phase float64) FlagWave {
	return FlagWave{Amplitude: distance * speed / 30, Phase: phase}
}

// Offset returns the vertical pixel offset for grid column x: a global sway
// plus a travelling wave along the row.
func (w FlagWave) Offset(x int) float64 {
	if w.Amplitude == 0 {
		return 0
	}
	p := w.Phase * 2 * math.Pi
	return math.Sin(p)*w.Amplitude + math.Sin((float64(x)*0.1+p)/2)*w.Amplitude
}

// ZoomWidth maps cycle progress to a grid width pulsing from min up to max
// and back over one cycle.
func ZoomWidth(progress float64, minChars, maxChars int) int {
	wave := math.Sin(progress * math.Pi)
	return int(math.Round(float64(minChars) + float64(maxChars-minChars)*wave))
}

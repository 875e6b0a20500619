// Package timing reconciles animation cadence between the wall-clock preview
// driver and the fixed-rate export driver.
package timing

import "math"

// Phase returns cycle progress (frame mod period)/period in [0,1).
// A non-positive period yields 0.
func Phase(frame, period int) float64 {
	if period <= 0 {
		return 0
	}
	f := frame % period
	if f < 0 {
		f += period
	}
	return float64(f) / float64(period)
}

// CycleFrames converts a cycle length in seconds to whole frames at fps.
func CycleFrames(seconds, fps float64) int {
	return max(1, int(math.Round(seconds*fps)))
}

// EffectiveFrame maps an export frame index to the preview frame showing the
// same moment, so scroll and glitch advance at the preview's pace.
func EffectiveFrame(exportIndex int, previewFPS, exportFPS float64) int {
	if exportFPS <= 0 {
		return exportIndex
	}
	return int(math.Floor(float64(exportIndex) * previewFPS / exportFPS))
}

// RegenerateEvery is how many export frames share one Original-mode grid.
func RegenerateEvery(previewFPS, exportFPS float64) int {
	if previewFPS <= 0 {
		return 1
	}
	return max(1, int(math.Round(exportFPS/previewFPS)))
}

// Clock describes one driver's frame rate against the preview rate that the
// animation is authored for.
type Clock struct {
	FPS        float64 // rate frames are produced at
	PreviewFPS float64 // rate the animation cadence is defined at
	Cycle      float64 // seconds per zoom/flag cycle
}

// Tick is the timing of one frame.
type Tick struct {
	Index      int     // raw frame index in this driver
	Effective  int     // frame index on the preview timeline
	Phase      float64 // zoom/flag cycle progress
	Regenerate bool    // whether Original mode converts a fresh grid
	Seconds    float64 // presentation time
}

// At computes the timing of frame i.
func (c Clock) At(i int) Tick {
	preview := c.PreviewFPS
	if preview <= 0 {
		preview = c.FPS
	}
	every := RegenerateEvery(preview, c.FPS)
	return Tick{
		Index:      i,
		Effective:  EffectiveFrame(i, preview, c.FPS),
		Phase:      Phase(i, CycleFrames(c.Cycle, c.FPS)),
		Regenerate: i%every == 0,
		Seconds:    float64(i) / c.FPS,
	}
}

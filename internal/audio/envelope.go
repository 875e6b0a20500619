package audio

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/linuxmatters/asciifire/internal/config"
)

// Method selects how offline exports derive per-frame levels.
type Method int

const (
	// MethodEnvelope averages |x| over each frame's window of channel 0.
	MethodEnvelope Method = iota
	// MethodBands replays each frame through the live Analyzer and Dynamics.
	MethodBands
)

// ParseMethod parses "envelope" or "bands".
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(s) {
	case "", "envelope":
		return MethodEnvelope, nil
	case "bands":
		return MethodBands, nil
	}
	return 0, fmt.Errorf("unknown audio analysis method %q", s)
}

func (m Method) String() string {
	if m == MethodBands {
		return "bands"
	}
	return "envelope"
}

// Envelope returns one level per export frame. The whole buffer is spread
// across totalFrames; each level is the mean absolute amplitude of channel 0
// over that frame's window, doubled and clamped to 1.
func Envelope(buf *Buffer, totalFrames int) []float64 {
	return envelope(buf, totalFrames, nil)
}

func envelope(buf *Buffer, totalFrames int, step func(i int, level float64)) []float64 {
	if totalFrames <= 0 {
		return nil
	}
	levels := make([]float64, totalFrames)
	n := buf.Len()
	if n == 0 {
		return levels
	}

	ch := buf.Channels[0]
	windowLen := float64(n) / float64(totalFrames)
	for i := range levels {
		start := int(math.Floor(float64(i) * windowLen))
		end := min(start+int(math.Floor(windowLen)), n)

		if end > start {
			var sum float64
			for _, s := range ch[start:end] {
				sum += math.Abs(s)
			}
			levels[i] = math.Min(1, sum/float64(end-start)*2)
		}
		if step != nil {
			step(i, levels[i])
		}
	}
	return levels
}

// BandEnvelope returns one level per export frame by feeding the mono window
// ending at each frame's timestamp through the same Analyzer, BandLevel and
// Dynamics chain the live preview uses.
func BandEnvelope(buf *Buffer, totalFrames int, fps float64, cfg DynamicsConfig) ([]float64, error) {
	return bandEnvelope(buf, totalFrames, fps, cfg, nil)
}

func bandEnvelope(buf *Buffer, totalFrames int, fps float64, cfg DynamicsConfig, step func(i int, level float64)) ([]float64, error) {
	if totalFrames <= 0 {
		return nil, nil
	}
	if fps <= 0 {
		return nil, fmt.Errorf("fps must be positive, got %g", fps)
	}
	analyzer, err := NewAnalyzer(config.AnalyserFFTSize, config.AnalyserSmoothing)
	if err != nil {
		return nil, err
	}
	dyn := NewDynamics(cfg)
	mono := buf.Mono()

	levels := make([]float64, totalFrames)
	for i := range levels {
		pos := int(math.Round(float64(i) / fps * float64(buf.SampleRate)))
		bins := analyzer.Process(WindowEndingAt(mono, pos, analyzer.FFTSize()))
		levels[i] = dyn.Step(BandLevel(bins, cfg))
		if step != nil {
			step(i, levels[i])
		}
	}
	return levels, nil
}

// LevelProfile holds the per-frame levels from the analysis pass.
type LevelProfile struct {
	Levels []float64
	Method Method

	Peak float64 // highest level across all frames
	Mean float64

	SampleRate int
	Duration   float64 // seconds of source audio
}

// ProgressCallback is called with progress updates during analysis
type ProgressCallback func(frame, totalFrames int, level float64, elapsed time.Duration)

// AnalyzeLevels performs Pass 1: compute the level for every export frame and
// collect summary statistics.
func AnalyzeLevels(buf *Buffer, totalFrames int, fps float64, method Method, cfg DynamicsConfig, progressCb ProgressCallback) (*LevelProfile, error) {
	if buf == nil || buf.Len() == 0 {
		return nil, fmt.Errorf("no audio data")
	}

	profile := &LevelProfile{
		Method:     method,
		SampleRate: buf.SampleRate,
		Duration:   buf.Seconds(),
	}

	startTime := time.Now()
	var sum float64
	step := func(i int, level float64) {
		sum += level
		profile.Peak = max(profile.Peak, level)

		// Throttle to every 3 frames, always report the last
		if progressCb != nil && (i%3 == 0 || i == totalFrames-1) {
			progressCb(i+1, totalFrames, level, time.Since(startTime))
		}
	}

	switch method {
	case MethodBands:
		levels, err := bandEnvelope(buf, totalFrames, fps, cfg, step)
		if err != nil {
			return nil, err
		}
		profile.Levels = levels
	default:
		profile.Levels = envelope(buf, totalFrames, step)
	}

	if len(profile.Levels) > 0 {
		profile.Mean = sum / float64(len(profile.Levels))
	}
	return profile, nil
}

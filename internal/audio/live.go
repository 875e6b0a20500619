package audio

import (
	"time"

	"github.com/linuxmatters/asciifire/internal/config"
)

// Live derives the reactive level from a playback position, feeding the
// window of audio that has just been heard through the Analyzer and Dynamics.
type Live struct {
	analyzer   *Analyzer
	dynamics   *Dynamics
	mono       []float64
	sampleRate int
}

// NewLive prepares live analysis of buf.
func NewLive(buf *Buffer, cfg DynamicsConfig) (*Live, error) {
	analyzer, err := NewAnalyzer(config.AnalyserFFTSize, config.AnalyserSmoothing)
	if err != nil {
		return nil, err
	}
	return &Live{
		analyzer:   analyzer,
		dynamics:   NewDynamics(cfg),
		mono:       buf.Mono(),
		sampleRate: buf.SampleRate,
	}, nil
}

// LevelAt advances the dynamics using audio up to pos. A nil Live has no
// audio and always reports 0.
func (l *Live) LevelAt(pos time.Duration) float64 {
	if l == nil {
		return 0
	}
	frame := int(pos.Seconds() * float64(l.sampleRate))
	bins := l.analyzer.Process(WindowEndingAt(l.mono, frame, l.analyzer.FFTSize()))
	return l.dynamics.Step(BandLevel(bins, l.dynamics.Config()))
}

// Spectrum returns the most recent byte spectrum.
func (l *Live) Spectrum() []byte {
	if l == nil {
		return nil
	}
	return l.analyzer.bins
}

// Reset clears analyser and dynamics history, e.g. after a seek.
func (l *Live) Reset() {
	if l == nil {
		return
	}
	l.analyzer.Reset()
	l.dynamics.Reset()
}

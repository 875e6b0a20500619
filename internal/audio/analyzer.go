package audio

import (
	"fmt"
	"math"

	"github.com/argusdusty/gofft"
)

// Decibel range mapped onto the 0..255 byte spectrum.
const (
	MinDecibels = -100.0
	MaxDecibels = -30.0
)

// Analyzer produces a byte frequency spectrum from a window of mono samples,
// matching the behaviour of a browser AnalyserNode: Blackman window, FFT,
// magnitude/N, temporal smoothing, then a dB to byte mapping.
type Analyzer struct {
	fftSize   int
	smoothing float64

	window   []float64
	smoothed []float64
	input    []complex128
	bins     []byte
}

// NewAnalyzer creates an analyzer. fftSize must be a power of two.
func NewAnalyzer(fftSize int, smoothing float64) (*Analyzer, error) {
	if fftSize < 2 || fftSize&(fftSize-1) != 0 {
		return nil, fmt.Errorf("fft size %d is not a power of two", fftSize)
	}
	if smoothing < 0 || smoothing >= 1 {
		return nil, fmt.Errorf("smoothing %v outside [0, 1)", smoothing)
	}

	return &Analyzer{
		fftSize:   fftSize,
		smoothing: smoothing,
		window:    blackman(fftSize),
		smoothed:  make([]float64, fftSize/2),
		input:     make([]complex128, fftSize),
		bins:      make([]byte, fftSize/2),
	}, nil
}

// blackman returns the Blackman window (alpha 0.16) used by AnalyserNode.
func blackman(n int) []float64 {
	const (
		a0 = 0.42
		a1 = 0.5
		a2 = 0.08
	)
	w := make([]float64, n)
	for i := range w {
		x := float64(i) / float64(n)
		w[i] = a0 - a1*math.Cos(2*math.Pi*x) + a2*math.Cos(4*math.Pi*x)
	}
	return w
}

// FFTSize returns the window length in samples.
func (a *Analyzer) FFTSize() int {
	return a.fftSize
}

// FrequencyBinCount returns the number of spectrum bins, half the FFT size.
func (a *Analyzer) FrequencyBinCount() int {
	return a.fftSize / 2
}

// Process analyses the last FFTSize samples of window and returns the byte
// spectrum. Shorter input is zero-padded at the front. The returned slice is
// reused by the next call.
func (a *Analyzer) Process(window []float64) []byte {
	n := a.fftSize
	if len(window) > n {
		window = window[len(window)-n:]
	}
	pad := n - len(window)
	for i := 0; i < pad; i++ {
		a.input[i] = 0
	}
	for i, s := range window {
		a.input[pad+i] = complex(s*a.window[pad+i], 0)
	}

	// Length is a power of two, checked in NewAnalyzer
	_ = gofft.FFT(a.input)

	scale := 1 / float64(n)
	rangeScale := 255 / (MaxDecibels - MinDecibels)
	for k := range a.bins {
		c := a.input[k]
		mag := math.Hypot(real(c), imag(c)) * scale
		a.smoothed[k] = a.smoothing*a.smoothed[k] + (1-a.smoothing)*mag

		db := MinDecibels
		if a.smoothed[k] > 0 {
			db = 20 * math.Log10(a.smoothed[k])
		}
		v := math.Floor(rangeScale * (db - MinDecibels))
		a.bins[k] = byte(max(0, min(255, v)))
	}
	return a.bins
}

// Reset clears the smoothing history.
func (a *Analyzer) Reset() {
	clear(a.smoothed)
}

package audio

import "time"

// Buffer is fully decoded audio with one sample slice per channel.
type Buffer struct {
	SampleRate int
	Channels   [][]float64
}

// Len returns the number of frames (samples per channel).
func (b *Buffer) Len() int {
	if b == nil || len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the playing time of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(b.Len()) / float64(b.SampleRate) * float64(time.Second))
}

// Seconds returns the playing time in seconds.
func (b *Buffer) Seconds() float64 {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Len()) / float64(b.SampleRate)
}

// Mono averages all channels into one.
func (b *Buffer) Mono() []float64 {
	n := b.Len()
	if n == 0 {
		return nil
	}
	if len(b.Channels) == 1 {
		return b.Channels[0]
	}
	out := make([]float64, n)
	scale := 1 / float64(len(b.Channels))
	for _, ch := range b.Channels {
		for i, s := range ch[:n] {
			out[i] += s * scale
		}
	}
	return out
}

// WindowEndingAt returns the size samples of mono ending at frame pos.
// Samples before the start or past the end of mono read as silence.
func WindowEndingAt(mono []float64, pos, size int) []float64 {
	out := make([]float64, size)
	start := pos - size
	lo, hi := max(start, 0), min(pos, len(mono))
	if lo < hi {
		copy(out[lo-start:], mono[lo:hi])
	}
	return out
}

// Interleaved16 renders the buffer as little-endian signed 16-bit PCM.
func (b *Buffer) Interleaved16() []byte {
	n := b.Len()
	nch := len(b.Channels)
	out := make([]byte, n*nch*2)
	o := 0
	for i := 0; i < n; i++ {
		for ch := 0; ch < nch; ch++ {
			s := b.Channels[ch][i]
			s = max(-1, min(1, s))
			v := int16(s * 32767)
			out[o] = byte(v)
			out[o+1] = byte(v >> 8)
			o += 2
		}
	}
	return out
}

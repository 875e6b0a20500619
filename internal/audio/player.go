package audio

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

const (
	playbackChannels = 2
	bytesPerSample   = 2 // signed 16-bit
)

// countingReader wraps an io.Reader and tracks bytes read.
type countingReader struct {
	reader io.Reader
	pos    int64
	mu     sync.Mutex
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.reader.Read(p)
	cr.mu.Lock()
	cr.pos += int64(n)
	cr.mu.Unlock()
	return n, err
}

func (cr *countingReader) Pos() int64 {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	return cr.pos
}

var (
	globalOtoCtx  *oto.Context
	otoSampleRate int
	otoOnce       sync.Once
	otoInitErr    error
)

// initOto creates the process-wide output context. oto allows only one, so
// the first caller fixes the sample rate.
func initOto(sampleRate int) (*oto.Context, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: playbackChannels,
			Format:       oto.FormatSignedInt16LE,
		}
		var ready chan struct{}
		globalOtoCtx, ready, otoInitErr = oto.NewContext(op)
		if otoInitErr == nil {
			<-ready
			otoSampleRate = sampleRate
		}
	})
	if otoInitErr != nil {
		return nil, otoInitErr
	}
	if otoSampleRate != sampleRate {
		return nil, fmt.Errorf("audio output already running at %d Hz, cannot play %d Hz", otoSampleRate, sampleRate)
	}
	return globalOtoCtx, nil
}

// Player plays a decoded Buffer through the system audio output.
type Player struct {
	counter     *countingReader
	otoPlayer   *oto.Player
	bytesPerSec float64
	total       int64
	mu          sync.Mutex
	paused      bool
}

// NewPlayer starts playing buf.
func NewPlayer(buf *Buffer) (*Player, error) {
	ctx, err := initOto(buf.SampleRate)
	if err != nil {
		return nil, err
	}

	pcm := stereo(buf).Interleaved16()
	cr := &countingReader{reader: bytes.NewReader(pcm)}
	p := &Player{
		counter:     cr,
		otoPlayer:   ctx.NewPlayer(cr),
		bytesPerSec: float64(buf.SampleRate * playbackChannels * bytesPerSample),
		total:       int64(len(pcm)),
	}
	p.otoPlayer.SetVolume(0.8)
	p.otoPlayer.Play()
	return p, nil
}

// stereo duplicates a mono buffer into two channels and drops any beyond two.
func stereo(buf *Buffer) *Buffer {
	switch len(buf.Channels) {
	case 1:
		return &Buffer{SampleRate: buf.SampleRate, Channels: [][]float64{buf.Channels[0], buf.Channels[0]}}
	case 2:
		return buf
	default:
		return &Buffer{SampleRate: buf.SampleRate, Channels: buf.Channels[:2]}
	}
}

// Position returns how far playback has consumed the stream. oto buffers a
// little ahead, so this leads the audible position slightly.
func (p *Player) Position() time.Duration {
	secs := float64(p.counter.Pos()) / p.bytesPerSec
	return time.Duration(secs * float64(time.Second))
}

// Done reports whether the whole buffer has been consumed.
func (p *Player) Done() bool {
	return p.counter.Pos() >= p.total
}

// TogglePause toggles between play and pause.
func (p *Player) TogglePause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.paused {
		p.otoPlayer.Play()
	} else {
		p.otoPlayer.Pause()
	}
	p.paused = !p.paused
}

// Paused returns whether playback is paused.
func (p *Player) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Close stops playback.
func (p *Player) Close() error {
	p.otoPlayer.Pause()
	return p.otoPlayer.Close()
}

package pipeline

import (
	"context"
	"fmt"
	"image"
	"math"
	"sync/atomic"
	"time"

	"github.com/linuxmatters/asciifire/internal/media"
)

// Source supplies the pixels frames are converted from.
type Source interface {
	// FrameAt returns the image at t and a generation that changes whenever
	// the pixels do. A media.ErrSeekTimeout error is soft: the image is the
	// last good frame.
	FrameAt(ctx context.Context, t time.Duration) (*image.RGBA, uint64, error)

	// Size returns the source dimensions
	Size() (int, int)

	// Duration is the loop length; zero for stills
	Duration() time.Duration

	Close() error
}

// StillSource serves one image for every t.
type StillSource struct {
	img *image.RGBA
	gen uint64
}

// NewStillSource wraps img. gen distinguishes it from earlier images in
// engine caches.
func NewStillSource(img *image.RGBA, gen uint64) *StillSource {
	return &StillSource{img: img, gen: gen}
}

func (s *StillSource) FrameAt(context.Context, time.Duration) (*image.RGBA, uint64, error) {
	return s.img, s.gen, nil
}

func (s *StillSource) Size() (int, int) {
	return s.img.Rect.Dx(), s.img.Rect.Dy()
}

func (s *StillSource) Duration() time.Duration { return 0 }

func (s *StillSource) Close() error { return nil }

// VideoSource loops a video file.
type VideoSource struct {
	reader *media.VideoReader
	base   uint64
}

func (v *VideoSource) FrameAt(ctx context.Context, t time.Duration) (*image.RGBA, uint64, error) {
	img, err := v.reader.FrameAt(ctx, v.reader.LoopTime(t))
	return img, v.base + v.reader.Generation(), err
}

func (v *VideoSource) Size() (int, int) { return v.reader.Size() }

func (v *VideoSource) Duration() time.Duration { return v.reader.Info().Duration }

func (v *VideoSource) Close() error { return v.reader.Close() }

// Streamer is a Source that can also be read front to back at a fixed rate.
// Exports prefer a stream over per-frame seeks.
type Streamer interface {
	Stream(ctx context.Context, fps float64) (Source, error)
}

// Stream opens a looping sequential decode of the video at fps.
func (v *VideoSource) Stream(ctx context.Context, fps float64) (Source, error) {
	fs, err := v.reader.OpenStream(ctx, fps)
	if err != nil {
		return nil, err
	}
	return &streamSource{stream: fs, fps: fps, duration: v.Duration(), base: nextGeneration()}, nil
}

// streamSource serves frames from a FrameStream. Times must not go
// backwards; a repeated time returns the same frame.
type streamSource struct {
	stream   *media.FrameStream
	fps      float64
	duration time.Duration
	base     uint64

	img *image.RGBA
}

func (s *streamSource) FrameAt(_ context.Context, t time.Duration) (*image.RGBA, uint64, error) {
	want := int(math.Round(t.Seconds() * s.fps))
	if want < s.stream.Frames()-1 {
		return s.img, s.base + uint64(s.stream.Frames()), fmt.Errorf("stream cannot rewind to %s", t)
	}
	for s.img == nil || s.stream.Frames() <= want {
		img, err := s.stream.Next()
		if err != nil {
			return s.img, s.base + uint64(s.stream.Frames()), err
		}
		s.img = img
	}
	return s.img, s.base + uint64(s.stream.Frames()), nil
}

func (s *streamSource) Size() (int, int) { return s.stream.Size() }

func (s *streamSource) Duration() time.Duration { return s.duration }

func (s *streamSource) Close() error { return s.stream.Close() }

var sourceGeneration atomic.Uint64

// nextGeneration hands out disjoint generation ranges so a reloaded source
// never collides with a cached grid from the previous one.
func nextGeneration() uint64 {
	return sourceGeneration.Add(1 << 32)
}

// OpenSource opens path as a video when its extension says so and as a
// still image otherwise.
func OpenSource(ctx context.Context, path string, seekTimeout time.Duration) (Source, error) {
	if media.IsVideo(path) {
		r, err := media.OpenVideo(ctx, path, seekTimeout)
		if err != nil {
			return nil, err
		}
		Logger().Debug("opened video source", "path", path, "info", r.Info())
		return &VideoSource{reader: r, base: nextGeneration()}, nil
	}

	img, err := media.LoadImage(path)
	if err != nil {
		return nil, err
	}
	Logger().Debug("opened image source", "path", path, "width", img.Rect.Dx(), "height", img.Rect.Dy())
	return NewStillSource(img, nextGeneration()), nil
}

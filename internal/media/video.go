package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"time"
)

// ErrSeekTimeout is returned alongside the previous frame when a seek misses
// its deadline. Callers treat it as a soft failure.
var ErrSeekTimeout = errors.New("video seek timed out")

// MaxDecodeWidth caps the width frames are decoded at. Sampling a grid of a
// few hundred cells gains nothing from more pixels.
const MaxDecodeWidth = 1280

// VideoReader extracts single frames from a video file by seeking an ffmpeg
// subprocess. It is not safe for concurrent use.
type VideoReader struct {
	path    string
	ffmpeg  string
	info    Info
	width   int
	height  int
	timeout time.Duration

	// decodeFrame is v.decode outside tests
	decodeFrame func(ctx context.Context, t time.Duration) (*image.RGBA, error)
	pending     *pendingSeek

	last   *image.RGBA
	lastAt time.Duration
	frames uint64
}

// pendingSeek is a decode still running after its caller gave up waiting.
type pendingSeek struct {
	at     time.Duration
	done   chan seekResult
	cancel context.CancelFunc
}

type seekResult struct {
	at  time.Duration
	img *image.RGBA
	err error
}

// OpenVideo probes path and prepares a reader. timeout is the soft deadline
// for each seek; zero disables it.
func OpenVideo(ctx context.Context, path string, timeout time.Duration) (*VideoReader, error) {
	ffmpeg, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("%w: ffmpeg not found", ErrLoadFailed)
	}
	info, err := Probe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if !info.HasVideo || info.Width <= 0 || info.Height <= 0 {
		return nil, fmt.Errorf("%w: %s: no video stream", ErrLoadFailed, path)
	}

	w, h := decodeSize(info.Width, info.Height)
	v := &VideoReader{
		path:    path,
		ffmpeg:  ffmpeg,
		info:    info,
		width:   w,
		height:  h,
		timeout: timeout,
		lastAt:  -1,
	}
	v.decodeFrame = v.decode
	return v, nil
}

// decodeSize scales to MaxDecodeWidth preserving aspect, keeping both sides
// even for the scaler.
func decodeSize(w, h int) (int, int) {
	if w <= MaxDecodeWidth {
		return w, h
	}
	nh := h * MaxDecodeWidth / w
	return MaxDecodeWidth, max(2, nh&^1)
}

// Path returns the file the reader decodes.
func (v *VideoReader) Path() string { return v.path }

// Info returns the probed stream metadata.
func (v *VideoReader) Info() Info { return v.info }

// Size returns the decoded frame size.
func (v *VideoReader) Size() (int, int) { return v.width, v.height }

// Generation counts successfully decoded frames. It changes whenever FrameAt
// returns new pixels.
func (v *VideoReader) Generation() uint64 { return v.frames }

// LoopTime wraps t into the stream duration.
func (v *VideoReader) LoopTime(t time.Duration) time.Duration {
	d := v.info.Duration
	if d <= 0 {
		return t
	}
	return t % d
}

// FrameAt returns the frame at t. The deadline is soft: a seek that misses
// it keeps decoding in the background while the previous frame is returned
// with ErrSeekTimeout, and its result is picked up by a later call. Only one
// ffmpeg runs at a time.
// The returned image is owned by the reader until the next call.
func (v *VideoReader) FrameAt(ctx context.Context, t time.Duration) (*image.RGBA, error) {
	v.collect()
	if v.last != nil && t == v.lastAt {
		return v.last, nil
	}

	// The first frame has no fallback, so only later seeks get a deadline.
	var deadline <-chan time.Time
	if v.timeout > 0 && v.last != nil {
		timer := time.NewTimer(v.timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	if v.pending != nil {
		if _, err := v.wait(ctx, deadline); err != nil {
			return v.fallback(t, err)
		}
		if v.last != nil && t == v.lastAt {
			return v.last, nil
		}
	}

	v.start(ctx, t)
	res, err := v.wait(ctx, deadline)
	if err != nil {
		return v.fallback(t, err)
	}
	if res.err != nil {
		if v.last != nil && errors.Is(res.err, io.ErrUnexpectedEOF) {
			// Seeking past the final decodable frame yields nothing.
			return v.last, nil
		}
		return nil, res.err
	}
	return res.img, nil
}

// Close stops any decode still in flight.
func (v *VideoReader) Close() error {
	if v.pending != nil {
		v.pending.cancel()
		<-v.pending.done
		v.pending = nil
	}
	return nil
}

func (v *VideoReader) start(ctx context.Context, t time.Duration) {
	ctx, cancel := context.WithCancel(ctx)
	p := &pendingSeek{at: t, done: make(chan seekResult, 1), cancel: cancel}
	decode := v.decodeFrame
	go func() {
		defer cancel()
		img, err := decode(ctx, t)
		p.done <- seekResult{at: t, img: img, err: err}
	}()
	v.pending = p
}

// wait blocks until the pending seek finishes, the deadline fires or ctx
// ends. A finished seek becomes the last frame.
func (v *VideoReader) wait(ctx context.Context, deadline <-chan time.Time) (seekResult, error) {
	select {
	case res := <-v.pending.done:
		v.finish(res)
		return res, nil
	case <-deadline:
		return seekResult{}, ErrSeekTimeout
	case <-ctx.Done():
		return seekResult{}, ctx.Err()
	}
}

// collect picks up a background seek that has finished since the last call.
func (v *VideoReader) collect() {
	if v.pending == nil {
		return
	}
	select {
	case res := <-v.pending.done:
		v.finish(res)
	default:
	}
}

func (v *VideoReader) finish(res seekResult) {
	v.pending = nil
	if res.err == nil && res.img != nil {
		v.last, v.lastAt = res.img, res.at
		v.frames++
	}
}

func (v *VideoReader) fallback(t time.Duration, err error) (*image.RGBA, error) {
	if errors.Is(err, ErrSeekTimeout) && v.last != nil {
		return v.last, fmt.Errorf("%w at %s", ErrSeekTimeout, formatDuration(t))
	}
	return nil, err
}

func (v *VideoReader) decode(ctx context.Context, t time.Duration) (*image.RGBA, error) {
	cmd := exec.CommandContext(ctx, v.ffmpeg,
		"-v", "error",
		"-ss", formatDuration(t),
		"-i", v.path,
		"-frames:v", "1",
		"-an",
		"-vf", "scale="+strconv.Itoa(v.width)+":"+strconv.Itoa(v.height),
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: starting ffmpeg: %w", ErrLoadFailed, err)
	}

	rgb := make([]byte, v.width*v.height*3)
	_, readErr := io.ReadFull(stdout, rgb)
	// Drain so Wait does not block on a full pipe.
	_, _ = io.Copy(io.Discard, stdout)
	waitErr := cmd.Wait()

	if readErr != nil {
		if readErr == io.EOF {
			readErr = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("%w: reading frame at %s: %w", ErrLoadFailed, formatDuration(t), readErr)
	}
	if waitErr != nil && ctx.Err() == nil {
		return nil, fmt.Errorf("%w: ffmpeg: %w", ErrLoadFailed, waitErr)
	}
	return RGBToRGBA(rgb, v.width, v.height), nil
}

// RGBToRGBA expands packed rgb24 into an opaque *image.RGBA.
func RGBToRGBA(rgb []byte, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	n := min(len(rgb)/3, w*h)
	for i := 0; i < n; i++ {
		img.Pix[i*4] = rgb[i*3]
		img.Pix[i*4+1] = rgb[i*3+1]
		img.Pix[i*4+2] = rgb[i*3+2]
		img.Pix[i*4+3] = 0xff
	}
	return img
}

// formatDuration renders d as HH:MM:SS.mmm for ffmpeg's -ss flag.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	h := ms / 3_600_000
	ms -= h * 3_600_000
	m := ms / 60_000
	ms -= m * 60_000
	s := ms / 1000
	ms -= s * 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

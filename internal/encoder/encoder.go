// Package encoder muxes rendered RGB frames and an optional audio track into
// an H.264 MP4 by piping raw video into an ffmpeg subprocess.
package encoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrExportFailed wraps every failure to start, feed or finalise the encoder.
var ErrExportFailed = errors.New("export failed")

// Config holds the encoder configuration
type Config struct {
	OutputPath    string        // Path to output MP4 file
	Width         int           // Video width in pixels
	Height        int           // Video height in pixels
	Framerate     int           // Frames per second
	AudioPath     string        // Optional audio file muxed as AAC
	AudioDuration time.Duration // Limits how much audio is read; 0 reads it all
	HWEncoder     *HWEncoder    // nil selects libx264
}

// Validate rejects configurations ffmpeg would fail on.
func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("invalid dimensions: %dx%d", c.Width, c.Height)
	}
	// yuv420p subsamples chroma 2x2
	if c.Width%2 != 0 || c.Height%2 != 0 {
		return fmt.Errorf("dimensions must be even for yuv420p: %dx%d", c.Width, c.Height)
	}
	if c.Framerate <= 0 {
		return fmt.Errorf("invalid framerate: %d", c.Framerate)
	}
	if c.OutputPath == "" {
		return fmt.Errorf("output path cannot be empty")
	}
	if c.AudioDuration < 0 {
		return fmt.Errorf("invalid audio duration: %s", c.AudioDuration)
	}
	return nil
}

// Encoder feeds frames to ffmpeg over stdin.
type Encoder struct {
	config Config
	ffmpeg string

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *tailBuffer
	cancel context.CancelFunc

	frameSize int
	frames    int
	closeOnce sync.Once
	closeErr  error
}

// New validates config and returns an encoder ready for Initialize.
func New(config Config) (*Encoder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Encoder{
		config:    config,
		frameSize: config.Width * config.Height * 3,
	}, nil
}

// Args returns the ffmpeg argument list for this configuration.
func (e *Encoder) Args() []string {
	c := e.config
	args := []string{"-y", "-hide_banner", "-v", "error"}
	args = append(args, e.config.HWEncoder.deviceArgs()...)

	args = append(args,
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-s", strconv.Itoa(c.Width)+"x"+strconv.Itoa(c.Height),
		"-r", strconv.Itoa(c.Framerate),
		"-i", "pipe:0",
	)
	if c.AudioPath != "" {
		if c.AudioDuration > 0 {
			args = append(args, "-t", strconv.FormatFloat(c.AudioDuration.Seconds(), 'f', 3, 64))
		}
		args = append(args, "-i", c.AudioPath, "-map", "0:v:0", "-map", "1:a:0")
	}

	args = append(args, e.config.HWEncoder.videoArgs()...)
	args = append(args, "-g", strconv.Itoa(c.Framerate*2)) // Keyframe every 2 seconds

	if c.AudioPath != "" {
		args = append(args, "-c:a", "aac", "-b:a", "192k", "-shortest")
	}
	return append(args, "-movflags", "+faststart", c.OutputPath)
}

// Initialize starts the ffmpeg process.
func (e *Encoder) Initialize(ctx context.Context) error {
	ffmpeg, err := exec.LookPath("ffmpeg")
	if err != nil {
		return fmt.Errorf("%w: ffmpeg not found in PATH", ErrExportFailed)
	}
	e.ffmpeg = ffmpeg

	ctx, e.cancel = context.WithCancel(ctx)
	e.cmd = exec.CommandContext(ctx, ffmpeg, e.Args()...)
	e.stderr = newTailBuffer(4096)
	e.cmd.Stderr = e.stderr

	e.stdin, err = e.cmd.StdinPipe()
	if err != nil {
		e.cancel()
		return fmt.Errorf("%w: %w", ErrExportFailed, err)
	}
	if err := e.cmd.Start(); err != nil {
		e.cancel()
		return fmt.Errorf("%w: starting ffmpeg: %w", ErrExportFailed, err)
	}
	return nil
}

// WriteFrame writes one packed RGB24 frame.
func (e *Encoder) WriteFrame(rgbData []byte) error {
	if e.stdin == nil {
		return fmt.Errorf("%w: encoder not initialised", ErrExportFailed)
	}
	if len(rgbData) != e.frameSize {
		return fmt.Errorf("%w: invalid frame size: got %d, expected %d", ErrExportFailed, len(rgbData), e.frameSize)
	}
	if _, err := e.stdin.Write(rgbData); err != nil {
		return fmt.Errorf("%w: writing frame %d: %w%s", ErrExportFailed, e.frames, err, e.stderr.suffix())
	}
	e.frames++
	return nil
}

// FramesWritten returns how many frames have been accepted.
func (e *Encoder) FramesWritten() int { return e.frames }

// Close flushes the encoder and waits for ffmpeg to finalise the file. On
// failure the partial output is removed.
func (e *Encoder) Close() error {
	e.closeOnce.Do(func() {
		if e.cmd == nil {
			return
		}
		defer e.cancel()

		closeErr := e.stdin.Close()
		waitErr := e.cmd.Wait()
		switch {
		case waitErr != nil:
			e.closeErr = fmt.Errorf("%w: ffmpeg: %w%s", ErrExportFailed, waitErr, e.stderr.suffix())
		case closeErr != nil:
			e.closeErr = fmt.Errorf("%w: closing pipe: %w", ErrExportFailed, closeErr)
		case e.frames == 0:
			e.closeErr = fmt.Errorf("%w: no frames written", ErrExportFailed)
		}
		if e.closeErr != nil {
			os.Remove(e.config.OutputPath)
		}
	})
	return e.closeErr
}

// Abort kills ffmpeg and removes the partial output.
func (e *Encoder) Abort() {
	e.closeOnce.Do(func() {
		if e.cmd == nil {
			return
		}
		e.cancel()
		e.stdin.Close()
		e.cmd.Wait()
		os.Remove(e.config.OutputPath)
		e.closeErr = fmt.Errorf("%w: aborted", ErrExportFailed)
	})
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

// suffix formats captured stderr for appending to an error.
func (t *tailBuffer) suffix() string {
	if t == nil {
		return ""
	}
	s := strings.TrimSpace(t.String())
	if s == "" {
		return ""
	}
	return ": " + s
}

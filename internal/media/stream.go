package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
)

// FrameStream decodes a video front to back at a fixed rate with one ffmpeg
// process, looping forever. Exports read it instead of seeking per frame.
type FrameStream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	cancel context.CancelFunc
	stderr *tailWriter

	width, height int
	rgb           []byte
	frames        int
}

// StreamArgs returns the ffmpeg arguments for a looping rgb24 stream of path
// resampled to fps and scaled to width×height.
func StreamArgs(path string, width, height int, fps float64) []string {
	return []string{
		"-v", "error",
		"-nostdin",
		"-stream_loop", "-1",
		"-i", path,
		"-an",
		"-vf", "fps=" + strconv.FormatFloat(fps, 'f', -1, 64) +
			",scale=" + strconv.Itoa(width) + ":" + strconv.Itoa(height),
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1",
	}
}

// OpenStream starts decoding r's file at fps and r's decode size.
func (v *VideoReader) OpenStream(ctx context.Context, fps float64) (*FrameStream, error) {
	if fps <= 0 {
		return nil, fmt.Errorf("invalid stream rate %v", fps)
	}
	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, v.ffmpeg, StreamArgs(v.path, v.width, v.height, fps)...)
	stderr := &tailWriter{max: 2048}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("%w: starting ffmpeg: %w", ErrLoadFailed, err)
	}
	return &FrameStream{
		cmd:    cmd,
		stdout: stdout,
		cancel: cancel,
		stderr: stderr,
		width:  v.width,
		height: v.height,
		rgb:    make([]byte, v.width*v.height*3),
	}, nil
}

// Size returns the frame size.
func (s *FrameStream) Size() (int, int) { return s.width, s.height }

// Frames returns how many frames have been read.
func (s *FrameStream) Frames() int { return s.frames }

// Next reads the next frame.
func (s *FrameStream) Next() (*image.RGBA, error) {
	if _, err := io.ReadFull(s.stdout, s.rgb); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		if msg := s.stderr.String(); msg != "" {
			return nil, fmt.Errorf("%w: frame %d: %w: %s", ErrLoadFailed, s.frames, err, msg)
		}
		return nil, fmt.Errorf("%w: frame %d: %w", ErrLoadFailed, s.frames, err)
	}
	s.frames++
	return RGBToRGBA(s.rgb, s.width, s.height), nil
}

// Close stops ffmpeg.
func (s *FrameStream) Close() error {
	s.cancel()
	_ = s.stdout.Close()
	_ = s.cmd.Wait()
	return nil
}

// tailWriter keeps the last max bytes written to it.
type tailWriter struct {
	max int
	buf []byte
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	if over := len(w.buf) - w.max; over > 0 {
		w.buf = w.buf[over:]
	}
	return len(p), nil
}

func (w *tailWriter) String() string { return string(w.buf) }

package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strconv"
)

const (
	ffmpegSampleRate = 44100
	ffmpegChannels   = 2
)

// FFmpegDecoder implements Decoder by piping any format ffmpeg understands
// through an `ffmpeg -f f32le` subprocess.
type FFmpegDecoder struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	cancel context.CancelFunc
	buf    []byte
}

// NewFFmpegDecoder starts an ffmpeg subprocess decoding filename to
// interleaved 32-bit float stereo at 44.1 kHz.
func NewFFmpegDecoder(filename string) (*FFmpegDecoder, error) {
	ffmpeg, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, ffmpeg,
		"-v", "error",
		"-i", filename,
		"-vn",
		"-f", "f32le",
		"-ac", strconv.Itoa(ffmpegChannels),
		"-ar", strconv.Itoa(ffmpegSampleRate),
		"pipe:1",
	)
	cmd.Stdin = nil

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("starting ffmpeg audio decode: %w", err)
	}

	return &FFmpegDecoder{cmd: cmd, stdout: stdout, cancel: cancel}, nil
}

// ReadChunk reads the next chunk of interleaved frames
func (d *FFmpegDecoder) ReadChunk(numFrames int) ([]float64, error) {
	want := numFrames * ffmpegChannels * 4
	if cap(d.buf) < want {
		d.buf = make([]byte, want)
	}
	buf := d.buf[:want]

	n, err := io.ReadFull(d.stdout, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("reading ffmpeg output: %w", err)
	}
	n -= n % (ffmpegChannels * 4)
	if n == 0 {
		if werr := d.wait(); werr != nil {
			return nil, fmt.Errorf("ffmpeg audio decode: %w", werr)
		}
		return nil, io.EOF
	}

	samples := make([]float64, n/4)
	for i := range samples {
		samples[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:])))
	}
	return samples, nil
}

func (d *FFmpegDecoder) wait() error {
	if d.cmd == nil {
		return nil
	}
	err := d.cmd.Wait()
	d.cmd = nil
	return err
}

// SampleRate returns the resampled output rate
func (d *FFmpegDecoder) SampleRate() int {
	return ffmpegSampleRate
}

// NumChannels returns the downmixed channel count
func (d *FFmpegDecoder) NumChannels() int {
	return ffmpegChannels
}

// Close stops the subprocess
func (d *FFmpegDecoder) Close() error {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.cmd != nil {
		d.cmd.Wait()
		d.cmd = nil
	}
	return nil
}

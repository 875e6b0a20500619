package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/linuxmatters/asciifire/internal/audio"
	"github.com/linuxmatters/asciifire/internal/encoder"
	"github.com/linuxmatters/asciifire/internal/media"
)

// recordingSink stands in for the ffmpeg encoder.
type recordingSink struct {
	cfg         encoder.Config
	initialized bool
	closed      bool
	aborted     bool
	frames      int
	frameBytes  int
}

func (s *recordingSink) Initialize(context.Context) error {
	s.initialized = true
	return nil
}

func (s *recordingSink) WriteFrame(rgb []byte) error {
	if !s.initialized {
		return errors.New("not initialized")
	}
	s.frames++
	s.frameBytes = len(rgb)
	return nil
}

func (s *recordingSink) Close() error {
	s.closed = true
	return nil
}

func (s *recordingSink) Abort() { s.aborted = true }

func (s *recordingSink) factory() func(encoder.Config) (FrameSink, error) {
	return func(cfg encoder.Config) (FrameSink, error) {
		s.cfg = cfg
		return s, nil
	}
}

// scriptedSource serves one image, reporting a missed seek deadline on every
// timeoutEvery-th call.
type scriptedSource struct {
	img          *image.RGBA
	timeoutEvery int
	calls        int
	closed       bool
}

func (s *scriptedSource) FrameAt(_ context.Context, t time.Duration) (*image.RGBA, uint64, error) {
	s.calls++
	if s.timeoutEvery > 0 && s.calls%s.timeoutEvery == 0 {
		return s.img, 1, fmt.Errorf("%w at %s", media.ErrSeekTimeout, t)
	}
	return s.img, 1, nil
}

func (s *scriptedSource) Size() (int, int)        { return s.img.Rect.Dx(), s.img.Rect.Dy() }
func (s *scriptedSource) Duration() time.Duration { return time.Second }
func (s *scriptedSource) Close() error            { s.closed = true; return nil }

// streamingSource hands out a separate sequential source.
type streamingSource struct {
	scriptedSource
	stream *scriptedSource
}

func (s *streamingSource) Stream(context.Context, float64) (Source, error) {
	return s.stream, nil
}

func TestExport_Frames(t *testing.T) {
	testCases := []struct {
		name         string
		timeoutEvery int
		wantTimeouts int
	}{
		{name: "every seek on time", timeoutEvery: 0, wantTimeouts: 0},
		{name: "missed seeks are soft", timeoutEvery: 3, wantTimeouts: 2},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRenderer(t, nil)
			src := &scriptedSource{img: gradientImage(60, 40), timeoutEvery: tc.timeoutEvery}
			sink := &recordingSink{}

			res, err := Export(context.Background(), r, src, ExportOptions{
				OutputPath: filepath.Join(t.TempDir(), "out.mp4"),
				Duration:   200 * time.Millisecond,
				NewSink:    sink.factory(),
			}, Hooks{})
			if err != nil {
				t.Fatalf("Export: %v", err)
			}
			if res.TotalFrames != 6 || sink.frames != 6 {
				t.Errorf("frames = %d written of %d, want 6", sink.frames, res.TotalFrames)
			}
			if res.Timeouts != tc.wantTimeouts {
				t.Errorf("timeouts = %d, want %d", res.Timeouts, tc.wantTimeouts)
			}
			if sink.frameBytes != 240*160*3 {
				t.Errorf("frame bytes = %d, want %d", sink.frameBytes, 240*160*3)
			}
			if !sink.closed || sink.aborted {
				t.Errorf("sink closed=%v aborted=%v, want a clean close", sink.closed, sink.aborted)
			}
			if sink.cfg.Width != 240 || sink.cfg.Height != 160 || sink.cfg.AudioPath != "" {
				t.Errorf("encoder config = %+v", sink.cfg)
			}
		})
	}
}

// TestExport_PrefersStream checks a video source is read sequentially
// rather than seeked, and the stream is closed afterwards.
func TestExport_PrefersStream(t *testing.T) {
	r := newTestRenderer(t, nil)
	img := gradientImage(60, 40)
	src := &streamingSource{
		scriptedSource: scriptedSource{img: img},
		stream:         &scriptedSource{img: img},
	}
	sink := &recordingSink{}

	_, err := Export(context.Background(), r, src, ExportOptions{
		OutputPath: filepath.Join(t.TempDir(), "out.mp4"),
		Duration:   100 * time.Millisecond,
		NewSink:    sink.factory(),
	}, Hooks{})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if src.calls != 0 {
		t.Errorf("seeking source read %d times, want 0", src.calls)
	}
	if src.stream.calls != 3 || !src.stream.closed {
		t.Errorf("stream reads = %d closed = %v, want 3 and closed", src.stream.calls, src.stream.closed)
	}
}

// TestExport_CancelAborts cancels mid-run and checks the loop stops between
// frames and aborts the output.
func TestExport_CancelAborts(t *testing.T) {
	r := newTestRenderer(t, nil)
	src := &scriptedSource{img: gradientImage(60, 40)}
	sink := &recordingSink{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hooks := Hooks{
		ProgressEvery: 1,
		Frame: func(fp FrameProgress) {
			if fp.Frame == 3 {
				cancel()
			}
		},
	}

	res, err := Export(ctx, r, src, ExportOptions{
		OutputPath: filepath.Join(t.TempDir(), "out.mp4"),
		Duration:   time.Second,
		NewSink:    sink.factory(),
	}, hooks)
	if res != nil {
		t.Errorf("result = %+v, want nil", res)
	}
	if !errors.Is(err, context.Canceled) || !errors.Is(err, encoder.ErrExportFailed) {
		t.Fatalf("error = %v, want ErrExportFailed wrapping context.Canceled", err)
	}
	if !sink.aborted || sink.closed {
		t.Errorf("sink aborted=%v closed=%v, want aborted only", sink.aborted, sink.closed)
	}
	if sink.frames != 3 {
		t.Errorf("frames written = %d, want 3", sink.frames)
	}
}

// writeRampWAV writes one second of mono audio whose amplitude rises
// linearly to peak.
func writeRampWAV(t *testing.T, path string, peak float64) {
	t.Helper()
	const rate = 8000
	data := make([]int, rate)
	for i := range data {
		data[i] = int(peak * 32767 * float64(i) / rate)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	if err := enc.Write(&goaudio.IntBuffer{
		Data:           data,
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: rate},
		SourceBitDepth: 16,
	}); err != nil {
		t.Fatalf("writing wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("closing wav: %v", err)
	}
}

// TestExport_OneLevelPerFrame checks every frame renders with its own
// pass 1 level.
func TestExport_OneLevelPerFrame(t *testing.T) {
	dir := t.TempDir()
	wavPath := filepath.Join(dir, "ramp.wav")
	writeRampWAV(t, wavPath, 0.4)

	r := newTestRenderer(t, nil)
	src := &scriptedSource{img: gradientImage(60, 40)}
	sink := &recordingSink{}

	var profile *audio.LevelProfile
	var reported []FrameProgress
	hooks := Hooks{
		ProgressEvery: 1,
		AnalysisDone:  func(p *audio.LevelProfile) { profile = p },
		Frame:         func(fp FrameProgress) { reported = append(reported, fp) },
	}

	_, err := Export(context.Background(), r, src, ExportOptions{
		OutputPath: filepath.Join(dir, "out.mp4"),
		AudioPath:  wavPath,
		Duration:   500 * time.Millisecond,
		Method:     audio.MethodEnvelope,
		Dynamics:   audio.DefaultDynamics(),
		NewSink:    sink.factory(),
	}, hooks)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	if profile == nil || len(profile.Levels) != 15 {
		t.Fatalf("profile = %+v, want 15 levels", profile)
	}
	if len(reported) != 15 {
		t.Fatalf("progress reports = %d, want 15", len(reported))
	}
	for i, fp := range reported {
		if fp.Frame != i+1 {
			t.Fatalf("report %d is for frame %d", i, fp.Frame)
		}
		if fp.Level != profile.Levels[i] {
			t.Errorf("frame %d level = %v, want %v", i, fp.Level, profile.Levels[i])
		}
		if i > 0 && fp.Level <= reported[i-1].Level {
			t.Errorf("level did not rise at frame %d: %v after %v", i, fp.Level, reported[i-1].Level)
		}
	}
	if sink.cfg.AudioPath != wavPath || sink.cfg.AudioDuration != 500*time.Millisecond {
		t.Errorf("audio mux = %q for %v", sink.cfg.AudioPath, sink.cfg.AudioDuration)
	}
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/linuxmatters/asciifire/internal/audio"
	"github.com/linuxmatters/asciifire/internal/config"
	"github.com/linuxmatters/asciifire/internal/encoder"
	"github.com/linuxmatters/asciifire/internal/media"
	"github.com/linuxmatters/asciifire/internal/timing"
)

// FrameSink receives packed rgb24 frames. *encoder.Encoder is the
// production sink; Abort must remove any partial output.
type FrameSink interface {
	Initialize(ctx context.Context) error
	WriteFrame(rgb []byte) error
	Close() error
	Abort()
}

// NewEncoderSink opens an ffmpeg encoder.
func NewEncoderSink(cfg encoder.Config) (FrameSink, error) {
	enc, err := encoder.New(cfg)
	if err != nil {
		return nil, err
	}
	return enc, nil
}

// ExportOptions configures one export job.
type ExportOptions struct {
	OutputPath string
	AudioPath  string        // optional; drives reactivity and is muxed as AAC
	FullAudio  bool          // export the whole track instead of Duration
	Duration   time.Duration // length without --full-audio; 0 means the default
	Method     audio.Method
	Dynamics   audio.DynamicsConfig
	HWEncoder  *encoder.HWEncoder

	// NewSink builds the output; nil uses NewEncoderSink
	NewSink func(encoder.Config) (FrameSink, error)
}

// FrameProgress reports pass 2 progress. Preview is only valid for the
// duration of the callback and is nil on frames without one.
type FrameProgress struct {
	Frame       int
	TotalFrames int
	Elapsed     time.Duration
	Level       float64
	FileSize    int64
	Preview     *image.RGBA
	Timeouts    int
}

// Hooks receive progress from both passes. Any may be nil.
type Hooks struct {
	Analysis      audio.ProgressCallback
	AnalysisDone  func(*audio.LevelProfile)
	Frame         func(FrameProgress)
	PreviewEvery  int // frames between previews; 0 disables them
	ProgressEvery int // frames between progress reports; 0 means 3
}

// ExportResult summarises a finished export.
type ExportResult struct {
	JobID       string
	OutputPath  string
	TotalFrames int
	Duration    time.Duration // video length
	Elapsed     time.Duration
	RenderTime  time.Duration
	EncodeTime  time.Duration
	FileSize    int64
	Timeouts    int
	Profile     *audio.LevelProfile
}

// ExportFrames returns the number of frames for d at the export rate.
func ExportFrames(d time.Duration) int {
	// Integer maths: 0.2 s * 30 in floats is 6.000000000000001
	n := (int64(d)*config.ExportFPS + int64(time.Second) - 1) / int64(time.Second)
	return max(1, int(n))
}

// Export renders src through r into an MP4 at config.ExportFPS. Pass 1
// computes one audio level per frame; pass 2 renders and encodes. The
// output resolution is checked before any work begins, and the partial file
// is removed on any failure or cancellation.
func Export(ctx context.Context, r *Renderer, src Source, opts ExportOptions, hooks Hooks) (*ExportResult, error) {
	start := time.Now()
	jobID := uuid.NewString()
	log := Logger().With("job", jobID)

	width, height := r.Size()
	if err := config.CheckExportResolution(width, height); err != nil {
		return nil, err
	}

	var buf *audio.Buffer
	if opts.AudioPath != "" {
		var err error
		buf, err = audio.Load(opts.AudioPath)
		if err != nil {
			return nil, err
		}
		log.Debug("audio loaded", "path", opts.AudioPath, "rate", buf.SampleRate, "channels", len(buf.Channels), "duration", buf.Duration())
	}

	duration := opts.Duration
	if duration <= 0 {
		duration = time.Duration(config.ExportDuration * float64(time.Second))
	}
	if opts.FullAudio {
		if buf == nil {
			return nil, fmt.Errorf("--full-audio needs an audio file")
		}
		duration = buf.Duration()
	}
	totalFrames := ExportFrames(duration)

	// Pass 1
	levels := make([]float64, totalFrames)
	var profile *audio.LevelProfile
	if buf != nil {
		var err error
		profile, err = audio.AnalyzeLevels(buf, totalFrames, config.ExportFPS, opts.Method, opts.Dynamics, hooks.Analysis)
		if err != nil {
			return nil, fmt.Errorf("analysing audio: %w", err)
		}
		copy(levels, profile.Levels)
		log.Debug("levels analysed", "method", profile.Method, "peak", profile.Peak, "mean", profile.Mean)
	}
	if hooks.AnalysisDone != nil {
		hooks.AnalysisDone(profile)
	}

	// Pass 2
	encCfg := encoder.Config{
		OutputPath: opts.OutputPath,
		Width:      width,
		Height:     height,
		Framerate:  config.ExportFPS,
		HWEncoder:  opts.HWEncoder,
	}
	if buf != nil {
		encCfg.AudioPath = opts.AudioPath
		encCfg.AudioDuration = duration
	}
	newSink := opts.NewSink
	if newSink == nil {
		newSink = NewEncoderSink
	}
	enc, err := newSink(encCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", encoder.ErrExportFailed, err)
	}
	if err := enc.Initialize(ctx); err != nil {
		return nil, err
	}
	log.Info("export started", "output", opts.OutputPath, "frames", totalFrames, "size", fmt.Sprintf("%dx%d", width, height))

	r.Clock = timing.Clock{
		FPS:        config.ExportFPS,
		PreviewFPS: r.settings.PreviewFPS,
		Cycle:      config.AnimationCycle,
	}

	// Videos decode front to back rather than seeking every frame
	frames := src
	if st, ok := src.(Streamer); ok {
		stream, err := st.Stream(ctx, config.ExportFPS)
		if err != nil {
			log.Warn("sequential decode unavailable, seeking per frame", "error", err)
		} else {
			defer stream.Close()
			frames = stream
		}
	}

	progressEvery := hooks.ProgressEvery
	if progressEvery <= 0 {
		progressEvery = 3
	}

	res := &ExportResult{
		JobID:       jobID,
		OutputPath:  opts.OutputPath,
		TotalFrames: totalFrames,
		Duration:    time.Duration(float64(totalFrames) / config.ExportFPS * float64(time.Second)),
		Profile:     profile,
	}

	var rgb []byte
	renderStart := time.Now()
	for i := 0; i < totalFrames; i++ {
		if err := ctx.Err(); err != nil {
			enc.Abort()
			return nil, fmt.Errorf("%w: %w", encoder.ErrExportFailed, err)
		}

		t := time.Duration(float64(i) / config.ExportFPS * float64(time.Second))
		img, gen, err := frames.FrameAt(ctx, t)
		switch {
		case errors.Is(err, media.ErrSeekTimeout):
			res.Timeouts++
			log.Debug("seek timeout, reusing last frame", "frame", i, "t", t)
		case err != nil:
			enc.Abort()
			return nil, fmt.Errorf("%w: frame %d: %w", encoder.ErrExportFailed, i, err)
		}
		if img != nil {
			r.SetSource(img, gen)
		}

		t0 := time.Now()
		frame, _, err := r.RenderFrame(i, levels[i])
		if err != nil {
			enc.Abort()
			return nil, fmt.Errorf("%w: %w", encoder.ErrExportFailed, err)
		}
		rgb = frame.RGB(rgb)
		res.RenderTime += time.Since(t0)

		t0 = time.Now()
		if err := enc.WriteFrame(rgb); err != nil {
			frame.Release()
			enc.Abort()
			return nil, err
		}
		res.EncodeTime += time.Since(t0)

		if hooks.Frame != nil && (i%progressEvery == 0 || i == totalFrames-1) {
			p := FrameProgress{
				Frame:       i + 1,
				TotalFrames: totalFrames,
				Elapsed:     time.Since(renderStart),
				Level:       levels[i],
				Timeouts:    res.Timeouts,
			}
			if hooks.PreviewEvery > 0 && i%hooks.PreviewEvery == 0 {
				p.Preview = frame.Image()
			}
			if info, err := os.Stat(opts.OutputPath); err == nil {
				p.FileSize = info.Size()
			}
			hooks.Frame(p)
		}
		frame.Release()
	}

	if err := enc.Close(); err != nil {
		return nil, err
	}
	if info, err := os.Stat(opts.OutputPath); err == nil {
		res.FileSize = info.Size()
	}
	res.Elapsed = time.Since(start)
	log.Info("export finished", "output", opts.OutputPath, "bytes", res.FileSize, "elapsed", res.Elapsed, "seek_timeouts", res.Timeouts)
	return res, nil
}

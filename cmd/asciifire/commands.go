package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/linuxmatters/asciifire/internal/audio"
	"github.com/linuxmatters/asciifire/internal/cli"
	"github.com/linuxmatters/asciifire/internal/config"
	"github.com/linuxmatters/asciifire/internal/encoder"
	"github.com/linuxmatters/asciifire/internal/pipeline"
	"github.com/linuxmatters/asciifire/internal/renderer"
	"github.com/linuxmatters/asciifire/internal/server"
	"github.com/linuxmatters/asciifire/internal/ui"
)

// ExportCmd renders an MP4.
type ExportCmd struct {
	Input  string `arg:"" help:"Source image or video." type:"existingfile"`
	Output string `arg:"" help:"Output MP4 file."`

	Render renderFlags `embed:""`
	Sound  audioFlags  `embed:""`

	Width     int           `help:"Output width in pixels; height follows the source aspect." default:"1080"`
	Duration  time.Duration `help:"Video length when not following the audio." default:"5s"`
	FullAudio bool          `help:"Export the whole audio track and mux it into the video."`
	HWAccel   string        `name:"hwaccel" help:"Hardware encoder." enum:"none,auto,nvenc,qsv,vaapi,videotoolbox" default:"none"`
	NoPreview bool          `help:"Disable the frame preview during encoding."`
}

func (c *ExportCmd) Run(g *Globals, rc runContext) error {
	if c.FullAudio && c.Sound.Audio == "" {
		return errors.New("--full-audio needs --audio")
	}
	method, err := audio.ParseMethod(c.Sound.AudioAnalysis)
	if err != nil {
		return err
	}
	// The height is only known once the source is open; reject wide exports early
	if err := config.CheckExportResolution(c.Width, 2); err != nil {
		return err
	}

	font, err := c.Render.font()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(rc)
	defer cancel()

	r, src, err := openRenderer(ctx, c.Input, &c.Render, font, c.Width)
	if err != nil {
		return err
	}
	defer src.Close()
	defer r.Close()

	hwType, _ := encoder.ParseHWAccel(c.HWAccel)
	hw := encoder.SelectBestEncoder(hwType)
	if hwType != encoder.HWAccelNone && hw == nil {
		cli.PrintWarning(fmt.Sprintf("no %s encoder available, using libx264", c.HWAccel))
	}
	videoCodec, encoderName := "H.264 libx264", "libx264 (software)"
	if hw != nil {
		videoCodec, encoderName = "H.264 "+hw.Name, hw.Description
	}
	audioCodec := ""
	track := ""
	if c.Sound.Audio != "" {
		audioCodec = "AAC 192k"
		track = audio.ReadMetadata(c.Sound.Audio).String()
	}

	model := ui.NewModel(c.NoPreview)
	p := tea.NewProgram(model)

	analysisStart := time.Now()
	hooks := pipeline.Hooks{
		Analysis: func(frame, total int, level float64, elapsed time.Duration) {
			if frame%30 == 0 || frame == total {
				p.Send(ui.AnalysisProgress{Frame: frame, TotalFrames: total, Level: level, Elapsed: elapsed})
			}
		},
		AnalysisDone: func(profile *audio.LevelProfile) {
			msg := ui.AnalysisComplete{AnalysisTime: time.Since(analysisStart)}
			if profile != nil {
				msg.HasAudio = true
				msg.Method = profile.Method.String()
				msg.Track = track
				msg.Duration = time.Duration(profile.Duration * float64(time.Second))
				msg.Peak, msg.Mean = profile.Peak, profile.Mean
			}
			p.Send(msg)
		},
		Frame: func(fp pipeline.FrameProgress) {
			var preview *image.RGBA
			if fp.Preview != nil {
				// The frame goes back to the pool after this callback
				preview = image.NewRGBA(fp.Preview.Rect)
				copy(preview.Pix, fp.Preview.Pix)
			}
			p.Send(ui.RenderProgress{
				Frame:       fp.Frame,
				TotalFrames: fp.TotalFrames,
				Elapsed:     fp.Elapsed,
				Level:       fp.Level,
				FileSize:    fp.FileSize,
				Timeouts:    fp.Timeouts,
				FrameData:   preview,
				VideoCodec:  videoCodec,
				AudioCodec:  audioCodec,
			})
		},
		PreviewEvery: 6,
	}
	if c.NoPreview {
		hooks.PreviewEvery = 0
	}

	opts := pipeline.ExportOptions{
		OutputPath: c.Output,
		AudioPath:  c.Sound.Audio,
		FullAudio:  c.FullAudio,
		Duration:   c.Duration,
		Method:     method,
		Dynamics:   c.Sound.dynamics(),
		HWEncoder:  hw,
	}

	var res *pipeline.ExportResult
	var exportErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		res, exportErr = pipeline.Export(ctx, r, src, opts, hooks)
		if exportErr != nil {
			p.Quit()
			return
		}
		p.Send(ui.RenderComplete{
			OutputFile:  res.OutputPath,
			JobID:       res.JobID,
			FileSize:    res.FileSize,
			TotalFrames: res.TotalFrames,
			RenderTime:  res.RenderTime,
			EncodeTime:  res.EncodeTime,
			TotalTime:   res.Elapsed,
			Timeouts:    res.Timeouts,
			EncoderName: encoderName,
		})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return fmt.Errorf("running UI: %w", err)
	}
	// Quitting the UI early cancels the export
	cancel()
	<-done

	if errors.Is(exportErr, context.Canceled) || (exportErr == nil && res == nil) {
		return errors.New("export cancelled")
	}
	return exportErr
}

// PreviewCmd runs the interactive terminal preview.
type PreviewCmd struct {
	Input string `arg:"" help:"Source image or video." type:"existingfile"`

	Render renderFlags `embed:""`
	Sound  audioFlags  `embed:""`

	Play     bool   `help:"Play the audio while previewing."`
	Watch    bool   `help:"Reload the source when the file changes."`
	Snapshot string `help:"Directory for snapshots taken with the s key." type:"existingdir"`
}

func (c *PreviewCmd) Run(g *Globals, rc runContext) error {
	font, err := c.Render.font()
	if err != nil {
		return err
	}
	r, src, err := openRenderer(rc, c.Input, &c.Render, font, config.OutputWidth)
	if err != nil {
		return err
	}
	defer r.Close()

	buf, err := c.Sound.load()
	if err != nil {
		src.Close()
		return err
	}
	cfg := ui.LiveConfig{
		Renderer:    r,
		Source:      src,
		SourcePath:  c.Input,
		FPS:         c.Render.PreviewFPS,
		Watch:       c.Watch,
		SnapshotDir: c.Snapshot,
		SeekTimeout: c.Render.SeekTimeout,
	}
	if buf != nil {
		if cfg.Audio, err = audio.NewLive(buf, c.Sound.dynamics()); err != nil {
			src.Close()
			return err
		}
		cfg.Track = audio.ReadMetadata(c.Sound.Audio)
		if c.Play {
			player, err := audio.NewPlayer(buf)
			if err != nil {
				cli.PrintWarning(fmt.Sprintf("audio playback unavailable: %v", err))
			} else {
				defer player.Close()
				cfg.Player = player
			}
		}
	}

	model, err := ui.NewLiveModel(cfg)
	if err != nil {
		src.Close()
		return err
	}
	defer model.Close()

	_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(rc)).Run()
	// A reload may have swapped the source
	model.Source().Close()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

// ServeCmd serves the preview over SSH.
type ServeCmd struct {
	Input string `arg:"" help:"Source image or video." type:"existingfile"`

	Render renderFlags `embed:""`
	Sound  audioFlags  `embed:""`

	Listen  string `help:"Address to listen on." default:":2222"`
	HostKey string `help:"SSH host key; generated when missing." default:"asciifire_ed25519" type:"path"`
}

func (c *ServeCmd) Run(g *Globals, rc runContext) error {
	s, err := c.Render.settings()
	if err != nil {
		return err
	}
	buf, err := c.Sound.load()
	if err != nil {
		return err
	}
	srv, err := server.New(server.Config{
		Addr:        c.Listen,
		HostKeyPath: c.HostKey,
		Settings:    s,
		SourcePath:  c.Input,
		Audio:       buf,
		Dynamics:    c.Sound.dynamics(),
		FPS:         c.Render.PreviewFPS,
		SeekTimeout: c.Render.SeekTimeout,
		Setup:       c.Render.apply,
	})
	if err != nil {
		return err
	}
	cli.PrintInfo("Listening", c.Listen)
	cli.PrintInfo("Connect", "ssh -t -p <port> <host>")
	return srv.ListenAndServe(rc)
}

// SnapshotCmd renders one frame to PNG.
type SnapshotCmd struct {
	Input  string `arg:"" help:"Source image or video." type:"existingfile"`
	Output string `arg:"" help:"Output PNG file."`

	Render renderFlags `embed:""`

	Width int           `help:"Output width in pixels." default:"1080"`
	Frame int           `help:"Animation frame to render." default:"0"`
	Level float64       `help:"Audio level to render the frame at, 0..1." default:"0"`
	At    time.Duration `help:"Position in a video source." default:"0s"`
}

func (c *SnapshotCmd) Run(g *Globals, rc runContext) error {
	font, err := c.Render.font()
	if err != nil {
		return err
	}
	r, src, err := openRenderer(rc, c.Input, &c.Render, font, c.Width)
	if err != nil {
		return err
	}
	defer src.Close()
	defer r.Close()

	if c.At > 0 {
		img, gen, err := src.FrameAt(rc, c.At)
		if img == nil {
			return fmt.Errorf("seeking to %s: %w", c.At, err)
		}
		r.SetSource(img, gen)
	}

	f, _, err := r.RenderFrame(c.Frame, c.Level)
	if err != nil {
		return err
	}
	defer f.Release()

	if err := renderer.SaveSnapshot(f.Image(), c.Output); err != nil {
		return err
	}
	w, h := r.Size()
	cli.PrintSuccess(fmt.Sprintf("Saved %s (%dx%d, %s)", c.Output, w, h, r.Mode()))
	return nil
}

// EncodersCmd prints hardware encoder availability.
type EncodersCmd struct{}

func (c *EncodersCmd) Run(g *Globals) error {
	fmt.Fprint(os.Stdout, encoder.GetEncoderStatus())
	return nil
}

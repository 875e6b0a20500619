package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/alecthomas/kong"
	"github.com/golang/freetype/truetype"
	"github.com/linuxmatters/asciifire/internal/audio"
	"github.com/linuxmatters/asciifire/internal/cli"
	"github.com/linuxmatters/asciifire/internal/config"
	"github.com/linuxmatters/asciifire/internal/effects"
	"github.com/linuxmatters/asciifire/internal/media"
	"github.com/linuxmatters/asciifire/internal/pipeline"
	"github.com/linuxmatters/asciifire/internal/renderer"
)

// version is set via ldflags at build time
// Local dev builds: "dev"
// Release builds: git tag (e.g. "v0.1.0")
var version = "dev"

type versionFlag bool

func (versionFlag) BeforeApply(app *kong.Kong) error {
	cli.PrintVersion(version)
	app.Exit(0)
	return nil
}

// Globals are accepted by every command.
type Globals struct {
	Verbose bool            `short:"v" help:"Log diagnostics to stderr."`
	LogFile string          `name:"log-file" help:"Write diagnostics to this file instead of stderr." placeholder:"PATH"`
	Config  kong.ConfigFlag `help:"Load flag values from a JSON preset." placeholder:"PRESET.json"`
	Version versionFlag     `help:"Show version information."`
}

var CLI struct {
	Globals

	Export   ExportCmd   `cmd:"" help:"Render an image or video to an audio-reactive MP4."`
	Preview  PreviewCmd  `cmd:"" help:"Animate the ASCII art live in the terminal."`
	Serve    ServeCmd    `cmd:"" help:"Serve the live preview over SSH."`
	Snapshot SnapshotCmd `cmd:"" help:"Render a single frame to PNG."`
	Encoders EncodersCmd `cmd:"" help:"Report which hardware H.264 encoders ffmpeg can use."`
}

// renderFlags configure the glyph pipeline and the effect stack.
type renderFlags struct {
	Mode          string         `help:"Animation mode." enum:"original,scroll,zoom,flag,dither,glitch" default:"original"`
	CharWidth     int            `help:"Grid width in characters." default:"200"`
	FontSize      int            `help:"Fixed glyph size in pixels; 0 sizes glyphs from the grid width." default:"0"`
	Font          string         `help:"TrueType font for glyphs; Go Mono when empty." type:"existingfile"`
	Chars         string         `help:"Draw every brightness level from these glyphs."`
	Bucket        map[int]string `help:"Override one brightness bucket (0 dark to 7 bright), repeatable." placeholder:"N=GLYPHS"`
	Background    string         `help:"Background colour." placeholder:"RRGGBB"`
	Seed          uint64         `help:"Random seed for glyph choice and glitches." default:"0"`
	Deterministic bool           `help:"Reseed from the frame index so every frame is reproducible."`
	PreviewFPS    float64        `name:"preview-fps" help:"Animation rate; export reconciles its frames to it." default:"30"`
	SeekTimeout   time.Duration  `help:"Soft deadline for each video seek; the previous frame shows until a late one arrives." default:"200ms"`

	ZoomMin           int     `help:"Narrowest zoom grid in characters." default:"10"`
	ZoomMax           int     `help:"Widest zoom grid in characters." default:"300"`
	FlagDistance      float64 `help:"Flag wave amplitude." default:"20"`
	FlagSpeed         float64 `help:"Flag wave speed." default:"1"`
	DitherSensitivity float64 `help:"Dither spread." default:"0.3"`
	DitherContrast    float64 `help:"Dither contrast." default:"1"`
	GlitchIntensity   float64 `help:"Glitch displacement intensity." default:"3"`

	Overlay string `help:"Image composited over the glyphs." type:"existingfile"`

	Brightness float64 `group:"Effects" help:"Brightness wash, -100..100." default:"0"`
	Contrast   float64 `group:"Effects" help:"Contrast percent." default:"100"`
	Saturation float64 `group:"Effects" help:"Saturation percent." default:"100"`
	Hue        float64 `group:"Effects" help:"Hue rotation in degrees." default:"0"`
	Grayscale  float64 `group:"Effects" help:"Grayscale percent." default:"0"`
	Invert     float64 `group:"Effects" help:"Invert percent." default:"0"`
	Sepia      float64 `group:"Effects" help:"Sepia percent." default:"0"`
	Blur       float64 `group:"Effects" help:"Blur radius in pixels." default:"0"`
	Glow       float64 `group:"Effects" help:"Glyph glow radius." default:"0"`
	Warmth     float64 `group:"Effects" help:"Colour temperature, -100..100." default:"0"`
	Vignette   float64 `group:"Effects" help:"Vignette edge opacity, 0..1." default:"0"`
	Opacity    float64 `group:"Effects" help:"Glyph opacity percent." default:"100"`

	ReactResolution  float64 `group:"Reactivity" help:"Characters added to the grid width at full level." default:"0"`
	ReactBrightness  float64 `group:"Reactivity" help:"Brightness added at full level." default:"50"`
	ReactContrast    float64 `group:"Reactivity" help:"Contrast delta at full level." default:"0"`
	ReactOpacity     float64 `group:"Reactivity" help:"Opacity delta at full level." default:"0"`
	ReactHue         float64 `group:"Reactivity" help:"Hue degrees added at full level." default:"0"`
	ReactSaturation  float64 `group:"Reactivity" help:"Saturation delta at full level." default:"0"`
	ReactOverlaySize float64 `group:"Reactivity" help:"Pixels added to the overlay size at full level." default:"100"`
	Sensitivity      float64 `group:"Reactivity" help:"Multiplier on the audio level." default:"1"`
}

// settings builds the explicit render configuration.
func (f *renderFlags) settings() (config.Settings, error) {
	s := config.Defaults()
	s.Mode = f.Mode
	s.CharWidth = f.CharWidth
	s.FontSize = f.FontSize
	s.PreviewFPS = f.PreviewFPS
	s.CustomChars = f.Chars
	s.Buckets = f.Bucket
	s.Seed = f.Seed
	s.Deterministic = f.Deterministic
	s.ZoomMin, s.ZoomMax = f.ZoomMin, f.ZoomMax
	s.FlagDistance = f.FlagDistance
	s.FlagSpeed = f.FlagSpeed
	s.DitherSensitivity = f.DitherSensitivity
	s.DitherContrast = f.DitherContrast
	s.GlitchIntensity = f.GlitchIntensity

	if f.Background != "" {
		r, g, b, err := config.ParseHexColor(f.Background)
		if err != nil {
			return s, err
		}
		s.Background = &config.RGB{R: r, G: g, B: b}
	}
	return s, s.Validate()
}

// font loads the glyph font.
func (f *renderFlags) font() (*truetype.Font, error) {
	return renderer.LoadFont(f.Font)
}

// apply installs the effect values, reactive deltas and overlay on r.
func (f *renderFlags) apply(r *pipeline.Renderer) error {
	p := effects.Defaults(f.CharWidth)
	p.Brightness = f.Brightness
	p.Contrast = f.Contrast
	p.Saturation = f.Saturation
	p.Hue = f.Hue
	p.Grayscale = f.Grayscale
	p.Invert = f.Invert
	p.Sepia = f.Sepia
	p.Blur = f.Blur
	p.Glow = f.Glow
	p.Warmth = f.Warmth
	p.Vignette = f.Vignette
	p.Opacity = f.Opacity
	r.Base = p

	r.Deltas = effects.Deltas{
		Resolution:  f.ReactResolution,
		Brightness:  f.ReactBrightness,
		Contrast:    f.ReactContrast,
		Opacity:     f.ReactOpacity,
		Hue:         f.ReactHue,
		Saturation:  f.ReactSaturation,
		OverlaySize: f.ReactOverlaySize,
	}
	r.Sensitivity = f.Sensitivity

	if f.Overlay != "" {
		img, err := media.LoadImage(f.Overlay)
		if err != nil {
			return err
		}
		r.SetOverlay(img)
	}
	return nil
}

// audioFlags select the reactive audio source and its dynamics.
type audioFlags struct {
	Audio         string  `short:"a" help:"Audio driving reactivity: wav, mp3, flac or ogg, anything else via ffmpeg." type:"existingfile"`
	AudioAnalysis string  `help:"How exports derive levels." enum:"envelope,bands" default:"envelope"`
	Attack        float64 `help:"Level rise per frame, 0..1." default:"0.8"`
	Decay         float64 `help:"Level fall per frame, 0..1." default:"0.3"`
	Smoothing     float64 `help:"Weight of the previous level, 0..1." default:"0.5"`
}

func (f *audioFlags) dynamics() audio.DynamicsConfig {
	d := audio.DefaultDynamics()
	d.Attack, d.Decay, d.Smoothing = f.Attack, f.Decay, f.Smoothing
	return d
}

// load decodes the audio file, or returns nil without one.
func (f *audioFlags) load() (*audio.Buffer, error) {
	if f.Audio == "" {
		return nil, nil
	}
	return audio.Load(f.Audio)
}

// openRenderer opens the input and builds a renderer sized to width at the
// source aspect. font may be nil for terminal-only output.
func openRenderer(ctx context.Context, input string, f *renderFlags, font *truetype.Font, width int) (*pipeline.Renderer, pipeline.Source, error) {
	s, err := f.settings()
	if err != nil {
		return nil, nil, err
	}
	src, err := pipeline.OpenSource(ctx, input, f.SeekTimeout)
	if err != nil {
		return nil, nil, err
	}
	r, err := pipeline.NewRenderer(s, font, width, 1)
	if err != nil {
		src.Close()
		return nil, nil, err
	}
	if err := f.apply(r); err != nil {
		src.Close()
		return nil, nil, err
	}

	img, gen, err := src.FrameAt(ctx, 0)
	if err != nil && img == nil {
		src.Close()
		return nil, nil, fmt.Errorf("reading first frame: %w", err)
	}
	r.SetSource(img, gen)
	r.Resize(width, r.OutputHeight(width))
	return r, src, nil
}

func setupLogging(g *Globals) (func(), error) {
	level := slog.LevelDebug
	switch {
	case g.LogFile != "":
		f, err := os.OpenFile(g.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		pipeline.SetLogger(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})))
		return func() { f.Close() }, nil
	case g.Verbose:
		pipeline.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	}
	return func() {}, nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("asciifire"),
		kong.Description("Turn images and video into audio-reactive ASCII art."),
		kong.Vars{"version": version},
		kong.UsageOnError(),
		kong.Configuration(kong.JSON),
		kong.Help(cli.StyledHelpPrinter(kong.HelpOptions{Compact: true})),
	)

	closeLog, err := setupLogging(&CLI.Globals)
	if err != nil {
		cli.PrintError(fmt.Sprintf("opening log file: %v", err))
		os.Exit(1)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	started := time.Now()
	err = ctx.Run(&CLI.Globals, runContext{sigCtx})
	pipeline.Logger().Debug("command finished", "command", ctx.Command(), "elapsed", time.Since(started))
	stop()
	closeLog()

	if err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}
}

// runContext carries the signal-aware context into command Run methods.
type runContext struct {
	context.Context
}

package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Output settings
const (
	OutputWidth        = 1080 // Default rendered frame width in pixels
	ExportFPS          = 30   // Export always encodes at a fixed rate
	PreviewFPS         = 30   // Default live preview rate
	MaxExportDimension = 2160 // Exports wider than this are rejected
	MaxExportHeight    = 3840 // Portrait 4K is the tallest accepted export
	ExportDuration     = 5.0  // Seconds exported when no audio drives the length
)

// Glyph grid settings
const (
	CharWidth      = 200 // Default grid width in characters
	MinCharWidth   = 10
	FontSize       = 9   // Fixed font size used when auto sizing is off
	GlyphAspect    = 0.6 // Monospace advance as a fraction of the em
	LineHeight     = 1.2 // Line height as a multiple of the font size
	ZoomMinChars   = 10
	ZoomMaxChars   = 300
	AnimationCycle = 3.0 // Seconds per zoom and flag cycle
)

// Mode defaults
const (
	FlagDistance      = 20.0
	FlagSpeed         = 1.0
	DitherSensitivity = 0.3
	DitherContrast    = 1.0
	GlitchIntensity   = 3.0
)

// Audio dynamics defaults
const (
	AttackSpeed       = 0.8
	DecaySpeed        = 0.3
	Smoothing         = 0.5
	Sensitivity       = 1.0
	AnalyserFFTSize   = 512
	AnalyserSmoothing = 0.8
)

// Export timing
const (
	SeekTimeout = 200 * time.Millisecond
)

// ErrResolutionTooHigh is returned when an export would exceed MaxExportDimension.
var ErrResolutionTooHigh = errors.New("export resolution exceeds safety ceiling")

// Settings is the explicit configuration threaded through a render session.
// It is populated from CLI flags (or a JSON preset) and never mutated while
// a frame is in flight.
type Settings struct {
	Mode       string
	CharWidth  int
	PreviewFPS float64
	FontSize   int // 0 selects automatic sizing from CharWidth
	Width      int
	Background *RGB

	CustomChars string
	Buckets     map[int]string

	ZoomMin, ZoomMax  int
	FlagDistance      float64
	FlagSpeed         float64
	DitherSensitivity float64
	DitherContrast    float64
	GlitchIntensity   float64

	Seed          uint64
	Deterministic bool
}

// RGB is an optional colour override.
type RGB struct {
	R, G, B uint8
}

// Defaults returns Settings populated with the package defaults.
func Defaults() Settings {
	return Settings{
		Mode:              "original",
		CharWidth:         CharWidth,
		PreviewFPS:        PreviewFPS,
		Width:             OutputWidth,
		ZoomMin:           ZoomMinChars,
		ZoomMax:           ZoomMaxChars,
		FlagDistance:      FlagDistance,
		FlagSpeed:         FlagSpeed,
		DitherSensitivity: DitherSensitivity,
		DitherContrast:    DitherContrast,
		GlitchIntensity:   GlitchIntensity,
	}
}

// BackgroundColor returns the configured background, or black when unset.
func (s *Settings) BackgroundColor() (r, g, b uint8) {
	if s.Background == nil {
		return 0, 0, 0
	}
	return s.Background.R, s.Background.G, s.Background.B
}

// Validate checks ranges that would otherwise produce degenerate frames.
func (s *Settings) Validate() error {
	if s.CharWidth < MinCharWidth {
		return fmt.Errorf("character width must be at least %d, got %d", MinCharWidth, s.CharWidth)
	}
	if s.PreviewFPS <= 0 {
		return fmt.Errorf("preview fps must be positive, got %g", s.PreviewFPS)
	}
	if s.FontSize < 0 {
		return fmt.Errorf("font size must not be negative, got %d", s.FontSize)
	}
	if s.ZoomMin < 1 || s.ZoomMax < s.ZoomMin {
		return fmt.Errorf("zoom range %d..%d is invalid", s.ZoomMin, s.ZoomMax)
	}
	for i := range s.Buckets {
		if i < 0 || i > 7 {
			return fmt.Errorf("bucket index %d out of range 0..7", i)
		}
	}
	return nil
}

// CheckExportResolution rejects output sizes above the safety ceiling before
// any frame work begins.
func CheckExportResolution(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid export resolution %dx%d", width, height)
	}
	if width > MaxExportDimension || height > MaxExportHeight {
		return fmt.Errorf("%w: %dx%d (max %dx%d)", ErrResolutionTooHigh, width, height, MaxExportDimension, MaxExportHeight)
	}
	return nil
}

// ParseHexColor parses RRGGBB with an optional leading '#'.
func ParseHexColor(s string) (r, g, b uint8, err error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return 0, 0, 0, fmt.Errorf("invalid hex colour %q: want 6 hex digits", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid hex colour %q: %w", s, err)
	}
	return uint8(v >> 16), uint8(v >> 8), uint8(v), nil
}

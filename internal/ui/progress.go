package ui

import (
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Terminal colour palette, cyan glow on ink
var (
	glowCyan   = lipgloss.Color("#00D4FF")
	glowBlue   = lipgloss.Color("#2979FF")
	glowViolet = lipgloss.Color("#7C4DFF")
	glowPink   = lipgloss.Color("#FF4FD8")
	inkGray    = lipgloss.Color("#8A8FA3")
)

// Phase represents the current processing phase
type Phase int

const (
	PhaseAnalysis Phase = iota
	PhaseRendering
	PhaseComplete
)

// AnalysisProgress reports pass 1 level analysis.
type AnalysisProgress struct {
	Frame       int
	TotalFrames int
	Level       float64
	Elapsed     time.Duration
}

// AnalysisComplete signals the end of pass 1. HasAudio is false when the
// export runs without an audio track.
type AnalysisComplete struct {
	HasAudio     bool
	Method       string
	Track        string
	Duration     time.Duration
	Peak         float64
	Mean         float64
	AnalysisTime time.Duration
}

// RenderProgress reports pass 2 rendering and encoding.
type RenderProgress struct {
	Frame       int
	TotalFrames int
	Elapsed     time.Duration
	Level       float64
	FileSize    int64
	Timeouts    int
	FrameData   *image.RGBA
	VideoCodec  string
	AudioCodec  string
}

// RenderComplete signals completion of pass 2.
type RenderComplete struct {
	OutputFile  string
	JobID       string
	FileSize    int64
	TotalFrames int
	RenderTime  time.Duration // resolve, convert and composite
	EncodeTime  time.Duration // writes into the encoder pipe
	TotalTime   time.Duration
	Timeouts    int
	EncoderName string
}

// progressQuitMsg is sent when it's time to quit after showing completion
type progressQuitMsg struct{}

// levelHistory is how many recent levels the meter strip shows.
const levelHistory = 64

// Model implements the unified Bubbletea model for both export passes
type Model struct {
	progressBar progress.Model
	summaryBar  progress.Model
	phase       Phase

	analysis    AnalysisProgress
	profile     *AnalysisComplete
	renderState RenderProgress
	complete    *RenderComplete
	levels      []float64

	pass2StartTime time.Time

	width           int
	noPreview       bool
	cachedPreview   string
	cachedFrameNum  int
	completionDelay time.Duration
}

// NewModel creates a new export progress model
func NewModel(noPreview bool) *Model {
	p := progress.New(
		progress.WithGradient(string(glowViolet), string(glowCyan)),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)
	summaryBar := progress.New(
		progress.WithGradient(string(glowViolet), string(glowCyan)),
		progress.WithWidth(30),
		progress.WithoutPercentage(),
	)

	return &Model{
		progressBar:     p,
		summaryBar:      summaryBar,
		phase:           PhaseAnalysis,
		completionDelay: 2 * time.Second,
		noPreview:       noPreview,
	}
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return nil
}

func (m *Model) pushLevel(l float64) {
	m.levels = append(m.levels, l)
	if over := len(m.levels) - levelHistory; over > 0 {
		m.levels = m.levels[over:]
	}
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progressBar.Width = max(10, min(msg.Width-30, 50))
		return m, nil

	case AnalysisProgress:
		m.analysis = msg
		m.pushLevel(msg.Level)
		return m, nil

	case AnalysisComplete:
		m.profile = &msg
		m.phase = PhaseRendering
		m.pass2StartTime = time.Now()
		m.levels = m.levels[:0]
		return m, nil

	case RenderProgress:
		m.renderState = msg
		m.pushLevel(msg.Level)
		return m, nil

	case RenderComplete:
		m.complete = &msg
		m.phase = PhaseComplete
		return m, tea.Tick(m.completionDelay, func(time.Time) tea.Msg {
			return progressQuitMsg{}
		})

	case progressQuitMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		if m.complete != nil || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

// View renders the UI
func (m *Model) View() string {
	if m.phase == PhaseComplete {
		return m.renderComplete()
	}
	return m.renderProgress()
}

// CompletionSummary returns the final summary for printing after the
// program exits, or "" when the export did not finish.
func (m *Model) CompletionSummary() string {
	if m.complete == nil {
		return ""
	}
	return m.renderComplete()
}

func (m *Model) title() string {
	return lipgloss.NewStyle().Bold(true).Foreground(glowCyan).Render("asciifire ▓▒░")
}

func (m *Model) renderProgress() string {
	var s strings.Builder
	s.WriteString(m.title())
	s.WriteString("\n")

	phaseLabel := "Pass 1: Analysing Audio"
	if m.phase != PhaseAnalysis {
		phaseLabel = "Pass 2: Rendering & Encoding"
	}
	s.WriteString(lipgloss.NewStyle().Foreground(glowBlue).Render(phaseLabel))
	s.WriteString("\n\n")

	if m.phase == PhaseAnalysis {
		m.renderAnalysisProgress(&s)
	} else {
		m.renderRenderingProgress(&s)
	}

	s.WriteString("\n")
	m.renderAudioProfile(&s)

	if len(m.levels) > 0 {
		s.WriteString("\n\n")
		m.renderLevelsAndStats(&s)
	}

	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(glowBlue).
		Padding(1, 2).
		Render(s.String())
}

func (m *Model) renderAnalysisProgress(s *strings.Builder) {
	if m.analysis.TotalFrames == 0 {
		s.WriteString(lipgloss.NewStyle().Faint(true).Render("Starting analysis...\n"))
		return
	}
	percent := float64(m.analysis.Frame) / float64(m.analysis.TotalFrames)
	s.WriteString("Progress: ")
	s.WriteString(m.progressBar.ViewAs(percent))
	fmt.Fprintf(s, "  %d%%\n", int(percent*100))
	s.WriteString(lipgloss.NewStyle().Faint(true).Render(
		fmt.Sprintf("%d of %d frames  │  Elapsed: %s", m.analysis.Frame, m.analysis.TotalFrames, formatDuration(m.analysis.Elapsed))))
	s.WriteString("\n")
}

func (m *Model) renderRenderingProgress(s *strings.Builder) {
	if m.renderState.TotalFrames == 0 {
		s.WriteString(lipgloss.NewStyle().Faint(true).Render("Starting render...\n"))
		return
	}

	percent := float64(m.renderState.Frame) / float64(m.renderState.TotalFrames)
	s.WriteString("Progress: ")
	s.WriteString(m.progressBar.ViewAs(percent))
	fmt.Fprintf(s, "  %d%%\n\n", int(percent*100))

	elapsed := m.renderState.Elapsed
	if elapsed == 0 {
		elapsed = time.Since(m.pass2StartTime)
	}
	var estimatedTotal, eta time.Duration
	var speed float64
	if percent > 0 {
		estimatedTotal = time.Duration(float64(elapsed) / percent)
		eta = estimatedTotal - elapsed
		encoded := time.Duration(m.renderState.Frame) * time.Second / 30
		if elapsed > 0 {
			speed = float64(encoded) / float64(elapsed)
		}
	}

	s.WriteString(lipgloss.NewStyle().Faint(true).Render(
		fmt.Sprintf("Time: %s / %s  │  Speed: %.1fx realtime  │  ETA: %s",
			formatDuration(elapsed), formatDuration(estimatedTotal), speed, formatDuration(eta))))
	s.WriteString("\n")
	s.WriteString(lipgloss.NewStyle().Faint(true).Italic(true).Render(
		fmt.Sprintf("Frame %d of %d", m.renderState.Frame, m.renderState.TotalFrames)))
	s.WriteString("\n")
}

func (m *Model) renderAudioProfile(s *strings.Builder) {
	labelStyle := lipgloss.NewStyle().Faint(true)
	headerStyle := lipgloss.NewStyle().Faint(true).Bold(true)

	s.WriteString(headerStyle.Render("Audio"))
	s.WriteString(" │ ")

	switch {
	case m.profile == nil:
		s.WriteString(lipgloss.NewStyle().Faint(true).Italic(true).Render("Analysing..."))
	case !m.profile.HasAudio:
		s.WriteString(lipgloss.NewStyle().Faint(true).Italic(true).Render("none, levels held at 0"))
	default:
		if m.profile.Track != "" {
			s.WriteString(m.profile.Track)
			s.WriteString("  ")
		}
		fmt.Fprintf(s, "%.1fs  %s %s  %s %.2f  %s %.2f",
			m.profile.Duration.Seconds(),
			labelStyle.Render("Method:"), m.profile.Method,
			labelStyle.Render("Peak:"), m.profile.Peak,
			labelStyle.Render("Mean:"), m.profile.Mean)
	}
}

func (m *Model) renderLevelsAndStats(s *strings.Builder) {
	s.WriteString(lipgloss.NewStyle().Foreground(glowBlue).Render("Level:"))
	s.WriteString("\n")
	strip := renderLevels(m.levels, levelHistory)

	var rightCol strings.Builder
	if m.phase == PhaseRendering {
		labelStyle := lipgloss.NewStyle().Foreground(inkGray)
		valueStyle := lipgloss.NewStyle().Bold(true)

		rightCol.WriteString(labelStyle.Render("File:  "))
		rightCol.WriteString(valueStyle.Render(formatBytes(m.renderState.FileSize)))
		if m.renderState.VideoCodec != "" {
			rightCol.WriteString("\n" + labelStyle.Render("Video: ") + valueStyle.Render(m.renderState.VideoCodec))
		}
		if m.renderState.AudioCodec != "" {
			rightCol.WriteString("\n" + labelStyle.Render("Audio: ") + valueStyle.Render(m.renderState.AudioCodec))
		}
		if m.renderState.Timeouts > 0 {
			rightCol.WriteString("\n" + labelStyle.Render("Seeks: ") + valueStyle.Render(fmt.Sprintf("%d slow, reused last frame", m.renderState.Timeouts)))
		}
	}
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, strip, "  ", rightCol.String()))

	if !m.noPreview && m.phase == PhaseRendering {
		if m.renderState.FrameData != nil && m.renderState.Frame != m.cachedFrameNum {
			m.cachedPreview = RenderPreview(DownsampleFrame(m.renderState.FrameData, DefaultPreviewConfig()))
			m.cachedFrameNum = m.renderState.Frame
		}
		if m.cachedPreview != "" {
			s.WriteString("\n\n")
			s.WriteString(m.cachedPreview)
		}
	}
}

func (m *Model) renderComplete() string {
	var s strings.Builder
	c := m.complete

	s.WriteString(lipgloss.NewStyle().Bold(true).Foreground(glowCyan).Render("✓ Export Complete!"))
	s.WriteString("\n\n")

	dimLabel := lipgloss.NewStyle().Faint(true)
	fmt.Fprintf(&s, "%s%s\n", dimLabel.Render("Output:   "), c.OutputFile)
	if c.EncoderName != "" {
		fmt.Fprintf(&s, "%s%s\n", dimLabel.Render("Encoder:  "), c.EncoderName)
	}
	videoDuration := time.Duration(c.TotalFrames) * time.Second / 30
	fmt.Fprintf(&s, "%s%d frames, %.1fs video in %.1fs\n",
		dimLabel.Render("Video:    "), c.TotalFrames, videoDuration.Seconds(), c.TotalTime.Seconds())
	fmt.Fprintf(&s, "%s%s\n", dimLabel.Render("Size:     "), formatBytes(c.FileSize))
	if c.Timeouts > 0 {
		fmt.Fprintf(&s, "%s%d frames reused after slow seeks\n", dimLabel.Render("Seeks:    "), c.Timeouts)
	}
	s.WriteString("\n")

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(glowBlue)
	labelStyle := lipgloss.NewStyle().Faint(true)
	highlight := lipgloss.NewStyle().Foreground(glowPink)

	s.WriteString(headerStyle.Render("Breakdown"))
	s.WriteString("\n")

	total := c.TotalTime
	if total <= 0 {
		total = time.Millisecond
	}
	row := func(label string, d time.Duration) {
		ratio := min(1, float64(d)/float64(total))
		fmt.Fprintf(&s, "  %s~%-6s (~%2d%%)  %s\n",
			labelStyle.Render(fmt.Sprintf("%-18s", label)),
			formatDuration(d), int(ratio*100), m.summaryBar.ViewAs(ratio))
	}
	if m.profile != nil && m.profile.AnalysisTime > 0 {
		row("Audio analysis:", m.profile.AnalysisTime)
	}
	row("Rendering:", c.RenderTime)
	row("Video encoding:", c.EncodeTime)
	accounted := c.RenderTime + c.EncodeTime
	if m.profile != nil {
		accounted += m.profile.AnalysisTime
	}
	if other := c.TotalTime - accounted; other > 0 {
		row("Runtime:", other)
	}
	fmt.Fprintf(&s, "  %s%s", labelStyle.Render(fmt.Sprintf("%-18s", "Total time:")), highlight.Render(formatDuration(c.TotalTime)))

	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(glowBlue).
		Padding(1, 1).
		Render(s.String()) + "\n"
}

// Helper functions

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", max(bytes, 0))
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit && exp < 2; n /= unit {
		div *= unit
		exp++
	}
	units := []string{"KB", "MB", "GB"}
	return fmt.Sprintf("%.1f %s", float64(bytes)/float64(div), units[exp])
}

var levelBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

var levelColors = []lipgloss.Color{
	"#311B92", "#4527A0", "#5E35B1", "#2979FF", "#00B0FF", "#00D4FF", "#84FFFF", "#FF4FD8",
}

// renderLevels draws a two-row strip of recent levels in [0,1], newest on
// the right, padded to width.
func renderLevels(levels []float64, width int) string {
	if width <= 0 {
		return ""
	}
	if len(levels) > width {
		levels = levels[len(levels)-width:]
	}
	pad := width - len(levels)

	var top, bottom strings.Builder
	top.WriteString(strings.Repeat(" ", pad))
	bottom.WriteString(strings.Repeat(" ", pad))
	for _, l := range levels {
		l = max(0, min(1, l))
		colour := lipgloss.NewStyle().Foreground(levelColors[min(int(l*float64(len(levelColors))), len(levelColors)-1)])

		if l > 0.5 {
			idx := min(int((l-0.5)*2*float64(len(levelBlocks))), len(levelBlocks)-1)
			top.WriteString(colour.Render(string(levelBlocks[idx])))
			bottom.WriteString(colour.Render(string(levelBlocks[len(levelBlocks)-1])))
			continue
		}
		top.WriteByte(' ')
		idx := min(int(l*2*float64(len(levelBlocks))), len(levelBlocks)-1)
		bottom.WriteString(colour.Render(string(levelBlocks[idx])))
	}
	return top.String() + "\n" + bottom.String()
}

package ui

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"github.com/linuxmatters/asciifire/internal/audio"
	"github.com/linuxmatters/asciifire/internal/config"
	"github.com/linuxmatters/asciifire/internal/media"
	"github.com/linuxmatters/asciifire/internal/pipeline"
	"github.com/linuxmatters/asciifire/internal/renderer"
)

// View selects how the live preview draws frames.
type View int

const (
	// ViewGlyphs prints the grid as coloured text, one glyph per cell.
	ViewGlyphs View = iota
	// ViewFrame composites the full frame and shows it as half blocks.
	ViewFrame
)

func (v View) String() string {
	if v == ViewFrame {
		return "frame"
	}
	return "glyphs"
}

// Clock reports the playback position driving audio levels and video
// sources. *audio.Player satisfies it.
type Clock interface {
	Position() time.Duration
}

// LiveConfig wires a live preview session.
type LiveConfig struct {
	Renderer    *pipeline.Renderer
	Source      pipeline.Source
	SourcePath  string
	FPS         float64
	Audio       *audio.Live     // nil without audio
	Player      *audio.Player   // nil when playback is off
	Clock       Clock           // overrides Player and wall time, mainly for tests
	Track       audio.Metadata
	Watch       bool   // reload SourcePath when it changes on disk
	SnapshotDir string // where snapshots are written; "" is the working directory
	SeekTimeout time.Duration
}

type liveKeyMap struct {
	Mode     key.Binding
	Pause    key.Binding
	View     key.Binding
	Snapshot key.Binding
	Louder   key.Binding
	Quieter  key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func (k liveKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Mode, k.Pause, k.View, k.Help, k.Quit}
}

func (k liveKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Mode, k.Pause, k.View},
		{k.Snapshot, k.Louder, k.Quieter},
		{k.Help, k.Quit},
	}
}

var liveKeys = liveKeyMap{
	Mode:     key.NewBinding(key.WithKeys("m", "tab"), key.WithHelp("m", "next mode")),
	Pause:    key.NewBinding(key.WithKeys(" ", "p"), key.WithHelp("space", "pause")),
	View:     key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "glyphs/frame")),
	Snapshot: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "snapshot")),
	Louder:   key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "sensitivity up")),
	Quieter:  key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "sensitivity down")),
	Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:     key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
}

// tickMsg drives one frame. Ticks carry the loop generation they were
// scheduled under; anything from an older generation is dropped so only one
// frame loop is ever live.
type tickMsg struct {
	gen int
}

type sourceChangedMsg struct {
	path string
}

type watchErrMsg struct {
	err error
}

type sourceReloadedMsg struct {
	src pipeline.Source
	err error
}

// LiveModel is the interactive preview.
type LiveModel struct {
	cfg  LiveConfig
	keys liveKeyMap
	help help.Model

	gen      int
	frame    int
	paused   bool
	view     View
	start    time.Time
	pausedAt time.Time
	held     time.Duration

	width, height int
	body          string
	status        string
	level         float64

	spring   harmonica.Spring
	meterPos float64
	meterVel float64

	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewLiveModel prepares a preview. Call Close once the program exits.
func NewLiveModel(cfg LiveConfig) (*LiveModel, error) {
	if cfg.Renderer == nil || cfg.Source == nil {
		return nil, errors.New("live preview needs a renderer and a source")
	}
	if cfg.FPS <= 0 {
		cfg.FPS = config.PreviewFPS
	}
	if cfg.SeekTimeout <= 0 {
		cfg.SeekTimeout = config.SeekTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &LiveModel{
		cfg:    cfg,
		keys:   liveKeys,
		help:   help.New(),
		width:  80,
		height: 24,
		spring: harmonica.NewSpring(harmonica.FPS(max(1, int(cfg.FPS+0.5))), 6.0, 0.5),
		ctx:    ctx,
		cancel: cancel,
	}

	if cfg.Watch && cfg.SourcePath != "" {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to watch %s: %w", cfg.SourcePath, err)
		}
		// Editors replace files, so watch the directory rather than the inode
		if err := w.Add(filepath.Dir(cfg.SourcePath)); err != nil {
			w.Close()
			cancel()
			return nil, fmt.Errorf("failed to watch %s: %w", cfg.SourcePath, err)
		}
		m.watcher = w
	}
	return m, nil
}

// Init starts the frame loop and, when watching, the file watcher.
func (m *LiveModel) Init() tea.Cmd {
	m.start = time.Now()
	cmds := []tea.Cmd{m.tick()}
	if m.watcher != nil {
		cmds = append(cmds, m.waitForChange())
	}
	return tea.Batch(cmds...)
}

// Close stops the watcher and any in-flight decode.
func (m *LiveModel) Close() error {
	m.cancel()
	if m.watcher != nil {
		return m.watcher.Close()
	}
	return nil
}

// Source returns the current source, which a reload may have replaced.
func (m *LiveModel) Source() pipeline.Source { return m.cfg.Source }

func (m *LiveModel) interval() time.Duration {
	return time.Duration(float64(time.Second) / m.cfg.FPS)
}

func (m *LiveModel) tick() tea.Cmd {
	gen := m.gen
	return tea.Tick(m.interval(), func(time.Time) tea.Msg {
		return tickMsg{gen: gen}
	})
}

// restart abandons any pending tick and schedules a fresh one.
func (m *LiveModel) restart() tea.Cmd {
	m.gen++
	if m.paused {
		return nil
	}
	return m.tick()
}

func (m *LiveModel) waitForChange() tea.Cmd {
	w := m.watcher
	target := filepath.Clean(m.cfg.SourcePath)
	return func() tea.Msg {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return nil
				}
				if filepath.Clean(ev.Name) == target && (ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
					return sourceChangedMsg{path: ev.Name}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return nil
				}
				return watchErrMsg{err: err}
			}
		}
	}
}

func (m *LiveModel) reload(path string) tea.Cmd {
	ctx, timeout := m.ctx, m.cfg.SeekTimeout
	return func() tea.Msg {
		src, err := pipeline.OpenSource(ctx, path, timeout)
		return sourceReloadedMsg{src: src, err: err}
	}
}

// position is the current playback time.
func (m *LiveModel) position() time.Duration {
	switch {
	case m.cfg.Clock != nil:
		return m.cfg.Clock.Position()
	case m.cfg.Player != nil:
		return m.cfg.Player.Position()
	case m.paused:
		return m.pausedAt.Sub(m.start) - m.held
	default:
		return time.Since(m.start) - m.held
	}
}

// Update handles messages
func (m *LiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		if msg.gen != m.gen || m.paused {
			return m, nil
		}
		m.advance()
		return m, m.tick()

	case sourceChangedMsg:
		m.status = "reloading " + filepath.Base(msg.path)
		return m, tea.Batch(m.reload(msg.path), m.waitForChange())

	case sourceReloadedMsg:
		if msg.err != nil {
			m.status = "reload failed: " + msg.err.Error()
			pipeline.Logger().Warn("source reload failed", "path", m.cfg.SourcePath, "error", msg.err)
			return m, nil
		}
		old := m.cfg.Source
		m.cfg.Source = msg.src
		_ = old.Close()
		m.cfg.Renderer.InvalidateGrids()
		m.status = "reloaded " + filepath.Base(m.cfg.SourcePath)
		return m, m.restart()

	case watchErrMsg:
		m.status = "watch error: " + msg.err.Error()
		return m, m.waitForChange()

	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}
	return m, nil
}

func (m *LiveModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit

	case key.Matches(msg, m.keys.Mode):
		r := m.cfg.Renderer
		r.SetMode(r.Mode().Next())
		m.frame = 0
		m.status = "mode " + r.Mode().String()
		return m.restart()

	case key.Matches(msg, m.keys.Pause):
		m.togglePause()
		return m.restart()

	case key.Matches(msg, m.keys.View):
		if m.view == ViewGlyphs {
			m.view = ViewFrame
		} else {
			m.view = ViewGlyphs
		}
		m.render()
		return nil

	case key.Matches(msg, m.keys.Snapshot):
		path, err := m.Snapshot()
		if err != nil {
			m.status = "snapshot failed: " + err.Error()
		} else {
			m.status = "saved " + path
		}
		return nil

	case key.Matches(msg, m.keys.Louder):
		m.adjustSensitivity(0.1)
		return nil

	case key.Matches(msg, m.keys.Quieter):
		m.adjustSensitivity(-0.1)
		return nil

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return nil
	}
	return nil
}

func (m *LiveModel) togglePause() {
	if m.cfg.Player != nil {
		m.cfg.Player.TogglePause()
	}
	if m.paused {
		m.held += time.Since(m.pausedAt)
	} else {
		m.pausedAt = time.Now()
	}
	m.paused = !m.paused
	if m.paused {
		m.status = "paused"
	} else {
		m.status = ""
	}
}

func (m *LiveModel) adjustSensitivity(d float64) {
	r := m.cfg.Renderer
	r.Sensitivity = max(0, min(5, r.Sensitivity+d))
	m.status = fmt.Sprintf("sensitivity %.1f", r.Sensitivity)
}

// advance pulls the source and audio for the current position and renders
// the next frame.
func (m *LiveModel) advance() {
	pos := m.position()
	m.level = m.cfg.Audio.LevelAt(pos)
	m.meterPos, m.meterVel = m.spring.Update(m.meterPos, m.meterVel, m.level)

	img, gen, err := m.cfg.Source.FrameAt(m.ctx, pos)
	switch {
	case err == nil, errors.Is(err, media.ErrSeekTimeout):
	default:
		m.status = "decode failed: " + err.Error()
		pipeline.Logger().Warn("source frame failed", "position", pos, "error", err)
	}
	if img != nil {
		m.cfg.Renderer.SetSource(img, gen)
	}

	m.render()
	m.frame++
}

// bodySize is the terminal area left for the picture.
func (m *LiveModel) bodySize() (int, int) {
	chrome := 4
	if m.help.ShowAll {
		chrome += 2
	}
	return max(1, m.width), max(1, m.height-chrome)
}

func (m *LiveModel) render() {
	r := m.cfg.Renderer
	cols, rows := m.bodySize()

	if m.view == ViewFrame {
		w := config.OutputWidth / 2
		r.Resize(w, r.OutputHeight(w))
		f, _, err := r.RenderFrame(m.frame, m.level)
		if err != nil {
			m.status = err.Error()
			m.view = ViewGlyphs
		} else {
			m.body = RenderPreview(DownsampleFrame(f.Image(), PreviewConfig{Width: cols, Height: rows}))
			f.Release()
			return
		}
	}

	gridCols, gridRows := FitGrid(r.Aspect(), cols, rows)
	r.Resize(int(float64(gridCols)*config.FontSize*config.GlyphAspect), int(float64(gridRows)*terminalLinePixels))
	st := r.StepText(m.frame, m.level, gridCols, gridRows)

	bg := color.RGBA{A: 255}
	bg.R, bg.G, bg.B = r.Background()
	m.body = RenderGrid(st.Grid, st.Wave, renderer.NewCellGrader(st.Params), bg)
}

// Snapshot renders the current frame at export width and writes it as PNG.
func (m *LiveModel) Snapshot() (string, error) {
	r := m.cfg.Renderer
	prevW, prevH := r.Size()
	defer r.Resize(prevW, prevH)

	r.Resize(config.OutputWidth, r.OutputHeight(config.OutputWidth))
	f, _, err := r.RenderFrame(m.frame, m.level)
	if err != nil {
		return "", err
	}
	defer f.Release()

	path := filepath.Join(m.cfg.SnapshotDir, fmt.Sprintf("asciifire-%s.png", time.Now().Format("20060102-150405")))
	if err := renderer.SaveSnapshot(f.Image(), path); err != nil {
		return "", err
	}
	return path, nil
}

// View renders the UI
func (m *LiveModel) View() string {
	var s strings.Builder
	s.WriteString(m.header())
	s.WriteString("\n")
	s.WriteString(m.body)
	s.WriteString("\n")
	s.WriteString(m.footer())
	return s.String()
}

func (m *LiveModel) header() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(glowCyan).Render("asciifire")
	dim := lipgloss.NewStyle().Faint(true)

	parts := []string{title, dim.Render("mode ") + m.cfg.Renderer.Mode().String()}
	if t := m.cfg.Track.String(); t != "" {
		parts = append(parts, lipgloss.NewStyle().Foreground(glowPink).Render("♪ "+t))
	}
	parts = append(parts, dim.Render(fmt.Sprintf("%.0f fps  %s", m.cfg.FPS, m.view)))
	return strings.Join(parts, dim.Render("  │  "))
}

// meterWidth is the width of the level meter in cells.
const meterWidth = 24

func (m *LiveModel) footer() string {
	filled := int(max(0, min(1, m.meterPos))*meterWidth + 0.5)
	bar := lipgloss.NewStyle().Foreground(glowViolet).Render(strings.Repeat("█", filled)) +
		lipgloss.NewStyle().Faint(true).Render(strings.Repeat("░", meterWidth-filled))

	line := fmt.Sprintf("%s %.2f  x%.1f", bar, m.level, m.cfg.Renderer.Sensitivity)
	if m.status != "" {
		line += "  " + lipgloss.NewStyle().Italic(true).Foreground(inkGray).Render(m.status)
	}
	return line + "\n" + m.help.View(m.keys)
}

// Package server serves the live glyph preview over SSH. Every session owns
// its own renderer, source and audio analyser.
package server

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"image/color"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gliderlabs/ssh"
	"github.com/google/uuid"
	"github.com/linuxmatters/asciifire/internal/audio"
	"github.com/linuxmatters/asciifire/internal/config"
	"github.com/linuxmatters/asciifire/internal/pipeline"
	"github.com/linuxmatters/asciifire/internal/renderer"
	"github.com/linuxmatters/asciifire/internal/ui"
	gossh "golang.org/x/crypto/ssh"
)

// Config describes what every session renders.
type Config struct {
	Addr        string
	HostKeyPath string
	Settings    config.Settings
	SourcePath  string
	Audio       *audio.Buffer // optional; sessions loop it against wall time
	Dynamics    audio.DynamicsConfig
	FPS         float64
	SeekTimeout time.Duration

	// Setup runs on every new session renderer, e.g. to apply effect flags
	Setup func(*pipeline.Renderer) error
}

// Server wraps the SSH listener.
type Server struct {
	cfg Config
	srv *ssh.Server
	log *slog.Logger
}

// New validates cfg and prepares the host key, generating one when the file
// does not exist yet.
func New(cfg Config) (*Server, error) {
	if err := cfg.Settings.Validate(); err != nil {
		return nil, err
	}
	if cfg.SourcePath == "" {
		return nil, errors.New("serve needs a source image or video")
	}
	if cfg.FPS <= 0 {
		cfg.FPS = cfg.Settings.PreviewFPS
	}
	if cfg.SeekTimeout <= 0 {
		cfg.SeekTimeout = config.SeekTimeout
	}
	if err := EnsureHostKey(cfg.HostKeyPath); err != nil {
		return nil, err
	}

	s := &Server{cfg: cfg, log: pipeline.Logger().With("component", "ssh")}
	s.srv = &ssh.Server{
		Addr:    cfg.Addr,
		Handler: s.handleSession,
	}
	if err := s.srv.SetOption(ssh.HostKeyFile(cfg.HostKeyPath)); err != nil {
		return nil, fmt.Errorf("set host key: %w", err)
	}
	return s, nil
}

// ListenAndServe blocks until ctx is cancelled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts sessions on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.log.Info("SSH server listening", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
	}()

	err := s.srv.Serve(ln)
	if errors.Is(err, ssh.ErrServerClosed) {
		return nil
	}
	return err
}

// EnsureHostKey writes a new ed25519 host key in OpenSSH PEM form when path
// does not exist.
func EnsureHostKey(path string) error {
	if path == "" {
		return errors.New("host key path is empty")
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("generate host key: %w", err)
	}
	block, err := gossh.MarshalPrivateKey(key, "asciifire")
	if err != nil {
		return fmt.Errorf("encode host key: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		return fmt.Errorf("write host key: %w", err)
	}
	pipeline.Logger().Info("generated SSH host key", "path", path)
	return nil
}

// action is a key press decoded from the session input.
type action int

const (
	actionNone action = iota
	actionQuit
	actionMode
	actionLouder
	actionQuieter
)

// parseInput decodes raw terminal bytes into actions.
func parseInput(data []byte) []action {
	var actions []action
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		switch r {
		case 'q', 'Q', 3: // 3 is Ctrl-C
			actions = append(actions, actionQuit)
		case 'm', 'M', '\t':
			actions = append(actions, actionMode)
		case '+', '=':
			actions = append(actions, actionLouder)
		case '-', '_':
			actions = append(actions, actionQuieter)
		}
		i += size
	}
	return actions
}

const (
	enterAltScreen = "\x1b[?1049h\x1b[?25l\x1b[2J"
	leaveAltScreen = "\x1b[0m\x1b[?25h\x1b[?1049l"
	cursorHome     = "\x1b[H"
)

func (s *Server) handleSession(sess ssh.Session) {
	ptyReq, winCh, ok := sess.Pty()
	if !ok {
		fmt.Fprintln(sess, "asciifire needs a terminal. Use: ssh -t ...")
		_ = sess.Exit(1)
		return
	}

	id := uuid.NewString()
	log := s.log.With("session", id, "user", sess.User(), "remote", sess.RemoteAddr().String())
	log.Info("session started", "cols", ptyReq.Window.Width, "rows", ptyReq.Window.Height)
	started := time.Now()
	defer func() { log.Info("session ended", "duration", time.Since(started).Round(time.Millisecond)) }()

	ctx, cancel := context.WithCancel(sess.Context())
	defer cancel()

	r, src, live, err := s.openSession(ctx)
	if err != nil {
		log.Warn("session setup failed", "error", err)
		fmt.Fprintf(sess, "asciifire: %v\r\n", err)
		_ = sess.Exit(1)
		return
	}
	defer src.Close()
	defer r.Close()

	io.WriteString(sess, enterAltScreen)
	defer io.WriteString(sess, leaveAltScreen)

	actions := make(chan action, 8)
	go func() {
		defer close(actions)
		buf := make([]byte, 64)
		for {
			n, err := sess.Read(buf)
			if err != nil {
				return
			}
			for _, a := range parseInput(buf[:n]) {
				select {
				case actions <- a:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	cols, rows := ptyReq.Window.Width, ptyReq.Window.Height
	ticker := time.NewTicker(time.Duration(float64(time.Second) / s.cfg.FPS))
	defer ticker.Stop()

	frame := 0
	for {
		select {
		case <-ctx.Done():
			return
		case win, ok := <-winCh:
			if !ok {
				winCh = nil
				continue
			}
			cols, rows = win.Width, win.Height
			io.WriteString(sess, "\x1b[2J")
		case a, ok := <-actions:
			if !ok || a == actionQuit {
				return
			}
			switch a {
			case actionMode:
				r.SetMode(r.Mode().Next())
				frame = 0
				log.Debug("mode changed", "mode", r.Mode().String())
			case actionLouder:
				r.Sensitivity = min(5, r.Sensitivity+0.1)
			case actionQuieter:
				r.Sensitivity = max(0, r.Sensitivity-0.1)
			}
		case <-ticker.C:
			out := s.renderFrame(ctx, r, src, live, frame, time.Since(started), cols, rows)
			if _, err := io.WriteString(sess, out); err != nil {
				return
			}
			frame++
		}
	}
}

// openSession builds the per-session pipeline.
func (s *Server) openSession(ctx context.Context) (*pipeline.Renderer, pipeline.Source, *audio.Live, error) {
	src, err := pipeline.OpenSource(ctx, s.cfg.SourcePath, s.cfg.SeekTimeout)
	if err != nil {
		return nil, nil, nil, err
	}
	r, err := pipeline.NewRenderer(s.cfg.Settings, nil, 1, 1)
	if err != nil {
		src.Close()
		return nil, nil, nil, err
	}
	r.Clock.FPS = s.cfg.FPS
	if s.cfg.Setup != nil {
		if err := s.cfg.Setup(r); err != nil {
			src.Close()
			return nil, nil, nil, err
		}
	}

	var live *audio.Live
	if s.cfg.Audio != nil {
		if live, err = audio.NewLive(s.cfg.Audio, s.cfg.Dynamics); err != nil {
			src.Close()
			return nil, nil, nil, err
		}
	}
	return r, src, live, nil
}

// renderFrame draws one frame for a cols×rows terminal; the last row holds
// the status line.
func (s *Server) renderFrame(ctx context.Context, r *pipeline.Renderer, src pipeline.Source, live *audio.Live, frame int, elapsed time.Duration, cols, rows int) string {
	pos := elapsed
	if d := s.cfg.Audio.Duration(); d > 0 {
		pos = elapsed % d
	}
	level := live.LevelAt(pos)

	if img, gen, _ := src.FrameAt(ctx, elapsed); img != nil {
		r.SetSource(img, gen)
	}

	gridCols, gridRows := ui.FitGrid(r.Aspect(), cols, rows-1)
	r.Resize(gridCols*config.FontSize, gridRows*config.FontSize*2)
	st := r.StepText(frame, level, gridCols, gridRows)

	bg := color.RGBA{A: 255}
	bg.R, bg.G, bg.B = r.Background()

	var b strings.Builder
	b.WriteString(cursorHome)
	b.WriteString(ui.RenderGrid(st.Grid, st.Wave, renderer.NewCellGrader(st.Params), bg))
	b.WriteString("\x1b[0m\n")
	fmt.Fprintf(&b, "\x1b[2K asciifire  %s  level %.2f  x%.1f  [m]ode [+/-] [q]uit", r.Mode(), level, r.Sensitivity)
	// Raw PTY output needs CRLF
	return strings.ReplaceAll(b.String(), "\n", "\r\n")
}

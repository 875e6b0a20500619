package server

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/linuxmatters/asciifire/internal/config"
	gossh "golang.org/x/crypto/ssh"
)

func TestEnsureHostKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "host_ed25519")

	if err := EnsureHostKey(path); err != nil {
		t.Fatalf("EnsureHostKey: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	signer, err := gossh.ParsePrivateKey(data)
	if err != nil {
		t.Fatalf("generated key does not parse: %v", err)
	}
	if got := signer.PublicKey().Type(); got != gossh.KeyAlgoED25519 {
		t.Errorf("key type = %s, want ed25519", got)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("key permissions = %o, want 600", perm)
	}

	// An existing key is kept
	if err := EnsureHostKey(path); err != nil {
		t.Fatal(err)
	}
	again, _ := os.ReadFile(path)
	if !bytes.Equal(data, again) {
		t.Error("existing host key was overwritten")
	}
}

func TestEnsureHostKey_EmptyPath(t *testing.T) {
	if err := EnsureHostKey(""); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestParseInput(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want []action
	}{
		{name: "quit", in: "q", want: []action{actionQuit}},
		{name: "ctrl-c", in: "\x03", want: []action{actionQuit}},
		{name: "mode then louder", in: "m+", want: []action{actionMode, actionLouder}},
		{name: "quieter", in: "-", want: []action{actionQuieter}},
		{name: "ignored", in: "xyz", want: nil},
		{name: "unicode skipped", in: "é m", want: []action{actionMode}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := parseInput([]byte(tc.in))
			if len(got) != len(tc.want) {
				t.Fatalf("parseInput(%q) = %v, want %v", tc.in, got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("action %d = %v, want %v", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestNew_RequiresSource(t *testing.T) {
	_, err := New(Config{HostKeyPath: filepath.Join(t.TempDir(), "key"), Settings: config.Defaults()})
	if err == nil {
		t.Error("expected error without a source path")
	}
}

// TestSession_StreamsGlyphs connects a real SSH client with a PTY and
// waits for a coloured frame.
func TestSession_StreamsGlyphs(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.png")
	img := image.NewRGBA(image.Rect(0, 0, 32, 18))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 240, 180, 20, 255
	}
	img.Set(0, 0, color.RGBA{A: 255})
	f, err := os.Create(srcPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	f.Close()

	srv, err := New(Config{
		HostKeyPath: filepath.Join(dir, "host_key"),
		Settings:    config.Defaults(),
		SourcePath:  srcPath,
		FPS:         20,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx := t.Context()
	go srv.Serve(ctx, ln)

	client, err := gossh.Dial("tcp", ln.Addr().String(), &gossh.ClientConfig{
		User:            "tester",
		HostKeyCallback: gossh.InsecureIgnoreHostKey(),
		Timeout:         5 * time.Second,
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	sess, err := client.NewSession()
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()

	if err := sess.RequestPty("xterm-256color", 24, 80, gossh.TerminalModes{}); err != nil {
		t.Fatalf("pty: %v", err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		t.Fatal(err)
	}
	stdin, err := sess.StdinPipe()
	if err != nil {
		t.Fatal(err)
	}
	if err := sess.Shell(); err != nil {
		t.Fatalf("shell: %v", err)
	}

	got := make(chan string, 1)
	go func() {
		var seen strings.Builder
		buf := make([]byte, 4096)
		for {
			n, err := stdout.Read(buf)
			seen.Write(buf[:n])
			if strings.Contains(seen.String(), "\x1b[38;2;") && strings.Contains(seen.String(), "asciifire") {
				got <- seen.String()
				return
			}
			if err != nil {
				got <- seen.String()
				return
			}
		}
	}()

	select {
	case out := <-got:
		if !strings.Contains(out, "\x1b[38;2;") {
			t.Errorf("no coloured glyphs in session output (%d bytes)", len(out))
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for a frame")
	}

	stdin.Write([]byte("q"))
}

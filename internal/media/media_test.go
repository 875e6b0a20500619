package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"strings"
	"testing"
	"time"

	"golang.org/x/image/bmp"
)

func TestParseFraction(t *testing.T) {
	testCases := []struct {
		in   string
		want float64
	}{
		{"30/1", 30},
		{"24000/1001", 23.976023976023978},
		{"25", 25},
		{"0/0", 0},
		{"", 0},
		{"abc/1", 0},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			if got := parseFraction(tc.in); math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("parseFraction(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

// TestParseProbe feeds a trimmed ffprobe document through the parser.
func TestParseProbe(t *testing.T) {
	doc := `{
		"streams": [
			{"codec_type": "audio"},
			{"codec_type": "video", "width": 1920, "height": 1080,
			 "r_frame_rate": "30/1", "avg_frame_rate": "0/0"}
		],
		"format": {"duration": "12.500000"}
	}`
	info, err := parseProbe([]byte(doc))
	if err != nil {
		t.Fatalf("parseProbe: %v", err)
	}
	if !info.HasVideo || info.Width != 1920 || info.Height != 1080 {
		t.Errorf("geometry = %+v", info)
	}
	if info.FPS != 30 {
		t.Errorf("FPS = %v, want r_frame_rate fallback 30", info.FPS)
	}
	if info.Duration != 12500*time.Millisecond {
		t.Errorf("Duration = %v, want 12.5s", info.Duration)
	}
	if got := info.Aspect(); math.Abs(got-16.0/9) > 1e-9 {
		t.Errorf("Aspect = %v", got)
	}

	if _, err := parseProbe([]byte("not json")); !errors.Is(err, ErrLoadFailed) {
		t.Errorf("bad json error = %v, want ErrLoadFailed", err)
	}

	audioOnly, err := parseProbe([]byte(`{"streams":[],"format":{"duration":"3"}}`))
	if err != nil || audioOnly.HasVideo {
		t.Errorf("audio only = %+v, %v", audioOnly, err)
	}
}

func TestFormatDuration(t *testing.T) {
	testCases := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00:00.000"},
		{1500 * time.Millisecond, "00:00:01.500"},
		{time.Hour + 2*time.Minute + 3*time.Second + 45*time.Millisecond, "01:02:03.045"},
		{-time.Second, "00:00:00.000"},
	}
	for _, tc := range testCases {
		if got := formatDuration(tc.d); got != tc.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}

func TestDecodeSize(t *testing.T) {
	if w, h := decodeSize(640, 360); w != 640 || h != 360 {
		t.Errorf("small video scaled to %dx%d", w, h)
	}
	if w, h := decodeSize(3840, 2160); w != MaxDecodeWidth || h != 720 {
		t.Errorf("4K decoded at %dx%d, want %dx720", w, h, MaxDecodeWidth)
	}
	if _, h := decodeSize(2000, 1001); h%2 != 0 {
		t.Errorf("height %d should be even", h)
	}
}

func TestLoopTime(t *testing.T) {
	v := &VideoReader{info: Info{Duration: 2 * time.Second}}
	if got := v.LoopTime(4500 * time.Millisecond); got != 500*time.Millisecond {
		t.Errorf("LoopTime = %v, want 500ms", got)
	}
	v.info.Duration = 0
	if got := v.LoopTime(3 * time.Second); got != 3*time.Second {
		t.Errorf("unknown duration should not wrap, got %v", got)
	}
}

func testImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 60), G: uint8(y * 100), B: 200, A: 255})
		}
	}
	return img
}

// TestDecodeImage round-trips PNG and BMP encodings through the decoder.
func TestDecodeImage(t *testing.T) {
	src := testImage()
	encoders := map[string]func(*bytes.Buffer) error{
		"png": func(b *bytes.Buffer) error { return png.Encode(b, src) },
		"bmp": func(b *bytes.Buffer) error { return bmp.Encode(b, src) },
	}
	for name, enc := range encoders {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := enc(&buf); err != nil {
				t.Fatalf("encode: %v", err)
			}
			img, err := DecodeImage(&buf)
			if err != nil {
				t.Fatalf("DecodeImage: %v", err)
			}
			if img.Rect != image.Rect(0, 0, 4, 3) {
				t.Fatalf("bounds = %v", img.Rect)
			}
			got := img.RGBAAt(3, 2)
			if got.R != 180 || got.G != 200 || got.B != 200 || got.A != 255 {
				t.Errorf("pixel (3,2) = %v", got)
			}
		})
	}
}

func TestDecodeImage_Garbage(t *testing.T) {
	_, err := DecodeImage(strings.NewReader("definitely not an image"))
	if !errors.Is(err, ErrLoadFailed) {
		t.Errorf("error = %v, want ErrLoadFailed", err)
	}
	if _, err := LoadImage("/nonexistent/picture.png"); !errors.Is(err, ErrLoadFailed) {
		t.Errorf("missing file error = %v, want ErrLoadFailed", err)
	}
}

func TestToRGBA_NormalisesOrigin(t *testing.T) {
	sub := testImage().SubImage(image.Rect(1, 1, 3, 3))
	img := ToRGBA(sub)
	if img.Rect.Min != (image.Point{}) || img.Rect.Dx() != 2 {
		t.Fatalf("bounds = %v", img.Rect)
	}
	if got := img.RGBAAt(0, 0); got.R != 60 || got.G != 100 {
		t.Errorf("origin pixel = %v, want source (1,1)", got)
	}
}

func TestRGBToRGBA(t *testing.T) {
	img := RGBToRGBA([]byte{1, 2, 3, 4, 5, 6}, 2, 1)
	want := []byte{1, 2, 3, 255, 4, 5, 6, 255}
	if !bytes.Equal(img.Pix, want) {
		t.Errorf("Pix = %v, want %v", img.Pix, want)
	}
}

func TestIsVideo(t *testing.T) {
	for path, want := range map[string]bool{
		"clip.MP4": true, "a.webm": true, "photo.png": false, "noext": false,
	} {
		if got := IsVideo(path); got != want {
			t.Errorf("IsVideo(%q) = %v, want %v", path, got, want)
		}
	}
}

// TestFrameAt_SoftDeadline checks a slow seek returns the previous frame
// without killing the decode, and the late frame is used by the next call.
func TestFrameAt_SoftDeadline(t *testing.T) {
	release := make(chan struct{})
	var calls int
	var lateCtxErr error
	v := &VideoReader{width: 2, height: 2, timeout: 50 * time.Millisecond, lastAt: -1}
	v.decodeFrame = func(ctx context.Context, at time.Duration) (*image.RGBA, error) {
		calls++
		if at > 0 {
			<-release
			lateCtxErr = ctx.Err()
		}
		img := image.NewRGBA(image.Rect(0, 0, 2, 2))
		img.Pix[0] = uint8(at / time.Second)
		return img, nil
	}
	ctx := context.Background()

	first, err := v.FrameAt(ctx, 0)
	if err != nil || first == nil {
		t.Fatalf("first frame: %v", err)
	}

	stale, err := v.FrameAt(ctx, time.Second)
	if !errors.Is(err, ErrSeekTimeout) {
		t.Fatalf("slow seek error = %v, want ErrSeekTimeout", err)
	}
	if stale != first {
		t.Error("slow seek did not fall back to the previous frame")
	}

	close(release)
	late, err := v.FrameAt(ctx, time.Second)
	if err != nil {
		t.Fatalf("late frame: %v", err)
	}
	if late.Pix[0] != 1 {
		t.Errorf("late frame is from %ds, want 1s", late.Pix[0])
	}
	if calls != 2 {
		t.Errorf("decodes = %d, want 2 (the slow seek must not restart)", calls)
	}
	if lateCtxErr != nil {
		t.Errorf("slow decode was cancelled: %v", lateCtxErr)
	}
	if v.Generation() != 2 {
		t.Errorf("generation = %d, want 2", v.Generation())
	}
}

// TestFrameAt_CloseStopsPendingSeek checks Close cancels a decode left
// running by a missed deadline.
func TestFrameAt_CloseStopsPendingSeek(t *testing.T) {
	v := &VideoReader{width: 1, height: 1, timeout: 10 * time.Millisecond, lastAt: -1}
	v.decodeFrame = func(ctx context.Context, at time.Duration) (*image.RGBA, error) {
		if at > 0 {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
	}
	ctx := context.Background()
	if _, err := v.FrameAt(ctx, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := v.FrameAt(ctx, time.Second); !errors.Is(err, ErrSeekTimeout) {
		t.Fatalf("error = %v, want ErrSeekTimeout", err)
	}

	done := make(chan struct{})
	go func() {
		v.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not stop the pending seek")
	}
}

func TestStreamArgs(t *testing.T) {
	args := strings.Join(StreamArgs("in.mp4", 640, 360, 30), " ")
	for _, want := range []string{"-stream_loop -1", "-i in.mp4", "fps=30,scale=640:360", "-pix_fmt rgb24", "pipe:1"} {
		if !strings.Contains(args, want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
}

func TestTailWriter(t *testing.T) {
	w := &tailWriter{max: 4}
	w.Write([]byte("abc"))
	w.Write([]byte("defg"))
	if got := w.String(); got != "defg" {
		t.Errorf("tail = %q, want defg", got)
	}
}

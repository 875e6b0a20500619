package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Info holds video stream metadata from ffprobe.
type Info struct {
	Width    int
	Height   int
	FPS      float64
	Duration time.Duration
	HasVideo bool
}

// Aspect returns width / height, or 1 when unknown.
func (p Info) Aspect() float64 {
	if p.Width <= 0 || p.Height <= 0 {
		return 1
	}
	return float64(p.Width) / float64(p.Height)
}

type ffprobeResult struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"` // e.g. "30/1" or "24000/1001"
		AvgFrameRate string `json:"avg_frame_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe uses ffprobe to read the first video stream's geometry, frame rate
// and the container duration.
func Probe(ctx context.Context, path string) (Info, error) {
	ffprobe, err := exec.LookPath("ffprobe")
	if err != nil {
		return Info{}, fmt.Errorf("%w: ffprobe not found", ErrLoadFailed)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, ffprobe,
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		"-select_streams", "v:0",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return Info{}, fmt.Errorf("%w: ffprobe failed: %w", ErrLoadFailed, err)
	}
	return parseProbe(output)
}

func parseProbe(output []byte) (Info, error) {
	var result ffprobeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return Info{}, fmt.Errorf("%w: parsing ffprobe output: %w", ErrLoadFailed, err)
	}

	durSec, _ := strconv.ParseFloat(result.Format.Duration, 64)
	dur := time.Duration(durSec * float64(time.Second))

	for _, s := range result.Streams {
		if s.CodecType != "video" {
			continue
		}
		fps := parseFraction(s.AvgFrameRate)
		if fps <= 0 {
			fps = parseFraction(s.RFrameRate)
		}
		if fps <= 0 {
			fps = 30
		}
		return Info{
			Width:    s.Width,
			Height:   s.Height,
			FPS:      fps,
			Duration: dur,
			HasVideo: true,
		}, nil
	}
	return Info{Duration: dur}, nil
}

// parseFraction parses "num/den" into a float64. A bare number is accepted;
// a zero denominator yields 0.
func parseFraction(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		f, _ := strconv.ParseFloat(s, 64)
		return f
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}

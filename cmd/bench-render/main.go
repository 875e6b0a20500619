// bench-render is a standalone benchmark for the glyph render pipeline.
// It renders every animation mode over a synthetic source and reports the
// per-frame cost of conversion, compositing and the RGB copy the encoder
// consumes. Designed to be called by hyperfine for statistical analysis.
//
// Usage:
//
//	bench-render [--frames N] [--width W] [--mode NAME]
package main

import (
	"flag"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/linuxmatters/asciifire/internal/ascii"
	"github.com/linuxmatters/asciifire/internal/config"
	"github.com/linuxmatters/asciifire/internal/pipeline"
	"github.com/linuxmatters/asciifire/internal/renderer"
)

func main() {
	frames := flag.Int("frames", 90, "Frames to render per mode")
	width := flag.Int("width", config.OutputWidth, "Output width in pixels")
	mode := flag.String("mode", "", "Render a single mode (default: all)")
	flag.Parse()

	font, err := renderer.LoadFont("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading font: %v\n", err)
		os.Exit(1)
	}

	modes := ascii.Modes()
	if *mode != "" {
		m, err := ascii.ParseMode(*mode)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		modes = []ascii.Mode{m}
	}

	src := gradient(1280, 720)
	fmt.Printf("%-10s %10s %10s %10s\n", "mode", "ms/frame", "fps", "rgb ms")
	for _, m := range modes {
		s := config.Defaults()
		s.Mode = m.String()
		r, err := pipeline.NewRenderer(s, font, *width, 2)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		r.SetSource(src, 1)
		r.Resize(*width, r.OutputHeight(*width))
		r.Clock.FPS = config.ExportFPS

		var render, convert time.Duration
		var rgb []byte
		for i := 0; i < *frames; i++ {
			level := float64(i%30) / 30
			t0 := time.Now()
			f, _, err := r.RenderFrame(i, level)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			render += time.Since(t0)

			t0 = time.Now()
			rgb = f.RGB(rgb)
			convert += time.Since(t0)
			f.Release()
		}
		r.Close()

		per := render / time.Duration(max(1, *frames))
		fmt.Printf("%-10s %10.2f %10.1f %10.3f\n", m, ms(per), float64(time.Second)/float64(max(per, 1)), ms(convert/time.Duration(max(1, *frames))))
	}
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// gradient builds a colourful test card so every palette bucket is used.
func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := img.PixOffset(x, y)
			img.Pix[i] = uint8(x * 255 / w)
			img.Pix[i+1] = uint8(y * 255 / h)
			img.Pix[i+2] = uint8((x + y) * 255 / (w + h))
			img.Pix[i+3] = 255
		}
	}
	return img
}

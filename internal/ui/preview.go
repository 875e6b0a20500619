package ui

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/linuxmatters/asciifire/internal/ascii"
	"github.com/linuxmatters/asciifire/internal/config"
	"github.com/linuxmatters/asciifire/internal/renderer"
)

// PreviewConfig holds configuration for the video preview
type PreviewConfig struct {
	Width  int // Width in terminal cells
	Height int // Height in terminal cells
}

// DefaultPreviewConfig returns a sensible default preview size
// Using 72x20 1.8:1 (slightly wider than 16:9 but very close)
func DefaultPreviewConfig() PreviewConfig {
	return PreviewConfig{
		Width:  72,
		Height: 20,
	}
}

// DownsampleFrame averages the frame into Width×Height cells. Each cell is
// two pixels tall so RenderPreview can draw upper and lower halves.
func DownsampleFrame(frame *image.RGBA, config PreviewConfig) [][]color.RGBA {
	rows := config.Height * 2
	srcW, srcH := frame.Rect.Dx(), frame.Rect.Dy()
	preview := make([][]color.RGBA, rows)
	if srcW == 0 || srcH == 0 || config.Width <= 0 {
		return preview
	}

	for row := 0; row < rows; row++ {
		preview[row] = make([]color.RGBA, config.Width)
		y0, y1 := row*srcH/rows, max((row+1)*srcH/rows, row*srcH/rows+1)
		for col := 0; col < config.Width; col++ {
			x0, x1 := col*srcW/config.Width, max((col+1)*srcW/config.Width, col*srcW/config.Width+1)

			var sumR, sumG, sumB, n int
			for y := y0; y < y1 && y < srcH; y++ {
				i := frame.PixOffset(frame.Rect.Min.X+x0, frame.Rect.Min.Y+y)
				for x := x0; x < x1 && x < srcW; x, i = x+1, i+4 {
					sumR += int(frame.Pix[i])
					sumG += int(frame.Pix[i+1])
					sumB += int(frame.Pix[i+2])
					n++
				}
			}
			if n > 0 {
				preview[row][col] = color.RGBA{uint8(sumR / n), uint8(sumG / n), uint8(sumB / n), 255}
			}
		}
	}
	return preview
}

// RenderPreview draws a downsampled frame with upper half blocks: the
// foreground colour is the top pixel and the background the bottom one.
func RenderPreview(preview [][]color.RGBA) string {
	if len(preview) < 2 || len(preview[0]) == 0 {
		return ""
	}
	var b strings.Builder
	for row := 0; row+1 < len(preview); row += 2 {
		top, bottom := preview[row], preview[row+1]
		for col := range top {
			t, u := top[col], bottom[col]
			fmt.Fprintf(&b, "\x1b[38;2;%d;%d;%dm\x1b[48;2;%d;%d;%dm▀", t.R, t.G, t.B, u.R, u.G, u.B)
		}
		b.WriteString("\x1b[0m")
		if row+2 < len(preview) {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// FitGrid sizes a glyph grid of the given source aspect to fit inside
// cols×rows terminal cells. Cells are about twice as tall as wide.
func FitGrid(aspect float64, cols, rows int) (int, int) {
	cols, rows = max(1, cols), max(1, rows)
	if aspect <= 0 {
		return cols, rows
	}
	aspect *= 2
	gridCols, gridRows := cols, max(1, int(float64(cols)/aspect+0.5))
	if gridRows > rows {
		gridRows = rows
		gridCols = max(1, min(cols, int(float64(rows)*aspect+0.5)))
	}
	return gridCols, gridRows
}

// terminalLinePixels is the height one terminal row stands for when the
// flag wave is mapped from pixels to rows.
const terminalLinePixels = config.FontSize * config.LineHeight

// RenderGrid draws a glyph grid with 24-bit foreground colours, graded by
// grader when non-nil. The flag wave shifts whole columns by rows.
func RenderGrid(g ascii.Grid, wave ascii.FlagWave, grader *renderer.CellGrader, bg color.RGBA) string {
	if g.Width == 0 || g.Height == 0 {
		return ""
	}

	shifts := make([]int, g.Width)
	for x := range shifts {
		shifts[x] = int(math.Round(wave.Offset(x) / terminalLinePixels))
	}

	var b strings.Builder
	b.Grow(g.Width * g.Height * 20)
	fmt.Fprintf(&b, "\x1b[48;2;%d;%d;%dm", bg.R, bg.G, bg.B)
	var last color.RGBA
	haveLast := false
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			sy := y - shifts[x]
			if sy < 0 || sy >= g.Height {
				b.WriteByte(' ')
				continue
			}
			cell := g.At(x, sy)
			c := cell.Color
			if grader != nil {
				c = grader.Apply(c)
			}
			if !haveLast || c != last {
				fmt.Fprintf(&b, "\x1b[38;2;%d;%d;%dm", c.R, c.G, c.B)
				last, haveLast = c, true
			}
			b.WriteRune(cell.Glyph)
		}
		if y+1 < g.Height {
			// Reset before the newline so the background does not bleed
			b.WriteString("\x1b[0m\n")
			fmt.Fprintf(&b, "\x1b[48;2;%d;%d;%dm", bg.R, bg.G, bg.B)
			haveLast = false
		}
	}
	b.WriteString("\x1b[0m")
	return b.String()
}

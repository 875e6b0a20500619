package renderer

import (
	"fmt"
	"image"
	"io"

	"github.com/gogpu/gg"
)

// SaveSnapshot writes a rendered frame to a PNG file.
func SaveSnapshot(img image.Image, outputPath string) error {
	dc := gg.NewContextForImage(img)
	defer dc.Close()

	if err := dc.SavePNG(outputPath); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// EncodeSnapshot writes a rendered frame as PNG to w.
func EncodeSnapshot(w io.Writer, img image.Image) error {
	dc := gg.NewContextForImage(img)
	defer dc.Close()

	return dc.EncodePNG(w)
}

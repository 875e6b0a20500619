package renderer

import (
	"image"
	"sync"
)

// Frame is one rendered output image leased from a pool.
type Frame struct {
	img *image.RGBA
}

var framePool sync.Pool

// NewFrame leases a w×h frame. Pooled buffers of a different size are
// dropped, so a resolution change simply allocates afresh.
func NewFrame(w, h int) *Frame {
	if v := framePool.Get(); v != nil {
		img := v.(*image.RGBA)
		if img.Rect.Dx() == w && img.Rect.Dy() == h {
			return &Frame{img: img}
		}
	}
	return &Frame{img: image.NewRGBA(image.Rect(0, 0, w, h))}
}

// Image returns the frame pixels
func (f *Frame) Image() *image.RGBA {
	return f.img
}

// RGB packs the frame as rgb24 into dst, growing it if needed, and returns
// the filled slice.
func (f *Frame) RGB(dst []byte) []byte {
	w, h := f.img.Rect.Dx(), f.img.Rect.Dy()
	n := w * h * 3
	if cap(dst) < n {
		dst = make([]byte, n)
	}
	dst = dst[:n]

	o := 0
	for y := 0; y < h; y++ {
		row := f.img.Pix[y*f.img.Stride : y*f.img.Stride+w*4]
		for i := 0; i < len(row); i += 4 {
			dst[o] = row[i]
			dst[o+1] = row[i+1]
			dst[o+2] = row[i+2]
			o += 3
		}
	}
	return dst
}

// Release returns the frame buffer to the pool
func (f *Frame) Release() {
	if f.img != nil {
		framePool.Put(f.img)
		f.img = nil
	}
}

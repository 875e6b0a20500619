package audio

import (
	"fmt"
	"io"
	"os"

	"github.com/jfreymuth/oggvorbis"
)

// OGGDecoder implements Decoder for Ogg Vorbis files
type OGGDecoder struct {
	reader *oggvorbis.Reader
	file   *os.File
	buf    []float32
}

// NewOGGDecoder creates a new Ogg Vorbis decoder
func NewOGGDecoder(filename string) (*OGGDecoder, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	reader, err := oggvorbis.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("decoding OGG: %w", err)
	}

	return &OGGDecoder{reader: reader, file: f}, nil
}

// ReadChunk reads the next chunk of interleaved frames
func (d *OGGDecoder) ReadChunk(numFrames int) ([]float64, error) {
	want := numFrames * d.reader.Channels()
	if cap(d.buf) < want {
		d.buf = make([]float32, want)
	}
	buf := d.buf[:want]

	n, err := d.reader.Read(buf)
	if n == 0 {
		if err == nil || err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to read OGG data: %w", err)
	}

	samples := make([]float64, n)
	for i, s := range buf[:n] {
		samples[i] = float64(s)
	}
	return samples, nil
}

// SampleRate returns the sample rate
func (d *OGGDecoder) SampleRate() int {
	return d.reader.SampleRate()
}

// NumChannels returns the number of audio channels
func (d *OGGDecoder) NumChannels() int {
	return d.reader.Channels()
}

// Close closes the decoder and releases resources
func (d *OGGDecoder) Close() error {
	if d.file != nil {
		return d.file.Close()
	}
	return nil
}

package audio

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// ErrLoadFailed marks any failure to open or decode an audio source.
var ErrLoadFailed = errors.New("audio load failed")

// Decoder streams interleaved PCM from an audio file.
type Decoder interface {
	// ReadChunk reads up to numFrames frames as interleaved float64 samples
	// in [-1, 1]. It returns io.EOF once the stream is exhausted.
	ReadChunk(numFrames int) ([]float64, error)

	// SampleRate returns the audio sample rate in Hz
	SampleRate() int

	// NumChannels returns the number of interleaved channels
	NumChannels() int

	// Close releases the underlying file or process
	Close() error
}

// NewDecoder picks a decoder by file extension. Formats without a native
// decoder are handed to an ffmpeg subprocess.
func NewDecoder(path string) (Decoder, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return NewWAVDecoder(path)
	case ".mp3":
		return NewMP3Decoder(path)
	case ".flac":
		return NewFLACDecoder(path)
	case ".ogg", ".oga":
		return NewOGGDecoder(path)
	default:
		return NewFFmpegDecoder(path)
	}
}

// Load decodes an entire file into a Buffer.
func Load(path string) (*Buffer, error) {
	dec, err := NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadFailed, path, err)
	}
	defer dec.Close()

	buf, err := ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadFailed, path, err)
	}
	return buf, nil
}

// ReadAll drains a decoder and de-interleaves it into a Buffer.
func ReadAll(dec Decoder) (*Buffer, error) {
	const chunkFrames = 8192

	nch := dec.NumChannels()
	if nch <= 0 {
		return nil, fmt.Errorf("decoder reports %d channels", nch)
	}
	buf := &Buffer{
		SampleRate: dec.SampleRate(),
		Channels:   make([][]float64, nch),
	}

	for {
		chunk, err := dec.ReadChunk(chunkFrames)
		for i := 0; i+nch <= len(chunk); i += nch {
			for ch := 0; ch < nch; ch++ {
				buf.Channels[ch] = append(buf.Channels[ch], chunk[i+ch])
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	if buf.Len() == 0 {
		return nil, fmt.Errorf("no audio data")
	}
	return buf, nil
}

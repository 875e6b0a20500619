package ascii

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects how a frame's grid is generated.
type Mode int

const (
	Original Mode = iota
	Scroll
	Zoom
	Flag
	Dither
	Glitch
)

// ErrUnknownMode is returned by ParseMode for unrecognised names.
var ErrUnknownMode = errors.New("unknown animation mode")

var modeNames = [...]string{"original", "scroll", "zoom", "flag", "dither", "glitch"}

// Modes lists every mode in display order.
func Modes() []Mode {
	return []Mode{Original, Scroll, Zoom, Flag, Dither, Glitch}
}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeNames[m]
}

// Next cycles to the following mode, wrapping after Glitch.
func (m Mode) Next() Mode {
	return (m + 1) % Mode(len(modeNames))
}

// ParseMode accepts a mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range modeNames {
		if n == name {
			return Mode(i), nil
		}
	}
	return Original, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

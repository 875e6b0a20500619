package config

import (
	"errors"
	"testing"
)

// TestParseHexColor covers the --background forms: optional '#', either
// case, and channels in R, G, B order.
func TestParseHexColor(t *testing.T) {
	testCases := []struct {
		input   string
		want    [3]uint8
		wantErr bool
	}{
		{input: "FF0000", want: [3]uint8{255, 0, 0}},
		{input: "#ff0000", want: [3]uint8{255, 0, 0}},
		{input: "Ff00fF", want: [3]uint8{255, 0, 255}},
		{input: "010203", want: [3]uint8{1, 2, 3}},
		{input: "#AABBCC", want: [3]uint8{0xAA, 0xBB, 0xCC}},
		{input: "000000", want: [3]uint8{0, 0, 0}},
		{input: "FFF", wantErr: true},
		{input: "#FFFFFFF", wantErr: true},
		{input: "GG0000", wantErr: true},
		{input: "##FF0000", wantErr: true},
		{input: "", wantErr: true},
		{input: "12 456", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			r, g, b, err := ParseHexColor(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Errorf("ParseHexColor(%q) = (%d, %d, %d), want error", tc.input, r, g, b)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseHexColor(%q) error: %v", tc.input, err)
			}
			if got := [3]uint8{r, g, b}; got != tc.want {
				t.Errorf("ParseHexColor(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

// TestCheckExportResolution verifies the resource guard rejects oversized
// exports before any frame is rendered.
func TestCheckExportResolution(t *testing.T) {
	testCases := []struct {
		name    string
		width   int
		height  int
		wantErr bool
		tooHigh bool
	}{
		{name: "default portrait", width: 1080, height: 1920},
		{name: "4K landscape width", width: 2160, height: 1215},
		{name: "4K portrait", width: 2160, height: 3840},
		{name: "one pixel too wide", width: 2161, height: 1000, wantErr: true, tooHigh: true},
		{name: "too tall", width: 1080, height: 5000, wantErr: true, tooHigh: true},
		{name: "zero width", width: 0, height: 1080, wantErr: true},
		{name: "negative height", width: 1080, height: -1, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckExportResolution(tc.width, tc.height)
			if (err != nil) != tc.wantErr {
				t.Fatalf("CheckExportResolution(%d, %d) error = %v, wantErr %v", tc.width, tc.height, err, tc.wantErr)
			}
			if errors.Is(err, ErrResolutionTooHigh) != tc.tooHigh {
				t.Errorf("errors.Is(err, ErrResolutionTooHigh) = %v, want %v", !tc.tooHigh, tc.tooHigh)
			}
		})
	}
}

// TestSettings_Validate checks that defaults pass and degenerate values fail.
func TestSettings_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr bool
	}{
		{name: "defaults", mutate: func(s *Settings) {}},
		{name: "char width below minimum", mutate: func(s *Settings) { s.CharWidth = 9 }, wantErr: true},
		{name: "char width at minimum", mutate: func(s *Settings) { s.CharWidth = MinCharWidth }},
		{name: "zero fps", mutate: func(s *Settings) { s.PreviewFPS = 0 }, wantErr: true},
		{name: "negative font size", mutate: func(s *Settings) { s.FontSize = -1 }, wantErr: true},
		{name: "inverted zoom range", mutate: func(s *Settings) { s.ZoomMin, s.ZoomMax = 50, 20 }, wantErr: true},
		{name: "bucket out of range", mutate: func(s *Settings) { s.Buckets = map[int]string{8: "x"} }, wantErr: true},
		{name: "bucket in range", mutate: func(s *Settings) { s.Buckets = map[int]string{7: "#"} }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := Defaults()
			tc.mutate(&s)
			err := s.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

// TestSettings_BackgroundColor verifies the black default and the override.
func TestSettings_BackgroundColor(t *testing.T) {
	s := Defaults()
	if r, g, b := s.BackgroundColor(); r != 0 || g != 0 || b != 0 {
		t.Errorf("default background = (%d, %d, %d), want black", r, g, b)
	}

	s.Background = &RGB{R: 10, G: 20, B: 30}
	if r, g, b := s.BackgroundColor(); r != 10 || g != 20 || b != 30 {
		t.Errorf("override background = (%d, %d, %d), want (10, 20, 30)", r, g, b)
	}
}

package timing

import "testing"

func TestPhase(t *testing.T) {
	testCases := []struct {
		name   string
		frame  int
		period int
		want   float64
	}{
		{name: "start of cycle", frame: 0, period: 90, want: 0},
		{name: "half way", frame: 45, period: 90, want: 0.5},
		{name: "wraps", frame: 135, period: 90, want: 0.5},
		{name: "full cycle is zero", frame: 90, period: 90, want: 0},
		{name: "zero period", frame: 12, period: 0, want: 0},
		{name: "negative frame", frame: -1, period: 4, want: 0.75},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Phase(tc.frame, tc.period); got != tc.want {
				t.Errorf("Phase(%d, %d) = %v, want %v", tc.frame, tc.period, got, tc.want)
			}
		})
	}
}

func TestPhase_AlwaysInUnitInterval(t *testing.T) {
	for period := 1; period < 50; period++ {
		for frame := 0; frame < 200; frame++ {
			p := Phase(frame, period)
			if p < 0 || p >= 1 {
				t.Fatalf("Phase(%d, %d) = %v, outside [0,1)", frame, period, p)
			}
		}
	}
}

// TestEffectiveFrame checks the export to preview frame mapping at common
// preview rates.
func TestEffectiveFrame(t *testing.T) {
	testCases := []struct {
		name       string
		index      int
		previewFPS float64
		want       int
	}{
		{name: "same rate", index: 17, previewFPS: 30, want: 17},
		{name: "half rate", index: 17, previewFPS: 15, want: 8},
		{name: "ten fps", index: 29, previewFPS: 10, want: 9},
		{name: "double rate", index: 5, previewFPS: 60, want: 10},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := EffectiveFrame(tc.index, tc.previewFPS, 30); got != tc.want {
				t.Errorf("EffectiveFrame(%d, %v, 30) = %d, want %d", tc.index, tc.previewFPS, got, tc.want)
			}
		})
	}
}

func TestRegenerateEvery(t *testing.T) {
	testCases := []struct {
		previewFPS float64
		want       int
	}{
		{previewFPS: 30, want: 1},
		{previewFPS: 15, want: 2},
		{previewFPS: 10, want: 3},
		{previewFPS: 60, want: 1},
		{previewFPS: 0, want: 1},
	}
	for _, tc := range testCases {
		if got := RegenerateEvery(tc.previewFPS, 30); got != tc.want {
			t.Errorf("RegenerateEvery(%v, 30) = %d, want %d", tc.previewFPS, got, tc.want)
		}
	}
}

// TestClock_CycleMatchesAcrossDrivers checks that a 3 second cycle lands on
// the same phase at the same wall time whether driven at 30 or 15 fps.
func TestClock_CycleMatchesAcrossDrivers(t *testing.T) {
	export := Clock{FPS: 30, PreviewFPS: 15, Cycle: 3}
	preview := Clock{FPS: 15, PreviewFPS: 15, Cycle: 3}

	for sec := 0; sec < 7; sec++ {
		e := export.At(sec * 30)
		p := preview.At(sec * 15)
		if e.Phase != p.Phase {
			t.Errorf("t=%ds: export phase %v != preview phase %v", sec, e.Phase, p.Phase)
		}
		if e.Effective != p.Effective {
			t.Errorf("t=%ds: export effective frame %d != preview frame %d", sec, e.Effective, p.Effective)
		}
	}

	if !export.At(0).Regenerate || export.At(1).Regenerate || !export.At(2).Regenerate {
		t.Error("export at twice the preview rate should regenerate every second frame")
	}
	if got := export.At(45).Seconds; got != 1.5 {
		t.Errorf("Seconds at frame 45 = %v, want 1.5", got)
	}
}

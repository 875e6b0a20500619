package audio

import "github.com/linuxmatters/asciifire/internal/config"

// DynamicsConfig controls how raw spectrum energy becomes a reactive level.
type DynamicsConfig struct {
	Attack      float64 // fraction of a rise applied per step
	Decay       float64 // fraction of a fall applied per step
	Smoothing   float64 // weight of the previous level
	Sensitivity float64 // multiplier applied by the effect resolver
	BassGain    float64
	MidGain     float64
	TrebleGain  float64
}

// DefaultDynamics returns the stock attack/decay settings with flat band gains.
func DefaultDynamics() DynamicsConfig {
	return DynamicsConfig{
		Attack:      config.AttackSpeed,
		Decay:       config.DecaySpeed,
		Smoothing:   config.Smoothing,
		Sensitivity: config.Sensitivity,
		BassGain:    1,
		MidGain:     1,
		TrebleGain:  1,
	}
}

// BandLevel folds a byte spectrum into a single raw level in [0, 1]. The
// spectrum splits into bass (first 15%), mid (up to 50%) and treble; each
// band is gain-weighted and averaged over its bin count, then the three
// bands are averaged.
func BandLevel(bins []byte, cfg DynamicsConfig) float64 {
	n := len(bins)
	if n == 0 {
		return 0
	}
	bassEnd := n * 15 / 100
	midEnd := n / 2

	var bass, mid, treble float64
	for i, v := range bins {
		switch {
		case i < bassEnd:
			bass += float64(v) * cfg.BassGain
		case i < midEnd:
			mid += float64(v) * cfg.MidGain
		default:
			treble += float64(v) * cfg.TrebleGain
		}
	}

	bass /= float64(orOne(bassEnd))
	mid /= float64(orOne(midEnd - bassEnd))
	treble /= float64(orOne(n - midEnd))
	return (bass + mid + treble) / 3 / 255
}

func orOne(n int) int {
	if n == 0 {
		return 1
	}
	return n
}

// Dynamics applies attack/decay and smoothing to successive raw levels.
type Dynamics struct {
	cfg      DynamicsConfig
	smoothed float64
	level    float64
}

// NewDynamics creates a Dynamics at rest.
func NewDynamics(cfg DynamicsConfig) *Dynamics {
	return &Dynamics{cfg: cfg}
}

// Step feeds one raw level and returns the new output level in [0, 1].
func (d *Dynamics) Step(raw float64) float64 {
	if raw > d.smoothed {
		d.smoothed += (raw - d.smoothed) * d.cfg.Attack
	} else {
		d.smoothed -= (d.smoothed - raw) * d.cfg.Decay
	}

	level := d.smoothed*(1-d.cfg.Smoothing) + d.level*d.cfg.Smoothing
	d.level = max(0, min(1, level))
	return d.level
}

// Level returns the last output level.
func (d *Dynamics) Level() float64 { return d.level }

// Smoothed returns the attack/decay follower before output smoothing.
func (d *Dynamics) Smoothed() float64 { return d.smoothed }

// Config returns the settings in use.
func (d *Dynamics) Config() DynamicsConfig { return d.cfg }

// Reset returns the follower to rest.
func (d *Dynamics) Reset() {
	d.smoothed = 0
	d.level = 0
}

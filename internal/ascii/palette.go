package ascii

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// NumBuckets is the number of brightness ranges in a Palette.
const NumBuckets = 8

// ErrEmptyBucket is returned when a bucket override would leave no glyphs.
var ErrEmptyBucket = errors.New("palette bucket must contain at least one glyph")

// defaultBuckets runs from darkest (0) to brightest (7).
var defaultBuckets = [NumBuckets]string{
	" .,",
	".,'`",
	":;`~",
	"-~_–",
	"=+^-~",
	"*xX+o",
	"#@%&WMO",
	"#@%&WMB$D",
}

// Palette maps brightness to glyphs. Bucket i covers [i/8, (i+1)/8).
// Every bucket always holds at least one glyph.
type Palette struct {
	buckets [NumBuckets][]rune
	custom  []rune
}

// DefaultPalette returns a palette populated with the stock glyph buckets.
func DefaultPalette() *Palette {
	p := &Palette{}
	for i, s := range defaultBuckets {
		p.buckets[i] = []rune(s)
	}
	return p
}

// SetBucket replaces the glyph set of one bucket.
func (p *Palette) SetBucket(i int, glyphs string) error {
	if i < 0 || i >= NumBuckets {
		return fmt.Errorf("bucket %d out of range 0..%d", i, NumBuckets-1)
	}
	r := []rune(glyphs)
	if len(r) == 0 {
		return fmt.Errorf("bucket %d: %w", i, ErrEmptyBucket)
	}
	p.buckets[i] = r
	return nil
}

// ResetBucket restores a bucket to its stock glyphs.
func (p *Palette) ResetBucket(i int) {
	if i >= 0 && i < NumBuckets {
		p.buckets[i] = []rune(defaultBuckets[i])
	}
}

// Bucket returns a copy of the glyphs in bucket i.
func (p *Palette) Bucket(i int) []rune {
	return append([]rune(nil), p.buckets[i]...)
}

// SetCustom installs a global glyph string. When non-empty, every cell draws
// from it regardless of brightness. An empty string restores bucket lookup.
func (p *Palette) SetCustom(glyphs string) {
	p.custom = []rune(glyphs)
}

// Custom reports the global override, or "" when none is set.
func (p *Palette) Custom() string {
	return string(p.custom)
}

// BucketIndex returns the bucket covering brightness b.
func BucketIndex(b float64) int {
	idx := int(b * NumBuckets)
	if idx < 0 {
		return 0
	}
	if idx > NumBuckets-1 {
		return NumBuckets - 1
	}
	return idx
}

// Glyph picks a glyph for brightness b. Each call draws afresh from rng, so
// identical inputs may return different glyphs.
func (p *Palette) Glyph(rng *rand.Rand, b float64) rune {
	if len(p.custom) > 0 {
		return p.custom[rng.IntN(len(p.custom))]
	}
	set := p.buckets[BucketIndex(b)]
	return set[rng.IntN(len(set))]
}

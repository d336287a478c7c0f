// Package noise implements deterministic, seeded coherent noise over integer
// tile coordinates.
package noise

import (
	"fmt"
	"math"

	"github.com/aquilax/go-perlin"
	"github.com/ojrac/opensimplex-go"
)

// Settings controls the fractal summation performed by a Field.
type Settings struct {
	// Octaves is the number of noise layers summed. Must be at least 1.
	Octaves int
	// Frequency is the frequency of the first octave in cycles per tile.
	Frequency float64
	// Amplitude is the weight of the first octave.
	Amplitude float64
	// Lacunarity multiplies the frequency for every following octave.
	Lacunarity float64
	// Persistence multiplies the amplitude for every following octave.
	Persistence float64
}

// DefaultSettings returns the settings used for elevation sampling when none
// are configured.
func DefaultSettings() Settings {
	return Settings{
		Octaves:     4,
		Frequency:   1.0 / 64,
		Amplitude:   1,
		Lacunarity:  2,
		Persistence: 0.5,
	}
}

// Validate returns an error if the settings cannot produce a bounded field.
func (s Settings) Validate() error {
	if s.Octaves < 1 {
		return fmt.Errorf("noise: octave count must be at least 1, got %d", s.Octaves)
	}
	for _, v := range []struct {
		name string
		val  float64
	}{
		{"frequency", s.Frequency},
		{"amplitude", s.Amplitude},
		{"lacunarity", s.Lacunarity},
		{"persistence", s.Persistence},
	} {
		if math.IsNaN(v.val) || math.IsInf(v.val, 0) || v.val <= 0 {
			return fmt.Errorf("noise: %v must be a positive number, got %v", v.name, v.val)
		}
	}
	return nil
}

// Field is a multi-octave coherent noise field. Every octave averages an
// OpenSimplex and a Perlin sample at the same point. The permutation tables of
// both are built once in New and never written to afterwards, so a Field is
// safe for concurrent use.
type Field struct {
	seed int64
	s    Settings

	simplex opensimplex.Noise
	perlin  *perlin.Perlin

	// norm is the reciprocal of the summed octave amplitudes.
	norm float64
}

// New creates a Field seeded with seed. An error is returned if s is invalid.
func New(seed int64, s Settings) (*Field, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	var total float64
	amp := s.Amplitude
	for i := 0; i < s.Octaves; i++ {
		total += amp
		amp *= s.Persistence
	}
	return &Field{
		seed:    seed,
		s:       s,
		simplex: opensimplex.New(seed),
		// A single Perlin octave: octaves are summed by Sample so that both
		// bases share the same frequency schedule.
		perlin: perlin.NewPerlin(2, 2, 1, seed),
		norm:   1 / total,
	}, nil
}

// Seed returns the seed the Field was created with.
func (f *Field) Seed() int64 {
	return f.seed
}

// Settings returns the settings of the Field.
func (f *Field) Settings() Settings {
	return f.s
}

// Sample returns the noise value at the tile coordinate passed. The value is
// always in [-1, 1] and depends only on the seed, the settings and (x, y).
func (f *Field) Sample(x, y int) float64 {
	var (
		sum  float64
		freq = f.s.Frequency
		amp  = f.s.Amplitude
		fx   = float64(x)
		fy   = float64(y)
	)
	for i := 0; i < f.s.Octaves; i++ {
		px, py := fx*freq, fy*freq
		sum += amp * (f.simplex.Eval2(px, py) + f.perlin.Noise2D(px, py)) / 2
		freq *= f.s.Lacunarity
		amp *= f.s.Persistence
	}
	return clamp(sum * f.norm)
}

func clamp(v float64) float64 {
	switch {
	case v < -1:
		return -1
	case v > 1:
		return 1
	}
	return v
}

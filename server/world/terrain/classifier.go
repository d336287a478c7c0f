package terrain

import (
	"errors"
	"fmt"
	"math"
)

// Thresholds holds the upper elevation bound of every terrain band. A sample
// below Water is water, a sample below Sand is sand, and so on. Samples at or
// above Rock are snow. The bounds must be strictly increasing and within
// [-1, 1].
//
// Arid and Lush are moisture thresholds that are only used when a moisture
// sample is passed to Classify.
type Thresholds struct {
	Water  float64
	Sand   float64
	Grass  float64
	Forest float64
	Rock   float64

	Arid float64
	Lush float64
}

// DefaultThresholds returns the thresholds used when none are configured. Summed
// octaves cluster around zero, so the bands are narrower than the [-1, 1]
// range of the samples.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Water:  -0.15,
		Sand:   -0.05,
		Grass:  0.15,
		Forest: 0.3,
		Rock:   0.45,
		Arid:   -0.15,
		Lush:   0.15,
	}
}

// Bound returns the upper elevation bound configured for t. Snow has no upper
// bound and returns +Inf.
func (th Thresholds) Bound(t Type) float64 {
	switch t {
	case Water:
		return th.Water
	case Sand:
		return th.Sand
	case Grass:
		return th.Grass
	case Forest:
		return th.Forest
	case Rock:
		return th.Rock
	}
	return math.Inf(1)
}

// WithBound returns a copy of th with the upper bound of t replaced by v.
// Setting the bound of Snow is an error because snow is unbounded.
func (th Thresholds) WithBound(t Type, v float64) (Thresholds, error) {
	switch t {
	case Water:
		th.Water = v
	case Sand:
		th.Sand = v
	case Grass:
		th.Grass = v
	case Forest:
		th.Forest = v
	case Rock:
		th.Rock = v
	default:
		return th, fmt.Errorf("terrain: %v has no upper bound", t)
	}
	return th, nil
}

// Validate checks that the elevation bands are strictly increasing and that
// all thresholds lie within [-1, 1].
func (th Thresholds) Validate() error {
	bounds := []float64{th.Water, th.Sand, th.Grass, th.Forest, th.Rock}
	for i, b := range bounds {
		if math.IsNaN(b) || b < -1 || b > 1 {
			return fmt.Errorf("terrain: %v threshold %v out of range [-1, 1]", Type(i), b)
		}
		if i > 0 && b <= bounds[i-1] {
			return fmt.Errorf("terrain: %v threshold %v must be greater than %v threshold %v", Type(i), b, Type(i-1), bounds[i-1])
		}
	}
	if math.IsNaN(th.Arid) || math.IsNaN(th.Lush) || th.Arid < -1 || th.Lush > 1 {
		return errors.New("terrain: moisture thresholds out of range [-1, 1]")
	}
	if th.Arid >= th.Lush {
		return fmt.Errorf("terrain: arid threshold %v must be lower than lush threshold %v", th.Arid, th.Lush)
	}
	return nil
}

// Classifier maps noise samples to a terrain Type. A Classifier holds no
// mutable state and may be shared freely between goroutines.
type Classifier struct {
	th Thresholds
}

// NewClassifier returns a Classifier using the thresholds passed. An error is
// returned if the thresholds are invalid.
func NewClassifier(th Thresholds) (Classifier, error) {
	if err := th.Validate(); err != nil {
		return Classifier{}, err
	}
	return Classifier{th: th}, nil
}

// Thresholds returns the thresholds of the Classifier.
func (c Classifier) Thresholds() Thresholds {
	return c.th
}

// Classify returns the terrain type for an elevation sample. The first
// secondary sample, if passed, is treated as moisture: dry grassland turns to
// sand, wet grassland to forest and dry forest thins out to grass. Further
// secondary samples are ignored.
func (c Classifier) Classify(elevation float64, secondary ...float64) Type {
	t := c.band(elevation)
	if len(secondary) == 0 {
		return t
	}
	moisture := secondary[0]
	switch t {
	case Grass:
		if moisture >= c.th.Lush {
			return Forest
		}
		if moisture <= c.th.Arid {
			return Sand
		}
	case Forest:
		if moisture <= c.th.Arid {
			return Grass
		}
	}
	return t
}

func (c Classifier) band(e float64) Type {
	switch {
	case e < c.th.Water:
		return Water
	case e < c.th.Sand:
		return Sand
	case e < c.th.Grass:
		return Grass
	case e < c.th.Forest:
		return Forest
	case e < c.th.Rock:
		return Rock
	default:
		return Snow
	}
}

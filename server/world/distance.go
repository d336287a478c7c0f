package world

import (
	"fmt"
	"iter"
	"math"
	"strings"
)

// DistanceMetric is the metric used to decide whether a chunk lies within the
// radius of a Loader.
type DistanceMetric uint8

const (
	// Chebyshev selects all chunks in the square of side 2r+1 around the
	// loader.
	Chebyshev DistanceMetric = iota
	// Euclidean selects the chunks for which dx*dx + dy*dy <= r*r, producing
	// a disc around the loader.
	Euclidean
)

// ParseDistanceMetric parses the name of a DistanceMetric, as returned by
// DistanceMetric.String. Names are matched case-insensitively.
func ParseDistanceMetric(s string) (DistanceMetric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "chebyshev", "square":
		return Chebyshev, nil
	case "euclidean", "circle":
		return Euclidean, nil
	}
	return 0, fmt.Errorf("world: unknown distance metric %q", s)
}

// String ...
func (m DistanceMetric) String() string {
	switch m {
	case Chebyshev:
		return "chebyshev"
	case Euclidean:
		return "euclidean"
	}
	return fmt.Sprintf("DistanceMetric(%d)", uint8(m))
}

// dist returns a distance between a and b that is monotonic in the metric.
// For Euclidean this is the squared distance.
func (m DistanceMetric) dist(a, b ChunkPos) int64 {
	if m == Euclidean {
		return a.DistSq(b)
	}
	return a.Chebyshev(b)
}

// within reports if b lies within radius r of a.
func (m DistanceMetric) within(a, b ChunkPos, r int) bool {
	if r < 0 {
		return false
	}
	if m == Euclidean {
		return a.DistSq(b) <= int64(r)*int64(r)
	}
	return a.Chebyshev(b) <= int64(r)
}

// chunksAround returns the chunk positions in the square of side 2r+1 around
// centre. Positions outside the int32 range are skipped.
func chunksAround(centre ChunkPos, r int) iter.Seq[ChunkPos] {
	return func(yield func(ChunkPos) bool) {
		r64 := int64(max(r, 0))
		minX, maxX := max(int64(centre[0])-r64, math.MinInt32), min(int64(centre[0])+r64, math.MaxInt32)
		minY, maxY := max(int64(centre[1])-r64, math.MinInt32), min(int64(centre[1])+r64, math.MaxInt32)
		for x := minX; x <= maxX; x++ {
			for y := minY; y <= maxY; y++ {
				if !yield(ChunkPos{int32(x), int32(y)}) {
					return
				}
			}
		}
	}
}

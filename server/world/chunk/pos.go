package chunk

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/exp/constraints"
)

// TilePos is the position of a single tile in the infinite tile grid.
type TilePos [2]int

// X returns the X coordinate of the tile.
func (p TilePos) X() int { return p[0] }

// Y returns the Y coordinate of the tile.
func (p TilePos) Y() int { return p[1] }

// String ...
func (p TilePos) String() string {
	return fmt.Sprintf("(%v, %v)", p[0], p[1])
}

// Vec2 returns the centre of the tile in continuous tile space.
func (p TilePos) Vec2() mgl64.Vec2 {
	return mgl64.Vec2{float64(p[0]) + 0.5, float64(p[1]) + 0.5}
}

// TilePosFromVec2 returns the tile that contains the point v.
func TilePosFromVec2(v mgl64.Vec2) TilePos {
	return TilePos{int(math.Floor(v[0])), int(math.Floor(v[1]))}
}

// Pos is the position of a chunk. A chunk at Pos{x, y} with side length n
// holds the tiles [x*n, x*n+n) by [y*n, y*n+n).
type Pos [2]int32

// X returns the X coordinate of the chunk.
func (p Pos) X() int32 { return p[0] }

// Y returns the Y coordinate of the chunk.
func (p Pos) Y() int32 { return p[1] }

// String ...
func (p Pos) String() string {
	return fmt.Sprintf("(%v, %v)", p[0], p[1])
}

// Origin returns the tile position of the lowest corner of the chunk.
func (p Pos) Origin(size int) TilePos {
	return TilePos{int(p[0]) * size, int(p[1]) * size}
}

// Chebyshev returns the Chebyshev distance between p and o, the larger of the
// distances along each axis.
func (p Pos) Chebyshev(o Pos) int64 {
	return max(abs(int64(p[0])-int64(o[0])), abs(int64(p[1])-int64(o[1])))
}

// DistSq returns the squared Euclidean distance between p and o.
func (p Pos) DistSq(o Pos) int64 {
	dx, dy := int64(p[0])-int64(o[0]), int64(p[1])-int64(o[1])
	return dx*dx + dy*dy
}

// PosOf returns the position of the chunk with side length size holding the
// tile passed. Negative tiles belong to negative chunks: with size 16, tile
// -1 lies in chunk -1, not chunk 0. Chunk coordinates are clamped to the
// int32 range, so PosOf is only exact for tiles for which InRange is true.
func PosOf(t TilePos, size int) Pos {
	return Pos{clamp32(FloorDiv(t[0], size)), clamp32(FloorDiv(t[1], size))}
}

// InRange reports if the chunk holding the tile t, with side length size, has
// coordinates that fit in a Pos.
func InRange(t TilePos, size int) bool {
	x, y := FloorDiv(t[0], size), FloorDiv(t[1], size)
	return x == int(clamp32(x)) && y == int(clamp32(y))
}

// PosFromVec2 returns the chunk holding the point v in continuous tile space.
// Like PosOf, the result is clamped to the int32 range. NaN coordinates are
// treated as 0.
func PosFromVec2(v mgl64.Vec2, size int) Pos {
	n := float64(size)
	return Pos{clampFloat32(math.Floor(v[0] / n)), clampFloat32(math.Floor(v[1] / n))}
}

// Local returns the position of t relative to the origin of its chunk.
func Local(t TilePos, size int) (x, y int) {
	return FloorMod(t[0], size), FloorMod(t[1], size)
}

// FloorDiv divides a by b, rounding towards negative infinity. b must be
// positive.
func FloorDiv[T constraints.Signed](a, b T) T {
	q := a / b
	if (a%b != 0) && (a < 0) {
		q--
	}
	return q
}

// FloorMod returns the remainder of FloorDiv(a, b), always in [0, b).
func FloorMod[T constraints.Signed](a, b T) T {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func clamp32(v int) int32 {
	return int32(min(max(v, math.MinInt32), math.MaxInt32))
}

func clampFloat32(v float64) int32 {
	if math.IsNaN(v) {
		return 0
	}
	return int32(min(max(v, math.MinInt32), math.MaxInt32))
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

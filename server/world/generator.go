package world

import (
	"github.com/df-mc/tileworld/server/world/chunk"
	"github.com/df-mc/tileworld/server/world/terrain"
)

// Generator handles the generating of newly created chunks. Worlds have one
// generator which is used to generate chunks when they are first needed.
//
// GenerateChunk must be a pure function of the position and size passed:
// calling it twice with the same arguments must produce identical chunks. It
// is called concurrently from multiple goroutines.
type Generator interface {
	GenerateChunk(pos ChunkPos, size int) (*chunk.Chunk, error)
}

// GeneratorFunc implements Generator with a function.
type GeneratorFunc func(pos ChunkPos, size int) (*chunk.Chunk, error)

// GenerateChunk calls f(pos, size).
func (f GeneratorFunc) GenerateChunk(pos ChunkPos, size int) (*chunk.Chunk, error) {
	return f(pos, size)
}

// NopGenerator is the default generator a world uses. It generates chunks
// made up entirely of water.
type NopGenerator struct{}

// GenerateChunk ...
func (NopGenerator) GenerateChunk(pos ChunkPos, size int) (*chunk.Chunk, error) {
	return chunk.New(pos, size, make([]terrain.Type, size*size)), nil
}

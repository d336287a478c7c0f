package world

import "github.com/df-mc/tileworld/server/world/chunk"

// ChunkPos holds the position of a chunk. It is an alias of chunk.Pos.
type ChunkPos = chunk.Pos

// TilePos holds the position of a tile. It is an alias of chunk.TilePos.
type TilePos = chunk.TilePos

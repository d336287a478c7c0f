package world

import (
	"github.com/brentp/intintmap"
)

// chunkState is the streaming state of a chunk position. Positions without an
// entry in a stateTable are either Unloaded or, if present in the Store,
// Resident.
type chunkState uint8

const (
	stateUnloaded chunkState = iota
	stateRequested
	stateGenerating
	stateResident
)

// String ...
func (s chunkState) String() string {
	switch s {
	case stateUnloaded:
		return "unloaded"
	case stateRequested:
		return "requested"
	case stateGenerating:
		return "generating"
	case stateResident:
		return "resident"
	}
	return "unknown"
}

// stateTable tracks the positions that are in flight. It is owned by the
// scheduler and must not be used concurrently.
type stateTable struct {
	m *intintmap.Map
}

func newStateTable() *stateTable {
	return &stateTable{m: intintmap.New(256, 0.6)}
}

// packPos packs a chunk position into a single int64 key.
func packPos(pos ChunkPos) int64 {
	return int64(pos[0])<<32 | int64(uint32(pos[1]))
}

// get returns the state of pos.
func (t *stateTable) get(pos ChunkPos) chunkState {
	v, ok := t.m.Get(packPos(pos))
	if !ok {
		return stateUnloaded
	}
	return chunkState(v)
}

func (t *stateTable) set(pos ChunkPos, s chunkState) {
	t.m.Put(packPos(pos), int64(s))
}

func (t *stateTable) del(pos ChunkPos) {
	t.m.Del(packPos(pos))
}

func (t *stateTable) len() int {
	return t.m.Size()
}

package world

import (
	"errors"
	"fmt"
	"iter"
	"maps"
	"slices"
	"sync"

	"github.com/df-mc/tileworld/server/world/chunk"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrChunkResident is returned by Store.Insert if a chunk is already
	// resident at the position passed. The resident chunk is left untouched.
	ErrChunkResident = errors.New("world: chunk already resident")
	// ErrChunkPosMismatch is returned by Store.Insert if the chunk passed does
	// not belong to the position it is inserted at.
	ErrChunkPosMismatch = errors.New("world: chunk position mismatch")
)

// Store holds the chunks resident in a World, keyed by their position. A
// Store never holds more than one chunk per position. All methods are safe for
// concurrent use: insertions and removals are serialised while lookups share a
// read lock.
type Store struct {
	mu     sync.RWMutex
	chunks map[ChunkPos]*chunk.Chunk

	flight singleflight.Group
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{chunks: make(map[ChunkPos]*chunk.Chunk, 256)}
}

// Chunk returns the chunk resident at pos. It never blocks on generation and
// never generates a chunk.
func (s *Store) Chunk(pos ChunkPos) (*chunk.Chunk, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chunks[pos]
	return c, ok
}

// Insert makes c resident at pos. Insert rejects the chunk with
// ErrChunkResident if another chunk is already resident at pos: resident
// terrain is never replaced.
func (s *Store) Insert(pos ChunkPos, c *chunk.Chunk) error {
	if c.Pos() != pos {
		return fmt.Errorf("%w: chunk %v inserted at %v", ErrChunkPosMismatch, c.Pos(), pos)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chunks[pos]; ok {
		return fmt.Errorf("%w: %v", ErrChunkResident, pos)
	}
	s.chunks[pos] = c
	return nil
}

// Load returns the chunk resident at pos, generating and inserting it with gen
// if it is not resident yet. Concurrent calls to Load for the same position
// share a single call to gen.
func (s *Store) Load(pos ChunkPos, gen func() (*chunk.Chunk, error)) (*chunk.Chunk, error) {
	if c, ok := s.Chunk(pos); ok {
		return c, nil
	}
	v, err, _ := s.flight.Do(pos.String(), func() (any, error) {
		if c, ok := s.Chunk(pos); ok {
			return c, nil
		}
		c, err := gen()
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if existing, ok := s.chunks[pos]; ok {
			// Inserted directly while generating: keep the resident chunk.
			return existing, nil
		}
		if c.Pos() != pos {
			return nil, fmt.Errorf("%w: generated %v for %v", ErrChunkPosMismatch, c.Pos(), pos)
		}
		s.chunks[pos] = c
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*chunk.Chunk), nil
}

// Remove removes the chunk resident at pos and returns it. Removing a position
// that has no resident chunk is a no-op and returns false.
func (s *Store) Remove(pos ChunkPos) (*chunk.Chunk, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chunks[pos]
	if ok {
		delete(s.chunks, pos)
	}
	return c, ok
}

// Len returns the number of resident chunks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Positions returns the positions of all resident chunks at the moment of the
// call. Chunks inserted or removed while iterating are not reflected.
func (s *Store) Positions() iter.Seq[ChunkPos] {
	s.mu.RLock()
	positions := slices.Collect(maps.Keys(s.chunks))
	s.mu.RUnlock()
	return slices.Values(positions)
}

// Chunks returns all resident chunks with their positions at the moment of
// the call.
func (s *Store) Chunks() iter.Seq2[ChunkPos, *chunk.Chunk] {
	s.mu.RLock()
	snapshot := maps.Clone(s.chunks)
	s.mu.RUnlock()
	return maps.All(snapshot)
}

package world

import (
	"cmp"
	"log/slog"
	"slices"

	"golang.org/x/time/rate"
)

// Area is a square or disc of chunks, depending on the DistanceMetric, that
// must be resident. It is the chunk-space footprint of a Loader.
type Area struct {
	Centre ChunkPos
	Radius int
}

// SchedulerConfig holds the parameters of a Scheduler.
type SchedulerConfig struct {
	Logger *slog.Logger
	Store  *Store
	// Hysteresis is the number of chunks beyond the radius of an Area that
	// resident chunks are retained for.
	Hysteresis int
	Metric     DistanceMetric
	// DispatchBudget is the maximum number of generation tasks dispatched per
	// tick. Zero or less means unlimited.
	DispatchBudget int
	// Limiter, if non-nil, limits the global generation rate.
	Limiter *rate.Limiter
	Metrics *Metrics
}

// Scheduler decides every tick which chunks must be generated and which must
// be evicted, based on the Areas passed to Tick. It never generates chunks
// itself: tasks are handed to a generationPool. A Scheduler must only be used
// from one goroutine at a time.
type Scheduler struct {
	log     *slog.Logger
	store   *Store
	pool    *generationPool
	states  *stateTable
	k       int
	metric  DistanceMetric
	budget  int
	limiter *rate.Limiter
	metrics *Metrics

	// Scratch buffers reused between ticks.
	required map[ChunkPos]int64
	missing  []ChunkPos
}

func newScheduler(cfg SchedulerConfig, pool *generationPool) *Scheduler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return &Scheduler{
		log:      cfg.Logger,
		store:    cfg.Store,
		pool:     pool,
		states:   newStateTable(),
		k:        max(cfg.Hysteresis, 0),
		metric:   cfg.Metric,
		budget:   cfg.DispatchBudget,
		limiter:  limiter,
		metrics:  cfg.Metrics,
		required: make(map[ChunkPos]int64, 256),
	}
}

// InFlight returns the number of chunk positions that are requested or being
// generated.
func (s *Scheduler) InFlight() int {
	return s.states.len()
}

// Tick runs one scheduling step: completed generations are collected against
// the current areas, missing chunks within the areas are dispatched in order
// of distance, and resident chunks outside the retention radius of every area
// are evicted. Tick never
// blocks on generation.
func (s *Scheduler) Tick(tick int64, areas []Area) {
	s.collectRequired(areas)
	s.drain(areas)
	s.dispatch(tick)
	s.evict(areas)
	s.metrics.setGauges(s.store.Len(), s.states.len())
}

// drain collects all generation results available without blocking.
func (s *Scheduler) drain(areas []Area) {
	for {
		select {
		case res := <-s.pool.results:
			s.complete(res, areas)
		default:
			return
		}
	}
}

// complete handles the result of a generation task. A chunk that is outside
// the retention radius of every area of the current tick is removed again.
func (s *Scheduler) complete(res generationResult, areas []Area) {
	s.states.del(res.pos)
	if res.err != nil {
		s.metrics.incFailed()
		s.log.Warn("Chunk generation failed, retrying on a later tick.", "X", res.pos.X(), "Y", res.pos.Y(), "err", res.err)
		return
	}
	if !s.retained(res.pos, areas) {
		if _, ok := s.store.Remove(res.pos); ok {
			s.metrics.incCancelled()
		}
		return
	}
	s.metrics.incGenerated()
}

// collectRequired fills s.required with every position within the radius of
// one of the areas, mapped to its distance to the nearest area.
func (s *Scheduler) collectRequired(areas []Area) {
	clear(s.required)
	for _, a := range areas {
		for pos := range chunksAround(a.Centre, a.Radius) {
			if !s.metric.within(a.Centre, pos, a.Radius) {
				continue
			}
			d := s.metric.dist(a.Centre, pos)
			if prev, ok := s.required[pos]; !ok || d < prev {
				s.required[pos] = d
			}
		}
	}
}

// dispatch offers every required position that is neither resident nor in
// flight to the worker pool, nearest first.
func (s *Scheduler) dispatch(tick int64) {
	s.missing = s.missing[:0]
	for pos := range s.required {
		if _, ok := s.store.Chunk(pos); ok {
			continue
		}
		if s.states.get(pos) != stateUnloaded {
			s.metrics.incCoalesced()
			continue
		}
		s.missing = append(s.missing, pos)
	}
	slices.SortFunc(s.missing, func(a, b ChunkPos) int {
		if c := cmp.Compare(s.required[a], s.required[b]); c != 0 {
			return c
		}
		if c := cmp.Compare(int64(a[0])+int64(a[1]), int64(b[0])+int64(b[1])); c != 0 {
			return c
		}
		return cmp.Compare(a[0], b[0])
	})

	dispatched := 0
	for _, pos := range s.missing {
		s.states.set(pos, stateRequested)
		if s.budget > 0 && dispatched >= s.budget {
			s.reject(pos)
			continue
		}
		if !s.limiter.Allow() || !s.pool.submit(generationTask{pos: pos, tick: tick}) {
			s.reject(pos)
			continue
		}
		s.states.set(pos, stateGenerating)
		dispatched++
	}
}

// reject reverts a requested position to unloaded. It is requested again on
// the next tick that still requires it.
func (s *Scheduler) reject(pos ChunkPos) {
	s.states.del(pos)
	s.metrics.incRejected()
}

// evict removes resident chunks outside the retention radius of every area.
// Chunks whose generation result was not collected yet are left to complete.
func (s *Scheduler) evict(areas []Area) {
	for pos := range s.store.Positions() {
		if s.retained(pos, areas) || s.states.get(pos) != stateUnloaded {
			continue
		}
		if _, ok := s.store.Remove(pos); ok {
			s.metrics.incEvicted()
		}
	}
}

// retained reports if pos lies within the radius plus hysteresis of at least
// one area.
func (s *Scheduler) retained(pos ChunkPos, areas []Area) bool {
	for _, a := range areas {
		if s.metric.within(a.Centre, pos, a.Radius+s.k) {
			return true
		}
	}
	return false
}

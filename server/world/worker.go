package world

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/df-mc/tileworld/server/world/chunk"
	"golang.org/x/sync/errgroup"
)

// generationTask is a request to generate the chunk at pos.
type generationTask struct {
	pos  ChunkPos
	tick int64
}

// generationResult is sent back to the scheduler for every task a worker
// picked up, successful or not.
type generationResult struct {
	pos   ChunkPos
	chunk *chunk.Chunk
	err   error
}

// generationPool runs chunk generation on a fixed number of goroutines, off
// the goroutine that ticks the world. Tasks are submitted without blocking;
// results are collected by the scheduler on every tick.
type generationPool struct {
	log     *slog.Logger
	gen     Generator
	store   *Store
	size    int
	workers int

	queue   chan generationTask
	results chan generationResult

	cancel context.CancelFunc
	group  *errgroup.Group
	closed atomic.Bool

	// saturation counts how often a task was refused because the queue was
	// full. It is used to rate-limit backpressure warnings.
	saturation     atomic.Uint64
	lastSaturation atomic.Int64
}

func newGenerationPool(log *slog.Logger, gen Generator, store *Store, size, workers, queueSize int) *generationPool {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)
	p := &generationPool{
		log:     log,
		gen:     gen,
		store:   store,
		size:    size,
		workers: workers,
		queue:   make(chan generationTask, queueSize),
		results: make(chan generationResult, queueSize+workers),
		cancel:  cancel,
		group:   g,
	}
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			p.work(ctx)
			return nil
		})
	}
	return p
}

// submit offers a task to the pool. It never blocks: false is returned if the
// queue is full or the pool was closed.
func (p *generationPool) submit(task generationTask) bool {
	if p.closed.Load() {
		return false
	}
	select {
	case p.queue <- task:
		return true
	default:
		p.handleBackpressure()
		return false
	}
}

// work processes tasks until ctx is cancelled or the queue is closed.
func (p *generationPool) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-p.queue:
			if !ok {
				return
			}
			select {
			case p.results <- p.run(task):
			case <-ctx.Done():
				return
			}
		}
	}
}

// run generates the chunk of a task and inserts it into the store. A panic in
// the generator is recovered and reported as an error, so that the worker
// survives and the scheduler can retry the position.
func (p *generationPool) run(task generationTask) (res generationResult) {
	res.pos = task.pos
	defer func() {
		if r := recover(); r != nil {
			res.chunk, res.err = nil, fmt.Errorf("generator panic: %v", r)
		}
	}()
	res.chunk, res.err = p.store.Load(task.pos, func() (*chunk.Chunk, error) {
		c, err := p.gen.GenerateChunk(task.pos, p.size)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, fmt.Errorf("generator returned no chunk")
		}
		if c.Size() != p.size {
			return nil, fmt.Errorf("generator returned chunk of size %d, expected %d", c.Size(), p.size)
		}
		return c.WithTick(task.tick), nil
	})
	return res
}

// handleBackpressure counts queue saturation and logs a warning at most once
// a minute.
func (p *generationPool) handleBackpressure() {
	count := p.saturation.Add(1)
	now := time.Now().UnixNano()
	last := p.lastSaturation.Load()
	if last != 0 && time.Duration(now-last) < time.Minute {
		return
	}
	if !p.lastSaturation.CompareAndSwap(last, now) {
		return
	}
	p.log.Warn("Chunk generation queue saturated, deferring requests to later ticks.",
		"rejected", count,
		"queue_size", cap(p.queue),
		"workers", p.workers,
	)
}

// close stops the workers and waits for them to return. Tasks still queued
// are dropped. close must not be called concurrently with submit.
func (p *generationPool) close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	p.cancel()
	close(p.queue)
	_ = p.group.Wait()
}

package world

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Config may be used to create a new World. It holds settings that control
// the size of chunks and the area kept resident around every Loader.
type Config struct {
	// Log is the Logger that will be used to log errors and debug messages to.
	// If set to nil, slog.Default() is used.
	Log *slog.Logger
	// ChunkSize is the side length of a chunk in tiles. It must be positive.
	// Defaults to 16 if zero.
	ChunkSize int
	// Radius is the default radius in chunks of a Loader created with
	// World.NewLoader and a negative radius. It must not exceed MaxRadius.
	// Defaults to 4 if zero: a Loader with radius 0 is created by passing 0 to
	// World.NewLoader.
	Radius int
	// Hysteresis is the number of chunks beyond the radius of a Loader that
	// resident chunks are retained for, so that an observer moving back and
	// forth over a chunk border does not cause chunks to be regenerated over
	// and over. Zero disables hysteresis.
	Hysteresis int
	// Metric is the distance metric deciding which chunks lie within the
	// radius of a Loader. Defaults to Chebyshev.
	Metric DistanceMetric
	// Generator is the Generator used to generate chunks that become
	// required. If nil, NopGenerator is used.
	Generator Generator
	// GeneratorWorkers is the number of goroutines generating chunks. If zero
	// or less, runtime.NumCPU() workers are started.
	GeneratorWorkers int
	// GeneratorQueueSize is the number of generation tasks that may wait for a
	// worker. If zero or less, four times the number of workers is used.
	GeneratorQueueSize int
	// DispatchBudget is the maximum number of chunks dispatched for
	// generation per tick. Zero or less means unlimited.
	DispatchBudget int
	// GenerationRate limits the number of chunks dispatched for generation per
	// second across all ticks. Zero or less means unlimited.
	GenerationRate float64
	// TickInterval is the interval at which the World ticks itself. If zero,
	// the World does not tick on its own and World.Tick must be called by the
	// owner, typically once per frame.
	TickInterval time.Duration
}

// Validate checks the configuration for values that cannot be defaulted.
func (conf Config) Validate() error {
	var errs []error
	if conf.ChunkSize < 0 {
		errs = append(errs, fmt.Errorf("chunk size must be positive, got %d", conf.ChunkSize))
	}
	if conf.Radius < 0 || conf.Radius > MaxRadius {
		errs = append(errs, fmt.Errorf("radius must be in [0, %d], got %d", MaxRadius, conf.Radius))
	}
	if conf.Hysteresis < 0 {
		errs = append(errs, fmt.Errorf("hysteresis must not be negative, got %d", conf.Hysteresis))
	}
	if conf.Metric != Chebyshev && conf.Metric != Euclidean {
		errs = append(errs, fmt.Errorf("unknown distance metric %v", conf.Metric))
	}
	if conf.TickInterval < 0 {
		errs = append(errs, fmt.Errorf("tick interval must not be negative, got %v", conf.TickInterval))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("world: invalid config: %w", err)
	}
	return nil
}

// New creates a new World using the Config conf. The World starts its
// generation workers right away and, if TickInterval is set, ticks itself.
// An error is returned if the Config is invalid, in which case nothing is
// started.
func (conf Config) New() (*World, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	if conf.ChunkSize == 0 {
		conf.ChunkSize = 16
	}
	if conf.Radius == 0 {
		conf.Radius = 4
	}
	if conf.Generator == nil {
		conf.Generator = NopGenerator{}
	}
	if conf.GeneratorWorkers <= 0 {
		conf.GeneratorWorkers = runtime.NumCPU()
	}
	if conf.GeneratorQueueSize <= 0 {
		conf.GeneratorQueueSize = conf.GeneratorWorkers * 4
	}
	var limiter *rate.Limiter
	if conf.GenerationRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(conf.GenerationRate), max(int(conf.GenerationRate), 1))
	}

	id := uuid.New()
	conf.Log = conf.Log.With("world", id.String())

	w := &World{
		conf:    conf,
		id:      id,
		store:   NewStore(),
		metrics: &Metrics{},
		overlay: newOverlay(conf.ChunkSize),
		loaders: make(map[*Loader]struct{}),
		closing: make(chan struct{}),
	}
	w.pool = newGenerationPool(conf.Log, conf.Generator, w.store, conf.ChunkSize, conf.GeneratorWorkers, conf.GeneratorQueueSize)
	w.sched = newScheduler(SchedulerConfig{
		Logger:         conf.Log,
		Store:          w.store,
		Hysteresis:     conf.Hysteresis,
		Metric:         conf.Metric,
		DispatchBudget: conf.DispatchBudget,
		Limiter:        limiter,
		Metrics:        w.metrics,
	}, w.pool)

	if conf.TickInterval > 0 {
		w.running.Add(1)
		go ticker{interval: conf.TickInterval}.tickLoop(w)
	}
	conf.Log.Debug("World created.", "chunk_size", conf.ChunkSize, "radius", conf.Radius, "hysteresis", conf.Hysteresis, "metric", conf.Metric, "workers", conf.GeneratorWorkers)
	return w, nil
}

package server

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/df-mc/tileworld/server/world"
	"github.com/df-mc/tileworld/server/world/generator/noisegen"
	"github.com/df-mc/tileworld/server/world/noise"
	"github.com/df-mc/tileworld/server/world/terrain"
	"github.com/pelletier/go-toml"
)

// Config contains options for starting a Server.
type Config struct {
	// Log is the Logger to use for logging information. If nil, Log is set to
	// slog.Default().
	Log *slog.Logger
	// World is the configuration of the World created by the Server. Its Log
	// field is set to Log if nil.
	World world.Config
	// ObserverRadius is the radius in chunks of the observer Loader created
	// by the Server. If negative, the default radius of the World is used.
	ObserverRadius int
	// HTTPAddress is the address the HTTP view listens on. If empty, no HTTP
	// server is started.
	HTTPAddress string
}

// UserConfig is the user configuration of a Server. It may be serialised to
// TOML and can be converted to a Config by calling UserConfig.Config().
type UserConfig struct {
	World struct {
		// Seed is the seed of the terrain. Decimal integers are used as they
		// are; any other text is hashed into a seed.
		Seed string
		// ChunkSize is the side length of a chunk in tiles.
		ChunkSize int
		// Radius is the number of chunks kept resident around the observer.
		Radius int
		// Hysteresis is the number of chunks beyond Radius that are retained
		// before being evicted.
		Hysteresis int
		// Metric is either "chebyshev" (a square around the observer) or
		// "euclidean" (a disc).
		Metric string
		// TickInterval is the interval at which the world ticks, such as
		// "50ms".
		TickInterval string
	}
	Generation struct {
		// Workers is the number of goroutines generating chunks. Set to 0 to
		// use the number of CPUs.
		Workers int
		// QueueSize is the number of generation jobs that may wait for a
		// worker. Set to 0 to use an automatically chosen size.
		QueueSize int
		// DispatchBudget is the maximum number of chunks dispatched per tick.
		// Set to 0 for no limit.
		DispatchBudget int
		// Rate is the maximum number of chunks generated per second. Set to 0
		// for no limit.
		Rate float64
	}
	Noise struct {
		Elevation NoiseConfig
		Moisture  NoiseConfig
		// DisableMoisture classifies terrain by elevation only.
		DisableMoisture bool
	}
	Terrain struct {
		// Thresholds holds the upper elevation bound of every tile type by
		// name. Snow has no upper bound.
		Thresholds map[string]float64
		// Arid and Lush are the moisture bounds turning grass into sand and
		// forest respectively.
		Arid, Lush float64
	}
	HTTP struct {
		// Address is the address on which the HTTP view listens. Leave empty
		// to disable it.
		Address string
	}
}

// NoiseConfig holds the settings of a noise field.
type NoiseConfig struct {
	Octaves     int
	Frequency   float64
	Amplitude   float64
	Lacunarity  float64
	Persistence float64
}

func noiseConfig(s noise.Settings) NoiseConfig {
	return NoiseConfig{Octaves: s.Octaves, Frequency: s.Frequency, Amplitude: s.Amplitude, Lacunarity: s.Lacunarity, Persistence: s.Persistence}
}

func (c NoiseConfig) settings() noise.Settings {
	return noise.Settings{Octaves: c.Octaves, Frequency: c.Frequency, Amplitude: c.Amplitude, Lacunarity: c.Lacunarity, Persistence: c.Persistence}
}

// Config converts a UserConfig to a Config, so that it may be used for
// creating a Server. An error is returned if any of the values is invalid.
func (uc UserConfig) Config(log *slog.Logger) (Config, error) {
	if log == nil {
		log = slog.Default()
	}
	if uc.World.Radius < 0 || uc.World.Radius > world.MaxRadius {
		return Config{}, fmt.Errorf("radius must be in [0, %d], got %d", world.MaxRadius, uc.World.Radius)
	}
	seed, err := noise.ParseSeed(uc.World.Seed)
	if err != nil {
		return Config{}, fmt.Errorf("parse seed: %w", err)
	}
	metric := world.Chebyshev
	if name := strings.TrimSpace(uc.World.Metric); name != "" {
		if metric, err = world.ParseDistanceMetric(name); err != nil {
			return Config{}, err
		}
	}
	var interval time.Duration
	if s := strings.TrimSpace(uc.World.TickInterval); s != "" {
		if interval, err = time.ParseDuration(s); err != nil {
			return Config{}, fmt.Errorf("parse tick interval: %w", err)
		}
	}
	th, err := uc.thresholds()
	if err != nil {
		return Config{}, err
	}
	gen, err := noisegen.New(noisegen.Config{
		Seed:            seed,
		Elevation:       uc.Noise.Elevation.settings(),
		Moisture:        uc.Noise.Moisture.settings(),
		DisableMoisture: uc.Noise.DisableMoisture,
		Thresholds:      th,
	})
	if err != nil {
		return Config{}, fmt.Errorf("create generator: %w", err)
	}
	return Config{
		Log: log,
		World: world.Config{
			Log:                log,
			ChunkSize:          uc.World.ChunkSize,
			Radius:             uc.World.Radius,
			Hysteresis:         uc.World.Hysteresis,
			Metric:             metric,
			Generator:          gen,
			GeneratorWorkers:   uc.Generation.Workers,
			GeneratorQueueSize: uc.Generation.QueueSize,
			DispatchBudget:     uc.Generation.DispatchBudget,
			GenerationRate:     uc.Generation.Rate,
			TickInterval:       interval,
		},
		ObserverRadius: uc.World.Radius,
		HTTPAddress:    strings.TrimSpace(uc.HTTP.Address),
	}, nil
}

// thresholds builds the classifier thresholds from the defaults, overridden
// by the values of the UserConfig.
func (uc UserConfig) thresholds() (terrain.Thresholds, error) {
	th := terrain.DefaultThresholds()
	for name, v := range uc.Terrain.Thresholds {
		t, err := terrain.ParseType(name)
		if err != nil {
			return th, fmt.Errorf("terrain thresholds: %w", err)
		}
		if th, err = th.WithBound(t, v); err != nil {
			return th, fmt.Errorf("terrain thresholds: %w", err)
		}
	}
	if uc.Terrain.Arid != 0 || uc.Terrain.Lush != 0 {
		th.Arid, th.Lush = uc.Terrain.Arid, uc.Terrain.Lush
	}
	if err := th.Validate(); err != nil {
		return th, err
	}
	return th, nil
}

// DefaultConfig returns a configuration with the default values filled out.
func DefaultConfig() UserConfig {
	c := UserConfig{}
	c.World.Seed = "0"
	c.World.ChunkSize = 16
	c.World.Radius = 4
	c.World.Hysteresis = 1
	c.World.Metric = world.Chebyshev.String()
	c.World.TickInterval = "50ms"
	c.Generation.DispatchBudget = 64
	c.Noise.Elevation = noiseConfig(noise.DefaultSettings())
	c.Noise.Moisture = noiseConfig(noisegen.DefaultMoisture())

	th := terrain.DefaultThresholds()
	c.Terrain.Thresholds = make(map[string]float64)
	for _, t := range terrain.Types() {
		if t != terrain.Snow {
			c.Terrain.Thresholds[t.String()] = th.Bound(t)
		}
	}
	c.Terrain.Arid, c.Terrain.Lush = th.Arid, th.Lush
	c.HTTP.Address = ":8080"
	return c
}

// LoadConfig reads the UserConfig stored at path. If the file does not exist,
// it is created holding DefaultConfig. Values missing from the file keep their
// default.
func LoadConfig(path string) (UserConfig, error) {
	c := DefaultConfig()
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return c, WriteConfig(path, c)
		}
		return c, fmt.Errorf("read config: %w", err)
	}
	if len(contents) != 0 {
		if err := toml.Unmarshal(contents, &c); err != nil {
			return c, fmt.Errorf("decode config: %w", err)
		}
	}
	return c, nil
}

// WriteConfig encodes c as TOML and writes it to path, creating the directory
// of path if needed.
func WriteConfig(path string, c UserConfig) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0777); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	encoded, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, encoded, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

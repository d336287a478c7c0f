// Package noisegen implements a world.Generator that derives terrain from
// seeded elevation and moisture noise.
package noisegen

import (
	"fmt"

	"github.com/df-mc/tileworld/server/world/chunk"
	"github.com/df-mc/tileworld/server/world/noise"
	"github.com/df-mc/tileworld/server/world/terrain"
)

// moistureField is the name mixed into the world seed to seed the moisture
// field.
const moistureField = "moisture"

// Config holds the parameters of a Generator.
type Config struct {
	// Seed is the world seed. Every tile is fully determined by it.
	Seed int64
	// Elevation controls the noise used for elevation. The zero value is
	// replaced with noise.DefaultSettings().
	Elevation noise.Settings
	// Moisture controls the noise used for moisture. The zero value is
	// replaced with DefaultMoisture().
	Moisture noise.Settings
	// DisableMoisture turns off the moisture field, classifying tiles by
	// elevation alone.
	DisableMoisture bool
	// Thresholds are the classifier thresholds. The zero value is replaced
	// with terrain.DefaultThresholds().
	Thresholds terrain.Thresholds
}

// DefaultMoisture returns the noise settings used for moisture when none are
// configured. Moisture varies more slowly than elevation, producing larger
// biomes.
func DefaultMoisture() noise.Settings {
	return noise.Settings{
		Octaves:     3,
		Frequency:   1.0 / 128,
		Amplitude:   1,
		Lacunarity:  2,
		Persistence: 0.5,
	}
}

// Generator generates chunks from noise. It holds no mutable state after New
// returns and may be used from any number of goroutines at once.
type Generator struct {
	seed       int64
	elevation  *noise.Field
	moisture   *noise.Field
	classifier terrain.Classifier
}

// New creates a Generator from the Config passed. An error is returned if any
// of the noise settings or thresholds are invalid.
func New(conf Config) (*Generator, error) {
	if conf.Elevation == (noise.Settings{}) {
		conf.Elevation = noise.DefaultSettings()
	}
	if conf.Moisture == (noise.Settings{}) {
		conf.Moisture = DefaultMoisture()
	}
	if conf.Thresholds == (terrain.Thresholds{}) {
		conf.Thresholds = terrain.DefaultThresholds()
	}
	elevation, err := noise.New(conf.Seed, conf.Elevation)
	if err != nil {
		return nil, fmt.Errorf("elevation: %w", err)
	}
	g := &Generator{seed: conf.Seed, elevation: elevation}
	if !conf.DisableMoisture {
		g.moisture, err = noise.New(noise.DeriveSeed(conf.Seed, moistureField), conf.Moisture)
		if err != nil {
			return nil, fmt.Errorf("moisture: %w", err)
		}
	}
	if g.classifier, err = terrain.NewClassifier(conf.Thresholds); err != nil {
		return nil, err
	}
	return g, nil
}

// Seed returns the world seed of the Generator.
func (g *Generator) Seed() int64 {
	return g.seed
}

// Tile returns the generated terrain type of a single tile.
func (g *Generator) Tile(pos chunk.TilePos) terrain.Type {
	e := g.elevation.Sample(pos[0], pos[1])
	if g.moisture == nil {
		return g.classifier.Classify(e)
	}
	return g.classifier.Classify(e, g.moisture.Sample(pos[0], pos[1]))
}

// GenerateChunk generates the chunk at pos with side length size. The result
// only depends on pos, size and the Config of the Generator.
func (g *Generator) GenerateChunk(pos chunk.Pos, size int) (*chunk.Chunk, error) {
	if size <= 0 {
		return nil, fmt.Errorf("noisegen: invalid chunk size %d", size)
	}
	origin := pos.Origin(size)
	tiles := make([]terrain.Type, size*size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			tiles[y*size+x] = g.Tile(chunk.TilePos{origin[0] + x, origin[1] + y})
		}
	}
	return chunk.New(pos, size, tiles), nil
}

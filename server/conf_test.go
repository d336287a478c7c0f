package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/df-mc/tileworld/server/world"
	"github.com/df-mc/tileworld/server/world/terrain"
)

func TestDefaultConfigConverts(t *testing.T) {
	conf, err := DefaultConfig().Config(nil)
	if err != nil {
		t.Fatalf("convert default config: %v", err)
	}
	if conf.World.ChunkSize != 16 || conf.World.Radius != 4 || conf.World.Hysteresis != 1 {
		t.Fatalf("unexpected world config %+v", conf.World)
	}
	if conf.World.Metric != world.Chebyshev {
		t.Fatalf("expected chebyshev metric, got %v", conf.World.Metric)
	}
	if conf.World.TickInterval != 50*time.Millisecond {
		t.Fatalf("unexpected tick interval %v", conf.World.TickInterval)
	}
	if conf.World.Generator == nil {
		t.Fatalf("expected generator to be set")
	}
}

func TestLoadConfigWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.toml")
	c, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file to be written: %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("reload config: %v", err)
	}
	if loaded.World.Seed != c.World.Seed || loaded.World.Radius != c.World.Radius || loaded.HTTP.Address != c.HTTP.Address {
		t.Fatalf("reloaded config differs: %+v != %+v", loaded, c)
	}
	if loaded.Terrain.Thresholds["grass"] != c.Terrain.Thresholds["grass"] {
		t.Fatalf("thresholds not preserved: %v", loaded.Terrain.Thresholds)
	}
}

func TestLoadConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	c := DefaultConfig()
	c.World.Seed = "hello"
	c.World.Metric = "euclidean"
	c.World.Radius = 7
	c.Generation.Rate = 120
	if err := WriteConfig(path, c); err != nil {
		t.Fatalf("write config: %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	conf, err := loaded.Config(nil)
	if err != nil {
		t.Fatalf("convert config: %v", err)
	}
	if conf.World.Metric != world.Euclidean || conf.World.Radius != 7 || conf.World.GenerationRate != 120 {
		t.Fatalf("unexpected world config %+v", conf.World)
	}
}

func TestUserConfigErrors(t *testing.T) {
	tests := map[string]func(c *UserConfig){
		"empty seed":      func(c *UserConfig) { c.World.Seed = "  " },
		"negative radius": func(c *UserConfig) { c.World.Radius = -1 },
		"huge radius":     func(c *UserConfig) { c.World.Radius = 1 << 20 },
		"unknown metric":  func(c *UserConfig) { c.World.Metric = "manhattan" },
		"bad interval":    func(c *UserConfig) { c.World.TickInterval = "soon" },
		"unknown tile":    func(c *UserConfig) { c.Terrain.Thresholds["lava"] = 0.5 },
		"snow bound":      func(c *UserConfig) { c.Terrain.Thresholds["snow"] = 0.9 },
		"unordered":       func(c *UserConfig) { c.Terrain.Thresholds["sand"] = 0.9 },
		"bad octaves":     func(c *UserConfig) { c.Noise.Elevation.Octaves = -1 },
		"arid above lush": func(c *UserConfig) { c.Terrain.Arid, c.Terrain.Lush = 0.5, 0.1 },
	}
	for name, mutate := range tests {
		c := DefaultConfig()
		mutate(&c)
		if _, err := c.Config(nil); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestUserConfigZeroRadius(t *testing.T) {
	c := DefaultConfig()
	c.World.Radius = 0
	conf, err := c.Config(nil)
	if err != nil {
		t.Fatalf("convert config: %v", err)
	}
	conf.HTTPAddress = ""
	srv, err := conf.New()
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	defer srv.Close()
	if r := srv.Observer().Radius(); r != 0 {
		t.Fatalf("expected observer radius 0, got %d", r)
	}
}

func TestUserConfigThresholdOverride(t *testing.T) {
	c := DefaultConfig()
	c.Terrain.Thresholds = map[string]float64{"Water": -0.5}
	th, err := c.thresholds()
	if err != nil {
		t.Fatalf("thresholds: %v", err)
	}
	if th.Bound(terrain.Water) != -0.5 {
		t.Fatalf("expected water bound -0.5, got %v", th.Bound(terrain.Water))
	}
	if th.Bound(terrain.Sand) != terrain.DefaultThresholds().Sand {
		t.Fatalf("expected sand bound to keep its default")
	}
}

func TestServerLifecycle(t *testing.T) {
	conf := Config{World: world.Config{ChunkSize: 4}, ObserverRadius: 1}
	srv, err := conf.New()
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	srv.Listen()
	if srv.Observer().Radius() != 1 {
		t.Fatalf("unexpected observer radius %d", srv.Observer().Radius())
	}
	deadline := time.Now().Add(5 * time.Second)
	for srv.World().Store().Len() != 9 {
		if time.Now().After(deadline) {
			t.Fatalf("server did not load chunks around the observer")
		}
		srv.World().Tick()
		time.Sleep(5 * time.Millisecond)
	}
	if err := srv.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

package world

import (
	"voxelvillage.ai/internal/sim/tuning"
	"voxelvillage.ai/internal/sim/worldmap"
)

type WorldConfig struct {
	ID   string
	Seed int64

	// TickRateHz is the wall-clock frame rate used by Run.
	TickRateHz int
	// TickIncrement is the game time added per frame. The simulation never
	// reads the wall clock.
	TickIncrement uint64
	// AgeSweepEvery runs the tile age sweep on every Nth frame.
	AgeSweepEvery int
	// SnapshotEvery emits a snapshot to the sink every N frames; 0 disables.
	SnapshotEvery int

	Map   worldmap.Config
	Noise NoiseConfig
}

// NoiseConfig parameterises the default terrain generator. It is ignored
// when Map.Generator is set.
type NoiseConfig struct {
	Scale          float64
	Amplitude      float64
	FlowerPermille int
}

const (
	DefaultTickRateHz    = 60
	DefaultTickIncrement = 10
	DefaultAgeSweepEvery = 1000

	// GreetingTTL is how long (game time) a greeted actor remembers it.
	GreetingTTL = 3000
	greetingKey = "Hello"
)

func (c WorldConfig) normalized() WorldConfig {
	if c.ID == "" {
		c.ID = "village"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = DefaultTickRateHz
	}
	if c.TickIncrement == 0 {
		c.TickIncrement = DefaultTickIncrement
	}
	if c.AgeSweepEvery <= 0 {
		c.AgeSweepEvery = DefaultAgeSweepEvery
	}
	if c.SnapshotEvery < 0 {
		c.SnapshotEvery = 0
	}
	return c
}

// ConfigFromTuning maps the on-disk tuning onto a world config.
func ConfigFromTuning(t tuning.Tuning) WorldConfig {
	return WorldConfig{
		ID:            t.WorldID,
		Seed:          t.Seed,
		TickRateHz:    t.TickRateHz,
		TickIncrement: t.TickIncrement,
		AgeSweepEvery: t.AgeSweepFrames,
		SnapshotEvery: t.SnapshotFrames,
		Map: worldmap.Config{
			Width:    t.Map.Width,
			Length:   t.Map.Length,
			Infinite: t.Map.Infinite,
		},
		Noise: NoiseConfig{
			Scale:          t.Map.NoiseScale,
			Amplitude:      t.Map.NoiseAmplitude,
			FlowerPermille: t.Map.FlowerPermille,
		},
	}
}

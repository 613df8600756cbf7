package tuning

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid tuning")

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	WorldID        string `yaml:"world_id"`
	Seed           int64  `yaml:"seed"`
	TickRateHz     int    `yaml:"tick_rate_hz"`
	TickIncrement  uint64 `yaml:"tick_increment"`
	AgeSweepFrames int    `yaml:"age_sweep_frames"`
	SnapshotFrames int    `yaml:"snapshot_frames"`
	SnapshotKeep   int    `yaml:"snapshot_keep"`
	ArchiveFrames  int    `yaml:"archive_frames"`

	Map        MapTuning         `yaml:"map"`
	Population []PopulationEntry `yaml:"population"`
}

type MapTuning struct {
	// Width and Length of 0 with Infinite unset fall back to the defaults.
	Width    int  `yaml:"width"`
	Length   int  `yaml:"length"`
	Infinite bool `yaml:"infinite"`

	NoiseScale     float64 `yaml:"noise_scale"`
	NoiseAmplitude float64 `yaml:"noise_amplitude"`
	FlowerPermille int     `yaml:"flower_permille"`
}

// PopulationEntry spawns Count actors of one occupation at startup.
type PopulationEntry struct {
	Occupation string `yaml:"occupation"`
	Count      int    `yaml:"count"`
	Name       string `yaml:"name,omitempty"`
	Player     bool   `yaml:"player,omitempty"`
	Ethereal   bool   `yaml:"ethereal,omitempty"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		WorldID:         "village",
		Seed:            1337,
		TickRateHz:      60,
		TickIncrement:   10,
		AgeSweepFrames:  1000,
		SnapshotFrames:  36_000,
		SnapshotKeep:    5,
		ArchiveFrames:   864_000,
		Map: MapTuning{
			Width:          256,
			Length:         256,
			NoiseScale:     48,
			NoiseAmplitude: 6,
			FlowerPermille: 20,
		},
		Population: []PopulationEntry{
			{Occupation: "avatar", Count: 1, Name: "Player", Player: true},
			{Occupation: "mindlessness", Count: 4},
			{Occupation: "farmer", Count: 3},
			{Occupation: "house_builder", Count: 2},
			{Occupation: "road_builder", Count: 1},
			{Occupation: "eater", Count: 2},
			{Occupation: "grow_plants", Count: 2, Ethereal: true},
			{Occupation: "clean_roads", Count: 1, Ethereal: true},
		},
	}
}

// Load reads path on top of Defaults. Keys missing from the file keep their
// default values; a population list in the file replaces the default one.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	t.Population = nil
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if t.Population == nil {
		t.Population = Defaults().Population
	}
	if err := t.Validate(); err != nil {
		return t, err
	}
	return t, nil
}

func (t Tuning) Validate() error {
	switch {
	case t.TickRateHz <= 0:
		return fmt.Errorf("%w: tick_rate_hz must be positive, got %d", ErrInvalid, t.TickRateHz)
	case t.TickIncrement == 0:
		return fmt.Errorf("%w: tick_increment must be positive", ErrInvalid)
	case t.AgeSweepFrames <= 0:
		return fmt.Errorf("%w: age_sweep_frames must be positive, got %d", ErrInvalid, t.AgeSweepFrames)
	case t.SnapshotFrames < 0:
		return fmt.Errorf("%w: snapshot_frames must not be negative", ErrInvalid)
	case t.SnapshotKeep < 0 || t.ArchiveFrames < 0:
		return fmt.Errorf("%w: snapshot_keep and archive_frames must not be negative", ErrInvalid)
	case !t.Map.Infinite && (t.Map.Width <= 0 || t.Map.Length <= 0):
		return fmt.Errorf("%w: finite map needs positive width and length", ErrInvalid)
	}
	players := 0
	for i, p := range t.Population {
		if p.Occupation == "" {
			return fmt.Errorf("%w: population[%d] has no occupation", ErrInvalid, i)
		}
		if p.Count < 0 {
			return fmt.Errorf("%w: population[%d] count %d", ErrInvalid, i, p.Count)
		}
		if p.Player {
			players += p.Count
		}
	}
	if players > 1 {
		return fmt.Errorf("%w: at most one player actor, got %d", ErrInvalid, players)
	}
	return nil
}

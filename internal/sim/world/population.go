package world

import (
	"errors"
	"fmt"

	"voxelvillage.ai/internal/sim/occupations"
	"voxelvillage.ai/internal/sim/tuning"
)

const spawnAttempts = 8

// Populate adds the configured actors to a fresh world in order. An actor
// that finds no free tile after a few random draws is skipped. Given the
// same seed and population the result is identical across runs.
func (w *World) Populate(pop []tuning.PopulationEntry) (int, error) {
	added := 0
	for _, p := range pop {
		occ, err := occupations.Lookup(p.Occupation)
		if err != nil {
			return added, err
		}
		for i := 0; i < p.Count; i++ {
			name := p.Name
			if name != "" && p.Count > 1 {
				name = fmt.Sprintf("%s %d", p.Name, i+1)
			}
			ok, err := w.spawnOne(occ, name, p)
			if err != nil {
				return added, err
			}
			if !ok {
				w.log.Warn("no free tile, actor skipped", "occupation", p.Occupation)
				continue
			}
			added++
		}
	}
	return added, nil
}

func (w *World) spawnOne(occ occupations.Occupation, name string, p tuning.PopulationEntry) (bool, error) {
	for attempt := 0; attempt < spawnAttempts; attempt++ {
		_, err := w.BuildActor().
			WithName(name).
			WithPlayer(p.Player).
			WithEthereal(p.Ethereal).
			Build(occ)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, ErrTileOccupied) {
			return false, err
		}
	}
	return false, nil
}

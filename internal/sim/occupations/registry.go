package occupations

import (
	"fmt"
	"sort"
	"strings"

	"voxelvillage.ai/internal/sim/actor"
)

const (
	KeyAvatar       = "avatar"
	KeyMindlessness = "mindlessness"
	KeyFarmer       = "farmer"
	KeyHouseBuilder = "house_builder"
	KeyRoadBuilder  = "road_builder"
	KeyGrowPlants   = "grow_plants"
	KeyCleanRoads   = "clean_roads"
	KeyEater        = "eater"
)

var registry = map[string]func() Occupation{
	KeyAvatar:       func() Occupation { return Avatar{} },
	KeyMindlessness: func() Occupation { return Mindlessness{} },
	KeyFarmer:       func() Occupation { return Farmer{} },
	KeyHouseBuilder: func() Occupation { return HouseBuilder{} },
	KeyRoadBuilder:  func() Occupation { return RoadBuilder{} },
	KeyGrowPlants:   func() Occupation { return GrowPlants{} },
	KeyCleanRoads:   func() Occupation { return CleanRoads{} },
	KeyEater:        func() Occupation { return Eater{} },
}

var aliases = map[string]string{
	"vagrant": KeyMindlessness,
	"player":  KeyAvatar,
}

// Lookup returns a fresh occupation for key. Keys are case-insensitive and
// accept '-' in place of '_'.
func Lookup(key string) (Occupation, error) {
	k := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), "-", "_")
	if a, ok := aliases[k]; ok {
		k = a
	}
	f, ok := registry[k]
	if !ok {
		return nil, fmt.Errorf("unknown occupation %q", key)
	}
	return f(), nil
}

// Keys lists the canonical occupation keys in sorted order.
func Keys() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var (
	avatarColor       = actor.Color{R: 0.2, G: 0.5, B: 0.8}
	vagrantColor      = actor.Color{R: 0.3, G: 0.1, B: 0.4}
	farmerColor       = actor.Color{R: 0.8, G: 0.8, B: 0}
	houseBuilderColor = actor.Color{R: 0.93, G: 0.59, B: 0.05}
	roadBuilderColor  = actor.Color{R: 0.55, G: 0.69, B: 0.93}
	effectColor       = actor.Color{R: 0.8, G: 0.8, B: 0.8}
	houseColor        = actor.Color{R: 0.709, G: 0.576, B: 0.470}
)

// Avatar is controlled by player input; its strategy does nothing.
type Avatar struct{ hooks }

func (Avatar) Key() string           { return KeyAvatar }
func (Avatar) Name() string          { return "Avatar" }
func (Avatar) Init(s *actor.State)   { s.SetColor(avatarColor) }
func (Avatar) NewStrategy() Strategy { return NoopStrategy{} }

type Mindlessness struct{ hooks }

func (Mindlessness) Key() string         { return KeyMindlessness }
func (Mindlessness) Name() string        { return "Vagrant" }
func (Mindlessness) Init(s *actor.State) { s.SetColor(vagrantColor) }
func (Mindlessness) NewStrategy() Strategy {
	return NewPlanStrategy(func() Plan { return newRandomMovements() })
}

type Farmer struct{ hooks }

func (Farmer) Key() string         { return KeyFarmer }
func (Farmer) Name() string        { return "Farmer" }
func (Farmer) Init(s *actor.State) { s.SetColor(farmerColor) }
func (Farmer) NewStrategy() Strategy {
	return NewPlanStrategy(func() Plan { return newFarmPlan() })
}

type HouseBuilder struct{ hooks }

func (HouseBuilder) Key() string         { return KeyHouseBuilder }
func (HouseBuilder) Name() string        { return "House Builder" }
func (HouseBuilder) Init(s *actor.State) { s.SetColor(houseBuilderColor) }
func (HouseBuilder) NewStrategy() Strategy {
	return NewPlanStrategy(func() Plan { return newHousePlan() })
}

type RoadBuilder struct{ hooks }

func (RoadBuilder) Key() string         { return KeyRoadBuilder }
func (RoadBuilder) Name() string        { return "Road Builder" }
func (RoadBuilder) Init(s *actor.State) { s.SetColor(roadBuilderColor) }
func (RoadBuilder) NewStrategy() Strategy {
	return NewPlanStrategy(func() Plan { return newRoadPlan() })
}

// GrowPlants is an ethereal effect: tilled soil sprouts, old plants die back.
type GrowPlants struct{ hooks }

func (GrowPlants) Key() string  { return KeyGrowPlants }
func (GrowPlants) Name() string { return "GrowPlants" }
func (GrowPlants) Init(s *actor.State) {
	s.SetColor(effectColor)
	s.SetEthereal(true)
}
func (GrowPlants) NewStrategy() Strategy {
	return NewPlanStrategy(func() Plan { return newTilePass(growTile) })
}

// CleanRoads is an ethereal effect: isolated old concrete reverts to grass.
type CleanRoads struct{ hooks }

func (CleanRoads) Key() string  { return KeyCleanRoads }
func (CleanRoads) Name() string { return "CleanRoads" }
func (CleanRoads) Init(s *actor.State) {
	s.SetColor(effectColor)
	s.SetEthereal(true)
}
func (CleanRoads) NewStrategy() Strategy {
	return NewPlanStrategy(func() Plan { return newTilePass(cleanTile) })
}

type Eater struct{ hooks }

func (Eater) Key() string         { return KeyEater }
func (Eater) Name() string        { return "Eater" }
func (Eater) Init(s *actor.State) { s.SetColor(effectColor) }
func (Eater) NewStrategy() Strategy {
	return NewPlanStrategy(func() Plan { return newEaterPlan() })
}

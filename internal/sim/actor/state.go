package actor

import (
	"math/rand"

	"voxelvillage.ai/internal/sim/worldmap"
)

type Color struct {
	R, G, B float32
}

var White = Color{R: 1, G: 1, B: 1}

// Lerp blends c towards o; t=0 yields c, t=1 yields o.
func (c Color) Lerp(o Color, t float32) Color {
	return Color{
		R: c.R + (o.R-c.R)*t,
		G: c.G + (o.G-c.G)*t,
		B: c.B + (o.B-c.B)*t,
	}
}

// State is the mutable per-actor data tasks operate on. Every setter bumps
// SyncID so renderers can compare it against their cached value.
type State struct {
	pos      worldmap.Point
	color    Color
	beacon   worldmap.Point
	ethereal bool
	syncID   uint64
}

func NewState(pos worldmap.Point) *State {
	return &State{pos: pos, beacon: pos, color: White, syncID: 1}
}

func (s *State) Position() worldmap.Point { return s.pos }
func (s *State) X() int                   { return s.pos.X }
func (s *State) Y() int                   { return s.pos.Y }
func (s *State) Color() Color             { return s.color }
func (s *State) Beacon() worldmap.Point   { return s.beacon }
func (s *State) Ethereal() bool           { return s.ethereal }
func (s *State) SyncID() uint64           { return s.syncID }

func (s *State) SetPosition(p worldmap.Point) {
	s.pos = p
	s.syncID++
}

func (s *State) SetColor(c Color) {
	s.color = c
	s.syncID++
}

func (s *State) SetBeacon(p worldmap.Point) {
	s.beacon = p
	s.syncID++
}

func (s *State) SetEthereal(v bool) {
	s.ethereal = v
	s.syncID++
}

// Touch marks the state dirty without changing it.
func (s *State) Touch() { s.syncID++ }

// BeaconWithJitter returns a point uniformly within ±delta of the beacon.
func (s *State) BeaconWithJitter(rng *rand.Rand, delta int) worldmap.Point {
	if delta <= 0 {
		return s.beacon
	}
	return s.beacon.Add(rng.Intn(2*delta+1)-delta, rng.Intn(2*delta+1)-delta)
}

// Restore rebuilds a state from persisted fields, keeping the stored sync id.
func Restore(pos, beacon worldmap.Point, c Color, ethereal bool, syncID uint64) *State {
	if syncID == 0 {
		syncID = 1
	}
	return &State{pos: pos, beacon: beacon, color: c, ethereal: ethereal, syncID: syncID}
}

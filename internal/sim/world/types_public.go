package world

import (
	"voxelvillage.ai/internal/sim/actor"
	"voxelvillage.ai/internal/sim/worldmap"
)

type ActionKind string

const (
	// ActionMove steps the player by (DX, DY).
	ActionMove ActionKind = "MOVE"
	// ActionFindPath paints the route between From and To with debug
	// markers. Missing endpoints default to the diagonal of region (0,0).
	ActionFindPath ActionKind = "FIND_PATH"
)

// Action is one discrete input event applied at the next tick boundary.
type Action struct {
	Kind ActionKind      `json:"kind"`
	DX   int             `json:"dx,omitempty"`
	DY   int             `json:"dy,omitempty"`
	From *worldmap.Point `json:"from,omitempty"`
	To   *worldmap.Point `json:"to,omitempty"`
}

// Greeting is recorded when the player bumps into another actor that has
// not been greeted recently.
type Greeting struct {
	From       string `json:"from"`
	To         string `json:"to"`
	Occupation string `json:"occupation"`
	Text       string `json:"text"`
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type TickLogEntry struct {
	Tick      uint64     `json:"tick"`
	Frame     uint64     `json:"frame"`
	Actions   []Action   `json:"actions,omitempty"`
	Greetings []Greeting `json:"greetings,omitempty"`
	Restarts  int        `json:"restarts,omitempty"`
	Digest    string     `json:"digest,omitempty"`
	// Resume names the resume point a restarted server loaded before
	// writing this entry. Set on the first entry after a restart only.
	Resume string `json:"resume,omitempty"`
}

// ActorView is the read-only renderer view of one actor.
type ActorView struct {
	ID             uint32
	Name           string
	Occupation     string
	OccupationName string
	Pos            worldmap.Point
	Z              int
	Color          actor.Color
	Ethereal       bool
	Player         bool
	SyncID         uint64
}

type WorldMetrics struct {
	Tick      uint64  `json:"tick"`
	Frame     uint64  `json:"frame"`
	Actors    int     `json:"actors"`
	Entities  int     `json:"entities"`
	Regions   int     `json:"regions"`
	Locks     int     `json:"locks"`
	Observers int     `json:"observers"`
	Inbox     int     `json:"inbox"`
	StepMS    float64 `json:"step_ms"`
}

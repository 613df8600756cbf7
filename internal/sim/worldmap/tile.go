package worldmap

import (
	"fmt"
	"strings"
)

type TileKind uint8

const (
	Empty TileKind = iota
	Grass
	Tilled
	DebugMarker
	Plants
	GrassFlowers
	Concrete
)

var tileKindNames = [...]string{
	Empty:        "EMPTY",
	Grass:        "GRASS",
	Tilled:       "TILLED",
	DebugMarker:  "DEBUG_MARKER",
	Plants:       "PLANTS",
	GrassFlowers: "GRASS_FLOWERS",
	Concrete:     "CONCRETE",
}

func (k TileKind) String() string {
	if int(k) < len(tileKindNames) {
		return tileKindNames[k]
	}
	return fmt.Sprintf("TILE_KIND(%d)", uint8(k))
}

func ParseTileKind(s string) (TileKind, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, name := range tileKindNames {
		if name == s {
			return TileKind(i), nil
		}
	}
	return Empty, fmt.Errorf("unknown tile kind %q", s)
}

// AllTileKinds lists every kind in declaration order.
func AllTileKinds() []TileKind {
	out := make([]TileKind, len(tileKindNames))
	for i := range tileKindNames {
		out[i] = TileKind(i)
	}
	return out
}

const (
	bitLocked     uint8 = 1 << 0
	bitUnwalkable uint8 = 1 << 1
)

// AgeResolution is the number of ticks represented by one step of the
// compressed age counter.
const AgeResolution = 10_000

const maxCompressedAge = 255

// Tile is one cell of the map. The zero value is an Empty, walkable,
// unlocked tile at height 0.
type Tile struct {
	Kind   TileKind
	Height int16

	age   uint8
	flags uint8
}

func (t Tile) Locked() bool { return t.flags&bitLocked != 0 }

func (t *Tile) setLocked(v bool) { t.setBit(bitLocked, v) }

func (t Tile) Walkable() bool { return t.flags&bitUnwalkable == 0 }

func (t *Tile) SetWalkable(v bool) { t.setBit(bitUnwalkable, !v) }

func (t *Tile) setBit(bit uint8, v bool) {
	if v {
		t.flags |= bit
	} else {
		t.flags &^= bit
	}
}

func (t Tile) Age() uint64 { return uint64(t.age) * AgeResolution }

func (t *Tile) SetAge(age uint64) {
	m := age / AgeResolution
	if m > maxCompressedAge {
		m = maxCompressedAge
	}
	t.age = uint8(m)
}

// IncAge advances the compressed age by one step, saturating.
func (t *Tile) IncAge() {
	if t.age < maxCompressedAge {
		t.age++
	}
}

// Pack returns the raw storage of the tile for persistence.
func (t Tile) Pack() (kind uint8, height int16, age uint8, flags uint8) {
	return uint8(t.Kind), t.Height, t.age, t.flags
}

// UnpackTile is the inverse of Pack. The lock bit is always cleared:
// locks are owned by in-flight plans and never outlive the process.
func UnpackTile(kind uint8, height int16, age uint8, flags uint8) Tile {
	return Tile{
		Kind:   TileKind(kind),
		Height: height,
		age:    age,
		flags:  flags &^ bitLocked,
	}
}

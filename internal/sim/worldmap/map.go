package worldmap

import (
	"errors"
	"fmt"
	"sort"

	"voxelvillage.ai/internal/sim/mathx"
)

// ErrOutOfBounds is the panic value (wrapped) for reads and writes outside a
// finite map. Callers are expected to check IsTileValid first.
var ErrOutOfBounds = errors.New("tile out of bounds")

type Point struct {
	X int
	Y int
}

func (p Point) Add(dx, dy int) Point { return Point{X: p.X + dx, Y: p.Y + dy} }

// Adjacent reports whether q is one of the four cardinal neighbours of p.
func (p Point) Adjacent(q Point) bool {
	return mathx.Manhattan(p.X, p.Y, q.X, q.Y) == 1
}

// Rect is a half-open rectangle: X0 <= x < X1, Y0 <= y < Y1.
type Rect struct {
	X0, Y0, X1, Y1 int
}

func (r Rect) Width() int  { return r.X1 - r.X0 }
func (r Rect) Length() int { return r.Y1 - r.Y0 }
func (r Rect) Empty() bool { return r.X1 <= r.X0 || r.Y1 <= r.Y0 }

func (r Rect) Contains(x, y int) bool {
	return x >= r.X0 && x < r.X1 && y >= r.Y0 && y < r.Y1
}

func (r Rect) Overlaps(o Rect) bool {
	return r.X0 < o.X1 && o.X0 < r.X1 && r.Y0 < o.Y1 && o.Y0 < r.Y1
}

type Config struct {
	// Width and Length bound a finite map to [0,Width) x [0,Length).
	Width  int
	Length int
	// Infinite maps accept any coordinate and generate regions on demand.
	Infinite bool

	Generator Generator
}

type Map struct {
	cfg     Config
	gen     Generator
	regions map[RegionKey]*Region
	syncID  uint64

	nextLock    LockID
	regionLocks map[LockID]Rect
	pathLocks   map[LockID][]Point
}

func New(cfg Config) (*Map, error) {
	if !cfg.Infinite && (cfg.Width <= 0 || cfg.Length <= 0) {
		return nil, fmt.Errorf("worldmap: finite map needs positive size, got %dx%d", cfg.Width, cfg.Length)
	}
	gen := cfg.Generator
	if gen == nil {
		gen = FlatGenerator{Kind: Grass, Height: 1}
	}
	m := &Map{
		cfg:         cfg,
		gen:         gen,
		regions:     map[RegionKey]*Region{},
		syncID:      1,
		nextLock:    1,
		regionLocks: map[LockID]Rect{},
		pathLocks:   map[LockID][]Point{},
	}
	// Finite maps hold every region from the start so age sweeps reach
	// tiles nobody has looked at yet.
	m.preloadBounds()
	return m, nil
}

func (m *Map) Config() Config { return m.cfg }

// Bounds returns the playable rectangle of a finite map. ok is false for
// infinite maps.
func (m *Map) Bounds() (r Rect, ok bool) {
	if m.cfg.Infinite {
		return Rect{}, false
	}
	return Rect{X0: 0, Y0: 0, X1: m.cfg.Width, Y1: m.cfg.Length}, true
}

func (m *Map) IsTileValid(x, y int) bool {
	if m.cfg.Infinite {
		return true
	}
	return x >= 0 && x < m.cfg.Width && y >= 0 && y < m.cfg.Length
}

func (m *Map) mustValid(x, y int) {
	if !m.IsTileValid(x, y) {
		panic(fmt.Errorf("%w: (%d,%d)", ErrOutOfBounds, x, y))
	}
}

func coords(x, y int) (RegionKey, int, int) {
	k := RegionKey{RX: mathx.FloorDiv(x, RegionSize), RY: mathx.FloorDiv(y, RegionSize)}
	return k, mathx.Mod(x, RegionSize), mathx.Mod(y, RegionSize)
}

func chunkKey(x, y, z int) ChunkKey {
	return ChunkKey{
		X: mathx.FloorDiv(x, ChunkSize),
		Y: mathx.FloorDiv(y, ChunkSize),
		Z: mathx.FloorDiv(z, ChunkSize),
	}
}

func (m *Map) regionFor(k RegionKey) *Region {
	if r, ok := m.regions[k]; ok {
		return r
	}
	r := newRegion(k.RX, k.RY)
	m.gen.Fill(r)
	m.regions[k] = r
	return r
}

func (m *Map) tileRef(x, y int) (*Region, *Tile) {
	m.mustValid(x, y)
	k, lx, ly := coords(x, y)
	r := m.regionFor(k)
	return r, r.tileRef(lx, ly)
}

func (m *Map) Tile(x, y int) Tile {
	_, t := m.tileRef(x, y)
	return *t
}

func (m *Map) Height(x, y int) int {
	_, t := m.tileRef(x, y)
	return int(t.Height)
}

func (m *Map) touch(r *Region, x, y, z int) {
	r.touchChunk(chunkKey(x, y, z))
	m.syncID++
}

func (m *Map) SetHeight(x, y, z int) {
	r, t := m.tileRef(x, y)
	old := int(t.Height)
	t.Height = int16(z)
	m.touch(r, x, y, old)
	if chunkKey(x, y, old) != chunkKey(x, y, z) {
		m.touch(r, x, y, z)
	}
}

func (m *Map) SetKind(x, y int, kind TileKind, resetAge bool) {
	r, t := m.tileRef(x, y)
	t.Kind = kind
	if resetAge {
		t.SetAge(0)
	}
	m.touch(r, x, y, int(t.Height))
}

func (m *Map) SetWalkable(x, y int, walkable bool) {
	r, t := m.tileRef(x, y)
	t.SetWalkable(walkable)
	m.touch(r, x, y, int(t.Height))
}

// SetAge overrides a tile's age. Used by tests and maintenance tooling.
func (m *Map) SetAge(x, y int, age uint64) {
	_, t := m.tileRef(x, y)
	t.SetAge(age)
}

// UpdateTileAges advances the age counter of every loaded tile by one step.
// On a finite map that is every tile.
func (m *Map) UpdateTileAges() {
	for _, r := range m.regions {
		r.incAges()
	}
}

// SyncID is bumped on every visible tile mutation anywhere on the map.
func (m *Map) SyncID() uint64 { return m.syncID }

// RestoreSyncID moves the map counter forward to v after a snapshot import.
// It never moves backwards.
func (m *Map) RestoreSyncID(v uint64) {
	if v > m.syncID {
		m.syncID = v
	}
}

// ChunkSyncID returns the render sync counter of the chunk holding (x,y,z).
func (m *Map) ChunkSyncID(x, y, z int) uint64 {
	m.mustValid(x, y)
	k, _, _ := coords(x, y)
	return m.regionFor(k).ChunkSyncID(chunkKey(x, y, z))
}

// RegionKeys returns the keys of all loaded regions in a stable order.
func (m *Map) RegionKeys() []RegionKey {
	keys := make([]RegionKey, 0, len(m.regions))
	for k := range m.regions {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].RY != keys[j].RY {
			return keys[i].RY < keys[j].RY
		}
		return keys[i].RX < keys[j].RX
	})
	return keys
}

// Region returns a loaded region. It never generates.
func (m *Map) Region(k RegionKey) (*Region, bool) {
	r, ok := m.regions[k]
	return r, ok
}

// LoadRegion returns the region with key k, generating it when needed.
func (m *Map) LoadRegion(k RegionKey) *Region {
	return m.regionFor(k)
}

// ImportRegion replaces a region wholesale (snapshot restore). tiles must be
// RegionSize*RegionSize long in row-major order.
func (m *Map) ImportRegion(k RegionKey, tiles []Tile) error {
	if len(tiles) != RegionSize*RegionSize {
		return fmt.Errorf("worldmap: region %v has %d tiles, want %d", k, len(tiles), RegionSize*RegionSize)
	}
	r := newRegion(k.RX, k.RY)
	if old, ok := m.regions[k]; ok {
		r.syncID = old.syncID + 1
	}
	copy(r.tiles[:], tiles)
	for i := range r.tiles {
		r.tiles[i].setLocked(false)
	}
	m.regions[k] = r
	m.syncID++
	return nil
}

// preloadBounds generates every region overlapping a finite map.
func (m *Map) preloadBounds() {
	b, ok := m.Bounds()
	if !ok {
		return
	}
	k0, _, _ := coords(b.X0, b.Y0)
	k1, _, _ := coords(b.X1-1, b.Y1-1)
	for ry := k0.RY; ry <= k1.RY; ry++ {
		for rx := k0.RX; rx <= k1.RX; rx++ {
			m.regionFor(RegionKey{RX: rx, RY: ry})
		}
	}
}

// CountKinds tallies tile kinds over a finite map's bounds (or all loaded
// regions for infinite maps).
func (m *Map) CountKinds() map[TileKind]int {
	out := map[TileKind]int{}
	if b, ok := m.Bounds(); ok {
		for y := b.Y0; y < b.Y1; y++ {
			for x := b.X0; x < b.X1; x++ {
				out[m.Tile(x, y).Kind]++
			}
		}
		return out
	}
	for _, r := range m.regions {
		for _, t := range r.tiles {
			out[t.Kind]++
		}
	}
	return out
}

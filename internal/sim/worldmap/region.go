package worldmap

// RegionSize is the edge length of a region in tiles.
const RegionSize = 64

// ChunkSize is the edge length of a render chunk (x, y and height).
const ChunkSize = 32

type RegionKey struct {
	RX int
	RY int
}

// ChunkKey identifies a 32x32x32 render chunk in world coordinates.
type ChunkKey struct {
	X, Y, Z int
}

type Region struct {
	RX, RY int

	tiles  [RegionSize * RegionSize]Tile
	syncID uint64

	chunkSync map[ChunkKey]uint64
}

func newRegion(rx, ry int) *Region {
	return &Region{
		RX:        rx,
		RY:        ry,
		syncID:    1,
		chunkSync: map[ChunkKey]uint64{},
	}
}

func (r *Region) Key() RegionKey { return RegionKey{RX: r.RX, RY: r.RY} }

// Origin returns the world coordinate of local tile (0,0).
func (r *Region) Origin() Point {
	return Point{X: r.RX * RegionSize, Y: r.RY * RegionSize}
}

func (r *Region) index(lx, ly int) int {
	return ly*RegionSize + lx
}

// Tile returns the tile at local coordinates.
func (r *Region) Tile(lx, ly int) Tile {
	return r.tiles[r.index(lx, ly)]
}

func (r *Region) tileRef(lx, ly int) *Tile {
	return &r.tiles[r.index(lx, ly)]
}

// Set writes a tile at local coordinates without touching sync counters.
// Intended for generators and snapshot import.
func (r *Region) Set(lx, ly int, t Tile) {
	r.tiles[r.index(lx, ly)] = t
}

func (r *Region) SyncID() uint64 { return r.syncID }

// ChunkSyncID returns the sync counter of a chunk; untouched chunks report 1.
func (r *Region) ChunkSyncID(k ChunkKey) uint64 {
	if v, ok := r.chunkSync[k]; ok {
		return v
	}
	return 1
}

// ChunkSyncIDs returns a copy of every chunk counter touched so far.
func (r *Region) ChunkSyncIDs() map[ChunkKey]uint64 {
	out := make(map[ChunkKey]uint64, len(r.chunkSync))
	for k, v := range r.chunkSync {
		out[k] = v
	}
	return out
}

func (r *Region) touchChunk(k ChunkKey) {
	if v, ok := r.chunkSync[k]; ok {
		r.chunkSync[k] = v + 1
	} else {
		r.chunkSync[k] = 2
	}
	r.syncID++
}

func (r *Region) incAges() {
	for i := range r.tiles {
		r.tiles[i].IncAge()
	}
}

// Tiles returns a copy of the region's tiles in row-major order.
func (r *Region) Tiles() []Tile {
	out := make([]Tile, len(r.tiles))
	copy(out, r.tiles[:])
	return out
}

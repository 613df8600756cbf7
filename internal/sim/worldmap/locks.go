package worldmap

// LockID identifies one region or path reservation. Zero is never issued.
type LockID uint64

// Locks let a plan reserve tiles it is going to work on over many ticks.
// They are advisory: writes to a locked tile are never refused, and a plan
// holding a lock must still cope with the tiles being changed underneath it.

// TryLockRegion reserves the half-open rectangle [x0,x1) x [y0,y1). It
// either locks every tile or none: any already locked or invalid tile makes
// the whole attempt fail without side effects.
func (m *Map) TryLockRegion(x0, y0, x1, y1 int) (LockID, bool) {
	r := Rect{X0: x0, Y0: y0, X1: x1, Y1: y1}
	if r.Empty() {
		return 0, false
	}
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			if !m.IsTileValid(x, y) || m.IsTileLocked(x, y) {
				return 0, false
			}
		}
	}
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			_, t := m.tileRef(x, y)
			t.setLocked(true)
		}
	}
	id := m.mintLock()
	m.regionLocks[id] = r
	return id, true
}

// UnlockRegion releases a region lock. Unknown ids are ignored and reported
// as false.
func (m *Map) UnlockRegion(id LockID) bool {
	r, ok := m.regionLocks[id]
	if !ok {
		return false
	}
	for y := r.Y0; y < r.Y1; y++ {
		for x := r.X0; x < r.X1; x++ {
			_, t := m.tileRef(x, y)
			t.setLocked(false)
		}
	}
	delete(m.regionLocks, id)
	return true
}

// TryLockPath reserves every tile of path with the same all-or-nothing
// discipline as TryLockRegion.
func (m *Map) TryLockPath(path []Point) (LockID, bool) {
	if len(path) == 0 {
		return 0, false
	}
	for _, p := range path {
		if !m.IsTileValid(p.X, p.Y) || m.IsTileLocked(p.X, p.Y) {
			return 0, false
		}
	}
	for _, p := range path {
		_, t := m.tileRef(p.X, p.Y)
		t.setLocked(true)
	}
	id := m.mintLock()
	m.pathLocks[id] = append([]Point(nil), path...)
	return id, true
}

// UnlockPath releases a path lock. Unknown ids are ignored and reported as
// false, same as UnlockRegion.
func (m *Map) UnlockPath(id LockID) bool {
	path, ok := m.pathLocks[id]
	if !ok {
		return false
	}
	for _, p := range path {
		_, t := m.tileRef(p.X, p.Y)
		t.setLocked(false)
	}
	delete(m.pathLocks, id)
	return true
}

func (m *Map) IsTileLocked(x, y int) bool {
	return m.Tile(x, y).Locked()
}

// LockCount returns the number of live region and path locks.
func (m *Map) LockCount() int {
	return len(m.regionLocks) + len(m.pathLocks)
}

func (m *Map) mintLock() LockID {
	id := m.nextLock
	m.nextLock++
	return id
}

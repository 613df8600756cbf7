package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"
)

// StateDigest hashes tiles, actors and entities. Two worlds that ran the
// same seed, population and actions report the same digest.
func (w *World) StateDigest() string {
	return w.stateDigest(w.tick.Load())
}

func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, nowTick)
	digestWriteU64(h, &tmp, uint64(w.cfg.Seed))
	w.digestRegions(h, &tmp)
	w.digestActors(h, &tmp)
	w.digestEntities(h, &tmp)

	return hex.EncodeToString(h.Sum(nil))
}

func (w *World) digestRegions(h hash.Hash, tmp *[8]byte) {
	for _, k := range w.m.RegionKeys() {
		r, _ := w.m.Region(k)
		digestWriteI64(h, tmp, int64(k.RX))
		digestWriteI64(h, tmp, int64(k.RY))
		for _, t := range r.Tiles() {
			// Lock bits are transient and left out.
			kind, height, age, _ := t.Pack()
			h.Write([]byte{kind, byte(uint16(height)), byte(uint16(height) >> 8), age, boolByte(t.Walkable())})
		}
	}
}

func (w *World) digestActors(h hash.Hash, tmp *[8]byte) {
	digestWriteU64(h, tmp, uint64(len(w.actors)))
	for _, a := range w.actors {
		p := a.State.Position()
		b := a.State.Beacon()
		c := a.State.Color()
		digestWriteU64(h, tmp, uint64(a.ID))
		h.Write([]byte(a.Name))
		h.Write([]byte(a.Occupation.Key()))
		digestWriteI64(h, tmp, int64(p.X))
		digestWriteI64(h, tmp, int64(p.Y))
		digestWriteI64(h, tmp, int64(b.X))
		digestWriteI64(h, tmp, int64(b.Y))
		digestWriteU64(h, tmp, uint64(math.Float32bits(c.R))<<32|uint64(math.Float32bits(c.G)))
		digestWriteU64(h, tmp, uint64(math.Float32bits(c.B)))
		h.Write([]byte{boolByte(a.State.Ethereal())})
		for _, e := range a.Memory.Entries() {
			h.Write([]byte(e.Key))
			digestWriteU64(h, tmp, e.Expiry)
		}
	}
}

func (w *World) digestEntities(h hash.Hash, tmp *[8]byte) {
	for _, e := range w.entities.All() {
		digestWriteU64(h, tmp, uint64(e.ID))
		for _, v := range [...]int{e.X, e.Y, e.Z, e.Width, e.Length, e.Height} {
			digestWriteI64(h, tmp, int64(v))
		}
	}
}

func digestWriteU64(h hash.Hash, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hash.Hash, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

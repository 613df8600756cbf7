package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"voxelvillage.ai/internal/sim/worldmap"
)

// EncodeRLE encodes a sequence of small values into base64(varint pairs).
// The pairs are (value, run_len) repeated.
func EncodeRLE(vals []uint16) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	i := 0
	for i < len(vals) {
		v := vals[i]
		run := 1
		for j := i + 1; j < len(vals) && vals[j] == v && run < 1<<31; j++ {
			run++
		}

		n := binary.PutUvarint(tmp[:], uint64(v))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])

		i += run
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func DecodeRLE(b64 string) ([]uint16, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	var out []uint16
	for i := 0; i < len(raw); {
		v, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if v > 0xFFFF {
			return nil, fmt.Errorf("value too large: %d", v)
		}
		for k := 0; k < int(run); k++ {
			out = append(out, uint16(v))
		}
	}
	return out, nil
}

// Planes is a region split into RLE-encoded kind, height and flag planes.
// Heights are stored as their two's complement bit pattern.
type Planes struct {
	Kinds   string
	Heights string
	Flags   string
}

func EncodeTiles(tiles []worldmap.Tile) Planes {
	kinds := make([]uint16, len(tiles))
	heights := make([]uint16, len(tiles))
	flags := make([]uint16, len(tiles))
	for i, t := range tiles {
		k, h, _, f := t.Pack()
		kinds[i] = uint16(k)
		heights[i] = uint16(h)
		flags[i] = uint16(f)
	}
	return Planes{Kinds: EncodeRLE(kinds), Heights: EncodeRLE(heights), Flags: EncodeRLE(flags)}
}

// DecodeTiles is the inverse of EncodeTiles. Ages are not carried and come
// back as zero.
func DecodeTiles(p Planes) ([]worldmap.Tile, error) {
	kinds, err := DecodeRLE(p.Kinds)
	if err != nil {
		return nil, fmt.Errorf("kinds: %w", err)
	}
	heights, err := DecodeRLE(p.Heights)
	if err != nil {
		return nil, fmt.Errorf("heights: %w", err)
	}
	flags, err := DecodeRLE(p.Flags)
	if err != nil {
		return nil, fmt.Errorf("flags: %w", err)
	}
	if len(kinds) != len(heights) || len(kinds) != len(flags) {
		return nil, fmt.Errorf("plane length mismatch: %d/%d/%d", len(kinds), len(heights), len(flags))
	}
	out := make([]worldmap.Tile, len(kinds))
	for i := range out {
		out[i] = worldmap.UnpackTile(uint8(kinds[i]), int16(heights[i]), 0, uint8(flags[i]))
	}
	return out, nil
}

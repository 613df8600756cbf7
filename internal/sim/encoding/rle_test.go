package encoding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxelvillage.ai/internal/sim/worldmap"
)

func TestRLE_RoundTrip(t *testing.T) {
	in := make([]uint16, 0, 200)
	in = append(in, 1, 1, 1, 2, 2, 3)
	for i := 0; i < 50; i++ {
		in = append(in, 7)
	}
	in = append(in, 9, 10, 10, 10, 0xFFFF)

	out, err := DecodeRLE(EncodeRLE(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestRLE_RejectsGarbage(t *testing.T) {
	_, err := DecodeRLE("!!!")
	assert.Error(t, err)
}

func TestTiles_RoundTripKeepsNegativeHeights(t *testing.T) {
	tiles := []worldmap.Tile{
		{Kind: worldmap.Grass, Height: 3},
		{Kind: worldmap.Grass, Height: 3},
		{Kind: worldmap.Concrete, Height: -2},
		{Kind: worldmap.DebugMarker, Height: 0},
	}
	tiles[3].SetWalkable(false)

	got, err := DecodeTiles(EncodeTiles(tiles))
	require.NoError(t, err)
	require.Len(t, got, len(tiles))
	for i := range tiles {
		assert.Equal(t, tiles[i].Kind, got[i].Kind, i)
		assert.Equal(t, tiles[i].Height, got[i].Height, i)
		assert.Equal(t, tiles[i].Walkable(), got[i].Walkable(), i)
	}
}

func TestTiles_PlaneMismatch(t *testing.T) {
	p := EncodeTiles([]worldmap.Tile{{Kind: worldmap.Grass}})
	p.Flags = EncodeRLE([]uint16{0, 0})
	_, err := DecodeTiles(p)
	assert.Error(t, err)
}

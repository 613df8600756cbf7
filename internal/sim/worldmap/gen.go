package worldmap

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"

	"voxelvillage.ai/internal/sim/mathx"
)

// Generator fills a freshly created region. Regions are generated lazily the
// first time any of their tiles is touched.
type Generator interface {
	Fill(r *Region)
}

// FlatGenerator fills every tile with the same kind and height.
type FlatGenerator struct {
	Kind   TileKind
	Height int16
}

func (g FlatGenerator) Fill(r *Region) {
	for ly := 0; ly < RegionSize; ly++ {
		for lx := 0; lx < RegionSize; lx++ {
			r.Set(lx, ly, Tile{Kind: g.Kind, Height: g.Height})
		}
	}
}

// NoiseGenerator builds a rolling grass heightmap from layered simplex noise.
type NoiseGenerator struct {
	Seed int64

	// Scale is the horizontal feature size in tiles.
	Scale float64
	// Amplitude is the maximum height above the floor of 1.
	Amplitude float64
	// FlowerPermille sprinkles GrassFlowers over the grass.
	FlowerPermille int

	base   opensimplex.Noise
	detail opensimplex.Noise
}

func NewNoiseGenerator(seed int64, scale, amplitude float64, flowerPermille int) *NoiseGenerator {
	if scale <= 0 {
		scale = 48
	}
	if amplitude < 0 {
		amplitude = 0
	}
	return &NoiseGenerator{
		Seed:           seed,
		Scale:          scale,
		Amplitude:      amplitude,
		FlowerPermille: mathx.ClampInt(flowerPermille, 0, 1000),
		base:           opensimplex.NewNormalized(seed),
		detail:         opensimplex.NewNormalized(seed + 1),
	}
}

func (g *NoiseGenerator) HeightAt(x, y int) int16 {
	fx := float64(x) / g.Scale
	fy := float64(y) / g.Scale
	n := 0.75*g.base.Eval2(fx, fy) + 0.25*g.detail.Eval2(fx*4, fy*4)
	h := int16(math.Round(n * g.Amplitude))
	if h < 1 {
		h = 1
	}
	return h
}

func (g *NoiseGenerator) Fill(r *Region) {
	o := r.Origin()
	for ly := 0; ly < RegionSize; ly++ {
		for lx := 0; lx < RegionSize; lx++ {
			x, y := o.X+lx, o.Y+ly
			kind := Grass
			if g.FlowerPermille > 0 && int(mathx.Hash2(g.Seed, x, y)%1000) < g.FlowerPermille {
				kind = GrassFlowers
			}
			r.Set(lx, ly, Tile{Kind: kind, Height: g.HeightAt(x, y)})
		}
	}
}

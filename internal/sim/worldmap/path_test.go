package worldmap

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireValidPath(t *testing.T, m *Map, path []Point, begin, end Point, opts *FindPathOptions) {
	t.Helper()
	require.NotEmpty(t, path)
	require.Equal(t, begin, path[0])
	require.Equal(t, end, path[len(path)-1])
	for i, p := range path {
		tile := m.Tile(p.X, p.Y)
		require.True(t, tile.Walkable(), "step %d at %+v not walkable", i, p)
		require.False(t, opts.excluded(tile.Kind), "step %d at %+v excluded", i, p)
		if i > 0 {
			require.True(t, path[i-1].Adjacent(p), "step %d %+v -> %+v", i, path[i-1], p)
		}
	}
}

func TestFindPath_AroundWall(t *testing.T) {
	m := newFlat(t, 10, 10)
	for y := 0; y < 10; y++ {
		if y != 9 {
			m.SetWalkable(5, y, false)
		}
	}

	begin, end := Point{0, 0}, Point{9, 0}
	path, ok := m.FindPath(begin, end, nil)
	require.True(t, ok)
	requireValidPath(t, m, path, begin, end, nil)
	assert.Contains(t, path, Point{5, 9})
}

func TestFindPath_Partitioned(t *testing.T) {
	m := newFlat(t, 10, 10)
	for y := 0; y < 10; y++ {
		m.SetWalkable(5, y, false)
	}
	_, ok := m.FindPath(Point{0, 0}, Point{9, 0}, nil)
	assert.False(t, ok)
}

func TestFindPath_UnwalkableEndpoints(t *testing.T) {
	m := newFlat(t, 10, 10)
	m.SetWalkable(0, 0, false)
	_, ok := m.FindPath(Point{0, 0}, Point{3, 3}, nil)
	assert.False(t, ok)
	_, ok = m.FindPath(Point{3, 3}, Point{0, 0}, nil)
	assert.False(t, ok)
	_, ok = m.FindPath(Point{3, 3}, Point{-1, 0}, nil)
	assert.False(t, ok, "off-map endpoint")
}

func TestFindPath_ExcludedKinds(t *testing.T) {
	m := newFlat(t, 10, 10)
	for y := 0; y < 10; y++ {
		if y != 2 {
			m.SetKind(4, y, Plants, false)
		}
	}
	opts := NewFindPathOptions(Plants, Tilled)

	path, ok := m.FindPath(Point{0, 8}, Point{9, 8}, opts)
	require.True(t, ok)
	requireValidPath(t, m, path, Point{0, 8}, Point{9, 8}, opts)
	assert.Contains(t, path, Point{4, 2})

	_, ok = m.FindPath(Point{4, 5}, Point{9, 8}, opts)
	assert.False(t, ok, "excluded start tile")
}

func TestFindPath_SameTile(t *testing.T) {
	m := newFlat(t, 10, 10)
	path, ok := m.FindPath(Point{2, 2}, Point{2, 2}, nil)
	require.True(t, ok)
	assert.Equal(t, []Point{{2, 2}}, path)
}

func TestFindPath_PrefersConcreteAndGrid(t *testing.T) {
	m := newFlat(t, 20, 20)
	// A concrete road along y=3 (a grid line) versus a straight grass row at y=4.
	for x := 0; x < 20; x++ {
		m.SetKind(x, 3, Concrete, false)
	}
	path, ok := m.FindPath(Point{0, 4}, Point{19, 4}, nil)
	require.True(t, ok)
	requireValidPath(t, m, path, Point{0, 4}, Point{19, 4}, nil)

	onRoad := 0
	for _, p := range path {
		if p.Y == 3 {
			onRoad++
		}
	}
	assert.Greater(t, onRoad, 10)
}

func TestStepCost(t *testing.T) {
	from := Tile{Kind: Grass, Height: 1}
	flat := StepCost(from, Tile{Kind: Grass, Height: 1}, 3, 3)
	up := StepCost(from, Tile{Kind: Grass, Height: 3}, 3, 3)
	down := StepCost(from, Tile{Kind: Grass, Height: 0}, 3, 3)
	assert.Equal(t, 6, flat)
	assert.Equal(t, flat+10, up)
	assert.Equal(t, flat, down)
	assert.Equal(t, 16, StepCost(from, Tile{Kind: Grass, Height: 1}, 4, 4))
	assert.Equal(t, 5, StepCost(from, Tile{Kind: Concrete, Height: 1}, 19, 4))
	assert.Equal(t, 15, StepCost(from, Tile{Kind: Plants, Height: 1}, 3, 0))
	assert.Equal(t, 10, StepCost(from, Tile{Kind: Tilled, Height: 1}, 0, -13))
}

func TestFindPath_RandomObstaclesStayAdjacentAndWalkable(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	for round := 0; round < 20; round++ {
		m := newFlat(t, 24, 24)
		for i := 0; i < 120; i++ {
			x, y := rng.Intn(24), rng.Intn(24)
			m.SetWalkable(x, y, false)
			if i%7 == 0 {
				m.SetHeight(x, y, rng.Intn(6))
			}
		}
		begin := Point{rng.Intn(24), rng.Intn(24)}
		end := Point{rng.Intn(24), rng.Intn(24)}
		path, ok := m.FindPath(begin, end, nil)
		if !ok {
			continue
		}
		requireValidPath(t, m, path, begin, end, nil)
		assert.GreaterOrEqual(t, m.PathCost(path), 0)
	}
}

func TestFindPath_Deterministic(t *testing.T) {
	m := newFlat(t, 32, 32)
	a, ok := m.FindPath(Point{1, 1}, Point{30, 28}, nil)
	require.True(t, ok)
	b, ok := m.FindPath(Point{1, 1}, Point{30, 28}, nil)
	require.True(t, ok)
	assert.Equal(t, a, b)
}

func TestFindPath_InfiniteMapUsesWindow(t *testing.T) {
	m, err := New(Config{Infinite: true, Generator: FlatGenerator{Kind: Grass, Height: 1}})
	require.NoError(t, err)

	begin, end := Point{-10, -10}, Point{10, 5}
	path, ok := m.FindPath(begin, end, nil)
	require.True(t, ok)
	requireValidPath(t, m, path, begin, end, nil)

	// Wall off x=0 for the whole window: no route within a margin of 4.
	for y := -20; y <= 20; y++ {
		m.SetWalkable(0, y, false)
	}
	_, ok = m.FindPath(begin, end, &FindPathOptions{Margin: 4})
	assert.False(t, ok)
}

func TestFindPath_BudgetStopsSearch(t *testing.T) {
	m := newFlat(t, 10, 10)
	_, ok := m.FindPath(Point{X: 0, Y: 0}, Point{X: 9, Y: 0}, &FindPathOptions{Budget: 3})
	assert.False(t, ok)
	_, ok = m.FindPath(Point{X: 0, Y: 0}, Point{X: 9, Y: 0}, &FindPathOptions{Budget: 100})
	assert.True(t, ok)

	inf, err := New(Config{Infinite: true, Generator: FlatGenerator{Kind: Grass, Height: 1}})
	require.NoError(t, err)
	_, ok = inf.FindPath(Point{X: 0, Y: 0}, Point{X: 3000, Y: 3000}, &FindPathOptions{Budget: 2000})
	assert.False(t, ok)
	assert.Less(t, len(inf.RegionKeys()), 50)
}

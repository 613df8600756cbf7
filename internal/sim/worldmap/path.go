package worldmap

import (
	"container/heap"

	"voxelvillage.ai/internal/sim/mathx"
)

// DefaultPathMargin is how far beyond the begin/end bounding box the search
// may wander on an infinite map.
const DefaultPathMargin = 32

// DefaultPathBudget caps how many tiles one search may expand. It covers a
// whole default-sized finite map; on an infinite map it bounds the work a
// single far-apart request can do inside one tick.
const DefaultPathBudget = 1 << 16

// GridPeriod and GridLine define the sparse lattice of preferred road lines:
// any tile with x or y congruent to GridLine mod GridPeriod.
const (
	GridPeriod = 16
	GridLine   = 3
)

const (
	baseStepCost  = 5
	climbCost     = 5
	offGridCost   = 10
	minStepCost   = baseStepCost
	plantsPenalty = 10
	tilledPenalty = 5
	defaultKindPn = 1
)

type FindPathOptions struct {
	exclude map[TileKind]bool
	// Margin bounds the search on infinite maps; 0 means DefaultPathMargin.
	Margin int
	// Budget caps expanded tiles; 0 means DefaultPathBudget.
	Budget int
}

func (o *FindPathOptions) budget() int {
	if o != nil && o.Budget > 0 {
		return o.Budget
	}
	return DefaultPathBudget
}

func NewFindPathOptions(excluded ...TileKind) *FindPathOptions {
	o := &FindPathOptions{exclude: map[TileKind]bool{}}
	for _, k := range excluded {
		o.exclude[k] = true
	}
	return o
}

func (o *FindPathOptions) Exclude(k TileKind) *FindPathOptions {
	if o.exclude == nil {
		o.exclude = map[TileKind]bool{}
	}
	o.exclude[k] = true
	return o
}

func (o *FindPathOptions) excluded(k TileKind) bool {
	return o != nil && o.exclude[k]
}

func kindPenalty(k TileKind) int {
	switch k {
	case Concrete:
		return 0
	case Plants:
		return plantsPenalty
	case Tilled:
		return tilledPenalty
	default:
		return defaultKindPn
	}
}

// OnGrid reports whether (x,y) lies on a preferred road line.
func OnGrid(x, y int) bool {
	return mathx.Mod(x, GridPeriod) == GridLine || mathx.Mod(y, GridPeriod) == GridLine
}

// StepCost is the cost of walking from tile `from` onto tile `to` at (x,y).
func StepCost(from, to Tile, x, y int) int {
	cost := baseStepCost + climbCost*mathx.MaxInt(0, int(to.Height)-int(from.Height))
	cost += kindPenalty(to.Kind)
	if !OnGrid(x, y) {
		cost += offGridCost
	}
	return cost
}

// Neighbour order is fixed so equal-cost searches are reproducible.
var pathDirs = [4]Point{{X: 0, Y: 1}, {X: 0, Y: -1}, {X: 1, Y: 0}, {X: -1, Y: 0}}

type pathNode struct {
	p     Point
	g     int
	f     int
	seq   uint64
	index int
}

type pathQueue []*pathNode

func (pq pathQueue) Len() int { return len(pq) }

func (pq pathQueue) Less(i, j int) bool {
	if pq[i].f != pq[j].f {
		return pq[i].f < pq[j].f
	}
	return pq[i].seq < pq[j].seq
}

func (pq pathQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *pathQueue) Push(x any) {
	n := x.(*pathNode)
	n.index = len(*pq)
	*pq = append(*pq, n)
}

func (pq *pathQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}

func (m *Map) searchWindow(begin, end Point, opts *FindPathOptions) Rect {
	if b, ok := m.Bounds(); ok {
		return b
	}
	margin := DefaultPathMargin
	if opts != nil && opts.Margin > 0 {
		margin = opts.Margin
	}
	return Rect{
		X0: mathx.MinInt(begin.X, end.X) - margin,
		Y0: mathx.MinInt(begin.Y, end.Y) - margin,
		X1: mathx.MaxInt(begin.X, end.X) + margin + 1,
		Y1: mathx.MaxInt(begin.Y, end.Y) + margin + 1,
	}
}

func (m *Map) passable(p Point, window Rect, opts *FindPathOptions) bool {
	if !window.Contains(p.X, p.Y) || !m.IsTileValid(p.X, p.Y) {
		return false
	}
	t := m.Tile(p.X, p.Y)
	return t.Walkable() && !opts.excluded(t.Kind)
}

func heuristic(a, b Point) int {
	return minStepCost * mathx.Manhattan(a.X, a.Y, b.X, b.Y)
}

// FindPath returns the cheapest 4-connected route from begin to end over
// walkable tiles whose kind is not excluded by opts. The result starts with
// begin and ends with end. ok is false when either endpoint is not passable
// or no route exists within the expansion budget.
func (m *Map) FindPath(begin, end Point, opts *FindPathOptions) ([]Point, bool) {
	window := m.searchWindow(begin, end, opts)
	if !m.passable(begin, window, opts) || !m.passable(end, window, opts) {
		return nil, false
	}
	if begin == end {
		return []Point{begin}, true
	}

	var seq uint64
	open := &pathQueue{}
	heap.Init(open)
	heap.Push(open, &pathNode{p: begin, g: 0, f: heuristic(begin, end), seq: seq})

	gScore := map[Point]int{begin: 0}
	parent := map[Point]Point{}
	closed := map[Point]struct{}{}
	budget := opts.budget()

	for open.Len() > 0 {
		cur := heap.Pop(open).(*pathNode)
		if _, done := closed[cur.p]; done {
			continue
		}
		if len(closed) >= budget {
			return nil, false
		}
		closed[cur.p] = struct{}{}
		if cur.p == end {
			return reconstructPath(parent, begin, end), true
		}

		from := m.Tile(cur.p.X, cur.p.Y)
		for _, d := range pathDirs {
			np := cur.p.Add(d.X, d.Y)
			if _, done := closed[np]; done {
				continue
			}
			if !m.passable(np, window, opts) {
				continue
			}
			g := cur.g + StepCost(from, m.Tile(np.X, np.Y), np.X, np.Y)
			if prev, ok := gScore[np]; ok && g >= prev {
				continue
			}
			gScore[np] = g
			parent[np] = cur.p
			seq++
			heap.Push(open, &pathNode{p: np, g: g, f: g + heuristic(np, end), seq: seq})
		}
	}
	return nil, false
}

func reconstructPath(parent map[Point]Point, begin, end Point) []Point {
	path := []Point{end}
	for p := end; p != begin; {
		p = parent[p]
		path = append(path, p)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// PathCost sums StepCost along a path. Non-adjacent steps make it return -1.
func (m *Map) PathCost(path []Point) int {
	total := 0
	for i := 1; i < len(path); i++ {
		a, b := path[i-1], path[i]
		if !a.Adjacent(b) {
			return -1
		}
		total += StepCost(m.Tile(a.X, a.Y), m.Tile(b.X, b.Y), b.X, b.Y)
	}
	return total
}

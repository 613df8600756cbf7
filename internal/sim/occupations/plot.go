package occupations

import (
	"voxelvillage.ai/internal/sim/mathx"
	"voxelvillage.ai/internal/sim/tasks"
	"voxelvillage.ai/internal/sim/worldmap"
)

// plotStage is one step of a plot plan. The concrete stage types below carry
// whatever the step needs.
type plotStage interface{ isPlotStage() }

type (
	plotInit   struct{}
	choosePlot struct {
		considerations int
		found          bool
		bestDelta      int
	}
	levelTerrain struct{}
	plotMove     struct{ *tasks.MoveThen[plotStage] }
	plotDig      struct{ task *tasks.Dig }
	plotWait     struct {
		expiration uint64
		next       plotStage
	}
	// finishPlot tills the plot or lays the house foundation.
	finishPlot struct{}
	plotWork   struct{ task *tasks.SetKind }
	buildHouse struct{}
	// plotDone idles with random steps until expiration, then moves on to
	// next. A nil next ends the plan.
	plotDone struct {
		expiration uint64
		move       *tasks.RandomMove
		next       plotStage
	}
)

func (plotInit) isPlotStage()     {}
func (choosePlot) isPlotStage()   {}
func (levelTerrain) isPlotStage() {}
func (plotMove) isPlotStage()     {}
func (plotDig) isPlotStage()      {}
func (plotWait) isPlotStage()     {}
func (finishPlot) isPlotStage()   {}
func (plotWork) isPlotStage()     {}
func (buildHouse) isPlotStage()   {}
func (plotDone) isPlotStage()     {}

type levelMode uint8

const (
	// levelDown digs every tile down to the lowest one.
	levelDown levelMode = iota
	// levelMiddle moves every tile towards the midpoint of min and max.
	levelMiddle
)

// plotRules distinguishes the farm and house variants of the plot plan.
type plotRules struct {
	name string

	initWait      [2]int
	doneWait      [2]int
	firstRound    int
	retryRound    int
	searchRange   int
	allowed       func(worldmap.TileKind) bool
	pickSize      func(ctx *tasks.Context) (w, l, height int)
	level         levelMode
	workDone      func(worldmap.TileKind) bool
	newWork       func(p worldmap.Point) *tasks.SetKind
	buildsHouse   bool
	foundationGap uint64
}

const (
	maxPlotRounds  = 8
	digPause       = 50
	plotSearchSpan = 150
)

var farmRules = plotRules{
	name:        "farm",
	initWait:    [2]int{500, 5000},
	doneWait:    [2]int{5000, 10_000},
	firstRound:  40,
	retryRound:  4,
	searchRange: plotSearchSpan,
	allowed:     func(k worldmap.TileKind) bool { return k == worldmap.Grass },
	pickSize: func(ctx *tasks.Context) (int, int, int) {
		return ctx.Between(6, 21), ctx.Between(6, 21), 0
	},
	level: levelDown,
	workDone: func(k worldmap.TileKind) bool {
		return k == worldmap.Tilled || k == worldmap.Plants
	},
	newWork: tasks.Till,
}

var houseRules = plotRules{
	name:        "house",
	initWait:    [2]int{500, 50_000},
	doneWait:    [2]int{5000, 50_000},
	firstRound:  10,
	retryRound:  4,
	searchRange: plotSearchSpan,
	allowed: func(k worldmap.TileKind) bool {
		return k == worldmap.Grass || k == worldmap.Concrete
	},
	pickSize: func(ctx *tasks.Context) (int, int, int) {
		w, l := 7, 7
		if ctx.Rng.Intn(100) > 80 {
			w, l = 15, 9
		}
		height := 4
		switch r := ctx.Rng.Intn(100); {
		case r > 90:
			height = 6
		case r > 80:
			height = 3
		}
		return w, l, height
	},
	level:         levelMiddle,
	workDone:      func(k worldmap.TileKind) bool { return k == worldmap.Concrete },
	newWork:       tasks.LayFoundation,
	buildsHouse:   true,
	foundationGap: 4200,
}

// plotPlan picks a rectangular plot, locks it, levels it and then either
// tills it (farm) or lays a foundation and erects a house on it.
type plotPlan struct {
	rules *plotRules
	stage plotStage

	plot   worldmap.Rect
	height int
	lock   worldmap.LockID
	rounds int
}

func newFarmPlan() *plotPlan  { return &plotPlan{rules: &farmRules, stage: plotInit{}} }
func newHousePlan() *plotPlan { return &plotPlan{rules: &houseRules, stage: plotInit{}} }

func (p *plotPlan) Release(m *worldmap.Map) {
	if p.lock != 0 {
		m.UnlockRegion(p.lock)
		p.lock = 0
	}
}

func (p *plotPlan) Update(ctx *tasks.Context) tasks.Status {
	switch s := p.stage.(type) {
	case plotInit:
		p.stage = p.idle(ctx, p.rules.initWait, choosePlot{considerations: p.rules.firstRound})

	case choosePlot:
		return p.choose(ctx, s)

	case levelTerrain:
		p.level(ctx)

	case plotMove:
		next, st, ok := s.Step(ctx)
		if ok {
			p.stage = next
		} else if st.Code == tasks.Failure {
			return st
		}

	case plotDig:
		if st := s.task.Update(ctx); st.Code != tasks.Success {
			return st
		}
		ctx.Self.Touch()
		p.stage = plotWait{expiration: ctx.Tick + digPause, next: levelTerrain{}}

	case plotWait:
		if ctx.Tick > s.expiration {
			p.stage = s.next
		}

	case finishPlot:
		p.finish(ctx)

	case plotWork:
		if st := s.task.Update(ctx); st.Code != tasks.Success {
			return st
		}
		p.stage = finishPlot{}

	case buildHouse:
		p.build(ctx)

	case plotDone:
		if ctx.Tick > s.expiration {
			if s.next == nil {
				return tasks.Succeeded()
			}
			p.stage = s.next
			break
		}
		if s.move.Update(ctx).Done() {
			s.move.Reset()
		}
	}
	return tasks.Continue()
}

func (p *plotPlan) idle(ctx *tasks.Context, span [2]int, next plotStage) plotDone {
	return plotDone{
		expiration: ctx.Tick + uint64(ctx.Between(span[0], span[1])),
		move:       tasks.NewRandomMove(),
		next:       next,
	}
}

func (p *plotPlan) choose(ctx *tasks.Context, s choosePlot) tasks.Status {
	if r, height, ok := p.candidate(ctx); ok {
		if delta, valid := p.score(ctx, r); valid && (!s.found || delta < s.bestDelta) {
			s.found, s.bestDelta = true, delta
			p.plot, p.height = r, height
		}
	}
	if s.considerations > 0 {
		s.considerations--
		p.stage = s
		return tasks.Continue()
	}

	if s.found {
		r := p.plot
		if id, ok := ctx.Map.TryLockRegion(r.X0, r.Y0, r.X1, r.Y1); ok {
			p.lock = id
			ctx.Logger().Debug("plot locked", "plan", p.rules.name, "plot", r, "lock", id)
			p.stage = plotWait{
				expiration: ctx.Tick + uint64(ctx.Between(100, 300)),
				next:       levelTerrain{},
			}
			return tasks.Continue()
		}
	}
	p.rounds++
	if p.rounds >= maxPlotRounds {
		ctx.Logger().Debug("no plot found", "plan", p.rules.name, "rounds", p.rounds)
		return tasks.Failed()
	}
	p.stage = choosePlot{considerations: p.rules.retryRound}
	return tasks.Continue()
}

func (p *plotPlan) candidate(ctx *tasks.Context) (worldmap.Rect, int, bool) {
	w, l, height := p.rules.pickSize(ctx)
	var x0, y0 int
	if b, ok := ctx.Map.Bounds(); ok {
		if b.Width() <= w || b.Length() <= l {
			return worldmap.Rect{}, 0, false
		}
		x0 = ctx.Between(b.X0, b.X1-w)
		y0 = ctx.Between(b.Y0, b.Y1-l)
	} else {
		c := ctx.Self.Beacon()
		x0 = c.X + ctx.Between(-p.rules.searchRange, p.rules.searchRange)
		y0 = c.Y + ctx.Between(-p.rules.searchRange, p.rules.searchRange)
	}
	return worldmap.Rect{X0: x0, Y0: y0, X1: x0 + w, Y1: y0 + l}, height, true
}

// score requires the plot and a one-tile border to hold only allowed kinds
// and returns how much earth sits above the lowest tile.
func (p *plotPlan) score(ctx *tasks.Context, r worldmap.Rect) (int, bool) {
	minZ := ctx.Map.Height(r.X0, r.Y0)
	for y := r.Y0 - 1; y <= r.Y1; y++ {
		for x := r.X0 - 1; x <= r.X1; x++ {
			if !ctx.Map.IsTileValid(x, y) {
				continue
			}
			t := ctx.Map.Tile(x, y)
			if !p.rules.allowed(t.Kind) || (r.Contains(x, y) && t.Locked()) {
				return 0, false
			}
			minZ = mathx.MinInt(minZ, int(t.Height))
		}
	}
	delta := 0
	for y := r.Y0; y < r.Y1; y++ {
		for x := r.X0; x < r.X1; x++ {
			if z := ctx.Map.Height(x, y); z > minZ {
				delta += z - minZ
			}
		}
	}
	return delta, true
}

func (p *plotPlan) level(ctx *tasks.Context) {
	r := p.plot
	minZ := ctx.Map.Height(r.X0, r.Y0)
	maxZ := minZ
	for y := r.Y0; y < r.Y1; y++ {
		for x := r.X0; x < r.X1; x++ {
			z := ctx.Map.Height(x, y)
			minZ = mathx.MinInt(minZ, z)
			maxZ = mathx.MaxInt(maxZ, z)
		}
	}
	target := minZ
	if p.rules.level == levelMiddle {
		target = (minZ + maxZ) / 2
	}

	var (
		at    worldmap.Point
		z     int
		found bool
	)
	for y := r.Y0; y < r.Y1; y++ {
		for x := r.X0; x < r.X1; x++ {
			h := ctx.Map.Height(x, y)
			switch {
			case h > target:
				at, z, found = worldmap.Point{X: x, Y: y}, h-1, true
			case h < target:
				at, z, found = worldmap.Point{X: x, Y: y}, h+1, true
			}
		}
	}
	if !found {
		p.stage = finishPlot{}
		return
	}
	p.stage = plotMove{tasks.NewMoveThen[plotStage](
		tasks.NewStepTo(at),
		plotDig{task: &tasks.Dig{Dest: at, Height: z}},
	)}
}

func (p *plotPlan) finish(ctx *tasks.Context) {
	r := p.plot
	var (
		at    worldmap.Point
		found bool
	)
	for y := r.Y0; y < r.Y1; y++ {
		for x := r.X0; x < r.X1; x++ {
			if !p.rules.workDone(ctx.Map.Tile(x, y).Kind) {
				at, found = worldmap.Point{X: x, Y: y}, true
			}
		}
	}
	switch {
	case found:
		p.stage = plotMove{tasks.NewMoveThen[plotStage](
			tasks.NewStepTo(at),
			plotWork{task: p.rules.newWork(at)},
		)}
	case p.rules.buildsHouse:
		p.stage = plotWait{expiration: ctx.Tick + p.rules.foundationGap, next: buildHouse{}}
	default:
		p.Release(ctx.Map)
		ctx.Logger().Debug("plot finished", "plan", p.rules.name, "plot", r)
		p.stage = p.idle(ctx, p.rules.doneWait, nil)
	}
}

func (p *plotPlan) build(ctx *tasks.Context) {
	r := p.plot
	z := ctx.Map.Height(r.X0, r.Y0)
	id := ctx.Entities.Add(r.X0+1, r.Y0+1, z, r.Width()-2, r.Length()-2, p.height, houseColor)
	for y := r.Y0 + 1; y < r.Y1-1; y++ {
		for x := r.X0 + 1; x < r.X1-1; x++ {
			ctx.Map.SetKind(x, y, worldmap.DebugMarker, true)
			ctx.Map.SetWalkable(x, y, false)
		}
	}
	p.Release(ctx.Map)
	ctx.Logger().Info("house built", "entity", id, "plot", r, "height", p.height)
	p.stage = p.idle(ctx, p.rules.doneWait, nil)
}

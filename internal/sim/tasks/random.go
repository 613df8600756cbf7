package tasks

// RandomMove waits 200-600 game time, takes one random cardinal step and then
// rests for 200. The step fails on an unwalkable or occupied tile.
type RandomMove struct {
	b Bracket
}

const (
	randomMoveMinDelay = 200
	randomMoveMaxDelay = 600
	randomMoveCooldown = 200
)

func NewRandomMove() *RandomMove { return &RandomMove{} }

func (t *RandomMove) Kind() Kind { return KindRandomMove }

func (t *RandomMove) Reset() { t.b.Reset() }

func (t *RandomMove) Update(ctx *Context) Status {
	return t.b.Step(ctx,
		func() uint64 { return uint64(ctx.Between(randomMoveMinDelay, randomMoveMaxDelay)) },
		func() bool {
			next := ctx.Self.Position().Add(randomStep(ctx))
			if !ctx.CanEnter(next) {
				return false
			}
			ctx.Self.SetPosition(next)
			return true
		},
		randomMoveCooldown,
	)
}

// randomStep picks an axis with a coin flip, then a sign.
func randomStep(ctx *Context) (dx, dy int) {
	sign := 1
	if ctx.Rng.Intn(100) >= 50 {
		sign = -1
	}
	if ctx.Rng.Intn(100) >= 50 {
		return sign, 0
	}
	return 0, sign
}

// Wander takes random steps every Delay frames until Duration frames have
// passed. Blocked steps are skipped.
type Wander struct {
	Delay    uint64
	Duration uint64

	started    bool
	expiration uint64
}

func NewWander(delay, duration uint64) *Wander {
	return &Wander{Delay: delay, Duration: duration}
}

func (t *Wander) Kind() Kind { return KindWander }

func (t *Wander) Update(ctx *Context) Status {
	if !t.started {
		t.started = true
		t.expiration = ctx.After(t.Duration)
		return WaitFor(t.Delay)
	}

	d := ctx.RandomDirection()
	if next := ctx.Self.Position().Add(d.X, d.Y); ctx.CanEnter(next) {
		ctx.Self.SetPosition(next)
	}
	if ctx.Tick < t.expiration {
		return WaitFor(t.Delay)
	}
	return Succeeded()
}

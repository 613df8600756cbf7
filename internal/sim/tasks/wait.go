package tasks

import (
	"math/rand"

	"voxelvillage.ai/internal/sim/actor"
	"voxelvillage.ai/internal/sim/mathx"
)

// FlashColor is the tint a flashing Wait starts from.
var FlashColor = actor.Color{R: 1, G: 0.2, B: 0.2}

// Wait holds for Duration game time, measured from its first update. With
// Flash set the actor is tinted FlashColor and eased back to its own colour.
type Wait struct {
	Duration uint64
	Flash    bool

	started    bool
	start      uint64
	expiration uint64
	prior      actor.Color
}

func NewWait(duration uint64) *Wait { return &Wait{Duration: duration} }

// RandomWait draws a duration in [lo, hi) and flashes.
func RandomWait(rng *rand.Rand, lo, hi uint64) *Wait {
	d := lo
	if hi > lo {
		d += uint64(rng.Int63n(int64(hi - lo)))
	}
	return &Wait{Duration: d, Flash: true}
}

func (t *Wait) Kind() Kind { return KindWait }

func (t *Wait) Update(ctx *Context) Status {
	if !t.started {
		t.started = true
		t.start = ctx.Tick
		t.expiration = ctx.Tick + t.Duration
		t.prior = ctx.Self.Color()
	}

	if ctx.Tick > t.expiration {
		if t.Flash {
			ctx.Self.SetColor(t.prior)
		}
		return Succeeded()
	}
	if t.Flash {
		var f float32 = 1
		if span := t.expiration - t.start; span > 0 {
			f = float32(ctx.Tick-t.start) / float32(span)
		}
		ctx.Self.SetColor(FlashColor.Lerp(t.prior, mathx.EaseOutCubic(f)))
	}
	return Continue()
}

// Expiration returns the deadline fixed on the first update.
func (t *Wait) Expiration() uint64 { return t.expiration }

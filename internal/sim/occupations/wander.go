package occupations

import (
	"voxelvillage.ai/internal/sim/tasks"
	"voxelvillage.ai/internal/sim/worldmap"
)

const randomMovementSteps = 8

// randomMovements is the vagrant plan: a queue of random steps where a
// blocked step is replaced by a short flashing pause.
type randomMovements struct {
	queue *tasks.Queue
}

func newRandomMovements() *randomMovements {
	q := tasks.NewQueue()
	for i := 0; i < randomMovementSteps; i++ {
		q.Push(tasks.NewRandomMove())
	}
	q.OnFailure = func(ctx *tasks.Context, _ tasks.Task) tasks.Task {
		return tasks.RandomWait(ctx.Rng, 500, 1000)
	}
	return &randomMovements{queue: q}
}

func (p *randomMovements) Update(ctx *tasks.Context) tasks.Status {
	return p.queue.Update(ctx)
}

func (p *randomMovements) Release(*worldmap.Map) {}

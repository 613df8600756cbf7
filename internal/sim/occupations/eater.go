package occupations

import (
	"voxelvillage.ai/internal/sim/tasks"
	"voxelvillage.ai/internal/sim/worldmap"
)

const eaterLocateAttempts = 10

// eaterPlan loops: wander, look for plants, walk there, eat them.
type eaterPlan struct {
	task tasks.Task
}

func newEaterPlan() *eaterPlan { return &eaterPlan{task: eaterWander()} }

func eaterWander() tasks.Task { return tasks.NewWander(30, 12) }

func (p *eaterPlan) Release(*worldmap.Map) {}

func (p *eaterPlan) Update(ctx *tasks.Context) tasks.Status {
	st := p.task.Update(ctx)
	if !st.Done() {
		return st
	}
	ok := st.Code == tasks.Success

	switch t := p.task.(type) {
	case *tasks.Wander:
		p.task = &tasks.LocateTile{
			Want:     worldmap.Plants,
			Attempts: eaterLocateAttempts,
			Range:    tasks.DefaultLocateRange,
		}
		return tasks.Continue()
	case *tasks.LocateTile:
		if !ok {
			p.task = eaterWander()
			return tasks.WaitFor(10)
		}
		p.task = tasks.NewMoveTo(t.Found)
		return tasks.Continue()
	case *tasks.MoveTo:
		if !ok {
			p.task = eaterWander()
			return tasks.Continue()
		}
		p.task = tasks.NewChangeTile(worldmap.Tilled).Only(worldmap.Plants)
		return tasks.Continue()
	default:
		p.task = eaterWander()
		if ok {
			return tasks.WaitFor(20)
		}
		return tasks.WaitFor(5)
	}
}

package occupations

import (
	"voxelvillage.ai/internal/sim/actor"
	"voxelvillage.ai/internal/sim/tasks"
	"voxelvillage.ai/internal/sim/worldmap"
)

// Plan is a multi-step goal. Plans are restarted from scratch by their
// Strategy once they report a terminal status.
type Plan interface {
	Update(ctx *tasks.Context) tasks.Status
	// Release drops every map lock the plan still holds. It is always called
	// before a plan is discarded.
	Release(m *worldmap.Map)
}

type Strategy interface {
	Update(ctx *tasks.Context)
	Release(m *worldmap.Map)
}

// Occupation is an actor's role: one-time setup plus a Strategy factory.
type Occupation interface {
	Key() string
	Name() string
	Init(s *actor.State)
	NewStrategy() Strategy
	Update(tick uint64)
}

type hooks struct{}

func (hooks) Update(uint64) {}

// PlanStrategy owns one Plan at a time and replaces it on any terminal
// status. Wait hints from the plan suspend updates until the deadline has
// passed.
type PlanStrategy struct {
	newPlan func() Plan

	plan     Plan
	waiting  bool
	resumeAt uint64
	restarts int
}

func NewPlanStrategy(newPlan func() Plan) *PlanStrategy {
	return &PlanStrategy{newPlan: newPlan}
}

func (s *PlanStrategy) Update(ctx *tasks.Context) {
	if s.waiting {
		if ctx.Tick <= s.resumeAt {
			return
		}
		s.waiting = false
	}
	if s.plan == nil {
		s.plan = s.newPlan()
	}

	st := s.plan.Update(ctx)
	switch {
	case st.Done():
		s.plan.Release(ctx.Map)
		s.plan = nil
		s.restarts++
	case st.Wait > 0:
		s.waiting = true
		s.resumeAt = ctx.After(st.Wait)
	}
}

func (s *PlanStrategy) Release(m *worldmap.Map) {
	if s.plan != nil {
		s.plan.Release(m)
	}
}

// Restarts counts how many plans have run to a terminal status.
func (s *PlanStrategy) Restarts() int { return s.restarts }

// Plan returns the running plan, if any.
func (s *PlanStrategy) Plan() Plan { return s.plan }

// Waiting reports whether the strategy is suspended until ResumeAt.
func (s *PlanStrategy) Waiting() (bool, uint64) { return s.waiting, s.resumeAt }

// NoopStrategy does nothing; the actor is driven from outside.
type NoopStrategy struct{}

func (NoopStrategy) Update(*tasks.Context) {}
func (NoopStrategy) Release(*worldmap.Map) {}

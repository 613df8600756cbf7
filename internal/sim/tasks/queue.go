package tasks

// Queue runs tasks front to back, popping each one on success. On failure
// the task is popped and OnFailure may push a replacement to the front.
type Queue struct {
	tasks     []Task
	OnFailure func(ctx *Context, failed Task) Task
}

func NewQueue(tasks ...Task) *Queue {
	return &Queue{tasks: tasks}
}

func (q *Queue) Kind() Kind { return KindQueue }

func (q *Queue) Push(t Task) { q.tasks = append(q.tasks, t) }

func (q *Queue) Len() int { return len(q.tasks) }

// Front returns the task that runs next, or nil.
func (q *Queue) Front() Task {
	if len(q.tasks) == 0 {
		return nil
	}
	return q.tasks[0]
}

func (q *Queue) Update(ctx *Context) Status {
	if len(q.tasks) == 0 {
		return Succeeded()
	}
	front := q.tasks[0]
	st := front.Update(ctx)
	switch st.Code {
	case Active:
		return st
	case Success:
		q.tasks = q.tasks[1:]
	case Failure:
		q.tasks = q.tasks[1:]
		if q.OnFailure != nil {
			if r := q.OnFailure(ctx, front); r != nil {
				q.tasks = append([]Task{r}, q.tasks...)
			}
		}
	}
	if len(q.tasks) == 0 {
		return Succeeded()
	}
	return Continue()
}

// MoveThen runs a movement task and then hands over to a follow-up stage.
// S is the stage type of the plan using it.
type MoveThen[S any] struct {
	Move Task
	Next S
}

func NewMoveThen[S any](move Task, next S) *MoveThen[S] {
	return &MoveThen[S]{Move: move, Next: next}
}

// Step runs the move once. ok is true when the move has succeeded and the
// caller should switch to next; otherwise st is the move's own status.
func (m *MoveThen[S]) Step(ctx *Context) (next S, st Status, ok bool) {
	st = m.Move.Update(ctx)
	if st.Code == Success {
		return m.Next, Continue(), true
	}
	return next, st, false
}

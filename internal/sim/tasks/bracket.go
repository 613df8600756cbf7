package tasks

type bracketStage uint8

const (
	bracketInit bracketStage = iota
	bracketWait0
	bracketAct
	bracketWait1
	bracketSuccess
	bracketFailure
)

// Bracket is the Init → Wait0 → Act → Wait1 → Success|Failure cycle shared by
// tasks that pause before and after a single action. Each call performs at
// most one transition.
type Bracket struct {
	stage      bracketStage
	expiration uint64
}

// Step advances the cycle. delay is drawn once on Init and holds the task in
// Wait0 for that much game time. act runs once; a false result fails the
// task. cooldown is the Wait1 duration in game time.
func (b *Bracket) Step(ctx *Context, delay func() uint64, act func() bool, cooldown uint64) Status {
	switch b.stage {
	case bracketInit:
		b.expiration = ctx.Tick + delay()
		b.stage = bracketWait0
	case bracketWait0:
		if ctx.Tick > b.expiration {
			b.stage = bracketAct
		}
	case bracketAct:
		if !act() {
			b.stage = bracketFailure
			break
		}
		b.expiration = ctx.Tick + cooldown
		b.stage = bracketWait1
	case bracketWait1:
		if ctx.Tick > b.expiration {
			b.stage = bracketSuccess
		}
	}

	switch b.stage {
	case bracketSuccess:
		return Succeeded()
	case bracketFailure:
		return Failed()
	default:
		return Continue()
	}
}

func (b *Bracket) Reset() { *b = Bracket{} }

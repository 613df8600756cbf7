package tasks

type Kind string

const (
	KindStepTo        Kind = "STEP_TO"
	KindMoveTo        Kind = "MOVE_TO"
	KindDig           Kind = "DIG"
	KindTill          Kind = "TILL"
	KindLayFoundation Kind = "LAY_FOUNDATION"
	KindRandomMove    Kind = "RANDOM_MOVE"
	KindWander        Kind = "WANDER"
	KindLocateTile    Kind = "LOCATE_TILE"
	KindChangeTile    Kind = "CHANGE_TILE"
	KindWait          Kind = "WAIT"
	KindQueue         Kind = "QUEUE"
)

// Task is the smallest resumable unit of actor work. Update performs at most
// one unit of world mutation per call and reports where it stands.
type Task interface {
	Kind() Kind
	Update(ctx *Context) Status
}

package tasks

import "fmt"

type Code uint8

const (
	Active Code = iota
	Success
	Failure
)

func (c Code) String() string {
	switch c {
	case Active:
		return "ACTIVE"
	case Success:
		return "SUCCESS"
	case Failure:
		return "FAILURE"
	default:
		return fmt.Sprintf("CODE(%d)", uint8(c))
	}
}

// Status is returned by every Update. Wait is only meaningful for Active and
// asks the caller not to call again for that many frames.
type Status struct {
	Code Code
	Wait uint64
}

func Continue() Status             { return Status{Code: Active} }
func WaitFor(frames uint64) Status { return Status{Code: Active, Wait: frames} }
func Succeeded() Status            { return Status{Code: Success} }
func Failed() Status               { return Status{Code: Failure} }

// Done reports whether the status is terminal.
func (s Status) Done() bool { return s.Code != Active }

func (s Status) String() string {
	if s.Code == Active && s.Wait > 0 {
		return fmt.Sprintf("ACTIVE(wait=%d)", s.Wait)
	}
	return s.Code.String()
}

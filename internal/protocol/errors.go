package protocol

import "errors"

// ErrBadMessage wraps every decode or schema failure of an inbound message.
var ErrBadMessage = errors.New("bad message")

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	// World routing/state.
	ErrWorldBusy = "E_WORLD_BUSY"

	// Action layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrWorldBusy:       {},
	ErrBadRequest:      {},
	ErrInvalidTarget:   {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// NewError builds an ERROR message. Unknown codes are reported as internal.
func NewError(code, message string) ErrorMsg {
	if !IsKnownCode(code) || code == "" {
		code = ErrInternal
	}
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, Code: code, Message: message}
}

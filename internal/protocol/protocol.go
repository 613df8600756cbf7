package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeSubscribe = "SUBSCRIBE"
	TypeWelcome   = "WELCOME"
	TypeAction    = "ACTION"
	TypeRegionReq = "REGION_REQ"
	TypeFrame     = "FRAME"
	TypeRegion    = "REGION"
	TypeError     = "ERROR"
)

// Action kinds carried by ActionMsg.
const (
	ActionMove     = "MOVE"
	ActionFindPath = "FIND_PATH"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

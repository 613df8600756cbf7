package protocol

// SUBSCRIBE (observer -> server)
type SubscribeMsg struct {
	Type            string `json:"type" jsonschema:"required,enum=SUBSCRIBE"`
	ProtocolVersion string `json:"protocol_version" jsonschema:"required"`
	// Name is a free-form label for logs.
	Name string `json:"name,omitempty" jsonschema:"maxLength=64"`
}

// WELCOME (server -> observer)
type WelcomeMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	SessionID       string   `json:"session_id"`
	WorldID         string   `json:"world_id"`
	Tick            uint64   `json:"tick"`
	Width           int      `json:"width,omitempty"`
	Length          int      `json:"length,omitempty"`
	Infinite        bool     `json:"infinite,omitempty"`
	RegionSize      int      `json:"region_size"`
	ChunkSize       int      `json:"chunk_size"`
	TileKinds       []string `json:"tile_kinds"`
}

// ACTION (observer -> server). MOVE carries a unit step in DX/DY; FIND_PATH
// paints a debug path between From and To (defaults to the first region's
// diagonal).
type ActionMsg struct {
	Type            string  `json:"type" jsonschema:"required,enum=ACTION"`
	ProtocolVersion string  `json:"protocol_version" jsonschema:"required"`
	Kind            string  `json:"kind" jsonschema:"required,enum=MOVE,enum=FIND_PATH"`
	DX              int     `json:"dx,omitempty" jsonschema:"minimum=-1,maximum=1"`
	DY              int     `json:"dy,omitempty" jsonschema:"minimum=-1,maximum=1"`
	From            *[2]int `json:"from,omitempty"`
	To              *[2]int `json:"to,omitempty"`
}

// REGION_REQ (observer -> server)
type RegionReqMsg struct {
	Type            string `json:"type" jsonschema:"required,enum=REGION_REQ"`
	ProtocolVersion string `json:"protocol_version" jsonschema:"required"`
	RX              int    `json:"rx"`
	RY              int    `json:"ry"`
}

// FRAME (server -> observer), once per tick.
type FrameMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	Tick            uint64        `json:"tick"`
	Frame           uint64        `json:"frame"`
	Player          uint32        `json:"player,omitempty"`
	Actors          []ActorFrame  `json:"actors"`
	Entities        []EntityFrame `json:"entities,omitempty"`
	// Dirty lists regions whose sync id changed since the previous frame
	// sent to this observer.
	Dirty     []RegionRef `json:"dirty,omitempty"`
	Greetings []string    `json:"greetings,omitempty"`
}

type ActorFrame struct {
	ID         uint32     `json:"id"`
	Name       string     `json:"name"`
	Occupation string     `json:"occupation"`
	Pos        [2]int     `json:"pos"`
	Z          int        `json:"z"`
	Color      [3]float32 `json:"color"`
	Ethereal   bool       `json:"ethereal,omitempty"`
	SyncID     uint64     `json:"sync_id"`
}

type EntityFrame struct {
	ID     uint32     `json:"id"`
	Pos    [3]int     `json:"pos"`
	Size   [3]int     `json:"size"`
	Color  [3]float32 `json:"color"`
	SyncID uint64     `json:"sync_id"`
}

type RegionRef struct {
	RX     int    `json:"rx"`
	RY     int    `json:"ry"`
	SyncID uint64 `json:"sync_id"`
}

// REGION (server -> observer): RLE-encoded tile planes of one region in
// row-major order.
type RegionMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	RX              int        `json:"rx"`
	RY              int        `json:"ry"`
	Size            int        `json:"size"`
	SyncID          uint64     `json:"sync_id"`
	Kinds           string     `json:"kinds"`
	Heights         string     `json:"heights"`
	Flags           string     `json:"flags"`
	Chunks          []ChunkRef `json:"chunks,omitempty"`
}

type ChunkRef struct {
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Z      int    `json:"z"`
	SyncID uint64 `json:"sync_id"`
}

// ERROR (server -> observer)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}

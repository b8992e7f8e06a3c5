package protocol

// OBS (server -> client): the world around the client's focus after a
// tick. Voxels carry palette ids only; wire power and switch state
// ride in overlay lists since they are not part of the palette.
type ObsMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	ClientID        string `json:"client_id"`

	Focus    [3]int      `json:"focus"`
	Voxels   VoxelsObs   `json:"voxels"`
	Wires    []WireObs   `json:"wires,omitempty"`
	Switches []SwitchObs `json:"switches,omitempty"`
	Events   []Event     `json:"events"`

	// Digest is the world state digest after this tick, for clients
	// that mirror state and want to detect drift.
	Digest string `json:"digest,omitempty"`
}

type VoxelsObs struct {
	Center   [3]int         `json:"center"`
	Radius   int            `json:"radius"`
	Encoding string         `json:"encoding"` // "RLE" or "DELTA"
	Data     string         `json:"data,omitempty"`
	Ops      []VoxelDeltaOp `json:"ops,omitempty"`
}

type VoxelDeltaOp struct {
	D [3]int `json:"d"` // delta from center (dx,dy,dz)
	B uint16 `json:"b"` // block palette id
}

// WireObs is the power of one wire inside the voxel cube.
type WireObs struct {
	Pos   [3]int `json:"pos"`
	Power int    `json:"power"`
}

// SwitchObs is the activation state of a lever, button or lamp inside
// the voxel cube.
type SwitchObs struct {
	Pos [3]int `json:"pos"`
	On  bool   `json:"on"`
}

type Event map[string]interface{}

// ACT (client -> server)
type ActMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	Tick            uint64    `json:"tick"`
	ClientID        string    `json:"client_id"`
	Edits           []EditReq `json:"edits,omitempty"`
}

// Edit types accepted inside ACT.
const (
	EditPlaceBlock = "PLACE_BLOCK"
	EditBreakBlock = "BREAK_BLOCK"
	EditToggle     = "TOGGLE"
	EditSetFocus   = "SET_FOCUS"
)

type EditReq struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Pos  [3]int `json:"pos"`

	// Block names the palette entry to place; PLACE_BLOCK only.
	Block string `json:"block,omitempty"`
}

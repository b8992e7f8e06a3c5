package observerproto

// Version is the observer protocol version (separate from the client
// WS protocol).
const Version = "0.1"

// Client -> Server. First message on the observer WS connection; can
// be re-sent to change the streaming cadence.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// EveryTicks streams one frame per N completed ticks (default 1).
	EveryTicks int `json:"every_ticks,omitempty"`
}

// HTTP response for GET /admin/v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	WorldID         string      `json:"world_id"`
	Tick            uint64      `json:"tick"`
	WorldParams     WorldParams `json:"world_params"`
	BlockPalette    []string    `json:"block_palette"`
}

type WorldParams struct {
	TickRateHz int    `json:"tick_rate_hz"`
	ChunkSize  [3]int `json:"chunk_size"`
	Height     int    `json:"height"`
	Seed       int64  `json:"seed"`
	BoundaryR  int    `json:"boundary_r"`
}

// Server -> Client. One frame per observed tick: the state digest plus
// the counters an operator watches while a circuit settles.
type TickMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	Digest          string `json:"digest"`

	Clients         int `json:"clients"`
	LoadedChunks    int `json:"loaded_chunks"`
	Wires           int `json:"wires"`
	Switches        int `json:"switches"`
	PendingSchedule int `json:"pending_schedule"`

	StepMS float64 `json:"step_ms"`

	Settle SettleStats `json:"settle"`
}

// SettleStats carries the engine's settle counters: work done during
// the reported tick plus totals since the world started.
type SettleStats struct {
	LastCount        uint64 `json:"last_count"`
	LastWiresSet     uint64 `json:"last_wires_set"`
	LastBlockUpdates uint64 `json:"last_block_updates"`
	LastShapeUpdates uint64 `json:"last_shape_updates"`

	SettlesTotal      uint64 `json:"settles_total"`
	WiresSetTotal     uint64 `json:"wires_set_total"`
	BlockUpdatesTotal uint64 `json:"block_updates_total"`
	ShapeUpdatesTotal uint64 `json:"shape_updates_total"`
}

package world

// WorldMetrics is a read-only view of key world runtime signals. It is
// published from the world loop goroutine and read from HTTP handlers
// and tests.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	Clients         int `json:"clients"`
	LoadedChunks    int `json:"loaded_chunks"`
	Wires           int `json:"wires"`
	Switches        int `json:"switches"`
	PendingSchedule int `json:"pending_schedule"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`

	// Settle work done during the last tick and since the world
	// started.
	SettleLastTick SettleLogEntry `json:"settle_last_tick"`
	SettlesTotal   uint64         `json:"settles_total"`
	WiresSetTotal  uint64         `json:"wires_set_total"`
	BlockUpdates   uint64         `json:"block_updates_total"`
	ShapeUpdates   uint64         `json:"shape_updates_total"`

	// Digest is the world state digest after the last completed tick.
	Digest string `json:"digest"`
}

type QueueDepths struct {
	Inbox int `json:"inbox"`
	Join  int `json:"join"`
	Leave int `json:"leave"`
}

func (w *World) publishMetrics(nowTick uint64, settle SettleLogEntry, digest string) {
	w.metrics.Store(WorldMetrics{
		Tick:            nowTick,
		Clients:         len(w.clients),
		LoadedChunks:    w.chunks.Loaded(),
		Wires:           len(w.wirePower),
		Switches:        len(w.onState),
		PendingSchedule: len(w.schedule),
		QueueDepths: QueueDepths{
			Inbox: len(w.inbox),
			Join:  len(w.join),
			Leave: len(w.leave),
		},
		StepMS:         float64(w.stepTime.Microseconds()) / 1000.0,
		SettleLastTick: settle,
		SettlesTotal:   w.lastStats.Settles,
		WiresSetTotal:  w.lastStats.WiresSet,
		BlockUpdates:   w.lastStats.BlockUpdates,
		ShapeUpdates:   w.lastStats.ShapeUpdates,
		Digest:         digest,
	})
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}

package world

import (
	"signalcraft.ai/internal/protocol"
	"signalcraft.ai/internal/sim/signal"
)

// Vec3i is the world position type, shared with the signal engine so
// positions cross the boundary without conversion.
type Vec3i = signal.Vec3i

type JoinRequest struct {
	Name        string
	DeltaVoxels bool
	Out         chan []byte
	Resp        chan JoinResponse
}

type JoinResponse struct {
	Welcome  protocol.WelcomeMsg
	Catalogs []protocol.CatalogMsg
}

type ActionEnvelope struct {
	ClientID string
	Act      protocol.ActMsg
}

// JoinLogEntry records one client admitted at a tick boundary.
type JoinLogEntry struct {
	ClientID string `json:"client_id"`
	Name     string `json:"name,omitempty"`
}

// EditLogEntry records one edit and its outcome. Code is empty when
// the edit applied.
type EditLogEntry struct {
	Client string `json:"client"`
	Action string `json:"action"`
	Pos    [3]int `json:"pos"`
	Block  string `json:"block,omitempty"`
	Code   string `json:"code,omitempty"`
}

// SettleLogEntry sums the signal work done during one tick.
type SettleLogEntry struct {
	Count        uint64 `json:"count"`
	WiresSet     uint64 `json:"wires_set"`
	BlockUpdates uint64 `json:"block_updates"`
	ShapeUpdates uint64 `json:"shape_updates"`
}

// TickLogEntry is one line of the tick log. Replaying the recorded
// edits from a snapshot reproduces the digest of every later tick.
type TickLogEntry struct {
	Tick   uint64         `json:"tick"`
	Joins  []JoinLogEntry `json:"joins,omitempty"`
	Leaves []string       `json:"leaves,omitempty"`
	Edits  []EditLogEntry `json:"edits,omitempty"`
	Settle SettleLogEntry `json:"settle"`
	Digest string         `json:"digest"`
}

// AuditEntry records one block mutation with its cause. From and To
// are block ids, not palette indices, so audit rows stay readable
// when the palette changes between runs.
type AuditEntry struct {
	Tick   uint64 `json:"tick"`
	Actor  string `json:"actor"`
	Action string `json:"action"`
	Pos    [3]int `json:"pos"`
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason,omitempty"`
}

type TickLogger interface {
	WriteTick(TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(AuditEntry) error
}

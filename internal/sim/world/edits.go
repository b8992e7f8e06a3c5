package world

import (
	"signalcraft.ai/internal/protocol"
	"signalcraft.ai/internal/sim/signal"
)

func vec(a [3]int) Vec3i { return Vec3i{X: a[0], Y: a[1], Z: a[2]} }

func (w *World) inBounds(p Vec3i) bool {
	if p.Y < 0 || p.Y >= w.cfg.Height {
		return false
	}
	r := w.cfg.BoundaryR
	return p.X >= -r && p.X <= r && p.Z >= -r && p.Z <= r
}

// applyEdit validates and applies one edit. An empty code means the
// edit applied; anything else names the rejection.
func (w *World) applyEdit(c *clientState, e protocol.EditReq, nowTick uint64) (code, msg string) {
	if !c.allowEdit(nowTick, uint64(w.cfg.RateLimits.EditWindowTicks), w.cfg.RateLimits.EditMax) {
		return protocol.ErrRateLimit, "edit budget exhausted"
	}
	pos := vec(e.Pos)
	if !w.inBounds(pos) {
		return protocol.ErrOutOfBounds, "position outside world"
	}

	if e.Type == protocol.EditSetFocus {
		c.Focus = pos
		return "", ""
	}

	// One mutation per position per tick. Later edits lose.
	if w.edited[pos] {
		return protocol.ErrConflict, "position already edited this tick"
	}

	switch e.Type {
	case protocol.EditPlaceBlock:
		code, msg = w.editPlace(pos, e.Block, c.ID)
	case protocol.EditBreakBlock:
		code, msg = w.editBreak(pos, c.ID)
	case protocol.EditToggle:
		code, msg = w.toggleAt(pos, c.ID)
	default:
		return protocol.ErrUnsupported, "unknown edit type: " + e.Type
	}
	if code == "" {
		w.edited[pos] = true
	}
	return code, msg
}

func (w *World) editPlace(pos Vec3i, name, actor string) (string, string) {
	id, def, ok := w.blocks.lookup(name)
	if !ok {
		return protocol.ErrBadRequest, "unknown block: " + name
	}
	if def.ID == "AIR" {
		return protocol.ErrBadRequest, "cannot place AIR"
	}
	if w.chunks.BlockAt(pos.X, pos.Y, pos.Z) != w.blocks.air {
		return protocol.ErrInvalidTarget, "position occupied"
	}
	st := signal.StateOf(w.blocks.blockByID(id))
	if !st.CanExist(w, pos) {
		return protocol.ErrUnsupported, "needs support below"
	}
	w.placeBlockAt(pos, st, actor)
	return "", ""
}

func (w *World) editBreak(pos Vec3i, actor string) (string, string) {
	id := w.chunks.BlockAt(pos.X, pos.Y, pos.Z)
	if id == w.blocks.air {
		return protocol.ErrInvalidTarget, "nothing to break"
	}
	if !w.blocks.defs[int(id)].Breakable {
		return protocol.ErrUnbreakable, "block cannot be broken"
	}
	w.breakBlockAt(pos, actor)
	return "", ""
}

func (w *World) toggleAt(pos Vec3i, actor string) (string, string) {
	id := w.chunks.BlockAt(pos.X, pos.Y, pos.Z)
	def := w.blocks.defs[int(id)]
	switch def.Behavior {
	case "lever":
		w.setOn(pos, !w.onStateAt(pos), actor, "toggle")
	case "button":
		// Pressing an already-pressed button restarts its timer.
		w.setOn(pos, true, actor, "press")
		delay := uint64(def.DelayTicks)
		if delay == 0 {
			delay = 10
		}
		w.schedule[pos] = scheduledAction{Due: w.tick.Load() + delay, Action: schedRelease}
	default:
		return protocol.ErrInvalidTarget, "not a switch"
	}
	return "", ""
}

// placeBlockAt writes the block and runs the post-place protocol:
// wire registration with the engine, then neighbor and shape updates.
// Non-wire blocks get one update themselves so a lamp placed next to a
// hot wire lights without waiting for an unrelated neighbor change.
func (w *World) placeBlockAt(pos Vec3i, st signal.BlockState, actor string) {
	w.writeState(pos, st, actor, "PLACE_BLOCK", "")
	if st.IsWire() {
		w.engine.OnWireAdded(pos)
	} else {
		w.GetBlockState(pos).Update(w, pos, pos)
	}
	w.UpdateNeighbors(pos)
	w.UpdateNeighborShapes(pos, w.GetBlockState(pos))
}

func (w *World) breakBlockAt(pos Vec3i, actor string) {
	prev := w.GetBlockState(pos)
	w.writeState(pos, signal.AirState(), actor, "BREAK_BLOCK", "")
	// A pending button release dies with its block.
	delete(w.schedule, pos)
	if prev.IsWire() {
		w.engine.OnWireRemoved(pos, prev)
	}
	w.UpdateNeighbors(pos)
	w.UpdateNeighborShapes(pos, signal.AirState())
}

// replayEdit re-applies a logged edit without validation: the log only
// marks edits that passed it the first time.
func (w *World) replayEdit(e EditLogEntry) {
	pos := vec(e.Pos)
	switch e.Action {
	case protocol.EditPlaceBlock:
		id, _, ok := w.blocks.lookup(e.Block)
		if !ok {
			return
		}
		w.placeBlockAt(pos, signal.StateOf(w.blocks.blockByID(id)), e.Client)
	case protocol.EditBreakBlock:
		w.breakBlockAt(pos, e.Client)
	case protocol.EditToggle:
		w.toggleAt(pos, e.Client)
	}
}

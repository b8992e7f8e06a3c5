package world

import (
	"signalcraft.ai/internal/protocol"
	"signalcraft.ai/internal/sim/signal"
)

// The world is the block surface the signal engine runs against.
// Reads assemble a BlockState from the chunk store and the sidecars;
// they never materialize a chunk, so observing an untouched region
// leaves the state digest alone.
func (w *World) GetBlockState(pos signal.Vec3i) signal.BlockState {
	id := w.chunks.BlockAt(pos.X, pos.Y, pos.Z)
	st := signal.StateOf(w.blocks.blockByID(id))
	if w.blocks.isWire(id) {
		st = st.WithPower(w.wirePower[pos])
	} else if w.blocks.stateful(id) {
		st = st.WithOn(w.onState[pos])
	}
	return st
}

// SetBlockState is the engine's write path: wire power during a power
// phase, air when it breaks an unsupported wire mid settle.
func (w *World) SetBlockState(pos signal.Vec3i, st signal.BlockState) bool {
	reason := "settle"
	if st.IsAir() {
		reason = "unsupported"
	}
	return w.writeState(pos, st, actorSignal, "SET_BLOCK", reason)
}

// writeState is the only place block content changes. It keeps the
// sidecars aligned with the palette id and records the mutation. Wire
// power changes are not audited; the settle summary in the tick log
// accounts for them.
func (w *World) writeState(pos Vec3i, st signal.BlockState, actor, action, reason string) bool {
	newID, ok := w.blocks.idOf(st.Block())
	if !ok {
		return false
	}
	oldID := w.chunks.BlockAt(pos.X, pos.Y, pos.Z)

	changed := false
	if oldID != newID {
		w.chunks.SetBlock(pos.X, pos.Y, pos.Z, newID)
		if w.blocks.isWire(oldID) && !w.blocks.isWire(newID) {
			delete(w.wirePower, pos)
		}
		if w.blocks.stateful(oldID) && !w.blocks.stateful(newID) {
			delete(w.onState, pos)
		}
		w.audit(pos, w.blocks.name(oldID), w.blocks.name(newID), actor, action, reason)
		w.broadcast(blockSetEvent(w.tick.Load(), pos, w.blocks.name(newID), actor))
		changed = true
	}

	if w.blocks.isWire(newID) {
		if oldID != newID {
			// Materialize the sidecar entry so idle wires are listed
			// alongside powered ones.
			w.wirePower[pos] = st.Power()
		} else if w.wirePower[pos] != st.Power() {
			w.wirePower[pos] = st.Power()
			changed = true
		}
	} else if w.blocks.stateful(newID) && w.onStateAt(pos) != st.On() {
		w.storeOn(pos, st.On())
		changed = true
	}
	return changed
}

func (w *World) onStateAt(pos Vec3i) bool { return w.onState[pos] }

func (w *World) storeOn(pos Vec3i, on bool) {
	if on {
		w.onState[pos] = true
	} else {
		delete(w.onState, pos)
	}
}

// setOn flips the activation flag of a lever, button or lamp and tells
// the neighbors. No-op when the block is not stateful or already in
// the requested state.
func (w *World) setOn(pos Vec3i, on bool, actor, reason string) {
	id := w.chunks.BlockAt(pos.X, pos.Y, pos.Z)
	if !w.blocks.stateful(id) || w.onStateAt(pos) == on {
		return
	}
	w.storeOn(pos, on)

	name := w.blocks.name(id)
	w.audit(pos, stateName(name, !on), stateName(name, on), actor, "SET_STATE", reason)
	w.broadcast(switchEvent(w.tick.Load(), pos, name, on, actor))
	w.UpdateNeighbors(pos)
}

func stateName(name string, on bool) string {
	if on {
		return name + "[on]"
	}
	return name + "[off]"
}

// UpdateNeighbors delivers a block update to the six neighbors in the
// engine's canonical order.
func (w *World) UpdateNeighbors(pos signal.Vec3i) {
	for _, d := range signal.DefaultUpdateOrder {
		np := pos.Offset(d)
		w.GetBlockState(np).Update(w, np, pos)
	}
}

// UpdateNeighborShapes tells the six neighbors that the block at pos
// changed shape. Each neighbor's hook sees the direction pointing from
// itself toward pos.
func (w *World) UpdateNeighborShapes(pos signal.Vec3i, st signal.BlockState) {
	for _, d := range signal.DefaultUpdateOrder {
		np := pos.Offset(d)
		w.GetBlockState(np).UpdateShape(w, np, d.Opposite(), pos, st)
	}
}

// bestNeighborSignal is what lamps sense: the strongest signal held by
// an adjacent wire or emitted by an adjacent source.
func (w *World) bestNeighborSignal(pos Vec3i) int {
	best := 0
	for _, d := range signal.DefaultUpdateOrder {
		np := pos.Offset(d)
		st := w.GetBlockState(np)
		if st.IsWire() {
			if p := st.Power(); p > best {
				best = p
			}
			continue
		}
		if st.IsSignalSource(signal.Redstone) {
			if p := st.Signal(w, np, d, signal.Redstone); p > best {
				best = p
			}
		}
	}
	return best
}

// breakUnsupported drops a wire that lost its support outside of a
// settle. The engine handles the ones it finds during one itself.
func (w *World) breakUnsupported(pos signal.Vec3i, st signal.BlockState) {
	if !st.IsWire() {
		return
	}
	if !w.writeState(pos, signal.AirState(), actorWorld, "BREAK_BLOCK", "unsupported") {
		return
	}
	w.engine.OnWireRemoved(pos, st)
	w.UpdateNeighbors(pos)
	w.UpdateNeighborShapes(pos, signal.AirState())
}

func blockSetEvent(tick uint64, pos Vec3i, block, by string) protocol.Event {
	e := protocol.Event{
		"t":     tick,
		"type":  "BLOCK_SET",
		"pos":   pos.ToArray(),
		"block": block,
	}
	if by != "" {
		e["by"] = by
	}
	return e
}

func switchEvent(tick uint64, pos Vec3i, block string, on bool, by string) protocol.Event {
	e := protocol.Event{
		"t":     tick,
		"type":  "SWITCH_SET",
		"pos":   pos.ToArray(),
		"block": block,
		"on":    on,
	}
	if by != "" {
		e["by"] = by
	}
	return e
}

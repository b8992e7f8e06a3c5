package world

import "signalcraft.ai/internal/sim/signal"

// runSchedule fires due scheduled actions in position order.
func (w *World) runSchedule(nowTick uint64) {
	if len(w.schedule) == 0 {
		return
	}
	var due []Vec3i
	for pos, s := range w.schedule {
		if s.Due <= nowTick {
			due = append(due, pos)
		}
	}
	if len(due) == 0 {
		return
	}
	sortVec3i(due)
	for _, pos := range due {
		act := w.schedule[pos]
		delete(w.schedule, pos)
		switch act.Action {
		case schedRelease:
			w.setOn(pos, false, actorWorld, "release")
		}
	}
}

// runRandomTicks hands each materialized chunk its random ticks. The
// key list is fixed up front: a grass spread may materialize a new
// chunk, and that one must wait for the next tick.
func (w *World) runRandomTicks(nowTick uint64) {
	n := w.cfg.RandomTicksPerTick
	if n <= 0 {
		return
	}
	for _, key := range w.chunks.SortedKeys() {
		base := hash3(w.cfg.Seed, key.CX, key.CY, key.CZ)
		for i := 0; i < n; i++ {
			r := mix64(base ^ (nowTick+1)*0xbf58476d1ce4e5b9 ^ uint64(i)*0x9e3779b97f4a7c15)
			idx := int(r & (chunkVolume - 1))
			pos := Vec3i{
				X: key.CX*chunkSize + (idx & 15),
				Y: key.CY*chunkSize + ((idx >> 8) & 15),
				Z: key.CZ*chunkSize + ((idx >> 4) & 15),
			}
			w.randomTickAt(pos, r>>12)
		}
	}
}

func (w *World) randomTickAt(pos Vec3i, r uint64) {
	id := w.chunks.BlockAt(pos.X, pos.Y, pos.Z)
	if w.blocks.defs[int(id)].Behavior == "grass" {
		w.tickGrass(pos, r)
	}
}

// tickGrass: buried grass turns to dirt; open grass creeps onto a
// diagonal dirt neighbor whose top is clear. Only full diagonals
// spread, so lone grass in a dirt plain fills it corner by corner.
func (w *World) tickGrass(pos Vec3i, r uint64) {
	if w.solidAt(pos.X, pos.Y+1, pos.Z) {
		w.setWorldBlock(pos, w.dirtID, "smothered")
		return
	}
	xo := int(r%3) - 1
	yo := int(r/3%3) - 1
	zo := int(r/9%3) - 1
	if xo == 0 || yo == 0 || zo == 0 {
		return
	}
	t := Vec3i{X: pos.X + xo, Y: pos.Y + yo, Z: pos.Z + zo}
	if !w.inBounds(t) {
		return
	}
	if w.chunks.BlockAt(t.X, t.Y, t.Z) != w.dirtID {
		return
	}
	if w.solidAt(t.X, t.Y+1, t.Z) {
		return
	}
	w.setWorldBlock(t, w.grassID, "spread")
}

func (w *World) solidAt(x, y, z int) bool {
	return w.blocks.defs[int(w.chunks.BlockAt(x, y, z))].Solid
}

// setWorldBlock is the mutation path for world-initiated block swaps.
func (w *World) setWorldBlock(pos Vec3i, id uint16, reason string) {
	st := signal.StateOf(w.blocks.blockByID(id))
	if !w.writeState(pos, st, actorWorld, "SET_BLOCK", reason) {
		return
	}
	w.UpdateNeighbors(pos)
	w.UpdateNeighborShapes(pos, st)
}

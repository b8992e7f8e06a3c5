package world

import (
	"fmt"

	"signalcraft.ai/internal/persistence/snapshot"
	"signalcraft.ai/internal/sim/catalogs"
)

// ExportSnapshot captures the state at the end of tick nowTick. Every
// section is emitted in sorted order so equal states produce equal
// snapshot bytes.
func (w *World) ExportSnapshot(nowTick uint64) snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header:             snapshot.Header{Version: 1, WorldID: w.cfg.ID, Tick: nowTick},
		Seed:               w.cfg.Seed,
		TickRate:           w.cfg.TickRateHz,
		ObsRadius:          w.cfg.ObsRadius,
		Height:             w.cfg.Height,
		BoundaryR:          w.cfg.BoundaryR,
		SnapshotEveryTicks: int(w.cfg.SnapshotEveryTicks),
		RandomTicksPerTick: w.cfg.RandomTicksPerTick,
		MaxEditsPerAct:     w.cfg.MaxEditsPerAct,
		RateLimits: snapshot.RateLimitsV1{
			EditWindowTicks: w.cfg.RateLimits.EditWindowTicks,
			EditMax:         w.cfg.RateLimits.EditMax,
		},
		Counters: snapshot.CountersV1{NextClient: w.nextClientNum.Load()},
	}

	for _, k := range w.chunks.SortedKeys() {
		c, ok := w.chunks.ChunkAt(k)
		if !ok {
			continue
		}
		snap.Chunks = append(snap.Chunks, snapshot.ChunkV1{
			CX:     k.CX,
			CY:     k.CY,
			CZ:     k.CZ,
			Blocks: append([]uint16(nil), c.Blocks...),
		})
	}
	for _, p := range sortedKeys(w.wirePower) {
		snap.Wires = append(snap.Wires, snapshot.WireV1{Pos: p.ToArray(), Power: w.wirePower[p]})
	}
	for _, p := range sortedKeys(w.onState) {
		snap.Switches = append(snap.Switches, snapshot.SwitchV1{Pos: p.ToArray(), On: w.onState[p]})
	}
	for _, p := range sortedKeys(w.schedule) {
		s := w.schedule[p]
		snap.Schedule = append(snap.Schedule, snapshot.ScheduledTickV1{Pos: p.ToArray(), Due: s.Due, Action: s.Action})
	}
	return snap
}

// NewFromSnapshot builds a world resuming at the tick after the one
// the snapshot captured.
func NewFromSnapshot(snap snapshot.SnapshotV1, cats *catalogs.Catalogs) (*World, error) {
	cfg := WorldConfig{
		ID:                 snap.Header.WorldID,
		TickRateHz:         snap.TickRate,
		ObsRadius:          snap.ObsRadius,
		Height:             snap.Height,
		Seed:               snap.Seed,
		BoundaryR:          snap.BoundaryR,
		SnapshotEveryTicks: uint64(snap.SnapshotEveryTicks),
		RandomTicksPerTick: snap.RandomTicksPerTick,
		MaxEditsPerAct:     snap.MaxEditsPerAct,
		RateLimits: RateLimitConfig{
			EditWindowTicks: snap.RateLimits.EditWindowTicks,
			EditMax:         snap.RateLimits.EditMax,
		},
	}
	w, err := New(cfg, cats)
	if err != nil {
		return nil, err
	}

	for _, ch := range snap.Chunks {
		if len(ch.Blocks) != chunkVolume {
			return nil, fmt.Errorf("chunk (%d,%d,%d): %d blocks, want %d", ch.CX, ch.CY, ch.CZ, len(ch.Blocks), chunkVolume)
		}
		w.chunks.PutChunk(ChunkKey{CX: ch.CX, CY: ch.CY, CZ: ch.CZ}, ch.Blocks)
	}
	for _, wi := range snap.Wires {
		p := vec(wi.Pos)
		if !w.blocks.isWire(w.chunks.BlockAt(p.X, p.Y, p.Z)) {
			return nil, fmt.Errorf("wire power at %v without a wire block", wi.Pos)
		}
		w.wirePower[p] = wi.Power
	}
	for _, sw := range snap.Switches {
		if sw.On {
			w.onState[vec(sw.Pos)] = true
		}
	}
	for _, st := range snap.Schedule {
		w.schedule[vec(st.Pos)] = scheduledAction{Due: st.Due, Action: st.Action}
	}
	w.nextClientNum.Store(snap.Counters.NextClient)
	w.tick.Store(snap.Header.Tick + 1)
	return w, nil
}

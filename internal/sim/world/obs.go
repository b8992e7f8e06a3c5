package world

import (
	"signalcraft.ai/internal/protocol"
	"signalcraft.ai/internal/sim/encoding"
)

// buildObs assembles the cube around the client's focus. One scan
// fills the voxel slice and collects the wire and switch overlays;
// reads go through the chunk store, so untouched terrain is answered
// by the generator without materializing anything.
func (w *World) buildObs(c *clientState, nowTick uint64, digest string) protocol.ObsMsg {
	r := w.cfg.ObsRadius
	dim := 2*r + 1
	focus := c.Focus

	curr := make([]uint16, dim*dim*dim)
	var wires []protocol.WireObs
	var switches []protocol.SwitchObs

	i := 0
	for dy := -r; dy <= r; dy++ {
		for dz := -r; dz <= r; dz++ {
			for dx := -r; dx <= r; dx++ {
				x, y, z := focus.X+dx, focus.Y+dy, focus.Z+dz
				id := w.chunks.BlockAt(x, y, z)
				curr[i] = id
				i++
				if w.blocks.isWire(id) {
					wires = append(wires, protocol.WireObs{
						Pos:   [3]int{x, y, z},
						Power: w.wirePower[Vec3i{X: x, Y: y, Z: z}],
					})
				} else if w.blocks.stateful(id) {
					switches = append(switches, protocol.SwitchObs{
						Pos: [3]int{x, y, z},
						On:  w.onState[Vec3i{X: x, Y: y, Z: z}],
					})
				}
			}
		}
	}

	vox := protocol.VoxelsObs{Center: focus.ToArray(), Radius: r}
	sendDelta := false
	var ops []protocol.VoxelDeltaOp
	if c.DeltaVoxels && c.hasLast && c.lastFocus == focus && len(c.lastVoxels) == len(curr) {
		ops = buildDeltaOps(c.lastVoxels, curr, r)
		// A delta only pays off while it is clearly smaller than the
		// keyframe; empty deltas still send a keyframe so clients can
		// re-sync without tracking state forever.
		sendDelta = len(ops) > 0 && len(ops) < len(curr)/2
	}
	if sendDelta {
		vox.Encoding = "DELTA"
		vox.Ops = ops
	} else {
		vox.Encoding = "RLE"
		vox.Data = encoding.EncodeRLE(curr)
	}

	c.lastVoxels = curr
	c.lastFocus = focus
	c.hasLast = true

	events := make([]protocol.Event, 0, len(w.broadcasts)+len(c.events))
	events = append(events, w.broadcasts...)
	events = append(events, c.takeEvents()...)

	return protocol.ObsMsg{
		Type:            protocol.TypeObs,
		ProtocolVersion: protocol.Version,
		Tick:            nowTick,
		ClientID:        c.ID,
		Focus:           focus.ToArray(),
		Voxels:          vox,
		Wires:           wires,
		Switches:        switches,
		Events:          events,
		Digest:          digest,
	}
}

// buildDeltaOps diffs two cubes of the same dim in the scan order the
// cube was built with. Op offsets are relative to the center.
func buildDeltaOps(prev, curr []uint16, r int) []protocol.VoxelDeltaOp {
	var ops []protocol.VoxelDeltaOp
	i := 0
	for dy := -r; dy <= r; dy++ {
		for dz := -r; dz <= r; dz++ {
			for dx := -r; dx <= r; dx++ {
				if prev[i] != curr[i] {
					ops = append(ops, protocol.VoxelDeltaOp{D: [3]int{dx, dy, dz}, B: curr[i]})
				}
				i++
			}
		}
	}
	return ops
}

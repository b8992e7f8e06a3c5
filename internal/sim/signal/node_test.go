package signal

import "testing"

func TestOfferPower(t *testing.T) {
	w := newWireNode(Vec3i{}, StateOf(tWire))

	if !w.offerPower(5, SideWest) {
		t.Fatal("raising offer refused")
	}
	if w.virtualPower != 5 || w.flowIn != sideFlow[SideWest] {
		t.Fatalf("after raise: power %d, flow %04b", w.virtualPower, w.flowIn)
	}

	// Equal offers merge their flow without reporting a raise.
	if w.offerPower(5, SideNorth) {
		t.Fatal("equal offer reported a raise")
	}
	if w.flowIn != sideFlow[SideWest]|sideFlow[SideNorth] {
		t.Fatalf("equal offer flow %04b", w.flowIn)
	}

	// Lower offers change nothing.
	if w.offerPower(3, SideEast) {
		t.Fatal("lower offer accepted")
	}
	if w.virtualPower != 5 || w.flowIn != sideFlow[SideWest]|sideFlow[SideNorth] {
		t.Fatalf("lower offer disturbed state: power %d, flow %04b", w.virtualPower, w.flowIn)
	}

	// A raise resets the accumulated flow.
	if !w.offerPower(9, SideEast) {
		t.Fatal("higher offer refused")
	}
	if w.virtualPower != 9 || w.flowIn != sideFlow[SideEast] {
		t.Fatalf("after second raise: power %d, flow %04b", w.virtualPower, w.flowIn)
	}

	w.removed = true
	if w.offerPower(15, SideWest) {
		t.Fatal("removed wire accepted power")
	}
}

func TestWireNodeFromState(t *testing.T) {
	st := StateOf(tWire).WithPower(7)
	w := newWireNode(Vec3i{X: 2}, st)

	if w.kind != tWireType {
		t.Fatal("wrong wire kind")
	}
	if w.currentPower != 7 || w.virtualPower != 7 {
		t.Fatalf("power = %d/%d, want 7/7", w.currentPower, w.virtualPower)
	}
	if w.externalPower != tWireType.Min-1 {
		t.Fatalf("external power = %d, want unknown", w.externalPower)
	}
	if w.iFlowDir != -1 {
		t.Fatalf("flow dir = %v, want none", w.iFlowDir)
	}
	if !w.node.isWire() || w.node.wire != w {
		t.Fatal("node does not point back at its wire")
	}

	// Out of range power clamps on entry.
	hot := newWireNode(Vec3i{}, StateOf(tWire).WithPower(99))
	if hot.currentPower != tWireType.Max {
		t.Fatalf("power %d not clamped to %d", hot.currentPower, tWireType.Max)
	}
}

func TestNodeReset(t *testing.T) {
	n := &node{}
	n.set(Vec3i{X: 1}, StateOf(tStone), true)
	n.queued = true
	other := &node{}
	n.neighbors[East] = other

	// Refreshing in place keeps queue membership and neighbor links.
	n.set(Vec3i{X: 1}, StateOf(tGlass), false)
	if !n.queued || n.neighbors[East] != other {
		t.Fatal("in place refresh dropped bookkeeping")
	}

	// Reuse for a different cell starts clean.
	n.set(Vec3i{X: 5}, StateOf(tStone), true)
	if n.queued || n.neighbors[East] != nil {
		t.Fatal("pooled reuse kept stale bookkeeping")
	}
	if n.pos != (Vec3i{X: 5}) || !n.state.Is(tStone) {
		t.Fatal("pooled reuse did not take the new cell")
	}
}

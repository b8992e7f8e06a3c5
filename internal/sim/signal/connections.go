package signal

// wireConnection is one link from a wire to a nearby wire. out means
// this wire transmits to the peer, in means the peer feeds this wire.
// A link where only one endpoint reaches out is valid and directed.
type wireConnection struct {
	peer *wireNode
	side ConnectionSide
	in   bool
	out  bool
}

// wireConnections holds the links of one wire, indexed by side.
type wireConnections struct {
	wire   *wireNode
	bySide [sideCount]wireConnection
	total  int

	// iFlowDir is the flow direction implied by link placement alone,
	// used as a fallback when in-flow is ambiguous. -1 when the links
	// themselves are ambiguous.
	iFlowDir Direction
}

// set rebuilds the links by probing all 18 sides through the node
// provider. out consults this wire's connection rule toward the side,
// in consults the peer's rule back, so the two endpoints of a link
// always agree on its direction.
func (c *wireConnections) set(w World, provider func(Vec3i) *node) {
	c.bySide = [sideCount]wireConnection{}
	c.total = 0

	wire := c.wire
	flow := uint8(0)
	for side := ConnectionSide(0); side < sideCount; side++ {
		n := provider(wire.pos.OffsetSide(side))
		if !n.isWire() {
			continue
		}
		peer := n.wire
		out := wire.state.ShouldConnectToWire(w, wire.pos, side, peer.kind)
		in := peer.state.ShouldConnectToWire(w, peer.pos, side.Opposite(), wire.kind)
		if !in && !out {
			continue
		}
		c.bySide[side] = wireConnection{peer: peer, side: side, in: in, out: out}
		c.total++
		flow |= side.flow()
	}
	c.iFlowDir = flowOut[flow]
}

// forEach visits present links in the update order of the given flow
// direction.
func (c *wireConnections) forEach(iFlowDir Direction, fn func(*wireConnection)) {
	for _, side := range &connectionUpdateOrders[iFlowDir] {
		if conn := &c.bySide[side]; conn.peer != nil {
			fn(conn)
		}
	}
}

package signal

// node is one cell in the lazily built block graph around a wire
// network. Plain nodes are pooled and reused between updates, wire
// nodes are allocated fresh.
type node struct {
	pos   Vec3i
	state BlockState

	// neighbors caches adjacent nodes by direction, filled on demand.
	neighbors [directionCount]*node

	// wire points back to the owning wireNode, nil for plain blocks.
	wire *wireNode

	// neighborWire is the wire that queued this node for a block
	// update.
	neighborWire *wireNode

	invalid bool
	queued  bool
}

func (n *node) isWire() bool { return n.wire != nil }

func (n *node) isConductor(d Direction, t *SignalType) bool {
	return n.state.IsSignalConductor(d, t)
}

func (n *node) isSource(t *SignalType) bool {
	return n.state.IsSignalSource(t)
}

// set repurposes a pooled node for a new cell. Neighbor links and the
// queued flag are dropped on reuse and kept on revalidation, so a node
// sitting in the update queue stays deduplicated across revalidations.
func (n *node) set(pos Vec3i, state BlockState, clearNeighbors bool) *node {
	n.pos = pos
	n.state = state
	if clearNeighbors {
		n.neighbors = [directionCount]*node{}
		n.neighborWire = nil
		n.queued = false
	}
	n.invalid = false
	return n
}

// wireNode carries the per-wire bookkeeping of one settle: virtual
// power while the network is rebalanced, the incoming flow mask and
// the search state.
type wireNode struct {
	node

	kind *WireType

	currentPower  int
	virtualPower  int
	externalPower int

	// flowIn is the 4-bit mask of cardinal travel directions power
	// arrived through, iFlowDir the single direction derived from it.
	flowIn   uint8
	iFlowDir Direction

	connections wireConnections

	added       bool
	removed     bool
	shouldBreak bool

	root       bool
	discovered bool
	searched   bool

	// nextToSearch links the intrusive search queue.
	nextToSearch *wireNode
}

func newWireNode(pos Vec3i, state BlockState) *wireNode {
	w := &wireNode{kind: state.WireType()}
	w.node.pos = pos
	w.node.state = state
	w.node.wire = w
	w.currentPower = w.kind.clamp(state.Power())
	w.virtualPower = w.currentPower
	w.externalPower = w.kind.Min - 1
	w.iFlowDir = -1
	w.connections.wire = w
	return w
}

// offerPower proposes power arriving through the given side. A higher
// offer replaces the virtual power and resets the flow mask; an equal
// offer only merges its flow bits. Only a raise reports true.
func (w *wireNode) offerPower(power int, side ConnectionSide) bool {
	if w.removed || w.shouldBreak {
		return false
	}
	if power == w.virtualPower {
		w.flowIn |= side.flow()
		return false
	}
	if power > w.virtualPower {
		w.virtualPower = power
		w.flowIn = side.flow()
		return true
	}
	return false
}

// Package signal implements power propagation through wire networks.
//
// Wires form networks through their connections. When a network is
// disturbed, the handler settles it in three phases: a breadth-first
// search of the connected wires starting from the roots (the wires
// whose power no longer matches their surroundings), a depower pass
// that drops every searched wire to the power its surroundings provide,
// and a power pass that transmits power back through the network and
// writes the results to the world. Block and shape updates fan out in
// an order derived from the direction of power flow, never from
// coordinate hashing, so identical layouts settle identically anywhere
// in the world.
//
// The handler builds a node graph lazily around the disturbed network
// and reuses node allocations between settles. World writes during the
// power phase may re-enter the handler; re-entrant settles share the
// update queue of the enclosing one.
package signal

// Stats counts the work done by a handler since creation. Nested
// settles triggered from within a power phase count separately.
type Stats struct {
	Settles      uint64
	WiresSet     uint64
	BlockUpdates uint64
	ShapeUpdates uint64
}

// Handler settles wire networks in one world. It is not safe for
// concurrent use; all calls must come from the world's update thread.
type Handler struct {
	world World

	nodes     map[Vec3i]*node
	nodeCache []*node
	nodeCount int

	search  wireQueue
	updates nodeQueue

	updating bool

	stats Stats
}

func NewHandler(world World) *Handler {
	h := &Handler{
		world:     world,
		nodes:     make(map[Vec3i]*node),
		nodeCache: make([]*node, 16),
	}
	for i := range h.nodeCache {
		h.nodeCache[i] = &node{}
	}
	return h
}

// Stats returns a snapshot of the handler's counters.
func (h *Handler) Stats() Stats { return h.stats }

// OnWireUpdate settles the network around a wire that received a block
// update. No-op if the position does not hold a wire.
func (h *Handler) OnWireUpdate(pos Vec3i) {
	h.invalidate()
	h.findRoots(pos)
	h.tryUpdate()
}

// OnWireAdded settles the network around a freshly placed wire.
func (h *Handler) OnWireAdded(pos Vec3i) {
	n := h.getOrAddNode(pos)
	if !n.isWire() {
		return
	}
	wire := n.wire
	wire.added = true

	h.invalidate()
	h.revalidateNode(n)
	h.findRoot(wire)
	h.tryUpdate()
}

// OnWireRemoved settles the network around a wire that was just taken
// out of the world. state is the state the wire had before removal.
func (h *Handler) OnWireRemoved(pos Vec3i, state BlockState) {
	var wire *wireNode
	if n := h.removeNode(pos); n == nil || !n.isWire() {
		wire = newWireNode(pos, state)
	} else {
		wire = n.wire
	}
	wire.invalid = true
	wire.removed = true

	// If this removal is the settle's own doing the network already
	// accounts for it.
	if h.updating && wire.shouldBreak {
		return
	}

	h.invalidate()
	h.revalidateNode(&wire.node)
	h.findRoot(wire)
	h.tryUpdate()
}

// invalidate marks all cached nodes stale. Needed when world changes
// arrive mid settle: the nodes may no longer match the world, so they
// are revalidated on next access instead of trusted.
func (h *Handler) invalidate() {
	if h.updating && len(h.nodes) > 0 {
		for _, n := range h.nodes {
			n.invalid = true
		}
	}
}

func (h *Handler) getOrAddNode(pos Vec3i) *node {
	n, ok := h.nodes[pos]
	if !ok {
		n = h.nextNode(pos)
		h.nodes[pos] = n
		return n
	}
	if n.invalid {
		state := h.world.GetBlockState(pos)
		if n.isWire() != state.IsWire() || (state.IsWire() && !state.Is(n.state.Block())) {
			// The cell changed kind, the node cannot be refreshed.
			n = h.nextNodeAt(pos, state)
			h.nodes[pos] = n
			return n
		}
		h.revalidateNode(n)
	}
	return n
}

func (h *Handler) removeNode(pos Vec3i) *node {
	n := h.nodes[pos]
	delete(h.nodes, pos)
	return n
}

// revalidateNode refreshes a stale node in place. Wire nodes keep
// their state snapshot and only reset their search flags; the snapshot
// is refreshed when their power is written.
func (h *Handler) revalidateNode(n *node) {
	if !n.invalid {
		return
	}
	n.invalid = false
	if w := n.wire; w != nil {
		w.root = false
		w.discovered = false
		w.searched = false
	} else {
		n.set(n.pos, h.world.GetBlockState(n.pos), false)
	}
}

func (h *Handler) nextNode(pos Vec3i) *node {
	return h.nextNodeAt(pos, h.world.GetBlockState(pos))
}

// nextNodeAt hands out a node for the given cell. Wire nodes carry per
// settle bookkeeping and are allocated fresh, anything else reuses the
// pooled nodes.
func (h *Handler) nextNodeAt(pos Vec3i, state BlockState) *node {
	if state.IsWire() {
		return &newWireNode(pos, state).node
	}
	return h.nextCacheNode().set(pos, state, true)
}

func (h *Handler) nextCacheNode() *node {
	if h.nodeCount == len(h.nodeCache) {
		h.growNodeCache()
	}
	n := h.nodeCache[h.nodeCount]
	h.nodeCount++
	return n
}

func (h *Handler) growNodeCache() {
	cache := make([]*node, 2*len(h.nodeCache))
	n := copy(cache, h.nodeCache)
	for i := n; i < len(cache); i++ {
		cache[i] = &node{}
	}
	h.nodeCache = cache
}

// getNeighbor returns the node adjacent to n in direction d, linking
// the two so repeated lookups skip the map.
func (h *Handler) getNeighbor(n *node, d Direction) *node {
	neighbor := n.neighbors[d]
	if neighbor == nil || neighbor.invalid {
		next := h.getOrAddNode(n.pos.Offset(d))
		if next != neighbor {
			neighbor = next
			n.neighbors[d] = neighbor
			neighbor.neighbors[d.Opposite()] = n
		}
	}
	return neighbor
}

// findRoots looks for roots around the wire at pos: the wire itself,
// and wires powered through shared conductors or sources next to it.
// The latter covers networks a power source feeds at several points.
func (h *Handler) findRoots(pos Vec3i) {
	n := h.getOrAddNode(pos)
	if !n.isWire() {
		return
	}
	wire := n.wire
	h.findRoot(wire)

	if !wire.searched || wire.connections.total == 0 {
		return
	}
	for _, d := range &fullUpdateOrders[wire.iFlowDir] {
		neighbor := h.getNeighbor(&wire.node, d)
		opp := d.Opposite()
		if neighbor.isConductor(opp, Any) || neighbor.isSource(Any) {
			h.findRootsAround(neighbor, opp)
		}
	}
}

func (h *Handler) findRootsAround(n *node, except Direction) {
	for _, d := range exceptCardinalDirections[except] {
		neighbor := h.getNeighbor(n, d)
		if neighbor.isWire() {
			h.findRoot(neighbor.wire)
		}
	}
}

func (h *Handler) findRoot(wire *wireNode) {
	if wire.discovered {
		return
	}
	h.discover(wire)
	h.findExternalPower(wire)

	// Wires with no power step initially ignore power from their
	// neighbors, otherwise loops of them would sustain themselves.
	// Only when external power alone leaves them unchanged is wire
	// power considered.
	if wire.kind.Step != 0 || !h.needsUpdate(wire) {
		h.findPower(wire, false)
	}
	if h.needsUpdate(wire) {
		h.searchRoot(wire)
	}
}

// discover prepares a wire for this settle: virtual power starts at
// the current power, external power is unknown, and the connections
// are rebuilt.
func (h *Handler) discover(wire *wireNode) {
	if wire.discovered {
		return
	}
	wire.discovered = true
	wire.searched = false

	if !wire.removed && !wire.shouldBreak && !wire.state.CanExist(h.world, wire.pos) {
		wire.shouldBreak = true
	}

	wire.virtualPower = wire.currentPower
	wire.externalPower = wire.kind.Min - 1
	wire.connections.set(h.world, h.getOrAddNode)
}

// findPower recomputes a wire's virtual power from scratch: external
// power first, then the best offer from connected wires. With
// ignoreSearched set, wires already searched into the network are
// skipped; during the depower phase their old power must not count.
func (h *Handler) findPower(wire *wireNode, ignoreSearched bool) {
	wire.virtualPower = wire.externalPower
	wire.flowIn = 0

	if wire.removed || wire.shouldBreak {
		return
	}
	if wire.externalPower < wire.kind.Max {
		h.findWirePower(wire, ignoreSearched)
	}
}

func (h *Handler) findWirePower(wire *wireNode, ignoreSearched bool) {
	for i := range wire.connections.bySide {
		c := &wire.connections.bySide[i]
		if c.peer == nil || !c.in {
			continue
		}
		if ignoreSearched && c.peer.searched {
			continue
		}
		step := wire.kind.Step
		if s := c.peer.kind.Step; s > step {
			step = s
		}
		power := c.peer.virtualPower - step
		if power < wire.kind.Min {
			power = wire.kind.Min
		}
		wire.offerPower(power, c.side.Opposite())
	}
}

func (h *Handler) findExternalPower(wire *wireNode) {
	if wire.removed || wire.shouldBreak || wire.externalPower >= wire.kind.Min {
		return
	}
	wire.externalPower = h.getExternalPower(wire)
	if wire.externalPower > wire.virtualPower {
		wire.virtualPower = wire.externalPower
	}
}

// getExternalPower collects power reaching the wire from non-wire
// neighbors: signals emitted by sources directly, and direct signals
// pushed through conducting faces.
func (h *Handler) getExternalPower(wire *wireNode) int {
	power := wire.kind.Min
	for d := Direction(0); d < directionCount; d++ {
		neighbor := h.getNeighbor(&wire.node, d)
		if neighbor.isWire() {
			continue
		}
		opp := d.Opposite()
		if neighbor.isConductor(opp, wire.kind.Signal) {
			if p := h.getDirectSignalTo(wire, neighbor, opp); p > power {
				power = p
			}
		}
		if neighbor.isSource(wire.kind.Signal) {
			if p := neighbor.state.Signal(h.world, neighbor.pos, d, wire.kind.Signal); p > power {
				power = p
			}
		}
		if power >= wire.kind.Max {
			return wire.kind.Max
		}
	}
	return power
}

// getDirectSignalTo collects the direct signal sources feed into a
// conductor, skipping the face the wire touches.
func (h *Handler) getDirectSignalTo(wire *wireNode, n *node, except Direction) int {
	power := wire.kind.Min
	for _, d := range &exceptDirections[except] {
		neighbor := h.getNeighbor(n, d)
		if !neighbor.isSource(wire.kind.Signal) {
			continue
		}
		if p := neighbor.state.DirectSignal(h.world, neighbor.pos, d, wire.kind.Signal); p > power {
			power = p
		}
		if power >= wire.kind.Max {
			return wire.kind.Max
		}
	}
	return power
}

func (h *Handler) needsUpdate(wire *wireNode) bool {
	return wire.removed || wire.shouldBreak || wire.virtualPower != wire.currentPower
}

func (h *Handler) searchRoot(wire *wireNode) {
	iBackup := wire.connections.iFlowDir
	if iBackup < 0 {
		iBackup = 0
	}
	h.searchWire(wire, true, iBackup)
}

func (h *Handler) searchWire(wire *wireNode, root bool, iBackup Direction) {
	h.search.offer(wire)
	wire.root = root
	wire.searched = true
	// The backup flow direction orders updates of wires whose in-flow
	// ends up empty or ambiguous.
	wire.iFlowDir = iBackup
}

func (h *Handler) tryUpdate() {
	// Nodes are kept around for the duration of a settle, including
	// any nested ones. The deferred cleanup also runs when a block
	// callback panics, so an aborted settle cannot poison the next.
	defer func() {
		if h.updating {
			return
		}
		clear(h.nodes)
		h.nodeCount = 0
		if !h.search.empty() {
			h.search = wireQueue{}
		}
		if !h.updates.empty() {
			h.updates = nodeQueue{}
		}
	}()
	if !h.search.empty() {
		h.update()
	}
}

func (h *Handler) update() {
	h.stats.Settles++
	h.searchNetwork()
	h.depowerNetwork()

	// Re-entrant settles hand their updates to the enclosing power
	// phase instead of running their own.
	if h.updating {
		return
	}
	h.updating = true
	defer func() { h.updating = false }()
	h.powerNetwork()
}

// searchNetwork expands the search queue into the full network: every
// wire reachable from a root through out-connections, stopping at
// wires whose power already matches their surroundings.
func (h *Handler) searchNetwork() {
	for wire := h.search.head; wire != nil; wire = wire.nextToSearch {
		h.findConnections(wire)
	}
}

func (h *Handler) findConnections(wire *wireNode) {
	wire.connections.forEach(wire.iFlowDir, func(c *wireConnection) {
		if !c.out || c.peer.searched {
			return
		}
		peer := c.peer
		h.discover(peer)
		if peer.kind.Step != 0 || !h.needsUpdate(peer) {
			h.findPower(peer, false)
		}
		if peer.virtualPower < peer.currentPower {
			h.findExternalPower(peer)
		}
		if h.needsUpdate(peer) {
			iBackup := flowOut[c.side.flow()]
			if iBackup < 0 {
				iBackup = 0
			}
			h.searchWire(peer, false, iBackup)
		}
	})
}

// depowerNetwork drops every searched wire to the power its
// surroundings still provide. Wires that keep power, roots and wires
// about to disappear seed the update queue; the rest sink below their
// minimum so that any real power offered later registers as a raise.
func (h *Handler) depowerNetwork() {
	for {
		wire := h.search.poll()
		if wire == nil {
			return
		}
		h.findPower(wire, true)
		if wire.root || wire.removed || wire.shouldBreak || wire.virtualPower > wire.kind.Min {
			h.queueWire(wire)
		} else {
			wire.virtualPower--
		}
	}
}

// powerNetwork drains the update queue, writing wire power back to the
// world and dispatching block updates to neighboring blocks. Roots
// update before the rest, otherwise insertion order holds.
func (h *Handler) powerNetwork() {
	for {
		n := h.updates.poll()
		if n == nil {
			return
		}
		if wire := n.wire; wire != nil {
			if !h.needsUpdate(wire) {
				continue
			}
			h.findPowerFlow(wire)
			h.transmitPower(wire)
			if h.setPower(wire) {
				h.queueNeighbors(wire)
				h.updateNeighborShapes(wire)
			}
		} else {
			h.updateBlock(n)
		}
	}
}

// findPowerFlow settles the flow direction a wire uses to order its
// updates: the in-flow mask if it is unambiguous, the direction
// implied by its connections otherwise, the search backup as a last
// resort.
func (h *Handler) findPowerFlow(wire *wireNode) {
	if flow := flowOut[wire.flowIn]; flow >= 0 {
		wire.iFlowDir = flow
	} else if wire.connections.iFlowDir >= 0 {
		wire.iFlowDir = wire.connections.iFlowDir
	}
}

// transmitPower offers this wire's power to every out-connection.
// Raised peers are queued for their own update.
func (h *Handler) transmitPower(wire *wireNode) {
	wire.connections.forEach(wire.iFlowDir, func(c *wireConnection) {
		if !c.out {
			return
		}
		peer := c.peer
		step := wire.kind.Step
		if s := peer.kind.Step; s > step {
			step = s
		}
		power := wire.virtualPower - step
		if power < peer.kind.Min {
			power = peer.kind.Min
		}
		if peer.offerPower(power, c.side) {
			h.queueWire(peer)
		}
	})
}

// queueWire schedules a wire for the power phase. Wires whose power
// does not change still pass their power along so peers behind them
// see the offers.
func (h *Handler) queueWire(wire *wireNode) {
	if h.needsUpdate(wire) {
		h.updates.offer(&wire.node)
	} else {
		h.findPowerFlow(wire)
		h.transmitPower(wire)
	}
}

func (h *Handler) queueNeighbors(wire *wireNode) {
	h.forEachNeighbor(wire, func(n *node) {
		h.queueNeighbor(n, wire)
	})
}

func (h *Handler) queueNeighbor(n *node, from *wireNode) {
	// Updates to wires are queued when power is transmitted.
	if !n.isWire() {
		n.neighborWire = from
		h.updates.offer(n)
	}
}

// setPower writes a wire's new power to the world. Returns whether
// neighbors should be told, which is also the case for freshly placed
// wires whose power happens to match.
func (h *Handler) setPower(wire *wireNode) bool {
	if wire.removed {
		return true
	}
	wire.state = h.world.GetBlockState(wire.pos)
	if !wire.state.IsWire() {
		return false
	}
	if wire.shouldBreak {
		return h.world.SetBlockState(wire.pos, AirState())
	}

	power := wire.kind.clamp(wire.virtualPower)
	if wire.state.Power() == power {
		return wire.added
	}
	wire.state = wire.state.WithPower(power)
	if h.world.SetBlockState(wire.pos, wire.state) {
		h.stats.WiresSet++
		return true
	}
	return wire.added
}

// updateBlock dispatches a block update to a non-wire block, reading
// its state fresh from the world.
func (h *Handler) updateBlock(n *node) {
	state := h.world.GetBlockState(n.pos)
	if state.IsAir() || state.IsWire() {
		return
	}
	from := n.pos
	if n.neighborWire != nil {
		from = n.neighborWire.pos
	}
	h.stats.BlockUpdates++
	state.Update(h.world, n.pos, from)
}

// updateNeighborShapes tells the blocks around an updated wire that
// its shape changed, nearest faces first.
func (h *Handler) updateNeighborShapes(wire *wireNode) {
	pos := wire.pos
	state := wire.state
	for _, d := range &DefaultUpdateOrder {
		neighbor := h.getNeighbor(&wire.node, d)
		if !neighbor.isWire() {
			h.updateShape(neighbor, d.Opposite(), pos, state)
		}
	}
}

func (h *Handler) updateShape(n *node, d Direction, fromPos Vec3i, fromState BlockState) {
	state := h.world.GetBlockState(n.pos)
	if state.IsAir() || state.IsWire() {
		return
	}
	h.stats.ShapeUpdates++
	state.UpdateShape(h.world, n.pos, d, fromPos, fromState)
}

// forEachNeighbor visits the 24 positions within a Manhattan distance
// of 2 that can observe a wire's state: the six direct neighbors, the
// twelve edge diagonals and the six positions two steps along each
// axis. Visiting order follows the wire's flow direction.
func (h *Handler) forEachNeighbor(wire *wireNode, fn func(*node)) {
	forward := wire.iFlowDir
	rightward := (forward + 1) & 0b11
	backward := (forward + 2) & 0b11
	leftward := (forward + 3) & 0b11

	front := h.getNeighbor(&wire.node, forward)
	right := h.getNeighbor(&wire.node, rightward)
	back := h.getNeighbor(&wire.node, backward)
	left := h.getNeighbor(&wire.node, leftward)
	below := h.getNeighbor(&wire.node, Down)
	above := h.getNeighbor(&wire.node, Up)

	fn(front)
	fn(back)
	fn(right)
	fn(left)
	fn(below)
	fn(above)

	fn(h.getNeighbor(front, rightward))
	fn(h.getNeighbor(back, leftward))
	fn(h.getNeighbor(front, leftward))
	fn(h.getNeighbor(back, rightward))
	fn(h.getNeighbor(front, Down))
	fn(h.getNeighbor(back, Up))
	fn(h.getNeighbor(front, Up))
	fn(h.getNeighbor(back, Down))
	fn(h.getNeighbor(right, Down))
	fn(h.getNeighbor(left, Up))
	fn(h.getNeighbor(right, Up))
	fn(h.getNeighbor(left, Down))

	fn(h.getNeighbor(front, forward))
	fn(h.getNeighbor(back, backward))
	fn(h.getNeighbor(right, rightward))
	fn(h.getNeighbor(left, leftward))
	fn(h.getNeighbor(below, Down))
	fn(h.getNeighbor(above, Up))
}

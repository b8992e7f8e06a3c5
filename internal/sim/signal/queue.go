package signal

// wireQueue is an intrusive FIFO over the nextToSearch links. Wires
// appended while the queue is being walked are picked up by the walk.
type wireQueue struct {
	head *wireNode
	tail *wireNode
}

func (q *wireQueue) offer(w *wireNode) {
	w.nextToSearch = nil
	if q.tail == nil {
		q.head = w
	} else {
		q.tail.nextToSearch = w
	}
	q.tail = w
}

func (q *wireQueue) poll() *wireNode {
	w := q.head
	if w == nil {
		return nil
	}
	q.head = w.nextToSearch
	if q.head == nil {
		q.tail = nil
	}
	w.nextToSearch = nil
	return w
}

func (q *wireQueue) empty() bool { return q.head == nil }

// nodeQueue orders the update phase: root wires drain before anything
// else, otherwise insertion order is kept. The queued flag keeps each
// node in the queue at most once; non-wires keep it set after being
// polled so they receive at most one block update per settle.
type nodeQueue struct {
	roots []*node
	rest  []*node
	iRoot int
	iRest int
}

func (q *nodeQueue) offer(n *node) {
	if n.queued {
		return
	}
	n.queued = true
	if n.isWire() && n.wire.root {
		q.roots = append(q.roots, n)
	} else {
		q.rest = append(q.rest, n)
	}
}

func (q *nodeQueue) poll() *node {
	var n *node
	switch {
	case q.iRoot < len(q.roots):
		n = q.roots[q.iRoot]
		q.roots[q.iRoot] = nil
		q.iRoot++
	case q.iRest < len(q.rest):
		n = q.rest[q.iRest]
		q.rest[q.iRest] = nil
		q.iRest++
	default:
		return nil
	}
	if n.isWire() {
		n.queued = false
	}
	if q.iRoot == len(q.roots) && q.iRest == len(q.rest) {
		q.roots = q.roots[:0]
		q.rest = q.rest[:0]
		q.iRoot, q.iRest = 0, 0
	}
	return n
}

func (q *nodeQueue) empty() bool {
	return q.iRoot == len(q.roots) && q.iRest == len(q.rest)
}

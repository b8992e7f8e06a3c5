package signal

import "testing"

func queueTestWire(t *testing.T, x int) *wireNode {
	t.Helper()
	return newWireNode(Vec3i{X: x}, StateOf(tWire))
}

func TestWireQueueFIFO(t *testing.T) {
	var q wireQueue
	w0 := queueTestWire(t, 0)
	w1 := queueTestWire(t, 1)
	w2 := queueTestWire(t, 2)

	q.offer(w0)
	q.offer(w1)
	q.offer(w2)

	for i, want := range []*wireNode{w0, w1, w2} {
		if got := q.poll(); got != want {
			t.Fatalf("poll %d = %v, want %v", i, got.pos, want.pos)
		}
	}
	if q.poll() != nil {
		t.Fatal("drained queue returned a wire")
	}
	if !q.empty() {
		t.Fatal("drained queue not empty")
	}
}

// The search phase walks the queue while still appending to it; wires
// offered mid walk must be visited.
func TestWireQueueAppendDuringWalk(t *testing.T) {
	var q wireQueue
	w0 := queueTestWire(t, 0)
	w1 := queueTestWire(t, 1)
	q.offer(w0)

	var visited []*wireNode
	for w := q.head; w != nil; w = w.nextToSearch {
		visited = append(visited, w)
		if w == w0 {
			q.offer(w1)
		}
	}
	if len(visited) != 2 || visited[0] != w0 || visited[1] != w1 {
		t.Fatalf("walk visited %d wires, want w0 then w1", len(visited))
	}
}

func TestNodeQueueRootsDrainFirst(t *testing.T) {
	var q nodeQueue
	stone := (&node{}).set(Vec3i{X: 9}, StateOf(tStone), true)
	branch := queueTestWire(t, 1)
	root := queueTestWire(t, 2)
	root.root = true

	q.offer(stone)
	q.offer(&branch.node)
	q.offer(&root.node)

	want := []*node{&root.node, stone, &branch.node}
	for i, n := range want {
		if got := q.poll(); got != n {
			t.Fatalf("poll %d = %v, want %v", i, got.pos, n.pos)
		}
	}
	if !q.empty() {
		t.Fatal("queue not empty after drain")
	}
}

func TestNodeQueueDedupe(t *testing.T) {
	var q nodeQueue
	w := queueTestWire(t, 0)

	q.offer(&w.node)
	q.offer(&w.node)
	if q.poll() != &w.node {
		t.Fatal("expected the wire")
	}
	if !q.empty() {
		t.Fatal("double offer enqueued the wire twice")
	}

	// Polled wires may be queued again, polled non-wires may not.
	q.offer(&w.node)
	if q.poll() != &w.node {
		t.Fatal("wire could not be requeued after poll")
	}

	stone := (&node{}).set(Vec3i{X: 1}, StateOf(tStone), true)
	q.offer(stone)
	if q.poll() != stone {
		t.Fatal("expected the stone")
	}
	q.offer(stone)
	if !q.empty() {
		t.Fatal("non-wire requeued within the same settle")
	}
}

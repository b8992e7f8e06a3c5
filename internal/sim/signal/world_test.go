package signal

import "testing"

// powerWrite is one wire power write observed by the test world.
type powerWrite struct {
	pos   Vec3i
	power int
}

// testWorld is a map-backed world with an optional infinite stone
// floor at y=-1. It dispatches the same hooks the real world does:
// block updates fan out through UpdateNeighbors, wire removals re-enter
// the handler.
type testWorld struct {
	t       *testing.T
	handler *Handler
	blocks  map[Vec3i]BlockState
	floor   bool

	writes  []powerWrite
	breaks  []Vec3i
	updated []Vec3i // block update hooks observed by instrumented blocks
}

func newTestWorld(t *testing.T) *testWorld {
	t.Helper()
	tw := &testWorld{
		t:      t,
		blocks: make(map[Vec3i]BlockState),
		floor:  true,
	}
	tw.handler = NewHandler(tw)
	return tw
}

func (tw *testWorld) GetBlockState(pos Vec3i) BlockState {
	if st, ok := tw.blocks[pos]; ok {
		return st
	}
	if tw.floor && pos.Y == -1 {
		return StateOf(tStone)
	}
	return AirState()
}

func (tw *testWorld) SetBlockState(pos Vec3i, st BlockState) bool {
	old := tw.GetBlockState(pos)
	if old == st {
		return false
	}
	tw.blocks[pos] = st

	switch {
	case st.IsWire():
		tw.writes = append(tw.writes, powerWrite{pos, st.Power()})
	case old.IsWire():
		tw.breaks = append(tw.breaks, pos)
		tw.handler.OnWireRemoved(pos, old)
	}
	return true
}

func (tw *testWorld) UpdateNeighbors(pos Vec3i) {
	for _, d := range &DefaultUpdateOrder {
		p := pos.Offset(d)
		st := tw.GetBlockState(p)
		if st.IsWire() {
			tw.handler.OnWireUpdate(p)
		} else {
			st.Update(tw, p, pos)
		}
	}
}

func (tw *testWorld) UpdateNeighborShapes(pos Vec3i, st BlockState) {
	for _, d := range &DefaultUpdateOrder {
		p := pos.Offset(d)
		tw.GetBlockState(p).UpdateShape(tw, p, d.Opposite(), pos, st)
	}
}

// set writes a block silently, for test setup.
func (tw *testWorld) set(pos Vec3i, st BlockState) {
	tw.blocks[pos] = st
}

// placeWire writes a wire and runs the placement hook.
func (tw *testWorld) placeWire(b *Block, pos Vec3i) {
	tw.blocks[pos] = StateOf(b)
	tw.handler.OnWireAdded(pos)
}

// breakWire removes a wire the way a player would, updating neighbors
// afterwards.
func (tw *testWorld) breakWire(pos Vec3i) {
	old := tw.GetBlockState(pos)
	tw.blocks[pos] = AirState()
	tw.handler.OnWireRemoved(pos, old)
	tw.UpdateNeighbors(pos)
}

// flipLever toggles a lever and updates its neighbors, triggering any
// adjacent wires.
func (tw *testWorld) flipLever(pos Vec3i) {
	st := tw.GetBlockState(pos)
	if !st.Is(tLever) {
		tw.t.Fatalf("no lever at %v", pos)
	}
	tw.blocks[pos] = st.WithOn(!st.On())
	tw.UpdateNeighbors(pos)
}

func (tw *testWorld) powerAt(pos Vec3i) int {
	return tw.GetBlockState(pos).Power()
}

func (tw *testWorld) resetLog() {
	tw.writes = nil
	tw.breaks = nil
	tw.updated = nil
}

// Test blocks. tWire steps its signal down per hop and climbs
// staircases unless covered, tCable is lossless and reaches out
// through every side.
var (
	tWireType  = &WireType{Signal: Redstone, Min: 0, Max: 15, Step: 1}
	tCableType = &WireType{Signal: Redstone, Min: 0, Max: 15, Step: 0}

	tStone = &Block{Name: "stone", Solid: true}

	// Solid but not conducting, direct signals die here.
	tGlass = &Block{
		Name:  "glass",
		Solid: true,
		IsConductor: func(BlockState, Direction, *SignalType) bool {
			return false
		},
	}

	tWire = &Block{
		Name:     "wire",
		Wire:     tWireType,
		CanExist: wireCanExist,
		Connects: wireConnects,
		OnShapeUpdate: func(w World, pos Vec3i, st BlockState, d Direction, nbrPos Vec3i, nbr BlockState) {
			shapeUpdateWire(w, pos, st)
		},
	}

	// Cables need no support and connect through every side.
	tCable = &Block{
		Name: "cable",
		Wire: tCableType,
		Connects: func(World, Vec3i, BlockState, ConnectionSide, *WireType) bool {
			return true
		},
		OnShapeUpdate: func(w World, pos Vec3i, st BlockState, d Direction, nbrPos Vec3i, nbr BlockState) {
			shapeUpdateWire(w, pos, st)
		},
	}

	tLever = &Block{
		Name: "lever",
		IsSource: func(st BlockState, t *SignalType) bool {
			return t.Is(Redstone)
		},
		Signal:       leverSignal,
		DirectSignal: leverSignal,
	}
)

func leverSignal(w World, pos Vec3i, st BlockState, d Direction, t *SignalType) int {
	if st.On() {
		return t.Max
	}
	return t.Min
}

func wireCanExist(w World, pos Vec3i, st BlockState) bool {
	return w.GetBlockState(pos.Offset(Down)).IsSolid()
}

// shapeUpdateWire breaks the wire when its support is gone, otherwise
// re-settles it since a shape change nearby may alter its connections.
func shapeUpdateWire(w World, pos Vec3i, st BlockState) {
	if !st.CanExist(w, pos) {
		w.SetBlockState(pos, AirState())
		return
	}
	if tw, ok := w.(*testWorld); ok {
		tw.handler.OnWireUpdate(pos)
	}
}

// wireConnects is the connection rule of tWire: cardinal neighbors and
// in-plane diagonals always, staircase diagonals unless a solid cover
// cuts the line of sight, never straight up or down.
func wireConnects(w World, pos Vec3i, st BlockState, side ConnectionSide, to *WireType) bool {
	switch side {
	case SideDown, SideUp:
		return false
	case SideWest, SideNorth, SideEast, SideSouth:
		return true
	case SideNorthUp, SideSouthUp, SideWestUp, SideEastUp:
		return !w.GetBlockState(pos.Offset(Up)).IsSolid()
	case SideNorthDown, SideSouthDown, SideWestDown, SideEastDown:
		over := pos.OffsetSide(side).Offset(Up)
		return !w.GetBlockState(over).IsSolid()
	default:
		return true
	}
}

// wireRow lays a row of wires along the x axis, silently.
func (tw *testWorld) wireRow(b *Block, from Vec3i, n int) []Vec3i {
	pts := make([]Vec3i, n)
	for i := 0; i < n; i++ {
		p := Vec3i{X: from.X + i, Y: from.Y, Z: from.Z}
		tw.set(p, StateOf(b))
		pts[i] = p
	}
	return pts
}

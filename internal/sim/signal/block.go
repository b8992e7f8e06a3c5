package signal

// Block describes the signal-relevant behavior of one block kind.
// Behavior hooks are optional; a nil hook falls back to the default
// spelled out on the corresponding BlockState method. Blocks are
// registered once and referenced by pointer, so identity comparison is
// valid.
type Block struct {
	Name string

	Air   bool
	Solid bool

	// Wire marks the block as a wire of the given type.
	Wire *WireType

	// CanExist reports whether the block survives at pos. Wires that
	// cannot exist are broken by the engine mid update.
	CanExist func(w World, pos Vec3i, st BlockState) bool

	// OnUpdate handles a block update caused by a change at fromPos.
	OnUpdate func(w World, pos Vec3i, st BlockState, fromPos Vec3i)

	// OnShapeUpdate handles a shape change of the neighbor behind d.
	OnShapeUpdate func(w World, pos Vec3i, st BlockState, d Direction, nbrPos Vec3i, nbr BlockState)

	// IsSource reports whether the block emits signals of type t.
	IsSource func(st BlockState, t *SignalType) bool

	// Signal is the power emitted toward a neighbor that asked through
	// direction d (pointing from the asker to this block).
	Signal func(w World, pos Vec3i, st BlockState, d Direction, t *SignalType) int

	// DirectSignal is the power pushed through a conductor, queried
	// the same way as Signal.
	DirectSignal func(w World, pos Vec3i, st BlockState, d Direction, t *SignalType) int

	// IsConductor reports whether the face behind d carries direct
	// signals of type t into adjacent wires.
	IsConductor func(st BlockState, d Direction, t *SignalType) bool

	// Connects reports whether a wire of type to, placed behind the
	// given side, links up with this block.
	Connects func(w World, pos Vec3i, st BlockState, side ConnectionSide, to *WireType) bool
}

// Air is the canonical empty block.
var Air = &Block{Name: "air", Air: true}

// BlockState is an immutable snapshot of a block and its dynamic
// properties. The zero value is air.
type BlockState struct {
	block *Block
	power int
	on    bool
}

// StateOf returns the default state of a block.
func StateOf(b *Block) BlockState { return BlockState{block: b} }

// AirState returns the canonical air state.
func AirState() BlockState { return BlockState{block: Air} }

func (s BlockState) Block() *Block {
	if s.block == nil {
		return Air
	}
	return s.block
}

func (s BlockState) Is(b *Block) bool { return s.Block() == b }

func (s BlockState) IsAir() bool { return s.Block().Air }

func (s BlockState) IsSolid() bool { return s.Block().Solid }

func (s BlockState) IsWire() bool { return s.Block().Wire != nil }

func (s BlockState) WireType() *WireType { return s.Block().Wire }

// IsWireType reports whether the state is a wire of exactly type t.
func (s BlockState) IsWireType(t *WireType) bool { return s.Block().Wire == t }

// IsWireSignal reports whether the state is a wire carrying signal t.
func (s BlockState) IsWireSignal(t *SignalType) bool {
	w := s.Block().Wire
	return w != nil && w.Signal.Is(t)
}

// Power is the wire power stored in the state.
func (s BlockState) Power() int { return s.power }

// WithPower returns a copy of the state with the given power.
func (s BlockState) WithPower(power int) BlockState {
	s.power = power
	return s
}

// On is the activation flag used by levers, buttons and lamps.
func (s BlockState) On() bool { return s.on }

// WithOn returns a copy of the state with the given activation flag.
func (s BlockState) WithOn(on bool) BlockState {
	s.on = on
	return s
}

func (s BlockState) CanExist(w World, pos Vec3i) bool {
	b := s.Block()
	if b.CanExist == nil {
		return true
	}
	return b.CanExist(w, pos, s)
}

func (s BlockState) Update(w World, pos Vec3i, fromPos Vec3i) {
	b := s.Block()
	if b.OnUpdate != nil {
		b.OnUpdate(w, pos, s, fromPos)
	}
}

func (s BlockState) UpdateShape(w World, pos Vec3i, d Direction, nbrPos Vec3i, nbr BlockState) {
	b := s.Block()
	if b.OnShapeUpdate != nil {
		b.OnShapeUpdate(w, pos, s, d, nbrPos, nbr)
	}
}

func (s BlockState) IsSignalSource(t *SignalType) bool {
	b := s.Block()
	return b.IsSource != nil && b.IsSource(s, t)
}

func (s BlockState) Signal(w World, pos Vec3i, d Direction, t *SignalType) int {
	b := s.Block()
	if b.Signal == nil {
		return t.Min
	}
	return b.Signal(w, pos, s, d, t)
}

func (s BlockState) DirectSignal(w World, pos Vec3i, d Direction, t *SignalType) int {
	b := s.Block()
	if b.DirectSignal == nil {
		return t.Min
	}
	return b.DirectSignal(w, pos, s, d, t)
}

// IsSignalConductor defaults to the block being solid.
func (s BlockState) IsSignalConductor(d Direction, t *SignalType) bool {
	b := s.Block()
	if b.IsConductor == nil {
		return b.Solid
	}
	return b.IsConductor(s, d, t)
}

func (s BlockState) ShouldConnectToWire(w World, pos Vec3i, side ConnectionSide, to *WireType) bool {
	b := s.Block()
	return b.Connects != nil && b.Connects(w, pos, s, side, to)
}

// World is the block access surface the engine runs against. Reads
// return snapshots; writes report whether anything changed. The two
// update calls fan out to neighbors outside of a settle, the engine
// performs its own fan-out during one.
type World interface {
	GetBlockState(pos Vec3i) BlockState
	SetBlockState(pos Vec3i, st BlockState) bool
	UpdateNeighbors(pos Vec3i)
	UpdateNeighborShapes(pos Vec3i, st BlockState)
}

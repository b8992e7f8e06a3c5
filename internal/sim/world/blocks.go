package world

import (
	"fmt"

	"signalcraft.ai/internal/sim/catalogs"
	"signalcraft.ai/internal/sim/signal"
)

// blockSet maps palette ids to engine blocks. Behavior hooks close
// over the owning world; they run on the world loop goroutine only.
type blockSet struct {
	byID    []*signal.Block
	defs    []catalogs.BlockDef
	ids     map[*signal.Block]uint16
	nameIdx map[string]uint16
	air     uint16

	sigTypes map[string]*signal.SignalType
}

func newBlockSet(w *World, cats *catalogs.Catalogs) (*blockSet, error) {
	set := &blockSet{
		byID:     make([]*signal.Block, len(cats.Blocks.Palette)),
		defs:     make([]catalogs.BlockDef, len(cats.Blocks.Palette)),
		ids:      make(map[*signal.Block]uint16, len(cats.Blocks.Palette)),
		nameIdx:  make(map[string]uint16, len(cats.Blocks.Palette)),
		sigTypes: map[string]*signal.SignalType{"redstone": signal.Redstone, "any": signal.Any},
	}
	for i, name := range cats.Blocks.Palette {
		def, ok := cats.Blocks.Defs[name]
		if !ok {
			return nil, fmt.Errorf("palette id %q has no definition", name)
		}
		b, err := set.build(w, def)
		if err != nil {
			return nil, err
		}
		set.byID[i] = b
		set.defs[i] = def
		set.ids[b] = uint16(i)
		set.nameIdx[name] = uint16(i)
		if def.ID == "AIR" {
			set.air = uint16(i)
		}
	}
	return set, nil
}

func (set *blockSet) build(w *World, def catalogs.BlockDef) (*signal.Block, error) {
	if def.ID == "AIR" {
		// The engine's canonical air block, so IsAir checks made on
		// states it fabricates and states we fabricate agree.
		return signal.Air, nil
	}
	b := &signal.Block{Name: def.ID, Solid: def.Solid}
	if def.Conductor != nil {
		conducts := *def.Conductor
		b.IsConductor = func(signal.BlockState, signal.Direction, *signal.SignalType) bool {
			return conducts
		}
	}

	switch def.Behavior {
	case "":
	case "wire":
		set.buildWire(w, b, def)
	case "lever", "button":
		buildSwitch(b)
	case "lamp":
		buildLamp(w, b)
	case "grass":
		// Random tick behavior, dispatched by the world. Nothing to
		// hook on the signal side.
	default:
		return nil, fmt.Errorf("block %s: unknown behavior %q", def.ID, def.Behavior)
	}
	return b, nil
}

func (set *blockSet) signalType(name string) *signal.SignalType {
	if t, ok := set.sigTypes[name]; ok {
		return t
	}
	t := &signal.SignalType{Name: name, Min: 0, Max: 15}
	set.sigTypes[name] = t
	return t
}

// buildWire attaches the wire hooks. The engine breaks unsupported
// wires it finds during a settle on its own; the hooks cover updates
// arriving between settles.
func (set *blockSet) buildWire(w *World, b *signal.Block, def catalogs.BlockDef) {
	wt := &signal.WireType{
		Signal: set.signalType(def.Wire.Signal),
		Min:    def.Wire.Min,
		Max:    def.Wire.Max,
		Step:   def.Wire.Step,
	}
	b.Wire = wt
	b.CanExist = func(sw signal.World, pos signal.Vec3i, st signal.BlockState) bool {
		return sw.GetBlockState(pos.Offset(signal.Down)).IsSolid()
	}
	if def.Wire.Connect == "all" {
		// Cable-style wires link to any same-signal wire on all 18
		// sides, corners and vertical runs included.
		b.Connects = func(sw signal.World, pos signal.Vec3i, st signal.BlockState, side signal.ConnectionSide, to *signal.WireType) bool {
			return to != nil && wt.Signal.Is(to.Signal)
		}
	} else {
		// Wires link to same-signal wires through the four cardinals
		// and through staircase diagonals whose corner cell is open.
		// Straight vertical stacking and in-plane corners stay
		// unconnected.
		b.Connects = func(sw signal.World, pos signal.Vec3i, st signal.BlockState, side signal.ConnectionSide, to *signal.WireType) bool {
			if to == nil || !wt.Signal.Is(to.Signal) {
				return false
			}
			if side == signal.SideUp || side == signal.SideDown {
				return false
			}
			if side.IsAligned() {
				return true
			}
			v := side.Vec()
			if v.Y == 0 {
				return false
			}
			corner := signal.Vec3i{X: pos.X + v.X, Y: pos.Y, Z: pos.Z + v.Z}
			if v.Y > 0 {
				corner = pos.Offset(signal.Up)
			}
			return !sw.GetBlockState(corner).IsSolid()
		}
	}
	b.OnUpdate = func(sw signal.World, pos signal.Vec3i, st signal.BlockState, fromPos signal.Vec3i) {
		if !st.CanExist(sw, pos) {
			w.breakUnsupported(pos, st)
			return
		}
		w.engine.OnWireUpdate(pos)
	}
	b.OnShapeUpdate = func(sw signal.World, pos signal.Vec3i, st signal.BlockState, d signal.Direction, nbrPos signal.Vec3i, nbr signal.BlockState) {
		if d == signal.Down && !st.CanExist(sw, pos) {
			w.breakUnsupported(pos, st)
		}
	}
}

// buildSwitch wires up levers and buttons: full-strength sources while
// on, off otherwise. They push direct signals too, so a conductor next
// to one re-powers wires on its far side.
func buildSwitch(b *signal.Block) {
	b.IsSource = func(st signal.BlockState, t *signal.SignalType) bool {
		return signal.Redstone.Is(t)
	}
	b.Signal = func(sw signal.World, pos signal.Vec3i, st signal.BlockState, d signal.Direction, t *signal.SignalType) int {
		if st.On() && signal.Redstone.Is(t) {
			return signal.Redstone.Max
		}
		return t.Min
	}
	b.DirectSignal = b.Signal
}

func buildLamp(w *World, b *signal.Block) {
	b.OnUpdate = func(sw signal.World, pos signal.Vec3i, st signal.BlockState, fromPos signal.Vec3i) {
		lit := w.bestNeighborSignal(pos) > 0
		if lit != st.On() {
			w.setOn(pos, lit, actorWorld, "signal")
		}
	}
}

func (set *blockSet) blockByID(id uint16) *signal.Block { return set.byID[int(id)] }

func (set *blockSet) idOf(b *signal.Block) (uint16, bool) {
	id, ok := set.ids[b]
	return id, ok
}

func (set *blockSet) name(id uint16) string { return set.defs[int(id)].ID }

func (set *blockSet) lookup(name string) (uint16, catalogs.BlockDef, bool) {
	id, ok := set.nameIdx[name]
	if !ok {
		return 0, catalogs.BlockDef{}, false
	}
	return id, set.defs[int(id)], true
}

func (set *blockSet) isWire(id uint16) bool { return set.byID[int(id)].Wire != nil }

// stateful reports whether the block keeps an on/off flag.
func (set *blockSet) stateful(id uint16) bool {
	switch set.defs[int(id)].Behavior {
	case "lever", "button", "lamp":
		return true
	}
	return false
}

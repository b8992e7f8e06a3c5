package signal

// ConnectionSide identifies one of the 18 positions a wire can connect
// to: the six faces plus the twelve edge diagonals. Vertical diagonals
// model staircase connections, horizontal diagonals in-plane corners.
type ConnectionSide int

const (
	SideDown ConnectionSide = iota
	SideUp
	SideNorth
	SideSouth
	SideWest
	SideEast
	SideNorthDown
	SideSouthUp
	SideSouthDown
	SideNorthUp
	SideWestDown
	SideEastUp
	SideEastDown
	SideWestUp
	SideNorthWest
	SideSouthEast
	SideNorthEast
	SideSouthWest
)

const sideCount = 18

var sideNames = [sideCount]string{
	"down", "up", "north", "south", "west", "east",
	"north-down", "south-up", "south-down", "north-up",
	"west-down", "east-up", "east-down", "west-up",
	"north-west", "south-east", "north-east", "south-west",
}

func (s ConnectionSide) String() string {
	if s < 0 || s >= sideCount {
		return "invalid"
	}
	return sideNames[s]
}

var sideOpposites = [sideCount]ConnectionSide{
	SideDown:      SideUp,
	SideUp:        SideDown,
	SideNorth:     SideSouth,
	SideSouth:     SideNorth,
	SideWest:      SideEast,
	SideEast:      SideWest,
	SideNorthDown: SideSouthUp,
	SideSouthUp:   SideNorthDown,
	SideSouthDown: SideNorthUp,
	SideNorthUp:   SideSouthDown,
	SideWestDown:  SideEastUp,
	SideEastUp:    SideWestDown,
	SideEastDown:  SideWestUp,
	SideWestUp:    SideEastDown,
	SideNorthWest: SideSouthEast,
	SideSouthEast: SideNorthWest,
	SideNorthEast: SideSouthWest,
	SideSouthWest: SideNorthEast,
}

func (s ConnectionSide) Opposite() ConnectionSide { return sideOpposites[s] }

var sideOffsets = [sideCount]Vec3i{
	SideDown:      {Y: -1},
	SideUp:        {Y: 1},
	SideNorth:     {Z: 1},
	SideSouth:     {Z: -1},
	SideWest:      {X: -1},
	SideEast:      {X: 1},
	SideNorthDown: {Y: -1, Z: 1},
	SideSouthUp:   {Y: 1, Z: -1},
	SideSouthDown: {Y: -1, Z: -1},
	SideNorthUp:   {Y: 1, Z: 1},
	SideWestDown:  {X: -1, Y: -1},
	SideEastUp:    {X: 1, Y: 1},
	SideEastDown:  {X: 1, Y: -1},
	SideWestUp:    {X: -1, Y: 1},
	SideNorthWest: {X: -1, Z: 1},
	SideSouthEast: {X: 1, Z: -1},
	SideNorthEast: {X: 1, Z: 1},
	SideSouthWest: {X: -1, Z: -1},
}

// Vec returns the offset from a wire to the block behind this side.
func (s ConnectionSide) Vec() Vec3i { return sideOffsets[s] }

// IsAligned reports whether the side touches a face rather than an
// edge. Aligned connections can carry power through a shared face even
// when diagonals are cut off.
func (s ConnectionSide) IsAligned() bool { return s < 6 }

// Power flow within a wire is tracked as a 4-bit mask of the cardinal
// directions the signal travels in. One bit per cardinal, indexed by
// direction.
const (
	flowWest  = 1 << West
	flowNorth = 1 << North
	flowEast  = 1 << East
	flowSouth = 1 << South
)

// sideFlow[s] is the flow mask of power arriving through side s, i.e.
// the horizontal component of travel from the contributing wire to the
// receiver. Vertical sides have no horizontal component.
var sideFlow = [sideCount]uint8{
	SideDown:      0,
	SideUp:        0,
	SideNorth:     flowNorth,
	SideSouth:     flowSouth,
	SideWest:      flowWest,
	SideEast:      flowEast,
	SideNorthDown: flowNorth,
	SideSouthUp:   flowSouth,
	SideSouthDown: flowSouth,
	SideNorthUp:   flowNorth,
	SideWestDown:  flowWest,
	SideEastUp:    flowEast,
	SideEastDown:  flowEast,
	SideWestUp:    flowWest,
	SideNorthWest: flowWest | flowNorth,
	SideSouthEast: flowEast | flowSouth,
	SideNorthEast: flowNorth | flowEast,
	SideSouthWest: flowSouth | flowWest,
}

func (s ConnectionSide) flow() uint8 { return sideFlow[s] }

// flowOut maps a 4-bit flow mask to the single cardinal that best
// represents it, or -1 when the mask is empty or symmetric. Two
// adjacent bits resolve to the clockwise one of the pair, three bits
// to the middle one.
var flowOut = [16]Direction{
	-1, West, North, North, East, -1, East, North,
	South, West, -1, West, South, South, East, -1,
}

// connectionUpdateOrders[f] lists all 18 sides, nearest the flow
// direction f first. Wires transmit and search along their connections
// in this order.
var connectionUpdateOrders = [4][sideCount]ConnectionSide{
	West: {
		SideWest, SideEast, SideNorth, SideSouth, SideDown, SideUp,
		SideNorthWest, SideSouthEast, SideSouthWest, SideNorthEast,
		SideWestDown, SideEastUp, SideWestUp, SideEastDown,
		SideNorthDown, SideSouthUp, SideNorthUp, SideSouthDown,
	},
	North: {
		SideNorth, SideSouth, SideEast, SideWest, SideDown, SideUp,
		SideNorthEast, SideSouthWest, SideNorthWest, SideSouthEast,
		SideNorthDown, SideSouthUp, SideNorthUp, SideSouthDown,
		SideEastDown, SideWestUp, SideEastUp, SideWestDown,
	},
	East: {
		SideEast, SideWest, SideSouth, SideNorth, SideDown, SideUp,
		SideSouthEast, SideNorthWest, SideNorthEast, SideSouthWest,
		SideEastDown, SideWestUp, SideEastUp, SideWestDown,
		SideSouthDown, SideNorthUp, SideSouthUp, SideNorthDown,
	},
	South: {
		SideSouth, SideNorth, SideWest, SideEast, SideDown, SideUp,
		SideSouthWest, SideNorthEast, SideSouthEast, SideNorthWest,
		SideSouthDown, SideNorthUp, SideSouthUp, SideNorthDown,
		SideWestDown, SideEastUp, SideWestUp, SideEastDown,
	},
}

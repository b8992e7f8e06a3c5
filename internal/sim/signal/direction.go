package signal

// Direction indexes the six block faces. The four cardinals occupy
// indices 0..3, arranged clockwise when viewed from above, so that
// stepping the index rotates the direction. Down and up sit behind a
// single high bit, which keeps the opposite computation branchless.
type Direction int

const (
	West  Direction = 0
	North Direction = 1
	East  Direction = 2
	South Direction = 3
	Down  Direction = 4
	Up    Direction = 5
)

const directionCount = 6

var directionNames = [directionCount]string{"west", "north", "east", "south", "down", "up"}

func (d Direction) String() string {
	if d < 0 || d >= directionCount {
		return "invalid"
	}
	return directionNames[d]
}

// Opposite returns the reverse direction. Cardinals flip the second
// bit, verticals the first.
func (d Direction) Opposite() Direction {
	return d ^ (0b10 >> (d >> 2))
}

// IsCardinal reports whether the direction is horizontal.
func (d Direction) IsCardinal() bool { return d < 4 }

var directionOffsets = [directionCount]Vec3i{
	{X: -1}, // west
	{Z: 1},  // north
	{X: 1},  // east
	{Z: -1}, // south
	{Y: -1}, // down
	{Y: 1},  // up
}

// Offset returns the unit vector of the direction.
func (d Direction) Vec() Vec3i { return directionOffsets[d] }

// exceptDirections[i] holds all directions except i, in canonical
// order. Used when probing around a block while skipping the face it
// was reached through.
var exceptDirections = [directionCount][directionCount - 1]Direction{
	West:  {North, East, South, Down, Up},
	North: {West, East, South, Down, Up},
	East:  {West, North, South, Down, Up},
	South: {West, North, East, Down, Up},
	Down:  {West, North, East, South, Up},
	Up:    {West, North, East, South, Down},
}

// exceptCardinalDirections[i] holds the cardinal directions except i.
// The vertical rows keep all four cardinals.
var exceptCardinalDirections = [directionCount][]Direction{
	West:  {North, East, South},
	North: {West, East, South},
	East:  {West, North, South},
	South: {West, North, East},
	Down:  {West, North, East, South},
	Up:    {West, North, East, South},
}

// fullUpdateOrders[f] lists all six directions, starting with the flow
// direction f, followed by its opposite, then the axis perpendicular
// to the flow, then down and up. Neighbors of an updated wire are
// visited in this order so that update fan-out tracks power flow
// instead of coordinate hashing.
var fullUpdateOrders = [4][directionCount]Direction{
	West:  {West, East, North, South, Down, Up},
	North: {North, South, East, West, Down, Up},
	East:  {East, West, South, North, Down, Up},
	South: {South, North, West, East, Down, Up},
}

// cardinalUpdateOrders is fullUpdateOrders without the vertical tail.
var cardinalUpdateOrders = [4][4]Direction{
	West:  {West, East, North, South},
	North: {North, South, East, West},
	East:  {East, West, South, North},
	South: {South, North, West, East},
}

// DefaultUpdateOrder is the neighbor visiting order used when no power
// flow is known. It matches fullUpdateOrders for westward flow.
var DefaultUpdateOrder = fullUpdateOrders[West]

package signal

import "testing"

func TestOpposite(t *testing.T) {
	pairs := [][2]Direction{
		{West, East},
		{North, South},
		{Down, Up},
	}
	for _, p := range pairs {
		if p[0].Opposite() != p[1] || p[1].Opposite() != p[0] {
			t.Fatalf("%v and %v are not opposites", p[0], p[1])
		}
	}
	for d := Direction(0); d < directionCount; d++ {
		if d.Opposite().Opposite() != d {
			t.Fatalf("opposite of %v does not invert", d)
		}
		sum := d.Vec()
		o := d.Opposite().Vec()
		if sum.X+o.X != 0 || sum.Y+o.Y != 0 || sum.Z+o.Z != 0 {
			t.Fatalf("offsets of %v and %v do not cancel", d, d.Opposite())
		}
	}
}

func TestExceptDirections(t *testing.T) {
	for d := Direction(0); d < directionCount; d++ {
		var seen [directionCount]bool
		for _, e := range exceptDirections[d] {
			if e == d {
				t.Fatalf("row %v contains itself", d)
			}
			if seen[e] {
				t.Fatalf("row %v repeats %v", d, e)
			}
			seen[e] = true
		}
	}
}

func TestExceptCardinalDirections(t *testing.T) {
	for d := Direction(0); d < directionCount; d++ {
		row := exceptCardinalDirections[d]
		want := 3
		if !d.IsCardinal() {
			want = 4
		}
		if len(row) != want {
			t.Fatalf("row %v has %d entries, want %d", d, len(row), want)
		}
		for _, e := range row {
			if !e.IsCardinal() {
				t.Fatalf("row %v contains vertical %v", d, e)
			}
			if e == d {
				t.Fatalf("row %v contains itself", d)
			}
		}
	}
}

func TestUpdateOrders(t *testing.T) {
	for f := West; f <= South; f++ {
		order := fullUpdateOrders[f]
		var seen [directionCount]bool
		for _, d := range order {
			if seen[d] {
				t.Fatalf("order %v repeats %v", f, d)
			}
			seen[d] = true
		}
		if order[0] != f || order[1] != f.Opposite() {
			t.Fatalf("order %v starts %v, %v", f, order[0], order[1])
		}
		if order[4] != Down || order[5] != Up {
			t.Fatalf("order %v does not end down, up", f)
		}
		for i, d := range cardinalUpdateOrders[f] {
			if order[i] != d {
				t.Fatalf("cardinal order %v diverges at %d", f, i)
			}
		}
	}
}

func TestSideOpposites(t *testing.T) {
	for s := ConnectionSide(0); s < sideCount; s++ {
		o := s.Opposite()
		if o.Opposite() != s {
			t.Fatalf("opposite of %v does not invert", s)
		}
		v, w := s.Vec(), o.Vec()
		if v.X+w.X != 0 || v.Y+w.Y != 0 || v.Z+w.Z != 0 {
			t.Fatalf("offsets of %v and %v do not cancel", s, o)
		}
	}
}

func TestSideOffsets(t *testing.T) {
	aligned := map[ConnectionSide]Direction{
		SideDown: Down, SideUp: Up,
		SideNorth: North, SideSouth: South,
		SideWest: West, SideEast: East,
	}
	for s, d := range aligned {
		if !s.IsAligned() {
			t.Fatalf("%v not aligned", s)
		}
		if s.Vec() != d.Vec() {
			t.Fatalf("offset of %v does not match %v", s, d)
		}
	}
	for s := ConnectionSide(6); s < sideCount; s++ {
		if s.IsAligned() {
			t.Fatalf("%v claims to be aligned", s)
		}
		v := s.Vec()
		nonzero := 0
		for _, c := range v.ToArray() {
			if c != 0 {
				if c != 1 && c != -1 {
					t.Fatalf("offset of %v not a unit step: %v", s, v)
				}
				nonzero++
			}
		}
		if nonzero != 2 {
			t.Fatalf("edge side %v has %d offset components", s, nonzero)
		}
	}

	p := Vec3i{X: 1, Y: 2, Z: 3}
	if got := p.OffsetSide(SideNorthWest); got != (Vec3i{X: 0, Y: 2, Z: 4}) {
		t.Fatalf("OffsetSide = %v", got)
	}
}

// rotate2 turns a flow mask by 180 degrees.
func rotate2(m uint8) uint8 {
	return ((m << 2) | (m >> 2)) & 0xF
}

func TestSideFlow(t *testing.T) {
	cardinals := map[ConnectionSide]Direction{
		SideWest: West, SideNorth: North, SideEast: East, SideSouth: South,
	}
	for s, d := range cardinals {
		if s.flow() != 1<<d {
			t.Fatalf("flow of %v = %04b", s, s.flow())
		}
	}
	if SideDown.flow() != 0 || SideUp.flow() != 0 {
		t.Fatal("vertical sides must carry no horizontal flow")
	}
	for s := ConnectionSide(0); s < sideCount; s++ {
		if got := s.Opposite().flow(); got != rotate2(s.flow()) {
			t.Fatalf("flow of %v does not mirror %v: %04b vs %04b",
				s.Opposite(), s, got, s.flow())
		}
	}
}

func TestFlowOut(t *testing.T) {
	for m := 0; m < 16; m++ {
		d := flowOut[m]
		if rotate2(uint8(m)) == uint8(m) {
			if d != -1 {
				t.Fatalf("symmetric mask %04b resolved to %v", m, d)
			}
			continue
		}
		if d < 0 || !d.IsCardinal() {
			t.Fatalf("mask %04b resolved to %v", m, d)
		}
		if m&(1<<d) == 0 {
			t.Fatalf("mask %04b resolved to absent direction %v", m, d)
		}
	}
	// Adjacent pairs resolve clockwise, triples to the middle.
	if flowOut[flowWest|flowNorth] != North {
		t.Fatal("west+north must resolve north")
	}
	if flowOut[flowSouth|flowWest] != West {
		t.Fatal("south+west must resolve west")
	}
	if flowOut[flowWest|flowNorth|flowEast] != North {
		t.Fatal("west+north+east must resolve north")
	}
}

func TestConnectionUpdateOrders(t *testing.T) {
	starts := [4]ConnectionSide{SideWest, SideNorth, SideEast, SideSouth}
	for f := West; f <= South; f++ {
		order := connectionUpdateOrders[f]
		var seen [sideCount]bool
		for _, s := range order {
			if seen[s] {
				t.Fatalf("order %v repeats %v", f, s)
			}
			seen[s] = true
		}
		if order[0] != starts[f] {
			t.Fatalf("order %v starts with %v", f, order[0])
		}
		if order[4] != SideDown || order[5] != SideUp {
			t.Fatalf("order %v does not place down, up after the cardinals", f)
		}
		for i := 0; i < 4; i++ {
			if order[i] != starts[cardinalUpdateOrders[f][i]] {
				t.Fatalf("order %v cardinal %d diverges from the update order", f, i)
			}
		}
	}
}

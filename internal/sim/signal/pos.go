package signal

// Vec3i is an integer 3D vector used for block coordinates.
type Vec3i struct {
	X int
	Y int
	Z int
}

func (v Vec3i) ToArray() [3]int { return [3]int{v.X, v.Y, v.Z} }

// Offset returns the position one step in the given direction.
func (v Vec3i) Offset(d Direction) Vec3i {
	o := directionOffsets[d]
	return Vec3i{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// OffsetSide returns the position reached by following a connection side,
// which may be one or two steps away.
func (v Vec3i) OffsetSide(s ConnectionSide) Vec3i {
	o := sideOffsets[s]
	return Vec3i{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

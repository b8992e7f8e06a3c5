package signal

// SignalType distinguishes independent signal systems. Blocks answer
// source and conductor queries per type, so two systems can share a
// world without feeding each other.
type SignalType struct {
	Name string
	Min  int
	Max  int
}

// Any matches every signal type in queries.
var Any = &SignalType{Name: "any", Min: 0, Max: 15}

// Redstone is the standard 0..15 signal.
var Redstone = &SignalType{Name: "redstone", Min: 0, Max: 15}

// Is reports whether t matches o, treating Any as a wildcard.
func (t *SignalType) Is(o *SignalType) bool {
	return t == o || t == Any || o == Any
}

// WireType describes one kind of wire: the signal it carries, its own
// power bounds and how much power drops per connection step.
type WireType struct {
	Signal *SignalType
	Min    int
	Max    int
	Step   int
}

func (t *WireType) clamp(power int) int {
	if power < t.Min {
		return t.Min
	}
	if power > t.Max {
		return t.Max
	}
	return power
}

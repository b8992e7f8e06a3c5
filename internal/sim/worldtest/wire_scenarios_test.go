package worldtest

import "testing"

// The circuit tests below exercise the full client loop: edits go in
// as ACT frames, state comes back out of OBS voxels and overlays.

func TestScenario_LeverPowersWireRun(t *testing.T) {
	h := newScenario(t)

	h.Place(at(0, 4, 2), "LEVER")
	h.Place(at(1, 4, 2), "WIRE")
	h.Place(at(2, 4, 2), "WIRE")
	h.Place(at(3, 4, 2), "WIRE")
	h.Place(at(4, 4, 2), "LAMP")

	for x := 1; x <= 3; x++ {
		p, ok := h.WirePowerAt(at(x, 4, 2))
		if !ok {
			t.Fatalf("wire at x=%d missing from the overlay", x)
		}
		if p != 0 {
			t.Fatalf("wire at x=%d before toggle: power=%d, want 0", x, p)
		}
	}
	if on, ok := h.SwitchOnAt(at(4, 4, 2)); !ok || on {
		t.Fatalf("lamp before toggle: on=%v listed=%v, want listed and off", on, ok)
	}

	h.Toggle(at(0, 4, 2))

	for x, want := range map[int]int{1: 15, 2: 14, 3: 13} {
		if p, _ := h.WirePowerAt(at(x, 4, 2)); p != want {
			t.Fatalf("wire at x=%d after toggle: power=%d, want %d", x, p, want)
		}
	}
	if on, _ := h.SwitchOnAt(at(4, 4, 2)); !on {
		t.Fatalf("lamp stayed dark beside a powered wire")
	}

	h.Toggle(at(0, 4, 2))

	for x := 1; x <= 3; x++ {
		if p, _ := h.WirePowerAt(at(x, 4, 2)); p != 0 {
			t.Fatalf("wire at x=%d after drain: power=%d, want 0", x, p)
		}
	}
	if on, _ := h.SwitchOnAt(at(4, 4, 2)); on {
		t.Fatalf("lamp still lit after the source went off")
	}
}

func TestScenario_BreakSplitsCircuit(t *testing.T) {
	h := newScenario(t)

	h.Place(at(0, 4, 0), "LEVER")
	for x := 1; x <= 4; x++ {
		h.Place(at(x, 4, 0), "WIRE")
	}
	h.Toggle(at(0, 4, 0))

	if p, _ := h.WirePowerAt(at(4, 4, 0)); p != 12 {
		t.Fatalf("tail power before the cut = %d, want 12", p)
	}

	h.Break(at(2, 4, 0))

	if got := h.BlockAt(at(2, 4, 0)); got != "AIR" {
		t.Fatalf("block at the cut = %s, want AIR", got)
	}
	if p, _ := h.WirePowerAt(at(1, 4, 0)); p != 15 {
		t.Fatalf("lever-side wire after the cut = %d, want 15", p)
	}
	for x := 3; x <= 4; x++ {
		if p, _ := h.WirePowerAt(at(x, 4, 0)); p != 0 {
			t.Fatalf("cut-off wire at x=%d = %d, want 0", x, p)
		}
	}
}

func TestScenario_CableSegmentCarriesWithoutLoss(t *testing.T) {
	h := newScenario(t)

	h.Place(at(0, 4, 0), "LEVER")
	h.Place(at(1, 4, 0), "WIRE")
	h.Place(at(2, 4, 0), "CABLE")
	h.Place(at(3, 4, 0), "CABLE")
	h.Place(at(4, 4, 0), "WIRE")
	h.Toggle(at(0, 4, 0))

	want := []int{15, 14, 14, 13}
	for i, p := range want {
		x := i + 1
		if got, _ := h.WirePowerAt(at(x, 4, 0)); got != p {
			t.Fatalf("power at x=%d = %d, want %d", x, got, p)
		}
	}
}

func TestScenario_SettleEventsReachTheClient(t *testing.T) {
	h := newScenario(t)

	h.Place(at(0, 4, 0), "LEVER")
	h.Place(at(1, 4, 0), "WIRE")

	obs := h.Act(editToggle("T1", at(0, 4, 0)))

	if code, ok := resultCode(obs, "T1"); !ok || code != "" {
		t.Fatalf("toggle result: code=%q delivered=%v", code, ok)
	}
	if n := len(eventsOfType(obs, "SWITCH_SET")); n != 1 {
		t.Fatalf("SWITCH_SET events = %d, want 1", n)
	}
	settled := eventsOfType(obs, "SIGNAL_SETTLED")
	if len(settled) != 1 {
		t.Fatalf("SIGNAL_SETTLED events = %d, want 1", len(settled))
	}
	if n, _ := settled[0]["settles"].(float64); n < 1 {
		t.Fatalf("settle count = %v, want >= 1", settled[0]["settles"])
	}
}

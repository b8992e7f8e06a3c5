package worldtest

import "testing"

// Button releases are scheduled ticks; these tests watch the whole
// arc through the switch overlay the way a client would.

func TestScenario_ButtonPulsesAndReleases(t *testing.T) {
	h := newScenario(t)

	btn := at(0, 4, 0)
	wire := at(1, 4, 0)
	lamp := at(2, 4, 0)
	h.Place(btn, "BUTTON")
	h.Place(wire, "WIRE")
	h.Place(lamp, "LAMP")

	pressTick := h.W.CurrentTick()
	h.Toggle(btn)

	if on, _ := h.SwitchOnAt(btn); !on {
		t.Fatalf("button not pressed after toggle")
	}
	if p, _ := h.WirePowerAt(wire); p != 15 {
		t.Fatalf("wire while pressed = %d, want 15", p)
	}
	if on, _ := h.SwitchOnAt(lamp); !on {
		t.Fatalf("lamp dark while the button is pressed")
	}

	// The release is due 10 ticks after the press and fires during
	// the step at the due tick itself.
	h.StepN(9)
	if on, _ := h.SwitchOnAt(btn); !on {
		t.Fatalf("button released early, at or before tick %d", h.W.CurrentTick()-1)
	}

	obs := h.StepNoop()
	if obs.Tick != pressTick+10 {
		t.Fatalf("release tick = %d, want %d", obs.Tick, pressTick+10)
	}
	if on, _ := h.SwitchOnAt(btn); on {
		t.Fatalf("button still pressed past its delay")
	}
	if p, _ := h.WirePowerAt(wire); p != 0 {
		t.Fatalf("wire after release = %d, want 0", p)
	}
	if on, _ := h.SwitchOnAt(lamp); on {
		t.Fatalf("lamp still lit after release")
	}
	sets := eventsOfType(obs, "SWITCH_SET")
	if len(sets) != 2 {
		t.Fatalf("SWITCH_SET events on release = %d, want 2 (button and lamp)", len(sets))
	}
	for _, e := range sets {
		if on, _ := e["on"].(bool); on {
			t.Fatalf("SWITCH_SET for %v still on at the release tick", e["block"])
		}
	}
}

func TestScenario_RepressExtendsThePulse(t *testing.T) {
	h := newScenario(t)

	btn := at(0, 4, 0)
	h.Place(btn, "BUTTON")

	h.Toggle(btn)
	h.StepN(4)

	// Pressing again restarts the timer instead of stacking a second
	// release.
	repress := h.W.CurrentTick()
	h.Toggle(btn)

	h.StepN(9)
	if on, _ := h.SwitchOnAt(btn); !on {
		t.Fatalf("button released on the first press's clock")
	}
	obs := h.StepNoop()
	if obs.Tick != repress+10 {
		t.Fatalf("release tick = %d, want %d", obs.Tick, repress+10)
	}
	if on, _ := h.SwitchOnAt(btn); on {
		t.Fatalf("button still pressed after the restarted delay")
	}
}

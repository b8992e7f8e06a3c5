package worldtest

import (
	"testing"

	"signalcraft.ai/internal/protocol"
	"signalcraft.ai/internal/sim/catalogs"
	"signalcraft.ai/internal/sim/world"
)

func testCatalogs(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	return cats
}

func testConfig() world.WorldConfig {
	return world.WorldConfig{
		ID:                 "scenario",
		TickRateHz:         10,
		ObsRadius:          8,
		Height:             64,
		Seed:               1234,
		BoundaryR:          256,
		RandomTicksPerTick: 2,
	}
}

func newScenario(t *testing.T) *Harness {
	t.Helper()
	return NewHarness(t, testConfig(), testCatalogs(t), "tester")
}

func at(x, y, z int) world.Vec3i { return world.Vec3i{X: x, Y: y, Z: z} }

func editPlace(id string, pos world.Vec3i, block string) protocol.EditReq {
	return protocol.EditReq{ID: id, Type: protocol.EditPlaceBlock, Pos: pos.ToArray(), Block: block}
}

func editBreak(id string, pos world.Vec3i) protocol.EditReq {
	return protocol.EditReq{ID: id, Type: protocol.EditBreakBlock, Pos: pos.ToArray()}
}

func editToggle(id string, pos world.Vec3i) protocol.EditReq {
	return protocol.EditReq{ID: id, Type: protocol.EditToggle, Pos: pos.ToArray()}
}

func eventsOfType(obs protocol.ObsMsg, typ string) []protocol.Event {
	var out []protocol.Event
	for _, e := range obs.Events {
		if e["type"] == typ {
			out = append(out, e)
		}
	}
	return out
}

// resultCode returns the EDIT_RESULT code for ref; an applied edit
// carries no code. The second return reports whether a result arrived
// at all.
func resultCode(obs protocol.ObsMsg, ref string) (string, bool) {
	for _, e := range obs.Events {
		if e["type"] != "EDIT_RESULT" || e["ref"] != ref {
			continue
		}
		code, _ := e["code"].(string)
		return code, true
	}
	return "", false
}

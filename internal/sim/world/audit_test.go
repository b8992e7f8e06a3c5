package world

import (
	"testing"

	"signalcraft.ai/internal/protocol"
)

type memAudit struct {
	entries []AuditEntry
}

func (m *memAudit) WriteAudit(e AuditEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

func (m *memAudit) byAction(action string) []AuditEntry {
	var out []AuditEntry
	for _, e := range m.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

func TestAudit_PlaceBreakToggle(t *testing.T) {
	w := newTestWorld(t)
	aud := &memAudit{}
	w.SetAuditLogger(aud)
	id := joinOne(t, w, "a", nil)

	pos := Vec3i{X: 1, Y: 4, Z: 1}
	stepEdits(w, id, protocol.EditReq{ID: "E1", Type: protocol.EditPlaceBlock, Pos: pos.ToArray(), Block: "LEVER"})

	places := aud.byAction("PLACE_BLOCK")
	if len(places) != 1 {
		t.Fatalf("place entries = %d, want 1", len(places))
	}
	if e := places[0]; e.Actor != id || e.From != "AIR" || e.To != "LEVER" || e.Pos != pos.ToArray() {
		t.Fatalf("place entry = %+v", e)
	}

	stepEdits(w, id, protocol.EditReq{ID: "E2", Type: protocol.EditToggle, Pos: pos.ToArray()})
	states := aud.byAction("SET_STATE")
	if len(states) != 1 {
		t.Fatalf("state entries = %d, want 1", len(states))
	}
	if e := states[0]; e.From != "LEVER[off]" || e.To != "LEVER[on]" || e.Reason != "toggle" {
		t.Fatalf("state entry = %+v", e)
	}

	stepEdits(w, id, protocol.EditReq{ID: "E3", Type: protocol.EditBreakBlock, Pos: pos.ToArray()})
	breaks := aud.byAction("BREAK_BLOCK")
	if len(breaks) != 1 {
		t.Fatalf("break entries = %d, want 1", len(breaks))
	}
	if e := breaks[0]; e.From != "LEVER" || e.To != "AIR" {
		t.Fatalf("break entry = %+v", e)
	}
}

// Wire power flowing during a settle must not generate audit rows;
// only the block id changes are recorded.
func TestAudit_SettleIsSilent(t *testing.T) {
	w := newTestWorld(t)
	aud := &memAudit{}
	w.SetAuditLogger(aud)
	id := joinOne(t, w, "a", nil)

	placeRow(t, w, id, 4, 0, "LEVER", "WIRE", "WIRE", "WIRE")
	n := len(aud.entries)
	toggle(w, id, Vec3i{X: 0, Y: 4, Z: 0})

	// Exactly one new row: the lever flip.
	if got := len(aud.entries) - n; got != 1 {
		t.Fatalf("toggle produced %d audit rows, want 1", got)
	}
	if e := aud.entries[len(aud.entries)-1]; e.Action != "SET_STATE" || e.To != "LEVER[on]" {
		t.Fatalf("toggle entry = %+v", e)
	}
}

func TestAudit_UnsupportedBreakBlamesWorld(t *testing.T) {
	w := newTestWorld(t)
	aud := &memAudit{}
	w.SetAuditLogger(aud)
	id := joinOne(t, w, "a", nil)

	base := Vec3i{X: 2, Y: 4, Z: 2}
	wirePos := Vec3i{X: 2, Y: 5, Z: 2}
	stepEdits(w, id, protocol.EditReq{ID: "E1", Type: protocol.EditPlaceBlock, Pos: base.ToArray(), Block: "STONE"})
	stepEdits(w, id, protocol.EditReq{ID: "E2", Type: protocol.EditPlaceBlock, Pos: wirePos.ToArray(), Block: "WIRE"})
	stepEdits(w, id, protocol.EditReq{ID: "E3", Type: protocol.EditBreakBlock, Pos: base.ToArray()})

	var wireBreak *AuditEntry
	for i := range aud.entries {
		e := &aud.entries[i]
		if e.Action == "BREAK_BLOCK" && e.Pos == wirePos.ToArray() {
			wireBreak = e
		}
	}
	if wireBreak == nil {
		t.Fatalf("no break entry for the dropped wire")
	}
	if wireBreak.Actor != "world" || wireBreak.Reason != "unsupported" || wireBreak.From != "WIRE" {
		t.Fatalf("wire break entry = %+v", wireBreak)
	}
}

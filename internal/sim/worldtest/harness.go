package worldtest

import (
	"encoding/json"
	"strconv"
	"testing"

	"signalcraft.ai/internal/persistence/snapshot"
	"signalcraft.ai/internal/protocol"
	"signalcraft.ai/internal/sim/catalogs"
	"signalcraft.ai/internal/sim/encoding"
	"signalcraft.ai/internal/sim/world"
)

// Harness drives a world through its exported surface only: joins and
// acts go through StepOnce, state comes back out of the OBS frames.
// Tests here see exactly what a connected client would see.
type Harness struct {
	T    *testing.T
	Cats *catalogs.Catalogs
	W    *world.World

	DefaultClientID string

	palette []string
	editSeq int

	sessions map[string]*session
}

type session struct {
	ClientID string
	Out      chan []byte
	lastObs  protocol.ObsMsg
}

func NewHarness(t *testing.T, cfg world.WorldConfig, cats *catalogs.Catalogs, clientName string) *Harness {
	t.Helper()
	w, err := world.New(cfg, cats)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	return NewHarnessWithWorld(t, w, cats, clientName)
}

// NewHarnessWithWorld wraps an already-built world, for snapshot
// resume tests where the import happens before the first join.
func NewHarnessWithWorld(t *testing.T, w *world.World, cats *catalogs.Catalogs, clientName string) *Harness {
	t.Helper()
	h := &Harness{
		T:        t,
		Cats:     cats,
		W:        w,
		sessions: map[string]*session{},
	}
	h.DefaultClientID = h.Join(clientName)
	return h
}

func (h *Harness) Join(clientName string) string {
	h.T.Helper()
	out := make(chan []byte, 16)
	resp := make(chan world.JoinResponse, 1)
	_, _ = h.W.StepOnce([]world.JoinRequest{{
		Name: clientName,
		Out:  out,
		Resp: resp,
	}}, nil, nil)
	jr := <-resp
	if jr.Welcome.ClientID == "" {
		h.T.Fatalf("join returned empty client id")
	}
	if h.palette == nil {
		h.palette = paletteFrom(h.T, jr.Catalogs)
	}
	s := &session{ClientID: jr.Welcome.ClientID, Out: out}
	h.sessions[s.ClientID] = s
	h.drainAllObs()
	return s.ClientID
}

// paletteFrom recovers the palette the way a client would: from the
// CATALOG messages delivered at join.
func paletteFrom(t *testing.T, msgs []protocol.CatalogMsg) []string {
	t.Helper()
	for _, cm := range msgs {
		if cm.Name != "block_palette" {
			continue
		}
		raw, err := json.Marshal(cm.Data)
		if err != nil {
			t.Fatalf("re-marshal palette: %v", err)
		}
		var palette []string
		if err := json.Unmarshal(raw, &palette); err != nil {
			t.Fatalf("decode palette: %v", err)
		}
		return palette
	}
	t.Fatalf("no block_palette catalog in join response")
	return nil
}

// Leave detaches a client. The harness keeps the stale session so
// tests can assert that no further frames arrived for it.
func (h *Harness) Leave(clientID string) {
	h.T.Helper()
	_, _ = h.W.StepOnce(nil, []string{clientID}, nil)
	h.drainAllObs()
}

func (h *Harness) LastObs() protocol.ObsMsg { return h.LastObsFor(h.DefaultClientID) }

func (h *Harness) LastObsFor(clientID string) protocol.ObsMsg {
	h.T.Helper()
	s := h.sessions[clientID]
	if s == nil {
		h.T.Fatalf("unknown client id: %q", clientID)
	}
	return s.lastObs
}

// Act submits edits for the default client and steps one tick.
func (h *Harness) Act(edits ...protocol.EditReq) protocol.ObsMsg {
	return h.ActFor(h.DefaultClientID, edits...)
}

func (h *Harness) ActFor(clientID string, edits ...protocol.EditReq) protocol.ObsMsg {
	h.T.Helper()
	env := h.Envelope(clientID, edits...)
	_, _ = h.W.StepOnce(nil, nil, []world.ActionEnvelope{env})
	h.drainAllObs()
	return h.LastObsFor(clientID)
}

// Envelope builds an ACT stamped at the current tick without
// submitting it, for tests that step several clients in one tick.
func (h *Harness) Envelope(clientID string, edits ...protocol.EditReq) world.ActionEnvelope {
	return world.ActionEnvelope{
		ClientID: clientID,
		Act: protocol.ActMsg{
			Type:            protocol.TypeAct,
			ProtocolVersion: protocol.Version,
			Tick:            h.W.CurrentTick(),
			ClientID:        clientID,
			Edits:           edits,
		},
	}
}

func (h *Harness) StepMulti(envs ...world.ActionEnvelope) {
	h.T.Helper()
	_, _ = h.W.StepOnce(nil, nil, envs)
	h.drainAllObs()
}

func (h *Harness) StepNoop() protocol.ObsMsg {
	h.T.Helper()
	_, _ = h.W.StepOnce(nil, nil, nil)
	h.drainAllObs()
	return h.LastObs()
}

func (h *Harness) StepN(n int) {
	h.T.Helper()
	for i := 0; i < n; i++ {
		h.StepNoop()
	}
}

func (h *Harness) editID() string {
	h.editSeq++
	return "E" + strconv.Itoa(h.editSeq)
}

// Place submits one PLACE_BLOCK edit and fails unless it applies.
func (h *Harness) Place(pos world.Vec3i, block string) {
	h.T.Helper()
	ref := h.editID()
	obs := h.Act(protocol.EditReq{ID: ref, Type: protocol.EditPlaceBlock, Pos: pos.ToArray(), Block: block})
	h.requireApplied(obs, ref, "place "+block)
}

func (h *Harness) Break(pos world.Vec3i) {
	h.T.Helper()
	ref := h.editID()
	obs := h.Act(protocol.EditReq{ID: ref, Type: protocol.EditBreakBlock, Pos: pos.ToArray()})
	h.requireApplied(obs, ref, "break")
}

func (h *Harness) Toggle(pos world.Vec3i) {
	h.T.Helper()
	ref := h.editID()
	obs := h.Act(protocol.EditReq{ID: ref, Type: protocol.EditToggle, Pos: pos.ToArray()})
	h.requireApplied(obs, ref, "toggle")
}

func (h *Harness) requireApplied(obs protocol.ObsMsg, ref, what string) {
	h.T.Helper()
	for _, e := range obs.Events {
		if e["type"] != "EDIT_RESULT" || e["ref"] != ref {
			continue
		}
		if ok, _ := e["ok"].(bool); !ok {
			h.T.Fatalf("%s rejected: code=%v message=%v", what, e["code"], e["message"])
		}
		return
	}
	h.T.Fatalf("no EDIT_RESULT for %s (ref %s)", what, ref)
}

// BlockAt names the block at pos as seen through the default client's
// last voxel cube. Fails when pos is outside the cube.
func (h *Harness) BlockAt(pos world.Vec3i) string {
	h.T.Helper()
	return h.BlockAtFor(h.DefaultClientID, pos)
}

func (h *Harness) BlockAtFor(clientID string, pos world.Vec3i) string {
	h.T.Helper()
	obs := h.LastObsFor(clientID)
	r := obs.Voxels.Radius
	c := obs.Voxels.Center
	dx, dy, dz := pos.X-c[0], pos.Y-c[1], pos.Z-c[2]
	if dx < -r || dx > r || dy < -r || dy > r || dz < -r || dz > r {
		h.T.Fatalf("pos %v outside the obs cube around %v (r=%d)", pos, c, r)
	}
	if obs.Voxels.Encoding != "RLE" {
		h.T.Fatalf("voxel encoding = %s, want RLE", obs.Voxels.Encoding)
	}
	dim := 2*r + 1
	ids, err := encoding.DecodeRLEN(obs.Voxels.Data, dim*dim*dim)
	if err != nil {
		h.T.Fatalf("decode voxels: %v", err)
	}
	id := ids[(dy+r)*dim*dim+(dz+r)*dim+(dx+r)]
	if int(id) >= len(h.palette) {
		h.T.Fatalf("palette id %d out of range", id)
	}
	return h.palette[id]
}

// WirePowerAt reads a wire's power from the overlay of the default
// client's last OBS. The second return is false when no wire is there.
func (h *Harness) WirePowerAt(pos world.Vec3i) (int, bool) {
	for _, wo := range h.LastObs().Wires {
		if wo.Pos == pos.ToArray() {
			return wo.Power, true
		}
	}
	return 0, false
}

func (h *Harness) SwitchOnAt(pos world.Vec3i) (bool, bool) {
	for _, so := range h.LastObs().Switches {
		if so.Pos == pos.ToArray() {
			return so.On, true
		}
	}
	return false, false
}

// Snapshot exports at currentTick-1 so an import resumes exactly at
// the current tick.
func (h *Harness) Snapshot() (tick uint64, snap snapshot.SnapshotV1) {
	h.T.Helper()
	cur := h.W.CurrentTick()
	if cur == 0 {
		return 0, h.W.ExportSnapshot(0)
	}
	tick = cur - 1
	return tick, h.W.ExportSnapshot(tick)
}

func (h *Harness) drainAllObs() {
	h.T.Helper()
	for _, s := range h.sessions {
		h.drainOneObs(s)
	}
}

func (h *Harness) drainOneObs(s *session) {
	h.T.Helper()
	var last []byte
	for {
		select {
		case b := <-s.Out:
			last = b
			continue
		default:
		}
		break
	}
	if len(last) == 0 {
		return
	}
	var obs protocol.ObsMsg
	if err := json.Unmarshal(last, &obs); err != nil {
		h.T.Fatalf("unmarshal OBS: %v", err)
	}
	s.lastObs = obs
}

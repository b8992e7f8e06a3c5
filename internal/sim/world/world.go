package world

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"signalcraft.ai/internal/persistence/snapshot"
	"signalcraft.ai/internal/protocol"
	"signalcraft.ai/internal/sim/catalogs"
	"signalcraft.ai/internal/sim/signal"
)

// Actor names recorded in audits for mutations no client asked for.
const (
	actorWorld  = "world"
	actorSignal = "signal"
)

type clientState struct {
	ID          string
	Name        string
	Out         chan []byte
	DeltaVoxels bool
	Focus       Vec3i

	events []protocol.Event

	// Delta baseline: the voxel cube sent last tick.
	lastVoxels []uint16
	lastFocus  Vec3i
	hasLast    bool

	rlStart uint64
	rlCount int
}

func (c *clientState) addEvent(e protocol.Event) {
	c.events = append(c.events, e)
}

func (c *clientState) takeEvents() []protocol.Event {
	ev := c.events
	c.events = nil
	return ev
}

// allowEdit counts an edit against the client's sliding window.
func (c *clientState) allowEdit(nowTick uint64, window uint64, max int) bool {
	if window == 0 || max <= 0 {
		return true
	}
	if nowTick-c.rlStart >= window {
		c.rlStart = nowTick
		c.rlCount = 0
	}
	c.rlCount++
	return c.rlCount <= max
}

type scheduledAction struct {
	Due    uint64
	Action string
}

// Scheduled action kinds.
const schedRelease = "RELEASE"

// World is a single-threaded authoritative simulation. All state must
// be accessed only from the world loop goroutine.
type World struct {
	cfg      WorldConfig
	catalogs *catalogs.Catalogs
	blocks   *blockSet

	tick atomic.Uint64

	chunks *ChunkStore
	engine *signal.Handler

	// Random tick block ids.
	dirtID  uint16
	grassID uint16

	// Sidecars keyed by position: wire power for every wire in the
	// world, on/off for every lever, button and lamp.
	wirePower map[Vec3i]int
	onState   map[Vec3i]bool

	schedule map[Vec3i]scheduledAction

	clients       map[string]*clientState
	nextClientNum atomic.Uint64

	inbox chan ActionEnvelope
	join  chan JoinRequest
	leave chan string
	admin chan adminSnapshotReq
	stop  chan struct{}

	tickLogger   TickLogger
	auditLogger  AuditLogger
	snapshotSink chan<- snapshot.SnapshotV1

	// Per-step scratch, reset at every tick boundary.
	edited     map[Vec3i]bool
	editLog    []EditLogEntry
	broadcasts []protocol.Event

	lastStats signal.Stats

	metrics  atomic.Value
	stepTime time.Duration
}

func New(cfg WorldConfig, cats *catalogs.Catalogs) (*World, error) {
	cfg.applyDefaults()

	w := &World{
		cfg:       cfg,
		catalogs:  cats,
		wirePower: map[Vec3i]int{},
		onState:   map[Vec3i]bool{},
		schedule:  map[Vec3i]scheduledAction{},
		clients:   map[string]*clientState{},
		edited:    map[Vec3i]bool{},
		inbox:     make(chan ActionEnvelope, 1024),
		join:      make(chan JoinRequest, 64),
		leave:     make(chan string, 64),
		admin:     make(chan adminSnapshotReq, 4),
		stop:      make(chan struct{}),
	}

	set, err := newBlockSet(w, cats)
	if err != nil {
		return nil, err
	}
	w.blocks = set

	// Resolve the generator's block ids.
	b := func(id string) (uint16, error) {
		v, ok := cats.Blocks.Index[id]
		if !ok {
			return 0, fmt.Errorf("missing block id in palette: %s", id)
		}
		return v, nil
	}
	var gen WorldGen
	gen.Seed = cfg.Seed
	gen.Height = cfg.Height
	if gen.Air, err = b("AIR"); err != nil {
		return nil, err
	}
	if gen.Bedrock, err = b("BEDROCK"); err != nil {
		return nil, err
	}
	if gen.Stone, err = b("STONE"); err != nil {
		return nil, err
	}
	if gen.Dirt, err = b("DIRT"); err != nil {
		return nil, err
	}
	if gen.Grass, err = b("GRASS"); err != nil {
		return nil, err
	}
	w.dirtID = gen.Dirt
	w.grassID = gen.Grass
	w.chunks = NewChunkStore(gen)

	w.engine = signal.NewHandler(w)
	return w, nil
}

func (w *World) SetTickLogger(l TickLogger)                    { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger)                  { w.auditLogger = l }
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

func (w *World) Inbox() chan<- ActionEnvelope { return w.inbox }
func (w *World) Join() chan<- JoinRequest     { return w.join }
func (w *World) Leave() chan<- string         { return w.leave }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

// Config returns the effective world configuration. The config is
// immutable after New, so reading it from other goroutines is fine.
func (w *World) Config() WorldConfig { return w.cfg }

// BlockPalette returns a copy of the block palette.
func (w *World) BlockPalette() []string {
	return append([]string(nil), w.catalogs.Blocks.Palette...)
}

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingActions []ActionEnvelope
	var pendingJoins []JoinRequest
	var pendingLeaves []string
	var pendingAdmin []adminSnapshotReq

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.join:
			pendingJoins = append(pendingJoins, req)
		case id := <-w.leave:
			pendingLeaves = append(pendingLeaves, id)
		case env := <-w.inbox:
			pendingActions = append(pendingActions, env)
		case req := <-w.admin:
			pendingAdmin = append(pendingAdmin, req)
		case <-ticker.C:
			w.step(pendingJoins, pendingLeaves, pendingActions)
			w.handleSnapshotRequests(pendingAdmin)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingActions = pendingActions[:0]
			pendingAdmin = pendingAdmin[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

func (w *World) joinClient(name string, delta bool, out chan []byte) JoinResponse {
	if name == "" {
		name = "client"
	}
	idNum := w.nextClientNum.Add(1)
	clientID := fmt.Sprintf("C%d", idNum)

	// Spawn focus above the surface near origin, spread along x so
	// clients do not watch the exact same cube.
	fx := int(idNum-1) * 2
	c := &clientState{
		ID:          clientID,
		Name:        name,
		Out:         out,
		DeltaVoxels: delta,
		Focus:       Vec3i{X: fx, Y: surfaceLevel + 1, Z: 0},
	}
	w.clients[clientID] = c

	cat := w.catalogs.Blocks
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		ClientID:        clientID,
		WorldParams: protocol.WorldParams{
			TickRateHz: w.cfg.TickRateHz,
			ChunkSize:  [3]int{chunkSize, chunkSize, chunkSize},
			Height:     w.cfg.Height,
			ObsRadius:  w.cfg.ObsRadius,
			BoundaryR:  w.cfg.BoundaryR,
			Seed:       w.cfg.Seed,
		},
		Catalogs: protocol.CatalogDigests{
			BlockPalette:    protocol.DigestRef{Digest: cat.PaletteDigest, Count: len(cat.Palette)},
			BlockDefsDigest: cat.DefsDigest,
		},
	}
	catMsgs := []protocol.CatalogMsg{
		{
			Type:            protocol.TypeCatalog,
			ProtocolVersion: protocol.Version,
			Name:            "block_palette",
			Digest:          cat.PaletteDigest,
			Part:            1,
			TotalParts:      1,
			Data:            cat.Palette,
		},
		{
			Type:            protocol.TypeCatalog,
			ProtocolVersion: protocol.Version,
			Name:            "block_defs",
			Digest:          cat.DefsDigest,
			Part:            1,
			TotalParts:      1,
			Data:            cat.Defs,
		},
	}
	return JoinResponse{Welcome: welcome, Catalogs: catMsgs}
}

func (w *World) handleLeave(id string) {
	delete(w.clients, id)
}

func (w *World) step(joins []JoinRequest, leaves []string, actions []ActionEnvelope) {
	started := time.Now()
	nowTick := w.tick.Load()

	w.editLog = w.editLog[:0]
	w.broadcasts = w.broadcasts[:0]
	clear(w.edited)

	// Leaves and joins apply deterministically at the tick boundary.
	recordedLeaves := make([]string, 0, len(leaves))
	for _, id := range leaves {
		if _, ok := w.clients[id]; ok {
			w.handleLeave(id)
			recordedLeaves = append(recordedLeaves, id)
		}
	}
	recordedJoins := make([]JoinLogEntry, 0, len(joins))
	for _, req := range joins {
		resp := w.joinClient(req.Name, req.DeltaVoxels, req.Out)
		if req.Resp != nil {
			req.Resp <- resp
		}
		recordedJoins = append(recordedJoins, JoinLogEntry{ClientID: resp.Welcome.ClientID, Name: req.Name})
	}

	// Edits apply in inbox order.
	for _, env := range actions {
		c := w.clients[env.ClientID]
		if c == nil {
			continue
		}
		env.Act.ClientID = env.ClientID // trust session identity
		w.applyAct(c, env.Act, nowTick)
	}

	w.runSchedule(nowTick)
	w.runRandomTicks(nowTick)

	settle := w.settleDelta()
	if settle.Count > 0 {
		w.broadcast(protocol.Event{
			"t":             nowTick,
			"type":          "SIGNAL_SETTLED",
			"settles":       settle.Count,
			"wires_set":     settle.WiresSet,
			"block_updates": settle.BlockUpdates,
			"shape_updates": settle.ShapeUpdates,
		})
	}

	digest := w.stateDigest(nowTick)

	for _, c := range w.clients {
		obs := w.buildObs(c, nowTick, digest)
		b, err := json.Marshal(obs)
		if err != nil {
			continue
		}
		sendLatest(c.Out, b)
	}

	if w.tickLogger != nil {
		entry := TickLogEntry{
			Tick:   nowTick,
			Joins:  recordedJoins,
			Leaves: recordedLeaves,
			Settle: settle,
			Digest: digest,
		}
		if len(w.editLog) > 0 {
			entry.Edits = append([]EditLogEntry(nil), w.editLog...)
		}
		_ = w.tickLogger.WriteTick(entry)
	}

	if w.snapshotSink != nil && w.cfg.SnapshotEveryTicks > 0 && (nowTick+1)%w.cfg.SnapshotEveryTicks == 0 {
		snap := w.ExportSnapshot(nowTick)
		select {
		case w.snapshotSink <- snap:
		default:
			// Drop the snapshot if the sink is backed up.
		}
	}

	w.stepTime = time.Since(started)
	w.publishMetrics(nowTick, settle, digest)
	w.tick.Add(1)
}

// StepOnce advances the world by a single tick with the same ordering
// semantics as the server loop. Intended for tests and replays.
func (w *World) StepOnce(joins []JoinRequest, leaves []string, actions []ActionEnvelope) (tick uint64, digest string) {
	tick = w.tick.Load()
	w.step(joins, leaves, actions)
	return tick, w.stateDigest(tick)
}

// ReplayTick re-applies one recorded tick. Only edits that applied in
// the original run are executed; rejected ones never touched state.
func (w *World) ReplayTick(entry TickLogEntry) (digest string) {
	nowTick := w.tick.Load()

	w.broadcasts = w.broadcasts[:0]
	for range entry.Joins {
		w.nextClientNum.Add(1)
	}
	for _, e := range entry.Edits {
		if e.Code != "" {
			continue
		}
		w.replayEdit(e)
	}
	w.runSchedule(nowTick)
	w.runRandomTicks(nowTick)
	w.settleDelta()

	digest = w.stateDigest(nowTick)
	w.tick.Add(1)
	return digest
}

func (w *World) applyAct(c *clientState, act protocol.ActMsg, nowTick uint64) {
	// Staleness: accept only [now-2, now].
	if act.Tick+2 < nowTick || act.Tick > nowTick {
		c.addEvent(editResult(nowTick, "ACT", protocol.ErrStale, "act tick out of range"))
		for _, e := range act.Edits {
			w.recordEdit(c.ID, e, protocol.ErrStale)
		}
		return
	}

	edits := act.Edits
	if len(edits) > w.cfg.MaxEditsPerAct {
		for _, e := range edits[w.cfg.MaxEditsPerAct:] {
			c.addEvent(editResult(nowTick, e.ID, protocol.ErrRateLimit, "too many edits in one act"))
			w.recordEdit(c.ID, e, protocol.ErrRateLimit)
		}
		edits = edits[:w.cfg.MaxEditsPerAct]
	}

	for _, e := range edits {
		code, msg := w.applyEdit(c, e, nowTick)
		w.recordEdit(c.ID, e, code)
		if msg == "" && code == "" {
			msg = "ok"
		}
		c.addEvent(editResult(nowTick, e.ID, code, msg))
	}
}

func (w *World) recordEdit(clientID string, e protocol.EditReq, code string) {
	w.editLog = append(w.editLog, EditLogEntry{
		Client: clientID,
		Action: e.Type,
		Pos:    e.Pos,
		Block:  e.Block,
		Code:   code,
	})
}

func (w *World) settleDelta() SettleLogEntry {
	cur := w.engine.Stats()
	d := SettleLogEntry{
		Count:        cur.Settles - w.lastStats.Settles,
		WiresSet:     cur.WiresSet - w.lastStats.WiresSet,
		BlockUpdates: cur.BlockUpdates - w.lastStats.BlockUpdates,
		ShapeUpdates: cur.ShapeUpdates - w.lastStats.ShapeUpdates,
	}
	w.lastStats = cur
	return d
}

// broadcast queues an event for every connected client's next OBS.
func (w *World) broadcast(e protocol.Event) {
	w.broadcasts = append(w.broadcasts, e)
}

func editResult(tick uint64, ref string, code string, message string) protocol.Event {
	e := protocol.Event{
		"t":    tick,
		"type": "EDIT_RESULT",
		"ref":  ref,
		"ok":   code == "",
	}
	if code != "" {
		e["code"] = code
	}
	if message != "" {
		e["message"] = message
	}
	return e
}

func (w *World) audit(pos Vec3i, from, to, actor, action, reason string) {
	if w.auditLogger == nil {
		return
	}
	_ = w.auditLogger.WriteAudit(AuditEntry{
		Tick:   w.tick.Load(),
		Actor:  actor,
		Action: action,
		Pos:    pos.ToArray(),
		From:   from,
		To:     to,
		Reason: reason,
	})
}

// surfaceY is the highest non-air y at (x, z), or 0 for an empty
// column. Reads only; never materializes a chunk.
func (w *World) surfaceY(x, z int) int {
	for y := w.cfg.Height - 1; y >= 0; y-- {
		if w.chunks.BlockAt(x, y, z) != w.blocks.air {
			return y
		}
	}
	return 0
}

// sendLatest delivers b without ever blocking the world loop. When the
// channel is full the oldest frame is dropped: slow readers skip ahead
// rather than stall the simulation.
func sendLatest(ch chan []byte, b []byte) {
	if ch == nil {
		return
	}
	select {
	case ch <- b:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}

package indexdb

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"signalcraft.ai/internal/persistence/snapshot"
	"signalcraft.ai/internal/sim/catalogs"
	"signalcraft.ai/internal/sim/tuning"
	"signalcraft.ai/internal/sim/world"
)

func openTestIndex(t *testing.T) (*SQLiteIndex, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "world.sqlite")
	idx, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	return idx, dbPath
}

func queryInt(t *testing.T, dbPath, q string, args ...any) int {
	t.Helper()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow(q, args...).Scan(&n); err != nil {
		t.Fatalf("query %q: %v", q, err)
	}
	return n
}

func TestSQLiteIndex_WritesTicksEditsSettles(t *testing.T) {
	idx, dbPath := openTestIndex(t)

	err := idx.WriteTick(world.TickLogEntry{
		Tick:   5,
		Digest: "abc",
		Joins:  []world.JoinLogEntry{{ClientID: "C1", Name: "probe"}},
		Edits: []world.EditLogEntry{
			{Client: "C1", Action: "PLACE_BLOCK", Pos: [3]int{1, 4, 0}, Block: "WIRE"},
			{Client: "C1", Action: "TOGGLE", Pos: [3]int{0, 4, 0}, Code: "E_INVALID_TARGET"},
		},
		Settle: world.SettleLogEntry{Count: 1, WiresSet: 3, BlockUpdates: 40, ShapeUpdates: 6},
	})
	if err != nil {
		t.Fatalf("WriteTick: %v", err)
	}
	err = idx.WriteAudit(world.AuditEntry{
		Tick: 5, Actor: "C1", Action: "PLACE_BLOCK",
		Pos: [3]int{1, 4, 0}, From: "AIR", To: "WIRE",
	})
	if err != nil {
		t.Fatalf("WriteAudit: %v", err)
	}
	idx.RecordSnapshot("/tmp/snap-000000000005.zst", snapshot.SnapshotV1{
		Header: snapshot.Header{Version: 1, WorldID: "w1", Tick: 5},
		Seed:   42, Height: 64,
		Chunks: []snapshot.ChunkV1{{}},
		Wires:  []snapshot.WireV1{{Pos: [3]int{1, 4, 0}, Power: 15}},
	})

	// Close drains the queue and commits.
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if n := queryInt(t, dbPath, `SELECT COUNT(*) FROM ticks WHERE tick=5 AND digest='abc'`); n != 1 {
		t.Fatalf("ticks rows: %d", n)
	}
	if n := queryInt(t, dbPath, `SELECT COUNT(*) FROM edits WHERE tick=5`); n != 2 {
		t.Fatalf("edits rows: %d", n)
	}
	if n := queryInt(t, dbPath, `SELECT COUNT(*) FROM edits WHERE code='E_INVALID_TARGET'`); n != 1 {
		t.Fatalf("rejected edit rows: %d", n)
	}
	if n := queryInt(t, dbPath, `SELECT wires_set FROM settles WHERE tick=5`); n != 3 {
		t.Fatalf("settles.wires_set: %d", n)
	}
	if n := queryInt(t, dbPath, `SELECT COUNT(*) FROM audits WHERE tick=5 AND to_block='WIRE'`); n != 1 {
		t.Fatalf("audits rows: %d", n)
	}
	if n := queryInt(t, dbPath, `SELECT wires FROM snapshots WHERE tick=5`); n != 1 {
		t.Fatalf("snapshots.wires: %d", n)
	}
}

func TestSQLiteIndex_UpsertCatalogs(t *testing.T) {
	idx, dbPath := openTestIndex(t)
	defer idx.Close()

	cfgDir := t.TempDir()
	body := `[{"id":"AIR"},{"id":"WIRE","breakable":true,"behavior":"wire","wire":{"signal":"redstone","min":0,"max":15,"step":1}}]`
	if err := os.WriteFile(filepath.Join(cfgDir, "blocks.json"), []byte(body), 0o644); err != nil {
		t.Fatalf("write blocks.json: %v", err)
	}
	cats, err := catalogs.Load(cfgDir)
	if err != nil {
		t.Fatalf("catalogs.Load: %v", err)
	}

	if err := idx.UpsertCatalogs(cfgDir, cats, tuning.Tuning{TickRateHz: 10}); err != nil {
		t.Fatalf("UpsertCatalogs: %v", err)
	}

	if n := queryInt(t, dbPath, `SELECT COUNT(*) FROM catalogs WHERE name IN ('blocks_defs','blocks_palette','tuning')`); n != 3 {
		t.Fatalf("catalog rows: %d", n)
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqTick, tick: world.TickLogEntry{Tick: 1}}

	_ = s.WriteTick(world.TickLogEntry{Tick: 2})
	_ = s.WriteAudit(world.AuditEntry{Tick: 2})
	s.RecordSnapshot("/tmp/2.snap.zst", snapshot.SnapshotV1{})

	st := s.Stats()
	if st.DropTickTotal != 1 {
		t.Fatalf("DropTickTotal=%d want=1", st.DropTickTotal)
	}
	if st.DropAuditTotal != 1 {
		t.Fatalf("DropAuditTotal=%d want=1", st.DropAuditTotal)
	}
	if st.DropSnapshotTotal != 1 {
		t.Fatalf("DropSnapshotTotal=%d want=1", st.DropSnapshotTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

package archive

import (
	"os"
	"path/filepath"
	"testing"

	"signalcraft.ai/internal/persistence/snapshot"
)

func TestArchiveSnapshot_CopiesBoundarySnapshot(t *testing.T) {
	worldDir := t.TempDir()

	src := snapshot.Path(worldDir, 5999)
	if err := os.MkdirAll(filepath.Dir(src), 0o755); err != nil {
		t.Fatalf("mkdir snapshots: %v", err)
	}
	want := []byte("dummy")
	if err := os.WriteFile(src, want, 0o644); err != nil {
		t.Fatalf("write src: %v", err)
	}

	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{Version: 1, WorldID: "w1", Tick: 5999},
		Seed:   42,
	}

	archivedPath, ok, err := ArchiveSnapshot(worldDir, src, snap, 6000)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if !ok {
		t.Fatalf("expected archived=true at boundary")
	}
	got, err := os.ReadFile(archivedPath)
	if err != nil || string(got) != string(want) {
		t.Fatalf("archived copy wrong: %q %v", got, err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(archivedPath), "meta.json")); err != nil {
		t.Fatalf("meta.json missing: %v", err)
	}

	// Off-boundary snapshot is skipped.
	snap.Header.Tick = 6001
	_, ok, err = ArchiveSnapshot(worldDir, src, snap, 6000)
	if err != nil || ok {
		t.Fatalf("expected archived=false off boundary, got %v %v", ok, err)
	}
}

func TestPruneSnapshots_KeepsNewest(t *testing.T) {
	worldDir := t.TempDir()
	for _, tick := range []uint64{100, 200, 300, 400} {
		p := snapshot.Path(worldDir, tick)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	removed, err := PruneSnapshots(worldDir, 2)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if len(removed) != 2 {
		t.Fatalf("removed %d files, want 2", len(removed))
	}

	left, err := snapshot.ListPaths(worldDir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(left) != 2 {
		t.Fatalf("left %d files, want 2", len(left))
	}
	if left[0] != snapshot.Path(worldDir, 300) || left[1] != snapshot.Path(worldDir, 400) {
		t.Fatalf("wrong survivors: %v", left)
	}

	// Keeping more than exist is a no-op.
	removed, err = PruneSnapshots(worldDir, 10)
	if err != nil || len(removed) != 0 {
		t.Fatalf("no-op prune: %v %v", removed, err)
	}
}

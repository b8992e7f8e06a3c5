package snapshot

import (
	"testing"
)

func sample(tick uint64) SnapshotV1 {
	blocks := make([]uint16, 4096)
	for i := 0; i < 256; i++ {
		blocks[i] = 2
	}
	return SnapshotV1{
		Header:    Header{Version: 1, WorldID: "w1", Tick: tick},
		Seed:      1337,
		TickRate:  10,
		ObsRadius: 8,
		Height:    64,
		BoundaryR: 256,
		Chunks: []ChunkV1{
			{CX: 0, CY: 0, CZ: 0, Blocks: blocks},
			{CX: -1, CY: 0, CZ: 2, Blocks: blocks},
		},
		Wires: []WireV1{
			{Pos: [3]int{1, 4, 0}, Power: 15},
			{Pos: [3]int{2, 4, 0}, Power: 14},
		},
		Switches: []SwitchV1{{Pos: [3]int{0, 4, 0}, On: true}},
		Schedule: []ScheduledTickV1{{Pos: [3]int{5, 4, 0}, Due: tick + 20, Action: "RELEASE"}},
		Counters: CountersV1{NextClient: 3},
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := Path(dir, 42)

	want := sample(42)
	if err := WriteSnapshot(path, want); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if got.Header != want.Header {
		t.Fatalf("header: got %+v want %+v", got.Header, want.Header)
	}
	if got.Seed != want.Seed || got.Height != want.Height {
		t.Fatalf("params: got %+v", got)
	}
	if len(got.Chunks) != 2 || got.Chunks[1].CX != -1 || got.Chunks[1].CZ != 2 {
		t.Fatalf("chunks: got %d", len(got.Chunks))
	}
	if got.Chunks[0].Blocks[0] != 2 || got.Chunks[0].Blocks[4095] != 0 {
		t.Fatalf("chunk blocks wrong")
	}
	if len(got.Wires) != 2 || got.Wires[0].Power != 15 {
		t.Fatalf("wires: %+v", got.Wires)
	}
	if len(got.Switches) != 1 || !got.Switches[0].On {
		t.Fatalf("switches: %+v", got.Switches)
	}
	if len(got.Schedule) != 1 || got.Schedule[0].Action != "RELEASE" {
		t.Fatalf("schedule: %+v", got.Schedule)
	}
	if got.Counters.NextClient != 3 {
		t.Fatalf("counters: %+v", got.Counters)
	}
}

func TestReadHeaderOnly(t *testing.T) {
	dir := t.TempDir()
	path := Path(dir, 7)
	if err := WriteSnapshot(path, sample(7)); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if h.Tick != 7 || h.WorldID != "w1" || h.Version != 1 {
		t.Fatalf("header: %+v", h)
	}
}

func TestListAndLatest(t *testing.T) {
	dir := t.TempDir()

	latest, err := LatestPath(dir)
	if err != nil || latest != "" {
		t.Fatalf("empty dir: got %q, %v", latest, err)
	}

	for _, tick := range []uint64{100, 20, 3000} {
		if err := WriteSnapshot(Path(dir, tick), sample(tick)); err != nil {
			t.Fatalf("WriteSnapshot(%d): %v", tick, err)
		}
	}

	paths, err := ListPaths(dir)
	if err != nil {
		t.Fatalf("ListPaths: %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("paths: got %d want 3", len(paths))
	}

	latest, err = LatestPath(dir)
	if err != nil {
		t.Fatalf("LatestPath: %v", err)
	}
	h, err := ReadHeader(latest)
	if err != nil || h.Tick != 3000 {
		t.Fatalf("latest should be tick 3000, got %+v (%v)", h, err)
	}
}

package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"
)

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
}

// SnapshotV1 captures the full simulation state plus the parameters
// needed to resume deterministically. Everything that feeds the state
// digest must round-trip through here.
type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed      int64 `json:"seed"`
	TickRate  int   `json:"tick_rate_hz"`
	ObsRadius int   `json:"obs_radius"`
	Height    int   `json:"height"`
	BoundaryR int   `json:"boundary_r"`

	// Operational parameters (captured for deterministic replay/resume).
	SnapshotEveryTicks int          `json:"snapshot_every_ticks,omitempty"`
	RandomTicksPerTick int          `json:"random_ticks_per_tick,omitempty"`
	MaxEditsPerAct     int          `json:"max_edits_per_act,omitempty"`
	RateLimits         RateLimitsV1 `json:"rate_limits,omitempty"`

	Chunks   []ChunkV1         `json:"chunks"`
	Wires    []WireV1          `json:"wires,omitempty"`
	Switches []SwitchV1        `json:"switches,omitempty"`
	Schedule []ScheduledTickV1 `json:"schedule,omitempty"`

	Counters CountersV1 `json:"counters"`
}

type RateLimitsV1 struct {
	EditWindowTicks int `json:"edit_window_ticks,omitempty"`
	EditMax         int `json:"edit_max,omitempty"`
}

type CountersV1 struct {
	NextClient uint64 `json:"next_client"`
}

type ChunkV1 struct {
	CX     int      `json:"cx"`
	CY     int      `json:"cy"`
	CZ     int      `json:"cz"`
	Blocks []uint16 `json:"blocks"`
}

type WireV1 struct {
	Pos   [3]int `json:"pos"`
	Power int    `json:"power"`
}

type SwitchV1 struct {
	Pos [3]int `json:"pos"`
	On  bool   `json:"on"`
}

type ScheduledTickV1 struct {
	Pos    [3]int `json:"pos"`
	Due    uint64 `json:"due_tick"`
	Action string `json:"action"`
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Header line is informational; gob carries it too.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

// ReadHeader decodes only the JSON header line, for listings that must
// not pay for a full state decode.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReaderSize(dec, 64*1024).ReadBytes('\n')
	if err != nil {
		return h, err
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("header: %w", err)
	}
	return h, nil
}

// Dir is the snapshot directory under a world dir.
func Dir(worldDir string) string { return filepath.Join(worldDir, "snapshots") }

// Path names the snapshot file for one tick. Zero-padded so string
// order matches tick order.
func Path(worldDir string, tick uint64) string {
	return filepath.Join(Dir(worldDir), fmt.Sprintf("snap-%012d.zst", tick))
}

// ListPaths returns all snapshot files under worldDir, oldest first.
func ListPaths(worldDir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(Dir(worldDir), "snap-*.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// LatestPath returns the newest snapshot file, or "" when none exist.
func LatestPath(worldDir string) (string, error) {
	paths, err := ListPaths(worldDir)
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", nil
	}
	return paths[len(paths)-1], nil
}

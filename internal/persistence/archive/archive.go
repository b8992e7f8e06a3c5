package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"signalcraft.ai/internal/persistence/snapshot"
)

type ArchiveMeta struct {
	Tick      uint64 `json:"tick"`
	Seed      int64  `json:"seed"`
	Snapshot  string `json:"snapshot"`
	CreatedAt string `json:"created_at"`
	Chunks    int    `json:"chunks"`
	Wires     int    `json:"wires"`
}

// ArchiveSnapshot copies a snapshot into `worldDir/archives/tick_<N>/`
// when its tick lands on an archive boundary. Archived copies survive
// pruning of the rolling snapshot directory.
func ArchiveSnapshot(worldDir, snapshotPath string, snap snapshot.SnapshotV1, everyTicks uint64) (archivedPath string, archived bool, err error) {
	if everyTicks == 0 {
		return "", false, nil
	}
	// Snapshots represent the last executed tick; boundaries happen at
	// tick multiples, so the boundary snapshot is at tick = k*every - 1.
	if (snap.Header.Tick+1)%everyTicks != 0 {
		return "", false, nil
	}

	archiveDir := filepath.Join(worldDir, "archives", fmt.Sprintf("tick_%012d", snap.Header.Tick))
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", false, err
	}

	dst := filepath.Join(archiveDir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return "", false, err
	}

	meta := ArchiveMeta{
		Tick:      snap.Header.Tick,
		Seed:      snap.Seed,
		Snapshot:  filepath.Base(dst),
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Chunks:    len(snap.Chunks),
		Wires:     len(snap.Wires),
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644)
	}

	return dst, true, nil
}

// PruneSnapshots removes the oldest files from the rolling snapshot
// directory, keeping the newest keep. Returns the removed paths.
func PruneSnapshots(worldDir string, keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}
	paths, err := snapshot.ListPaths(worldDir)
	if err != nil {
		return nil, err
	}
	if len(paths) <= keep {
		return nil, nil
	}
	victims := paths[:len(paths)-keep]
	removed := make([]string, 0, len(victims))
	for _, p := range victims {
		if err := os.Remove(p); err != nil {
			return removed, err
		}
		removed = append(removed, p)
	}
	return removed, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

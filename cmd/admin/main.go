package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	persistlog "signalcraft.ai/internal/persistence/log"
	"signalcraft.ai/internal/persistence/snapshot"
	"signalcraft.ai/internal/sim/catalogs"
	"signalcraft.ai/internal/sim/world"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "rollback":
			rollbackCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "worlds")
	if *worldID != "" {
		base = filepath.Join(base, *worldID)
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}

// rollbackCmd rewrites a region of a snapshot back to its pre-edit
// blocks using the audit log, and writes the result as a new snapshot.
// The output starts a fresh digest lineage; the event log of the
// original run does not replay on top of it.
func rollbackCmd(args []string) {
	fs := flag.NewFlagSet("rollback", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	configDir := fs.String("configs", "./configs", "config directory")
	snapPath := fs.String("snapshot", "", "snapshot path to rollback from (optional; defaults to latest)")
	aabb := fs.String("aabb", "", "AABB filter: x1,y1,z1:x2,y2,z2 (required)")
	sinceTick := fs.Uint64("since_tick", 0, "rollback changes since tick (inclusive)")
	toTick := fs.Uint64("to_tick", 0, "rollback changes up to tick (inclusive, optional; defaults to snapshot tick)")
	outPath := fs.String("out", "", "output snapshot path (optional)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*worldID) == "" {
		fmt.Fprintln(os.Stderr, "missing -world")
		os.Exit(2)
	}
	if strings.TrimSpace(*aabb) == "" {
		fmt.Fprintln(os.Stderr, "missing -aabb")
		os.Exit(2)
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" {
		p, err := snapshot.LatestPath(worldDir)
		if err != nil {
			fmt.Fprintln(os.Stderr, "scan snapshots:", err)
			os.Exit(1)
		}
		snapshotToLoad = p
	}
	if snapshotToLoad == "" {
		fmt.Fprintln(os.Stderr, "no snapshot found; provide -snapshot or run the server until it writes one")
		os.Exit(2)
	}

	snap, err := snapshot.ReadSnapshot(snapshotToLoad)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}

	min, max, err := parseAABB(*aabb)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bad -aabb:", err)
		os.Exit(2)
	}

	endTick := *toTick
	if endTick == 0 || endTick > snap.Header.Tick {
		endTick = snap.Header.Tick
	}

	recs, err := readAudit(worldDir, *sinceTick, endTick, min, max)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read audit:", err)
		os.Exit(1)
	}
	if len(recs) == 0 {
		fmt.Println("no matching audit entries; nothing to rollback")
		return
	}

	applied, skipped := applyRollback(&snap, cats, recs)

	out := strings.TrimSpace(*outPath)
	if out == "" {
		out = filepath.Join(snapshot.Dir(worldDir), fmt.Sprintf("rollback-%012d.zst", snap.Header.Tick))
	}
	if err := snapshot.WriteSnapshot(out, snap); err != nil {
		fmt.Fprintln(os.Stderr, "write snapshot:", err)
		os.Exit(1)
	}

	fmt.Printf("rollback ok: snapshot=%s tick=%d aabb=%s since=%d to=%d entries=%d applied=%d skipped=%d out=%s\n",
		filepath.Base(snapshotToLoad), snap.Header.Tick, *aabb, *sinceTick, endTick, len(recs), applied, skipped, out)
}

type auditRec struct {
	Seq   uint64
	Entry world.AuditEntry
}

// readAudit collects block-content audit rows inside the AABB and tick
// window, newest first. SET_STATE rows describe on/off flips, not block
// content, and are skipped.
func readAudit(worldDir string, sinceTick, toTick uint64, min, max [3]int) ([]auditRec, error) {
	dir := filepath.Join(worldDir, "audit")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "audit-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	out := make([]auditRec, 0, 1024)
	var seq uint64

	for _, name := range names {
		path := filepath.Join(dir, name)
		err := persistlog.ReadJSONLZstd(path, func(line []byte) error {
			var e world.AuditEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
			}
			seq++
			switch e.Action {
			case "PLACE_BLOCK", "BREAK_BLOCK", "SET_BLOCK":
			default:
				return nil
			}
			if e.Tick < sinceTick || e.Tick > toTick {
				return nil
			}
			if !withinAABB(e.Pos, min, max) {
				return nil
			}
			out = append(out, auditRec{Seq: seq, Entry: e})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	// Reverse chronological apply: highest tick first; for same tick use reverse read order.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Entry.Tick != out[j].Entry.Tick {
			return out[i].Entry.Tick > out[j].Entry.Tick
		}
		return out[i].Seq > out[j].Seq
	})
	return out, nil
}

func applyRollback(snap *snapshot.SnapshotV1, cats *catalogs.Catalogs, recs []auditRec) (applied, skipped int) {
	if snap == nil || len(recs) == 0 {
		return 0, 0
	}
	chunks := map[[3]int]*snapshot.ChunkV1{}
	for i := range snap.Chunks {
		ch := &snap.Chunks[i]
		chunks[[3]int{ch.CX, ch.CY, ch.CZ}] = ch
	}

	touched := map[[3]int]bool{}
	for _, r := range recs {
		p := r.Entry.Pos
		id, ok := cats.Blocks.Index[r.Entry.From]
		if !ok {
			skipped++
			continue
		}
		ch := chunks[[3]int{floorDiv(p[0], 16), floorDiv(p[1], 16), floorDiv(p[2], 16)}]
		if ch == nil {
			skipped++
			continue
		}
		i := (p[0] & 15) | (p[2]&15)<<4 | (p[1]&15)<<8
		if i < 0 || i >= len(ch.Blocks) {
			skipped++
			continue
		}
		ch.Blocks[i] = id
		touched[p] = true
		applied++
	}

	// Overlay rows at rewritten positions no longer describe the block
	// there. Restored wires restart cold and re-settle on the next
	// neighbor update.
	wires := snap.Wires[:0]
	for _, w := range snap.Wires {
		if !touched[w.Pos] {
			wires = append(wires, w)
		}
	}
	snap.Wires = wires

	switches := snap.Switches[:0]
	for _, s := range snap.Switches {
		if !touched[s.Pos] {
			switches = append(switches, s)
		}
	}
	snap.Switches = switches

	sched := snap.Schedule[:0]
	for _, s := range snap.Schedule {
		if !touched[s.Pos] {
			sched = append(sched, s)
		}
	}
	snap.Schedule = sched

	return applied, skipped
}

func withinAABB(pos [3]int, min, max [3]int) bool {
	return pos[0] >= min[0] && pos[0] <= max[0] &&
		pos[1] >= min[1] && pos[1] <= max[1] &&
		pos[2] >= min[2] && pos[2] <= max[2]
}

func parseAABB(s string) (min, max [3]int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return min, max, fmt.Errorf("expected x1,y1,z1:x2,y2,z2")
	}
	a, err := parseVec3(parts[0])
	if err != nil {
		return min, max, err
	}
	b, err := parseVec3(parts[1])
	if err != nil {
		return min, max, err
	}
	for i := 0; i < 3; i++ {
		if a[i] <= b[i] {
			min[i], max[i] = a[i], b[i]
		} else {
			min[i], max[i] = b[i], a[i]
		}
	}
	return min, max, nil
}

func parseVec3(s string) ([3]int, error) {
	var v [3]int
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 3 {
		return v, fmt.Errorf("expected x,y,z")
	}
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return v, err
		}
		v[i] = n
	}
	return v, nil
}

func floorDiv(a, b int) int {
	// b > 0
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

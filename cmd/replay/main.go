package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	persistlog "signalcraft.ai/internal/persistence/log"
	"signalcraft.ai/internal/persistence/snapshot"
	"signalcraft.ai/internal/sim/catalogs"
	"signalcraft.ai/internal/sim/world"
)

var errStop = errors.New("stop")

func main() {
	var (
		snapPath  = flag.String("snapshot", "", "path to snap-*.zst")
		eventsDir = flag.String("events", "", "events dir containing events-*.jsonl.zst (optional)")
		configDir = flag.String("configs", "./configs", "config directory")
		fromTick  = flag.Uint64("from_tick", 0, "start verifying from tick (inclusive, optional)")
		toTick    = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	if *snapPath == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot")
		os.Exit(2)
	}

	snap, err := snapshot.ReadSnapshot(*snapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}

	fmt.Printf("snapshot v%d world=%s tick=%d seed=%d height=%d chunks=%d wires=%d switches=%d schedule=%d\n",
		snap.Header.Version, snap.Header.WorldID, snap.Header.Tick, snap.Seed, snap.Height,
		len(snap.Chunks), len(snap.Wires), len(snap.Switches), len(snap.Schedule))

	if *eventsDir == "" {
		return
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}

	w, err := world.NewFromSnapshot(snap, cats)
	if err != nil {
		fmt.Fprintln(os.Stderr, "world:", err)
		os.Exit(1)
	}

	startTick := w.CurrentTick()
	verifyFrom := *fromTick
	if verifyFrom == 0 {
		verifyFrom = startTick
	}

	files, err := listEventFiles(*eventsDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list events:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no events files found in", *eventsDir)
		os.Exit(1)
	}

	var checked uint64
	for _, path := range files {
		err := replayFile(w, path, startTick, verifyFrom, *toTick, &checked)
		if errors.Is(err, errStop) {
			break
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
	}
	fmt.Printf("replay ok: checked=%d ticks (from snapshot tick=%d)\n", checked, snap.Header.Tick)
}

func listEventFiles(dir string) ([]string, error) {
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
		if strings.HasPrefix(name, "events-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

func replayFile(w *world.World, path string, startTick, verifyFrom, toTick uint64, checked *uint64) error {
	return persistlog.ReadJSONLZstd(path, func(line []byte) error {
		var entry world.TickLogEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if entry.Tick < startTick {
			return nil
		}
		if toTick != 0 && entry.Tick > toTick {
			return errStop
		}
		if entry.Tick != w.CurrentTick() {
			return fmt.Errorf("tick gap: log=%d world=%d (file=%s)", entry.Tick, w.CurrentTick(), filepath.Base(path))
		}

		got := w.ReplayTick(entry)
		if entry.Tick >= verifyFrom {
			*checked++
			if got != entry.Digest {
				return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", entry.Tick, got, entry.Digest)
			}
		}
		return nil
	})
}

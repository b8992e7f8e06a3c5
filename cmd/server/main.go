package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"signalcraft.ai/internal/persistence/archive"
	persistlog "signalcraft.ai/internal/persistence/log"
	"signalcraft.ai/internal/persistence/snapshot"
	"signalcraft.ai/internal/protocol"
	"signalcraft.ai/internal/sim/catalogs"
	"signalcraft.ai/internal/sim/tuning"
	"signalcraft.ai/internal/sim/world"
	"signalcraft.ai/internal/transport/observer"
	"signalcraft.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "w1", "world id")
		seed       = flag.Int64("seed", 1337, "world seed (used only when starting a fresh world)")
		configDir  = flag.String("configs", "./configs", "config directory")
		schemaDir  = flag.String("schemas", "./schemas", "json schema directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable indexing (tick/audit + catalogs + snapshot metadata)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")

		authToken    = flag.String("auth_token", "", "shared HELLO auth token (or set SC_AUTH_TOKEN; empty disables auth)")
		archiveEvery = flag.Uint64("archive_every_ticks", 30000, "archive a snapshot copy at this tick boundary (0 disables)")
		keepSnaps    = flag.Int("keep_snapshots", 8, "rolling snapshots to keep on disk (0 disables pruning)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}

	// Optional: read-model index backend (does not affect sim determinism).
	idx, err := openRuntimeIndex(worldDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		if p, err := snapshot.LatestPath(worldDir); err != nil {
			logger.Printf("scan snapshots: %v", err)
		} else {
			snapshotToLoad = p
		}
	}

	// Load tuning (required for fresh worlds; snapshots carry their own
	// effective parameters, so a resume tolerates a missing file).
	tune, tuneErr := tuning.Load(tp)
	if tuneErr != nil {
		if snapshotToLoad == "" || !os.IsNotExist(tuneErr) {
			logger.Fatalf("load tuning: %v", tuneErr)
		}
		logger.Printf("tuning not found (%s); resuming on snapshot parameters", tp)
	}
	if tuneErr == nil && tune.ProtocolVersion != "" && tune.ProtocolVersion != protocol.Version {
		logger.Fatalf("tuning protocol_version %q does not match server %q", tune.ProtocolVersion, protocol.Version)
	}

	if idx != nil && tuneErr == nil {
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
	}

	// Create world (fresh or resumed from snapshot).
	var w *world.World
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if snap.Header.WorldID != "" && snap.Header.WorldID != *worldID {
			logger.Fatalf("snapshot world id mismatch: flag=%s snap=%s", *worldID, snap.Header.WorldID)
		}
		w, err = world.NewFromSnapshot(snap, cats)
		if err != nil {
			logger.Fatalf("world: %v", err)
		}
		logger.Printf("resumed from snapshot=%s tick=%d", filepath.Base(snapshotToLoad), w.CurrentTick())
	} else {
		w, err = world.New(world.WorldConfig{
			ID:                 *worldID,
			TickRateHz:         tune.TickRateHz,
			ObsRadius:          tune.ObsRadius,
			Height:             tune.WorldHeight,
			Seed:               *seed,
			BoundaryR:          tune.WorldBoundaryR,
			SnapshotEveryTicks: uint64(tune.SnapshotEveryTicks),
			RandomTicksPerTick: tune.RandomTicksPerTick,
			MaxEditsPerAct:     tune.MaxEditsPerAct,
			RateLimits: world.RateLimitConfig{
				EditWindowTicks: tune.RateLimits.EditWindowTicks,
				EditMax:         tune.RateLimits.EditMax,
			},
		}, cats)
		if err != nil {
			logger.Fatalf("world: %v", err)
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	tickLog := persistlog.NewTickLogger(worldDir)
	auditLog := persistlog.NewAuditLogger(worldDir)
	defer tickLog.Close()
	defer auditLog.Close()
	w.SetTickLogger(multiTickLogger{a: tickLog, b: idx})
	w.SetAuditLogger(multiAuditLogger{a: auditLog, b: idx})

	// Snapshot writer.
	snapCh := make(chan snapshot.SnapshotV1, 2)
	w.SetSnapshotSink(snapCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				path := snapshot.Path(worldDir, snap.Header.Tick)
				if err := snapshot.WriteSnapshot(path, snap); err != nil {
					logger.Printf("snapshot write: %v", err)
					continue
				}
				if idx != nil {
					idx.RecordSnapshot(path, snap)
				}
				if archivedPath, ok, err := archive.ArchiveSnapshot(worldDir, path, snap, *archiveEvery); err != nil {
					logger.Printf("archive snapshot: %v", err)
				} else if ok {
					logger.Printf("archived snapshot tick=%d -> %s", snap.Header.Tick, archivedPath)
				}
				if removed, err := archive.PruneSnapshots(worldDir, *keepSnaps); err != nil {
					logger.Printf("prune snapshots: %v", err)
				} else if len(removed) > 0 {
					logger.Printf("pruned %d old snapshots", len(removed))
				}
			}
		}
	}()

	go func() {
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	wsSrv := ws.NewServer(w, logger)
	actSchemaPath := filepath.Join(*schemaDir, "act.schema.json")
	if _, err := os.Stat(actSchemaPath); err == nil {
		schema, err := jsonschema.Compile(actSchemaPath)
		if err != nil {
			logger.Fatalf("compile act schema: %v", err)
		}
		wsSrv.SetActSchema(schema)
	} else {
		logger.Printf("act schema not found (%s); transport validation disabled", actSchemaPath)
	}
	if token := resolveAuthToken(*authToken); token != "" {
		wsSrv.SetAuthToken(token)
		logger.Printf("hello auth token required")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		m := w.Metrics()
		tick := w.CurrentTick()
		if m.Tick != 0 {
			tick = m.Tick
		}

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP signalcraft_world_tick Current world tick.\n")
		fmt.Fprintf(rw, "# TYPE signalcraft_world_tick gauge\n")
		fmt.Fprintf(rw, "signalcraft_world_tick{world=%q} %d\n", *worldID, tick)

		fmt.Fprintf(rw, "# HELP signalcraft_world_clients Current number of joined clients.\n")
		fmt.Fprintf(rw, "# TYPE signalcraft_world_clients gauge\n")
		fmt.Fprintf(rw, "signalcraft_world_clients{world=%q} %d\n", *worldID, m.Clients)

		fmt.Fprintf(rw, "# HELP signalcraft_ws_connections Current number of open websocket connections.\n")
		fmt.Fprintf(rw, "# TYPE signalcraft_ws_connections gauge\n")
		fmt.Fprintf(rw, "signalcraft_ws_connections{world=%q} %d\n", *worldID, wsSrv.Clients())

		fmt.Fprintf(rw, "# HELP signalcraft_world_loaded_chunks Loaded chunk count.\n")
		fmt.Fprintf(rw, "# TYPE signalcraft_world_loaded_chunks gauge\n")
		fmt.Fprintf(rw, "signalcraft_world_loaded_chunks{world=%q} %d\n", *worldID, m.LoadedChunks)

		fmt.Fprintf(rw, "# HELP signalcraft_world_wires Wire blocks holding signal state.\n")
		fmt.Fprintf(rw, "# TYPE signalcraft_world_wires gauge\n")
		fmt.Fprintf(rw, "signalcraft_world_wires{world=%q} %d\n", *worldID, m.Wires)

		fmt.Fprintf(rw, "# HELP signalcraft_world_switches Stateful blocks currently on.\n")
		fmt.Fprintf(rw, "# TYPE signalcraft_world_switches gauge\n")
		fmt.Fprintf(rw, "signalcraft_world_switches{world=%q} %d\n", *worldID, m.Switches)

		fmt.Fprintf(rw, "# HELP signalcraft_world_pending_schedule Scheduled block ticks not yet due.\n")
		fmt.Fprintf(rw, "# TYPE signalcraft_world_pending_schedule gauge\n")
		fmt.Fprintf(rw, "signalcraft_world_pending_schedule{world=%q} %d\n", *worldID, m.PendingSchedule)

		fmt.Fprintf(rw, "# HELP signalcraft_world_queue_depth Channel backlog depth.\n")
		fmt.Fprintf(rw, "# TYPE signalcraft_world_queue_depth gauge\n")
		fmt.Fprintf(rw, "signalcraft_world_queue_depth{world=%q,queue=%q} %d\n", *worldID, "inbox", m.QueueDepths.Inbox)
		fmt.Fprintf(rw, "signalcraft_world_queue_depth{world=%q,queue=%q} %d\n", *worldID, "join", m.QueueDepths.Join)
		fmt.Fprintf(rw, "signalcraft_world_queue_depth{world=%q,queue=%q} %d\n", *worldID, "leave", m.QueueDepths.Leave)

		fmt.Fprintf(rw, "# HELP signalcraft_world_step_ms Last tick step duration in milliseconds.\n")
		fmt.Fprintf(rw, "# TYPE signalcraft_world_step_ms gauge\n")
		fmt.Fprintf(rw, "signalcraft_world_step_ms{world=%q} %.3f\n", *worldID, m.StepMS)

		fmt.Fprintf(rw, "# HELP signalcraft_settle_last Signal settle counters for the last tick.\n")
		fmt.Fprintf(rw, "# TYPE signalcraft_settle_last gauge\n")
		fmt.Fprintf(rw, "signalcraft_settle_last{world=%q,metric=%q} %d\n", *worldID, "settles", m.SettleLastTick.Count)
		fmt.Fprintf(rw, "signalcraft_settle_last{world=%q,metric=%q} %d\n", *worldID, "wires_set", m.SettleLastTick.WiresSet)
		fmt.Fprintf(rw, "signalcraft_settle_last{world=%q,metric=%q} %d\n", *worldID, "block_updates", m.SettleLastTick.BlockUpdates)
		fmt.Fprintf(rw, "signalcraft_settle_last{world=%q,metric=%q} %d\n", *worldID, "shape_updates", m.SettleLastTick.ShapeUpdates)

		fmt.Fprintf(rw, "# HELP signalcraft_settle_total Signal settle counters since world start.\n")
		fmt.Fprintf(rw, "# TYPE signalcraft_settle_total counter\n")
		fmt.Fprintf(rw, "signalcraft_settle_total{world=%q,metric=%q} %d\n", *worldID, "settles", m.SettlesTotal)
		fmt.Fprintf(rw, "signalcraft_settle_total{world=%q,metric=%q} %d\n", *worldID, "wires_set", m.WiresSetTotal)
		fmt.Fprintf(rw, "signalcraft_settle_total{world=%q,metric=%q} %d\n", *worldID, "block_updates", m.BlockUpdates)
		fmt.Fprintf(rw, "signalcraft_settle_total{world=%q,metric=%q} %d\n", *worldID, "shape_updates", m.ShapeUpdates)

		writeIndexMetrics(rw, idx)
	})

	enableAdminHTTP := envBool("SC_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	enablePprofHTTP := envBool("SC_ENABLE_PPROF_HTTP", false)
	if enableAdminHTTP {
		// Local-only admin endpoints (do not affect simulation determinism).
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			resp := struct {
				WorldID string             `json:"world_id"`
				Tick    uint64             `json:"tick"`
				Metrics world.WorldMetrics `json:"metrics"`
			}{
				WorldID: *worldID,
				Tick:    w.CurrentTick(),
				Metrics: w.Metrics(),
			}
			_ = json.NewEncoder(rw).Encode(resp)
		})
		mux.HandleFunc("/admin/v1/snapshot", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel2()
			tick, err := w.RequestSnapshot(ctx2)
			rw.Header().Set("Content-Type", "application/json")
			if err != nil {
				rw.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "tick": tick, "error": err.Error()})
				return
			}
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "tick": tick})
		})

		obsSrv := observer.NewServer(w, logger)
		mux.HandleFunc("/admin/v1/observer/bootstrap", obsSrv.BootstrapHandler())
		mux.HandleFunc("/admin/v1/observer/ws", obsSrv.WSHandler())
	} else {
		logger.Printf("admin endpoints disabled (SC_ENABLE_ADMIN_HTTP=false)")
	}
	if enablePprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (SC_ENABLE_PPROF_HTTP=false)")
	}
	mux.HandleFunc("/v1/ws", wsSrv.Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func resolveAuthToken(flagValue string) string {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v
	}
	return strings.TrimSpace(os.Getenv("SC_AUTH_TOKEN"))
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func writeIndexMetrics(rw http.ResponseWriter, idx runtimeIndex) {
	if idx == nil {
		return
	}
	s := idx.Stats()

	fmt.Fprintf(rw, "# HELP signalcraft_index_queue_depth Current index write queue depth.\n")
	fmt.Fprintf(rw, "# TYPE signalcraft_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "signalcraft_index_queue_depth %d\n", s.QueueDepth)

	fmt.Fprintf(rw, "# HELP signalcraft_index_queue_capacity Index write queue capacity.\n")
	fmt.Fprintf(rw, "# TYPE signalcraft_index_queue_capacity gauge\n")
	fmt.Fprintf(rw, "signalcraft_index_queue_capacity %d\n", s.QueueCapacity)

	fmt.Fprintf(rw, "# HELP signalcraft_index_dropped_total Index writes dropped because the queue was full.\n")
	fmt.Fprintf(rw, "# TYPE signalcraft_index_dropped_total counter\n")
	fmt.Fprintf(rw, "signalcraft_index_dropped_total{kind=%q} %d\n", "tick", s.DropTickTotal)
	fmt.Fprintf(rw, "signalcraft_index_dropped_total{kind=%q} %d\n", "audit", s.DropAuditTotal)
	fmt.Fprintf(rw, "signalcraft_index_dropped_total{kind=%q} %d\n", "snapshot", s.DropSnapshotTotal)
}

type multiTickLogger struct {
	a world.TickLogger
	b world.TickLogger
}

func (m multiTickLogger) WriteTick(entry world.TickLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteTick(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	return nil
}

type multiAuditLogger struct {
	a world.AuditLogger
	b world.AuditLogger
}

func (m multiAuditLogger) WriteAudit(entry world.AuditEntry) error {
	if m.a != nil {
		_ = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteAudit(entry)
	}
	return nil
}

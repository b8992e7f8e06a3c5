package observer

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"signalcraft.ai/internal/observerproto"
	"signalcraft.ai/internal/sim/world"
)

// Server streams read-only tick telemetry (digest + settle counters)
// to loopback operator tools. It never touches the world loop: frames
// are built from the atomically published metrics.
type Server struct {
	world *world.World
	log   *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	return &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // loopback only anyway
		},
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		cfg := s.world.Config()
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			WorldID:         cfg.ID,
			Tick:            s.world.CurrentTick(),
			WorldParams: observerproto.WorldParams{
				TickRateHz: cfg.TickRateHz,
				ChunkSize:  [3]int{16, 16, 16},
				Height:     cfg.Height,
				Seed:       cfg.Seed,
				BoundaryR:  cfg.BoundaryR,
			},
			BlockPalette: s.world.BlockPalette(),
		}

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub observerproto.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil ||
			sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != observerproto.Version {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"),
				time.Now().Add(time.Second))
			return
		}

		var every atomic.Int64
		every.Store(int64(normalizeEvery(sub.EveryTicks)))

		done := make(chan struct{})

		// Writer: poll the published metrics at twice the tick rate
		// and forward every N-th completed tick.
		writeErr := make(chan error, 1)
		go func() {
			interval := time.Second / time.Duration(2*s.world.Config().TickRateHz)
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			var lastSent uint64
			var sentAny bool
			for {
				select {
				case <-done:
					writeErr <- nil
					return
				case <-ticker.C:
					m := s.world.Metrics()
					if sentAny && m.Tick == lastSent {
						continue
					}
					n := uint64(every.Load())
					if n > 1 && m.Tick%n != 0 {
						continue
					}
					frame := tickFrame(m)
					b, err := json.Marshal(frame)
					if err != nil {
						continue
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
					lastSent = m.Tick
					sentAny = true
				}
			}
		}()

		// Reader: allow SUBSCRIBE updates to change the cadence.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var sub observerproto.SubscribeMsg
			if err := json.Unmarshal(msg, &sub); err != nil {
				continue
			}
			if sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != observerproto.Version {
				continue
			}
			every.Store(int64(normalizeEvery(sub.EveryTicks)))
		}

		close(done)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(time.Second))

		// Best-effort wait so the writer doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func tickFrame(m world.WorldMetrics) observerproto.TickMsg {
	return observerproto.TickMsg{
		Type:            "TICK",
		ProtocolVersion: observerproto.Version,
		Tick:            m.Tick,
		Digest:          m.Digest,
		Clients:         m.Clients,
		LoadedChunks:    m.LoadedChunks,
		Wires:           m.Wires,
		Switches:        m.Switches,
		PendingSchedule: m.PendingSchedule,
		StepMS:          m.StepMS,
		Settle: observerproto.SettleStats{
			LastCount:        m.SettleLastTick.Count,
			LastWiresSet:     m.SettleLastTick.WiresSet,
			LastBlockUpdates: m.SettleLastTick.BlockUpdates,
			LastShapeUpdates: m.SettleLastTick.ShapeUpdates,

			SettlesTotal:      m.SettlesTotal,
			WiresSetTotal:     m.WiresSetTotal,
			BlockUpdatesTotal: m.BlockUpdates,
			ShapeUpdatesTotal: m.ShapeUpdates,
		},
	}
}

func normalizeEvery(n int) int {
	if n <= 0 {
		return 1
	}
	if n > 600 {
		return 600
	}
	return n
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

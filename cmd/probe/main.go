package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"signalcraft.ai/internal/protocol"
)

// The probe joins a live server, builds a lever-wire-lamp run next to
// its focus, then toggles the lever and reports what the OBS overlays
// show. It exercises the full client path: HELLO, catalogs, edits,
// settle events and PING.
func main() {
	var (
		url         = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name        = flag.String("name", "probe", "client name")
		authToken   = flag.String("auth", "", "HELLO auth token (if the server requires one)")
		wireLen     = flag.Int("wires", 4, "wire run length (1..6)")
		toggleEvery = flag.Uint64("toggle_every", 50, "toggle the lever every N ticks")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[probe] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      *name,
		Capabilities: protocol.HelloCapabilities{
			DeltaVoxels: false,
			MaxQueue:    8,
		},
	}
	if t := strings.TrimSpace(*authToken); t != "" {
		hello.Auth = &protocol.HelloAuth{Token: t}
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	n := *wireLen
	if n < 1 {
		n = 1
	}
	if n > 6 {
		n = 6
	}
	p := &probe{
		conn:        conn,
		logger:      logger,
		wireLen:     n,
		toggleEvery: *toggleEvery,
		pingSent:    map[uint64]time.Time{},
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Printf("read: %v", err)
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			p.clientID = w.ClientID
			logger.Printf("WELCOME client_id=%s tick_rate=%d seed=%d palette=%d blocks",
				w.ClientID, w.WorldParams.TickRateHz, w.WorldParams.Seed, w.Catalogs.BlockPalette.Count)

		case protocol.TypeCatalog:
			var cm protocol.CatalogMsg
			if err := json.Unmarshal(msg, &cm); err != nil {
				continue
			}
			logger.Printf("CATALOG name=%s digest=%.12s part=%d/%d", cm.Name, cm.Digest, cm.Part, cm.TotalParts)

		case protocol.TypeAck:
			var ack protocol.AckMsg
			if err := json.Unmarshal(msg, &ack); err != nil {
				continue
			}
			if !ack.Accepted {
				logger.Printf("ACK rejected for=%s code=%s msg=%s", ack.AckFor, ack.Code, ack.Message)
			}

		case protocol.TypePong:
			var pong protocol.PongMsg
			if err := json.Unmarshal(msg, &pong); err != nil {
				continue
			}
			if sent, ok := p.pingSent[pong.Nonce]; ok {
				delete(p.pingSent, pong.Nonce)
				logger.Printf("PONG rtt=%s server_tick=%d", time.Since(sent).Round(time.Millisecond), pong.ServerTick)
			}

		case protocol.TypeObs:
			var obs protocol.ObsMsg
			if err := json.Unmarshal(msg, &obs); err != nil {
				continue
			}
			p.handleObs(&obs)
		}
	}
}

type probe struct {
	conn   *websocket.Conn
	logger *log.Logger

	clientID string
	wireLen  int
	editSeq  int

	lever [3]int
	wires [][3]int
	lamp  [3]int

	laidOut   bool
	buildSent bool
	built     bool

	toggleEvery uint64
	lastToggle  uint64

	lastSummary string
	lastPing    time.Time
	pingNonce   uint64
	pingSent    map[uint64]time.Time
}

// handleObs drives the whole probe; all writes happen here, so the
// connection only ever has one writer.
func (p *probe) handleObs(obs *protocol.ObsMsg) {
	if !p.laidOut {
		p.layout(obs.Focus)
		p.laidOut = true
	}
	if !p.buildSent {
		p.sendBuild(obs.Tick)
		p.buildSent = true
		return
	}

	for _, ev := range obs.Events {
		switch ev["type"] {
		case "EDIT_RESULT":
			if ok, _ := ev["ok"].(bool); !ok {
				p.logger.Printf("edit %v rejected: code=%v msg=%v", ev["ref"], ev["code"], ev["message"])
			}
		case "SIGNAL_SETTLED":
			p.logger.Printf("settled tick=%d settles=%v wires_set=%v block_updates=%v",
				obs.Tick, ev["settles"], ev["wires_set"], ev["block_updates"])
		}
	}

	if !p.built {
		if _, ok := p.switchAt(obs, p.lever); ok {
			p.built = true
			p.lastToggle = obs.Tick
			p.logger.Printf("circuit ready at lever=%v lamp=%v", p.lever, p.lamp)
		}
	}

	if p.built && obs.Tick-p.lastToggle >= p.toggleEvery {
		p.lastToggle = obs.Tick
		p.sendToggle(obs.Tick)
	}

	if summary := p.summarize(obs); summary != p.lastSummary {
		p.lastSummary = summary
		p.logger.Printf("tick=%d %s digest=%.12s", obs.Tick, summary, obs.Digest)
	}

	if time.Since(p.lastPing) > 5*time.Second {
		p.lastPing = time.Now()
		p.pingNonce++
		p.pingSent[p.pingNonce] = p.lastPing
		p.send(protocol.PingMsg{Type: protocol.TypePing, ProtocolVersion: protocol.Version, Nonce: p.pingNonce})
	}
}

// layout lines the circuit up along +z one block past the focus, at
// focus height (one above the generated surface).
func (p *probe) layout(focus [3]int) {
	x, y, z := focus[0], focus[1], focus[2]
	p.lever = [3]int{x, y, z + 1}
	p.wires = p.wires[:0]
	for i := 0; i < p.wireLen; i++ {
		p.wires = append(p.wires, [3]int{x, y, z + 2 + i})
	}
	p.lamp = [3]int{x, y, z + 2 + p.wireLen}
}

func (p *probe) sendBuild(tick uint64) {
	edits := []protocol.EditReq{
		{ID: p.editID(), Type: protocol.EditPlaceBlock, Pos: p.lever, Block: "LEVER"},
	}
	for _, w := range p.wires {
		edits = append(edits, protocol.EditReq{ID: p.editID(), Type: protocol.EditPlaceBlock, Pos: w, Block: "WIRE"})
	}
	edits = append(edits, protocol.EditReq{ID: p.editID(), Type: protocol.EditPlaceBlock, Pos: p.lamp, Block: "LAMP"})
	p.send(protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		Tick:            tick,
		ClientID:        p.clientID,
		Edits:           edits,
	})
	p.logger.Printf("building lever=%v wires=%d lamp=%v", p.lever, len(p.wires), p.lamp)
}

func (p *probe) sendToggle(tick uint64) {
	p.send(protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		Tick:            tick,
		ClientID:        p.clientID,
		Edits: []protocol.EditReq{
			{ID: p.editID(), Type: protocol.EditToggle, Pos: p.lever},
		},
	})
}

func (p *probe) summarize(obs *protocol.ObsMsg) string {
	var b strings.Builder
	if on, ok := p.switchAt(obs, p.lever); ok {
		fmt.Fprintf(&b, "lever=%v", on)
	} else {
		b.WriteString("lever=?")
	}
	b.WriteString(" wires=[")
	for i, w := range p.wires {
		if i > 0 {
			b.WriteByte(' ')
		}
		if pw, ok := p.wireAt(obs, w); ok {
			fmt.Fprintf(&b, "%d", pw)
		} else {
			b.WriteByte('?')
		}
	}
	b.WriteString("]")
	if on, ok := p.switchAt(obs, p.lamp); ok {
		fmt.Fprintf(&b, " lamp=%v", on)
	} else {
		b.WriteString(" lamp=?")
	}
	return b.String()
}

func (p *probe) wireAt(obs *protocol.ObsMsg, pos [3]int) (int, bool) {
	for _, w := range obs.Wires {
		if w.Pos == pos {
			return w.Power, true
		}
	}
	return 0, false
}

func (p *probe) switchAt(obs *protocol.ObsMsg, pos [3]int) (bool, bool) {
	for _, s := range obs.Switches {
		if s.Pos == pos {
			return s.On, true
		}
	}
	return false, false
}

func (p *probe) editID() string {
	p.editSeq++
	return fmt.Sprintf("P%d", p.editSeq)
}

func (p *probe) send(v any) {
	if err := p.conn.WriteJSON(v); err != nil {
		p.logger.Printf("write: %v", err)
	}
}

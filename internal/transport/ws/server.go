package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"signalcraft.ai/internal/protocol"
	"signalcraft.ai/internal/sim/world"
)

// Server bridges websocket connections to the world loop. Each
// connection runs one reader (this handler) and one writer goroutine;
// transport replies (ACK, PONG) share the writer with world frames.
type Server struct {
	world *world.World
	log   *log.Logger

	// Optional gates, nil/empty in dev.
	actSchema *jsonschema.Schema
	authToken string

	clients atomic.Int64

	upgrader websocket.Upgrader
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	s := &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

// SetActSchema turns on schema validation for inbound ACT frames.
func (s *Server) SetActSchema(schema *jsonschema.Schema) { s.actSchema = schema }

// SetAuthToken requires HELLO frames to carry the given token.
func (s *Server) SetAuthToken(token string) { s.authToken = token }

// Clients is the number of connections that completed the handshake.
func (s *Server) Clients() int64 { return s.clients.Load() }

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		clientID, out := s.handshake(conn)
		if clientID == "" {
			return
		}
		s.clients.Add(1)
		defer s.clients.Add(-1)

		done := make(chan struct{})
		direct := make(chan []byte, 8)

		// Writer goroutine. The reader closes done; world frames and
		// transport replies both leave through here.
		go func() {
			for {
				select {
				case <-done:
					return
				case b := <-direct:
					if !s.writeFrame(conn, b) {
						return
					}
				case b, ok := <-out:
					if !ok {
						return
					}
					if !s.writeFrame(conn, b) {
						return
					}
				}
			}
		}()

		s.readLoop(conn, clientID, direct)
		close(done)

		s.world.Leave() <- clientID
		s.log.Printf("client %s disconnected", clientID)
	}
}

func (s *Server) readLoop(conn *websocket.Conn, clientID string, direct chan []byte) {
	for {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}

		base, err := protocol.DecodeBase(msg)
		if err != nil {
			s.reject(direct, "", protocol.ErrBadRequest, "malformed frame")
			continue
		}

		switch base.Type {
		case protocol.TypePing:
			var ping protocol.PingMsg
			if err := json.Unmarshal(msg, &ping); err != nil {
				s.reject(direct, protocol.TypePing, protocol.ErrBadRequest, "malformed PING")
				continue
			}
			s.send(direct, protocol.PongMsg{
				Type:            protocol.TypePong,
				ProtocolVersion: protocol.Version,
				Nonce:           ping.Nonce,
				ServerTick:      s.world.CurrentTick(),
			})

		case protocol.TypeAct:
			var act protocol.ActMsg
			if err := json.Unmarshal(msg, &act); err != nil {
				s.reject(direct, protocol.TypeAct, protocol.ErrBadRequest, "malformed ACT")
				continue
			}
			if act.ProtocolVersion != protocol.Version {
				s.reject(direct, protocol.TypeAct, protocol.ErrBadRequest, "bad protocol_version")
				continue
			}
			if s.actSchema != nil {
				var generic any
				if err := json.Unmarshal(msg, &generic); err == nil {
					if err := s.actSchema.Validate(generic); err != nil {
						s.reject(direct, protocol.TypeAct, protocol.ErrBadRequest, "schema: "+err.Error())
						continue
					}
				}
			}
			s.world.Inbox() <- world.ActionEnvelope{ClientID: clientID, Act: act}

		default:
			s.reject(direct, base.Type, protocol.ErrBadRequest, "unexpected type")
		}
	}
}

// handshake consumes the HELLO and joins the world. It returns an
// empty id when the connection should be dropped. Handshake writes
// happen before the writer goroutine starts, so writing directly to
// the conn here is safe.
func (s *Server) handshake(conn *websocket.Conn) (clientID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		s.closePolicy(conn, "expected HELLO")
		return "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		s.closePolicy(conn, "bad protocol_version")
		return "", nil
	}
	if s.authToken != "" {
		if hello.Auth == nil || hello.Auth.Token != s.authToken {
			s.closePolicy(conn, "bad auth token")
			return "", nil
		}
	}
	if hello.ClientName == "" {
		hello.ClientName = "client"
	}

	maxQ := hello.Capabilities.MaxQueue
	if maxQ <= 0 {
		maxQ = 8
	}
	if maxQ > 64 {
		maxQ = 64
	}
	out = make(chan []byte, maxQ)

	respCh := make(chan world.JoinResponse, 1)
	s.world.Join() <- world.JoinRequest{
		Name:        hello.ClientName,
		DeltaVoxels: hello.Capabilities.DeltaVoxels,
		Out:         out,
		Resp:        respCh,
	}
	resp := <-respCh

	// Send welcome + catalogs immediately. The join already landed,
	// so a failed write must detach the session again.
	frames := make([]any, 0, 1+len(resp.Catalogs))
	frames = append(frames, resp.Welcome)
	for _, c := range resp.Catalogs {
		frames = append(frames, c)
	}
	for _, f := range frames {
		if err := writeJSON(conn, f); err != nil {
			s.world.Leave() <- resp.Welcome.ClientID
			return "", nil
		}
	}

	s.log.Printf("client %s joined as %q", resp.Welcome.ClientID, hello.ClientName)
	return resp.Welcome.ClientID, out
}

func (s *Server) closePolicy(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(time.Second))
}

// reject queues a negative ACK. Accepted frames are not acked; their
// outcome arrives as EDIT_RESULT events inside OBS.
func (s *Server) reject(direct chan []byte, ackFor, code, message string) {
	s.send(direct, protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          ackFor,
		Accepted:        false,
		Code:            code,
		Message:         message,
		ServerTick:      s.world.CurrentTick(),
	})
}

func (s *Server) send(direct chan []byte, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case direct <- b:
	default:
		// Writer is saturated; transport replies are best effort.
	}
}

func (s *Server) writeFrame(conn *websocket.Conn, b []byte) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b) == nil
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

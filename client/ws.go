package client

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"igloo/wire"
)

// writeDeadline bounds how long a single outbound WebSocket write may take
// before the connection is considered dead.
const writeDeadline = 10 * time.Second

// pingInterval/pongDeadline keep an idle UI connection alive across
// intermediary proxies, mirroring the keepalive shape common to the other
// gorilla/websocket consumers in the example corpus.
const (
	pingInterval = 30 * time.Second
	pongDeadline = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The UI is served from the same origin as the hub in the common case;
	// operators fronting it with a reverse proxy are expected to enforce
	// their own origin policy upstream.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// RegisterRoutes wires the WebSocket endpoint onto r.
func (m *Manager) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/ws", m.serveWS)
}

func (m *Manager) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	id, outbox := m.Register()
	log := m.log.With(zap.Uint32("client", uint32(id)))
	log.Info("client connected")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		m.writePump(conn, outbox, log)
	}()

	m.readPump(id, conn, log)

	conn.Close()
	m.Disconnect(id)
	<-writerDone
	log.Info("client disconnected")
}

// readPump decodes UI frames until the connection errs out, dispatching
// each ClientMessage through Manager.Handle in arrival order (spec.md §5's
// per-session ordering guarantee).
func (m *Manager) readPump(id ClientID, conn *websocket.Conn, log *zap.Logger) {
	conn.SetReadLimit(wire.MaxUIFrame)
	conn.SetReadDeadline(time.Now().Add(pongDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongDeadline))
	})

	for {
		kind, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}

		payload, err := wire.DecodeUIFrame(raw)
		if err != nil {
			// spec.md scenario S6: an oversized or malformed frame
			// disconnects the client without forwarding a partial
			// message to the core task.
			log.Warn("bad UI frame", zap.Error(err))
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			log.Warn("malformed client message", zap.Error(err))
			return
		}
		m.Handle(id, msg)
	}
}

// writePump drains outbox onto the socket, pinging on idle, until outbox is
// closed (by Disconnect or by Manager.offer's slow-consumer policy).
func (m *Manager) writePump(conn *websocket.Conn, outbox <-chan ServerMessage, log *zap.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-outbox:
			conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "slow consumer"))
				return
			}
			payload, err := encodeMessage(msg)
			if err != nil {
				log.Warn("failed to encode server message", zap.Error(err))
				continue
			}
			framed, err := wire.EncodeUIFrame(payload)
			if err != nil {
				log.Warn("failed to frame server message", zap.Error(err))
				continue
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, framed); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

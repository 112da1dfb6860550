package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cviz/relay/internal/logging"
	"github.com/cviz/relay/internal/relay"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 20 * time.Second
)

// WSHandler upgrades client connections and bridges them to the hub: the
// read loop feeds decoded commands in, a writer pump drains the client's
// outbound queue.
type WSHandler struct {
	hub      *relay.Hub
	upgrader websocket.Upgrader
}

// NewWSHandler creates a WSHandler for the given hub.
func NewWSHandler(hub *relay.Hub) *WSHandler {
	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Browser origin policy is enforced by the CORS layer; the
			// relay itself accepts any origin (no authentication surface).
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Serve handles one WebSocket connection for its whole lifetime.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		slog.Warn("websocket upgrade failed",
			slog.String("ip", logging.ExtractClientIP(r)), slog.Any("error", err))
		return
	}

	client := h.hub.Connect()
	go h.writePump(conn, client)
	h.readLoop(conn, client)
}

// readLoop decodes inbound command frames until the connection drops.
// Malformed frames and unknown actions are logged and ignored; neither
// closes the connection.
func (h *WSHandler) readLoop(conn *websocket.Conn, client *relay.Client) {
	defer func() {
		h.hub.Disconnect(client)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("websocket read failed",
					slog.String("client_id", client.ID), slog.Any("error", err))
			}
			return
		}

		cmd, err := relay.ParseCommand(data)
		if err != nil {
			slog.Warn("ignoring malformed client command",
				slog.String("client_id", client.ID), slog.Any("error", err))
			continue
		}
		h.hub.Apply(client, cmd)
	}
}

// writePump delivers queued payloads as text frames and keeps the
// connection alive with pings. Exits when the client's queue is closed by
// the hub or a write fails; closing the connection then unblocks readLoop,
// which performs the disconnect.
func (h *WSHandler) writePump(conn *websocket.Conn, client *relay.Client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case payload, ok := <-client.Out():
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

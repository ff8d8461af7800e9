package hub

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second    // Time allowed to write a message to the peer.
	pongWait       = 60 * time.Second    // Time allowed to read the next pong message from the peer.
	pingPeriod     = (pongWait * 9) / 10 // Must be less than pongWait.
	maxMessageSize = 8192                // Maximum inbound frame size.
)

var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all for now (Dev mode)
	},
}

// HandlerFunc processes one inbound frame. Frames from one connection are
// handled strictly in arrival order.
type HandlerFunc func(ctx context.Context, data []byte)

// Serve pumps c over ws until either side goes away, then detaches c.
// It blocks for the lifetime of the connection.
func (r *Registry) Serve(ctx context.Context, ws *websocket.Conn, c *Conn, handle HandlerFunc) {
	log := r.log.With(slog.String("conn_id", c.ID), slog.Int64("user_id", c.Identity.UserID))

	go writePump(ws, c, log)

	readPump(ctx, ws, handle, log)

	// A departing sender's in-flight work keeps its own context; only the
	// registry entry goes away here.
	if err := r.Detach(context.WithoutCancel(ctx), c); err != nil {
		log.Warn("hub - serve - detach failed", slog.Any("error", err))
	}
	_ = ws.Close()
	log.Debug("hub - serve - closed")
}

func readPump(ctx context.Context, ws *websocket.Conn, handle HandlerFunc, log *slog.Logger) {
	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn("hub - read - unexpected close", slog.Any("error", err))
			}
			return
		}
		handle(ctx, message)
	}
}

func writePump(ws *websocket.Conn, c *Conn, log *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The registry closed the channel.
				_ = ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug("hub - write - failed", slog.Any("error", err))
				return
			}

			// Drain whatever queued up meanwhile. Each payload is its own
			// JSON document, so each gets its own frame.
			n := len(c.send)
			for i := 0; i < n; i++ {
				next, ok := <-c.send
				if !ok {
					_ = ws.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := ws.WriteMessage(websocket.TextMessage, next); err != nil {
					return
				}
			}

		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

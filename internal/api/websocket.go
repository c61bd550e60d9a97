package api

import (
	"net/http"
	"time"

	"signal-executor/internal/events"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const wsWriteWait = 10 * time.Second

// websocket streams account events; ?account=id narrows it to one account.
func (s *Server) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warnw("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	if s.opts.Bus == nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"bus not ready"}`))
		return
	}
	account := c.Query("account")

	stream, unsub := s.opts.Bus.Subscribe(events.EventAll, 100)
	defer unsub()

	// The reader only exists to notice the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-closed:
			return
		case msg, ok := <-stream:
			if !ok {
				return
			}
			if ev, isAccount := msg.(events.AccountEvent); isAccount && account != "" && ev.AccountID != account {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(msg); err != nil {
				s.log.Debugw("ws write failed", "error", err)
				return
			}
		}
	}
}

package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 5 * time.Second

// handleStreamWS serves the WebSocket push stream: the same JSON snapshot
// payloads as the SSE stream, as text messages.
func (s *Server) handleStreamWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if s.cfg.AllowedOrigin == "*" {
				return true
			}
			return r.Header.Get("Origin") == s.cfg.AllowedOrigin
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	defer conn.Close()

	sub := s.broadcaster.Register()
	defer s.broadcaster.Unregister(sub)

	s.logger.Debug("ws session opened", "id", sub.ID, "remote", r.RemoteAddr)
	defer s.logger.Debug("ws session closed", "id", sub.ID)

	// Read loop only detects client close; inbound payloads are ignored.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if records := s.cache.Records(); len(records) > 0 {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(records); err != nil {
			return
		}
	}

	heartbeat := time.NewTicker(s.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-readDone:
			return

		case <-heartbeat.C:
			deadline := time.Now().Add(wsWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				return
			}

		case records, ok := <-sub.C():
			if !ok {
				conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
					time.Now().Add(time.Second),
				)
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(records); err != nil {
				s.logger.Debug("ws write failed", "id", sub.ID, "error", err)
				return
			}
		}
	}
}

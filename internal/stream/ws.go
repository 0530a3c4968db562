package stream

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"github.com/RojasCortes/tickerfeed/internal/model"
)

// WSTransport dials the WebSocket stream endpoint.
type WSTransport struct {
	// URL is the full endpoint, e.g. ws://host:8090/api/stream/ws.
	URL string

	// Dialer defaults to a dialer with a 10s handshake timeout.
	Dialer *websocket.Dialer
}

func (t *WSTransport) Name() string { return "ws" }

func (t *WSTransport) Dial(ctx context.Context) (Conn, error) {
	dialer := t.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}

	conn, resp, err := dialer.DialContext(ctx, t.URL, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, err
	}

	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

// Next reads the next snapshot message. Control frames (server pings) are
// handled inside ReadJSON.
func (c *wsConn) Next(ctx context.Context) ([]model.TickerRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetReadDeadline(deadline)
	} else {
		c.conn.SetReadDeadline(time.Time{})
	}

	var records []model.TickerRecord
	if err := c.conn.ReadJSON(&records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *wsConn) Close() error {
	c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return c.conn.Close()
}

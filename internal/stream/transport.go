package stream

import (
	"context"

	"github.com/RojasCortes/tickerfeed/internal/model"
)

// Conn is one open push session. Next blocks until the server delivers the
// next full snapshot or the session ends.
type Conn interface {
	Next(ctx context.Context) ([]model.TickerRecord, error)
	Close() error
}

// Transport establishes push sessions against the feed.
type Transport interface {
	// Name identifies the transport in logs ("sse", "ws").
	Name() string
	Dial(ctx context.Context) (Conn, error)
}

// Puller fetches a one-shot snapshot, used when push is unavailable.
type Puller interface {
	Fetch(ctx context.Context) ([]model.TickerRecord, error)
}

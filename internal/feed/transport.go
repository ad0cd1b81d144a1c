package feed

import (
	"context"
	"time"

	"github.com/daszybak/polymarket_dashboard/internal/book"
	"github.com/daszybak/polymarket_dashboard/internal/polymarket/clob"
	"github.com/daszybak/polymarket_dashboard/internal/polymarket/websocket"
)

// Conn is one live duplex connection to the market data feed. Exactly one is
// alive per session at a time.
type Conn interface {
	Subscribe(ctx context.Context, tokenIDs []string) error
	Unsubscribe(ctx context.Context, tokenIDs []string) error
	Ping(ctx context.Context) error
	ReadMessage(ctx context.Context) ([]byte, error)
	Close(ctx context.Context) error
}

// Dialer opens feed connections.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// WebsocketDialer dials the CLOB market channel.
type WebsocketDialer struct {
	URL string
}

func (d WebsocketDialer) Dial(ctx context.Context) (Conn, error) {
	return websocket.Dial(ctx, d.URL)
}

// SnapshotFetcher seeds a freshly selected instrument's book via REST.
type SnapshotFetcher interface {
	FetchBook(ctx context.Context, tokenID string) (bids, asks []book.Level, err error)
}

// ClobFetcher adapts the CLOB REST client to the session's seeding needs.
type ClobFetcher struct {
	Clob *clob.Client
}

func (f ClobFetcher) FetchBook(ctx context.Context, tokenID string) ([]book.Level, []book.Level, error) {
	b, err := f.Clob.GetBook(ctx, tokenID)
	if err != nil {
		return nil, nil, err
	}

	now := websocket.EventTime(b.Timestamp)
	return convertLevels(b.Bids, now), convertLevels(b.Asks, now), nil
}

func convertLevels(in []clob.BookLevel, ts time.Time) []book.Level {
	out := make([]book.Level, 0, len(in))
	for _, l := range in {
		out = append(out, book.Level{Price: l.Price, Size: l.Size, UpdatedAt: ts})
	}
	return out
}

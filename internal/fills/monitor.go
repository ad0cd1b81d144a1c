// Package fills watches the authenticated user channel and raises a
// notification whenever one of the user's orders trades.
package fills

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/daszybak/polymarket_dashboard/internal/metrics"
	"github.com/daszybak/polymarket_dashboard/internal/polymarket/clob"
	"github.com/daszybak/polymarket_dashboard/internal/polymarket/websocket"
)

const DefaultReconnectDelay = 5 * time.Second

type Config struct {
	WSURL          string
	ReconnectDelay time.Duration

	// Either pre-provisioned credentials or the signed material to derive
	// them with. Creds wins when both are set.
	Creds  *clob.APICreds
	Derive *clob.DeriveRequest
}

type Monitor struct {
	cfg      Config
	clob     *clob.Client
	notifier Notifier
	log      *slog.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

func New(cfg Config, clobClient *clob.Client, notifier Notifier, log *slog.Logger) *Monitor {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	return &Monitor{
		cfg:      cfg,
		clob:     clobClient,
		notifier: notifier,
		log:      log.With("component", "fill_monitor"),
		stop:     make(chan struct{}),
	}
}

// Start obtains credentials, then holds the user channel open until ctx ends,
// reconnecting with a fixed delay on stream failure.
func (m *Monitor) Start(ctx context.Context) error {
	creds, err := m.credentials(ctx)
	if err != nil {
		return fmt.Errorf("fill monitor auth: %w", err)
	}
	auth := websocket.Auth{
		APIKey:     creds.APIKey,
		Secret:     creds.Secret,
		Passphrase: creds.Passphrase,
	}

	m.log.Info("fill monitor started")
	for {
		if err := m.stream(ctx, auth); err != nil {
			m.log.Warn("user stream dropped", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.stop:
			return nil
		case <-time.After(m.cfg.ReconnectDelay):
		}
	}
}

func (m *Monitor) Stop(ctx context.Context) error {
	m.stopOnce.Do(func() { close(m.stop) })
	return nil
}

func (m *Monitor) credentials(ctx context.Context) (*clob.APICreds, error) {
	if m.cfg.Creds != nil {
		return m.cfg.Creds, nil
	}
	if m.cfg.Derive == nil {
		return nil, fmt.Errorf("no credentials and nothing to derive them from")
	}
	return m.clob.DeriveAPIKey(ctx, *m.cfg.Derive)
}

func (m *Monitor) stream(ctx context.Context, auth websocket.Auth) error {
	conn, err := websocket.Dial(ctx, m.cfg.WSURL)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), websocket.DefaultCloseTimeout)
		conn.Close(closeCtx)
		cancel()
	}()

	if err := conn.SubscribeUser(ctx, auth, nil); err != nil {
		return fmt.Errorf("couldn't subscribe user channel: %w", err)
	}

	for {
		data, err := conn.ReadMessage(ctx)
		if err != nil {
			return err
		}

		events, err := websocket.Parse(data)
		if err != nil {
			m.log.Warn("couldn't parse user message", "error", err)
			continue
		}

		for _, ev := range events {
			if ev.Type != websocket.TradeEventType {
				continue
			}
			m.handleTrade(ctx, ev.Trade)
		}
	}
}

func (m *Monitor) handleTrade(ctx context.Context, tr *websocket.TradeEvent) {
	// CONFIRMED and MINED re-announce a trade already seen as MATCHED.
	if tr.Status != "MATCHED" {
		return
	}

	metrics.FillsNotifiedTotal.Inc()
	m.notifier.Notify(ctx, Fill{
		AssetID: tr.AssetID,
		Market:  tr.Market,
		Outcome: tr.Outcome,
		Side:    tr.Side,
		Price:   tr.Price,
		Size:    tr.Size,
		Time:    websocket.EventTime(tr.Timestamp),
	})
}

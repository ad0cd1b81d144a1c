// Package feed owns the live market data session: one streaming connection,
// the set of subscribed instruments, and the order book state built from
// snapshot and delta messages.
package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/daszybak/polymarket_dashboard/internal/book"
	"github.com/daszybak/polymarket_dashboard/internal/metrics"
	"github.com/daszybak/polymarket_dashboard/internal/polymarket/websocket"
	"github.com/daszybak/polymarket_dashboard/pkg/hashset"
)

const (
	DefaultPingInterval   = 30 * time.Second
	DefaultReconnectDelay = 5 * time.Second
)

type Config struct {
	PingInterval   time.Duration
	ReconnectDelay time.Duration
	Clock          Clock // nil means wall clock
}

// Session composes the connection manager, the subscription reconciler and
// the book store behind a single event loop. All connection and subscription
// state is owned by the loop goroutine; callers interact through Select and
// the store's read side.
type Session struct {
	dialer  Dialer
	fetcher SnapshotFetcher
	books   *book.Store
	clock   Clock
	log     *slog.Logger

	pingInterval   time.Duration
	reconnectDelay time.Duration

	cmds     chan []string
	stop     chan struct{}
	stopOnce sync.Once
}

func NewSession(cfg Config, dialer Dialer, fetcher SnapshotFetcher, books *book.Store, log *slog.Logger) *Session {
	clock := cfg.Clock
	if clock == nil {
		clock = RealClock()
	}
	pingInterval := cfg.PingInterval
	if pingInterval <= 0 {
		pingInterval = DefaultPingInterval
	}
	reconnectDelay := cfg.ReconnectDelay
	if reconnectDelay <= 0 {
		reconnectDelay = DefaultReconnectDelay
	}

	return &Session{
		dialer:         dialer,
		fetcher:        fetcher,
		books:          books,
		clock:          clock,
		log:            log.With("component", "feed"),
		pingInterval:   pingInterval,
		reconnectDelay: reconnectDelay,
		cmds:           make(chan []string, 16),
		stop:           make(chan struct{}),
	}
}

// Books exposes the read side of the session's book state.
func (s *Session) Books() *book.Store {
	return s.books
}

// Select replaces the desired instrument set with tokenIDs. Newly desired
// instruments get an empty book seeded and a snapshot fetch; dropped ones are
// unsubscribed and their books deleted. An empty slice clears the selection.
func (s *Session) Select(ctx context.Context, tokenIDs []string) error {
	select {
	case s.cmds <- tokenIDs:
		return nil
	case <-s.stop:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Deselect clears the selection.
func (s *Session) Deselect(ctx context.Context) error {
	return s.Select(ctx, nil)
}

// Stop shuts the session down. The reconnect intent is cleared before the
// transport closes, so teardown never re-arms a reconnect.
func (s *Session) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

type readResult struct {
	data []byte
	err  error
}

type seedResult struct {
	tokenID string
	bids    []book.Level
	asks    []book.Level
	err     error
}

// state is owned exclusively by the Start loop.
type state struct {
	conn       Conn
	msgs       chan readResult
	readCancel context.CancelFunc

	subscribed hashset.Set[string]
	desired    hashset.Set[string]

	reconnect Timer // single slot; at most one pending attempt
	ping      Ticker
}

// Start runs the session until ctx is cancelled or Stop is called. The first
// non-empty selection dials the feed; transport failures re-arm a single
// fixed-delay reconnect for as long as any instrument is desired.
func (s *Session) Start(ctx context.Context) error {
	st := &state{
		subscribed: hashset.NewSet[string](),
		desired:    hashset.NewSet[string](),
	}
	snapshots := make(chan seedResult, 16)

	defer s.teardown(st)

	for {
		var reconnectC, pingC <-chan time.Time
		if st.reconnect != nil {
			reconnectC = st.reconnect.C()
		}
		if st.ping != nil {
			pingC = st.ping.C()
		}
		var msgs chan readResult
		if st.conn != nil {
			msgs = st.msgs
		}

		select {
		case <-ctx.Done():
			s.log.Info("session stopped", "reason", ctx.Err())
			return ctx.Err()
		case <-s.stop:
			s.log.Info("session stopped", "reason", "stop requested")
			return nil
		case tokens := <-s.cmds:
			s.handleSelect(ctx, st, tokens, snapshots)
		case res := <-snapshots:
			s.handleSeed(st, res)
		case rr := <-msgs:
			if rr.err != nil {
				s.handleDisconnect(st, rr.err)
			} else {
				s.handleFrame(st, rr.data)
			}
		case <-reconnectC:
			st.reconnect = nil
			metrics.FeedReconnectsTotal.Inc()
			s.dial(ctx, st, snapshots, true)
		case <-pingC:
			if err := st.conn.Ping(ctx); err != nil {
				s.log.Warn("keep-alive ping failed", "error", err)
			}
		}
	}
}

func (s *Session) handleSelect(ctx context.Context, st *state, tokens []string, snapshots chan<- seedResult) {
	newDesired := hashset.SetFromSlice(tokens)
	if newDesired.Equal(st.desired) {
		return
	}

	for dropped := range st.desired.Remove(newDesired) {
		s.books.Drop(dropped)
	}
	for added := range newDesired.Remove(st.desired) {
		s.books.Seed(added)
		s.fetchSnapshot(ctx, added, snapshots)
	}

	st.desired = newDesired
	s.log.Info("selection changed", "desired", len(st.desired))

	if st.conn != nil {
		s.reconcile(ctx, st)
		return
	}
	if len(st.desired) == 0 {
		// Nothing wanted anymore; a pending reconnect is moot.
		if st.reconnect != nil {
			st.reconnect.Stop()
			st.reconnect = nil
		}
		return
	}
	// First selection dials; while a reconnect is pending the desired set is
	// only recorded and reconciled once the connection comes back.
	if st.reconnect == nil {
		s.dial(ctx, st, snapshots, false)
	}
}

func (s *Session) fetchSnapshot(ctx context.Context, tokenID string, snapshots chan<- seedResult) {
	go func() {
		bids, asks, err := s.fetcher.FetchBook(ctx, tokenID)
		select {
		case snapshots <- seedResult{tokenID: tokenID, bids: bids, asks: asks, err: err}:
		case <-ctx.Done():
		case <-s.stop:
		}
	}()
}

func (s *Session) handleSeed(st *state, res seedResult) {
	if !st.desired.Has(res.tokenID) {
		return
	}
	if res.err != nil {
		// The seeded empty book stays in place; reopening the instrument
		// retries the fetch.
		metrics.SnapshotFetchesTotal.WithLabelValues("error").Inc()
		s.log.Warn("snapshot fetch failed", "token", res.tokenID, "error", res.err)
		return
	}

	metrics.SnapshotFetchesTotal.WithLabelValues("ok").Inc()
	s.books.ReplaceBook(res.tokenID, res.bids, res.asks, s.clock.Now())
	metrics.BookUpdatesTotal.WithLabelValues("replace").Inc()
}

func (s *Session) dial(ctx context.Context, st *state, snapshots chan<- seedResult, reseed bool) {
	conn, err := s.dialer.Dial(ctx)
	if err != nil {
		s.log.Error("dial failed", "error", err)
		s.armReconnect(st)
		return
	}

	s.log.Info("feed connected")
	st.conn = conn
	st.subscribed = hashset.NewSet[string]()
	st.msgs = make(chan readResult, 1)

	readCtx, cancel := context.WithCancel(ctx)
	st.readCancel = cancel
	go readLoop(readCtx, conn, st.msgs)

	st.ping = s.clock.NewTicker(s.pingInterval)

	s.reconcile(ctx, st)
	if reseed {
		// No ordering holds across a reconnect; books are stale until
		// re-fetched.
		for tokenID := range st.desired {
			s.fetchSnapshot(ctx, tokenID, snapshots)
		}
	}
}

func readLoop(ctx context.Context, conn Conn, out chan<- readResult) {
	for {
		data, err := conn.ReadMessage(ctx)
		select {
		case out <- readResult{data: data, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) handleDisconnect(st *state, err error) {
	s.log.Warn("feed disconnected", "error", err)
	s.closeConn(st)

	// Reconnect only while the caller still wants a stream.
	if len(st.desired) > 0 {
		s.armReconnect(st)
	}
}

// armReconnect schedules a single reconnect attempt. Re-arming cancels any
// prior pending timer so two attempts can never be in flight.
func (s *Session) armReconnect(st *state) {
	if st.reconnect != nil {
		st.reconnect.Stop()
	}
	st.reconnect = s.clock.NewTimer(s.reconnectDelay)
}

func (s *Session) closeConn(st *state) {
	if st.ping != nil {
		st.ping.Stop()
		st.ping = nil
	}
	if st.readCancel != nil {
		st.readCancel()
		st.readCancel = nil
	}
	if st.conn != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), websocket.DefaultCloseTimeout)
		st.conn.Close(closeCtx)
		cancel()
		st.conn = nil
	}
	st.msgs = nil
	st.subscribed = hashset.NewSet[string]()
	metrics.SubscriptionsActive.Set(0)
}

// reconcile brings the live subscription in line with the desired set,
// sending at most one unsubscribe and one subscribe frame. With no open
// connection the desired set stays recorded for the next connect.
func (s *Session) reconcile(ctx context.Context, st *state) {
	if st.conn == nil {
		return
	}

	toAdd, toRemove := Diff(st.subscribed, st.desired)

	if len(toRemove) > 0 {
		if err := st.conn.Unsubscribe(ctx, toRemove); err != nil {
			s.log.Warn("unsubscribe failed", "count", len(toRemove), "error", err)
		} else {
			for _, t := range toRemove {
				st.subscribed.Delete(t)
			}
		}
	}

	if len(toAdd) > 0 {
		if err := st.conn.Subscribe(ctx, toAdd); err != nil {
			s.log.Warn("subscribe failed", "count", len(toAdd), "error", err)
		} else {
			for _, t := range toAdd {
				st.subscribed.Set(t)
			}
		}
	}

	metrics.SubscriptionsActive.Set(float64(len(st.subscribed)))
}

func (s *Session) handleFrame(st *state, data []byte) {
	events, err := websocket.Parse(data)
	if err != nil {
		// A malformed payload must not tear down the stream.
		metrics.FeedParseErrorsTotal.Inc()
		s.log.Warn("couldn't parse feed message", "error", err)
		return
	}

	for _, ev := range events {
		metrics.FeedMessagesTotal.WithLabelValues(ev.Type).Inc()
		switch ev.Type {
		case websocket.BookEventType:
			s.applyBook(st, ev.Book)
		case websocket.PriceChangeEventType:
			s.applyPriceChange(st, ev.PriceChange)
		}
	}
}

func (s *Session) applyBook(st *state, ev *websocket.BookEvent) {
	if !st.desired.Has(ev.AssetID) {
		return
	}

	ts := websocket.EventTime(ev.Timestamp)
	bids := make([]book.Level, 0, len(ev.Bids))
	for _, l := range ev.Bids {
		bids = append(bids, book.Level{Price: l.Price, Size: l.Size, UpdatedAt: ts})
	}
	asks := make([]book.Level, 0, len(ev.Asks))
	for _, l := range ev.Asks {
		asks = append(asks, book.Level{Price: l.Price, Size: l.Size, UpdatedAt: ts})
	}

	s.books.ReplaceBook(ev.AssetID, bids, asks, ts)
	metrics.BookUpdatesTotal.WithLabelValues("replace").Inc()
}

func (s *Session) applyPriceChange(st *state, ev *websocket.PriceChangeEvent) {
	ts := websocket.EventTime(ev.Timestamp)
	for _, change := range ev.Changes {
		// Deltas for deselected instruments are discarded, even if an
		// unsubscribe is still in flight.
		if !st.desired.Has(change.AssetID) {
			continue
		}

		side, err := book.SideFromOrder(change.Side)
		if err != nil {
			s.log.Warn("couldn't apply price change", "token", change.AssetID, "error", err)
			continue
		}

		if err := s.books.ApplyDelta(change.AssetID, side, change.Price, change.Size, ts); err != nil {
			s.log.Warn("couldn't apply price change", "token", change.AssetID, "error", err)
			continue
		}
		metrics.BookUpdatesTotal.WithLabelValues("delta").Inc()
	}
}

func (s *Session) teardown(st *state) {
	if st.reconnect != nil {
		st.reconnect.Stop()
		st.reconnect = nil
	}
	s.closeConn(st)
}

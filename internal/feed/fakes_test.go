package feed

import (
	"context"
	"sync"
	"time"

	"github.com/daszybak/polymarket_dashboard/internal/book"
)

// fakeClock drives timers and tickers manually.
type fakeClock struct {
	mu         sync.Mutex
	now        time.Time
	timers     []*fakeTimer
	tickers    []*fakeTicker
	maxPending int
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTimer(d time.Duration) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTimer{
		clock: c,
		c:     make(chan time.Time, 1),
		when:  c.now.Add(d),
	}
	c.timers = append(c.timers, t)
	if n := c.pendingLocked(); n > c.maxPending {
		c.maxPending = n
	}
	return t
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTicker{
		c:        make(chan time.Time, 1),
		interval: d,
		next:     c.now.Add(d),
	}
	c.tickers = append(c.tickers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
	for _, t := range c.timers {
		if !t.fired && !t.stopped && !t.when.After(c.now) {
			t.fired = true
			select {
			case t.c <- c.now:
			default:
			}
		}
	}
	for _, t := range c.tickers {
		for !t.stopped && !t.next.After(c.now) {
			t.next = t.next.Add(t.interval)
			select {
			case t.c <- c.now:
			default:
			}
		}
	}
}

func (c *fakeClock) pendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingLocked()
}

func (c *fakeClock) pendingLocked() int {
	n := 0
	for _, t := range c.timers {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}

type fakeTimer struct {
	clock   *fakeClock
	c       chan time.Time
	when    time.Time
	fired   bool
	stopped bool
}

func (t *fakeTimer) C() <-chan time.Time { return t.c }

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	wasPending := !t.fired && !t.stopped
	t.stopped = true
	return wasPending
}

type fakeTicker struct {
	c        chan time.Time
	interval time.Duration
	next     time.Time
	stopped  bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.c }
func (t *fakeTicker) Stop()               { t.stopped = true }

// fakeConn is a scriptable feed connection.
type fakeConn struct {
	subs      chan []string
	unsubs    chan []string
	pings     chan struct{}
	frames    chan []byte
	errs      chan error
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		subs:   make(chan []string, 16),
		unsubs: make(chan []string, 16),
		pings:  make(chan struct{}, 16),
		frames: make(chan []byte, 16),
		errs:   make(chan error, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) Subscribe(_ context.Context, tokenIDs []string) error {
	c.subs <- append([]string(nil), tokenIDs...)
	return nil
}

func (c *fakeConn) Unsubscribe(_ context.Context, tokenIDs []string) error {
	c.unsubs <- append([]string(nil), tokenIDs...)
	return nil
}

func (c *fakeConn) Ping(context.Context) error {
	select {
	case c.pings <- struct{}{}:
	default:
	}
	return nil
}

func (c *fakeConn) ReadMessage(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, context.Canceled
	case data := <-c.frames:
		return data, nil
	case err := <-c.errs:
		return nil, err
	}
}

func (c *fakeConn) Close(context.Context) error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

type dialResult struct {
	conn Conn
	err  error
}

// fakeDialer hands out scripted dial results in order.
type fakeDialer struct {
	mu      sync.Mutex
	results chan dialResult
	dials   int
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{results: make(chan dialResult, 16)}
}

func (d *fakeDialer) queue(conn Conn, err error) {
	d.results <- dialResult{conn: conn, err: err}
}

func (d *fakeDialer) Dial(ctx context.Context) (Conn, error) {
	d.mu.Lock()
	d.dials++
	d.mu.Unlock()

	select {
	case r := <-d.results:
		return r.conn, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// fakeFetcher serves canned snapshots and counts fetches per token.
type fakeFetcher struct {
	mu      sync.Mutex
	bids    map[string][]book.Level
	asks    map[string][]book.Level
	err     error
	fetches map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		bids:    make(map[string][]book.Level),
		asks:    make(map[string][]book.Level),
		fetches: make(map[string]int),
	}
}

func (f *fakeFetcher) FetchBook(_ context.Context, tokenID string) ([]book.Level, []book.Level, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.fetches[tokenID]++
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.bids[tokenID], f.asks[tokenID], nil
}

func (f *fakeFetcher) fetchCount(tokenID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[tokenID]
}

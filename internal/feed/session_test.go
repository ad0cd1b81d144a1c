package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/daszybak/polymarket_dashboard/internal/book"
	"github.com/daszybak/polymarket_dashboard/internal/price"
)

func startSession(t *testing.T, dialer Dialer, fetcher SnapshotFetcher, clk Clock) (*Session, *book.Store) {
	t.Helper()

	books := book.NewStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sess := NewSession(Config{Clock: clk}, dialer, fetcher, books, log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sess.Start(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return sess, books
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func recvFrame(t *testing.T, ch chan []string, what string) []string {
	t.Helper()
	select {
	case frame := <-ch:
		return frame
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s frame", what)
		return nil
	}
}

func TestSelectSubscribes(t *testing.T) {
	clk := newFakeClock()
	conn := newFakeConn()
	dialer := newFakeDialer()
	dialer.queue(conn, nil)

	sess, _ := startSession(t, dialer, newFakeFetcher(), clk)

	if err := sess.Select(context.Background(), []string{"A", "B"}); err != nil {
		t.Fatal(err)
	}

	got := recvFrame(t, conn.subs, "subscribe")
	if !equalSlices(got, []string{"A", "B"}) {
		t.Errorf("subscribed %v, want [A B]", got)
	}
	if dialer.dialCount() != 1 {
		t.Errorf("dialed %d times, want 1", dialer.dialCount())
	}
}

func TestReconcileSendsMinimalFrames(t *testing.T) {
	clk := newFakeClock()
	conn := newFakeConn()
	dialer := newFakeDialer()
	dialer.queue(conn, nil)

	sess, _ := startSession(t, dialer, newFakeFetcher(), clk)

	sess.Select(context.Background(), []string{"A", "B"})
	recvFrame(t, conn.subs, "initial subscribe")

	sess.Select(context.Background(), []string{"B", "C"})

	unsub := recvFrame(t, conn.unsubs, "unsubscribe")
	if !equalSlices(unsub, []string{"A"}) {
		t.Errorf("unsubscribed %v, want [A]", unsub)
	}
	sub := recvFrame(t, conn.subs, "subscribe")
	if !equalSlices(sub, []string{"C"}) {
		t.Errorf("subscribed %v, want [C]", sub)
	}

	// B must never be touched and no further frames may follow.
	time.Sleep(20 * time.Millisecond)
	if len(conn.subs) != 0 || len(conn.unsubs) != 0 {
		t.Error("reconciler sent extra frames")
	}
}

func TestSelectionDeferredWhileDisconnected(t *testing.T) {
	clk := newFakeClock()
	dialer := newFakeDialer()
	dialer.queue(nil, errors.New("connection refused"))

	sess, _ := startSession(t, dialer, newFakeFetcher(), clk)

	sess.Select(context.Background(), []string{"A"})
	waitFor(t, func() bool { return dialer.dialCount() == 1 && clk.pendingTimers() == 1 },
		"failed dial should arm a reconnect")

	conn := newFakeConn()
	dialer.queue(conn, nil)
	clk.Advance(DefaultReconnectDelay)

	// The recorded desired set is reconciled once the connection is up.
	got := recvFrame(t, conn.subs, "deferred subscribe")
	if !equalSlices(got, []string{"A"}) {
		t.Errorf("subscribed %v, want [A]", got)
	}
}

func TestReconnectSingleSlot(t *testing.T) {
	clk := newFakeClock()
	conn1 := newFakeConn()
	dialer := newFakeDialer()
	dialer.queue(conn1, nil)
	fetcher := newFakeFetcher()

	sess, _ := startSession(t, dialer, fetcher, clk)

	sess.Select(context.Background(), []string{"A"})
	recvFrame(t, conn1.subs, "subscribe")
	seeds := fetcher.fetchCount("A")

	conn1.errs <- io.ErrUnexpectedEOF
	waitFor(t, func() bool { return clk.pendingTimers() == 1 }, "disconnect should arm one reconnect")

	// Two more failed attempts; each re-arms without stacking timers.
	for i := 0; i < 2; i++ {
		dialer.queue(nil, errors.New("still down"))
		want := dialer.dialCount() + 1
		clk.Advance(DefaultReconnectDelay)
		waitFor(t, func() bool { return dialer.dialCount() == want && clk.pendingTimers() == 1 },
			"failed reconnect should re-arm exactly one timer")
	}

	if clk.maxPending > 1 {
		t.Errorf("observed %d pending reconnect timers, want at most 1", clk.maxPending)
	}

	conn2 := newFakeConn()
	dialer.queue(conn2, nil)
	clk.Advance(DefaultReconnectDelay)

	// Reconnect resubscribes from scratch and re-seeds the stale book.
	got := recvFrame(t, conn2.subs, "resubscribe")
	if !equalSlices(got, []string{"A"}) {
		t.Errorf("resubscribed %v, want [A]", got)
	}
	waitFor(t, func() bool { return fetcher.fetchCount("A") > seeds },
		"reconnect should re-fetch the snapshot")
	if clk.pendingTimers() != 0 {
		t.Errorf("%d reconnect timers pending after successful dial, want 0", clk.pendingTimers())
	}
}

func TestNoReconnectWithEmptySelection(t *testing.T) {
	clk := newFakeClock()
	conn := newFakeConn()
	dialer := newFakeDialer()
	dialer.queue(conn, nil)

	sess, _ := startSession(t, dialer, newFakeFetcher(), clk)

	sess.Select(context.Background(), []string{"A"})
	recvFrame(t, conn.subs, "subscribe")

	sess.Deselect(context.Background())
	recvFrame(t, conn.unsubs, "unsubscribe")

	conn.errs <- io.ErrUnexpectedEOF
	time.Sleep(20 * time.Millisecond)
	if clk.pendingTimers() != 0 {
		t.Error("reconnect armed although nothing is desired")
	}
}

func TestEndToEndSeedAndDelta(t *testing.T) {
	clk := newFakeClock()
	conn := newFakeConn()
	dialer := newFakeDialer()
	dialer.queue(conn, nil)

	fetcher := newFakeFetcher()
	fetcher.bids["X"] = []book.Level{{Price: price.ParsePrice("0.45"), Size: price.ParseSize("50")}}
	fetcher.asks["X"] = []book.Level{{Price: price.ParsePrice("0.55"), Size: price.ParseSize("30")}}

	sess, books := startSession(t, dialer, fetcher, clk)

	sess.Select(context.Background(), []string{"X"})
	recvFrame(t, conn.subs, "subscribe")

	waitFor(t, func() bool {
		snap, ok := books.Snapshot("X")
		return ok && len(snap.Bids) == 1 && len(snap.Asks) == 1
	}, "snapshot fetch should seed the book")

	conn.frames <- []byte(`{"event_type":"price_change","timestamp":"1730612345678",
		"price_changes":[{"asset_id":"X","side":"BUY","price":"0.45","size":"0"}]}`)

	waitFor(t, func() bool {
		snap, _ := books.Snapshot("X")
		return len(snap.Bids) == 0
	}, "delta should remove the bid")

	snap, _ := books.Snapshot("X")
	if len(snap.Asks) != 1 || snap.Asks[0].Price != price.ParsePrice("0.55") {
		t.Errorf("ask side changed: %v", snap.Asks)
	}
}

func TestFullBookEventReplaces(t *testing.T) {
	clk := newFakeClock()
	conn := newFakeConn()
	dialer := newFakeDialer()
	dialer.queue(conn, nil)

	sess, books := startSession(t, dialer, newFakeFetcher(), clk)

	sess.Select(context.Background(), []string{"X"})
	recvFrame(t, conn.subs, "subscribe")

	conn.frames <- []byte(`[{"event_type":"book","asset_id":"X","timestamp":"1730612345678",
		"bids":[{"price":"0.40","size":"10"}],"asks":[]}]`)
	waitFor(t, func() bool {
		snap, _ := books.Snapshot("X")
		return len(snap.Bids) == 1
	}, "book event should install levels")

	conn.frames <- []byte(`[{"event_type":"book","asset_id":"X","timestamp":"1730612345679",
		"bids":[],"asks":[]}]`)
	waitFor(t, func() bool {
		snap, _ := books.Snapshot("X")
		return len(snap.Bids) == 0 && len(snap.Asks) == 0
	}, "empty book event should discard prior state")
}

func TestDeselectionStopsUpdates(t *testing.T) {
	clk := newFakeClock()
	conn := newFakeConn()
	dialer := newFakeDialer()
	dialer.queue(conn, nil)

	sess, books := startSession(t, dialer, newFakeFetcher(), clk)

	sess.Select(context.Background(), []string{"X"})
	recvFrame(t, conn.subs, "subscribe")

	sess.Deselect(context.Background())
	recvFrame(t, conn.unsubs, "unsubscribe")
	waitFor(t, func() bool { return !books.Has("X") }, "deselection should drop the book")

	// A straggler delta racing the unsubscribe must not resurrect state.
	conn.frames <- []byte(`{"event_type":"price_change","timestamp":"1730612345678",
		"price_changes":[{"asset_id":"X","side":"BUY","price":"0.50","size":"100"}]}`)
	time.Sleep(20 * time.Millisecond)
	if books.Has("X") {
		t.Error("delta for deselected instrument altered state")
	}
}

func TestMalformedFrameSwallowed(t *testing.T) {
	clk := newFakeClock()
	conn := newFakeConn()
	dialer := newFakeDialer()
	dialer.queue(conn, nil)

	sess, books := startSession(t, dialer, newFakeFetcher(), clk)

	sess.Select(context.Background(), []string{"X"})
	recvFrame(t, conn.subs, "subscribe")

	conn.frames <- []byte(`{definitely not json`)
	conn.frames <- []byte(`[{"event_type":"book","asset_id":"X","timestamp":"1730612345678",
		"bids":[{"price":"0.40","size":"10"}],"asks":[]}]`)

	// The malformed frame is dropped; the stream keeps flowing.
	waitFor(t, func() bool {
		snap, _ := books.Snapshot("X")
		return len(snap.Bids) == 1
	}, "connection should survive a malformed frame")
	if clk.pendingTimers() != 0 {
		t.Error("malformed frame must not trigger a reconnect")
	}
}

func TestKeepAlive(t *testing.T) {
	clk := newFakeClock()
	conn := newFakeConn()
	dialer := newFakeDialer()
	dialer.queue(conn, nil)

	sess, _ := startSession(t, dialer, newFakeFetcher(), clk)

	sess.Select(context.Background(), []string{"A"})
	recvFrame(t, conn.subs, "subscribe")

	clk.Advance(DefaultPingInterval)
	select {
	case <-conn.pings:
	case <-time.After(2 * time.Second):
		t.Fatal("no keep-alive ping sent")
	}
}

func TestSnapshotFetchFailureKeepsEmptyBook(t *testing.T) {
	clk := newFakeClock()
	conn := newFakeConn()
	dialer := newFakeDialer()
	dialer.queue(conn, nil)

	fetcher := newFakeFetcher()
	fetcher.err = errors.New("upstream 500")

	sess, books := startSession(t, dialer, fetcher, clk)

	sess.Select(context.Background(), []string{"X"})
	recvFrame(t, conn.subs, "subscribe")

	waitFor(t, func() bool { return fetcher.fetchCount("X") == 1 }, "fetch should be attempted")
	time.Sleep(20 * time.Millisecond)

	snap, ok := books.Snapshot("X")
	if !ok {
		t.Fatal("seeded empty book should survive a failed fetch")
	}
	if len(snap.Bids) != 0 || len(snap.Asks) != 0 {
		t.Errorf("book not empty after failed fetch: %v", snap)
	}
}

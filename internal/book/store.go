package book

import (
	"sync"
	"time"

	"github.com/daszybak/polymarket_dashboard/internal/price"
)

// Store maps instrument token IDs to their order books. Mutation happens from
// the feed session's event loop; reads may come from any goroutine, so access
// is guarded by a RWMutex. Lookup by token ID is O(1).
type Store struct {
	mu    sync.RWMutex
	books map[string]*Orderbook
}

func NewStore() *Store {
	return &Store{books: make(map[string]*Orderbook)}
}

// Seed creates an empty book for a newly selected instrument. Existing state
// is kept so a late seed does not wipe levels already streamed in.
func (s *Store) Seed(tokenID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.books[tokenID]; !ok {
		s.books[tokenID] = NewOrderbook()
	}
}

// ReplaceBook installs a full snapshot for the instrument, discarding any
// prior levels. Last snapshot wins.
func (s *Store) ReplaceBook(tokenID string, bids, asks []Level, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ob, ok := s.books[tokenID]
	if !ok {
		ob = NewOrderbook()
		s.books[tokenID] = ob
	}
	ob.Replace(bids, asks, ts)
}

// ApplyDelta upserts or removes a single price level. An unseen instrument
// gets an empty book created first. Idempotent under duplicate delivery.
func (s *Store) ApplyDelta(tokenID string, side Side, p price.Price, size price.Size, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ob, ok := s.books[tokenID]
	if !ok {
		ob = NewOrderbook()
		s.books[tokenID] = ob
	}
	return ob.Set(side, p, size, ts)
}

// Drop deletes the instrument's book entirely.
func (s *Store) Drop(tokenID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.books, tokenID)
}

func (s *Store) Has(tokenID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.books[tokenID]
	return ok
}

func (s *Store) Tokens() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tokens := make([]string, 0, len(s.books))
	for t := range s.books {
		tokens = append(tokens, t)
	}
	return tokens
}

// Snapshot captures the current state of one instrument's book. The returned
// levels are copies; callers may hold them as long as they like.
type Snapshot struct {
	TokenID     string
	Bids        []Level
	Asks        []Level
	LastUpdated time.Time
}

func (s *Store) Snapshot(tokenID string) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ob, ok := s.books[tokenID]
	if !ok {
		return Snapshot{}, false
	}

	bids, _ := ob.Levels(SideBid)
	asks, _ := ob.Levels(SideAsk)
	return Snapshot{
		TokenID:     tokenID,
		Bids:        bids,
		Asks:        asks,
		LastUpdated: ob.LastUpdated(),
	}, true
}

// Package book maintains live order books keyed by instrument token ID.
package book

import (
	"fmt"
	"time"

	"github.com/google/btree"

	"github.com/daszybak/polymarket_dashboard/internal/price"
)

// Side names one half of an order book.
type Side string

const (
	SideBid Side = "bids"
	SideAsk Side = "asks"
)

// SideFromOrder maps the feed's order side to a book side.
// Resting BUY orders are bids, resting SELL orders are asks.
func SideFromOrder(s string) (Side, error) {
	switch s {
	case "BUY", "buy":
		return SideBid, nil
	case "SELL", "sell":
		return SideAsk, nil
	default:
		return "", fmt.Errorf("invalid order side: %s", s)
	}
}

// Level represents a price level in the order book.
type Level struct {
	Price     price.Price `json:"price"`
	Size      price.Size  `json:"size"`
	UpdatedAt time.Time   `json:"-"`
}

// lessAsc compares levels by price ascending (for asks: lowest first).
func lessAsc(a, b Level) bool {
	return a.Price < b.Price
}

// lessDesc compares levels by price descending (for bids: highest first).
func lessDesc(a, b Level) bool {
	return a.Price > b.Price
}

// Orderbook holds sorted bid and ask levels for one instrument.
// Bids are sorted descending (highest price first), asks ascending.
// Price is the unique key within a side.
type Orderbook struct {
	bids        *btree.BTreeG[Level]
	asks        *btree.BTreeG[Level]
	lastUpdated time.Time
}

// NewOrderbook creates a new empty order book.
func NewOrderbook() *Orderbook {
	return &Orderbook{
		bids: btree.NewG(32, lessDesc),
		asks: btree.NewG(32, lessAsc),
	}
}

// Replace discards both sides and installs the given levels wholesale.
func (ob *Orderbook) Replace(bids, asks []Level, ts time.Time) {
	ob.bids.Clear(false)
	ob.asks.Clear(false)
	for _, l := range bids {
		if l.Size > 0 {
			ob.bids.ReplaceOrInsert(l)
		}
	}
	for _, l := range asks {
		if l.Size > 0 {
			ob.asks.ReplaceOrInsert(l)
		}
	}
	ob.lastUpdated = ts
}

// Set applies an absolute size at a price level. A size of zero removes the
// level; removing an absent level is a no-op. Setting the same price and size
// twice leaves the book unchanged after the first application.
func (ob *Orderbook) Set(side Side, p price.Price, size price.Size, ts time.Time) error {
	tree, err := ob.tree(side)
	if err != nil {
		return err
	}

	if size <= 0 {
		tree.Delete(Level{Price: p})
	} else {
		tree.ReplaceOrInsert(Level{Price: p, Size: size, UpdatedAt: ts})
	}
	ob.lastUpdated = ts
	return nil
}

// Levels returns a copy of all levels on a side in price order.
func (ob *Orderbook) Levels(side Side) ([]Level, error) {
	tree, err := ob.tree(side)
	if err != nil {
		return nil, err
	}

	levels := make([]Level, 0, tree.Len())
	tree.Ascend(func(lvl Level) bool {
		levels = append(levels, lvl)
		return true
	})
	return levels, nil
}

// Len returns the number of levels on a side.
func (ob *Orderbook) Len(side Side) int {
	tree, err := ob.tree(side)
	if err != nil {
		return 0
	}
	return tree.Len()
}

// LastUpdated reports when the book last changed.
func (ob *Orderbook) LastUpdated() time.Time {
	return ob.lastUpdated
}

func (ob *Orderbook) tree(side Side) (*btree.BTreeG[Level], error) {
	switch side {
	case SideBid:
		return ob.bids, nil
	case SideAsk:
		return ob.asks, nil
	default:
		return nil, fmt.Errorf("invalid side: %s", side)
	}
}

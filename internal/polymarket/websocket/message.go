package websocket

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/daszybak/polymarket_dashboard/internal/price"
)

const (
	BookEventType        = "book"
	PriceChangeEventType = "price_change"
	TradeEventType       = "trade"
)

// Event is one decoded feed message. Exactly one of the payload pointers is
// set, matching Type.
type Event struct {
	Type        string
	Book        *BookEvent
	PriceChange *PriceChangeEvent
	Trade       *TradeEvent
}

// OrderSummary is a single resting price level on the wire.
type OrderSummary struct {
	Price price.Price `json:"price"`
	Size  price.Size  `json:"size"`
}

// BookEvent replaces both sides of one asset's book wholesale.
type BookEvent struct {
	AssetID   string         `json:"asset_id"`
	Market    string         `json:"market"`
	Timestamp string         `json:"timestamp"`
	Hash      string         `json:"hash"`
	Bids      []OrderSummary `json:"bids"`
	Asks      []OrderSummary `json:"asks"`
}

// PriceChangeEvent carries incremental level updates, possibly for several
// assets of the same market.
type PriceChangeEvent struct {
	Market    string        `json:"market"`
	Timestamp string        `json:"timestamp"`
	Changes   []PriceChange `json:"price_changes"`
}

// PriceChange upserts one price level; a zero size removes it.
type PriceChange struct {
	AssetID string      `json:"asset_id"`
	Price   price.Price `json:"price"`
	Size    price.Size  `json:"size"`
	Side    string      `json:"side"` // "BUY" or "SELL"
	BestBid price.Price `json:"best_bid"`
	BestAsk price.Price `json:"best_ask"`
}

// TradeEvent arrives on the user channel when one of the user's orders trades.
type TradeEvent struct {
	AssetID      string      `json:"asset_id"`
	Market       string      `json:"market"`
	Price        price.Price `json:"price"`
	Size         price.Size  `json:"size"`
	Side         string      `json:"side"`
	Status       string      `json:"status"` // e.g. "MATCHED", "CONFIRMED"
	Outcome      string      `json:"outcome"`
	TakerOrderID string      `json:"taker_order_id"`
	Timestamp    string      `json:"timestamp"`
}

// Parse decodes a raw frame into zero or more events. The feed delivers
// either a JSON array of event objects (the initial dump) or a single event
// object. A bare PONG yields no events. Events of unknown type are dropped.
func Parse(data []byte) ([]Event, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == PongText || string(data) == "pong" {
		return nil, nil
	}

	if data[0] == '[' {
		var raws []json.RawMessage
		if err := json.Unmarshal(data, &raws); err != nil {
			return nil, fmt.Errorf("couldn't parse event array: %w", err)
		}

		events := make([]Event, 0, len(raws))
		for _, raw := range raws {
			ev, err := parseOne(raw)
			if err != nil {
				return nil, err
			}
			if ev != nil {
				events = append(events, *ev)
			}
		}
		return events, nil
	}

	ev, err := parseOne(data)
	if err != nil || ev == nil {
		return nil, err
	}
	return []Event{*ev}, nil
}

func parseOne(data []byte) (*Event, error) {
	var base struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("couldn't parse base message: %w", err)
	}

	switch base.EventType {
	case BookEventType:
		b := &BookEvent{}
		if err := json.Unmarshal(data, b); err != nil {
			return nil, fmt.Errorf("couldn't parse book event: %w", err)
		}
		return &Event{Type: BookEventType, Book: b}, nil
	case PriceChangeEventType:
		pc := &PriceChangeEvent{}
		if err := json.Unmarshal(data, pc); err != nil {
			return nil, fmt.Errorf("couldn't parse price change event: %w", err)
		}
		return &Event{Type: PriceChangeEventType, PriceChange: pc}, nil
	case TradeEventType:
		tr := &TradeEvent{}
		if err := json.Unmarshal(data, tr); err != nil {
			return nil, fmt.Errorf("couldn't parse trade event: %w", err)
		}
		return &Event{Type: TradeEventType, Trade: tr}, nil
	default:
		// tick_size_change, last_trade_price, best_bid_ask and friends are
		// not tracked by the dashboard.
		return nil, nil
	}
}

// EventTime converts the feed's millisecond timestamp string; falls back to
// now when absent or unparsable.
func EventTime(timestamp string) time.Time {
	ms, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil || ms <= 0 {
		return time.Now()
	}
	return time.UnixMilli(ms)
}

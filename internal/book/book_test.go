package book

import (
	"testing"
	"time"

	"github.com/daszybak/polymarket_dashboard/internal/price"
)

var ts = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func level(p, s string) Level {
	return Level{Price: price.ParsePrice(p), Size: price.ParseSize(s), UpdatedAt: ts}
}

func TestSideFromOrder(t *testing.T) {
	tests := []struct {
		in      string
		want    Side
		wantErr bool
	}{
		{"BUY", SideBid, false},
		{"SELL", SideAsk, false},
		{"buy", SideBid, false},
		{"sell", SideAsk, false},
		{"HOLD", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := SideFromOrder(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr = %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSetIsIdempotent(t *testing.T) {
	ob := NewOrderbook()

	if err := ob.Set(SideBid, price.ParsePrice("0.50"), price.ParseSize("100"), ts); err != nil {
		t.Fatal(err)
	}
	if err := ob.Set(SideBid, price.ParsePrice("0.50"), price.ParseSize("100"), ts); err != nil {
		t.Fatal(err)
	}

	bids, _ := ob.Levels(SideBid)
	if len(bids) != 1 {
		t.Fatalf("got %d bid levels, want 1", len(bids))
	}
	if bids[0].Size != price.ParseSize("100") {
		t.Errorf("got size %s, want 100", bids[0].Size)
	}
}

func TestSetZeroRemovesLevel(t *testing.T) {
	ob := NewOrderbook()
	ob.Set(SideAsk, price.ParsePrice("0.73"), price.ParseSize("10"), ts)

	ob.Set(SideAsk, price.ParsePrice("0.73"), 0, ts)

	if n := ob.Len(SideAsk); n != 0 {
		t.Errorf("got %d ask levels, want 0", n)
	}
}

func TestRemoveAbsentLevelIsNoop(t *testing.T) {
	ob := NewOrderbook()
	ob.Set(SideAsk, price.ParsePrice("0.55"), price.ParseSize("30"), ts)

	if err := ob.Set(SideAsk, price.ParsePrice("0.73"), 0, ts); err != nil {
		t.Fatal(err)
	}

	asks, _ := ob.Levels(SideAsk)
	if len(asks) != 1 || asks[0].Price != price.ParsePrice("0.55") {
		t.Errorf("book changed by removal of absent level: %v", asks)
	}
}

func TestSetUpsertReplacesSize(t *testing.T) {
	ob := NewOrderbook()
	ob.Set(SideBid, price.ParsePrice("0.40"), price.ParseSize("10"), ts)

	ob.Set(SideBid, price.ParsePrice("0.40"), price.ParseSize("25"), ts)

	bids, _ := ob.Levels(SideBid)
	if len(bids) != 1 {
		t.Fatalf("got %d levels, want 1", len(bids))
	}
	if bids[0].Size != price.ParseSize("25") {
		t.Errorf("got size %s, want 25", bids[0].Size)
	}
}

func TestReplaceDiscardsPriorState(t *testing.T) {
	ob := NewOrderbook()
	ob.Set(SideBid, price.ParsePrice("0.40"), price.ParseSize("10"), ts)

	ob.Replace(nil, nil, ts)

	if ob.Len(SideBid) != 0 || ob.Len(SideAsk) != 0 {
		t.Errorf("got %d bids, %d asks after empty replace, want 0/0",
			ob.Len(SideBid), ob.Len(SideAsk))
	}
}

func TestReplaceSkipsZeroSizeLevels(t *testing.T) {
	ob := NewOrderbook()
	ob.Replace([]Level{level("0.40", "10"), {Price: price.ParsePrice("0.41")}}, nil, ts)

	if n := ob.Len(SideBid); n != 1 {
		t.Errorf("got %d bid levels, want 1", n)
	}
}

func TestLevelsOrdering(t *testing.T) {
	ob := NewOrderbook()
	ob.Replace(
		[]Level{level("0.40", "10"), level("0.45", "5"), level("0.42", "7")},
		[]Level{level("0.60", "3"), level("0.55", "8")},
		ts,
	)

	bids, _ := ob.Levels(SideBid)
	if bids[0].Price != price.ParsePrice("0.45") || bids[2].Price != price.ParsePrice("0.40") {
		t.Errorf("bids not sorted descending: %v", bids)
	}

	asks, _ := ob.Levels(SideAsk)
	if asks[0].Price != price.ParsePrice("0.55") || asks[1].Price != price.ParsePrice("0.60") {
		t.Errorf("asks not sorted ascending: %v", asks)
	}
}

func TestInvalidSide(t *testing.T) {
	ob := NewOrderbook()
	if err := ob.Set(Side("mid"), 1, 1, ts); err == nil {
		t.Error("expected error for invalid side")
	}
	if _, err := ob.Levels(Side("mid")); err == nil {
		t.Error("expected error for invalid side")
	}
}

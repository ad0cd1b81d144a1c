package fills

import (
	"context"
	"log/slog"
	"time"

	"github.com/daszybak/polymarket_dashboard/internal/price"
)

// Fill describes one executed trade on the user's account.
type Fill struct {
	AssetID string
	Market  string
	Outcome string
	Side    string
	Price   price.Price
	Size    price.Size
	Time    time.Time
}

// Notifier delivers a fill to whatever surface the deployment uses (the
// browser notification bridge, a webhook, a log).
type Notifier interface {
	Notify(ctx context.Context, fill Fill)
}

// LogNotifier writes fills to the log.
type LogNotifier struct {
	Log *slog.Logger
}

func (n LogNotifier) Notify(_ context.Context, fill Fill) {
	n.Log.Info("order filled",
		"asset", fill.AssetID,
		"outcome", fill.Outcome,
		"side", fill.Side,
		"price", fill.Price,
		"size", fill.Size,
	)
}

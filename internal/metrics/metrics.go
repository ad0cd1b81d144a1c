// Package metrics holds the service's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	FeedReconnectsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feed_reconnects_total", Help: "Reconnect attempts on the market data feed"})
	FeedMessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_messages_total", Help: "Feed messages processed by event type"}, []string{"type"})
	FeedParseErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feed_parse_errors_total", Help: "Feed frames that failed to decode"})
	BookUpdatesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "book_updates_total", Help: "Order book mutations by kind (replace, delta)"}, []string{"kind"})
	SnapshotFetchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "snapshot_fetches_total", Help: "REST book snapshot fetches by outcome"}, []string{"outcome"})
	SubscriptionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "subscriptions_active", Help: "Instruments currently subscribed on the feed"})
	EventsCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "events_cache_hits_total", Help: "Event catalog cache hits"})
	EventsCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "events_cache_misses_total", Help: "Event catalog cache misses"})
	FillsNotifiedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fills_notified_total", Help: "Fill notifications handed to the notifier"})
)

// Init registers all collectors on a fresh registry.
func Init() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		FeedReconnectsTotal, FeedMessagesTotal, FeedParseErrorsTotal,
		BookUpdatesTotal, SnapshotFetchesTotal, SubscriptionsActive,
		EventsCacheHitsTotal, EventsCacheMissesTotal, FillsNotifiedTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

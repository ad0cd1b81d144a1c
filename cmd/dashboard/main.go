package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/daszybak/polymarket_dashboard/internal/book"
	"github.com/daszybak/polymarket_dashboard/internal/cache"
	"github.com/daszybak/polymarket_dashboard/internal/feed"
	"github.com/daszybak/polymarket_dashboard/internal/fills"
	"github.com/daszybak/polymarket_dashboard/internal/metrics"
	"github.com/daszybak/polymarket_dashboard/internal/platform"
	"github.com/daszybak/polymarket_dashboard/internal/polymarket/clob"
	"github.com/daszybak/polymarket_dashboard/internal/polymarket/gamma"
	"github.com/daszybak/polymarket_dashboard/internal/server"
)

const defaultCacheTTL = 30 * time.Second

func main() {
	configPath := flag.String("config", "configs/dashboard/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := readConfig(configPath)
	if err != nil {
		log.Fatalf("Couldn't read config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry := metrics.Init()

	var eventsCache *cache.Cache
	if cfg.Cache.RedisAddr != "" {
		eventsCache = cache.New(cfg.Cache.RedisAddr, cfg.Cache.TTL.Or(defaultCacheTTL), logger)
		defer eventsCache.Close()
	}

	gammaClient := gamma.New(cfg.Polymarket.GammaURL)
	clobClient := clob.New(cfg.Polymarket.ClobURL)

	books := book.NewStore()
	session := feed.NewSession(
		feed.Config{
			PingInterval:   cfg.Polymarket.PingInterval.Duration(),
			ReconnectDelay: cfg.Polymarket.ReconnectDelay.Duration(),
		},
		feed.WebsocketDialer{URL: cfg.Polymarket.WebsocketURL + "/market"},
		feed.ClobFetcher{Clob: clobClient},
		books,
		logger,
	)

	srv := server.New(
		server.Config{ListenAddr: cfg.ListenAddr},
		gammaClient, clobClient, session, eventsCache, registry, logger,
	)

	components := []platform.Platform{session, srv}
	if cfg.Fills.Enabled {
		monitor := fills.New(
			fills.Config{
				WSURL: cfg.Polymarket.WebsocketURL + "/user",
				Creds: &clob.APICreds{
					APIKey:     cfg.Fills.APIKey,
					Secret:     cfg.Fills.Secret.Reveal(),
					Passphrase: cfg.Fills.Passphrase.Reveal(),
				},
			},
			clobClient,
			fills.LogNotifier{Log: logger},
			logger,
		)
		components = append(components, monitor)
	}

	logger.Info("dashboard starting", "addr", cfg.ListenAddr)
	if err := platform.Run(ctx, components...); err != nil {
		log.Fatalf("Couldn't run dashboard: %v", err)
	}
	logger.Info("dashboard stopped")
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

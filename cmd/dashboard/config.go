package main

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"

	configtypes "github.com/daszybak/polymarket_dashboard/internal/config"
)

type config struct {
	LogLevel   string `yaml:"log_level"` // debug, info, warn, error
	ListenAddr string `yaml:"listen_addr"`

	Polymarket struct {
		GammaURL       string               `yaml:"gamma_url"`
		ClobURL        string               `yaml:"clob_url"`
		WebsocketURL   string               `yaml:"websocket_url"`
		PingInterval   configtypes.Duration `yaml:"ping_interval"`
		ReconnectDelay configtypes.Duration `yaml:"reconnect_delay"`
	} `yaml:"polymarket"`

	Cache struct {
		RedisAddr string               `yaml:"redis_addr"`
		TTL       configtypes.Duration `yaml:"ttl"`
	} `yaml:"cache"`

	Fills struct {
		Enabled    bool               `yaml:"enabled"`
		APIKey     string             `yaml:"api_key"`
		Secret     configtypes.Secret `yaml:"secret"`
		Passphrase configtypes.Secret `yaml:"passphrase"`
	} `yaml:"fills"`
}

func readConfig(configPath *string) (*config, error) {
	rawConfig, err := os.ReadFile(*configPath)
	if err != nil {
		return nil, fmt.Errorf("couldn't read file %s: %w", *configPath, err)
	}

	cfg := &config{}
	if err = yaml.Unmarshal(rawConfig, cfg); err != nil {
		return nil, fmt.Errorf("couldn't parse config: %w", err)
	}

	err = validateConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("couldn't validate config: %w", err)
	}

	return cfg, nil
}

func validateConfig(cfg *config) error {
	if cfg.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}

	// Polymarket
	if cfg.Polymarket.GammaURL == "" {
		return fmt.Errorf("polymarket.gamma_url is required")
	}
	if cfg.Polymarket.ClobURL == "" {
		return fmt.Errorf("polymarket.clob_url is required")
	}
	if cfg.Polymarket.WebsocketURL == "" {
		return fmt.Errorf("polymarket.websocket_url is required")
	}

	// Fills
	if cfg.Fills.Enabled {
		if cfg.Fills.APIKey == "" {
			return fmt.Errorf("fills.api_key is required when fills are enabled")
		}
		if cfg.Fills.Secret == "" {
			return fmt.Errorf("fills.secret is required when fills are enabled")
		}
		if cfg.Fills.Passphrase == "" {
			return fmt.Errorf("fills.passphrase is required when fills are enabled")
		}
	}

	return nil
}

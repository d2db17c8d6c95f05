package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Server struct {
	Port              string `json:"port"`
	RequestTimeoutSec int    `json:"request_timeout_sec"`
	LogLevel          string `json:"log_level"`
	LogJSON           bool   `json:"log_json"`
}

type Failover struct {
	Primary   string   `json:"primary"`
	Fallbacks []string `json:"fallbacks"`
}

type Cache struct {
	Enabled    bool `json:"enabled"`
	TTLSeconds int  `json:"ttl_sec"`
	MaxEntries int  `json:"max_entries"`
}

type Health struct {
	UnhealthyThreshold int `json:"unhealthy_threshold"`
	DecayIntervalSec   int `json:"decay_interval_sec"`
}

type Search struct {
	MaxResults int `json:"max_results"`
}

type Yahoo struct {
	Enabled           bool   `json:"enabled"`
	Endpoint          string `json:"endpoint"`
	RequestsPerSecond int    `json:"requests_per_second"`
}

type Finnhub struct {
	Enabled           bool   `json:"enabled"`
	APIKey            string `json:"api_key"`
	Endpoint          string `json:"endpoint"`
	RequestsPerSecond int    `json:"requests_per_second"`
}

type AlphaVantage struct {
	Enabled           bool   `json:"enabled"`
	APIKey            string `json:"api_key"`
	Endpoint          string `json:"endpoint"`
	RequestsPerSecond int    `json:"requests_per_second"`
}

type Config struct {
	Server       Server       `json:"server"`
	Failover     Failover     `json:"failover"`
	Cache        Cache        `json:"cache"`
	Health       Health       `json:"health"`
	Search       Search       `json:"search"`
	Yahoo        Yahoo        `json:"yahoo"`
	Finnhub      Finnhub      `json:"finnhub"`
	AlphaVantage AlphaVantage `json:"alphavantage"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "8080", RequestTimeoutSec: 10, LogLevel: "info"},
		Failover: Failover{
			Primary:   "yahoo",
			Fallbacks: []string{"finnhub", "alphavantage"},
		},
		Cache:  Cache{Enabled: true, TTLSeconds: 300, MaxEntries: 10000},
		Health: Health{UnhealthyThreshold: 3, DecayIntervalSec: 60},
		Search: Search{MaxResults: 20},
		Yahoo:  Yahoo{Enabled: true, RequestsPerSecond: 5},
		Finnhub: Finnhub{
			Enabled:           false,
			RequestsPerSecond: 1,
		},
		AlphaVantage: AlphaVantage{
			Enabled:           false,
			RequestsPerSecond: 1,
		},
	}
}

// Load reads JSON config from path. If path is empty or the file does not
// exist, it returns defaults. Environment variables override select fields
// so credentials stay out of the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setStr(&cfg.Server.Port, "PORT")
	setInt(&cfg.Server.RequestTimeoutSec, "REQUEST_TIMEOUT_SEC")
	setStr(&cfg.Server.LogLevel, "LOG_LEVEL")
	setBool(&cfg.Server.LogJSON, "LOG_JSON")

	setStr(&cfg.Failover.Primary, "PRIMARY_PROVIDER")
	if v := os.Getenv("FALLBACK_PROVIDERS"); v != "" {
		cfg.Failover.Fallbacks = splitCSV(v)
	}

	setBool(&cfg.Cache.Enabled, "CACHE_ENABLED")
	setInt(&cfg.Cache.TTLSeconds, "CACHE_TTL_SEC")
	setInt(&cfg.Cache.MaxEntries, "CACHE_MAX_ENTRIES")

	setInt(&cfg.Health.UnhealthyThreshold, "UNHEALTHY_THRESHOLD")
	setInt(&cfg.Health.DecayIntervalSec, "DECAY_INTERVAL_SEC")

	setInt(&cfg.Search.MaxResults, "SEARCH_MAX_RESULTS")

	setBool(&cfg.Yahoo.Enabled, "YAHOO_ENABLED")
	setStr(&cfg.Yahoo.Endpoint, "YAHOO_ENDPOINT")
	setInt(&cfg.Yahoo.RequestsPerSecond, "YAHOO_RPS")

	setBool(&cfg.Finnhub.Enabled, "FINNHUB_ENABLED")
	setStr(&cfg.Finnhub.APIKey, "FINNHUB_API_KEY")
	setStr(&cfg.Finnhub.Endpoint, "FINNHUB_ENDPOINT")
	setInt(&cfg.Finnhub.RequestsPerSecond, "FINNHUB_RPS")

	setBool(&cfg.AlphaVantage.Enabled, "ALPHAVANTAGE_ENABLED")
	setStr(&cfg.AlphaVantage.APIKey, "ALPHAVANTAGE_API_KEY")
	setStr(&cfg.AlphaVantage.Endpoint, "ALPHAVANTAGE_ENDPOINT")
	setInt(&cfg.AlphaVantage.RequestsPerSecond, "ALPHAVANTAGE_RPS")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if x, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = x
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "y":
			*dst = true
		case "0", "false", "no", "n":
			*dst = false
		}
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

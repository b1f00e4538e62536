package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"
)

// Bounds for the runtime-adjustable settings. Values outside these ranges
// are rejected at load time and by the interval reconfiguration endpoint.
const (
	DefaultUpdateInterval = 30 * time.Second
	MinUpdateInterval     = 10 * time.Second
	MaxUpdateInterval     = 300 * time.Second

	DefaultTradeHistoryDays = 7
	MinTradeHistoryDays     = 1
	MaxTradeHistoryDays     = 30

	DefaultTradeHistoryCount = 20
	MinTradeHistoryCount     = 10
	MaxTradeHistoryCount     = 100

	DefaultAPIBaseURL = "https://api.hyperliquid.xyz"
)

var walletPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// Config holds all application configuration, loaded from environment
// variables with the HYPER_ prefix.
type Config struct {
	// Wallet under observation (0x-prefixed, 40 hex digits)
	WalletAddress string

	// Upstream API
	APIBaseURL string

	// Refresh cadence and trade-history windows
	UpdateInterval    time.Duration
	TradeHistoryDays  int
	TradeHistoryCount int

	// HTTP API + metrics listener
	HTTPAddr string

	// NATS; empty disables event publishing
	NATSURL string

	// Log level passed through to zerolog (debug/info/warn/error)
	LogLevel string
}

// Load reads configuration from the environment and validates it.
func Load() (Config, error) {
	cfg := Config{
		WalletAddress:     os.Getenv("HYPER_WALLET_ADDRESS"),
		APIBaseURL:        envOrDefault("HYPER_API_BASE_URL", DefaultAPIBaseURL),
		UpdateInterval:    time.Duration(envIntOrDefault("HYPER_UPDATE_INTERVAL_SECONDS", int(DefaultUpdateInterval/time.Second))) * time.Second,
		TradeHistoryDays:  envIntOrDefault("HYPER_TRADE_HISTORY_DAYS", DefaultTradeHistoryDays),
		TradeHistoryCount: envIntOrDefault("HYPER_TRADE_HISTORY_COUNT", DefaultTradeHistoryCount),
		HTTPAddr:          envOrDefault("HYPER_HTTP_ADDR", ":8080"),
		NATSURL:           os.Getenv("HYPER_NATS_URL"),
		LogLevel:          envOrDefault("HYPER_LOG_LEVEL", "info"),
	}

	if cfg.WalletAddress == "" {
		return Config{}, fmt.Errorf("HYPER_WALLET_ADDRESS is required")
	}
	if !ValidWallet(cfg.WalletAddress) {
		return Config{}, fmt.Errorf("invalid wallet address %q: want 0x-prefixed 40 hex digits", cfg.WalletAddress)
	}
	if err := ValidateInterval(cfg.UpdateInterval); err != nil {
		return Config{}, err
	}
	if cfg.TradeHistoryDays < MinTradeHistoryDays || cfg.TradeHistoryDays > MaxTradeHistoryDays {
		return Config{}, fmt.Errorf("trade history days %d out of range [%d, %d]",
			cfg.TradeHistoryDays, MinTradeHistoryDays, MaxTradeHistoryDays)
	}
	if cfg.TradeHistoryCount < MinTradeHistoryCount || cfg.TradeHistoryCount > MaxTradeHistoryCount {
		return Config{}, fmt.Errorf("trade history count %d out of range [%d, %d]",
			cfg.TradeHistoryCount, MinTradeHistoryCount, MaxTradeHistoryCount)
	}

	return cfg, nil
}

// ValidWallet reports whether addr is a well-formed wallet address.
func ValidWallet(addr string) bool {
	return walletPattern.MatchString(addr)
}

// ValidateInterval checks a refresh interval against the allowed bounds.
func ValidateInterval(d time.Duration) error {
	if d < MinUpdateInterval || d > MaxUpdateInterval {
		return fmt.Errorf("update interval %s out of range [%s, %s]",
			d, MinUpdateInterval, MaxUpdateInterval)
	}
	return nil
}

// ShortWallet renders a wallet address as "0x1234...abcd" for labels and logs.
func ShortWallet(addr string) string {
	if len(addr) < 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

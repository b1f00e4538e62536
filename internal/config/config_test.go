package config_test

import (
	"testing"
	"time"

	"hyperwatch/internal/config"
)

const testWallet = "0x1234567890abcdef1234567890abcdef12345678"

// ============================================================================
// Test: wallet validation
// ============================================================================

func TestValidWallet(t *testing.T) {
	cases := []struct {
		name string
		addr string
		want bool
	}{
		{"valid lowercase", testWallet, true},
		{"valid mixed case", "0xAbCdEf1234567890aBcDeF1234567890ABCDEF12", true},
		{"missing prefix", "1234567890abcdef1234567890abcdef12345678", false},
		{"too short", "0x1234567890abcdef", false},
		{"too long", testWallet + "ab", false},
		{"non-hex characters", "0xZZ34567890abcdef1234567890abcdef12345678", false},
		{"empty", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := config.ValidWallet(tc.addr); got != tc.want {
				t.Errorf("ValidWallet(%q) = %v, want %v", tc.addr, got, tc.want)
			}
		})
	}
}

func TestShortWallet(t *testing.T) {
	got := config.ShortWallet(testWallet)
	if got != "0x1234...5678" {
		t.Errorf("got %q, want %q", got, "0x1234...5678")
	}

	// Short strings pass through untouched
	if got := config.ShortWallet("0xabc"); got != "0xabc" {
		t.Errorf("got %q, want %q", got, "0xabc")
	}
}

// ============================================================================
// Test: Load
// ============================================================================

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HYPER_WALLET_ADDRESS", testWallet)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.UpdateInterval != 30*time.Second {
		t.Errorf("UpdateInterval = %s, want 30s", cfg.UpdateInterval)
	}
	if cfg.TradeHistoryDays != 7 {
		t.Errorf("TradeHistoryDays = %d, want 7", cfg.TradeHistoryDays)
	}
	if cfg.TradeHistoryCount != 20 {
		t.Errorf("TradeHistoryCount = %d, want 20", cfg.TradeHistoryCount)
	}
	if cfg.APIBaseURL != config.DefaultAPIBaseURL {
		t.Errorf("APIBaseURL = %q, want %q", cfg.APIBaseURL, config.DefaultAPIBaseURL)
	}
	if cfg.NATSURL != "" {
		t.Errorf("NATSURL = %q, want empty", cfg.NATSURL)
	}
}

func TestLoad_MissingWallet(t *testing.T) {
	t.Setenv("HYPER_WALLET_ADDRESS", "")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for missing wallet address")
	}
}

func TestLoad_IntervalBounds(t *testing.T) {
	cases := []struct {
		name    string
		seconds string
		wantErr bool
	}{
		{"below minimum", "5", true},
		{"at minimum", "10", false},
		{"at maximum", "300", false},
		{"above maximum", "301", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("HYPER_WALLET_ADDRESS", testWallet)
			t.Setenv("HYPER_UPDATE_INTERVAL_SECONDS", tc.seconds)

			_, err := config.Load()
			if (err != nil) != tc.wantErr {
				t.Errorf("Load with interval %s: err = %v, wantErr %v", tc.seconds, err, tc.wantErr)
			}
		})
	}
}

func TestLoad_TradeHistoryBounds(t *testing.T) {
	t.Setenv("HYPER_WALLET_ADDRESS", testWallet)
	t.Setenv("HYPER_TRADE_HISTORY_DAYS", "31")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for lookback days above maximum")
	}

	t.Setenv("HYPER_TRADE_HISTORY_DAYS", "7")
	t.Setenv("HYPER_TRADE_HISTORY_COUNT", "5")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for display count below minimum")
	}
}

func TestValidateInterval(t *testing.T) {
	if err := config.ValidateInterval(60 * time.Second); err != nil {
		t.Errorf("60s should be valid: %v", err)
	}
	if err := config.ValidateInterval(time.Second); err == nil {
		t.Error("1s should be rejected")
	}
}

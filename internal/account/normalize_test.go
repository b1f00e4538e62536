package account_test

import (
	"math"
	"reflect"
	"testing"
	"time"

	"hyperwatch/internal/account"
	"hyperwatch/internal/hyperliquid"
)

var testNow = time.UnixMilli(1_700_000_000_000)

func fp(v float64) *hyperliquid.Float {
	f := hyperliquid.Float(v)
	return &f
}

func msAgo(d time.Duration) int64 {
	return testNow.Add(-d).UnixMilli()
}

func userStateFixture() *hyperliquid.UserState {
	return &hyperliquid.UserState{
		MarginSummary: hyperliquid.MarginSummary{
			AccountValue:    10000,
			TotalMarginUsed: 2500,
			Withdrawable:    7500,
		},
		AssetPositions: []hyperliquid.AssetPosition{
			{
				Type: "oneWay",
				Position: hyperliquid.Position{
					Coin:           "BTC",
					Szi:            -10,
					EntryPx:        14,
					PositionValue:  150,
					UnrealizedPnl:  -20,
					MarginUsed:     50,
					LiquidationPx:  fp(25),
					Leverage:       hyperliquid.Leverage{Type: "isolated", Value: 5},
					ReturnOnEquity: -0.0826,
				},
			},
			{
				Type: "oneWay",
				Position: hyperliquid.Position{
					Coin:          "ETH",
					Szi:           2,
					EntryPx:       3000,
					PositionValue: 6100,
					UnrealizedPnl: 100,
					MarginUsed:    610,
					Leverage:      hyperliquid.Leverage{Type: "cross", Value: 20},
				},
			},
			{
				// Closed position: must never appear in the snapshot
				Type: "oneWay",
				Position: hyperliquid.Position{
					Coin:          "SOL",
					Szi:           0,
					UnrealizedPnl: 999,
				},
			},
		},
	}
}

// ============================================================================
// Test: position derivation
// ============================================================================

func TestNormalize_Positions(t *testing.T) {
	s := account.Normalize(&account.Bundle{UserState: userStateFixture()}, testNow)

	if len(s.Positions) != 2 {
		t.Fatalf("got %d positions, want 2 (zero-size excluded)", len(s.Positions))
	}

	btc := s.Positions[0]
	if btc.Coin != "BTC" {
		t.Fatalf("first position = %q, want BTC", btc.Coin)
	}
	if btc.Side != account.SideShort {
		t.Errorf("side = %q, want short", btc.Side)
	}
	if btc.Size != 10 {
		t.Errorf("size = %v, want 10 (absolute)", btc.Size)
	}
	if btc.MarkPrice != 15 {
		t.Errorf("mark price = %v, want 15 (|150 / -10|)", btc.MarkPrice)
	}
	if btc.Leverage != "5x" {
		t.Errorf("leverage = %q, want 5x", btc.Leverage)
	}
	// Fraction-to-percentage conversion multiplies at runtime, so compare
	// within a tolerance rather than against the decimal literal.
	if got := btc.ReturnOnEquity; math.Abs(got-(-8.26)) > 1e-9 {
		t.Errorf("return on equity = %v, want -8.26", got)
	}
	if btc.LiquidationPrice == nil || *btc.LiquidationPrice != 25 {
		t.Errorf("liquidation price = %v, want 25", btc.LiquidationPrice)
	}

	eth := s.Positions[1]
	if eth.Side != account.SideLong {
		t.Errorf("side = %q, want long", eth.Side)
	}
	if eth.Leverage != "cross" {
		t.Errorf("leverage = %q, want cross", eth.Leverage)
	}
	if eth.LiquidationPrice != nil {
		t.Errorf("liquidation price = %v, want nil", eth.LiquidationPrice)
	}

	// Account total equals the sum over open positions
	want := btc.UnrealizedPnL + eth.UnrealizedPnL
	if s.UnrealizedPnL != want {
		t.Errorf("unrealized pnl = %v, want %v", s.UnrealizedPnL, want)
	}

	if s.AccountValue != 10000 || s.MarginUsed != 2500 || s.Withdrawable != 7500 {
		t.Errorf("scalars = %v/%v/%v, want 10000/2500/7500",
			s.AccountValue, s.MarginUsed, s.Withdrawable)
	}
}

// ============================================================================
// Test: vault derivation
// ============================================================================

func TestNormalize_Vaults(t *testing.T) {
	b := &account.Bundle{
		UserState: userStateFixture(),
		Vaults: []account.Vault{
			{
				Equity: hyperliquid.VaultEquity{
					VaultAddress: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
					Equity:       1000,
					Pnl:          120,
					Roi:          0.12,
				},
				Details: &hyperliquid.VaultDetails{
					Name:             "Alpha Vault",
					APR:              0.35,
					Leader:           "0xleader",
					LeaderFraction:   0.12,
					LeaderCommission: 0.1,
					MaxDistributable: 500000,
				},
			},
			{
				// Detail fetch failed for this vault: fallback enrichment only
				Equity: hyperliquid.VaultEquity{
					VaultAddress: "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
					Equity:       250,
					Roi:          12.0,
					DepositValue: fp(200),
				},
			},
		},
	}

	s := account.Normalize(b, testNow)

	if len(s.Vaults) != 2 {
		t.Fatalf("got %d vaults, want 2", len(s.Vaults))
	}

	alpha := s.Vaults[0]
	if alpha.VaultName != "Alpha Vault" {
		t.Errorf("vault name = %q, want Alpha Vault", alpha.VaultName)
	}
	if alpha.ROI != 12 {
		t.Errorf("roi = %v, want 12 (0.12 treated as fraction)", alpha.ROI)
	}
	if alpha.DepositValue != 1000 {
		t.Errorf("deposit value = %v, want 1000 (fallback to equity)", alpha.DepositValue)
	}
	if alpha.LeaderFraction != 12 {
		t.Errorf("leader fraction = %v, want 12", alpha.LeaderFraction)
	}
	if alpha.LeaderCommission != 10 {
		t.Errorf("leader commission = %v, want 10", alpha.LeaderCommission)
	}
	if alpha.LeaderEquity != 60000 {
		t.Errorf("leader equity = %v, want 60000 (500000 * 12%%)", alpha.LeaderEquity)
	}
	if alpha.VaultTotalValue != 500000 {
		t.Errorf("vault total value = %v, want 500000", alpha.VaultTotalValue)
	}

	bare := s.Vaults[1]
	if bare.VaultName != "0xbbbbbbbb..." {
		t.Errorf("vault name = %q, want address prefix fallback", bare.VaultName)
	}
	if bare.ROI != 12 {
		t.Errorf("roi = %v, want 12 (12.0 already a percentage)", bare.ROI)
	}
	if bare.DepositValue != 200 {
		t.Errorf("deposit value = %v, want 200", bare.DepositValue)
	}
	if bare.LeaderEquity != 0 {
		t.Errorf("leader equity = %v, want 0 without details", bare.LeaderEquity)
	}

	if s.TotalVaultEquity != 1250 {
		t.Errorf("total vault equity = %v, want 1250", s.TotalVaultEquity)
	}
}

func TestNormalize_VaultROINegativeFraction(t *testing.T) {
	b := &account.Bundle{
		UserState: userStateFixture(),
		Vaults: []account.Vault{
			{Equity: hyperliquid.VaultEquity{VaultAddress: "0xcccccccccccccccccccccccccccccccccccccccc", Roi: -0.5}},
		},
	}

	s := account.Normalize(b, testNow)
	if s.Vaults[0].ROI != -50 {
		t.Errorf("roi = %v, want -50", s.Vaults[0].ROI)
	}
}

// ============================================================================
// Test: windowed P&L
// ============================================================================

func historyBundle(points []hyperliquid.AccountValuePoint) *account.Bundle {
	return &account.Bundle{
		UserState: userStateFixture(), // account value 10000
		Portfolio: &hyperliquid.Portfolio{
			AllTime: hyperliquid.PortfolioWindow{AccountValueHistory: points},
		},
	}
}

func TestNormalize_WindowedPnLScanOrder(t *testing.T) {
	// Two entries inside every window. The windowed figures must take the
	// FIRST entry in scan order, so reversing the input changes them.
	chronological := []hyperliquid.AccountValuePoint{
		{Time: msAgo(45 * 24 * time.Hour), AccountValue: 5000},
		{Time: msAgo(20 * 24 * time.Hour), AccountValue: 8000},
		{Time: msAgo(2 * time.Hour), AccountValue: 9500},
		{Time: msAgo(1 * time.Hour), AccountValue: 9900},
	}

	s := account.Normalize(historyBundle(chronological), testNow)
	if s.PnL24h != 500 {
		t.Errorf("pnl 24h = %v, want 500 (first qualifying entry is 9500)", s.PnL24h)
	}
	if s.PnL7d != 500 {
		t.Errorf("pnl 7d = %v, want 500", s.PnL7d)
	}
	if s.PnL30d != 2000 {
		t.Errorf("pnl 30d = %v, want 2000 (first qualifying entry is 8000)", s.PnL30d)
	}
	if s.PnLAllTime != 5000 {
		t.Errorf("pnl all time = %v, want 5000", s.PnLAllTime)
	}

	reversed := []hyperliquid.AccountValuePoint{
		chronological[3], chronological[2], chronological[1], chronological[0],
	}
	r := account.Normalize(historyBundle(reversed), testNow)
	if r.PnL24h != 100 {
		t.Errorf("pnl 24h (reversed) = %v, want 100 (first qualifying entry is 9900)", r.PnL24h)
	}
	if r.PnL30d != 100 {
		t.Errorf("pnl 30d (reversed) = %v, want 100", r.PnL30d)
	}

	// All-time selection tracks the minimum timestamp and must not move
	if r.PnLAllTime != s.PnLAllTime {
		t.Errorf("pnl all time changed with scan order: %v vs %v", r.PnLAllTime, s.PnLAllTime)
	}
}

func TestNormalize_WindowedPnLZeroCutoffValue(t *testing.T) {
	// A cutoff value of exactly 0 yields 0 P&L for that window
	points := []hyperliquid.AccountValuePoint{
		{Time: msAgo(2 * time.Hour), AccountValue: 0},
	}

	s := account.Normalize(historyBundle(points), testNow)
	if s.PnL24h != 0 {
		t.Errorf("pnl 24h = %v, want 0 for zero cutoff value", s.PnL24h)
	}
	// All-time has no zero guard
	if s.PnLAllTime != 10000 {
		t.Errorf("pnl all time = %v, want 10000", s.PnLAllTime)
	}
}

func TestNormalize_EmptyHistory(t *testing.T) {
	s := account.Normalize(&account.Bundle{UserState: userStateFixture()}, testNow)
	if s.PnL24h != 0 || s.PnL7d != 0 || s.PnL30d != 0 || s.PnLAllTime != 0 {
		t.Errorf("pnl values = %v/%v/%v/%v, want all 0",
			s.PnL24h, s.PnL7d, s.PnL30d, s.PnLAllTime)
	}
}

// ============================================================================
// Test: fill aggregation
// ============================================================================

func TestNormalize_FillAggregation(t *testing.T) {
	b := &account.Bundle{
		UserState: userStateFixture(),
		Fills: []hyperliquid.Fill{
			{Coin: "BTC", Time: msAgo(1 * time.Hour), ClosedPnl: 5, Fee: 1, Px: 60000, Sz: 0.1, Side: "A"},
			{Coin: "ETH", Time: msAgo(25 * time.Hour), ClosedPnl: 7, Fee: 2, Px: 3000, Sz: 1, Side: "B"},
			{Coin: "SOL", Time: msAgo(8 * 24 * time.Hour), ClosedPnl: 3, Fee: 3, Px: 150, Sz: 10, Side: "B"},
			{Coin: "DOGE", Time: msAgo(40 * 24 * time.Hour), ClosedPnl: 100, Fee: 9, Px: 0.1, Sz: 100, Side: "A"},
		},
		TradeHistoryCount: 3,
	}

	s := account.Normalize(b, testNow)

	if s.Trades24h != 1 {
		t.Errorf("trades 24h = %d, want 1", s.Trades24h)
	}
	if s.RealizedPnL24h != 5 {
		t.Errorf("realized 24h = %v, want 5", s.RealizedPnL24h)
	}
	if s.RealizedPnL7d != 12 {
		t.Errorf("realized 7d = %v, want 12", s.RealizedPnL7d)
	}
	if s.RealizedPnL30d != 15 {
		t.Errorf("realized 30d = %v, want 15", s.RealizedPnL30d)
	}
	if s.FeesPaid24h != 1 {
		t.Errorf("fees 24h = %v, want 1", s.FeesPaid24h)
	}
	if s.FeesPaid30d != 6 {
		t.Errorf("fees 30d = %v, want 6", s.FeesPaid30d)
	}

	// Recent trades: newest first, truncated to the display count
	if len(s.RecentTrades) != 3 {
		t.Fatalf("got %d recent trades, want 3", len(s.RecentTrades))
	}
	if s.RecentTrades[0].Coin != "BTC" || s.RecentTrades[1].Coin != "ETH" || s.RecentTrades[2].Coin != "SOL" {
		t.Errorf("recent trades order = %s/%s/%s, want BTC/ETH/SOL",
			s.RecentTrades[0].Coin, s.RecentTrades[1].Coin, s.RecentTrades[2].Coin)
	}
}

// ============================================================================
// Test: funding aggregation
// ============================================================================

func TestNormalize_FundingWindows(t *testing.T) {
	b := &account.Bundle{
		UserState: userStateFixture(),
		Funding: []hyperliquid.FundingEvent{
			{Coin: "BTC", Time: msAgo(1 * time.Hour), Usdc: 5, FundingRate: 0.0001},
			{Coin: "BTC", Time: msAgo(25 * time.Hour), Usdc: 7, FundingRate: 0.0002},
			{Coin: "ETH", Time: msAgo(8 * 24 * time.Hour), Usdc: 3, FundingRate: 0.0003},
		},
	}

	s := account.Normalize(b, testNow)

	if s.Funding24h != 5 {
		t.Errorf("funding 24h = %v, want 5", s.Funding24h)
	}
	if s.Funding7d != 12 {
		t.Errorf("funding 7d = %v, want 12", s.Funding7d)
	}
	if s.Funding30d != 15 {
		t.Errorf("funding 30d = %v, want 15", s.Funding30d)
	}

	btc := s.FundingByCoin["BTC"]
	if btc.Funding24h != 5 {
		t.Errorf("BTC funding 24h = %v, want 5", btc.Funding24h)
	}
	if btc.Count != 1 {
		t.Errorf("BTC count = %d, want 1 (only the 24h event counts)", btc.Count)
	}
}

func TestNormalize_FundingRateLastWriteWins(t *testing.T) {
	// Rate must come from the latest event timestamp, not input order
	b := &account.Bundle{
		UserState: userStateFixture(),
		Funding: []hyperliquid.FundingEvent{
			{Coin: "BTC", Time: msAgo(1 * time.Hour), Usdc: 1, FundingRate: 0.0009},
			{Coin: "BTC", Time: msAgo(10 * time.Hour), Usdc: 1, FundingRate: 0.0001},
		},
	}

	s := account.Normalize(b, testNow)
	if got := s.FundingByCoin["BTC"].FundingRate; got != 0.0009 {
		t.Errorf("funding rate = %v, want 0.0009 from the newest event", got)
	}

	// Same events, shuffled
	b.Funding[0], b.Funding[1] = b.Funding[1], b.Funding[0]
	s = account.Normalize(b, testNow)
	if got := s.FundingByCoin["BTC"].FundingRate; got != 0.0009 {
		t.Errorf("funding rate (shuffled) = %v, want 0.0009", got)
	}
}

// ============================================================================
// Test: open orders
// ============================================================================

func TestNormalize_OpenOrders(t *testing.T) {
	b := &account.Bundle{
		UserState: userStateFixture(),
		OpenOrders: []hyperliquid.OpenOrder{
			{Coin: "BTC", Side: "B", LimitPx: 50000, Sz: 0.5, Oid: 101, OrderType: "limit"},
			{Coin: "ETH", Side: "A", LimitPx: 4000, Sz: 2, Oid: 102, TriggerPx: fp(3900), ReduceOnly: true},
		},
	}

	s := account.Normalize(b, testNow)

	if s.OpenOrdersCount != 2 {
		t.Fatalf("open orders count = %d, want 2", s.OpenOrdersCount)
	}

	first := s.OpenOrders[0]
	if first.Filled != 0 {
		t.Errorf("filled = %v, want 0 (not reported upstream)", first.Filled)
	}
	if first.Remaining != 0.5 {
		t.Errorf("remaining = %v, want size 0.5", first.Remaining)
	}
	if first.Value() != 25000 {
		t.Errorf("order value = %v, want 25000", first.Value())
	}

	second := s.OpenOrders[1]
	if second.OrderType != "limit" {
		t.Errorf("order type = %q, want default limit", second.OrderType)
	}
	if second.TriggerPrice == nil || *second.TriggerPrice != 3900 {
		t.Errorf("trigger price = %v, want 3900", second.TriggerPrice)
	}
	if !second.ReduceOnly {
		t.Error("reduce only should be true")
	}
}

// ============================================================================
// Test: referral, degraded sections, idempotence
// ============================================================================

func TestNormalize_Referral(t *testing.T) {
	b := &account.Bundle{
		UserState: userStateFixture(),
		Referral: &hyperliquid.Referral{
			TotalReferralUsdc:   42.5,
			TotalReferralVolume: 1_000_000,
			Referrer:            "0xref",
			Referees:            []hyperliquid.Referee{{User: "0xone"}, {User: "0xtwo"}},
		},
	}

	s := account.Normalize(b, testNow)
	if s.ReferralEarnings != 42.5 {
		t.Errorf("referral earnings = %v, want 42.5", s.ReferralEarnings)
	}
	if s.ReferralVolume != 1_000_000 {
		t.Errorf("referral volume = %v, want 1000000", s.ReferralVolume)
	}
	if s.Referral.RefereeCount != 2 {
		t.Errorf("referee count = %d, want 2", s.Referral.RefereeCount)
	}
}

func TestNormalize_DegradedSections(t *testing.T) {
	// Only the mandatory state present: every optional figure stays at its
	// empty default while the mandatory scalars are populated.
	s := account.Normalize(&account.Bundle{UserState: userStateFixture()}, testNow)

	if s.AccountValue != 10000 {
		t.Errorf("account value = %v, want 10000", s.AccountValue)
	}
	if s.Funding24h != 0 || s.Funding7d != 0 || s.Funding30d != 0 {
		t.Errorf("funding = %v/%v/%v, want all 0", s.Funding24h, s.Funding7d, s.Funding30d)
	}
	if len(s.FundingByCoin) != 0 {
		t.Errorf("funding by coin = %v, want empty", s.FundingByCoin)
	}
	if s.OpenOrdersCount != 0 || len(s.RecentTrades) != 0 {
		t.Errorf("orders/trades = %d/%d, want 0/0", s.OpenOrdersCount, len(s.RecentTrades))
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	b := &account.Bundle{
		UserState: userStateFixture(),
		Vaults: []account.Vault{
			{Equity: hyperliquid.VaultEquity{VaultAddress: "0xdddddddddddddddddddddddddddddddddddddddd", Equity: 100, Roi: 0.1}},
		},
		Portfolio: &hyperliquid.Portfolio{
			AllTime: hyperliquid.PortfolioWindow{
				AccountValueHistory: []hyperliquid.AccountValuePoint{
					{Time: msAgo(3 * time.Hour), AccountValue: 9000},
				},
			},
		},
		Fills: []hyperliquid.Fill{
			{Coin: "BTC", Time: msAgo(2 * time.Hour), ClosedPnl: 1, Fee: 0.5},
		},
		Funding: []hyperliquid.FundingEvent{
			{Coin: "BTC", Time: msAgo(4 * time.Hour), Usdc: 2, FundingRate: 0.0001},
		},
		OpenOrders: []hyperliquid.OpenOrder{
			{Coin: "BTC", Side: "B", LimitPx: 100, Sz: 1, Oid: 7},
		},
		Referral:          &hyperliquid.Referral{TotalReferralUsdc: 1},
		TradeHistoryCount: 20,
	}

	first := account.Normalize(b, testNow)
	second := account.Normalize(b, testNow)

	if !reflect.DeepEqual(first, second) {
		t.Error("normalizing the same bundle twice produced different states")
	}
}

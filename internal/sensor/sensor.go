// Package sensor defines the account metric table: one descriptor per
// scalar metric, pairing a stable key with a pure extractor over the
// account snapshot. Consumers (Prometheus export, the HTTP projection)
// iterate the table instead of dispatching on metric kind at runtime.
package sensor

import (
	"strconv"

	"hyperwatch/internal/account"
	"hyperwatch/internal/observability"
)

const unitUSD = "USD"

// Descriptor describes one scalar account metric.
type Descriptor struct {
	Key       string
	Name      string
	Unit      string // empty for plain counts
	Precision int    // suggested display precision
	Value     func(*account.State) float64
}

// Account is the full scalar metric table, in display order.
var Account = []Descriptor{
	{Key: "account_value", Name: "Account Value", Unit: unitUSD, Precision: 2,
		Value: func(s *account.State) float64 { return s.AccountValue }},
	{Key: "unrealized_pnl", Name: "Unrealized PnL", Unit: unitUSD, Precision: 2,
		Value: func(s *account.State) float64 { return s.UnrealizedPnL }},
	{Key: "margin_used", Name: "Margin Used", Unit: unitUSD, Precision: 2,
		Value: func(s *account.State) float64 { return s.MarginUsed }},
	{Key: "withdrawable", Name: "Withdrawable", Unit: unitUSD, Precision: 2,
		Value: func(s *account.State) float64 { return s.Withdrawable }},
	{Key: "total_vault_equity", Name: "Total Vault Equity", Unit: unitUSD, Precision: 2,
		Value: func(s *account.State) float64 { return s.TotalVaultEquity }},
	{Key: "pnl_24h", Name: "PnL 24h", Unit: unitUSD, Precision: 2,
		Value: func(s *account.State) float64 { return s.PnL24h }},
	{Key: "pnl_7d", Name: "PnL 7d", Unit: unitUSD, Precision: 2,
		Value: func(s *account.State) float64 { return s.PnL7d }},
	{Key: "pnl_30d", Name: "PnL 30d", Unit: unitUSD, Precision: 2,
		Value: func(s *account.State) float64 { return s.PnL30d }},
	{Key: "pnl_all_time", Name: "PnL All Time", Unit: unitUSD, Precision: 2,
		Value: func(s *account.State) float64 { return s.PnLAllTime }},
	{Key: "realized_pnl_24h", Name: "Realized PnL 24h", Unit: unitUSD, Precision: 2,
		Value: func(s *account.State) float64 { return s.RealizedPnL24h }},
	{Key: "realized_pnl_7d", Name: "Realized PnL 7d", Unit: unitUSD, Precision: 2,
		Value: func(s *account.State) float64 { return s.RealizedPnL7d }},
	{Key: "realized_pnl_30d", Name: "Realized PnL 30d", Unit: unitUSD, Precision: 2,
		Value: func(s *account.State) float64 { return s.RealizedPnL30d }},
	{Key: "trades_24h", Name: "Trades 24h",
		Value: func(s *account.State) float64 { return float64(s.Trades24h) }},
	{Key: "fees_paid_24h", Name: "Fees Paid 24h", Unit: unitUSD, Precision: 2,
		Value: func(s *account.State) float64 { return s.FeesPaid24h }},
	{Key: "fees_paid_30d", Name: "Fees Paid 30d", Unit: unitUSD, Precision: 2,
		Value: func(s *account.State) float64 { return s.FeesPaid30d }},
	{Key: "funding_24h", Name: "Funding 24h", Unit: unitUSD, Precision: 2,
		Value: func(s *account.State) float64 { return s.Funding24h }},
	{Key: "funding_7d", Name: "Funding 7d", Unit: unitUSD, Precision: 2,
		Value: func(s *account.State) float64 { return s.Funding7d }},
	{Key: "funding_30d", Name: "Funding 30d", Unit: unitUSD, Precision: 2,
		Value: func(s *account.State) float64 { return s.Funding30d }},
	{Key: "open_orders_count", Name: "Open Orders Count",
		Value: func(s *account.State) float64 { return float64(s.OpenOrdersCount) }},
	{Key: "referral_earnings", Name: "Referral Earnings", Unit: unitUSD, Precision: 2,
		Value: func(s *account.State) float64 { return s.ReferralEarnings }},
	{Key: "referral_volume", Name: "Referral Volume", Unit: unitUSD, Precision: 0,
		Value: func(s *account.State) float64 { return s.ReferralVolume }},
}

// Lookup returns the descriptor for a metric key.
func Lookup(key string) (Descriptor, bool) {
	for _, d := range Account {
		if d.Key == key {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Export publishes a snapshot to the Prometheus gauges: every scalar from
// the table plus the labeled per-entity gauges. Entity gauge vectors are
// reset first so entities removed since the previous snapshot disappear.
func Export(m *observability.Metrics, s *account.State) {
	for _, d := range Account {
		m.AccountMetric.WithLabelValues(d.Key).Set(d.Value(s))
	}

	m.PositionUnrealizedPnl.Reset()
	m.PositionValue.Reset()
	for _, p := range s.Positions {
		m.PositionUnrealizedPnl.WithLabelValues(p.Coin).Set(p.UnrealizedPnL)
		m.PositionValue.WithLabelValues(p.Coin).Set(p.PositionValue)
	}

	m.VaultEquity.Reset()
	for _, v := range s.Vaults {
		m.VaultEquity.WithLabelValues(v.VaultAddress).Set(v.Equity)
	}

	m.OrderValue.Reset()
	for _, o := range s.OpenOrders {
		m.OrderValue.WithLabelValues(o.Coin, strconv.FormatInt(o.OrderID, 10)).Set(o.Value())
	}
}

package account

import (
	"hyperwatch/internal/hyperliquid"
)

// Vault pairs a raw vault-equity entry with its detail enrichment.
// Details is nil when the per-vault detail fetch failed; the normalizer
// falls back to defaults for that vault only.
type Vault struct {
	Equity  hyperliquid.VaultEquity
	Details *hyperliquid.VaultDetails
}

// Bundle is the raw payload set gathered by one fetch cycle. UserState is
// always present; every other section may be empty when its optional
// fetch failed.
type Bundle struct {
	UserState  *hyperliquid.UserState
	Vaults     []Vault
	Portfolio  *hyperliquid.Portfolio
	Fills      []hyperliquid.Fill
	Funding    []hyperliquid.FundingEvent
	OpenOrders []hyperliquid.OpenOrder
	Referral   *hyperliquid.Referral

	// Resolved display bound for the recent-trades projection
	TradeHistoryCount int
}

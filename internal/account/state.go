package account

import (
	"time"
)

// Side of a derivatives position, derived from the sign of the raw size.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Position is one open derivatives exposure. Identity within a State is
// the coin symbol; zero-size positions never appear.
type Position struct {
	Coin             string   `json:"coin"`
	Size             float64  `json:"size"` // absolute value
	Side             Side     `json:"side"`
	EntryPrice       float64  `json:"entry_price"`
	MarkPrice        float64  `json:"mark_price"`
	LiquidationPrice *float64 `json:"liquidation_price"`
	Leverage         string   `json:"leverage"` // "cross" or "{value}x"
	UnrealizedPnL    float64  `json:"unrealized_pnl"`
	MarginUsed       float64  `json:"margin_used"`
	ReturnOnEquity   float64  `json:"return_on_equity"` // percentage
	PositionValue    float64  `json:"position_value"`
}

// VaultDeposit is a stake in a managed trading vault. Identity is the
// vault address.
type VaultDeposit struct {
	VaultAddress     string  `json:"vault_address"`
	VaultName        string  `json:"vault_name"`
	Equity           float64 `json:"equity"`
	PnL              float64 `json:"pnl"`
	ROI              float64 `json:"roi"` // percentage
	DepositValue     float64 `json:"deposit_value"`
	APR              float64 `json:"apr"`
	LeaderAddress    string  `json:"leader_address"`
	LeaderFraction   float64 `json:"leader_fraction"`   // percentage
	LeaderEquity     float64 `json:"leader_equity"`
	LeaderCommission float64 `json:"leader_commission"` // percentage
	VaultTotalValue  float64 `json:"vault_total_value"`
	IsClosed         bool    `json:"is_closed"`
}

// OpenOrder is one resting order. Identity is the order id.
// Filled is always 0: the upstream API does not report partial fills,
// so Remaining mirrors Size.
type OpenOrder struct {
	Coin         string   `json:"coin"`
	Side         string   `json:"side"`
	Price        float64  `json:"price"`
	Size         float64  `json:"size"`
	OrderID      int64    `json:"order_id"`
	OrderType    string   `json:"order_type"`
	TriggerPrice *float64 `json:"trigger_price"`
	ReduceOnly   bool     `json:"reduce_only"`
	Filled       float64  `json:"filled"`
	Remaining    float64  `json:"remaining"`
}

// Value returns the order's notional value (price * size).
func (o OpenOrder) Value() float64 {
	return o.Price * o.Size
}

// Trade is one recent fill, kept for display only.
type Trade struct {
	Coin      string  `json:"coin"`
	Side      string  `json:"side"`
	Size      float64 `json:"size"`
	Price     float64 `json:"price"`
	ClosedPnL float64 `json:"closed_pnl"`
	Fee       float64 `json:"fee"`
	Timestamp int64   `json:"timestamp"`
}

// CoinFunding is the per-coin funding breakdown. FundingRate is the rate
// from the most recent funding event seen for the coin.
type CoinFunding struct {
	Funding24h  float64 `json:"funding_24h"`
	FundingRate float64 `json:"funding_rate"`
	Count       int     `json:"count"`
}

// EstimatedDailyFunding projects one day of funding for a position at the
// current rate. Funding settles hourly, so 24 payments per day.
func (f CoinFunding) EstimatedDailyFunding(positionValue float64) float64 {
	return f.FundingRate * positionValue * 24
}

// ValuePoint is one sample of the account-value history series.
type ValuePoint struct {
	Time         int64   `json:"time"` // ms epoch
	AccountValue float64 `json:"account_value"`
}

// ReferralSummary describes the wallet's referral-program standing.
type ReferralSummary struct {
	Referrer     string `json:"referrer"`
	RefereeCount int    `json:"referee_count"`
}

// State is the normalized account snapshot produced by one refresh cycle.
// It is immutable once constructed; a new State fully replaces the
// previous one.
type State struct {
	RefreshedAt time.Time `json:"refreshed_at"`

	AccountValue     float64 `json:"account_value"`
	UnrealizedPnL    float64 `json:"unrealized_pnl"`
	MarginUsed       float64 `json:"margin_used"`
	Withdrawable     float64 `json:"withdrawable"`
	TotalVaultEquity float64 `json:"total_vault_equity"`

	PnL24h     float64 `json:"pnl_24h"`
	PnL7d      float64 `json:"pnl_7d"`
	PnL30d     float64 `json:"pnl_30d"`
	PnLAllTime float64 `json:"pnl_all_time"`

	RealizedPnL24h float64 `json:"realized_pnl_24h"`
	RealizedPnL7d  float64 `json:"realized_pnl_7d"`
	RealizedPnL30d float64 `json:"realized_pnl_30d"`
	Trades24h      int     `json:"trades_24h"`
	FeesPaid24h    float64 `json:"fees_paid_24h"`
	FeesPaid30d    float64 `json:"fees_paid_30d"`

	Funding24h float64 `json:"funding_24h"`
	Funding7d  float64 `json:"funding_7d"`
	Funding30d float64 `json:"funding_30d"`

	OpenOrdersCount  int     `json:"open_orders_count"`
	ReferralEarnings float64 `json:"referral_earnings"`
	ReferralVolume   float64 `json:"referral_volume"`

	Positions           []Position             `json:"positions"`
	Vaults              []VaultDeposit         `json:"vaults"`
	OpenOrders          []OpenOrder            `json:"open_orders"`
	RecentTrades        []Trade                `json:"recent_trades"`
	FundingByCoin       map[string]CoinFunding `json:"funding_by_coin"`
	AccountValueHistory []ValuePoint           `json:"account_value_history"`
	Referral            ReferralSummary        `json:"referral"`
}

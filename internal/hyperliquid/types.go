package hyperliquid

import (
	"bytes"
	"strconv"
)

// Float decodes Hyperliquid numeric fields, which arrive as JSON strings
// ("1234.5") on most endpoints and as plain numbers on a few. Missing,
// null, or empty values decode to 0.
type Float float64

func (f *Float) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		s, err := strconv.Unquote(string(data))
		if err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*f = Float(v)
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// Leverage is the per-position leverage descriptor.
type Leverage struct {
	Type  string `json:"type"` // "cross" or "isolated"
	Value Float  `json:"value"`
}

// Position is one raw open position inside a clearinghouse state.
// Szi is the signed size: positive long, negative short.
type Position struct {
	Coin           string   `json:"coin"`
	Szi            Float    `json:"szi"`
	EntryPx        Float    `json:"entryPx"`
	PositionValue  Float    `json:"positionValue"`
	UnrealizedPnl  Float    `json:"unrealizedPnl"`
	MarginUsed     Float    `json:"marginUsed"`
	LiquidationPx  *Float   `json:"liquidationPx"`
	Leverage       Leverage `json:"leverage"`
	ReturnOnEquity Float    `json:"returnOnEquity"`
}

// AssetPosition wraps a Position with its margin mode tag.
type AssetPosition struct {
	Type     string   `json:"type"`
	Position Position `json:"position"`
}

// MarginSummary carries the account-level balance figures.
type MarginSummary struct {
	AccountValue    Float `json:"accountValue"`
	TotalMarginUsed Float `json:"totalMarginUsed"`
	TotalNtlPos     Float `json:"totalNtlPos"`
	TotalRawUsd     Float `json:"totalRawUsd"`
	Withdrawable    Float `json:"withdrawable"`
}

// UserState is the clearinghouse state for one wallet: balances plus the
// full set of open positions.
type UserState struct {
	MarginSummary      MarginSummary   `json:"marginSummary"`
	CrossMarginSummary MarginSummary   `json:"crossMarginSummary"`
	AssetPositions     []AssetPosition `json:"assetPositions"`
	Time               int64           `json:"time"`
}

// VaultEquity is one entry of the userVaultEquities response.
type VaultEquity struct {
	VaultAddress         string `json:"vaultAddress"`
	Equity               Float  `json:"equity"`
	Pnl                  Float  `json:"pnl"`
	Roi                  Float  `json:"roi"`
	DepositValue         *Float `json:"depositValue"`
	LockedUntilTimestamp int64  `json:"lockedUntilTimestamp"`
}

// VaultDetails is the per-vault enrichment payload.
type VaultDetails struct {
	Name             string `json:"name"`
	APR              Float  `json:"apr"`
	Leader           string `json:"leader"`
	LeaderFraction   Float  `json:"leaderFraction"`
	LeaderCommission Float  `json:"leaderCommission"`
	MaxDistributable Float  `json:"maxDistributable"`
	IsClosed         bool   `json:"isClosed"`
}

// AccountValuePoint is one sample of the portfolio account-value series.
type AccountValuePoint struct {
	Time         int64 `json:"time"`
	AccountValue Float `json:"accountValue"`
}

// PortfolioWindow is one timeframe bucket of the portfolio response.
type PortfolioWindow struct {
	AccountValueHistory []AccountValuePoint `json:"accountValueHistory"`
}

// Portfolio is the portfolio history response. Only the all-time series
// is consumed; the windowed P&L figures are derived from it.
type Portfolio struct {
	AllTime PortfolioWindow `json:"allTime"`
}

// Fill is one trade fill from userFillsByTime.
type Fill struct {
	Coin      string `json:"coin"`
	Px        Float  `json:"px"`
	Sz        Float  `json:"sz"`
	Side      string `json:"side"`
	Time      int64  `json:"time"`
	ClosedPnl Float  `json:"closedPnl"`
	Fee       Float  `json:"fee"`
	Oid       int64  `json:"oid"`
	Tid       int64  `json:"tid"`
	Dir       string `json:"dir"`
	Hash      string `json:"hash"`
	Crossed   bool   `json:"crossed"`
}

// FundingEvent is one funding payment from userFunding.
type FundingEvent struct {
	Time        int64  `json:"time"`
	Coin        string `json:"coin"`
	Usdc        Float  `json:"usdc"`
	FundingRate Float  `json:"fundingRate"`
}

// OpenOrder is one resting order from openOrders.
type OpenOrder struct {
	Coin       string `json:"coin"`
	Side       string `json:"side"`
	LimitPx    Float  `json:"limitPx"`
	Sz         Float  `json:"sz"`
	Oid        int64  `json:"oid"`
	OrderType  string `json:"orderType"`
	TriggerPx  *Float `json:"triggerPx"`
	ReduceOnly bool   `json:"reduceOnly"`
	Timestamp  int64  `json:"timestamp"`
}

// Referral is the referral-program summary for one wallet.
type Referral struct {
	TotalReferralUsdc   Float    `json:"totalReferralUsdc"`
	TotalReferralVolume Float    `json:"totalReferralVolume"`
	Referrer            string   `json:"referrer"`
	Referees            []Referee `json:"referees"`
}

// Referee is one referred account inside a Referral summary.
type Referee struct {
	User   string `json:"user"`
	Volume Float  `json:"volume"`
}

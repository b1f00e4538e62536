package account

import (
	"math"
	"sort"
	"strconv"
	"time"

	"hyperwatch/internal/hyperliquid"
)

// Normalize converts a raw fetch bundle into an immutable State. It is a
// pure function: now is injected so every window cutoff is reproducible.
func Normalize(b *Bundle, now time.Time) *State {
	s := &State{
		RefreshedAt:   now,
		FundingByCoin: map[string]CoinFunding{},
	}

	if b.UserState != nil {
		s.AccountValue = float64(b.UserState.MarginSummary.AccountValue)
		s.MarginUsed = float64(b.UserState.MarginSummary.TotalMarginUsed)
		s.Withdrawable = float64(b.UserState.MarginSummary.Withdrawable)
		s.Positions, s.UnrealizedPnL = normalizePositions(b.UserState.AssetPositions)
	}

	s.Vaults, s.TotalVaultEquity = normalizeVaults(b.Vaults)

	if b.Portfolio != nil {
		s.AccountValueHistory = valueHistory(b.Portfolio.AllTime.AccountValueHistory)
	}
	s.PnL24h, s.PnL7d, s.PnL30d, s.PnLAllTime = windowedPnL(s.AccountValueHistory, s.AccountValue, now)

	aggregateFills(s, b.Fills, b.TradeHistoryCount, now)
	aggregateFunding(s, b.Funding, now)

	s.OpenOrders = normalizeOrders(b.OpenOrders)
	s.OpenOrdersCount = len(s.OpenOrders)

	if b.Referral != nil {
		s.ReferralEarnings = float64(b.Referral.TotalReferralUsdc)
		s.ReferralVolume = float64(b.Referral.TotalReferralVolume)
		s.Referral = ReferralSummary{
			Referrer:     b.Referral.Referrer,
			RefereeCount: len(b.Referral.Referees),
		}
	}

	return s
}

func normalizePositions(raw []hyperliquid.AssetPosition) ([]Position, float64) {
	var positions []Position
	var totalUnrealized float64

	for _, ap := range raw {
		p := ap.Position

		// Closed positions stay in the upstream response with size 0
		size := float64(p.Szi)
		if size == 0 {
			continue
		}

		side := SideLong
		if size < 0 {
			side = SideShort
		}

		positionValue := float64(p.PositionValue)
		markPrice := 0.0
		if size != 0 {
			markPrice = math.Abs(positionValue / size)
		}

		var liquidation *float64
		if p.LiquidationPx != nil {
			v := float64(*p.LiquidationPx)
			liquidation = &v
		}

		unrealized := float64(p.UnrealizedPnl)
		positions = append(positions, Position{
			Coin:             p.Coin,
			Size:             math.Abs(size),
			Side:             side,
			EntryPrice:       float64(p.EntryPx),
			MarkPrice:        markPrice,
			LiquidationPrice: liquidation,
			Leverage:         leverageString(p.Leverage),
			UnrealizedPnL:    unrealized,
			MarginUsed:       float64(p.MarginUsed),
			ReturnOnEquity:   float64(p.ReturnOnEquity) * 100,
			PositionValue:    positionValue,
		})

		totalUnrealized += unrealized
	}

	return positions, totalUnrealized
}

func leverageString(l hyperliquid.Leverage) string {
	if l.Type == "cross" {
		return "cross"
	}
	return strconv.FormatFloat(float64(l.Value), 'f', -1, 64) + "x"
}

func normalizeVaults(raw []Vault) ([]VaultDeposit, float64) {
	var vaults []VaultDeposit
	var totalEquity float64

	for _, v := range raw {
		equity := float64(v.Equity.Equity)

		depositValue := equity
		if v.Equity.DepositValue != nil {
			depositValue = float64(*v.Equity.DepositValue)
		}

		// The upstream mixes units: some vaults report roi as a fraction,
		// others as a percentage already. |roi| < 1 is treated as a fraction.
		roi := float64(v.Equity.Roi)
		if math.Abs(roi) < 1 {
			roi *= 100
		}

		d := VaultDeposit{
			VaultAddress: v.Equity.VaultAddress,
			VaultName:    fallbackVaultName(v.Equity.VaultAddress),
			Equity:       equity,
			PnL:          float64(v.Equity.Pnl),
			ROI:          roi,
			DepositValue: depositValue,
		}

		if v.Details != nil {
			d.VaultName = v.Details.Name
			d.APR = float64(v.Details.APR)
			d.LeaderAddress = v.Details.Leader
			d.LeaderFraction = float64(v.Details.LeaderFraction) * 100
			d.LeaderCommission = float64(v.Details.LeaderCommission) * 100
			d.VaultTotalValue = float64(v.Details.MaxDistributable)
			d.IsClosed = v.Details.IsClosed
			if d.VaultTotalValue > 0 {
				d.LeaderEquity = d.VaultTotalValue * (d.LeaderFraction / 100)
			}
		}

		vaults = append(vaults, d)
		totalEquity += equity
	}

	return vaults, totalEquity
}

func fallbackVaultName(addr string) string {
	if len(addr) > 10 {
		addr = addr[:10]
	}
	return addr + "..."
}

func valueHistory(raw []hyperliquid.AccountValuePoint) []ValuePoint {
	if len(raw) == 0 {
		return nil
	}
	history := make([]ValuePoint, 0, len(raw))
	for _, p := range raw {
		history = append(history, ValuePoint{
			Time:         p.Time,
			AccountValue: float64(p.AccountValue),
		})
	}
	return history
}

// windowedPnL derives the 24h/7d/30d and all-time P&L figures from the
// account-value history.
//
// The windowed values take the FIRST entry in scan order whose timestamp
// is at or after the cutoff, so they depend on the upstream's ordering.
// The all-time value instead tracks the minimum-timestamp entry and is
// order independent. Both behaviors are kept distinct on purpose.
// A cutoff value of exactly 0 yields 0 P&L for that window.
func windowedPnL(history []ValuePoint, currentValue float64, now time.Time) (pnl24h, pnl7d, pnl30d, pnlAllTime float64) {
	if len(history) == 0 {
		return 0, 0, 0, 0
	}

	cutoff24h := now.Add(-24 * time.Hour).UnixMilli()
	cutoff7d := now.Add(-7 * 24 * time.Hour).UnixMilli()
	cutoff30d := now.Add(-30 * 24 * time.Hour).UnixMilli()

	var value24h, value7d, value30d *float64
	oldestTime := math.Inf(1)
	oldestValue := 0.0
	haveOldest := false

	for _, entry := range history {
		value := entry.AccountValue

		if entry.Time >= cutoff24h && value24h == nil {
			v := value
			value24h = &v
		}
		if entry.Time >= cutoff7d && value7d == nil {
			v := value
			value7d = &v
		}
		if entry.Time >= cutoff30d && value30d == nil {
			v := value
			value30d = &v
		}

		if !haveOldest || float64(entry.Time) < oldestTime {
			oldestTime = float64(entry.Time)
			oldestValue = value
			haveOldest = true
		}
	}

	if value24h != nil && *value24h != 0 {
		pnl24h = currentValue - *value24h
	}
	if value7d != nil && *value7d != 0 {
		pnl7d = currentValue - *value7d
	}
	if value30d != nil && *value30d != 0 {
		pnl30d = currentValue - *value30d
	}
	if haveOldest {
		pnlAllTime = currentValue - oldestValue
	}

	return pnl24h, pnl7d, pnl30d, pnlAllTime
}

// aggregateFills fills in the realized P&L, trade count, and fee buckets.
// Each window is thresholded independently (inclusive), so a fill inside
// 24h also counts toward the 7d and 30d buckets.
func aggregateFills(s *State, fills []hyperliquid.Fill, displayCount int, now time.Time) {
	if len(fills) == 0 {
		return
	}

	cutoff24h := now.Add(-24 * time.Hour).UnixMilli()
	cutoff7d := now.Add(-7 * 24 * time.Hour).UnixMilli()
	cutoff30d := now.Add(-30 * 24 * time.Hour).UnixMilli()

	for _, fill := range fills {
		closedPnl := float64(fill.ClosedPnl)
		fee := float64(fill.Fee)

		if fill.Time >= cutoff24h {
			s.Trades24h++
			s.RealizedPnL24h += closedPnl
			s.FeesPaid24h += fee
		}
		if fill.Time >= cutoff7d {
			s.RealizedPnL7d += closedPnl
		}
		if fill.Time >= cutoff30d {
			s.RealizedPnL30d += closedPnl
			s.FeesPaid30d += fee
		}
	}

	sorted := make([]hyperliquid.Fill, len(fills))
	copy(sorted, fills)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time > sorted[j].Time
	})
	if displayCount > 0 && len(sorted) > displayCount {
		sorted = sorted[:displayCount]
	}

	for _, fill := range sorted {
		s.RecentTrades = append(s.RecentTrades, Trade{
			Coin:      fill.Coin,
			Side:      fill.Side,
			Size:      float64(fill.Sz),
			Price:     float64(fill.Px),
			ClosedPnL: float64(fill.ClosedPnl),
			Fee:       float64(fill.Fee),
			Timestamp: fill.Time,
		})
	}
}

// aggregateFunding accumulates funding payments into the window totals and
// the per-coin breakdown. The per-coin rate is last-write-wins by event
// timestamp, not input order; the 24h total and count only accumulate
// inside the 24h window.
func aggregateFunding(s *State, events []hyperliquid.FundingEvent, now time.Time) {
	if len(events) == 0 {
		return
	}

	cutoff24h := now.Add(-24 * time.Hour).UnixMilli()
	cutoff7d := now.Add(-7 * 24 * time.Hour).UnixMilli()
	cutoff30d := now.Add(-30 * 24 * time.Hour).UnixMilli()

	type coinAgg struct {
		funding24h float64
		rate       float64
		count      int
		latestTime int64
	}
	byCoin := map[string]*coinAgg{}
	var order []string

	for _, ev := range events {
		usdc := float64(ev.Usdc)

		if ev.Time >= cutoff24h {
			s.Funding24h += usdc
		}
		if ev.Time >= cutoff7d {
			s.Funding7d += usdc
		}
		if ev.Time >= cutoff30d {
			s.Funding30d += usdc
		}

		agg, ok := byCoin[ev.Coin]
		if !ok {
			agg = &coinAgg{rate: float64(ev.FundingRate)}
			byCoin[ev.Coin] = agg
			order = append(order, ev.Coin)
		}

		if ev.Time >= cutoff24h {
			agg.funding24h += usdc
			agg.count++
		}
		if ev.Time > agg.latestTime {
			agg.rate = float64(ev.FundingRate)
			agg.latestTime = ev.Time
		}
	}

	for _, coin := range order {
		agg := byCoin[coin]
		s.FundingByCoin[coin] = CoinFunding{
			Funding24h:  agg.funding24h,
			FundingRate: agg.rate,
			Count:       agg.count,
		}
	}
}

func normalizeOrders(raw []hyperliquid.OpenOrder) []OpenOrder {
	var orders []OpenOrder
	for _, o := range raw {
		orderType := o.OrderType
		if orderType == "" {
			orderType = "limit"
		}

		// A zero trigger price means "no trigger", same as absent
		var trigger *float64
		if o.TriggerPx != nil && *o.TriggerPx != 0 {
			v := float64(*o.TriggerPx)
			trigger = &v
		}

		size := float64(o.Sz)
		orders = append(orders, OpenOrder{
			Coin:         o.Coin,
			Side:         o.Side,
			Price:        float64(o.LimitPx),
			Size:         size,
			OrderID:      o.Oid,
			OrderType:    orderType,
			TriggerPrice: trigger,
			ReduceOnly:   o.ReduceOnly,
			Filled:       0,
			Remaining:    size,
		})
	}
	return orders
}

// Package fetcher gathers one refresh cycle's raw payloads from the
// upstream API. The core state and vault-equity list are mandatory; the
// remaining sections are optional and degrade to empty defaults so a
// single failing call never aborts the cycle.
package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"hyperwatch/internal/account"
	"hyperwatch/internal/hyperliquid"
	"hyperwatch/internal/observability"
)

// Client is the upstream query surface consumed by one fetch cycle.
// *hyperliquid.Client satisfies it.
type Client interface {
	UserState(ctx context.Context, user string) (*hyperliquid.UserState, error)
	UserVaultEquities(ctx context.Context, user string) ([]hyperliquid.VaultEquity, error)
	VaultDetails(ctx context.Context, vaultAddress string) (*hyperliquid.VaultDetails, error)
	Portfolio(ctx context.Context, user string) (*hyperliquid.Portfolio, error)
	UserFillsByTime(ctx context.Context, user string, startMs, endMs int64) ([]hyperliquid.Fill, error)
	UserFunding(ctx context.Context, user string) ([]hyperliquid.FundingEvent, error)
	OpenOrders(ctx context.Context, user string) ([]hyperliquid.OpenOrder, error)
	Referral(ctx context.Context, user string) (*hyperliquid.Referral, error)
}

// Config controls the fetch window and display bounds.
type Config struct {
	WalletAddress     string
	APIBaseURL        string
	TradeHistoryDays  int
	TradeHistoryCount int
}

// Fetcher owns the upstream client and performs one Fetch per refresh
// cycle. The client is built lazily on first use and cached.
type Fetcher struct {
	cfg     Config
	client  Client
	log     zerolog.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// New creates a Fetcher. Pass a nil client to have one built from
// cfg.APIBaseURL on the first Fetch.
func New(client Client, cfg Config, log zerolog.Logger, metrics *observability.Metrics) *Fetcher {
	return &Fetcher{
		cfg:     cfg,
		client:  client,
		log:     log,
		metrics: metrics,
		now:     time.Now,
	}
}

// Fetch performs all upstream queries for one cycle and returns the raw
// bundle. An error is returned only when a mandatory fetch fails.
func (f *Fetcher) Fetch(ctx context.Context) (*account.Bundle, error) {
	if f.client == nil {
		f.client = hyperliquid.NewClient(f.cfg.APIBaseURL, f.log)
	}

	wallet := f.cfg.WalletAddress

	state, err := call(f, ctx, "clearinghouseState", func(ctx context.Context) (*hyperliquid.UserState, error) {
		return f.client.UserState(ctx, wallet)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch core state: %w", err)
	}

	equities, err := call(f, ctx, "userVaultEquities", func(ctx context.Context) ([]hyperliquid.VaultEquity, error) {
		return f.client.UserVaultEquities(ctx, wallet)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch vault equities: %w", err)
	}

	bundle := &account.Bundle{
		UserState:         state,
		Vaults:            f.enrichVaults(ctx, equities),
		TradeHistoryCount: f.cfg.TradeHistoryCount,
	}

	// Optional sections: failures are logged and replaced by empty defaults
	bundle.Portfolio = optional(f, ctx, "portfolio", func(ctx context.Context) (*hyperliquid.Portfolio, error) {
		return f.client.Portfolio(ctx, wallet)
	})

	endMs := f.now().UnixMilli()
	startMs := f.now().Add(-time.Duration(f.cfg.TradeHistoryDays) * 24 * time.Hour).UnixMilli()
	bundle.Fills = optional(f, ctx, "userFillsByTime", func(ctx context.Context) ([]hyperliquid.Fill, error) {
		return f.client.UserFillsByTime(ctx, wallet, startMs, endMs)
	})

	bundle.Funding = optional(f, ctx, "userFunding", func(ctx context.Context) ([]hyperliquid.FundingEvent, error) {
		return f.client.UserFunding(ctx, wallet)
	})

	bundle.OpenOrders = optional(f, ctx, "openOrders", func(ctx context.Context) ([]hyperliquid.OpenOrder, error) {
		return f.client.OpenOrders(ctx, wallet)
	})

	bundle.Referral = optional(f, ctx, "referral", func(ctx context.Context) (*hyperliquid.Referral, error) {
		return f.client.Referral(ctx, wallet)
	})

	return bundle, nil
}

// enrichVaults attaches per-vault details to each equity entry. A failed
// detail fetch leaves that vault without enrichment and is not reported;
// the normalizer falls back to defaults for it.
func (f *Fetcher) enrichVaults(ctx context.Context, equities []hyperliquid.VaultEquity) []account.Vault {
	vaults := make([]account.Vault, 0, len(equities))
	for _, eq := range equities {
		v := account.Vault{Equity: eq}
		if eq.VaultAddress != "" {
			details, err := call(f, ctx, "vaultDetails", func(ctx context.Context) (*hyperliquid.VaultDetails, error) {
				return f.client.VaultDetails(ctx, eq.VaultAddress)
			})
			if err == nil {
				v.Details = details
			} else if f.metrics != nil {
				f.metrics.FetchDegraded.WithLabelValues("vaultDetails").Inc()
			}
		}
		vaults = append(vaults, v)
	}
	return vaults
}

// call wraps one upstream query with timing and outcome instrumentation.
func call[T any](f *Fetcher, ctx context.Context, query string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	out, err := fn(ctx)

	if f.metrics != nil {
		status := "success"
		if err != nil {
			status = "failure"
		}
		f.metrics.FetchCalls.WithLabelValues(query, status).Inc()
		f.metrics.FetchDuration.WithLabelValues(query).Observe(time.Since(start).Seconds())
	}

	return out, err
}

// optional runs one optional query, substituting the zero value and
// recording the degradation when it fails.
func optional[T any](f *Fetcher, ctx context.Context, query string, fn func(context.Context) (T, error)) T {
	out, err := call(f, ctx, query, fn)
	if err != nil {
		f.log.Warn().Err(err).Str("query", query).Msg("optional fetch failed, using empty default")
		if f.metrics != nil {
			f.metrics.FetchDegraded.WithLabelValues(query).Inc()
		}
		var zero T
		return zero
	}
	return out
}

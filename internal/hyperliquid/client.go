package hyperliquid

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// The public /info endpoint allows ~1200 weight per minute; one request
// per 50ms with a small burst stays comfortably inside that.
const (
	requestInterval = 50 * time.Millisecond
	requestBurst    = 10
	requestTimeout  = 10 * time.Second
)

// Client is a read-only client for the Hyperliquid /info API. All queries
// are POSTs against a single endpoint, discriminated by a "type" field.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

// infoRequest is the request body for /info queries. Fields are included
// only when set, so one shape covers every query type.
type infoRequest struct {
	Type         string `json:"type"`
	User         string `json:"user,omitempty"`
	VaultAddress string `json:"vaultAddress,omitempty"`
	StartTime    int64  `json:"startTime,omitempty"`
	EndTime      int64  `json:"endTime,omitempty"`
}

func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Every(requestInterval), requestBurst),
		log:     log,
	}
}

// UserState fetches the clearinghouse state (balances + positions).
func (c *Client) UserState(ctx context.Context, user string) (*UserState, error) {
	var out UserState
	if err := c.post(ctx, infoRequest{Type: "clearinghouseState", User: user}, &out); err != nil {
		return nil, fmt.Errorf("user state: %w", err)
	}
	return &out, nil
}

// UserVaultEquities fetches the wallet's vault deposits.
func (c *Client) UserVaultEquities(ctx context.Context, user string) ([]VaultEquity, error) {
	var out []VaultEquity
	if err := c.post(ctx, infoRequest{Type: "userVaultEquities", User: user}, &out); err != nil {
		return nil, fmt.Errorf("vault equities: %w", err)
	}
	return out, nil
}

// VaultDetails fetches the enrichment record for a single vault.
func (c *Client) VaultDetails(ctx context.Context, vaultAddress string) (*VaultDetails, error) {
	var out VaultDetails
	if err := c.post(ctx, infoRequest{Type: "vaultDetails", VaultAddress: vaultAddress}, &out); err != nil {
		return nil, fmt.Errorf("vault details %s: %w", vaultAddress, err)
	}
	return &out, nil
}

// Portfolio fetches the account-value history series.
func (c *Client) Portfolio(ctx context.Context, user string) (*Portfolio, error) {
	var out Portfolio
	if err := c.post(ctx, infoRequest{Type: "portfolio", User: user}, &out); err != nil {
		return nil, fmt.Errorf("portfolio: %w", err)
	}
	return &out, nil
}

// UserFillsByTime fetches trade fills inside [startMs, endMs].
func (c *Client) UserFillsByTime(ctx context.Context, user string, startMs, endMs int64) ([]Fill, error) {
	var out []Fill
	req := infoRequest{Type: "userFillsByTime", User: user, StartTime: startMs, EndTime: endMs}
	if err := c.post(ctx, req, &out); err != nil {
		return nil, fmt.Errorf("fills: %w", err)
	}
	return out, nil
}

// UserFunding fetches the wallet's funding payment history.
func (c *Client) UserFunding(ctx context.Context, user string) ([]FundingEvent, error) {
	var out []FundingEvent
	if err := c.post(ctx, infoRequest{Type: "userFunding", User: user}, &out); err != nil {
		return nil, fmt.Errorf("funding: %w", err)
	}
	return out, nil
}

// OpenOrders fetches the wallet's resting orders.
func (c *Client) OpenOrders(ctx context.Context, user string) ([]OpenOrder, error) {
	var out []OpenOrder
	if err := c.post(ctx, infoRequest{Type: "openOrders", User: user}, &out); err != nil {
		return nil, fmt.Errorf("open orders: %w", err)
	}
	return out, nil
}

// Referral fetches the wallet's referral-program summary.
func (c *Client) Referral(ctx context.Context, user string) (*Referral, error) {
	var out Referral
	if err := c.post(ctx, infoRequest{Type: "referral", User: user}, &out); err != nil {
		return nil, fmt.Errorf("referral: %w", err)
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, req infoRequest, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/info", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("query", req.Type).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("info query")

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: status %d: %s", req.Type, resp.StatusCode, bytes.TrimSpace(payload))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.Type, err)
	}
	return nil
}

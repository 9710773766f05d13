// Package coingecko implements domain.MarketDataSource over the CoinGecko v3 REST API.
package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"crypto_dash/internal/domain"
	"crypto_dash/internal/infra"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const maxBodyBytes = 8 << 20

// Options configures a Client. Zero values fall back to sane defaults.
type Options struct {
	BaseURL         string
	APIKey          string
	VsCurrency      string
	Timeout         time.Duration
	RateLimitPerSec float64
	RateLimitBurst  int
	MaxRetries      int
	RetryBaseDelay  time.Duration
	HTTPClient      *http.Client
}

// Client fetches market data with rate limiting and retry on transient failures.
type Client struct {
	baseURL    string
	apiKey     string
	vsCurrency string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryBase  time.Duration
}

var _ domain.MarketDataSource = (*Client)(nil)

// NewClient creates a CoinGecko client.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = infra.DefaultCoinGeckoURL
	}
	if opts.VsCurrency == "" {
		opts.VsCurrency = "usd"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RateLimitPerSec <= 0 {
		opts.RateLimitPerSec = 1
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = 1
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = time.Second
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		vsCurrency: strings.ToLower(opts.VsCurrency),
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(opts.RateLimitPerSec), opts.RateLimitBurst),
		maxRetries: opts.MaxRetries,
		retryBase:  opts.RetryBaseDelay,
	}
}

// NewClientFromConfig wires a client from application configuration.
func NewClientFromConfig(cfg *infra.Config) *Client {
	cg := cfg.API.CoinGecko
	return NewClient(Options{
		BaseURL:         cg.BaseURL,
		APIKey:          cg.APIKey,
		VsCurrency:      cg.VsCurrency,
		Timeout:         time.Duration(cg.TimeoutSec) * time.Second,
		RateLimitPerSec: cg.RateLimitPerSec,
		RateLimitBurst:  cg.RateLimitBurst,
		MaxRetries:      cg.MaxRetries,
	})
}

// GetGlobalStats fetches market-wide aggregates.
func (c *Client) GetGlobalStats(ctx context.Context) (domain.GlobalStats, error) {
	var resp cgGlobalResponse
	if err := c.request(ctx, "global", "/global", nil, &resp); err != nil {
		return domain.GlobalStats{}, err
	}
	d := resp.Data
	return domain.GlobalStats{
		TotalMarketCapUSD: d.TotalMarketCap["usd"],
		TotalVolumeUSD:    d.TotalVolume["usd"],
		BTCDominancePct:   d.MarketCapPercentage["btc"],
		ActiveAssetCount:  d.ActiveCryptocurrencies,
	}, nil
}

// GetRankedAssets fetches one page of assets ordered by market cap descending.
func (c *Client) GetRankedAssets(ctx context.Context, limit, page int) ([]domain.Asset, error) {
	if limit <= 0 || limit > 250 {
		return nil, &domain.ValidationError{Field: "limit", Reason: "must be between 1 and 250"}
	}
	if page <= 0 {
		page = 1
	}
	q := url.Values{}
	q.Set("vs_currency", c.vsCurrency)
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(limit))
	q.Set("page", strconv.Itoa(page))
	q.Set("sparkline", "false")
	q.Set("price_change_percentage", "24h,7d,30d")

	var rows []cgMarketData
	if err := c.request(ctx, "markets", "/coins/markets", q, &rows); err != nil {
		return nil, err
	}

	assets := make([]domain.Asset, 0, len(rows))
	for _, r := range rows {
		if r.ID == "" {
			continue
		}
		assets = append(assets, toAsset(r))
	}
	return assets, nil
}

// GetHistoricalPrices fetches the price series of the last days days, oldest first.
func (c *Client) GetHistoricalPrices(ctx context.Context, assetID string, days int) ([]domain.PricePoint, error) {
	if assetID == "" {
		return nil, &domain.ValidationError{Field: "asset", Reason: "empty id"}
	}
	if days <= 0 {
		return nil, &domain.ValidationError{Field: "days", Reason: "must be positive"}
	}
	q := url.Values{}
	q.Set("vs_currency", c.vsCurrency)
	q.Set("days", strconv.Itoa(days))

	var resp cgMarketChartResponse
	path := "/coins/" + url.PathEscape(assetID) + "/market_chart"
	if err := c.request(ctx, "market_chart", path, q, &resp); err != nil {
		return nil, notFoundFor(assetID, err)
	}

	points := make([]domain.PricePoint, 0, len(resp.Prices))
	for _, p := range resp.Prices {
		ms, err := p[0].Float64()
		if err != nil {
			return nil, &domain.ParseError{Op: "market_chart", Err: err}
		}
		price, err := decimal.NewFromString(p[1].String())
		if err != nil {
			return nil, &domain.ParseError{Op: "market_chart", Err: err}
		}
		points = append(points, domain.PricePoint{
			Time:  time.UnixMilli(int64(ms)).UTC(),
			Price: price,
		})
	}
	return points, nil
}

// GetAssetDetail fetches the description and external links of an asset.
func (c *Client) GetAssetDetail(ctx context.Context, assetID string) (*domain.AssetDetail, error) {
	if assetID == "" {
		return nil, &domain.ValidationError{Field: "asset", Reason: "empty id"}
	}
	q := url.Values{}
	q.Set("localization", "false")
	q.Set("tickers", "false")
	q.Set("market_data", "false")
	q.Set("community_data", "false")
	q.Set("developer_data", "false")

	var d cgCoinDetail
	if err := c.request(ctx, "coin", "/coins/"+url.PathEscape(assetID), q, &d); err != nil {
		return nil, notFoundFor(assetID, err)
	}

	detail := &domain.AssetDetail{
		ID:          d.ID,
		Name:        d.Name,
		Description: strings.TrimSpace(d.Description.En),
	}
	for _, h := range d.Links.Homepage {
		if h != "" {
			if detail.Homepage == "" {
				detail.Homepage = h
			}
			detail.Links = append(detail.Links, h)
		}
	}
	for _, group := range [][]string{d.Links.BlockchainSite, d.Links.ReposURL.Github, {d.Links.SubredditURL}} {
		for _, l := range group {
			if l != "" {
				detail.Links = append(detail.Links, l)
			}
		}
	}
	return detail, nil
}

// request performs a rate-limited GET with retry on retriable failures.
func (c *Client) request(ctx context.Context, op, path string, q url.Values, result any) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff: base, 2*base, 4*base
			delay := infra.ScaledBackoff(c.retryBase, attempt-1)
			slog.Info("Retrying market request", slog.String("op", op), slog.Int("attempt", attempt), slog.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return domain.NewTransportError(op, 0, ctx.Err())
			case <-time.After(delay):
			}
		}

		err := c.do(ctx, op, path, q, result)
		if err == nil {
			return nil
		}
		lastErr = err
		if !domain.IsRetriable(err) || ctx.Err() != nil {
			return err
		}
		slog.Warn("Market request attempt failed", slog.String("op", op), slog.Int("attempt", attempt+1), slog.Any("error", err))
	}
	return lastErr
}

func (c *Client) do(ctx context.Context, op, path string, q url.Values, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.NewTransportError(op, 0, fmt.Errorf("rate limiter: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return domain.NewTransportError(op, 0, err)
	}
	if len(q) > 0 {
		req.URL.RawQuery = q.Encode()
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", infra.DefaultUserAgent)
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewTransportError(op, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return domain.NewTransportError(op, resp.StatusCode, errors.New(strings.TrimSpace(string(snippet))))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domain.NewTransportError(op, 0, err)
	}
	if err := json.Unmarshal(body, result); err != nil {
		return &domain.ParseError{Op: op, Err: err}
	}
	return nil
}

func notFoundFor(assetID string, err error) error {
	var te *domain.TransportError
	if errors.As(err, &te) && te.StatusCode == http.StatusNotFound {
		return &domain.NotFoundError{Query: assetID}
	}
	return err
}

func toAsset(r cgMarketData) domain.Asset {
	a := domain.Asset{
		ID:                r.ID,
		Name:              r.Name,
		Symbol:            strings.ToUpper(r.Symbol),
		Image:             r.Image,
		CurrentPrice:      decimalOrZero(r.CurrentPrice),
		MarketCap:         r.MarketCap,
		TotalVolume:       decimalOrZero(r.TotalVolume),
		High24h:           decimalOrZero(r.High24h),
		Low24h:            decimalOrZero(r.Low24h),
		ATH:               decimalOrZero(r.Ath),
		ATL:               decimalOrZero(r.Atl),
		ChangePct24h:      floatOrZero(r.PriceChangePercentage24h),
		ChangePct7d:       floatOrZero(r.ChangePercentage7dInCurr),
		ChangePct30d:      floatOrZero(r.ChangePercentage30dInCurr),
		CirculatingSupply: floatOrZero(r.CirculatingSupply),
		TotalSupply:       floatOrZero(r.TotalSupply),
		MaxSupply:         r.MaxSupply,
	}
	if r.PriceChangePercentage24h == nil {
		a.ChangePct24h = floatOrZero(r.ChangePercentage24hInCurr)
	}
	if r.MarketCapRank != nil && *r.MarketCapRank > 0 {
		a.MarketCapRank = *r.MarketCapRank
	}
	return a
}

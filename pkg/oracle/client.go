package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"

	"github.com/watchfi/storefront/pkg/enums"
	pkgerrors "github.com/watchfi/storefront/pkg/errors"
	"github.com/watchfi/storefront/pkg/logger"
)

const (
	defaultBaseURL              = "https://api.coingecko.com/api/v3"
	apiKeyHeader                = "x-cg-demo-api-key"
	responseBodyReadLimit int64 = 1024
	flightKey                   = "prices"
)

// Quotes maps a token to its USD price.
type Quotes = map[enums.PaymentToken]decimal.Decimal

var coinIDs = map[enums.PaymentToken]string{
	enums.PaymentTokenSOL:  "solana",
	enums.PaymentTokenUSDC: "usd-coin",
}

// Cache stores the last successful quote.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	CacheKey(parts ...string) string
}

// Client quotes token prices from a CoinGecko compatible simple-price API.
// Upstream calls are deduplicated and guarded by a circuit breaker.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	cache      Cache
	cacheTTL   time.Duration
	logg       *logger.Logger

	breaker *gobreaker.CircuitBreaker[Quotes]
	group   singleflight.Group

	breakerFailures uint32
	breakerOpen     time.Duration
}

// Option configures optional client behavior.
type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = strings.TrimSpace(key)
	}
}

// WithCache shares quotes across sessions for ttl.
func WithCache(cache Cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = cache
		c.cacheTTL = ttl
	}
}

// WithBreaker opens the breaker after failures consecutive errors and keeps
// it open for openDelay.
func WithBreaker(failures uint32, openDelay time.Duration) Option {
	return func(c *Client) {
		if failures > 0 {
			c.breakerFailures = failures
		}
		if openDelay > 0 {
			c.breakerOpen = openDelay
		}
	}
}

func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) {
		if logg != nil {
			c.logg = logg
		}
	}
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		trimmed = defaultBaseURL
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("parse oracle base url: %w", err)
	}
	client := &Client{
		httpClient:      &http.Client{Timeout: 5 * time.Second},
		baseURL:         trimmed,
		logg:            logger.Nop(),
		breakerFailures: 3,
		breakerOpen:     30 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	failures := client.breakerFailures
	client.breaker = gobreaker.NewCircuitBreaker[Quotes](gobreaker.Settings{
		Name:        "price-oracle",
		MaxRequests: 1,
		Timeout:     client.breakerOpen,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			client.logg.Warn(client.logg.WithFields(context.Background(), map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}), "oracle.breaker.state_changed")
		},
	})
	return client, nil
}

// Prices returns the USD price of every payment token.
func (c *Client) Prices(ctx context.Context) (Quotes, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "price oracle not configured")
	}
	key := c.cacheKey()
	if c.cache != nil {
		var cached Quotes
		found, err := c.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "oracle.cache.read_failed")
		} else if found && complete(cached) {
			return cached, nil
		}
	}

	v, err, _ := c.group.Do(flightKey, func() (any, error) {
		quotes, err := c.breaker.Execute(func() (Quotes, error) {
			return c.fetch(ctx)
		})
		if err != nil {
			return nil, err
		}
		if c.cache != nil && c.cacheTTL > 0 {
			if err := c.cache.SetJSON(ctx, key, quotes, c.cacheTTL); err != nil {
				c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "oracle.cache.write_failed")
			}
		}
		return quotes, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "price oracle unavailable")
		}
		return nil, err
	}
	return copyQuotes(v.(Quotes)), nil
}

func (c *Client) cacheKey() string {
	if c.cache == nil {
		return ""
	}
	return c.cache.CacheKey("oracle", "prices")
}

func (c *Client) fetch(ctx context.Context) (Quotes, error) {
	ids := make([]string, 0, len(coinIDs))
	for _, token := range enums.PaymentTokens() {
		ids = append(ids, coinIDs[token])
	}
	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))
	query.Set("vs_currencies", "usd")
	endpoint := c.baseURL + "/simple/price?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build price request")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute price request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "price request failed")
	}

	var body map[string]struct {
		USD json.Number `json:"usd"`
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode price response")
	}

	quotes := Quotes{}
	for token, id := range coinIDs {
		entry, ok := body[id]
		if !ok || entry.USD == "" {
			return nil, pkgerrors.Newf(pkgerrors.CodeDependency, "price response missing %s", id)
		}
		price, err := decimal.NewFromString(entry.USD.String())
		if err != nil || !price.IsPositive() {
			return nil, pkgerrors.Newf(pkgerrors.CodeDependency, "price response has invalid %s price %q", id, entry.USD)
		}
		quotes[token] = price
	}
	return quotes, nil
}

func complete(q Quotes) bool {
	for token := range coinIDs {
		if price, ok := q[token]; !ok || !price.IsPositive() {
			return false
		}
	}
	return true
}

func copyQuotes(q Quotes) Quotes {
	out := make(Quotes, len(q))
	for k, v := range q {
		out[k] = v
	}
	return out
}

package gogoblin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

const (
	heliusAPIHost = "api.helius.xyz"

	// MaxIndexerLimit is the largest page the indexing provider serves.
	MaxIndexerLimit = 100
)

// ErrProviderUnavailable is returned while the provider circuit breaker is open.
var ErrProviderUnavailable = errors.New("indexing provider unavailable")

// HistoryProvider returns pre-decoded transaction history for an address.
type HistoryProvider interface {
	GetAddressTransactions(ctx context.Context, address string, limit int) ([]IndexedTransaction, error)
}

// IndexedTransaction is one transaction as decoded by the indexing provider.
type IndexedTransaction struct {
	Signature       string           `json:"signature"`
	Timestamp       int64            `json:"timestamp"`
	NativeTransfers []NativeTransfer `json:"nativeTransfers"`
	TokenTransfers  []TokenTransfer  `json:"tokenTransfers"`
}

// NativeTransfer is a SOL movement in lamports.
type NativeTransfer struct {
	FromUserAccount string `json:"fromUserAccount"`
	ToUserAccount   string `json:"toUserAccount"`
	Amount          int64  `json:"amount"`
}

// TokenTransfer is an SPL token movement in whole token units.
type TokenTransfer struct {
	FromUserAccount string  `json:"fromUserAccount"`
	ToUserAccount   string  `json:"toUserAccount"`
	Mint            string  `json:"mint"`
	TokenAmount     float64 `json:"tokenAmount"`
}

// ProviderError reports a non-success HTTP status from the indexing provider.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("indexer status %d: %s", e.StatusCode, e.Body)
}

// HeliusClient calls the Helius enhanced transactions API.
type HeliusClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Logger     *zerolog.Logger

	breaker *gobreaker.CircuitBreaker
}

// NewHeliusClient returns nil when apiKey is empty so callers can treat an
// unconfigured provider as absent.
func NewHeliusClient(baseURL, apiKey string, timeout time.Duration) *HeliusClient {
	if strings.TrimSpace(apiKey) == "" {
		return nil
	}
	if baseURL == "" {
		baseURL = defaultHeliusAPIURL
	}
	logger := NewLogger("helius")
	return &HeliusClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		HTTPClient: newRateLimitedHTTPClient(baseURL, timeout, rateLimitConfig{}),
		Logger:     &logger,
		breaker:    newProviderBreaker("helius"),
	}
}

func newProviderBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		// A request cut short by the caller's own context says nothing about
		// provider health.
		IsSuccessful: func(err error) bool {
			var callerErr *callerContextError
			return err == nil || errors.As(err, &callerErr)
		},
	})
}

// callerContextError marks a failure caused by the caller's context ending,
// whether cancelled or past its deadline.
type callerContextError struct {
	err error
}

func (e *callerContextError) Error() string { return e.err.Error() }

func (e *callerContextError) Unwrap() error { return e.err }

func (c *HeliusClient) logger() *zerolog.Logger {
	if c != nil && c.Logger != nil {
		return c.Logger
	}
	logger := NewLogger("helius")
	return &logger
}

// GetAddressTransactions returns up to limit recent transactions for the address.
func (c *HeliusClient) GetAddressTransactions(ctx context.Context, address string, limit int) ([]IndexedTransaction, error) {
	if limit <= 0 || limit > MaxIndexerLimit {
		limit = MaxIndexerLimit
	}
	if c.breaker == nil {
		return c.fetchTransactions(ctx, address, limit)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		txs, err := c.fetchTransactions(ctx, address, limit)
		if err != nil && ctx.Err() != nil {
			return nil, &callerContextError{err: err}
		}
		return txs, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
		return nil, err
	}
	txs, _ := result.([]IndexedTransaction)
	return txs, nil
}

func (c *HeliusClient) fetchTransactions(ctx context.Context, address string, limit int) ([]IndexedTransaction, error) {
	endpoint := fmt.Sprintf("%s/v0/addresses/%s/transactions", c.BaseURL, url.PathEscape(address))
	query := url.Values{}
	query.Set("api-key", c.APIKey)
	query.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger().Debug().Str("address", address).Int("limit", limit).Msg("address transactions")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("indexer request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &ProviderError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var txs []IndexedTransaction
	if err := json.NewDecoder(resp.Body).Decode(&txs); err != nil {
		return nil, fmt.Errorf("decode indexer response: %w", err)
	}
	return txs, nil
}

func (c *HeliusClient) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	c.HTTPClient = newRateLimitedHTTPClient(c.BaseURL, defaultHTTPTimeout, rateLimitConfig{})
	return c.HTTPClient
}

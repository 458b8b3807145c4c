package gogoblin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	solanaMainnetHost  = "api.mainnet-beta.solana.com"
	heliusRPCHost      = "mainnet.helius-rpc.com"
	defaultHTTPTimeout = 15 * time.Second

	// MaxSignatureLimit is the hard ceiling applied to every signature listing.
	MaxSignatureLimit = 50

	// USDCMint is the canonical USDC mint on mainnet.
	USDCMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

func newRPCRequestID() string {
	return uuid.NewString()
}

// LedgerClient lists signatures and fetches parsed transactions from the ledger RPC.
type LedgerClient interface {
	GetSignaturesForAddress(ctx context.Context, address string, limit int) ([]SignatureRecord, error)
	GetTransaction(ctx context.Context, signature string) (*TransactionRecord, error)
}

// RPCSolanaClient calls a Solana JSON-RPC endpoint.
type RPCSolanaClient struct {
	Endpoint   string
	HTTPClient *http.Client
	Logger     *zerolog.Logger
}

// NewRPCSolanaClient builds a client whose transport is rate limited per host
// and records upstream response codes.
func NewRPCSolanaClient(endpoint string, timeout time.Duration, limits rateLimitConfig) *RPCSolanaClient {
	logger := NewLogger("solana-rpc")
	return &RPCSolanaClient{
		Endpoint:   endpoint,
		HTTPClient: newRateLimitedHTTPClient(endpoint, timeout, limits),
		Logger:     &logger,
	}
}

func (c *RPCSolanaClient) logger() *zerolog.Logger {
	if c != nil && c.Logger != nil {
		return c.Logger
	}
	logger := NewLogger("solana-rpc")
	return &logger
}

// RPCError is a structured error returned by the RPC endpoint in place of a result.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error (%d): %s", e.Code, e.Message)
}

// SignatureRecord represents a transaction signature reference for an address.
type SignatureRecord struct {
	Signature string
	Slot      uint64
	// BlockTime is nil when the node does not know the time yet.
	BlockTime *int64
}

// TransactionRecord is the subset of a jsonParsed getTransaction result used
// for balance diffing. AccountKeys[i] lines up with PreBalances[i] and PostBalances[i].
type TransactionRecord struct {
	Signature         string
	Slot              uint64
	BlockTime         *int64
	AccountKeys       []string
	PreBalances       []uint64
	PostBalances      []uint64
	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
}

// TokenBalance is one SPL token balance snapshot.
type TokenBalance struct {
	AccountIndex int
	Mint         string
	Owner        string
	UIAmount     float64
}

// GetSignaturesForAddress returns the most recent signatures touching the
// address, newest first. The limit is clamped to MaxSignatureLimit; a
// non-positive limit means the ceiling.
func (c *RPCSolanaClient) GetSignaturesForAddress(ctx context.Context, address string, limit int) ([]SignatureRecord, error) {
	limit = clampSignatureLimit(limit)

	c.logger().Debug().Str("address", address).Int("limit", limit).Msg("getSignaturesForAddress")

	raw, err := c.call(ctx, "getSignaturesForAddress", []any{
		address,
		map[string]any{
			"limit":      limit,
			"commitment": "confirmed",
		},
	})
	if err != nil {
		return nil, err
	}

	var items []rpcSignatureInfo
	if !isNullResult(raw) {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("decode signatures response: %w", err)
		}
	}

	results := make([]SignatureRecord, 0, len(items))
	for _, item := range items {
		results = append(results, SignatureRecord{
			Signature: item.Signature,
			Slot:      item.Slot,
			BlockTime: item.BlockTime,
		})
	}
	return results, nil
}

func clampSignatureLimit(limit int) int {
	if limit <= 0 || limit > MaxSignatureLimit {
		return MaxSignatureLimit
	}
	return limit
}

// GetTransaction fetches a parsed transaction. It returns (nil, nil) when the
// node has no result for the signature (pruned or not yet confirmed).
func (c *RPCSolanaClient) GetTransaction(ctx context.Context, signature string) (*TransactionRecord, error) {
	raw, err := c.call(ctx, "getTransaction", []any{
		signature,
		map[string]any{
			"encoding":                       "jsonParsed",
			"commitment":                     "confirmed",
			"maxSupportedTransactionVersion": 0,
		},
	})
	if err != nil {
		return nil, err
	}
	if isNullResult(raw) {
		return nil, nil
	}

	var result rpcTransactionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode transaction response: %w", err)
	}
	return convertTransactionResult(signature, &result), nil
}

func convertTransactionResult(signature string, result *rpcTransactionResult) *TransactionRecord {
	record := &TransactionRecord{
		Signature: signature,
		Slot:      result.Slot,
		BlockTime: result.BlockTime,
	}

	if result.Transaction != nil {
		if len(result.Transaction.Signatures) > 0 && result.Transaction.Signatures[0] != "" {
			record.Signature = result.Transaction.Signatures[0]
		}
		record.AccountKeys = make([]string, 0, len(result.Transaction.Message.AccountKeys))
		for _, key := range result.Transaction.Message.AccountKeys {
			record.AccountKeys = append(record.AccountKeys, key.Pubkey)
		}
	}

	if result.Meta == nil {
		return record
	}

	record.PreBalances = append(record.PreBalances, result.Meta.PreBalances...)
	record.PostBalances = append(record.PostBalances, result.Meta.PostBalances...)

	// jsonParsed already lists lookup-table keys; plain json encodings do not.
	if loaded := result.Meta.LoadedAddresses; loaded != nil && len(record.AccountKeys) < len(record.PreBalances) {
		record.AccountKeys = append(record.AccountKeys, loaded.Writable...)
		record.AccountKeys = append(record.AccountKeys, loaded.Readonly...)
	}

	record.PreTokenBalances = convertTokenBalances(result.Meta.PreTokenBalances)
	record.PostTokenBalances = convertTokenBalances(result.Meta.PostTokenBalances)
	return record
}

func convertTokenBalances(items []rpcTokenBalance) []TokenBalance {
	if len(items) == 0 {
		return nil
	}
	balances := make([]TokenBalance, 0, len(items))
	for _, item := range items {
		balances = append(balances, TokenBalance{
			AccountIndex: item.AccountIndex,
			Mint:         item.Mint,
			Owner:        item.Owner,
			UIAmount:     item.UITokenAmount.value(),
		})
	}
	return balances
}

// value prefers the raw integer amount scaled by decimals, which stays exact
// for balances where the node reports a null uiAmount.
func (a rpcUITokenAmount) value() float64 {
	if a.Amount != "" {
		if amount, err := decimal.NewFromString(a.Amount); err == nil {
			return amount.Shift(-a.Decimals).InexactFloat64()
		}
	}
	if a.UIAmountString != "" {
		if amount, err := decimal.NewFromString(a.UIAmountString); err == nil {
			return amount.InexactFloat64()
		}
	}
	if a.UIAmount != nil {
		return *a.UIAmount
	}
	return 0
}

func (c *RPCSolanaClient) call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	payload := rpcRequest{
		JSONRPC: "2.0",
		ID:      newRPCRequestID(),
		Method:  method,
		Params:  params,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("encode %s request: %w", method, err)
	}

	resp, err := c.doRPCRequest(ctx, buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("rpc request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("rpc status %d: %s", resp.StatusCode, string(body))
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	return rpcResp.Result, nil
}

func isNullResult(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func (c *RPCSolanaClient) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	c.HTTPClient = newRateLimitedHTTPClient(c.endpoint(), defaultHTTPTimeout, rateLimitConfig{})
	return c.HTTPClient
}

func (c *RPCSolanaClient) endpoint() string {
	if c.Endpoint == "" {
		panic("RPCSolanaClient endpoint not configured")
	}
	return c.Endpoint
}

func newRateLimitedHTTPClient(endpoint string, timeout time.Duration, limits rateLimitConfig) *http.Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	transport := http.RoundTripper(&metricsTransport{
		Base:    http.DefaultTransport,
		Counter: externalResponseCounts,
	})
	if limiter := limiterForEndpoint(endpoint, limits); limiter != nil {
		transport = &RateLimitedTransport{
			Limiter: limiter,
			Base:    transport,
		}
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

func (c *RPCSolanaClient) doRPCRequest(ctx context.Context, payload []byte) (*http.Response, error) {
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient().Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			c.logger().Warn().Interface("headers", resp.Header).Msg("429 response")
			if delay, ok := retryAfterDelay(resp.Header.Get("Retry-After")); ok {
				resp.Body.Close()
				timer := time.NewTimer(delay)
				select {
				case <-ctx.Done():
					timer.Stop()
					return nil, ctx.Err()
				case <-timer.C:
					continue
				}
			}
		}

		return resp, nil
	}
}

func retryAfterDelay(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	if secs, err := strconv.ParseFloat(value, 64); err == nil && secs >= 0 {
		return time.Duration(secs * float64(time.Second)), true
	}

	if when, err := http.ParseTime(value); err == nil {
		delay := max(time.Until(when), 0)
		return delay, true
	}

	return 0, false
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

type rpcSignatureInfo struct {
	Signature string `json:"signature"`
	Slot      uint64 `json:"slot"`
	BlockTime *int64 `json:"blockTime"`
}

type rpcTransactionResult struct {
	Slot        uint64              `json:"slot"`
	BlockTime   *int64              `json:"blockTime"`
	Meta        *rpcTransactionMeta `json:"meta"`
	Transaction *rpcTransactionData `json:"transaction"`
}

type rpcTransactionData struct {
	Signatures []string              `json:"signatures"`
	Message    rpcTransactionMessage `json:"message"`
}

type rpcTransactionMessage struct {
	AccountKeys []rpcAccountKey `json:"accountKeys"`
}

type rpcTransactionMeta struct {
	PreBalances       []uint64            `json:"preBalances"`
	PostBalances      []uint64            `json:"postBalances"`
	PreTokenBalances  []rpcTokenBalance   `json:"preTokenBalances"`
	PostTokenBalances []rpcTokenBalance   `json:"postTokenBalances"`
	LoadedAddresses   *rpcLoadedAddresses `json:"loadedAddresses"`
}

type rpcTokenBalance struct {
	AccountIndex  int              `json:"accountIndex"`
	Mint          string           `json:"mint"`
	Owner         string           `json:"owner"`
	UITokenAmount rpcUITokenAmount `json:"uiTokenAmount"`
}

type rpcUITokenAmount struct {
	Amount         string   `json:"amount"`
	Decimals       int32    `json:"decimals"`
	UIAmount       *float64 `json:"uiAmount"`
	UIAmountString string   `json:"uiAmountString"`
}

type rpcLoadedAddresses struct {
	Writable []string `json:"writable"`
	Readonly []string `json:"readonly"`
}

// rpcAccountKey accepts both the plain string form and the jsonParsed
// object form ({"pubkey": ..., "signer": ..., "writable": ...}).
type rpcAccountKey struct {
	Pubkey string
}

func (k *rpcAccountKey) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		return json.Unmarshal(data, &k.Pubkey)
	}
	var parsed struct {
		Pubkey string `json:"pubkey"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return err
	}
	k.Pubkey = parsed.Pubkey
	return nil
}

package gogoblin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidInput is returned for structurally invalid requests: an empty
// address list or an inverted time range.
var ErrInvalidInput = errors.New("invalid input")

// Policy bounds the work done per address. The signature and detail caps
// make results an approximation over the most recent activity only.
type Policy struct {
	// SignatureLimit caps the signature listing; never above MaxSignatureLimit.
	SignatureLimit int
	// DetailLimit caps how many listed signatures get their details fetched.
	DetailLimit int
	// IndexerLimit caps the indexing provider page size.
	IndexerLimit       int
	AddressConcurrency int
	FetchConcurrency   int
	// AddressTimeout bounds all remote work for a single address. Zero disables it.
	AddressTimeout time.Duration
}

// DefaultPolicy returns the production caps.
func DefaultPolicy() Policy {
	return Policy{
		SignatureLimit:     MaxSignatureLimit,
		DetailLimit:        20,
		IndexerLimit:       MaxIndexerLimit,
		AddressConcurrency: 4,
		FetchConcurrency:   5,
		AddressTimeout:     30 * time.Second,
	}
}

func (p Policy) normalized() Policy {
	defaults := DefaultPolicy()
	p.SignatureLimit = clampSignatureLimit(p.SignatureLimit)
	if p.DetailLimit <= 0 {
		p.DetailLimit = defaults.DetailLimit
	}
	if p.IndexerLimit <= 0 || p.IndexerLimit > MaxIndexerLimit {
		p.IndexerLimit = MaxIndexerLimit
	}
	if p.AddressConcurrency <= 0 {
		p.AddressConcurrency = defaults.AddressConcurrency
	}
	if p.FetchConcurrency <= 0 {
		p.FetchConcurrency = defaults.FetchConcurrency
	}
	return p
}

// Engine computes AggregateMetrics for a set of addresses. It keeps no
// state between ComputeMetrics calls.
type Engine struct {
	ledger  LedgerClient
	history HistoryProvider
	policy  Policy
	logger  zerolog.Logger
	now     func() time.Time
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithHistoryProvider sets the primary indexing provider. A nil provider
// leaves the engine on the ledger RPC only.
func WithHistoryProvider(provider HistoryProvider) EngineOption {
	return func(e *Engine) {
		e.history = provider
	}
}

// WithPolicy overrides the default caps.
func WithPolicy(policy Policy) EngineOption {
	return func(e *Engine) {
		e.policy = policy.normalized()
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger zerolog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock sets the clock used to stamp FetchedAt.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine builds an engine on top of the ledger client.
func NewEngine(ledger LedgerClient, opts ...EngineOption) *Engine {
	e := &Engine{
		ledger: ledger,
		policy: DefaultPolicy(),
		logger: NewLogger("engine"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewEngineFromConfig wires the RPC client and, when an API key is present,
// the indexing provider.
func NewEngineFromConfig(cfg Config) *Engine {
	ledger := NewRPCSolanaClient(cfg.RPCEndpoint, cfg.HTTPTimeout, rateLimitConfig{rate: cfg.RPCRate, burst: cfg.RPCBurst})
	opts := []EngineOption{WithPolicy(cfg.Policy)}
	// Assign only a non-nil client; a typed nil would look configured.
	if helius := NewHeliusClient(cfg.HeliusAPIURL, cfg.HeliusAPIKey, cfg.HTTPTimeout); helius != nil {
		opts = append(opts, WithHistoryProvider(helius))
	}
	return NewEngine(ledger, opts...)
}

// ComputeMetrics returns activity for every requested address within
// [start, end]. Per-address failures are reported in AddressMetrics.Error;
// only structurally invalid input returns an error. Duplicate addresses are
// computed once.
func (e *Engine) ComputeMetrics(ctx context.Context, addresses []string, start, end time.Time) (*AggregateMetrics, error) {
	if len(addresses) == 0 {
		return nil, fmt.Errorf("%w: addresses must be a non-empty array", ErrInvalidInput)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end %s is before start %s", ErrInvalidInput, end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	unique := uniqueAddresses(addresses)
	window := timeWindow{start: start.Unix(), end: end.Unix()}
	fetcher := &addressFetcher{
		ledger:  e.ledger,
		history: e.history,
		memo:    newTransactionMemo(max(defaultTransactionMemoEntries, len(unique)*e.policy.DetailLimit)),
		policy:  e.policy,
		logger:  &e.logger,
	}

	e.logger.Info().
		Int("addresses", len(unique)).
		Time("start", start).
		Time("end", end).
		Bool("indexer", e.history != nil).
		Msg("computing metrics")

	results := make([]AddressMetrics, len(unique))
	var g errgroup.Group
	g.SetLimit(e.policy.AddressConcurrency)
	for i, address := range unique {
		g.Go(func() error {
			results[i] = e.computeAddress(ctx, fetcher, address, window)
			return nil
		})
	}
	_ = g.Wait()

	return aggregateMetrics(results, e.now().UTC()), nil
}

// computeAddress runs Pending → Fetching → Succeeded|Failed for one address
// and never returns an error.
func (e *Engine) computeAddress(ctx context.Context, fetcher *addressFetcher, address string, window timeWindow) AddressMetrics {
	var metrics AddressMetrics
	defer func() { recordAddressOutcome(metrics) }()

	if validation := ValidateAddress(address); !validation.Valid {
		metrics = failedAddressMetrics(address, validation.Err())
		return metrics
	}

	if e.policy.AddressTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.policy.AddressTimeout)
		defer cancel()
	}

	m, err := fetcher.fetchAddressWindow(ctx, address, window)
	if err != nil {
		e.logger.Error().Err(err).Str("address", address).Msg("address metrics failed")
		metrics = failedAddressMetrics(address, err)
		return metrics
	}
	metrics = m
	return metrics
}

func uniqueAddresses(addresses []string) []string {
	seen := make(map[string]struct{}, len(addresses))
	unique := make([]string, 0, len(addresses))
	for _, address := range addresses {
		if _, ok := seen[address]; ok {
			continue
		}
		seen[address] = struct{}{}
		unique = append(unique, address)
	}
	return unique
}

package gogoblin

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// addressFetcher produces AddressMetrics for one address at a time, trying
// the indexing provider first and the ledger RPC second.
type addressFetcher struct {
	ledger  LedgerClient
	history HistoryProvider
	memo    *transactionMemo
	policy  Policy
	logger  *zerolog.Logger
}

// fetchAddressWindow returns metrics for address within window. A failing
// provider falls back to the ledger transparently; an error is returned only
// when every attempted source failed. An unconfigured provider is skipped
// without counting as a fallback.
func (f *addressFetcher) fetchAddressWindow(ctx context.Context, address string, window timeWindow) (AddressMetrics, error) {
	var primaryErr error
	if f.history != nil {
		metrics, err := f.fetchFromIndexer(ctx, address, window)
		if err == nil {
			return metrics, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return AddressMetrics{}, fmt.Errorf("indexer: %w", ctxErr)
		}
		primaryErr = err
		providerFallbacks.Inc()
		f.logger.Warn().Err(err).Str("address", address).Msg("indexer failed, falling back to rpc")
	}

	metrics, err := f.fetchFromLedger(ctx, address, window)
	if err != nil {
		if primaryErr != nil {
			return AddressMetrics{}, fmt.Errorf("indexer: %v; rpc: %w", primaryErr, err)
		}
		return AddressMetrics{}, fmt.Errorf("rpc: %w", err)
	}
	return metrics, nil
}

func (f *addressFetcher) fetchFromIndexer(ctx context.Context, address string, window timeWindow) (AddressMetrics, error) {
	txs, err := f.history.GetAddressTransactions(ctx, address, f.policy.IndexerLimit)
	if err != nil {
		return AddressMetrics{}, err
	}

	acc := newAddressAccumulator(address, SourceIndexer)
	for _, tx := range txs {
		c := indexedTransaction{tx: tx}.contribution(address)
		if !window.admits(c.BlockTime) {
			continue
		}
		acc.add(c)
	}
	return acc.finish(), nil
}

// fetchFromLedger lists signatures, keeps those inside the window and fetches
// details for at most DetailLimit of them. Every kept signature is counted;
// only fetched details contribute volume.
func (f *addressFetcher) fetchFromLedger(ctx context.Context, address string, window timeWindow) (AddressMetrics, error) {
	listed, err := f.ledger.GetSignaturesForAddress(ctx, address, f.policy.SignatureLimit)
	if err != nil {
		return AddressMetrics{}, err
	}

	signatures := make([]SignatureRecord, 0, len(listed))
	for _, sig := range listed {
		if window.admits(sig.BlockTime) {
			signatures = append(signatures, sig)
		}
	}

	detailCount := min(len(signatures), f.policy.DetailLimit)
	records := make([]*TransactionRecord, detailCount)
	var skipped atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.policy.FetchConcurrency)
	for i := 0; i < detailCount; i++ {
		signature := signatures[i].Signature
		g.Go(func() error {
			record, err := f.memo.fetch(gctx, signature, f.ledger.GetTransaction)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				skipped.Add(1)
				f.logger.Warn().Err(err).Str("address", address).Str("signature", signature).Msg("skipping transaction")
				return nil
			}
			records[i] = record
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return AddressMetrics{}, err
	}

	acc := newAddressAccumulator(address, SourceRPC)
	for i, sig := range signatures {
		var record *TransactionRecord
		if i < detailCount {
			record = records[i]
		}
		c := ledgerTransaction{signature: sig, record: record}.contribution(address)
		// The record may supply the time the listing did not have.
		if !window.admits(c.BlockTime) {
			continue
		}
		acc.add(c)
	}
	metrics := acc.finish()
	metrics.SkippedTransactions = int(skipped.Load())
	return metrics, nil
}

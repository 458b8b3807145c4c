package gogoblin

import (
	"context"
	"errors"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

const defaultTransactionMemoEntries = 1024

// transactionMemo de-duplicates getTransaction calls within a single engine
// run, for example a transfer between two of the requested wallets. It is
// created per ComputeMetrics call and dropped with it.
type transactionMemo struct {
	store  *lru.Cache[string, memoEntry]
	flight singleflight.Group
}

type memoEntry struct {
	record *TransactionRecord
}

func newTransactionMemo(maxEntries int) *transactionMemo {
	if maxEntries <= 0 {
		return nil
	}
	store, err := lru.New[string, memoEntry](maxEntries)
	if err != nil {
		return nil
	}
	return &transactionMemo{store: store}
}

// fetch returns the memoized record for signature or loads it once. A nil
// record (not found) is memoized as well; errors are not. A shared load runs
// on the context of whichever caller started it, so when that context ends
// early the remaining callers load again on their own.
func (m *transactionMemo) fetch(
	ctx context.Context,
	signature string,
	load func(context.Context, string) (*TransactionRecord, error),
) (*TransactionRecord, error) {
	if m == nil || signature == "" {
		return load(ctx, signature)
	}
	if entry, ok := m.store.Get(signature); ok {
		return entry.record, nil
	}

	value, err, _ := m.flight.Do(signature, func() (interface{}, error) {
		if entry, ok := m.store.Get(signature); ok {
			return entry.record, nil
		}
		record, err := load(ctx, signature)
		if err != nil {
			return nil, err
		}
		m.store.Add(signature, memoEntry{record: record})
		return record, nil
	})
	if err != nil {
		if !isContextError(err) || ctx.Err() != nil {
			return nil, err
		}
		record, err := load(ctx, signature)
		if err != nil {
			return nil, err
		}
		m.store.Add(signature, memoEntry{record: record})
		return record, nil
	}
	record, _ := value.(*TransactionRecord)
	return record, nil
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

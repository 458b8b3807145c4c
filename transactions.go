package gogoblin

import (
	"math"

	"github.com/shopspring/decimal"
)

// Data sources recorded on AddressMetrics.Source.
const (
	SourceIndexer = "indexer"
	SourceRPC     = "rpc"
)

// txContribution is what one transaction adds to an address's metrics,
// whichever upstream shape it came from.
type txContribution struct {
	Signature string
	BlockTime *int64
	SOL       float64
	USDC      float64
	// Sampled reports whether volume was actually inspected for this
	// transaction (false for signatures beyond the detail cap).
	Sampled bool
}

// rawTransaction is implemented by each upstream record shape.
type rawTransaction interface {
	contribution(address string) txContribution
}

// ledgerTransaction pairs a listed signature with its fetched details. record
// is nil when details were not fetched or not found.
type ledgerTransaction struct {
	signature SignatureRecord
	record    *TransactionRecord
}

func (t ledgerTransaction) contribution(address string) txContribution {
	c := txContribution{
		Signature: t.signature.Signature,
		BlockTime: t.signature.BlockTime,
	}
	if t.record == nil {
		return c
	}
	if c.BlockTime == nil {
		c.BlockTime = t.record.BlockTime
	}
	delta := ComputeDeltas(t.record, address)
	c.SOL = delta.SOL
	c.USDC = delta.USDC
	c.Sampled = true
	return c
}

// indexedTransaction wraps a pre-decoded provider record. Only transfers with
// the address on either side count, and the same dust thresholds as balance
// diffing apply to each transfer.
type indexedTransaction struct {
	tx IndexedTransaction
}

func (t indexedTransaction) contribution(address string) txContribution {
	c := txContribution{
		Signature: t.tx.Signature,
		Sampled:   true,
	}
	if t.tx.Timestamp > 0 {
		ts := t.tx.Timestamp
		c.BlockTime = &ts
	}

	for _, transfer := range t.tx.NativeTransfers {
		if transfer.FromUserAccount != address && transfer.ToUserAccount != address {
			continue
		}
		sol := decimal.NewFromInt(transfer.Amount).Abs().Shift(-lamportsDecimals).InexactFloat64()
		if sol > solDustThreshold {
			c.SOL += sol
		}
	}

	for _, transfer := range t.tx.TokenTransfers {
		if transfer.Mint != USDCMint {
			continue
		}
		if transfer.FromUserAccount != address && transfer.ToUserAccount != address {
			continue
		}
		amount := math.Abs(transfer.TokenAmount)
		if amount > usdcDustThreshold {
			c.USDC += amount
		}
	}
	return c
}

// timeWindow is an inclusive [start, end] range in unix seconds.
type timeWindow struct {
	start int64
	end   int64
}

// admits reports whether a record at blockTime belongs to the window. Records
// with unknown time cannot be placed and are kept.
func (w timeWindow) admits(blockTime *int64) bool {
	if blockTime == nil {
		return true
	}
	return *blockTime >= w.start && *blockTime <= w.end
}

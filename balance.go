package gogoblin

import "github.com/shopspring/decimal"

const (
	lamportsDecimals = 9

	// Changes at or below these magnitudes are fee or rounding noise and are
	// dropped entirely rather than rounded.
	solDustThreshold  = 0.001
	usdcDustThreshold = 0.01
)

// BalanceDelta is the unsigned volume a transaction moved for one address.
type BalanceDelta struct {
	SOL  float64
	USDC float64
}

// ComputeDeltas diffs the pre/post balance snapshots of tx.
//
// SOL: every account index whose key equals address contributes
// |post-pre| lamports converted to SOL, individually dust filtered. The key is
// not assumed to be unique.
//
// USDC: every post token balance on the USDC mint is paired with the pre
// balance at the same account index (missing pre counts as zero) and
// contributes |post-pre|, individually dust filtered.
//
// Several instructions touching the same account collapse into one diff.
func ComputeDeltas(tx *TransactionRecord, address string) BalanceDelta {
	var delta BalanceDelta
	if tx == nil {
		return delta
	}

	for i, key := range tx.AccountKeys {
		if key != address {
			continue
		}
		sol := lamportsToSOL(balanceAt(tx.PostBalances, i), balanceAt(tx.PreBalances, i))
		if sol > solDustThreshold {
			delta.SOL += sol
		}
	}

	for _, post := range tx.PostTokenBalances {
		if post.Mint != USDCMint {
			continue
		}
		pre := preTokenAmount(tx.PreTokenBalances, post.AccountIndex)
		diff := decimal.NewFromFloat(post.UIAmount).Sub(decimal.NewFromFloat(pre)).Abs().InexactFloat64()
		if diff > usdcDustThreshold {
			delta.USDC += diff
		}
	}

	return delta
}

func balanceAt(balances []uint64, index int) uint64 {
	if index < len(balances) {
		return balances[index]
	}
	return 0
}

func lamportsToSOL(post, pre uint64) float64 {
	// Lamport balances are bounded by total supply and fit in int64.
	diff := decimal.NewFromInt(int64(post)).Sub(decimal.NewFromInt(int64(pre))).Abs()
	return diff.Shift(-lamportsDecimals).InexactFloat64()
}

func preTokenAmount(balances []TokenBalance, accountIndex int) float64 {
	for _, pre := range balances {
		if pre.AccountIndex == accountIndex {
			return pre.UIAmount
		}
	}
	return 0
}

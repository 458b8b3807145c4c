package gogoblin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeDeltasSOL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		tx   *TransactionRecord
		want float64
	}{
		{
			name: "outgoing transfer",
			tx: &TransactionRecord{
				AccountKeys:  []string{"Owner111", "Dest111"},
				PreBalances:  []uint64{5_000_000_000, 0},
				PostBalances: []uint64{3_000_000_000, 2_000_000_000},
			},
			want: 2,
		},
		{
			name: "just above dust",
			tx: &TransactionRecord{
				AccountKeys:  []string{"Owner111"},
				PreBalances:  []uint64{10_000_000},
				PostBalances: []uint64{12_000_000},
			},
			want: 0.002,
		},
		{
			name: "fee sized change is dropped",
			tx: &TransactionRecord{
				AccountKeys:  []string{"Owner111"},
				PreBalances:  []uint64{10_000_000},
				PostBalances: []uint64{9_500_000},
			},
			want: 0,
		},
		{
			name: "threshold itself is dropped",
			tx: &TransactionRecord{
				AccountKeys:  []string{"Owner111"},
				PreBalances:  []uint64{10_000_000},
				PostBalances: []uint64{11_000_000},
			},
			want: 0,
		},
		{
			name: "address absent",
			tx: &TransactionRecord{
				AccountKeys:  []string{"Other111"},
				PreBalances:  []uint64{0},
				PostBalances: []uint64{9_000_000_000},
			},
			want: 0,
		},
		{
			name: "every matching index contributes",
			tx: &TransactionRecord{
				AccountKeys:  []string{"Owner111", "Dest111", "Owner111"},
				PreBalances:  []uint64{1_000_000_000, 0, 0},
				PostBalances: []uint64{0, 0, 500_000_000},
			},
			want: 1.5,
		},
		{
			name: "missing balances count as zero",
			tx: &TransactionRecord{
				AccountKeys:  []string{"Owner111"},
				PreBalances:  nil,
				PostBalances: []uint64{3_000_000_000},
			},
			want: 3,
		},
		{
			name: "nil transaction",
			tx:   nil,
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			delta := ComputeDeltas(tt.tx, "Owner111")
			assert.InDelta(t, tt.want, delta.SOL, 1e-12)
			assert.Zero(t, delta.USDC)
		})
	}
}

func TestComputeDeltasUSDC(t *testing.T) {
	t.Parallel()

	tx := &TransactionRecord{
		AccountKeys:  []string{"Owner111"},
		PreBalances:  []uint64{1_000_000_000},
		PostBalances: []uint64{1_000_000_000},
		PreTokenBalances: []TokenBalance{
			{AccountIndex: 1, Mint: USDCMint, Owner: "Owner111", UIAmount: 100},
			{AccountIndex: 3, Mint: USDCMint, Owner: "Owner111", UIAmount: 10},
			{AccountIndex: 4, Mint: "Bonk111", Owner: "Owner111", UIAmount: 5},
		},
		PostTokenBalances: []TokenBalance{
			{AccountIndex: 1, Mint: USDCMint, Owner: "Owner111", UIAmount: 75.5},
			// New token account: missing pre counts as zero.
			{AccountIndex: 2, Mint: USDCMint, Owner: "Dest111", UIAmount: 24.5},
			// Below the dust threshold.
			{AccountIndex: 3, Mint: USDCMint, Owner: "Owner111", UIAmount: 10.005},
			{AccountIndex: 4, Mint: "Bonk111", Owner: "Owner111", UIAmount: 500},
		},
	}

	delta := ComputeDeltas(tx, "Owner111")
	assert.InDelta(t, 49.0, delta.USDC, 1e-9)
	assert.Zero(t, delta.SOL)
}

func TestComputeDeltasIsPure(t *testing.T) {
	t.Parallel()

	tx := &TransactionRecord{
		AccountKeys:       []string{"Owner111"},
		PreBalances:       []uint64{2_000_000_000},
		PostBalances:      []uint64{1_000_000_000},
		PostTokenBalances: []TokenBalance{{AccountIndex: 1, Mint: USDCMint, UIAmount: 3}},
	}

	first := ComputeDeltas(tx, "Owner111")
	second := ComputeDeltas(tx, "Owner111")
	assert.Equal(t, first, second)
	assert.Equal(t, []uint64{2_000_000_000}, tx.PreBalances)
}

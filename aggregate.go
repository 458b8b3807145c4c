package gogoblin

import "time"

// AddressMetrics is the activity computed for one requested address. Failed
// addresses keep zeroed counters and carry Error.
type AddressMetrics struct {
	Address          string                 `json:"address"`
	TransactionCount int                    `json:"transactionCount"`
	SOLVolume        float64                `json:"solVolume"`
	USDCVolume       float64                `json:"usdcVolume"`
	DailyData        map[string]DailyBucket `json:"dailyData"`
	Error            string                 `json:"error,omitempty"`

	// Source is SourceIndexer or SourceRPC, empty on failure.
	Source string `json:"source,omitempty"`
	// SampledTransactions counts transactions whose volume was inspected. On
	// the RPC path only the first DetailLimit signatures are sampled, so
	// volume is a lower bound when this is below TransactionCount.
	SampledTransactions int `json:"sampledTransactions"`
	// SkippedTransactions counts detail fetches that failed and were skipped.
	SkippedTransactions int `json:"skippedTransactions,omitempty"`
}

func failedAddressMetrics(address string, err error) AddressMetrics {
	return AddressMetrics{
		Address:   address,
		DailyData: map[string]DailyBucket{},
		Error:     err.Error(),
	}
}

// AggregateMetrics is the merged report over all requested addresses.
type AggregateMetrics struct {
	TotalTransactions int                       `json:"totalTransactions"`
	TotalSOLVolume    float64                   `json:"totalSOLVolume"`
	TotalUSDCVolume   float64                   `json:"totalUSDCVolume"`
	PerAddress        map[string]AddressMetrics `json:"addressMetrics"`
	DailyData         map[string]DailyBucket    `json:"dailyData"`
	FetchedAt         time.Time                 `json:"fetchedAt"`
}

// aggregateMetrics sums address results. Sums are commutative so the fold
// order only affects floating point rounding; callers fold in request order
// to keep repeated runs identical.
func aggregateMetrics(results []AddressMetrics, fetchedAt time.Time) *AggregateMetrics {
	agg := &AggregateMetrics{
		PerAddress: make(map[string]AddressMetrics, len(results)),
		DailyData:  make(map[string]DailyBucket),
	}
	for _, m := range results {
		agg.TotalTransactions += m.TransactionCount
		agg.TotalSOLVolume += m.SOLVolume
		agg.TotalUSDCVolume += m.USDCVolume
		mergeDaily(agg.DailyData, m.DailyData)
		agg.PerAddress[m.Address] = m
	}
	agg.FetchedAt = fetchedAt
	return agg
}

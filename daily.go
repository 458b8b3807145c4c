package gogoblin

import "time"

const dayKeyLayout = "2006-01-02"

// DailyBucket holds one calendar day of activity.
type DailyBucket struct {
	Count      int     `json:"count"`
	SOLVolume  float64 `json:"solVolume"`
	USDCVolume float64 `json:"usdcVolume"`
}

// DayKey truncates a unix timestamp to its UTC calendar day.
func DayKey(blockTime int64) string {
	return time.Unix(blockTime, 0).UTC().Format(dayKeyLayout)
}

// addressAccumulator folds contributions for a single address. It is owned by
// one goroutine and handed out as an immutable AddressMetrics by finish.
type addressAccumulator struct {
	metrics AddressMetrics
}

func newAddressAccumulator(address, source string) *addressAccumulator {
	return &addressAccumulator{
		metrics: AddressMetrics{
			Address:   address,
			Source:    source,
			DailyData: make(map[string]DailyBucket),
		},
	}
}

func (a *addressAccumulator) add(c txContribution) {
	a.metrics.TransactionCount++
	a.metrics.SOLVolume += c.SOL
	a.metrics.USDCVolume += c.USDC
	if c.Sampled {
		a.metrics.SampledTransactions++
	}
	bucket(a, c)
}

// bucket adds the contribution to its day. Unknown-time contributions only
// count toward the address totals.
func bucket(a *addressAccumulator, c txContribution) {
	if c.BlockTime == nil {
		return
	}
	key := DayKey(*c.BlockTime)
	day, ok := a.metrics.DailyData[key]
	if !ok {
		day = DailyBucket{}
	}
	day.Count++
	day.SOLVolume += c.SOL
	day.USDCVolume += c.USDC
	a.metrics.DailyData[key] = day
}

func (a *addressAccumulator) finish() AddressMetrics {
	return a.metrics
}

func mergeDaily(dst, src map[string]DailyBucket) {
	for key, day := range src {
		merged := dst[key]
		merged.Count += day.Count
		merged.SOLVolume += day.SOLVolume
		merged.USDCVolume += day.USDCVolume
		dst[key] = merged
	}
}

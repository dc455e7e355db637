package models

import (
	"sort"
	"time"
)

// TotalsKey addresses one per-minute premium total within an index pass.
type TotalsKey struct {
	ExpiryBucket string
	StrikeOffset string
	TimeBucket   string
}

// MinuteTotals accumulates per-minute premium totals across split sources.
type MinuteTotals map[TotalsKey]float64

// LatestPerSeries keeps only the newest time bucket of each (expiry, offset).
func (m MinuteTotals) LatestPerSeries() MinuteTotals {
	type series struct{ expiry, offset string }
	latest := make(map[series]TotalsKey)
	for k := range m {
		s := series{k.ExpiryBucket, k.StrikeOffset}
		if cur, ok := latest[s]; !ok || k.TimeBucket > cur.TimeBucket {
			latest[s] = k
		}
	}
	out := make(MinuteTotals, len(latest))
	for _, k := range latest {
		out[k] = m[k]
	}
	return out
}

// SortedKeys returns the keys ordered by (expiry, offset, bucket).
func (m MinuteTotals) SortedKeys() []TotalsKey {
	keys := make([]TotalsKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.ExpiryBucket != b.ExpiryBucket {
			return a.ExpiryBucket < b.ExpiryBucket
		}
		if a.StrikeOffset != b.StrikeOffset {
			return a.StrikeOffset < b.StrikeOffset
		}
		return a.TimeBucket < b.TimeBucket
	})
	return keys
}

// LegRecord is one raw option-chain row with both legs present.
type LegRecord struct {
	TS           time.Time
	Index        string
	ExpiryBucket string
	StrikeOffset string
	CallLTP      float64
	PutLTP       float64
}

// TotalPremium is the straddle premium of the row.
func (r LegRecord) TotalPremium() float64 {
	return r.CallLTP + r.PutLTP
}

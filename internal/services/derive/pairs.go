package derive

import "OptiBase/internal/domain/models"

// pairSources maps each derived pair offset to its two sides.
var pairSources = map[string][2]string{
	models.OffsetPairP1M1: {models.OffsetATMp1, models.OffsetATMm1},
	models.OffsetPairP2M2: {models.OffsetATMp2, models.OffsetATMm2},
}

// Pairs derives straddle-pair midpoints from base per-minute totals:
// atm_p1m1 = (atm_p1 + atm_m1)/2 and atm_p2m2 = (atm_p2 + atm_m2)/2, minute
// by minute, only where both sides exist. Sources are never blended: callers
// use either these or directly observed pair totals, not both.
func Pairs(base models.MinuteTotals) models.MinuteTotals {
	out := models.MinuteTotals{}
	for pair, sides := range pairSources {
		for key, upVal := range base {
			if key.StrikeOffset != sides[0] {
				continue
			}
			downKey := models.TotalsKey{
				ExpiryBucket: key.ExpiryBucket,
				StrikeOffset: sides[1],
				TimeBucket:   key.TimeBucket,
			}
			downVal, ok := base[downKey]
			if !ok {
				continue
			}
			out[models.TotalsKey{
				ExpiryBucket: key.ExpiryBucket,
				StrikeOffset: pair,
				TimeBucket:   key.TimeBucket,
			}] = (upVal + downVal) / 2
		}
	}
	return out
}

// PairsByBucket derives the same midpoints from per-offset day series
// (map[offset]map[bucket]total), the shape the end-of-day scan works in.
func PairsByBucket(base map[string]map[string]float64) map[string]map[string]float64 {
	out := map[string]map[string]float64{}
	for pair, sides := range pairSources {
		up, down := base[sides[0]], base[sides[1]]
		if len(up) == 0 || len(down) == 0 {
			continue
		}
		for tb, upVal := range up {
			downVal, ok := down[tb]
			if !ok {
				continue
			}
			if out[pair] == nil {
				out[pair] = map[string]float64{}
			}
			out[pair][tb] = (upVal + downVal) / 2
		}
	}
	return out
}

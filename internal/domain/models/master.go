package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Strike offsets persisted by the store. Base offsets come straight from the
// split sources; pair offsets are straddle midpoints.
const (
	OffsetATMm2 = "atm_m2"
	OffsetATMm1 = "atm_m1"
	OffsetATM   = "atm"
	OffsetATMp1 = "atm_p1"
	OffsetATMp2 = "atm_p2"

	OffsetPairP1M1 = "atm_p1m1"
	OffsetPairP2M2 = "atm_p2m2"
)

// BaseOffsets and PairOffsets list the canonical strike ladder in display order.
var (
	BaseOffsets = []string{OffsetATMm2, OffsetATMm1, OffsetATM, OffsetATMp1, OffsetATMp2}
	PairOffsets = []string{OffsetPairP1M1, OffsetPairP2M2}
)

// legacyOffsets maps short aliases still present in older split trees.
var legacyOffsets = map[string]string{
	"m2": OffsetATMm2,
	"m1": OffsetATMm1,
	"p1": OffsetATMp1,
	"p2": OffsetATMp2,
}

// NormalizeOffset lowercases the offset and resolves legacy aliases (m1 -> atm_m1).
func NormalizeOffset(s string) string {
	v := strings.ToLower(strings.TrimSpace(s))
	if full, ok := legacyOffsets[v]; ok {
		return full
	}
	return v
}

// IsPairOffset reports whether the offset is a derived straddle pair.
func IsPairOffset(s string) bool {
	switch NormalizeOffset(s) {
	case OffsetPairP1M1, OffsetPairP2M2:
		return true
	}
	return false
}

// Expiry buckets recognized in split trees and configuration.
const (
	ExpiryThisWeek  = "this_week"
	ExpiryNextWeek  = "next_week"
	ExpiryThisMonth = "this_month"
	ExpiryNextMonth = "next_month"
)

// ExpiryBuckets lists the known buckets in near-to-far order.
var ExpiryBuckets = []string{ExpiryThisWeek, ExpiryNextWeek, ExpiryThisMonth, ExpiryNextMonth}

// KnownExpiryBucket reports whether s is one of the recognized buckets.
func KnownExpiryBucket(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, b := range ExpiryBuckets {
		if s == b {
			return true
		}
	}
	return false
}

// weekdayCodes is indexed by time.Weekday (Sunday = 0).
var weekdayCodes = [...]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// WeekdayCode returns the master-file weekday code for t (mon..sun).
func WeekdayCode(t time.Time) string {
	return weekdayCodes[int(t.Weekday())]
}

// KnownWeekdayCode reports whether s is a valid weekday code.
func KnownWeekdayCode(s string) bool {
	for _, c := range weekdayCodes {
		if s == c {
			return true
		}
	}
	return false
}

// IsTradingWeekday reports whether the code is a regular session day (mon..fri).
func IsTradingWeekday(code string) bool {
	switch code {
	case "mon", "tue", "wed", "thu", "fri":
		return true
	}
	return false
}

// splitIndexDirs maps canonical index names to split-tree directory names.
var splitIndexDirs = map[string]string{
	"NIFTY 50":   "NIFTY",
	"NIFTY BANK": "BANKNIFTY",
	"SENSEX":     "SENSEX",
}

// SplitIndexDir returns the split-tree directory for a canonical index name.
// Unknown indices map to their uppercased form.
func SplitIndexDir(index string) string {
	key := strings.ToUpper(strings.TrimSpace(index))
	if dir, ok := splitIndexDirs[key]; ok {
		return dir
	}
	return key
}

// IndexFromSplitDir reverses SplitIndexDir; unknown directories pass through.
func IndexFromSplitDir(dir string) string {
	for index, d := range splitIndexDirs {
		if d == dir {
			return index
		}
	}
	return dir
}

// AggregationKey identifies one weekday master file.
type AggregationKey struct {
	Index        string `json:"index"`
	ExpiryBucket string `json:"expiry_bucket"`
	StrikeOffset string `json:"strike_offset"`
	Weekday      string `json:"weekday"`
}

func (k AggregationKey) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", k.Index, k.ExpiryBucket, k.StrikeOffset, k.Weekday)
}

// MasterRow is one time bucket of a weekday master: running stats over every
// historical observation of that minute on that weekday.
type MasterRow struct {
	TimeBucket  string    `json:"time_bucket"`
	N           int64     `json:"n"`
	Sum         float64   `json:"sum"`
	Avg         float64   `json:"avg"`
	Min         float64   `json:"min"`
	Max         float64   `json:"max"`
	LastUpdated time.Time `json:"last_updated"`
}

// MasterBuckets holds a master file in memory, keyed by time bucket.
type MasterBuckets map[string]MasterRow

// Merge folds one observation into the bucket and returns the updated row.
// A new bucket starts at n=1 with sum=min=max=avg=value; an existing one
// keeps avg = sum/n exactly.
func (b MasterBuckets) Merge(bucket string, value float64, now time.Time) MasterRow {
	row, ok := b[bucket]
	if !ok {
		row = MasterRow{TimeBucket: bucket, N: 1, Sum: value, Avg: value, Min: value, Max: value}
	} else {
		row.N++
		row.Sum += value
		if value < row.Min {
			row.Min = value
		}
		if value > row.Max {
			row.Max = value
		}
		row.Avg = row.Sum / float64(row.N)
	}
	row.LastUpdated = now.UTC().Truncate(time.Second)
	b[bucket] = row
	return row
}

// Sorted returns the rows ordered by time bucket (HH:MM sorts lexically).
func (b MasterBuckets) Sorted() []MasterRow {
	rows := make([]MasterRow, 0, len(b))
	for _, r := range b {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].TimeBucket < rows[j].TimeBucket })
	return rows
}

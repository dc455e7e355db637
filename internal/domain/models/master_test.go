package models

import (
	"math"
	"testing"
	"time"
)

func TestMergeFirstObservation(t *testing.T) {
	b := MasterBuckets{}
	now := time.Date(2025, 8, 18, 5, 0, 0, 0, time.UTC)
	row := b.Merge("09:15", 125.5, now)
	if row.N != 1 {
		t.Fatalf("n = %d, want 1", row.N)
	}
	if row.Sum != 125.5 || row.Avg != 125.5 || row.Min != 125.5 || row.Max != 125.5 {
		t.Fatalf("unexpected row %+v", row)
	}
	if !row.LastUpdated.Equal(now) {
		t.Fatalf("last_updated = %v, want %v", row.LastUpdated, now)
	}
}

func TestMergeAccumulates(t *testing.T) {
	b := MasterBuckets{}
	now := time.Now()
	b.Merge("09:15", 100, now)
	b.Merge("09:15", 200, now)
	row := b.Merge("09:15", 40, now)
	if row.N != 3 {
		t.Fatalf("n = %d, want 3", row.N)
	}
	if row.Sum != 340 {
		t.Fatalf("sum = %v, want 340", row.Sum)
	}
	if row.Min != 40 || row.Max != 200 {
		t.Fatalf("min/max = %v/%v, want 40/200", row.Min, row.Max)
	}
	if math.Abs(row.Avg-340.0/3.0) > 1e-12 {
		t.Fatalf("avg = %v, want sum/n", row.Avg)
	}
}

func TestMergeBucketsIndependent(t *testing.T) {
	b := MasterBuckets{}
	now := time.Now()
	b.Merge("09:15", 100.0, now)
	b.Merge("09:15", 120.0, now)
	b.Merge("09:16", 80.0, now)

	first := b["09:15"]
	if first.N != 2 || first.Sum != 220.0 || first.Min != 100.0 || first.Max != 120.0 {
		t.Fatalf("09:15 = %+v", first)
	}
	if math.Abs(first.Avg-110.0) > 1e-6 {
		t.Fatalf("09:15 avg = %v, want 110", first.Avg)
	}
	second := b["09:16"]
	if second.N != 1 || second.Sum != 80.0 || second.Avg != 80.0 || second.Min != 80.0 || second.Max != 80.0 {
		t.Fatalf("09:16 = %+v", second)
	}
}

func TestSortedOrdersByBucket(t *testing.T) {
	b := MasterBuckets{}
	now := time.Now()
	for _, tb := range []string{"15:29", "09:15", "10:00", "09:16"} {
		b.Merge(tb, 1, now)
	}
	rows := b.Sorted()
	want := []string{"09:15", "09:16", "10:00", "15:29"}
	for i, w := range want {
		if rows[i].TimeBucket != w {
			t.Fatalf("rows[%d] = %s, want %s", i, rows[i].TimeBucket, w)
		}
	}
}

func TestNormalizeOffset(t *testing.T) {
	cases := map[string]string{
		"m1":      "atm_m1",
		"M2":      "atm_m2",
		"p1":      "atm_p1",
		"P2":      "atm_p2",
		" ATM ":   "atm",
		"atm_p1":  "atm_p1",
		"unknown": "unknown",
	}
	for in, want := range cases {
		if got := NormalizeOffset(in); got != want {
			t.Fatalf("NormalizeOffset(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWeekdayCode(t *testing.T) {
	// 2025-08-18 is a Monday, 2025-08-24 a Sunday.
	mon := time.Date(2025, 8, 18, 0, 0, 0, 0, time.UTC)
	sun := time.Date(2025, 8, 24, 0, 0, 0, 0, time.UTC)
	if got := WeekdayCode(mon); got != "mon" {
		t.Fatalf("got = %q, want %q", got, "mon")
	}
	if got := WeekdayCode(sun); got != "sun" {
		t.Fatalf("got = %q, want %q", got, "sun")
	}
	if !IsTradingWeekday("fri") || IsTradingWeekday("sat") || IsTradingWeekday("sun") {
		t.Fatalf("trading weekday classification wrong")
	}
}

func TestSplitIndexDirRoundTrip(t *testing.T) {
	cases := map[string]string{
		"NIFTY 50":   "NIFTY",
		"NIFTY BANK": "BANKNIFTY",
		"SENSEX":     "SENSEX",
		"finnifty":   "FINNIFTY",
	}
	for index, dir := range cases {
		if got := SplitIndexDir(index); got != dir {
			t.Fatalf("SplitIndexDir(%q) = %q, want %q", index, got, dir)
		}
	}
	if got := IndexFromSplitDir("BANKNIFTY"); got != "NIFTY BANK" {
		t.Fatalf("got = %q, want %q", got, "NIFTY BANK")
	}
	if got := IndexFromSplitDir("FINNIFTY"); got != "FINNIFTY" {
		t.Fatalf("unknown dir should pass through, got %q", got)
	}
}

func TestLatestPerSeries(t *testing.T) {
	m := MinuteTotals{
		{ExpiryBucket: "this_week", StrikeOffset: "atm", TimeBucket: "09:15"}: 10,
		{ExpiryBucket: "this_week", StrikeOffset: "atm", TimeBucket: "09:17"}: 30,
		{ExpiryBucket: "this_week", StrikeOffset: "atm", TimeBucket: "09:16"}: 20,
		{ExpiryBucket: "next_week", StrikeOffset: "atm", TimeBucket: "09:15"}: 5,
	}
	latest := m.LatestPerSeries()
	if len(latest) != 2 {
		t.Fatalf("len = %d, want 2", len(latest))
	}
	k := TotalsKey{ExpiryBucket: "this_week", StrikeOffset: "atm", TimeBucket: "09:17"}
	if latest[k] != 30 {
		t.Fatalf("latest this_week/atm = %v, want 30", latest[k])
	}
	k = TotalsKey{ExpiryBucket: "next_week", StrikeOffset: "atm", TimeBucket: "09:15"}
	if latest[k] != 5 {
		t.Fatalf("latest next_week/atm = %v, want 5", latest[k])
	}
}

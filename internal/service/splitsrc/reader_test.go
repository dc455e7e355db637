package splitsrc

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"OptiBase/internal/domain/models"
)

func newTestReader(t *testing.T, root string) *Reader {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	w, err := models.NewSessionWindow("09:15", "15:30")
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	return NewReader(root, loc, w)
}

func writeSplit(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestReadDayTotalsMissingFile(t *testing.T) {
	r := newTestReader(t, t.TempDir())
	totals, stats, err := r.ReadDayTotals(filepath.Join(t.TempDir(), "nope.csv"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(totals) != 0 || stats.Rows != 0 {
		t.Fatalf("expected empty result, got %v %+v", totals, stats)
	}
}

func TestReadDayTotalsLastValueWins(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "day.csv")
	writeSplit(t, path, `ts,total_premium
2025-08-18 09:15:05,100.0
2025-08-18 09:15:40,120.5
2025-08-18 09:16:10,99.0
`)
	r := newTestReader(t, root)
	totals, stats, err := r.ReadDayTotals(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if totals["09:15"] != 120.5 {
		t.Fatalf("09:15 = %v, want 120.5", totals["09:15"])
	}
	if totals["09:16"] != 99.0 {
		t.Fatalf("09:16 = %v, want 99.0", totals["09:16"])
	}
	if stats.Used != 3 {
		t.Fatalf("used = %d, want 3", stats.Used)
	}
}

func TestReadDayTotalsOutOfOrderRows(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "day.csv")
	// Later wall-clock second first in the file; it must still win.
	writeSplit(t, path, `ts,total_premium
2025-08-18 09:15:59,200.0
2025-08-18 09:15:01,100.0
`)
	r := newTestReader(t, root)
	totals, _, err := r.ReadDayTotals(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if totals["09:15"] != 200.0 {
		t.Fatalf("09:15 = %v, want 200.0", totals["09:15"])
	}
}

func TestReadDayTotalsSessionFilter(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "day.csv")
	writeSplit(t, path, `ts,total_premium
2025-08-18 09:14:59,1.0
2025-08-18 09:15:00,2.0
2025-08-18 15:30:00,3.0
2025-08-18 15:30:45,4.0
`)
	r := newTestReader(t, root)
	totals, stats, err := r.ReadDayTotals(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(totals) != 2 {
		t.Fatalf("totals = %v, want 2 buckets", totals)
	}
	if totals["09:15"] != 2.0 || totals["15:30"] != 3.0 {
		t.Fatalf("unexpected totals %v", totals)
	}
	if stats.OutOfSession != 2 {
		t.Fatalf("out_of_session = %d, want 2", stats.OutOfSession)
	}
}

func TestReadDayTotalsAliasesAndLegFallback(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "day.csv")
	// tp_sum empty on the second row; the summed legs must cover it.
	writeSplit(t, path, `ts_ist,tp_sum,call_last_price,put_last_price
2025-08-18 10:00:00,150.5,70.0,80.0
2025-08-18 10:01:00,,70.25,80.25
`)
	r := newTestReader(t, root)
	totals, _, err := r.ReadDayTotals(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if totals["10:00"] != 150.5 {
		t.Fatalf("10:00 = %v, want 150.5", totals["10:00"])
	}
	if totals["10:01"] != 150.5 {
		t.Fatalf("10:01 = %v, want 150.5", totals["10:01"])
	}
}

func TestReadDayTotalsZoneSuffixedTimestamps(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "day.csv")
	// 04:45 UTC is 10:15 in the market zone.
	writeSplit(t, path, `ts,total_premium
2025-08-18T04:45:00Z,55.0
`)
	r := newTestReader(t, root)
	totals, _, err := r.ReadDayTotals(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if totals["10:15"] != 55.0 {
		t.Fatalf("totals = %v, want 10:15 bucket", totals)
	}
}

func TestReadDayTotalsSkipsBadRows(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "day.csv")
	writeSplit(t, path, `ts,total_premium
not-a-time,10.0
2025-08-18 10:00:00,abc
2025-08-18 10:00:00,42.0
`)
	r := newTestReader(t, root)
	totals, stats, err := r.ReadDayTotals(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if totals["10:00"] != 42.0 {
		t.Fatalf("10:00 = %v, want 42.0", totals["10:00"])
	}
	if stats.BadTimestamp != 1 || stats.BadValue != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestIndexDayTotals(t *testing.T) {
	root := t.TempDir()
	writeSplit(t, filepath.Join(root, "NIFTY", "this_week", "atm", "2025-08-18.csv"),
		"ts,total_premium\n2025-08-18 10:00:00,100.0\n")
	writeSplit(t, filepath.Join(root, "NIFTY", "this_week", "atm_p1", "2025-08-18.csv"),
		"ts,total_premium\n2025-08-18 10:00:00,80.0\n")
	r := newTestReader(t, root)

	totals, _ := r.IndexDayTotals("NIFTY 50", "2025-08-18", []string{"this_week"}, []string{"atm", "p1"})
	if len(totals) != 2 {
		t.Fatalf("totals = %v, want 2 entries", totals)
	}
	k := models.TotalsKey{ExpiryBucket: "this_week", StrikeOffset: "atm", TimeBucket: "10:00"}
	if totals[k] != 100.0 {
		t.Fatalf("atm total = %v, want 100.0", totals[k])
	}
	// Legacy offset alias p1 resolves to atm_p1 before the path lookup.
	k = models.TotalsKey{ExpiryBucket: "this_week", StrikeOffset: "atm_p1", TimeBucket: "10:00"}
	if totals[k] != 80.0 {
		t.Fatalf("atm_p1 total = %v, want 80.0", totals[k])
	}
}

func TestRepresentativeStrike(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "day.csv")
	writeSplit(t, path, `ts,total_premium,atm_strike
2025-08-18 10:00:00,100.0,24600
2025-08-18 10:01:00,101.0,24650
`)
	r := newTestReader(t, root)
	strike, ok := r.RepresentativeStrike(path)
	if !ok {
		t.Fatalf("expected a strike")
	}
	if strike != 24650 {
		t.Fatalf("strike = %v, want 24650", strike)
	}
	if _, ok := r.RepresentativeStrike(filepath.Join(root, "missing.csv")); ok {
		t.Fatalf("missing file should have no strike")
	}
}

package usecase

import (
	"context"
	"testing"
)

// 2025-08-18 is a Monday, 2025-08-16 a Saturday.
const (
	monday   = "2025-08-18"
	saturday = "2025-08-16"
)

func newStream(e *env, offsets []string) *StreamUpdater {
	return NewStreamUpdater(e.store, e.split, offsets, StreamOptions{Enabled: true, SummaryOnly: true})
}

func TestStreamMergesOnlyLatestBucket(t *testing.T) {
	e := newEnv(t)
	e.writeSplit(t, "NIFTY", "this_week", "atm", monday, `ts,total_premium
2025-08-18 09:15:10,100
2025-08-18 09:16:10,110
`)
	u := newStream(e, []string{"atm"})

	n, err := u.RunOnce(context.Background(), monday, []string{"NIFTY 50"}, []string{"this_week"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("updated = %d, want 1", n)
	}
	master := e.readMaster(t, "NIFTY 50", "this_week", "atm", "mon")
	if len(master) != 1 {
		t.Fatalf("master buckets = %d, want only the latest", len(master))
	}
	row, ok := master["09:16"]
	if !ok || row.Sum != 110 || row.N != 1 {
		t.Fatalf("unexpected master %+v", master)
	}
}

func TestStreamPassesAccumulate(t *testing.T) {
	e := newEnv(t)
	e.writeSplit(t, "NIFTY", "this_week", "atm", monday,
		"ts,total_premium\n2025-08-18 09:15:10,100\n")
	u := newStream(e, []string{"atm"})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := u.RunOnce(ctx, monday, []string{"NIFTY 50"}, []string{"this_week"}); err != nil {
			t.Fatalf("pass %d: %v", i, err)
		}
	}
	// Minute-grain passes have no ledger guard; the same observation folds twice.
	row := e.readMaster(t, "NIFTY 50", "this_week", "atm", "mon")["09:15"]
	if row.N != 2 || row.Sum != 200 {
		t.Fatalf("row = %+v, want n=2 sum=200", row)
	}
}

func TestStreamDerivesPairsWhenNoDirectSource(t *testing.T) {
	e := newEnv(t)
	e.writeSplit(t, "NIFTY", "this_week", "atm_p1", monday,
		"ts,total_premium\n2025-08-18 10:00:00,12.5\n")
	e.writeSplit(t, "NIFTY", "this_week", "atm_m1", monday,
		"ts,total_premium\n2025-08-18 10:00:00,7.5\n")
	u := newStream(e, []string{"atm_p1", "atm_m1"})

	n, err := u.RunOnce(context.Background(), monday, []string{"NIFTY 50"}, []string{"this_week"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Two base merges plus one derived pair merge.
	if n != 3 {
		t.Fatalf("updated = %d, want 3", n)
	}
	pair := e.readMaster(t, "NIFTY 50", "this_week", "atm_p1m1", "mon")["10:00"]
	if pair.Sum != 10.0 {
		t.Fatalf("derived pair = %+v, want sum 10.0", pair)
	}
}

func TestStreamDirectPairsWin(t *testing.T) {
	e := newEnv(t)
	e.writeSplit(t, "NIFTY", "this_week", "atm_p1", monday,
		"ts,total_premium\n2025-08-18 10:00:00,5\n")
	e.writeSplit(t, "NIFTY", "this_week", "atm_m1", monday,
		"ts,total_premium\n2025-08-18 10:00:00,5\n")
	e.writeSplit(t, "NIFTY", "this_week", "atm_p1m1", monday,
		"ts,total_premium\n2025-08-18 10:00:00,999\n")
	u := newStream(e, []string{"atm_p1", "atm_m1"})

	if _, err := u.RunOnce(context.Background(), monday, []string{"NIFTY 50"}, []string{"this_week"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pair := e.readMaster(t, "NIFTY 50", "this_week", "atm_p1m1", "mon")["10:00"]
	if pair.Sum != 999 {
		t.Fatalf("pair = %+v, want the directly observed 999, not the derived 5", pair)
	}
}

func TestStreamWeekendSkipsBaseKeepsPairs(t *testing.T) {
	e := newEnv(t)
	e.writeSplit(t, "NIFTY", "this_week", "atm_p1", saturday,
		"ts,total_premium\n2025-08-16 10:00:00,20\n")
	e.writeSplit(t, "NIFTY", "this_week", "atm_m1", saturday,
		"ts,total_premium\n2025-08-16 10:00:00,10\n")
	u := newStream(e, []string{"atm_p1", "atm_m1"})

	n, err := u.RunOnce(context.Background(), saturday, []string{"NIFTY 50"}, []string{"this_week"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("updated = %d, want only the pair merge", n)
	}
	if e.masterExists("NIFTY 50", "this_week", "atm_p1", "sat") {
		t.Fatalf("base master written on a weekend")
	}
	pair := e.readMaster(t, "NIFTY 50", "this_week", "atm_p1m1", "sat")["10:00"]
	if pair.Sum != 15 {
		t.Fatalf("pair = %+v, want sum 15", pair)
	}
}

func TestStreamDisabled(t *testing.T) {
	e := newEnv(t)
	e.writeSplit(t, "NIFTY", "this_week", "atm", monday,
		"ts,total_premium\n2025-08-18 09:15:10,100\n")
	u := NewStreamUpdater(e.store, e.split, []string{"atm"}, StreamOptions{Enabled: false})

	n, err := u.RunOnce(context.Background(), monday, []string{"NIFTY 50"}, []string{"this_week"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Fatalf("updated = %d, want 0 when disabled", n)
	}
	if e.masterExists("NIFTY 50", "this_week", "atm", "mon") {
		t.Fatalf("master written while disabled")
	}
}

func TestStreamRejectsMalformedDate(t *testing.T) {
	e := newEnv(t)
	u := newStream(e, []string{"atm"})
	if _, err := u.RunOnce(context.Background(), "18-08-2025", []string{"NIFTY 50"}, []string{"this_week"}); err == nil {
		t.Fatalf("expected error for malformed date")
	}
}

func TestStreamRecordsMetrics(t *testing.T) {
	e := newEnv(t)
	e.writeSplit(t, "NIFTY", "this_week", "atm", monday, `ts,total_premium
2025-08-18 08:00:00,1
2025-08-18 09:15:10,100
`)
	u := newStream(e, []string{"atm"})
	m := newCountingMetrics()
	u.SetMetrics(m)

	if _, err := u.RunOnce(context.Background(), monday, []string{"NIFTY 50"}, []string{"this_week"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.buckets["base"] != 1 {
		t.Fatalf("base merges = %d, want 1", m.buckets["base"])
	}
	if m.rowsSkipped["out_of_session"] != 1 {
		t.Fatalf("out_of_session = %d, want 1", m.rowsSkipped["out_of_session"])
	}
}

package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"OptiBase/internal/domain/models"
)

type fakeClock struct {
	mu  sync.Mutex
	cur time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.cur = c.cur.Add(d)
	c.mu.Unlock()
	return nil
}

type fakeStream struct {
	mu    sync.Mutex
	dates []string
	err   error
}

func (f *fakeStream) RunOnce(ctx context.Context, date string, indices, expiries []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dates = append(f.dates, date)
	return 1, f.err
}

func (f *fakeStream) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.dates)
}

type fakeEOD struct {
	mu    sync.Mutex
	dates []string
	err   error
}

func (f *fakeEOD) Run(ctx context.Context, date string, indices []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dates = append(f.dates, date)
	if f.err != nil {
		return 0, f.err
	}
	return 3, nil
}

func (f *fakeEOD) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.dates)
}

func testOptions(t *testing.T, loc *time.Location, start, end string) Options {
	t.Helper()
	window, err := models.NewSessionWindow(start, end)
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	return Options{
		Location:            loc,
		Window:              window,
		Indices:             []string{"NIFTY 50"},
		Expiries:            []string{"this_week"},
		StorageRoot:         t.TempDir(),
		SplitRoot:           t.TempDir(),
		Preflight:           true,
		Streaming:           true,
		EODEnabled:          true,
		WaitPollMax:         30 * time.Second,
		IdlePoll:            5 * time.Second,
		HelperCheckInterval: 30 * time.Second,
	}
}

func wire(o *Orchestrator, clock *fakeClock) {
	o.now = clock.now
	o.sleep = clock.sleep
	o.sched.now = clock.now
	o.sched.sleep = clock.sleep
}

func TestRunWaitsStreamsAndReconciles(t *testing.T) {
	loc := ist(t)
	clock := &fakeClock{cur: time.Date(2025, 8, 18, 9, 14, 40, 0, loc)}
	stream := &fakeStream{}
	eod := &fakeEOD{}
	o := NewOrchestrator(testOptions(t, loc, "09:15", "09:17"), stream, eod, nil)
	wire(o, clock)

	rc := o.Run(context.Background())
	if rc != ExitOK {
		t.Fatalf("rc = %d, want %d", rc, ExitOK)
	}
	// Boundaries 09:16 and 09:17 fall inside the window; 09:18 is past it.
	if stream.calls() != 2 {
		t.Fatalf("streaming passes = %d, want 2", stream.calls())
	}
	if eod.calls() != 1 {
		t.Fatalf("eod runs = %d, want 1", eod.calls())
	}
	if eod.dates[0] != "2025-08-18" {
		t.Fatalf("eod date = %q, want 2025-08-18", eod.dates[0])
	}
	st := o.Status()
	if st.State != models.StateDone {
		t.Fatalf("state = %q, want %q", st.State, models.StateDone)
	}
	if st.Date != "2025-08-18" || st.Timezone != "Asia/Kolkata" || st.Window != "09:15-09:17" {
		t.Fatalf("status = %+v", st)
	}
	if st.LastTick.Format("15:04") != "09:17" {
		t.Fatalf("last tick = %s, want 09:17", st.LastTick.Format("15:04"))
	}
}

func TestRunInterruptedWhileWaitingSkipsEOD(t *testing.T) {
	loc := ist(t)
	clock := &fakeClock{cur: time.Date(2025, 8, 18, 9, 0, 0, 0, loc)}
	stream := &fakeStream{}
	eod := &fakeEOD{}
	o := NewOrchestrator(testOptions(t, loc, "09:15", "15:30"), stream, eod, nil)
	wire(o, clock)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rc := o.Run(ctx)
	if rc != ExitInterrupted {
		t.Fatalf("rc = %d, want %d", rc, ExitInterrupted)
	}
	if stream.calls() != 0 || eod.calls() != 0 {
		t.Fatalf("interrupted wait still ran work: stream=%d eod=%d", stream.calls(), eod.calls())
	}
	if st := o.Status(); st.State != models.StateDone {
		t.Fatalf("state = %q, want %q", st.State, models.StateDone)
	}
}

func TestRunInterruptDuringSessionStillReconciles(t *testing.T) {
	loc := ist(t)
	clock := &fakeClock{cur: time.Date(2025, 8, 18, 10, 0, 0, 0, loc)}
	eod := &fakeEOD{}
	opts := testOptions(t, loc, "09:15", "15:30")
	opts.Streaming = false
	o := NewOrchestrator(opts, nil, eod, nil)
	wire(o, clock)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rc := o.Run(ctx)
	if rc != ExitOK {
		t.Fatalf("rc = %d, want %d", rc, ExitOK)
	}
	if eod.calls() != 1 {
		t.Fatalf("eod runs = %d, want 1 (interrupt must not skip reconciliation)", eod.calls())
	}
}

func TestRunStartedAfterCloseGoesStraightToEOD(t *testing.T) {
	loc := ist(t)
	clock := &fakeClock{cur: time.Date(2025, 8, 18, 16, 0, 0, 0, loc)}
	stream := &fakeStream{}
	eod := &fakeEOD{}
	o := NewOrchestrator(testOptions(t, loc, "09:15", "15:30"), stream, eod, nil)
	wire(o, clock)

	rc := o.Run(context.Background())
	if rc != ExitOK {
		t.Fatalf("rc = %d, want %d", rc, ExitOK)
	}
	if stream.calls() != 0 {
		t.Fatalf("streaming passes = %d, want 0 after close", stream.calls())
	}
	if eod.calls() != 1 {
		t.Fatalf("eod runs = %d, want 1", eod.calls())
	}
}

func TestRunPreflightFailure(t *testing.T) {
	loc := ist(t)
	clock := &fakeClock{cur: time.Date(2025, 8, 18, 10, 0, 0, 0, loc)}
	eod := &fakeEOD{}
	opts := testOptions(t, loc, "09:15", "15:30")
	// A file where the storage root should be makes the probe fail hard.
	blocker := filepath.Join(t.TempDir(), "occupied")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	opts.StorageRoot = blocker
	o := NewOrchestrator(opts, &fakeStream{}, eod, nil)
	wire(o, clock)

	rc := o.Run(context.Background())
	if rc != ExitFailure {
		t.Fatalf("rc = %d, want %d", rc, ExitFailure)
	}
	if eod.calls() != 0 {
		t.Fatalf("eod ran after failed preflight")
	}
}

func TestRunEODFailureSetsExitCode(t *testing.T) {
	loc := ist(t)
	clock := &fakeClock{cur: time.Date(2025, 8, 18, 16, 0, 0, 0, loc)}
	eod := &fakeEOD{err: errors.New("disk full")}
	o := NewOrchestrator(testOptions(t, loc, "09:15", "15:30"), &fakeStream{}, eod, nil)
	wire(o, clock)

	if rc := o.Run(context.Background()); rc != ExitFailure {
		t.Fatalf("rc = %d, want %d", rc, ExitFailure)
	}
}

func TestRunEODDisabled(t *testing.T) {
	loc := ist(t)
	clock := &fakeClock{cur: time.Date(2025, 8, 18, 16, 0, 0, 0, loc)}
	eod := &fakeEOD{}
	opts := testOptions(t, loc, "09:15", "15:30")
	opts.EODEnabled = false
	o := NewOrchestrator(opts, &fakeStream{}, eod, nil)
	wire(o, clock)

	if rc := o.Run(context.Background()); rc != ExitOK {
		t.Fatalf("rc = %d, want %d", rc, ExitOK)
	}
	if eod.calls() != 0 {
		t.Fatalf("eod ran while disabled")
	}
}

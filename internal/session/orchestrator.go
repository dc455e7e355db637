package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"OptiBase/internal/domain/models"
	svcmetrics "OptiBase/internal/service/metrics"
	applogger "OptiBase/pkg/logger"
)

// Exit codes produced by Run.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitInterrupted = 130
)

// StreamRunner runs one streaming pass for a date.
type StreamRunner interface {
	RunOnce(ctx context.Context, date string, indices, expiries []string) (int, error)
}

// EODRunner reconciles one date after the close.
type EODRunner interface {
	Run(ctx context.Context, date string, indices []string) (int, error)
}

// Options carries the session knobs the orchestrator needs.
type Options struct {
	Location    *time.Location
	Window      models.SessionWindow
	Indices     []string
	Expiries    []string
	StorageRoot string
	SplitRoot   string

	Preflight  bool
	Streaming  bool
	EODEnabled bool

	WaitPollMax         time.Duration
	IdlePoll            time.Duration
	HelperCheckInterval time.Duration
}

// Orchestrator drives one trading session end to end: wait for the open,
// stream (or idle) until the close, then reconcile the day.
type Orchestrator struct {
	opts   Options
	stream StreamRunner
	eod    EODRunner
	helper *Helper
	sched  *Scheduler
	l      *applogger.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu        sync.Mutex
	state     string
	date      string
	lastTick  time.Time
	startedAt time.Time
}

// NewOrchestrator creates a session orchestrator. stream and eod may be nil
// when the corresponding phase is disabled.
func NewOrchestrator(opts Options, stream StreamRunner, eod EODRunner, helper *Helper) *Orchestrator {
	if helper == nil {
		helper = NewHelper("", nil)
	}
	return &Orchestrator{
		opts:   opts,
		stream: stream,
		eod:    eod,
		helper: helper,
		sched:  NewScheduler(opts.Location),
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// SetLogger injects a structured logger into the orchestrator and its
// scheduler.
func (o *Orchestrator) SetLogger(l *applogger.Logger) {
	o.l = l
	o.sched.SetLogger(l)
	o.helper.SetLogger(l)
}

// Run executes the session state machine and returns the process exit code.
// An interrupt while waiting for the open skips reconciliation entirely; an
// interrupt during the session still runs it.
func (o *Orchestrator) Run(ctx context.Context) int {
	start := o.now()
	o.mu.Lock()
	o.startedAt = start
	o.mu.Unlock()
	o.setState(models.StateStarting)

	o.helper.Start()

	if interrupted := o.waitForOpen(ctx); interrupted {
		o.finish(start, false, false, ExitInterrupted)
		return ExitInterrupted
	}

	date := o.now().In(o.opts.Location).Format("2006-01-02")
	o.setDate(date)

	if o.opts.Preflight {
		if err := o.preflight(date); err != nil {
			o.setState(models.StatePreflightFailed)
			if o.l != nil {
				o.l.Error("preflight failed", applogger.Error(err))
			}
			o.finish(start, false, false, ExitFailure)
			return ExitFailure
		}
	}

	o.setState(models.StateActive)
	streaming := o.opts.Streaming && o.stream != nil
	if streaming {
		o.runStreaming(ctx, date)
	} else {
		o.idleLoop(ctx)
	}

	// Reconciliation runs on a fresh context: an interrupt ends the session,
	// not the end-of-day merge.
	rc := ExitOK
	if o.opts.EODEnabled && o.eod != nil {
		o.setState(models.StateEODRun)
		updated, err := o.eod.Run(context.Background(), date, o.opts.Indices)
		if err != nil {
			rc = ExitFailure
			if o.l != nil {
				o.l.Error("end-of-day reconciliation failed", applogger.Error(err))
			}
		} else if o.l != nil {
			o.l.Info("end-of-day reconciliation complete",
				applogger.String("date", date),
				applogger.Int("masters_updated", updated),
			)
		}
	} else if o.l != nil {
		o.l.Info("end-of-day reconciliation disabled")
	}

	o.finish(start, streaming, o.opts.EODEnabled, rc)
	return rc
}

// Status returns a snapshot for the monitor API.
func (o *Orchestrator) Status() models.SessionStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return models.SessionStatus{
		State:       o.state,
		Date:        o.date,
		Timezone:    o.opts.Location.String(),
		Window:      o.opts.Window.String(),
		Streaming:   o.opts.Streaming,
		HelperAlive: o.helper.Alive(),
		StartedAt:   o.startedAt,
		LastTick:    o.lastTick,
	}
}

// waitForOpen blocks in bounded sleeps until the window opens, reporting
// whether the wait was interrupted. Starting inside the window, or after the
// close, returns immediately.
func (o *Orchestrator) waitForOpen(ctx context.Context) bool {
	now := o.now().In(o.opts.Location)
	if o.opts.Window.Contains(now) {
		return false
	}
	secs := o.opts.Window.SecondsUntilStart(now)
	if secs <= 0 {
		return false
	}
	o.setState(models.StateWaitingForOpen)
	if o.l != nil {
		o.l.Info("waiting for market open",
			applogger.Int("seconds", secs),
			applogger.String("window", o.opts.Window.String()),
			applogger.String("tz", o.opts.Location.String()),
		)
	}
	for secs > 0 {
		svcmetrics.SecondsToOpen.Set(float64(secs))
		if o.l != nil {
			o.l.Debug("pre-open heartbeat", applogger.Int("seconds_to_open", secs))
		}
		d := o.opts.WaitPollMax
		if remain := time.Duration(secs) * time.Second; remain < d {
			d = remain
		}
		if err := o.sleep(ctx, d); err != nil {
			if o.l != nil {
				o.l.Warn("interrupted while waiting for open")
			}
			return true
		}
		now = o.now().In(o.opts.Location)
		secs = o.opts.Window.SecondsUntilStart(now)
	}
	svcmetrics.SecondsToOpen.Set(0)
	return false
}

// preflight probes the storage root for writability and reports missing
// split inputs. Only the probe is fatal.
func (o *Orchestrator) preflight(date string) error {
	if err := os.MkdirAll(o.opts.StorageRoot, 0o755); err != nil {
		return fmt.Errorf("storage root: %w", err)
	}
	probe := filepath.Join(o.opts.StorageRoot, ".preflight")
	if err := os.WriteFile(probe, []byte("ok\n"), 0o644); err != nil {
		return fmt.Errorf("storage root not writable: %w", err)
	}
	_ = os.Remove(probe)
	o.reportInputs(date)
	return nil
}

// reportInputs logs the availability of every expected split directory for
// the date. Missing inputs are warnings; the caller keeps going.
func (o *Orchestrator) reportInputs(date string) {
	missing := 0
	for _, index := range o.opts.Indices {
		for _, expiry := range o.opts.Expiries {
			dir := filepath.Join(o.opts.SplitRoot, models.SplitIndexDir(index), expiry)
			if _, err := os.Stat(dir); err != nil {
				missing++
				if o.l != nil {
					o.l.Warn("split source dir missing",
						applogger.String("index", index),
						applogger.String("expiry", expiry),
						applogger.String("dir", dir),
					)
				}
			}
		}
	}
	if o.l == nil {
		return
	}
	if missing == 0 {
		o.l.Info("all split source dirs present", applogger.String("date", date))
	} else {
		o.l.Warn("split sources incomplete",
			applogger.String("date", date),
			applogger.Int("missing", missing),
		)
	}
}

func (o *Orchestrator) runStreaming(ctx context.Context, date string) {
	if o.l != nil {
		o.l.Info("streaming until close", applogger.String("window", o.opts.Window.String()))
	}
	shouldContinue := func(t time.Time) bool { return o.opts.Window.Contains(t) }
	onTick := func(boundary time.Time) error {
		updated, err := o.stream.RunOnce(ctx, date, o.opts.Indices, o.opts.Expiries)
		if err != nil {
			return err
		}
		o.markTick(boundary)
		svcmetrics.MinuteHeartbeats.Inc()
		if o.l != nil {
			o.l.Debug("minute heartbeat",
				applogger.String("boundary", boundary.Format("15:04")),
				applogger.Int("buckets_updated", updated),
			)
		}
		return nil
	}
	if err := o.sched.Run(ctx, shouldContinue, onTick); err != nil {
		if o.l != nil {
			o.l.Warn("session interrupted, proceeding to reconciliation")
		}
	}
}

// idleLoop holds the session open without streaming, keeping the helper
// alive until the window closes.
func (o *Orchestrator) idleLoop(ctx context.Context) {
	if o.l != nil {
		o.l.Info("idle until close", applogger.String("window", o.opts.Window.String()))
	}
	nextCheck := o.now().Add(o.opts.HelperCheckInterval)
	for {
		now := o.now().In(o.opts.Location)
		if !o.opts.Window.Contains(now) {
			return
		}
		if !now.Before(nextCheck) {
			if o.helper.EnsureAlive() {
				svcmetrics.HelperRestarts.Inc()
			}
			nextCheck = now.Add(o.opts.HelperCheckInterval)
		}
		if err := o.sleep(ctx, o.opts.IdlePoll); err != nil {
			if o.l != nil {
				o.l.Warn("session interrupted, proceeding to reconciliation")
			}
			return
		}
	}
}

func (o *Orchestrator) setState(state string) {
	o.mu.Lock()
	prev := o.state
	o.state = state
	o.mu.Unlock()
	if prev != "" {
		svcmetrics.SessionState.WithLabelValues(prev).Set(0)
	}
	svcmetrics.SessionState.WithLabelValues(state).Set(1)
	if o.l != nil {
		o.l.Info("session state", applogger.String("state", state))
	}
}

func (o *Orchestrator) setDate(date string) {
	o.mu.Lock()
	o.date = date
	o.mu.Unlock()
}

func (o *Orchestrator) markTick(boundary time.Time) {
	o.mu.Lock()
	o.lastTick = boundary
	o.mu.Unlock()
}

// finish emits the single summary line and stops the helper.
func (o *Orchestrator) finish(start time.Time, streaming, eodEnabled bool, rc int) {
	o.setState(models.StateDone)
	o.mu.Lock()
	date := o.date
	o.mu.Unlock()
	if date == "" {
		date = o.now().In(o.opts.Location).Format("2006-01-02")
	}
	if o.l != nil {
		o.l.Info("session summary",
			applogger.String("date", date),
			applogger.String("tz", o.opts.Location.String()),
			applogger.String("window", o.opts.Window.String()),
			applogger.Bool("streaming", streaming),
			applogger.Bool("eod", eodEnabled),
			applogger.Int("rc", rc),
			applogger.Int("elapsed_s", int(o.now().Sub(start).Seconds())),
		)
	}
	o.helper.Stop()
}

package usecase

import (
	"context"
	"fmt"
	"strings"

	"OptiBase/internal/domain/models"
	domrepo "OptiBase/internal/domain/repository"
	"OptiBase/internal/service/splitsrc"
	"OptiBase/internal/services/derive"
	applogger "OptiBase/pkg/logger"
	"OptiBase/pkg/util"
)

// StreamOptions tune a StreamUpdater pass.
type StreamOptions struct {
	Enabled     bool
	SummaryOnly bool
	LogTotals   bool
}

// StreamUpdater merges the latest in-session minute of every tracked series
// into its weekday master, once per scheduler tick. Passes are additive and
// deliberately unguarded by the ledger; only the day-grain reconcilers are.
type StreamUpdater struct {
	store   domrepo.MasterStore
	split   *splitsrc.Reader
	metrics domrepo.Metrics
	l       *applogger.Logger
	offsets []string
	opts    StreamOptions
}

func NewStreamUpdater(store domrepo.MasterStore, split *splitsrc.Reader, offsets []string, opts StreamOptions) *StreamUpdater {
	return &StreamUpdater{store: store, split: split, offsets: offsets, opts: opts}
}

// SetLogger injects a structured logger.
func (u *StreamUpdater) SetLogger(l *applogger.Logger) { u.l = l }

// SetMetrics injects the metrics recorder.
func (u *StreamUpdater) SetMetrics(m domrepo.Metrics) { u.metrics = m }

// RunOnce executes one pass for the date across all indices, returning the
// number of buckets merged. Base series update only on trading weekdays;
// pair series update on any day.
func (u *StreamUpdater) RunOnce(ctx context.Context, date string, indices, expiries []string) (int, error) {
	if !u.opts.Enabled {
		if u.l != nil {
			u.l.Debug("streaming disabled, skipping pass")
		}
		return 0, nil
	}
	day, err := util.ParseDate(date)
	if err != nil {
		return 0, fmt.Errorf("parse date %q: %w", date, err)
	}
	weekday := models.WeekdayCode(day)
	tradingDay := models.IsTradingWeekday(weekday)

	updated := 0
	for _, index := range indices {
		if ctx.Err() != nil {
			return updated, ctx.Err()
		}
		n, err := u.runIndex(index, date, weekday, tradingDay, expiries)
		updated += n
		if err != nil {
			return updated, err
		}
	}
	return updated, nil
}

func (u *StreamUpdater) runIndex(index, date, weekday string, tradingDay bool, expiries []string) (int, error) {
	base, baseStats := u.split.IndexDayTotals(index, date, expiries, u.offsets)
	direct, pairStats := u.split.IndexDayTotals(index, date, expiries, models.PairOffsets)
	u.recordReadStats(baseStats, pairStats)

	// Directly observed pair sources win for the whole index; the deriver is
	// only a fallback and the two are never blended.
	pairs := direct
	derived := false
	if len(direct) == 0 {
		pairs = derive.Pairs(base)
		derived = true
	}

	diag := newPassDiag()
	updated := 0
	if tradingDay {
		n, err := u.applyLatest(index, weekday, base.LatestPerSeries(), "base", diag)
		updated += n
		if err != nil {
			return updated, err
		}
	} else if len(base) > 0 && u.l != nil {
		u.l.Debug("base updates skipped on non-trading weekday",
			applogger.String("index", index),
			applogger.String("weekday", weekday),
		)
	}
	n, err := u.applyLatest(index, weekday, pairs.LatestPerSeries(), "pair", diag)
	updated += n
	if err != nil {
		return updated, err
	}

	u.logSummaries(index, date, derived, expiries, diag)
	return updated, nil
}

func (u *StreamUpdater) applyLatest(index, weekday string, latest models.MinuteTotals, kind string, diag *passDiag) (int, error) {
	updated := 0
	for _, key := range latest.SortedKeys() {
		value := latest[key]
		row, err := u.store.ApplyUpdate(models.AggregationKey{
			Index:        index,
			ExpiryBucket: key.ExpiryBucket,
			StrikeOffset: key.StrikeOffset,
			Weekday:      weekday,
		}, key.TimeBucket, value)
		if err != nil {
			if u.metrics != nil {
				u.metrics.RecordMergeError(kind)
			}
			return updated, fmt.Errorf("merge %s %s/%s/%s@%s: %w",
				kind, index, key.ExpiryBucket, key.StrikeOffset, key.TimeBucket, err)
		}
		updated++
		diag.note(key, kind, value)
		if u.metrics != nil {
			u.metrics.RecordBucketUpdated(index, key.ExpiryBucket, kind)
		}
		if !u.opts.SummaryOnly && u.l != nil {
			u.l.Info("bucket merged",
				applogger.String("index", index),
				applogger.String("expiry", key.ExpiryBucket),
				applogger.String("offset", key.StrikeOffset),
				applogger.String("bucket", key.TimeBucket),
				applogger.String("kind", kind),
				applogger.Float64("value", value),
				applogger.Int64("n", row.N),
			)
		}
	}
	return updated, nil
}

func (u *StreamUpdater) logSummaries(index, date string, derived bool, expiries []string, diag *passDiag) {
	if u.l == nil {
		return
	}
	for _, expiry := range expiries {
		d := diag.byExpiry[expiry]
		if d == nil {
			u.l.Debug("no in-session data yet",
				applogger.String("index", index),
				applogger.String("expiry", expiry),
			)
			continue
		}
		fields := []applogger.Field{
			applogger.String("index", index),
			applogger.String("expiry", expiry),
			applogger.String("bucket", d.lastBucket),
			applogger.Int("base_updates", d.base),
			applogger.Int("pair_updates", d.pairs),
			applogger.Bool("derived_pairs", derived),
			applogger.String("ladder", formatLadder(u.split.StrikeLadder(index, date, expiry, u.offsets))),
		}
		if u.opts.LogTotals {
			fields = append(fields, applogger.Any("totals", d.totals))
		}
		u.l.Info("stream pass", fields...)
	}
}

func (u *StreamUpdater) recordReadStats(stats ...splitsrc.ReadStats) {
	if u.metrics == nil {
		return
	}
	for _, s := range stats {
		u.metrics.RecordSourceRowsSkipped("bad_timestamp", s.BadTimestamp)
		u.metrics.RecordSourceRowsSkipped("bad_value", s.BadValue)
		u.metrics.RecordSourceRowsSkipped("out_of_session", s.OutOfSession)
	}
}

type expiryDiag struct {
	base       int
	pairs      int
	lastBucket string
	totals     map[string]float64
}

type passDiag struct {
	byExpiry map[string]*expiryDiag
}

func newPassDiag() *passDiag {
	return &passDiag{byExpiry: make(map[string]*expiryDiag)}
}

func (d *passDiag) note(key models.TotalsKey, kind string, value float64) {
	e := d.byExpiry[key.ExpiryBucket]
	if e == nil {
		e = &expiryDiag{totals: make(map[string]float64)}
		d.byExpiry[key.ExpiryBucket] = e
	}
	if kind == "base" {
		e.base++
	} else {
		e.pairs++
	}
	if key.TimeBucket > e.lastBucket {
		e.lastBucket = key.TimeBucket
	}
	e.totals[key.StrikeOffset] = value
}

func formatLadder(ladder []splitsrc.OffsetStrike) string {
	parts := make([]string, 0, len(ladder))
	for _, rung := range ladder {
		if rung.OK {
			parts = append(parts, fmt.Sprintf("%s=%g", rung.Offset, rung.Strike))
		} else {
			parts = append(parts, rung.Offset+"=?")
		}
	}
	return strings.Join(parts, " ")
}

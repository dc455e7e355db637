package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"OptiBase/internal/domain/models"
	domrepo "OptiBase/internal/domain/repository"
	"OptiBase/internal/service/legsrc"
	applogger "OptiBase/pkg/logger"
	"OptiBase/pkg/util"
)

// RawReconciler rebuilds masters for one date straight from raw option-chain
// files. Unlike the split scan it merges every surviving row individually: a
// minute observed k times contributes k observations.
type RawReconciler struct {
	store   domrepo.MasterStore
	ledger  domrepo.Ledger
	legs    *legsrc.Reader
	mirror  domrepo.Mirror
	metrics domrepo.Metrics
	l       *applogger.Logger
	window  models.SessionWindow
}

func NewRawReconciler(store domrepo.MasterStore, ledger domrepo.Ledger, legs *legsrc.Reader, window models.SessionWindow) *RawReconciler {
	return &RawReconciler{store: store, ledger: ledger, legs: legs, window: window}
}

// SetLogger injects a structured logger.
func (r *RawReconciler) SetLogger(l *applogger.Logger) { r.l = l }

// SetMetrics injects the metrics recorder.
func (r *RawReconciler) SetMetrics(m domrepo.Metrics) { r.metrics = m }

// SetMirror attaches an analytics mirror for freshly merged rows.
func (r *RawReconciler) SetMirror(m domrepo.Mirror) { r.mirror = m }

// Run reconciles one date for the given indices, expiries, and offsets,
// returning the count of masters that absorbed at least one row. Every
// non-skipped key is rewritten and ledgered even when nothing matched, so a
// re-run stays a no-op. Dry runs read and report but never write.
func (r *RawReconciler) Run(ctx context.Context, date string, indices, expiries, offsets []string, dryRun bool) (int, error) {
	day, err := util.ParseDate(date)
	if err != nil {
		return 0, fmt.Errorf("parse date %q: %w", date, err)
	}
	weekday := models.WeekdayCode(day)

	updated, processed, skipped := 0, 0, 0
	for _, index := range indices {
		for _, expiry := range expiries {
			if ctx.Err() != nil {
				return updated, ctx.Err()
			}
			path, err := r.legs.PathFor(expiry, index, date)
			if err != nil {
				if r.l != nil {
					r.l.Warn("raw source not configured",
						applogger.String("index", index),
						applogger.String("expiry", expiry),
						applogger.Error(err),
					)
				}
				continue
			}
			records, stats, err := r.legs.ReadDay(path)
			if err != nil {
				if r.l != nil {
					r.l.Warn("raw file unreadable, skipping",
						applogger.String("path", path),
						applogger.Error(err),
					)
				}
				continue
			}
			r.recordReadStats(stats)
			if len(records) == 0 {
				if r.l != nil {
					r.l.Debug("no raw rows for date",
						applogger.String("path", path),
						applogger.String("date", date),
					)
				}
				continue
			}
			for _, offset := range offsets {
				key := models.AggregationKey{
					Index:        index,
					ExpiryBucket: strings.ToLower(expiry),
					StrikeOffset: models.NormalizeOffset(offset),
					Weekday:      weekday,
				}
				rows, skip, err := r.reconcileKey(ctx, key, date, records, dryRun)
				if err != nil {
					return updated, err
				}
				if skip {
					skipped++
					continue
				}
				processed++
				if rows > 0 {
					updated++
				}
			}
		}
	}
	if r.l != nil {
		r.l.Info("raw reconciliation complete",
			applogger.String("date", date),
			applogger.Int("masters_updated", updated),
			applogger.Int("keys_processed", processed),
			applogger.Int("ledger_skips", skipped),
			applogger.Bool("dry_run", dryRun),
		)
	}
	return updated, nil
}

func (r *RawReconciler) reconcileKey(ctx context.Context, key models.AggregationKey, date string, records []models.LegRecord, dryRun bool) (int, bool, error) {
	masterPath := r.store.Path(key)
	seen, err := r.ledger.Contains(masterPath, date)
	if err != nil {
		return 0, false, fmt.Errorf("ledger check %s: %w", masterPath, err)
	}
	if seen {
		if r.l != nil {
			r.l.Info("date already reconciled, skipping",
				applogger.String("master", masterPath),
				applogger.String("date", date),
			)
		}
		if r.metrics != nil {
			r.metrics.RecordLedgerSkip(key.Index, key.ExpiryBucket)
		}
		return 0, true, nil
	}

	buckets, err := r.store.Read(key)
	if err != nil {
		return 0, false, err
	}
	now := time.Now()
	outOfSession := 0
	touched := make(map[string]struct{})
	for _, rec := range records {
		if !strings.EqualFold(rec.Index, key.Index) {
			continue
		}
		if rec.ExpiryBucket != key.ExpiryBucket {
			continue
		}
		if models.NormalizeOffset(rec.StrikeOffset) != key.StrikeOffset {
			continue
		}
		if !r.window.Contains(rec.TS) {
			outOfSession++
			continue
		}
		tb := rec.TS.Format("15:04")
		buckets.Merge(tb, rec.TotalPremium(), now)
		touched[tb] = struct{}{}
		if r.metrics != nil {
			r.metrics.RecordBucketUpdated(key.Index, key.ExpiryBucket, "raw")
		}
	}
	if r.metrics != nil {
		r.metrics.RecordSourceRowsSkipped("out_of_session", outOfSession)
	}

	if dryRun {
		if r.l != nil {
			r.l.Info("dry run, not writing",
				applogger.String("master", masterPath),
				applogger.Int("buckets", len(touched)),
			)
		}
		return len(touched), false, nil
	}
	if err := r.store.WriteAll(key, buckets); err != nil {
		if r.metrics != nil {
			r.metrics.RecordMergeError("raw")
		}
		return 0, false, err
	}
	if err := r.ledger.Record(masterPath, date); err != nil {
		return len(touched), false, err
	}
	if r.mirror != nil && len(touched) > 0 {
		rows := make([]models.MasterRow, 0, len(touched))
		for tb := range touched {
			rows = append(rows, buckets[tb])
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].TimeBucket < rows[j].TimeBucket })
		// Mirror failures are logged, never fatal: the masters on disk stay
		// the source of truth.
		if err := r.mirror.WriteUpdates(ctx, key, date, rows); err != nil {
			if r.l != nil {
				r.l.Warn("mirror write failed",
					applogger.String("master", masterPath),
					applogger.Error(err),
				)
			}
		}
	}
	return len(touched), false, nil
}

func (r *RawReconciler) recordReadStats(s legsrc.ReadStats) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordSourceRowsSkipped("bad_timestamp", s.BadTimestamp)
	r.metrics.RecordSourceRowsSkipped("missing_leg", s.MissingLeg)
}

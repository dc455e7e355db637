package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"OptiBase/internal/domain/models"
	domrepo "OptiBase/internal/domain/repository"
	"OptiBase/internal/service/splitsrc"
	"OptiBase/internal/services/derive"
	applogger "OptiBase/pkg/logger"
	"OptiBase/pkg/util"
)

// BulkReconciler is the end-of-day split-scan path: it folds one date's daily
// split files into their weekday masters, at most once per (master, date).
type BulkReconciler struct {
	store     domrepo.MasterStore
	ledger    domrepo.Ledger
	split     *splitsrc.Reader
	metrics   domrepo.Metrics
	l         *applogger.Logger
	splitRoot string
}

func NewBulkReconciler(store domrepo.MasterStore, ledger domrepo.Ledger, split *splitsrc.Reader, splitRoot string) *BulkReconciler {
	return &BulkReconciler{store: store, ledger: ledger, split: split, splitRoot: splitRoot}
}

// SetLogger injects a structured logger.
func (b *BulkReconciler) SetLogger(l *applogger.Logger) { b.l = l }

// SetMetrics injects the metrics recorder.
func (b *BulkReconciler) SetMetrics(m domrepo.Metrics) { b.metrics = m }

// Run reconciles one date. An empty indices list means every index directory
// found under the split root. Returns the number of master files updated;
// skipped files and unreadable sources never fail the run, write errors do.
func (b *BulkReconciler) Run(ctx context.Context, date string, indices []string) (int, error) {
	day, err := util.ParseDate(date)
	if err != nil {
		return 0, fmt.Errorf("parse date %q: %w", date, err)
	}
	weekday := models.WeekdayCode(day)

	dirs, err := b.indexDirs(indices)
	if err != nil {
		return 0, err
	}

	updated, skipped := 0, 0
	for _, dir := range dirs {
		if ctx.Err() != nil {
			return updated, ctx.Err()
		}
		n, s, err := b.runIndexDir(dir, date, weekday)
		updated += n
		skipped += s
		if err != nil {
			return updated, err
		}
	}
	if b.l != nil {
		b.l.Info("bulk reconciliation complete",
			applogger.String("date", date),
			applogger.Int("masters_updated", updated),
			applogger.Int("ledger_skips", skipped),
		)
	}
	return updated, nil
}

func (b *BulkReconciler) indexDirs(indices []string) ([]string, error) {
	if len(indices) > 0 {
		dirs := make([]string, 0, len(indices))
		for _, index := range indices {
			dirs = append(dirs, models.SplitIndexDir(index))
		}
		return dirs, nil
	}
	entries, err := os.ReadDir(b.splitRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan split root: %w", err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			dirs = append(dirs, e.Name())
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

// runIndexDir gathers the date's day-series for every (expiry, offset) under
// one index directory, derives pair series when the index had no direct pair
// files, and merges each series into its master behind the ledger guard.
func (b *BulkReconciler) runIndexDir(dir, date, weekday string) (int, int, error) {
	index := models.IndexFromSplitDir(dir)
	expiries, err := subdirs(filepath.Join(b.splitRoot, dir))
	if err != nil {
		return 0, 0, err
	}

	// expiry -> offset -> bucket -> total
	series := make(map[string]map[string]map[string]float64)
	directPairs := false
	for _, expiry := range expiries {
		offsets, err := subdirs(filepath.Join(b.splitRoot, dir, expiry))
		if err != nil {
			return 0, 0, err
		}
		for _, offset := range offsets {
			norm := models.NormalizeOffset(offset)
			daily := filepath.Join(b.splitRoot, dir, expiry, offset, date+".csv")
			if _, err := os.Stat(daily); err != nil {
				continue
			}
			totals, stats, err := b.split.ReadDayTotals(daily)
			b.recordReadStats(stats)
			if err != nil {
				if b.l != nil {
					b.l.Warn("daily split file unreadable, skipping",
						applogger.String("path", daily),
						applogger.Error(err),
					)
				}
				continue
			}
			if len(totals) == 0 {
				continue
			}
			if series[expiry] == nil {
				series[expiry] = make(map[string]map[string]float64)
			}
			series[expiry][norm] = totals
			if models.IsPairOffset(norm) {
				directPairs = true
			}
		}
	}

	// Pair series are derived only when the whole index had no direct pair
	// files for the date; observed and derived pairs never mix.
	if !directPairs {
		for expiry, byOffset := range series {
			for offset, totals := range derive.PairsByBucket(byOffset) {
				series[expiry][offset] = totals
			}
		}
	}

	updated, skipped := 0, 0
	for _, expiry := range sortedKeys(series) {
		byOffset := series[expiry]
		for _, offset := range sortedKeys(byOffset) {
			key := models.AggregationKey{
				Index:        index,
				ExpiryBucket: expiry,
				StrikeOffset: offset,
				Weekday:      weekday,
			}
			wrote, skip, err := b.reconcileSeries(key, date, byOffset[offset])
			if skip {
				skipped++
			}
			if wrote {
				updated++
			}
			if err != nil {
				return updated, skipped, err
			}
		}
	}
	return updated, skipped, nil
}

// reconcileSeries merges one day-series into its master with a single write,
// then records the date. The ledger check makes re-runs byte-level no-ops.
func (b *BulkReconciler) reconcileSeries(key models.AggregationKey, date string, totals map[string]float64) (bool, bool, error) {
	masterPath := b.store.Path(key)
	seen, err := b.ledger.Contains(masterPath, date)
	if err != nil {
		return false, false, fmt.Errorf("ledger check %s: %w", masterPath, err)
	}
	if seen {
		if b.l != nil {
			b.l.Info("date already reconciled, skipping",
				applogger.String("master", masterPath),
				applogger.String("date", date),
			)
		}
		if b.metrics != nil {
			b.metrics.RecordLedgerSkip(key.Index, key.ExpiryBucket)
		}
		return false, true, nil
	}

	buckets, err := b.store.Read(key)
	if err != nil {
		return false, false, err
	}
	kind := "base"
	if models.IsPairOffset(key.StrikeOffset) {
		kind = "pair"
	}
	now := time.Now()
	for _, tb := range sortedKeys(totals) {
		buckets.Merge(tb, totals[tb], now)
		if b.metrics != nil {
			b.metrics.RecordBucketUpdated(key.Index, key.ExpiryBucket, kind)
		}
	}
	if err := b.store.WriteAll(key, buckets); err != nil {
		if b.metrics != nil {
			b.metrics.RecordMergeError("bulk")
		}
		return false, false, err
	}
	if err := b.ledger.Record(masterPath, date); err != nil {
		return true, false, err
	}
	if b.l != nil {
		b.l.Info("master reconciled",
			applogger.String("master", masterPath),
			applogger.String("date", date),
			applogger.Int("buckets", len(totals)),
		)
	}
	return true, false, nil
}

func (b *BulkReconciler) recordReadStats(s splitsrc.ReadStats) {
	if b.metrics == nil {
		return
	}
	b.metrics.RecordSourceRowsSkipped("bad_timestamp", s.BadTimestamp)
	b.metrics.RecordSourceRowsSkipped("bad_value", s.BadValue)
	b.metrics.RecordSourceRowsSkipped("out_of_session", s.OutOfSession)
}

func subdirs(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			dirs = append(dirs, e.Name())
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

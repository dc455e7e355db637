package usecase

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"OptiBase/internal/domain/models"
	"OptiBase/internal/repository"
	"OptiBase/internal/service/splitsrc"
)

// countingMetrics is a test double for the domain Metrics interface.
type countingMetrics struct {
	mu          sync.Mutex
	buckets     map[string]int
	mergeErrors int
	ledgerSkips int
	rowsSkipped map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{buckets: map[string]int{}, rowsSkipped: map[string]int{}}
}

func (m *countingMetrics) RecordBucketUpdated(index, expiry, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets[kind]++
}

func (m *countingMetrics) RecordMergeError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mergeErrors++
}

func (m *countingMetrics) RecordLedgerSkip(index, expiry string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledgerSkips++
}

func (m *countingMetrics) RecordSourceRowsSkipped(reason string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rowsSkipped[reason] += n
}

func (m *countingMetrics) RecordWriteLatency(seconds float64) {}

// captureMirror records every WriteUpdates call.
type captureMirror struct {
	keys []models.AggregationKey
	rows [][]models.MasterRow
	err  error
}

func (m *captureMirror) WriteUpdates(ctx context.Context, key models.AggregationKey, date string, rows []models.MasterRow) error {
	m.keys = append(m.keys, key)
	m.rows = append(m.rows, rows)
	return m.err
}

func (m *captureMirror) Health(ctx context.Context) error { return nil }
func (m *captureMirror) Close() error                     { return nil }

type env struct {
	root      string
	splitRoot string
	store     *repository.FileMasterStore
	ledger    *repository.FileLedger
	split     *splitsrc.Reader
	window    models.SessionWindow
	loc       *time.Location
}

func newEnv(t *testing.T) *env {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	window, err := models.NewSessionWindow("09:15", "15:30")
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	root := t.TempDir()
	splitRoot := filepath.Join(root, "mirror_split")
	return &env{
		root:      root,
		splitRoot: splitRoot,
		store:     repository.NewFileMasterStore(root, true),
		ledger:    repository.NewFileLedger(),
		split:     splitsrc.NewReader(splitRoot, loc, window),
		window:    window,
		loc:       loc,
	}
}

// writeSplit drops a daily split file at its tree position. indexDir is the
// directory form (NIFTY, BANKNIFTY), not the canonical index name.
func (e *env) writeSplit(t *testing.T, indexDir, expiry, offset, date, body string) {
	t.Helper()
	path := filepath.Join(e.splitRoot, indexDir, expiry, offset, date+".csv")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write split: %v", err)
	}
}

func (e *env) key(index, expiry, offset, weekday string) models.AggregationKey {
	return models.AggregationKey{Index: index, ExpiryBucket: expiry, StrikeOffset: offset, Weekday: weekday}
}

func (e *env) readMaster(t *testing.T, index, expiry, offset, weekday string) models.MasterBuckets {
	t.Helper()
	buckets, err := e.store.Read(e.key(index, expiry, offset, weekday))
	if err != nil {
		t.Fatalf("read master: %v", err)
	}
	return buckets
}

func (e *env) masterExists(index, expiry, offset, weekday string) bool {
	_, err := os.Stat(e.store.Path(e.key(index, expiry, offset, weekday)))
	return err == nil
}

func (e *env) masterBytes(t *testing.T, index, expiry, offset, weekday string) []byte {
	t.Helper()
	b, err := os.ReadFile(e.store.Path(e.key(index, expiry, offset, weekday)))
	if err != nil {
		t.Fatalf("read master file: %v", err)
	}
	return b
}

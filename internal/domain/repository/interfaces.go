package repository

import (
	"context"

	"OptiBase/internal/domain/models"
)

// MasterStore persists weekday master files.
type MasterStore interface {
	// Path returns the file backing a key; usable as a ledger anchor.
	Path(key models.AggregationKey) string
	// Read loads a master, returning an empty set when the file is absent.
	Read(key models.AggregationKey) (models.MasterBuckets, error)
	// ApplyUpdate merges one observation and rewrites the master.
	ApplyUpdate(key models.AggregationKey, bucket string, value float64) (models.MasterRow, error)
	// WriteAll rewrites the master from the given state.
	WriteAll(key models.AggregationKey, buckets models.MasterBuckets) error
}

// Ledger records which dates have already been folded into a master file.
type Ledger interface {
	Contains(masterPath, date string) (bool, error)
	Record(masterPath, date string) error
}

// Mirror ships freshly merged rows to an external analytics store.
type Mirror interface {
	WriteUpdates(ctx context.Context, key models.AggregationKey, date string, rows []models.MasterRow) error
	Health(ctx context.Context) error
	Close() error
}

// Metrics records aggregation-side observability signals.
type Metrics interface {
	RecordBucketUpdated(index, expiry, kind string)
	RecordMergeError(kind string)
	RecordLedgerSkip(index, expiry string)
	RecordSourceRowsSkipped(reason string, n int)
	RecordWriteLatency(seconds float64)
}

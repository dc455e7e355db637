package repository

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"OptiBase/internal/domain/models"
	domrepo "OptiBase/internal/domain/repository"
	"OptiBase/pkg/fsio"
	applogger "OptiBase/pkg/logger"
)

// masterHeader is the persisted schema of a weekday master file.
var masterHeader = []string{"time_bucket", "n", "sum", "avg", "min", "max", "last_updated"}

// FileMasterStore implements MasterStore on a directory tree of CSV files:
// {root}/weekday_masters/{index}/{expiry}/{offset}/{weekday}.csv.
// It assumes a single writer per master file; writers serialize externally.
type FileMasterStore struct {
	root    string
	atomic  bool
	l       *applogger.Logger
	metrics domrepo.Metrics
}

func NewFileMasterStore(root string, atomicWrites bool) *FileMasterStore {
	return &FileMasterStore{root: root, atomic: atomicWrites}
}

// SetLogger injects a structured logger.
func (s *FileMasterStore) SetLogger(l *applogger.Logger) { s.l = l }

// SetMetrics injects the metrics recorder.
func (s *FileMasterStore) SetMetrics(m domrepo.Metrics) { s.metrics = m }

func (s *FileMasterStore) Path(key models.AggregationKey) string {
	return filepath.Join(s.root, "weekday_masters", key.Index, key.ExpiryBucket, key.StrikeOffset, key.Weekday+".csv")
}

func (s *FileMasterStore) Read(key models.AggregationKey) (models.MasterBuckets, error) {
	path := s.Path(key)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.MasterBuckets{}, nil
		}
		return nil, fmt.Errorf("open master: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read master %s: %w", path, err)
	}

	buckets := models.MasterBuckets{}
	bad := 0
	for i, rec := range records {
		if i == 0 && len(rec) > 0 && rec[0] == "time_bucket" {
			continue
		}
		row, ok := parseMasterRow(rec)
		if !ok {
			bad++
			continue
		}
		buckets[row.TimeBucket] = row
	}
	if bad > 0 && s.l != nil {
		s.l.Warn("malformed master rows skipped",
			applogger.String("path", path),
			applogger.Int("rows", bad),
		)
	}
	return buckets, nil
}

func (s *FileMasterStore) ApplyUpdate(key models.AggregationKey, bucket string, value float64) (models.MasterRow, error) {
	buckets, err := s.Read(key)
	if err != nil {
		return models.MasterRow{}, err
	}
	row := buckets.Merge(bucket, value, time.Now())
	if err := s.WriteAll(key, buckets); err != nil {
		return models.MasterRow{}, err
	}
	return row, nil
}

func (s *FileMasterStore) WriteAll(key models.AggregationKey, buckets models.MasterBuckets) error {
	data, err := encodeMaster(buckets)
	if err != nil {
		return fmt.Errorf("encode master: %w", err)
	}
	path := s.Path(key)
	start := time.Now()
	if s.atomic {
		err = fsio.WriteFileAtomic(path, data)
	} else {
		err = fsio.WriteFileDirect(path, data)
	}
	if s.metrics != nil {
		s.metrics.RecordWriteLatency(time.Since(start).Seconds())
	}
	if errors.Is(err, fsio.ErrFallbackWrite) {
		if s.l != nil {
			s.l.Warn("master written without rename", applogger.String("path", path), applogger.Error(err))
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("write master %s: %w", path, err)
	}
	return nil
}

func parseMasterRow(rec []string) (models.MasterRow, bool) {
	if len(rec) < 7 || rec[0] == "" {
		return models.MasterRow{}, false
	}
	n, err := strconv.ParseInt(rec[1], 10, 64)
	if err != nil || n < 1 {
		return models.MasterRow{}, false
	}
	vals := make([]float64, 4)
	for i, idx := range []int{2, 3, 4, 5} {
		v, err := strconv.ParseFloat(rec[idx], 64)
		if err != nil {
			return models.MasterRow{}, false
		}
		vals[i] = v
	}
	// last_updated is informational; a bad stamp should not drop the stats.
	updated, _ := time.Parse(time.RFC3339, rec[6])
	return models.MasterRow{
		TimeBucket:  rec[0],
		N:           n,
		Sum:         vals[0],
		Avg:         vals[1],
		Min:         vals[2],
		Max:         vals[3],
		LastUpdated: updated,
	}, true
}

func encodeMaster(buckets models.MasterBuckets) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(masterHeader); err != nil {
		return nil, err
	}
	for _, row := range buckets.Sorted() {
		rec := []string{
			row.TimeBucket,
			strconv.FormatInt(row.N, 10),
			formatStat(row.Sum),
			formatStat(row.Avg),
			formatStat(row.Min),
			formatStat(row.Max),
			row.LastUpdated.UTC().Format(time.RFC3339),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// formatStat keeps the persisted numeric precision stable at 6 decimals.
func formatStat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

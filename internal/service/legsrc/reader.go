package legsrc

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"OptiBase/internal/domain/models"
	applogger "OptiBase/pkg/logger"
	"OptiBase/pkg/util"
)

// Column aliases accepted in raw option-chain CSVs.
var tsAliases = []string{"ts", "ts_ist", "timestamp"}

const (
	colIndex  = "index"
	colExpiry = "expiry_code"
	colOffset = "strike_offset"
	colCall   = "ce_ltp"
	colPut    = "pe_ltp"
)

// ReadStats counts what happened to the rows of one raw file.
type ReadStats struct {
	Rows         int
	Used         int
	BadTimestamp int
	MissingLeg   int
}

// Reader loads raw per-leg rows from expiry-keyed root directories.
type Reader struct {
	roots   map[string]string
	pattern string
	loc     *time.Location
	l       *applogger.Logger
}

func NewReader(roots map[string]string, pattern string, loc *time.Location) *Reader {
	return &Reader{roots: roots, pattern: pattern, loc: loc}
}

// SetLogger injects a structured logger.
func (r *Reader) SetLogger(l *applogger.Logger) { r.l = l }

// PathFor resolves the raw daily file for an expiry bucket. Unknown buckets
// are a configuration problem, not a missing-data one.
func (r *Reader) PathFor(expiry, index, date string) (string, error) {
	root, ok := r.roots[expiry]
	if !ok || root == "" {
		return "", fmt.Errorf("no raw root configured for expiry %q", expiry)
	}
	rel := strings.NewReplacer(
		"{index}", models.SplitIndexDir(index),
		"{date}", date,
	).Replace(r.pattern)
	return filepath.Join(root, rel), nil
}

// ReadDay loads every raw row with both legs present. Timestamps are anchored
// to the market timezone; naive values are taken as market wall clock. A
// missing file yields no records and no error.
func (r *Reader) ReadDay(path string) ([]models.LegRecord, ReadStats, error) {
	var stats ReadStats
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, stats, nil
		}
		return nil, stats, fmt.Errorf("open raw csv: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, stats, nil
		}
		return nil, stats, fmt.Errorf("read raw csv header: %w", err)
	}

	tsIdx := -1
	for _, alias := range tsAliases {
		if i := columnIndex(header, alias); i >= 0 {
			tsIdx = i
			break
		}
	}
	idxIdx := columnIndex(header, colIndex)
	expIdx := columnIndex(header, colExpiry)
	offIdx := columnIndex(header, colOffset)
	callIdx := columnIndex(header, colCall)
	putIdx := columnIndex(header, colPut)
	if tsIdx < 0 || callIdx < 0 || putIdx < 0 {
		if r.l != nil {
			r.l.Warn("raw csv missing expected columns", applogger.String("path", path))
		}
		return nil, stats, nil
	}

	var records []models.LegRecord
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if _, ok := err.(*csv.ParseError); ok {
				stats.MissingLeg++
				continue
			}
			return nil, stats, fmt.Errorf("read raw csv: %w", err)
		}
		stats.Rows++
		ts, ok := util.ParseTimeIn(field(rec, tsIdx), r.loc)
		if !ok {
			stats.BadTimestamp++
			continue
		}
		call, err1 := strconv.ParseFloat(field(rec, callIdx), 64)
		put, err2 := strconv.ParseFloat(field(rec, putIdx), 64)
		if err1 != nil || err2 != nil {
			stats.MissingLeg++
			continue
		}
		records = append(records, models.LegRecord{
			TS:           ts,
			Index:        field(rec, idxIdx),
			ExpiryBucket: strings.ToLower(field(rec, expIdx)),
			StrikeOffset: field(rec, offIdx),
			CallLTP:      call,
			PutLTP:       put,
		})
		stats.Used++
	}
	return records, stats, nil
}

func columnIndex(header []string, name string) int {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

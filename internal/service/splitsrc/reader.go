package splitsrc

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

const (
	readAttempts = 3
	readBackoff  = 150 * time.Millisecond
)

// Column aliases accepted in split CSVs, in precedence order.
var (
	tsAliases      = []string{"ts", "ts_ist", "timestamp"}
	premiumAliases = []string{"total_premium", "tp_sum"}
	strikeAliases  = []string{"atm_strike", "strike", "call_strike", "put_strike"}
)

const (
	colCallPrice = "call_last_price"
	colPutPrice  = "put_last_price"
)

// ReadStats counts what happened to the rows of one or more split files.
type ReadStats struct {
	Rows         int
	Used         int
	BadTimestamp int
	BadValue     int
	OutOfSession int
	Retries      int
}

// Add folds another file's stats into s.
func (s *ReadStats) Add(o ReadStats) {
	s.Rows += o.Rows
	s.Used += o.Used
	s.BadTimestamp += o.BadTimestamp
	s.BadValue += o.BadValue
	s.OutOfSession += o.OutOfSession
	s.Retries += o.Retries
}

// OffsetStrike is one rung of the strike ladder for diagnostics.
type OffsetStrike struct {
	Offset string
	Strike float64
	OK     bool
}

// Reader loads per-minute premium totals from the split CSV tree:
// {split_root}/{index_dir}/{expiry}/{offset}/{date}.csv.
type Reader struct {
	root   string
	loc    *time.Location
	window models.SessionWindow
	l      *applogger.Logger
}

func NewReader(root string, loc *time.Location, window models.SessionWindow) *Reader {
	return &Reader{root: root, loc: loc, window: window}
}

// SetLogger injects a structured logger.
func (r *Reader) SetLogger(l *applogger.Logger) { r.l = l }

// PathFor returns the daily split file backing (index, expiry, offset, date).
func (r *Reader) PathFor(index, expiry, offset, date string) string {
	return filepath.Join(r.root, models.SplitIndexDir(index), expiry, offset, date+".csv")
}

// ReadDayTotals reads one daily split file into per-minute totals. Within a
// minute the last observation by timestamp wins. A missing file contributes
// nothing and is not an error.
func (r *Reader) ReadDayTotals(path string) (map[string]float64, ReadStats, error) {
	var stats ReadStats
	f, retries, err := r.openWithRetry(path)
	stats.Retries = retries
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]float64{}, stats, nil
		}
		return nil, stats, fmt.Errorf("open split csv: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return map[string]float64{}, stats, nil
		}
		return nil, stats, fmt.Errorf("read split csv header: %w", err)
	}
	cols := resolveColumns(header)
	if cols.ts < 0 || !cols.hasPremium() {
		if r.l != nil {
			r.l.Warn("split csv missing expected columns", applogger.String("path", path))
		}
		return map[string]float64{}, stats, nil
	}

	type obs struct {
		at    time.Time
		value float64
	}
	latest := make(map[string]obs)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if _, ok := err.(*csv.ParseError); ok {
				stats.BadValue++
				continue
			}
			return nil, stats, fmt.Errorf("read split csv: %w", err)
		}
		stats.Rows++
		t, ok := util.ParseTimeIn(field(rec, cols.ts), r.loc)
		if !ok {
			stats.BadTimestamp++
			continue
		}
		if !r.window.Contains(t) {
			stats.OutOfSession++
			continue
		}
		value, ok := cols.premiumFrom(rec)
		if !ok {
			stats.BadValue++
			continue
		}
		tb := t.Format("15:04")
		if cur, exists := latest[tb]; !exists || !t.Before(cur.at) {
			latest[tb] = obs{at: t, value: value}
		}
		stats.Used++
	}

	totals := make(map[string]float64, len(latest))
	for tb, o := range latest {
		totals[tb] = o.value
	}
	return totals, stats, nil
}

// IndexDayTotals builds the full per-minute total set for one index and date
// across the given expiries and offsets. Unreadable files are logged and
// skipped so one stuck file cannot stall a pass.
func (r *Reader) IndexDayTotals(index, date string, expiries, offsets []string) (models.MinuteTotals, ReadStats) {
	totals := models.MinuteTotals{}
	var agg ReadStats
	for _, expiry := range expiries {
		for _, offset := range offsets {
			norm := models.NormalizeOffset(offset)
			path := r.PathFor(index, expiry, norm, date)
			day, stats, err := r.ReadDayTotals(path)
			agg.Add(stats)
			if err != nil {
				if r.l != nil {
					r.l.Warn("split csv unreadable",
						applogger.String("path", path),
						applogger.Error(err),
					)
				}
				continue
			}
			for tb, v := range day {
				totals[models.TotalsKey{ExpiryBucket: expiry, StrikeOffset: norm, TimeBucket: tb}] = v
			}
		}
	}
	return totals, agg
}

// RepresentativeStrike returns the last strike value seen in the daily file.
func (r *Reader) RepresentativeStrike(path string) (float64, bool) {
	f, _, err := r.openWithRetry(path)
	if err != nil {
		return 0, false
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return 0, false
	}
	idx := -1
	for _, alias := range strikeAliases {
		if i := columnIndex(header, alias); i >= 0 {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, false
	}
	var strike float64
	found := false
	for {
		rec, err := cr.Read()
		if err != nil {
			break
		}
		if v, err := strconv.ParseFloat(field(rec, idx), 64); err == nil {
			strike = v
			found = true
		}
	}
	return strike, found
}

// StrikeLadder reports the representative strike per offset for diagnostics.
func (r *Reader) StrikeLadder(index, date, expiry string, offsets []string) []OffsetStrike {
	ladder := make([]OffsetStrike, 0, len(offsets))
	for _, offset := range offsets {
		norm := models.NormalizeOffset(offset)
		strike, ok := r.RepresentativeStrike(r.PathFor(index, expiry, norm, date))
		ladder = append(ladder, OffsetStrike{Offset: norm, Strike: strike, OK: ok})
	}
	return ladder
}

// openWithRetry retries transient permission errors (the splitter holds files
// briefly while rewriting them on Windows shares).
func (r *Reader) openWithRetry(path string) (*os.File, int, error) {
	var lastErr error
	retries := 0
	for attempt := 0; attempt < readAttempts; attempt++ {
		f, err := os.Open(path)
		if err == nil {
			return f, retries, nil
		}
		lastErr = err
		if !os.IsPermission(err) {
			return nil, retries, err
		}
		retries++
		time.Sleep(readBackoff * time.Duration(attempt+1))
	}
	return nil, retries, lastErr
}

type columns struct {
	ts      int
	premium int
	call    int
	put     int
}

func (c columns) hasPremium() bool {
	return c.premium >= 0 || (c.call >= 0 && c.put >= 0)
}

// premiumFrom resolves the row's premium: the total column when it carries a
// value, otherwise the summed legs.
func (c columns) premiumFrom(rec []string) (float64, bool) {
	if c.premium >= 0 {
		if v, err := strconv.ParseFloat(field(rec, c.premium), 64); err == nil {
			return v, true
		}
	}
	if c.call >= 0 && c.put >= 0 {
		call, err1 := strconv.ParseFloat(field(rec, c.call), 64)
		put, err2 := strconv.ParseFloat(field(rec, c.put), 64)
		if err1 == nil && err2 == nil {
			return call + put, true
		}
	}
	return 0, false
}

func resolveColumns(header []string) columns {
	cols := columns{ts: -1, premium: -1, call: -1, put: -1}
	for _, alias := range tsAliases {
		if i := columnIndex(header, alias); i >= 0 {
			cols.ts = i
			break
		}
	}
	for _, alias := range premiumAliases {
		if i := columnIndex(header, alias); i >= 0 {
			cols.premium = i
			break
		}
	}
	cols.call = columnIndex(header, colCallPrice)
	cols.put = columnIndex(header, colPutPrice)
	return cols
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

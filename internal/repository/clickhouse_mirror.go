package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"OptiBase/internal/domain/models"
	domrepo "OptiBase/internal/domain/repository"
	"OptiBase/pkg/util"
)

// mirrorChunkSize bounds one INSERT statement.
const mirrorChunkSize = 1000

// mirrorColumns matches the updates table; `index` needs quoting.
const mirrorColumns = "(ts, `index`, expiry_code, strike_offset, weekday, n, sum, avg, min, max)"

// ClickHouseMirror ships freshly merged master rows to an analytics table.
// Timestamps are the market-local date plus the row's time bucket, stored UTC.
type ClickHouseMirror struct {
	db    *sql.DB
	table string
	loc   *time.Location
}

// NewClickHouseMirror creates a mirror writing to table (qualified or not).
func NewClickHouseMirror(db *sql.DB, table string, loc *time.Location) domrepo.Mirror {
	return &ClickHouseMirror{db: db, table: table, loc: loc}
}

// MirrorSchema returns idempotent DDL for the updates table.
func MirrorSchema(database, table string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.%s ("+
			"ts DateTime('UTC'), `index` String, expiry_code String, strike_offset String, weekday String, "+
			"n Int64, sum Float64, avg Float64, min Float64, max Float64"+
			") ENGINE=MergeTree ORDER BY (`index`, expiry_code, strike_offset, weekday, ts)",
			database, table),
	}
}

// WriteUpdates inserts the given rows tagged with the key, chunked to keep
// statements bounded. Rows whose bucket cannot be placed on the date are
// dropped.
func (m *ClickHouseMirror) WriteUpdates(ctx context.Context, key models.AggregationKey, date string, rows []models.MasterRow) error {
	if len(rows) == 0 {
		return nil
	}
	day, err := util.ParseDate(date)
	if err != nil {
		return fmt.Errorf("mirror date %q: %w", date, err)
	}

	for start := 0; start < len(rows); start += mirrorChunkSize {
		end := start + mirrorChunkSize
		if end > len(rows) {
			end = len(rows)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*10)
		for _, r := range rows[start:end] {
			ts, ok := bucketTime(day, r.TimeBucket, m.loc)
			if !ok {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				ts.UTC(),
				key.Index,
				key.ExpiryBucket,
				key.StrikeOffset,
				key.Weekday,
				r.N,
				r.Sum,
				r.Avg,
				r.Min,
				r.Max,
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s %s VALUES %s", m.table, mirrorColumns, strings.Join(values, ","))
		if _, err := m.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("mirror insert: %w", err)
		}
	}
	return nil
}

func (m *ClickHouseMirror) Health(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

// Close is a no-op; the pool belongs to the clickhouse client.
func (m *ClickHouseMirror) Close() error {
	return nil
}

// bucketTime places an HH:MM bucket on the given day in loc.
func bucketTime(day time.Time, bucket string, loc *time.Location) (time.Time, bool) {
	hm, err := time.Parse("15:04", bucket)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hm.Hour(), hm.Minute(), 0, 0, loc), true
}

package repository

import (
	"strings"
	"testing"
	"time"

	"OptiBase/pkg/util"
)

func TestBucketTimeConvertsMarketToUTC(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	day, err := util.ParseDate("2025-08-18")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}

	ts, ok := bucketTime(day, "09:15", loc)
	if !ok {
		t.Fatalf("bucketTime rejected a valid bucket")
	}
	if got := ts.UTC().Format(time.RFC3339); got != "2025-08-18T03:45:00Z" {
		t.Fatalf("utc = %s, want 2025-08-18T03:45:00Z", got)
	}
}

func TestBucketTimeRejectsMalformed(t *testing.T) {
	day, _ := util.ParseDate("2025-08-18")
	for _, bucket := range []string{"", "9h15", "25:00", "09:15:30"} {
		if _, ok := bucketTime(day, bucket, time.UTC); ok {
			t.Fatalf("bucketTime(%q) accepted", bucket)
		}
	}
}

func TestMirrorSchemaTargetsTable(t *testing.T) {
	stmts := MirrorSchema("optibase", "weekday_master_updates")
	if len(stmts) != 2 {
		t.Fatalf("stmts = %d, want 2", len(stmts))
	}
	if !strings.Contains(stmts[0], "CREATE DATABASE IF NOT EXISTS optibase") {
		t.Fatalf("database ddl = %q", stmts[0])
	}
	if !strings.Contains(stmts[1], "optibase.weekday_master_updates") {
		t.Fatalf("table ddl misses qualified name: %q", stmts[1])
	}
	if !strings.Contains(stmts[1], "ORDER BY") {
		t.Fatalf("table ddl misses sort key: %q", stmts[1])
	}
}

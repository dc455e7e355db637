package repository

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLedgerContainsMissingFile(t *testing.T) {
	g := NewFileLedger()
	ok, err := g.Contains(filepath.Join(t.TempDir(), "mon.csv"), "2025-08-18")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("missing ledger should not contain anything")
	}
}

func TestLedgerRecordThenContains(t *testing.T) {
	g := NewFileLedger()
	master := filepath.Join(t.TempDir(), "atm", "mon.csv")

	if err := g.Record(master, "2025-08-18"); err != nil {
		t.Fatalf("record: %v", err)
	}
	ok, err := g.Contains(master, "2025-08-18")
	if err != nil {
		t.Fatalf("contains: %v", err)
	}
	if !ok {
		t.Fatalf("recorded date not found")
	}
	ok, _ = g.Contains(master, "2025-08-19")
	if ok {
		t.Fatalf("unrecorded date reported present")
	}
}

func TestLedgerSitsNextToMaster(t *testing.T) {
	g := NewFileLedger()
	dir := t.TempDir()
	master := filepath.Join(dir, "mon.csv")
	if err := g.Record(master, "2025-08-18"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := os.Stat(master + ".ledger"); err != nil {
		t.Fatalf("sidecar missing: %v", err)
	}
}

func TestLedgerAppendsOneDatePerLine(t *testing.T) {
	g := NewFileLedger()
	master := filepath.Join(t.TempDir(), "mon.csv")
	for _, d := range []string{"2025-08-18", "2025-08-19", "2025-08-18"} {
		if err := g.Record(master, d); err != nil {
			t.Fatalf("record %s: %v", d, err)
		}
	}
	b, err := os.ReadFile(master + ".ledger")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "2025-08-18\n2025-08-19\n2025-08-18\n" {
		t.Fatalf("ledger content = %q", b)
	}
	// Duplicate lines are harmless; membership is what matters.
	ok, _ := g.Contains(master, "2025-08-18")
	if !ok {
		t.Fatalf("duplicate record broke membership")
	}
}

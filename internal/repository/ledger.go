package repository

import (
	"fmt"
	"os"
	"strings"

	"OptiBase/pkg/fsio"
)

// FileLedger implements Ledger as an append-only sidecar next to each master
// file ({master}.ledger), one ISO date per line.
type FileLedger struct{}

func NewFileLedger() *FileLedger { return &FileLedger{} }

func ledgerPath(masterPath string) string { return masterPath + ".ledger" }

func (g *FileLedger) Contains(masterPath, date string) (bool, error) {
	b, err := os.ReadFile(ledgerPath(masterPath))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read ledger: %w", err)
	}
	for _, line := range strings.Split(string(b), "\n") {
		if strings.TrimSpace(line) == date {
			return true, nil
		}
	}
	return false, nil
}

func (g *FileLedger) Record(masterPath, date string) error {
	path := ledgerPath(masterPath)
	if err := fsio.EnsureParent(path); err != nil {
		return fmt.Errorf("ensure parent: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(date + "\n"); err != nil {
		return fmt.Errorf("append ledger: %w", err)
	}
	return nil
}

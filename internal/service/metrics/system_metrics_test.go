package metrics

import "testing"

func TestSampleSystem(t *testing.T) {
	snap, err := SampleSystem(t.TempDir())
	if err != nil {
		t.Fatalf("SampleSystem: %v", err)
	}
	if snap.DiskUsedPercent < 0 || snap.DiskUsedPercent > 100 {
		t.Fatalf("disk used percent = %v", snap.DiskUsedPercent)
	}
	if snap.HeapAllocBytes == 0 {
		t.Fatalf("heap alloc = 0")
	}
	if snap.Goroutines < 1 {
		t.Fatalf("goroutines = %d", snap.Goroutines)
	}
}

func TestSampleSystemMissingPath(t *testing.T) {
	if _, err := SampleSystem("/nonexistent/optibase"); err == nil {
		t.Fatalf("expected error for missing path")
	}
}

func TestRegisterTwiceIsSafe(t *testing.T) {
	Register()
	Register()
	RegisterSystem()
	RegisterSystem()
}

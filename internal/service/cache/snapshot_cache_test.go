package cache

import (
	"testing"
	"time"

	"OptiBase/internal/domain/models"
)

func TestSnapshotCacheHitAndMiss(t *testing.T) {
	c := NewSnapshotCache(time.Minute)
	if _, ok := c.Get("nope"); ok {
		t.Fatalf("empty cache returned a hit")
	}
	want := models.MasterBuckets{"10:15": {TimeBucket: "10:15", N: 2, Sum: 20}}
	c.Set("k", want)
	got, ok := c.Get("k")
	if !ok {
		t.Fatalf("expected hit")
	}
	if got["10:15"].N != 2 {
		t.Fatalf("got = %+v", got)
	}
}

func TestSnapshotCacheExpiry(t *testing.T) {
	c := NewSnapshotCache(10 * time.Millisecond)
	c.Set("k", models.MasterBuckets{})
	time.Sleep(25 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expired entry returned a hit")
	}
}

func TestSnapshotCacheZeroTTLNeverExpires(t *testing.T) {
	c := NewSnapshotCache(0)
	c.Set("k", models.MasterBuckets{})
	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("zero-ttl entry expired")
	}
}

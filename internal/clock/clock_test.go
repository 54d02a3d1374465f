package clock

import (
	"testing"
	"time"
)

func TestFakeAdvanceAndSet(t *testing.T) {
	start := time.UnixMilli(1_700_000_000_000)
	c := NewFake(start)
	if !c.Now().Equal(start) {
		t.Fatalf("Now() = %v, want %v", c.Now(), start)
	}
	c.Advance(1500 * time.Millisecond)
	if got := UnixMilli(c); got != 1_700_000_001_500 {
		t.Fatalf("UnixMilli = %d, want 1700000001500", got)
	}
	c.Set(start)
	if !c.Now().Equal(start) {
		t.Fatalf("Now() after Set = %v, want %v", c.Now(), start)
	}
}

package chain

import (
	"context"
	"testing"
	"time"
)

func TestIntervalGateSpacing(t *testing.T) {
	gate := newIntervalGate(20 * time.Millisecond)
	ctx := context.Background()

	started := time.Now()
	for i := 0; i < 3; i++ {
		if err := gate.wait(ctx); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
	elapsed := time.Since(started)

	// First call is immediate, the next two are spaced 20ms apart.
	if elapsed < 40*time.Millisecond {
		t.Fatalf("calls not spaced: %v", elapsed)
	}
}

func TestIntervalGateZeroInterval(t *testing.T) {
	gate := newIntervalGate(0)

	started := time.Now()
	for i := 0; i < 100; i++ {
		if err := gate.wait(context.Background()); err != nil {
			t.Fatalf("wait: %v", err)
		}
	}
	if elapsed := time.Since(started); elapsed > 100*time.Millisecond {
		t.Fatalf("zero interval should not block: %v", elapsed)
	}
}

func TestIntervalGateCancellation(t *testing.T) {
	gate := newIntervalGate(time.Hour)
	ctx := context.Background()

	// Burn the immediate slot so the next wait has to sleep.
	if err := gate.wait(ctx); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	cancelCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if err := gate.wait(cancelCtx); err == nil {
		t.Fatalf("expected cancellation error")
	}
}

func TestOptionsDefaults(t *testing.T) {
	var nilOpts *Options
	resolved := nilOpts.withDefaults()
	if resolved.Concurrency != DefaultConcurrency {
		t.Fatalf("concurrency default mismatch: %d", resolved.Concurrency)
	}
	if resolved.RequestSpacing != DefaultRequestSpacing {
		t.Fatalf("spacing default mismatch: %v", resolved.RequestSpacing)
	}
	if resolved.CallTimeout != DefaultCallTimeout {
		t.Fatalf("timeout default mismatch: %v", resolved.CallTimeout)
	}

	custom := (&Options{Concurrency: 5}).withDefaults()
	if custom.Concurrency != 5 {
		t.Fatalf("custom concurrency lost: %d", custom.Concurrency)
	}
	if custom.CallTimeout != DefaultCallTimeout {
		t.Fatalf("partial options should keep defaults: %v", custom.CallTimeout)
	}
}

package cli

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithCycleTimeout_EachCycleGetsFreshDeadline(t *testing.T) {
	var deadlines []time.Time
	cycle := withCycleTimeout(time.Minute, func(ctx context.Context) error {
		d, ok := ctx.Deadline()
		if !ok {
			t.Fatal("cycle context has no deadline")
		}
		deadlines = append(deadlines, d)
		return nil
	})

	ctx := context.Background()
	if err := cycle(ctx); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if err := cycle(ctx); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}

	if len(deadlines) != 2 {
		t.Fatalf("got %d cycles, want 2", len(deadlines))
	}
	// A later cycle must not inherit an earlier cycle's deadline; a watch
	// process would otherwise die once the first deadline passes.
	if !deadlines[1].After(deadlines[0]) {
		t.Errorf("second cycle deadline %v is not after the first %v", deadlines[1], deadlines[0])
	}
}

func TestWithCycleTimeout_ExpiredCycleDoesNotPoisonTheNext(t *testing.T) {
	cycle := withCycleTimeout(10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx := context.Background()
	if err := cycle(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got error %v, want deadline exceeded", err)
	}
	if ctx.Err() != nil {
		t.Fatalf("parent context was cancelled by a cycle timeout: %v", ctx.Err())
	}

	quick := withCycleTimeout(time.Minute, func(ctx context.Context) error {
		return ctx.Err()
	})
	if err := quick(ctx); err != nil {
		t.Errorf("follow-up cycle failed: %v", err)
	}
}

func TestWithCycleTimeout_ZeroLeavesUnbounded(t *testing.T) {
	cycle := withCycleTimeout(0, func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); ok {
			t.Error("unbounded cycle got a deadline")
		}
		return nil
	})
	if err := cycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
}

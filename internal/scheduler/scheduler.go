// Package scheduler provides the in-process job queue that decouples
// remediation from the scan write phase, and the interval trigger for
// time-driven scans.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("scheduler: closed")

// Job is a deferred unit of work. Jobs are executed at least once, in
// enqueue order, by a single worker.
type Job func(ctx context.Context)

// Scheduler is a minimal at-least-once job queue. Retry and backoff are the
// caller's concern; the scheduler only guarantees that accepted jobs run.
type Scheduler struct {
	jobs chan Job
	wg   sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// New builds a scheduler with the given queue capacity and starts its
// worker. The worker keeps consuming until Close, so every accepted job runs
// even after ctx is cancelled; jobs receive ctx and are expected to return
// promptly once it is done.
func New(ctx context.Context, capacity int) *Scheduler {
	if capacity < 1 {
		capacity = 1
	}
	s := &Scheduler{jobs: make(chan Job, capacity)}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for job := range s.jobs {
			job(ctx)
		}
	}()
	return s
}

// Enqueue accepts a job for asynchronous execution. It blocks while the
// queue is full and fails only after Close.
func (s *Scheduler) Enqueue(job Job) error {
	if job == nil {
		return errors.New("scheduler: nil job")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.jobs <- job
	return nil
}

// Close stops accepting jobs and waits for the queue to drain.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.jobs)
	s.mu.Unlock()
	s.wg.Wait()
}

// ParseInterval interprets a schedule string from configuration.
// Supported forms:
//   - "once" or "": run a single scan and stop
//   - "every 15m", "every 1h": repeat at the given interval
func ParseInterval(s string) (interval time.Duration, repeat bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "once") {
		return 0, false, nil
	}
	if rest, ok := strings.CutPrefix(s, "every "); ok {
		d, err := time.ParseDuration(strings.TrimSpace(rest))
		if err != nil {
			return 0, false, fmt.Errorf("scheduler: invalid interval %q: %w", s, err)
		}
		if d < 10*time.Second {
			return 0, false, fmt.Errorf("scheduler: interval %q is too short (minimum 10s)", s)
		}
		return d, true, nil
	}
	return 0, false, fmt.Errorf("scheduler: invalid schedule %q", s)
}

// Every runs fn immediately and then once per interval until ctx is
// cancelled. fn errors are returned to the caller only for the first,
// immediate run; later errors are reported through onErr so a single bad
// cycle does not stop the loop.
func Every(ctx context.Context, interval time.Duration, fn func(context.Context) error, onErr func(error)) error {
	if err := fn(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := fn(ctx); err != nil && onErr != nil {
				onErr(err)
			}
		}
	}
}

package scheduler

import (
	"context"
	"fmt"
	"io"
	"os"
)

// RemediationQueue adapts the Scheduler to the orchestrator's handoff
// contract: each scheduled scan ID is processed by the bound run function as
// an independent unit of work.
type RemediationQueue struct {
	scheduler *Scheduler
	run       func(ctx context.Context, scanID int64) error
	log       io.Writer
}

func NewRemediationQueue(s *Scheduler, run func(ctx context.Context, scanID int64) error) *RemediationQueue {
	return &RemediationQueue{scheduler: s, run: run, log: os.Stderr}
}

// SetLogWriter redirects operator output; used by tests.
func (q *RemediationQueue) SetLogWriter(w io.Writer) { q.log = w }

// EnqueueScan schedules remediation for a scan.
func (q *RemediationQueue) EnqueueScan(scanID int64) error {
	return q.scheduler.Enqueue(func(ctx context.Context) {
		if err := q.run(ctx, scanID); err != nil {
			fmt.Fprintf(q.log, "remediation for scan %d failed: %v\n", scanID, err)
		}
	})
}

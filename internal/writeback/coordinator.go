// Package writeback applies staged field updates to the external store
// under throttling, retry and idempotence constraints.
package writeback

import (
	"context"
	"errors"
	"log"
	"time"

	"golang.org/x/time/rate"

	"github.com/scoutdesk/scoutdesk/internal/gateway"
)

// RetryPolicy is the explicit backoff policy consumed by the coordinator.
// Injectable so tests can run with zero delays.
type RetryPolicy struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	BackoffMultiplier float64
}

// DefaultRetryPolicy matches the external store's pacing guidance
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       4,
		BaseDelay:         500 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

// Progress is emitted periodically so long-running batches are observable
type Progress struct {
	Done    int    `json:"done"`
	Total   int    `json:"total"`
	Failed  int    `json:"failed"`
	Current string `json:"current,omitempty"`
}

// FailedUpdate records one update that exhausted its retries
type FailedUpdate struct {
	Update     gateway.FieldUpdate `json:"update"`
	Error      string              `json:"error"`
	Structural bool                `json:"structural"` // schema mismatch vs transient
}

// Report is the per-batch outcome. Partial success is expected and
// reported; there are no all-or-nothing transaction semantics.
type Report struct {
	Attempted int            `json:"attempted"`
	Succeeded int            `json:"succeeded"`
	Failed    []FailedUpdate `json:"failed,omitempty"`
	Duration  time.Duration  `json:"duration"`
	Canceled  bool           `json:"canceled"`
}

// Coordinator throttles and retries writes against the store
type Coordinator struct {
	store         gateway.Store
	limiter       *rate.Limiter
	policy        RetryPolicy
	progress      func(Progress)
	progressEvery int
}

// New creates a Coordinator writing at most ratePerSec calls per second.
// progress may be nil.
func New(store gateway.Store, ratePerSec float64, policy RetryPolicy, progress func(Progress)) *Coordinator {
	if ratePerSec <= 0 {
		ratePerSec = 3
	}
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy()
	}
	return &Coordinator{
		store:         store,
		limiter:       rate.NewLimiter(rate.Limit(ratePerSec), 1),
		policy:        policy,
		progress:      progress,
		progressEvery: 10,
	}
}

// Write applies every update in order. A failed update is recorded and the
// batch continues. Cancellation is cooperative and checked between updates;
// anything already written stays written.
func (c *Coordinator) Write(ctx context.Context, updates []gateway.FieldUpdate) (*Report, error) {
	start := time.Now()
	report := &Report{Attempted: len(updates)}

	for i, u := range updates {
		if err := ctx.Err(); err != nil {
			report.Canceled = true
			report.Duration = time.Since(start)
			log.Printf("🛑 Write-back canceled after %d/%d updates", i, len(updates))
			return report, err
		}

		if err := c.writeOne(ctx, u); err != nil {
			report.Failed = append(report.Failed, FailedUpdate{
				Update:     u,
				Error:      err.Error(),
				Structural: errors.Is(err, gateway.ErrSchemaMismatch),
			})
		} else {
			report.Succeeded++
		}

		if c.progress != nil && ((i+1)%c.progressEvery == 0 || i+1 == len(updates)) {
			c.progress(Progress{
				Done:    i + 1,
				Total:   len(updates),
				Failed:  len(report.Failed),
				Current: u.PageID,
			})
		}
	}

	report.Duration = time.Since(start)
	return report, nil
}

// writeOne applies a single update with throttling and backoff
func (c *Coordinator) writeOne(ctx context.Context, u gateway.FieldUpdate) error {
	delay := c.policy.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		var err error
		switch u.Entity {
		case gateway.EntityMaster:
			err = c.store.UpdateMaster(ctx, u.PageID, u.Fields)
		default:
			err = c.store.UpdateRecord(ctx, u.PageID, u.Fields)
		}
		if err == nil {
			return nil
		}
		lastErr = err

		// Structural rejections cannot be retried away
		if errors.Is(err, gateway.ErrSchemaMismatch) {
			return err
		}
		if !gateway.IsTransient(err) {
			return err
		}
		if attempt == c.policy.MaxAttempts {
			break
		}

		log.Printf("⚠️ Write retry %d/%d for %s: %v", attempt, c.policy.MaxAttempts, u.PageID, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * c.policy.BackoffMultiplier)
	}

	return lastErr
}

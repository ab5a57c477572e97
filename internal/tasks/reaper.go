// Package tasks runs scheduled background jobs and records each run
// in the scheduled_task_result table.
package tasks

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/campfield/ticketoffice/internal/model"
	"github.com/campfield/ticketoffice/internal/monitoring"
)

// TaskName identifies the expiry reaper in the results table.
const TaskName = "expire-tickets"

type expiryStore interface {
	ExpireOverduePurchases(ctx context.Context, now time.Time) (int64, error)
}

type resultStore interface {
	Insert(ctx context.Context, res *model.ScheduledTaskResult) error
}

// Reaper periodically expires pending payments whose unpaid tickets
// passed their deadline.
type Reaper struct {
	tickets  expiryStore
	results  resultStore
	interval time.Duration
	now      func() time.Time
}

func NewReaper(tickets expiryStore, results resultStore, interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Reaper{
		tickets:  tickets,
		results:  results,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run blocks until ctx is cancelled, running one sweep per tick.
// Errors are logged and the loop keeps going; a broken sweep should
// not take the server down.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		if err := r.Sweep(ctx); err != nil {
			log.Printf("reaper: sweep failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep runs one expiry pass and records the run. The result row is
// written even when nothing expired, so silence in the table means
// the reaper stopped, not that there was nothing to do.
func (r *Reaper) Sweep(ctx context.Context) error {
	start := r.now()
	expired, err := r.tickets.ExpireOverduePurchases(ctx, start)
	if err != nil {
		return err
	}
	if expired > 0 {
		log.Printf("reaper: expired %d overdue purchases", expired)
		monitoring.TrackExpired(expired)
	}

	payload, err := json.Marshal(map[string]int64{"expired": expired})
	if err != nil {
		return err
	}
	return r.results.Insert(ctx, &model.ScheduledTaskResult{
		Name:      TaskName,
		StartTime: start,
		Duration:  r.now().Sub(start),
		Result:    payload,
	})
}

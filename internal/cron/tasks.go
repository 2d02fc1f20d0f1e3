package cron

import (
	"context"
	"time"
)

// ReconcileTaskName labels the booking reconcile run in logs and metrics.
const ReconcileTaskName = "booking-reconcile"

// Reconciler retries failed booking posts and verifies booked payments.
type Reconciler interface {
	Reconcile(ctx context.Context) error
}

// ReconcileTask wraps a Reconciler as a sweep task.
func ReconcileTask(rec Reconciler, timeout time.Duration) Task {
	return Task{
		Name:    ReconcileTaskName,
		Timeout: timeout,
		Run:     rec.Reconcile,
	}
}

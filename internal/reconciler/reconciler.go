// Package reconciler reports terminal print jobs back to the order system.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Riboost-Studio/receipt-print-agent/internal/logger"
	"github.com/Riboost-Studio/receipt-print-agent/internal/model"
)

const DefaultTimeout = 10 * time.Second

// OrderMarker sets the upstream printed flag. Marking an order twice is a
// no-op upstream.
type OrderMarker interface {
	MarkPrinted(ctx context.Context, orderNumber string) error
}

// Acknowledger delivers print_acknowledged.
type Acknowledger interface {
	Acknowledge(ctx context.Context, ack model.PrintAck) error
}

// UpstreamSyncError is logged, never retried, and never changes the job's
// terminal status.
type UpstreamSyncError struct {
	Op    string
	JobID string
	Err   error
}

func (e *UpstreamSyncError) Error() string {
	return fmt.Sprintf("upstream %s for job %s: %v", e.Op, e.JobID, e.Err)
}

func (e *UpstreamSyncError) Unwrap() error { return e.Err }

type Reconciler struct {
	orders   OrderMarker
	acks     Acknowledger
	alerts   *AlertBoard
	deviceID string
	timeout  time.Duration
	log      *logger.Logger
}

func New(orders OrderMarker, acks Acknowledger, alerts *AlertBoard, deviceID string, log *logger.Logger) *Reconciler {
	return &Reconciler{
		orders:   orders,
		acks:     acks,
		alerts:   alerts,
		deviceID: deviceID,
		timeout:  DefaultTimeout,
		log:      log.With("reconciler"),
	}
}

// Report implements queue.Reporter.
func (r *Reconciler) Report(ctx context.Context, job model.PrintJob) {
	if err := r.Reconcile(ctx, job); err != nil {
		r.log.Error("Upstream sync failed", err, "job "+job.JobID)
	}
}

// Reconcile marks printed orders upstream, acknowledges every terminal
// job once and raises one alert per failure. Each upstream call is a
// single round trip.
func (r *Reconciler) Reconcile(ctx context.Context, job model.PrintJob) error {
	if !job.Status.Terminal() {
		return fmt.Errorf("job %s is %s, not terminal", job.JobID, job.Status)
	}

	var errs []error
	ack := model.PrintAck{DeviceID: r.deviceID, JobID: job.JobID, Status: job.Status}

	switch job.Status {
	case model.JobPrinted:
		if job.SourceOrderNumber == "" {
			r.log.Warning("Printed job has no order number, not marking upstream", "job "+job.JobID)
		} else if r.orders != nil {
			if err := r.call(ctx, func(ctx context.Context) error {
				return r.orders.MarkPrinted(ctx, job.SourceOrderNumber)
			}); err != nil {
				errs = append(errs, &UpstreamSyncError{Op: "mark-printed", JobID: job.JobID, Err: err})
			} else {
				r.log.Info("Order marked printed", "order "+job.SourceOrderNumber)
			}
		}

	case model.JobFailed:
		ack.Error = job.Error
		if ack.Error == "" {
			ack.Error = "print failed"
		}
		if r.alerts != nil {
			r.alerts.Raise(Alert{JobID: job.JobID, OrderNumber: job.SourceOrderNumber, Message: ack.Error})
		}
		r.log.Alert("Print failed", "order "+job.SourceOrderNumber, ack.Error)
	}

	if r.acks != nil {
		if err := r.call(ctx, func(ctx context.Context) error {
			return r.acks.Acknowledge(ctx, ack)
		}); err != nil {
			errs = append(errs, &UpstreamSyncError{Op: "acknowledge", JobID: job.JobID, Err: err})
		}
	}
	return errors.Join(errs...)
}

func (r *Reconciler) call(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return fn(ctx)
}

package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Riboost-Studio/receipt-print-agent/internal/logger"
	"github.com/Riboost-Studio/receipt-print-agent/internal/model"
	"github.com/Riboost-Studio/receipt-print-agent/internal/normalizer"
	"github.com/Riboost-Studio/receipt-print-agent/internal/queue"
)

// Intake is the single entry point for jobs from every source.
type Intake struct {
	norm  *normalizer.Normalizer
	queue *queue.Queue
	log   *logger.Logger
}

func NewIntake(n *normalizer.Normalizer, q *queue.Queue, log *logger.Logger) *Intake {
	return &Intake{norm: n, queue: q, log: log.With("intake")}
}

// Submit normalizes raw, queues it and makes sure the queue is draining.
// Malformed jobs and duplicates are dropped and returned as errors.
func (i *Intake) Submit(raw []byte, source string) (model.PrintJob, error) {
	job, err := i.norm.Job(raw, source)
	if err != nil {
		i.log.Warning("Malformed job dropped", "source "+source, err.Error())
		return job, err
	}
	return job, i.Enqueue(job)
}

// Enqueue queues an already normalized job.
func (i *Intake) Enqueue(job model.PrintJob) error {
	if err := i.queue.Enqueue(job); err != nil {
		if errors.Is(err, queue.ErrDuplicate) {
			i.log.Info("Duplicate job dropped", "source "+job.Source, "order "+job.SourceOrderNumber)
		} else {
			i.log.Error("Failed to queue job", err, "job "+job.JobID)
		}
		return err
	}
	i.queue.Start()
	return nil
}

func (i *Intake) HandlePrintJob(_ context.Context, raw json.RawMessage) {
	i.Submit(raw, model.SourceSocket)
}

// HandleJobUpdate applies the server's job lists: orders it reports as
// completed are dropped while still pending here, and its pending jobs are
// queued unless already known.
func (i *Intake) HandleJobUpdate(_ context.Context, update model.JobUpdate) {
	for _, raw := range update.Completed {
		if order := orderNumberOf(raw); order != "" {
			i.queue.Discard(order)
		}
	}
	for _, raw := range update.Pending {
		i.Submit(raw, model.SourceSocket)
	}
}

// orderNumberOf accepts a bare order number string or an object carrying
// orderNumber.
func orderNumberOf(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var o struct {
		OrderNumber string `json:"orderNumber"`
	}
	if err := json.Unmarshal(raw, &o); err == nil {
		return o.OrderNumber
	}
	return ""
}

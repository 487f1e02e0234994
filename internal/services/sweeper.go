package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Riboost-Studio/receipt-print-agent/internal/logger"
	"github.com/Riboost-Studio/receipt-print-agent/internal/model"
	"github.com/Riboost-Studio/receipt-print-agent/internal/normalizer"
	"github.com/Riboost-Studio/receipt-print-agent/internal/queue"
)

type OrderSource interface {
	FetchOrders(ctx context.Context) ([]UpstreamOrder, error)
}

type SweepResult struct {
	Fetched    int `json:"fetched"`
	Unprinted  int `json:"unprinted"`
	Queued     int `json:"queued"`
	Duplicates int `json:"duplicates"`
	Malformed  int `json:"malformed"`
	Skipped    int `json:"skipped"`
}

// Sweeper queues upstream orders whose receipt has not been printed.
type Sweeper struct {
	orders   OrderSource
	intake   *Intake
	interval time.Duration
	log      *logger.Logger
	trigger  chan struct{}
}

func NewSweeper(orders OrderSource, intake *Intake, interval time.Duration, log *logger.Logger) *Sweeper {
	return &Sweeper{
		orders:   orders,
		intake:   intake,
		interval: interval,
		log:      log.With("sweep"),
		trigger:  make(chan struct{}, 1),
	}
}

// Sweep runs one pass. Orders this agent printed moments ago are skipped
// while upstream catches up with the mark-printed call.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	orders, err := s.orders.FetchOrders(ctx)
	if err != nil {
		return res, fmt.Errorf("fetch orders: %w", err)
	}
	res.Fetched = len(orders)

	for _, o := range orders {
		if o.ReceiptPrinted {
			continue
		}
		res.Unprinted++
		if o.OrderNumber != "" && s.intake.queue.Printed(o.OrderNumber) {
			res.Skipped++
			continue
		}

		_, err := s.intake.Submit(o.Raw, model.SourceSweep)
		var malformed *normalizer.MalformedJobError
		switch {
		case err == nil:
			res.Queued++
		case errors.Is(err, queue.ErrDuplicate):
			res.Duplicates++
		case errors.As(err, &malformed):
			res.Malformed++
		}
	}

	s.log.Info("Sweep done", fmt.Sprintf("fetched %d, unprinted %d, queued %d, duplicates %d, malformed %d",
		res.Fetched, res.Unprinted, res.Queued, res.Duplicates, res.Malformed))
	return res, nil
}

// Trigger asks the running loop for an extra pass.
func (s *Sweeper) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run sweeps at start, every interval and whenever triggered.
func (s *Sweeper) Run(ctx context.Context) {
	defer s.log.RecoverPanic()

	interval := s.interval
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		case <-s.trigger:
			s.runOnce(ctx)
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if _, err := s.Sweep(ctx); err != nil {
		s.log.Error("Sweep failed", err)
	}
}

package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/grandcat/zeroconf"

	"github.com/Riboost-Studio/receipt-print-agent/internal/logger"
	"github.com/Riboost-Studio/receipt-print-agent/internal/model"
	"github.com/Riboost-Studio/receipt-print-agent/internal/normalizer"
	"github.com/Riboost-Studio/receipt-print-agent/internal/printer"
	"github.com/Riboost-Studio/receipt-print-agent/internal/queue"
	"github.com/Riboost-Studio/receipt-print-agent/internal/reconciler"
	"github.com/Riboost-Studio/receipt-print-agent/internal/store"
)

var ErrJobNotFound = errors.New("job not found")

// Agent wires the pipeline for one printer: socket and sweep intake, the
// queue, the printer adapter and upstream reconciliation.
type Agent struct {
	Config  model.Config
	Printer model.Printer

	Store      *store.History
	Adapter    *printer.Adapter
	Queue      *queue.Queue
	Orders     *OrderAPI
	Socket     *SocketClient
	Intake     *Intake
	Sweeper    *Sweeper
	Alerts     *reconciler.AlertBoard
	Reconciler *reconciler.Reconciler

	log  *logger.Logger
	amqp *AMQPIntake
	mdns *zeroconf.Server
	wg   sync.WaitGroup
	stop context.CancelFunc
}

func NewAgent(cfg model.Config, p model.Printer, log *logger.Logger) (*Agent, error) {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	drv, err := NewDriver(p, log)
	if err != nil {
		st.Close()
		return nil, err
	}

	a := &Agent{
		Config:  cfg,
		Printer: p,
		Store:   st,
		Adapter: printer.NewAdapter(drv, log),
		Orders:  NewOrderAPI(cfg.ApiUrl, cfg.APIKey),
		Alerts:  reconciler.NewAlertBoard(100),
		log:     log.With("agent"),
	}

	a.Socket = NewSocketClient(cfg.WsUrl, cfg.APIKey, nil, a.Device, log)
	acks := NewFallbackAcknowledger(a.Socket, a.Orders, log)
	a.Reconciler = reconciler.New(a.Orders, acks, a.Alerts, cfg.DeviceID, log)
	a.Queue = queue.New(a.Adapter,
		queue.WithReporter(a.Reconciler),
		queue.WithStore(st),
		queue.WithHistoryLimit(cfg.HistoryLimit),
		queue.WithLogger(log),
	)
	a.Intake = NewIntake(normalizer.New(), a.Queue, log)
	a.Socket.inbound = a.Intake
	a.Sweeper = NewSweeper(a.Orders, a.Intake, cfg.SweepInterval(), log)

	a.Socket.OnConnect(a.Sweeper.Trigger)
	a.Adapter.OnReconnect(func(printer.State) {
		go a.announcePrinter()
	})
	if cfg.AMQPURL != "" {
		a.amqp = NewAMQPIntake(cfg.AMQPURL, cfg.AMQPQueue, cfg.DeviceID, a.Intake, log)
	}
	return a, nil
}

// Device describes this agent for register_device.
func (a *Agent) Device() model.RegisterDevice {
	name := a.Printer.Model
	if name == "" {
		name = a.Printer.Name
	}
	return model.RegisterDevice{
		DeviceID:   a.Config.DeviceID,
		Type:       a.Printer.Family,
		Model:      name,
		Connected:  a.Adapter.State() == printer.StateReady,
		AppVersion: a.Config.AppVersion,
		Timestamp:  time.Now(),
	}
}

func (a *Agent) announcePrinter() {
	defer a.log.RecoverPanic()
	if err := a.Socket.Register(); err == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Orders.RegisterPrinter(ctx, a.Device()); err != nil {
		a.log.Warning("Failed to register printer", err.Error())
	}
}

// Recover restores state from the previous run: history is loaded, jobs
// interrupted mid-print are failed and reported, pending jobs are queued
// again in their original order.
func (a *Agent) Recover(ctx context.Context) error {
	pending, interrupted, err := a.Store.Recover()
	if err != nil {
		return fmt.Errorf("recover jobs: %w", err)
	}
	recent, err := a.Store.Recent(a.Config.HistoryLimit)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	a.Queue.Seed(recent)

	for _, job := range interrupted {
		a.log.Warning("Job interrupted by restart", "job "+job.JobID, "order "+job.SourceOrderNumber)
		a.Reconciler.Report(ctx, job)
	}
	for _, job := range pending {
		a.Intake.Enqueue(job)
	}
	if len(pending) > 0 {
		a.log.Info(fmt.Sprintf("Re-queued %d pending jobs", len(pending)))
	}
	return nil
}

// Start recovers persisted jobs and starts every background loop.
func (a *Agent) Start(ctx context.Context) error {
	ctx, a.stop = context.WithCancel(ctx)

	if err := a.Recover(ctx); err != nil {
		return err
	}
	if err := a.Adapter.Connect(ctx); err != nil {
		a.log.Warning("Printer not available yet", err.Error())
	}

	a.Socket.Start(ctx)
	a.goRun(func() { a.Sweeper.Run(ctx) })
	if a.amqp != nil {
		a.goRun(func() { a.amqp.Run(ctx) })
	}
	a.goRun(func() { a.maintain(ctx) })
	return nil
}

func (a *Agent) goRun(fn func()) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn()
	}()
}

// maintain prunes the job table and old log files once an hour.
func (a *Agent) maintain(ctx context.Context) {
	defer a.log.RecoverPanic()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		if n, err := a.Store.Prune(a.Config.HistoryLimit); err != nil {
			a.log.Error("Prune failed", err)
		} else if n > 0 {
			a.log.Info(fmt.Sprintf("Pruned %d old jobs", n))
		}
		if err := a.log.CleanOldLogs(30); err != nil {
			a.log.Warning("Log cleanup failed", err.Error())
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Announce advertises the local status API over mDNS.
func (a *Agent) Announce(httpAddr string) error {
	_, portStr, err := net.SplitHostPort(httpAddr)
	if err != nil {
		return err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	server, err := zeroconf.Register(
		"Print Agent "+a.Config.DeviceID,
		"_printagent._tcp",
		"local.",
		port,
		[]string{"version=" + a.Config.AppVersion, "device=" + a.Config.DeviceID},
		nil,
	)
	if err != nil {
		return fmt.Errorf("mDNS register: %w", err)
	}
	a.mdns = server
	return nil
}

// Reprint queues a fresh copy of a finished job and logs the reprint
// upstream.
func (a *Agent) Reprint(ctx context.Context, jobID string) (model.PrintJob, error) {
	orig, ok := a.Queue.Find(jobID)
	if !ok {
		stored, err := a.Store.Get(jobID)
		if err != nil {
			return model.PrintJob{}, ErrJobNotFound
		}
		orig = stored
	}

	job := model.PrintJob{
		JobID:             uuid.NewString(),
		SourceOrderNumber: orig.SourceOrderNumber,
		Source:            model.SourceAPI,
		Payload:           orig.Payload,
	}
	if err := a.Intake.Enqueue(job); err != nil {
		return job, err
	}

	entry := model.ReprintLog{
		DeviceID:    a.Config.DeviceID,
		JobID:       job.JobID,
		OrderNumber: job.SourceOrderNumber,
		Timestamp:   time.Now(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := a.Orders.LogReprint(ctx, entry); err != nil {
			a.log.Warning("Failed to log reprint", err.Error())
		}
	}()
	if queued, ok := a.Queue.Find(job.JobID); ok {
		job = queued
	}
	return job, nil
}

// Stop ends intake, lets the printing job finish and closes resources.
func (a *Agent) Stop(ctx context.Context) error {
	if a.stop != nil {
		a.stop()
	}
	a.Socket.Stop()
	a.wg.Wait()
	if a.mdns != nil {
		a.mdns.Shutdown()
	}

	err := a.Queue.Close(ctx)
	if cerr := a.Adapter.Close(); cerr != nil {
		a.log.Warning("Printer close failed", cerr.Error())
	}
	if cerr := a.Store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

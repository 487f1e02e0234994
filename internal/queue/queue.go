// Package queue sequences print jobs: FIFO, deduplicated by order number,
// drained by a single consumer so that at most one job is printing.
package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Riboost-Studio/receipt-print-agent/internal/logger"
	"github.com/Riboost-Studio/receipt-print-agent/internal/model"
	"github.com/Riboost-Studio/receipt-print-agent/internal/receipt"
)

var (
	ErrDuplicate = errors.New("order already queued or printing")
	ErrClosed    = errors.New("queue closed")
	ErrNoJobID   = errors.New("job has no id")
)

const DefaultHistoryLimit = 50

// Renderer prints one receipt. printer.Adapter implements it.
type Renderer interface {
	Render(ctx context.Context, ds []receipt.Directive) error
}

// Reporter receives every job once it reaches a terminal status.
type Reporter interface {
	Report(ctx context.Context, job model.PrintJob)
}

// Store persists job state changes.
type Store interface {
	Save(job model.PrintJob) error
	Delete(jobID string) error
}

type Formatter func(model.Payload) []receipt.Directive

type Option func(*Queue)

func WithReporter(r Reporter) Option         { return func(q *Queue) { q.reporter = r } }
func WithStore(s Store) Option               { return func(q *Queue) { q.store = s } }
func WithFormatter(f Formatter) Option       { return func(q *Queue) { q.format = f } }
func WithLogger(l *logger.Logger) Option     { return func(q *Queue) { q.log = l.With("queue") } }
func WithClock(now func() time.Time) Option { return func(q *Queue) { q.now = now } }
func WithHistoryLimit(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.historyLimit = n
		}
	}
}

// Snapshot is a copy of the queue state for display.
type Snapshot struct {
	Pending   []model.PrintJob `json:"pending"`
	Printing  *model.PrintJob  `json:"printing,omitempty"`
	Reporting *model.PrintJob  `json:"reporting,omitempty"`
	Completed []model.PrintJob `json:"completed"`
}

type Queue struct {
	printer      Renderer
	reporter     Reporter
	store        Store
	format       Formatter
	log          *logger.Logger
	now          func() time.Time
	historyLimit int

	mu       sync.Mutex
	pending  []model.PrintJob
	active   *model.PrintJob
	reported *model.PrintJob
	orders   map[string]string // order number -> job id, queued or printing
	ids      map[string]bool
	history  []model.PrintJob // oldest first
	draining bool
	idle     chan struct{}
	closed   bool
}

func New(r Renderer, opts ...Option) *Queue {
	q := &Queue{
		printer:      r,
		format:       receipt.Format,
		now:          time.Now,
		historyLimit: DefaultHistoryLimit,
		orders:       make(map[string]string),
		ids:          make(map[string]bool),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.log == nil {
		q.log = logger.NewWriter(io.Discard).With("queue")
	}
	return q
}

// Enqueue appends job to the tail. It returns ErrDuplicate when the same
// order (or job id) is already queued or printing.
func (q *Queue) Enqueue(job model.PrintJob) error {
	if job.JobID == "" {
		return ErrNoJobID
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	if q.ids[job.JobID] {
		q.mu.Unlock()
		return fmt.Errorf("job %s: %w", job.JobID, ErrDuplicate)
	}
	if job.SourceOrderNumber != "" {
		if other, ok := q.orders[job.SourceOrderNumber]; ok {
			q.mu.Unlock()
			return fmt.Errorf("order %s (job %s): %w", job.SourceOrderNumber, other, ErrDuplicate)
		}
		q.orders[job.SourceOrderNumber] = job.JobID
	}
	q.ids[job.JobID] = true

	job.Status = model.JobPending
	job.Error = ""
	job.PrintedAt = nil
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = q.now()
	}
	q.pending = append(q.pending, job)
	depth := len(q.pending)
	q.mu.Unlock()

	q.save(job)
	q.log.Info("Job queued", "job "+job.JobID, "order "+job.SourceOrderNumber, fmt.Sprintf("depth %d", depth))
	return nil
}

// Start begins draining unless a drain is already running.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.draining || q.closed || len(q.pending) == 0 {
		return
	}
	q.draining = true
	q.idle = make(chan struct{})
	go q.drain()
}

func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if q.closed || len(q.pending) == 0 {
			q.draining = false
			close(q.idle)
			q.mu.Unlock()
			return
		}
		job := q.pending[0]
		q.pending = q.pending[1:]
		job.Status = model.JobPrinting
		q.active = &job
		q.mu.Unlock()

		q.save(job)
		q.process(job)
	}
}

func (q *Queue) process(job model.PrintJob) {
	ctx := context.Background()
	start := q.now()
	q.log.Info("Printing", "job "+job.JobID, "order "+job.SourceOrderNumber)

	err := q.render(ctx, job)

	if err != nil {
		job.Status = model.JobFailed
		job.Error = err.Error()
		q.log.Error("Print failed", err, "job "+job.JobID)
	} else {
		printedAt := q.now()
		job.Status = model.JobPrinted
		job.PrintedAt = &printedAt
		q.log.Info("Printed", "job "+job.JobID, fmt.Sprintf("took %s", printedAt.Sub(start).Round(time.Millisecond)))
	}

	q.mu.Lock()
	q.active = nil
	q.reported = &job
	q.mu.Unlock()
	q.save(job)

	// The order stays claimed until upstream has been told, so a sweep
	// running meanwhile cannot queue it a second time.
	if q.reporter != nil {
		q.reporter.Report(ctx, job)
	}

	q.mu.Lock()
	q.reported = nil
	delete(q.ids, job.JobID)
	if q.orders[job.SourceOrderNumber] == job.JobID {
		delete(q.orders, job.SourceOrderNumber)
	}
	q.history = append(q.history, job)
	if over := len(q.history) - q.historyLimit; over > 0 {
		q.history = append([]model.PrintJob(nil), q.history[over:]...)
	}
	q.mu.Unlock()
}

// render turns a panic inside a driver into a failed job.
func (q *Queue) render(ctx context.Context, job model.PrintJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Panic(r)
			err = fmt.Errorf("render panic: %v", r)
		}
	}()
	return q.printer.Render(ctx, q.format(job.Payload))
}

func (q *Queue) save(job model.PrintJob) {
	if q.store == nil {
		return
	}
	if err := q.store.Save(job); err != nil {
		q.log.Error("Failed to persist job", err, "job "+job.JobID)
	}
}

// Discard drops a still-pending job for orderNumber. Jobs already printing
// cannot be cancelled.
func (q *Queue) Discard(orderNumber string) (model.PrintJob, bool) {
	q.mu.Lock()
	var dropped model.PrintJob
	found := false
	for i, job := range q.pending {
		if job.SourceOrderNumber == orderNumber {
			dropped = job
			found = true
			q.pending = append(q.pending[:i:i], q.pending[i+1:]...)
			delete(q.ids, job.JobID)
			delete(q.orders, orderNumber)
			break
		}
	}
	q.mu.Unlock()

	if found {
		q.log.Info("Pending job discarded", "job "+dropped.JobID, "order "+orderNumber)
		if q.store != nil {
			if err := q.store.Delete(dropped.JobID); err != nil {
				q.log.Error("Failed to delete job", err, "job "+dropped.JobID)
			}
		}
	}
	return dropped, found
}

// Seed loads terminal jobs from a previous run into the history.
func (q *Queue) Seed(jobs []model.PrintJob) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, job := range jobs {
		if job.Status.Terminal() {
			q.history = append(q.history, job)
		}
	}
	if over := len(q.history) - q.historyLimit; over > 0 {
		q.history = append([]model.PrintJob(nil), q.history[over:]...)
	}
}

func (q *Queue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := Snapshot{
		Pending:   append([]model.PrintJob{}, q.pending...),
		Completed: make([]model.PrintJob, 0, len(q.history)),
	}
	if q.active != nil {
		active := *q.active
		s.Printing = &active
	}
	if q.reported != nil {
		reported := *q.reported
		s.Reporting = &reported
	}
	for i := len(q.history) - 1; i >= 0; i-- {
		s.Completed = append(s.Completed, q.history[i])
	}
	return s
}

// Find looks a job up in the active, reporting, pending and completed sets.
func (q *Queue) Find(jobID string) (model.PrintJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.active != nil && q.active.JobID == jobID {
		return *q.active, true
	}
	if q.reported != nil && q.reported.JobID == jobID {
		return *q.reported, true
	}
	for _, job := range q.pending {
		if job.JobID == jobID {
			return job, true
		}
	}
	for i := len(q.history) - 1; i >= 0; i-- {
		if q.history[i].JobID == jobID {
			return q.history[i], true
		}
	}
	return model.PrintJob{}, false
}

// Printed reports whether the most recent completed job for orderNumber
// printed successfully.
func (q *Queue) Printed(orderNumber string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := len(q.history) - 1; i >= 0; i-- {
		if q.history[i].SourceOrderNumber == orderNumber {
			return q.history[i].Status == model.JobPrinted
		}
	}
	return false
}

// Printing returns the number of jobs currently printing: 0 or 1.
func (q *Queue) Printing() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.active != nil {
		return 1
	}
	return 0
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Wait blocks until the drain loop is idle.
func (q *Queue) Wait(ctx context.Context) error {
	for {
		q.mu.Lock()
		if !q.draining {
			q.mu.Unlock()
			return nil
		}
		idle := q.idle
		q.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close stops accepting jobs and waits for the job in progress. Pending
// jobs stay in the store for the next run.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	return q.Wait(ctx)
}

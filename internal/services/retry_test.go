package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Riboost-Studio/receipt-print-agent/internal/model"
	"github.com/Riboost-Studio/receipt-print-agent/internal/normalizer"
	"github.com/Riboost-Studio/receipt-print-agent/internal/queue"
	"github.com/Riboost-Studio/receipt-print-agent/internal/receipt"
	"github.com/Riboost-Studio/receipt-print-agent/internal/store"
)

// flakyPrinter fails the first fails renders.
type flakyPrinter struct {
	mu    sync.Mutex
	fails int
}

func (f *flakyPrinter) Render(context.Context, []receipt.Directive) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails > 0 {
		f.fails--
		return errors.New("paper out")
	}
	return nil
}

func TestSweepRetryKeepsFailedRecord(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	q := queue.New(&flakyPrinter{fails: 1}, queue.WithStore(st), queue.WithLogger(testLogger()))
	intake := NewIntake(normalizer.New(), q, testLogger())
	sweeper := NewSweeper(staticOrders{orders: []UpstreamOrder{upstream("ORD-1", false)}}, intake, 0, testLogger())

	for i := 0; i < 2; i++ {
		res, err := sweeper.Sweep(context.Background())
		if err != nil || res.Queued != 1 {
			t.Fatalf("sweep %d: %+v, %v", i+1, res, err)
		}
		waitIdle(q)
	}

	attempts, err := st.Attempts("id-ORD-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(attempts) != 2 {
		t.Fatalf("attempts = %+v", attempts)
	}
	if attempts[0].Status != model.JobFailed || attempts[0].Error != "paper out" {
		t.Errorf("failed attempt rewritten: %+v", attempts[0])
	}
	if attempts[1].Status != model.JobPrinted {
		t.Errorf("retry = %+v", attempts[1])
	}

	recent, _ := st.Recent(10)
	if len(recent) != 2 || recent[0].Status != model.JobFailed || recent[1].Status != model.JobPrinted {
		t.Errorf("recent = %+v", recent)
	}
}

func TestIDLessPushesAllPrint(t *testing.T) {
	p := &recordingPrinter{gate: make(chan struct{})}
	intake, q := newTestIntake(p)

	raw := []byte(`{"customerName":"Walk-in","items":[{"name":"Rice","quantity":1,"price":2}]}`)
	ids := make(map[string]bool)
	for i := 0; i < 5; i++ {
		job, err := intake.Submit(raw, model.SourceSocket)
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		ids[job.JobID] = true
	}
	close(p.gate)
	waitIdle(q)

	if len(ids) != 5 {
		t.Errorf("distinct job ids = %d, want 5", len(ids))
	}
	if n := len(p.printed()); n != 5 {
		t.Errorf("printed %d receipts, want 5", n)
	}
}

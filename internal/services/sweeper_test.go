package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/Riboost-Studio/receipt-print-agent/internal/model"
)

type staticOrders struct {
	orders []UpstreamOrder
	err    error
}

func (s staticOrders) FetchOrders(context.Context) ([]UpstreamOrder, error) {
	return s.orders, s.err
}

func upstream(number string, printed bool) UpstreamOrder {
	return UpstreamOrder{OrderNumber: number, ReceiptPrinted: printed, Raw: orderDoc(number, printed)}
}

func TestSweepQueuesUnprinted(t *testing.T) {
	p := &recordingPrinter{}
	intake, q := newTestIntake(p)
	src := staticOrders{orders: []UpstreamOrder{
		upstream("ORD-1", false),
		upstream("ORD-2", true),
		upstream("ORD-3", false),
		{Raw: json.RawMessage(`{"orderNumber":"BAD"}`)},
	}}

	res, err := NewSweeper(src, intake, 0, testLogger()).Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	waitIdle(q)

	if res.Fetched != 4 || res.Unprinted != 3 || res.Queued != 2 || res.Malformed != 1 {
		t.Errorf("result = %+v", res)
	}
	if got := fmt.Sprint(p.printed()); got != "[ORD-1 ORD-3]" {
		t.Errorf("printed = %s", got)
	}
}

func TestSweepAndPushDoNotDoublePrint(t *testing.T) {
	p := &recordingPrinter{gate: make(chan struct{})}
	intake, q := newTestIntake(p)

	// Live push arrives first and is still printing when the sweep runs.
	if _, err := intake.Submit(orderDoc("ORD-1", false), model.SourceSocket); err != nil {
		t.Fatalf("push: %v", err)
	}
	sweeper := NewSweeper(staticOrders{orders: []UpstreamOrder{upstream("ORD-1", false)}}, intake, 0, testLogger())
	res, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	close(p.gate)
	waitIdle(q)

	if res.Duplicates != 1 || res.Queued != 0 {
		t.Errorf("result = %+v", res)
	}
	if n := len(p.printed()); n != 1 {
		t.Errorf("print attempts = %d, want 1", n)
	}

	// Upstream has not caught up yet: the order was just printed here.
	res, _ = sweeper.Sweep(context.Background())
	waitIdle(q)
	if res.Skipped != 1 || len(p.printed()) != 1 {
		t.Errorf("second sweep = %+v, attempts %d", res, len(p.printed()))
	}
}

func TestSweepFetchError(t *testing.T) {
	intake, _ := newTestIntake(&recordingPrinter{})
	_, err := NewSweeper(staticOrders{err: errors.New("timeout")}, intake, 0, testLogger()).Sweep(context.Background())
	if err == nil {
		t.Error("expected error")
	}
}

func TestHandleJobUpdate(t *testing.T) {
	p := &recordingPrinter{gate: make(chan struct{})}
	intake, q := newTestIntake(p)

	intake.Submit(orderDoc("ORD-1", false), model.SourceSocket) // printing, blocked
	waitPrinting(q)
	intake.Submit(orderDoc("ORD-2", false), model.SourceSocket) // pending

	update := model.JobUpdate{
		Completed: []json.RawMessage{json.RawMessage(`{"orderNumber":"ORD-2"}`), json.RawMessage(`"ORD-1"`)},
		Pending:   []json.RawMessage{orderDoc("ORD-3", false)},
	}
	intake.HandleJobUpdate(context.Background(), update)
	close(p.gate)
	waitIdle(q)

	if got := fmt.Sprint(p.printed()); got != "[ORD-1 ORD-3]" {
		t.Errorf("printed = %s", got)
	}
}

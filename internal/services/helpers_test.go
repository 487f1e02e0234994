package services

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/Riboost-Studio/receipt-print-agent/internal/logger"
	"github.com/Riboost-Studio/receipt-print-agent/internal/model"
	"github.com/Riboost-Studio/receipt-print-agent/internal/normalizer"
	"github.com/Riboost-Studio/receipt-print-agent/internal/queue"
	"github.com/Riboost-Studio/receipt-print-agent/internal/receipt"
)

func testLogger() *logger.Logger { return logger.NewWriter(io.Discard) }

// recordingPrinter stores the order number of every rendered receipt.
type recordingPrinter struct {
	mu     sync.Mutex
	orders []string
	gate   chan struct{}
}

func (r *recordingPrinter) Render(_ context.Context, ds []receipt.Directive) error {
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append(r.orders, ds[0].Text)
	return nil
}

func (r *recordingPrinter) printed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.orders...)
}

func newTestIntake(p queue.Renderer) (*Intake, *queue.Queue) {
	q := queue.New(p,
		queue.WithLogger(testLogger()),
		queue.WithFormatter(func(p model.Payload) []receipt.Directive {
			return []receipt.Directive{receipt.Text(p.OrderNumber)}
		}),
	)
	return NewIntake(normalizer.New(), q, testLogger()), q
}

func waitIdle(q *queue.Queue) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Wait(ctx)
}

func orderDoc(number string, printed bool) json.RawMessage {
	doc := map[string]interface{}{
		"_id":            "id-" + number,
		"orderNumber":    number,
		"receiptPrinted": printed,
		"deliveryDate":   "19/10/2026",
		"totalAmount":    "40.00",
		"customer":       map[string]interface{}{"name": "Tan", "phoneNumber": "012-3456789"},
		"items": []interface{}{
			map[string]interface{}{
				"product":  map[string]interface{}{"productName": "Roast Meat", "productMandarin": "烧肉", "unit": "1kg", "price": 20},
				"quantity": 2,
			},
		},
	}
	raw, _ := json.Marshal(doc)
	return raw
}

// waitPrinting blocks until the queue has a job in the printing state.
func waitPrinting(q *queue.Queue) {
	deadline := time.Now().Add(5 * time.Second)
	for q.Printing() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
}

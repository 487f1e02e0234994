package reconciler

import (
	"sync"
	"time"
)

type Alert struct {
	ID          int       `json:"id"`
	JobID       string    `json:"jobId"`
	OrderNumber string    `json:"orderNumber,omitempty"`
	Message     string    `json:"message"`
	At          time.Time `json:"at"`
}

// AlertBoard keeps the most recent operator alerts.
type AlertBoard struct {
	mu     sync.Mutex
	limit  int
	nextID int
	alerts []Alert
}

func NewAlertBoard(limit int) *AlertBoard {
	if limit <= 0 {
		limit = 100
	}
	return &AlertBoard{limit: limit}
}

func (b *AlertBoard) Raise(a Alert) Alert {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	a.ID = b.nextID
	if a.At.IsZero() {
		a.At = time.Now()
	}
	b.alerts = append(b.alerts, a)
	if over := len(b.alerts) - b.limit; over > 0 {
		b.alerts = append([]Alert(nil), b.alerts[over:]...)
	}
	return a
}

// List returns alerts newest first.
func (b *AlertBoard) List() []Alert {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Alert, 0, len(b.alerts))
	for i := len(b.alerts) - 1; i >= 0; i-- {
		out = append(out, b.alerts[i])
	}
	return out
}

package printer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Riboost-Studio/receipt-print-agent/internal/logger"
	"github.com/Riboost-Studio/receipt-print-agent/internal/receipt"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReady        State = "ready"
)

// deviceMu serializes every physical print operation in the process, no
// matter how many adapters or drain loops exist.
var deviceMu sync.Mutex

// Adapter drives one printer. Callers observe its State but never touch
// the underlying connection.
type Adapter struct {
	driver Driver
	log    *logger.Logger

	mu          sync.RWMutex
	state       State
	lastErr     string
	changedAt   time.Time
	onReconnect func(State)
}

func NewAdapter(d Driver, log *logger.Logger) *Adapter {
	return &Adapter{
		driver:    d,
		log:       log.With(d.Name()),
		state:     StateDisconnected,
		changedAt: time.Now(),
	}
}

// OnReconnect registers fn to run every time the driver (re)connects.
func (a *Adapter) OnReconnect(fn func(State)) {
	a.mu.Lock()
	a.onReconnect = fn
	a.mu.Unlock()
}

func (a *Adapter) Name() string { return a.driver.Name() }

func (a *Adapter) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Status is the observable view of the connection.
type Status struct {
	Printer   string    `json:"printer"`
	State     State     `json:"state"`
	LastError string    `json:"lastError,omitempty"`
	ChangedAt time.Time `json:"changedAt"`
}

func (a *Adapter) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Status{Printer: a.driver.Name(), State: a.state, LastError: a.lastErr, ChangedAt: a.changedAt}
}

func (a *Adapter) setState(s State, err error) {
	a.mu.Lock()
	if a.state != s {
		a.state = s
		a.changedAt = time.Now()
	}
	if err != nil {
		a.lastErr = err.Error()
	} else if s == StateReady {
		a.lastErr = ""
	}
	a.mu.Unlock()
}

// Connect opens the device if it is not ready yet.
func (a *Adapter) Connect(ctx context.Context) error {
	deviceMu.Lock()
	defer deviceMu.Unlock()
	return a.ensureReady(ctx)
}

// Render executes the directives strictly in order. A device that is not
// ready gets exactly one reconnect attempt.
func (a *Adapter) Render(ctx context.Context, ds []receipt.Directive) error {
	deviceMu.Lock()
	defer deviceMu.Unlock()

	if err := a.ensureReady(ctx); err != nil {
		return err
	}
	for i, d := range ds {
		if err := Apply(a.driver, d); err != nil {
			if !a.driver.IsReady() {
				a.setState(StateDisconnected, err)
			}
			return &RenderError{Step: i, Kind: d.Kind, Err: err}
		}
	}
	return nil
}

func (a *Adapter) ensureReady(ctx context.Context) error {
	if a.driver.IsReady() {
		a.setState(StateReady, nil)
		return nil
	}

	a.log.Info("Printer not ready, reconnecting")
	a.setState(StateConnecting, nil)
	if err := a.driver.Connect(ctx); err != nil {
		a.setState(StateDisconnected, err)
		a.log.Error("Reconnect failed", err)
		return &PrinterUnavailableError{Printer: a.driver.Name(), Err: err}
	}
	a.setState(StateConnected, nil)
	if !a.driver.IsReady() {
		a.setState(StateDisconnected, nil)
		return &PrinterUnavailableError{Printer: a.driver.Name()}
	}
	a.setState(StateReady, nil)
	a.log.Info("Printer ready")

	a.mu.RLock()
	hook := a.onReconnect
	a.mu.RUnlock()
	if hook != nil {
		hook(StateReady)
	}
	return nil
}

// TestPrint prints a short self-test slip.
func (a *Adapter) TestPrint(ctx context.Context) error {
	ds := []receipt.Directive{
		receipt.Prepare(),
		receipt.SetAlign(receipt.AlignCenter),
		receipt.FontSize(receipt.SizeTotal),
		receipt.Bold(true),
		receipt.Text("PRINTER TEST"),
		receipt.Bold(false),
		receipt.FontSize(receipt.SizeItemSub),
		receipt.Text(a.driver.Name()),
		receipt.Text(time.Now().Format("2/1/2006 15:04:05")),
		receipt.Rule(),
		receipt.Feed(3),
		receipt.Cut(),
	}
	if err := a.Render(ctx, ds); err != nil {
		return fmt.Errorf("test print: %w", err)
	}
	return nil
}

func (a *Adapter) Close() error {
	deviceMu.Lock()
	defer deviceMu.Unlock()
	a.setState(StateDisconnected, nil)
	return a.driver.Close()
}

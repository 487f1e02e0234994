package printer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Riboost-Studio/receipt-print-agent/internal/logger"
	"github.com/Riboost-Studio/receipt-print-agent/internal/receipt"
)

type fakeDriver struct {
	mu         sync.Mutex
	ready      bool
	connectErr error
	readyAfter bool // Connect makes the driver ready
	connects   int
	calls      []string
	failOn     string
	delay      time.Duration
	gauge      *gauge
}

// gauge tracks how many directives run at the same time across drivers.
type gauge struct {
	active int32
	peak   int32
}

func (g *gauge) enter() {
	n := atomic.AddInt32(&g.active, 1)
	for {
		m := atomic.LoadInt32(&g.peak)
		if n <= m || atomic.CompareAndSwapInt32(&g.peak, m, n) {
			return
		}
	}
}

func (g *gauge) leave() { atomic.AddInt32(&g.active, -1) }

func (f *fakeDriver) record(call string) error {
	if f.gauge != nil {
		f.gauge.enter()
		defer f.gauge.leave()
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if call == f.failOn {
		f.ready = false
		return errors.New("device went away")
	}
	return nil
}

func (f *fakeDriver) Name() string { return "fake" }

func (f *fakeDriver) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.ready = f.readyAfter
	return nil
}

func (f *fakeDriver) IsReady() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *fakeDriver) Prepare() error                     { return f.record("prepare") }
func (f *fakeDriver) SetAlignment(a receipt.Align) error { return f.record("align:" + string(a)) }
func (f *fakeDriver) SetFontSize(n int) error            { return f.record(fmt.Sprintf("size:%d", n)) }
func (f *fakeDriver) SetBold(on bool) error              { return f.record(fmt.Sprintf("bold:%v", on)) }
func (f *fakeDriver) PrintText(s string) error           { return f.record("text:" + s) }
func (f *fakeDriver) PrintColumns(c []receipt.Column) error {
	return f.record("cols:" + receipt.LayoutColumns(c))
}
func (f *fakeDriver) HorizontalRule() error { return f.record("rule") }
func (f *fakeDriver) LineFeed(n int) error  { return f.record(fmt.Sprintf("feed:%d", n)) }
func (f *fakeDriver) Cut() error            { return f.record("cut") }
func (f *fakeDriver) Close() error          { return nil }

func testLogger() *logger.Logger { return logger.NewWriter(io.Discard) }

func TestRenderInOrder(t *testing.T) {
	d := &fakeDriver{ready: true}
	a := NewAdapter(d, testLogger())

	ds := []receipt.Directive{
		receipt.Prepare(),
		receipt.SetAlign(receipt.AlignLeft),
		receipt.FontSize(22),
		receipt.Bold(true),
		receipt.Text("Customer: Tan"),
		receipt.Rule(),
		receipt.Feed(3),
		receipt.Cut(),
	}
	if err := a.Render(context.Background(), ds); err != nil {
		t.Fatalf("render: %v", err)
	}
	want := []string{"prepare", "align:left", "size:22", "bold:true", "text:Customer: Tan", "rule", "feed:3", "cut"}
	if fmt.Sprint(d.calls) != fmt.Sprint(want) {
		t.Errorf("calls = %v, want %v", d.calls, want)
	}
	if d.connects != 0 {
		t.Errorf("connects = %d, want 0 for a ready printer", d.connects)
	}
	if a.State() != StateReady {
		t.Errorf("state = %s", a.State())
	}
}

func TestRenderReconnectsOnce(t *testing.T) {
	d := &fakeDriver{readyAfter: true}
	a := NewAdapter(d, testLogger())
	var hooked int
	a.OnReconnect(func(State) { hooked++ })

	if err := a.Render(context.Background(), []receipt.Directive{receipt.Cut()}); err != nil {
		t.Fatalf("render: %v", err)
	}
	if d.connects != 1 || hooked != 1 {
		t.Errorf("connects = %d, hook calls = %d", d.connects, hooked)
	}
}

func TestRenderUnavailable(t *testing.T) {
	cases := []struct {
		name string
		d    *fakeDriver
	}{
		{"connect error", &fakeDriver{connectErr: errors.New("no route to host")}},
		{"still not ready", &fakeDriver{readyAfter: false}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := NewAdapter(tc.d, testLogger())
			err := a.Render(context.Background(), []receipt.Directive{receipt.Text("x")})
			var unavailable *PrinterUnavailableError
			if !errors.As(err, &unavailable) {
				t.Fatalf("err = %v, want PrinterUnavailableError", err)
			}
			if tc.d.connects != 1 {
				t.Errorf("connects = %d, want exactly 1", tc.d.connects)
			}
			if len(tc.d.calls) != 0 {
				t.Errorf("directives issued on an unavailable printer: %v", tc.d.calls)
			}
			if a.State() != StateDisconnected {
				t.Errorf("state = %s", a.State())
			}
		})
	}
}

func TestRenderErrorStopsSequence(t *testing.T) {
	d := &fakeDriver{ready: true, failOn: "rule"}
	a := NewAdapter(d, testLogger())

	ds := []receipt.Directive{receipt.Text("a"), receipt.Rule(), receipt.Text("b"), receipt.Cut()}
	err := a.Render(context.Background(), ds)
	var re *RenderError
	if !errors.As(err, &re) {
		t.Fatalf("err = %v, want RenderError", err)
	}
	if re.Step != 1 || re.Kind != receipt.KindRule {
		t.Errorf("render error = %+v", re)
	}
	if len(d.calls) != 2 {
		t.Errorf("calls after failure = %v", d.calls)
	}
	if a.State() != StateDisconnected {
		t.Errorf("state = %s, want disconnected", a.State())
	}
	if a.Status().LastError == "" {
		t.Error("last error not recorded")
	}
}

func TestRenderIsExclusive(t *testing.T) {
	g := &gauge{}
	d1 := &fakeDriver{ready: true, delay: time.Millisecond, gauge: g}
	d2 := &fakeDriver{ready: true, delay: time.Millisecond, gauge: g}
	adapters := []*Adapter{NewAdapter(d1, testLogger()), NewAdapter(d2, testLogger())}

	ds := []receipt.Directive{receipt.Text("a"), receipt.Text("b"), receipt.Cut()}
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(a *Adapter) {
			defer wg.Done()
			if err := a.Render(context.Background(), ds); err != nil {
				t.Errorf("render: %v", err)
			}
		}(adapters[i%2])
	}
	wg.Wait()

	if g.peak > 1 {
		t.Errorf("overlapping print operations: peak %d", g.peak)
	}
	if got := len(d1.calls) + len(d2.calls); got != 18 {
		t.Errorf("calls = %d, want 18", got)
	}
}

func TestTestPrint(t *testing.T) {
	d := &fakeDriver{ready: true}
	a := NewAdapter(d, testLogger())
	if err := a.TestPrint(context.Background()); err != nil {
		t.Fatalf("test print: %v", err)
	}
	if d.calls[len(d.calls)-1] != "cut" {
		t.Errorf("last call = %s", d.calls[len(d.calls)-1])
	}
}

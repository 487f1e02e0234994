package printer

import (
	"fmt"

	"github.com/Riboost-Studio/receipt-print-agent/internal/receipt"
)

// PrinterUnavailableError is returned when the device is still not ready
// after the reconnect attempt.
type PrinterUnavailableError struct {
	Printer string
	Err     error
}

func (e *PrinterUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("printer %s unavailable: %v", e.Printer, e.Err)
	}
	return fmt.Sprintf("printer %s unavailable: not ready after reconnect", e.Printer)
}

func (e *PrinterUnavailableError) Unwrap() error { return e.Err }

// RenderError reports the directive that failed. Everything before Step
// has already reached the paper.
type RenderError struct {
	Step int
	Kind receipt.Kind
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("directive %d (%s) failed: %v", e.Step, e.Kind, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

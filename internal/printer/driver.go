// Package printer owns the physical printer: one Adapter wraps one Driver
// and is the only code allowed to issue print operations.
package printer

import (
	"context"
	"fmt"

	"github.com/Riboost-Studio/receipt-print-agent/internal/receipt"
)

// Driver is the capability set every printer family implements. Each call
// returns only once the device has accepted the operation.
type Driver interface {
	Name() string
	Connect(ctx context.Context) error
	IsReady() bool
	Prepare() error
	SetAlignment(a receipt.Align) error
	SetFontSize(size int) error
	SetBold(on bool) error
	PrintText(text string) error
	PrintColumns(cols []receipt.Column) error
	HorizontalRule() error
	LineFeed(n int) error
	Cut() error
	Close() error
}

// Apply issues a single directive to d.
func Apply(d Driver, dir receipt.Directive) error {
	switch dir.Kind {
	case receipt.KindPrepare:
		return d.Prepare()
	case receipt.KindAlign:
		return d.SetAlignment(dir.Align)
	case receipt.KindFont:
		return d.SetFontSize(dir.Size)
	case receipt.KindBold:
		return d.SetBold(dir.Bold)
	case receipt.KindText:
		return d.PrintText(dir.Text)
	case receipt.KindColumns:
		return d.PrintColumns(dir.Columns)
	case receipt.KindRule:
		return d.HorizontalRule()
	case receipt.KindFeed:
		return d.LineFeed(dir.Lines)
	case receipt.KindCut:
		return d.Cut()
	}
	return fmt.Errorf("unsupported directive %q", dir.Kind)
}

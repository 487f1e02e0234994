// Package escpos drives receipt printers that speak raw ESC/POS over a
// Bluetooth, serial, TCP or file byte stream.
package escpos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/Riboost-Studio/receipt-print-agent/internal/logger"
	"github.com/Riboost-Studio/receipt-print-agent/internal/model"
	"github.com/Riboost-Studio/receipt-print-agent/internal/printer"
	"github.com/Riboost-Studio/receipt-print-agent/internal/receipt"
)

// Control bytes.
const (
	ESC = 0x1B
	GS  = 0x1D
	FS  = 0x1C
	DLE = 0x10
	EOT = 0x04
	LF  = 0x0A
)

// LargeFontThreshold is the smallest font size printed double height.
const LargeFontThreshold = 24

var ErrNotConnected = errors.New("printer not connected")

var _ printer.Driver = (*Driver)(nil)

type Driver struct {
	printer model.Printer
	dial    Dialer
	log     *logger.Logger
	enc     *encoding.Encoder

	mu   sync.Mutex
	conn io.ReadWriteCloser
}

func New(p model.Printer, log *logger.Logger) *Driver {
	return &Driver{
		printer: p,
		dial:    Dial,
		log:     log.With(p.Name),
		enc:     encoding.ReplaceUnsupported(simplifiedchinese.GB18030.NewEncoder()),
	}
}

// WithDialer replaces the transport, mainly for tests.
func (d *Driver) WithDialer(dial Dialer) *Driver {
	d.dial = dial
	return d
}

func (d *Driver) Name() string { return d.printer.Name }

func (d *Driver) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}
	conn, err := d.dial(ctx, d.printer)
	if err != nil {
		return err
	}
	if err := probe(conn); err != nil {
		conn.Close()
		return err
	}
	d.conn = conn
	d.log.Info("Connected", fmt.Sprintf("%s %s", d.printer.Transport, d.printer.Key()))
	return nil
}

func (d *Driver) IsReady() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn != nil
}

// write sends b in one call. A failed write drops the connection so the
// next render reconnects.
func (d *Driver) write(b []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return ErrNotConnected
	}
	if _, err := d.conn.Write(b); err != nil {
		d.conn.Close()
		d.conn = nil
		return fmt.Errorf("write failed: %w", err)
	}
	return nil
}

func (d *Driver) encode(s string) []byte {
	out, err := d.enc.String(s)
	if err != nil {
		return []byte(s)
	}
	return []byte(out)
}

// Prepare resets the printer and enables the Chinese character mode.
func (d *Driver) Prepare() error {
	return d.write([]byte{ESC, '@', FS, '&'})
}

func (d *Driver) SetAlignment(a receipt.Align) error {
	n := byte(0)
	switch a {
	case receipt.AlignCenter:
		n = 1
	case receipt.AlignRight:
		n = 2
	}
	return d.write([]byte{ESC, 'a', n})
}

// SetFontSize maps point sizes onto the two heights thermal printers
// offer. Width stays single so the column layout keeps its character count.
func (d *Driver) SetFontSize(size int) error {
	n := byte(0x00)
	if size >= LargeFontThreshold {
		n = 0x01
	}
	return d.write([]byte{GS, '!', n})
}

func (d *Driver) SetBold(on bool) error {
	n := byte(0)
	if on {
		n = 1
	}
	return d.write([]byte{ESC, 'E', n})
}

func (d *Driver) PrintText(text string) error {
	return d.write(append(d.encode(text), LF))
}

func (d *Driver) PrintColumns(cols []receipt.Column) error {
	return d.write(append(d.encode(receipt.LayoutColumns(cols)), LF))
}

func (d *Driver) HorizontalRule() error {
	return d.write(append([]byte(strings.Repeat("-", receipt.LineWidth)), LF))
}

func (d *Driver) LineFeed(n int) error {
	if n <= 0 {
		return nil
	}
	if n > 255 {
		n = 255
	}
	return d.write([]byte{ESC, 'd', byte(n)})
}

// Cut feeds to the cutter and performs a partial cut (GS V 66 0).
func (d *Driver) Cut() error {
	return d.write([]byte{GS, 'V', 66, 0})
}

// WriteRaw sends bytes produced elsewhere, such as a raster image.
func (d *Driver) WriteRaw(b []byte) error {
	return d.write(b)
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	return err
}

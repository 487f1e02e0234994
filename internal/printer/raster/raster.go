// Package raster drives integrated receipt printers that print whole
// pages: directives compose a page, and the cut renders it to a bitmap.
package raster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Riboost-Studio/receipt-print-agent/internal/logger"
	"github.com/Riboost-Studio/receipt-print-agent/internal/model"
	"github.com/Riboost-Studio/receipt-print-agent/internal/printer"
	"github.com/Riboost-Studio/receipt-print-agent/internal/printer/escpos"
	"github.com/Riboost-Studio/receipt-print-agent/internal/receipt"
	"github.com/Riboost-Studio/receipt-print-agent/internal/utils"
)

const DefaultPaperWidth = 384

var (
	ErrNotConnected = errors.New("printer not connected")
	ErrNoRenderer   = errors.New("chrome/chromium is required but not installed")
)

var _ printer.Driver = (*Driver)(nil)

type Driver struct {
	printer model.Printer
	dial    escpos.Dialer
	raster  Rasterizer
	chrome  func() (bool, string)
	log     *logger.Logger
	width   int

	mu   sync.Mutex
	conn io.ReadWriteCloser
	page *receipt.Page
}

func New(p model.Printer, log *logger.Logger) *Driver {
	width := p.PaperWidth
	if width <= 0 {
		width = DefaultPaperWidth
	}
	return &Driver{
		printer: p,
		dial:    escpos.Dial,
		chrome:  utils.CheckChrome,
		log:     log.With(p.Name),
		width:   width,
		page:    receipt.NewPage(receipt.LineWidth),
	}
}

func (d *Driver) WithDialer(dial escpos.Dialer) *Driver {
	d.dial = dial
	return d
}

// WithRasterizer skips the Chrome lookup and uses r instead.
func (d *Driver) WithRasterizer(r Rasterizer) *Driver {
	d.raster = r
	d.chrome = func() (bool, string) { return true, "" }
	return d
}

func (d *Driver) Name() string { return d.printer.Name }

func (d *Driver) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.raster == nil {
		ok, path := d.chrome()
		if !ok {
			return ErrNoRenderer
		}
		d.raster = ChromeRasterizer{ExecPath: path}
	}
	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}
	conn, err := d.dial(ctx, d.printer)
	if err != nil {
		return err
	}
	d.conn = conn
	d.page.Reset()
	d.log.Info("Connected", fmt.Sprintf("%s %s, %dpx", d.printer.Transport, d.printer.Key(), d.width))
	return nil
}

func (d *Driver) IsReady() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn != nil && d.raster != nil
}

func (d *Driver) apply(dir receipt.Directive) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return ErrNotConnected
	}
	return d.page.Apply(dir)
}

func (d *Driver) Prepare() error {
	d.mu.Lock()
	d.page.Reset()
	d.mu.Unlock()
	return d.apply(receipt.Prepare())
}

func (d *Driver) SetAlignment(a receipt.Align) error       { return d.apply(receipt.SetAlign(a)) }
func (d *Driver) SetFontSize(size int) error               { return d.apply(receipt.FontSize(size)) }
func (d *Driver) SetBold(on bool) error                    { return d.apply(receipt.Bold(on)) }
func (d *Driver) PrintText(text string) error              { return d.apply(receipt.Text(text)) }
func (d *Driver) PrintColumns(cols []receipt.Column) error { return d.apply(receipt.Columns(cols...)) }
func (d *Driver) HorizontalRule() error                    { return d.apply(receipt.Rule()) }
func (d *Driver) LineFeed(n int) error                     { return d.apply(receipt.Feed(n)) }

// Cut renders the composed page and sends it to the device in one write.
func (d *Driver) Cut() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return ErrNotConnected
	}
	d.page.Cut = true
	defer d.page.Reset()

	html, err := d.page.HTML(d.width)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()
	img, err := d.raster.Rasterize(ctx, html, d.width)
	if err != nil {
		return err
	}
	img = ResizeToWidth(img, d.width)

	var job []byte
	job = append(job, 0x1B, 0x40)
	job = append(job, EncodeRaster(img)...)
	job = append(job, 0x1B, 0x64, 0x03)
	job = append(job, 0x1D, 0x56, 0x42, 0x00)

	d.log.Info("Sending page", fmt.Sprintf("%d bytes", len(job)))
	if _, err := d.conn.Write(job); err != nil {
		d.conn.Close()
		d.conn = nil
		return fmt.Errorf("write failed: %w", err)
	}
	return nil
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

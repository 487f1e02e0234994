package escpos

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"go.bug.st/serial"

	"github.com/Riboost-Studio/receipt-print-agent/internal/model"
)

const (
	DefaultPort     = 9100
	DefaultBaudRate = 9600
	dialTimeout     = 5 * time.Second
	probeTimeout    = 500 * time.Millisecond
)

// Dialer opens the byte stream to a printer.
type Dialer func(ctx context.Context, p model.Printer) (io.ReadWriteCloser, error)

// Dial opens the transport named by p.Transport. Paired Bluetooth printers
// show up as RFCOMM serial devices (/dev/rfcomm0, COM5).
func Dial(ctx context.Context, p model.Printer) (io.ReadWriteCloser, error) {
	switch p.Transport {
	case model.TransportBluetooth, model.TransportSerial:
		baud := p.BaudRate
		if baud == 0 {
			baud = DefaultBaudRate
		}
		port, err := serial.Open(p.Address, &serial.Mode{BaudRate: baud})
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", p.Address, err)
		}
		return port, nil

	case model.TransportTCP, "":
		port := p.Port
		if port == 0 {
			port = DefaultPort
		}
		d := net.Dialer{Timeout: dialTimeout}
		conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(p.Address, strconv.Itoa(port)))
		if err != nil {
			return nil, fmt.Errorf("connection failed: %w", err)
		}
		return conn, nil

	case model.TransportFile:
		f, err := os.OpenFile(p.Address, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", p.Address, err)
		}
		return f, nil
	}
	return nil, fmt.Errorf("unsupported transport %q", p.Transport)
}

// probe asks for the printer status (DLE EOT 1) on transports that can be
// read with a timeout. A silent printer is assumed online.
func probe(conn io.ReadWriter) error {
	switch c := conn.(type) {
	case net.Conn:
		if err := c.SetReadDeadline(time.Now().Add(probeTimeout)); err != nil {
			return nil
		}
		defer c.SetReadDeadline(time.Time{})
	case serial.Port:
		if err := c.SetReadTimeout(probeTimeout); err != nil {
			return nil
		}
	default:
		return nil
	}

	if _, err := conn.Write([]byte{DLE, EOT, 0x01}); err != nil {
		return fmt.Errorf("status request: %w", err)
	}
	buf := make([]byte, 1)
	n, err := conn.Read(buf)
	if err != nil || n == 0 {
		return nil
	}
	if buf[0]&0x08 != 0 {
		return fmt.Errorf("printer reports offline (status 0x%02x)", buf[0])
	}
	return nil
}

package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/Riboost-Studio/receipt-print-agent/internal/model"
)

// --- Utility Functions ---

func DetectLocalIP() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP.String(), nil
		}
	}
	return "", fmt.Errorf("no local IPv4 address found")
}

func Probe(ip string, port int) bool {
	addr := net.JoinHostPort(ip, fmt.Sprint(port))
	conn, err := net.DialTimeout("tcp", addr, 300*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// --- Printers File ---

func LoadPrinters(ctx context.Context) ([]model.Printer, error) {
	printersFile := ctx.Value(model.ContextPrintersFile).(string)
	if _, err := os.Stat(printersFile); os.IsNotExist(err) {
		return []model.Printer{}, nil
	}
	data, err := os.ReadFile(printersFile)
	if err != nil {
		return nil, err
	}
	var printers []model.Printer
	if err := json.Unmarshal(data, &printers); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", printersFile, err)
	}
	for i := range printers {
		fillPrinterDefaults(&printers[i])
	}
	return printers, nil
}

// SavePrinters merges printers into the file, keyed by address; entries
// already on file win.
func SavePrinters(printersFile string, printers []model.Printer) error {
	configDir := filepath.Dir(printersFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var existingPrinters []model.Printer
	if _, err := os.Stat(printersFile); err == nil {
		data, err := os.ReadFile(printersFile)
		if err != nil {
			return fmt.Errorf("failed to read existing printers file: %w", err)
		}
		if err := json.Unmarshal(data, &existingPrinters); err != nil {
			return fmt.Errorf("failed to unmarshal existing printers: %w", err)
		}
	}

	existing := make(map[string]bool)
	for i := range existingPrinters {
		fillPrinterDefaults(&existingPrinters[i])
		existing[existingPrinters[i].Key()] = true
	}
	for _, printer := range printers {
		fillPrinterDefaults(&printer)
		if !existing[printer.Key()] {
			existing[printer.Key()] = true
			existingPrinters = append(existingPrinters, printer)
		}
	}

	data, err := json.MarshalIndent(existingPrinters, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(printersFile, data, 0644)
}

// DefaultPrinter picks the enabled printer flagged default, else the first
// enabled one.
func DefaultPrinter(printers []model.Printer) (model.Printer, bool) {
	var first *model.Printer
	for i := range printers {
		p := &printers[i]
		if !p.IsEnabled {
			continue
		}
		if p.IsDefault {
			return *p, true
		}
		if first == nil {
			first = p
		}
	}
	if first == nil {
		return model.Printer{}, false
	}
	return *first, true
}

func fillPrinterDefaults(p *model.Printer) {
	if p.Family == "" {
		p.Family = model.FamilyESCPOS
	}
	if p.Transport == "" {
		p.Transport = model.TransportTCP
	}
	if p.Transport == model.TransportTCP && p.Port == 0 {
		p.Port = 9100
	}
	if p.PaperWidth == 0 {
		p.PaperWidth = 384
	}
}

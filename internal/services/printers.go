package services

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.bug.st/serial"

	"github.com/Riboost-Studio/receipt-print-agent/internal/logger"
	"github.com/Riboost-Studio/receipt-print-agent/internal/model"
	"github.com/Riboost-Studio/receipt-print-agent/internal/printer"
	"github.com/Riboost-Studio/receipt-print-agent/internal/printer/escpos"
	"github.com/Riboost-Studio/receipt-print-agent/internal/printer/raster"
	"github.com/Riboost-Studio/receipt-print-agent/internal/utils"
)

// NewDriver builds the driver for p's printer family.
func NewDriver(p model.Printer, log *logger.Logger) (printer.Driver, error) {
	switch p.Family {
	case model.FamilyESCPOS, "":
		return escpos.New(p, log), nil
	case model.FamilyRaster:
		return raster.New(p, log), nil
	}
	return nil, fmt.Errorf("unknown printer family %q", p.Family)
}

// --- Discovery Logic ---

// Candidate is a printer found during discovery, not yet confirmed.
type Candidate struct {
	Name      string
	Transport string
	Address   string
	Port      int
	Source    string
}

func (c Candidate) Printer() model.Printer {
	return model.Printer{
		Name:      c.Name,
		Family:    model.FamilyESCPOS,
		Transport: c.Transport,
		Address:   c.Address,
		Port:      c.Port,
		IsEnabled: true,
	}
}

// ScanSubnet probes port on every host of subnet (e.g. "192.168.1").
func ScanSubnet(ctx context.Context, subnet string, port int, probe func(string, int) bool) []string {
	ipChan := make(chan string, 256)
	foundChan := make(chan string, 256)
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ip := range ipChan {
				if ctx.Err() == nil && probe(ip, port) {
					foundChan <- ip
				}
			}
		}()
	}

	go func() {
		for i := 1; i <= 254; i++ {
			ipChan <- fmt.Sprintf("%s.%d", subnet, i)
		}
		close(ipChan)
		wg.Wait()
		close(foundChan)
	}()

	var found []string
	for ip := range foundChan {
		found = append(found, ip)
	}
	return found
}

// BrowseMDNS lists raw-print (port 9100) services announced on the LAN.
func BrowseMDNS(ctx context.Context, timeout time.Duration) ([]Candidate, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("mDNS resolver: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	var (
		mu    sync.Mutex
		found []Candidate
	)
	go func() {
		for e := range entries {
			if len(e.AddrIPv4) == 0 {
				continue
			}
			mu.Lock()
			found = append(found, Candidate{
				Name:      e.Instance,
				Transport: model.TransportTCP,
				Address:   e.AddrIPv4[0].String(),
				Port:      e.Port,
				Source:    "mdns",
			})
			mu.Unlock()
		}
	}()

	if err := resolver.Browse(ctx, "_pdl-datastream._tcp", "local.", entries); err != nil {
		return nil, fmt.Errorf("mDNS browse: %w", err)
	}
	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	return append([]Candidate(nil), found...), nil
}

// SerialCandidates lists serial ports; paired Bluetooth printers appear as
// rfcomm devices.
func SerialCandidates() []Candidate {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil
	}
	var out []Candidate
	for _, port := range ports {
		transport := model.TransportSerial
		if strings.Contains(strings.ToLower(port), "rfcomm") || strings.Contains(strings.ToLower(port), "bluetooth") {
			transport = model.TransportBluetooth
		}
		out = append(out, Candidate{Name: port, Transport: transport, Address: port, Source: "serial"})
	}
	return out
}

// DiscoverPrinters gathers candidates from the network and local ports and
// asks the operator which ones to keep.
func DiscoverPrinters(ctx context.Context, in io.Reader, out io.Writer, log *logger.Logger) []model.Printer {
	var candidates []Candidate
	seen := make(map[string]bool)
	add := func(c Candidate) {
		key := c.Printer().Key()
		if !seen[key] {
			seen[key] = true
			candidates = append(candidates, c)
		}
	}

	if localIP, err := utils.DetectLocalIP(); err != nil {
		log.Warning("Error detecting IP", err.Error())
	} else {
		parts := strings.Split(localIP, ".")
		subnet := strings.Join(parts[:3], ".")
		fmt.Fprintf(out, "Scanning subnet: %s.0/24\n", subnet)
		for _, ip := range ScanSubnet(ctx, subnet, escpos.DefaultPort, utils.Probe) {
			add(Candidate{Name: ip, Transport: model.TransportTCP, Address: ip, Port: escpos.DefaultPort, Source: "scan"})
		}
	}

	if found, err := BrowseMDNS(ctx, 3*time.Second); err != nil {
		log.Warning("mDNS browse failed", err.Error())
	} else {
		for _, c := range found {
			add(c)
		}
	}
	for _, c := range SerialCandidates() {
		add(c)
	}

	return confirmCandidates(candidates, bufio.NewReader(in), out)
}

func confirmCandidates(candidates []Candidate, reader *bufio.Reader, out io.Writer) []model.Printer {
	var newPrinters []model.Printer
	for _, c := range candidates {
		fmt.Fprintf(out, "Found %s printer at %s (%s). Add this printer? (y/n): ", c.Transport, c.Printer().Key(), c.Source)
		ans, _ := reader.ReadString('\n')
		if strings.TrimSpace(strings.ToLower(ans)) != "y" {
			continue
		}
		p := c.Printer()

		fmt.Fprint(out, "  Name (e.g., Counter): ")
		if name := readLine(reader); name != "" {
			p.Name = name
		}
		fmt.Fprint(out, "  Family escpos/raster (default escpos): ")
		if family := readLine(reader); family == model.FamilyRaster {
			p.Family = model.FamilyRaster
		}
		fmt.Fprint(out, "  Description (e.g., 58mm Bluetooth): ")
		p.Description = readLine(reader)

		newPrinters = append(newPrinters, p)
	}
	return newPrinters
}

func readLine(r *bufio.Reader) string {
	s, _ := r.ReadString('\n')
	return strings.TrimSpace(s)
}

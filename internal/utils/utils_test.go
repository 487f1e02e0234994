package utils

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Riboost-Studio/receipt-print-agent/internal/model"
)

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config", "config.json")
	os.MkdirAll(filepath.Dir(file), 0755)
	data, _ := json.Marshal(model.Config{ApiUrl: "http://api.local", APIKey: "k", DeviceID: "pos-1"})
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv("PRINTAGENT_API_KEY", "from-env")
	t.Setenv("PRINTAGENT_SWEEP_SECONDS", "30")

	ctx := context.WithValue(context.Background(), model.ContextConfigFile, file)
	ctx = context.WithValue(ctx, model.ContextAppVersion, "9.9.9")
	cfg, err := LoadOrSetupConfig(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ApiUrl != "http://api.local" || cfg.DeviceID != "pos-1" {
		t.Errorf("file values lost: %+v", cfg)
	}
	if cfg.APIKey != "from-env" || cfg.SweepSeconds != 30 {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
	if cfg.HistoryLimit != DefaultHistoryLimit || cfg.HTTPAddr != DefaultHTTPAddr || cfg.WsUrl != DefaultWSURL {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.AppVersion != "9.9.9" {
		t.Errorf("version = %q", cfg.AppVersion)
	}
}

func TestSetupConfigInteractive(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.json")
	ctx := context.WithValue(context.Background(), model.ContextConfigFile, file)

	in := strings.NewReader("\nws://ws.local/agent\nsecret\nkiosk-2\n")
	cfg, err := loadOrSetupConfig(ctx, in)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if cfg.ApiUrl != DefaultAPIURL || cfg.WsUrl != "ws://ws.local/agent" || cfg.APIKey != "secret" || cfg.DeviceID != "kiosk-2" {
		t.Errorf("cfg = %+v", cfg)
	}
	if _, err := os.Stat(file); err != nil {
		t.Errorf("config not saved: %v", err)
	}
}

func TestSavePrintersMerges(t *testing.T) {
	file := filepath.Join(t.TempDir(), "printers.json")
	first := []model.Printer{{Name: "Kitchen", Address: "192.168.1.50", IsEnabled: true}}
	if err := SavePrinters(file, first); err != nil {
		t.Fatalf("save: %v", err)
	}
	second := []model.Printer{
		{Name: "Renamed", Address: "192.168.1.50", Port: 9100},
		{Name: "Counter", Family: model.FamilyESCPOS, Transport: model.TransportBluetooth, Address: "/dev/rfcomm0", IsEnabled: true},
	}
	if err := SavePrinters(file, second); err != nil {
		t.Fatalf("save: %v", err)
	}

	ctx := context.WithValue(context.Background(), model.ContextPrintersFile, file)
	printers, err := LoadPrinters(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(printers) != 2 {
		t.Fatalf("printers = %+v", printers)
	}
	if printers[0].Name != "Kitchen" || printers[0].Port != 9100 || printers[0].Transport != model.TransportTCP {
		t.Errorf("first = %+v", printers[0])
	}
	if printers[1].PaperWidth != 384 {
		t.Errorf("paper width default = %d", printers[1].PaperWidth)
	}
}

func TestLoadPrintersMissingFile(t *testing.T) {
	ctx := context.WithValue(context.Background(), model.ContextPrintersFile, filepath.Join(t.TempDir(), "none.json"))
	printers, err := LoadPrinters(ctx)
	if err != nil || len(printers) != 0 {
		t.Errorf("printers = %v, err = %v", printers, err)
	}
}

func TestDefaultPrinter(t *testing.T) {
	printers := []model.Printer{
		{Name: "off", IsEnabled: false, IsDefault: true},
		{Name: "a", IsEnabled: true},
		{Name: "b", IsEnabled: true, IsDefault: true},
	}
	p, ok := DefaultPrinter(printers)
	if !ok || p.Name != "b" {
		t.Errorf("default = %+v", p)
	}
	p, ok = DefaultPrinter(printers[:2])
	if !ok || p.Name != "a" {
		t.Errorf("fallback = %+v", p)
	}
	if _, ok := DefaultPrinter(nil); ok {
		t.Error("expected no printer")
	}
}

func TestNeedsChrome(t *testing.T) {
	if NeedsChrome([]model.Printer{{Family: model.FamilyESCPOS, IsEnabled: true}}) {
		t.Error("escpos printer should not need chrome")
	}
	if !NeedsChrome([]model.Printer{{Family: model.FamilyRaster, IsEnabled: true}}) {
		t.Error("raster printer needs chrome")
	}
}

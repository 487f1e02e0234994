package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Riboost-Studio/receipt-print-agent/internal/api"
	"github.com/Riboost-Studio/receipt-print-agent/internal/logger"
	"github.com/Riboost-Studio/receipt-print-agent/internal/model"
	"github.com/Riboost-Studio/receipt-print-agent/internal/services"
	"github.com/Riboost-Studio/receipt-print-agent/internal/utils"
)

const (
	appName    = "Receipt Print Agent"
	appVersion = "1.0.0"
)

// --- Main ---

func main() {
	configFile := flag.String("config", "config/config.json", "path to the agent config")
	printersFile := flag.String("printers", "config/printers.json", "path to the printer list")
	discover := flag.Bool("discover", false, "scan for printers even when some are configured")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(appName, appVersion)
		return
	}

	ctx := context.Background()
	ctx = context.WithValue(ctx, model.ContextAppName, appName)
	ctx = context.WithValue(ctx, model.ContextAppVersion, appVersion)
	ctx = context.WithValue(ctx, model.ContextConfigFile, *configFile)
	ctx = context.WithValue(ctx, model.ContextPrintersFile, *printersFile)

	// 1. Load Configuration
	config, err := utils.LoadOrSetupConfig(ctx)
	if err != nil {
		log.Fatal("Config error: ", err)
	}
	appLog := logger.New(config.LogDir)
	defer appLog.Close()
	defer appLog.RecoverPanic()
	appLog.Info("Starting "+appName, "version "+config.AppVersion, "device "+config.DeviceID)
	appLog.Info("Configuration loaded", "API "+config.ApiUrl, "WS "+config.WsUrl)

	// 2. Load Printers
	printers, err := utils.LoadPrinters(ctx)
	if err != nil {
		appLog.Warning("Error loading printers, starting fresh", err.Error())
	}

	// 3. Discovery (if no printers found or forced)
	if len(printers) == 0 || *discover {
		fmt.Println("Starting printer discovery...")
		found := services.DiscoverPrinters(ctx, os.Stdin, os.Stdout, appLog)
		if len(found) > 0 {
			if err := utils.SavePrinters(*printersFile, found); err != nil {
				appLog.Error("Failed to save printers", err)
			}
			if printers, err = utils.LoadPrinters(ctx); err != nil {
				appLog.Fatal("Error reloading printers", err)
			}
		}
	}

	// 4. Check the platform for the configured printers
	if err := utils.ValidateSystemRequirements(printers); err != nil {
		appLog.Fatal("System requirements not met", err)
	}
	printer, ok := utils.DefaultPrinter(printers)
	if !ok {
		appLog.Fatal("No enabled printer configured", errors.New("add one to "+*printersFile+" or run with -discover"))
	}
	appLog.Info("Using printer", printer.Name, printer.Family+" over "+printer.Transport)

	// 5. Start the agent
	agent, err := services.NewAgent(config, printer, appLog)
	if err != nil {
		appLog.Fatal("Failed to create agent", err)
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := agent.Start(runCtx); err != nil {
		appLog.Fatal("Failed to start agent", err)
	}

	// 6. Local API
	server := &http.Server{
		Addr:    config.HTTPAddr,
		Handler: api.SetupRouter(api.NewHandler(agent), appLog),
	}
	go func() {
		appLog.Info("Local API listening", config.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("Local API stopped", err)
		}
	}()
	if err := agent.Announce(config.HTTPAddr); err != nil {
		appLog.Warning("mDNS announce failed", err.Error())
	}

	fmt.Printf("--- System Running. Printing to %s ---\n", printer.Name)

	// Wait for interrupt to exit cleanly
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	fmt.Println("\nShutting down...")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLog.Warning("Local API shutdown", err.Error())
	}
	cancel()
	if err := agent.Stop(shutdownCtx); err != nil {
		appLog.Error("Shutdown incomplete", err)
	}
	appLog.Info("Stopped")
}

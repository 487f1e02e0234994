package utils

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/Riboost-Studio/receipt-print-agent/internal/model"
)

// --- Defaults ---

const (
	DefaultAPIURL       = "https://api.perfect-menu.it"
	DefaultWSURL        = "wss://ws.perfect-menu.it/agent"
	DefaultHTTPAddr     = "127.0.0.1:8099"
	DefaultDBPath       = "data/printagent.db"
	DefaultLogDir       = "logs"
	DefaultAMQPQueue    = "print_jobs"
	DefaultHistoryLimit = 50
	DefaultSweepSeconds = 120
)

// LoadOrSetupConfig reads the config file, running the interactive first-run
// setup when it does not exist, then applies .env and environment overrides.
func LoadOrSetupConfig(ctx context.Context) (model.Config, error) {
	return loadOrSetupConfig(ctx, os.Stdin)
}

func loadOrSetupConfig(ctx context.Context, in io.Reader) (model.Config, error) {
	var config model.Config
	configFile := ctx.Value(model.ContextConfigFile).(string)

	// Ensure config directory exists
	configDir := filepath.Dir(configFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return config, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		config = setupConfig(ctx, bufio.NewReader(in))
		data, err := json.MarshalIndent(config, "", "  ")
		if err != nil {
			return config, err
		}
		if err := os.WriteFile(configFile, data, 0644); err != nil {
			return config, fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Println("Configuration saved.")
	} else {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return config, err
		}
		if err := json.Unmarshal(data, &config); err != nil {
			return config, fmt.Errorf("failed to parse %s: %w", configFile, err)
		}
	}

	// .env is optional
	_ = godotenv.Load()
	applyEnv(&config)
	applyDefaults(&config)
	if v, ok := ctx.Value(model.ContextAppVersion).(string); ok {
		config.AppVersion = v
	}
	return config, nil
}

func setupConfig(ctx context.Context, reader *bufio.Reader) model.Config {
	var config model.Config
	if v, ok := ctx.Value(model.ContextAppVersion).(string); ok {
		config.AppVersion = v
	}
	fmt.Println("--- Initial Setup ---")

	config.ApiUrl = prompt(reader, "Enter API URL", DefaultAPIURL)
	config.WsUrl = prompt(reader, "Enter WebSocket URL", DefaultWSURL)
	config.APIKey = prompt(reader, "Enter Server API Key", "")

	hostname, _ := os.Hostname()
	config.DeviceID = prompt(reader, "Enter Device ID", hostname)
	return config
}

func prompt(reader *bufio.Reader, label, def string) string {
	if def != "" {
		fmt.Printf("%s (default: %s): ", label, def)
	} else {
		fmt.Printf("%s: ", label)
	}
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return def
	}
	return input
}

func applyEnv(config *model.Config) {
	str := map[string]*string{
		"PRINTAGENT_API_URL":    &config.ApiUrl,
		"PRINTAGENT_WS_URL":     &config.WsUrl,
		"PRINTAGENT_API_KEY":    &config.APIKey,
		"PRINTAGENT_DEVICE_ID":  &config.DeviceID,
		"PRINTAGENT_HTTP_ADDR":  &config.HTTPAddr,
		"PRINTAGENT_DB_PATH":    &config.DBPath,
		"PRINTAGENT_LOG_DIR":    &config.LogDir,
		"PRINTAGENT_AMQP_URL":   &config.AMQPURL,
		"PRINTAGENT_AMQP_QUEUE": &config.AMQPQueue,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"PRINTAGENT_HISTORY_LIMIT": &config.HistoryLimit,
		"PRINTAGENT_SWEEP_SECONDS": &config.SweepSeconds,
	}
	for key, dst := range ints {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
}

func applyDefaults(config *model.Config) {
	if config.ApiUrl == "" {
		config.ApiUrl = DefaultAPIURL
	}
	if config.WsUrl == "" {
		config.WsUrl = DefaultWSURL
	}
	if config.HTTPAddr == "" {
		config.HTTPAddr = DefaultHTTPAddr
	}
	if config.DBPath == "" {
		config.DBPath = DefaultDBPath
	}
	if config.LogDir == "" {
		config.LogDir = DefaultLogDir
	}
	if config.AMQPQueue == "" {
		config.AMQPQueue = DefaultAMQPQueue
	}
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = DefaultHistoryLimit
	}
	if config.SweepSeconds <= 0 {
		config.SweepSeconds = DefaultSweepSeconds
	}
	if config.DeviceID == "" {
		config.DeviceID, _ = os.Hostname()
	}
}

package model

import "time"

// --- Configuration Structures ---

type Config struct {
	AppVersion   string `json:"appVersion"`
	ApiUrl       string `json:"apiUrl"`
	WsUrl        string `json:"wsUrl"`
	APIKey       string `json:"apiKey"`
	DeviceID     string `json:"deviceId"`
	HTTPAddr     string `json:"httpAddr"`
	DBPath       string `json:"dbPath"`
	LogDir       string `json:"logDir"`
	AMQPURL      string `json:"amqpUrl,omitempty"`
	AMQPQueue    string `json:"amqpQueue,omitempty"`
	HistoryLimit int    `json:"historyLimit"`
	SweepSeconds int    `json:"sweepSeconds"`
}

// SweepInterval is how often unprinted upstream orders are re-checked.
func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepSeconds) * time.Second
}

// Printer families.
const (
	FamilyESCPOS = "escpos"
	FamilyRaster = "raster"
)

// Printer transports.
const (
	TransportBluetooth = "bluetooth"
	TransportSerial    = "serial"
	TransportTCP       = "tcp"
	TransportFile      = "file"
)

type Printer struct {
	Name        string `json:"name"`
	Family      string `json:"family"`
	Transport   string `json:"transport"`
	Address     string `json:"address"`
	Port        int    `json:"port,omitempty"`
	BaudRate    int    `json:"baudRate,omitempty"`
	Model       string `json:"model,omitempty"`
	Description string `json:"description,omitempty"`
	PaperWidth  int    `json:"paperWidth,omitempty"` // dots; 384 for 58mm, 576 for 80mm
	IsEnabled   bool   `json:"isEnabled"`
	IsDefault   bool   `json:"isDefault,omitempty"`
}

// Key identifies a printer across discovery runs.
func (p Printer) Key() string {
	if p.Transport == TransportTCP {
		return p.Address + ":" + itoa(p.Port)
	}
	return p.Address
}

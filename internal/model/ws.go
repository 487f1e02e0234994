package model

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventPrintJob       EventType = "print_job"
	EventJobUpdate      EventType = "job_update"
	EventRegisterDevice EventType = "register_device"
	EventPrintAck       EventType = "print_acknowledged"
	EventPing           EventType = "ping"
	EventPong           EventType = "pong"
)

// --- WebSocket Messages ---

type Envelope struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"` // Keep raw, shape depends on the source
}

type RegisterDevice struct {
	DeviceID   string    `json:"deviceId"`
	Type       string    `json:"type"`
	Model      string    `json:"model"`
	Connected  bool      `json:"connected"`
	AppVersion string    `json:"appVersion,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

type PrintAck struct {
	DeviceID string    `json:"deviceId"`
	JobID    string    `json:"jobId"`
	Status   JobStatus `json:"status"`
	Error    string    `json:"error,omitempty"`
}

// JobUpdate carries the server's authoritative job lists.
type JobUpdate struct {
	Pending   []json.RawMessage `json:"pending"`
	Completed []json.RawMessage `json:"completed"`
}

type ReprintLog struct {
	DeviceID    string    `json:"deviceId"`
	JobID       string    `json:"jobId"`
	OrderNumber string    `json:"orderNumber"`
	Timestamp   time.Time `json:"timestamp"`
}

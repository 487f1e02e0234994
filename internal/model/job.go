package model

import "time"

type JobStatus string

const (
	JobPending  JobStatus = "pending"
	JobPrinting JobStatus = "printing"
	JobPrinted  JobStatus = "printed"
	JobFailed   JobStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s JobStatus) Terminal() bool {
	return s == JobPrinted || s == JobFailed
}

// CanTransition validates pending -> printing -> printed|failed.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobPending:
		return next == JobPrinting
	case JobPrinting:
		return next == JobPrinted || next == JobFailed
	}
	return false
}

// Job sources.
const (
	SourceSocket = "socket"
	SourceSweep  = "sweep"
	SourceAMQP   = "amqp"
	SourceAPI    = "api"
)

// Item is one normalized receipt line.
type Item struct {
	NameCN   string  `json:"name_cn"`
	NameEN   string  `json:"name_en"`
	Unit     string  `json:"unit"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
}

// Payload is the canonical order the receipt formatter consumes.
type Payload struct {
	CustomerName string  `json:"customerName"`
	Contact      string  `json:"contact"`
	Address      string  `json:"address"`
	OrderNumber  string  `json:"orderNumber"`
	DeliveryDate string  `json:"deliveryDate"`
	Items        []Item  `json:"items"`
	Total        float64 `json:"total"`
}

type PrintJob struct {
	JobID             string     `json:"jobId"`
	Attempt           int        `json:"attempt,omitempty"`
	SourceOrderNumber string     `json:"sourceOrderNumber"`
	Source            string     `json:"source,omitempty"`
	Payload           Payload    `json:"payload"`
	Status            JobStatus  `json:"status"`
	Error             string     `json:"error,omitempty"`
	EnqueuedAt        time.Time  `json:"enqueuedAt"`
	PrintedAt         *time.Time `json:"printedAt,omitempty"`
}

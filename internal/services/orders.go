package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Riboost-Studio/receipt-print-agent/internal/model"
)

// --- Order-management REST API ---

// UpstreamOrder is one entry of the order list: the raw document plus the
// fields the sweep filters on.
type UpstreamOrder struct {
	OrderNumber    string
	ReceiptPrinted bool
	Raw            json.RawMessage
}

type OrderAPI struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewOrderAPI(baseURL, apiKey string) *OrderAPI {
	return &OrderAPI{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (a *OrderAPI) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		req.Header.Set("X-Api-Key", a.apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("API Error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// FetchOrders lists every order the server knows about.
func (a *OrderAPI) FetchOrders(ctx context.Context) ([]UpstreamOrder, error) {
	var resp model.OrdersResponse
	if err := a.do(ctx, http.MethodGet, "/mobileapi/orders", nil, &resp); err != nil {
		return nil, err
	}

	var orders []UpstreamOrder
	for _, raw := range resp.All() {
		var o model.OrderFlags
		if err := json.Unmarshal(raw, &o); err != nil {
			// Keep it; the normalizer reports why it is malformed.
			orders = append(orders, UpstreamOrder{Raw: raw})
			continue
		}
		orders = append(orders, UpstreamOrder{OrderNumber: o.OrderNumber, ReceiptPrinted: o.ReceiptPrinted, Raw: raw})
	}
	return orders, nil
}

// MarkPrinted sets receiptPrinted on the order. The server treats repeats
// as no-ops.
func (a *OrderAPI) MarkPrinted(ctx context.Context, orderNumber string) error {
	body := map[string]interface{}{"orderNumber": orderNumber, "receiptPrinted": true}
	return a.do(ctx, http.MethodPatch, "/mobileapi/orders/print-status", body, nil)
}

// Acknowledge is the REST route for print_acknowledged.
func (a *OrderAPI) Acknowledge(ctx context.Context, ack model.PrintAck) error {
	return a.do(ctx, http.MethodPost, "/printer/acknowledge", ack, nil)
}

func (a *OrderAPI) RegisterPrinter(ctx context.Context, reg model.RegisterDevice) error {
	return a.do(ctx, http.MethodPost, "/printer/register", reg, nil)
}

func (a *OrderAPI) LogReprint(ctx context.Context, entry model.ReprintLog) error {
	return a.do(ctx, http.MethodPost, "/printer/reprint-log", entry, nil)
}

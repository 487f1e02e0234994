package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Riboost-Studio/receipt-print-agent/internal/model"
)

func TestFetchOrders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/mobileapi/orders" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "secret" {
			t.Errorf("api key = %q", r.Header.Get("X-Api-Key"))
		}
		w.Write([]byte(`{"order":[` + string(orderDoc("ORD-1", false)) + `,` + string(orderDoc("ORD-2", true)) + `]}`))
	}))
	defer srv.Close()

	orders, err := NewOrderAPI(srv.URL+"/", "secret").FetchOrders(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("orders = %d", len(orders))
	}
	if orders[0].OrderNumber != "ORD-1" || orders[0].ReceiptPrinted || !orders[1].ReceiptPrinted {
		t.Errorf("orders = %+v", orders)
	}
	if len(orders[0].Raw) == 0 {
		t.Error("raw document missing")
	}
}

func TestMarkPrinted(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/mobileapi/orders/print-status" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := NewOrderAPI(srv.URL, "").MarkPrinted(context.Background(), "ORD-9"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if got["orderNumber"] != "ORD-9" || got["receiptPrinted"] != true {
		t.Errorf("body = %v", got)
	}
}

func TestAPIErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "order not found", http.StatusNotFound)
	}))
	defer srv.Close()

	err := NewOrderAPI(srv.URL, "").Acknowledge(context.Background(), model.PrintAck{JobID: "j"})
	if err == nil || !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "order not found") {
		t.Errorf("err = %v", err)
	}
}

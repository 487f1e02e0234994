package model

import "encoding/json"

// --- Upstream Order Structures (order-management API) ---

// OrdersResponse keeps each order raw so the normalizer sees every field.
type OrdersResponse struct {
	Order  []json.RawMessage `json:"order"`
	Orders []json.RawMessage `json:"orders"`
	Data   struct {
		Orders []json.RawMessage `json:"orders"`
	} `json:"data"`
}

// All returns whichever list the server filled in.
func (r OrdersResponse) All() []json.RawMessage {
	switch {
	case len(r.Order) > 0:
		return r.Order
	case len(r.Orders) > 0:
		return r.Orders
	}
	return r.Data.Orders
}

// OrderFlags are the fields read from an order before it is normalized.
type OrderFlags struct {
	ID             string `json:"_id"`
	OrderNumber    string `json:"orderNumber"`
	ReceiptPrinted bool   `json:"receiptPrinted"`
}

type Customer struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
	Address     string `json:"address"`
	Discount    Number `json:"discount"`
}

type Product struct {
	ProductName     string `json:"productName"`
	ProductMandarin string `json:"productMandarin"`
	Unit            string `json:"unit"`
	Price           Number `json:"price"`
}

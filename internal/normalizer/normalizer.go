// Package normalizer maps the different upstream order shapes (socket
// push, REST order list entry, full order document) onto one payload.
package normalizer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/Riboost-Studio/receipt-print-agent/internal/model"
)

// jobNamespace seeds deterministic job ids derived from order numbers.
var jobNamespace = uuid.MustParse("6f1c3b52-8a4e-4c1b-9d7e-2b5f0e4a9c31")

// fallbackSeq keeps timestamp-based job ids unique within the process.
var fallbackSeq atomic.Uint64

// DiscountProduct is the only product the customer discount applies to.
const DiscountProduct = "roast meat"

// rawJob is the union of every field seen across upstream shapes.
type rawJob struct {
	JobID           string          `json:"jobId"`
	ID              string          `json:"_id"`
	OrdersFull      json.RawMessage `json:"ordersfull"`
	OrderNumber     string          `json:"orderNumber"`
	DeliveryDate    string          `json:"deliveryDate"`
	DeliveryAddress string          `json:"deliveryAddress"`
	Address         string          `json:"address"`
	CustomerAddress string          `json:"customerAddress"`
	CustomerName    string          `json:"customerName"`
	Contact         string          `json:"contact"`
	Phone           string          `json:"phone"`
	Customer        json.RawMessage `json:"customer"`
	Items           *[]rawItem      `json:"items"`
	Total           *model.Number   `json:"total"`
	TotalAmount     *model.Number   `json:"totalAmount"`
	ReceiptPrinted  bool            `json:"receiptPrinted"`
}

type rawItem struct {
	Product         *model.Product `json:"product"`
	Name            string         `json:"name"`
	NameCN          string         `json:"name_cn"`
	NameEN          string         `json:"name_en"`
	ProductName     string         `json:"productName"`
	ProductMandarin string         `json:"productMandarin"`
	Unit            string         `json:"unit"`
	Quantity        model.Number   `json:"quantity"`
	Price           *model.Number  `json:"price"`
	UnitPrice       *model.Number  `json:"unitPrice"`
}

// Result is a normalized order plus the identifiers that travel with it.
type Result struct {
	JobID          string
	Payload        model.Payload
	ReceiptPrinted bool
}

type Normalizer struct {
	now func() time.Time
}

func New() *Normalizer {
	return &Normalizer{now: time.Now}
}

// WithClock replaces the clock used for timestamp-based job ids.
func (n *Normalizer) WithClock(now func() time.Time) *Normalizer {
	n.now = now
	return n
}

// Normalize decodes any supported upstream shape. It returns a
// *MalformedJobError when items or customer are missing entirely.
func (n *Normalizer) Normalize(raw []byte) (Result, error) {
	var job rawJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return Result{}, &MalformedJobError{Err: fmt.Errorf("decode: %w", err)}
	}

	// Socket pushes may wrap the full order document, sometimes as a JSON
	// string, under "ordersfull".
	if doc := unwrapDocument(job.OrdersFull); doc != nil {
		var inner rawJob
		if err := json.Unmarshal(doc, &inner); err != nil {
			return Result{}, &MalformedJobError{JobID: job.JobID, Err: fmt.Errorf("decode ordersfull: %w", err)}
		}
		if inner.JobID == "" {
			inner.JobID = job.JobID
		}
		job = inner
	}

	cust, hasCustomer, err := decodeCustomer(job.Customer)
	if err != nil {
		return Result{}, &MalformedJobError{JobID: job.JobID, Err: err}
	}
	if !hasCustomer && job.CustomerName == "" && job.Contact == "" && job.Phone == "" {
		return Result{}, &MalformedJobError{JobID: job.JobID, Err: ErrMissingCustomer}
	}
	if job.Items == nil {
		return Result{}, &MalformedJobError{JobID: job.JobID, Err: ErrMissingItems}
	}

	p := model.Payload{
		CustomerName: firstNonEmpty(cust.Name, job.CustomerName),
		Contact:      NormalizePhone(firstNonEmpty(cust.PhoneNumber, job.Contact, job.Phone)),
		Address:      firstNonEmpty(cust.Address, job.CustomerAddress, job.DeliveryAddress, job.Address),
		OrderNumber:  job.OrderNumber,
		DeliveryDate: job.DeliveryDate,
		Total:        firstNumber(job.TotalAmount, job.Total),
	}
	for _, it := range *job.Items {
		p.Items = append(p.Items, normalizeItem(it, cust.Discount.Float()))
	}

	return Result{
		JobID:          n.jobID(job),
		Payload:        p,
		ReceiptPrinted: job.ReceiptPrinted,
	}, nil
}

// Job normalizes raw and wraps it as a pending PrintJob.
func (n *Normalizer) Job(raw []byte, source string) (model.PrintJob, error) {
	res, err := n.Normalize(raw)
	if err != nil {
		return model.PrintJob{}, err
	}
	return model.PrintJob{
		JobID:             res.JobID,
		SourceOrderNumber: res.Payload.OrderNumber,
		Source:            source,
		Payload:           res.Payload,
		Status:            model.JobPending,
		EnqueuedAt:        n.now(),
	}, nil
}

func (n *Normalizer) jobID(job rawJob) string {
	switch {
	case job.JobID != "":
		return job.JobID
	case job.ID != "":
		return job.ID
	case job.OrderNumber != "":
		return uuid.NewSHA1(jobNamespace, []byte(job.OrderNumber)).String()
	}
	return fmt.Sprintf("JOB-%d-%d", n.now().UnixMilli(), fallbackSeq.Add(1))
}

func normalizeItem(it rawItem, discount float64) model.Item {
	out := model.Item{
		NameCN:   firstNonEmpty(it.NameCN, it.ProductMandarin),
		NameEN:   firstNonEmpty(it.NameEN, it.ProductName, it.Name),
		Unit:     it.Unit,
		Quantity: it.Quantity.Float(),
	}

	var base float64
	canonical := firstNonEmpty(it.ProductName, it.NameEN, it.Name)
	if it.Product != nil {
		out.NameCN = firstNonEmpty(it.Product.ProductMandarin, out.NameCN)
		out.NameEN = firstNonEmpty(it.Product.ProductName, out.NameEN)
		out.Unit = firstNonEmpty(it.Product.Unit, out.Unit)
		canonical = firstNonEmpty(it.Product.ProductName, canonical)
		base = it.Product.Price.Float()
		if base == 0 {
			base = firstNumber(it.UnitPrice, it.Price)
		}
	} else {
		base = firstNumber(it.UnitPrice, it.Price)
	}

	out.Unit = StripDigits(out.Unit)
	out.Price = ApplyDiscount(canonical, base, discount)
	return out
}

// ApplyDiscount subtracts the customer discount from the unit price of the
// roast meat product only, never going below zero.
func ApplyDiscount(productName string, price, discount float64) float64 {
	if discount == 0 || !strings.EqualFold(productName, DiscountProduct) {
		return price
	}
	return math.Max(0, price-discount)
}

// StripDigits turns "1kg" into "kg".
func StripDigits(unit string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return -1
		}
		return r
	}, unit))
}

// NormalizePhone keeps digits only behind a leading "+". Inputs without
// any digit normalize to "".
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "+" + b.String()
}

func unwrapDocument(raw json.RawMessage) []byte {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || strings.TrimSpace(s) == "" {
			return nil
		}
		return []byte(s)
	}
	return raw
}

// decodeCustomer accepts either a customer object or a bare name string.
func decodeCustomer(raw json.RawMessage) (model.Customer, bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return model.Customer{}, false, nil
	}
	if raw[0] == '"' {
		var name string
		if err := json.Unmarshal(raw, &name); err != nil {
			return model.Customer{}, false, fmt.Errorf("decode customer: %w", err)
		}
		return model.Customer{Name: name}, true, nil
	}
	var c model.Customer
	if err := json.Unmarshal(raw, &c); err != nil {
		return model.Customer{}, false, fmt.Errorf("decode customer: %w", err)
	}
	return c, true, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNumber(values ...*model.Number) float64 {
	for _, v := range values {
		if v != nil {
			return v.Float()
		}
	}
	return 0
}

package receipt

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Riboost-Studio/receipt-print-agent/internal/model"
)

// Column widths for 58mm paper (32 characters per line).
const (
	NameWidth  = 22
	ValueWidth = 10
	LineWidth  = NameWidth + ValueWidth
)

// Font sizes in printer points.
const (
	SizeHeader   = 22
	SizeItemMain = 28
	SizeItemSub  = 18
	SizeTotal    = 26
)

// Format lays out the fixed receipt: customer block, items, total, cut.
func Format(p model.Payload) []Directive {
	delivery := p.DeliveryDate
	if delivery == "" {
		delivery = "N/A"
	}

	ds := []Directive{
		Prepare(),
		SetAlign(AlignLeft),
		FontSize(SizeHeader),
		Bold(true),
		Text("Customer: " + p.CustomerName),
		Text("Phone: " + p.Contact),
		Text("Delivery Date: " + FormatDateWithDay(delivery)),
		Text(p.Address),
		Text("Invoice : " + p.OrderNumber),
		Feed(1),
		Rule(),
	}

	for _, it := range p.Items {
		primary := it.NameCN
		if primary == "" {
			primary = it.NameEN
		}
		qty := strings.TrimSpace(FormatQuantity(it.Quantity) + " " + it.Unit)
		ds = append(ds,
			FontSize(SizeItemMain),
			Bold(true),
			Columns(
				Column{Text: primary, Width: NameWidth, Align: AlignLeft},
				Column{Text: qty, Width: ValueWidth, Align: AlignRight},
			),
			FontSize(SizeItemSub),
			Bold(false),
			Columns(
				Column{Text: it.NameEN, Width: NameWidth, Align: AlignLeft},
				Column{Text: Money(it.Price), Width: ValueWidth, Align: AlignRight},
			),
			Feed(1),
		)
	}

	ds = append(ds,
		Rule(),
		FontSize(SizeTotal),
		Bold(true),
		Columns(
			Column{Text: "TOTAL", Width: NameWidth, Align: AlignLeft},
			Column{Text: Money(p.Total), Width: ValueWidth, Align: AlignRight},
		),
		Feed(3),
		Cut(),
	)
	return ds
}

// Money renders an amount as "RM 12.50".
func Money(v float64) string {
	return fmt.Sprintf("RM %.2f", v)
}

// FormatQuantity drops a trailing ".0" so "2" prints as 2 and 1.5 as 1.5.
func FormatQuantity(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

var weekdaysZH = [7]string{"日", "一", "二", "三", "四", "五", "六"}

// FormatDateWithDay turns "D/M/Y" into "D/M/Y Ddd (日)". Anything that does
// not parse to the exact same calendar date is returned unchanged.
func FormatDateWithDay(input string) string {
	parts := strings.Split(input, "/")
	if len(parts) != 3 {
		return input
	}
	var nums [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n == 0 {
			return input
		}
		nums[i] = n
	}
	day, month, year := nums[0], nums[1], nums[2]
	// Two-digit years never round-trip upstream (24 is read as 1924).
	if year < 100 {
		return input
	}

	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if date.Day() != day || int(date.Month()) != month || date.Year() != year {
		return input
	}

	wd := date.Weekday()
	return fmt.Sprintf("%d/%d/%d %s (%s)", day, month, year, wd.String()[:3], weekdaysZH[wd])
}

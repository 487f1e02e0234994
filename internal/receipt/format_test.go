package receipt

import (
	"strings"
	"testing"

	"github.com/Riboost-Studio/receipt-print-agent/internal/model"
)

func TestFormatDateWithDay(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"29/2/2024", "29/2/2024 Thu (四)"},
		{"1/1/2026", "1/1/2026 Thu (四)"},
		{"19/10/2026", "19/10/2026 Mon (一)"},
		{"31/4/2026", "31/4/2026"},
		{"29/2/2025", "29/2/2025"},
		{"32/13/2026", "32/13/2026"},
		{"0/1/2026", "0/1/2026"},
		{"29/2/24", "29/2/24"},
		{"1/1/99", "1/1/99"},
		{"2026-01-01 18:30", "2026-01-01 18:30"},
		{"N/A", "N/A"},
		{"", ""},
	}
	for _, c := range cases {
		if got := FormatDateWithDay(c.in); got != c.want {
			t.Errorf("FormatDateWithDay(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func samplePayload() model.Payload {
	return model.Payload{
		CustomerName: "Mr. Lim Wei Jian",
		Contact:      "+60123456789",
		Address:      "No. 8, Jalan Bukit Indah 3",
		OrderNumber:  "ORD-20260101-001",
		DeliveryDate: "29/2/2024",
		Items: []model.Item{
			{NameCN: "烧肉", NameEN: "Roast Meat", Unit: "kg", Quantity: 2, Price: 17},
			{NameEN: "Local Pork Belly", Unit: "pcs", Quantity: 1.5, Price: 38},
		},
		Total: 95,
	}
}

func TestFormatLayout(t *testing.T) {
	ds := Format(samplePayload())

	if ds[0].Kind != KindPrepare || ds[len(ds)-1].Kind != KindCut {
		t.Fatalf("receipt must start with prepare and end with cut: %+v ... %+v", ds[0], ds[len(ds)-1])
	}
	if ds[len(ds)-2].Kind != KindFeed || ds[len(ds)-2].Lines != 3 {
		t.Fatalf("expected trailing feed(3), got %+v", ds[len(ds)-2])
	}

	var texts []string
	var rows [][]Column
	rules := 0
	for _, d := range ds {
		switch d.Kind {
		case KindText:
			texts = append(texts, d.Text)
		case KindColumns:
			rows = append(rows, d.Columns)
		case KindRule:
			rules++
		}
	}

	wantTexts := []string{
		"Customer: Mr. Lim Wei Jian",
		"Phone: +60123456789",
		"Delivery Date: 29/2/2024 Thu (四)",
		"No. 8, Jalan Bukit Indah 3",
		"Invoice : ORD-20260101-001",
	}
	if strings.Join(texts, "|") != strings.Join(wantTexts, "|") {
		t.Fatalf("customer block = %q", texts)
	}
	if rules != 2 {
		t.Fatalf("rules = %d, want 2", rules)
	}
	if len(rows) != 5 {
		t.Fatalf("rows = %d, want 5 (2 per item + total)", len(rows))
	}
	for _, r := range rows {
		if len(r) != 2 || r[0].Width != 22 || r[1].Width != 10 {
			t.Fatalf("bad column widths: %+v", r)
		}
	}
	if rows[0][0].Text != "烧肉" || rows[0][1].Text != "2 kg" {
		t.Fatalf("item main row = %+v", rows[0])
	}
	if rows[1][0].Text != "Roast Meat" || rows[1][1].Text != "RM 17.00" {
		t.Fatalf("item sub row = %+v", rows[1])
	}
	// Missing Chinese name falls back to the English one.
	if rows[2][0].Text != "Local Pork Belly" || rows[2][1].Text != "1.5 pcs" {
		t.Fatalf("second item row = %+v", rows[2])
	}
	if rows[4][0].Text != "TOTAL" || rows[4][1].Text != "RM 95.00" {
		t.Fatalf("total row = %+v", rows[4])
	}
}

func TestFormatItemStyles(t *testing.T) {
	ds := Format(samplePayload())
	// Walk the directives tracking style; each column row must carry the
	// style the layout calls for.
	size, bold := 0, false
	var styles []string
	for _, d := range ds {
		switch d.Kind {
		case KindFont:
			size = d.Size
		case KindBold:
			bold = d.Bold
		case KindColumns:
			if bold {
				styles = append(styles, "B"+FormatQuantity(float64(size)))
			} else {
				styles = append(styles, "R"+FormatQuantity(float64(size)))
			}
		}
	}
	want := "B28 R18 B28 R18 B26"
	if got := strings.Join(styles, " "); got != want {
		t.Fatalf("row styles = %q, want %q", got, want)
	}
}

func TestMissingDeliveryDate(t *testing.T) {
	p := samplePayload()
	p.DeliveryDate = ""
	for _, d := range Format(p) {
		if d.Kind == KindText && strings.HasPrefix(d.Text, "Delivery Date:") {
			if d.Text != "Delivery Date: N/A" {
				t.Fatalf("got %q", d.Text)
			}
			return
		}
	}
	t.Fatal("no delivery date line")
}

func TestLayoutColumns(t *testing.T) {
	got := LayoutColumns([]Column{
		{Text: "TOTAL", Width: 22, Align: AlignLeft},
		{Text: "RM 95.00", Width: 10, Align: AlignRight},
	})
	want := "TOTAL" + strings.Repeat(" ", 17) + "  RM 95.00"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}

	// Two wide runes take four cells.
	got = LayoutColumns([]Column{{Text: "烧肉", Width: 6, Align: AlignLeft}})
	if got != "烧肉  " {
		t.Fatalf("wide layout = %q", got)
	}

	got = LayoutColumns([]Column{{Text: "Imported Beef Slice Premium", Width: 10, Align: AlignLeft}})
	if got != "Imported B" {
		t.Fatalf("truncation = %q", got)
	}
}

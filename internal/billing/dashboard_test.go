package billing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
	"github.com/shopspring/decimal"
)

func TestComputeStats(t *testing.T) {
	medicines := []Medicine{
		{ID: 1, Stock: 0},
		{ID: 2, Stock: 9},
		{ID: 3, Stock: 10},
		{ID: 4, Stock: 250},
	}
	customers := []Customer{{ID: 5}, {ID: 6}}
	invoices := []Invoice{
		{ID: 7, TotalAmount: decimal.NewNullDecimal(decimal.RequireFromString("37.50"))},
		{ID: 8},
		{ID: 9, TotalAmount: decimal.NewNullDecimal(decimal.RequireFromString("0.10"))},
		{ID: 10, TotalAmount: decimal.NewNullDecimal(decimal.RequireFromString("0.20"))},
	}

	stats := ComputeStats(medicines, customers, invoices)
	if stats.TotalMedicines != 4 || stats.TotalCustomers != 2 || stats.TotalInvoices != 4 {
		t.Errorf("counts = %+v", stats)
	}
	if stats.LowStockMedicines != 2 {
		t.Errorf("low stock = %d, want 2", stats.LowStockMedicines)
	}
	if !stats.TotalRevenue.Equal(decimal.RequireFromString("37.80")) {
		t.Errorf("revenue = %s, want 37.80", stats.TotalRevenue)
	}

	empty := ComputeStats(nil, nil, nil)
	if empty.TotalInvoices != 0 || !empty.TotalRevenue.IsZero() {
		t.Errorf("empty stats = %+v", empty)
	}
}

func TestLoadStats(t *testing.T) {
	backend, client := newTestClient(t)
	asha := backend.AddCustomer("Asha Rao", "")
	backend.AddMedicine("Paracetamol", "12.50", 50)
	backend.AddMedicine("Amoxicillin", "8.00", 4)
	backend.AddInvoice(asha, "37.50")
	backend.AddInvoice(asha, "")
	ctx := context.Background()

	stats, err := LoadStats(ctx, client)
	if err != nil {
		t.Fatal(err)
	}
	want := Stats{TotalMedicines: 2, TotalCustomers: 1, TotalInvoices: 2, LowStockMedicines: 1}
	if stats.TotalMedicines != want.TotalMedicines || stats.TotalCustomers != want.TotalCustomers ||
		stats.TotalInvoices != want.TotalInvoices || stats.LowStockMedicines != want.LowStockMedicines {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
	if client.FormatCurrency(stats.TotalRevenue) != "₹37.50" {
		t.Errorf("revenue = %s", client.FormatCurrency(stats.TotalRevenue))
	}

	backend.Fail(http.MethodGet, "/customers/", http.StatusInternalServerError, "")
	if _, err := LoadStats(ctx, client); err == nil {
		t.Error("a failed collection should fail the dashboard")
	}
}

func TestRecentInvoices(t *testing.T) {
	backend, client := newTestClient(t)
	asha := backend.AddCustomer("Asha Rao", "")
	var ids []int
	for i := 0; i < 7; i++ {
		ids = append(ids, backend.AddInvoice(asha, "10.00"))
	}

	recent, err := RecentInvoices(context.Background(), client)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != RecentInvoiceCount {
		t.Fatalf("got %d invoices, want %d", len(recent), RecentInvoiceCount)
	}
	if recent[0].ID != ids[6] || recent[4].ID != ids[2] {
		t.Errorf("recent = %v, want the newest in backend order", invoiceIDs(recent))
	}
}

func TestLoadSummaryKeepsStatsWithoutRecent(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()
	want := Stats{TotalInvoices: 7}

	stats, recent, err := loadSummary(ctx, logger,
		func(context.Context) (Stats, error) { return want, nil },
		func(context.Context) ([]Invoice, error) { return nil, errors.New("connection reset") },
	)
	if err != nil {
		t.Fatalf("a failed recent list failed the summary: %v", err)
	}
	if stats.TotalInvoices != 7 || len(recent) != 0 {
		t.Errorf("stats = %+v, recent = %v", stats, recent)
	}

	_, _, err = loadSummary(ctx, logger,
		func(context.Context) (Stats, error) { return Stats{}, errors.New("connection reset") },
		func(context.Context) ([]Invoice, error) { return []Invoice{{ID: 1}}, nil },
	)
	if err == nil {
		t.Error("failed figures should fail the summary")
	}
}

func TestFitWidth(t *testing.T) {
	tests := []struct {
		in   string
		w    int
		want string
	}{
		{"Asha Rao", 10, "Asha Rao  "},
		{"Paracetamol 500mg", 10, "Paracet..."},
		{"आशा राव शर्मा कुमारी", 10, ""},
		{"₹₹₹₹₹₹₹₹₹₹₹₹", 8, "₹₹₹₹₹..."},
	}
	for _, tt := range tests {
		got := fitWidth(tt.in, tt.w)
		if !utf8.ValidString(got) {
			t.Errorf("fitWidth(%q) = %q, not valid UTF-8", tt.in, got)
		}
		if runewidth.StringWidth(got) != tt.w {
			t.Errorf("fitWidth(%q) is %d cells wide, want %d", tt.in, runewidth.StringWidth(got), tt.w)
		}
		if tt.want != "" && got != tt.want {
			t.Errorf("fitWidth(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if runewidth.StringWidth(tt.in) > tt.w && !strings.HasSuffix(got, "...") {
			t.Errorf("fitWidth(%q) = %q, want a marked cut", tt.in, got)
		}
	}
}

package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// RecentInvoiceCount is how many invoices the dashboard lists.
const RecentInvoiceCount = 5

// Stats holds the dashboard figures
type Stats struct {
	TotalMedicines    int
	TotalCustomers    int
	TotalInvoices     int
	LowStockMedicines int
	TotalRevenue      decimal.Decimal
}

// DashboardSource is the backend surface the dashboard reads.
type DashboardSource interface {
	ListMedicines(ctx context.Context, search string) ([]Medicine, error)
	ListCustomers(ctx context.Context, search string) ([]Customer, error)
	ListInvoices(ctx context.Context, customerID int) ([]Invoice, error)
}

// ComputeStats derives the dashboard figures from full collections.
func ComputeStats(medicines []Medicine, customers []Customer, invoices []Invoice) Stats {
	stats := Stats{
		TotalMedicines: len(medicines),
		TotalCustomers: len(customers),
		TotalInvoices:  len(invoices),
	}
	for _, m := range medicines {
		if m.LowStock() {
			stats.LowStockMedicines++
		}
	}
	amounts := make([]decimal.NullDecimal, len(invoices))
	for i, inv := range invoices {
		amounts[i] = inv.TotalAmount
	}
	stats.TotalRevenue = sumAmounts(amounts)
	return stats
}

// LoadStats fetches the three collections concurrently and computes the figures.
func LoadStats(ctx context.Context, src DashboardSource) (Stats, error) {
	var (
		medicines []Medicine
		customers []Customer
		invoices  []Invoice
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		medicines, err = src.ListMedicines(gctx, "")
		return err
	})
	g.Go(func() error {
		var err error
		customers, err = src.ListCustomers(gctx, "")
		return err
	})
	g.Go(func() error {
		var err error
		invoices, err = src.ListInvoices(gctx, 0)
		return err
	})
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	return ComputeStats(medicines, customers, invoices), nil
}

// RecentInvoices returns the first invoices in backend order.
func RecentInvoices(ctx context.Context, src DashboardSource) ([]Invoice, error) {
	invoices, err := src.ListInvoices(ctx, 0)
	if err != nil {
		return nil, err
	}
	if len(invoices) > RecentInvoiceCount {
		invoices = invoices[:RecentInvoiceCount]
	}
	return invoices, nil
}

// loadSummary runs both dashboard reads at once. Only the figures can fail the
// summary; a failed recent list is logged and shown as empty.
func loadSummary(
	ctx context.Context,
	logger *slog.Logger,
	stats func(context.Context) (Stats, error),
	recent func(context.Context) ([]Invoice, error),
) (Stats, []Invoice, error) {
	var (
		s         Stats
		invoices  []Invoice
		recentErr error
	)
	var g errgroup.Group
	g.Go(func() error {
		var err error
		s, err = stats(ctx)
		return err
	})
	g.Go(func() error {
		invoices, recentErr = recent(ctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Stats{}, nil, err
	}
	if recentErr != nil {
		logger.Warn("recent invoices unavailable", "error", recentErr)
		invoices = nil
	}
	return s, invoices, nil
}

// CmdDashboard handles dashboard commands
func (c *Client) CmdDashboard(args []string) error {
	if len(args) == 0 {
		return c.dashboardSummary()
	}

	switch args[0] {
	case "summary":
		return c.dashboardSummary()
	case "stock":
		return c.dashboardStock()
	default:
		fmt.Println("Usage: billing-cli dashboard [subcommand]")
		fmt.Println("Subcommands:")
		fmt.Println("  (none)      Summary dashboard (default)")
		fmt.Println("  summary     Alias for the default")
		fmt.Println("  stock       Medicines that are low or out of stock")
		return nil
	}
}

func (c *Client) dashboardSummary() error {
	fmt.Printf("%sLoading dashboard...%s\n", Blue, Reset)

	stats, recent, err := loadSummary(context.Background(), c.Logger,
		func(ctx context.Context) (Stats, error) { return LoadStats(ctx, c) },
		func(ctx context.Context) ([]Invoice, error) { return RecentInvoices(ctx, c) },
	)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("%s══════════════════════════════════════════════════════════════%s\n", Cyan, Reset)
	fmt.Printf("%s  %-58s  %s\n", Cyan, c.Config.Brand, Reset)
	fmt.Printf("%s══════════════════════════════════════════════════════════════%s\n", Cyan, Reset)
	fmt.Println()

	fmt.Printf("%s┌─ SUMMARY ───────────────────────────────────────────────────┐%s\n", Yellow, Reset)
	fmt.Printf("  Medicines:     %d\n", stats.TotalMedicines)
	fmt.Printf("  Customers:     %d\n", stats.TotalCustomers)
	fmt.Printf("  Invoices:      %d\n", stats.TotalInvoices)
	if stats.LowStockMedicines > 0 {
		fmt.Printf("  Low stock:     %s%d ⚠%s\n", Red, stats.LowStockMedicines, Reset)
	} else {
		fmt.Printf("  Low stock:     %d\n", stats.LowStockMedicines)
	}
	fmt.Printf("  Revenue:       %s%s%s\n", Green, c.FormatCurrency(stats.TotalRevenue), Reset)
	fmt.Printf("%s└─────────────────────────────────────────────────────────────┘%s\n", Yellow, Reset)
	fmt.Println()

	fmt.Printf("%s┌─ RECENT INVOICES ───────────────────────────────────────────┐%s\n", Yellow, Reset)
	if len(recent) == 0 {
		fmt.Println("  No invoices yet")
	}
	for _, inv := range recent {
		fmt.Printf("  #%-4d %-10s %s %12s\n", inv.ID, inv.Date, fitWidth(inv.CustomerName, 25), c.FormatCurrency(inv.Total()))
	}
	fmt.Printf("%s└─────────────────────────────────────────────────────────────┘%s\n", Yellow, Reset)
	fmt.Println()

	fmt.Printf("Generated: %s | %s%s%s\n", time.Now().Format("2006-01-02 15:04:05"), Cyan, c.Config.APIURL, Reset)
	return nil
}

func (c *Client) dashboardStock() error {
	fmt.Printf("%sGenerating stock report...%s\n\n", Blue, Reset)

	medicines, err := c.ListMedicines(context.Background(), "")
	if err != nil {
		return err
	}

	var out, low []Medicine
	for _, m := range medicines {
		switch {
		case m.OutOfStock():
			out = append(out, m)
		case m.LowStock():
			low = append(low, m)
		}
	}

	fmt.Printf("%sSummary:%s\n", Yellow, Reset)
	fmt.Printf("  Medicines: %d\n", len(medicines))
	fmt.Printf("  Low stock (below %d): %d\n", LowStockThreshold, len(low))
	fmt.Printf("  Out of stock: %d\n", len(out))

	if len(out) > 0 {
		fmt.Printf("\n%sOut of stock:%s\n", Red, Reset)
		for _, m := range out {
			fmt.Printf("  #%-4d %s\n", m.ID, m.Name)
		}
	}
	if len(low) > 0 {
		fmt.Printf("\n%sLow stock:%s\n", Yellow, Reset)
		for _, m := range low {
			fmt.Printf("  #%-4d %-30s %3d left\n", m.ID, m.Name, m.Stock)
		}
	}
	return nil
}

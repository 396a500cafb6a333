package billing

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// InvoicesPath is the backend collection endpoint for invoices.
const InvoicesPath = "/invoices/"

// Invoice is a bill issued to a customer. TotalAmount is computed by the backend and
// may be missing on malformed records.
type Invoice struct {
	ID           int                 `json:"id"`
	Customer     int                 `json:"customer"`
	CustomerName string              `json:"customer_name"`
	Date         string              `json:"date"`
	TotalAmount  decimal.NullDecimal `json:"total_amount"`
	Items        []InvoiceItem       `json:"items"`
}

func (i Invoice) EntityID() int { return i.ID }

// Total returns the invoice amount, zero when the backend sent none.
func (i Invoice) Total() decimal.Decimal {
	if !i.TotalAmount.Valid {
		return decimal.Zero
	}
	return i.TotalAmount.Decimal
}

// InvoiceItem is one line of an invoice. Price is the unit price at the time the
// invoice was created.
type InvoiceItem struct {
	ID           int             `json:"id"`
	Medicine     int             `json:"medicine"`
	MedicineName string          `json:"medicine_name"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
}

// LineTotal is quantity times unit price
func (it InvoiceItem) LineTotal() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// InvoiceRequest is the body of an invoice creation.
type InvoiceRequest struct {
	Customer int               `json:"customer"`
	Items    []InvoiceLineInput `json:"items"`
}

// InvoiceLineInput is one requested line. A nil Medicine is sent as null and left
// for the backend to reject.
type InvoiceLineInput struct {
	Medicine *int            `json:"medicine"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// ListInvoices fetches invoices, restricted to one customer when customerID is set.
func (c *Client) ListInvoices(ctx context.Context, customerID int) ([]Invoice, error) {
	var query url.Values
	if customerID > 0 {
		query = url.Values{"customer": {strconv.Itoa(customerID)}}
	}
	var invoices []Invoice
	if err := c.Request(ctx, http.MethodGet, InvoicesPath, query, nil, &invoices); err != nil {
		return nil, err
	}
	return invoices, nil
}

// GetInvoice fetches one invoice with its items.
func (c *Client) GetInvoice(ctx context.Context, id int) (*Invoice, error) {
	var inv Invoice
	if err := c.Request(ctx, http.MethodGet, invoicePath(id), nil, nil, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// CreateInvoice posts a new invoice and returns it as stored.
func (c *Client) CreateInvoice(ctx context.Context, req InvoiceRequest) (*Invoice, error) {
	var inv Invoice
	if err := c.Request(ctx, http.MethodPost, InvoicesPath, nil, req, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// DeleteInvoice removes an invoice
func (c *Client) DeleteInvoice(ctx context.Context, id int) error {
	return c.Request(ctx, http.MethodDelete, invoicePath(id), nil, nil, nil)
}

// InvoicePDF downloads the rendered invoice document.
func (c *Client) InvoicePDF(ctx context.Context, id int) ([]byte, error) {
	return c.RequestRaw(ctx, http.MethodGet, invoicePath(id)+"pdf/")
}

func invoicePath(id int) string {
	return fmt.Sprintf("%s%d/", InvoicesPath, id)
}

// PDFFileName is the name a downloaded invoice document is saved under.
func PDFFileName(id int) string {
	return fmt.Sprintf("invoice_%d.pdf", id)
}

// Saver stores a downloaded document.
type Saver interface {
	Save(name string, data []byte) (string, error)
}

// DirSaver writes documents into a directory, returning the full path written.
type DirSaver struct {
	Dir string
}

func (s DirSaver) Save(name string, data []byte) (string, error) {
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("cannot create download directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("cannot save %s: %w", name, err)
	}
	return path, nil
}

// CmdInvoice handles invoice commands
func (c *Client) CmdInvoice(args []string) error {
	if len(args) == 0 {
		fmt.Println("Usage: billing-cli invoice <subcommand> [args...]")
		fmt.Println("Subcommands: list, get, create, delete, pdf")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  billing-cli invoice list --customer=4")
		fmt.Println("  billing-cli invoice get 31")
		fmt.Println("  billing-cli invoice create 4 12:3 7:1:45.00")
		fmt.Println("  billing-cli invoice pdf 31 -o ./bills")
		fmt.Println("  billing-cli invoice delete 31")
		fmt.Println()
		fmt.Println("Items are <medicine_id>:<quantity>[:<price>]; the price defaults to the catalog price.")
		return nil
	}

	ctx := context.Background()
	switch args[0] {
	case "list":
		customerID := 0
		if v := flagValue(args[1:], "--customer="); v != "" {
			id, err := parseID(v)
			if err != nil {
				return err
			}
			customerID = id
		}
		return c.invoiceList(ctx, customerID)
	case "get":
		if len(args) < 2 {
			return fmt.Errorf("usage: billing-cli invoice get <id>")
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		return c.invoiceGet(ctx, id)
	case "create":
		if len(args) < 3 {
			return fmt.Errorf("usage: billing-cli invoice create <customer_id> <medicine:qty[:price]> [...]")
		}
		return c.invoiceCreate(ctx, args[1], args[2:])
	case "delete":
		if len(args) < 2 {
			return fmt.Errorf("usage: billing-cli invoice delete <id> [--yes]")
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		if !confirm(fmt.Sprintf("Delete invoice #%d?", id), args[2:]) {
			fmt.Printf("%sCancelled%s\n", Yellow, Reset)
			return nil
		}
		return c.invoiceDelete(ctx, id)
	case "pdf":
		if len(args) < 2 {
			return fmt.Errorf("usage: billing-cli invoice pdf <id> [-o dir]")
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		dir := c.Config.DownloadDir
		for i := 2; i < len(args); i++ {
			if args[i] == "-o" && i+1 < len(args) {
				dir = args[i+1]
				i++
			}
		}
		return c.invoicePDF(ctx, id, DirSaver{Dir: dir})
	default:
		return fmt.Errorf("unknown invoice subcommand: %s", args[0])
	}
}

func (c *Client) invoiceList(ctx context.Context, customerID int) error {
	fmt.Printf("%sFetching invoices...%s\n", Blue, Reset)

	invoices, err := c.ListInvoices(ctx, customerID)
	if err != nil {
		return err
	}

	if len(invoices) == 0 {
		fmt.Printf("%sNo invoices found%s\n", Yellow, Reset)
		return nil
	}

	fmt.Printf("\n%sInvoices (%d):%s\n", Cyan, len(invoices), Reset)
	for _, inv := range invoices {
		fmt.Printf("  #%-4d %-10s %-25s %s%12s%s\n", inv.ID, inv.Date, inv.CustomerName, Green, c.FormatCurrency(inv.Total()), Reset)
	}
	return nil
}

func (c *Client) invoiceGet(ctx context.Context, id int) error {
	inv, err := c.GetInvoice(ctx, id)
	if err != nil {
		return err
	}

	fmt.Printf("%sInvoice #%d%s\n", Cyan, inv.ID, Reset)
	fmt.Printf("  Customer: %s\n", inv.CustomerName)
	fmt.Printf("  Date: %s\n", inv.Date)
	fmt.Println()
	fmt.Printf("  %-30s %6s %12s %12s\n", "Item", "Qty", "Price", "Total")
	for _, it := range inv.Items {
		fmt.Printf("  %-30s %6d %12s %12s\n", it.MedicineName, it.Quantity, c.FormatCurrency(it.Price), c.FormatCurrency(it.LineTotal()))
	}
	fmt.Println()
	fmt.Printf("  %sTotal Amount: %s%s\n", Green, c.FormatCurrency(inv.Total()), Reset)
	return nil
}

// invoiceCreate builds the invoice through a Composer so the CLI and the TUI share
// price defaulting and validation.
func (c *Client) invoiceCreate(ctx context.Context, customerArg string, itemArgs []string) error {
	customerID, err := parseID(customerArg)
	if err != nil {
		return err
	}

	composer := NewComposer(c, c)
	if err := composer.Load(ctx); err != nil {
		return err
	}
	composer.SelectCustomer(customerID)

	for _, arg := range itemArgs {
		parts := strings.Split(arg, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return fmt.Errorf("invalid item %q, expected medicine:qty[:price]", arg)
		}
		if _, err := parseID(parts[0]); err != nil {
			return err
		}
		i := composer.AddItem()
		composer.UpdateItem(i, FieldMedicine, parts[0])
		composer.UpdateItem(i, FieldQuantity, parts[1])
		if len(parts) == 3 {
			composer.UpdateItem(i, FieldPrice, parts[2])
		}
	}

	total, err := composer.GrandTotal()
	if err != nil {
		return &ValidationError{Message: "Quantity and price must be numbers"}
	}
	fmt.Printf("%sCreating invoice for customer #%d (%d items, %s)%s\n", Blue, customerID, len(itemArgs), c.FormatCurrency(total), Reset)

	inv, err := composer.Submit(ctx)
	if err != nil {
		return fmt.Errorf("%s", composer.Status.Text)
	}

	fmt.Printf("%s✓ Invoice created: #%d total %s%s\n", Green, inv.ID, c.FormatCurrency(inv.Total()), Reset)
	return nil
}

func (c *Client) invoiceDelete(ctx context.Context, id int) error {
	fmt.Printf("%sDeleting invoice #%d%s\n", Blue, id, Reset)

	if err := c.DeleteInvoice(ctx, id); err != nil {
		return fmt.Errorf("%s", MessageFor(err, "Failed to delete invoice"))
	}

	fmt.Printf("%s✓ Invoice deleted: #%d%s\n", Green, id, Reset)
	return nil
}

func (c *Client) invoicePDF(ctx context.Context, id int, saver Saver) error {
	fmt.Printf("%sDownloading invoice #%d...%s\n", Blue, id, Reset)

	data, err := c.InvoicePDF(ctx, id)
	if err != nil {
		return fmt.Errorf("%s", MessageFor(err, "Failed to download PDF"))
	}

	path, err := saver.Save(PDFFileName(id), data)
	if err != nil {
		return err
	}

	fmt.Printf("%s✓ Saved %s (%d bytes)%s\n", Green, path, len(data), Reset)
	return nil
}

package billing

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// LowStockThreshold is the stock level below which a medicine is flagged.
const LowStockThreshold = 10

// Medicine is a stock item
type Medicine struct {
	ID          int             `json:"id,omitempty"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Description string          `json:"description"`
}

func (m Medicine) EntityID() int { return m.ID }

// LowStock reports whether the medicine is below the low-stock threshold.
func (m Medicine) LowStock() bool { return m.Stock < LowStockThreshold }

// OutOfStock reports whether nothing is left.
func (m Medicine) OutOfStock() bool { return m.Stock == 0 }

// MedicinesPath is the backend collection endpoint for medicines.
const MedicinesPath = "/medicines/"

// Medicines returns the medicine resource.
func (c *Client) Medicines() Endpoint[Medicine] {
	return Endpoint[Medicine]{client: c, path: MedicinesPath}
}

// ListMedicines fetches the catalog, filtered by name when search is set.
func (c *Client) ListMedicines(ctx context.Context, search string) ([]Medicine, error) {
	return c.Medicines().List(ctx, search)
}

// medicineSchema is the medicine form: name, price, stock, description.
type medicineSchema struct{}

// MedicineSchema is the form schema for medicines.
var MedicineSchema Schema[Medicine] = medicineSchema{}

func (medicineSchema) Noun() string { return "medicine" }

func (medicineSchema) Fields() []Field {
	return []Field{
		{Label: "Medicine Name", Placeholder: "Paracetamol", Required: true},
		{Label: "Price", Placeholder: "0.00", Required: true},
		{Label: "Stock", Placeholder: "0", Required: true},
		{Label: "Description", Placeholder: "optional"},
	}
}

func (medicineSchema) Values(m Medicine) []string {
	return []string{m.Name, m.Price.StringFixed(2), strconv.Itoa(m.Stock), m.Description}
}

func (medicineSchema) Parse(values []string) (Medicine, error) {
	values = padValues(values, 4)

	name := strings.TrimSpace(values[0])
	if name == "" {
		return Medicine{}, &ValidationError{Message: "Medicine name is required"}
	}

	price, err := parseNumber(values[1])
	if err != nil || price.IsNegative() {
		return Medicine{}, &ValidationError{Message: "Price must be a number of at least 0"}
	}

	// An empty or unparsable stock counts as zero.
	stock := 0
	if s := strings.TrimSpace(values[2]); s != "" {
		n, err := parseNumber(s)
		if err == nil {
			stock = int(n.IntPart())
		}
	}
	if stock < 0 {
		return Medicine{}, &ValidationError{Message: "Stock cannot be negative"}
	}

	return Medicine{
		Name:        name,
		Price:       price,
		Stock:       stock,
		Description: strings.TrimSpace(values[3]),
	}, nil
}

// padValues returns values extended with blanks to at least n entries.
func padValues(values []string, n int) []string {
	if len(values) >= n {
		return values
	}
	out := make([]string, n)
	copy(out, values)
	return out
}

// CmdMedicine handles medicine commands
func (c *Client) CmdMedicine(args []string) error {
	if len(args) == 0 {
		fmt.Println("Usage: billing-cli medicine <subcommand> [args...]")
		fmt.Println("Subcommands: list, get, create, update, delete")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  billing-cli medicine list --search=para")
		fmt.Println("  billing-cli medicine get 12")
		fmt.Println("  billing-cli medicine create \"Paracetamol\" 12.50 50 --description=\"500mg tablets\"")
		fmt.Println("  billing-cli medicine update 12 price=13.00 stock=40")
		fmt.Println("  billing-cli medicine delete 12 --yes")
		return nil
	}

	ctx := context.Background()
	switch args[0] {
	case "list":
		return c.medicineList(ctx, flagValue(args[1:], "--search="))
	case "get":
		if len(args) < 2 {
			return fmt.Errorf("usage: billing-cli medicine get <id>")
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		return c.medicineGet(ctx, id)
	case "create":
		if len(args) < 4 {
			return fmt.Errorf("usage: billing-cli medicine create <name> <price> <stock> [--description=X]")
		}
		values := []string{args[1], args[2], args[3], flagValue(args[4:], "--description=")}
		return c.medicineCreate(ctx, values)
	case "update":
		if len(args) < 3 {
			return fmt.Errorf("usage: billing-cli medicine update <id> <prop=val> [...]")
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		return c.medicineUpdate(ctx, id, args[2:])
	case "delete":
		if len(args) < 2 {
			return fmt.Errorf("usage: billing-cli medicine delete <id> [--yes]")
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		if !confirm(fmt.Sprintf("Delete medicine #%d?", id), args[2:]) {
			fmt.Printf("%sCancelled%s\n", Yellow, Reset)
			return nil
		}
		return c.medicineDelete(ctx, id)
	default:
		return fmt.Errorf("unknown medicine subcommand: %s", args[0])
	}
}

func (c *Client) medicineList(ctx context.Context, search string) error {
	fmt.Printf("%sFetching medicines...%s\n", Blue, Reset)

	medicines, err := c.ListMedicines(ctx, search)
	if err != nil {
		return err
	}

	if len(medicines) == 0 {
		fmt.Printf("%sNo medicines found%s\n", Yellow, Reset)
		return nil
	}

	fmt.Printf("\n%sMedicines (%d):%s\n", Cyan, len(medicines), Reset)
	for _, m := range medicines {
		stockColor := Green
		if m.OutOfStock() {
			stockColor = Red
		} else if m.LowStock() {
			stockColor = Yellow
		}
		fmt.Printf("  #%-4d %-30s %10s  stock %s%d%s\n", m.ID, m.Name, c.FormatCurrency(m.Price), stockColor, m.Stock, Reset)
	}
	return nil
}

func (c *Client) medicineGet(ctx context.Context, id int) error {
	m, err := c.Medicines().Get(ctx, id)
	if err != nil {
		return err
	}

	fmt.Printf("%sMedicine #%d%s\n", Cyan, m.ID, Reset)
	fmt.Printf("  Name: %s\n", m.Name)
	fmt.Printf("  Price: %s\n", c.FormatCurrency(m.Price))
	switch {
	case m.OutOfStock():
		fmt.Printf("  Stock: %s0 (out of stock)%s\n", Red, Reset)
	case m.LowStock():
		fmt.Printf("  Stock: %s%d (low)%s\n", Yellow, m.Stock, Reset)
	default:
		fmt.Printf("  Stock: %d\n", m.Stock)
	}
	if m.Description != "" {
		fmt.Printf("  Description: %s\n", m.Description)
	}
	return nil
}

func (c *Client) medicineCreate(ctx context.Context, values []string) error {
	m, err := MedicineSchema.Parse(values)
	if err != nil {
		return err
	}

	fmt.Printf("%sCreating medicine: %s%s\n", Blue, m.Name, Reset)
	created, err := c.Medicines().Create(ctx, m)
	if err != nil {
		return fmt.Errorf("%s", MessageFor(err, "Failed to save medicine"))
	}

	fmt.Printf("%s✓ Medicine created: #%d %s%s\n", Green, created.ID, created.Name, Reset)
	return nil
}

func (c *Client) medicineUpdate(ctx context.Context, id int, settings []string) error {
	current, err := c.Medicines().Get(ctx, id)
	if err != nil {
		return err
	}

	values := MedicineSchema.Values(current)
	for _, s := range settings {
		key, val, ok := strings.Cut(s, "=")
		if !ok {
			return fmt.Errorf("invalid setting %q, expected prop=val", s)
		}
		switch key {
		case "name":
			values[0] = val
		case "price":
			values[1] = val
		case "stock":
			values[2] = val
		case "description":
			values[3] = val
		default:
			return fmt.Errorf("unknown medicine property: %s", key)
		}
	}

	m, err := MedicineSchema.Parse(values)
	if err != nil {
		return err
	}

	fmt.Printf("%sUpdating medicine #%d%s\n", Blue, id, Reset)
	if _, err := c.Medicines().Update(ctx, id, m); err != nil {
		return fmt.Errorf("%s", MessageFor(err, "Failed to save medicine"))
	}

	fmt.Printf("%s✓ Medicine updated: #%d%s\n", Green, id, Reset)
	return nil
}

func (c *Client) medicineDelete(ctx context.Context, id int) error {
	fmt.Printf("%sDeleting medicine #%d%s\n", Blue, id, Reset)

	if err := c.Medicines().Delete(ctx, id); err != nil {
		return fmt.Errorf("%s", MessageFor(err, "Failed to delete medicine"))
	}

	fmt.Printf("%s✓ Medicine deleted: #%d%s\n", Green, id, Reset)
	return nil
}

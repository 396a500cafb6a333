package billing

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Table is a rectangular export: a header row and data rows.
type Table struct {
	Sheet  string
	Header []string
	Rows   [][]string
}

// MedicineTable lays medicines out for export.
func MedicineTable(medicines []Medicine) Table {
	t := Table{Sheet: "Medicines", Header: []string{"id", "name", "price", "stock", "description"}}
	for _, m := range medicines {
		t.Rows = append(t.Rows, []string{
			strconv.Itoa(m.ID), m.Name, m.Price.StringFixed(2), strconv.Itoa(m.Stock), m.Description,
		})
	}
	return t
}

// CustomerTable lays customers out for export.
func CustomerTable(customers []Customer) Table {
	t := Table{Sheet: "Customers", Header: []string{"id", "customer_name", "phone", "address"}}
	for _, cu := range customers {
		t.Rows = append(t.Rows, []string{strconv.Itoa(cu.ID), cu.Name, cu.Phone, cu.Address})
	}
	return t
}

// InvoiceTable lays invoice summaries out for export.
func InvoiceTable(invoices []Invoice) Table {
	t := Table{Sheet: "Invoices", Header: []string{"id", "date", "customer", "customer_name", "total_amount"}}
	for _, inv := range invoices {
		t.Rows = append(t.Rows, []string{
			strconv.Itoa(inv.ID), inv.Date, strconv.Itoa(inv.Customer), inv.CustomerName, inv.Total().StringFixed(2),
		})
	}
	return t
}

func isXLSX(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".xlsx")
}

// WriteTable writes t to path, as a workbook when the extension is .xlsx and as
// CSV otherwise.
func WriteTable(path string, t Table) error {
	if isXLSX(path) {
		return writeXLSX(path, t)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	return writeCSV(file, t)
}

// writeCSV writes t to w and closes it. A failed close is reported when the
// write itself went through.
func writeCSV(w io.WriteCloser, t Table) (err error) {
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close file: %w", cerr)
		}
	}()

	writer := csv.NewWriter(w)
	if err := writer.Write(t.Header); err != nil {
		return err
	}
	if err := writer.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}

func writeXLSX(path string, t Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := t.Sheet
	if sheet == "" {
		sheet = "Sheet1"
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	rows := append([][]string{t.Header}, t.Rows...)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// ReadTable reads all records of a CSV file, or of the first sheet of an .xlsx.
func ReadTable(path string) ([][]string, error) {
	if isXLSX(path) {
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open workbook: %w", err)
		}
		defer f.Close()
		rows, err := f.GetRows(f.GetSheetName(0))
		if err != nil {
			return nil, fmt.Errorf("failed to read workbook: %w", err)
		}
		return rows, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	return records, nil
}

// ImportSummary counts the outcome of an import.
type ImportSummary struct {
	Created int
	Skipped int
	Failed  int
}

// CmdExport handles export commands
func (c *Client) CmdExport(args []string) error {
	if len(args) == 0 {
		fmt.Println("Usage: billing-cli export <type> -o <file>")
		fmt.Println("Types: medicines, customers, invoices")
		fmt.Println("A file ending in .xlsx is written as a workbook, anything else as CSV.")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  billing-cli export medicines -o medicines.csv")
		fmt.Println("  billing-cli export invoices -o invoices.xlsx --customer=4")
		return nil
	}

	outputFile := ""
	for i, arg := range args {
		if arg == "-o" && i+1 < len(args) {
			outputFile = args[i+1]
		}
	}
	if outputFile == "" {
		return fmt.Errorf("output file required. Use -o <file>")
	}

	ctx := context.Background()
	var (
		table Table
		err   error
	)
	fmt.Printf("%sExporting %s...%s\n", Blue, args[0], Reset)
	switch args[0] {
	case "medicines":
		var medicines []Medicine
		medicines, err = c.ListMedicines(ctx, flagValue(args[1:], "--search="))
		table = MedicineTable(medicines)
	case "customers":
		var customers []Customer
		customers, err = c.ListCustomers(ctx, flagValue(args[1:], "--search="))
		table = CustomerTable(customers)
	case "invoices":
		customerID := 0
		if v := flagValue(args[1:], "--customer="); v != "" {
			if customerID, err = parseID(v); err != nil {
				return err
			}
		}
		var invoices []Invoice
		invoices, err = c.ListInvoices(ctx, customerID)
		table = InvoiceTable(invoices)
	default:
		return fmt.Errorf("unknown export type: %s", args[0])
	}
	if err != nil {
		return err
	}

	if err := WriteTable(outputFile, table); err != nil {
		return err
	}
	fmt.Printf("%s✓ Exported %d %s to %s%s\n", Green, len(table.Rows), args[0], outputFile, Reset)
	return nil
}

// CmdImport handles import commands
func (c *Client) CmdImport(args []string) error {
	if len(args) == 0 {
		fmt.Println("Usage: billing-cli import <type> -f <file> [--dry-run]")
		fmt.Println("Types: medicines, customers")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  billing-cli import medicines -f medicines.csv")
		fmt.Println("  billing-cli import customers -f customers.xlsx --dry-run")
		return nil
	}

	inputFile := ""
	for i, arg := range args {
		if arg == "-f" && i+1 < len(args) {
			inputFile = args[i+1]
		}
	}
	if inputFile == "" {
		return fmt.Errorf("input file required. Use -f <file>")
	}
	dryRun := hasFlag(args, "--dry-run")

	if dryRun {
		fmt.Printf("%s[DRY RUN] Importing %s from: %s%s\n", Yellow, args[0], inputFile, Reset)
	} else {
		fmt.Printf("%sImporting %s from: %s%s\n", Blue, args[0], inputFile, Reset)
	}

	records, err := ReadTable(inputFile)
	if err != nil {
		return err
	}

	ctx := context.Background()
	var summary ImportSummary
	switch args[0] {
	case "medicines":
		summary, err = importRecords(ctx, records, dryRun, c.Medicines(), MedicineSchema, []string{"name", "price", "stock", "description"})
	case "customers":
		summary, err = importRecords(ctx, records, dryRun, c.Customers(), CustomerSchema, []string{"customer_name", "phone", "address"})
	default:
		return fmt.Errorf("unknown import type: %s", args[0])
	}
	if err != nil {
		return err
	}

	fmt.Printf("\n%sSummary: %d created, %d skipped, %d failed%s\n", Cyan, summary.Created, summary.Skipped, summary.Failed, Reset)
	return nil
}

// importRecords creates one entity per data row. Columns are matched by header
// name in the order of the schema's fields; rows the schema rejects are skipped.
func importRecords[T Entity](ctx context.Context, records [][]string, dryRun bool, res Resource[T], schema Schema[T], columns []string) (ImportSummary, error) {
	var summary ImportSummary
	if len(records) < 2 {
		return summary, fmt.Errorf("file is empty or has no data rows")
	}

	index := make([]int, len(columns))
	for i, col := range columns {
		index[i] = -1
		for j, h := range records[0] {
			if strings.EqualFold(strings.TrimSpace(h), col) {
				index[i] = j
			}
		}
	}
	if index[0] == -1 {
		return summary, fmt.Errorf("file must have a '%s' column", columns[0])
	}

	for n, record := range records[1:] {
		values := make([]string, len(columns))
		for i, j := range index {
			if j >= 0 && j < len(record) {
				values[i] = record[j]
			}
		}

		v, err := schema.Parse(values)
		if err != nil {
			fmt.Printf("  %sRow %d: skipped (%s)%s\n", Yellow, n+2, err, Reset)
			summary.Skipped++
			continue
		}

		if dryRun {
			fmt.Printf("  [DRY RUN] Would create: %s\n", values[0])
			summary.Created++
			continue
		}

		if _, err := res.Create(ctx, v); err != nil {
			fmt.Printf("  %s✗ Failed: %s (%s)%s\n", Red, values[0], MessageFor(err, err.Error()), Reset)
			summary.Failed++
			continue
		}
		fmt.Printf("  %s✓ Created: %s%s\n", Green, values[0], Reset)
		summary.Created++
	}
	return summary, nil
}

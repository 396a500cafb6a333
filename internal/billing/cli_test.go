package billing

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseID(t *testing.T) {
	for in, want := range map[string]int{"7": 7, "#12": 12} {
		if got, err := parseID(in); err != nil || got != want {
			t.Errorf("parseID(%q) = %d, %v", in, got, err)
		}
	}
	for _, in := range []string{"", "0", "-3", "abc", "1.5"} {
		if _, err := parseID(in); err == nil {
			t.Errorf("parseID(%q) should fail", in)
		}
	}
}

func TestFlags(t *testing.T) {
	args := []string{"list", "--search=para", "--dry-run"}
	if got := flagValue(args, "--search="); got != "para" {
		t.Errorf("flagValue = %q", got)
	}
	if got := flagValue(args, "--customer="); got != "" {
		t.Errorf("flagValue = %q", got)
	}
	if !hasFlag(args, "--dry-run") || hasFlag(args, "--yes", "-y") {
		t.Error("hasFlag")
	}
}

func withAnswer(t *testing.T, answer string) {
	t.Helper()
	prev := confirmInput
	confirmInput = strings.NewReader(answer)
	t.Cleanup(func() { confirmInput = prev })
}

func TestInvoiceDeleteCommand(t *testing.T) {
	backend, client := newTestClient(t)
	quiet(t)
	asha := backend.AddCustomer("Asha Rao", "")
	id := backend.AddInvoice(asha, "10.00")

	withAnswer(t, "n\n")
	if err := client.CmdInvoice([]string{"delete", itoa(id)}); err != nil {
		t.Fatal(err)
	}
	if backend.InvoiceCount() != 1 {
		t.Fatal("deleted without confirmation")
	}

	withAnswer(t, "yes\n")
	if err := client.CmdInvoice([]string{"delete", itoa(id)}); err != nil {
		t.Fatal(err)
	}
	if backend.InvoiceCount() != 0 {
		t.Error("invoice not deleted")
	}

	err := client.CmdInvoice([]string{"delete", itoa(id), "--yes"})
	if err == nil || err.Error() != "Not found." {
		t.Errorf("err = %v", err)
	}
}

func TestInvoiceCreateAndPDFCommands(t *testing.T) {
	backend, client := newTestClient(t)
	quiet(t)
	asha := backend.AddCustomer("Asha Rao", "")
	para := backend.AddMedicine("Paracetamol", "12.50", 50)
	amox := backend.AddMedicine("Amoxicillin", "8.00", 4)

	err := client.CmdInvoice([]string{"create", itoa(asha), itoa(para) + ":2", itoa(amox) + ":1:7.50"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if backend.InvoiceCount() != 1 {
		t.Fatalf("backend holds %d invoices", backend.InvoiceCount())
	}
	invoices, _ := client.ListInvoices(context.Background(), 0)
	if len(invoices) != 1 || invoices[0].Total().StringFixed(2) != "32.50" {
		t.Fatalf("invoices = %+v", invoices)
	}

	dir := t.TempDir()
	if err := client.CmdInvoice([]string{"pdf", itoa(invoices[0].ID), "-o", dir}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, PDFFileName(invoices[0].ID))); err != nil {
		t.Error(err)
	}

	if err := client.CmdInvoice([]string{"create", itoa(asha), "nope"}); err == nil {
		t.Error("expected an error for a malformed item")
	}
}

func TestMedicineCommands(t *testing.T) {
	backend, client := newTestClient(t)
	quiet(t)

	if err := client.CmdMedicine([]string{"create", "Paracetamol 500mg", "2.50", "100", "--description=strip of 10"}); err != nil {
		t.Fatal(err)
	}
	med, ok := backend.Medicine(1)
	if !ok || med.Name != "Paracetamol 500mg" || med.Stock != 100 || med.Description != "strip of 10" {
		t.Fatalf("stored = %+v", med)
	}

	if err := client.CmdMedicine([]string{"update", "1", "stock=5"}); err != nil {
		t.Fatal(err)
	}
	if med, _ := backend.Medicine(1); med.Stock != 5 || med.Name != "Paracetamol 500mg" {
		t.Errorf("after update = %+v", med)
	}

	if err := client.CmdMedicine([]string{"create", "", "2.50", "1"}); err == nil || err.Error() != "Medicine name is required" {
		t.Errorf("err = %v", err)
	}
}

package billing

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func TestParseRoute(t *testing.T) {
	tests := []struct {
		in   string
		want Route
		ok   bool
	}{
		{"", RouteDashboard, true},
		{"/", RouteDashboard, true},
		{"/medicines", RouteMedicines, true},
		{"customers/", RouteCustomers, true},
		{"/invoices/", RouteInvoices, true},
		{"/create-invoice", RouteCreateInvoice, true},
		{"/reports", "", false},
	}
	for _, tt := range tests {
		got, err := ParseRoute(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ParseRoute(%q) = %q, %v", tt.in, got, err)
		}
	}
}

// collect runs cmd, expanding batches, and returns the messages produced within
// a short wait. Slower ticks such as cursor blinks are dropped.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	out := make(chan tea.Msg, 64)
	var run func(tea.Cmd)
	run = func(c tea.Cmd) {
		if c == nil {
			return
		}
		go func() {
			msg := c()
			if batch, ok := msg.(tea.BatchMsg); ok {
				for _, sub := range batch {
					run(sub)
				}
				return
			}
			out <- msg
		}()
	}
	run(cmd)

	var msgs []tea.Msg
	deadline := time.After(200 * time.Millisecond)
	for {
		select {
		case msg := <-out:
			if msg != nil {
				msgs = append(msgs, msg)
			}
		case <-deadline:
			return msgs
		}
	}
}

// settle feeds the results of cmd back into the model until nothing more
// arrives. Status clears are left out so assertions can see the banner.
func settle(m Model, cmd tea.Cmd) Model {
	for i := 0; cmd != nil && i < 8; i++ {
		var next []tea.Cmd
		for _, msg := range collect(cmd) {
			if _, ok := msg.(clearStatusMsg); ok {
				continue
			}
			var c tea.Cmd
			m, c = send(m, msg)
			next = append(next, c)
		}
		cmd = tea.Batch(next...)
	}
	return m
}

func send(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func press(m Model, keys ...string) (Model, tea.Cmd) {
	var cmds []tea.Cmd
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		case "left":
			msg = tea.KeyMsg{Type: tea.KeyLeft}
		case "right":
			msg = tea.KeyMsg{Type: tea.KeyRight}
		case "backspace":
			msg = tea.KeyMsg{Type: tea.KeyBackspace}
		case "ctrl+n":
			msg = tea.KeyMsg{Type: tea.KeyCtrlN}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		var cmd tea.Cmd
		m, cmd = send(m, msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func newTestTUI(t *testing.T, route Route) (Model, *Client) {
	t.Helper()
	_, client := newTestClient(t)
	return openTUI(client, route), client
}

func openTUI(client *Client, route Route) Model {
	m := NewTUI(context.Background(), client, route)
	m.statusTimeout = time.Hour
	m, _ = send(m, tea.WindowSizeMsg{Width: 120, Height: 40})
	return settle(m, m.enter(route))
}

func TestTUINavigation(t *testing.T) {
	backend, client := newTestClient(t)
	backend.AddCustomer("Asha Rao", "")
	backend.AddMedicine("Paracetamol", "12.50", 50)
	m := openTUI(client, RouteDashboard)

	if m.dashboard.stats == nil || m.dashboard.stats.TotalMedicines != 1 {
		t.Fatalf("dashboard stats = %+v", m.dashboard.stats)
	}

	want := map[string]Route{
		"2": RouteMedicines,
		"3": RouteCustomers,
		"4": RouteInvoices,
		"5": RouteCreateInvoice,
		"1": RouteDashboard,
	}
	for _, key := range []string{"2", "3", "4", "5", "1"} {
		var cmd tea.Cmd
		m, cmd = press(m, key)
		m = settle(m, cmd)
		if m.route != want[key] {
			t.Errorf("key %s: route = %q, want %q", key, m.route, want[key])
		}
	}
	if len(m.medicines.coll.Items) != 1 || len(m.customers.coll.Items) != 1 || len(m.invoices.browser.Customers) != 1 {
		t.Error("screens did not load on entry")
	}
}

func TestTUILeavingComposerDiscardsDraft(t *testing.T) {
	m, _ := newTestTUI(t, RouteCreateInvoice)

	m, _ = press(m, "ctrl+n")
	if len(m.composer.composer.Draft.Items) != 1 {
		t.Fatal("ctrl+n did not add a line")
	}
	m, _ = press(m, "esc", "2")
	if m.route != RouteMedicines {
		t.Fatalf("route = %q", m.route)
	}
	if len(m.composer.composer.Draft.Items) != 0 {
		t.Error("draft survived navigation")
	}
}

func TestTUISearchDebounce(t *testing.T) {
	backend, client := newTestClient(t)
	backend.AddMedicine("Paracetamol", "12.50", 50)
	backend.AddMedicine("Amoxicillin", "8.00", 4)
	m := openTUI(client, RouteMedicines)
	m.medicines.debounce = 20 * time.Millisecond

	m, _ = press(m, "/")
	// Navigation keys are text while the search box has focus.
	m, cmd := press(m, "a", "m", "o", "x", "1")
	m = settle(m, cmd)

	if m.route != RouteMedicines {
		t.Fatalf("route = %q", m.route)
	}
	var searches []string
	for _, r := range backend.Requests() {
		if r.Path == "/api/medicines/" && r.Query != "" {
			searches = append(searches, r.Query)
		}
	}
	if len(searches) != 1 || searches[0] != "search=amox1" {
		t.Errorf("searches sent = %v, want only the last term", searches)
	}
	if len(m.medicines.coll.Items) != 0 {
		t.Errorf("items = %v", names(m.medicines.coll.Items))
	}

	m, cmd = press(m, "backspace")
	m = settle(m, cmd)
	if got := names(m.medicines.coll.Items); len(got) != 1 || got[0] != "Amoxicillin" {
		t.Errorf("items = %v", got)
	}
}

func TestTUIStatusClear(t *testing.T) {
	m, _ := newTestTUI(t, RouteMedicines)
	m.statusTimeout = 10 * time.Millisecond

	req := m.medicines.coll.BeginFetch()
	m, cmd := send(m, fetchedMsg[Medicine]{FetchResult[Medicine]{Seq: req.Seq, Err: errors.New("connection refused")}})
	st := m.medicines.coll.Status
	if st.Text != "Failed to fetch medicines" {
		t.Fatalf("status = %q", st.Text)
	}

	var pending *clearStatusMsg
	for _, msg := range collect(cmd) {
		if c, ok := msg.(clearStatusMsg); ok {
			pending = &c
		}
	}
	if pending == nil || pending.route != RouteMedicines || pending.id != st.ID {
		t.Fatalf("clear message = %+v", pending)
	}

	// A newer status must survive the older timer.
	m.medicines.coll.setStatus(StatusSuccess, "Medicine created successfully!")
	m, _ = send(m, *pending)
	if m.medicines.coll.Status.Text != "Medicine created successfully!" {
		t.Errorf("status = %q", m.medicines.coll.Status.Text)
	}

	m, _ = send(m, clearStatusMsg{route: RouteMedicines, id: m.medicines.coll.Status.ID})
	if m.medicines.coll.Status.Text != "" {
		t.Errorf("status = %q, want cleared", m.medicines.coll.Status.Text)
	}
}

func TestTUIMedicineForm(t *testing.T) {
	backend, client := newTestClient(t)
	m := openTUI(client, RouteMedicines)

	m, _ = press(m, "n")
	if !m.medicines.coll.FormVisible || !m.typing() {
		t.Fatal("form did not open")
	}
	m, _ = press(m, "I", "b", "u", "tab", "3", ".", "4", "tab", "2", "5")
	m, cmd := press(m, "enter")
	m = settle(m, cmd)

	if m.medicines.coll.FormVisible {
		t.Error("form still open")
	}
	if got := names(m.medicines.coll.Items); len(got) != 1 || got[0] != "Ibu" {
		t.Fatalf("items = %v", got)
	}
	if med, ok := backend.Medicine(m.medicines.coll.Items[0].ID); !ok || med.Stock != 25 || med.Price.StringFixed(2) != "3.40" {
		t.Errorf("stored = %+v", med)
	}
}

func TestTUIComposer(t *testing.T) {
	backend, client := newTestClient(t)
	backend.AddCustomer("Asha Rao", "")
	para := backend.AddMedicine("Paracetamol", "12.50", 50)
	m := openTUI(client, RouteCreateInvoice)

	// Customer row, then a new line with its medicine and quantity.
	m, _ = press(m, "right", "ctrl+n", "right", "tab", "backspace", "3")
	draft := m.composer.composer.Draft
	if draft.CustomerID == 0 || len(draft.Items) != 1 {
		t.Fatalf("draft = %+v", draft)
	}
	if draft.Items[0] != (ItemDraft{MedicineID: para, Quantity: "3", Price: "12.50"}) {
		t.Errorf("line = %+v", draft.Items[0])
	}
	if total, err := m.composer.composer.GrandTotal(); err != nil || total.StringFixed(2) != "37.50" {
		t.Errorf("grand total = %s, %v", total, err)
	}

	m, cmd := press(m, "enter")
	m = settle(m, cmd)
	if m.composer.composer.Status.Text != "Invoice created successfully!" {
		t.Fatalf("status = %q", m.composer.composer.Status.Text)
	}
	if backend.InvoiceCount() != 1 {
		t.Errorf("backend holds %d invoices", backend.InvoiceCount())
	}
	if med, _ := backend.Medicine(para); med.Stock != 47 {
		t.Errorf("stock = %d", med.Stock)
	}
	if len(m.composer.composer.Draft.Items) != 0 {
		t.Error("draft not reset")
	}
}

func TestTUIInvoiceDelete(t *testing.T) {
	backend, client := newTestClient(t)
	asha := backend.AddCustomer("Asha Rao", "")
	older := backend.AddInvoice(asha, "12.50")
	newest := backend.AddInvoice(asha, "37.50")
	m := openTUI(client, RouteInvoices)

	// Show the first row, then ask to delete it and back out.
	m, cmd := press(m, "enter")
	m = settle(m, cmd)
	if m.invoices.browser.Selected == nil || m.invoices.browser.Selected.ID != newest {
		t.Fatalf("selected = %+v", m.invoices.browser.Selected)
	}

	m, _ = press(m, "d", "1", "n")
	if m.route != RouteInvoices || backend.InvoiceCount() != 2 {
		t.Fatal("cancelled delete did something")
	}

	m, _ = press(m, "d")
	m, cmd = press(m, "y")
	m = settle(m, cmd)
	if backend.InvoiceCount() != 1 {
		t.Fatalf("backend holds %d invoices", backend.InvoiceCount())
	}
	if m.invoices.browser.Selected != nil {
		t.Error("detail pane still shows the deleted invoice")
	}
	if got := invoiceIDs(m.invoices.browser.Invoices); len(got) != 1 || got[0] != older {
		t.Errorf("invoices = %v", got)
	}

	backend.Fail(http.MethodDelete, "/invoices/"+itoa(older)+"/", http.StatusInternalServerError, "")
	m, _ = press(m, "d")
	m, cmd = press(m, "y")
	m = settle(m, cmd)
	if m.invoices.browser.Status.Text != "Failed to delete invoice" || len(m.invoices.browser.Invoices) != 1 {
		t.Errorf("status = %q", m.invoices.browser.Status.Text)
	}
	if m.invoices.browser.Loading {
		t.Error("still loading after a failed delete")
	}
}

func TestTUIViewRenders(t *testing.T) {
	backend, client := newTestClient(t)
	backend.AddMedicine("Amoxicillin", "8.00", 4)
	for _, route := range []Route{RouteDashboard, RouteMedicines, RouteCustomers, RouteInvoices, RouteCreateInvoice} {
		m := openTUI(client, route)
		if m.View() == "" {
			t.Errorf("%s rendered nothing", route)
		}
	}
}

func TestTUIMedicineFormRetryAfterRejection(t *testing.T) {
	backend, client := newTestClient(t)
	m := openTUI(client, RouteMedicines)
	backend.Fail(http.MethodPost, "/medicines/", http.StatusBadRequest, "Name taken")

	m, _ = press(m, "n", "I", "b", "u", "tab", "3", ".", "4", "tab", "2", "5")
	m, cmd := press(m, "enter")
	m = settle(m, cmd)

	coll := m.medicines.coll
	if !coll.FormVisible || coll.Loading {
		t.Fatalf("after rejection: form = %v, loading = %v", coll.FormVisible, coll.Loading)
	}
	if coll.Status.Text != "Name taken" {
		t.Errorf("status = %q", coll.Status.Text)
	}
	if got := m.medicines.formValues(); got[0] != "Ibu" || got[1] != "3.4" || got[2] != "25" {
		t.Errorf("form values = %q", got)
	}

	m, cmd = press(m, "enter")
	m = settle(m, cmd)
	if n := backend.Count(http.MethodPost, "/medicines/"); n != 2 {
		t.Fatalf("%d creates sent, want the retry to go out", n)
	}
	if m.medicines.coll.FormVisible {
		t.Error("form still open after a successful retry")
	}
	if got := names(m.medicines.coll.Items); len(got) != 1 || got[0] != "Ibu" {
		t.Errorf("items = %v", got)
	}
}

func TestTUIInvoiceDownloadTargets(t *testing.T) {
	backend, client := newTestClient(t)
	asha := backend.AddCustomer("Asha Rao", "")
	older := backend.AddInvoice(asha, "12.50")
	newest := backend.AddInvoice(asha, "37.50")
	m := openTUI(client, RouteInvoices)
	dir := client.Config.DownloadDir

	m, cmd := press(m, "enter")
	m = settle(m, cmd)
	if m.invoices.browser.Selected == nil || m.invoices.browser.Selected.ID != newest {
		t.Fatalf("selected = %+v", m.invoices.browser.Selected)
	}

	// p follows the cursor, not the detail pane.
	m, _ = press(m, "j")
	m, cmd = press(m, "p")
	m = settle(m, cmd)
	want := filepath.Join(dir, PDFFileName(older))
	if m.invoices.browser.Status.Text != "Saved "+want {
		t.Errorf("status = %q, want the highlighted invoice saved", m.invoices.browser.Status.Text)
	}
	if _, err := os.Stat(filepath.Join(dir, PDFFileName(newest))); err == nil {
		t.Error("the invoice in the detail pane was downloaded")
	}

	m, cmd = press(m, "P")
	m = settle(m, cmd)
	if _, err := os.Stat(filepath.Join(dir, PDFFileName(newest))); err != nil {
		t.Errorf("detail pane download: %v", err)
	}
	if m.invoices.browser.Selected == nil || m.invoices.browser.Selected.ID != newest {
		t.Error("a download changed the selection")
	}
}

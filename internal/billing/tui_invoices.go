package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type invoicesFetchedMsg struct {
	res InvoiceListResult
}

type filterCustomersMsg struct {
	customers []Customer
	err       error
}

type invoiceDetailMsg struct {
	res DetailResult
}

type invoiceDownloadedMsg struct {
	res DownloadResult
}

type invoiceDeletedMsg struct {
	res InvoiceDeleteResult
}

// invoicesView is the invoice list with its customer filter and detail pane.
type invoicesView struct {
	browser *InvoiceBrowser
	list    list.Model

	// filterIndex 0 is "all customers", i is browser.Customers[i-1].
	filterIndex int
}

func newInvoicesView(browser *InvoiceBrowser) *invoicesView {
	return &invoicesView{
		browser: browser,
		list:    newList("Invoices"),
	}
}

func (v *invoicesView) setSize(w, h int) {
	v.list.SetSize(w/2, h-2)
}

func (v *invoicesView) typing() bool {
	_, confirming := v.browser.ConfirmingDelete()
	return confirming
}

func (v *invoicesView) load(ctx context.Context) tea.Cmd {
	b := v.browser
	return tea.Batch(v.fetch(ctx, b.BeginFetch()), func() tea.Msg {
		customers, err := b.FetchCustomers(ctx)
		return filterCustomersMsg{customers: customers, err: err}
	})
}

func (v *invoicesView) fetch(ctx context.Context, q InvoiceQuery) tea.Cmd {
	b := v.browser
	return func() tea.Msg {
		return invoicesFetchedMsg{b.Fetch(ctx, q)}
	}
}

func (v *invoicesView) handle(ctx context.Context, msg tea.Msg) tea.Cmd {
	b := v.browser
	switch msg := msg.(type) {
	case invoicesFetchedMsg:
		if b.ApplyFetch(msg.res) {
			return v.syncList()
		}
	case filterCustomersMsg:
		b.ApplyCustomers(msg.customers, msg.err)
		v.filterIndex = 0
		for i, cu := range b.Customers {
			if cu.ID == b.Filter {
				v.filterIndex = i + 1
			}
		}
	case invoiceDetailMsg:
		b.ApplyDetail(msg.res)
	case invoiceDownloadedMsg:
		b.ApplyDownload(msg.res)
	case invoiceDeletedMsg:
		stale := b.ApplyDelete(msg.res)
		cmd := v.syncList()
		if stale {
			return tea.Batch(cmd, v.fetch(ctx, b.BeginFetch()))
		}
		return cmd
	}
	return nil
}

func (v *invoicesView) syncList() tea.Cmd {
	items := make([]list.Item, len(v.browser.Invoices))
	for i, inv := range v.browser.Invoices {
		items[i] = ListItem{
			name:    fmt.Sprintf("#%d %s", inv.ID, inv.CustomerName),
			details: fmt.Sprintf("%s • %s", inv.Date, inv.Total().StringFixed(2)),
		}
	}
	return v.list.SetItems(items)
}

func (v *invoicesView) current() (Invoice, bool) {
	i := v.list.Index()
	if i < 0 || i >= len(v.browser.Invoices) {
		return Invoice{}, false
	}
	return v.browser.Invoices[i], true
}

// cycleFilter steps through "all" and each customer.
func (v *invoicesView) cycleFilter(ctx context.Context, step int) tea.Cmd {
	n := len(v.browser.Customers) + 1
	v.filterIndex = ((v.filterIndex+step)%n + n) % n
	id := 0
	if v.filterIndex > 0 {
		id = v.browser.Customers[v.filterIndex-1].ID
	}
	return v.fetch(ctx, v.browser.SetFilter(id))
}

func (v *invoicesView) key(ctx context.Context, msg tea.KeyMsg) tea.Cmd {
	b := v.browser

	if _, ok := b.ConfirmingDelete(); ok {
		switch msg.String() {
		case "y":
			if req, ok := b.PrepareDelete(); ok {
				b.Loading = true
				return func() tea.Msg {
					return invoiceDeletedMsg{b.ExecuteDelete(ctx, req)}
				}
			}
		case "n", "esc":
			b.CancelDelete()
		}
		return nil
	}

	switch msg.String() {
	case "enter":
		if inv, ok := v.current(); ok {
			req := b.BeginDetail(inv.ID)
			return func() tea.Msg {
				return invoiceDetailMsg{b.FetchDetail(ctx, req)}
			}
		}
		return nil
	case "p":
		if inv, ok := v.current(); ok {
			return v.download(ctx, inv.ID)
		}
		return nil
	case "P":
		if b.Selected != nil {
			return v.download(ctx, b.Selected.ID)
		}
		return nil
	case "d":
		if inv, ok := v.current(); ok {
			b.RequestDelete(inv.ID)
		}
		return nil
	case "f":
		return v.cycleFilter(ctx, 1)
	case "F":
		return v.cycleFilter(ctx, -1)
	case "r":
		return v.fetch(ctx, b.BeginFetch())
	case "esc":
		b.ClearSelection()
		return nil
	}

	var cmd tea.Cmd
	v.list, cmd = v.list.Update(msg)
	return cmd
}

func (v *invoicesView) download(ctx context.Context, id int) tea.Cmd {
	b := v.browser
	return func() tea.Msg {
		return invoiceDownloadedMsg{b.FetchDocument(ctx, id)}
	}
}

func (v *invoicesView) filterLabel() string {
	if v.filterIndex == 0 || v.filterIndex > len(v.browser.Customers) {
		return "All customers"
	}
	return v.browser.Customers[v.filterIndex-1].Label()
}

func (v *invoicesView) render(spin string, c *Client) string {
	b := v.browser
	var sb strings.Builder

	sb.WriteString(labelStyle.Render("Customer: "))
	sb.WriteString(v.filterLabel())
	sb.WriteString("\n\n")

	var left string
	switch {
	case b.Loading && len(b.Invoices) == 0:
		left = fmt.Sprintf("\n  %s Loading invoices...", spin)
	case len(b.Invoices) == 0:
		left = "\n  No invoices found"
	default:
		left = v.list.View()
	}

	right := boxStyle.Render("Select an invoice and press enter\nto see its details.")
	if b.Selected != nil {
		right = renderInvoiceDetail(c, b.Selected)
	}
	sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right))

	if id, ok := b.ConfirmingDelete(); ok {
		sb.WriteString("\n")
		sb.WriteString(renderConfirmDelete(fmt.Sprintf("invoice #%d", id)))
	}
	return sb.String()
}

func renderInvoiceDetail(c *Client, inv *Invoice) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf(" Invoice #%d ", inv.ID)))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Customer:"), inv.CustomerName))
	b.WriteString(fmt.Sprintf("%s %s\n\n", labelStyle.Render("Date:    "), inv.Date))

	b.WriteString(fmt.Sprintf("%-24s %5s %10s %10s\n", "Medicine", "Qty", "Price", "Total"))
	b.WriteString(strings.Repeat("─", 52) + "\n")
	for _, item := range inv.Items {
		name := item.MedicineName
		if name == "" {
			name = "(removed)"
		}
		b.WriteString(fmt.Sprintf("%s %5d %10s %10s\n",
			fitWidth(name, 24), item.Quantity, item.Price.StringFixed(2), item.LineTotal().StringFixed(2)))
	}
	b.WriteString(strings.Repeat("─", 52) + "\n")
	b.WriteString(fmt.Sprintf("%-41s %10s", "Total", c.FormatCurrency(inv.Total())))

	return boxStyle.Render(b.String())
}

func (v *invoicesView) help() string {
	if _, ok := v.browser.ConfirmingDelete(); ok {
		return "y: confirm • n: cancel"
	}
	return "↑/↓: navigate • enter: details • p: download PDF • P: download shown invoice • d: delete • f/F: filter customer • r: refresh • esc: close details"
}

package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type statsLoadedMsg struct {
	stats Stats
	err   error
}

type recentLoadedMsg struct {
	invoices []Invoice
	err      error
}

var statCardStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("#7D56F4")).
	Padding(0, 2).
	Width(22)

type dashboardView struct {
	statusBoard

	stats   *Stats
	recent  []Invoice
	loading bool

	viewport viewport.Model
	ready    bool
	content  string
}

func newDashboardView() *dashboardView {
	return &dashboardView{}
}

func (v *dashboardView) setSize(w, h int) {
	if !v.ready {
		v.viewport = viewport.New(w, h)
		v.ready = true
	} else {
		v.viewport.Width = w
		v.viewport.Height = h
	}
	v.viewport.SetContent(v.content)
}

func (v *dashboardView) load(ctx context.Context, client *Client) tea.Cmd {
	v.loading = true
	return tea.Batch(
		func() tea.Msg {
			stats, err := LoadStats(ctx, client)
			return statsLoadedMsg{stats: stats, err: err}
		},
		func() tea.Msg {
			invoices, err := RecentInvoices(ctx, client)
			return recentLoadedMsg{invoices: invoices, err: err}
		},
	)
}

func (v *dashboardView) handle(msg tea.Msg, client *Client) tea.Cmd {
	switch msg := msg.(type) {
	case statsLoadedMsg:
		v.loading = false
		if msg.err != nil {
			v.setStatus(StatusError, "Failed to load dashboard data")
		} else {
			stats := msg.stats
			v.stats = &stats
		}
	case recentLoadedMsg:
		if msg.err == nil {
			v.recent = msg.invoices
		}
	}
	v.content = v.build(client)
	if v.ready {
		v.viewport.SetContent(v.content)
	}
	return nil
}

func (v *dashboardView) key(ctx context.Context, client *Client, msg tea.KeyMsg) tea.Cmd {
	if msg.String() == "r" {
		return v.load(ctx, client)
	}
	var cmd tea.Cmd
	v.viewport, cmd = v.viewport.Update(msg)
	return cmd
}

func (v *dashboardView) build(client *Client) string {
	var b strings.Builder

	if v.stats != nil {
		s := v.stats
		low := fmt.Sprintf("%d", s.LowStockMedicines)
		if s.LowStockMedicines > 0 {
			low = lowStockBadge.Render(low)
		}
		cards := []string{
			statCard("Medicines", fmt.Sprintf("%d", s.TotalMedicines)),
			statCard("Customers", fmt.Sprintf("%d", s.TotalCustomers)),
			statCard("Invoices", fmt.Sprintf("%d", s.TotalInvoices)),
			statCard("Low Stock", low),
			statCard("Revenue", client.FormatCurrency(s.TotalRevenue)),
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cards...))
		b.WriteString("\n\n")
	}

	b.WriteString(titleStyle.Render(" Recent Invoices "))
	b.WriteString("\n\n")
	if len(v.recent) == 0 {
		b.WriteString("  No invoices yet\n")
	}
	for _, inv := range v.recent {
		b.WriteString(fmt.Sprintf("  #%-5d %-12s %-28s %14s\n",
			inv.ID, inv.Date, inv.CustomerName, client.FormatCurrency(inv.Total())))
	}
	return b.String()
}

func statCard(label, value string) string {
	return statCardStyle.Render(labelStyle.Render(label) + "\n" + value)
}

func (v *dashboardView) render(spin string) string {
	if v.loading && v.stats == nil {
		return fmt.Sprintf("\n  %s Loading dashboard...", spin)
	}
	if v.ready {
		return v.viewport.View()
	}
	return v.content
}

func (v *dashboardView) help() string {
	return "↑/↓: scroll • r: refresh"
}

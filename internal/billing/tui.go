package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Version info
const (
	Version = "1.0.0"
	Author  = "Mikel Calvo"
	Year    = "2026"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#333333")).
			Padding(0, 1)

	urlStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	creditStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(1, 2)

	tabStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Padding(0, 1)

	activeTabStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Bold(true).
			Padding(0, 1)

	lowStockBadge = lipgloss.NewStyle().
			Background(lipgloss.Color("#FF9500")).
			Foreground(lipgloss.Color("#000")).
			Padding(0, 1)

	outOfStockBadge = lipgloss.NewStyle().
			Background(lipgloss.Color("#FF4444")).
			Foreground(lipgloss.Color("#FFF")).
			Padding(0, 1)

	notificationSuccess = lipgloss.NewStyle().
				Background(lipgloss.Color("#04B575")).
				Foreground(lipgloss.Color("#FFF")).
				Padding(0, 1).
				Bold(true)

	notificationError = lipgloss.NewStyle().
				Background(lipgloss.Color("#FF4444")).
				Foreground(lipgloss.Color("#FFF")).
				Padding(0, 1).
				Bold(true)

	breadcrumbStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))
)

// Route is a top-level screen of the TUI
type Route string

const (
	RouteDashboard     Route = "/"
	RouteMedicines     Route = "/medicines"
	RouteCustomers     Route = "/customers"
	RouteInvoices      Route = "/invoices"
	RouteCreateInvoice Route = "/create-invoice"
)

// navRoutes is the navigation bar, in key order 1-5.
var navRoutes = []struct {
	route Route
	title string
}{
	{RouteDashboard, "Dashboard"},
	{RouteMedicines, "Medicines"},
	{RouteCustomers, "Customers"},
	{RouteInvoices, "Invoices"},
	{RouteCreateInvoice, "Create Invoice"},
}

// ParseRoute resolves a path such as "/invoices" to a route. The empty path is
// the dashboard.
func ParseRoute(path string) (Route, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return RouteDashboard, nil
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	for _, r := range navRoutes {
		if string(r.route) == path {
			return r.route, nil
		}
	}
	return "", fmt.Errorf("unknown route: %s", path)
}

func routeTitle(r Route) string {
	for _, n := range navRoutes {
		if n.route == r {
			return n.title
		}
	}
	return string(r)
}

// ListItem for resource lists
type ListItem struct {
	name    string
	details string
}

func (i ListItem) Title() string       { return i.name }
func (i ListItem) Description() string { return i.details }
func (i ListItem) FilterValue() string { return i.name }

// Model is the main TUI model
type Model struct {
	ctx     context.Context
	client  *Client
	route   Route
	width   int
	height  int
	spinner spinner.Model

	dashboard *dashboardView
	medicines *collectionView[Medicine]
	customers *collectionView[Customer]
	invoices  *invoicesView
	composer  *composerView

	statusTimeout time.Duration
}

// Messages
type clearStatusMsg struct {
	route Route
	id    uint64
}

type searchSettledMsg struct {
	route Route
	tag   uint64
}

// NewTUI creates a new TUI model opened on route
func NewTUI(ctx context.Context, client *Client, route Route) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))

	return Model{
		ctx:     ctx,
		client:  client,
		route:   route,
		spinner: s,

		dashboard: newDashboardView(),
		medicines: newCollectionView(RouteMedicines, "Medicines",
			NewCollection[Medicine](client.Medicines(), MedicineSchema), client.medicineListItem),
		customers: newCollectionView(RouteCustomers, "Customers",
			NewCollection[Customer](client.Customers(), CustomerSchema), customerListItem),
		invoices: newInvoicesView(NewInvoiceBrowser(client, DirSaver{Dir: client.Config.DownloadDir})),
		composer: newComposerView(NewComposer(client, client)),

		statusTimeout: StatusTimeout,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.enter(m.route))
}

// enter loads the data a route shows. Every screen re-reads what it needs.
func (m Model) enter(r Route) tea.Cmd {
	switch r {
	case RouteDashboard:
		return m.dashboard.load(m.ctx, m.client)
	case RouteMedicines:
		return m.medicines.load(m.ctx)
	case RouteCustomers:
		return m.customers.load(m.ctx)
	case RouteInvoices:
		return m.invoices.load(m.ctx)
	case RouteCreateInvoice:
		return m.composer.load(m.ctx)
	}
	return nil
}

// navigate switches routes. Leaving the invoice composer discards its draft.
func (m *Model) navigate(r Route) tea.Cmd {
	if m.route == RouteCreateInvoice && r != RouteCreateInvoice {
		m.composer.reset()
	}
	m.route = r
	return m.enter(r)
}

// typing reports whether keys go to a text input rather than to navigation.
func (m Model) typing() bool {
	switch m.route {
	case RouteMedicines:
		return m.medicines.typing()
	case RouteCustomers:
		return m.customers.typing()
	case RouteInvoices:
		return m.invoices.typing()
	case RouteCreateInvoice:
		return m.composer.typing()
	}
	return false
}

func (m Model) board(r Route) *statusBoard {
	switch r {
	case RouteDashboard:
		return &m.dashboard.statusBoard
	case RouteMedicines:
		return &m.medicines.coll.statusBoard
	case RouteCustomers:
		return &m.customers.coll.statusBoard
	case RouteInvoices:
		return &m.invoices.browser.statusBoard
	case RouteCreateInvoice:
		return &m.composer.composer.statusBoard
	}
	return nil
}

// statusTick schedules the removal of st if it was set since before.
func (m Model) statusTick(r Route, before uint64, st Status) tea.Cmd {
	if st.ID == before || st.Text == "" {
		return nil
	}
	id := st.ID
	return tea.Tick(m.statusTimeout, func(time.Time) tea.Msg {
		return clearStatusMsg{route: r, id: id}
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	before := map[Route]uint64{}
	for _, n := range navRoutes {
		before[n.route] = m.board(n.route).Status.ID
	}

	cmd := m.update(msg)

	cmds := []tea.Cmd{cmd}
	for _, n := range navRoutes {
		cmds = append(cmds, m.statusTick(n.route, before[n.route], m.board(n.route).Status))
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return tea.Quit
		}
		if !m.typing() {
			switch key := msg.String(); key {
			case "q":
				return tea.Quit
			case "1", "2", "3", "4", "5":
				return m.navigate(navRoutes[key[0]-'1'].route)
			}
		}
		return m.routeKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		w, h := msg.Width-4, msg.Height-10
		m.medicines.setSize(w, h)
		m.customers.setSize(w, h)
		m.invoices.setSize(w, h)
		m.dashboard.setSize(w, h)
		return nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return cmd

	case clearStatusMsg:
		if b := m.board(msg.route); b != nil {
			b.ClearStatus(msg.id)
		}
		return nil

	case searchSettledMsg:
		switch msg.route {
		case RouteMedicines:
			return m.medicines.settled(m.ctx, msg.tag)
		case RouteCustomers:
			return m.customers.settled(m.ctx, msg.tag)
		}
		return nil

	case fetchedMsg[Medicine], mutatedMsg[Medicine]:
		return m.medicines.handle(m.ctx, msg)
	case fetchedMsg[Customer], mutatedMsg[Customer]:
		return m.customers.handle(m.ctx, msg)

	case statsLoadedMsg, recentLoadedMsg:
		return m.dashboard.handle(msg, m.client)

	case invoicesFetchedMsg, filterCustomersMsg, invoiceDetailMsg, invoiceDownloadedMsg, invoiceDeletedMsg:
		return m.invoices.handle(m.ctx, msg)

	case catalogLoadedMsg, invoiceSubmittedMsg:
		return m.composer.handle(msg)
	}

	return m.routeOther(msg)
}

func (m *Model) routeKey(msg tea.KeyMsg) tea.Cmd {
	switch m.route {
	case RouteDashboard:
		return m.dashboard.key(m.ctx, m.client, msg)
	case RouteMedicines:
		return m.medicines.key(m.ctx, msg)
	case RouteCustomers:
		return m.customers.key(m.ctx, msg)
	case RouteInvoices:
		return m.invoices.key(m.ctx, msg)
	case RouteCreateInvoice:
		return m.composer.key(m.ctx, msg)
	}
	return nil
}

// routeOther hands anything else (mouse, blink) to the active screen's widgets.
func (m *Model) routeOther(msg tea.Msg) tea.Cmd {
	switch m.route {
	case RouteDashboard:
		var cmd tea.Cmd
		m.dashboard.viewport, cmd = m.dashboard.viewport.Update(msg)
		return cmd
	case RouteMedicines:
		return m.medicines.passthrough(msg)
	case RouteCustomers:
		return m.customers.passthrough(msg)
	case RouteInvoices:
		var cmd tea.Cmd
		m.invoices.list, cmd = m.invoices.list.Update(msg)
		return cmd
	case RouteCreateInvoice:
		var cmd tea.Cmd
		m.composer.edit, cmd = m.composer.edit.Update(msg)
		return cmd
	}
	return nil
}

func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var content string
	spin := m.spinner.View()
	switch m.route {
	case RouteDashboard:
		content = m.dashboard.render(spin)
	case RouteMedicines:
		content = m.medicines.render(spin)
	case RouteCustomers:
		content = m.customers.render(spin)
	case RouteInvoices:
		content = m.invoices.render(spin, m.client)
	case RouteCreateInvoice:
		content = m.composer.render(spin, m.client)
	}

	var b strings.Builder

	b.WriteString(m.renderStatusBar())
	b.WriteString("\n")
	b.WriteString(m.renderNav())
	b.WriteString("\n")
	b.WriteString(m.renderBreadcrumbs())
	b.WriteString("\n")

	if st := m.board(m.route).Status; st.Text != "" {
		if st.Kind == StatusSuccess {
			b.WriteString(notificationSuccess.Render("✓ " + st.Text))
		} else {
			b.WriteString(notificationError.Render("✗ " + st.Text))
		}
		b.WriteString("\n")
	}

	b.WriteString(content)

	b.WriteString("\n\n")
	b.WriteString(m.renderHelp())
	b.WriteString("\n")
	b.WriteString(m.renderCredits())

	return b.String()
}

func (m Model) renderStatusBar() string {
	status := fmt.Sprintf(" %s | %s ", m.client.Config.Brand, urlStyle.Render("● "+m.client.Config.APIURL))
	return statusBarStyle.Render(status)
}

func (m Model) renderNav() string {
	tabs := make([]string, len(navRoutes))
	for i, n := range navRoutes {
		label := fmt.Sprintf("%d %s", i+1, n.title)
		if n.route == m.route {
			tabs[i] = activeTabStyle.Render(label)
		} else {
			tabs[i] = tabStyle.Render(label)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) renderBreadcrumbs() string {
	crumbs := []string{"Home"}
	if m.route != RouteDashboard {
		crumbs = append(crumbs, routeTitle(m.route))
	}
	if m.route == RouteInvoices && m.invoices.browser.Selected != nil {
		crumbs = append(crumbs, fmt.Sprintf("#%d", m.invoices.browser.Selected.ID))
	}
	return breadcrumbStyle.Render("  " + strings.Join(crumbs, " > "))
}

func (m Model) renderHelp() string {
	var help string
	switch m.route {
	case RouteDashboard:
		help = m.dashboard.help()
	case RouteMedicines:
		help = m.medicines.help()
	case RouteCustomers:
		help = m.customers.help()
	case RouteInvoices:
		help = m.invoices.help()
	case RouteCreateInvoice:
		help = m.composer.help()
	}
	if !m.typing() {
		help += " • 1-5: switch screen • q: quit"
	}
	return helpStyle.Render(help)
}

func (m Model) renderCredits() string {
	return creditStyle.Render(fmt.Sprintf("Created by %s in %s • v%s", Author, Year, Version))
}

// RunTUI starts the TUI on route
func RunTUI(client *Client, route Route) error {
	p := tea.NewProgram(NewTUI(context.Background(), client, route), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// newList builds an unfiltered list in the house style; search happens server side.
func newList(title string) list.Model {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = selectedStyle
	delegate.Styles.SelectedDesc = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))

	l := list.New(nil, delegate, 0, 0)
	l.Title = title
	l.Styles.Title = titleStyle
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	return l
}

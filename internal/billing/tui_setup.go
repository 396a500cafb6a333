package billing

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// SetupStep is the current screen of the setup wizard
type SetupStep int

const (
	SetupWelcome SetupStep = iota
	SetupForm
	SetupValidating
	SetupSuccess
	SetupError
)

const (
	setupURL = iota
	setupBrand
	setupCurrency
	setupDownloadDir
)

// SetupModel is the setup wizard
type SetupModel struct {
	step       SetupStep
	inputs     []textinput.Model
	focusIndex int
	width      int
	height     int
	err        error
	spinner    spinner.Model
	resources  []string
	path       string
	saved      bool
}

var (
	setupBoxStyle = boxStyle.Width(60)

	setupHintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)

	setupSuccessStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#04B575")).
				Bold(true)
)

type setupValidateMsg struct {
	resources []string
	err       error
}

type setupSaveMsg struct {
	err error
}

// NewSetupTUI creates a wizard that writes its result to path.
func NewSetupTUI(path string) SetupModel {
	fields := []struct {
		placeholder string
		limit       int
	}{
		{"http://localhost:8000/api", 256},
		{"Pharmacy Billing", 64},
		{"₹", 8},
		{". (current directory)", 256},
	}

	inputs := make([]textinput.Model, len(fields))
	for i, f := range fields {
		inputs[i] = textinput.New()
		inputs[i].Placeholder = f.placeholder
		inputs[i].CharLimit = f.limit
		inputs[i].Width = 50
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))

	return SetupModel{
		step:    SetupWelcome,
		inputs:  inputs,
		spinner: s,
		path:    path,
	}
}

func (m SetupModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m SetupModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			if m.step == SetupValidating {
				return m, nil
			}
			return m, tea.Quit
		case "enter":
			return m.handleEnter()
		case "tab", "down":
			if m.step == SetupForm {
				m.focusIndex = (m.focusIndex + 1) % len(m.inputs)
				return m, m.updateInputFocus()
			}
		case "shift+tab", "up":
			if m.step == SetupForm {
				m.focusIndex = (m.focusIndex - 1 + len(m.inputs)) % len(m.inputs)
				return m, m.updateInputFocus()
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case setupValidateMsg:
		if msg.err != nil {
			m.step = SetupError
			m.err = msg.err
			return m, nil
		}
		m.step = SetupSuccess
		m.resources = msg.resources
		return m, nil

	case setupSaveMsg:
		if msg.err != nil {
			m.step = SetupError
			m.err = msg.err
			return m, nil
		}
		m.saved = true
		return m, tea.Quit
	}

	if m.step == SetupForm {
		var cmd tea.Cmd
		m.inputs[m.focusIndex], cmd = m.inputs[m.focusIndex].Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *SetupModel) handleEnter() (tea.Model, tea.Cmd) {
	switch m.step {
	case SetupWelcome:
		m.step = SetupForm
		m.focusIndex = setupURL
		return m, m.updateInputFocus()

	case SetupForm:
		m.step = SetupValidating
		return m, tea.Batch(m.spinner.Tick, m.validate())

	case SetupSuccess:
		return m, m.save()

	case SetupError:
		m.step = SetupForm
		m.focusIndex = setupURL
		m.err = nil
		return m, m.updateInputFocus()
	}
	return m, nil
}

func (m *SetupModel) updateInputFocus() tea.Cmd {
	cmds := make([]tea.Cmd, len(m.inputs))
	for i := range m.inputs {
		if i == m.focusIndex {
			cmds[i] = m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
	return tea.Batch(cmds...)
}

// value is the input's text, or its placeholder when left blank.
func (m SetupModel) value(i int) string {
	v := strings.TrimSpace(m.inputs[i].Value())
	if v == "" && i != setupDownloadDir {
		return m.inputs[i].Placeholder
	}
	if v == "" {
		return "."
	}
	return v
}

func (m SetupModel) apiURL() string {
	return strings.TrimRight(m.value(setupURL), "/")
}

func (m SetupModel) validate() tea.Cmd {
	apiURL := m.apiURL()
	return func() tea.Msg {
		resources, err := probeBackend(context.Background(), apiURL)
		return setupValidateMsg{resources: resources, err: err}
	}
}

// probeBackend reads the API root and returns the billing resources it lists.
func probeBackend(ctx context.Context, apiURL string) ([]string, error) {
	if !strings.HasPrefix(apiURL, "http://") && !strings.HasPrefix(apiURL, "https://") {
		return nil, fmt.Errorf("URL must start with http:// or https://")
	}
	client := NewClient(&Config{APIURL: apiURL, Timeout: 10 * time.Second})

	var root map[string]interface{}
	if err := client.Request(ctx, http.MethodGet, "/", nil, nil, &root); err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}

	var found []string
	for _, name := range []string{"medicines", "customers", "invoices"} {
		if _, ok := root[name]; ok {
			found = append(found, name)
		}
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%s does not look like a billing API", apiURL)
	}
	return found, nil
}

func (m SetupModel) save() tea.Cmd {
	values := map[string]string{
		"BILLING_API_URL":      m.apiURL(),
		"BILLING_BRAND":        m.value(setupBrand),
		"BILLING_CURRENCY":     m.value(setupCurrency),
		"BILLING_DOWNLOAD_DIR": m.value(setupDownloadDir),
	}
	path := m.path
	return func() tea.Msg {
		return setupSaveMsg{err: SaveConfig(path, values)}
	}
}

func (m SetupModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	switch m.step {
	case SetupWelcome:
		return m.renderWelcome()
	case SetupForm:
		return m.renderForm()
	case SetupValidating:
		return m.renderValidating()
	case SetupSuccess:
		return m.renderSuccess()
	case SetupError:
		return m.renderError()
	}
	return ""
}

func (m SetupModel) renderWelcome() string {
	var sb strings.Builder

	sb.WriteString("\n")
	sb.WriteString(titleStyle.Render("  Welcome to Billing CLI  "))
	sb.WriteString("\n\n")
	sb.WriteString(`No configuration file found.
Let's connect to your pharmacy billing backend.

You'll need the base URL of its REST API,
for example http://localhost:8000/api

`)
	sb.WriteString(helpStyle.Render("[Enter] Continue    [Esc] Cancel"))

	return setupBoxStyle.Render(sb.String())
}

func (m SetupModel) renderForm() string {
	var sb strings.Builder

	sb.WriteString("\n")
	sb.WriteString(titleStyle.Render("  Setup  "))
	sb.WriteString("\n\n")

	labels := []struct{ label, hint string }{
		{"API URL", "Blank uses the placeholder"},
		{"Brand", "Shown in the status bar"},
		{"Currency symbol", "Used when showing amounts"},
		{"Download folder", "Where invoice PDFs are saved"},
	}
	for i, l := range labels {
		sb.WriteString(labelStyle.Render(l.label))
		sb.WriteString("\n")
		sb.WriteString(m.inputs[i].View())
		sb.WriteString("\n")
		sb.WriteString(setupHintStyle.Render(l.hint))
		sb.WriteString("\n\n")
	}

	sb.WriteString(helpStyle.Render("[Tab] Next field    [Enter] Test connection    [Esc] Cancel"))
	return setupBoxStyle.Render(sb.String())
}

func (m SetupModel) renderValidating() string {
	var sb strings.Builder

	sb.WriteString("\n")
	sb.WriteString(titleStyle.Render("  Validating  "))
	sb.WriteString("\n\n")
	sb.WriteString(m.spinner.View())
	sb.WriteString(" Testing connection...")
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("URL: %s\n", m.apiURL()))

	return setupBoxStyle.Render(sb.String())
}

func (m SetupModel) renderSuccess() string {
	var sb strings.Builder

	sb.WriteString("\n")
	sb.WriteString(setupSuccessStyle.Render("  Connection OK  "))
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("Resources: %s\n\n", labelStyle.Render(strings.Join(m.resources, ", "))))
	sb.WriteString("Configuration will be saved to: ")
	sb.WriteString(labelStyle.Render(m.path))
	sb.WriteString("\n\n")
	sb.WriteString(helpStyle.Render("[Enter] Save and exit    [Esc] Cancel"))

	return setupBoxStyle.Render(sb.String())
}

func (m SetupModel) renderError() string {
	var sb strings.Builder

	sb.WriteString("\n")
	sb.WriteString(errorStyle.Render("  Setup Failed  "))
	sb.WriteString("\n\n")
	if m.err != nil {
		sb.WriteString(fmt.Sprintf("Error: %s\n\n", m.err.Error()))
	}
	sb.WriteString("Please check the URL is reachable and points at the API root.\n\n")
	sb.WriteString(helpStyle.Render("[Enter] Try again    [Esc] Cancel"))

	return setupBoxStyle.Render(sb.String())
}

// RunSetupTUI runs the setup wizard. It reports whether a config was saved.
func RunSetupTUI(path string) (bool, error) {
	final, err := tea.NewProgram(NewSetupTUI(path), tea.WithAltScreen()).Run()
	if err != nil {
		return false, err
	}
	switch m := final.(type) {
	case SetupModel:
		return m.saved, nil
	case *SetupModel:
		return m.saved, nil
	}
	return false, nil
}

package billing

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"
)

type catalogLoadedMsg struct {
	res CatalogResult
}

type invoiceSubmittedMsg struct {
	res SubmitResult
}

// Composer grid columns.
const (
	colMedicine = iota
	colQuantity
	colPrice
	numCols
)

// composerView edits an invoice draft as a grid. Row 0 is the customer, row
// i+1 is draft line i.
type composerView struct {
	composer *Composer
	row      int
	col      int
	edit     textinput.Model
}

func newComposerView(composer *Composer) *composerView {
	edit := textinput.New()
	edit.CharLimit = 12
	edit.Width = 10
	edit.Prompt = ""
	return &composerView{composer: composer, edit: edit}
}

func (v *composerView) load(ctx context.Context) tea.Cmd {
	c := v.composer
	c.Loading = true
	return func() tea.Msg {
		return catalogLoadedMsg{c.LoadCatalog(ctx)}
	}
}

func (v *composerView) reset() {
	v.composer.Reset()
	v.row, v.col = 0, 0
	v.edit.Blur()
}

// typing is true while a quantity or price cell has the cursor.
func (v *composerView) typing() bool {
	return v.edit.Focused()
}

func (v *composerView) handle(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case catalogLoadedMsg:
		v.composer.ApplyCatalog(msg.res)
	case invoiceSubmittedMsg:
		v.composer.ApplySubmit(msg.res)
		if msg.res.Err == nil {
			v.row, v.col = 0, 0
			v.edit.Blur()
		}
	}
	return nil
}

// item is the draft line index under the cursor, or -1 on the customer row.
func (v *composerView) item() int {
	return v.row - 1
}

// focusCell points the text input at the numeric cell under the cursor.
func (v *composerView) focusCell() {
	i := v.item()
	if i < 0 || v.col == colMedicine {
		v.edit.Blur()
		return
	}
	line := v.composer.Draft.Items[i]
	if v.col == colQuantity {
		v.edit.SetValue(line.Quantity)
	} else {
		v.edit.SetValue(line.Price)
	}
	v.edit.CursorEnd()
	v.edit.Focus()
}

func (v *composerView) field() ItemField {
	switch v.col {
	case colQuantity:
		return FieldQuantity
	case colPrice:
		return FieldPrice
	}
	return FieldMedicine
}

func (v *composerView) cycleCustomer(step int) {
	c := v.composer
	ids := []int{0}
	for _, cu := range c.Customers {
		ids = append(ids, cu.ID)
	}
	c.SelectCustomer(ids[cycleIndex(ids, c.Draft.CustomerID, step)])
}

func (v *composerView) cycleMedicine(step int) {
	c := v.composer
	i := v.item()
	ids := []int{0}
	for _, m := range c.Medicines {
		ids = append(ids, m.ID)
	}
	next := ids[cycleIndex(ids, c.Draft.Items[i].MedicineID, step)]
	c.UpdateItem(i, FieldMedicine, strconv.Itoa(next))
}

// cycleIndex finds cur in ids and steps from it, wrapping around.
func cycleIndex(ids []int, cur, step int) int {
	at := 0
	for i, id := range ids {
		if id == cur {
			at = i
		}
	}
	n := len(ids)
	return ((at+step)%n + n) % n
}

func (v *composerView) submit(ctx context.Context) tea.Cmd {
	c := v.composer
	if c.Submitting || c.Loading {
		return nil
	}
	req, err := c.PrepareSubmit()
	if err != nil {
		return nil
	}
	return func() tea.Msg {
		return invoiceSubmittedMsg{c.ExecuteSubmit(ctx, req)}
	}
}

func (v *composerView) key(ctx context.Context, msg tea.KeyMsg) tea.Cmd {
	c := v.composer
	rows := len(c.Draft.Items) + 1

	switch msg.String() {
	case "ctrl+s", "enter":
		return v.submit(ctx)
	case "ctrl+n":
		v.row = c.AddItem() + 1
		v.col = colMedicine
		v.focusCell()
		return nil
	case "ctrl+d":
		if i := v.item(); i >= 0 {
			c.RemoveItem(i)
			if v.row > len(c.Draft.Items) {
				v.row = len(c.Draft.Items)
			}
			v.focusCell()
		}
		return nil
	case "up", "shift+up":
		if v.row > 0 {
			v.row--
		}
		v.focusCell()
		return nil
	case "down":
		if v.row < rows-1 {
			v.row++
		}
		v.focusCell()
		return nil
	case "tab":
		if v.row > 0 {
			v.col = (v.col + 1) % numCols
			v.focusCell()
		}
		return nil
	case "shift+tab":
		if v.row > 0 {
			v.col = (v.col - 1 + numCols) % numCols
			v.focusCell()
		}
		return nil
	case "esc":
		v.edit.Blur()
		return nil
	case "left", "right":
		step := 1
		if msg.String() == "left" {
			step = -1
		}
		switch {
		case v.row == 0:
			v.cycleCustomer(step)
			return nil
		case v.col == colMedicine:
			v.cycleMedicine(step)
			return nil
		}
	}

	if !v.edit.Focused() {
		return nil
	}
	var cmd tea.Cmd
	v.edit, cmd = v.edit.Update(msg)
	c.UpdateItem(v.item(), v.field(), v.edit.Value())
	return cmd
}

func (v *composerView) render(spin string, client *Client) string {
	c := v.composer
	if c.Loading && len(c.Customers) == 0 && len(c.Medicines) == 0 {
		return fmt.Sprintf("\n  %s Loading customers and medicines...", spin)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(" New Invoice "))
	b.WriteString("\n\n")

	customer := "Select customer"
	if cu, ok := c.Customer(c.Draft.CustomerID); ok {
		customer = cu.Label()
	}
	b.WriteString(labelStyle.Render("Customer: "))
	b.WriteString(v.cell(0, colMedicine, "◀ "+customer+" ▶"))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("  %-30s %10s %12s %12s\n", "Medicine", "Quantity", "Price", "Total"))
	b.WriteString("  " + strings.Repeat("─", 67) + "\n")
	if len(c.Draft.Items) == 0 {
		b.WriteString(helpStyle.Render("  No items yet. Press ctrl+n to add one."))
		b.WriteString("\n")
	}
	for i, item := range c.Draft.Items {
		name := "Select medicine"
		if m, ok := c.Medicine(item.MedicineID); ok {
			name = fmt.Sprintf("%s (%d in stock)", m.Name, m.Stock)
		}
		total := "NaN"
		if t, err := LineTotal(item); err == nil {
			total = t.StringFixed(2)
		}
		b.WriteString("  ")
		b.WriteString(v.cell(i+1, colMedicine, fitWidth(name, 30)))
		b.WriteString(" ")
		b.WriteString(v.cell(i+1, colQuantity, fmt.Sprintf("%10s", item.Quantity)))
		b.WriteString(" ")
		b.WriteString(v.cell(i+1, colPrice, fmt.Sprintf("%12s", item.Price)))
		b.WriteString(fmt.Sprintf(" %12s\n", total))
	}
	b.WriteString("  " + strings.Repeat("─", 67) + "\n")

	grand := "NaN"
	if t, err := c.GrandTotal(); err == nil {
		grand = client.FormatCurrency(t)
	}
	b.WriteString(fmt.Sprintf("  %-54s %12s\n", "Grand Total", grand))

	if c.Submitting {
		b.WriteString(fmt.Sprintf("\n  %s Creating invoice...", spin))
	}
	return boxStyle.Render(b.String())
}

// cell renders text, highlighted when the cursor is on it and swapped for the
// live input while a numeric cell is being edited.
func (v *composerView) cell(row, col int, text string) string {
	if row != v.row || (row > 0 && col != v.col) {
		return text
	}
	if v.edit.Focused() {
		return selectedStyle.Render(fmt.Sprintf("%*s", runewidth.StringWidth(text), strings.TrimSpace(v.edit.View())))
	}
	return selectedStyle.Render(text)
}

func (v *composerView) help() string {
	if v.edit.Focused() {
		return "type a number • tab: next column • ↑/↓: rows • esc: done editing • ctrl+s: create invoice"
	}
	return "↑/↓: rows • ←/→: choose • tab: next column • ctrl+n: add item • ctrl+d: remove item • enter: create invoice"
}

package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type fetchedMsg[T Entity] struct {
	res FetchResult[T]
}

type mutatedMsg[T Entity] struct {
	res MutationResult[T]
}

// collectionView is the screen of a searchable, editable collection.
type collectionView[T Entity] struct {
	route Route
	title string
	coll  *Collection[T]
	item  func(T) ListItem

	list      list.Model
	search    textinput.Model
	searching bool
	inputs    []textinput.Model
	focus     int
	debounce  time.Duration
}

func newCollectionView[T Entity](route Route, title string, coll *Collection[T], item func(T) ListItem) *collectionView[T] {
	search := textinput.New()
	search.Placeholder = "Search by name..."
	search.Prompt = "/ "
	search.CharLimit = 100
	search.Width = 40

	return &collectionView[T]{
		route:    route,
		title:    title,
		coll:     coll,
		item:     item,
		list:     newList(title),
		search:   search,
		debounce: SearchDebounce,
	}
}

func (v *collectionView[T]) setSize(w, h int) {
	v.list.SetSize(w, h-2)
}

func (v *collectionView[T]) typing() bool {
	_, confirming := v.coll.ConfirmingDelete()
	return v.searching || v.coll.FormVisible || confirming
}

// load issues a list request for the current search term.
func (v *collectionView[T]) load(ctx context.Context) tea.Cmd {
	req := v.coll.BeginFetch()
	coll := v.coll
	return func() tea.Msg {
		return fetchedMsg[T]{coll.Fetch(ctx, req)}
	}
}

// settled fires the search once typing has paused.
func (v *collectionView[T]) settled(ctx context.Context, tag uint64) tea.Cmd {
	if !v.coll.SearchSettled(tag) {
		return nil
	}
	return v.load(ctx)
}

func (v *collectionView[T]) execute(ctx context.Context, req MutationRequest[T]) tea.Cmd {
	v.coll.Loading = true
	coll := v.coll
	return func() tea.Msg {
		return mutatedMsg[T]{coll.Execute(ctx, req)}
	}
}

func (v *collectionView[T]) handle(ctx context.Context, msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case fetchedMsg[T]:
		if v.coll.ApplyFetch(msg.res) {
			return v.syncList()
		}
	case mutatedMsg[T]:
		stale := v.coll.ApplyMutation(msg.res)
		if !v.coll.FormVisible {
			v.inputs = nil
		}
		cmd := v.syncList()
		if stale {
			return tea.Batch(cmd, v.load(ctx))
		}
		return cmd
	}
	return nil
}

// syncList mirrors the collection snapshot into the list widget.
func (v *collectionView[T]) syncList() tea.Cmd {
	items := make([]list.Item, len(v.coll.Items))
	for i, e := range v.coll.Items {
		items[i] = v.item(e)
	}
	return v.list.SetItems(items)
}

func (v *collectionView[T]) selected() (T, bool) {
	var zero T
	i := v.list.Index()
	if i < 0 || i >= len(v.coll.Items) {
		return zero, false
	}
	return v.coll.Items[i], true
}

// openForm builds one input per schema field from the collection's form values.
func (v *collectionView[T]) openForm() {
	fields := v.coll.Schema().Fields()
	v.inputs = make([]textinput.Model, len(fields))
	for i, f := range fields {
		in := textinput.New()
		in.Placeholder = f.Placeholder
		in.CharLimit = 200
		in.Width = 40
		if i < len(v.coll.FormValues) {
			in.SetValue(v.coll.FormValues[i])
		}
		v.inputs[i] = in
	}
	v.focus = 0
	v.updateFocus()
}

func (v *collectionView[T]) updateFocus() {
	for i := range v.inputs {
		if i == v.focus {
			v.inputs[i].Focus()
		} else {
			v.inputs[i].Blur()
		}
	}
}

func (v *collectionView[T]) formValues() []string {
	values := make([]string, len(v.inputs))
	for i, in := range v.inputs {
		values[i] = in.Value()
	}
	return values
}

func (v *collectionView[T]) key(ctx context.Context, msg tea.KeyMsg) tea.Cmd {
	if _, ok := v.coll.ConfirmingDelete(); ok {
		switch msg.String() {
		case "y":
			if req, ok := v.coll.PrepareDelete(); ok {
				return v.execute(ctx, req)
			}
		case "n", "esc":
			v.coll.CancelDelete()
		}
		return nil
	}

	if v.coll.FormVisible {
		return v.formKey(ctx, msg)
	}

	if v.searching {
		switch msg.String() {
		case "enter", "esc":
			v.searching = false
			v.search.Blur()
			return nil
		}
		var cmd tea.Cmd
		v.search, cmd = v.search.Update(msg)
		if v.search.Value() == v.coll.Search {
			return cmd
		}
		tag := v.coll.SetSearch(v.search.Value())
		route := v.route
		return tea.Batch(cmd, tea.Tick(v.debounce, func(time.Time) tea.Msg {
			return searchSettledMsg{route: route, tag: tag}
		}))
	}

	switch msg.String() {
	case "/":
		v.searching = true
		v.search.Focus()
		return nil
	case "n":
		v.coll.StartCreate()
		v.openForm()
		return nil
	case "e", "enter":
		if e, ok := v.selected(); ok {
			v.coll.StartEdit(e)
			v.openForm()
		}
		return nil
	case "d":
		if e, ok := v.selected(); ok {
			v.coll.RequestDelete(e.EntityID())
		}
		return nil
	case "r":
		return v.load(ctx)
	}

	var cmd tea.Cmd
	v.list, cmd = v.list.Update(msg)
	return cmd
}

func (v *collectionView[T]) formKey(ctx context.Context, msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "tab", "down":
		v.focus = (v.focus + 1) % len(v.inputs)
		v.updateFocus()
		return nil
	case "shift+tab", "up":
		v.focus = (v.focus - 1 + len(v.inputs)) % len(v.inputs)
		v.updateFocus()
		return nil
	case "enter":
		if v.coll.Loading {
			return nil
		}
		req, err := v.coll.PrepareSubmit(v.formValues())
		if err != nil {
			return nil
		}
		return v.execute(ctx, req)
	case "esc":
		v.coll.CancelForm()
		v.inputs = nil
		return nil
	}

	if v.focus < len(v.inputs) {
		var cmd tea.Cmd
		v.inputs[v.focus], cmd = v.inputs[v.focus].Update(msg)
		return cmd
	}
	return nil
}

func (v *collectionView[T]) passthrough(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch {
	case v.coll.FormVisible && v.focus < len(v.inputs):
		v.inputs[v.focus], cmd = v.inputs[v.focus].Update(msg)
	case v.searching:
		v.search, cmd = v.search.Update(msg)
	default:
		v.list, cmd = v.list.Update(msg)
	}
	return cmd
}

func (v *collectionView[T]) render(spin string) string {
	var b strings.Builder

	if v.searching || v.coll.Search != "" {
		b.WriteString("  " + v.search.View() + "\n\n")
	}

	switch {
	case v.coll.Loading && len(v.coll.Items) == 0:
		b.WriteString(fmt.Sprintf("\n  %s Loading...", spin))
	case len(v.coll.Items) == 0:
		b.WriteString(fmt.Sprintf("\n  No %ss found", v.coll.Schema().Noun()))
	default:
		b.WriteString(v.list.View())
	}

	if v.coll.FormVisible {
		b.WriteString("\n")
		b.WriteString(v.renderForm())
	}
	if id, ok := v.coll.ConfirmingDelete(); ok {
		b.WriteString("\n")
		b.WriteString(renderConfirmDelete(fmt.Sprintf("%s #%d", v.coll.Schema().Noun(), id)))
	}
	return b.String()
}

func (v *collectionView[T]) renderForm() string {
	var b strings.Builder

	noun := v.coll.Schema().Noun()
	noun = strings.ToUpper(noun[:1]) + noun[1:]
	if v.coll.Editing != nil {
		b.WriteString(titleStyle.Render(fmt.Sprintf(" Edit %s #%d ", noun, (*v.coll.Editing).EntityID())))
	} else {
		b.WriteString(titleStyle.Render(" Add New " + noun + " "))
	}
	b.WriteString("\n\n")

	for i, f := range v.coll.Schema().Fields() {
		label := f.Label
		if f.Required {
			label += " *"
		}
		b.WriteString(labelStyle.Render(label))
		b.WriteString("\n")
		if i < len(v.inputs) {
			b.WriteString(v.inputs[i].View())
		}
		b.WriteString("\n\n")
	}

	if v.coll.Loading {
		b.WriteString("Saving...")
	} else if v.coll.Editing != nil {
		b.WriteString(helpStyle.Render("[Enter] Update    [Esc] Cancel"))
	} else {
		b.WriteString(helpStyle.Render("[Enter] Create    [Esc] Cancel"))
	}
	return boxStyle.Render(b.String())
}

func (v *collectionView[T]) help() string {
	if _, ok := v.coll.ConfirmingDelete(); ok {
		return "y: confirm • n: cancel"
	}
	if v.coll.FormVisible {
		return "tab: next field • enter: submit • esc: cancel"
	}
	if v.searching {
		return "type to search • enter/esc: done"
	}
	return "↑/↓: navigate • /: search • n: new • e/enter: edit • d: delete • r: refresh"
}

func renderConfirmDelete(what string) string {
	content := fmt.Sprintf(`
  Are you sure you want to delete %s?

  This action cannot be undone.

  [y] Yes, delete    [n] No, cancel
`, what)

	return boxStyle.Render(content)
}

func (c *Client) medicineListItem(m Medicine) ListItem {
	details := fmt.Sprintf("%s • stock %d", c.FormatCurrency(m.Price), m.Stock)
	switch {
	case m.OutOfStock():
		details += " " + outOfStockBadge.Render("OUT OF STOCK")
	case m.LowStock():
		details += " " + lowStockBadge.Render("LOW STOCK")
	}
	if m.Description != "" {
		details += " • " + m.Description
	}
	return ListItem{name: fmt.Sprintf("#%d %s", m.ID, m.Name), details: details}
}

func customerListItem(cu Customer) ListItem {
	var parts []string
	if cu.Phone != "" {
		parts = append(parts, cu.Phone)
	}
	if cu.Address != "" {
		parts = append(parts, cu.Address)
	}
	details := strings.Join(parts, " • ")
	if details == "" {
		details = "No contact details"
	}
	return ListItem{name: fmt.Sprintf("#%d %s", cu.ID, cu.Name), details: details}
}

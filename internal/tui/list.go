package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/gestionnegocio/console/internal/apierr"
	"github.com/gestionnegocio/console/internal/catalog"
	"github.com/gestionnegocio/console/internal/resource"
	"github.com/gestionnegocio/console/pkg/models"
	"github.com/rs/zerolog"
)

type recordList = resource.Controller[models.Record, models.Payload]

// listModel is the screen of one entity: a searchable, paginated table with
// details, delete confirmation and create/edit modals
type listModel struct {
	ctx     context.Context
	entity  catalog.Entity
	ctrl    *recordList
	table   table.Model
	search  textinput.Model
	loading LoadingIndicator
	details viewport.Model
	form    *recordForm
	notice  string
	width   int
	height  int
}

func newListModel(ctx context.Context, entity catalog.Entity, adapter resource.Adapter[models.Record, models.Payload], pageSize int, logger zerolog.Logger) *listModel {
	columns := make([]table.Column, 0, len(entity.Columns))
	for _, c := range entity.Columns {
		columns = append(columns, table.Column{Title: c.Title, Width: c.Width})
	}

	search := textinput.New()
	search.Prompt = "Buscar: "
	search.Placeholder = "texto y enter"

	return &listModel{
		ctx:     ctx,
		entity:  entity,
		ctrl:    resource.New[models.Record, models.Payload](adapter, pageSize, logger.With().Str("entity", entity.Name).Logger()),
		table:   table.New(table.WithColumns(columns), table.WithFocused(true), table.WithHeight(pageSize+1)),
		search:  search,
		loading: NewLoadingIndicator("Cargando..."),
		details: viewport.New(60, 12),
	}
}

func (l *listModel) init() tea.Cmd {
	return tea.Batch(l.loading.Tick(), l.load())
}

// load fetches the first page
func (l *listModel) load() tea.Cmd {
	return l.run(func() error { return l.ctrl.Load(l.ctx, 1, "") })
}

func (l *listModel) run(op func() error) tea.Cmd {
	return listCmd(l.entity.Name, op)
}

func (l *listModel) resize(width, height int) {
	l.width, l.height = width, height
	if height > 8 {
		l.table.SetHeight(min(height-8, l.ctrl.PageInfo().PageSize+1))
	}
	l.details.Width = min(max(width-10, 20), 80)
	l.details.Height = max(height-12, 5)
}

// sync copies the controller state into the table
func (l *listModel) sync() {
	snap := l.ctrl.Snapshot()
	rows := make([]table.Row, 0, len(snap.Items))
	for _, item := range snap.Items {
		row := make(table.Row, 0, len(l.entity.Columns))
		for _, c := range l.entity.Columns {
			if c.Key == "id" {
				row = append(row, strconv.FormatInt(item.ID, 10))
				continue
			}
			row = append(row, item.Value(c.Key))
		}
		rows = append(rows, row)
	}
	l.table.SetRows(rows)
	if len(rows) > 0 {
		l.table.SetCursor(min(l.table.Cursor(), len(rows)-1))
	}
}

// current returns the record under the cursor
func (l *listModel) current() (models.Record, bool) {
	items := l.ctrl.Items()
	i := l.table.Cursor()
	if i < 0 || i >= len(items) {
		return models.Record{}, false
	}
	return items[i], true
}

// capturesInput reports whether keys are being typed into a field
func (l *listModel) capturesInput() bool {
	return l.search.Focused() || l.form != nil
}

// update handles a message; back is true when the user leaves the screen
func (l *listModel) update(msg tea.Msg) (cmd tea.Cmd, back bool) {
	switch msg := msg.(type) {
	case listLoadedMsg:
		if msg.Entity != l.entity.Name {
			return nil, false
		}
		switch {
		case msg.Err == nil:
			l.notice = ""
		case !errors.Is(msg.Err, resource.ErrStale):
			l.notice = apierr.UserMessage(msg.Err)
		}
		l.sync()
		return nil, false

	case mutationDoneMsg:
		if msg.Entity != l.entity.Name {
			return nil, false
		}
		return l.mutationDone(msg), false

	case spinner.TickMsg:
		l.loading, cmd = l.loading.Update(msg)
		return cmd, false

	case tea.KeyMsg:
		return l.handleKey(msg)
	}

	if l.form != nil {
		return l.updateForm(msg), false
	}
	return nil, false
}

func (l *listModel) mutationDone(msg mutationDoneMsg) tea.Cmd {
	l.sync()
	if msg.Err == nil {
		l.notice = ""
		if !l.ctrl.Selection().Active() {
			l.form = nil
		}
		return nil
	}

	if errors.Is(msg.Err, resource.ErrBusy) {
		l.notice = "Hay una operación en curso"
		return nil
	}
	// The selection keeps the error; a completed form has to be rebuilt to retry
	if l.form != nil && l.ctrl.Selection().Active() {
		l.form = l.form.reopen()
		return l.form.form.Init()
	}
	return nil
}

func (l *listModel) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	sel := l.ctrl.Selection()
	switch sel.Intent {
	case resource.IntentCreating, resource.IntentEditing:
		if msg.String() == "esc" {
			l.ctrl.Cancel()
			l.form = nil
			return nil, false
		}
		if sel.Saving || l.form == nil {
			return nil, false
		}
		return l.updateForm(msg), false

	case resource.IntentViewingDetails:
		switch msg.String() {
		case "esc", "q":
			l.ctrl.Cancel()
		case "e":
			return l.beginEdit(sel.Item), false
		case "d":
			l.ctrl.BeginDelete(sel.Item)
		default:
			var cmd tea.Cmd
			l.details, cmd = l.details.Update(msg)
			return cmd, false
		}
		return nil, false

	case resource.IntentConfirmingDelete:
		switch msg.String() {
		case "y", "s", "enter":
			if !sel.Saving {
				return l.confirmDelete(), false
			}
		case "n", "esc":
			l.ctrl.Cancel()
		}
		return nil, false
	}

	if l.search.Focused() {
		switch msg.String() {
		case "enter":
			l.search.Blur()
			term := l.search.Value()
			return l.run(func() error { return l.ctrl.Search(l.ctx, term) }), false
		case "esc":
			l.search.Blur()
			l.search.SetValue(l.ctrl.SearchTerm())
			return nil, false
		}
		var cmd tea.Cmd
		l.search, cmd = l.search.Update(msg)
		return cmd, false
	}

	switch msg.String() {
	case "esc":
		return nil, true
	case "/":
		return l.search.Focus(), false
	case "right", "n":
		return l.run(func() error { return l.ctrl.NextPage(l.ctx) }), false
	case "left", "p":
		return l.run(func() error { return l.ctrl.PrevPage(l.ctx) }), false
	case "r":
		return l.run(func() error { return l.ctrl.Refresh(l.ctx) }), false
	case "a":
		l.ctrl.BeginCreate()
		l.form = newRecordForm(l.entity, nil, false)
		return l.form.form.Init(), false
	case "e":
		if item, ok := l.current(); ok {
			return l.beginEdit(item), false
		}
		return nil, false
	case "enter":
		if item, ok := l.current(); ok {
			l.ctrl.BeginDetails(item)
			l.details.SetContent(l.renderDetails(item))
			l.details.GotoTop()
		}
		return nil, false
	case "d", "delete":
		if item, ok := l.current(); ok {
			l.ctrl.BeginDelete(item)
		}
		return nil, false
	}

	var cmd tea.Cmd
	l.table, cmd = l.table.Update(msg)
	return cmd, false
}

func (l *listModel) beginEdit(item models.Record) tea.Cmd {
	l.ctrl.BeginEdit(item)
	l.form = newRecordForm(l.entity, l.entity.FormValues(item), true)
	return l.form.form.Init()
}

func (l *listModel) updateForm(msg tea.Msg) tea.Cmd {
	model, cmd := l.form.form.Update(msg)
	if f, ok := model.(*huh.Form); ok {
		l.form.form = f
	}

	switch l.form.form.State {
	case huh.StateCompleted:
		return l.submit()
	case huh.StateAborted:
		l.ctrl.Cancel()
		l.form = nil
		return nil
	}
	return cmd
}

// submit sends the form values through the controller
func (l *listModel) submit() tea.Cmd {
	sel := l.ctrl.Selection()
	payload, err := l.entity.BuildPayload(l.form.input(), l.form.editing)
	if err != nil {
		l.notice = err.Error()
		l.form = l.form.reopen()
		return l.form.form.Init()
	}
	l.notice = ""
	return mutationCmd(l.entity.Name, sel.Intent, func() error { return l.ctrl.Submit(l.ctx, payload) })
}

func (l *listModel) confirmDelete() tea.Cmd {
	return mutationCmd(l.entity.Name, resource.IntentConfirmingDelete, func() error { return l.ctrl.ConfirmDelete(l.ctx) })
}

func (l *listModel) renderDetails(item models.Record) string {
	var s strings.Builder
	fmt.Fprintf(&s, "%s %d\n\n", titleStyle.Render("Registro"), item.ID)

	shown := map[string]bool{"id": true}
	write := func(key, label string) {
		if shown[key] {
			return
		}
		shown[key] = true
		fmt.Fprintf(&s, "%s: %s\n", mutedStyle.Render(label), item.Value(key))
	}
	for _, f := range l.entity.Fields {
		if f.Kind != catalog.FieldSecret {
			write(f.Key, f.Label)
		}
	}
	for _, c := range l.entity.Columns {
		write(c.Key, c.Title)
	}
	return s.String()
}

func (l *listModel) view() string {
	snap := l.ctrl.Snapshot()
	info := snap.PageInfo

	var s strings.Builder
	status := fmt.Sprintf("página %d de %d · %d registros", info.CurrentPage, max(info.TotalPages, 1), info.TotalCount)
	if snap.Status.Kind == resource.StatusLoading {
		status = l.loading.View()
	}
	s.WriteString(titleStyle.Render(l.entity.Title) + "  " + mutedStyle.Render(status) + "\n")
	s.WriteString(l.search.View() + "\n\n")

	if sel := snap.Selection; sel.Active() {
		s.WriteString(l.renderModal(sel))
	} else if snap.Status.Kind == resource.StatusLoaded && len(snap.Items) == 0 {
		s.WriteString(mutedStyle.Render("No hay registros") + "\n")
	} else {
		s.WriteString(l.table.View() + "\n")
	}

	if snap.Status.Kind == resource.StatusFailed {
		s.WriteString("\n" + errorStyle.Render(apierr.UserMessage(snap.Status.Err)))
	}
	if l.notice != "" {
		s.WriteString("\n" + errorStyle.Render(l.notice))
	}
	return s.String()
}

func (l *listModel) renderModal(sel resource.Selection[models.Record]) string {
	var body string
	switch sel.Intent {
	case resource.IntentViewingDetails:
		body = l.details.View() + "\n" + footerStyle.Render("e: editar • d: eliminar • esc: cerrar")
	case resource.IntentConfirmingDelete:
		name := sel.Item.Value(l.entity.Columns[min(1, len(l.entity.Columns)-1)].Key)
		body = fmt.Sprintf("¿Eliminar el registro %d (%s)?\n\n", sel.Item.ID, name)
		if sel.Saving {
			body += l.loading.View()
		} else {
			body += footerStyle.Render("y: eliminar • n: cancelar")
		}
	case resource.IntentCreating, resource.IntentEditing:
		if l.form != nil {
			body = l.form.form.View()
		}
		if sel.Saving {
			body += "\n" + l.loading.View()
		}
	}
	if sel.Err != nil {
		body += "\n" + errorStyle.Render(apierr.UserMessage(sel.Err))
	}
	return lipgloss.NewStyle().MarginLeft(2).Render(modalStyle.Render(body)) + "\n"
}

func (l *listModel) help() string {
	switch l.ctrl.Selection().Intent {
	case resource.IntentCreating, resource.IntentEditing:
		return "enter: siguiente/guardar • esc: cancelar"
	case resource.IntentNone:
		return "↑/↓: mover • enter: ver • a: nuevo • e: editar • d: eliminar • /: buscar • ←/→: página • r: recargar • esc: menú"
	default:
		return ""
	}
}

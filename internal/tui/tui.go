package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/gestionnegocio/console/internal/access"
	"github.com/gestionnegocio/console/internal/apierr"
	"github.com/gestionnegocio/console/internal/catalog"
	"github.com/gestionnegocio/console/internal/gateway"
	"github.com/gestionnegocio/console/internal/session"
	"github.com/rs/zerolog"
)

// Session is the part of the session controller the console drives
type Session interface {
	access.Source
	Init(ctx context.Context) error
	Login(ctx context.Context, identifier, secret string) error
	Logout(ctx context.Context) error
	Subscribe() (<-chan session.Snapshot, func())
}

// Options wires the console to the core services
type Options struct {
	Session  Session
	Gateway  *gateway.Gateway
	PageSize int
	// Route optionally names the entity screen to open first
	Route  string
	Logger zerolog.Logger
}

type screen int

const (
	screenLoading screen = iota
	screenLogin
	screenMenu
	screenList
	screenForbidden
)

type model struct {
	ctx         context.Context
	opts        Options
	guard       *access.Guard
	updates     <-chan session.Snapshot
	unsubscribe func()

	screen  screen
	route   string // entity of the open list, empty for the menu
	loading LoadingIndicator
	login   loginModel
	cursor  int
	list    *listModel
	width   int
	height  int
}

func newModel(ctx context.Context, opts Options) model {
	updates, unsubscribe := opts.Session.Subscribe()
	return model{
		ctx:         ctx,
		opts:        opts,
		guard:       access.NewGuard(opts.Session),
		updates:     updates,
		unsubscribe: unsubscribe,
		screen:      screenLoading,
		route:       opts.Route,
		loading:     NewLoadingIndicator("Verificando sesión..."),
		width:       80,
		height:      24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.loading.Tick(),
		waitForSessionCmd(m.updates),
		initSessionCmd(m.ctx, m.opts.Session),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.list != nil {
			m.list.resize(msg.Width, msg.Height)
		}
		return m, nil

	case sessionChangedMsg:
		cmd := m.navigate()
		return m, tea.Batch(cmd, waitForSessionCmd(m.updates))

	case sessionInitMsg:
		if msg.Err != nil && !errors.Is(msg.Err, session.ErrAlreadyInitialized) {
			m.opts.Logger.Warn().Err(msg.Err).Msg("session startup failed")
		}
		return m, m.navigate()

	case loginDoneMsg:
		m.login.submitting = false
		if msg.Err != nil {
			m.opts.Logger.Debug().Err(msg.Err).Msg("login failed")
			m.login = newLoginModel(m.login.emailValue(), loginError(msg.Err))
			return m, tea.Batch(m.login.form.Init(), m.navigate())
		}
		return m, m.navigate()

	case logoutDoneMsg:
		if msg.Err != nil {
			m.opts.Logger.Error().Err(msg.Err).Msg("logout failed")
		}
		return m, m.navigate()

	case spinner.TickMsg:
		var cmds []tea.Cmd
		var cmd tea.Cmd
		m.loading, cmd = m.loading.Update(msg)
		cmds = append(cmds, cmd)
		if m.list != nil {
			cmd, _ = m.list.update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m.handleKey(msg)
	}

	switch {
	case m.screen == screenLogin && !m.login.submitting:
		return m.updateLogin(msg)
	case m.list != nil:
		cmd, _ := m.list.update(msg)
		return m, cmd
	}
	return m, nil
}

// navigate applies the guard decision for the current route
func (m *model) navigate() tea.Cmd {
	var allowed []int64
	entity, hasRoute := catalog.Lookup(m.route)
	if hasRoute {
		allowed = entity.Allowed
	} else {
		m.route = ""
	}

	switch m.guard.Check(allowed) {
	case access.ShowLoadingIndicator:
		m.screen = screenLoading
		return nil

	case access.RedirectToLogin:
		// The identity is gone; list screens are rebuilt for the next one
		m.list = nil
		if m.screen == screenLogin {
			return nil
		}
		m.screen = screenLogin
		m.login = newLoginModel(m.login.emailValue(), m.login.err)
		return m.login.form.Init()

	case access.RedirectToForbidden:
		m.list = nil
		m.screen = screenForbidden
		return nil

	default:
		m.login.err = ""
		if !hasRoute {
			m.screen = screenMenu
			m.cursor = min(m.cursor, max(len(m.menu())-1, 0))
			return nil
		}
		m.screen = screenList
		if m.list != nil && m.list.entity.Name == entity.Name {
			return nil
		}
		return m.openList(entity)
	}
}

func (m *model) openList(entity catalog.Entity) tea.Cmd {
	snap := m.opts.Session.Snapshot()
	if snap.Identity == nil {
		return nil
	}
	adapter := catalog.NewAdapter(m.opts.Gateway, entity, *snap.Identity)
	m.list = newListModel(m.ctx, entity, adapter, m.opts.PageSize, m.opts.Logger)
	m.list.resize(m.width, m.height)
	return m.list.init()
}

func (m model) menu() []catalog.Entity {
	return catalog.Visible(m.guard)
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.screen {
	case screenLogin:
		if m.login.submitting {
			return m, nil
		}
		if msg.String() == "esc" {
			return m, tea.Quit
		}
		return m.updateLogin(msg)

	case screenMenu:
		items := m.menu()
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(items)-1 {
				m.cursor++
			}
		case "enter":
			if m.cursor < len(items) {
				m.route = items[m.cursor].Name
				return m, m.navigate()
			}
		case "l":
			return m, logoutCmd(m.ctx, m.opts.Session)
		}
		return m, nil

	case screenForbidden:
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "l":
			return m, logoutCmd(m.ctx, m.opts.Session)
		case "esc", "enter":
			m.route = ""
			return m, m.navigate()
		}
		return m, nil

	case screenList:
		if m.list == nil {
			return m, nil
		}
		if msg.String() == "q" && !m.list.capturesInput() && !m.list.ctrl.Selection().Active() {
			return m, tea.Quit
		}
		cmd, back := m.list.update(msg)
		if back {
			m.route = ""
			m.list = nil
			return m, m.navigate()
		}
		return m, cmd
	}

	if msg.String() == "q" {
		return m, tea.Quit
	}
	return m, nil
}

func (m model) updateLogin(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := m.login.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.login.form = f
	}
	switch m.login.form.State {
	case huh.StateCompleted:
		return m, m.submitLogin()
	case huh.StateAborted:
		return m, tea.Quit
	}
	return m, cmd
}

// submitLogin sends the entered credentials
func (m *model) submitLogin() tea.Cmd {
	m.login.submitting = true
	m.login.err = ""
	m.loading.SetMessage("Iniciando sesión...")
	return loginCmd(m.ctx, m.opts.Session, strings.TrimSpace(m.login.emailValue()), *m.login.password)
}

func loginError(err error) string {
	switch {
	case errors.Is(err, session.ErrBusy):
		return "Ya hay un inicio de sesión en curso"
	case errors.Is(err, session.ErrSuperseded):
		return "El inicio de sesión fue cancelado"
	case apierr.IsAuthentication(err):
		return "Correo o contraseña incorrectos"
	default:
		return apierr.UserMessage(err)
	}
}

func (m model) View() string {
	switch m.screen {
	case screenLoading:
		return LoadingOverlay(m.width, m.height, m.loading)
	case screenLogin:
		return m.renderLogin()
	}

	header := m.renderHeader()
	var body string
	switch m.screen {
	case screenMenu:
		body = m.renderMenu()
	case screenForbidden:
		body = m.renderForbidden()
	case screenList:
		if m.list != nil {
			body = m.list.view()
		}
	}
	return fmt.Sprintf("%s\n\n%s\n\n%s", header, body, m.renderFooter())
}

func (m model) renderHeader() string {
	title := "Gestión de negocio"
	if snap := m.opts.Session.Snapshot(); snap.Identity != nil {
		title = fmt.Sprintf("%s · %s (%s)", title, snap.Identity.DisplayName, access.RoleName(snap.Identity.RoleID))
	}
	return headerStyle.Render(title)
}

func (m model) renderLogin() string {
	var s strings.Builder
	s.WriteString(headerStyle.Render("Gestión de negocio") + "\n\n")
	if m.login.submitting {
		s.WriteString(m.loading.View() + "\n")
	} else {
		s.WriteString(m.login.form.View() + "\n")
	}
	if m.login.err != "" {
		s.WriteString("\n" + errorStyle.Render(m.login.err) + "\n")
	}
	s.WriteString("\n" + footerStyle.Render("enter: continuar • esc: salir"))
	return s.String()
}

func (m model) renderMenu() string {
	items := m.menu()
	if len(items) == 0 {
		return mutedStyle.Render("Tu rol no tiene módulos disponibles")
	}

	var s strings.Builder
	for i, e := range items {
		if i == m.cursor {
			s.WriteString(selectedStyle.Render("> "+e.Title) + "\n")
			continue
		}
		s.WriteString("  " + e.Title + "\n")
	}
	return s.String()
}

func (m model) renderForbidden() string {
	title := "este módulo"
	if e, ok := catalog.Lookup(m.route); ok {
		title = e.Title
	}
	return errorStyle.Render("Acceso denegado") + "\n\n" +
		fmt.Sprintf("Tu rol no tiene permiso para abrir %s.", title)
}

func (m model) renderFooter() string {
	var info string
	switch m.screen {
	case screenMenu:
		info = "↑/↓: navegar • enter: abrir • l: cerrar sesión • q: salir"
	case screenForbidden:
		info = "esc: volver al menú • l: cerrar sesión • q: salir"
	case screenList:
		if m.list != nil {
			info = m.list.help()
		}
	}
	return footerStyle.Render(info)
}

// Run starts the console and blocks until the user quits
func Run(ctx context.Context, opts Options) error {
	m := newModel(ctx, opts)
	defer m.unsubscribe()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

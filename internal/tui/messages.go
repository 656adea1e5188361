package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gestionnegocio/console/internal/resource"
	"github.com/gestionnegocio/console/internal/session"
)

// Message types for async operations
type (
	// sessionChangedMsg carries the latest session snapshot
	sessionChangedMsg struct {
		Snapshot session.Snapshot
	}

	// sessionInitMsg reports the end of startup resolution
	sessionInitMsg struct {
		Err error
	}

	// loginDoneMsg reports the outcome of a login attempt
	loginDoneMsg struct {
		Err error
	}

	// logoutDoneMsg reports that the session was torn down
	logoutDoneMsg struct {
		Err error
	}

	// listLoadedMsg is sent when a navigation of a list screen finished
	listLoadedMsg struct {
		Entity string
		Err    error
	}

	// mutationDoneMsg is sent when a save or delete finished
	mutationDoneMsg struct {
		Entity string
		Intent resource.Intent
		Err    error
	}
)

// Commands for async operations

// initSessionCmd resolves the stored credential at startup
func initSessionCmd(ctx context.Context, s Session) tea.Cmd {
	return func() tea.Msg {
		return sessionInitMsg{Err: s.Init(ctx)}
	}
}

// waitForSessionCmd blocks until the session publishes a new snapshot
func waitForSessionCmd(updates <-chan session.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-updates
		if !ok {
			return nil
		}
		return sessionChangedMsg{Snapshot: snap}
	}
}

// loginCmd submits the credentials
func loginCmd(ctx context.Context, s Session, identifier, secret string) tea.Cmd {
	return func() tea.Msg {
		return loginDoneMsg{Err: s.Login(ctx, identifier, secret)}
	}
}

// logoutCmd clears the session
func logoutCmd(ctx context.Context, s Session) tea.Cmd {
	return func() tea.Msg {
		return logoutDoneMsg{Err: s.Logout(ctx)}
	}
}

// listCmd runs a list navigation
func listCmd(entity string, op func() error) tea.Cmd {
	return func() tea.Msg {
		return listLoadedMsg{Entity: entity, Err: op()}
	}
}

// mutationCmd runs a save or delete
func mutationCmd(entity string, intent resource.Intent, op func() error) tea.Cmd {
	return func() tea.Msg {
		return mutationDoneMsg{Entity: entity, Intent: intent, Err: op()}
	}
}

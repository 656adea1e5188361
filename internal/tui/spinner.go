package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// LoadingIndicator is a spinner with a message
type LoadingIndicator struct {
	spinner spinner.Model
	message string
}

// NewLoadingIndicator creates a new loading indicator
func NewLoadingIndicator(message string) LoadingIndicator {
	s := spinner.New(
		spinner.WithSpinner(spinner.MiniDot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("212"))),
	)
	return LoadingIndicator{spinner: s, message: message}
}

// SetMessage updates the loading message
func (l *LoadingIndicator) SetMessage(message string) {
	l.message = message
}

// Tick starts the spinner animation
func (l LoadingIndicator) Tick() tea.Cmd {
	return l.spinner.Tick
}

// Update advances the animation on spinner ticks
func (l LoadingIndicator) Update(msg tea.Msg) (LoadingIndicator, tea.Cmd) {
	var cmd tea.Cmd
	l.spinner, cmd = l.spinner.Update(msg)
	return l, cmd
}

// View renders the loading indicator
func (l LoadingIndicator) View() string {
	return fmt.Sprintf("%s %s", l.spinner.View(), mutedStyle.Render(l.message))
}

// LoadingOverlay centers the indicator on the screen
func LoadingOverlay(width, height int, indicator LoadingIndicator) string {
	style := lipgloss.NewStyle().
		Width(width).
		Height(height).
		Align(lipgloss.Center, lipgloss.Center)

	return style.Render(indicator.View())
}

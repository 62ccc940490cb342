package cli

import (
	"context"
	"fmt"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/pagewright/pagewright/internal/router"
)

// Theme holds the color scheme for the chat display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

// chatTheme provides default colors.
var chatTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// submitDoneMsg carries the finished turn back into the UI loop.
type submitDoneMsg struct {
	res *router.Result
	err error
}

// spinnerModel shows a spinner while one submit is in flight.
type spinnerModel struct {
	spinner  spinner.Model
	submit   tea.Cmd
	theme    Theme
	res      *router.Result
	err      error
	canceled bool
}

func newSpinnerModel(submit tea.Cmd) spinnerModel {
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	return spinnerModel{
		spinner: sp,
		submit:  submit,
		theme:   chatTheme,
	}
}

// Init starts the spinner animation and the submit in parallel.
func (m spinnerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.submit)
}

// Update handles messages and returns the updated model.
func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c":
			m.canceled = true
			return m, tea.Quit
		}

	case submitDoneMsg:
		m.res = msg.res
		m.err = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the waiting line.
func (m spinnerModel) View() tea.View {
	if m.res != nil || m.err != nil || m.canceled {
		return tea.NewView("")
	}
	line := fmt.Sprintf("%s %s",
		m.spinner.View(),
		m.theme.statusStyle().Render("thinking..."))
	return tea.NewView(line)
}

// submitWithSpinner runs one turn while showing a spinner, so long model
// calls don't look like a hang.
func submitWithSpinner(ctx context.Context, run turnFunc, conversationID, text string) (*router.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	submit := func() tea.Msg {
		res, err := run(ctx, conversationID, text)
		return submitDoneMsg{res: res, err: err}
	}

	p := tea.NewProgram(newSpinnerModel(submit))
	finalModel, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("chat UI error: %w", err)
	}

	m, ok := finalModel.(spinnerModel)
	if !ok {
		return nil, fmt.Errorf("unexpected UI model")
	}
	if m.canceled {
		cancel()
		return nil, nil
	}
	return m.res, m.err
}

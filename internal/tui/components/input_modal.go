package components

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mmcdole/shelf/internal/domain"
	"github.com/mmcdole/shelf/internal/tui/styles"
)

// InputEvent reports what an InputModal update did
type InputEvent int

const (
	InputNone InputEvent = iota
	InputChanged
	InputSubmitted
	InputCancelled
	InputFieldCycled
)

// InputModal is the filter/search prompt. Typing filters locally; Enter
// asks the server; Tab cycles the searched field.
type InputModal struct {
	visible bool
	field   domain.SearchField
	input   textinput.Model
}

// NewInputModal creates a new input modal
func NewInputModal() InputModal {
	ti := textinput.New()
	ti.Placeholder = "type to filter, enter to search"
	ti.CharLimit = 120
	ti.Width = 40
	ti.Prompt = ""
	ti.TextStyle = lipgloss.NewStyle().Foreground(styles.White)
	ti.PlaceholderStyle = styles.DimStyle

	return InputModal{input: ti}
}

// Show displays the modal, keeping the previous query
func (m *InputModal) Show() {
	m.visible = true
	m.input.Focus()
}

// Hide dismisses the modal
func (m *InputModal) Hide() {
	m.visible = false
	m.input.Blur()
}

// Reset clears the query
func (m *InputModal) Reset() {
	m.input.SetValue("")
}

// IsVisible returns whether the modal is shown
func (m InputModal) IsVisible() bool { return m.visible }

// Value returns the current query
func (m InputModal) Value() string { return m.input.Value() }

// Field returns the searched field
func (m InputModal) Field() domain.SearchField { return m.field }

// Update handles input events
func (m InputModal) Update(msg tea.Msg) (InputModal, tea.Cmd, InputEvent) {
	if !m.visible {
		return m, nil, InputNone
	}

	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "enter":
			return m, nil, InputSubmitted
		case "esc":
			m.Hide()
			return m, nil, InputCancelled
		case "tab":
			m.field = m.field.Next()
			return m, nil, InputFieldCycled
		}
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != before {
		return m, cmd, InputChanged
	}
	return m, cmd, InputNone
}

// View renders the prompt line
func (m InputModal) View() string {
	if !m.visible {
		return ""
	}
	label := styles.FilterPromptStyle.Render("/" + m.field.String() + " ")
	hint := styles.DimStyle.Render("  tab: field  esc: close")
	return label + m.input.View() + hint
}

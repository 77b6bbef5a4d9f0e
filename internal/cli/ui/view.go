package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kerrakir/config-converter/pkg/orchestrator"
	"github.com/kerrakir/config-converter/pkg/orchestrator/request"
)

const helpText = "tab: next  ←/→: change  ctrl+a/d: add/remove row  ctrl+r: run  ctrl+x: stop  ctrl+o/p: preview input/output  ctrl+c: quit"

// View renders the form, the converter log and the optional preview.
func (m *Model) View() string {
	if m.quitting {
		return "Exiting...\n"
	}
	if !m.initialized {
		return "Initializing..."
	}

	sections := []string{
		m.headerView(),
		m.formView(),
		PaneTitleStyle.Render("Converter log"),
		m.log.View(),
	}
	if m.previewOpen {
		sections = append(sections, PaneTitleStyle.Render(m.previewLabel), m.preview.View())
	}
	sections = append(sections, m.footerView())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) headerView() string {
	left := fmt.Sprintf("convctl %s", m.version)
	right := string(m.state)
	if m.state.Active() {
		right = m.spinner.View() + " " + right
	}
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return HeaderStyle.Width(max(m.width, 0)).Render(left + strings.Repeat(" ", gap) + right)
}

func (m *Model) formView() string {
	f := &m.form
	var b strings.Builder

	b.WriteString(f.input.View() + "\n")
	b.WriteString(f.output.View() + "\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		m.selectorView(fieldFrom, f.from.label, f.from.value()), "  ",
		m.selectorView(fieldTo, f.to.label, f.to.value()), "  ",
		m.selectorView(fieldIndex, f.index.label, request.IndexPolicy(f.index.value()).Label()),
	) + "\n")

	prefix := f.prefix.View()
	if request.IndexPolicy(f.index.value()) != request.IndexThreePart {
		prefix = BlurredStyle.Render(prefix + " (3-part only)")
	}
	b.WriteString(prefix + "\n")

	check := "[ ]"
	if f.mappingEnabled {
		check = "[x]"
	}
	b.WriteString(m.styleFor(fieldMapping).Render(check+" Interface mapping") + "\n")
	for i, row := range f.rows {
		fromField := fixedFieldCount + field(2*i)
		line := fmt.Sprintf("  %d. %s → %s", i+1,
			m.styleFor(fromField).Render(row.from.value()),
			m.styleFor(fromField+1).Render(row.to.value()))
		if !f.mappingEnabled {
			line = BlurredStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}

	return FormStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func (m *Model) selectorView(fld field, label, value string) string {
	return m.styleFor(fld).Render(fmt.Sprintf("%s: ‹%s›", label, value))
}

func (m *Model) styleFor(fld field) lipgloss.Style {
	if m.form.focus == fld {
		return FocusedStyle
	}
	return NoStyle
}

func (m *Model) footerView() string {
	status := StatusStyleIdle
	switch {
	case m.statusErr:
		status = StatusStyleFailed
	case m.state == orchestrator.StateCompleted:
		status = StatusStyleSuccess
	case m.state.Active():
		status = StatusStyleRunning
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		status.Render(m.statusLine),
		FooterStyle.Width(max(m.width, 0)).Render(helpText),
	)
}

// --- Styles ---

const (
	ColorHeaderFg = lipgloss.Color("252")
	ColorHeaderBg = lipgloss.Color("62")

	ColorFooterFg = lipgloss.Color("252")
	ColorFooterBg = lipgloss.Color("56")

	ColorFocused = lipgloss.Color("205")
	ColorBlurred = lipgloss.Color("240")

	ColorStatusSuccess = lipgloss.Color("40")
	ColorStatusFailed  = lipgloss.Color("196")
	ColorStatusRunning = lipgloss.Color("205")
	ColorStatusIdle    = lipgloss.Color("244")
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorHeaderFg).
			Background(ColorHeaderBg).
			Padding(0, 1)

	FooterStyle = lipgloss.NewStyle().
			Foreground(ColorFooterFg).
			Background(ColorFooterBg).
			Padding(0, 1)

	FormStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBlurred).
			Padding(0, 1)

	PaneTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorFocused)

	FocusedStyle = lipgloss.NewStyle().Foreground(ColorFocused).Bold(true)
	BlurredStyle = lipgloss.NewStyle().Foreground(ColorBlurred)
	NoStyle      = lipgloss.NewStyle()

	StatusStyleSuccess = lipgloss.NewStyle().Foreground(ColorStatusSuccess)
	StatusStyleFailed  = lipgloss.NewStyle().Foreground(ColorStatusFailed)
	StatusStyleRunning = lipgloss.NewStyle().Foreground(ColorStatusRunning)
	StatusStyleIdle    = lipgloss.NewStyle().Foreground(ColorStatusIdle)
)

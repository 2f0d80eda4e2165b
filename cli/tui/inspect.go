package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/biolumen/lumacq/cli/reader"
)

// InspectModel is a Bubble Tea model for inspect views.
type InspectModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewInspectModel creates a new inspect model.
func NewInspectModel(viewType string, data any) InspectModel {
	return InspectModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case "inspect_stack":
		content = m.renderInspectStack()
	case "inspect_run":
		content = m.renderInspectRun()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m InspectModel) renderInspectStack() string {
	data, ok := m.data.(*reader.StackResponse)
	if !ok {
		return "Invalid data type for inspect_stack"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Stack Artifact"))
	b.WriteString("\n\n")

	rows := [][]string{
		{"Path", data.Path},
		{"Run ID", data.RunID},
		{"Mode", data.Mode},
		{"Started At", data.StartedAt},
		{"Frames", fmt.Sprintf("%d", data.Frames)},
		{"Seq Range", fmt.Sprintf("%d - %d", data.FirstSeq, data.LastSeq)},
		{"Size", fmt.Sprintf("%d bytes", data.SizeBytes)},
	}
	if data.Device != "" {
		rows = append(rows, []string{"Device", data.Device})
	}

	for _, row := range rows {
		b.WriteString(fmt.Sprintf("%s %s\n",
			LabelStyle.Render(row[0]+":"),
			ValueStyle.Render(row[1])))
	}

	integrity := "complete"
	style := SuccessStyle
	if data.Truncated {
		integrity = "truncated"
		style = ErrorStyle
	}
	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("Integrity:"),
		style.Render(integrity)))

	return BoxStyle.Render(b.String())
}

func (m InspectModel) renderInspectRun() string {
	data, ok := m.data.(*reader.RunResponse)
	if !ok {
		return "Invalid data type for inspect_run"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Run Details"))
	b.WriteString("\n\n")

	rows := [][]string{
		{"Run ID", data.RunID},
		{"Status", data.Status},
		{"Modes", strings.Join(data.Modes, ", ")},
		{"Frequency", fmt.Sprintf("%.2f Hz", data.FrequencyHz)},
		{"Line Map", data.LineMap},
		{"Ticks", fmt.Sprintf("%d", data.Ticks)},
		{"Started At", data.StartedAt.Format("2006-01-02 15:04:05")},
		{"Finished At", data.FinishedAt.Format("2006-01-02 15:04:05")},
	}
	if data.Device != "" {
		rows = append(rows, []string{"Device", data.Device})
	}

	for _, row := range rows {
		label := LabelStyle.Render(row[0] + ":")
		value := row[1]
		if row[0] == "Status" {
			value = StateStyle(data.Status).Render(value)
		} else {
			value = ValueStyle.Render(value)
		}
		b.WriteString(fmt.Sprintf("%s %s\n", label, value))
	}

	if data.Message != "" {
		b.WriteString(fmt.Sprintf("%s %s\n",
			LabelStyle.Render("Message:"),
			ErrorStyle.Render(data.Message)))
	}

	if len(data.ModeStats) > 0 {
		b.WriteString("\n")
		b.WriteString(TitleStyle.Render("Per-Mode Counters"))
		b.WriteString("\n")
		for mode, s := range data.ModeStats {
			b.WriteString(fmt.Sprintf("%s routed=%d timeouts=%d dropped=%d rate=%.2fHz\n",
				LabelStyle.Render(mode+":"),
				s.FramesRouted, s.Timeouts, s.Dropped, s.AchievedHz))
		}
	}

	if len(data.Artifacts) > 0 {
		b.WriteString("\n")
		b.WriteString(TitleStyle.Render("Artifacts"))
		b.WriteString("\n")
		for _, a := range data.Artifacts {
			b.WriteString(fmt.Sprintf("  • %s\n",
				ValueStyle.Render(fmt.Sprintf("%s (%d frames)", a.Path, a.Frames))))
		}
	}

	return BoxStyle.Render(b.String())
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// RunInspectTUI runs the inspect TUI.
func RunInspectTUI(viewType string, data any) error {
	model := NewInspectModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderInspectStatic renders inspect data without full TUI (for fallback).
func RenderInspectStatic(viewType string, data any) string {
	model := NewInspectModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}

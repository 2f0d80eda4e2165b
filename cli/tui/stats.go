package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/biolumen/lumacq/cli/reader"
)

// StatsModel is a Bubble Tea model for stats views.
type StatsModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewStatsModel creates a new stats model.
func NewStatsModel(viewType string, data any) StatsModel {
	return StatsModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case "stats_dir":
		content = m.renderStatsDir()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m StatsModel) renderStatsDir() string {
	data, ok := m.data.(*reader.DirStats)
	if !ok {
		return "Invalid data type for stats_dir"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Output Directory Statistics"))
	b.WriteString("\n\n")

	boxes := []string{
		m.renderStatBox("Runs", int64(data.Runs), highlightColor),
		m.renderStatBox("Stacks", int64(data.Stacks), highlightColor),
		m.renderStatBox("Frames", data.Frames, successColor),
		m.renderStatBox("Truncated", int64(data.Truncated), errorColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))

	if len(data.ByStatus) > 0 {
		b.WriteString("\n\n")
		b.WriteString(TitleStyle.Render("Runs by Outcome"))
		b.WriteString("\n")
		for _, status := range sortedKeys(data.ByStatus) {
			b.WriteString(fmt.Sprintf("%s %s\n",
				LabelStyle.Render(status+":"),
				StateStyle(status).Render(fmt.Sprintf("%d", data.ByStatus[status]))))
		}
	}

	if len(data.FramesMode) > 0 {
		b.WriteString("\n")
		b.WriteString(TitleStyle.Render("Frames by Mode"))
		b.WriteString("\n")
		for _, mode := range sortedKeys64(data.FramesMode) {
			b.WriteString(fmt.Sprintf("%s %s\n",
				LabelStyle.Render(mode+":"),
				ValueStyle.Render(fmt.Sprintf("%d", data.FramesMode[mode]))))
		}
	}

	return b.String()
}

func (m StatsModel) renderStatBox(label string, value int64, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)

	valueStr := StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	labelStr := StatLabelStyle.Render(label)

	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr)

	return boxStyle.Render(content)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeys64(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RunStatsTUI runs the stats TUI.
func RunStatsTUI(viewType string, data any) error {
	model := NewStatsModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderStatsStatic renders stats data without full TUI (for fallback).
func RenderStatsStatic(viewType string, data any) string {
	model := NewStatsModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}

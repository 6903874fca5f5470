// Package ui holds the interactive terminal views of the cadence CLI.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	logoStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	itemStyle         = lipgloss.NewStyle().PaddingLeft(2)
	selectedItemStyle = lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("12")).Bold(true)
	descStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

const logo = `
                     __                    
  _________ _____/ /__  ____  ________ 
 / ___/ __ '/ __  / _ \/ __ \/ ___/ _ \
/ /__/ /_/ / /_/ /  __/ / / / /__/  __/
\___/\__,_/\__,_/\___/_/ /_/\___/\___/ 
`

// MenuItem is one command the menu can launch.
type MenuItem struct {
	Command     string
	Description string
}

// DefaultItems are the commands that run without arguments.
var DefaultItems = []MenuItem{
	{"init", "create the config and database"},
	{"recommend", "pick the next task among all open tasks"},
	{"list-tasks", "list open tasks"},
	{"overview", "habit statistics for today"},
	{"status", "counts and feedback summary"},
	{"serve", "run the HTTP API"},
	{"mcp", "run the MCP server on stdio"},
	{"export", "write decision logs as JSONL"},
}

type MenuModel struct {
	items    []MenuItem
	keys     KeyMap
	cursor   int
	selected string
	quitting bool
}

func NewMenuModel() MenuModel {
	return MenuModel{
		items: DefaultItems,
		keys:  DefaultKeyMap(),
	}
}

func (m MenuModel) Init() tea.Cmd {
	return nil
}

func (m MenuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(keyMsg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(keyMsg, m.keys.Down):
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}

	case key.Matches(keyMsg, m.keys.Select):
		m.selected = m.items[m.cursor].Command
		return m, tea.Quit
	}

	return m, nil
}

func (m MenuModel) View() string {
	if m.quitting {
		return ""
	}

	var s strings.Builder

	s.WriteString(logoStyle.Render(logo))
	s.WriteString("\n\n")

	for i, item := range m.items {
		line := fmt.Sprintf("%-12s", item.Command)
		if m.cursor == i {
			s.WriteString(selectedItemStyle.Render("> " + line))
		} else {
			s.WriteString(itemStyle.Render("  " + line))
		}
		s.WriteString(" " + descStyle.Render(item.Description))
		s.WriteString("\n")
	}

	s.WriteString("\n" + helpStyle.Render(m.keys.ShortHelp()) + "\n")

	return s.String()
}

func (m MenuModel) Selected() string {
	return m.selected
}

func RunMenu() (string, error) {
	m := NewMenuModel()
	p := tea.NewProgram(m)
	finalModel, err := p.Run()
	if err != nil {
		return "", err
	}
	return finalModel.(MenuModel).Selected(), nil
}

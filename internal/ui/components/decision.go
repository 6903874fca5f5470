// Package components renders engine results for the terminal.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ldi/cadence/pkg/models"
)

var (
	recommendStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("42")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)

	subTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	placeholderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Italic(true).
				Padding(0, 1)
)

// DecisionView renders a recommendation with its reasons and ranking.
// Titles maps task ids to display names; unknown ids show as the bare id.
type DecisionView struct {
	Decision *models.Decision
	Titles   map[string]string
	Width    int
	// Breakdown adds the factor contributions under each ranked candidate.
	Breakdown bool
}

func NewDecisionView(d *models.Decision, titles map[string]string, width int) *DecisionView {
	return &DecisionView{Decision: d, Titles: titles, Width: width}
}

func (v *DecisionView) title(id string) string {
	if t, ok := v.Titles[id]; ok && t != "" {
		return t
	}
	return id
}

func (v *DecisionView) View() string {
	if v.Decision == nil {
		return placeholderStyle.Render("No recommendation: fewer than two candidate tasks were found")
	}
	d := v.Decision

	var top []string
	top = append(top, fmt.Sprintf("→ %s", v.title(d.RecommendedID)))
	top = append(top, fmt.Sprintf("confidence %d%%", int(d.Confidence*100+0.5)))
	for _, r := range d.Reasons {
		top = append(top, "• "+r.Description)
	}
	box := recommendStyle.Width(v.boxWidth()).Render(subTitleStyle.Render("Do next") + "\n" + strings.Join(top, "\n"))

	var rows []string
	for i, s := range d.Scores {
		rows = append(rows, fmt.Sprintf("%d. %-*s %6.2f", i+1, v.nameWidth(), truncate(v.title(s.TaskID), v.nameWidth()), s.Score))
		if v.Breakdown {
			for _, f := range s.Factors {
				detail := f.Label
				if f.Note != "" {
					detail = f.Note
				}
				rows = append(rows, mutedStyle.Render(fmt.Sprintf("     %-10s %5.2f  %s", f.Name, f.Value, detail)))
			}
		}
	}

	out := []string{box, headerStyle.Render("Ranking"), strings.Join(rows, "\n")}
	if d.LogID != "" {
		out = append(out, mutedStyle.Render("decision "+d.LogID))
	}
	return strings.Join(out, "\n")
}

func (v *DecisionView) boxWidth() int {
	if v.Width < 20 {
		return 20
	}
	return v.Width
}

func (v *DecisionView) nameWidth() int {
	w := v.boxWidth() - 12
	if w < 8 {
		w = 8
	}
	return w
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 1 {
		return string(r[:width])
	}
	return string(r[:width-1]) + "…"
}

package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/zenyard/zy/internal/core"
	"github.com/zenyard/zy/pkg/models"
)

const kanbanColumnWidth = 28

// Kanban card and column styles.
var (
	kanbanColumnStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240")).
				Padding(0, 1).
				Width(kanbanColumnWidth)

	kanbanHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("62"))

	cardIDStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	priorityHigh   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	priorityMedium = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	priorityLow    = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))

	blockedBadgeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

// renderKanban renders tasks as static kanban columns in the fixed board
// order. all is the complete task set, used to resolve blocked-by badges.
func renderKanban(tasks, all []models.Task) string {
	groups := core.GroupByStatus(tasks)

	columns := make([]string, 0, len(core.ColumnOrder))
	for _, status := range core.ColumnOrder {
		group := groups[status]
		columns = append(columns, renderKanbanColumn(status, group, all))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, columns...)
}

func renderKanbanColumn(status models.TaskStatus, group, all []models.Task) string {
	var b strings.Builder
	b.WriteString(kanbanHeaderStyle.Render(fmt.Sprintf("%s (%d)", status, len(group))))
	b.WriteString("\n")

	if len(group) == 0 {
		b.WriteString(cardIDStyle.Render("  -"))
	}

	for _, t := range group {
		b.WriteString("\n")
		b.WriteString(renderKanbanCard(t, all))
		b.WriteString("\n")
	}

	return kanbanColumnStyle.Render(b.String())
}

func renderKanbanCard(t models.Task, all []models.Task) string {
	title := t.Title
	if maxTitle := kanbanColumnWidth - 4; len(title) > maxTitle {
		title = title[:maxTitle-1] + "…"
	}

	header := cardIDStyle.Render(t.ID) + " " + styleForPriority(t.Priority).Render(string(t.Priority))
	if core.Resolve(t, all).Blocked() {
		header += " " + blockedBadgeStyle.Render("!")
	}

	return header + "\n" + title
}

func styleForPriority(p models.Priority) lipgloss.Style {
	switch p {
	case models.PriorityHigh:
		return priorityHigh
	case models.PriorityMedium:
		return priorityMedium
	case models.PriorityLow:
		return priorityLow
	default:
		return lipgloss.NewStyle()
	}
}

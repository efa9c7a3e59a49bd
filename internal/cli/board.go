package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/zenyard/zy/internal/core"
	"github.com/zenyard/zy/pkg/models"
)

// boardOpTimeout bounds store calls issued from the interactive board.
const boardOpTimeout = 10 * time.Second

type boardModel struct {
	width  int
	height int

	// Data.
	columns map[models.TaskStatus][]models.Task
	all     []models.Task

	// Cursor.
	activeColumn int // index into core.ColumnOrder
	activeRow    int

	// State.
	loading bool
	status  string // transient status line, e.g. sync errors
	err     error
}

// boardLoadedMsg carries a fresh board snapshot back to the model.
type boardLoadedMsg struct {
	columns map[models.TaskStatus][]models.Task
	all     []models.Task
	err     error
}

// boardOpDoneMsg reports the outcome of a move or archive.
type boardOpDoneMsg struct {
	status string
	err    error
}

// Board style definitions.
var (
	boardTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	boardColumnStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240")).
				Padding(0, 1)

	boardActiveColumnStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(0, 1)

	boardHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("62"))

	selectedCardStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("230")).
				Background(lipgloss.Color("62"))

	boardHelpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	boardErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func newBoardModel() boardModel {
	return boardModel{
		loading: true,
		columns: make(map[models.TaskStatus][]models.Task),
	}
}

func (m boardModel) Init() tea.Cmd {
	return loadBoard
}

func (m boardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case boardLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.columns = msg.columns
		m.all = msg.all
		m.err = nil
		m.clampCursor()
		return m, nil

	case boardOpDoneMsg:
		if msg.err != nil {
			m.status = boardErrorStyle.Render(firstErrorLine(msg.err))
		} else {
			m.status = msg.status
		}
		// Reload to pick up renumbered orders (and rollbacks).
		return m, loadBoard
	}

	return m, nil
}

func (m boardModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc", "ctrl+c":
		return m, tea.Quit

	case "r":
		m.loading = true
		m.status = ""
		return m, loadBoard

	case "h", "left":
		if m.activeColumn > 0 {
			m.activeColumn--
			m.clampCursor()
		}
		return m, nil

	case "l", "right":
		if m.activeColumn < len(core.ColumnOrder)-1 {
			m.activeColumn++
			m.clampCursor()
		}
		return m, nil

	case "j", "down":
		if m.activeRow < len(m.activeTasks())-1 {
			m.activeRow++
		}
		return m, nil

	case "k", "up":
		if m.activeRow > 0 {
			m.activeRow--
		}
		return m, nil

	case "J":
		// Shift the selected task one position down within its column.
		if task, ok := m.selectedTask(); ok {
			return m.dispatchReorder(task, m.activeRow+1)
		}
		return m, nil

	case "K":
		if task, ok := m.selectedTask(); ok {
			return m.dispatchReorder(task, m.activeRow-1)
		}
		return m, nil

	case "H", "shift+left":
		if m.activeColumn > 0 {
			if task, ok := m.selectedTask(); ok {
				return m.dispatchMove(task, core.ColumnOrder[m.activeColumn-1])
			}
		}
		return m, nil

	case "L", "shift+right":
		if m.activeColumn < len(core.ColumnOrder)-1 {
			if task, ok := m.selectedTask(); ok {
				return m.dispatchMove(task, core.ColumnOrder[m.activeColumn+1])
			}
		}
		return m, nil

	case "a":
		if task, ok := m.selectedTask(); ok {
			return m.dispatchArchive(task)
		}
		return m, nil
	}

	return m, nil
}

func (m boardModel) activeTasks() []models.Task {
	return m.columns[core.ColumnOrder[m.activeColumn]]
}

func (m boardModel) selectedTask() (models.Task, bool) {
	tasks := m.activeTasks()
	if m.activeRow < 0 || m.activeRow >= len(tasks) {
		return models.Task{}, false
	}
	return tasks[m.activeRow], true
}

func (m *boardModel) clampCursor() {
	if n := len(m.activeTasks()); m.activeRow >= n {
		m.activeRow = n - 1
	}
	if m.activeRow < 0 {
		m.activeRow = 0
	}
}

// dispatchMove moves the selected task to the target column, applying the
// change optimistically so the board updates before the store confirms.
func (m boardModel) dispatchMove(task models.Task, target models.TaskStatus) (tea.Model, tea.Cmd) {
	m.applyLocalMove(task, target)
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), boardOpTimeout)
		defer cancel()
		if _, err := Dispatcher.MoveTask(ctx, Project, task.ID, target); err != nil {
			return boardOpDoneMsg{err: err}
		}
		return boardOpDoneMsg{status: fmt.Sprintf("moved %s to %s", task.ID, target)}
	}
}

func (m boardModel) dispatchReorder(task models.Task, index int) (tea.Model, tea.Cmd) {
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), boardOpTimeout)
		defer cancel()
		if _, err := Dispatcher.ReorderTask(ctx, Project, task.ID, index); err != nil {
			return boardOpDoneMsg{err: err}
		}
		return boardOpDoneMsg{status: fmt.Sprintf("moved %s to position %d", task.ID, index)}
	}
}

func (m boardModel) dispatchArchive(task models.Task) (tea.Model, tea.Cmd) {
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), boardOpTimeout)
		defer cancel()
		if _, err := Dispatcher.ArchiveTask(ctx, Project, task.ID); err != nil {
			return boardOpDoneMsg{err: err}
		}
		return boardOpDoneMsg{status: fmt.Sprintf("archived %s", task.ID)}
	}
}

// applyLocalMove updates the in-memory columns so the card appears in its
// new column immediately. The follow-up reload reconciles the real orders.
func (m *boardModel) applyLocalMove(task models.Task, target models.TaskStatus) {
	source := core.ColumnOrder[m.activeColumn]
	group := m.columns[source]
	for i, t := range group {
		if t.ID == task.ID {
			m.columns[source] = append(group[:i:i], group[i+1:]...)
			break
		}
	}
	task.Status = target
	m.columns[target] = append(m.columns[target], task)
	m.clampCursor()
}

func (m boardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := boardTitleStyle.Render(fmt.Sprintf(" zy board · %s ", Project))
	help := boardHelpStyle.Render("h/l: column | j/k: task | H/L: move | J/K: reorder | a: archive | r: refresh | q: quit")

	if m.loading {
		return fmt.Sprintf("%s\n\n  Loading board...\n\n%s", title, help)
	}

	if m.err != nil {
		return fmt.Sprintf("%s\n\n  Error: %s\n\n%s", title, m.err, help)
	}

	colWidth := (m.width - 2) / len(core.ColumnOrder)
	if colWidth < 16 {
		colWidth = 16
	}

	rendered := make([]string, 0, len(core.ColumnOrder))
	for i, status := range core.ColumnOrder {
		rendered = append(rendered, m.renderColumn(i, status, colWidth-4))
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, rendered...)

	statusLine := m.status
	return fmt.Sprintf("%s\n\n%s\n%s\n%s", title, body, statusLine, help)
}

func (m boardModel) renderColumn(index int, status models.TaskStatus, width int) string {
	tasks := m.columns[status]

	var b strings.Builder
	b.WriteString(boardHeaderStyle.Render(fmt.Sprintf("%s (%d)", status, len(tasks))))
	b.WriteString("\n")

	for row, t := range tasks {
		line := fmt.Sprintf("%s %s", t.ID, t.Title)
		if len(line) > width {
			line = line[:width-1] + "…"
		}
		if core.Resolve(t, m.all).Blocked() {
			line = blockedBadgeStyle.Render("!") + line
		}
		if index == m.activeColumn && row == m.activeRow {
			line = selectedCardStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	style := boardColumnStyle
	if index == m.activeColumn {
		style = boardActiveColumnStyle
	}
	return style.Width(width).Render(b.String())
}

func loadBoard() tea.Msg {
	if Dispatcher == nil {
		return boardLoadedMsg{err: fmt.Errorf("task dispatcher not initialized")}
	}

	ctx, cancel := context.WithTimeout(context.Background(), boardOpTimeout)
	defer cancel()

	tasks, err := Dispatcher.Store().ListTasks(ctx, Project)
	if err != nil {
		return boardLoadedMsg{err: fmt.Errorf("loading board: %w", err)}
	}

	return boardLoadedMsg{
		columns: core.GroupByStatus(tasks),
		all:     tasks,
	}
}

// firstErrorLine trims an error message to its first line for the status bar.
func firstErrorLine(err error) string {
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return msg
}

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Interactive kanban board",
	Long: `Launch the interactive kanban board for the active project.

Navigate columns with h/l and tasks with j/k. Move the selected task
between columns with H/L, reorder it within its column with J/K, and
archive it with a. Changes apply to the board immediately and sync to
the store in the background; failed changes are rolled back and shown
in the status line.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Dispatcher == nil {
			return fmt.Errorf("task dispatcher not initialized")
		}
		p := tea.NewProgram(newBoardModel(), tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(boardCmd)
}

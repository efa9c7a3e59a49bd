package cli

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zenyard/zy/pkg/models"
)

func sampleColumns() map[models.TaskStatus][]models.Task {
	return map[models.TaskStatus][]models.Task{
		models.StatusTodo: {
			{ID: "TASK-00001", Title: "first", Status: models.StatusTodo, Priority: models.PriorityHigh, Order: 1},
			{ID: "TASK-00002", Title: "second", Status: models.StatusTodo, Priority: models.PriorityLow, Order: 2},
		},
		models.StatusInProgress: {
			{ID: "TASK-00003", Title: "third", Status: models.StatusInProgress, Priority: models.PriorityMedium, Order: 1},
		},
	}
}

func loadedBoardModel() boardModel {
	m := newBoardModel()
	cols := sampleColumns()
	var all []models.Task
	for _, group := range cols {
		all = append(all, group...)
	}
	updated, _ := m.Update(boardLoadedMsg{columns: cols, all: all})
	return updated.(boardModel)
}

func TestBoardModel_Init(t *testing.T) {
	m := newBoardModel()
	if !m.loading {
		t.Error("new board model should start loading")
	}
	if m.Init() == nil {
		t.Error("Init should return the load command")
	}
}

func TestBoardModel_QuitKeys(t *testing.T) {
	m := loadedBoardModel()
	for _, key := range []string{"q", "esc", "ctrl+c"} {
		var msg tea.KeyMsg
		switch key {
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "ctrl+c":
			msg = tea.KeyMsg{Type: tea.KeyCtrlC}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
		}
		_, cmd := m.Update(msg)
		if cmd == nil {
			t.Errorf("key %q should quit", key)
			continue
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("key %q should produce a quit message", key)
		}
	}
}

func TestBoardModel_ColumnNavigation(t *testing.T) {
	m := loadedBoardModel()

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("l")})
	m = updated.(boardModel)
	if m.activeColumn != 1 {
		t.Fatalf("expected column 1 after 'l', got %d", m.activeColumn)
	}

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("h")})
	m = updated.(boardModel)
	if m.activeColumn != 0 {
		t.Fatalf("expected column 0 after 'h', got %d", m.activeColumn)
	}

	// The cursor never walks off the left edge.
	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("h")})
	m = updated.(boardModel)
	if m.activeColumn != 0 {
		t.Fatalf("column underflowed to %d", m.activeColumn)
	}
}

func TestBoardModel_RowNavigationClamps(t *testing.T) {
	m := loadedBoardModel()

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	m = updated.(boardModel)
	if m.activeRow != 1 {
		t.Fatalf("expected row 1 after 'j', got %d", m.activeRow)
	}

	// Two tasks in todo, so another 'j' stays put.
	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	m = updated.(boardModel)
	if m.activeRow != 1 {
		t.Fatalf("row overflowed to %d", m.activeRow)
	}

	// Switching to a shorter column clamps the cursor.
	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("l")})
	m = updated.(boardModel)
	if m.activeRow != 0 {
		t.Fatalf("cursor not clamped on column switch: row %d", m.activeRow)
	}
}

func TestBoardModel_LoadError(t *testing.T) {
	m := newBoardModel()
	updated, _ := m.Update(boardLoadedMsg{err: errors.New("store unavailable")})
	m = updated.(boardModel)
	if m.err == nil {
		t.Fatal("load error not recorded")
	}

	updated, _ = m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = updated.(boardModel)
	if !strings.Contains(m.View(), "store unavailable") {
		t.Error("view should surface the load error")
	}
}

func TestBoardModel_OpDoneTriggersReload(t *testing.T) {
	m := loadedBoardModel()

	updated, cmd := m.Update(boardOpDoneMsg{status: "moved TASK-00001 to in-progress"})
	m = updated.(boardModel)
	if cmd == nil {
		t.Fatal("op completion must schedule a reload")
	}
	if m.status != "moved TASK-00001 to in-progress" {
		t.Fatalf("status line not set: %q", m.status)
	}
}

func TestBoardModel_OpErrorShowsFirstLine(t *testing.T) {
	m := loadedBoardModel()

	updated, _ := m.Update(boardOpDoneMsg{err: errors.New("sync failed\ndetails follow")})
	m = updated.(boardModel)
	if strings.Contains(m.status, "details follow") {
		t.Fatalf("status bar should show only the first line: %q", m.status)
	}
	if !strings.Contains(m.status, "sync failed") {
		t.Fatalf("error missing from status bar: %q", m.status)
	}
}

func TestBoardModel_ApplyLocalMove(t *testing.T) {
	m := loadedBoardModel()

	task := m.columns[models.StatusTodo][0]
	m.applyLocalMove(task, models.StatusInProgress)

	if len(m.columns[models.StatusTodo]) != 1 {
		t.Fatalf("task not removed from source column: %v", m.columns[models.StatusTodo])
	}
	moved := m.columns[models.StatusInProgress]
	if len(moved) != 2 || moved[1].ID != task.ID {
		t.Fatalf("task not appended to target column: %v", moved)
	}
	if moved[1].Status != models.StatusInProgress {
		t.Fatalf("local move kept the old status: %q", moved[1].Status)
	}
}

func TestBoardModel_ViewWithData(t *testing.T) {
	m := loadedBoardModel()
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 140, Height: 40})
	m = updated.(boardModel)

	view := m.View()
	for _, want := range []string{"todo (2)", "in-progress (1)", "TASK-00001"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestBoardModel_ViewLoading(t *testing.T) {
	m := newBoardModel()
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m = updated.(boardModel)

	if !strings.Contains(m.View(), "Loading board") {
		t.Error("loading view missing")
	}
}

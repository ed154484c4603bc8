package cli

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func testEntries() []sheetEntry {
	return []sheetEntry{
		{Name: "Revenue", Rows: 40, Cols: 8, Cells: 320, Merges: 2},
		{Name: "Costs", Rows: 25, Cols: 6, Cells: 150, Merges: 0},
		{Name: "Summary", Rows: 10, Cols: 4, Cells: 40, Merges: 1},
	}
}

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestSheetListModelNavigation(t *testing.T) {
	m := NewSheetListModel("report.xlsx", testEntries())

	if m.Cursor != 0 {
		t.Fatalf("initial cursor = %d, want 0", m.Cursor)
	}

	// Down twice, up once
	updated, _ := m.Update(keyRune('j'))
	m = updated.(SheetListModel)
	updated, _ = m.Update(keyRune('j'))
	m = updated.(SheetListModel)
	if m.Cursor != 2 {
		t.Errorf("cursor after down,down = %d, want 2", m.Cursor)
	}

	updated, _ = m.Update(keyRune('k'))
	m = updated.(SheetListModel)
	if m.Cursor != 1 {
		t.Errorf("cursor after up = %d, want 1", m.Cursor)
	}
}

func TestSheetListModelCursorBounds(t *testing.T) {
	m := NewSheetListModel("report.xlsx", testEntries())

	// Up at the top stays at 0
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = updated.(SheetListModel)
	if m.Cursor != 0 {
		t.Errorf("cursor after up at top = %d, want 0", m.Cursor)
	}

	// Down past the last row stays at rowCount-1 (3 sheets + all row)
	for i := 0; i < 10; i++ {
		updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
		m = updated.(SheetListModel)
	}
	if m.Cursor != 3 {
		t.Errorf("cursor after overshooting down = %d, want 3", m.Cursor)
	}
}

func TestSheetListModelSelectAll(t *testing.T) {
	m := NewSheetListModel("report.xlsx", testEntries())

	// Enter on row 0 selects every sheet
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(SheetListModel)

	if cmd == nil {
		t.Error("enter should quit the program")
	}
	if m.Selected == nil {
		t.Fatal("enter should set a selection")
	}
	want := []string{"Revenue", "Costs", "Summary"}
	if len(m.Selected.Sheets) != len(want) {
		t.Fatalf("selected %d sheets, want %d", len(m.Selected.Sheets), len(want))
	}
	for i, name := range want {
		if m.Selected.Sheets[i] != name {
			t.Errorf("selected[%d] = %q, want %q", i, m.Selected.Sheets[i], name)
		}
	}
}

func TestSheetListModelSelectOne(t *testing.T) {
	m := NewSheetListModel("report.xlsx", testEntries())

	// Move to the second sheet and select it
	updated, _ := m.Update(keyRune('j'))
	m = updated.(SheetListModel)
	updated, _ = m.Update(keyRune('j'))
	m = updated.(SheetListModel)
	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(SheetListModel)

	if m.Selected == nil {
		t.Fatal("enter should set a selection")
	}
	if len(m.Selected.Sheets) != 1 || m.Selected.Sheets[0] != "Costs" {
		t.Errorf("selected = %v, want [Costs]", m.Selected.Sheets)
	}
}

func TestSheetListModelQuitWithoutSelection(t *testing.T) {
	tests := []struct {
		name string
		msg  tea.Msg
	}{
		{"q", keyRune('q')},
		{"esc", tea.KeyMsg{Type: tea.KeyEsc}},
		{"ctrl+c", tea.KeyMsg{Type: tea.KeyCtrlC}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewSheetListModel("report.xlsx", testEntries())
			updated, cmd := m.Update(tt.msg)
			m = updated.(SheetListModel)

			if cmd == nil {
				t.Error("quit key should produce a quit command")
			}
			if m.Selected != nil {
				t.Errorf("quit should leave selection nil, got %v", m.Selected.Sheets)
			}
		})
	}
}

func TestSheetListModelScroll(t *testing.T) {
	entries := make([]sheetEntry, 20)
	for i := range entries {
		entries[i] = sheetEntry{Name: string(rune('A' + i))}
	}
	m := NewSheetListModel("big.xlsx", entries)
	m.Height = 5

	// Walk past the bottom of the window
	for i := 0; i < 8; i++ {
		updated, _ := m.Update(keyRune('j'))
		m = updated.(SheetListModel)
	}
	if m.Cursor != 8 {
		t.Fatalf("cursor = %d, want 8", m.Cursor)
	}
	if m.Offset != 4 {
		t.Errorf("offset = %d, want 4", m.Offset)
	}

	// Walk back above the top of the window
	for i := 0; i < 6; i++ {
		updated, _ := m.Update(keyRune('k'))
		m = updated.(SheetListModel)
	}
	if m.Cursor != 2 {
		t.Fatalf("cursor = %d, want 2", m.Cursor)
	}
	if m.Offset != 2 {
		t.Errorf("offset = %d, want 2", m.Offset)
	}
}

func TestSheetListModelWindowSize(t *testing.T) {
	m := NewSheetListModel("report.xlsx", testEntries())

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	m = updated.(SheetListModel)
	if m.Height != 24 {
		t.Errorf("height after resize = %d, want 24", m.Height)
	}

	// Tiny terminals keep a usable minimum
	updated, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 8})
	m = updated.(SheetListModel)
	if m.Height != 5 {
		t.Errorf("height after tiny resize = %d, want 5", m.Height)
	}
}

func TestSheetListModelView(t *testing.T) {
	m := NewSheetListModel("report.xlsx", testEntries())

	view := m.View()
	if view == "" {
		t.Fatal("View() returned empty string")
	}
	for _, name := range []string{"Revenue", "Costs", "Summary"} {
		if !strings.Contains(view, name) {
			t.Errorf("View() missing sheet %q", name)
		}
	}
	if !strings.Contains(view, "report.xlsx") {
		t.Error("View() missing workbook name")
	}
}

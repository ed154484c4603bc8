package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/sheetshot/sheetshot/pkg/sheet"
)

// List styles
var (
	listDimStyle = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// SheetListModel - Interactive sheet selection
// =============================================================================

// sheetEntry summarizes one worksheet for the picker table.
type sheetEntry struct {
	Name   string
	Rows   int
	Cols   int
	Cells  int
	Merges int
}

// SheetSelection holds the result of the sheet selection.
type SheetSelection struct {
	Sheets []string
}

// SheetListModel is the bubbletea model for interactive sheet selection.
// Row 0 selects every sheet; the remaining rows select one sheet each.
type SheetListModel struct {
	Workbook string
	Entries  []sheetEntry
	Cursor   int
	Selected *SheetSelection
	Height   int
	Offset   int
}

// NewSheetListModel creates a new sheet list model.
func NewSheetListModel(workbook string, entries []sheetEntry) SheetListModel {
	return SheetListModel{
		Workbook: workbook,
		Entries:  entries,
		Cursor:   0,
		Height:   15,
		Offset:   0,
	}
}

func (m SheetListModel) Init() tea.Cmd {
	return nil
}

// rowCount is the number of selectable rows: "All sheets" plus one per sheet.
func (m SheetListModel) rowCount() int {
	return len(m.Entries) + 1
}

func (m SheetListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < m.rowCount()-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter":
			if m.Cursor == 0 {
				names := make([]string, len(m.Entries))
				for i, e := range m.Entries {
					names[i] = e.Name
				}
				m.Selected = &SheetSelection{Sheets: names}
			} else {
				m.Selected = &SheetSelection{Sheets: []string{m.Entries[m.Cursor-1].Name}}
			}
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 6
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

func (m SheetListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Sheet"))
	b.WriteString(" ")
	b.WriteString(listDimStyle.Render(m.Workbook))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ select  q quit"))
	b.WriteString("\n\n")

	end := m.Offset + m.Height
	if end > m.rowCount() {
		end = m.rowCount()
	}

	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}

		if i == 0 {
			rows = append(rows, []string{cursor, fmt.Sprintf("All sheets (%d)", len(m.Entries)), "", "", ""})
			continue
		}

		e := m.Entries[i-1]
		rows = append(rows, []string{
			cursor,
			e.Name,
			fmt.Sprintf("%d×%d", e.Rows, e.Cols),
			fmt.Sprintf("%d", e.Cells),
			fmt.Sprintf("%d", e.Merges),
		})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Sheet", "Size", "Cells", "Merges").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			actualIdx := m.Offset + row
			base := lipgloss.NewStyle()
			if actualIdx == m.Cursor {
				return base.Foreground(colorGreen).Bold(true)
			}
			if col >= 2 {
				return base.Foreground(colorDim)
			}
			return base.Foreground(colorWhite)
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, m.rowCount())))

	return b.String()
}

// =============================================================================
// Picker entry point
// =============================================================================

// pickSheets shows the interactive picker for a workbook and returns
// the chosen sheet names. A quit without selection returns an empty
// slice, which the caller treats as "convert nothing".
func pickSheets(path string, names []string) ([]string, error) {
	wb, err := sheet.OpenWorkbook(path)
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	entries := make([]sheetEntry, 0, len(names))
	for _, name := range names {
		e := sheetEntry{Name: name}
		if s, err := wb.Sheet(name); err == nil {
			e.Rows = s.Rows
			e.Cols = s.Cols
			e.Cells = len(s.Cells)
			e.Merges = len(s.Merges)
		}
		entries = append(entries, e)
	}

	p := tea.NewProgram(NewSheetListModel(path, entries))
	finalModel, err := p.Run()
	if err != nil {
		return nil, err
	}

	fm, ok := finalModel.(SheetListModel)
	if !ok || fm.Selected == nil {
		return nil, nil
	}
	return fm.Selected.Sheets, nil
}

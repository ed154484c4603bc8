package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/sheetshot/sheetshot/pkg/sheet"
)

// sheetsCommand creates the sheets command for inspecting workbooks.
func (c *CLI) sheetsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sheets [workbook.xlsx...]",
		Short: "List the sheets of one or more workbooks",
		Long: `List every sheet of the given workbooks with its extent, populated
cell count, and merged regions.

Examples:
  sheetshot sheets report.xlsx
  sheetshot sheets q1.xlsx q2.xlsx`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSheets(args)
		},
	}
}

func (c *CLI) runSheets(paths []string) error {
	var failed int
	for i, path := range paths {
		if i > 0 {
			printNewline()
		}
		if err := c.printWorkbook(path); err != nil {
			printError("%s: %v", path, err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d workbooks could not be read", failed, len(paths))
	}
	return nil
}

// printWorkbook prints one workbook's sheet table.
func (c *CLI) printWorkbook(path string) error {
	wb, err := sheet.OpenWorkbook(path)
	if err != nil {
		return err
	}
	defer wb.Close()

	names := wb.SheetNames()
	fmt.Println(StyleTitle.Render(path) + " " + StyleDim.Render(fmt.Sprintf("(%d sheets)", len(names))))

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		s, err := wb.Sheet(name)
		if err != nil {
			rows = append(rows, []string{name, "—", "—", "—"})
			c.Logger.Warn("failed to read sheet", "workbook", path, "sheet", name, "error", err)
			continue
		}
		rows = append(rows, []string{
			name,
			fmt.Sprintf("%d×%d", s.Rows, s.Cols),
			fmt.Sprintf("%d", len(s.Cells)),
			fmt.Sprintf("%d", len(s.Merges)),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(StyleDim).
		Headers("Sheet", "Size", "Cells", "Merges").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return lipgloss.NewStyle().Foreground(colorGray).Bold(true)
			}
			if col == 0 {
				return lipgloss.NewStyle().Foreground(colorWhite).Padding(0, 1)
			}
			return lipgloss.NewStyle().Foreground(colorGray).Padding(0, 1)
		})
	fmt.Println(t.Render())

	printNextStep("Convert", fmt.Sprintf("sheetshot convert %s", path))
	return nil
}

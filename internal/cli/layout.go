package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sheetshot/sheetshot/pkg/layout"
	"github.com/sheetshot/sheetshot/pkg/sheet"
	"github.com/sheetshot/sheetshot/pkg/style"
)

// layoutCommand creates the layout command for dumping resolved geometry.
func (c *CLI) layoutCommand() *cobra.Command {
	var (
		sheetName string
		rangeRef  string
		width     int
		height    int
		output    string
	)

	cmd := &cobra.Command{
		Use:   "layout [workbook.xlsx]",
		Short: "Resolve a sheet's pixel geometry and dump it as JSON",
		Long: `Resolve a sheet's layout - column widths, row heights, and per-cell
pixel rectangles - without rendering anything, and dump the result as
JSON for inspection or downstream tooling.

The same layout engine drives image conversion, so this is the quickest
way to see exactly how wide a column will come out, or how a merged
region distributed its demand.

Examples:
  sheetshot layout report.xlsx --sheet Revenue
  sheetshot layout report.xlsx --sheet Revenue -r A1:F20 -o layout.json
  sheetshot layout report.xlsx --sheet Revenue --width 1200`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runLayout(args[0], sheetName, rangeRef, width, height, output)
		},
	}

	cmd.Flags().StringVarP(&sheetName, "sheet", "s", "", "sheet name (default: first sheet)")
	cmd.Flags().StringVarP(&rangeRef, "range", "r", "", "cell range to resolve, e.g. A1:F20")
	cmd.Flags().IntVar(&width, "width", 0, "forced sheet width in pixels (0 = natural)")
	cmd.Flags().IntVar(&height, "height", 0, "forced sheet height in pixels (0 = natural)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (stdout if empty)")

	return cmd
}

func (c *CLI) runLayout(path, sheetName, rangeRef string, width, height int, output string) error {
	wb, err := sheet.OpenWorkbook(path)
	if err != nil {
		return err
	}
	defer wb.Close()

	if sheetName == "" {
		names := wb.SheetNames()
		if len(names) == 0 {
			return fmt.Errorf("workbook %s has no sheets", path)
		}
		sheetName = names[0]
	}

	s, err := wb.Sheet(sheetName)
	if err != nil {
		return err
	}
	c.Logger.Info("loaded sheet", "sheet", s.Name, "rows", s.Rows, "cols", s.Cols, "cells", len(s.Cells))

	var filter *sheet.Range
	if rangeRef != "" {
		rng, err := sheet.ParseRange(rangeRef)
		if err != nil {
			return err
		}
		filter = &rng
	}

	res := style.NewResolver()
	for _, cell := range s.Cells {
		res.Resolve(s.Descriptor(cell))
	}

	l, err := layout.Resolve(s, res, filter, layout.Overrides{
		Width:  float64(width),
		Height: float64(height),
	})
	if err != nil {
		return err
	}

	if output == "" {
		return writeLayoutJSON(l, path, s.Name, os.Stdout)
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create %s: %w", output, err)
	}
	defer f.Close()
	if err := writeLayoutJSON(l, path, s.Name, f); err != nil {
		return err
	}

	printSuccess("Layout resolved")
	printFile(output)
	printSheetStats(len(l.RowHeights), len(l.ColWidths), len(l.Rects), false)
	return nil
}

// layoutExport is the JSON shape of a resolved layout.
type layoutExport struct {
	Workbook   string       `json:"workbook"`
	Sheet      string       `json:"sheet"`
	Range      string       `json:"range"`
	Width      float64      `json:"width"`
	Height     float64      `json:"height"`
	ColWidths  []float64    `json:"col_widths"`
	RowHeights []float64    `json:"row_heights"`
	Cells      []cellExport `json:"cells"`
	Merges     []string     `json:"merges,omitempty"`
}

type cellExport struct {
	Ref    string  `json:"ref"`
	Row    int     `json:"row"`
	Col    int     `json:"col"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// writeLayoutJSON encodes a resolved layout as indented JSON. Cells are
// sorted by coordinate so the output is reproducible.
func writeLayoutJSON(l *layout.Layout, workbook, sheetName string, w io.Writer) error {
	out := layoutExport{
		Workbook:   workbook,
		Sheet:      sheetName,
		Range:      l.Range.Ref(),
		Width:      l.Width,
		Height:     l.Height,
		ColWidths:  l.ColWidths,
		RowHeights: l.RowHeights,
	}

	coords := make([]layout.Coord, 0, len(l.Rects))
	for coord := range l.Rects {
		coords = append(coords, coord)
	}
	sort.Slice(coords, func(i, j int) bool {
		if coords[i].Row != coords[j].Row {
			return coords[i].Row < coords[j].Row
		}
		return coords[i].Col < coords[j].Col
	})

	out.Cells = make([]cellExport, 0, len(coords))
	for _, coord := range coords {
		r := l.Rects[coord]
		out.Cells = append(out.Cells, cellExport{
			Ref:    sheet.CellRef(coord.Row, coord.Col),
			Row:    coord.Row,
			Col:    coord.Col,
			X:      r.Left,
			Y:      r.Top,
			Width:  r.Width(),
			Height: r.Height(),
		})
	}

	for _, m := range l.Merges {
		out.Merges = append(out.Merges, m.Ref())
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode layout: %w", err)
	}
	return nil
}

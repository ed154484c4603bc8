// Package sheet defines the in-memory model of a spreadsheet sheet and the
// xlsx reader that produces it.
//
// A Sheet holds the ordered cell collection, declared merged regions,
// optional row/column size hints, and the style descriptor table for one
// worksheet. Coordinates are 0-based throughout. Merges are validated at
// ingestion: a region must span at least two cells and regions must not
// overlap; violations surface as LOAD_ERROR before layout begins.
//
// The model is a read-only input to the layout engine and the renderer.
// Loading goes through OpenWorkbook:
//
//	wb, err := sheet.OpenWorkbook("report.xlsx")
//	if err != nil {
//	    return err
//	}
//	defer wb.Close()
//
//	s, err := wb.Sheet("Q3 Summary")
package sheet

// Package pkg provides the core libraries for Sheetshot spreadsheet rendering.
//
// # Overview
//
// Sheetshot turns Excel worksheets into pixel-faithful PNG, JPEG, or HTML
// artifacts. The pkg directory is organized into three main areas:
//
//  1. Domain logic (sheet model, style resolution, layout, HTML rendering)
//  2. Infrastructure (caching, artifact storage, task stores, rasterizing)
//  3. Orchestration (conversion pipeline, background tasks, HTTP API)
//
// # Architecture
//
// The typical data flow through Sheetshot:
//
//	Workbook file (.xlsx)
//	         ↓
//	    [sheet] package (load sheets, merges, stored dimensions)
//	         ↓
//	    [style] package (deduplicate cell formatting into records)
//	         ↓
//	    [layout] package (resolve pixel geometry per cell)
//	         ↓
//	    [render] package (self-contained HTML document)
//	         ↓
//	    [raster] package (headless Chrome screenshot)
//	         ↓
//	    PNG/JPEG/HTML artifact
//
// # Quick Start
//
// Convert one sheet to an image:
//
//	import (
//	    "context"
//	    "github.com/sheetshot/sheetshot/pkg/pipeline"
//	    "github.com/sheetshot/sheetshot/pkg/raster"
//	)
//
//	chrome, _ := raster.NewChrome()
//	defer chrome.Close()
//
//	runner := pipeline.NewRunner(nil, nil, chrome, 3, nil)
//	res, _ := runner.Execute(context.Background(), pipeline.Options{
//	    Workbook: "report.xlsx",
//	    Sheet:    "Revenue",
//	    Format:   pipeline.FormatPNG,
//	})
//	os.WriteFile("revenue.png", res.Artifact, 0644)
//
// # Main Packages
//
// ## Domain Logic
//
// [sheet] - Workbook loading via excelize and the in-memory sheet model:
// cells, merged regions, stored column widths and row heights, and
// A1-notation range parsing.
//
// [style] - Deduplication of cell formatting. Visually identical cells
// share one style record, so a million-cell sheet with three looks emits
// three CSS rules.
//
// [layout] - Pixel geometry resolution. Computes effective column widths
// from character classes, grows columns under merged regions
// proportionally, scales to forced dimensions, and produces one pixel
// rectangle per visible cell.
//
// [render] - Assembles the resolved layout into a single self-contained
// HTML document with inline CSS.
//
// ## Infrastructure
//
// [raster] - Headless Chrome screenshots of rendered documents via
// chromedp, with viewport sizing and capture retries.
//
// [cache] - Content-addressed artifact cache keyed on workbook bytes and
// conversion options. FileCache for persistent use, NullCache to disable.
//
// [artifact] - Artifact storage for finished conversions: FileStore for
// the API server, MemoryStore for tests.
//
// [task] - Background task records and the Store interface with memory,
// Redis, and MongoDB backends.
//
// [config] - TOML service configuration for the API server.
//
// [errors] - Coded errors shared by every layer, so CLI output and API
// responses can classify failures (LOAD_ERROR, RANGE_ERROR, ...).
//
// [observability] - Hook interfaces for task, cache, and HTTP events,
// registered at startup without coupling libraries to a metrics backend.
//
// ## Orchestration
//
// [pipeline] - The complete conversion pipeline (load → styles → layout →
// render → raster) used by CLI and API. Bounds concurrent captures and
// consults the cache before doing work.
//
// [task] - The orchestrator expands a request into per-sheet jobs, runs
// them concurrently, isolates failures, and tracks progress in the store.
//
// [httpapi] - chi REST surface: upload workbooks, submit conversions,
// poll status, download artifacts.
//
// # Common Workflows
//
// Inspect a workbook:
//
//	wb, _ := sheet.OpenWorkbook("report.xlsx")
//	defer wb.Close()
//	for _, name := range wb.SheetNames() {
//	    s, _ := wb.Sheet(name)
//	    fmt.Printf("%s: %d×%d\n", name, s.Rows, s.Cols)
//	}
//
// Resolve a layout without rendering:
//
//	res := style.NewResolver()
//	for _, cell := range s.Cells {
//	    res.Resolve(s.Descriptor(cell))
//	}
//	l, _ := layout.Resolve(s, res, nil, layout.Overrides{})
//
// Run conversions in the background:
//
//	orch := task.NewOrchestrator(task.NewMemoryStore(), runner, artifacts, logger)
//	id, _ := orch.Submit(ctx, &task.Request{
//	    Files: []task.File{{Path: "report.xlsx"}},
//	})
//	t, _ := orch.Status(ctx, id)
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...              # All tests
//	go test ./pkg/layout/...       # Specific package
//	go test -run Example           # Examples only
//
// [sheet]: https://pkg.go.dev/github.com/sheetshot/sheetshot/pkg/sheet
// [style]: https://pkg.go.dev/github.com/sheetshot/sheetshot/pkg/style
// [layout]: https://pkg.go.dev/github.com/sheetshot/sheetshot/pkg/layout
// [render]: https://pkg.go.dev/github.com/sheetshot/sheetshot/pkg/render
// [raster]: https://pkg.go.dev/github.com/sheetshot/sheetshot/pkg/raster
// [cache]: https://pkg.go.dev/github.com/sheetshot/sheetshot/pkg/cache
// [artifact]: https://pkg.go.dev/github.com/sheetshot/sheetshot/pkg/artifact
// [task]: https://pkg.go.dev/github.com/sheetshot/sheetshot/pkg/task
// [config]: https://pkg.go.dev/github.com/sheetshot/sheetshot/pkg/config
// [errors]: https://pkg.go.dev/github.com/sheetshot/sheetshot/pkg/errors
// [observability]: https://pkg.go.dev/github.com/sheetshot/sheetshot/pkg/observability
// [pipeline]: https://pkg.go.dev/github.com/sheetshot/sheetshot/pkg/pipeline
// [httpapi]: https://pkg.go.dev/github.com/sheetshot/sheetshot/pkg/httpapi
package pkg

// Package cli implements the sheetshot command-line interface.
//
// This package provides commands for converting spreadsheet sheets into
// images or HTML documents, inspecting workbooks, dumping resolved
// layouts, and running the REST API server. The CLI is built using cobra
// and supports verbose logging via the charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - convert: Convert workbook sheets to PNG, JPEG, or HTML
//   - sheets: List the sheets of one or more workbooks
//   - layout: Resolve a sheet's pixel geometry and dump it as JSON
//   - serve: Run the conversion service with its REST API
//   - cache: Manage the local artifact cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. The
// logger lives on the CLI struct and is handed to the pipeline Runner
// for structured stage logs.
package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/sheetshot/sheetshot/pkg/buildinfo"
	"github.com/sheetshot/sheetshot/pkg/cache"
	"github.com/sheetshot/sheetshot/pkg/pipeline"
	"github.com/sheetshot/sheetshot/pkg/raster"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "sheetshot"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "sheetshot",
		Short:        "Sheetshot converts spreadsheet sheets to images",
		Long:         `Sheetshot renders Excel worksheets as faithfully laid-out PNG, JPEG, or HTML artifacts, one sheet at a time or in batches, from the command line or over a REST API.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	// Register all subcommands
	root.AddCommand(c.convertCommand())
	root.AddCommand(c.sheetsCommand())
	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use. The rasterizer may
// be nil, which limits the runner to HTML output.
func (c *CLI) newRunner(shooter raster.Screenshotter, maxCaptures int, noCache bool) *pipeline.Runner {
	return pipeline.NewRunner(newCache(noCache), nil, shooter, maxCaptures, c.Logger)
}

func newCache(noCache bool) cache.Cache {
	if noCache {
		return cache.NewNullCache()
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache()
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		return cache.NewNullCache()
	}
	return fc
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/sheetshot/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/sheetshot/sheetshot/pkg/artifact"
	"github.com/sheetshot/sheetshot/pkg/errors"
	"github.com/sheetshot/sheetshot/pkg/pipeline"
	"github.com/sheetshot/sheetshot/pkg/raster"
	"github.com/sheetshot/sheetshot/pkg/sheet"
)

// convertOpts holds the command-line flags for the convert command.
type convertOpts struct {
	sheets      []string      // explicit sheet names (empty = all, or picker on a TTY)
	all         bool          // convert all sheets without asking
	rangeRef    string        // optional A1:F20 window
	output      string        // output file (single conversion) or directory
	outType     string        // image or html
	format      string        // png, jpeg, or jpg
	quality     int           // JPEG quality 1-100
	width       int           // forced sheet width in px
	height      int           // forced sheet height in px
	noCache     bool          // bypass the artifact cache
	maxCaptures int           // concurrent browser captures
	attempts    int           // screenshot attempts per sheet
	chromePath  string        // explicit Chrome executable
	timeout     time.Duration // per-capture timeout
	noSandbox   bool          // disable the Chrome sandbox (containers)
}

// convertCommand creates the convert command for one-shot conversions.
//
// Default settings:
//   - type: image, format: png, quality: 95
//   - all sheets of every workbook (interactive picker on a TTY when a
//     single workbook has several sheets)
//   - captures bounded at 3 concurrent browser tabs, 3 attempts each
func (c *CLI) convertCommand() *cobra.Command {
	opts := convertOpts{
		outType:     pipeline.TypeImage,
		format:      pipeline.FormatPNG,
		quality:     pipeline.DefaultQuality,
		maxCaptures: pipeline.DefaultMaxCaptures,
		attempts:    pipeline.DefaultAttempts,
		timeout:     30 * time.Second,
	}

	cmd := &cobra.Command{
		Use:   "convert [workbook.xlsx...]",
		Short: "Convert workbook sheets to images or HTML",
		Long: `Convert one or more Excel workbooks into PNG, JPEG, or HTML artifacts,
one output per sheet.

Without --sheet every sheet is converted. When a single workbook has
several sheets and stdout is a terminal, an interactive picker lets you
choose (pass --all to skip it). Sheets convert concurrently; browser
captures are bounded by --max-captures.

Examples:
  sheetshot convert report.xlsx                        # every sheet
  sheetshot convert report.xlsx -s Revenue -o rev.png  # one sheet
  sheetshot convert report.xlsx -r A1:F20 -f jpeg      # range, JPEG
  sheetshot convert q1.xlsx q2.xlsx q3.xlsx -o out/    # batch`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateConvertOpts(&opts); err != nil {
				return err
			}
			return c.runConvert(cmd.Context(), args, &opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.sheets, "sheet", "s", nil, "sheet name(s) to convert (default: all)")
	cmd.Flags().BoolVar(&opts.all, "all", false, "convert all sheets without asking")
	cmd.Flags().StringVarP(&opts.rangeRef, "range", "r", "", "cell range to convert, e.g. A1:F20")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single sheet) or directory")
	cmd.Flags().StringVarP(&opts.outType, "type", "t", opts.outType, "output type: image (default), html")
	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "image format: png (default), jpeg, jpg")
	cmd.Flags().IntVarP(&opts.quality, "quality", "q", opts.quality, "JPEG quality 1-100")
	cmd.Flags().IntVar(&opts.width, "width", 0, "forced sheet width in pixels (0 = natural)")
	cmd.Flags().IntVar(&opts.height, "height", 0, "forced sheet height in pixels (0 = natural)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "bypass the artifact cache")
	cmd.Flags().IntVar(&opts.maxCaptures, "max-captures", opts.maxCaptures, "concurrent browser captures")
	cmd.Flags().IntVar(&opts.attempts, "attempts", opts.attempts, "screenshot attempts per sheet")
	cmd.Flags().StringVar(&opts.chromePath, "chrome", "", "Chrome or Chromium executable (default: auto-detect)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", opts.timeout, "per-capture timeout")
	cmd.Flags().BoolVar(&opts.noSandbox, "no-sandbox", false, "disable the Chrome sandbox (required as root)")

	return cmd
}

// validateConvertOpts rejects bad output flags before any work starts.
func validateConvertOpts(opts *convertOpts) error {
	if err := errors.ValidateOutputType(opts.outType); err != nil {
		return err
	}
	if err := errors.ValidateFormat(opts.format); err != nil {
		return err
	}
	if err := errors.ValidateQuality(opts.quality); err != nil {
		return err
	}
	if opts.rangeRef != "" {
		if _, err := sheet.ParseRange(opts.rangeRef); err != nil {
			return err
		}
	}
	if opts.maxCaptures < 1 {
		return errors.New(errors.ErrCodeConfig, "max-captures must be at least 1, got %d", opts.maxCaptures)
	}
	return nil
}

// target is one (workbook, sheet) pair queued for conversion. A
// workbook that cannot be opened contributes targets carrying err, so
// the rest of the batch still converts.
type target struct {
	workbook string
	base     string // workbook filename without extension
	sheet    string
	err      error
}

// outcome is the result of converting one target.
type outcome struct {
	target   target
	path     string
	cached   bool
	duration time.Duration
	err      error
}

func (c *CLI) runConvert(ctx context.Context, paths []string, opts *convertOpts) error {
	targets, err := c.expandTargets(paths, opts)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		printDetail("No selection made")
		return nil
	}

	ext := opts.format
	if opts.outType == pipeline.TypeHTML {
		ext = "html"
	}

	var shooter raster.Screenshotter
	if opts.outType == pipeline.TypeImage {
		spin := newSpinnerWithContext(ctx, "Starting browser...")
		spin.Start()
		chrome, err := newChrome(opts.chromePath, opts.timeout, opts.noSandbox)
		spin.Stop()
		if err != nil {
			return err
		}
		defer chrome.Close()
		shooter = chrome
	}

	runner := c.newRunner(shooter, opts.maxCaptures, opts.noCache)
	defer runner.Close()

	prog := newProgress(c.Logger)
	spin := newSpinnerWithContext(ctx, fmt.Sprintf("Converting %d sheet(s)...", len(targets)))
	spin.Start()

	outcomes := make([]outcome, len(targets))
	var wg sync.WaitGroup
	for i, tgt := range targets {
		outcomes[i].target = tgt
		if tgt.err != nil {
			outcomes[i].err = tgt.err
			continue
		}
		wg.Add(1)
		go func(i int, tgt target) {
			defer wg.Done()
			outcomes[i] = c.convertOne(ctx, runner, tgt, opts, ext)
		}(i, tgt)
	}
	wg.Wait()
	spin.Stop()

	completed, failed := 0, 0
	for _, out := range outcomes {
		if out.err != nil {
			failed++
		} else {
			completed++
		}
	}
	prog.done(fmt.Sprintf("Converted %d of %d sheets", completed, len(outcomes)))

	printOutcomes(outcomes)

	if failed > 0 {
		return fmt.Errorf("%d of %d conversions failed", failed, len(outcomes))
	}
	return nil
}

// convertOne runs the pipeline for a single target and writes the artifact.
func (c *CLI) convertOne(ctx context.Context, runner *pipeline.Runner, tgt target, opts *convertOpts, ext string) outcome {
	out := outcome{target: tgt}
	start := time.Now()

	res, err := runner.Execute(ctx, pipeline.Options{
		Workbook: tgt.workbook,
		Sheet:    tgt.sheet,
		Range:    opts.rangeRef,
		Type:     opts.outType,
		Format:   opts.format,
		Quality:  opts.quality,
		Width:    opts.width,
		Height:   opts.height,
		Attempts: opts.attempts,
		NoCache:  opts.noCache,
		Logger:   c.Logger,
	})
	if err != nil {
		out.err = err
		out.duration = time.Since(start)
		return out
	}

	path, err := outputPath(opts.output, tgt, ext)
	if err == nil {
		err = os.WriteFile(path, res.Artifact, 0644)
	}
	if err != nil {
		out.err = errors.Wrap(errors.ErrCodeInternal, err, "failed to write artifact for sheet %q", tgt.sheet)
	} else {
		out.path = path
	}
	out.cached = res.CacheInfo.ArtifactHit
	out.duration = time.Since(start)
	return out
}

// expandTargets resolves the requested workbooks and sheets into the
// conversion list. Explicit --sheet names apply to every workbook; with
// none given, every sheet converts, except that a single multi-sheet
// workbook on a terminal brings up the interactive picker.
func (c *CLI) expandTargets(paths []string, opts *convertOpts) ([]target, error) {
	var targets []target
	for _, path := range paths {
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

		names := opts.sheets
		if len(names) == 0 {
			wb, err := sheet.OpenWorkbook(path)
			if err != nil {
				targets = append(targets, target{workbook: path, base: base, err: err})
				continue
			}
			names = wb.SheetNames()
			wb.Close()

			if len(names) > 1 && len(paths) == 1 && !opts.all && isatty.IsTerminal(os.Stdout.Fd()) {
				picked, err := pickSheets(path, names)
				if err != nil {
					return nil, err
				}
				names = picked
			}
		}

		for _, name := range names {
			targets = append(targets, target{workbook: path, base: base, sheet: name})
		}
	}
	return targets, nil
}

// newChrome builds the headless browser from the command flags.
func newChrome(path string, timeout time.Duration, noSandbox bool) (*raster.Chrome, error) {
	var copts []raster.Option
	if path != "" {
		copts = append(copts, raster.WithChromePath(path))
	}
	if timeout > 0 {
		copts = append(copts, raster.WithTimeout(timeout))
	}
	if noSandbox {
		copts = append(copts, raster.WithNoSandbox())
	}
	return raster.NewChrome(copts...)
}

// outputPath decides where one conversion's artifact lands.
//
// A non-directory --output names the file directly; otherwise files are
// named <workbook>_<sheet>.<ext> inside the output directory (or the
// working directory).
func outputPath(output string, tgt target, ext string) (string, error) {
	name := fmt.Sprintf("%s_%s.%s", tgt.base, artifact.SafeName(tgt.sheet), ext)

	dir := ""
	switch {
	case output == "":
		// current directory
	case strings.HasSuffix(output, string(os.PathSeparator)):
		dir = output
	default:
		if info, err := os.Stat(output); err == nil && info.IsDir() {
			dir = output
		} else if filepath.Ext(output) != "" {
			return output, nil
		} else {
			dir = output
		}
	}

	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", err
		}
		return filepath.Join(dir, name), nil
	}
	return name, nil
}

// printOutcomes summarizes the batch: one styled line per sheet, plus a
// result table when several sheets were converted.
func printOutcomes(outcomes []outcome) {
	if len(outcomes) == 1 {
		out := outcomes[0]
		if out.err != nil {
			printError("%s: %s", displayName(out.target), errors.UserMessage(out.err))
			return
		}
		printSuccess("Converted %s", StyleHighlight.Render(displayName(out.target)))
		printFile(out.path)
		printDetail("%s · %s", out.duration.Round(time.Millisecond), cachedLabel(out.cached))
		return
	}

	rows := make([][]string, 0, len(outcomes))
	var failed int
	for _, out := range outcomes {
		status := iconSuccess
		detail := out.path
		if out.err != nil {
			failed++
			status = iconError
			detail = errors.UserMessage(out.err)
		}
		rows = append(rows, []string{
			status,
			displayName(out.target),
			out.duration.Round(time.Millisecond).String(),
			cachedLabel(out.cached),
			detail,
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(StyleDim).
		Headers("", "Sheet", "Time", "Cache", "Output").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return lipgloss.NewStyle().Foreground(colorGray).Bold(true)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	fmt.Println(t.Render())

	if failed > 0 {
		printWarning("%d of %d conversions failed", failed, len(outcomes))
	} else {
		printSuccess("Converted %d sheets", len(outcomes))
	}
}

// displayName labels a target in output: "workbook.xlsx » Sheet1", or
// just the sheet name when expansion failed before sheets were known.
func displayName(tgt target) string {
	if tgt.sheet == "" {
		return tgt.base
	}
	return tgt.base + " » " + tgt.sheet
}

func cachedLabel(cached bool) string {
	if cached {
		return iconCached
	}
	return iconFresh
}

package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/semaphore"

	"github.com/sheetshot/sheetshot/pkg/cache"
	"github.com/sheetshot/sheetshot/pkg/errors"
	"github.com/sheetshot/sheetshot/pkg/layout"
	"github.com/sheetshot/sheetshot/pkg/observability"
	"github.com/sheetshot/sheetshot/pkg/raster"
	"github.com/sheetshot/sheetshot/pkg/render"
	"github.com/sheetshot/sheetshot/pkg/sheet"
	"github.com/sheetshot/sheetshot/pkg/style"
)

// DefaultMaxCaptures bounds concurrent browser captures per Runner.
const DefaultMaxCaptures = 3

// Runner encapsulates conversion execution with caching and a bounded
// capture pool. Both CLI and API use it to avoid duplicating the cache
// and admission logic.
//
// The Runner is stateless except for the cache, rasterizer, and logger -
// it doesn't store conversion results. Multiple goroutines can safely
// use the same Runner with different options; the capture pool is
// shared, so at most maxCaptures rasterizations run at once.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Raster raster.Screenshotter
	Logger *log.Logger

	permits *semaphore.Weighted
}

// NewRunner creates a runner with the given cache, keyer, and rasterizer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
// A nil rasterizer limits the runner to HTML output.
// maxCaptures <= 0 falls back to DefaultMaxCaptures.
func NewRunner(c cache.Cache, keyer cache.Keyer, shooter raster.Screenshotter, maxCaptures int, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	if maxCaptures <= 0 {
		maxCaptures = DefaultMaxCaptures
	}
	return &Runner{
		Cache:   c,
		Keyer:   keyer,
		Raster:  shooter,
		Logger:  logger,
		permits: semaphore.NewWeighted(int64(maxCaptures)),
	}
}

// Execute runs the complete load → styles → layout → render → raster
// pipeline for one sheet. Cancellation is honored between stages; a
// browser capture already in flight runs to completion.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	result := &Result{Sheet: opts.Sheet}

	// The artifact key covers the workbook content plus every option
	// that shapes the output, so a stale entry can never be served.
	raw, err := os.ReadFile(opts.Workbook)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeLoad, err, "failed to read workbook %s", opts.Workbook)
	}
	key := r.Keyer.ArtifactKey(cache.Hash(raw), opts.ArtifactKeyOpts())

	if !opts.NoCache {
		if data, ok, cerr := r.Cache.Get(ctx, key); cerr == nil && ok {
			result.Artifact = data
			result.CacheInfo.ArtifactHit = true
			observability.Cache().OnCacheHit(ctx, "artifact")
			opts.Logger.Info("artifact served from cache",
				"sheet", opts.Sheet,
				"bytes", len(data))
			return result, nil
		}
		observability.Cache().OnCacheMiss(ctx, "artifact")
	}

	// Stage 1: Load
	loadStart := time.Now()
	s, err := r.loadSheet(opts)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	result.Stats.LoadTime = time.Since(loadStart)
	result.Stats.Rows = s.Rows
	result.Stats.Cols = s.Cols
	result.Stats.Cells = len(s.Cells)

	opts.Logger.Info("loaded sheet",
		"sheet", s.Name,
		"rows", s.Rows,
		"cols", s.Cols,
		"cells", len(s.Cells),
		"merges", len(s.Merges),
		"duration", result.Stats.LoadTime)

	if err := cancelled(ctx); err != nil {
		return nil, err
	}

	// Stage 2: Styles
	styleStart := time.Now()
	res := style.NewResolver()
	for _, c := range s.Cells {
		res.Resolve(s.Descriptor(c))
	}
	result.Stats.StyleTime = time.Since(styleStart)
	result.Stats.Styles = res.Len()

	opts.Logger.Info("resolved styles",
		"records", res.Len(),
		"duration", result.Stats.StyleTime)

	// Stage 3: Layout
	layoutStart := time.Now()
	l, err := resolveLayout(s, res, opts)
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	result.Layout = l
	result.Stats.LayoutTime = time.Since(layoutStart)

	opts.Logger.Info("resolved layout",
		"width", l.Width,
		"height", l.Height,
		"cells", len(l.Rects),
		"duration", result.Stats.LayoutTime)

	if err := cancelled(ctx); err != nil {
		return nil, err
	}

	// Stage 4: Render
	renderStart := time.Now()
	doc, err := render.Document(s, res, l)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	result.HTML = doc
	result.Stats.RenderTime = time.Since(renderStart)

	opts.Logger.Info("rendered document",
		"bytes", len(doc),
		"duration", result.Stats.RenderTime)

	if opts.Type == TypeHTML {
		result.Artifact = []byte(doc)
		r.storeArtifact(ctx, key, result.Artifact, opts)
		return result, nil
	}

	if err := cancelled(ctx); err != nil {
		return nil, err
	}

	// Stage 5: Raster
	rasterStart := time.Now()
	img, attempts, err := r.rasterize(ctx, doc, l, opts)
	result.Stats.Attempts = attempts
	if err != nil {
		return nil, fmt.Errorf("raster: %w", err)
	}
	result.Artifact = img
	result.Stats.RasterTime = time.Since(rasterStart)

	opts.Logger.Info("captured image",
		"format", opts.Format,
		"bytes", len(img),
		"attempts", attempts,
		"duration", result.Stats.RasterTime)

	r.storeArtifact(ctx, key, result.Artifact, opts)
	return result, nil
}

// loadSheet opens the workbook and extracts the requested sheet model.
func (r *Runner) loadSheet(opts Options) (*sheet.Sheet, error) {
	wb, err := sheet.OpenWorkbook(opts.Workbook)
	if err != nil {
		return nil, err
	}
	defer wb.Close()
	return wb.Sheet(opts.Sheet)
}

// resolveLayout applies the range filter and forced dimensions and runs
// the layout engine.
func resolveLayout(s *sheet.Sheet, res *style.Resolver, opts Options) (*layout.Layout, error) {
	var filter *sheet.Range
	if opts.Range != "" {
		rng, err := sheet.ParseRange(opts.Range)
		if err != nil {
			return nil, err
		}
		filter = &rng
	}
	ov := layout.Overrides{
		Width:  float64(opts.Width),
		Height: float64(opts.Height),
	}
	return layout.Resolve(s, res, filter, ov)
}

// rasterize captures the rendered document in the headless browser,
// gated by the capture pool and retried with backoff. It returns the
// image bytes and the number of attempts made.
func (r *Runner) rasterize(ctx context.Context, doc string, l *layout.Layout, opts Options) ([]byte, int, error) {
	if r.Raster == nil {
		return nil, 0, errors.New(errors.ErrCodeRaster, "no rasterizer configured")
	}

	if err := r.acquirePermit(ctx, opts); err != nil {
		return nil, 0, err
	}
	if r.permits != nil {
		defer r.permits.Release(1)
	}

	width, height := raster.Viewport(l.Width, l.Height)
	shot := raster.ShotOptions{
		Width:   width,
		Height:  height,
		Format:  opts.Format,
		Quality: opts.Quality,
	}

	// A capture already in flight runs to completion; cancellation
	// takes effect between attempts.
	shotCtx := context.WithoutCancel(ctx)

	var img []byte
	attempts, err := retryWithBackoff(ctx, opts.Attempts, func() error {
		var serr error
		img, serr = r.Raster.Screenshot(shotCtx, doc, shot)
		return serr
	}, func(attempt int, err error) {
		opts.Logger.Warn("screenshot attempt failed",
			"attempt", attempt,
			"of", opts.Attempts,
			"sheet", opts.Sheet,
			"error", err)
	})
	if err != nil {
		if errors.Is(err, errors.ErrCodeCancelled) {
			return nil, attempts, err
		}
		return nil, attempts, errors.Wrap(errors.ErrCodeRaster, err, "failed to capture sheet %q", opts.Sheet)
	}
	return img, attempts, nil
}

// acquirePermit blocks until a capture slot is free, the admission
// timeout elapses, or the context is cancelled.
func (r *Runner) acquirePermit(ctx context.Context, opts Options) error {
	if r.permits == nil {
		return nil
	}

	acquireCtx := ctx
	if opts.AdmissionTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, opts.AdmissionTimeout)
		defer cancel()
	}

	if err := r.permits.Acquire(acquireCtx, 1); err != nil {
		if ctx.Err() != nil {
			return errors.Wrap(errors.ErrCodeCancelled, ctx.Err(), "cancelled while waiting for a capture slot")
		}
		return errors.Wrap(errors.ErrCodeConcurrencyTimeout, err, "no capture slot within %s", opts.AdmissionTimeout)
	}
	return nil
}

// storeArtifact writes the finished artifact to cache. Cache write
// failures are logged, never fatal.
func (r *Runner) storeArtifact(ctx context.Context, key string, data []byte, opts Options) {
	if opts.NoCache {
		return
	}
	if err := r.Cache.Set(ctx, key, data, cache.TTLArtifact); err != nil {
		opts.Logger.Warn("failed to cache artifact", "error", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, "artifact", len(data))
}

// Close releases runner resources (cache connections).
// The rasterizer is owned by the caller and is not closed here.
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

// cancelled converts a done context into a CANCELLED conversion error.
func cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(errors.ErrCodeCancelled, err, "conversion cancelled")
	}
	return nil
}

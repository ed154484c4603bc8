package raster

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/sheetshot/sheetshot/pkg/errors"
)

// Chrome is a Screenshotter backed by one headless browser process.
// Captures run in a fresh tab each; the browser is reused across calls.
// Call Close when the instance is no longer needed.
type Chrome struct {
	cfg           chromeConfig
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

type chromeConfig struct {
	chromePath string
	timeout    time.Duration
	noSandbox  bool
	headless   string
}

func defaultChromeConfig() chromeConfig {
	return chromeConfig{
		timeout:  30 * time.Second,
		headless: "new",
	}
}

// Option configures a [Chrome].
type Option func(*chromeConfig)

// WithChromePath sets the Chrome or Chromium executable. By default the
// standard locations are searched automatically.
func WithChromePath(path string) Option {
	return func(c *chromeConfig) { c.chromePath = path }
}

// WithTimeout caps a single capture. Defaults to 30 seconds; zero or
// negative disables the cap.
func WithTimeout(d time.Duration) Option {
	return func(c *chromeConfig) { c.timeout = d }
}

// WithNoSandbox disables the Chrome sandbox, required when running as
// root (e.g. inside containers).
func WithNoSandbox() Option {
	return func(c *chromeConfig) { c.noSandbox = true }
}

// NewChrome starts a headless browser in the background. Errors surface
// at creation time, not on first capture.
func NewChrome(opts ...Option) (*Chrome, error) {
	cfg := defaultChromeConfig()
	for _, o := range opts {
		o(&cfg)
	}

	allocOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("headless", cfg.headless),
	)
	if cfg.chromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(cfg.chromePath))
	}
	if cfg.noSandbox {
		allocOpts = append(allocOpts, chromedp.Flag("no-sandbox", true))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, errors.Wrap(errors.ErrCodeRaster, err, "starting browser")
	}

	return &Chrome{
		cfg:           cfg,
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// Close shuts the browser down. Close is idempotent.
func (c *Chrome) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.browserCancel()
	c.allocCancel()
	return nil
}

// Screenshot writes the document to a temp file, loads it in a fresh tab
// at the requested viewport, and captures the page.
func (c *Chrome) Screenshot(ctx context.Context, html string, opts ShotOptions) ([]byte, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, errors.New(errors.ErrCodeRaster, "browser is closed")
	}

	opts.normalize()
	format, err := captureFormat(opts.Format)
	if err != nil {
		return nil, err
	}

	f, err := os.CreateTemp("", "sheetshot-*.html")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRaster, err, "creating temp file")
	}
	name := f.Name()
	defer os.Remove(name)

	if _, err := f.WriteString(html); err != nil {
		f.Close()
		return nil, errors.Wrap(errors.ErrCodeRaster, err, "writing temp file")
	}
	if err := f.Close(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeRaster, err, "closing temp file")
	}

	abs, err := filepath.Abs(name)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRaster, err, "resolving temp path")
	}

	if c.cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.timeout)
		defer cancel()
	}

	tabCtx, tabCancel := chromedp.NewContext(c.browserCtx)
	defer tabCancel()

	// Bind the tab to the caller's deadline/cancellation.
	go func() {
		select {
		case <-ctx.Done():
			tabCancel()
		case <-tabCtx.Done():
		}
	}()

	var buf []byte
	if err := chromedp.Run(tabCtx,
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height), chromedp.EmulateScale(opts.Scale)),
		chromedp.Navigate("file://"+abs),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			params := page.CaptureScreenshot().
				WithFormat(format).
				WithFromSurface(true)
			if format == page.CaptureScreenshotFormatJpeg {
				params = params.WithQuality(int64(opts.Quality))
			}

			var err error
			buf, err = params.Do(ctx)
			return err
		}),
	); err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, errors.Wrap(errors.ErrCodeRaster, err, "capturing %dx%d %s", opts.Width, opts.Height, opts.Format)
	}

	return buf, nil
}

func captureFormat(format string) (page.CaptureScreenshotFormat, error) {
	switch strings.ToLower(format) {
	case "png":
		return page.CaptureScreenshotFormatPng, nil
	case "jpeg", "jpg":
		return page.CaptureScreenshotFormatJpeg, nil
	default:
		return "", errors.New(errors.ErrCodeConfig, "unsupported capture format %q", format)
	}
}

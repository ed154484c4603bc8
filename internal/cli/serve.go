package cli

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/sheetshot/sheetshot/pkg/artifact"
	"github.com/sheetshot/sheetshot/pkg/cache"
	"github.com/sheetshot/sheetshot/pkg/config"
	"github.com/sheetshot/sheetshot/pkg/httpapi"
	"github.com/sheetshot/sheetshot/pkg/observability"
	"github.com/sheetshot/sheetshot/pkg/pipeline"
	"github.com/sheetshot/sheetshot/pkg/task"
)

// serveOpts holds the command-line flags for the serve command. Flags
// override whatever the config file says.
type serveOpts struct {
	configPath  string
	addr        string
	uploadDir   string
	artifactDir string
	backend     string        // task store: memory, redis, or mongo
	cacheDir    string        // artifact cache directory, empty disables
	maxCaptures int           // concurrent browser captures
	chromePath  string        // explicit Chrome executable
	timeout     time.Duration // per-capture timeout
	noSandbox   bool          // disable the Chrome sandbox (containers)
}

// serveCommand creates the serve command running the REST API.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the conversion service with its REST API",
		Long: `Run the HTTP server that accepts workbook uploads, converts sheets in
the background, and serves the resulting artifacts.

Configuration is read from an optional TOML file; any flag given here
overrides the file. Tasks are tracked in the configured store (memory,
redis, or mongo) and survive the connection that submitted them.

Examples:
  sheetshot serve                                  # defaults, :8000
  sheetshot serve --addr :9090 --store redis       # redis-backed tasks
  sheetshot serve -c /etc/sheetshot/config.toml    # from a file`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServeConfig(cmd, &opts)
			if err != nil {
				return err
			}
			return c.runServe(cmd.Context(), cfg, &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "TOML configuration file")
	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address, e.g. :8000")
	cmd.Flags().StringVar(&opts.uploadDir, "upload-dir", "", "directory for uploaded workbooks")
	cmd.Flags().StringVar(&opts.artifactDir, "artifact-dir", "", "directory for finished artifacts")
	cmd.Flags().StringVar(&opts.backend, "store", "", "task store backend: memory, redis, mongo")
	cmd.Flags().StringVar(&opts.cacheDir, "cache-dir", "", "artifact cache directory")
	cmd.Flags().IntVar(&opts.maxCaptures, "max-captures", 0, "concurrent browser captures")
	cmd.Flags().StringVar(&opts.chromePath, "chrome", "", "Chrome or Chromium executable (default: auto-detect)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "per-capture timeout")
	cmd.Flags().BoolVar(&opts.noSandbox, "no-sandbox", false, "disable the Chrome sandbox (required as root)")

	return cmd
}

// loadServeConfig resolves the effective configuration: file (or
// defaults), then explicit flags on top.
func loadServeConfig(cmd *cobra.Command, opts *serveOpts) (config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		cfg, err = config.Load(opts.configPath)
		if err != nil {
			return cfg, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Server.Addr = opts.addr
	}
	if flags.Changed("upload-dir") {
		cfg.Server.UploadDir = opts.uploadDir
	}
	if flags.Changed("artifact-dir") {
		cfg.Server.ArtifactDir = opts.artifactDir
	}
	if flags.Changed("store") {
		cfg.Store.Backend = opts.backend
	}
	if flags.Changed("cache-dir") {
		cfg.Cache.Dir = opts.cacheDir
	}
	if flags.Changed("max-captures") {
		cfg.Convert.MaxCaptures = opts.maxCaptures
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *CLI) runServe(ctx context.Context, cfg config.Config, opts *serveOpts) error {
	store, err := newTaskStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	spin := newSpinnerWithContext(ctx, "Starting browser...")
	spin.Start()
	chrome, err := newChrome(opts.chromePath, opts.timeout, opts.noSandbox)
	spin.Stop()
	if err != nil {
		return err
	}
	defer chrome.Close()

	runner := pipeline.NewRunner(serveCache(cfg.Cache.Dir), nil, chrome, cfg.Convert.MaxCaptures, c.Logger)
	defer runner.Close()

	artifacts, err := artifact.NewFileStore(cfg.Server.ArtifactDir)
	if err != nil {
		return err
	}

	orch := task.NewOrchestrator(store, runner, artifacts, c.Logger)
	orch.Attempts = cfg.Convert.Attempts
	orch.AdmissionTimeout = cfg.Convert.AdmissionTimeout.Value()

	stats := &serveStats{}
	observability.SetTaskHooks(stats)

	srv, err := httpapi.NewServer(orch, cfg.Server.UploadDir, c.Logger)
	if err != nil {
		return err
	}

	printInfo("Serving %s on %s", appName, StyleHighlight.Render(cfg.Server.Addr))
	printDetail("store: %s · captures: %d · cache: %s", cfg.Store.Backend, cfg.Convert.MaxCaptures, cacheLabel(cfg.Cache.Dir))
	printDetail("uploads: %s · artifacts: %s", cfg.Server.UploadDir, cfg.Server.ArtifactDir)
	printNewline()

	serveErr := srv.ListenAndServe(ctx, cfg.Server.Addr)

	// Let in-flight jobs drain before tearing down the browser.
	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := orch.Shutdown(drainCtx); err != nil {
		c.Logger.Warn("jobs still running at shutdown", "error", err)
	}

	tasks, jobs, failed := stats.snapshot()
	c.Logger.Info("server stopped", "tasks", tasks, "jobs", jobs, "failed", failed)
	return serveErr
}

// newTaskStore builds the configured task store backend.
func newTaskStore(ctx context.Context, cfg config.Config) (task.Store, error) {
	switch cfg.Store.Backend {
	case config.StoreRedis:
		return task.NewRedisStore(ctx, task.RedisConfig{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
			Prefix:   cfg.Store.Redis.Prefix,
			TTL:      cfg.Store.Redis.TTL.Value(),
		})
	case config.StoreMongo:
		return task.NewMongoStore(ctx, task.MongoConfig{
			URI:        cfg.Store.Mongo.URI,
			Database:   cfg.Store.Mongo.Database,
			Collection: cfg.Store.Mongo.Collection,
		})
	default:
		return task.NewMemoryStore(), nil
	}
}

// serveCache builds the artifact cache for the server. An empty
// directory disables caching.
func serveCache(dir string) cache.Cache {
	if dir == "" {
		return cache.NewNullCache()
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		return cache.NewNullCache()
	}
	return fc
}

func cacheLabel(dir string) string {
	if dir == "" {
		return "off"
	}
	return dir
}

// serveStats counts orchestrator events for the shutdown summary.
type serveStats struct {
	tasks  atomic.Int64
	jobs   atomic.Int64
	failed atomic.Int64
}

func (s *serveStats) OnTaskSubmit(ctx context.Context, taskID string, jobs int) {
	s.tasks.Add(1)
}

func (s *serveStats) OnJobComplete(ctx context.Context, taskID, jobID, sheet string, duration time.Duration, err error) {
	s.jobs.Add(1)
	if err != nil {
		s.failed.Add(1)
	}
}

func (s *serveStats) OnTaskComplete(ctx context.Context, taskID string, completed, failed int, duration time.Duration) {
}

func (s *serveStats) snapshot() (tasks, jobs, failed int64) {
	return s.tasks.Load(), s.jobs.Load(), s.failed.Load()
}

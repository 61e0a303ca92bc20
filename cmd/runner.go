package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/trackpool/internal/cache"
	"github.com/desertthunder/trackpool/internal/repositories"
	"github.com/desertthunder/trackpool/internal/services"
	"github.com/desertthunder/trackpool/internal/shared"
	"github.com/desertthunder/trackpool/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The database and the pool engine are built on first use so commands like `source parse` never touch disk.
type Runner struct {
	config     *shared.Config
	configPath string
	loadConfig bool
	logger     *log.Logger
	output     io.Writer
	httpClient *http.Client
	searcher   tasks.VideoSearcher
	sources    []tasks.TrackSource

	db     *sql.DB
	repo   *repositories.ResolutionRepository
	memory *cache.MemoryCache
	pool   *tasks.PoolAssembler
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Searcher and Sources replace the YouTube client and the catalog providers built from config.
type RunnerOpts struct {
	Config     *shared.Config
	Logger     *log.Logger
	Output     io.Writer
	HTTPClient *http.Client
	DB         *sql.DB
	Searcher   tasks.VideoSearcher
	Sources    []tasks.TrackSource
}

// NewRunner creates a new Runner with the provided configuration.
//
// Without a Config the runner reads the file named by --config before the first command runs.
func NewRunner(opts RunnerOpts) *Runner {
	loadConfig := opts.Config == nil
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	r := &Runner{
		config:     opts.Config,
		loadConfig: loadConfig,
		logger:     opts.Logger,
		output:     opts.Output,
		httpClient: opts.HTTPClient,
		searcher:   opts.Searcher,
		sources:    opts.Sources,
		db:         opts.DB,
	}
	if opts.DB != nil {
		r.repo = repositories.NewResolutionRepository(opts.DB)
	}
	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, sourceCommand, poolCommand, resolveCommand, cacheCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// load reads the config file, overlays TRACKPOOL_* variables and sets the log level. It runs before every command.
func (r *Runner) load(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	r.configPath = cmd.String("config")

	if r.loadConfig {
		config := shared.DefaultConfig()
		if _, err := os.Stat(r.configPath); err == nil {
			loaded, err := shared.LoadConfig(r.configPath)
			if err != nil {
				return ctx, err
			}
			config = loaded
		} else {
			r.logger.Debug("config file not found, using defaults", "path", r.configPath)
		}
		config.ApplyEnv(nil)
		r.config = config
		r.loadConfig = false
	}

	if level := cmd.String("log-level"); level != "" {
		r.config.Log.Level = level
	}
	if err := r.config.Validate(); err != nil {
		return ctx, err
	}

	level, err := shared.ParseLogLevel(r.config.Log.Level)
	if err != nil {
		return ctx, err
	}
	shared.SetLogLevel(r.logger, level)
	return ctx, nil
}

// database opens the durable store once and applies pending migrations.
func (r *Runner) database() (*repositories.ResolutionRepository, error) {
	if r.repo != nil {
		return r.repo, nil
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	r.db = db
	r.repo = repositories.NewResolutionRepository(db)
	return r.repo, nil
}

// volatile returns the process-wide memory tier.
func (r *Runner) volatile() *cache.MemoryCache {
	if r.memory == nil {
		r.memory = cache.NewMemoryCache(r.config.CacheTTL())
	}
	return r.memory
}

// engine wires the resolver and pool assembler. A database that cannot be opened leaves the engine with only the
// volatile tier.
func (r *Runner) engine() *tasks.PoolAssembler {
	if r.pool != nil {
		return r.pool
	}

	opts := services.OptionsFromConfig(r.config, r.logger)
	opts.HTTPClient = r.httpClient

	searcher := r.searcher
	if searcher == nil {
		searcher = services.NewYouTubeService(r.config.Credentials.YouTube, opts)
	}

	srcs := r.sources
	if srcs == nil {
		srcs = r.catalogSources(opts)
	}

	var durable tasks.DurableCache
	if repo, err := r.database(); err != nil {
		r.logger.Warn("durable cache unavailable, resolving without it", "path", r.config.Database.Path, "error", err)
	} else {
		durable = repositories.NewResolutionCacheAdapter(repo, r.logger)
	}

	resolver := tasks.NewResolver(searcher, r.volatile(), durable, r.logger, tasks.ResolverOptions{
		Workers:     r.config.Resolver.Workers,
		SearchLimit: r.config.Resolver.SearchLimit,
		MaxBudget:   r.config.Resolver.MaxBudget,
	})
	r.pool = tasks.NewPoolAssembler(resolver, searcher, r.config.Resolver.SearchProvider, r.logger, srcs...)
	return r.pool
}

// catalogSources builds every provider the config allows. Spotify needs app credentials.
func (r *Runner) catalogSources(opts services.Options) []tasks.TrackSource {
	srcs := []tasks.TrackSource{
		services.NewDeezerService("", opts),
		services.NewCatalogService("", "", opts),
	}

	spotify, err := services.NewSpotifyService(r.config.Credentials.Spotify, "", "", opts)
	if err != nil {
		r.logger.Debug("spotify source disabled", "error", err)
	} else {
		srcs = append(srcs, spotify)
	}
	return srcs
}

// Close releases the database handle.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db, r.repo = nil, nil
	return err
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

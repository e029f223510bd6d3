package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mmcdole/reel/internal/adapter"
	"github.com/mmcdole/reel/internal/adapter/source"
	"github.com/mmcdole/reel/internal/cache"
	"github.com/mmcdole/reel/internal/observe"
	"github.com/mmcdole/reel/internal/service"
	"github.com/mmcdole/reel/internal/store"
)

// Version is set at build time via -ldflags
var Version = "dev"

// errUsage reports a malformed command line. Usage has already been printed.
var errUsage = errors.New("invalid usage")

func main() {
	var (
		showVersion bool
		configDir   string
	)
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.StringVar(&configDir, "config", "", "config directory")
	flag.Usage = usage
	flag.Parse()

	if showVersion {
		fmt.Printf("reel %s\n", Version)
		return
	}

	if err := run(configDir, flag.Args()); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(flag.CommandLine.Output(), `Usage: reel [-config dir] <command> [args]

Commands:
  browse root                              home page lists
  browse list <type>                       first list of a type, e.g. trendingNow
  browse mylist                            the user's list
  browse seasons <show>                    seasons of a show
  browse episodes <show> <season>          episodes of a season
  browse episode <show> <episode>          a single episode
  browse movie <movie>                     a single movie
  browse metadata <video>                  detailed metadata
  browse episode-metadata <show> <season> <episode>
  mylist add|remove <video>                change the user's list
  mylist has <video>                       whether a title is on the user's list
  rate <video> <0-10>                      rate a title
  login | logout                           start or end the session
  profiles                                 list profiles
  profile <guid>                           switch profile
  library ls | add <video> <type> <title> [path] | rm <video>
  cache ls                                 list cached entries
  cache find <query>                       fuzzy-find cached entries
  cache clear [bucket:id]                  invalidate one entry or everything
  cache inspect                            interactive cache inspector
  config init                              write a config file

Flags:
`)
	flag.PrintDefaults()
}

func run(configDir string, args []string) error {
	if len(args) == 0 {
		flag.Usage()
		return errUsage
	}

	var dirs []string
	if configDir != "" {
		dirs = []string{configDir}
	}
	cfg, err := adapter.LoadConfig(dirs...)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if args[0] == "config" {
		return runConfig(cfg, configDir, args[1:])
	}

	logger, logCloser, err := adapter.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = adapter.NullLogger()
	} else {
		defer logCloser.Close()
	}
	slog.SetDefault(logger)

	logger.Info("starting reel", "version", Version, "command", args[0])

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	return a.dispatch(ctx, args)
}

// app holds the wired components for one invocation
type app struct {
	cfg    *adapter.Config
	logger *slog.Logger

	telemetry   *observe.Provider
	disk        *store.DiskStore
	engine      *cache.Engine
	invalidator *cache.Invalidator

	// nil until a command needs the service
	catalog *service.CatalogService
	myList  *service.MyListService
	rating  *service.RatingService
	session *service.SessionService
	library *service.LibraryStore
}

func newApp(ctx context.Context, cfg *adapter.Config, logger *slog.Logger) (*app, error) {
	telemetry, err := observe.Setup(ctx, observe.Config{
		ServiceName: "reel",
		Version:     Version,
		Metrics:     cfg.Telemetry.Metrics,
		Tracing:     cfg.Telemetry.Tracing,
		Writer:      os.Stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}
	metrics, err := observe.NewMetrics(telemetry.Meter())
	if err != nil {
		telemetry.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	buckets := service.Buckets(cfg.Cache.TTL, cfg.Cache.MetadataTTL)
	disk, err := store.Open(cfg.Cache.Dir, cfg.Source.URL, service.DurableBuckets(buckets), logger)
	if err != nil {
		telemetry.Shutdown(ctx)
		return nil, fmt.Errorf("failed to open disk cache: %w", err)
	}

	engine, err := cache.New(buckets,
		cache.WithDisk(disk),
		cache.WithLogger(logger),
		cache.WithMetrics(metrics),
		cache.WithTracer(telemetry.Tracer()),
	)
	if err != nil {
		disk.Close()
		telemetry.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	a := &app{
		cfg:         cfg,
		logger:      logger,
		telemetry:   telemetry,
		disk:        disk,
		engine:      engine,
		invalidator: cache.NewInvalidator(engine, cfg.Cache.InvalidateOnMyListModify, logger),
		library:     service.NewLibraryStore(engine, logger),
	}
	return a, nil
}

// connect creates the remote source and the services that use it
func (a *app) connect() error {
	if a.catalog != nil {
		return nil
	}
	if !a.cfg.IsConfigured() {
		return errors.New("service URL not configured, run `reel config init` or set REEL_SOURCE_URL")
	}

	src, err := source.New(source.Config{
		URL:     a.cfg.Source.URL,
		Token:   a.cfg.Source.Token,
		Timeout: a.cfg.Source.Timeout,
		Breaker: source.BreakerSettings{
			MaxRequests:      a.cfg.Source.Breaker.MaxRequests,
			Interval:         a.cfg.Source.Breaker.Interval,
			Timeout:          a.cfg.Source.Breaker.Timeout,
			FailureThreshold: a.cfg.Source.Breaker.FailureThreshold,
			MinRequests:      a.cfg.Source.Breaker.MinRequests,
		},
	}, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create service client: %w", err)
	}

	a.catalog = service.NewCatalogService(src, a.engine, a.cfg.Cache.MetadataTTL, a.logger)
	a.myList = service.NewMyListService(src, a.catalog, a.invalidator, a.logger)
	a.rating = service.NewRatingService(src, a.logger)
	a.session = service.NewSessionService(src, a.engine, a.logger)
	return nil
}

func (a *app) close() {
	if err := a.engine.Close(); err != nil {
		a.logger.Error("failed to close cache", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Error("failed to flush telemetry", "error", err)
	}
	a.logger.Info("shutting down")
}

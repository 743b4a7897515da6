package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haukened/rr-blacklist/internal/blacklist/common/clock"
	"github.com/haukened/rr-blacklist/internal/blacklist/common/log"
	"github.com/haukened/rr-blacklist/internal/blacklist/common/metrics"
	"github.com/haukened/rr-blacklist/internal/blacklist/config"
	"github.com/haukened/rr-blacklist/internal/blacklist/repos/identity"
	"github.com/haukened/rr-blacklist/internal/blacklist/repos/phoneindex"
	"github.com/haukened/rr-blacklist/internal/blacklist/repos/phoneindex/bloom"
	"github.com/haukened/rr-blacklist/internal/blacklist/repos/phoneindex/lru"
	"github.com/haukened/rr-blacklist/internal/blacklist/repos/phonelist"
	"github.com/haukened/rr-blacklist/internal/blacklist/repos/records"
	"github.com/haukened/rr-blacklist/internal/blacklist/services/engine"
)

const (
	// Version information
	version = "0.1.0-dev"
	appName = "rr-blacklistd"

	defaultShutdownTimeout = 10 * time.Second

	importTypeName = "Imported phone list"
)

// Application holds all the components of the blacklist daemon
type Application struct {
	config  *config.AppConfig
	db      *records.DB
	engine  *engine.Engine
	index   *phoneindex.Index
	metrics *http.Server
}

func main() {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Configure global logging
	err = log.Configure(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logging configuration error: %v\n", err)
		os.Exit(1)
	}

	log.Info(map[string]any{
		"version":        version,
		"env":            cfg.Env,
		"log_level":      cfg.LogLevel,
		"db_path":        cfg.DBPath,
		"actor_id":       cfg.ActorID,
		"threshold":      cfg.Threshold,
		"sweep_interval": cfg.SweepInterval.String(),
	}, "Starting "+appName)

	app, err := buildApplication(cfg, prometheus.NewRegistry())
	if err != nil {
		log.Fatal(map[string]any{"error": err.Error()}, "Failed to build application")
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info(map[string]any{"signal": sig.String()}, "Shutdown signal received")
		cancel()
	}()

	if err := app.Run(ctx); err != nil {
		log.Fatal(map[string]any{"error": err.Error()}, "Daemon failed")
	}

	log.Info(nil, appName+" stopped gracefully")
}

// buildApplication constructs all components and wires them together
func buildApplication(cfg *config.AppConfig, reg *prometheus.Registry) (*Application, error) {
	clk := &clock.RealClock{}
	logger := log.GetLogger()

	repos, err := buildRepositories(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build repositories: %w", err)
	}

	m := metrics.New(reg)
	metrics.RegisterIndexStats(reg, func() metrics.IndexStats {
		st := repos.index.Stats()
		return metrics.IndexStats{
			Hits:        st.Hits,
			Misses:      st.Misses,
			Evictions:   st.Evictions,
			CacheSize:   st.CacheSize,
			Indexed:     st.Indexed,
			BloomLoaded: st.BloomLoaded,
		}
	})
	eng, err := engine.New(engine.Options{
		Types:           repos.gateways.Types,
		Entries:         repos.gateways.Entries,
		Recommendations: repos.gateways.Recommendations,
		Session:         repos.directory,
		Index:           repos.index,
		Clock:           clk,
		Logger:          logger,
		Metrics:         m,
		Policy: engine.PromotionPolicy{
			Threshold:  cfg.Threshold,
			ReasonCode: cfg.ReasonCode,
			ReasonName: cfg.ReasonName,
			BlockTime:  cfg.BlockTime,
			Comment:    engine.CommentPromoted,
		},
		SweepInterval: cfg.SweepInterval,
		TickInterval:  cfg.TickInterval,
	})
	if err != nil {
		_ = repos.db.Close()
		return nil, fmt.Errorf("failed to build engine: %w", err)
	}

	app := &Application{
		config: cfg,
		db:     repos.db,
		engine: eng,
		index:  repos.index,
	}
	if cfg.MetricsAddr != "" {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		app.metrics = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return app, nil
}

// repositories holds all repository implementations
type repositories struct {
	db        *records.DB
	gateways  *records.Gateways
	directory *identity.Directory
	index     *phoneindex.Index
}

// buildRepositories opens the record store and builds the caches in front of it
func buildRepositories(cfg *config.AppConfig) (*repositories, error) {
	db, err := records.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*repositories, error) {
		_ = db.Close()
		return nil, err
	}

	gw, err := records.OpenGateways(db)
	if err != nil {
		return fail(fmt.Errorf("failed to open collections: %w", err))
	}

	directory, err := identity.New(cfg.ActorID, gw.Users, cfg.UserCacheSize)
	if err != nil {
		return fail(fmt.Errorf("failed to create user directory: %w", err))
	}

	cache, err := lru.New(cfg.CacheSize)
	if err != nil {
		return fail(fmt.Errorf("failed to create decision cache: %w", err))
	}
	index := phoneindex.New(gw.Entries, cache, bloom.NewFactory(), cfg.BloomFPRate)

	log.Info(map[string]any{
		"db_path":         cfg.DBPath,
		"entries":         gw.Entries.Count(),
		"recommendations": gw.Recommendations.Count(),
		"cache_size":      cfg.CacheSize,
		"user_cache_size": cfg.UserCacheSize,
		"bloom_fp_rate":   cfg.BloomFPRate,
	}, "Record store opened")

	return &repositories{db: db, gateways: gw, directory: directory, index: index}, nil
}

// Run starts the engine and the metrics endpoint and blocks until ctx is
// cancelled or the endpoint fails. The record store is closed on return.
func (app *Application) Run(ctx context.Context) error {
	defer func() {
		if err := app.db.Close(); err != nil {
			log.Warn(map[string]any{"error": err.Error()}, "Error closing record store")
		}
	}()

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	serveErr := make(chan error, 1)
	if app.metrics != nil {
		go func() {
			if err := app.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
		}()
		log.Info(map[string]any{"address": app.metrics.Addr}, "Metrics endpoint started")
	}

	engineDone := make(chan error, 1)
	go func() { engineDone <- app.engine.Run(runCtx) }()

	if app.config.ImportFile != "" {
		if _, err := app.importPhoneList(runCtx); err != nil {
			log.Warn(map[string]any{"file": app.config.ImportFile, "error": err.Error()}, "Phone list import failed")
		}
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		runErr = fmt.Errorf("metrics endpoint failed: %w", err)
	}

	log.Info(nil, "Shutdown initiated")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	if app.metrics != nil {
		if err := app.metrics.Shutdown(shutdownCtx); err != nil {
			log.Warn(map[string]any{"error": err.Error()}, "Error during metrics shutdown")
		}
	}

	select {
	case err := <-engineDone:
		if runErr == nil {
			runErr = err
		}
	case <-shutdownCtx.Done():
		log.Warn(map[string]any{"timeout": defaultShutdownTimeout.String()}, "Shutdown timeout exceeded")
		return fmt.Errorf("shutdown timeout")
	}
	if runErr == nil {
		log.Info(nil, "Graceful shutdown completed")
	}
	return runErr
}

// importPhoneList blacklists every phone in the configured list, provisioning
// the import type as permanent if it does not exist yet. It returns how many
// phones were accepted.
func (app *Application) importPhoneList(ctx context.Context) (int, error) {
	f, err := os.Open(app.config.ImportFile)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	phones, err := phonelist.ParsePlainList(f, app.config.ImportFile, log.GetLogger())
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", app.config.ImportFile, err)
	}

	code := app.config.ImportTypeCode
	if _, err := app.engine.EnsureBlacklistType(ctx, code, importTypeName, true, 0); err != nil {
		return 0, err
	}

	accepted := 0
	for _, p := range phones {
		if app.engine.AddToBlacklist(ctx, engine.AddToBlacklistRequest{
			Phone:    p,
			TypeCode: code,
			UserID:   app.config.ImportUserID,
			Comment:  "imported from " + app.config.ImportFile,
		}) {
			accepted++
		}
	}
	log.Info(map[string]any{
		"file":     app.config.ImportFile,
		"parsed":   len(phones),
		"accepted": accepted,
	}, "Phone list imported")
	return accepted, nil
}

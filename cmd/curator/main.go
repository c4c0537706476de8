package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"gopkg.in/natefinch/lumberjack.v2"

	"staticcurator/api"
	"staticcurator/config"
	"staticcurator/handlers"
	"staticcurator/services/catalog"
	"staticcurator/services/pipeline"
	"staticcurator/services/recipes"
	"staticcurator/services/resolver"
	"staticcurator/services/scheduler"
	"staticcurator/services/tmdb"
	"staticcurator/utils"
)

const usage = "Usage: curator <build|serve|check>"

func main() {
	if len(os.Args) < 2 {
		log.Fatal(usage)
	}

	settings, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if closer := setupLogging(settings.Log); closer != nil {
		defer closer.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "build":
		err = runBuild(ctx, settings)
	case "serve":
		err = runServe(ctx, settings)
	case "check":
		err = runCheck(settings, os.Stdout)
	default:
		log.Fatal(usage)
	}
	if err != nil {
		log.Printf("[curator] %s failed: %v", os.Args[1], err)
		stop()
		os.Exit(1)
	}
}

// setupLogging tees the standard logger into a rotating file when configured.
func setupLogging(cfg config.LogSettings) io.Closer {
	if cfg.File == "" {
		return nil
	}
	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotator))
	return rotator
}

func loadRecipes(settings config.Settings) (*recipes.Catalog, error) {
	if settings.Build.RecipesFile == "" {
		return recipes.Default(), nil
	}
	return recipes.Load(afero.NewOsFs(), settings.Build.RecipesFile)
}

func newPipeline(settings config.Settings, defs *recipes.Catalog) (*pipeline.Service, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	client, err := tmdb.NewClient(settings.TMDB.APIKey, settings.TMDB.Language, settings.TMDB.BaseURL, nil)
	if err != nil {
		return nil, err
	}

	var opts []resolver.Option
	cache, err := newIDCache(afero.NewOsFs(), settings.Build)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		opts = append(opts, resolver.WithCache(cache))
	}
	res := resolver.New(client, resolver.Policy{
		ChunkSize: settings.Build.ChunkSize,
		Delay:     settings.Build.ChunkDelay,
	}, opts...)

	return pipeline.NewService(pipeline.Config{
		Recipes:   defs,
		Discover:  client,
		Resolver:  res,
		Publisher: catalog.NewWriter(afero.NewOsFs(), settings.Build.OutputDir),
		Identity:  settings.Manifest,
		ImageBase: settings.TMDB.ImageBaseURL,
		Metrics:   pipeline.NewMetrics(prometheus.DefaultRegisterer),
	}), nil
}

// newIDCache opens the persistent id cache when one is configured, emptying it
// first when a reset was requested.
func newIDCache(fs afero.Fs, cfg config.BuildSettings) (*resolver.IDCache, error) {
	if cfg.IDCacheDir == "" {
		return nil, nil
	}
	cache := resolver.NewIDCache(fs, cfg.IDCacheDir, cfg.IDCacheTTLHours)
	if cfg.IDCacheReset {
		if err := cache.Clear(); err != nil {
			return nil, fmt.Errorf("reset id cache: %w", err)
		}
		log.Printf("[curator] id cache %s cleared", cfg.IDCacheDir)
	}
	return cache, nil
}

// buildJob runs one build and reports a run where every recipe failed as an
// error.
func buildJob(svc *pipeline.Service) scheduler.Job {
	return func(ctx context.Context) error {
		report, err := svc.Run(ctx)
		if err != nil {
			return err
		}
		if report.Built() == 0 && len(report.Recipes) > 0 {
			return pipeline.ErrNothingBuilt
		}
		return nil
	}
}

func runBuild(ctx context.Context, settings config.Settings) error {
	defs, err := loadRecipes(settings)
	if err != nil {
		return err
	}
	svc, err := newPipeline(settings, defs)
	if err != nil {
		return err
	}
	return buildJob(svc)(ctx)
}

func runServe(ctx context.Context, settings config.Settings) error {
	defs, err := loadRecipes(settings)
	if err != nil {
		return err
	}

	r := utils.NewRouter()

	limiter := api.NewIPRateLimiter(api.PerMinute(settings.Server.RateLimitPerMinute))
	if err := limiter.TrustProxies(settings.Server.TrustedProxies); err != nil {
		return err
	}
	go limiter.Run(ctx)

	installPrefixes := []string{""}
	if settings.Server.ManifestPrefix != "" {
		installPrefixes = append(installPrefixes, settings.Server.ManifestPrefix)
	}
	handlers.NewStaticHandler(afero.NewOsFs(), settings.Build.OutputDir).RegisterRoutes(r, installPrefixes...)

	manifestHandler := handlers.NewManifestHandler(defs, settings.Manifest)
	prometheus.MustRegister(manifestHandler.Collector())
	manifestHandler.RegisterRoutes(r, "", limiter.Middleware())
	if settings.Server.ManifestPrefix != "" {
		manifestHandler.RegisterRoutes(r, settings.Server.ManifestPrefix, limiter.Middleware())
	}

	versionHandler := handlers.NewVersionHandler(settings.Manifest.Version)
	r.HandleFunc("/version", versionHandler.GetVersion).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	if settings.Server.RebuildInterval > 0 {
		svc, err := newPipeline(settings, defs)
		if err != nil {
			return err
		}
		rebuilds := scheduler.NewService("catalog build", buildJob(svc), settings.Server.RebuildInterval)
		if err := rebuilds.Start(ctx); err != nil {
			return err
		}
		defer rebuilds.Stop(context.Background())
		r.HandleFunc("/build/status", func(w http.ResponseWriter, r *http.Request) {
			utils.SetJSONCORSHeaders(w.Header())
			json.NewEncoder(w).Encode(rebuilds.Status())
		}).Methods(http.MethodGet)
	}

	srv := &http.Server{
		Addr:              settings.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[curator] serving %d recipes on %s (version %s)", defs.Len(), settings.Server.Addr, handlers.GetBuildVersion())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Printf("[curator] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// runCheck prints the published manifest and the first catalog it lists.
func runCheck(settings config.Settings, out io.Writer) error {
	w := catalog.NewWriter(afero.NewOsFs(), settings.Build.OutputDir)
	m, err := w.ReadManifest()
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}
	if err := printJSON(out, m); err != nil {
		return err
	}
	if len(m.Catalogs) == 0 {
		fmt.Fprintln(out, "manifest lists no catalogs")
		return nil
	}

	first := m.Catalogs[0].ID
	c, err := w.ReadCatalog(first)
	if err != nil {
		return fmt.Errorf("read catalog %s: %w", first, err)
	}
	fmt.Fprintf(out, "catalog %s: %d items\n", first, len(c.Metas))
	if len(c.Metas) > 0 {
		return printJSON(out, c.Metas[0])
	}
	return nil
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/samvad-hq/samvad-board-crawler/internal/api"
	"github.com/samvad-hq/samvad-board-crawler/internal/config"
	"github.com/samvad-hq/samvad-board-crawler/internal/crawler"
	"github.com/samvad-hq/samvad-board-crawler/internal/logger"
	"github.com/samvad-hq/samvad-board-crawler/internal/metrics"
	"github.com/samvad-hq/samvad-board-crawler/internal/session"
	"github.com/samvad-hq/samvad-board-crawler/internal/storage"
	"github.com/samvad-hq/samvad-board-crawler/pkg/providers"
	"github.com/samvad-hq/samvad-board-crawler/pkg/publishers"
	"golang.org/x/sync/errgroup"
)

// Runtime wires config, providers, storage, publishers and the crawl service.
// The same runtime backs the HTTP server and the one-shot CLI commands.
type Runtime struct {
	cfg     *config.Config
	log     logger.Logger
	sources providers.SourceRegistry
	store   storage.Store
	fanout  *publishers.Fanout
	service *crawler.Service
}

// NewRuntime builds a runtime from config files.
func NewRuntime(ctx context.Context, cfg *config.Config, log logger.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	log = logger.Ensure(log)
	if ctx == nil {
		ctx = context.Background()
	}

	providerReg, err := providers.LoadRegistry(cfg.ProvidersFile)
	if err != nil {
		return nil, fmt.Errorf("load providers registry: %w", err)
	}
	providerList := providerReg.All()
	providerIDs := make([]string, 0, len(providerList))
	for _, p := range providerList {
		providerIDs = append(providerIDs, p.ID)
	}
	log.InfoObj("providers registry loaded", "providers_meta", map[string]any{
		"count": len(providerIDs),
		"ids":   providerIDs,
	})

	sources, err := providers.NewSourceRegistry(providerReg, providers.DefaultBuilders())
	if err != nil {
		return nil, fmt.Errorf("build sources: %w", err)
	}

	fanout, err := buildFanout(ctx, cfg.PublishersFile, log)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storage.Options{
		WindowTTL:       cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	})
	if err != nil {
		_ = fanout.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"path":                     cfg.BBoltPath,
		"window_ttl_seconds":       int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	service := crawler.NewService(sources, providers.DefaultHTTPClient(cfg.Fetch.Timeout), crawler.Options{
		ListingWorkers: cfg.Crawler.ListingWorkers,
		ArticleWorkers: cfg.Crawler.ArticleWorkers,
		FetchTimeout:   cfg.Fetch.Timeout,
		IndexTimeout:   cfg.Fetch.IndexTimeout,
		EarlyExit:      cfg.Locator.EarlyExit,
		EmitItemErrors: cfg.Stream.EmitItemErrors,
	}, store, fanout, log)

	return &Runtime{
		cfg:     cfg,
		log:     log,
		sources: sources,
		store:   store,
		fanout:  fanout,
		service: service,
	}, nil
}

// buildFanout loads the optional publishers file; no file means no mirroring.
func buildFanout(ctx context.Context, path string, log logger.Logger) (*publishers.Fanout, error) {
	cfgs, err := publishers.LoadConfigs(path)
	if err != nil {
		return nil, fmt.Errorf("load publishers: %w", err)
	}
	fanout, err := publishers.Build(ctx, cfgs, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	sinks := make([]string, 0, len(cfgs))
	for _, c := range cfgs {
		sinks = append(sinks, c.Type+":"+c.ID)
	}
	log.InfoObj("record mirroring configured", "publishers_meta", map[string]any{
		"count": fanout.Size(),
		"sinks": sinks,
	})
	return fanout, nil
}

// Service exposes the crawl service for one-shot commands.
func (r *Runtime) Service() *crawler.Service { return r.service }

// Source resolves the source serving a request type such as "PTT".
func (r *Runtime) Source(typ string) (providers.Source, error) {
	return r.sources.SourceFor(typ)
}

// Close releases the storage backend and publisher clients.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	if err := r.fanout.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close publishers: %w", err))
	}
	return errors.Join(errs...)
}

// Serve runs the HTTP/WebSocket server until ctx is cancelled, then drains
// sessions and shuts the listener down within the configured timeout.
func (r *Runtime) Serve(ctx context.Context) error {
	metrics.Init()

	sessions := session.NewCoordinator(ctx, session.NewRegistry(), r.log)
	handler := api.NewServer(r.service, sessions, api.Options{
		WriteTimeout: r.cfg.Stream.WriteTimeout,
	}, r.log).Handler()

	srv := &http.Server{
		Addr:              r.cfg.HTTP.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r.log.InfoObj("http server listening", "http_addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		r.log.InfoObj("http server shutting down", "reason", context.Cause(gctx))

		sessions.CloseAll()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), r.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

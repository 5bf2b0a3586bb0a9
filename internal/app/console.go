package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/privacyops/console/internal/api"
	"github.com/privacyops/console/internal/collection"
	"github.com/privacyops/console/internal/observability"
	"github.com/privacyops/console/internal/optimistic"
	"github.com/privacyops/console/internal/querycache"
	"github.com/privacyops/console/internal/workspace"
)

// Console bundles the process-wide collaborators of the collection views.
type Console struct {
	Client   *api.Client
	Cache    *querycache.Cache
	Registry *workspace.Registry
}

// NewConsole builds the upstream client, the query cache for
// cfg.CacheBackend and the workspace registry. Background work started here
// stops with ctx.
func NewConsole(ctx context.Context, cfg *Config, redisClient *redis.Client, logger *slog.Logger, metrics *observability.Metrics) (*Console, error) {
	if cfg == nil {
		return nil, errors.New("app: config required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	cache, err := newQueryCache(ctx, cfg, redisClient, logger, metrics)
	if err != nil {
		return nil, err
	}
	client := api.NewClient(cfg.APIBaseURL, nil, cfg.APITimeout)
	deps := collection.Deps{
		Client:      client,
		Cache:       cache,
		Coordinator: optimistic.NewCoordinator(cache, logger),
		Logger:      logger,
	}
	opts := collection.Options{
		Delay:       cfg.FilterDebounce,
		DefaultSize: cfg.DefaultPageSize,
	}
	registry := workspace.NewRegistry(deps, opts, logger)
	if cfg.SessionTTL > 0 {
		go every(ctx, workspaceSweepInterval, func(time.Time) {
			if n := registry.Sweep(cfg.SessionTTL); n > 0 {
				logger.Debug("idle workspaces dropped", slog.Int("workspaces", n))
			}
		})
	}
	return &Console{
		Client:   client,
		Cache:    cache,
		Registry: registry,
	}, nil
}

const workspaceSweepInterval = time.Minute

func newQueryCache(ctx context.Context, cfg *Config, redisClient *redis.Client, logger *slog.Logger, metrics *observability.Metrics) (*querycache.Cache, error) {
	opts := querycache.Options{
		ListTTL:  cfg.CacheListTTL,
		PointTTL: cfg.CachePointTTL,
		Logger:   logger,
		Metrics:  querycache.NewMetrics(metrics.Registerer()),
	}
	interval := cfg.CacheListTTL
	if interval <= 0 {
		interval = querycache.DefaultListTTL
	}
	switch cfg.CacheBackend {
	case CacheBackendRedis:
		if redisClient == nil {
			return nil, errors.New("app: redis cache backend needs a redis client")
		}
		cache := querycache.New(querycache.NewRedisStore(redisClient), opts)
		if err := cache.Watch(ctx); err != nil {
			return nil, fmt.Errorf("app: watch cache invalidations: %w", err)
		}
		go every(ctx, interval, func(now time.Time) { pruneStates(cache, now, logger) })
		return cache, nil
	default:
		store := querycache.NewMemoryStore()
		cache := querycache.New(store, opts)
		go every(ctx, interval, func(now time.Time) {
			if n := store.Sweep(); n > 0 {
				logger.Debug("query cache swept", slog.Int("entries", n))
			}
			pruneStates(cache, now, logger)
		})
		return cache, nil
	}
}

func pruneStates(cache *querycache.Cache, now time.Time, logger *slog.Logger) {
	if n := cache.Prune(now); n > 0 {
		logger.Debug("query cache states pruned", slog.Int("states", n))
	}
}

// every runs fn on each tick of interval until ctx ends.
func every(ctx context.Context, interval time.Duration, fn func(now time.Time)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			fn(now)
		}
	}
}

package optimistic

import (
	"context"
	"log/slog"

	"github.com/privacyops/console/internal/querycache"
)

// Cache is what the Coordinator needs from the query cache.
type Cache interface {
	SlotCache
	Invalidate(ctx context.Context, resource string) error
}

var _ Cache = (*querycache.Cache)(nil)

// Coordinator runs single-record edits optimistically.
type Coordinator struct {
	cache  Cache
	logger *slog.Logger
}

// NewCoordinator builds a Coordinator over cache.
func NewCoordinator(cache Cache, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{cache: cache, logger: logger}
}

// Mutate merges fields into the cached record id, then runs call. A failed
// call rolls the record back and returns the call's error. A successful call
// invalidates every cached result of resource.
func (c *Coordinator) Mutate(ctx context.Context, resource, id string, fields map[string]any, call func(ctx context.Context) error) error {
	tx, err := Begin(ctx, c.cache, resource, id, func(record []byte) ([]byte, error) {
		return MergeJSON(record, fields)
	})
	if err != nil {
		c.logger.Warn("optimistic patch skipped",
			slog.String("resource", resource), slog.String("id", id), slog.Any("error", err))
		tx = nil
	}

	if err := call(ctx); err != nil {
		if tx != nil {
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
				c.logger.Error("optimistic rollback failed",
					slog.String("resource", resource), slog.String("id", id), slog.Any("error", rbErr))
			}
		}
		return err
	}

	if tx != nil {
		tx.Commit()
	}
	if err := c.cache.Invalidate(context.WithoutCancel(ctx), resource); err != nil {
		c.logger.Warn("invalidate after mutation",
			slog.String("resource", resource), slog.Any("error", err))
	}
	return nil
}

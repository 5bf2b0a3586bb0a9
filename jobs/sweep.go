package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hibiken/asynq"

	"github.com/privacyops/console/internal/observability"
)

// DefaultExportRetention is how long finished exports are kept.
const DefaultExportRetention = 24 * time.Hour

// SweepJob deletes exports older than the retention window.
type SweepJob struct {
	Dir     string
	Logger  *slog.Logger
	Metrics *observability.Metrics
	clock   func() time.Time
}

// NewSweepJob wires the sweep handler.
func NewSweepJob(dir string, logger *slog.Logger, metrics *observability.Metrics) *SweepJob {
	return &SweepJob{Dir: dir, Logger: logger, Metrics: metrics, clock: time.Now}
}

// Handle processes TaskExportSweep tasks.
func (j *SweepJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	start := j.now()
	defer func() { err = j.Metrics.ObserveJob(TaskExportSweep, start, err) }()

	payload := SweepPayload{MaxAge: DefaultExportRetention}
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("%w: %v: %w", ErrInvalidPayload, err, asynq.SkipRetry)
		}
	}
	if payload.MaxAge <= 0 {
		payload.MaxAge = DefaultExportRetention
	}

	removed, err := j.Sweep(ctx, payload.MaxAge)
	if err != nil {
		return err
	}
	if removed > 0 {
		j.logger().Info("export sweep", slog.Int("removed", removed))
	}
	return nil
}

// Sweep removes files in Dir modified before now-maxAge and reports how many
// were deleted. A missing directory is not an error.
func (j *SweepJob) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(j.Dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("sweep: read dir: %w", err)
	}
	cutoff := j.now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(j.Dir, entry.Name())); err != nil && !os.IsNotExist(err) {
			j.logger().Warn("sweep remove", slog.String("file", entry.Name()), slog.Any("error", err))
			continue
		}
		removed++
	}
	return removed, nil
}

func (j *SweepJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}

func (j *SweepJob) now() time.Time {
	if j.clock == nil {
		return time.Now()
	}
	return j.clock()
}

package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/privacyops/console/internal/api"
	"github.com/privacyops/console/internal/observability"
)

// ExportJob writes CSV exports requested from the console to Dir.
type ExportJob struct {
	Client  *api.Client
	Tokens  *TokenStore
	Dir     string
	Logger  *slog.Logger
	Metrics *observability.Metrics
	clock   func() time.Time
}

// NewExportJob wires dependencies for the export handler.
func NewExportJob(client *api.Client, tokens *TokenStore, dir string, logger *slog.Logger, metrics *observability.Metrics) *ExportJob {
	return &ExportJob{
		Client:  client,
		Tokens:  tokens,
		Dir:     dir,
		Logger:  logger,
		Metrics: metrics,
		clock:   time.Now,
	}
}

// Handle processes TaskExportCSV tasks.
func (j *ExportJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Client == nil || j.Tokens == nil {
		return errors.New("export: handler not configured")
	}
	start := j.now()
	defer func() { err = j.Metrics.ObserveJob(TaskExportCSV, start, err) }()

	var payload ExportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("%w: %v: %w", ErrInvalidPayload, err, asynq.SkipRetry)
	}
	if err := payload.Validate(); err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	logger := j.logger().With(
		slog.String("request_id", payload.RequestID),
		slog.String("resource", payload.Resource),
	)
	logger.Info("starting csv export")

	token, err := j.Tokens.Get(ctx, payload.RequestID)
	if errors.Is(err, ErrTokenGone) {
		return fmt.Errorf("export: %w: %w", err, asynq.SkipRetry)
	}
	if err != nil {
		return err
	}
	defer func() {
		if err == nil || errors.Is(err, asynq.SkipRetry) || lastAttempt(ctx) {
			if delErr := j.Tokens.Delete(context.WithoutCancel(ctx), payload.RequestID); delErr != nil {
				logger.Warn("drop export token", slog.Any("error", delErr))
			}
		}
	}()

	client := j.Client.WithTokens(api.StaticToken(token))
	body, name, err := client.DownloadCSV(ctx, payload.Path, url.Values(payload.Query))
	if err != nil {
		logger.Error("download csv", slog.Any("error", err))
		if api.IsStatus(err, http.StatusUnauthorized) || api.IsStatus(err, http.StatusForbidden) {
			return fmt.Errorf("export: %w: %w", err, asynq.SkipRetry)
		}
		return err
	}
	defer body.Close()

	if payload.FileName != "" {
		name = payload.FileName
	}
	dest, size, err := j.write(payload.RequestID, name, body)
	if err != nil {
		logger.Error("write csv", slog.Any("error", err))
		return err
	}
	logger.Info("csv export written", slog.String("file", dest), slog.Int64("bytes", size))
	return nil
}

// Target returns the file an export with requestID and name is written to.
func (j *ExportJob) Target(requestID, name string) string {
	return filepath.Join(j.Dir, requestID+"-"+safeName(name))
}

// write copies body to a temporary file and renames it into place so readers
// never observe a partial export.
func (j *ExportJob) write(requestID, name string, body io.Reader) (string, int64, error) {
	if err := os.MkdirAll(j.Dir, 0o750); err != nil {
		return "", 0, fmt.Errorf("export: create dir: %w", err)
	}
	dest := j.Target(requestID, name)
	tmp, err := os.CreateTemp(j.Dir, ".export-*")
	if err != nil {
		return "", 0, fmt.Errorf("export: temp file: %w", err)
	}
	size, copyErr := io.Copy(tmp, body)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmp.Name())
		return "", 0, fmt.Errorf("export: write: %w", errors.Join(copyErr, closeErr))
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		_ = os.Remove(tmp.Name())
		return "", 0, fmt.Errorf("export: rename: %w", err)
	}
	return dest, size, nil
}

// lastAttempt reports whether a failure now archives the task.
func lastAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return false
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	return ok && retried >= maxRetry
}

func (j *ExportJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}

func (j *ExportJob) now() time.Time {
	if j.clock == nil {
		return time.Now()
	}
	return j.clock()
}

// safeName strips directories and characters that do not belong in a file
// name.
func safeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == 0 || r < 0x20:
			return -1
		case r == ' ':
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "export.csv"
	}
	return name
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/privacyops/console/internal/platform/cache"
	"github.com/privacyops/console/jobs"
)

var exportCmd = &cobra.Command{
	Use:   "export <resource>",
	Short: "Download the CSV of a filtered collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		values, err := listValues(cmd.Flags())
		if err != nil {
			return err
		}
		out, _ := cmd.Flags().GetString("out")
		async, _ := cmd.Flags().GetBool("async")
		redisAddr, _ := cmd.Flags().GetString("redis")

		prof, err := currentProfile()
		if err != nil {
			return err
		}
		ws, err := openWorkspace(prof)
		if err != nil {
			return err
		}
		defer ws.Reset()

		coll, err := ws.Collection(args[0])
		if err != nil {
			return err
		}
		if err := applyFilters(coll, values); err != nil {
			return err
		}

		if async {
			if redisAddr == "" {
				redisAddr = prof.Redis
			}
			if redisAddr == "" {
				return fmt.Errorf("--redis or a profile redis address is required with --async")
			}
			payload := jobs.ExportPayload{
				RequestID:   uuid.NewString(),
				Resource:    coll.Name(),
				Path:        coll.Path(),
				Query:       coll.ExportParams(),
				Token:       prof.Token,
				FileName:    fmt.Sprintf("%s-%s.csv", coll.Name(), time.Now().UTC().Format("20060102-150405")),
				RequestedBy: prof.Username,
			}
			taskID, err := enqueueExport(cmd.Context(), redisAddr, payload)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]string{"request_id": payload.RequestID, "task_id": taskID, "file_name": payload.FileName})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Export queued as %s (task %s)\n", payload.FileName, taskID)
			return nil
		}

		body, name, err := coll.Download(cmd.Context())
		if err != nil {
			return err
		}
		defer body.Close()
		if out == "-" {
			_, err := io.Copy(cmd.OutOrStdout(), body)
			return err
		}
		if out == "" {
			out = filepath.Base(name)
		}
		n, err := writeFile(out, body)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d bytes to %s\n", n, out)
		return nil
	},
}

func init() {
	addFilterFlags(exportCmd.Flags())
	exportCmd.Flags().StringP("out", "o", "", "output file, - for stdout (default: the server's file name)")
	exportCmd.Flags().Bool("async", false, "queue the export on the worker instead of downloading")
	exportCmd.Flags().String("redis", "", "redis address of the export queue")
}

func enqueueExport(ctx context.Context, addr string, payload jobs.ExportPayload) (string, error) {
	opts, err := cache.Options(addr)
	if err != nil {
		return "", err
	}
	rdb := redis.NewClient(opts)
	defer rdb.Close()
	client, err := jobs.NewClient(asynq.RedisClientOpt{Addr: opts.Addr, Password: opts.Password, DB: opts.DB}, jobs.NewTokenStore(rdb, jobs.DefaultTokenTTL))
	if err != nil {
		return "", err
	}
	defer client.Close()
	return client.EnqueueExport(ctx, payload)
}

func writeFile(path string, r io.Reader) (int64, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/privacyops/console/internal/workspace"
)

var showCmd = &cobra.Command{
	Use:   "show <resource> <id>",
	Short: "Show one record",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		prof, err := currentProfile()
		if err != nil {
			return err
		}
		ws, err := openWorkspace(prof)
		if err != nil {
			return err
		}
		defer ws.Reset()
		return runShow(cmd.Context(), cmd.OutOrStdout(), ws, args[0], args[1])
	},
}

func runShow(ctx context.Context, w io.Writer, ws *workspace.Workspace, resource, id string) error {
	coll, err := ws.Collection(resource)
	if err != nil {
		return err
	}
	record, err := coll.Lookup(ctx, id)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(w, record)
	}
	return printRecord(w, record)
}

package console

import (
	"context"

	"github.com/privacyops/console/internal/workspace"
)

type workspaceContextKey struct{}

func contextWithWorkspace(ctx context.Context, ws *workspace.Workspace) context.Context {
	return context.WithValue(ctx, workspaceContextKey{}, ws)
}

// WorkspaceFromContext returns the workspace bound by RequireWorkspace.
func WorkspaceFromContext(ctx context.Context) *workspace.Workspace {
	ws, _ := ctx.Value(workspaceContextKey{}).(*workspace.Workspace)
	return ws
}

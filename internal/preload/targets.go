package preload

import (
	"context"

	"github.com/ziadkadry99/workmate/internal/cache"
	"github.com/ziadkadry99/workmate/internal/chat"
	"github.com/ziadkadry99/workmate/internal/workspace"
)

// StandardTargets wires every target name to the service read that fills
// the matching cache entry.
func StandardTargets(ws *workspace.Service, cs *chat.Service) map[string]Target {
	return map[string]Target{
		TargetDashboardStats: func(ctx context.Context, userID, _ string, force bool) error {
			_, err := ws.DashboardStats(ctx, userID, opts(force)...)
			return err
		},
		TargetProjects: func(ctx context.Context, userID, _ string, force bool) error {
			_, err := ws.Projects(ctx, userID, opts(force)...)
			return err
		},
		TargetProjectDetail: func(ctx context.Context, userID, projectID string, force bool) error {
			_, err := ws.Project(ctx, userID, projectID, opts(force)...)
			return err
		},
		TargetProjectTasks: func(ctx context.Context, userID, projectID string, force bool) error {
			_, err := ws.Tasks(ctx, userID, projectID, opts(force)...)
			return err
		},
		TargetRecentConversations: func(ctx context.Context, userID, _ string, force bool) error {
			_, err := cs.RecentConversations(ctx, userID, opts(force)...)
			return err
		},
		TargetProfile: func(ctx context.Context, userID, _ string, force bool) error {
			_, err := ws.Profile(ctx, userID, opts(force)...)
			return err
		},
	}
}

func opts(force bool) []cache.Option {
	if force {
		return []cache.Option{cache.WithForceRefresh()}
	}
	return nil
}

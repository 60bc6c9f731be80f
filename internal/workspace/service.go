// Package workspace serves projects, tasks and profiles with cached reads.
// Every mutation invalidates the cache keys it affects.
package workspace

import (
	"context"
	"time"

	"github.com/ziadkadry99/workmate/internal/cache"
	"github.com/ziadkadry99/workmate/internal/logger"
)

const (
	projectsTTL      = 5 * time.Minute
	projectDetailTTL = 10 * time.Minute
	tasksTTL         = 5 * time.Minute
	profileTTL       = 15 * time.Minute
	statsTTL         = 5 * time.Minute
)

// Cache keys, all scoped under the user so InvalidatePrefix can drop a
// user's workspace at once.
func userPrefix(userID string) string { return cache.Key("workspace", userID) }

func ProjectsKey(userID string) string { return cache.Key(userPrefix(userID), "projects") }

func ProjectKey(userID, projectID string) string {
	return cache.Key(userPrefix(userID), "project", projectID)
}

func TasksKey(userID, projectID string) string {
	return cache.Key(userPrefix(userID), "tasks", projectID)
}

func ProfileKey(userID string) string { return cache.Key(userPrefix(userID), "profile") }

func StatsKey(userID string) string { return cache.Key(userPrefix(userID), "stats") }

// Service wraps a Store with the shared cache.
type Service struct {
	store *Store
	cache *cache.Cache
	now   func() time.Time
	log   *logger.Logger
}

// NewService creates a workspace service.
func NewService(store *Store, c *cache.Cache, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	if c == nil {
		c = cache.New(cache.Config{}, log)
	}
	return &Service{store: store, cache: c, now: time.Now, log: log.With("service", "Workspace")}
}

// Projects returns the user's project list.
func (s *Service) Projects(ctx context.Context, userID string, opts ...cache.Option) ([]Project, error) {
	return cache.Get(ctx, s.cache, ProjectsKey(userID), func(ctx context.Context) ([]Project, error) {
		return s.store.ListProjects(ctx, userID)
	}, withTTL(projectsTTL, opts)...)
}

// Project returns one project with its task counts.
func (s *Service) Project(ctx context.Context, userID, projectID string, opts ...cache.Option) (*ProjectDetail, error) {
	return cache.Get(ctx, s.cache, ProjectKey(userID, projectID), func(ctx context.Context) (*ProjectDetail, error) {
		return s.store.GetProjectDetail(ctx, userID, projectID)
	}, withTTL(projectDetailTTL, opts)...)
}

// Tasks returns a project's tasks.
func (s *Service) Tasks(ctx context.Context, userID, projectID string, opts ...cache.Option) ([]Task, error) {
	return cache.Get(ctx, s.cache, TasksKey(userID, projectID), func(ctx context.Context) ([]Task, error) {
		if _, err := s.store.GetProject(ctx, userID, projectID); err != nil {
			return nil, err
		}
		return s.store.ListTasks(ctx, userID, projectID)
	}, withTTL(tasksTTL, opts)...)
}

// Profile returns the user's profile.
func (s *Service) Profile(ctx context.Context, userID string, opts ...cache.Option) (*Profile, error) {
	return cache.Get(ctx, s.cache, ProfileKey(userID), func(ctx context.Context) (*Profile, error) {
		return s.store.GetProfile(ctx, userID)
	}, withTTL(profileTTL, opts)...)
}

// DashboardStats returns the user's dashboard counters.
func (s *Service) DashboardStats(ctx context.Context, userID string, opts ...cache.Option) (*DashboardStats, error) {
	return cache.Get(ctx, s.cache, StatsKey(userID), func(ctx context.Context) (*DashboardStats, error) {
		return s.store.Stats(ctx, userID, s.now())
	}, withTTL(statsTTL, opts)...)
}

// CreateProject stores a new project owned by userID.
func (s *Service) CreateProject(ctx context.Context, userID string, p Project) (*Project, error) {
	p.UserID = userID
	created, err := s.store.CreateProject(ctx, p)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, ProjectsKey(userID), StatsKey(userID))
	s.log.Debug("project created", "user_id", userID, "project_id", created.ID)
	return created, nil
}

// UpdateProject changes a project.
func (s *Service) UpdateProject(ctx context.Context, userID, projectID string, u ProjectUpdate) (*Project, error) {
	p, err := s.store.UpdateProject(ctx, userID, projectID, u)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, ProjectsKey(userID), ProjectKey(userID, projectID), StatsKey(userID))
	return p, nil
}

// DeleteProject removes a project and its tasks.
func (s *Service) DeleteProject(ctx context.Context, userID, projectID string) error {
	if err := s.store.DeleteProject(ctx, userID, projectID); err != nil {
		return err
	}
	s.invalidate(ctx, ProjectsKey(userID), ProjectKey(userID, projectID), TasksKey(userID, projectID), StatsKey(userID))
	return nil
}

// CreateTask adds a task to one of the user's projects.
func (s *Service) CreateTask(ctx context.Context, userID, projectID string, t Task) (*Task, error) {
	t.UserID = userID
	t.ProjectID = projectID
	created, err := s.store.CreateTask(ctx, t)
	if err != nil {
		return nil, err
	}
	s.invalidateTask(ctx, userID, projectID)
	return created, nil
}

// UpdateTask changes a task.
func (s *Service) UpdateTask(ctx context.Context, userID, taskID string, u TaskUpdate) (*Task, error) {
	t, err := s.store.UpdateTask(ctx, userID, taskID, u)
	if err != nil {
		return nil, err
	}
	s.invalidateTask(ctx, userID, t.ProjectID)
	return t, nil
}

// DeleteTask removes a task.
func (s *Service) DeleteTask(ctx context.Context, userID, taskID string) error {
	t, err := s.store.DeleteTask(ctx, userID, taskID)
	if err != nil {
		return err
	}
	s.invalidateTask(ctx, userID, t.ProjectID)
	return nil
}

// SaveProfile creates or replaces the user's profile.
func (s *Service) SaveProfile(ctx context.Context, userID string, p Profile) (*Profile, error) {
	p.ID = userID
	saved, err := s.store.SaveProfile(ctx, p)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, ProfileKey(userID))
	return saved, nil
}

// Forget drops every cached entry for the user.
func (s *Service) Forget(ctx context.Context, userID string) {
	s.cache.InvalidatePrefix(ctx, userPrefix(userID)+":")
}

func (s *Service) invalidateTask(ctx context.Context, userID, projectID string) {
	s.invalidate(ctx, TasksKey(userID, projectID), ProjectKey(userID, projectID), StatsKey(userID))
}

func (s *Service) invalidate(ctx context.Context, keys ...string) {
	for _, k := range keys {
		s.cache.Invalidate(ctx, k)
	}
}

func withTTL(ttl time.Duration, opts []cache.Option) []cache.Option {
	return append([]cache.Option{cache.WithTTL(ttl)}, opts...)
}

// Package preload warms the cache ahead of the screens a user is likely to
// open next, based on where they have been.
package preload

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ziadkadry99/workmate/internal/logger"
)

// Target loads one cacheable resource. force bypasses a live entry.
type Target func(ctx context.Context, userID, projectID string, force bool) error

// Target names.
const (
	TargetDashboardStats      = "dashboard_stats"
	TargetProjects            = "projects"
	TargetProjectDetail       = "project_detail"
	TargetProjectTasks        = "project_tasks"
	TargetRecentConversations = "recent_conversations"
	TargetProfile             = "profile"
)

// projectScoped targets are skipped when no project id is known.
var projectScoped = map[string]bool{
	TargetProjectDetail: true,
	TargetProjectTasks:  true,
}

// DefaultRoutes maps a route to the targets worth warming when it is visited.
var DefaultRoutes = map[string][]string{
	"dashboard": {TargetDashboardStats, TargetProjects, TargetRecentConversations},
	"projects":  {TargetProjects, TargetProjectDetail, TargetProjectTasks},
	"chat":      {TargetRecentConversations},
	"profile":   {TargetProfile},
}

const (
	DefaultRouteCap    = 10
	DefaultProjectCap  = 10
	DefaultTopProjects = 3
	maxConcurrent      = 4
)

// Config tunes a Preloader.
type Config struct {
	RouteCap    int
	ProjectCap  int
	TopProjects int
	// Routes overrides DefaultRoutes when non-nil.
	Routes map[string][]string
	Now    func() time.Time
}

// Preloader owns every user's UsageTrace.
type Preloader struct {
	mu      sync.Mutex
	traces  map[string]*trace
	targets map[string]Target
	routes  map[string][]string
	cfg     Config
	log     *logger.Logger

	background sync.WaitGroup
}

// New creates a preloader over the named targets.
func New(targets map[string]Target, cfg Config, log *logger.Logger) *Preloader {
	if cfg.RouteCap <= 0 {
		cfg.RouteCap = DefaultRouteCap
	}
	if cfg.ProjectCap <= 0 {
		cfg.ProjectCap = DefaultProjectCap
	}
	if cfg.TopProjects <= 0 {
		cfg.TopProjects = DefaultTopProjects
	}
	if cfg.Routes == nil {
		cfg.Routes = DefaultRoutes
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Preloader{
		traces:  make(map[string]*trace),
		targets: targets,
		routes:  cfg.Routes,
		cfg:     cfg,
		log:     log.With("service", "Preloader"),
	}
}

// TrackUserBehavior records a navigation event and then warms the targets
// mapped to route.
func (p *Preloader) TrackUserBehavior(ctx context.Context, userID, route, projectID string) {
	if userID == "" {
		return
	}
	p.mu.Lock()
	t, ok := p.traces[userID]
	if !ok {
		t = newTrace()
		p.traces[userID] = t
	}
	t.record(route, projectID, p.cfg.Now(), p.cfg.RouteCap, p.cfg.ProjectCap)
	p.mu.Unlock()

	p.TriggerPredictivePreload(ctx, userID, route, projectID)
}

// TrackInBackground runs TrackUserBehavior on its own goroutine, detached
// from ctx's cancellation.
func (p *Preloader) TrackInBackground(ctx context.Context, userID, route, projectID string) {
	ctx = context.WithoutCancel(ctx)
	p.background.Add(1)
	go func() {
		defer p.background.Done()
		p.TrackUserBehavior(ctx, userID, route, projectID)
	}()
}

// Wait blocks until background tracking finishes.
func (p *Preloader) Wait() {
	p.background.Wait()
}

// TriggerPredictivePreload loads every target mapped to route. Targets that
// are already warm are served from the cache.
func (p *Preloader) TriggerPredictivePreload(ctx context.Context, userID, route, projectID string) {
	var jobs []job
	for _, name := range p.routes[route] {
		if projectScoped[name] && projectID == "" {
			continue
		}
		jobs = append(jobs, job{name: name, projectID: projectID})
	}
	p.fanOut(ctx, userID, jobs, false)
}

// WarmCacheDuringIdle force-refreshes the dashboard, project list, recent
// conversations and the user's most frequent projects.
func (p *Preloader) WarmCacheDuringIdle(ctx context.Context, userID string) {
	jobs := []job{
		{name: TargetDashboardStats},
		{name: TargetProjects},
		{name: TargetRecentConversations},
	}
	p.mu.Lock()
	if t, ok := p.traces[userID]; ok {
		for i, id := range t.projects {
			if i == p.cfg.TopProjects {
				break
			}
			jobs = append(jobs, job{name: TargetProjectDetail, projectID: id})
		}
	}
	p.mu.Unlock()

	p.fanOut(ctx, userID, jobs, true)
}

// Run warms users inside their peak hours every interval until ctx is done.
func (p *Preloader) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.warmPeakUsers(ctx)
		}
	}
}

func (p *Preloader) warmPeakUsers(ctx context.Context) {
	for _, userID := range p.PeakUsers(p.cfg.Now().Hour()) {
		if ctx.Err() != nil {
			return
		}
		p.WarmCacheDuringIdle(ctx, userID)
	}
}

// PeakUsers returns the users whose recorded peak hours include hour.
func (p *Preloader) PeakUsers(hour int) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var users []string
	for id, t := range p.traces {
		if t.hours[hour] {
			users = append(users, id)
		}
	}
	sort.Strings(users)
	return users
}

// Trace returns a copy of the user's trace.
func (p *Preloader) Trace(userID string) (UsageTrace, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.traces[userID]
	if !ok {
		return UsageTrace{}, false
	}
	return t.snapshot(), true
}

type job struct {
	name      string
	projectID string
}

// fanOut runs every job and waits for all of them. A failing job is logged
// and does not stop its siblings.
func (p *Preloader) fanOut(ctx context.Context, userID string, jobs []job, force bool) {
	if len(jobs) == 0 {
		return
	}
	var g errgroup.Group
	g.SetLimit(maxConcurrent)
	for _, j := range jobs {
		j := j
		target, ok := p.targets[j.name]
		if !ok {
			p.log.Debug("no target registered", "target", j.name)
			continue
		}
		g.Go(func() error {
			if err := target(ctx, userID, j.projectID, force); err != nil {
				p.log.Warn("preload failed", "target", j.name, "user_id", userID, "project_id", j.projectID, "error", err)
			}
			return nil
		})
	}
	g.Wait()
}

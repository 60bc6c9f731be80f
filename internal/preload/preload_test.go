package preload

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/workmate/internal/auth"
	"github.com/ziadkadry99/workmate/internal/cache"
	"github.com/ziadkadry99/workmate/internal/chat"
	"github.com/ziadkadry99/workmate/internal/db"
	"github.com/ziadkadry99/workmate/internal/workspace"
)

type call struct {
	target    string
	projectID string
	force     bool
}

// recorder registers a target per name and remembers every invocation.
type recorder struct {
	mu    sync.Mutex
	calls []call
	fail  map[string]bool
}

func (r *recorder) targets() map[string]Target {
	out := make(map[string]Target)
	for _, name := range []string{
		TargetDashboardStats, TargetProjects, TargetProjectDetail,
		TargetProjectTasks, TargetRecentConversations, TargetProfile,
	} {
		name := name
		out[name] = func(_ context.Context, _, projectID string, force bool) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.calls = append(r.calls, call{target: name, projectID: projectID, force: force})
			if r.fail[name] {
				return errors.New("backend unreachable")
			}
			return nil
		}
	}
	return out
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, c := range r.calls {
		out = append(out, c.target)
	}
	sort.Strings(out)
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}

func fixedClock(hour int) func() time.Time {
	return func() time.Time { return time.Date(2025, 6, 2, hour, 15, 0, 0, time.UTC) }
}

func TestTrackUserBehaviorTrace(t *testing.T) {
	rec := &recorder{}
	p := New(rec.targets(), Config{Now: fixedClock(9)}, nil)
	ctx := context.Background()

	p.TrackUserBehavior(ctx, "u1", "dashboard", "")
	p.TrackUserBehavior(ctx, "u1", "projects", "p1")
	p.TrackUserBehavior(ctx, "u1", "projects", "p2")
	p.TrackUserBehavior(ctx, "u1", "dashboard", "p1")

	tr, ok := p.Trace("u1")
	if !ok {
		t.Fatal("no trace recorded")
	}
	if want := []string{"dashboard", "projects"}; !reflect.DeepEqual(tr.CommonRoutes, want) {
		t.Errorf("routes = %v, want %v", tr.CommonRoutes, want)
	}
	if want := []string{"p1", "p2"}; !reflect.DeepEqual(tr.FrequentProjects, want) {
		t.Errorf("projects = %v, want %v", tr.FrequentProjects, want)
	}
	if want := []int{9}; !reflect.DeepEqual(tr.PeakUsageHours, want) {
		t.Errorf("hours = %v, want %v", tr.PeakUsageHours, want)
	}
	if !tr.LastActiveTime.Equal(fixedClock(9)()) {
		t.Errorf("last active = %v", tr.LastActiveTime)
	}

	if _, ok := p.Trace("nobody"); ok {
		t.Error("unknown user should have no trace")
	}
}

func TestTraceCaps(t *testing.T) {
	p := New(nil, Config{RouteCap: 3, ProjectCap: 2, Now: fixedClock(9)}, nil)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c", "d"} {
		p.TrackUserBehavior(ctx, "u1", "route-"+id, "p-"+id)
	}
	tr, _ := p.Trace("u1")
	if want := []string{"route-d", "route-c", "route-b"}; !reflect.DeepEqual(tr.CommonRoutes, want) {
		t.Errorf("routes = %v, want %v", tr.CommonRoutes, want)
	}
	if want := []string{"p-d", "p-c"}; !reflect.DeepEqual(tr.FrequentProjects, want) {
		t.Errorf("projects = %v, want %v", tr.FrequentProjects, want)
	}
}

func TestTraceIsCopy(t *testing.T) {
	p := New(nil, Config{Now: fixedClock(9)}, nil)
	p.TrackUserBehavior(context.Background(), "u1", "chat", "p1")
	tr, _ := p.Trace("u1")
	tr.CommonRoutes[0] = "mutated"
	again, _ := p.Trace("u1")
	if again.CommonRoutes[0] != "chat" {
		t.Error("Trace leaked internal state")
	}
}

func TestTriggerPredictivePreloadRouteTable(t *testing.T) {
	tests := []struct {
		route     string
		projectID string
		want      []string
	}{
		{"dashboard", "", []string{TargetDashboardStats, TargetProjects, TargetRecentConversations}},
		{"projects", "p1", []string{TargetProjectDetail, TargetProjectTasks, TargetProjects}},
		{"projects", "", []string{TargetProjects}},
		{"chat", "", []string{TargetRecentConversations}},
		{"profile", "", []string{TargetProfile}},
		{"settings", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.route+"/"+tt.projectID, func(t *testing.T) {
			rec := &recorder{}
			p := New(rec.targets(), Config{}, nil)
			p.TriggerPredictivePreload(context.Background(), "u1", tt.route, tt.projectID)
			want := append([]string(nil), tt.want...)
			sort.Strings(want)
			if got := rec.names(); !reflect.DeepEqual(got, want) {
				t.Errorf("targets = %v, want %v", got, want)
			}
			for _, c := range rec.calls {
				if c.force {
					t.Errorf("%s forced on navigation", c.target)
				}
			}
		})
	}
}

func TestFailureDoesNotAbortSiblings(t *testing.T) {
	rec := &recorder{fail: map[string]bool{TargetDashboardStats: true}}
	p := New(rec.targets(), Config{}, nil)
	p.TriggerPredictivePreload(context.Background(), "u1", "dashboard", "")

	want := []string{TargetDashboardStats, TargetProjects, TargetRecentConversations}
	if got := rec.names(); !reflect.DeepEqual(got, want) {
		t.Errorf("targets = %v, want %v", got, want)
	}
}

func TestWarmCacheDuringIdle(t *testing.T) {
	rec := &recorder{}
	p := New(rec.targets(), Config{Now: fixedClock(14)}, nil)
	ctx := context.Background()
	for _, id := range []string{"p1", "p2", "p3", "p4"} {
		p.TrackUserBehavior(ctx, "u1", "projects", id)
	}
	rec.reset()

	p.WarmCacheDuringIdle(ctx, "u1")

	var details []string
	for _, c := range rec.calls {
		if !c.force {
			t.Errorf("%s not forced during idle warm", c.target)
		}
		if c.target == TargetProjectDetail {
			details = append(details, c.projectID)
		}
	}
	sort.Strings(details)
	if want := []string{"p2", "p3", "p4"}; !reflect.DeepEqual(details, want) {
		t.Errorf("warmed projects = %v, want %v", details, want)
	}
	if got := len(rec.calls); got != 6 {
		t.Errorf("calls = %d, want 6", got)
	}
}

func TestPeakUsers(t *testing.T) {
	hour := 9
	p := New(nil, Config{Now: func() time.Time { return fixedClock(hour)() }}, nil)
	ctx := context.Background()
	p.TrackUserBehavior(ctx, "morning", "dashboard", "")
	hour = 20
	p.TrackUserBehavior(ctx, "evening", "dashboard", "")

	if got := p.PeakUsers(9); !reflect.DeepEqual(got, []string{"morning"}) {
		t.Errorf("PeakUsers(9) = %v", got)
	}
	if got := p.PeakUsers(3); len(got) != 0 {
		t.Errorf("PeakUsers(3) = %v", got)
	}
}

func TestWarmPeakUsersSkipsOffPeak(t *testing.T) {
	rec := &recorder{}
	hour := 9
	p := New(rec.targets(), Config{Now: func() time.Time { return fixedClock(hour)() }}, nil)
	ctx := context.Background()
	p.TrackUserBehavior(ctx, "u1", "profile", "")
	rec.reset()

	hour = 11
	p.warmPeakUsers(ctx)
	if len(rec.calls) != 0 {
		t.Errorf("off-peak warm ran %d targets", len(rec.calls))
	}

	hour = 9
	p.warmPeakUsers(ctx)
	if len(rec.calls) != 3 {
		t.Errorf("peak warm ran %d targets, want 3", len(rec.calls))
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	p := New(nil, Config{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestStandardTargetsWarmCache(t *testing.T) {
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	c := cache.New(cache.Config{}, nil)
	ws := workspace.NewService(workspace.NewStore(database), c, nil)
	cs := chat.NewService(chat.NewStore(database), nil, c, chat.Config{}, nil)
	ctx := context.Background()

	proj, err := ws.CreateProject(ctx, "u1", workspace.Project{Name: "Alpha"})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	p := New(StandardTargets(ws, cs), Config{}, nil)
	p.TriggerPredictivePreload(ctx, "u1", "dashboard", "")
	p.TriggerPredictivePreload(ctx, "u1", "projects", proj.ID)

	before := c.Stats()
	if _, err := ws.DashboardStats(ctx, "u1"); err != nil {
		t.Fatalf("DashboardStats: %v", err)
	}
	if _, err := ws.Project(ctx, "u1", proj.ID); err != nil {
		t.Fatalf("Project: %v", err)
	}
	if _, err := cs.RecentConversations(ctx, "u1"); err != nil {
		t.Fatalf("RecentConversations: %v", err)
	}
	after := c.Stats()
	if after.Hits-before.Hits != 3 || after.Misses != before.Misses {
		t.Errorf("stats before %+v after %+v, want 3 hits and no misses", before, after)
	}

	p.WarmCacheDuringIdle(ctx, "u1")
	if got := c.Stats().Refreshes; got != 3 {
		t.Errorf("refreshes = %d, want 3", got)
	}
}

func TestTrackRoute(t *testing.T) {
	rec := &recorder{}
	p := New(rec.targets(), Config{Now: fixedClock(9)}, nil)
	r := chi.NewRouter()
	r.Use(auth.Middleware(nil, true))
	RegisterRoutes(r, p)

	req := httptest.NewRequest(http.MethodPost, "/api/usage/track", bytes.NewBufferString(`{"route":"chat"}`))
	req.Header.Set("X-User-ID", "u1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	p.Wait()

	if got := rec.names(); !reflect.DeepEqual(got, []string{TargetRecentConversations}) {
		t.Errorf("targets = %v", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/usage/trace", nil)
	req.Header.Set("X-User-ID", "u1")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if !strings.Contains(w.Body.String(), `"common_routes":["chat"]`) {
		t.Errorf("trace body = %s", w.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/api/usage/track", bytes.NewBufferString(`{"route":" "}`))
	req.Header.Set("X-User-ID", "u1")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("blank route status = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/usage/track", bytes.NewBufferString(`{"route":"chat"}`))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d", w.Code)
	}
}

package preload

import (
	"sort"
	"time"
)

// UsageTrace is what the preloader remembers about a user's navigation.
type UsageTrace struct {
	// CommonRoutes is most-recent-first, capped.
	CommonRoutes []string `json:"common_routes"`
	// FrequentProjects is most-recent-first, capped.
	FrequentProjects []string  `json:"frequent_projects"`
	PeakUsageHours   []int     `json:"peak_usage_hours"`
	LastActiveTime   time.Time `json:"last_active_time"`
}

type trace struct {
	routes   []string
	projects []string
	hours    map[int]bool
	lastSeen time.Time
}

func newTrace() *trace {
	return &trace{hours: make(map[int]bool)}
}

func (t *trace) record(route, projectID string, at time.Time, routeCap, projectCap int) {
	if route != "" {
		t.routes = moveToFront(t.routes, route, routeCap)
	}
	if projectID != "" {
		t.projects = moveToFront(t.projects, projectID, projectCap)
	}
	t.hours[at.Hour()] = true
	t.lastSeen = at
}

func (t *trace) snapshot() UsageTrace {
	hours := make([]int, 0, len(t.hours))
	for h := range t.hours {
		hours = append(hours, h)
	}
	sort.Ints(hours)
	return UsageTrace{
		CommonRoutes:     append([]string(nil), t.routes...),
		FrequentProjects: append([]string(nil), t.projects...),
		PeakUsageHours:   hours,
		LastActiveTime:   t.lastSeen,
	}
}

// moveToFront puts v first, removes any earlier copy and trims to limit.
func moveToFront(list []string, v string, limit int) []string {
	out := make([]string, 0, len(list)+1)
	out = append(out, v)
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

package workspace

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/workmate/internal/db"
)

// Store manages persistence of profiles, projects and tasks.
type Store struct {
	db *db.DB
}

// NewStore creates a new workspace store.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// --- Profiles ---

// GetProfile returns the user's profile, or ErrNotFound.
func (s *Store) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	var p Profile
	err := s.db.QueryRowContext(ctx,
		`SELECT id, full_name, email, avatar_url, bio, created_at, updated_at FROM profiles WHERE id = ?`, userID,
	).Scan(&p.ID, &p.FullName, &p.Email, &p.AvatarURL, &p.Bio, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting profile: %w", err)
	}
	return &p, nil
}

// SaveProfile creates or replaces the user's profile.
func (s *Store) SaveProfile(ctx context.Context, p Profile) (*Profile, error) {
	if p.ID == "" {
		return nil, fmt.Errorf("%w: profile id is required", ErrInvalid)
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (id, full_name, email, avatar_url, bio, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET full_name = excluded.full_name, email = excluded.email,
		   avatar_url = excluded.avatar_url, bio = excluded.bio, updated_at = excluded.updated_at`,
		p.ID, p.FullName, p.Email, p.AvatarURL, p.Bio, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("saving profile: %w", err)
	}
	return s.GetProfile(ctx, p.ID)
}

// --- Projects ---

const projectColumns = `id, user_id, name, description, status, due_date, created_at, updated_at`

func scanProject(row interface{ Scan(...any) error }) (*Project, error) {
	var p Project
	var status string
	var due sql.NullTime
	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &status, &due, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Status = ProjectStatus(status)
	if due.Valid {
		p.DueDate = &due.Time
	}
	return &p, nil
}

// CreateProject inserts a project for its UserID.
func (s *Store) CreateProject(ctx context.Context, p Project) (*Project, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return nil, fmt.Errorf("%w: project name is required", ErrInvalid)
	}
	if p.Status == "" {
		p.Status = ProjectActive
	}
	if !p.Status.valid() {
		return nil, fmt.Errorf("%w: unknown project status %q", ErrInvalid, p.Status)
	}
	p.ID = uuid.New().String()
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Name, p.Description, string(p.Status), nullTime(p.DueDate), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting project: %w", err)
	}
	return &p, nil
}

// GetProject returns one of the user's projects.
func (s *Store) GetProject(ctx context.Context, userID, id string) (*Project, error) {
	p, err := scanProject(s.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = ? AND user_id = ?`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting project: %w", err)
	}
	return p, nil
}

// GetProjectDetail returns a project with its task counts.
func (s *Store) GetProjectDetail(ctx context.Context, userID, id string) (*ProjectDetail, error) {
	p, err := s.GetProject(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	d := ProjectDetail{Project: *p}
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN status = 'done' THEN 1 ELSE 0 END), 0)
		 FROM tasks WHERE project_id = ?`, id,
	).Scan(&d.TotalTasks, &d.CompletedTasks)
	if err != nil {
		return nil, fmt.Errorf("counting project tasks: %w", err)
	}
	return &d, nil
}

// ListProjects returns the user's projects, most recently updated first.
func (s *Store) ListProjects(ctx context.Context, userID string) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE user_id = ? ORDER BY updated_at DESC, rowid DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	projects := []Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

// UpdateProject applies the non-nil fields of u.
func (s *Store) UpdateProject(ctx context.Context, userID, id string, u ProjectUpdate) (*Project, error) {
	p, err := s.GetProject(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if u.Name != nil {
		if strings.TrimSpace(*u.Name) == "" {
			return nil, fmt.Errorf("%w: project name is required", ErrInvalid)
		}
		p.Name = strings.TrimSpace(*u.Name)
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Status != nil {
		if !u.Status.valid() {
			return nil, fmt.Errorf("%w: unknown project status %q", ErrInvalid, *u.Status)
		}
		p.Status = *u.Status
	}
	if u.DueDate != nil {
		p.DueDate = u.DueDate
	}
	p.UpdatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`UPDATE projects SET name = ?, description = ?, status = ?, due_date = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		p.Name, p.Description, string(p.Status), nullTime(p.DueDate), p.UpdatedAt, id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating project: %w", err)
	}
	return p, nil
}

// DeleteProject removes a project and its tasks.
func (s *Store) DeleteProject(ctx context.Context, userID, id string) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ? AND user_id = ?`, id, userID)
		if err != nil {
			return fmt.Errorf("deleting project: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE project_id = ?`, id); err != nil {
			return fmt.Errorf("deleting project tasks: %w", err)
		}
		return nil
	})
}

// --- Tasks ---

const taskColumns = `id, project_id, user_id, title, description, status, priority, due_date, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (*Task, error) {
	var t Task
	var status, priority string
	var due sql.NullTime
	if err := row.Scan(&t.ID, &t.ProjectID, &t.UserID, &t.Title, &t.Description, &status, &priority, &due, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Status = TaskStatus(status)
	t.Priority = Priority(priority)
	if due.Valid {
		t.DueDate = &due.Time
	}
	return &t, nil
}

// CreateTask inserts a task into one of the user's projects.
func (s *Store) CreateTask(ctx context.Context, t Task) (*Task, error) {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return nil, fmt.Errorf("%w: task title is required", ErrInvalid)
	}
	if t.Status == "" {
		t.Status = TaskTodo
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if !t.Status.valid() {
		return nil, fmt.Errorf("%w: unknown task status %q", ErrInvalid, t.Status)
	}
	if !t.Priority.valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalid, t.Priority)
	}
	if _, err := s.GetProject(ctx, t.UserID, t.ProjectID); err != nil {
		return nil, err
	}

	t.ID = uuid.New().String()
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ProjectID, t.UserID, t.Title, t.Description, string(t.Status), string(t.Priority),
		nullTime(t.DueDate), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting task: %w", err)
	}
	return &t, nil
}

// GetTask returns one of the user's tasks.
func (s *Store) GetTask(ctx context.Context, userID, id string) (*Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ? AND user_id = ?`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting task: %w", err)
	}
	return t, nil
}

// ListTasks returns a project's tasks, open work first, then by priority.
func (s *Store) ListTasks(ctx context.Context, userID, projectID string) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE project_id = ? AND user_id = ?
		 ORDER BY CASE status WHEN 'done' THEN 1 ELSE 0 END,
		          CASE priority WHEN 'urgent' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END,
		          created_at ASC, rowid ASC`, projectID, userID)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()

	tasks := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// UpdateTask applies the non-nil fields of u.
func (s *Store) UpdateTask(ctx context.Context, userID, id string, u TaskUpdate) (*Task, error) {
	t, err := s.GetTask(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if u.Title != nil {
		if strings.TrimSpace(*u.Title) == "" {
			return nil, fmt.Errorf("%w: task title is required", ErrInvalid)
		}
		t.Title = strings.TrimSpace(*u.Title)
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.Status != nil {
		if !u.Status.valid() {
			return nil, fmt.Errorf("%w: unknown task status %q", ErrInvalid, *u.Status)
		}
		t.Status = *u.Status
	}
	if u.Priority != nil {
		if !u.Priority.valid() {
			return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalid, *u.Priority)
		}
		t.Priority = *u.Priority
	}
	if u.DueDate != nil {
		t.DueDate = u.DueDate
	}
	t.UpdatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`UPDATE tasks SET title = ?, description = ?, status = ?, priority = ?, due_date = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		t.Title, t.Description, string(t.Status), string(t.Priority), nullTime(t.DueDate), t.UpdatedAt, id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating task: %w", err)
	}
	return t, nil
}

// DeleteTask removes a task and returns it as it was.
func (s *Store) DeleteTask(ctx context.Context, userID, id string) (*Task, error) {
	t, err := s.GetTask(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND user_id = ?`, id, userID); err != nil {
		return nil, fmt.Errorf("deleting task: %w", err)
	}
	return t, nil
}

// --- Dashboard ---

// Stats computes the user's dashboard counters as of now.
func (s *Store) Stats(ctx context.Context, userID string, now time.Time) (*DashboardStats, error) {
	var st DashboardStats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN status = 'active' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0)
		 FROM projects WHERE user_id = ?`, userID,
	).Scan(&st.TotalProjects, &st.ActiveProjects, &st.CompletedProjects)
	if err != nil {
		return nil, fmt.Errorf("counting projects: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN status = 'done' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN status != 'done' AND due_date IS NOT NULL AND due_date < ? THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN status != 'done' AND priority = 'urgent' THEN 1 ELSE 0 END), 0)
		 FROM tasks WHERE user_id = ?`, now.UTC(), userID,
	).Scan(&st.TotalTasks, &st.CompletedTasks, &st.OverdueTasks, &st.UrgentTasks)
	if err != nil {
		return nil, fmt.Errorf("counting tasks: %w", err)
	}
	st.OpenTasks = st.TotalTasks - st.CompletedTasks
	if st.TotalTasks > 0 {
		st.CompletionRate = float64(st.CompletedTasks) / float64(st.TotalTasks)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversations WHERE user_id = ?`, userID,
	).Scan(&st.Conversations)
	if err != nil {
		return nil, fmt.Errorf("counting conversations: %w", err)
	}
	return &st, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/workmate/internal/db"
	"github.com/ziadkadry99/workmate/internal/llm"
)

// Store manages persistence of conversations and messages.
type Store struct {
	db *db.DB
}

// NewStore creates a new chat store.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// CreateConversation inserts a new, untitled conversation.
func (s *Store) CreateConversation(ctx context.Context, userID, projectID, title string) (*Conversation, error) {
	now := time.Now().UTC()
	c := Conversation{
		ID:        uuid.New().String(),
		UserID:    userID,
		ProjectID: projectID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, user_id, project_id, title, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, '{}', ?, ?)`,
		c.ID, c.UserID, nullString(projectID), c.Title, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting conversation: %w", err)
	}
	return &c, nil
}

const conversationColumns = `id, user_id, project_id, title, metadata, created_at, updated_at`

func scanConversation(row interface{ Scan(...any) error }) (*Conversation, error) {
	var c Conversation
	var projectID sql.NullString
	var meta string
	if err := row.Scan(&c.ID, &c.UserID, &projectID, &c.Title, &meta, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.ProjectID = projectID.String
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &c.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata for %s: %w", c.ID, err)
		}
	}
	return &c, nil
}

// GetConversation returns a conversation by id, or ErrNotFound.
func (s *Store) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	c, err := scanConversation(s.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting conversation: %w", err)
	}
	return c, nil
}

// ListConversations returns a user's conversations, most recently active
// first. limit <= 0 returns all of them.
func (s *Store) ListConversations(ctx context.Context, userID string, limit int) ([]Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE user_id = ? ORDER BY updated_at DESC, rowid DESC`
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.queryConversations(ctx, query, args...)
}

// AllConversations returns every conversation, oldest first.
func (s *Store) AllConversations(ctx context.Context) ([]Conversation, error) {
	return s.queryConversations(ctx, `SELECT `+conversationColumns+` FROM conversations ORDER BY created_at ASC, rowid ASC`)
}

func (s *Store) queryConversations(ctx context.Context, query string, args ...any) ([]Conversation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// SetTitle replaces a conversation's title.
func (s *Store) SetTitle(ctx context.Context, id, title string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?`,
		title, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating title: %w", err)
	}
	return requireRow(res)
}

// UpdateMetadata applies fn to the stored metadata inside a transaction.
func (s *Store) UpdateMetadata(ctx context.Context, id string, fn func(m *Metadata)) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var raw string
		err := tx.QueryRowContext(ctx, `SELECT metadata FROM conversations WHERE id = ?`, id).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("reading metadata: %w", err)
		}

		var m Metadata
		if raw != "" {
			if err := json.Unmarshal([]byte(raw), &m); err != nil {
				return fmt.Errorf("decoding metadata: %w", err)
			}
		}
		fn(&m)

		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encoding metadata: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE conversations SET metadata = ? WHERE id = ?`, string(data), id); err != nil {
			return fmt.Errorf("writing metadata: %w", err)
		}
		return nil
	})
}

// DeleteConversation removes a conversation and all of its messages.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
			return fmt.Errorf("deleting messages: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("deleting conversation: %w", err)
		}
		return requireRow(res)
	})
}

// AddMessage inserts a message and bumps the conversation's updated_at.
// A zero CreatedAt is set to now.
func (s *Store) AddMessage(ctx context.Context, m Message) (*Message, error) {
	if !m.Role.Valid() {
		return nil, fmt.Errorf("invalid role %q", m.Role)
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	meta, err := json.Marshal(m.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encoding message metadata: %w", err)
	}

	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (id, user_id, conversation_id, role, content, metadata, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.UserID, m.ConversationID, string(m.Role), m.Content, string(meta), m.CreatedAt,
		); err != nil {
			return fmt.Errorf("inserting message: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE conversations SET updated_at = ? WHERE id = ?`, m.CreatedAt, m.ConversationID,
		); err != nil {
			return fmt.Errorf("touching conversation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Messages returns a conversation's history in creation order.
func (s *Store) Messages(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, conversation_id, role, content, metadata, created_at
		 FROM messages WHERE conversation_id = ?
		 ORDER BY created_at ASC, rowid ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var role, meta string
		if err := rows.Scan(&m.ID, &m.UserID, &m.ConversationID, &role, &m.Content, &meta, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.Role = llm.Role(role)
		if meta != "" {
			if err := json.Unmarshal([]byte(meta), &m.Metadata); err != nil {
				return nil, fmt.Errorf("decoding metadata for message %s: %w", m.ID, err)
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CountMessages returns how many messages a conversation holds.
func (s *Store) CountMessages(ctx context.Context, conversationID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE conversation_id = ?`, conversationID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting messages: %w", err)
	}
	return n, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

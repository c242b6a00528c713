// Package course stores the courses generated content belongs to.
package course

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when no course has the requested id.
var ErrNotFound = errors.New("course not found")

// Course is a topic with optional reference text used to ground prompts.
type Course struct {
	ID        string    `db:"id" json:"id" yaml:"id"`
	Topic     string    `db:"topic" json:"topic" yaml:"topic"`
	Content   string    `db:"content" json:"content,omitempty" yaml:"content,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt" yaml:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt" yaml:"updated_at"`
}

// Repository defines the course operations.
type Repository interface {
	Create(ctx context.Context, topic, content string) (*Course, error)
	FindByID(ctx context.Context, id string) (*Course, error)
	List(ctx context.Context) ([]Course, error)
}

// DBRepository implements Repository using sqlx.
type DBRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewDBRepository creates a new DBRepository.
func NewDBRepository(db *sqlx.DB) *DBRepository {
	return &DBRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Create inserts a course with a fresh id.
func (r *DBRepository) Create(ctx context.Context, topic, content string) (*Course, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, errors.New("course topic is required")
	}

	now := r.now()
	c := &Course{
		ID:        uuid.NewString(),
		Topic:     topic,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(
		"INSERT INTO courses (id, topic, content, created_at, updated_at) VALUES (?, ?, ?, ?, ?)"),
		c.ID, c.Topic, c.Content, c.CreatedAt, c.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("db.ExecContext(insert course) > %w", err)
	}
	return c, nil
}

// FindByID returns the course or ErrNotFound.
func (r *DBRepository) FindByID(ctx context.Context, id string) (*Course, error) {
	var c Course
	err := r.db.GetContext(ctx, &c, r.db.Rebind("SELECT id, topic, content, created_at, updated_at FROM courses WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db.GetContext(course) > %w", err)
	}
	return &c, nil
}

// List returns every course, newest first.
func (r *DBRepository) List(ctx context.Context) ([]Course, error) {
	var courses []Course
	if err := r.db.SelectContext(ctx, &courses, "SELECT id, topic, content, created_at, updated_at FROM courses ORDER BY created_at DESC"); err != nil {
		return nil, fmt.Errorf("db.SelectContext(courses) > %w", err)
	}
	return courses, nil
}

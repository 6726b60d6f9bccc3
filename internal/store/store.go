// Package store persists users, debates, task results and saved topics in
// Postgres, with Redis carrying ephemeral run status and scheduler locks.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/albarami/wellbeing/config"
	"github.com/albarami/wellbeing/internal/council"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a uniqueness constraint is violated.
var ErrDuplicate = errors.New("already exists")

type Store struct {
	DB *sql.DB
}

// New opens a Postgres connection pool and verifies it.
func New(ctx context.Context, pg config.PostgresConfig) (*Store, error) {
	db, err := sql.Open("postgres", pg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

// User is an account row.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// CreateUser inserts an account with an already-hashed password.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) (string, error) {
	id := uuid.NewString()
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash) VALUES ($1, $2, $3)`,
		id, email, passwordHash)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return "", fmt.Errorf("user %s: %w", email, ErrDuplicate)
		}
		return "", fmt.Errorf("creating user: %w", err)
	}
	return id, nil
}

// UserByEmail fetches an account for login.
func (s *Store) UserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = $1`,
		email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("loading user: %w", err)
	}
	return u, nil
}

// Debate is one council run record.
type Debate struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Topic      string     `json:"topic"`
	Language   string     `json:"language"`
	Status     string     `json:"status"`
	Report     string     `json:"report,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// DebateTask is one persisted task contribution.
type DebateTask struct {
	DebateID   string             `json:"debate_id"`
	TaskID     int                `json:"task_id"`
	TaskName   string             `json:"task_name"`
	Persona    string             `json:"persona"`
	Pillar     string             `json:"pillar"`
	Category   string             `json:"category"`
	Status     string             `json:"status"`
	Output     string             `json:"output"`
	Iterations int                `json:"iterations"`
	ToolLog    []council.ToolCall `json:"tool_log,omitempty"`
	DurationMS int64              `json:"duration_ms"`
}

// CreateDebate inserts a new debate in running state and returns its id.
func (s *Store) CreateDebate(ctx context.Context, userID, topic, language string) (string, error) {
	id := uuid.NewString()
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO debates (id, user_id, topic, language, status) VALUES ($1, $2, $3, $4, 'running')`,
		id, userID, topic, language)
	if err != nil {
		return "", fmt.Errorf("creating debate: %w", err)
	}
	return id, nil
}

// FinishDebate records the terminal status and report of a run.
func (s *Store) FinishDebate(ctx context.Context, id, status, report string) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE debates SET status = $2, report = $3, finished_at = NOW() WHERE id = $1`,
		id, status, report)
	if err != nil {
		return fmt.Errorf("finishing debate: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveTaskResult persists one task contribution of a debate.
func (s *Store) SaveTaskResult(ctx context.Context, debateID string, r council.TaskResult) error {
	toolLog, err := json.Marshal(r.ToolLog)
	if err != nil {
		return fmt.Errorf("encoding tool log: %w", err)
	}
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO debate_tasks (debate_id, task_id, task_name, persona, pillar, category, status, output, iterations, tool_log, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (debate_id, task_id) DO UPDATE
		 SET status = EXCLUDED.status, output = EXCLUDED.output, iterations = EXCLUDED.iterations,
		     tool_log = EXCLUDED.tool_log, duration_ms = EXCLUDED.duration_ms`,
		debateID, r.TaskID, r.TaskName, r.Persona, r.Pillar, string(r.Category),
		string(r.Status), r.Output, r.Iterations, toolLog, r.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("saving task result: %w", err)
	}
	return nil
}

// Debate loads one debate row.
func (s *Store) Debate(ctx context.Context, id string) (Debate, error) {
	var d Debate
	var report sql.NullString
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, user_id, topic, language, status, report, created_at, finished_at
		 FROM debates WHERE id = $1`, id).
		Scan(&d.ID, &d.UserID, &d.Topic, &d.Language, &d.Status, &report, &d.CreatedAt, &d.FinishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Debate{}, ErrNotFound
	}
	if err != nil {
		return Debate{}, fmt.Errorf("loading debate: %w", err)
	}
	d.Report = report.String
	return d, nil
}

// DebatesByUser lists a user's debates, newest first.
func (s *Store) DebatesByUser(ctx context.Context, userID string, limit int) ([]Debate, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, user_id, topic, language, status, created_at, finished_at
		 FROM debates WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing debates: %w", err)
	}
	defer rows.Close()
	var out []Debate
	for rows.Next() {
		var d Debate
		if err := rows.Scan(&d.ID, &d.UserID, &d.Topic, &d.Language, &d.Status, &d.CreatedAt, &d.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DebateTasks loads a debate's task contributions in task order.
func (s *Store) DebateTasks(ctx context.Context, debateID string) ([]DebateTask, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT debate_id, task_id, task_name, persona, pillar, category, status, output, iterations, tool_log, duration_ms
		 FROM debate_tasks WHERE debate_id = $1 ORDER BY task_id`, debateID)
	if err != nil {
		return nil, fmt.Errorf("listing debate tasks: %w", err)
	}
	defer rows.Close()
	var out []DebateTask
	for rows.Next() {
		var t DebateTask
		var toolLog []byte
		if err := rows.Scan(&t.DebateID, &t.TaskID, &t.TaskName, &t.Persona, &t.Pillar, &t.Category,
			&t.Status, &t.Output, &t.Iterations, &toolLog, &t.DurationMS); err != nil {
			return nil, err
		}
		if len(toolLog) > 0 {
			_ = json.Unmarshal(toolLog, &t.ToolLog)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Topic is a saved debate topic, optionally on a cron schedule.
type Topic struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Topic     string     `json:"topic"`
	Language  string     `json:"language"`
	CronSpec  string     `json:"cron_spec,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
}

// SaveTopic stores a topic for later or recurring debates.
func (s *Store) SaveTopic(ctx context.Context, userID, topic, language, cronSpec string) (string, error) {
	id := uuid.NewString()
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO topics (id, user_id, topic, language, cron_spec) VALUES ($1, $2, $3, $4, NULLIF($5, ''))`,
		id, userID, topic, language, cronSpec)
	if err != nil {
		return "", fmt.Errorf("saving topic: %w", err)
	}
	return id, nil
}

// TopicsByUser lists a user's saved topics.
func (s *Store) TopicsByUser(ctx context.Context, userID string) ([]Topic, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, user_id, topic, language, COALESCE(cron_spec, ''), created_at, last_run_at
		 FROM topics WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing topics: %w", err)
	}
	defer rows.Close()
	return scanTopics(rows)
}

// ScheduledTopics lists every topic with a cron spec, for the scheduler.
func (s *Store) ScheduledTopics(ctx context.Context) ([]Topic, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, user_id, topic, language, cron_spec, created_at, last_run_at
		 FROM topics WHERE cron_spec IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("listing scheduled topics: %w", err)
	}
	defer rows.Close()
	return scanTopics(rows)
}

// TouchTopic records that a scheduled topic just ran.
func (s *Store) TouchTopic(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE topics SET last_run_at = NOW() WHERE id = $1`, id)
	return err
}

// DeleteTopic removes a saved topic owned by the user.
func (s *Store) DeleteTopic(ctx context.Context, userID, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM topics WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting topic: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTopics(rows *sql.Rows) ([]Topic, error) {
	var out []Topic
	for rows.Next() {
		var t Topic
		if err := rows.Scan(&t.ID, &t.UserID, &t.Topic, &t.Language, &t.CronSpec, &t.CreatedAt, &t.LastRunAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

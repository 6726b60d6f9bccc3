package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/albarami/wellbeing/config"
)

// RunStatus is the live progress of a debate, kept in Redis so status
// polls avoid Postgres and survive across server instances.
type RunStatus struct {
	DebateID    string    `json:"debate_id"`
	Status      string    `json:"status"`
	TasksDone   int       `json:"tasks_done"`
	TasksTotal  int       `json:"tasks_total"`
	CurrentTask string    `json:"current_task,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Runtime wraps the Redis client for run status and scheduler locks.
type Runtime struct {
	rdb *redis.Client
}

func NewRuntime(ctx context.Context, rc config.RedisConfig) (*Runtime, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     rc.Addr(),
		Password: rc.Password,
		DB:       rc.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return &Runtime{rdb: rdb}, nil
}

func (r *Runtime) Close() error { return r.rdb.Close() }

func runStatusKey(debateID string) string { return "wellbeing:run:" + debateID }

// SetRunStatus stores the live status with a 24h TTL.
func (r *Runtime) SetRunStatus(ctx context.Context, st RunStatus) error {
	st.UpdatedAt = time.Now().UTC()
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, runStatusKey(st.DebateID), b, 24*time.Hour).Err()
}

// RunStatus loads the live status for a debate.
func (r *Runtime) RunStatus(ctx context.Context, debateID string) (RunStatus, error) {
	b, err := r.rdb.Get(ctx, runStatusKey(debateID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return RunStatus{}, ErrNotFound
	}
	if err != nil {
		return RunStatus{}, fmt.Errorf("loading run status: %w", err)
	}
	var st RunStatus
	if err := json.Unmarshal(b, &st); err != nil {
		return RunStatus{}, fmt.Errorf("decoding run status: %w", err)
	}
	return st, nil
}

// AcquireLock takes a distributed lock, used so exactly one instance runs
// a scheduled topic. Returns false when another holder has it.
func (r *Runtime) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return r.rdb.SetNX(ctx, "wellbeing:lock:"+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

// ReleaseLock drops a held lock early.
func (r *Runtime) ReleaseLock(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, "wellbeing:lock:"+key).Err()
}

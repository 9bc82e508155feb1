package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"proactiveCacher/business/scheduler"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// one hash, field = user id, value = pendingPushData
	pendingPushesKey = "cache:pending_pushes"
	maxWatchRetries  = 3
)

type pendingPushData struct {
	TaskID    string    `json:"task_id"`
	UserID    string    `json:"user_id"`
	FireAt    time.Time `json:"fire_at"`
	CreatedAt time.Time `json:"created_at"`
}

// PendingPushStore is a scheduler.TaskStore backed by a redis hash.
type PendingPushStore struct {
	client *redis.Client
}

func NewPendingPushStore(client *redis.Client) *PendingPushStore {
	return &PendingPushStore{
		client: client,
	}
}

func (r *PendingPushStore) Save(ctx context.Context, task scheduler.Task) error {
	jsonData, err := json.Marshal(pendingPushData{
		TaskID:    task.ID,
		UserID:    task.UserID,
		FireAt:    task.FireAt,
		CreatedAt: task.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal pending push: %w", err)
	}

	if err := r.client.HSet(ctx, pendingPushesKey, task.UserID, jsonData).Err(); err != nil {
		return fmt.Errorf("failed to store pending push in Redis: %w", err)
	}

	return nil
}

// Delete removes the user's pending push only while it is still taskID, so
// a late delete cannot drop a replacement.
func (r *PendingPushStore) Delete(ctx context.Context, userID, taskID string) error {
	txf := func(tx *redis.Tx) error {
		val, err := tx.HGet(ctx, pendingPushesKey, userID).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil
			}
			return err
		}

		var data pendingPushData
		if err := json.Unmarshal([]byte(val), &data); err != nil {
			return fmt.Errorf("failed to unmarshal pending push: %w", err)
		}
		if data.TaskID != taskID {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HDel(ctx, pendingPushesKey, userID)
			return nil
		})
		return err
	}

	for range maxWatchRetries {
		err := r.client.Watch(ctx, txf, pendingPushesKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to delete pending push: %w", err)
		}
		return nil
	}

	return fmt.Errorf("failed to delete pending push: %w", redis.TxFailedErr)
}

func (r *PendingPushStore) List(ctx context.Context) ([]scheduler.Task, error) {
	vals, err := r.client.HGetAll(ctx, pendingPushesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list pending pushes: %w", err)
	}

	tasks := make([]scheduler.Task, 0, len(vals))
	for userID, val := range vals {
		var data pendingPushData
		if err := json.Unmarshal([]byte(val), &data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal pending push for %s: %w", userID, err)
		}
		tasks = append(tasks, scheduler.Task{
			ID:        data.TaskID,
			UserID:    data.UserID,
			FireAt:    data.FireAt,
			CreatedAt: data.CreatedAt,
		})
	}

	return tasks, nil
}

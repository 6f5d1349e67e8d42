// internal/cache/redis.go

// Package cache is the Redis side of the action log: the game server pushes records onto
// a list and the historian pops them off.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jason-s-yu/manhunt/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list (queue) name for game action logs.
const DefaultQueueName = "manhunt_actions"

// Connect creates a Redis client and pings it.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// ActionQueue is a Redis list of JSON encoded action records. It implements
// game.ActionLog.
type ActionQueue struct {
	rdb  redis.UniversalClient
	name string
}

func NewActionQueue(rdb redis.UniversalClient, name string) *ActionQueue {
	if name == "" {
		name = DefaultQueueName
	}
	return &ActionQueue{rdb: rdb, name: name}
}

// Name returns the Redis key of the queue.
func (q *ActionQueue) Name() string {
	return q.name
}

// Publish serializes the record to JSON and pushes it to the tail of the queue.
func (q *ActionQueue) Publish(ctx context.Context, record models.ActionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal action record: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.name, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", q.name, err)
	}
	return nil
}

// Pop blocks for up to timeout waiting for the next record. It returns false when the
// queue stayed empty.
func (q *ActionQueue) Pop(ctx context.Context, timeout time.Duration) (models.ActionRecord, bool, error) {
	res, err := q.rdb.BLPop(ctx, timeout, q.name).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.ActionRecord{}, false, nil
		}
		return models.ActionRecord{}, false, err
	}
	// res[0] is the queue name and res[1] the payload.
	if len(res) < 2 {
		return models.ActionRecord{}, false, nil
	}
	var record models.ActionRecord
	if err := json.Unmarshal([]byte(res[1]), &record); err != nil {
		return models.ActionRecord{}, false, fmt.Errorf("invalid action record: %w", err)
	}
	return record, true, nil
}

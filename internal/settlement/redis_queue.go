package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// claimScript moves due members forward by the visibility timeout and returns
// their payloads. Members without a payload are dropped.
var claimScript = redis.NewScript(`
local due = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, tonumber(ARGV[2]))
local out = {}
for _, id in ipairs(due) do
  local payload = redis.call("HGET", KEYS[2], id)
  if payload then
    redis.call("ZADD", KEYS[1], ARGV[3], id)
    table.insert(out, payload)
  else
    redis.call("ZREM", KEYS[1], id)
  end
end
return out
`)

// RedisQueue keeps due times in a sorted set and payloads in a hash.
type RedisQueue struct {
	client  redis.UniversalClient
	dueKey  string
	taskKey string
}

// NewRedisQueue builds a Redis-backed queue under the key prefix.
func NewRedisQueue(client redis.UniversalClient, prefix string) *RedisQueue {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "settlement:v1"
	}
	return &RedisQueue{client: client, dueKey: prefix + ":due", taskKey: prefix + ":tasks"}
}

func (q *RedisQueue) Schedule(ctx context.Context, task Task, at time.Time) error {
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}
	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, q.taskKey, task.ID(), payload)
		pipe.ZAddNX(ctx, q.dueKey, redis.Z{Score: float64(at.UnixMilli()), Member: task.ID()})
		return nil
	})
	return err
}

func (q *RedisQueue) Claim(ctx context.Context, now time.Time, limit int, visibility time.Duration) ([]Task, error) {
	if limit <= 0 {
		limit = 10
	}
	leaseUntil := now.Add(visibility).UnixMilli()
	raw, err := claimScript.Run(ctx, q.client, []string{q.dueKey, q.taskKey},
		now.UnixMilli(), limit, leaseUntil).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("claim settlement tasks: %w", err)
	}
	tasks := make([]Task, 0, len(raw))
	for _, payload := range raw {
		var t Task
		if err := json.Unmarshal([]byte(payload), &t); err != nil {
			return nil, fmt.Errorf("decode settlement task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (q *RedisQueue) Retry(ctx context.Context, task Task, at time.Time) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}
	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, q.taskKey, task.ID(), payload)
		pipe.ZAdd(ctx, q.dueKey, redis.Z{Score: float64(at.UnixMilli()), Member: task.ID()})
		return nil
	})
	return err
}

func (q *RedisQueue) Ack(ctx context.Context, task Task) error {
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, q.dueKey, task.ID())
		pipe.HDel(ctx, q.taskKey, task.ID())
		return nil
	})
	return err
}

// Len reports how many tasks are queued.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, q.dueKey).Result()
}

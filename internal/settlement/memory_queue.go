package settlement

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryEntry struct {
	task Task
	at   time.Time
}

// MemoryQueue is an in-process Queue for development and tests. Tasks do not
// survive a restart.
type MemoryQueue struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemoryQueue builds an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{entries: make(map[string]memoryEntry)}
}

func (q *MemoryQueue) Schedule(_ context.Context, task Task, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, exists := q.entries[task.ID()]; exists {
		return nil
	}
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now().UTC()
	}
	q.entries[task.ID()] = memoryEntry{task: task, at: at}
	return nil
}

func (q *MemoryQueue) Claim(_ context.Context, now time.Time, limit int, visibility time.Duration) ([]Task, error) {
	if limit <= 0 {
		limit = 10
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	var due []memoryEntry
	for _, e := range q.entries {
		if !e.at.After(now) {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	if len(due) > limit {
		due = due[:limit]
	}

	tasks := make([]Task, 0, len(due))
	for _, e := range due {
		q.entries[e.task.ID()] = memoryEntry{task: e.task, at: now.Add(visibility)}
		tasks = append(tasks, e.task)
	}
	return tasks, nil
}

func (q *MemoryQueue) Retry(_ context.Context, task Task, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries[task.ID()] = memoryEntry{task: task, at: at}
	return nil
}

func (q *MemoryQueue) Ack(_ context.Context, task Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.entries, task.ID())
	return nil
}

// Len reports how many tasks are queued.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

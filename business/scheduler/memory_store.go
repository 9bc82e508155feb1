package scheduler

import (
	"context"
	"sync"
)

// MemoryStore keeps pending tasks in process memory. Tasks do not survive a
// restart.
type MemoryStore struct {
	mu    sync.Mutex
	tasks map[string]Task
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]Task)}
}

func (m *MemoryStore) Save(_ context.Context, task Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task.Payload = nil
	m.tasks[task.UserID] = task
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, userID, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tasks[userID]; ok && t.ID == taskID {
		delete(m.tasks, userID)
	}
	return nil
}

func (m *MemoryStore) List(_ context.Context) ([]Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t)
	}
	return out, nil
}

package task

import (
	"sort"
	"sync"
	"time"
)

// Store keeps task snapshots in memory for the lifetime of the process.
// It is the only shared mutable state in the service: HTTP handlers read
// it, and exactly one pipeline run per task writes it. Readers always
// observe a fully applied transition, never a half-written one.
type Store struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

func NewStore() *Store {
	return &Store{tasks: make(map[string]*Task)}
}

// Create registers a snapshot under its ID.
func (s *Store) Create(t *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.tasks[t.ID] = &cp
}

// Get returns a copy of the task snapshot. Mutating the copy does not
// affect the store.
func (s *Store) Get(id string) (Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// Update applies mutate to the stored task under the write lock and
// refreshes UpdatedAt. Returns false if the id is unknown.
func (s *Store) Update(id string, mutate func(*Task)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return false
	}
	mutate(t)
	t.UpdatedAt = time.Now()
	return true
}

// Delete removes the task. Returns false if the id is unknown.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return false
	}
	delete(s.tasks, id)
	return true
}

// List returns copies of all snapshots, newest first.
func (s *Store) List() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

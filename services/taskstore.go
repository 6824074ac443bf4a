package services

import (
	"sync"

	"github.com/Afterbark/youtube-to-mp3/types"
	"github.com/google/uuid"
)

// TaskStore interface defines the methods for tracking download tasks
type TaskStore interface {
	Create(url string) types.Task
	Get(id string) (types.Task, bool)
	Update(id string, mutate func(t *types.Task)) error
	List() []types.Task
	Delete(id string) bool
	Len() int
	OnChange(fn func(types.Task))
}

// taskEntry guards a single record so updates to different tasks never
// serialise behind each other
type taskEntry struct {
	mu   sync.Mutex
	task types.Task
}

// taskStore keeps every task in memory for the lifetime of the process
type taskStore struct {
	mu        sync.RWMutex
	tasks     map[string]*taskEntry
	listeners []func(types.Task)
}

// NewTaskStore creates an empty task store
func NewTaskStore() TaskStore {
	return &taskStore{
		tasks: make(map[string]*taskEntry),
	}
}

// Create allocates a fresh identifier and inserts a queued task
func (s *taskStore) Create(url string) types.Task {
	s.mu.Lock()
	id := uuid.New().String()
	for _, exists := s.tasks[id]; exists; _, exists = s.tasks[id] {
		id = uuid.New().String()
	}
	entry := &taskEntry{task: *types.NewTask(id, url)}
	s.tasks[id] = entry
	snapshot := entry.task
	s.mu.Unlock()

	s.notify(snapshot)
	return snapshot
}

// Get returns a copy of the task's current fields
func (s *taskStore) Get(id string) (types.Task, bool) {
	entry, ok := s.entry(id)
	if !ok {
		return types.Task{}, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.task, true
}

// Update applies mutate atomically with respect to other reads and updates of
// the same task
func (s *taskStore) Update(id string, mutate func(t *types.Task)) error {
	entry, ok := s.entry(id)
	if !ok {
		return types.ErrTaskNotFound
	}

	entry.mu.Lock()
	before := entry.task
	mutate(&entry.task)
	// identity is owned by the store
	entry.task.ID = before.ID
	entry.task.URL = before.URL
	entry.task.CreatedAt = before.CreatedAt
	after := entry.task
	entry.mu.Unlock()

	if after != before {
		s.notify(after)
	}
	return nil
}

// List returns snapshots of every tracked task
func (s *taskStore) List() []types.Task {
	s.mu.RLock()
	entries := make([]*taskEntry, 0, len(s.tasks))
	for _, entry := range s.tasks {
		entries = append(entries, entry)
	}
	s.mu.RUnlock()

	tasks := make([]types.Task, 0, len(entries))
	for _, entry := range entries {
		entry.mu.Lock()
		tasks = append(tasks, entry.task)
		entry.mu.Unlock()
	}
	return tasks
}

// Delete removes a task; used only by the retention janitor
func (s *taskStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return false
	}
	delete(s.tasks, id)
	return true
}

// Len returns the number of tracked tasks
func (s *taskStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// OnChange registers a listener called with a snapshot after every change.
// Listeners run on the mutating goroutine and must not block.
func (s *taskStore) OnChange(fn func(types.Task)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *taskStore) entry(id string) (*taskEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.tasks[id]
	return entry, ok
}

func (s *taskStore) notify(t types.Task) {
	s.mu.RLock()
	listeners := s.listeners
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(t)
	}
}

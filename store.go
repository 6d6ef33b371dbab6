package taskboard

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// EmptyTasks is served when there is no task file, or it is empty.
var EmptyTasks = []byte("[]")

// TaskStore keeps the whole task list in one file. The content is an opaque
// blob (JSON by convention): it is never parsed or validated.
//
// Reads and writes are serialized, so a TaskStore may be shared by
// concurrent handlers even though HttpServer never needs that.
type TaskStore struct {
	path string
	mu   sync.Mutex
}

func NewTaskStore(path string) (*TaskStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("task file path is required")
	}
	return &TaskStore{path: path}, nil
}

// Path of the task file.
func (s *TaskStore) Path() string {
	return s.path
}

// Load returns the content of the task file, or EmptyTasks if the file is
// missing, unreadable or empty. It never fails.
func (s *TaskStore) Load() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if err != nil || len(b) == 0 {
		return append([]byte(nil), EmptyTasks...)
	}
	return b
}

// Save replaces the task file with content (truncate, then write).
func (s *TaskStore) Save(content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(s.path, content, 0o644); err != nil {
		return fmt.Errorf("save tasks to %s: %w", s.path, err)
	}
	return nil
}

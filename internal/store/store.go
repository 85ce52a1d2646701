// Package store holds the environments found by a scan together with their
// selection state. All methods are safe for concurrent use.
package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/lu-zhengda/venvkiller/internal/scanner"
)

var (
	ErrNotFound  = errors.New("environment not found")
	ErrDuplicate = errors.New("environment already recorded")
)

// Totals summarise the current contents. They are recomputed on every call.
type Totals struct {
	Count       int   `json:"count"`
	TotalBytes  int64 `json:"total_bytes"`
	MarkedCount int   `json:"marked_count"`
	MarkedBytes int64 `json:"marked_bytes"`
}

type Store struct {
	mu      sync.RWMutex
	envs    map[string]*scanner.Environment
	order   []string
	version uint64
}

func New() *Store {
	return &Store{envs: make(map[string]*scanner.Environment)}
}

// Add records env. A second Add for the same path returns ErrDuplicate.
func (s *Store) Add(env scanner.Environment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.envs[env.Path]; ok {
		return fmt.Errorf("%s: %w", env.Path, ErrDuplicate)
	}
	e := env
	s.envs[env.Path] = &e
	s.order = append(s.order, env.Path)
	s.version++
	return nil
}

// Mark sets the selection state of path.
func (s *Store) Mark(path string, marked bool) error {
	return s.update(path, func(e *scanner.Environment) {
		e.Marked = marked
	})
}

// Toggle flips the selection state of path.
func (s *Store) Toggle(path string) error {
	return s.update(path, func(e *scanner.Environment) {
		e.Marked = !e.Marked
	})
}

// Fail records a failed deletion: the environment stays, unmarked, with reason attached.
func (s *Store) Fail(path, reason string) error {
	return s.update(path, func(e *scanner.Environment) {
		e.Marked = false
		e.LastError = reason
	})
}

func (s *Store) update(path string, fn func(*scanner.Environment)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.envs[path]
	if !ok {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	fn(e)
	s.version++
	return nil
}

// MarkWhere marks every environment matching fn and returns how many
// changed from unmarked to marked.
func (s *Store) MarkWhere(fn func(scanner.Environment) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.order {
		e := s.envs[p]
		if !e.Marked && fn(*e) {
			e.Marked = true
			n++
		}
	}
	if n > 0 {
		s.version++
	}
	return n
}

// Remove deletes the record for path and reports whether it existed.
func (s *Store) Remove(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.envs[path]; !ok {
		return false
	}
	delete(s.envs, path)
	for i, p := range s.order {
		if p == path {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.version++
	return true
}

func (s *Store) Get(path string) (scanner.Environment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.envs[path]
	if !ok {
		return scanner.Environment{}, false
	}
	return *e, true
}

// List returns a snapshot of all environments in insertion order.
func (s *Store) List() []scanner.Environment {
	return s.filter(func(scanner.Environment) bool { return true })
}

// Marked returns a snapshot of the marked environments in insertion order.
func (s *Store) Marked() []scanner.Environment {
	return s.filter(func(e scanner.Environment) bool { return e.Marked })
}

func (s *Store) filter(keep func(scanner.Environment) bool) []scanner.Environment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]scanner.Environment, 0, len(s.order))
	for _, p := range s.order {
		if e := *s.envs[p]; keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func (s *Store) Totals() Totals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var t Totals
	for _, e := range s.envs {
		t.Count++
		t.TotalBytes += e.SizeBytes
		if e.Marked {
			t.MarkedCount++
			t.MarkedBytes += e.SizeBytes
		}
	}
	return t
}

// Len returns the number of recorded environments.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.envs)
}

// Reset discards every record, ahead of a new scan.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.envs = make(map[string]*scanner.Environment)
	s.order = nil
	s.version++
}

// Version increases on every change, letting pollers skip redraws.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

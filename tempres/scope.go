package tempres

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Scope collects the resources acquired during one request so they can be
// released together from a single defer.
type Scope struct {
	mu        sync.Mutex
	id        string
	dir       string
	resources []*Resource
	released  int
}

// NewScope creates a scope whose files live in dir ("" means os.TempDir).
func NewScope(dir string) *Scope {
	return &Scope{id: uuid.NewString(), dir: dir}
}

// ID prefixes every file the scope stages.
func (s *Scope) ID() string {
	return s.id
}

// Stage acquires a file-backed resource owned by the scope.
func (s *Scope) Stage(pattern string, data []byte) (*Resource, error) {
	r, err := Acquire(s.dir, s.id+"-"+pattern, data)
	if err != nil {
		return nil, err
	}
	s.Track(r)
	return r, nil
}

func (s *Scope) Track(r *Resource) {
	s.mu.Lock()
	s.resources = append(s.resources, r)
	s.mu.Unlock()
}

// Close releases every tracked resource in reverse order and reports all
// release failures.
func (s *Scope) Close() error {
	s.mu.Lock()
	pending := s.resources
	s.resources = nil
	s.mu.Unlock()

	var errs []error
	for i := len(pending) - 1; i >= 0; i-- {
		if pending[i].State() == Released {
			continue
		}
		if err := pending[i].Release(); err != nil {
			errs = append(errs, err)
		}
		s.mu.Lock()
		s.released++
		s.mu.Unlock()
	}
	return errors.Join(errs...)
}

// Released counts the releases performed by Close.
func (s *Scope) Released() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// Package tempres manages transient artifacts that must be released exactly
// once, whatever path the caller takes out of a request.
package tempres

import (
	"errors"
	"fmt"
	"os"
	"sync"

	iface "github.com/MihirRajeshPanchal/BlitzAI/interface"
)

type State int

const (
	Acquired State = iota + 1
	Released
)

// Resource is a file-backed or memory-backed temporary artifact.
type Resource struct {
	mu    sync.Mutex
	path  string
	data  []byte
	state State
}

// Acquire creates a file in dir named after pattern (see os.CreateTemp) and
// writes data into it. On failure nothing is left on disk and no Resource is
// returned.
func Acquire(dir, pattern string, data []byte) (*Resource, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, iface.Wrap(iface.ResourceError, "tempres.Acquire", err)
	}
	path := f.Name()
	_, werr := f.Write(data)
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(path)
		return nil, iface.Wrap(iface.ResourceError, "tempres.Acquire", fmt.Errorf("stage %s: %w", path, err))
	}
	return &Resource{path: path, state: Acquired}, nil
}

// NewBuffer wraps an in-memory artifact. The bytes are dropped on release.
func NewBuffer(data []byte) *Resource {
	return &Resource{data: data, state: Acquired}
}

// Path is empty for memory-backed resources.
func (r *Resource) Path() string {
	return r.path
}

// Bytes returns the artifact content, reading it from disk when file-backed.
func (r *Resource) Bytes() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == Released {
		return nil, iface.Errorf(iface.ResourceError, "tempres.Bytes", "resource already released")
	}
	if r.path == "" {
		return r.data, nil
	}
	b, err := os.ReadFile(r.path)
	if err != nil {
		return nil, iface.Wrap(iface.ResourceError, "tempres.Bytes", err)
	}
	return b, nil
}

func (r *Resource) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Release removes the backing storage. Releasing twice is a no-op.
func (r *Resource) Release() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == Released {
		return nil
	}
	r.state = Released
	r.data = nil
	if r.path == "" {
		return nil
	}
	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return iface.Wrap(iface.ResourceError, "tempres.Release", err)
	}
	return nil
}

package assistant

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jhu-collab/coursechat-api/internal/models"
)

// Responder is the behavior behind one registered assistant name.
type Responder interface {
	GenerateResponse(ctx context.Context, input, chatID string) (string, error)
	Name() string
	Description() string
}

// Registry routes assistant names to responders. It is safe for concurrent
// use; ReplaceAll swaps the whole table atomically for hot reloads.
type Registry struct {
	mu         sync.RWMutex
	responders map[string]Responder
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{responders: make(map[string]Responder)}
}

// Register adds a responder. Registering the same name twice is a
// configuration error, not a silent overwrite.
func (r *Registry) Register(responder Responder) error {
	name := responder.Name()
	if name == "" {
		return fmt.Errorf("%w: responder has no name", models.ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.responders[name]; exists {
		return fmt.Errorf("%w: assistant %q registered twice", models.ErrValidation, name)
	}
	r.responders[name] = responder
	return nil
}

// ReplaceAll atomically replaces the routing table. In-flight generations
// keep the responder they already resolved.
func (r *Registry) ReplaceAll(responders []Responder) error {
	next := make(map[string]Responder, len(responders))
	for _, responder := range responders {
		name := responder.Name()
		if name == "" {
			return fmt.Errorf("%w: responder has no name", models.ErrValidation)
		}
		if _, exists := next[name]; exists {
			return fmt.Errorf("%w: assistant %q registered twice", models.ErrValidation, name)
		}
		next[name] = responder
	}

	r.mu.Lock()
	r.responders = next
	r.mu.Unlock()
	return nil
}

// Get resolves a name to its responder.
func (r *Registry) Get(name string) (Responder, error) {
	r.mu.RLock()
	responder, ok := r.responders[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: assistant %q", models.ErrNotFound, name)
	}
	return responder, nil
}

// GenerateResponse dispatches input to the named assistant.
func (r *Registry) GenerateResponse(ctx context.Context, name, input, chatID string) (string, error) {
	responder, err := r.Get(name)
	if err != nil {
		return "", err
	}
	return responder.GenerateResponse(ctx, input, chatID)
}

// List returns the registered responders sorted by name.
func (r *Registry) List() []Responder {
	r.mu.RLock()
	out := make([]Responder, 0, len(r.responders))
	for _, responder := range r.responders {
		out = append(out, responder)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Names returns the registered assistant names sorted ascending.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.responders))
	for name := range r.responders {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Syncer mirrors registered assistants into a backing catalog so chats can
// reference them relationally.
type Syncer interface {
	Ensure(ctx context.Context, name, description string) error
}

// Synchronize upserts every registered assistant through the syncer.
func (r *Registry) Synchronize(ctx context.Context, syncer Syncer) error {
	for _, responder := range r.List() {
		if err := syncer.Ensure(ctx, responder.Name(), responder.Description()); err != nil {
			return fmt.Errorf("sync assistant %s: %w", responder.Name(), err)
		}
	}
	return nil
}

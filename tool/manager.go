package tool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ErrUnknownTool is returned by Run and Get for unregistered names.
var ErrUnknownTool = errors.New("unknown tool")

// Manager keeps tools in registration order.
type Manager struct {
	mu    sync.RWMutex
	tools *orderedmap.OrderedMap[string, Definition]
}

// NewManager returns a manager with the built-in tools registered.
func NewManager() *Manager {
	m := &Manager{tools: orderedmap.New[string, Definition]()}
	for _, def := range Builtins() {
		_ = m.Register(def)
	}
	return m
}

// Register adds a tool. Names must be unique.
func (m *Manager) Register(def Definition) error {
	if def.Name == "" || def.Function == nil {
		return errors.New("tool needs a name and a function")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tools.Get(def.Name); exists {
		return fmt.Errorf("tool %q is already registered", def.Name)
	}
	m.tools.Set(def.Name, def)
	return nil
}

// Get returns the tool called name.
func (m *Manager) Get(name string) (Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	def, ok := m.tools.Get(name)
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return def, nil
}

// List returns the tools in registration order.
func (m *Manager) List() []Definition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Definition, 0, m.tools.Len())
	for pair := m.tools.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Run validates args and executes the tool called name.
func (m *Manager) Run(ctx context.Context, env Env, name string, args Args) (string, error) {
	def, err := m.Get(name)
	if err != nil {
		return "", err
	}
	if err := def.Validate(args); err != nil {
		return "", err
	}
	return def.Function(ctx, env, args)
}

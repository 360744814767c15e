package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"toolgate/pkg/logging"
)

var (
	// ErrDuplicateName is returned when a tool name is already registered.
	ErrDuplicateName = errors.New("tool name already registered")
	// ErrNotFound is returned by Resolve for names that were never registered.
	ErrNotFound = errors.New("tool not found")
	// ErrInvalidDefinition is returned for definitions that cannot be served.
	ErrInvalidDefinition = errors.New("invalid tool definition")
	// ErrSealed is returned by Register once the registry is sealed.
	ErrSealed = errors.New("registry is sealed")
)

const maxNameLength = 128

// Handler executes one tool invocation with validated parameters. The
// context is cancelled when the caller goes away.
type Handler func(ctx context.Context, params Params) (Result, error)

// Result is what a handler returns to the caller.
type Result struct {
	// Text is the human-readable result.
	Text string
	// Structured is optional machine-readable content, encoded as JSON.
	Structured any
}

// Hints are behavioural annotations advertised to MCP clients.
type Hints struct {
	ReadOnly    bool
	Idempotent  bool
	Destructive bool
	OpenWorld   bool
}

// Definition describes one callable tool.
type Definition struct {
	Name        string
	Description string
	Schema      Schema
	Handler     Handler
	Hints       Hints
}

func (d Definition) validate() error {
	if err := validateName(d.Name); err != nil {
		return err
	}
	if d.Handler == nil {
		return fmt.Errorf("%w: tool %q has no handler", ErrInvalidDefinition, d.Name)
	}

	seen := make(map[string]struct{}, len(d.Schema.Fields))
	for _, f := range d.Schema.Fields {
		if f.Name == "" {
			return fmt.Errorf("%w: tool %q has a parameter without a name", ErrInvalidDefinition, d.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("%w: tool %q declares parameter %q twice", ErrInvalidDefinition, d.Name, f.Name)
		}
		if !f.Type.valid() {
			return fmt.Errorf("%w: parameter %q of tool %q has unknown type %v", ErrInvalidDefinition, f.Name, d.Name, f.Type)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

// validateName accepts the MCP tool name alphabet: ASCII letters, digits,
// underscore, hyphen and dot.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidDefinition)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name %q longer than %d characters", ErrInvalidDefinition, name, maxNameLength)
	}
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '_', c == '-', c == '.':
		default:
			return fmt.Errorf("%w: name %q contains %q", ErrInvalidDefinition, name, c)
		}
	}
	return nil
}

// Registry maps tool names to definitions.
//
// Tools are registered during setup. After Seal the registry is read-only and
// may be shared by any number of concurrent invocations.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Definition
	sealed bool
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{tools: make(map[string]Definition)}
}

// Register adds def. When the name is taken the first definition is kept
// and ErrDuplicateName is returned.
func (r *Registry) Register(def Definition) error {
	if err := def.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("%w: cannot register %q", ErrSealed, def.Name)
	}
	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateName, def.Name)
	}

	r.tools[def.Name] = def
	logging.Debug("Registry", "Registered tool %s with %d parameters", def.Name, len(def.Schema.Fields))
	return nil
}

// MustRegister is Register for built-in tools, panicking on error.
func (r *Registry) MustRegister(defs ...Definition) {
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
}

// Resolve returns the definition registered under name.
func (r *Registry) Resolve(name string) (Definition, error) {
	r.mu.RLock()
	def, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return def, nil
}

// List returns every definition sorted by name.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defs := make([]Definition, 0, len(r.tools))
	for _, def := range r.tools {
		defs = append(defs, def)
	}
	r.mu.RUnlock()

	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Seal ends the setup phase. Further Register calls fail with ErrSealed.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.sealed {
		r.sealed = true
		logging.Info("Registry", "Sealed with %d tools", len(r.tools))
	}
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

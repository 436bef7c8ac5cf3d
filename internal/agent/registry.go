package agent

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Registry errors (§4.C).
var (
	ErrDuplicateName = errors.New("registry: tool name already registered")
	ErrImmutable     = errors.New("registry: built-in tool cannot be modified")
	ErrNotFound      = errors.New("registry: tool not found")
)

type entry struct {
	tool      Tool
	builtin   bool
	compiled  *jsonschema.Schema
}

// Registry is the Tool Registry (§4.C): a static built-in table plus a
// late-bound overlay of user-defined tools, looked up by exact name.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// RegisterBuiltin adds an immutable built-in tool. Panics on a duplicate
// name since built-in registration only happens once at startup from
// static code, never from user input.
func (r *Registry) RegisterBuiltin(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[t.Name()]; exists {
		panic(fmt.Sprintf("registry: duplicate built-in tool %q", t.Name()))
	}
	r.entries[t.Name()] = entry{tool: t, builtin: true, compiled: compileSchema(t)}
}

// RegisterUserTool registers (or, with replace=true, overwrites) a
// user-defined tool. Duplicate names without replace fail ErrDuplicateName;
// built-ins can never be replaced (ErrImmutable).
func (r *Registry) RegisterUserTool(t Tool, replace bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, exists := r.entries[t.Name()]
	if exists {
		if existing.builtin {
			return ErrImmutable
		}
		if !replace {
			return ErrDuplicateName
		}
	}
	r.entries[t.Name()] = entry{tool: t, builtin: false, compiled: compileSchema(t)}
	return nil
}

// Unregister removes a user-defined tool. Built-ins cannot be removed.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, exists := r.entries[name]
	if !exists {
		return ErrNotFound
	}
	if e.builtin {
		return ErrImmutable
	}
	delete(r.entries, name)
	return nil
}

// Get looks up a tool by exact name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.tool, true
}

// ValidateInput checks params against the tool's compiled JSON schema,
// returning a human-readable description of the first violation.
func (r *Registry) ValidateInput(name string, params interface{}) error {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	if e.compiled == nil {
		return nil
	}
	return e.compiled.Validate(params)
}

// DescribeAll returns every registered tool, used to build the LLM
// tool-manifest for a request.
func (r *Registry) DescribeAll() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.tool)
	}
	return out
}

func compileSchema(t Tool) *jsonschema.Schema {
	raw := t.Schema()
	if len(raw) == 0 {
		return nil
	}
	compiler := jsonschema.NewCompiler()
	resourceName := t.Name() + ".schema.json"
	if err := compiler.AddResource(resourceName, bytes.NewReader(raw)); err != nil {
		return nil
	}
	schema, err := compiler.Compile(resourceName)
	if err != nil {
		return nil
	}
	return schema
}

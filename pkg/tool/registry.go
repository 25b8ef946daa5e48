// Package tool implements the action framework: a static registry of
// named tools, a rule-based router for common commands, and an
// executor that validates arguments and supervises long-running
// handlers.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/voxpod/voxpod/pkg/session"
)

// Args are the raw arguments of one tool call.
type Args map[string]string

// Clone returns a copy of the args.
func (a Args) Clone() Args {
	out := make(Args, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Param declares one tool parameter.
type Param struct {
	Name        string
	Description string
	Required    bool
	Default     string
}

// Call is one tool invocation.
type Call struct {
	Session *session.Session
	Args    Args
}

// Handler executes a tool call. Returned errors are converted to
// error results by the executor, never propagated to the transport.
type Handler func(ctx context.Context, call Call) (*Result, error)

// Definition describes a registered tool. Names are dotted
// ("domain.action"). LongRunning marks handlers that may outlast the
// device's inactivity watchdog and need synthetic keepalive.
type Definition struct {
	Name        string
	Description string
	Params      []Param
	LongRunning bool
	Handler     Handler
}

// Registry is the immutable-after-startup tool catalog.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Definition
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Definition)}
}

// Register adds a tool. Duplicate names are an error.
func (r *Registry) Register(def *Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool: definition missing name")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool: %s missing handler", def.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[def.Name]; ok {
		return fmt.Errorf("tool: %s already registered", def.Name)
	}
	r.tools[def.Name] = def
	return nil
}

// MustRegister adds a tool and panics on error. Registration happens
// once at startup, so a failure is a programming bug.
func (r *Registry) MustRegister(def *Definition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

// Get returns the tool definition for name, or nil.
func (r *Registry) Get(name string) *Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Catalog renders a human-readable tool list for the planner prompt,
// one line per tool with its parameter schema.
func (r *Registry) Catalog() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		def := r.tools[name]
		fmt.Fprintf(&b, "- %s: %s | params: %s\n", name, def.Description, paramsJSON(def))
	}
	return b.String()
}

// paramsJSON renders the parameter list as a compact JSON schema.
func paramsJSON(def *Definition) string {
	if len(def.Params) == 0 {
		return "none"
	}
	schema := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(def.Params)),
	}
	for _, p := range def.Params {
		prop := &jsonschema.Schema{Type: "string", Description: p.Description}
		if p.Default != "" {
			prop.Default = json.RawMessage(fmt.Sprintf("%q", p.Default))
		}
		schema.Properties[p.Name] = prop
		if p.Required {
			schema.Required = append(schema.Required, p.Name)
		}
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return "none"
	}
	return string(data)
}

// Package tools holds the instruction templates used to describe tool calls
// to agents in natural language.
package tools

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ToolSuffix is the optional suffix pipeline steps append to tool names.
const ToolSuffix = "_tool"

// Params are the parameters of a tool call.
type Params map[string]interface{}

// Has reports whether key is present with a non-empty value.
func (p Params) Has(key string) bool {
	v, ok := p[key]
	if !ok || v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return true
}

// Get returns the value of key rendered as text, or "" when absent.
func (p Params) Get(key string) string {
	if !p.Has(key) {
		return ""
	}
	if s, ok := p[key].(string); ok {
		return s
	}
	return fmt.Sprint(p[key])
}

// TemplateFunc renders the instruction for one tool call. It must not fail
// when optional parameters are missing.
type TemplateFunc func(params Params) string

// Registry stores instruction templates keyed by tool name.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]TemplateFunc
}

// DefaultRegistry is the shared registry holding the built-in templates.
var DefaultRegistry = NewRegistry()

// NewRegistry creates an empty template registry.
func NewRegistry() *Registry {
	return &Registry{
		templates: make(map[string]TemplateFunc),
	}
}

// Register adds a new template for a tool name.
func (r *Registry) Register(toolName string, fn TemplateFunc) error {
	toolName = normalize(toolName)
	if toolName == "" {
		return fmt.Errorf("tool name is required")
	}
	if fn == nil {
		return fmt.Errorf("template is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.templates[toolName]; exists {
		return fmt.Errorf("template already registered for %s", toolName)
	}
	r.templates[toolName] = fn
	return nil
}

// Lookup returns the template for a tool name, with or without the "_tool"
// suffix.
func (r *Registry) Lookup(toolName string) (TemplateFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.templates[normalize(toolName)]
	return fn, ok
}

// Names lists the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalize(toolName string) string {
	return strings.TrimSuffix(strings.TrimSpace(toolName), ToolSuffix)
}

// Register adds a template to the default registry.
func Register(toolName string, fn TemplateFunc) error {
	return DefaultRegistry.Register(toolName, fn)
}

// MustRegister adds a template to the default registry or panics.
func MustRegister(toolName string, fn TemplateFunc) {
	if err := Register(toolName, fn); err != nil {
		panic(err)
	}
}

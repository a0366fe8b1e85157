// Package tools declares the closed catalog of retrieval tools with
// injected-context keys, and the dispatcher that merges model-supplied
// parameters with runtime context before invoking an executor. The
// catalog is statically registered rather than driven by an open-ended
// tool-use loop.
package tools

import (
	"context"
	"fmt"
	"log"
)

// Param describes one parameter in a tool's schema.
type Param struct {
	Name        string
	Type        string
	Description string
}

// Executor runs a tool given its merged argument map (model-supplied
// parameters plus injected context values).
type Executor func(ctx context.Context, args map[string]any) (string, error)

// Tool is a declarative catalog entry. InjectedKeys names runtime
// values the dispatcher must supply — the model never proposes them.
type Tool struct {
	Name          string
	Description   string
	Params        []Param
	InjectedKeys  []string
	Exec          Executor
}

// Registry is the static catalog of tools available to the retrieval
// planner.
type Registry struct {
	tools map[string]*Tool
	order []string
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

func (r *Registry) Register(t *Tool) {
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

func (r *Registry) Get(name string) (*Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// All returns tools in registration order, for catalog-description
// rendering.
func (r *Registry) All() []*Tool {
	out := make([]*Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Invocation is a structured tool-call proposal `{tool-name, parameters}`.
type Invocation struct {
	Tool       string         `json:"tool"`
	Parameters map[string]any `json:"parameters"`
}

// Dispatcher invokes tools by name, merging model parameters with
// context values injected per-call. Unknown tools and missing context
// keys are logged and skipped, never propagated as a turn failure.
type Dispatcher struct {
	registry *Registry
}

func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Dispatch invokes one tool call. injected supplies the values the
// tool's InjectedKeys name (e.g. the current user-id, cache handles).
func (d *Dispatcher) Dispatch(ctx context.Context, call Invocation, injected map[string]any) (string, error) {
	tool, ok := d.registry.Get(call.Tool)
	if !ok {
		log.Printf("[tools.Dispatcher] unknown tool %q, skipping", call.Tool)
		return "", fmt.Errorf("unknown tool: %s", call.Tool)
	}

	args := make(map[string]any, len(call.Parameters)+len(tool.InjectedKeys))
	for k, v := range call.Parameters {
		args[k] = v
	}
	for _, key := range tool.InjectedKeys {
		v, ok := injected[key]
		if !ok {
			log.Printf("[tools.Dispatcher] tool %q missing injected context key %q, skipping", tool.Name, key)
			return "", fmt.Errorf("missing injected context key: %s", key)
		}
		args[key] = v
	}

	out, err := tool.Exec(ctx, args)
	if err != nil {
		log.Printf("[tools.Dispatcher] tool %q failed: %v", tool.Name, err)
		return "", err
	}
	return out, nil
}

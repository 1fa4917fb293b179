package tools

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Registry holds the tools exposed to callers. It is populated once at
// startup and read concurrently afterwards; Register must not be called once
// dispatching has begun.
type Registry struct {
	order   []string
	entries map[string]*registryEntry
}

type registryEntry struct {
	desc    ToolDescriptor
	schema  *jsonschema.Schema
	handler Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registryEntry)}
}

// Register adds a tool. Names must be unique and non-empty and the input
// schema, when present, must compile.
func (r *Registry) Register(desc ToolDescriptor, h Handler) error {
	if desc.Name == "" {
		return fmt.Errorf("tool[%d]: name is required", len(r.order))
	}
	if _, ok := r.entries[desc.Name]; ok {
		return fmt.Errorf("tool %q: duplicate name", desc.Name)
	}
	if h == nil {
		return fmt.Errorf("tool %q: handler is required", desc.Name)
	}
	if len(bytes.TrimSpace(desc.InputSchema)) == 0 {
		desc.InputSchema = json.RawMessage(`{"type":"object"}`)
	}
	schema, err := compileSchema(desc.Name, desc.InputSchema)
	if err != nil {
		return fmt.Errorf("tool %q: %w", desc.Name, err)
	}
	r.entries[desc.Name] = &registryEntry{desc: desc, schema: schema, handler: h}
	r.order = append(r.order, desc.Name)
	return nil
}

// Descriptors returns the registered tools in registration order.
func (r *Registry) Descriptors() []ToolDescriptor {
	out := make([]ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].desc)
	}
	return out
}

// Len reports how many tools are registered.
func (r *Registry) Len() int { return len(r.order) }

func (r *Registry) lookup(name string) (*registryEntry, bool) {
	e, ok := r.entries[name]
	return e, ok
}

func compileSchema(name string, raw json.RawMessage) (*jsonschema.Schema, error) {
	url := "mem://tools/" + name + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("parse input schema: %w", err)
	}
	s, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile input schema: %w", err)
	}
	return s, nil
}

// validateArguments checks args against the tool's schema.
func (e *registryEntry) validateArguments(args map[string]any) error {
	if args == nil {
		args = map[string]any{}
	}
	// Round-trip through JSON so Go-typed values (ints, typed slices) from
	// in-process callers are seen the way the schema validator expects.
	b, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode arguments: %w", err)
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return e.schema.Validate(doc)
}

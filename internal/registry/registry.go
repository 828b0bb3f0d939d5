// Package registry describes every operation the capability servers expose.
// The descriptors are read once from an embedded YAML document and never
// change afterwards.
package registry

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/taskflow/internal/dates"
	"github.com/ShayCichocki/taskflow/internal/toolerr"
)

//go:embed tools.yaml
var toolsYAML []byte

// Server names a capability server.
type Server string

const (
	// ServerTasks is the task store.
	ServerTasks Server = "tasks"
	// ServerNotify is the email notification service.
	ServerNotify Server = "notify"
)

// Valid returns true if the server is a known value.
func (s Server) Valid() bool {
	return s == ServerTasks || s == ServerNotify
}

// ParamType is the declared type of a tool parameter.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeBoolean ParamType = "boolean"
	TypeDate    ParamType = "date"
	TypeEmail   ParamType = "email"
)

// Valid returns true if the type is a known value.
func (t ParamType) Valid() bool {
	switch t {
	case TypeString, TypeInteger, TypeBoolean, TypeDate, TypeEmail:
		return true
	default:
		return false
	}
}

// jsonType is the JSON Schema type used on the wire.
func (t ParamType) jsonType() string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeBoolean:
		return "boolean"
	default:
		return "string"
	}
}

// Param describes one tool parameter.
type Param struct {
	Name        string    `yaml:"name"`
	Type        ParamType `yaml:"type"`
	Required    bool      `yaml:"required"`
	Description string    `yaml:"description"`
	Enum        []string  `yaml:"enum,omitempty"`
	Min         *int64    `yaml:"min,omitempty"`
}

// ResultField describes one field of a tool's result.
type ResultField struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// ToolDescriptor describes one operation.
type ToolDescriptor struct {
	Name        string        `yaml:"name"`
	Server      Server        `yaml:"server"`
	Description string        `yaml:"description"`
	Params      []Param       `yaml:"params"`
	Result      []ResultField `yaml:"result"`
}

// Param returns the named parameter.
func (d ToolDescriptor) Param(name string) (Param, bool) {
	for _, p := range d.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// HasResultField reports whether the result declares the named field.
func (d ToolDescriptor) HasResultField(name string) bool {
	for _, f := range d.Result {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Required returns the names of the required parameters in order.
func (d ToolDescriptor) Required() []string {
	var names []string
	for _, p := range d.Params {
		if p.Required {
			names = append(names, p.Name)
		}
	}
	return names
}

// InputSchema returns the JSON Schema properties of the parameters.
func (d ToolDescriptor) InputSchema() map[string]any {
	properties := make(map[string]any, len(d.Params))
	for _, p := range d.Params {
		schema := map[string]any{
			"type":        p.Type.jsonType(),
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			schema["enum"] = p.Enum
		}
		if p.Min != nil {
			schema["minimum"] = *p.Min
		}
		switch p.Type {
		case TypeDate:
			schema["description"] = strings.TrimSpace(p.Description + " YYYY-MM-DD or a phrase such as \"Friday\" or \"in 3 days\".")
		case TypeEmail:
			schema["format"] = "email"
		}
		properties[p.Name] = schema
	}
	return properties
}

// MCPTool converts the descriptor to an MCP tool definition.
func (d ToolDescriptor) MCPTool() mcp.Tool {
	required := d.Required()
	if required == nil {
		required = []string{}
	}
	return mcp.Tool{
		Name:        d.Name,
		Description: d.Description,
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: d.InputSchema(),
			Required:   required,
		},
	}
}

// Registry holds the tool descriptors.
type Registry struct {
	tools  []ToolDescriptor
	byName map[string]int
	dates  *dates.Parser
}

// Option configures a Registry.
type Option func(*Registry)

// WithDateParser sets the parser used to validate date parameters.
func WithDateParser(p *dates.Parser) Option {
	return func(r *Registry) {
		r.dates = p
	}
}

// Load builds the registry from the embedded tool document.
func Load(opts ...Option) (*Registry, error) {
	return Parse(toolsYAML, opts...)
}

// MustLoad is like Load but panics on error.
func MustLoad(opts ...Option) *Registry {
	r, err := Load(opts...)
	if err != nil {
		panic(err)
	}
	return r
}

// Parse builds a registry from a YAML tool document.
func Parse(data []byte, opts ...Option) (*Registry, error) {
	var doc struct {
		Tools []ToolDescriptor `yaml:"tools"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse tool document: %w", err)
	}

	r := &Registry{
		tools:  doc.Tools,
		byName: make(map[string]int, len(doc.Tools)),
	}
	for i, t := range doc.Tools {
		if err := checkDescriptor(t); err != nil {
			return nil, err
		}
		if _, dup := r.byName[t.Name]; dup {
			return nil, fmt.Errorf("duplicate tool %q", t.Name)
		}
		r.byName[t.Name] = i
	}

	for _, opt := range opts {
		opt(r)
	}
	if r.dates == nil {
		r.dates = dates.New()
	}
	return r, nil
}

func checkDescriptor(t ToolDescriptor) error {
	if t.Name == "" {
		return fmt.Errorf("tool with empty name")
	}
	if !t.Server.Valid() {
		return fmt.Errorf("tool %q: unknown server %q", t.Name, t.Server)
	}
	seen := make(map[string]bool, len(t.Params))
	for _, p := range t.Params {
		if p.Name == "" {
			return fmt.Errorf("tool %q: parameter with empty name", t.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("tool %q: duplicate parameter %q", t.Name, p.Name)
		}
		seen[p.Name] = true
		if !p.Type.Valid() {
			return fmt.Errorf("tool %q: parameter %q has unknown type %q", t.Name, p.Name, p.Type)
		}
	}
	return nil
}

// Resolve returns the descriptor for name.
func (r *Registry) Resolve(name string) (ToolDescriptor, error) {
	i, ok := r.byName[name]
	if !ok {
		return ToolDescriptor{}, toolerr.New(toolerr.UnknownTool, "no tool named %q", name)
	}
	return r.tools[i], nil
}

// List returns all descriptors in declaration order.
func (r *Registry) List() []ToolDescriptor {
	out := make([]ToolDescriptor, len(r.tools))
	copy(out, r.tools)
	return out
}

// ForServer returns the descriptors served by s in declaration order.
func (r *Registry) ForServer(s Server) []ToolDescriptor {
	var out []ToolDescriptor
	for _, t := range r.tools {
		if t.Server == s {
			out = append(out, t)
		}
	}
	return out
}

// MCPTools returns the MCP definitions of the tools served by s.
func (r *Registry) MCPTools(s Server) []mcp.Tool {
	var out []mcp.Tool
	for _, t := range r.ForServer(s) {
		out = append(out, t.MCPTool())
	}
	return out
}

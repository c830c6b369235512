// Package registry holds the static node catalog: for every node type the
// scene format may reference, the declared input and output ports, default
// parameter values, and the node's category. The catalog is a declarative
// YAML document embedded at build time and parsed once.
package registry

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Category classifies a node type by its role in the render graph.
type Category string

const (
	CategoryRenderTarget Category = "RenderTarget"
	CategoryPass         Category = "Pass"
	CategoryGeometry     Category = "Geometry"
	CategoryTexture      Category = "Texture"
	CategoryShaderValue  Category = "ShaderValue"
	CategoryMath         Category = "Math"
	CategoryComposite    Category = "Composite"
	CategoryClosure      Category = "Closure"
)

var categories = map[Category]bool{
	CategoryRenderTarget: true, CategoryPass: true, CategoryGeometry: true,
	CategoryTexture: true, CategoryShaderValue: true, CategoryMath: true,
	CategoryComposite: true, CategoryClosure: true,
}

// Port describes one declared input or output port of a node type.
type Port struct {
	ID string `yaml:"id"`

	Type PortType `yaml:"type"`

	// Multi marks an input that accepts more than one incoming connection.
	// Inputs are single-sink unless this is set.
	Multi bool `yaml:"multi"`
}

// Definition is the catalog entry for one node type.
type Definition struct {
	Type     string   `yaml:"type"`
	Category Category `yaml:"category"`

	// Aliases are accepted as exact stand-ins for Type. Scenes using an
	// alias compile to byte-identical output: the alias resolves to this
	// definition before anything downstream sees the node.
	Aliases []string `yaml:"aliases"`

	Inputs  []Port `yaml:"inputs"`
	Outputs []Port `yaml:"outputs"`

	// Params holds default parameter values merged under node params.
	Params map[string]any `yaml:"params"`

	// Required lists parameter names that must be bound after merging
	// defaults, inline params, and incoming connections.
	Required []string `yaml:"required"`
}

// Input returns the declared input port with the given id, if any.
func (d *Definition) Input(id string) (Port, bool) {
	for _, p := range d.Inputs {
		if p.ID == id {
			return p, true
		}
	}
	return Port{}, false
}

// Output returns the declared output port with the given id, if any.
func (d *Definition) Output(id string) (Port, bool) {
	for _, p := range d.Outputs {
		if p.ID == id {
			return p, true
		}
	}
	return Port{}, false
}

// Registry is the loaded node catalog.
type Registry struct {
	defs    map[string]*Definition // canonical type → definition
	aliases map[string]string      // alias → canonical type
}

type catalogDoc struct {
	Version int           `yaml:"version"`
	Nodes   []*Definition `yaml:"nodes"`
}

// Load parses the embedded catalog into a fresh Registry.
func Load() (*Registry, error) {
	var doc catalogDoc
	if err := yaml.Unmarshal(catalogYAML, &doc); err != nil {
		return nil, fmt.Errorf("registry: parsing catalog: %w", err)
	}
	r := &Registry{
		defs:    make(map[string]*Definition, len(doc.Nodes)),
		aliases: make(map[string]string),
	}
	for _, def := range doc.Nodes {
		if def.Type == "" {
			return nil, fmt.Errorf("registry: catalog entry with empty type tag")
		}
		if !categories[def.Category] {
			return nil, fmt.Errorf("registry: %s: unknown category %q", def.Type, def.Category)
		}
		for _, p := range append(append([]Port{}, def.Inputs...), def.Outputs...) {
			if !ValidPortType(p.Type) {
				return nil, fmt.Errorf("registry: %s.%s: unknown port type %q", def.Type, p.ID, p.Type)
			}
		}
		if _, dup := r.defs[def.Type]; dup {
			return nil, fmt.Errorf("registry: duplicate catalog entry %q", def.Type)
		}
		if def.Params == nil {
			def.Params = map[string]any{}
		}
		r.defs[def.Type] = def
		for _, a := range def.Aliases {
			if _, dup := r.aliases[a]; dup {
				return nil, fmt.Errorf("registry: duplicate alias %q", a)
			}
			r.aliases[a] = def.Type
		}
	}
	return r, nil
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
	defaultErr  error
)

// Default returns the shared registry loaded from the embedded catalog.
// The catalog is parsed on first use; subsequent calls return the same
// instance. A parse failure here means the embedded catalog is broken,
// which is a build defect, so the error is sticky.
func Default() (*Registry, error) {
	defaultOnce.Do(func() {
		defaultReg, defaultErr = Load()
	})
	return defaultReg, defaultErr
}

// Canonical resolves legacy aliases to the canonical type tag. Unknown
// types pass through unchanged; the caller detects them via DefinitionOf.
func (r *Registry) Canonical(typ string) string {
	if c, ok := r.aliases[typ]; ok {
		return c
	}
	return typ
}

// DefinitionOf returns the catalog entry for the given node type, resolving
// aliases. The second return is false for unknown types.
func (r *Registry) DefinitionOf(typ string) (*Definition, bool) {
	d, ok := r.defs[r.Canonical(typ)]
	return d, ok
}

// Defaults returns the default parameter map for the given node type.
// The returned map is shared; callers must not mutate it.
func (r *Registry) Defaults(typ string) map[string]any {
	if d, ok := r.DefinitionOf(typ); ok {
		return d.Params
	}
	return nil
}

// IsRequired reports whether param must be bound on nodes of the given type.
func (r *Registry) IsRequired(typ, param string) bool {
	d, ok := r.DefinitionOf(typ)
	if !ok {
		return false
	}
	for _, p := range d.Required {
		if p == param {
			return true
		}
	}
	return false
}

// Types returns all canonical type tags in the catalog, unordered.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.defs))
	for t := range r.defs {
		out = append(out, t)
	}
	return out
}

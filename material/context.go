package material

import (
	"sort"

	"github.com/nodeforge/forge/internal/ident"
	"github.com/nodeforge/forge/scene"
)

// TexKind distinguishes image textures from sampled pass outputs in the
// binding layout.
type TexKind int

const (
	TexImage TexKind = iota
	TexPass
)

// TextureRef is one texture the compiled material samples. The order of
// registration fixes the binding order in group 1.
type TextureRef struct {
	NodeID string
	Kind   TexKind
}

// TextureVar returns the WGSL texture identifier for the reference.
func (t TextureRef) TextureVar() string { return "t_" + ident.Sanitize(t.NodeID) }

// SamplerVar returns the WGSL sampler identifier for the reference.
func (t TextureRef) SamplerVar() string { return "s_" + ident.Sanitize(t.NodeID) }

// GraphInput is a graph-input node bound into the GraphInputs uniform
// block: one vec4 slot, scalar and short-vector values broadcast in.
type GraphInput struct {
	NodeID string
	Kind   Kind
	Slot   int
	Value  [4]float64
}

// Context accumulates the state of one pass's material compilation: the
// per-endpoint expression cache, referenced textures, graph inputs, helper
// functions, and the time-uniform flag.
type Context struct {
	cache      map[scene.Endpoint]TypedExpr
	inProgress map[string]bool

	textures []TextureRef
	texIndex map[string]int

	graphInputs []GraphInput
	giIndex     map[string]int

	helpers map[string]bool

	functions    []string
	funcsEmitted map[string]bool

	usesTime bool
}

// NewContext returns an empty compile context.
func NewContext() *Context {
	return &Context{
		cache:        make(map[scene.Endpoint]TypedExpr),
		inProgress:   make(map[string]bool),
		texIndex:     make(map[string]int),
		giIndex:      make(map[string]int),
		helpers:      make(map[string]bool),
		funcsEmitted: make(map[string]bool),
	}
}

// UsesTime reports whether any compiled expression reads the frame clock.
func (ctx *Context) UsesTime() bool { return ctx.usesTime }

// Textures returns the referenced textures in registration order.
func (ctx *Context) Textures() []TextureRef { return ctx.textures }

// GraphInputs returns the uniform-bound graph inputs in slot order.
func (ctx *Context) GraphInputs() []GraphInput { return ctx.graphInputs }

// Helpers returns the names of required helper functions, sorted.
func (ctx *Context) Helpers() []string {
	names := make([]string, 0, len(ctx.helpers))
	for n := range ctx.helpers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Functions returns synthesized function declarations (closures) in
// emission order.
func (ctx *Context) Functions() []string { return ctx.functions }

// CachedCount returns the number of distinct compiled endpoint
// expressions.
func (ctx *Context) CachedCount() int { return len(ctx.cache) }

// NeedHelper records that the generated shader must declare the named
// helper function.
func (ctx *Context) NeedHelper(name string) { ctx.helpers[name] = true }

// RegisterTexture records a sampled texture, deduplicating by node id, and
// returns its reference.
func (ctx *Context) RegisterTexture(nodeID string, kind TexKind) TextureRef {
	if i, ok := ctx.texIndex[nodeID]; ok {
		return ctx.textures[i]
	}
	ref := TextureRef{NodeID: nodeID, Kind: kind}
	ctx.texIndex[nodeID] = len(ctx.textures)
	ctx.textures = append(ctx.textures, ref)
	return ref
}

// RegisterGraphInput allocates (or finds) the GraphInputs slot for a node.
func (ctx *Context) RegisterGraphInput(nodeID string, kind Kind, value [4]float64) GraphInput {
	if i, ok := ctx.giIndex[nodeID]; ok {
		return ctx.graphInputs[i]
	}
	gi := GraphInput{NodeID: nodeID, Kind: kind, Slot: len(ctx.graphInputs), Value: value}
	ctx.giIndex[nodeID] = gi.Slot
	ctx.graphInputs = append(ctx.graphInputs, gi)
	return gi
}

func (ctx *Context) addFunction(key, decl string) {
	if ctx.funcsEmitted[key] {
		return
	}
	ctx.funcsEmitted[key] = true
	ctx.functions = append(ctx.functions, decl)
}

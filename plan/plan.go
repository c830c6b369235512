// Package plan assembles the executable render plan: an ordered pass
// list over named GPU resources, with implicit blit and composite passes
// synthesized where the scene graph leaves gaps.
package plan

import (
	"github.com/gogpu/gputypes"
	"github.com/nodeforge/forge/resolve"
	"github.com/nodeforge/forge/scene"
	"github.com/nodeforge/forge/wgsl"
)

// ResourceName names a plan resource. Pass-owned textures use the node
// id; generator-created passes use synthesized names.
type ResourceName = string

// TextureDesc declares one color texture of the plan.
type TextureDesc struct {
	Name   ResourceName
	Width  int
	Height int
	Format gputypes.TextureFormat

	// Image is set for image textures: the asset path the backend
	// uploads from.
	Image string
}

// BufferKind separates vertex buffers from baked-constant storage.
type BufferKind int

const (
	BufferVertex BufferKind = iota
	BufferBaked
)

// BufferDesc declares one buffer with host-baked contents.
type BufferDesc struct {
	Name ResourceName
	Kind BufferKind

	// Data is the buffer payload as float32 words.
	Data []float32

	// VertexCount is the draw vertex count for vertex buffers.
	VertexCount int
}

// PassSpec is one executable pass.
type PassSpec struct {
	Name string

	VertexSrc   string
	FragmentSrc string

	ColorTarget ResourceName

	// Geometry names the vertex buffer, or "" for passes that derive
	// the full-screen triangle from the vertex index.
	Geometry ResourceName

	Bindings wgsl.BindingLayout

	Blend scene.BlendMode

	LoadOp     gputypes.LoadOp
	ClearColor gputypes.Color

	Params    wgsl.ParamsData
	UsesTime  bool
	Instances int

	// Sampled marks passes whose target is read by a later pass, as
	// opposed to only being presented.
	Sampled bool
}

// ResourceSet is the plan's named resources.
type ResourceSet struct {
	Textures map[ResourceName]TextureDesc
	Buffers  map[ResourceName]BufferDesc
}

// Plan is the complete executable plan.
type Plan struct {
	Passes    []PassSpec
	Resources ResourceSet

	// Output names the texture presented to the host.
	Output ResourceName

	// UsesTime is the OR-fold over all passes: whether any uniform
	// buffer needs a per-frame time refresh.
	UsesTime bool
}

// Pass returns the pass with the given name, or nil.
func (p *Plan) Pass(name string) *PassSpec {
	for i := range p.Passes {
		if p.Passes[i].Name == name {
			return &p.Passes[i]
		}
	}
	return nil
}

// ResourceFor returns the color-target resource a pass-producing node
// draws into: its explicit RenderTexture when connected, else a texture
// carrying the node's own id.
func ResourceFor(res *resolve.Resolution, nodeID string) ResourceName {
	if t := res.TargetTexture[nodeID]; t != "" {
		return t
	}
	return nodeID
}

// transparent is the clear color of every first writer.
var transparent = gputypes.Color{R: 0, G: 0, B: 0, A: 0}

package wgsl

import (
	"fmt"
	"strings"

	"github.com/nodeforge/forge/material"
	"github.com/nodeforge/forge/resolve"
)

// Bundle is the generated shader pair for one pass, with the binding
// layout the backend must realize. VertexSrc and FragmentSrc are each a
// complete, independently validating WGSL module sharing one preamble.
type Bundle struct {
	Name        string
	VertexSrc   string
	FragmentSrc string
	Bindings    BindingLayout
	UsesTime    bool

	// Instances is the instanced draw count; 1 for plain draws.
	Instances int
}

// BindingLayout describes the bind groups of a generated pass.
//
// Group 0: binding 0 the Params uniform, binding 1 an optional read-only
// storage buffer of baked per-instance constants, binding 2 an optional
// GraphInputs uniform. Group 1: alternating texture/sampler pairs in
// Textures order.
type BindingLayout struct {
	HasBakedData bool
	GraphInputs  []material.GraphInput
	Textures     []material.TextureRef
}

// PassInput is everything Generate needs for one draw pass.
type PassInput struct {
	// Node is the pass node id; it names the bundle.
	Node string

	Ctx resolve.DrawContext

	// Material is the compiled color expression and MCtx the compile
	// context that accumulated its bindings.
	Material material.TypedExpr
	MCtx     *material.Context

	// StraightAlpha skips the premultiplied-alpha output wrap.
	StraightAlpha bool

	// Camera appends the camera matrix to Params and routes the vertex
	// transform through it.
	Camera bool
}

// Generate assembles the vertex and fragment modules for a draw pass.
func Generate(in PassInput) (*Bundle, error) {
	if in.MCtx == nil {
		in.MCtx = material.NewContext()
	}
	if in.Material.Kind == material.Vec4 && !in.StraightAlpha {
		in.MCtx.NeedHelper("premultiply")
	}

	b := &Bundle{
		Name:     in.Node,
		UsesTime: in.Material.UsesTime || in.MCtx.UsesTime(),
		Bindings: BindingLayout{
			HasBakedData: in.Ctx.Instances > 1,
			GraphInputs:  in.MCtx.GraphInputs(),
			Textures:     in.MCtx.Textures(),
		},
		Instances: max(in.Ctx.Instances, 1),
	}

	preamble := preambleFor(b.Bindings, in.Camera)

	vtx := preamble + "\n" + vertexMain(in.Camera, b.Bindings.HasBakedData)
	b.VertexSrc = vtx

	helpers, err := emitHelpers(in.MCtx.Helpers())
	if err != nil {
		return nil, err
	}
	var frag strings.Builder
	frag.WriteString(preamble)
	if helpers != "" || len(in.MCtx.Functions()) > 0 {
		frag.WriteString("\n// --- Extra WGSL declarations ---\n")
		if helpers != "" {
			frag.WriteString(helpers + "\n")
		}
		for _, fn := range in.MCtx.Functions() {
			frag.WriteString("\n" + fn + "\n")
		}
	}
	frag.WriteString("\n@fragment\nfn fs_main(in: VSOut) -> @location(0) vec4<f32> {\n")
	frag.WriteString("    return " + material.FinalColor(in.Material, !in.StraightAlpha) + ";\n")
	frag.WriteString("}\n")
	b.FragmentSrc = frag.String()
	return b, nil
}

// preambleFor emits the declarations shared by both stages: Params,
// VSOut, and the pass's bind groups.
func preambleFor(bind BindingLayout, camera bool) string {
	var b strings.Builder
	b.WriteString(paramsStruct(camera))
	b.WriteString(vsOutStruct(camera))
	b.WriteString("\n@group(0) @binding(0) var<uniform> params: Params;\n")
	if bind.HasBakedData {
		b.WriteString("struct BakedData {\n    data: array<vec4<f32>>,\n};\n")
		b.WriteString("@group(0) @binding(1) var<storage, read> baked_data_parse: BakedData;\n")
	}
	if len(bind.GraphInputs) > 0 {
		b.WriteString("struct GraphInputs {\n")
		for _, gi := range bind.GraphInputs {
			fmt.Fprintf(&b, "    v%d: vec4<f32>,\n", gi.Slot)
		}
		b.WriteString("};\n")
		b.WriteString("@group(0) @binding(2) var<uniform> graph_inputs: GraphInputs;\n")
	}
	for i, t := range bind.Textures {
		fmt.Fprintf(&b, "@group(1) @binding(%d) var %s: texture_2d<f32>;\n", i*2, t.TextureVar())
		fmt.Fprintf(&b, "@group(1) @binding(%d) var %s: sampler;\n", i*2+1, t.SamplerVar())
	}
	return b.String()
}

// vertexMain emits the standard vertex transform: geometry-local pixel
// coordinates scale, translate, and center into target pixels
// (bottom-left origin), then map to clip space, either directly or
// through the camera matrix.
func vertexMain(camera, baked bool) string {
	var b strings.Builder
	b.WriteString("@vertex\nfn vs_main(\n")
	b.WriteString("    @location(0) pos: vec2<f32>,\n")
	b.WriteString("    @location(1) vuv: vec2<f32>,\n")
	b.WriteString("    @builtin(instance_index) inst: u32,\n")
	b.WriteString(") -> VSOut {\n")
	b.WriteString("    var out: VSOut;\n")
	b.WriteString("    let local = pos * params.geo_scale;\n")
	b.WriteString("    var px = params.center + params.geo_translate + local;\n")
	if baked {
		b.WriteString("    px = px + baked_data_parse.data[inst].xy;\n")
	}
	if camera {
		b.WriteString("    out.position = params.camera * vec4<f32>(px, 0.0, 1.0);\n")
	} else {
		b.WriteString("    let clip = (px / params.target_size) * 2.0 - vec2<f32>(1.0);\n")
		b.WriteString("    out.position = vec4<f32>(clip, 0.0, 1.0);\n")
	}
	b.WriteString("    out.uv = vuv;\n")
	b.WriteString("    out.frag_coord_gl = px;\n")
	if camera {
		b.WriteString("    out.local_px = vec3<f32>(local + params.geo_size * 0.5, 0.0);\n")
	} else {
		b.WriteString("    out.local_px = local + params.geo_size * 0.5;\n")
	}
	b.WriteString("    out.geo_size_px = params.geo_size;\n")
	b.WriteString("    return out;\n")
	b.WriteString("}\n")
	return b.String()
}

// Blit builds a full-screen pass that samples one source texture. It is
// synthesized for presents, resizes, and composite-to-composite routing;
// the source reference is registered under the source resource's name so
// the backend binds the right view.
func Blit(name, sourceResource string) *Bundle {
	mctx := material.NewContext()
	ref := mctx.RegisterTexture(sourceResource, material.TexPass)
	bind := BindingLayout{Textures: mctx.Textures()}
	preamble := preambleFor(bind, false)

	vtx := preamble + `
@vertex
fn vs_main(@builtin(vertex_index) vi: u32) -> VSOut {
    var out: VSOut;
    let xy = vec2<f32>(f32((vi << 1u) & 2u), f32(vi & 2u));
    out.position = vec4<f32>(xy * 2.0 - vec2<f32>(1.0), 0.0, 1.0);
    out.uv = xy;
    out.frag_coord_gl = xy * params.target_size;
    out.local_px = xy * params.target_size;
    out.geo_size_px = params.target_size;
    return out;
}
`
	frag := preamble + fmt.Sprintf(`
@fragment
fn fs_main(in: VSOut) -> @location(0) vec4<f32> {
    return textureSample(%s, %s, in.uv);
}
`, ref.TextureVar(), ref.SamplerVar())

	return &Bundle{
		Name:        name,
		VertexSrc:   vtx,
		FragmentSrc: frag,
		Bindings:    bind,
		Instances:   1,
	}
}

// Clear builds a full-screen pass writing transparent black. Emitted for
// composites with no layers so their target still holds defined pixels.
func Clear(name string) *Bundle {
	bind := BindingLayout{}
	preamble := preambleFor(bind, false)
	vtx := preamble + `
@vertex
fn vs_main(@builtin(vertex_index) vi: u32) -> VSOut {
    var out: VSOut;
    let xy = vec2<f32>(f32((vi << 1u) & 2u), f32(vi & 2u));
    out.position = vec4<f32>(xy * 2.0 - vec2<f32>(1.0), 0.0, 1.0);
    out.uv = xy;
    out.frag_coord_gl = xy * params.target_size;
    out.local_px = xy * params.target_size;
    out.geo_size_px = params.target_size;
    return out;
}
`
	frag := preamble + `
@fragment
fn fs_main(in: VSOut) -> @location(0) vec4<f32> {
    return vec4<f32>(0.0);
}
`
	return &Bundle{Name: name, VertexSrc: vtx, FragmentSrc: frag, Bindings: bind, Instances: 1}
}

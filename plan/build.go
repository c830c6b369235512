package plan

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/nodeforge/forge/registry"
	"github.com/nodeforge/forge/resolve"
	"github.com/nodeforge/forge/scene"
	"github.com/nodeforge/forge/wgsl"
)

// Inputs carries everything Build consumes: the prepared scene, the
// resolved contexts, the generated bundles for material draw passes, and
// the expansions of blur-family nodes.
type Inputs struct {
	Prep    *scene.Prepared
	Res     *resolve.Resolution
	Bundles map[string]*wgsl.Bundle
	Synth   map[string][]wgsl.SynthPass
}

type builder struct {
	in      Inputs
	plan    *Plan
	written map[ResourceName]bool
}

// Build assembles the render plan: declares resources, folds in implicit
// blit and composite passes, fixes load ops by first-writer order, and
// emits the execution order consistent with the scene's topological sort.
func Build(in Inputs) (*Plan, error) {
	if in.Prep == nil || in.Res == nil {
		return nil, fmt.Errorf("plan: nil inputs")
	}
	b := &builder{
		in: in,
		plan: &Plan{
			Resources: ResourceSet{
				Textures: make(map[ResourceName]TextureDesc),
				Buffers:  make(map[ResourceName]BufferDesc),
			},
		},
		written: make(map[ResourceName]bool),
	}

	for _, id := range in.Prep.Order {
		var err error
		switch in.Prep.CategoryOf(id) {
		case registry.CategoryTexture:
			b.declareTextureNode(id)
		case registry.CategoryPass:
			err = b.emitPassNode(id)
		case registry.CategoryComposite:
			err = b.emitComposite(id)
		case registry.CategoryRenderTarget:
			err = b.emitPresent(id)
		}
		if err != nil {
			return nil, err
		}
	}

	b.markSampled()
	for i := range b.plan.Passes {
		if b.plan.Passes[i].UsesTime {
			b.plan.UsesTime = true
		}
	}
	return b.plan, nil
}

// declareTextureNode declares resources for explicit texture nodes.
func (b *builder) declareTextureNode(id string) {
	n := b.in.Prep.NodeByID(id)
	params := b.in.Prep.Params[id]
	switch n.Type {
	case "RenderTexture":
		b.declareTexture(id, scene.ParamInt(params, "width", 1024), scene.ParamInt(params, "height", 1024), "")
	case "ImageTexture":
		b.declareTexture(id,
			scene.ParamInt(params, "width", 0), scene.ParamInt(params, "height", 0),
			scene.ParamString(params, "source", ""))
	}
}

func (b *builder) declareTexture(name ResourceName, w, h int, image string) {
	if _, ok := b.plan.Resources.Textures[name]; ok {
		return
	}
	b.plan.Resources.Textures[name] = TextureDesc{
		Name: name, Width: w, Height: h,
		Format: gputypes.TextureFormatRGBA8Unorm,
		Image:  image,
	}
}

// emitPassNode appends a draw pass, or a blur-family expansion, to the
// pass list.
func (b *builder) emitPassNode(id string) error {
	if synth, ok := b.in.Synth[id]; ok {
		for _, sp := range synth {
			b.emitSynth(sp)
		}
		return nil
	}

	bundle, ok := b.in.Bundles[id]
	if !ok {
		if _, retained := b.in.Res.Contexts[id]; !retained {
			// Unsampled branches fall out during resolution.
			return nil
		}
		return &Error{Code: CodeMissingBundle, Node: id, Msg: "draw pass has no shader bundle"}
	}
	ctx := b.in.Res.Contexts[id]
	target := ResourceFor(b.in.Res, id)
	b.declareTexture(target, int(ctx.TargetSizePx[0]), int(ctx.TargetSizePx[1]), "")

	spec := PassSpec{
		Name:        id,
		VertexSrc:   bundle.VertexSrc,
		FragmentSrc: bundle.FragmentSrc,
		ColorTarget: target,
		Geometry:    b.declareQuad(ctx),
		Bindings:    bundle.Bindings,
		Blend:       scene.BlendNormal,
		UsesTime:    bundle.UsesTime,
		Instances:   bundle.Instances,
		Params:      b.paramsFor(id, ctx),
	}
	if bundle.Bindings.HasBakedData {
		b.declareBakedData(id, ctx)
	}
	b.applyLoadOp(&spec)
	b.plan.Passes = append(b.plan.Passes, spec)
	return nil
}

func (b *builder) emitSynth(sp wgsl.SynthPass) {
	b.declareTexture(sp.Target, sp.Width, sp.Height, "")
	spec := PassSpec{
		Name:        sp.Name,
		VertexSrc:   sp.Bundle.VertexSrc,
		FragmentSrc: sp.Bundle.FragmentSrc,
		ColorTarget: sp.Target,
		Bindings:    sp.Bundle.Bindings,
		Blend:       scene.BlendNormal,
		UsesTime:    sp.Bundle.UsesTime,
		Instances:   1,
		Params:      fullscreenParams(sp.Width, sp.Height),
	}
	if sp.Additive {
		spec.Blend = scene.BlendAdd
	}
	b.applyLoadOp(&spec)
	b.plan.Passes = append(b.plan.Passes, spec)
}

// emitComposite appends one blit pass per ordered layer, blending into
// the composite's target texture.
func (b *builder) emitComposite(id string) error {
	domain, ok := b.in.Res.Domains[id]
	if !ok {
		return &Error{Code: CodeUnreachableComposite, Node: id, Msg: "composite has no resolved domain"}
	}
	target := b.compositeTarget(id)
	b.declareTexture(target, domain.Width, domain.Height, "")

	layers := b.in.Prep.Layers[id]
	if len(layers) == 0 {
		// An empty composite still owns its texture; a clear pass
		// leaves it transparent instead of undefined.
		bundle := wgsl.Clear(id + ".clear")
		spec := PassSpec{
			Name:        id + ".clear",
			VertexSrc:   bundle.VertexSrc,
			FragmentSrc: bundle.FragmentSrc,
			ColorTarget: target,
			Blend:       scene.BlendNormal,
			Params:      fullscreenParams(domain.Width, domain.Height),
			Instances:   1,
		}
		b.applyLoadOp(&spec)
		b.plan.Passes = append(b.plan.Passes, spec)
		return nil
	}

	for _, layer := range layers {
		srcRes, err := b.sourceResource(layer.Source)
		if err != nil {
			return err
		}
		name := fmt.Sprintf("%s.layer%d", id, layer.Index)
		bundle := wgsl.Blit(name, srcRes)
		spec := PassSpec{
			Name:        name,
			VertexSrc:   bundle.VertexSrc,
			FragmentSrc: bundle.FragmentSrc,
			ColorTarget: target,
			Bindings:    bundle.Bindings,
			Blend:       layer.Blend,
			Params:      fullscreenParams(domain.Width, domain.Height),
			Instances:   1,
		}
		b.applyLoadOp(&spec)
		b.plan.Passes = append(b.plan.Passes, spec)
	}
	return nil
}

// emitPresent routes the final composite to the render target. A blit is
// synthesized only when the target demands an explicit size different
// from the composite texture; otherwise the composite texture itself is
// the exposed output.
func (b *builder) emitPresent(id string) error {
	conn := b.in.Prep.Incoming(id, "pass")
	if conn == nil {
		return &Error{Code: CodeBlitImpossible, Node: id, Msg: "render target has no pass input after preparation"}
	}
	srcRes, err := b.sourceResource(conn.From.NodeID)
	if err != nil {
		return err
	}

	n := b.in.Prep.NodeByID(id)
	_, wExplicit := n.Params["width"]
	_, hExplicit := n.Params["height"]
	if wExplicit || hExplicit {
		params := b.in.Prep.Params[id]
		sw := scene.ParamInt(params, "width", 1280)
		sh := scene.ParamInt(params, "height", 720)
		src := b.plan.Resources.Textures[srcRes]
		if src.Width != sw || src.Height != sh {
			name := id + ".present"
			b.declareTexture(id, sw, sh, "")
			bundle := wgsl.Blit(name, srcRes)
			spec := PassSpec{
				Name:        name,
				VertexSrc:   bundle.VertexSrc,
				FragmentSrc: bundle.FragmentSrc,
				ColorTarget: id,
				Bindings:    bundle.Bindings,
				Blend:       scene.BlendNormal,
				Params:      fullscreenParams(sw, sh),
				Instances:   1,
			}
			b.applyLoadOp(&spec)
			b.plan.Passes = append(b.plan.Passes, spec)
			b.plan.Output = id
			return nil
		}
	}
	b.plan.Output = srcRes
	return nil
}

// sourceResource maps a pass-producing node to the texture its output
// lives in. Composite sources route through their target texture, which
// is how composite-to-composite edges become blits of real pixels.
func (b *builder) sourceResource(nodeID string) (ResourceName, error) {
	switch b.in.Prep.CategoryOf(nodeID) {
	case registry.CategoryPass:
		return ResourceFor(b.in.Res, nodeID), nil
	case registry.CategoryComposite:
		return b.compositeTarget(nodeID), nil
	case registry.CategoryTexture:
		return nodeID, nil
	}
	return "", &Error{Code: CodeBlitImpossible, Node: nodeID,
		Msg: fmt.Sprintf("node of category %s does not own a texture", b.in.Prep.CategoryOf(nodeID))}
}

func (b *builder) compositeTarget(id string) ResourceName {
	if c := b.in.Prep.Incoming(id, "target"); c != nil {
		return c.From.NodeID
	}
	return id
}

// applyLoadOp sets Clear(transparent) for the first writer of each
// target and Load for every later writer.
func (b *builder) applyLoadOp(spec *PassSpec) {
	if b.written[spec.ColorTarget] {
		spec.LoadOp = gputypes.LoadOpLoad
		return
	}
	b.written[spec.ColorTarget] = true
	spec.LoadOp = gputypes.LoadOpClear
	spec.ClearColor = transparent
}

// markSampled flags passes whose target a later pass samples.
func (b *builder) markSampled() {
	for i := range b.plan.Passes {
		target := b.plan.Passes[i].ColorTarget
		for j := i + 1; j < len(b.plan.Passes); j++ {
			for _, ref := range b.plan.Passes[j].Bindings.Textures {
				if b.textureResource(ref.NodeID) == target {
					b.plan.Passes[i].Sampled = true
				}
			}
		}
	}
}

// textureResource maps a texture reference (a scene node id or an
// already-synthesized resource name) to its resource.
func (b *builder) textureResource(refID string) ResourceName {
	if b.in.Prep.NodeByID(refID) == nil {
		return refID
	}
	switch b.in.Prep.CategoryOf(refID) {
	case registry.CategoryPass:
		return ResourceFor(b.in.Res, refID)
	case registry.CategoryComposite:
		return b.compositeTarget(refID)
	}
	return refID
}

// TextureResources returns, for one pass, the resource name bound at
// each texture slot, aligned with Bindings.Textures.
func (p *Plan) TextureResources(prep *scene.Prepared, res *resolve.Resolution, spec *PassSpec) []ResourceName {
	out := make([]ResourceName, len(spec.Bindings.Textures))
	for i, ref := range spec.Bindings.Textures {
		if prep.NodeByID(ref.NodeID) == nil {
			out[i] = ref.NodeID
			continue
		}
		switch prep.CategoryOf(ref.NodeID) {
		case registry.CategoryPass:
			out[i] = ResourceFor(res, ref.NodeID)
		case registry.CategoryComposite:
			if c := prep.Incoming(ref.NodeID, "target"); c != nil {
				out[i] = c.From.NodeID
			} else {
				out[i] = ref.NodeID
			}
		default:
			out[i] = ref.NodeID
		}
	}
	return out
}

// paramsFor fills the Params uniform for a material draw pass.
func (b *builder) paramsFor(id string, ctx resolve.DrawContext) wgsl.ParamsData {
	p := wgsl.ParamsData{
		TargetSize:   [2]float32{float32(ctx.TargetSizePx[0]), float32(ctx.TargetSizePx[1])},
		GeoSize:      [2]float32{float32(ctx.GeoSizePx[0]), float32(ctx.GeoSizePx[1])},
		Center:       [2]float32{float32(ctx.CenterPx[0]), float32(ctx.CenterPx[1])},
		GeoTranslate: [2]float32{float32(ctx.GeoTranslate[0]), float32(ctx.GeoTranslate[1])},
		GeoScale:     [2]float32{float32(ctx.GeoScale[0]), float32(ctx.GeoScale[1])},
	}
	if rgba, ok := scene.ParamVec(b.in.Prep.Params[id], "color", 4); ok {
		p.Color = [4]float32{float32(rgba[0]), float32(rgba[1]), float32(rgba[2]), float32(rgba[3])}
	}
	return p
}

func fullscreenParams(w, h int) wgsl.ParamsData {
	fw, fh := float32(w), float32(h)
	return wgsl.ParamsData{
		TargetSize: [2]float32{fw, fh},
		GeoSize:    [2]float32{fw, fh},
		Center:     [2]float32{fw / 2, fh / 2},
		GeoScale:   [2]float32{1, 1},
	}
}

// declareQuad declares the vertex buffer for a draw context: a
// triangle-strip quad in geometry-local pixels centered at the origin.
// Quads deduplicate by size.
func (b *builder) declareQuad(ctx resolve.DrawContext) ResourceName {
	w, h := ctx.GeoSizePx[0], ctx.GeoSizePx[1]
	name := fmt.Sprintf("sys.geo.quad.%dx%d", int(w), int(h))
	if _, ok := b.plan.Resources.Buffers[name]; ok {
		return name
	}
	hw, hh := float32(w/2), float32(h/2)
	b.plan.Resources.Buffers[name] = BufferDesc{
		Name: name, Kind: BufferVertex, VertexCount: 4,
		// pos.xy, uv.xy per vertex; strip order BL, BR, TL, TR.
		Data: []float32{
			-hw, -hh, 0, 0,
			hw, -hh, 1, 0,
			-hw, hh, 0, 1,
			hw, hh, 1, 1,
		},
	}
	return name
}

// declareBakedData bakes per-instance constants: one vec4 per instance,
// xy the instance offset in target pixels.
func (b *builder) declareBakedData(id string, ctx resolve.DrawContext) {
	name := "baked." + id
	if _, ok := b.plan.Resources.Buffers[name]; ok {
		return
	}
	params := map[string]any{}
	if ctx.Geometry != "" {
		params = b.in.Prep.Params[ctx.Geometry]
	}
	spacing := scene.ParamVecOr(params, "spacing", []float64{ctx.GeoSizePx[0], 0})
	data := make([]float32, 0, ctx.Instances*4)
	for i := 0; i < ctx.Instances; i++ {
		data = append(data,
			float32(float64(i)*spacing[0]),
			float32(float64(i)*spacing[1]),
			0, 0)
	}
	b.plan.Resources.Buffers[name] = BufferDesc{Name: name, Kind: BufferBaked, Data: data}
}

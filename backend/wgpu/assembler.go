package wgpu

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/nodeforge/forge/plan"
	"github.com/nodeforge/forge/scene"
	"github.com/nodeforge/forge/wgsl"
)

// paramsTimeOffset is the byte offset of the time field inside the
// Params uniform. Fixed by the layout contract in wgsl.ParamsData.
const paramsTimeOffset = 40

// paramsSize is the byte size of the Params uniform without camera.
const paramsSize = 64

// ImageLoader resolves an image asset path to RGBA pixels. Injected so
// the backend stays decoupled from asset storage.
type ImageLoader func(path string) (w, h int, rgba []byte, err error)

// Assembler binds render plans to a wgpu device. One plan is live at a
// time; binding a new plan releases the old one only after the new one
// is fully materialized.
type Assembler struct {
	mu      sync.Mutex
	handles *deviceHandles
	device  hal.Device
	queue   hal.Queue
	loader  ImageLoader

	bound *boundPlan
}

type texResource struct {
	tex  hal.Texture
	view hal.TextureView
	w, h uint32
}

type boundPass struct {
	spec *plan.PassSpec

	vsModule hal.ShaderModule
	fsModule hal.ShaderModule

	group0Layout hal.BindGroupLayout
	group1Layout hal.BindGroupLayout
	pipeLayout   hal.PipelineLayout
	pipeline     hal.RenderPipeline

	group0 hal.BindGroup
	group1 hal.BindGroup

	paramsBuf hal.Buffer
	vertexBuf hal.Buffer
	vertCount uint32

	target *texResource
}

type boundPlan struct {
	plan     *plan.Plan
	textures map[string]*texResource
	buffers  map[string]hal.Buffer
	sampler  hal.Sampler
	passes   []*boundPass
}

// New opens a standalone device and returns an assembler over it.
func New(loader ImageLoader) (*Assembler, error) {
	handles, err := openDevice()
	if err != nil {
		return nil, err
	}
	return &Assembler{
		handles: handles,
		device:  handles.device,
		queue:   handles.queue,
		loader:  loader,
	}, nil
}

// NewWithDevice wraps a device and queue owned by the host.
func NewWithDevice(device hal.Device, queue hal.Queue, loader ImageLoader) (*Assembler, error) {
	if device == nil || queue == nil {
		return nil, fmt.Errorf("wgpu: device and queue are required")
	}
	return &Assembler{device: device, queue: queue, loader: loader}, nil
}

// Bind materializes a plan: textures, buffers, shader modules, bind
// group layouts, pipelines, and bind groups, in that order. On any
// failure the partially built plan is destroyed and the previously bound
// plan stays live.
func (a *Assembler) Bind(p *plan.Plan, bindings map[string][]plan.ResourceName) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	fresh := &boundPlan{
		plan:     p,
		textures: make(map[string]*texResource),
		buffers:  make(map[string]hal.Buffer),
	}
	if err := a.materialize(fresh, bindings); err != nil {
		a.destroyPlan(fresh)
		return err
	}

	if a.bound != nil {
		a.destroyPlan(a.bound)
	}
	a.bound = fresh
	return nil
}

func (a *Assembler) materialize(bp *boundPlan, bindings map[string][]plan.ResourceName) error {
	sampler, err := a.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "forge_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeLinear,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create sampler: %w", err)
	}
	bp.sampler = sampler

	for name, desc := range bp.plan.Resources.Textures {
		tex, err := a.createTexture(name, desc)
		if err != nil {
			return err
		}
		bp.textures[name] = tex
	}
	for name, desc := range bp.plan.Resources.Buffers {
		buf, err := a.createBuffer(desc)
		if err != nil {
			return err
		}
		bp.buffers[name] = buf
	}

	for i := range bp.plan.Passes {
		spec := &bp.plan.Passes[i]
		pass, err := a.buildPass(bp, spec, bindings[spec.Name])
		if err != nil {
			return fmt.Errorf("wgpu: pass %q: %w", spec.Name, err)
		}
		bp.passes = append(bp.passes, pass)
	}
	return nil
}

func (a *Assembler) createTexture(name string, desc plan.TextureDesc) (*texResource, error) {
	w, h := uint32(desc.Width), uint32(desc.Height)
	var pixels []byte
	if desc.Image != "" {
		if a.loader == nil {
			return nil, fmt.Errorf("wgpu: texture %q needs image %q but no loader is configured", name, desc.Image)
		}
		iw, ih, rgba, err := a.loader(desc.Image)
		if err != nil {
			return nil, fmt.Errorf("wgpu: texture %q: %w", name, err)
		}
		if w == 0 || h == 0 {
			w, h = uint32(iw), uint32(ih)
		}
		pixels = rgba
	}
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("wgpu: texture %q has zero size", name)
	}

	tex, err := a.device.CreateTexture(&hal.TextureDescriptor{
		Label:         name,
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        desc.Format,
		Usage: gputypes.TextureUsageRenderAttachment |
			gputypes.TextureUsageTextureBinding |
			gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create texture %q: %w", name, err)
	}
	view, err := a.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         name + "_view",
		Format:        desc.Format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		a.device.DestroyTexture(tex)
		return nil, fmt.Errorf("wgpu: create view for %q: %w", name, err)
	}

	if pixels != nil {
		a.queue.WriteTexture(
			&hal.ImageCopyTexture{Texture: tex, MipLevel: 0},
			pixels,
			&hal.ImageDataLayout{Offset: 0, BytesPerRow: w * 4, RowsPerImage: h},
			&hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		)
	}
	return &texResource{tex: tex, view: view, w: w, h: h}, nil
}

func (a *Assembler) createBuffer(desc plan.BufferDesc) (hal.Buffer, error) {
	data := floatBytes(desc.Data)
	usage := gputypes.BufferUsageCopyDst
	switch desc.Kind {
	case plan.BufferVertex:
		usage |= gputypes.BufferUsageVertex
	case plan.BufferBaked:
		usage |= gputypes.BufferUsageStorage
	}
	buf, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Name,
		Size:  uint64(len(data)),
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create buffer %q: %w", desc.Name, err)
	}
	a.queue.WriteBuffer(buf, 0, data)
	return buf, nil
}

func (a *Assembler) buildPass(bp *boundPlan, spec *plan.PassSpec, texResources []plan.ResourceName) (*boundPass, error) {
	pass := &boundPass{spec: spec}

	target, ok := bp.textures[spec.ColorTarget]
	if !ok {
		return nil, fmt.Errorf("color target %q not declared", spec.ColorTarget)
	}
	pass.target = target

	vs, err := a.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  spec.Name + "_vs",
		Source: hal.ShaderSource{WGSL: spec.VertexSrc},
	})
	if err != nil {
		return nil, fmt.Errorf("compile vertex shader: %w", err)
	}
	pass.vsModule = vs
	fs, err := a.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  spec.Name + "_fs",
		Source: hal.ShaderSource{WGSL: spec.FragmentSrc},
	})
	if err != nil {
		return nil, fmt.Errorf("compile fragment shader: %w", err)
	}
	pass.fsModule = fs

	if err := a.buildLayouts(pass, spec); err != nil {
		return nil, err
	}
	if err := a.buildPipeline(pass, spec); err != nil {
		return nil, err
	}
	if err := a.buildBindGroups(bp, pass, spec, texResources); err != nil {
		return nil, err
	}

	if spec.Geometry != "" {
		buf, ok := bp.buffers[spec.Geometry]
		if !ok {
			return nil, fmt.Errorf("geometry buffer %q not declared", spec.Geometry)
		}
		pass.vertexBuf = buf
		pass.vertCount = uint32(bp.plan.Resources.Buffers[spec.Geometry].VertexCount)
	} else {
		pass.vertCount = 3
	}
	return pass, nil
}

func (a *Assembler) buildLayouts(pass *boundPass, spec *plan.PassSpec) error {
	entries := []gputypes.BindGroupLayoutEntry{{
		Binding:    0,
		Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
		Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
	}}
	if spec.Bindings.HasBakedData {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    1,
			Visibility: gputypes.ShaderStageVertex,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
		})
	}
	if len(spec.Bindings.GraphInputs) > 0 {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    2,
			Visibility: gputypes.ShaderStageFragment,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		})
	}
	group0, err := a.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   spec.Name + "_group0",
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("create group 0 layout: %w", err)
	}
	pass.group0Layout = group0

	layouts := []hal.BindGroupLayout{group0}
	if n := len(spec.Bindings.Textures); n > 0 {
		texEntries := make([]gputypes.BindGroupLayoutEntry, 0, n*2)
		for i := 0; i < n; i++ {
			texEntries = append(texEntries,
				gputypes.BindGroupLayoutEntry{
					Binding:    uint32(i * 2),
					Visibility: gputypes.ShaderStageFragment,
					Texture: &gputypes.TextureBindingLayout{
						SampleType:    gputypes.TextureSampleTypeFloat,
						ViewDimension: gputypes.TextureViewDimension2D,
					},
				},
				gputypes.BindGroupLayoutEntry{
					Binding:    uint32(i*2 + 1),
					Visibility: gputypes.ShaderStageFragment,
					Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
				})
		}
		group1, err := a.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
			Label:   spec.Name + "_group1",
			Entries: texEntries,
		})
		if err != nil {
			return fmt.Errorf("create group 1 layout: %w", err)
		}
		pass.group1Layout = group1
		layouts = append(layouts, group1)
	}

	pipeLayout, err := a.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            spec.Name + "_layout",
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	pass.pipeLayout = pipeLayout
	return nil
}

func (a *Assembler) buildPipeline(pass *boundPass, spec *plan.PassSpec) error {
	blend := blendStateFor(spec.Blend)

	var vertexBuffers []gputypes.VertexBufferLayout
	topology := gputypes.PrimitiveTopologyTriangleList
	if spec.Geometry != "" {
		topology = gputypes.PrimitiveTopologyTriangleStrip
		vertexBuffers = []gputypes.VertexBufferLayout{{
			ArrayStride: 16,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
				{Format: gputypes.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1},
			},
		}}
	}

	pipeline, err := a.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  spec.Name,
		Layout: pass.pipeLayout,
		Vertex: hal.VertexState{
			Module:     pass.vsModule,
			EntryPoint: "vs_main",
			Buffers:    vertexBuffers,
		},
		Fragment: &hal.FragmentState{
			Module:     pass.fsModule,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{{
				Format:    gputypes.TextureFormatRGBA8Unorm,
				Blend:     &blend,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: topology,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	})
	if err != nil {
		return fmt.Errorf("create render pipeline: %w", err)
	}
	pass.pipeline = pipeline
	return nil
}

func (a *Assembler) buildBindGroups(bp *boundPlan, pass *boundPass, spec *plan.PassSpec, texResources []plan.ResourceName) error {
	paramsBuf, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: spec.Name + "_params",
		Size:  paramsSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create params buffer: %w", err)
	}
	pass.paramsBuf = paramsBuf
	a.queue.WriteBuffer(paramsBuf, 0, paramsBytes(spec.Params))

	entries := []gputypes.BindGroupEntry{{
		Binding:  0,
		Resource: gputypes.BufferBinding{Buffer: paramsBuf.NativeHandle(), Offset: 0, Size: paramsSize},
	}}
	if spec.Bindings.HasBakedData {
		baked, ok := bp.buffers["baked."+spec.Name]
		if !ok {
			return fmt.Errorf("baked data buffer missing")
		}
		size := uint64(len(bp.plan.Resources.Buffers["baked."+spec.Name].Data) * 4)
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  1,
			Resource: gputypes.BufferBinding{Buffer: baked.NativeHandle(), Offset: 0, Size: size},
		})
	}
	if n := len(spec.Bindings.GraphInputs); n > 0 {
		giBuf, err := a.device.CreateBuffer(&hal.BufferDescriptor{
			Label: spec.Name + "_graph_inputs",
			Size:  uint64(n * 16),
			Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("create graph inputs buffer: %w", err)
		}
		bp.buffers["graph_inputs."+spec.Name] = giBuf
		a.queue.WriteBuffer(giBuf, 0, graphInputBytes(spec))
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  2,
			Resource: gputypes.BufferBinding{Buffer: giBuf.NativeHandle(), Offset: 0, Size: uint64(n * 16)},
		})
	}

	group0, err := a.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   spec.Name + "_bind0",
		Layout:  pass.group0Layout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("create bind group 0: %w", err)
	}
	pass.group0 = group0

	if len(spec.Bindings.Textures) == 0 {
		return nil
	}
	if len(texResources) != len(spec.Bindings.Textures) {
		return fmt.Errorf("have %d texture resources for %d slots", len(texResources), len(spec.Bindings.Textures))
	}
	texEntries := make([]gputypes.BindGroupEntry, 0, len(texResources)*2)
	for i, res := range texResources {
		tex, ok := bp.textures[res]
		if !ok {
			return fmt.Errorf("sampled texture %q not declared", res)
		}
		texEntries = append(texEntries,
			gputypes.BindGroupEntry{
				Binding:  uint32(i * 2),
				Resource: gputypes.TextureViewBinding{View: tex.view.NativeHandle()},
			},
			gputypes.BindGroupEntry{
				Binding:  uint32(i*2 + 1),
				Resource: gputypes.SamplerBinding{Sampler: bp.sampler.NativeHandle()},
			})
	}
	group1, err := a.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   spec.Name + "_bind1",
		Layout:  pass.group1Layout,
		Entries: texEntries,
	})
	if err != nil {
		return fmt.Errorf("create bind group 1: %w", err)
	}
	pass.group1 = group1
	return nil
}

// SetTime rewrites only the time word of passes that read the clock.
func (a *Assembler) SetTime(t float32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bound == nil {
		return
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], math.Float32bits(t))
	for _, pass := range a.bound.passes {
		if pass.spec.UsesTime {
			a.queue.WriteBuffer(pass.paramsBuf, paramsTimeOffset, buf[:])
		}
	}
}

// Render submits one frame: every pass in plan order, each as its own
// render pass with the plan's load op and blend state.
func (a *Assembler) Render() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bound == nil {
		return fmt.Errorf("wgpu: no plan bound")
	}

	encoder, err := a.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "forge_frame"})
	if err != nil {
		return fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("forge_frame"); err != nil {
		return fmt.Errorf("wgpu: begin encoding: %w", err)
	}

	for _, pass := range a.bound.passes {
		rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
			Label: pass.spec.Name,
			ColorAttachments: []hal.RenderPassColorAttachment{{
				View:       pass.target.view,
				LoadOp:     pass.spec.LoadOp,
				StoreOp:    gputypes.StoreOpStore,
				ClearValue: pass.spec.ClearColor,
			}},
		})
		rp.SetPipeline(pass.pipeline)
		rp.SetBindGroup(0, pass.group0, nil)
		if pass.group1 != nil {
			rp.SetBindGroup(1, pass.group1, nil)
		}
		if pass.vertexBuf != nil {
			rp.SetVertexBuffer(0, pass.vertexBuf, 0)
		}
		rp.Draw(pass.vertCount, uint32(pass.spec.Instances), 0, 0)
		rp.End()
	}

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("wgpu: end encoding: %w", err)
	}
	defer a.device.FreeCommandBuffer(cmdBuf)

	fence, err := a.device.CreateFence()
	if err != nil {
		return fmt.Errorf("wgpu: create fence: %w", err)
	}
	defer a.device.DestroyFence(fence)

	if err := a.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("wgpu: submit: %w", err)
	}
	ok, err := a.device.Wait(fence, 1, 5*time.Second)
	if err != nil || !ok {
		return fmt.Errorf("wgpu: wait for frame: ok=%v err=%w", ok, err)
	}
	return nil
}

// Output names the texture view the host registers for display.
func (a *Assembler) Output() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bound == nil {
		return ""
	}
	return a.bound.plan.Output
}

// OutputView returns the live view of the output texture.
func (a *Assembler) OutputView() hal.TextureView {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bound == nil {
		return nil
	}
	if tex, ok := a.bound.textures[a.bound.plan.Output]; ok {
		return tex.view
	}
	return nil
}

// Release destroys the bound plan's resources and, for standalone
// assemblers, the device itself stays open for the next bind.
func (a *Assembler) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bound != nil {
		a.destroyPlan(a.bound)
		a.bound = nil
	}
}

func (a *Assembler) destroyPlan(bp *boundPlan) {
	for _, pass := range bp.passes {
		if pass.group1 != nil {
			a.device.DestroyBindGroup(pass.group1)
		}
		if pass.group0 != nil {
			a.device.DestroyBindGroup(pass.group0)
		}
		if pass.paramsBuf != nil {
			a.device.DestroyBuffer(pass.paramsBuf)
		}
		if pass.pipeline != nil {
			a.device.DestroyRenderPipeline(pass.pipeline)
		}
		if pass.pipeLayout != nil {
			a.device.DestroyPipelineLayout(pass.pipeLayout)
		}
		if pass.group1Layout != nil {
			a.device.DestroyBindGroupLayout(pass.group1Layout)
		}
		if pass.group0Layout != nil {
			a.device.DestroyBindGroupLayout(pass.group0Layout)
		}
		if pass.fsModule != nil {
			a.device.DestroyShaderModule(pass.fsModule)
		}
		if pass.vsModule != nil {
			a.device.DestroyShaderModule(pass.vsModule)
		}
	}
	for _, buf := range bp.buffers {
		a.device.DestroyBuffer(buf)
	}
	for _, tex := range bp.textures {
		a.device.DestroyTextureView(tex.view)
		a.device.DestroyTexture(tex.tex)
	}
	if bp.sampler != nil {
		a.device.DestroySampler(bp.sampler)
	}
}

// blendStateFor maps a plan blend mode to hardware blend factors. All
// modes assume premultiplied alpha.
func blendStateFor(mode scene.BlendMode) gputypes.BlendState {
	switch mode {
	case scene.BlendAdd:
		return gputypes.BlendState{
			Color: gputypes.BlendComponent{
				SrcFactor: gputypes.BlendFactorOne,
				DstFactor: gputypes.BlendFactorOne,
				Operation: gputypes.BlendOperationAdd,
			},
			Alpha: gputypes.BlendComponent{
				SrcFactor: gputypes.BlendFactorOne,
				DstFactor: gputypes.BlendFactorOne,
				Operation: gputypes.BlendOperationAdd,
			},
		}
	case scene.BlendMultiply:
		return gputypes.BlendState{
			Color: gputypes.BlendComponent{
				SrcFactor: gputypes.BlendFactorDst,
				DstFactor: gputypes.BlendFactorZero,
				Operation: gputypes.BlendOperationAdd,
			},
			Alpha: gputypes.BlendComponent{
				SrcFactor: gputypes.BlendFactorOne,
				DstFactor: gputypes.BlendFactorOneMinusSrcAlpha,
				Operation: gputypes.BlendOperationAdd,
			},
		}
	case scene.BlendScreen:
		return gputypes.BlendState{
			Color: gputypes.BlendComponent{
				SrcFactor: gputypes.BlendFactorOne,
				DstFactor: gputypes.BlendFactorOneMinusSrc,
				Operation: gputypes.BlendOperationAdd,
			},
			Alpha: gputypes.BlendComponent{
				SrcFactor: gputypes.BlendFactorOne,
				DstFactor: gputypes.BlendFactorOneMinusSrcAlpha,
				Operation: gputypes.BlendOperationAdd,
			},
		}
	}
	return gputypes.BlendStatePremultiplied()
}

func paramsBytes(p wgsl.ParamsData) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, p)
	return buf.Bytes()
}

func graphInputBytes(spec *plan.PassSpec) []byte {
	var buf bytes.Buffer
	for _, gi := range spec.Bindings.GraphInputs {
		for _, v := range gi.Value {
			_ = binary.Write(&buf, binary.LittleEndian, float32(v))
		}
	}
	return buf.Bytes()
}

func floatBytes(data []float32) []byte {
	out := make([]byte, len(data)*4)
	for i, f := range data {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}
